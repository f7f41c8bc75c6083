package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muluken16/E-liberary/internal/activity"
	"github.com/muluken16/E-liberary/internal/handler"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/utils"
)

const secret = "router-secret"

func newTestServer() *echo.Echo {
	log := zerolog.Nop()
	h := Handlers{
		Auth:      &handler.AuthHandler{Log: log},
		Catalog:   handler.NewCatalogHandler(nil, log),
		Payments:  handler.NewPaymentHandler(nil, nil, nil, log),
		Purchases: handler.NewPurchaseHandler(nil, log),
		Quiz:      handler.NewQuizHandler(nil, log),
		Activity:  handler.NewActivityHandler(activity.NewMemoryStore(activity.MaxEntries), log),
	}
	return New(h, Options{JWTSecret: secret, Log: log})
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, 7, role, 15)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newTestServer()
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/payments/mine"},
		{http.MethodPost, "/api/payments/process"},
		{http.MethodGet, "/api/user-purchases/mine"},
		{http.MethodGet, "/api/recent-activities"},
		{http.MethodPost, "/api/books"},
		{http.MethodPost, "/api/subjects/1/progress"},
	} {
		rec := serve(e, r.method, r.path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, r.path)
	}
}

func TestRoleGates(t *testing.T) {
	e := newTestServer()
	rec := serve(e, http.MethodPost, "/api/books", bearer(t, model.UserTypeBuyer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodPost, "/api/payments/TXN1/refund", bearer(t, model.UserTypeSeller))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTrailingSlashTolerated(t *testing.T) {
	e := newTestServer()
	rec := serve(e, http.MethodGet, "/api/payments/chapa/methods/", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/api/recent-activities/", bearer(t, model.UserTypeBuyer))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestRoutesRegistered(t *testing.T) {
	e := newTestServer()
	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/auth/register",
		"POST /api/auth/login",
		"POST /api/auth/refresh",
		"POST /api/auth/logout",
		"GET /api/me",
		"GET /api/books",
		"GET /api/books/:id",
		"GET /api/books/:id/pricing",
		"GET /api/categories",
		"POST /api/books",
		"POST /api/payments/chapa",
		"GET /api/payments/chapa",
		"POST /api/payments/chapa/verify",
		"POST /api/payments/chapa/webhook",
		"GET /api/payments/chapa/methods",
		"GET /api/payments/chapa/currencies",
		"POST /api/payments/process",
		"GET /api/payments/mine",
		"POST /api/payments/:tx_ref/refund",
		"GET /api/user-purchases/check-access/:book_id",
		"GET /api/user-purchases/mine",
		"GET /api/subjects",
		"GET /api/subjects/progress/mine",
		"POST /api/subjects/:id/progress",
		"GET /api/exams/:subject_id",
		"GET /api/recent-activities",
	} {
		assert.True(t, got[want], want)
	}
}
