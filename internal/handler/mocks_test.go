package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/repository"
	"github.com/muluken16/E-liberary/internal/service"
)

type mockPayments struct{ mock.Mock }

func (m *mockPayments) Initiate(ctx context.Context, in service.InitiateInput) (*service.InitiateResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*service.InitiateResult)
	return res, args.Error(1)
}

func (m *mockPayments) Verify(ctx context.Context, txRef string) (*service.VerifyOutcome, error) {
	args := m.Called(ctx, txRef)
	out, _ := args.Get(0).(*service.VerifyOutcome)
	return out, args.Error(1)
}

func (m *mockPayments) ReceiveWebhook(ctx context.Context, payload map[string]string, sig string) (string, error) {
	args := m.Called(ctx, payload, sig)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) Refund(ctx context.Context, txRef, reason string) (*model.Payment, error) {
	args := m.Called(ctx, txRef, reason)
	p, _ := args.Get(0).(*model.Payment)
	return p, args.Error(1)
}

func (m *mockPayments) History(ctx context.Context, userID uint64) ([]model.Payment, error) {
	args := m.Called(ctx, userID)
	ps, _ := args.Get(0).([]model.Payment)
	return ps, args.Error(1)
}

type fixedRate struct{ rate decimal.Decimal }

func (f fixedRate) Rate(_ context.Context, from, to string) decimal.Decimal {
	if from == to {
		return decimal.NewFromInt(1)
	}
	return f.rate
}

type stubUsers map[uint64]model.User

func (s stubUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := s[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

type mockAccess struct{ mock.Mock }

func (m *mockAccess) CanAccess(ctx context.Context, userID *uint64, bookID uint64) (service.AccessDecision, error) {
	args := m.Called(ctx, userID, bookID)
	return args.Get(0).(service.AccessDecision), args.Error(1)
}

func (m *mockAccess) Library(ctx context.Context, userID uint64) ([]repository.PurchaseDetail, error) {
	args := m.Called(ctx, userID)
	rows, _ := args.Get(0).([]repository.PurchaseDetail)
	return rows, args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) List(ctx context.Context, q repository.BookQuery) ([]model.Book, int64, error) {
	args := m.Called(ctx, q)
	books, _ := args.Get(0).([]model.Book)
	return books, args.Get(1).(int64), args.Error(2)
}

func (m *mockCatalog) Get(ctx context.Context, id uint64) (*model.Book, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*model.Book)
	return b, args.Error(1)
}

func (m *mockCatalog) Categories(ctx context.Context) ([]model.Category, error) {
	args := m.Called(ctx)
	cats, _ := args.Get(0).([]model.Category)
	return cats, args.Error(1)
}

func (m *mockCatalog) Pricing(ctx context.Context, id uint64) (*service.Pricing, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*service.Pricing)
	return p, args.Error(1)
}

func (m *mockCatalog) Create(ctx context.Context, sellerID *uint64, b *model.Book) error {
	args := m.Called(ctx, sellerID, b)
	if args.Error(0) == nil {
		b.ID = 42
	}
	return args.Error(0)
}

type mockQuiz struct{ mock.Mock }

func (m *mockQuiz) Subjects(ctx context.Context, search string) ([]model.Subject, error) {
	args := m.Called(ctx, search)
	s, _ := args.Get(0).([]model.Subject)
	return s, args.Error(1)
}

func (m *mockQuiz) Exam(ctx context.Context, subjectID uint64) (*service.Exam, error) {
	args := m.Called(ctx, subjectID)
	e, _ := args.Get(0).(*service.Exam)
	return e, args.Error(1)
}

func (m *mockQuiz) SaveProgress(ctx context.Context, userID, subjectID uint64, in service.ProgressInput) (*model.SubjectProgress, error) {
	args := m.Called(ctx, userID, subjectID, in)
	p, _ := args.Get(0).(*model.SubjectProgress)
	return p, args.Error(1)
}

func (m *mockQuiz) MyProgress(ctx context.Context, userID uint64) ([]model.SubjectProgress, error) {
	args := m.Called(ctx, userID)
	ps, _ := args.Get(0).([]model.SubjectProgress)
	return ps, args.Error(1)
}

// newEcho returns an echo instance with the production validator.
func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// request builds a context for a handler call.  Identity is set when uid is
// non-zero.
func request(e *echo.Echo, method, target, body string, uid uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != 0 {
		c.Set("user_id", uid)
		c.Set("role", role)
	}
	return c, rec
}

var nopLog = zerolog.Nop()
