package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/muluken16/E-liberary/internal/middleware"
	"github.com/muluken16/E-liberary/internal/repository"
	"github.com/muluken16/E-liberary/internal/service"
)

// AccessService answers entitlement questions.
type AccessService interface {
	CanAccess(ctx context.Context, userID *uint64, bookID uint64) (service.AccessDecision, error)
	Library(ctx context.Context, userID uint64) ([]repository.PurchaseDetail, error)
}

type PurchaseHandler struct {
	Access AccessService
	Log    zerolog.Logger
}

// NewPurchaseHandler constructs a PurchaseHandler.
func NewPurchaseHandler(a AccessService, log zerolog.Logger) *PurchaseHandler {
	return &PurchaseHandler{Access: a, Log: log}
}

type purchaseDTO struct {
	ID           uint64     `json:"id"`
	BookID       uint64     `json:"book_id"`
	BookTitle    string     `json:"book_title"`
	BookAuthor   string     `json:"book_author"`
	PaymentID    uint64     `json:"payment_id"`
	PurchaseType string     `json:"purchase_type"`
	PurchasedAt  time.Time  `json:"purchased_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// CheckAccess serves GET /api/user-purchases/check-access/:book_id.  Denied
// answers carry a reason; granted ones carry the purchase type and expiry.
func (h *PurchaseHandler) CheckAccess(c echo.Context) error {
	bookID, ok := pathID(c, "book_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book_id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Access.CanAccess(ctx, middleware.OptionalUserID(c), bookID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !d.Allowed || d.Reason == service.ReasonFreeBook {
		return c.JSON(http.StatusOK, echo.Map{"access": d.Allowed, "reason": d.Reason})
	}
	resp := echo.Map{"access": true, "purchase_type": d.PurchaseType}
	if d.ExpiresAt != nil {
		resp["expires_at"] = d.ExpiresAt
	}
	return c.JSON(http.StatusOK, resp)
}

// Mine serves GET /api/user-purchases/mine.
func (h *PurchaseHandler) Mine(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	rows, err := h.Access.Library(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	items := make([]purchaseDTO, 0, len(rows))
	for _, r := range rows {
		items = append(items, purchaseDTO{
			ID: r.ID, BookID: r.BookID, BookTitle: r.BookTitle, BookAuthor: r.BookAuthor,
			PaymentID: r.PaymentID, PurchaseType: r.PurchaseType,
			PurchasedAt: r.PurchasedAt, ExpiresAt: r.ExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
