// Payment endpoints: Chapa checkout, verification, webhook and the
// synchronous demo path.

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/muluken16/E-liberary/internal/gateway"
	"github.com/muluken16/E-liberary/internal/middleware"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/service"
	"github.com/muluken16/E-liberary/internal/validation"
)

// Payments is the part of service.Ledger the handlers use.
type Payments interface {
	Initiate(ctx context.Context, in service.InitiateInput) (*service.InitiateResult, error)
	Verify(ctx context.Context, txRef string) (*service.VerifyOutcome, error)
	ReceiveWebhook(ctx context.Context, payload map[string]string, signature string) (string, error)
	Refund(ctx context.Context, txRef, reason string) (*model.Payment, error)
	History(ctx context.Context, userID uint64) ([]model.Payment, error)
}

// RateQuoter reports the current exchange rate.
type RateQuoter interface {
	Rate(ctx context.Context, from, to string) decimal.Decimal
}

// UserLookup loads the caller for the demo checkout customer fields.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Webhook signature headers, checked in order.
var signatureHeaders = []string{"Chapa-Signature", "X-Chapa-Signature"}

// maxWebhookBody bounds the notification payload.
const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	Payments Payments
	Rates    RateQuoter
	Users    UserLookup
	Log      zerolog.Logger
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(p Payments, rates RateQuoter, users UserLookup, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: p, Rates: rates, Users: users, Log: log}
}

// NewValidator returns the request validator with the payment body rules
// registered.
func NewValidator() *validation.Validator {
	return validation.New(chapaPaymentReq{}, processPaymentReq{})
}

// ----- DTOs -----

type chapaPaymentReq struct {
	BookID        uint64           `json:"book_id" validate:"required"`
	PaymentType   string           `json:"payment_type" validate:"required,oneof=purchase_hard purchase_soft rental"`
	Amount        *decimal.Decimal `json:"amount"`
	Currency      string           `json:"currency" validate:"omitempty,oneof=ETB USD"`
	CustomerEmail string           `json:"customer_email" validate:"required,email"`
	CustomerName  string           `json:"customer_name" validate:"required,max=200"`
	PhoneNumber   string           `json:"phone_number" validate:"omitempty,max=20"`
	Description   string           `json:"description" validate:"omitempty,max=255"`
	RentalWeeks   *int             `json:"rental_duration_weeks"`
	PaymentMethod string           `json:"payment_method" validate:"omitempty,max=20"`
}

func (r chapaPaymentReq) PaymentTypeValue() string { return r.PaymentType }
func (r chapaPaymentReq) RentalWeeksValue() *int   { return r.RentalWeeks }

type processPaymentReq struct {
	BookID        uint64 `json:"book_id" validate:"required"`
	PaymentType   string `json:"payment_type" validate:"required,oneof=purchase_hard purchase_soft rental"`
	PaymentMethod string `json:"payment_method" validate:"required,max=20"`
	RentalWeeks   *int   `json:"rental_duration_weeks"`
	PhoneNumber   string `json:"phone_number" validate:"omitempty,max=20"`
}

func (r processPaymentReq) PaymentTypeValue() string { return r.PaymentType }
func (r processPaymentReq) RentalWeeksValue() *int   { return r.RentalWeeks }

type verifyReq struct {
	TxRef string `json:"tx_ref" validate:"required"`
}

type refundReq struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

// PaymentDTO is a payment as exposed to its owner.
type PaymentDTO struct {
	ID                  uint64     `json:"id"`
	BookID              uint64     `json:"book_id"`
	PaymentType         string     `json:"payment_type"`
	Amount              string     `json:"amount"`
	Currency            string     `json:"currency"`
	LocalAmount         string     `json:"local_amount"`
	LocalCurrency       string     `json:"local_currency"`
	ExchangeRate        string     `json:"exchange_rate"`
	PaymentMethod       string     `json:"payment_method"`
	TxRef               string     `json:"tx_ref"`
	Status              string     `json:"status"`
	Reference           *string    `json:"reference,omitempty"`
	CheckoutURL         *string    `json:"checkout_url,omitempty"`
	RentalDurationWeeks *int       `json:"rental_duration_weeks,omitempty"`
	RentalStartDate     *time.Time `json:"rental_start_date,omitempty"`
	RentalEndDate       *time.Time `json:"rental_end_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func toPaymentDTO(p model.Payment) PaymentDTO {
	return PaymentDTO{
		ID: p.ID, BookID: p.BookID, PaymentType: p.PaymentType,
		Amount: p.Amount.StringFixed(2), Currency: p.Currency,
		LocalAmount: p.LocalAmount.StringFixed(2), LocalCurrency: p.LocalCurrency,
		ExchangeRate: p.ExchangeRate.String(), PaymentMethod: p.PaymentMethod,
		TxRef: p.TransactionID, Status: p.Status, Reference: p.GatewayReference,
		CheckoutURL: p.CheckoutURL, RentalDurationWeeks: p.RentalDurationWeeks,
		RentalStartDate: p.RentalStartDate, RentalEndDate: p.RentalEndDate, CreatedAt: p.CreatedAt,
	}
}

func weeksOf(w *int) int {
	if w == nil {
		return 0
	}
	return *w
}

// CreateChapa serves POST /api/payments/chapa.  The price is always computed
// server side; a client amount is only checked for sign.
func (h *PaymentHandler) CreateChapa(c echo.Context) error {
	var req chapaPaymentReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return respondError(c, h.Log, &validation.Error{Fields: map[string]string{"amount": "gt"}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	res, err := h.Payments.Initiate(ctx, service.InitiateInput{
		BookID:      req.BookID,
		PaymentType: req.PaymentType,
		Method:      strings.ToLower(req.PaymentMethod),
		RentalWeeks: weeksOf(req.RentalWeeks),
		UserID:      middleware.OptionalUserID(c),
		Customer: gateway.Customer{
			Email:       strings.TrimSpace(req.CustomerEmail),
			Name:        strings.TrimSpace(req.CustomerName),
			PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		},
		Description: req.Description,
	})
	if err != nil {
		if res != nil && res.Payment != nil {
			h.Log.Warn().Err(err).Str("tx_ref", res.Payment.TransactionID).Msg("checkout failed")
			return c.JSON(http.StatusBadGateway, echo.Map{
				"success": false, "error": "payment provider error", "tx_ref": res.Payment.TransactionID,
			})
		}
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":      true,
		"checkout_url": res.CheckoutURL,
		"tx_ref":       res.Payment.TransactionID,
		"payment_id":   res.Payment.ID,
	})
}

// VerifyChapa serves GET /api/payments/chapa?tx_ref=.
func (h *PaymentHandler) VerifyChapa(c echo.Context) error {
	return h.verify(c, strings.TrimSpace(c.QueryParam("tx_ref")))
}

// VerifyChapaPost serves POST /api/payments/chapa/verify with {tx_ref}.
func (h *PaymentHandler) VerifyChapaPost(c echo.Context) error {
	var req verifyReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	return h.verify(c, strings.TrimSpace(req.TxRef))
}

func (h *PaymentHandler) verify(c echo.Context, txRef string) error {
	if txRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tx_ref required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()
	out, err := h.Payments.Verify(ctx, txRef)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"status":    out.Status,
		"amount":    out.Amount,
		"currency":  out.Currency,
		"reference": out.Reference,
		"tx_ref":    txRef,
	})
}

// Webhook serves POST /api/payments/chapa/webhook.  The sender is untrusted
// and always gets 200 so it never learns why a notification was dropped.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		h.Log.Warn().Err(err).Msg("webhook body unreadable")
		return c.JSON(http.StatusOK, echo.Map{"status": service.WebhookIgnored})
	}
	payload, err := flattenPayload(body)
	if err != nil {
		h.Log.Warn().Err(err).Msg("webhook body malformed")
		return c.JSON(http.StatusOK, echo.Map{"status": service.WebhookIgnored})
	}
	sig := ""
	for _, name := range signatureHeaders {
		if sig = c.Request().Header.Get(name); sig != "" {
			break
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	status, err := h.Payments.ReceiveWebhook(ctx, payload, sig)
	if err != nil {
		h.Log.Error().Err(err).Str("tx_ref", payload["tx_ref"]).Msg("webhook processing failed")
		status = service.WebhookIgnored
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status})
}

// flattenPayload decodes a JSON object into string values.  Numbers keep
// their literal text; nested objects are re-encoded compactly.
func flattenPayload(body []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = fmt.Sprint(t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

// Process serves POST /api/payments/process, the synchronous demo path.
// It is refused unless the gateway runs in test mode.
func (h *PaymentHandler) Process(c echo.Context) error {
	var req processPaymentReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	uid, _ := middleware.UserID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" && u.PhoneNumber != nil {
		phone = *u.PhoneNumber
	}
	res, err := h.Payments.Initiate(ctx, service.InitiateInput{
		BookID:      req.BookID,
		PaymentType: req.PaymentType,
		Method:      strings.ToLower(req.PaymentMethod),
		RentalWeeks: weeksOf(req.RentalWeeks),
		UserID:      &uid,
		Customer:    gateway.Customer{Email: u.Email, Name: u.FullName(), PhoneNumber: phone},
		Demo:        true,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	p := res.Payment
	return c.JSON(http.StatusCreated, echo.Map{
		"success":       true,
		"payment":       toPaymentDTO(*p),
		"purchase_type": p.PurchaseType(),
	})
}

type methodDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var methodNames = map[string]string{
	"telebir":   "Telebirr",
	"cbe_bir":   "CBE Birr",
	"hellocash": "HelloCash",
	"dashen":    "Dashen Bank",
	"awash":     "Awash Bank",
	"amole":     "Amole",
	"stripe":    "Stripe",
	"paypal":    "PayPal",
	"chapa":     "Chapa",
}

// Methods serves GET /api/payments/chapa/methods.
func (h *PaymentHandler) Methods(c echo.Context) error {
	out := make([]methodDTO, 0, len(model.PaymentMethods))
	for _, m := range model.PaymentMethods {
		out = append(out, methodDTO{Code: m, Name: methodNames[m]})
	}
	return c.JSON(http.StatusOK, echo.Map{"methods": out, "default": service.DefaultPaymentMethod})
}

// Currencies serves GET /api/payments/chapa/currencies with current rates.
func (h *PaymentHandler) Currencies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	usdEtb := h.Rates.Rate(ctx, model.CurrencyUSD, model.CurrencyETB)
	etbUsd := h.Rates.Rate(ctx, model.CurrencyETB, model.CurrencyUSD)
	return c.JSON(http.StatusOK, echo.Map{
		"currencies": []echo.Map{
			{"code": model.CurrencyETB, "name": "Ethiopian Birr"},
			{"code": model.CurrencyUSD, "name": "US Dollar"},
		},
		"default": model.LocalCurrency,
		"rates": echo.Map{
			"USD_ETB": usdEtb.String(),
			"ETB_USD": etbUsd.String(),
		},
	})
}

// Mine serves GET /api/payments/mine.
func (h *PaymentHandler) Mine(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	ps, err := h.Payments.History(ctx, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	items := make([]PaymentDTO, 0, len(ps))
	for _, p := range ps {
		items = append(items, toPaymentDTO(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Refund serves POST /api/payments/:tx_ref/refund (admin only).
func (h *PaymentHandler) Refund(c echo.Context) error {
	txRef := strings.TrimSpace(c.Param("tx_ref"))
	if txRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tx_ref required"})
	}
	var req refundReq
	if c.Request().ContentLength > 0 {
		if err := bindValid(c, &req); err != nil {
			return respondError(c, h.Log, err)
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()
	p, err := h.Payments.Refund(ctx, txRef, req.Reason)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "tx_ref": p.TransactionID, "status": p.Status})
}
