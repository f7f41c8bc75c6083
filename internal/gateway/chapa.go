// Package gateway adapts the Chapa payment API.  Checkout, verification and
// refund calls report failures in their result structs and never return a
// Go error; callers branch on Success.  In test mode no network calls are
// made and deterministic results are synthesized.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Gateway-reported transaction statuses.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusTimeout   = "timeout"
)

// Config holds the adapter settings.
type Config struct {
	BaseURL   string
	SecretKey string
	TestMode  bool
	Timeout   time.Duration
}

// Customer is the payer shown on the hosted checkout page.
type Customer struct {
	Email       string
	Name        string
	PhoneNumber string
}

// CheckoutRequest describes one hosted checkout session.  TxRef is optional;
// one is generated when empty.
type CheckoutRequest struct {
	TxRef       string
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	CallbackURL string
	Customer    Customer
	Meta        map[string]string
}

// CheckoutResult is the outcome of CreateCheckout.
type CheckoutResult struct {
	Success     bool
	CheckoutURL string
	TxRef       string
	Error       string // safe to show to API clients
	RawError    string // provider detail, for logs only
	StatusCode  int
}

// VerifyResult is the outcome of VerifyTransaction.
type VerifyResult struct {
	Success    bool
	Status     string
	Amount     string
	Currency   string
	Reference  string
	Error      string
	RawError   string
	StatusCode int
}

// RefundResult is the outcome of Refund.
type RefundResult struct {
	Success    bool
	RefundID   string
	Status     string
	Error      string
	RawError   string
	StatusCode int
}

// ErrRateUnavailable is returned by FetchExchangeRate when no live rate can
// be obtained (including test mode).
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Client talks to Chapa.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
	now  func() time.Time
}

// NewClient builds a client with a bounded HTTP timeout.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "chapa").Logger(),
		now:  time.Now,
	}
}

// TestMode reports whether responses are synthesized.
func (c *Client) TestMode() bool { return c.cfg.TestMode }

// CreateCheckout opens a hosted checkout session.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) CheckoutResult {
	txRef := req.TxRef
	if txRef == "" {
		txRef = GenerateTxRef(c.now())
	}
	currency := req.Currency
	if currency == "" {
		currency = "ETB"
	}
	amount := req.Amount.StringFixed(2)

	if c.cfg.TestMode {
		q := url.Values{}
		q.Set("amount", amount)
		q.Set("currency", currency)
		q.Set("country", "ET")
		q.Set("provider", "test")
		c.log.Info().Str("tx_ref", txRef).Msg("test mode checkout created")
		return CheckoutResult{
			Success:     true,
			TxRef:       txRef,
			CheckoutURL: "https://checkout.chapa.co/test-mode/" + url.PathEscape(txRef) + "?" + q.Encode(),
		}
	}

	title := req.Description
	if title == "" {
		title = "Book Purchase"
	}
	meta := map[string]string{"source": "book_marketplace"}
	for k, v := range req.Meta {
		meta[k] = v
	}
	body := map[string]any{
		"amount":       amount,
		"currency":     currency,
		"tx_ref":       txRef,
		"email":        req.Customer.Email,
		"first_name":   req.Customer.Name,
		"phone_number": req.Customer.PhoneNumber,
		"callback_url": req.CallbackURL,
		"return_url":   req.ReturnURL,
		"customization": map[string]string{
			"title":       title,
			"description": "Purchase books from our marketplace",
		},
		"meta": meta,
	}
	var out struct {
		Status  string `json:"status"`
		Message any    `json:"message"`
		Data    struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"data"`
	}
	status, raw, err := c.do(ctx, http.MethodPost, "/checkout", body, &out)
	if err != nil {
		c.log.Error().Err(err).Str("tx_ref", txRef).Int("status", status).Str("body", raw).Msg("checkout failed")
		return CheckoutResult{TxRef: txRef, Error: "payment provider unavailable", RawError: describe(err, raw), StatusCode: status}
	}
	if out.Data.CheckoutURL == "" {
		return CheckoutResult{TxRef: txRef, Error: "payment provider returned no checkout url", RawError: raw, StatusCode: status}
	}
	c.log.Info().Str("tx_ref", txRef).Msg("checkout created")
	return CheckoutResult{Success: true, TxRef: txRef, CheckoutURL: out.Data.CheckoutURL, StatusCode: status}
}

// VerifyTransaction asks Chapa for the current status of txRef.  The
// returned Status is lower-cased.
func (c *Client) VerifyTransaction(ctx context.Context, txRef string) VerifyResult {
	if c.cfg.TestMode {
		if !IsOwnTxRef(txRef) {
			return VerifyResult{Error: "transaction not found", StatusCode: http.StatusNotFound}
		}
		return VerifyResult{
			Success:   true,
			Status:    StatusSuccess,
			Amount:    "100.00",
			Currency:  "ETB",
			Reference: "CHAP_REF_" + txRef,
		}
	}

	var out struct {
		Data struct {
			Status    string          `json:"status"`
			Amount    json.RawMessage `json:"amount"`
			Currency  string          `json:"currency"`
			Reference string          `json:"reference"`
		} `json:"data"`
	}
	status, raw, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(txRef), nil, &out)
	if err != nil {
		c.log.Error().Err(err).Str("tx_ref", txRef).Int("status", status).Str("body", raw).Msg("verify failed")
		msg := "payment provider unavailable"
		if status == http.StatusNotFound {
			msg = "transaction not found"
		}
		return VerifyResult{Error: msg, RawError: describe(err, raw), StatusCode: status}
	}
	return VerifyResult{
		Success:    true,
		Status:     strings.ToLower(out.Data.Status),
		Amount:     strings.Trim(string(out.Data.Amount), `"`),
		Currency:   out.Data.Currency,
		Reference:  out.Data.Reference,
		StatusCode: status,
	}
}

// Refund requests a refund for txRef.  A zero amount refunds in full.
func (c *Client) Refund(ctx context.Context, txRef string, amount decimal.Decimal, reason string) RefundResult {
	if reason == "" {
		reason = "Customer request"
	}
	if c.cfg.TestMode {
		if !IsOwnTxRef(txRef) {
			return RefundResult{Error: "transaction not found", StatusCode: http.StatusNotFound}
		}
		return RefundResult{Success: true, RefundID: "CHAP_REFUND_" + txRef, Status: StatusSuccess}
	}
	body := map[string]string{"tx_ref": txRef, "reason": reason}
	if amount.IsPositive() {
		body["amount"] = amount.StringFixed(2)
	}
	var out struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	status, raw, err := c.do(ctx, http.MethodPost, "/refund", body, &out)
	if err != nil {
		c.log.Error().Err(err).Str("tx_ref", txRef).Int("status", status).Str("body", raw).Msg("refund failed")
		return RefundResult{Error: "refund rejected by payment provider", RawError: describe(err, raw), StatusCode: status}
	}
	return RefundResult{Success: true, RefundID: out.Data.ID, Status: strings.ToLower(out.Data.Status), StatusCode: status}
}

// FetchExchangeRate returns the live from→to rate.
func (c *Client) FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if c.cfg.TestMode {
		return decimal.Zero, ErrRateUnavailable
	}
	q := url.Values{"from": {from}, "to": {to}}
	var out struct {
		Rate json.Number `json:"rate"`
	}
	if _, raw, err := c.do(ctx, http.MethodGet, "/exchange-rate?"+q.Encode(), nil, &out); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, describe(err, raw))
	}
	rate, err := decimal.NewFromString(out.Rate.String())
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, ErrRateUnavailable
	}
	return rate, nil
}

// do sends a JSON request and decodes a 2xx JSON response into out.  It
// returns the HTTP status (0 on transport errors) and the raw body for
// diagnostics.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, string, error) {
	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return 0, "", err
		}
		rdr = bytes.NewReader(bs)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, string(raw), fmt.Errorf("chapa: unexpected status %d", resp.StatusCode)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, string(raw), fmt.Errorf("chapa: decode response: %w", err)
		}
	}
	return resp.StatusCode, string(raw), nil
}

func describe(err error, raw string) string {
	if raw == "" {
		return err.Error()
	}
	return err.Error() + ": " + raw
}
