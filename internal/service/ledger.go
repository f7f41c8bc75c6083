package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/muluken16/E-liberary/internal/activity"
	"github.com/muluken16/E-liberary/internal/database"
	"github.com/muluken16/E-liberary/internal/gateway"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/queue"
	"github.com/muluken16/E-liberary/internal/repository"
)

// Webhook outcomes reported back to the provider.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
)

// DefaultPaymentMethod is used when the client does not choose one.
const DefaultPaymentMethod = "chapa"

// allowedFrom lists, per target status, the statuses a payment may leave.
var allowedFrom = map[string][]string{
	model.PaymentStatusCompleted: {model.PaymentStatusPending, model.PaymentStatusFailed},
	model.PaymentStatusFailed:    {model.PaymentStatusPending},
	model.PaymentStatusRefunded:  {model.PaymentStatusCompleted},
}

// MapGatewayStatus translates a provider status into a ledger status.  ok is
// false for statuses that leave the payment untouched (pending, unknown).
func MapGatewayStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case gateway.StatusSuccess:
		return model.PaymentStatusCompleted, true
	case gateway.StatusFailed, gateway.StatusCancelled, gateway.StatusTimeout:
		return model.PaymentStatusFailed, true
	default:
		return "", false
	}
}

// LedgerConfig carries the provider URLs and webhook secret.
type LedgerConfig struct {
	WebhookSecret string
	CallbackURL   string
	ReturnURL     string
}

// LedgerDeps groups the collaborators of a Ledger.
type LedgerDeps struct {
	Tx        database.TxRunner
	Books     BookStore
	Payments  PaymentStore
	Events    EventStore
	Purchases PurchaseStore
	Grantor   *Grantor
	Gateway   PaymentGateway
	Rates     RateSource
	Publisher queue.Publisher
	Activity  activity.Store
	Config    LedgerConfig
	Log       zerolog.Logger
}

// Ledger drives payments from creation to a terminal status.
type Ledger struct {
	LedgerDeps
	log zerolog.Logger
	now func() time.Time
}

// NewLedger builds a Ledger.  Nil Publisher and Activity fall back to no-op
// and in-memory implementations.
func NewLedger(d LedgerDeps) *Ledger {
	if d.Publisher == nil {
		d.Publisher = queue.NopPublisher{}
	}
	if d.Activity == nil {
		d.Activity = activity.NewMemoryStore(activity.MaxEntries)
	}
	return &Ledger{LedgerDeps: d, log: d.Log.With().Str("component", "ledger").Logger(), now: time.Now}
}

// WithClock overrides the time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// InitiateInput is a request to pay for one book.
type InitiateInput struct {
	BookID      uint64
	PaymentType string
	Method      string
	RentalWeeks int
	UserID      *uint64
	Customer    gateway.Customer
	Description string
	// Demo completes the payment synchronously without a checkout page.
	Demo bool
}

// InitiateResult is the created payment plus, on the gateway path, the
// hosted checkout URL.
type InitiateResult struct {
	Payment     *model.Payment
	CheckoutURL string
}

// Quote returns the settlement price for buying book as paymentType, and
// the normalised rental weeks (0 for purchases).
func Quote(book *model.Book, paymentType string, weeks int) (decimal.Decimal, int, error) {
	switch paymentType {
	case model.PaymentTypePurchaseHard:
		if !book.AvailableForHard() {
			return decimal.Zero, 0, ErrHardNotAvailable
		}
		return book.HardPrice, 0, nil
	case model.PaymentTypePurchaseSoft:
		if !book.AvailableForSoft() {
			return decimal.Zero, 0, ErrSoftNotAvailable
		}
		return book.SoftPrice, 0, nil
	case model.PaymentTypeRental:
		if !book.AvailableForRent() {
			return decimal.Zero, 0, ErrRentalNotAvailable
		}
		if weeks < 1 {
			weeks = 1
		}
		if weeks > model.MaxRentalWeeks {
			return decimal.Zero, 0, ErrRentalTooLong
		}
		return book.RentalPricePerWeek.Mul(decimal.NewFromInt(int64(weeks))), weeks, nil
	default:
		return decimal.Zero, 0, ErrInvalidPaymentType
	}
}

// Initiate prices and records a payment.  On the gateway path the payment
// stays pending until verified; a provider failure marks it failed and
// returns a *GatewayError.  The demo path completes and grants in one
// transaction.
func (l *Ledger) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if in.Demo && !l.Gateway.TestMode() {
		return nil, ErrDemoDisabled
	}
	method := in.Method
	if method == "" {
		method = DefaultPaymentMethod
	}
	if !model.ValidPaymentMethod(method) {
		return nil, ErrInvalidMethod
	}
	book, err := l.Books.GetByID(ctx, in.BookID)
	if err != nil {
		return nil, err
	}
	amount, weeks, err := Quote(book, in.PaymentType, in.RentalWeeks)
	if err != nil {
		return nil, err
	}
	local, rate := l.Rates.Convert(ctx, amount, model.SettlementCurrency, model.LocalCurrency)

	now := l.now().UTC()
	p := &model.Payment{
		UserID:        in.UserID,
		BookID:        book.ID,
		PaymentType:   in.PaymentType,
		Amount:        amount,
		Currency:      model.SettlementCurrency,
		LocalAmount:   local,
		LocalCurrency: model.LocalCurrency,
		ExchangeRate:  rate,
		PaymentMethod: method,
		TransactionID: gateway.GenerateTxRef(now),
		Status:        model.PaymentStatusPending,
		CustomerEmail: in.Customer.Email,
		CustomerName:  in.Customer.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Customer.PhoneNumber != "" {
		phone := in.Customer.PhoneNumber
		p.PhoneNumber = &phone
	}
	if p.IsRental() {
		end := now.AddDate(0, 0, 7*weeks)
		p.RentalDurationWeeks = &weeks
		p.RentalStartDate = &now
		p.RentalEndDate = &end
	}
	if in.Demo {
		ref := "DEMO_" + p.TransactionID
		p.Status = model.PaymentStatusCompleted
		p.GatewayReference = &ref
	}

	err = l.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		if err := l.Payments.CreateTx(ctx, tx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if in.Demo {
			if _, err := l.Grantor.Grant(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("tx_ref", p.TransactionID).Str("payment_type", p.PaymentType).
		Str("amount", amount.StringFixed(2)).Bool("demo", in.Demo).Msg("payment created")

	if in.Demo {
		l.afterCompleted(ctx, p, book)
		return &InitiateResult{Payment: p}, nil
	}

	description := in.Description
	if description == "" {
		description = book.Title
	}
	res := l.Gateway.CreateCheckout(ctx, gateway.CheckoutRequest{
		TxRef:       p.TransactionID,
		Amount:      local,
		Currency:    model.LocalCurrency,
		Description: description,
		ReturnURL:   l.Config.ReturnURL,
		CallbackURL: l.Config.CallbackURL,
		Customer:    in.Customer,
		Meta: map[string]string{
			"payment_id":   strconv.FormatUint(p.ID, 10),
			"book_id":      strconv.FormatUint(book.ID, 10),
			"payment_type": p.PaymentType,
		},
	})
	if !res.Success {
		if _, err := l.Payments.TransitionTx(ctx, nil, p.ID, model.PaymentStatusFailed, allowedFrom[model.PaymentStatusFailed], nil); err != nil {
			l.log.Error().Err(err).Str("tx_ref", p.TransactionID).Msg("mark failed after checkout error")
		}
		p.Status = model.PaymentStatusFailed
		l.log.Warn().Str("tx_ref", p.TransactionID).Str("detail", res.RawError).Msg("checkout rejected")
		return &InitiateResult{Payment: p}, &GatewayError{Message: res.Error, StatusCode: res.StatusCode}
	}
	if err := l.Payments.AttachCheckout(ctx, p.ID, res.CheckoutURL); err != nil {
		return nil, fmt.Errorf("attach checkout: %w", err)
	}
	url := res.CheckoutURL
	p.CheckoutURL = &url
	return &InitiateResult{Payment: p, CheckoutURL: url}, nil
}

// VerifyOutcome is what Verify reports to the caller.
type VerifyOutcome struct {
	Payment   *model.Payment
	Status    string
	Amount    string
	Currency  string
	Reference string
}

// Verify asks the provider about txRef and applies the answer.  A payment
// that is already completed is answered from the ledger.
func (l *Ledger) Verify(ctx context.Context, txRef string) (*VerifyOutcome, error) {
	p, err := l.Payments.GetByTxRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PaymentStatusCompleted {
		return outcomeFromLedger(p), nil
	}

	res := l.Gateway.VerifyTransaction(ctx, txRef)
	if !res.Success {
		l.log.Warn().Str("tx_ref", txRef).Str("detail", res.RawError).Msg("verification failed")
		return nil, &GatewayError{Message: res.Error, StatusCode: res.StatusCode}
	}
	updated, _, err := l.apply(ctx, txRef, res.Status, res.Reference, nil)
	if err != nil {
		return nil, err
	}
	return &VerifyOutcome{
		Payment:   updated,
		Status:    updated.Status,
		Amount:    res.Amount,
		Currency:  res.Currency,
		Reference: res.Reference,
	}, nil
}

func outcomeFromLedger(p *model.Payment) *VerifyOutcome {
	ref := ""
	if p.GatewayReference != nil {
		ref = *p.GatewayReference
	}
	return &VerifyOutcome{
		Payment:   p,
		Status:    p.Status,
		Amount:    p.LocalAmount.StringFixed(2),
		Currency:  p.LocalCurrency,
		Reference: ref,
	}
}

// ReceiveWebhook authenticates and applies a provider notification.  It
// returns WebhookIgnored for bad signatures and unknown references without
// touching the ledger.  Replayed events are processed once.
func (l *Ledger) ReceiveWebhook(ctx context.Context, payload map[string]string, signature string) (string, error) {
	txRef := payload["tx_ref"]
	if !gateway.VerifyWebhookSignature(payload, signature, l.Config.WebhookSecret) {
		l.log.Warn().Str("tx_ref", txRef).Msg("webhook signature mismatch")
		return WebhookIgnored, nil
	}
	if txRef == "" {
		return WebhookIgnored, nil
	}
	if _, err := l.Payments.GetByTxRef(ctx, txRef); err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			l.log.Warn().Str("tx_ref", txRef).Msg("webhook for unknown payment")
			return WebhookIgnored, nil
		}
		return WebhookIgnored, err
	}

	status := strings.ToLower(payload["status"])
	raw, _ := json.Marshal(payload)
	ev := &model.PaymentEvent{
		TxRef:      txRef,
		Status:     status,
		Reference:  payload["reference"],
		Payload:    string(raw),
		ReceivedAt: l.now().UTC(),
	}
	if _, _, err := l.apply(ctx, txRef, status, payload["reference"], ev); err != nil {
		return WebhookIgnored, err
	}
	return WebhookProcessed, nil
}

// apply moves the payment to the ledger status mapped from gwStatus.  When
// ev is non-nil it is recorded first and a replay stops there.  changed
// reports whether the stored status moved.
func (l *Ledger) apply(ctx context.Context, txRef, gwStatus, reference string, ev *model.PaymentEvent) (*model.Payment, bool, error) {
	target, mapped := MapGatewayStatus(gwStatus)
	var ref *string
	if reference != "" {
		ref = &reference
	}

	var p *model.Payment
	changed := false
	err := l.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = l.Payments.GetByTxRefForUpdateTx(ctx, tx, txRef)
		if err != nil {
			return err
		}
		if ev != nil {
			fresh, err := l.Events.RecordTx(ctx, tx, *ev)
			if err != nil {
				return fmt.Errorf("record event: %w", err)
			}
			if !fresh {
				l.log.Info().Str("tx_ref", txRef).Str("status", ev.Status).Msg("duplicate webhook event")
				return nil
			}
		}
		if !mapped {
			return nil
		}
		changed, err = l.Payments.TransitionTx(ctx, tx, p.ID, target, allowedFrom[target], ref)
		if err != nil {
			return fmt.Errorf("transition: %w", err)
		}
		if !changed {
			return nil
		}
		p.Status = target
		if ref != nil {
			p.GatewayReference = ref
		}
		if target == model.PaymentStatusCompleted {
			if _, err := l.Grantor.Grant(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		l.log.Info().Str("tx_ref", txRef).Str("status", p.Status).Msg("payment status changed")
		if p.Status == model.PaymentStatusCompleted {
			l.afterCompleted(ctx, p, nil)
		}
	}
	return p, changed, nil
}

// Refund returns the money for a completed payment and revokes the
// entitlement it granted.  When another completed payment still covers the
// same book and kind, the entitlement is moved onto it instead.
func (l *Ledger) Refund(ctx context.Context, txRef, reason string) (*model.Payment, error) {
	p, err := l.Payments.GetByTxRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentStatusCompleted {
		return nil, ErrNotRefundable
	}
	res := l.Gateway.Refund(ctx, txRef, decimal.Zero, reason)
	if !res.Success {
		l.log.Warn().Str("tx_ref", txRef).Str("detail", res.RawError).Msg("refund rejected")
		return nil, &GatewayError{Message: res.Error, StatusCode: res.StatusCode}
	}
	err = l.Tx.WithTx(ctx, func(tx *sql.Tx) error {
		changed, err := l.Payments.TransitionTx(ctx, tx, p.ID, model.PaymentStatusRefunded, allowedFrom[model.PaymentStatusRefunded], nil)
		if err != nil {
			return err
		}
		if !changed {
			return ErrNotRefundable
		}
		return l.revokeTx(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatusRefunded
	l.record(ctx, p, "refunded", "payment", p.ID)
	l.log.Info().Str("tx_ref", txRef).Str("refund_id", res.RefundID).Msg("payment refunded")
	return p, nil
}

// revokeTx withdraws what p granted.  Rows that p no longer backs are left
// alone.
func (l *Ledger) revokeTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	if p.UserID == nil {
		return nil
	}
	other, err := l.Payments.LatestCompletedTx(ctx, tx, *p.UserID, p.BookID, p.PaymentType, p.ID)
	if err != nil {
		return fmt.Errorf("find remaining payment: %w", err)
	}
	if other == nil {
		_, err = l.Purchases.DeleteByPaymentTx(ctx, tx, p.ID)
		return err
	}
	to := model.UserPurchase{PaymentID: other.ID}
	if other.IsRental() {
		if other.RentalEndDate == nil {
			return ErrRentalWithoutEnd
		}
		end := other.RentalEndDate.UTC()
		to.ExpiresAt = &end
	}
	if _, err := l.Purchases.RepointTx(ctx, tx, p.ID, to); err != nil {
		return fmt.Errorf("repoint entitlement: %w", err)
	}
	l.log.Info().Str("tx_ref", p.TransactionID).Str("kept_by", other.TransactionID).Msg("entitlement kept by earlier payment")
	return nil
}

// ExpireStale fails pending payments created more than olderThan ago.
func (l *Ledger) ExpireStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := l.now().UTC().Add(-olderThan)
	n, err := l.Payments.FailPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending: %w", err)
	}
	if n > 0 {
		l.log.Info().Int64("count", n).Time("cutoff", cutoff).Msg("stale payments failed")
	}
	return n, nil
}

// History lists the user's payments.
func (l *Ledger) History(ctx context.Context, userID uint64) ([]model.Payment, error) {
	return l.Payments.ListByUser(ctx, userID)
}

// afterCompleted publishes the purchase event and records activity.  Errors
// are logged only.
func (l *Ledger) afterCompleted(ctx context.Context, p *model.Payment, book *model.Book) {
	if book == nil {
		if b, err := l.Books.GetByID(ctx, p.BookID); err == nil {
			book = b
		}
	}
	ev := queue.PurchaseCompletedEvent{
		PaymentID:     p.ID,
		TransactionID: p.TransactionID,
		UserID:        p.UserID,
		UserEmail:     p.CustomerEmail,
		BookID:        p.BookID,
		PaymentType:   p.PaymentType,
		PurchaseType:  p.PurchaseType(),
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		CompletedAt:   l.now().UTC(),
	}
	if book != nil {
		ev.BookTitle = book.Title
	}
	if p.IsRental() {
		ev.ExpiresAt = p.RentalEndDate
	}
	if err := l.Publisher.PublishPurchaseCompleted(ctx, ev); err != nil {
		l.log.Warn().Err(err).Str("tx_ref", p.TransactionID).Msg("publish purchase event failed")
	}
	l.record(ctx, p, "completed", "payment", p.ID)
}

func (l *Ledger) record(ctx context.Context, p *model.Payment, action, kind string, id uint64) {
	e := activity.NewEntry(p.CustomerEmail, action, kind, id, l.now())
	if err := l.Activity.Add(ctx, e); err != nil {
		l.log.Warn().Err(err).Msg("activity add failed")
	}
}
