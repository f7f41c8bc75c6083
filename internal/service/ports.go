// Package service holds the marketplace business rules: pricing and payment
// lifecycle, entitlement grants, access checks, the catalog and quiz
// delivery.  Storage and the payment provider are reached through the small
// interfaces below so tests can substitute fakes.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/muluken16/E-liberary/internal/gateway"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/repository"
)

// BookStore is the read side of the catalog used by payments and access.
type BookStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Book, error)
}

// PaymentStore persists payment attempts.
type PaymentStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error
	GetByTxRef(ctx context.Context, txRef string) (*model.Payment, error)
	GetByTxRefForUpdateTx(ctx context.Context, tx *sql.Tx, txRef string) (*model.Payment, error)
	TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, to string, from []string, reference *string) (bool, error)
	AttachCheckout(ctx context.Context, id uint64, checkoutURL string) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error)
	FailPendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	LatestCompletedTx(ctx context.Context, tx *sql.Tx, userID, bookID uint64, paymentType string, excludeID uint64) (*model.Payment, error)
}

// PurchaseStore persists entitlements.
type PurchaseStore interface {
	UpsertTx(ctx context.Context, tx *sql.Tx, up model.UserPurchase) error
	FindPerpetual(ctx context.Context, userID, bookID uint64) (*model.UserPurchase, error)
	FindActive(ctx context.Context, userID, bookID uint64, now time.Time) (*model.UserPurchase, error)
	DeleteByPaymentTx(ctx context.Context, tx *sql.Tx, paymentID uint64) (int64, error)
	RepointTx(ctx context.Context, tx *sql.Tx, fromPaymentID uint64, to model.UserPurchase) (int64, error)
	ListByUser(ctx context.Context, userID uint64) ([]repository.PurchaseDetail, error)
}

// EventStore records webhook deliveries; RecordTx reports false for a replay.
type EventStore interface {
	RecordTx(ctx context.Context, tx *sql.Tx, ev model.PaymentEvent) (bool, error)
}

// PaymentGateway is the provider adapter (gateway.Client).
type PaymentGateway interface {
	TestMode() bool
	CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) gateway.CheckoutResult
	VerifyTransaction(ctx context.Context, txRef string) gateway.VerifyResult
	Refund(ctx context.Context, txRef string, amount decimal.Decimal, reason string) gateway.RefundResult
}

// RateSource converts settlement prices into the local currency
// (exchange.Service).
type RateSource interface {
	Rate(ctx context.Context, from, to string) decimal.Decimal
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal)
}
