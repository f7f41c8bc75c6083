package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/muluken16/E-liberary/internal/model"
)

// Grantor turns completed payments into entitlements.
type Grantor struct {
	purchases PurchaseStore
	log       zerolog.Logger
}

// NewGrantor returns a Grantor writing to purchases.
func NewGrantor(purchases PurchaseStore, log zerolog.Logger) *Grantor {
	return &Grantor{purchases: purchases, log: log.With().Str("component", "grantor").Logger()}
}

// Grant upserts the UserPurchase for p inside tx.  Granting the same payment
// again leaves a single row.  Anonymous payments are skipped and return nil.
func (g *Grantor) Grant(ctx context.Context, tx *sql.Tx, p *model.Payment) (*model.UserPurchase, error) {
	if p.Status != model.PaymentStatusCompleted {
		return nil, ErrPaymentNotCompleted
	}
	if p.UserID == nil {
		g.log.Warn().Str("tx_ref", p.TransactionID).Msg("completed payment has no user, nothing granted")
		return nil, nil
	}
	up := model.UserPurchase{
		UserID:       *p.UserID,
		BookID:       p.BookID,
		PaymentID:    p.ID,
		PurchaseType: p.PurchaseType(),
	}
	if p.IsRental() {
		if p.RentalEndDate == nil {
			return nil, ErrRentalWithoutEnd
		}
		end := p.RentalEndDate.UTC()
		up.ExpiresAt = &end
	}
	if err := g.purchases.UpsertTx(ctx, tx, up); err != nil {
		return nil, fmt.Errorf("grant %s: %w", p.TransactionID, err)
	}
	g.log.Info().Str("tx_ref", p.TransactionID).Uint64("user_id", up.UserID).
		Uint64("book_id", up.BookID).Str("purchase_type", up.PurchaseType).Msg("entitlement granted")
	return &up, nil
}
