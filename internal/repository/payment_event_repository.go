package repository

import (
	"context"
	"database/sql"

	"github.com/muluken16/E-liberary/internal/model"
)

// PaymentEventRepo records accepted webhook deliveries.
type PaymentEventRepo struct {
	db *sql.DB
}

// NewPaymentEventRepo returns a new PaymentEventRepo bound to the given database.
func NewPaymentEventRepo(db *sql.DB) *PaymentEventRepo { return &PaymentEventRepo{db: db} }

// RecordTx inserts the event unless an identical (tx_ref, status,
// reference) row already exists.  It reports whether the row is new; a
// false result means the delivery is a replay.
func (r *PaymentEventRepo) RecordTx(ctx context.Context, tx *sql.Tx, ev model.PaymentEvent) (bool, error) {
	res, err := pick(r.db, tx).ExecContext(ctx,
		`INSERT IGNORE INTO payment_events (tx_ref, status, reference, payload) VALUES (?, ?, ?, ?)`,
		ev.TxRef, ev.Status, ev.Reference, ev.Payload)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
