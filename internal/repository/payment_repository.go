package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/muluken16/E-liberary/internal/model"
)

// PaymentRepo persists payment attempts.  Rows are never deleted; status
// changes go through TransitionTx so concurrent verify and webhook calls
// cannot move a payment backwards.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, user_id, book_id, payment_type, amount, currency, local_amount, local_currency,
	exchange_rate, payment_method, transaction_id, status, gateway_reference, checkout_url,
	customer_email, customer_name, phone_number, rental_duration_weeks, rental_start_date, rental_end_date,
	created_at, updated_at`

func scanPayment(s scanner) (*model.Payment, error) {
	var p model.Payment
	err := s.Scan(
		&p.ID, &p.UserID, &p.BookID, &p.PaymentType, &p.Amount, &p.Currency, &p.LocalAmount, &p.LocalCurrency,
		&p.ExchangeRate, &p.PaymentMethod, &p.TransactionID, &p.Status, &p.GatewayReference, &p.CheckoutURL,
		&p.CustomerEmail, &p.CustomerName, &p.PhoneNumber, &p.RentalDurationWeeks, &p.RentalStartDate, &p.RentalEndDate,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTx inserts a payment within the caller's transaction and sets its
// ID.  A duplicate transaction_id yields ErrConflict.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	res, err := pick(r.db, tx).ExecContext(ctx, `INSERT INTO payments
		(user_id, book_id, payment_type, amount, currency, local_amount, local_currency, exchange_rate,
		 payment_method, transaction_id, status, customer_email, customer_name, phone_number,
		 rental_duration_weeks, rental_start_date, rental_end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.BookID, p.PaymentType, p.Amount, p.Currency, p.LocalAmount, p.LocalCurrency, p.ExchangeRate,
		p.PaymentMethod, p.TransactionID, p.Status, p.CustomerEmail, p.CustomerName, p.PhoneNumber,
		p.RentalDurationWeeks, p.RentalStartDate, p.RentalEndDate, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByTxRef loads a payment by its transaction reference.
func (r *PaymentRepo) GetByTxRef(ctx context.Context, txRef string) (*model.Payment, error) {
	return r.getByTxRef(ctx, r.db, txRef, false)
}

// GetByTxRefForUpdateTx loads and row-locks a payment inside tx so that a
// webhook and a verify call for the same reference serialize on the row.
func (r *PaymentRepo) GetByTxRefForUpdateTx(ctx context.Context, tx *sql.Tx, txRef string) (*model.Payment, error) {
	return r.getByTxRef(ctx, pick(r.db, tx), txRef, tx != nil)
}

func (r *PaymentRepo) getByTxRef(ctx context.Context, q querier, txRef string, lock bool) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanPayment(q.QueryRowContext(ctx, query, txRef))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// TransitionTx moves a payment to status `to` only if its current status is
// one of `from`.  It reports whether the row changed.  When reference is
// non-nil it is stored as the gateway reference in the same statement.
func (r *PaymentRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, to string, from []string, reference *string) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := []any{to, reference, id}
	for _, f := range from {
		args = append(args, f)
	}
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE payments SET status = ?, gateway_reference = COALESCE(?, gateway_reference)
		 WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestCompletedTx returns the user's most recent completed payment of
// paymentType for bookID, skipping excludeID, or nil when there is none.
// Rentals are ordered by end date so the longest-running one wins.
func (r *PaymentRepo) LatestCompletedTx(ctx context.Context, tx *sql.Tx, userID, bookID uint64, paymentType string, excludeID uint64) (*model.Payment, error) {
	p, err := scanPayment(pick(r.db, tx).QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE user_id = ? AND book_id = ? AND payment_type = ? AND status = 'completed' AND id <> ?
		ORDER BY rental_end_date DESC, id DESC LIMIT 1`, userID, bookID, paymentType, excludeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// AttachCheckout stores the hosted checkout URL returned by the gateway.
func (r *PaymentRepo) AttachCheckout(ctx context.Context, id uint64, checkoutURL string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payments SET checkout_url = ? WHERE id = ?`, checkoutURL, id)
	return err
}

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FailPendingBefore marks every pending payment created before cutoff as
// failed and returns how many rows changed.
func (r *PaymentRepo) FailPendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'failed' WHERE status = 'pending' AND created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
