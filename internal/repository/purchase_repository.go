package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/muluken16/E-liberary/internal/model"
)

// PurchaseRepo stores entitlements in `user_purchases`.  The unique key on
// (user_id, book_id, purchase_type) makes UpsertTx safe under concurrent
// grants without application-level locking.
type PurchaseRepo struct {
	db *sql.DB
}

// NewPurchaseRepo returns a new PurchaseRepo bound to the given database.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

const purchaseColumns = `id, user_id, book_id, payment_id, purchase_type, purchased_at, expires_at, updated_at`

func scanPurchase(s scanner) (*model.UserPurchase, error) {
	var up model.UserPurchase
	if err := s.Scan(&up.ID, &up.UserID, &up.BookID, &up.PaymentID, &up.PurchaseType,
		&up.PurchasedAt, &up.ExpiresAt, &up.UpdatedAt); err != nil {
		return nil, err
	}
	return &up, nil
}

// UpsertTx creates the entitlement or points the existing one at the new
// payment.  A nil ExpiresAt keeps whatever expiry is stored.
func (r *PurchaseRepo) UpsertTx(ctx context.Context, tx *sql.Tx, up model.UserPurchase) error {
	var expires any
	if up.ExpiresAt != nil {
		expires = up.ExpiresAt.UTC()
	}
	_, err := pick(r.db, tx).ExecContext(ctx, `INSERT INTO user_purchases
		(user_id, book_id, payment_id, purchase_type, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		 payment_id = VALUES(payment_id),
		 expires_at = COALESCE(VALUES(expires_at), expires_at)`,
		up.UserID, up.BookID, up.PaymentID, up.PurchaseType, expires)
	return err
}

// FindPerpetual returns a non-expiring entitlement for (user, book), or nil.
func (r *PurchaseRepo) FindPerpetual(ctx context.Context, userID, bookID uint64) (*model.UserPurchase, error) {
	return r.findOne(ctx, `SELECT `+purchaseColumns+` FROM user_purchases
		WHERE user_id = ? AND book_id = ? AND expires_at IS NULL
		ORDER BY purchase_type LIMIT 1`, userID, bookID)
}

// FindActive returns the entitlement with the latest expiry that is still
// valid at now, or nil.
func (r *PurchaseRepo) FindActive(ctx context.Context, userID, bookID uint64, now time.Time) (*model.UserPurchase, error) {
	return r.findOne(ctx, `SELECT `+purchaseColumns+` FROM user_purchases
		WHERE user_id = ? AND book_id = ? AND expires_at >= ?
		ORDER BY expires_at DESC LIMIT 1`, userID, bookID, now.UTC())
}

func (r *PurchaseRepo) findOne(ctx context.Context, query string, args ...any) (*model.UserPurchase, error) {
	up, err := scanPurchase(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return up, nil
}

// DeleteByPaymentTx removes the entitlements last granted by paymentID.
func (r *PurchaseRepo) DeleteByPaymentTx(ctx context.Context, tx *sql.Tx, paymentID uint64) (int64, error) {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM user_purchases WHERE payment_id = ?`, paymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RepointTx moves the entitlements last granted by fromPaymentID onto
// to.PaymentID and replaces their expiry with to.ExpiresAt.
func (r *PurchaseRepo) RepointTx(ctx context.Context, tx *sql.Tx, fromPaymentID uint64, to model.UserPurchase) (int64, error) {
	var expires any
	if to.ExpiresAt != nil {
		expires = to.ExpiresAt.UTC()
	}
	res, err := pick(r.db, tx).ExecContext(ctx,
		`UPDATE user_purchases SET payment_id = ?, expires_at = ? WHERE payment_id = ?`,
		to.PaymentID, expires, fromPaymentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurchaseDetail is an entitlement joined with its book for "my library".
type PurchaseDetail struct {
	model.UserPurchase
	BookTitle  string
	BookAuthor string
}

// ListByUser returns all of a user's entitlements, newest first.
func (r *PurchaseRepo) ListByUser(ctx context.Context, userID uint64) ([]PurchaseDetail, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT up.id, up.user_id, up.book_id, up.payment_id, up.purchase_type,
		up.purchased_at, up.expires_at, up.updated_at, b.title, b.author
		FROM user_purchases up JOIN books b ON b.id = up.book_id
		WHERE up.user_id = ? ORDER BY up.purchased_at DESC, up.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PurchaseDetail{}
	for rows.Next() {
		var d PurchaseDetail
		if err := rows.Scan(&d.ID, &d.UserID, &d.BookID, &d.PaymentID, &d.PurchaseType,
			&d.PurchasedAt, &d.ExpiresAt, &d.UpdatedAt, &d.BookTitle, &d.BookAuthor); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
