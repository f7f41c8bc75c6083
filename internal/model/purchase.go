package model

import "time"

// Entitlement kinds stored in user_purchases.purchase_type.  Rentals get
// their own kind so expiring access never overwrites a permanent purchase.
const (
	PurchaseTypeHard   = "hard"
	PurchaseTypeSoft   = "soft"
	PurchaseTypeRental = "rental"
)

// UserPurchase is a grant of access to a book, unique per
// (user_id, book_id, purchase_type).  PaymentID points at the payment that
// most recently granted or renewed it.  ExpiresAt is nil for perpetual
// access and equals the rental end date otherwise.
type UserPurchase struct {
	ID           uint64     // user_purchases.id
	UserID       uint64     // user_purchases.user_id
	BookID       uint64     // user_purchases.book_id
	PaymentID    uint64     // user_purchases.payment_id
	PurchaseType string     // user_purchases.purchase_type
	PurchasedAt  time.Time  // user_purchases.purchased_at
	ExpiresAt    *time.Time // user_purchases.expires_at (nullable)
	UpdatedAt    time.Time  // user_purchases.updated_at
}

// ActiveAt reports whether the grant is usable at t.  The boundary is
// inclusive: access expires after ExpiresAt, not at it.
func (u UserPurchase) ActiveAt(t time.Time) bool {
	return u.ExpiresAt == nil || !u.ExpiresAt.Before(t)
}
