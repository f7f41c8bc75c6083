package service

import (
	"context"
	"time"

	"github.com/muluken16/E-liberary/internal/repository"
)

// Access reasons.
const (
	ReasonFreeBook        = "free_book"
	ReasonPurchased       = "purchased"
	ReasonNoPurchaseFound = "no_purchase_found"
)

// AccessDecision is the answer to "may this user read this book".
type AccessDecision struct {
	Allowed      bool
	Reason       string
	PurchaseType string
	ExpiresAt    *time.Time
}

// AccessChecker is read-only.
type AccessChecker struct {
	books     BookStore
	purchases PurchaseStore
	now       func() time.Time
}

// NewAccessChecker returns an AccessChecker using the wall clock.
func NewAccessChecker(books BookStore, purchases PurchaseStore) *AccessChecker {
	return &AccessChecker{books: books, purchases: purchases, now: time.Now}
}

// WithClock overrides the time source.
func (a *AccessChecker) WithClock(now func() time.Time) *AccessChecker {
	a.now = now
	return a
}

// CanAccess allows free books to everyone, then a perpetual grant, then a
// rental that has not yet expired.  userID nil means anonymous.
func (a *AccessChecker) CanAccess(ctx context.Context, userID *uint64, bookID uint64) (AccessDecision, error) {
	book, err := a.books.GetByID(ctx, bookID)
	if err != nil {
		return AccessDecision{}, err
	}
	if book.IsFree() {
		return AccessDecision{Allowed: true, Reason: ReasonFreeBook}, nil
	}
	if userID == nil {
		return AccessDecision{Reason: ReasonNoPurchaseFound}, nil
	}

	up, err := a.purchases.FindPerpetual(ctx, *userID, bookID)
	if err != nil {
		return AccessDecision{}, err
	}
	if up == nil {
		up, err = a.purchases.FindActive(ctx, *userID, bookID, a.now().UTC())
		if err != nil {
			return AccessDecision{}, err
		}
	}
	if up == nil || !up.ActiveAt(a.now()) {
		return AccessDecision{Reason: ReasonNoPurchaseFound}, nil
	}
	return AccessDecision{
		Allowed:      true,
		Reason:       ReasonPurchased,
		PurchaseType: up.PurchaseType,
		ExpiresAt:    up.ExpiresAt,
	}, nil
}

// Library lists the user's entitlements with book titles.
func (a *AccessChecker) Library(ctx context.Context, userID uint64) ([]repository.PurchaseDetail, error) {
	return a.purchases.ListByUser(ctx, userID)
}
