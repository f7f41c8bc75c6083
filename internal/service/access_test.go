package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/repository"
)

func TestCanAccessFreeBookAnonymously(t *testing.T) {
	a := NewAccessChecker(newFakeBooks(freeBook(1)), newFakePurchases())
	d, err := a.CanAccess(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, ReasonFreeBook, d.Reason)
}

func TestCanAccessAnonymousPaidBookDenied(t *testing.T) {
	a := NewAccessChecker(newFakeBooks(bothBook(1)), newFakePurchases())
	d, err := a.CanAccess(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNoPurchaseFound, d.Reason)
}

func TestCanAccessUnknownBook(t *testing.T) {
	a := NewAccessChecker(newFakeBooks(), newFakePurchases())
	_, err := a.CanAccess(context.Background(), u64(1), 42)
	assert.ErrorIs(t, err, repository.ErrBookNotFound)
}

func TestCanAccessPerpetualPurchase(t *testing.T) {
	store := newFakePurchases()
	_ = store.UpsertTx(context.Background(), nil, model.UserPurchase{UserID: 1, BookID: 1, PaymentID: 1, PurchaseType: model.PurchaseTypeSoft})
	a := NewAccessChecker(newFakeBooks(bothBook(1)), store)

	d, err := a.CanAccess(context.Background(), u64(1), 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, model.PurchaseTypeSoft, d.PurchaseType)
	assert.Nil(t, d.ExpiresAt)

	d, err = a.CanAccess(context.Background(), u64(2), 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCanAccessRentalExpiryBoundary(t *testing.T) {
	end := fixedNow.AddDate(0, 0, 14)
	store := newFakePurchases()
	_ = store.UpsertTx(context.Background(), nil, model.UserPurchase{UserID: 1, BookID: 1, PaymentID: 1,
		PurchaseType: model.PurchaseTypeRental, ExpiresAt: &end})

	before := NewAccessChecker(newFakeBooks(bothBook(1)), store).WithClock(func() time.Time { return end.Add(-time.Second) })
	d, err := before.CanAccess(context.Background(), u64(1), 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, model.PurchaseTypeRental, d.PurchaseType)
	require.NotNil(t, d.ExpiresAt)
	assert.Equal(t, end, *d.ExpiresAt)

	after := NewAccessChecker(newFakeBooks(bothBook(1)), store).WithClock(func() time.Time { return end.Add(time.Second) })
	d, err = after.CanAccess(context.Background(), u64(1), 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNoPurchaseFound, d.Reason)
}

func TestIsFreeOnlyWhenBothPricesZero(t *testing.T) {
	b := freeBook(1)
	assert.True(t, b.IsFree())
	b.RentalPricePerWeek = dec("3")
	assert.True(t, b.IsFree())
	b.SoftPrice = dec("0.01")
	assert.False(t, b.IsFree())
}
