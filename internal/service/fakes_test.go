package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/muluken16/E-liberary/internal/activity"
	"github.com/muluken16/E-liberary/internal/gateway"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/queue"
	"github.com/muluken16/E-liberary/internal/repository"
)

type noTx struct{}

func (noTx) WithTx(_ context.Context, fn func(tx *sql.Tx) error) error { return fn(nil) }

type fakeBooks struct {
	books map[uint64]*model.Book
	views map[uint64]int
}

func newFakeBooks(bs ...model.Book) *fakeBooks {
	f := &fakeBooks{books: map[uint64]*model.Book{}, views: map[uint64]int{}}
	for i := range bs {
		b := bs[i]
		f.books[b.ID] = &b
	}
	return f
}

func (f *fakeBooks) GetByID(_ context.Context, id uint64) (*model.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return nil, repository.ErrBookNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBooks) Search(_ context.Context, q repository.BookQuery) ([]model.Book, int64, error) {
	var out []model.Book
	for _, b := range f.books {
		out = append(out, *b)
	}
	return out, int64(len(out)), nil
}

func (f *fakeBooks) Create(_ context.Context, b *model.Book) error {
	b.ID = uint64(len(f.books) + 1)
	f.books[b.ID] = b
	return nil
}

func (f *fakeBooks) IncrementViews(_ context.Context, id uint64) error {
	f.views[id]++
	return nil
}

type fakePayments struct {
	mu     sync.Mutex
	byRef  map[string]*model.Payment
	nextID uint64
}

func newFakePayments() *fakePayments { return &fakePayments{byRef: map[string]*model.Payment{}} }

func (f *fakePayments) CreateTx(_ context.Context, _ *sql.Tx, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byRef[p.TransactionID]; ok {
		return repository.ErrConflict
	}
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.byRef[p.TransactionID] = &cp
	return nil
}

func (f *fakePayments) GetByTxRef(_ context.Context, ref string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byRef[ref]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) GetByTxRefForUpdateTx(ctx context.Context, _ *sql.Tx, ref string) (*model.Payment, error) {
	return f.GetByTxRef(ctx, ref)
}

func (f *fakePayments) byID(id uint64) *model.Payment {
	for _, p := range f.byRef {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakePayments) TransitionTx(_ context.Context, _ *sql.Tx, id uint64, to string, from []string, ref *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.byID(id)
	if p == nil {
		return false, nil
	}
	for _, s := range from {
		if p.Status == s {
			p.Status = to
			if ref != nil {
				p.GatewayReference = ref
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePayments) AttachCheckout(_ context.Context, id uint64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.byID(id); p != nil {
		p.CheckoutURL = &url
	}
	return nil
}

func (f *fakePayments) ListByUser(_ context.Context, userID uint64) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range f.byRef {
		if p.UserID != nil && *p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePayments) FailPendingBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, p := range f.byRef {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(cutoff) {
			p.Status = model.PaymentStatusFailed
			n++
		}
	}
	return n, nil
}

func (f *fakePayments) LatestCompletedTx(_ context.Context, _ *sql.Tx, userID, bookID uint64, paymentType string, excludeID uint64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *model.Payment
	for _, p := range f.byRef {
		if p.ID == excludeID || p.UserID == nil || *p.UserID != userID || p.BookID != bookID ||
			p.PaymentType != paymentType || p.Status != model.PaymentStatusCompleted {
			continue
		}
		if best == nil || laterPayment(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func laterPayment(a, b *model.Payment) bool {
	if a.RentalEndDate != nil && b.RentalEndDate != nil && !a.RentalEndDate.Equal(*b.RentalEndDate) {
		return a.RentalEndDate.After(*b.RentalEndDate)
	}
	return a.ID > b.ID
}

func (f *fakePayments) status(ref string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byRef[ref].Status
}

type fakePurchases struct {
	mu   sync.Mutex
	rows map[string]model.UserPurchase
}

func newFakePurchases() *fakePurchases { return &fakePurchases{rows: map[string]model.UserPurchase{}} }

func purchaseKey(u, b uint64, t string) string { return fmt.Sprintf("%d/%d/%s", u, b, t) }

func (f *fakePurchases) UpsertTx(_ context.Context, _ *sql.Tx, up model.UserPurchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := purchaseKey(up.UserID, up.BookID, up.PurchaseType)
	if cur, ok := f.rows[k]; ok {
		cur.PaymentID = up.PaymentID
		if up.ExpiresAt != nil {
			cur.ExpiresAt = up.ExpiresAt
		}
		f.rows[k] = cur
		return nil
	}
	up.ID = uint64(len(f.rows) + 1)
	f.rows[k] = up
	return nil
}

func (f *fakePurchases) FindPerpetual(_ context.Context, userID, bookID uint64) (*model.UserPurchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, up := range f.rows {
		if up.UserID == userID && up.BookID == bookID && up.ExpiresAt == nil {
			cp := up
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePurchases) FindActive(_ context.Context, userID, bookID uint64, now time.Time) (*model.UserPurchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, up := range f.rows {
		if up.UserID == userID && up.BookID == bookID && up.ExpiresAt != nil && !up.ExpiresAt.Before(now) {
			cp := up
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePurchases) DeleteByPaymentTx(_ context.Context, _ *sql.Tx, paymentID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, up := range f.rows {
		if up.PaymentID == paymentID {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

func (f *fakePurchases) RepointTx(_ context.Context, _ *sql.Tx, fromPaymentID uint64, to model.UserPurchase) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, up := range f.rows {
		if up.PaymentID == fromPaymentID {
			up.PaymentID = to.PaymentID
			up.ExpiresAt = to.ExpiresAt
			f.rows[k] = up
			n++
		}
	}
	return n, nil
}

func (f *fakePurchases) ListByUser(_ context.Context, userID uint64) ([]repository.PurchaseDetail, error) {
	var out []repository.PurchaseDetail
	for _, up := range f.rows {
		if up.UserID == userID {
			out = append(out, repository.PurchaseDetail{UserPurchase: up})
		}
	}
	return out, nil
}

func (f *fakePurchases) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeEvents struct {
	seen map[string]bool
}

func (f *fakeEvents) RecordTx(_ context.Context, _ *sql.Tx, ev model.PaymentEvent) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	k := ev.TxRef + "|" + ev.Status + "|" + ev.Reference
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

type fixedRates struct{ rate decimal.Decimal }

func (r fixedRates) Rate(context.Context, string, string) decimal.Decimal { return r.rate }

func (r fixedRates) Convert(_ context.Context, amount decimal.Decimal, _, _ string) (decimal.Decimal, decimal.Decimal) {
	return amount.Mul(r.rate).Round(2), r.rate
}

type countingPublisher struct {
	mu     sync.Mutex
	events []queue.PurchaseCompletedEvent
}

func (p *countingPublisher) PublishPurchaseCompleted(_ context.Context, ev queue.PurchaseCompletedEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) TestMode() bool { return m.Called().Bool(0) }

func (m *mockGateway) CreateCheckout(ctx context.Context, req gateway.CheckoutRequest) gateway.CheckoutResult {
	return m.Called(ctx, req).Get(0).(gateway.CheckoutResult)
}

func (m *mockGateway) VerifyTransaction(ctx context.Context, txRef string) gateway.VerifyResult {
	return m.Called(ctx, txRef).Get(0).(gateway.VerifyResult)
}

func (m *mockGateway) Refund(ctx context.Context, txRef string, amount decimal.Decimal, reason string) gateway.RefundResult {
	return m.Called(ctx, txRef, amount, reason).Get(0).(gateway.RefundResult)
}

const testSecret = "whsec"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type ledgerFixture struct {
	ledger    *Ledger
	books     *fakeBooks
	payments  *fakePayments
	purchases *fakePurchases
	events    *fakeEvents
	gw        *mockGateway
	pub       *countingPublisher
	feed      *activity.MemoryStore
}

func newLedgerFixture(books ...model.Book) *ledgerFixture {
	f := &ledgerFixture{
		books:     newFakeBooks(books...),
		payments:  newFakePayments(),
		purchases: newFakePurchases(),
		events:    &fakeEvents{},
		gw:        &mockGateway{},
		pub:       &countingPublisher{},
		feed:      activity.NewMemoryStore(activity.MaxEntries),
	}
	f.ledger = NewLedger(LedgerDeps{
		Tx:        noTx{},
		Books:     f.books,
		Payments:  f.payments,
		Events:    f.events,
		Purchases: f.purchases,
		Grantor:   NewGrantor(f.purchases, zerolog.Nop()),
		Gateway:   f.gw,
		Rates:     fixedRates{rate: decimal.NewFromInt(55)},
		Publisher: f.pub,
		Activity:  f.feed,
		Config:    LedgerConfig{WebhookSecret: testSecret},
		Log:       zerolog.Nop(),
	}).WithClock(func() time.Time { return fixedNow })
	return f
}

// seedPayment stores a payment directly, bypassing Initiate.
func (f *ledgerFixture) seedPayment(p model.Payment) *model.Payment {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = fixedNow
	}
	_ = f.payments.CreateTx(context.Background(), nil, &p)
	return &p
}

func u64(v uint64) *uint64 { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bothBook(id uint64) model.Book {
	return model.Book{
		ID: id, Title: "Oromay", Author: "Baalu Girma", BookType: model.BookTypeBoth,
		HardPrice: dec("20"), SoftPrice: dec("8"), RentalPricePerWeek: dec("5"),
		IsForSale: true, IsForRent: true, IsActive: true,
	}
}

func hardOnlyBook(id uint64) model.Book {
	return model.Book{
		ID: id, Title: "Dertogada", Author: "Yismake Worku", BookType: model.BookTypeHard,
		HardPrice: dec("15"), IsForSale: true, IsActive: true,
	}
}

func freeBook(id uint64) model.Book {
	return model.Book{ID: id, Title: "Public Domain", BookType: model.BookTypeSoft, IsForSale: true, IsActive: true}
}
