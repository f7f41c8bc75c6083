package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/repository"
)

// CatalogRepo is the full catalog store.
type CatalogRepo interface {
	BookStore
	Search(ctx context.Context, q repository.BookQuery) ([]model.Book, int64, error)
	Create(ctx context.Context, b *model.Book) error
	IncrementViews(ctx context.Context, id uint64) error
}

// CategoryLister returns the category tree.
type CategoryLister interface {
	ListTree(ctx context.Context) ([]model.Category, error)
}

// Catalog serves book browsing and listing.
type Catalog struct {
	books      CatalogRepo
	categories CategoryLister
	rates      RateSource
	log        zerolog.Logger
}

// NewCatalog returns a Catalog that prices in the local currency through rates.
func NewCatalog(books CatalogRepo, categories CategoryLister, rates RateSource, log zerolog.Logger) *Catalog {
	return &Catalog{books: books, categories: categories, rates: rates, log: log.With().Str("component", "catalog").Logger()}
}

// Page size bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// List searches active books.
func (c *Catalog) List(ctx context.Context, q repository.BookQuery) ([]model.Book, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return c.books.Search(ctx, q)
}

// Get returns one book and counts the view.  A failed view update is logged.
func (c *Catalog) Get(ctx context.Context, id uint64) (*model.Book, error) {
	b, err := c.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.books.IncrementViews(ctx, id); err != nil {
		c.log.Warn().Err(err).Uint64("book_id", id).Msg("increment views failed")
	} else {
		b.Views++
	}
	return b, nil
}

// Categories lists the category tree.
func (c *Catalog) Categories(ctx context.Context) ([]model.Category, error) {
	return c.categories.ListTree(ctx)
}

// PriceOption is one way to buy a book.
type PriceOption struct {
	Available  bool   `json:"available"`
	Price      string `json:"price"`
	LocalPrice string `json:"local_price"`
}

// Pricing lists every purchase option with settlement and local prices.
type Pricing struct {
	BookID        uint64      `json:"book_id"`
	Title         string      `json:"title"`
	IsFree        bool        `json:"is_free"`
	Currency      string      `json:"currency"`
	LocalCurrency string      `json:"local_currency"`
	ExchangeRate  string      `json:"exchange_rate"`
	Hard          PriceOption `json:"hard_copy"`
	Soft          PriceOption `json:"soft_copy"`
	RentalPerWeek PriceOption `json:"rental_per_week"`
}

// Pricing computes the purchase options for a book.
func (c *Catalog) Pricing(ctx context.Context, id uint64) (*Pricing, error) {
	b, err := c.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rate := c.rates.Rate(ctx, model.SettlementCurrency, model.LocalCurrency)
	opt := func(ok bool, price decimal.Decimal) PriceOption {
		return PriceOption{
			Available:  ok,
			Price:      price.StringFixed(2),
			LocalPrice: price.Mul(rate).StringFixed(2),
		}
	}
	return &Pricing{
		BookID:        b.ID,
		Title:         b.Title,
		IsFree:        b.IsFree(),
		Currency:      model.SettlementCurrency,
		LocalCurrency: model.LocalCurrency,
		ExchangeRate:  rate.String(),
		Hard:          opt(b.AvailableForHard(), b.HardPrice),
		Soft:          opt(b.AvailableForSoft(), b.SoftPrice),
		RentalPerWeek: opt(b.AvailableForRent(), b.RentalPricePerWeek),
	}, nil
}

// Create lists a new book.  Sellers own what they list.
func (c *Catalog) Create(ctx context.Context, sellerID *uint64, b *model.Book) error {
	b.BookType = strings.ToLower(b.BookType)
	if !model.ValidBookType(b.BookType) {
		return ErrInvalidBookType
	}
	b.SellerID = sellerID
	b.IsActive = true
	if err := c.books.Create(ctx, b); err != nil {
		return err
	}
	c.log.Info().Uint64("book_id", b.ID).Str("title", b.Title).Msg("book listed")
	return nil
}
