package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book formats as stored in books.book_type.
const (
	BookTypeHard = "hard"
	BookTypeSoft = "soft"
	BookTypeBoth = "both"
)

// Book represents a row in the `books` table.  Prices are DECIMAL(10,2)
// columns scanned into decimal.Decimal so that price arithmetic never goes
// through float64.  Availability and IsFree are derived from the stored
// columns and are never persisted.
type Book struct {
	ID                 uint64          // books.id
	Title              string          // books.title
	Author             string          // books.author
	Description        *string         // books.description (nullable)
	CategoryID         *uint64         // books.category_id (nullable)
	SubCategoryID      *uint64         // books.sub_category_id (nullable)
	BookType           string          // books.book_type (hard|soft|both)
	Language           string          // books.language
	GradeLevel         string          // books.grade_level
	HardPrice          decimal.Decimal // books.hard_price
	SoftPrice          decimal.Decimal // books.soft_price
	RentalPricePerWeek decimal.Decimal // books.rental_price_per_week
	IsForSale          bool            // books.is_for_sale
	IsForRent          bool            // books.is_for_rent
	IsActive           bool            // books.is_active
	IsFeatured         bool            // books.is_featured
	Views              uint64          // books.views
	Downloads          uint64          // books.downloads
	SellerID           *uint64         // books.seller_id (nullable, set when a seller lists the book)
	CreatedAt          time.Time       // books.created_at
	UpdatedAt          time.Time       // books.updated_at
}

// IsFree reports whether both the hard and soft copy are priced at zero.
func (b Book) IsFree() bool {
	return b.HardPrice.IsZero() && b.SoftPrice.IsZero()
}

// AvailableForHard: hard copy offered, priced and on sale.
func (b Book) AvailableForHard() bool {
	return (b.BookType == BookTypeHard || b.BookType == BookTypeBoth) &&
		b.HardPrice.IsPositive() && b.IsForSale
}

// AvailableForSoft: soft copy offered, priced and on sale.
func (b Book) AvailableForSoft() bool {
	return (b.BookType == BookTypeSoft || b.BookType == BookTypeBoth) &&
		b.SoftPrice.IsPositive() && b.IsForSale
}

// AvailableForRent: rentals enabled with a positive weekly price.
func (b Book) AvailableForRent() bool {
	return b.IsForRent && b.RentalPricePerWeek.IsPositive()
}

// ValidBookType reports whether s is one of the stored book formats.
func ValidBookType(s string) bool {
	return s == BookTypeHard || s == BookTypeSoft || s == BookTypeBoth
}
