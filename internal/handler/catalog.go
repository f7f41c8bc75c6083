// Catalog endpoints: public browsing plus book listing for sellers.

package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/muluken16/E-liberary/internal/middleware"
	"github.com/muluken16/E-liberary/internal/model"
	"github.com/muluken16/E-liberary/internal/repository"
	"github.com/muluken16/E-liberary/internal/service"
	"github.com/muluken16/E-liberary/internal/validation"
)

// CatalogService is the part of service.Catalog the handlers use.
type CatalogService interface {
	List(ctx context.Context, q repository.BookQuery) ([]model.Book, int64, error)
	Get(ctx context.Context, id uint64) (*model.Book, error)
	Categories(ctx context.Context) ([]model.Category, error)
	Pricing(ctx context.Context, id uint64) (*service.Pricing, error)
	Create(ctx context.Context, sellerID *uint64, b *model.Book) error
}

type CatalogHandler struct {
	Catalog CatalogService
	Log     zerolog.Logger
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(c CatalogService, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{Catalog: c, Log: log}
}

// BookDTO is a book as exposed to clients.  Prices are decimal strings.
type BookDTO struct {
	ID                 uint64    `json:"id"`
	Title              string    `json:"title"`
	Author             string    `json:"author"`
	Description        *string   `json:"description,omitempty"`
	CategoryID         *uint64   `json:"category_id,omitempty"`
	SubCategoryID      *uint64   `json:"sub_category_id,omitempty"`
	BookType           string    `json:"book_type"`
	Language           string    `json:"language"`
	GradeLevel         string    `json:"grade_level,omitempty"`
	HardPrice          string    `json:"hard_price"`
	SoftPrice          string    `json:"soft_price"`
	RentalPricePerWeek string    `json:"rental_price_per_week"`
	IsForSale          bool      `json:"is_for_sale"`
	IsForRent          bool      `json:"is_for_rent"`
	IsFree             bool      `json:"is_free"`
	IsFeatured         bool      `json:"is_featured"`
	Views              uint64    `json:"views"`
	Downloads          uint64    `json:"downloads"`
	CreatedAt          time.Time `json:"created_at"`
}

func toBookDTO(b model.Book) BookDTO {
	return BookDTO{
		ID: b.ID, Title: b.Title, Author: b.Author, Description: b.Description,
		CategoryID: b.CategoryID, SubCategoryID: b.SubCategoryID,
		BookType: b.BookType, Language: b.Language, GradeLevel: b.GradeLevel,
		HardPrice:          b.HardPrice.StringFixed(2),
		SoftPrice:          b.SoftPrice.StringFixed(2),
		RentalPricePerWeek: b.RentalPricePerWeek.StringFixed(2),
		IsForSale:          b.IsForSale, IsForRent: b.IsForRent, IsFree: b.IsFree(),
		IsFeatured: b.IsFeatured, Views: b.Views, Downloads: b.Downloads, CreatedAt: b.CreatedAt,
	}
}

type subCategoryDTO struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}
type categoryDTO struct {
	ID            uint64           `json:"id"`
	Name          string           `json:"name"`
	ImagePath     *string          `json:"image_path,omitempty"`
	SubCategories []subCategoryDTO `json:"sub_categories"`
}

// ListBooks serves GET /api/books with filters and pagination.
func (h *CatalogHandler) ListBooks(c echo.Context) error {
	q := repository.BookQuery{
		BookType:     strings.ToLower(strings.TrimSpace(c.QueryParam("book_type"))),
		AvailableFor: strings.ToLower(strings.TrimSpace(c.QueryParam("available_for"))),
		Language:     strings.TrimSpace(c.QueryParam("language")),
		Search:       strings.TrimSpace(c.QueryParam("search")),
		FeaturedOnly: c.QueryParam("featured") == "true",
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", service.DefaultPageSize),
	}
	if q.BookType != "" && !model.ValidBookType(q.BookType) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book_type"})
	}
	if s := c.QueryParam("category"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category"})
		}
		q.CategoryID = id
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, total, err := h.Catalog.List(ctx, q)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	items := make([]BookDTO, 0, len(books))
	for _, b := range books {
		items = append(items, toBookDTO(b))
	}
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = service.DefaultPageSize
	}
	if size > service.MaxPageSize {
		size = service.MaxPageSize
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total, "page": page, "page_size": size})
}

// GetBook serves GET /api/books/:id and counts the view.
func (h *CatalogHandler) GetBook(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	b, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toBookDTO(*b))
}

// Pricing serves GET /api/books/:id/pricing.
func (h *CatalogHandler) Pricing(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	p, err := h.Catalog.Pricing(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Categories serves GET /api/categories.
func (h *CatalogHandler) Categories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	cats, err := h.Catalog.Categories(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]categoryDTO, 0, len(cats))
	for _, cat := range cats {
		d := categoryDTO{ID: cat.ID, Name: cat.Name, ImagePath: cat.ImagePath, SubCategories: []subCategoryDTO{}}
		for _, s := range cat.SubCategories {
			d.SubCategories = append(d.SubCategories, subCategoryDTO{ID: s.ID, Name: s.Name})
		}
		out = append(out, d)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

type createBookReq struct {
	Title              string           `json:"title" validate:"required,max=255"`
	Author             string           `json:"author" validate:"required,max=255"`
	Description        string           `json:"description"`
	CategoryID         *uint64          `json:"category_id"`
	SubCategoryID      *uint64          `json:"sub_category_id"`
	BookType           string           `json:"book_type" validate:"required,oneof=hard soft both"`
	Language           string           `json:"language" validate:"omitempty,max=50"`
	GradeLevel         string           `json:"grade_level" validate:"omitempty,max=50"`
	HardPrice          *decimal.Decimal `json:"hard_price"`
	SoftPrice          *decimal.Decimal `json:"soft_price"`
	RentalPricePerWeek *decimal.Decimal `json:"rental_price_per_week"`
	IsForSale          *bool            `json:"is_for_sale"`
	IsForRent          bool             `json:"is_for_rent"`
}

func priceOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return d.Round(2)
}

// negativePrices reports price fields below zero as validation failures.
func (r createBookReq) negativePrices() error {
	fields := map[string]string{}
	for name, p := range map[string]*decimal.Decimal{
		"hard_price": r.HardPrice, "soft_price": r.SoftPrice, "rental_price_per_week": r.RentalPricePerWeek,
	} {
		if p != nil && p.IsNegative() {
			fields[name] = "gte"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &validation.Error{Fields: fields}
}

// CreateBook serves POST /api/books.  Sellers become the listed owner;
// admins list books without a seller.
func (h *CatalogHandler) CreateBook(c echo.Context) error {
	var req createBookReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, h.Log, err)
	}
	if err := req.negativePrices(); err != nil {
		return respondError(c, h.Log, err)
	}
	b := &model.Book{
		Title:              strings.TrimSpace(req.Title),
		Author:             strings.TrimSpace(req.Author),
		CategoryID:         req.CategoryID,
		SubCategoryID:      req.SubCategoryID,
		BookType:           req.BookType,
		Language:           req.Language,
		GradeLevel:         req.GradeLevel,
		HardPrice:          priceOrZero(req.HardPrice),
		SoftPrice:          priceOrZero(req.SoftPrice),
		RentalPricePerWeek: priceOrZero(req.RentalPricePerWeek),
		IsForSale:          req.IsForSale == nil || *req.IsForSale,
		IsForRent:          req.IsForRent,
	}
	if b.Language == "" {
		b.Language = "English"
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		b.Description = &d
	}
	var seller *uint64
	if middleware.Role(c) == model.UserTypeSeller {
		if uid, ok := middleware.UserID(c); ok {
			seller = &uid
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Catalog.Create(ctx, seller, b); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toBookDTO(*b))
}
