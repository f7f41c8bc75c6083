package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/muluken16/E-liberary/internal/model"
)

// BookRepo is the catalog store.  It reads and writes the `books` table;
// availability and pricing rules live on model.Book.
type BookRepo struct {
	db *sql.DB
}

// NewBookRepo returns a new BookRepo bound to the given database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

const bookColumns = `id, title, author, description, category_id, sub_category_id, book_type,
	language, grade_level, hard_price, soft_price, rental_price_per_week,
	is_for_sale, is_for_rent, is_active, is_featured, views, downloads, seller_id,
	created_at, updated_at`

func scanBook(s scanner) (*model.Book, error) {
	var b model.Book
	err := s.Scan(
		&b.ID, &b.Title, &b.Author, &b.Description, &b.CategoryID, &b.SubCategoryID, &b.BookType,
		&b.Language, &b.GradeLevel, &b.HardPrice, &b.SoftPrice, &b.RentalPricePerWeek,
		&b.IsForSale, &b.IsForRent, &b.IsActive, &b.IsFeatured, &b.Views, &b.Downloads, &b.SellerID,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByID retrieves an active or inactive book by id.  It returns
// ErrBookNotFound when no row matches.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (*model.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return b, nil
}

// BookQuery defines filters and pagination for the public catalog.
type BookQuery struct {
	BookType     string // hard|soft|both
	AvailableFor string // hard|soft|rent
	CategoryID   uint64
	Language     string
	Search       string // matched against title and author
	FeaturedOnly bool
	Page         int
	PageSize     int
}

// Search lists active books matching q, newest first, and the total count
// ignoring pagination.  The available_for filter mirrors the availability
// rules on model.Book so list results agree with checkout validation.
func (r *BookRepo) Search(ctx context.Context, q BookQuery) ([]model.Book, int64, error) {
	where := []string{"is_active = 1"}
	args := []any{}

	if q.BookType != "" {
		where = append(where, "book_type = ?")
		args = append(args, q.BookType)
	}
	switch strings.ToLower(q.AvailableFor) {
	case "hard":
		where = append(where, "book_type IN ('hard','both') AND hard_price > 0 AND is_for_sale = 1")
	case "soft":
		where = append(where, "book_type IN ('soft','both') AND soft_price > 0 AND is_for_sale = 1")
	case "rent":
		where = append(where, "is_for_rent = 1 AND rental_price_per_week > 0")
	}
	if q.CategoryID > 0 {
		where = append(where, "category_id = ?")
		args = append(args, q.CategoryID)
	}
	if q.Language != "" {
		where = append(where, "language = ?")
		args = append(args, q.Language)
	}
	if q.Search != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(author) LIKE ?)")
		like := "%" + strings.ToLower(q.Search) + "%"
		args = append(args, like, like)
	}
	if q.FeaturedOnly {
		where = append(where, "is_featured = 1")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	dataArgs := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE `+cond+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Book, 0, q.PageSize)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Create inserts a new book and sets its ID.  A duplicate (title, author)
// pair yields ErrConflict.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO books
		(title, author, description, category_id, sub_category_id, book_type, language, grade_level,
		 hard_price, soft_price, rental_price_per_week, is_for_sale, is_for_rent, is_active, is_featured, seller_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Title, b.Author, b.Description, b.CategoryID, b.SubCategoryID, b.BookType, b.Language, b.GradeLevel,
		b.HardPrice, b.SoftPrice, b.RentalPricePerWeek, b.IsForSale, b.IsForRent, b.IsActive, b.IsFeatured, b.SellerID)
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
	b.ID = uint64(id)
	return nil
}

// Upsert inserts a book or refreshes the pricing and flags of the existing
// (title, author) row.  Used by the seed command so reruns are idempotent.
func (r *BookRepo) Upsert(ctx context.Context, b *model.Book) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO books
		(title, author, description, category_id, book_type, language, grade_level,
		 hard_price, soft_price, rental_price_per_week, is_for_sale, is_for_rent, is_active, is_featured)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
		 description = VALUES(description), category_id = VALUES(category_id), book_type = VALUES(book_type),
		 hard_price = VALUES(hard_price), soft_price = VALUES(soft_price),
		 rental_price_per_week = VALUES(rental_price_per_week), is_for_sale = VALUES(is_for_sale),
		 is_for_rent = VALUES(is_for_rent), is_featured = VALUES(is_featured)`,
		b.Title, b.Author, b.Description, b.CategoryID, b.BookType, b.Language, b.GradeLevel,
		b.HardPrice, b.SoftPrice, b.RentalPricePerWeek, b.IsForSale, b.IsForRent, b.IsActive, b.IsFeatured)
	return err
}

// IncrementViews bumps the view counter.  Missing rows are ignored.
func (r *BookRepo) IncrementViews(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE books SET views = views + 1 WHERE id = ?`, id)
	return err
}
