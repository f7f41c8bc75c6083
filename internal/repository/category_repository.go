package repository

import (
	"context"
	"database/sql"

	"github.com/muluken16/E-liberary/internal/model"
)

// CategoryRepo reads the two-level category tree.
type CategoryRepo struct {
	db *sql.DB
}

// NewCategoryRepo returns a new CategoryRepo bound to the given database.
func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

// ListTree returns all categories ordered by name, each with its
// sub-categories attached.
func (r *CategoryRepo) ListTree(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, image_path FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Category{}
	index := map[uint64]int{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImagePath); err != nil {
			return nil, err
		}
		c.SubCategories = []model.SubCategory{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := r.db.QueryContext(ctx, `SELECT id, category_id, name FROM sub_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()
	for subRows.Next() {
		var s model.SubCategory
		if err := subRows.Scan(&s.ID, &s.CategoryID, &s.Name); err != nil {
			return nil, err
		}
		if i, ok := index[s.CategoryID]; ok {
			out[i].SubCategories = append(out[i].SubCategories, s)
		}
	}
	return out, subRows.Err()
}

// Ensure returns the id of the named category, creating it if needed.
func (r *CategoryRepo) Ensure(ctx context.Context, name string) (uint64, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
		return 0, err
	}
	var id uint64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	return id, err
}

// EnsureSub returns the id of the named sub-category under categoryID.
func (r *CategoryRepo) EnsureSub(ctx context.Context, categoryID uint64, name string) (uint64, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO sub_categories (category_id, name) VALUES (?, ?)`, categoryID, name); err != nil {
		return 0, err
	}
	var id uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM sub_categories WHERE category_id = ? AND name = ?`, categoryID, name).Scan(&id)
	return id, err
}
