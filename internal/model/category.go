package model

// Category is a row in `categories`; SubCategories is filled by the
// repository when listing the catalog tree.
type Category struct {
	ID            uint64
	Name          string
	ImagePath     *string
	SubCategories []SubCategory
}

// SubCategory is a row in `sub_categories`.
type SubCategory struct {
	ID         uint64
	CategoryID uint64
	Name       string
}
