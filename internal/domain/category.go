package domain

// Category is the browse key of the storefront
type Category string

const (
	CategoryNecklaceSet Category = "necklace-set"
	CategoryBangles     Category = "bangles"
	CategoryEarrings    Category = "earrings"
)

var categoryTitles = map[Category]string{
	CategoryNecklaceSet: "Necklace Sets",
	CategoryBangles:     "Bangles",
	CategoryEarrings:    "Earrings",
}

// Categories returns the known categories in display order
func Categories() []Category {
	return []Category{CategoryNecklaceSet, CategoryBangles, CategoryEarrings}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	_, ok := categoryTitles[c]
	return ok
}

// Title returns the display title, or the raw value for unknown categories
func (c Category) Title() string {
	if title, ok := categoryTitles[c]; ok {
		return title
	}
	return string(c)
}

// CategorySummary describes a category and how many products it holds
type CategorySummary struct {
	ID           Category `json:"id"`
	Title        string   `json:"title"`
	ProductCount int      `json:"product_count"`
}
