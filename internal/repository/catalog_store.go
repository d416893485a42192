package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jewelry-catalog/internal/database"
	"jewelry-catalog/internal/domain"
)

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrDuplicateProductNumber = errors.New("product with this number already exists")
	ErrInvalidProduct         = errors.New("invalid product")
)

// CatalogStore defines the persistence operations for products and their images
type CatalogStore interface {
	CreateProduct(ctx context.Context, input domain.NewProduct) (*domain.Product, error)
	ListProductsByCategory(ctx context.Context, category domain.Category) ([]*domain.Product, error)
	FindByProductNumber(ctx context.Context, productNumber string) (*domain.Product, error)
	CountByCategory(ctx context.Context) (map[domain.Category]int, error)
	Clear(ctx context.Context) error
}

type catalogStore struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time

	// imageInserted runs after each image row is written inside the create transaction
	imageInserted func(ctx context.Context, productID int64, index int) error
}

// NewCatalogStore creates a new instance of CatalogStore over an initialized database
func NewCatalogStore(db *sql.DB, dialect database.Dialect) CatalogStore {
	return &catalogStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// validateNewProduct checks the record shape before any transaction is opened.
// The category enumeration is left to the form layer.
func validateNewProduct(input domain.NewProduct) error {
	var problems []string

	if strings.TrimSpace(input.ProductNumber) == "" {
		problems = append(problems, "product number is required")
	}
	if strings.TrimSpace(string(input.Category)) == "" {
		problems = append(problems, "category is required")
	}
	if input.Price.IsNegative() {
		problems = append(problems, "price must not be negative")
	}
	for i, img := range input.Images {
		if img == "" {
			problems = append(problems, fmt.Sprintf("image %d is empty", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, "; "))
	}
	return nil
}

// CreateProduct inserts a product and all of its images in a single transaction
func (s *catalogStore) CreateProduct(ctx context.Context, input domain.NewProduct) (*domain.Product, error) {
	if err := validateNewProduct(input); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	product := &domain.Product{
		ProductNumber: input.ProductNumber,
		Category:      input.Category,
		Price:         input.Price,
		Images:        make([]string, 0, len(input.Images)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	productQuery := s.dialect.Rebind(`
		INSERT INTO products (product_number, category, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = tx.QueryRowContext(
		ctx,
		productQuery,
		product.ProductNumber,
		string(product.Category),
		product.Price.String(),
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateProductNumber
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	imageQuery := s.dialect.Rebind(`
		INSERT INTO images (url, product_id, created_at)
		VALUES (?, ?, ?)
	`)
	stmt, err := tx.PrepareContext(ctx, imageQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image insert: %w", err)
	}
	defer stmt.Close()

	for i, url := range input.Images {
		if _, err := stmt.ExecContext(ctx, url, product.ID, now); err != nil {
			return nil, fmt.Errorf("failed to create image %d: %w", i, err)
		}
		if s.imageInserted != nil {
			if err := s.imageInserted(ctx, product.ID, i); err != nil {
				return nil, fmt.Errorf("failed to create image %d: %w", i, err)
			}
		}
		product.Images = append(product.Images, url)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product: %w", err)
	}

	return product, nil
}

// ListProductsByCategory returns the products of a category with their images attached
func (s *catalogStore) ListProductsByCategory(ctx context.Context, category domain.Category) ([]*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.ReadTxOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	productQuery := s.dialect.Rebind(`
		SELECT id, product_number, category, price, created_at, updated_at
		FROM products
		WHERE category = ?
		ORDER BY id ASC
	`)
	rows, err := tx.QueryContext(ctx, productQuery, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products := []*domain.Product{}
	byID := make(map[int64]*domain.Product)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		products = append(products, product)
		byID[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	rows.Close()

	if len(products) == 0 {
		return products, nil
	}

	imageQuery := s.dialect.Rebind(`
		SELECT i.product_id, i.url
		FROM images i
		JOIN products p ON p.id = i.product_id
		WHERE p.category = ?
		ORDER BY i.id ASC
	`)
	imageRows, err := tx.QueryContext(ctx, imageQuery, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer imageRows.Close()

	for imageRows.Next() {
		var productID int64
		var url string
		if err := imageRows.Scan(&productID, &url); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		if product, ok := byID[productID]; ok {
			product.Images = append(product.Images, url)
		}
	}
	if err := imageRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return products, nil
}

// FindByProductNumber retrieves a single product with its images
func (s *catalogStore) FindByProductNumber(ctx context.Context, productNumber string) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.ReadTxOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.dialect.Rebind(`
		SELECT id, product_number, category, price, created_at, updated_at
		FROM products
		WHERE product_number = ?
	`)
	product, err := scanProduct(tx.QueryRowContext(ctx, query, productNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	imageQuery := s.dialect.Rebind(`SELECT url FROM images WHERE product_id = ? ORDER BY id ASC`)
	rows, err := tx.QueryContext(ctx, imageQuery, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		product.Images = append(product.Images, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return product, nil
}

// CountByCategory returns how many products each stored category holds
func (s *catalogStore) CountByCategory(ctx context.Context) (map[domain.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM products GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Category]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[domain.Category(category)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category counts: %w", err)
	}

	return counts, nil
}

// Clear empties both collections. Intended for tests and operator resets.
func (s *catalogStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM images"); err != nil {
		return fmt.Errorf("failed to clear images: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{Images: []string{}}
	var category, price string

	err := row.Scan(
		&product.ID,
		&product.ProductNumber,
		&category,
		&price,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	product.Category = domain.Category(category)
	if err := product.Price.UnmarshalText([]byte(price)); err != nil {
		return nil, fmt.Errorf("failed to parse price %q: %w", price, err)
	}
	return product, nil
}
