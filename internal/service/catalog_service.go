package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"

	"jewelry-catalog/internal/domain"
	"jewelry-catalog/internal/repository"

	"go.uber.org/zap"
)

const (
	minProductNumber = 10000
	maxProductNumber = 99999
)

// CatalogService defines the interface for catalog business logic
type CatalogService interface {
	CreateProduct(ctx context.Context, input domain.NewProduct) (*domain.Product, error)
	GetProductsByCategory(ctx context.Context, category domain.Category) ([]*domain.Product, error)
	GetProduct(ctx context.Context, productNumber string) (*domain.Product, error)
	CategorySummaries(ctx context.Context) ([]domain.CategorySummary, error)
}

type catalogService struct {
	store  repository.CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(store repository.CatalogStore, logger *zap.Logger) CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &catalogService{
		store:  store,
		logger: logger,
	}
}

// GenerateProductNumber returns a random five digit product number for the admin form
func GenerateProductNumber() string {
	return strconv.Itoa(minProductNumber + rand.IntN(maxProductNumber-minProductNumber+1))
}

// CreateProduct persists a product with its images. Errors are logged and returned unchanged.
func (s *catalogService) CreateProduct(ctx context.Context, input domain.NewProduct) (*domain.Product, error) {
	product, err := s.store.CreateProduct(ctx, input)
	if err != nil {
		s.logger.Error("Error creating product",
			zap.String("product_number", input.ProductNumber),
			zap.String("category", string(input.Category)),
			zap.Int("images", len(input.Images)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Product created",
		zap.Int64("id", product.ID),
		zap.String("product_number", product.ProductNumber),
		zap.String("category", string(product.Category)),
	)
	return product, nil
}

// GetProductsByCategory returns the products of category with their images, empty when none match
func (s *catalogService) GetProductsByCategory(ctx context.Context, category domain.Category) ([]*domain.Product, error) {
	products, err := s.store.ListProductsByCategory(ctx, category)
	if err != nil {
		s.logger.Error("Error fetching products by category",
			zap.String("category", string(category)),
			zap.Error(err),
		)
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product by its product number or repository.ErrProductNotFound
func (s *catalogService) GetProduct(ctx context.Context, productNumber string) (*domain.Product, error) {
	product, err := s.store.FindByProductNumber(ctx, productNumber)
	if err != nil {
		if !errors.Is(err, repository.ErrProductNotFound) {
			s.logger.Error("Error fetching product",
				zap.String("product_number", productNumber),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return product, nil
}

// CategorySummaries lists every known category with its title and product count
func (s *catalogService) CategorySummaries(ctx context.Context) ([]domain.CategorySummary, error) {
	counts, err := s.store.CountByCategory(ctx)
	if err != nil {
		s.logger.Error("Error counting products by category", zap.Error(err))
		return nil, err
	}

	categories := domain.Categories()
	summaries := make([]domain.CategorySummary, 0, len(categories))
	for _, c := range categories {
		summaries = append(summaries, domain.CategorySummary{
			ID:           c,
			Title:        c.Title(),
			ProductCount: counts[c],
		})
	}
	return summaries, nil
}
