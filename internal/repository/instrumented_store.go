package repository

import (
	"context"
	"errors"
	"time"

	"jewelry-catalog/internal/domain"
	"jewelry-catalog/internal/metrics"
)

type instrumentedStore struct {
	next    CatalogStore
	metrics *metrics.CatalogMetrics
}

// NewInstrumentedCatalogStore wraps a store so every operation is timed and classified
func NewInstrumentedCatalogStore(next CatalogStore, m *metrics.CatalogMetrics) CatalogStore {
	return &instrumentedStore{next: next, metrics: m}
}

// ClassifyError maps store errors onto metric reasons
func ClassifyError(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateProductNumber):
		return metrics.ReasonDuplicate
	case errors.Is(err, ErrProductNotFound):
		return metrics.ReasonNotFound
	case errors.Is(err, ErrInvalidProduct):
		return metrics.ReasonInvalid
	default:
		return metrics.ReasonUnknown
	}
}

func (s *instrumentedStore) CreateProduct(ctx context.Context, input domain.NewProduct) (*domain.Product, error) {
	start := time.Now()
	product, err := s.next.CreateProduct(ctx, input)
	s.metrics.ObserveStore("create_product", err, time.Since(start), ClassifyError)
	if err == nil {
		s.metrics.ProductCreated(len(product.Images))
	}
	return product, err
}

func (s *instrumentedStore) ListProductsByCategory(ctx context.Context, category domain.Category) ([]*domain.Product, error) {
	start := time.Now()
	products, err := s.next.ListProductsByCategory(ctx, category)
	s.metrics.ObserveStore("list_products_by_category", err, time.Since(start), ClassifyError)
	return products, err
}

func (s *instrumentedStore) FindByProductNumber(ctx context.Context, productNumber string) (*domain.Product, error) {
	start := time.Now()
	product, err := s.next.FindByProductNumber(ctx, productNumber)
	s.metrics.ObserveStore("find_by_product_number", err, time.Since(start), ClassifyError)
	return product, err
}

func (s *instrumentedStore) CountByCategory(ctx context.Context) (map[domain.Category]int, error) {
	start := time.Now()
	counts, err := s.next.CountByCategory(ctx)
	s.metrics.ObserveStore("count_by_category", err, time.Since(start), ClassifyError)
	return counts, err
}

func (s *instrumentedStore) Clear(ctx context.Context) error {
	start := time.Now()
	err := s.next.Clear(ctx)
	s.metrics.ObserveStore("clear", err, time.Since(start), ClassifyError)
	return err
}
