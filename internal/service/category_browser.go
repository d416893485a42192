package service

import (
	"context"
	"errors"
	"sync"

	"jewelry-catalog/internal/domain"
)

// ErrStaleResult is returned by Browse when a newer browse started before this one finished
var ErrStaleResult = errors.New("browse result superseded by a newer request")

// BrowseResult is the product list published for one category request
type BrowseResult struct {
	Category   domain.Category   `json:"category"`
	Products   []*domain.Product `json:"products"`
	Generation uint64            `json:"generation"`
}

// CategoryBrowser sequences category queries so only the newest request updates the visible list
type CategoryBrowser struct {
	service CatalogService

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    BrowseResult
}

// NewCategoryBrowser creates a browser over the catalog service
func NewCategoryBrowser(service CatalogService) *CategoryBrowser {
	return &CategoryBrowser{service: service}
}

// Browse cancels any in-flight query, runs a query for category and publishes
// the result unless another Browse started in the meantime.
func (b *CategoryBrowser) Browse(ctx context.Context, category domain.Category) (BrowseResult, error) {
	return b.Start(ctx, category)()
}

// Start supersedes any in-flight query right away and returns the function that
// runs the new one. The returned function must be called exactly once.
func (b *CategoryBrowser) Start(ctx context.Context, category domain.Category) func() (BrowseResult, error) {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.generation++
	generation := b.generation
	queryCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	return func() (BrowseResult, error) {
		defer cancel()

		products, err := b.service.GetProductsByCategory(queryCtx, category)

		b.mu.Lock()
		defer b.mu.Unlock()

		if generation != b.generation {
			return BrowseResult{}, ErrStaleResult
		}
		b.cancel = nil
		if err != nil {
			return BrowseResult{}, err
		}

		b.current = BrowseResult{
			Category:   category,
			Products:   products,
			Generation: generation,
		}
		return b.current, nil
	}
}

// Current returns the most recently published result. Generation is zero until a browse succeeds.
func (b *CategoryBrowser) Current() BrowseResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
