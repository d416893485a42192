package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"jewelry-catalog/internal/domain"
	"jewelry-catalog/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Mock store for testing
type mockCatalogStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	nextID   int64
	err      error
}

func newMockCatalogStore() *mockCatalogStore {
	return &mockCatalogStore{
		products: make(map[string]*domain.Product),
	}
}

func (m *mockCatalogStore) CreateProduct(ctx context.Context, input domain.NewProduct) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, exists := m.products[input.ProductNumber]; exists {
		return nil, repository.ErrDuplicateProductNumber
	}
	m.nextID++
	product := &domain.Product{
		ID:            m.nextID,
		ProductNumber: input.ProductNumber,
		Category:      input.Category,
		Price:         input.Price,
		Images:        append([]string(nil), input.Images...),
	}
	m.products[input.ProductNumber] = product
	return product, nil
}

func (m *mockCatalogStore) ListProductsByCategory(ctx context.Context, category domain.Category) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	products := []*domain.Product{}
	for _, p := range m.products {
		if p.Category == category {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *mockCatalogStore) FindByProductNumber(ctx context.Context, productNumber string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	product, exists := m.products[productNumber]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockCatalogStore) CountByCategory(ctx context.Context) (map[domain.Category]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	counts := make(map[domain.Category]int)
	for _, p := range m.products {
		counts[p.Category]++
	}
	return counts, nil
}

func (m *mockCatalogStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = make(map[string]*domain.Product)
	return nil
}

func bangle(number string) domain.NewProduct {
	return domain.NewProduct{
		ProductNumber: number,
		Category:      domain.CategoryBangles,
		Price:         decimal.RequireFromString("49.99"),
		Images:        []string{"data:image/png;base64,AAA="},
	}
}

func TestCreateProductPassesThrough(t *testing.T) {
	store := newMockCatalogStore()
	svc := NewCatalogService(store, zap.NewNop())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, bangle("12345"))
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if product.ID == 0 || product.ProductNumber != "12345" {
		t.Errorf("unexpected product: %+v", product)
	}

	products, err := svc.GetProductsByCategory(ctx, domain.CategoryBangles)
	if err != nil {
		t.Fatalf("GetProductsByCategory failed: %v", err)
	}
	if len(products) != 1 || products[0].ProductNumber != "12345" {
		t.Errorf("unexpected listing: %+v", products)
	}
}

func TestServiceLogsAndReturnsStoreErrorsUnchanged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := newMockCatalogStore()
	svc := NewCatalogService(store, zap.New(core))
	ctx := context.Background()

	storageErr := errors.New("database is locked")
	store.err = storageErr

	if _, err := svc.CreateProduct(ctx, bangle("12345")); err != storageErr {
		t.Errorf("CreateProduct should return the store error unchanged, got %v", err)
	}
	if _, err := svc.GetProductsByCategory(ctx, domain.CategoryBangles); err != storageErr {
		t.Errorf("GetProductsByCategory should return the store error unchanged, got %v", err)
	}
	if _, err := svc.CategorySummaries(ctx); err != storageErr {
		t.Errorf("CategorySummaries should return the store error unchanged, got %v", err)
	}

	if logs.Len() != 3 {
		t.Fatalf("expected 3 error logs, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["product_number"] != "12345" {
		t.Errorf("create failure log should carry the product number, got %v", entry.ContextMap())
	}
}

func TestGetProductDoesNotLogNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewCatalogService(newMockCatalogStore(), zap.New(core))

	_, err := svc.GetProduct(context.Background(), "00000")
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("not found is not an error worth logging, got %d entries", logs.Len())
	}
}

func TestCategorySummariesIncludeEmptyCategories(t *testing.T) {
	store := newMockCatalogStore()
	svc := NewCatalogService(store, nil)
	ctx := context.Background()

	for _, n := range []string{"11111", "22222"} {
		if _, err := svc.CreateProduct(ctx, bangle(n)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	summaries, err := svc.CategorySummaries(ctx)
	if err != nil {
		t.Fatalf("CategorySummaries failed: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}

	want := map[domain.Category]int{
		domain.CategoryNecklaceSet: 0,
		domain.CategoryBangles:     2,
		domain.CategoryEarrings:    0,
	}
	for _, s := range summaries {
		if s.ProductCount != want[s.ID] {
			t.Errorf("%s: expected %d products, got %d", s.ID, want[s.ID], s.ProductCount)
		}
		if s.Title != s.ID.Title() {
			t.Errorf("%s: unexpected title %q", s.ID, s.Title)
		}
	}
}

// Property: generated product numbers are five digit numerals in 10000..99999
func TestProperty_GeneratedProductNumbersAreFiveDigits(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("product number is within range", prop.ForAll(
		func(_ int) bool {
			number := GenerateProductNumber()
			if len(number) != 5 {
				t.Logf("FAIL: %q is not five characters", number)
				return false
			}
			n, err := strconv.Atoi(number)
			if err != nil {
				t.Logf("FAIL: %q is not numeric", number)
				return false
			}
			return n >= 10000 && n <= 99999
		},
		gen.Int(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
