package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopassist/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data      map[string][]byte
	getError  error
	setError  error
	getCalled bool
	setCalled bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.getCalled = true
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalled = true
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockProductRepository is a mock implementation of domain.ProductRepository.
// Products are served by category keyword ("" serves the whole catalog) and
// only to the retailer that owns them.
type MockProductRepository struct {
	byCategory map[string][]domain.Product
	findError  error
	filters    []domain.CandidateFilter
}

func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{
		byCategory: make(map[string][]domain.Product),
	}
}

func (m *MockProductRepository) FindCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.Product, error) {
	m.filters = append(m.filters, filter)
	if m.findError != nil {
		return nil, m.findError
	}
	products := []domain.Product{}
	for _, p := range m.byCategory[filter.CategoryKeyword] {
		if p.RetailerID == filter.RetailerID {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *MockProductRepository) Upsert(ctx context.Context, products []domain.Product) error {
	return nil
}

func (m *MockProductRepository) Close() error {
	return nil
}

func sofaCatalog() []domain.Product {
	return []domain.Product{
		{ID: "s1", RetailerID: "r1", Title: "Canapé Oslo", Category: "Canapé", Color: "Gris", Material: "Tissu", Price: price("549"), StockQty: 4, ConfidenceScore: 60},
		{ID: "s2", RetailerID: "r1", Title: "Canapé Milo", Category: "Canapé", Subcategory: "Convertible", Color: "Beige", Material: "Velours", Price: price("799"), StockQty: 50, ConfidenceScore: 80},
		{ID: "s3", RetailerID: "r1", Title: "Canapé Lina", Category: "Canapé", Color: "Beige", Material: "Lin", Price: price("699"), StockQty: 12, ConfidenceScore: 40},
		{ID: "s4", RetailerID: "r1", Title: "Canapé Nora", Category: "Canapé", Color: "Bleu", Material: "Velours", Price: price("899"), StockQty: 2, ConfidenceScore: 90},
	}
}

func TestNewSearchService(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		svc := NewSearchService(NewMockProductRepository(), nil, nil, SearchServiceConfig{})

		assert.Equal(t, 5*time.Minute, svc.cacheTTL)
		assert.Equal(t, 3, svc.defaultTopN)
		assert.Equal(t, 5, svc.maxTopN)
		assert.Equal(t, 200, svc.candidateLimit)
		assert.NotNil(t, svc.logger)
	})

	t.Run("default top N never exceeds the maximum", func(t *testing.T) {
		svc := NewSearchService(NewMockProductRepository(), nil, nil, SearchServiceConfig{DefaultTopN: 8, MaxTopN: 2})

		assert.Equal(t, 2, svc.defaultTopN)
		assert.Equal(t, 2, svc.maxTopN)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks catalog candidates", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		svc := NewSearchService(repo, nil, nil, SearchServiceConfig{})

		resp, err := svc.Search(ctx, &domain.SearchRequest{
			RetailerID: "r1",
			Query:      "Je cherche un canapé convertible beige en velours",
		})
		require.NoError(t, err)

		assert.Equal(t, "canapé", resp.Facets.Category)
		assert.Equal(t, 4, resp.Candidates)
		require.Len(t, resp.Products, 3)
		assert.Equal(t, "s2", resp.Products[0].ID)
		assert.Equal(t, 100.0, resp.Products[0].RelevanceScore)
		assert.Equal(t,
			[]string{"catégorie", "sous-catégorie", "couleur", "matériau"},
			resp.Products[0].MatchedAttributes)
		assert.Equal(t, "s3", resp.Products[1].ID)

		require.Len(t, repo.filters, 1)
		assert.Equal(t, domain.CandidateFilter{RetailerID: "r1", CategoryKeyword: "canapé", Limit: 200}, repo.filters[0])
	})

	t.Run("max price rewards affordable products", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		svc := NewSearchService(repo, nil, nil, SearchServiceConfig{})
		budget := price("600")

		resp, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: "r1", Query: "canapé", MaxPrice: &budget, TopN: 5})
		require.NoError(t, err)

		require.Len(t, resp.Products, 4)
		for _, p := range resp.Products {
			if p.ID == "s1" {
				assert.Contains(t, p.MatchedAttributes, "prix")
			} else {
				assert.NotContains(t, p.MatchedAttributes, "prix")
			}
		}
	})

	t.Run("top N is capped at the configured maximum", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		svc := NewSearchService(repo, nil, nil, SearchServiceConfig{MaxTopN: 2})

		resp, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: "r1", Query: "canapé", TopN: 10})
		require.NoError(t, err)
		assert.Len(t, resp.Products, 2)
	})

	t.Run("widens to the whole catalog when the category is empty", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory[""] = sofaCatalog()
		svc := NewSearchService(repo, nil, nil, SearchServiceConfig{})

		resp, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: "r1", Query: "une armoire beige"})
		require.NoError(t, err)

		require.Len(t, repo.filters, 2)
		assert.Equal(t, "armoire", repo.filters[0].CategoryKeyword)
		assert.Equal(t, "", repo.filters[1].CategoryKeyword)
		assert.Equal(t, 4, resp.Candidates)
		assert.Len(t, resp.Products, 3)
	})

	t.Run("no candidates is not an error", func(t *testing.T) {
		svc := NewSearchService(NewMockProductRepository(), nil, nil, SearchServiceConfig{})

		resp, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: "r1", Query: "un tapis"})
		require.NoError(t, err)
		assert.Empty(t, resp.Products)
		assert.Equal(t, 0, resp.Candidates)
	})

	t.Run("catalog failure is reported as unavailable", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.findError = errors.New("connection refused")
		svc := NewSearchService(repo, nil, nil, SearchServiceConfig{})

		_, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: "r1", Query: "canapé"})
		assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	})
}

func TestSearchValidation(t *testing.T) {
	svc := NewSearchService(NewMockProductRepository(), nil, nil, SearchServiceConfig{})
	negative := price("-1")

	tests := []struct {
		name    string
		request *domain.SearchRequest
	}{
		{name: "nil request", request: nil},
		{name: "missing retailer", request: &domain.SearchRequest{Query: "canapé"}},
		{name: "blank query", request: &domain.SearchRequest{RetailerID: "r1", Query: "   "}},
		{name: "negative top N", request: &domain.SearchRequest{RetailerID: "r1", Query: "canapé", TopN: -1}},
		{name: "negative min stock", request: &domain.SearchRequest{RetailerID: "r1", Query: "canapé", MinStock: -3}},
		{name: "negative max price", request: &domain.SearchRequest{RetailerID: "r1", Query: "canapé", MaxPrice: &negative}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tt.request)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestSearchCaching(t *testing.T) {
	ctx := context.Background()
	request := &domain.SearchRequest{RetailerID: "r1", Query: "canapé beige"}

	t.Run("caches candidates and serves them on the next search", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		cache := NewMockCacheRepository()
		svc := NewSearchService(repo, cache, nil, SearchServiceConfig{})

		first, err := svc.Search(ctx, request)
		require.NoError(t, err)
		assert.True(t, cache.setCalled)

		second, err := svc.Search(ctx, request)
		require.NoError(t, err)

		assert.Len(t, repo.filters, 1)
		require.Len(t, second.Products, len(first.Products))
		for i := range first.Products {
			assert.Equal(t, first.Products[i].ID, second.Products[i].ID)
			assert.Equal(t, first.Products[i].RelevanceScore, second.Products[i].RelevanceScore)
			assert.True(t, first.Products[i].Price.Equal(second.Products[i].Price))
		}
	})

	t.Run("cache read failure falls back to the catalog", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		cache := NewMockCacheRepository()
		cache.getError = domain.ErrCacheUnavailable
		svc := NewSearchService(repo, cache, nil, SearchServiceConfig{})

		resp, err := svc.Search(ctx, request)
		require.NoError(t, err)
		assert.Len(t, resp.Products, 3)
		assert.Len(t, repo.filters, 1)
	})

	t.Run("cache write failure does not fail the search", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		cache := NewMockCacheRepository()
		cache.setError = domain.ErrCacheUnavailable
		svc := NewSearchService(repo, cache, nil, SearchServiceConfig{})

		resp, err := svc.Search(ctx, request)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Products)
	})

	t.Run("padded retailer ID shares the tenant's catalog and cache entry", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = []domain.Product{
			{ID: "a1", RetailerID: "acme", Title: "Canapé Oslo", Category: "Canapé", Price: price("499"), StockQty: 3},
		}
		cache := NewMockCacheRepository()
		svc := NewSearchService(repo, cache, nil, SearchServiceConfig{})

		padded, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: " acme ", Query: "canapé"})
		require.NoError(t, err)
		assert.Equal(t, 1, padded.Candidates)
		require.Len(t, repo.filters, 1)
		assert.Equal(t, "acme", repo.filters[0].RetailerID)

		exact, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: "acme", Query: "canapé"})
		require.NoError(t, err)
		assert.Equal(t, 1, exact.Candidates)
		require.Len(t, exact.Products, 1)
		assert.Equal(t, "a1", exact.Products[0].ID)
		assert.Len(t, repo.filters, 1, "second search is served from the cache")
	})

	t.Run("cache entries are scoped to the retailer", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		cache := NewMockCacheRepository()
		svc := NewSearchService(repo, cache, nil, SearchServiceConfig{})

		_, err := svc.Search(ctx, request)
		require.NoError(t, err)

		other, err := svc.Search(ctx, &domain.SearchRequest{RetailerID: "r2", Query: "canapé beige"})
		require.NoError(t, err)
		assert.Equal(t, 0, other.Candidates)
		assert.Empty(t, other.Products)
	})

	t.Run("corrupt cache entry is treated as a miss", func(t *testing.T) {
		repo := NewMockProductRepository()
		repo.byCategory["canapé"] = sofaCatalog()
		cache := NewMockCacheRepository()
		svc := NewSearchService(repo, cache, nil, SearchServiceConfig{})

		key := generateCacheKey(domain.CandidateFilter{RetailerID: "r1", CategoryKeyword: "canapé", Limit: 200})
		cache.data[key] = []byte("{not json")

		resp, err := svc.Search(ctx, request)
		require.NoError(t, err)
		assert.Equal(t, 4, resp.Candidates)

		var stored []domain.Product
		require.NoError(t, json.Unmarshal(cache.data[key], &stored))
		assert.Len(t, stored, 4)
	})
}

func TestGenerateCacheKey(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.CandidateFilter
		want   string
	}{
		{
			name:   "category is folded",
			filter: domain.CandidateFilter{RetailerID: "r1", CategoryKeyword: "Table Basse", MinStock: 1, Limit: 50},
			want:   "candidates:r1:table basse:1:50",
		},
		{
			name:   "accents removed",
			filter: domain.CandidateFilter{RetailerID: "r1", CategoryKeyword: "étagère", Limit: 200},
			want:   "candidates:r1:etagere:0:200",
		},
		{
			name:   "no category",
			filter: domain.CandidateFilter{RetailerID: "shop-9", Limit: 200},
			want:   "candidates:shop-9::0:200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generateCacheKey(tt.filter))
		})
	}
}

func TestExtractAttributes(t *testing.T) {
	svc := NewSearchService(NewMockProductRepository(), nil, nil, SearchServiceConfig{})

	facets := svc.ExtractAttributes("lit 160 x 200 cm en bois")
	assert.Equal(t, "lit", facets.Category)
	assert.Equal(t, []string{"bois"}, facets.Materials)
	assert.Equal(t, "L:160cm x l:200cm", facets.Dimensions)
}
