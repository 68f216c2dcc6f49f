package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopassist/backend/internal/domain"
	"github.com/shopassist/backend/internal/textnorm"
	"github.com/shopspring/decimal"
)

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	CacheTTL           time.Duration
	DefaultTopN        int
	MaxTopN            int
	CandidateLimit     int
	EnableDebugLogging bool
}

// SearchService answers assistant product searches: extract facets from the
// shopper's text, fetch candidates from the catalog, rank them, keep the top N.
type SearchService struct {
	products       domain.ProductRepository
	cache          domain.CacheRepository
	extractor      *AttributeExtractor
	scorer         *RelevanceScorer
	logger         *log.Logger
	cacheTTL       time.Duration
	defaultTopN    int
	maxTopN        int
	candidateLimit int
}

// NewSearchService creates a new search service with dependencies.
// cache may be nil, in which case candidates are always read from the catalog.
func NewSearchService(
	products domain.ProductRepository,
	cache domain.CacheRepository,
	logger *log.Logger,
	config SearchServiceConfig,
) *SearchService {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	maxTopN := config.MaxTopN
	if maxTopN <= 0 {
		maxTopN = 5
	}

	defaultTopN := config.DefaultTopN
	if defaultTopN <= 0 || defaultTopN > maxTopN {
		defaultTopN = min(3, maxTopN)
	}

	candidateLimit := config.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = 200
	}

	return &SearchService{
		products:       products,
		cache:          cache,
		extractor:      NewAttributeExtractor(logger, config.EnableDebugLogging),
		scorer:         NewRelevanceScorer(logger, config.EnableDebugLogging),
		logger:         logger,
		cacheTTL:       cacheTTL,
		defaultTopN:    defaultTopN,
		maxTopN:        maxTopN,
		candidateLimit: candidateLimit,
	}
}

// ExtractAttributes exposes the attribute extractor
func (s *SearchService) ExtractAttributes(text string) domain.FacetSet {
	return s.extractor.Extract(text)
}

// Search ranks a retailer's products against a shopper's request.
// Flow: validate -> extract facets -> candidates (cache, then catalog) -> score -> top N
func (s *SearchService) Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResponse, error) {
	if err := validateSearchRequest(request); err != nil {
		return nil, err
	}

	// Catalog lookups and cache keys both use the trimmed tenant ID
	retailerID := strings.TrimSpace(request.RetailerID)
	facets := s.extractor.Extract(request.Query)

	filter := domain.CandidateFilter{
		RetailerID:      retailerID,
		CategoryKeyword: facets.Category,
		MinStock:        request.MinStock,
		Limit:           s.candidateLimit,
	}

	candidates, err := s.loadCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	// A category with no stocked products falls back to the whole catalog
	if len(candidates) == 0 && filter.CategoryKeyword != "" {
		s.logger.Info("No candidates for category, widening search",
			"retailer", filter.RetailerID,
			"category", filter.CategoryKeyword)
		filter.CategoryKeyword = ""
		candidates, err = s.loadCandidates(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	query := domain.Query{Facets: facets}
	if request.MaxPrice != nil {
		query.MaxPrice = decimal.NewNullDecimal(*request.MaxPrice)
	}

	ranked := Top(s.scorer.Score(candidates, query), s.topN(request.TopN))

	s.logger.Debug("Search completed",
		"retailer", retailerID,
		"candidates", len(candidates),
		"returned", len(ranked))

	return &domain.SearchResponse{
		Facets:     facets,
		Products:   ranked,
		Candidates: len(candidates),
	}, nil
}

func validateSearchRequest(request *domain.SearchRequest) error {
	if request == nil {
		return fmt.Errorf("%w: missing request", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(request.RetailerID) == "" {
		return fmt.Errorf("%w: retailer_id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(request.Query) == "" {
		return fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if request.TopN < 0 {
		return fmt.Errorf("%w: top_n must not be negative", domain.ErrInvalidInput)
	}
	if request.MinStock < 0 {
		return fmt.Errorf("%w: min_stock must not be negative", domain.ErrInvalidInput)
	}
	if request.MaxPrice != nil && request.MaxPrice.IsNegative() {
		return fmt.Errorf("%w: max_price must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

// topN resolves the requested result count against the configured bounds
func (s *SearchService) topN(requested int) int {
	if requested <= 0 {
		return s.defaultTopN
	}
	return min(requested, s.maxTopN)
}

// loadCandidates reads candidates through the cache. Cache failures are logged
// and never fail the search.
func (s *SearchService) loadCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.Product, error) {
	cacheKey := generateCacheKey(filter)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		return cached, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("Candidate cache read failed", "key", cacheKey, "error", err)
	}

	candidates, err := s.products.FindCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	if err := s.setInCache(ctx, cacheKey, candidates); err != nil {
		s.logger.Warn("Candidate cache write failed", "key", cacheKey, "error", err)
	}

	return candidates, nil
}

// generateCacheKey creates a normalized cache key from a candidate filter.
// Format: "candidates:{retailer}:{category}:{min_stock}:{limit}"
func generateCacheKey(filter domain.CandidateFilter) string {
	return fmt.Sprintf("candidates:%s:%s:%d:%d",
		strings.TrimSpace(filter.RetailerID),
		textnorm.Term(filter.CategoryKeyword),
		filter.MinStock,
		filter.Limit)
}

func (s *SearchService) getFromCache(ctx context.Context, key string) ([]domain.Product, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: corrupt entry: %v", domain.ErrCacheMiss, err)
	}
	return products, nil
}

func (s *SearchService) setInCache(ctx context.Context, key string, products []domain.Product) error {
	if s.cache == nil {
		return nil
	}

	data, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}
