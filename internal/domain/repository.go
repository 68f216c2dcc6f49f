package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductRepository is the data-access layer that serves candidate products.
// Implementations own tenant isolation: every query is scoped to one retailer.
type ProductRepository interface {
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]Product, error)
	Upsert(ctx context.Context, products []Product) error
	Close() error
}
