package domain

import "errors"

var (
	// ErrInvalidInput is returned when a request or its fields have the wrong shape
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCatalogUnavailable is returned when the product catalog cannot be queried
	ErrCatalogUnavailable = errors.New("product catalog unavailable")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
