package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/shopassist/backend/internal/domain"
)

// SearchService is the part of usecase.SearchService the handlers need
type SearchService interface {
	Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResponse, error)
	ExtractAttributes(text string) domain.FacetSet
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	searchService SearchService
	logger        *log.Logger
}

// NewHandler creates a new HTTP handler. A nil service makes the API
// endpoints answer 503.
func NewHandler(searchService SearchService, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Handler{
		searchService: searchService,
		logger:        logger,
	}
}

// ExtractRequest is the body of POST /api/v1/attributes/extract
type ExtractRequest struct {
	Text string `json:"text"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shopassist-backend",
		"version": "1.0.0",
	})
}

// SearchProducts handles assistant product search requests
func (h *Handler) SearchProducts(c *gin.Context) {
	if h.searchService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "search service not configured",
		})
		return
	}

	var request domain.SearchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	response, err := h.searchService.Search(c.Request.Context(), &request)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ExtractAttributes returns the facets found in free-form text
func (h *Handler) ExtractAttributes(c *gin.Context) {
	if h.searchService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "search service not configured",
		})
		return
	}

	var request ExtractRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}
	if strings.TrimSpace(request.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "text is required",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"facets": h.searchService.ExtractAttributes(request.Text),
	})
}

// handleError maps domain errors to HTTP status codes
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrCatalogUnavailable):
		h.logger.Error("Catalog unavailable", "error", err, "request_id", c.GetString(requestIDKey))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "product catalog temporarily unavailable",
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": "request timed out",
		})
	default:
		h.logger.Error("Search failed", "error", err, "request_id", c.GetString(requestIDKey))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	}
}
