package domain

import "github.com/shopspring/decimal"

// Product is a catalog record owned by a retailer. The scorer treats it as read-only.
type Product struct {
	ID              string          `json:"id"`
	RetailerID      string          `json:"retailer_id"`
	Title           string          `json:"title"`
	Category        string          `json:"category,omitempty"`
	Subcategory     string          `json:"subcategory,omitempty"`
	Color           string          `json:"color,omitempty"`
	Material        string          `json:"material,omitempty"`
	Fabric          string          `json:"fabric,omitempty"`
	Style           string          `json:"style,omitempty"`
	Room            string          `json:"room,omitempty"`
	Price           decimal.Decimal `json:"price"`
	StockQty        int             `json:"stock_qty"`
	ConfidenceScore float64         `json:"confidence_score"` // 0-100, assigned upstream
}

// ScoredResult is a candidate product annotated with its relevance
type ScoredResult struct {
	Product
	RelevanceScore    float64  `json:"relevance_score"`
	MatchedAttributes []string `json:"matched_attributes"`
}

// Query is what the scorer matches candidates against
type Query struct {
	Facets   FacetSet
	MaxPrice decimal.NullDecimal
}

// CandidateFilter holds the coarse filters used to fetch candidates from the catalog
type CandidateFilter struct {
	RetailerID      string
	CategoryKeyword string
	MinStock        int
	Limit           int
}

// SearchRequest represents an assistant product search
type SearchRequest struct {
	RetailerID string           `json:"retailer_id"`
	Query      string           `json:"query"`
	MaxPrice   *decimal.Decimal `json:"max_price,omitempty"`
	TopN       int              `json:"top_n,omitempty"`
	MinStock   int              `json:"min_stock,omitempty"`
}

// SearchResponse is the ranked outcome of a search
type SearchResponse struct {
	Facets     FacetSet       `json:"facets"`
	Products   []ScoredResult `json:"products"`
	Candidates int            `json:"candidates"`
}
