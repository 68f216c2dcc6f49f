package usecase

import (
	"io"
	"math"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/shopassist/backend/internal/domain"
)

// Facet weights, summed then clamped to [minScore, maxScore]
const (
	weightCategory    = 40.0
	weightSubcategory = 30.0
	weightColor       = 25.0
	weightMaterial    = 20.0
	weightStyle       = 15.0
	weightRoom        = 10.0
	weightPrice       = 10.0
)

// Bonuses applied regardless of facet matches
const (
	confidenceDivisor   = 10.0 // confidence_score x 0.1
	stockBonus          = 5.0
	stockBonusThreshold = 10 // strictly more than this many units
	minScore            = 0.0
	maxScore            = 100.0
)

// Labels reported in matched_attributes, in evaluation order
const (
	labelCategory    = "catégorie"
	labelSubcategory = "sous-catégorie"
	labelColor       = "couleur"
	labelMaterial    = "matériau"
	labelStyle       = "style"
	labelRoom        = "pièce"
	labelPrice       = "prix"
)

// RelevanceScorer ranks candidate products against a query.
// It is stateless apart from logging configuration and safe for concurrent use.
type RelevanceScorer struct {
	logger             *log.Logger
	enableDebugLogging bool
}

// NewRelevanceScorer creates a new relevance scorer
func NewRelevanceScorer(logger *log.Logger, enableDebugLogging bool) *RelevanceScorer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &RelevanceScorer{
		logger:             logger,
		enableDebugLogging: enableDebugLogging,
	}
}

// Score computes a relevance score for every candidate and returns them sorted by
// score descending, cheapest first among equal scores. Candidates are not modified.
func (s *RelevanceScorer) Score(candidates []domain.Product, query domain.Query) []domain.ScoredResult {
	results := make([]domain.ScoredResult, 0, len(candidates))

	for _, candidate := range candidates {
		score, matched := s.scoreCandidate(candidate, query)

		if s.enableDebugLogging {
			s.logger.Debug("Scored candidate",
				"id", candidate.ID,
				"title", candidate.Title,
				"score", score,
				"matched", matched)
		}

		results = append(results, domain.ScoredResult{
			Product:           candidate,
			RelevanceScore:    score,
			MatchedAttributes: matched,
		})
	}

	slices.SortStableFunc(results, compareScored)
	return results
}

// compareScored orders by relevance descending, then price ascending
func compareScored(a, b domain.ScoredResult) int {
	switch {
	case a.RelevanceScore > b.RelevanceScore:
		return -1
	case a.RelevanceScore < b.RelevanceScore:
		return 1
	}
	return a.Price.Cmp(b.Price)
}

// scoreCandidate sums the weights of every matching facet plus the confidence and
// stock bonuses. Missing or empty candidate fields never match and never subtract.
func (s *RelevanceScorer) scoreCandidate(p domain.Product, query domain.Query) (float64, []string) {
	facets := query.Facets
	score := 0.0
	matched := []string{}

	if facets.Category != "" &&
		(categoryTable.matches(p.Category, facets.Category) || categoryTable.matches(p.Subcategory, facets.Category)) {
		score += weightCategory
		matched = append(matched, labelCategory)
	}

	if facets.Subcategory != "" && subcategoryTable.matches(p.Subcategory, facets.Subcategory) {
		score += weightSubcategory
		matched = append(matched, labelSubcategory)
	}

	if anyMatches(colorTable, facets.Colors, p.Color) {
		score += weightColor
		matched = append(matched, labelColor)
	}

	// Material and fabric form one condition so the weight applies once
	if anyMatches(materialTable, facets.Materials, p.Material, p.Fabric) {
		score += weightMaterial
		matched = append(matched, labelMaterial)
	}

	if anyMatches(styleTable, facets.Styles, p.Style) {
		score += weightStyle
		matched = append(matched, labelStyle)
	}

	if facets.Room != "" && roomTable.matches(p.Room, facets.Room) {
		score += weightRoom
		matched = append(matched, labelRoom)
	}

	if query.MaxPrice.Valid && p.Price.IsPositive() && p.Price.LessThanOrEqual(query.MaxPrice.Decimal) {
		score += weightPrice
		matched = append(matched, labelPrice)
	}

	score += confidenceBonus(p.ConfidenceScore)

	if p.StockQty > stockBonusThreshold {
		score += stockBonus
	}

	return clamp(score, minScore, maxScore), matched
}

// anyMatches reports whether any wanted value is mentioned by any of the fields
func anyMatches(table *keywordTable, wanted []string, fields ...string) bool {
	for _, value := range wanted {
		for _, field := range fields {
			if table.matches(field, value) {
				return true
			}
		}
	}
	return false
}

// confidenceBonus scales an upstream confidence in [0, 100]. Non-finite values count as 0.
func confidenceBonus(confidence float64) float64 {
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return 0
	}
	return clamp(confidence, minScore, maxScore) / confidenceDivisor
}

// clamp bounds v to [lo, hi]; NaN counts as lo
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Top returns at most n results. A non-positive n returns all of them.
func Top(results []domain.ScoredResult, n int) []domain.ScoredResult {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}
