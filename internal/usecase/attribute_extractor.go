package usecase

import (
	"fmt"
	"io"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/shopassist/backend/internal/domain"
)

// Compiled dimension patterns, applied to folded text in precedence order
var (
	// "200 x 90 x 85 cm", "200x90x85cm", "200cm x 90cm x 85cm"
	dimensionLWHPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:cm)?\s*[x×*]\s*(\d+(?:[.,]\d+)?)\s*(?:cm)?\s*[x×*]\s*(\d+(?:[.,]\d+)?)\s*cm`)

	// "diamètre 120cm", "diamètre : 120 cm", "ø 90 cm", "diam. 60cm"
	dimensionDiameterPattern = regexp.MustCompile(`(?:diametre|diam\.?|ø)\s*:?\s*(\d+(?:[.,]\d+)?)\s*cm`)

	// "160 x 200 cm"
	dimensionLWPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:cm)?\s*[x×*]\s*(\d+(?:[.,]\d+)?)\s*cm`)
)

// AttributeExtractor turns free-form shopper or product text into a FacetSet.
// It holds no mutable state and may be shared between goroutines.
type AttributeExtractor struct {
	logger             *log.Logger
	enableDebugLogging bool
}

// NewAttributeExtractor creates a new attribute extractor
func NewAttributeExtractor(logger *log.Logger, enableDebugLogging bool) *AttributeExtractor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &AttributeExtractor{
		logger:             logger,
		enableDebugLogging: enableDebugLogging,
	}
}

// Extract parses text into facets. Absence of matches yields empty values, never an error.
//
// Category, subcategory and room keep the first match in table order; colors,
// materials and styles collect every canonical value whose keywords occur.
func (e *AttributeExtractor) Extract(text string) domain.FacetSet {
	facets := domain.FacetSet{
		Category:    categoryTable.first(text),
		Subcategory: subcategoryTable.first(text),
		Colors:      colorTable.all(text),
		Materials:   materialTable.all(text),
		Styles:      styleTable.all(text),
		Room:        roomTable.first(text),
		Dimensions:  extractDimensions(text),
	}

	if e.enableDebugLogging {
		e.logger.Debug("Extracted facets",
			"text", text,
			"category", facets.Category,
			"subcategory", facets.Subcategory,
			"colors", facets.Colors,
			"materials", facets.Materials,
			"styles", facets.Styles,
			"room", facets.Room,
			"dimensions", facets.Dimensions)
	}

	return facets
}

// EnrichProduct fills blank descriptive fields of a catalog product from its title.
// Fields that are already set are left untouched.
func (e *AttributeExtractor) EnrichProduct(product domain.Product) domain.Product {
	facets := e.Extract(product.Title)

	if product.Category == "" {
		product.Category = facets.Category
	}
	if product.Subcategory == "" {
		product.Subcategory = facets.Subcategory
	}
	if product.Color == "" && len(facets.Colors) > 0 {
		product.Color = facets.Colors[0]
	}
	if product.Material == "" && len(facets.Materials) > 0 {
		product.Material = facets.Materials[0]
	}
	if product.Style == "" && len(facets.Styles) > 0 {
		product.Style = facets.Styles[0]
	}
	if product.Room == "" {
		product.Room = facets.Room
	}

	return product
}

// extractDimensions returns the first dimension pattern found, formatted, or "".
// Precedence: length x width x height, then diameter, then length x width.
func extractDimensions(text string) string {
	folded := foldText(text)

	if m := dimensionLWHPattern.FindStringSubmatch(folded); m != nil {
		return fmt.Sprintf("L:%scm x l:%scm x H:%scm", m[1], m[2], m[3])
	}
	if m := dimensionDiameterPattern.FindStringSubmatch(folded); m != nil {
		return fmt.Sprintf("Ø:%scm", m[1])
	}
	if m := dimensionLWPattern.FindStringSubmatch(folded); m != nil {
		return fmt.Sprintf("L:%scm x l:%scm", m[1], m[2])
	}
	return ""
}
