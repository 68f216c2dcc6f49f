package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"
	"github.com/shopassist/backend/internal/domain"
	"github.com/shopassist/backend/internal/infrastructure/catalog"
	"github.com/shopassist/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsJSON = `[
	{"id": "a1", "retailer_id": "r1", "title": "Canapé Oslo gris", "price": "549.90", "stock_qty": 4},
	{"id": "a2", "title": "Table basse en chêne", "category": "Salon", "price": "199", "stock_qty": 12},
	{"id": "b1", "retailer_id": "r2", "title": "Lampe Lina", "price": "49", "stock_qty": 3}
]`

func TestDecodeProducts(t *testing.T) {
	t.Run("defaults missing retailer", func(t *testing.T) {
		products, err := decodeProducts(strings.NewReader(productsJSON), "r1")
		require.NoError(t, err)
		require.Len(t, products, 3)

		assert.Equal(t, "r1", products[1].RetailerID)
		assert.Equal(t, "r2", products[2].RetailerID)
		assert.Equal(t, "549.9", products[0].Price.String())
	})

	t.Run("retailer IDs are trimmed", func(t *testing.T) {
		products, err := decodeProducts(strings.NewReader(`[{"id": "a1", "retailer_id": " r1 ", "title": "x", "price": "1"}]`), "")
		require.NoError(t, err)
		assert.Equal(t, "r1", products[0].RetailerID)
	})

	t.Run("missing retailer without default", func(t *testing.T) {
		_, err := decodeProducts(strings.NewReader(productsJSON), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := decodeProducts(strings.NewReader(`[{"retailer_id": "r1", "title": "x", "price": "1"}]`), "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := decodeProducts(strings.NewReader(`{"id": "a1"}`), "r1")
		assert.Error(t, err)
	})
}

func TestLoadProducts(t *testing.T) {
	ctx := context.Background()

	repo, err := catalog.Open(ctx, catalog.Config{
		Driver: catalog.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
	}, nil)
	require.NoError(t, err)
	defer repo.Close()

	products, err := decodeProducts(strings.NewReader(productsJSON), "r1")
	require.NoError(t, err)

	extractor := usecase.NewAttributeExtractor(log.New(io.Discard), false)
	bar := progressbar.NewOptions(len(products), progressbar.OptionSetWriter(io.Discard))

	retailers, err := loadProducts(ctx, repo, extractor, products, 2, bar)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, retailers)

	n, err := repo.Count(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sofas, err := repo.FindCandidates(ctx, domain.CandidateFilter{RetailerID: "r1", CategoryKeyword: "canapé", Limit: 10})
	require.NoError(t, err)
	require.Len(t, sofas, 1)
	assert.Equal(t, "canapé", sofas[0].Category)
	assert.Equal(t, "gris", sofas[0].Color)

	all, err := repo.FindCandidates(ctx, domain.CandidateFilter{RetailerID: "r1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Salon", all[1].Category, "existing fields are kept")
	assert.Equal(t, "bois", all[1].Material)
}

func TestLoadProductsWithoutEnrichment(t *testing.T) {
	ctx := context.Background()

	repo, err := catalog.Open(ctx, catalog.Config{
		Driver: catalog.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "catalog.db"),
	}, nil)
	require.NoError(t, err)
	defer repo.Close()

	products, err := decodeProducts(strings.NewReader(productsJSON), "r1")
	require.NoError(t, err)

	_, err = loadProducts(ctx, repo, nil, products, 0, nil)
	require.NoError(t, err)

	stored, err := repo.FindCandidates(ctx, domain.CandidateFilter{RetailerID: "r2", Limit: 10})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Empty(t, stored[0].Category)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, domain.FacetSet{Category: "canapé"}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "canapé", decoded["category"])
	assert.Contains(t, buf.String(), "\n  ")
}
