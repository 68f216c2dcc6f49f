package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"github.com/shopassist/backend/internal/domain"
	"github.com/shopassist/backend/internal/infrastructure/cache"
	"github.com/shopassist/backend/internal/infrastructure/catalog"
	"github.com/shopassist/backend/internal/usecase"
)

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	Driver   string `help:"Catalog database driver" default:"sqlite" enum:"sqlite,postgres" env:"SHOPASSIST_CATALOG_DRIVER"`
	DSN      string `help:"Catalog database file or connection URL" default:"data/catalog.db" env:"SHOPASSIST_CATALOG_DSN"`
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
}

type CatalogCLI struct {
	CommonConfig
	Load    LoadCmd    `cmd:"" help:"Load products from a JSON file into the catalog."`
	Search  SearchCmd  `cmd:"" help:"Rank a retailer's products against a shopper request."`
	Extract ExtractCmd `cmd:"" help:"Print the facets found in a piece of text."`
}

type LoadCmd struct {
	File       string `arg:"" help:"JSON file holding an array of products" type:"existingfile"`
	Retailer   string `help:"Retailer ID for products that do not carry one"`
	BatchSize  int    `help:"Products stored per transaction" default:"100"`
	NoEnrich   bool   `help:"Do not fill blank attributes from product titles" default:"false"`
	NoProgress bool   `help:"Disable progress bar" default:"false"`
	RedisURL   string `help:"Redis cache to invalidate after loading" env:"SHOPASSIST_CACHE_REDIS_URL"`
}

type SearchCmd struct {
	Retailer string `help:"Retailer ID" required:""`
	Query    string `help:"Shopper request" required:""`
	MaxPrice string `help:"Budget; products at or below it score higher"`
	Top      int    `help:"Number of products to return" default:"3"`
	MinStock int    `help:"Minimum units in stock" default:"0"`
}

type ExtractCmd struct {
	Text []string `arg:"" help:"Text to analyse"`
}

func newLogger(level string) *log.Logger {
	logger := log.New(os.Stderr)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(lvl)
	return logger
}

func openCatalog(ctx context.Context, cli *CatalogCLI, logger *log.Logger) (*catalog.Repository, error) {
	return catalog.Open(ctx, catalog.Config{Driver: cli.Driver, DSN: cli.DSN}, logger)
}

func (c *LoadCmd) Run(cli *CatalogCLI) error {
	logger := newLogger(cli.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	repo, err := openCatalog(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.File, err)
	}
	defer f.Close()

	products, err := decodeProducts(f, strings.TrimSpace(c.Retailer))
	if err != nil {
		return err
	}

	var extractor *usecase.AttributeExtractor
	if !c.NoEnrich {
		extractor = usecase.NewAttributeExtractor(logger, false)
	}

	var bar *progressbar.ProgressBar
	if !c.NoProgress {
		bar = progressbar.NewOptions(len(products),
			progressbar.OptionSetDescription("Loading products"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
		)
	}

	retailers, err := loadProducts(ctx, repo, extractor, products, c.BatchSize, bar)
	if err != nil {
		return err
	}

	if c.RedisURL != "" {
		if err := invalidateCandidates(ctx, c.RedisURL, retailers); err != nil {
			logger.Warn("Failed to invalidate cached candidates", "error", err)
		}
	}

	logger.Info("Catalog loaded", "products", len(products), "retailers", len(retailers))
	for _, retailer := range retailers {
		total, err := repo.Count(ctx, retailer)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d products in catalog\n", retailer, total)
	}
	return nil
}

// decodeProducts reads a JSON array of products, defaulting missing retailer IDs
func decodeProducts(r io.Reader, retailer string) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	for i := range products {
		products[i].RetailerID = strings.TrimSpace(products[i].RetailerID)
		if products[i].RetailerID == "" {
			products[i].RetailerID = retailer
		}
		if products[i].ID == "" || products[i].RetailerID == "" {
			return nil, fmt.Errorf("%w: product %d needs id and retailer_id", domain.ErrInvalidInput, i)
		}
	}
	return products, nil
}

// loadProducts enriches products (when extractor is set) and upserts them in
// batches. Returns the distinct retailer IDs it stored.
func loadProducts(
	ctx context.Context,
	repo domain.ProductRepository,
	extractor *usecase.AttributeExtractor,
	products []domain.Product,
	batchSize int,
	bar *progressbar.ProgressBar,
) ([]string, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	seen := make(map[string]bool)
	var retailers []string

	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))

		batch := make([]domain.Product, 0, end-start)
		for _, p := range products[start:end] {
			if extractor != nil {
				p = extractor.EnrichProduct(p)
			}
			if !seen[p.RetailerID] {
				seen[p.RetailerID] = true
				retailers = append(retailers, p.RetailerID)
			}
			batch = append(batch, p)
		}

		if err := repo.Upsert(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to store products %d-%d: %w", start, end-1, err)
		}

		if bar != nil {
			_ = bar.Add(len(batch))
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}
	return retailers, nil
}

// invalidateCandidates drops cached candidate lists of the given retailers
func invalidateCandidates(ctx context.Context, redisURL string, retailers []string) error {
	redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: redisURL})
	if err != nil {
		return err
	}
	defer redisCache.Close()

	for _, retailer := range retailers {
		if err := redisCache.DeleteByPrefix(ctx, "candidates:"+retailer+":"); err != nil {
			return err
		}
	}
	return nil
}

func (c *SearchCmd) Run(cli *CatalogCLI) error {
	logger := newLogger(cli.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	request := &domain.SearchRequest{
		RetailerID: c.Retailer,
		Query:      c.Query,
		TopN:       c.Top,
		MinStock:   c.MinStock,
	}
	if c.MaxPrice != "" {
		maxPrice, err := decimal.NewFromString(c.MaxPrice)
		if err != nil {
			return fmt.Errorf("%w: max price %q: %v", domain.ErrInvalidInput, c.MaxPrice, err)
		}
		request.MaxPrice = &maxPrice
	}

	repo, err := openCatalog(ctx, cli, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	service := usecase.NewSearchService(repo, nil, logger, usecase.SearchServiceConfig{
		MaxTopN:            max(c.Top, 1),
		EnableDebugLogging: cli.LogLevel == "debug",
	})

	response, err := service.Search(ctx, request)
	if err != nil {
		return err
	}

	return printJSON(os.Stdout, response)
}

func (c *ExtractCmd) Run(cli *CatalogCLI) error {
	extractor := usecase.NewAttributeExtractor(newLogger(cli.LogLevel), cli.LogLevel == "debug")
	return printJSON(os.Stdout, extractor.Extract(strings.Join(c.Text, " ")))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cli := &CatalogCLI{}
	ctx := kong.Parse(cli,
		kong.Name("shopassist-catalog"),
		kong.Description("Load, search and inspect ShopAssist product catalogs"),
		kong.UsageOnError(),
	)
	// Dispatch to the selected subcommand
	err := ctx.Run(cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
