// Package catalog stores retailer product catalogs in SQLite or PostgreSQL and
// serves the candidate lists the search service ranks.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/shopassist/backend/internal/domain"
	"github.com/shopassist/backend/internal/textnorm"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultRetryAttempts = 3

// Config holds catalog connection configuration
type Config struct {
	Driver        string // "sqlite" or "postgres"
	DSN           string // file path for sqlite, connection URL for postgres
	RetryAttempts uint
}

// Repository implements domain.ProductRepository over database/sql
type Repository struct {
	db            *sql.DB
	driver        string
	logger        *log.Logger
	retryAttempts uint
}

// Open connects to the catalog database and creates the schema if needed
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	sqlDriver, err := sqlDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%w: catalog dsn is required", domain.ErrInvalidInput)
	}

	if cfg.Driver == DriverSQLite {
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(sqlDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// One writer at a time; avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	}

	r := &Repository{
		db:            db,
		driver:        cfg.Driver,
		logger:        logger,
		retryAttempts: cfg.RetryAttempts,
	}
	if r.retryAttempts == 0 {
		r.retryAttempts = defaultRetryAttempts
	}

	if err := r.withRetry(ctx, "ping", func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	if err := r.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}

	logger.Info("Catalog database ready", "driver", cfg.Driver)
	return r, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("%w: unsupported catalog driver %q", domain.ErrInvalidInput, driver)
	}
}

// ensureDir creates the parent directory of a sqlite database file
func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

func (r *Repository) createSchema(ctx context.Context) error {
	priceType, scoreType := "TEXT", "REAL"
	if r.driver == DriverPostgres {
		priceType, scoreType = "NUMERIC(12,2)", "DOUBLE PRECISION"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			retailer_id TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			subcategory TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			material TEXT NOT NULL DEFAULT '',
			fabric TEXT NOT NULL DEFAULT '',
			style TEXT NOT NULL DEFAULT '',
			room TEXT NOT NULL DEFAULT '',
			price %s NOT NULL DEFAULT 0,
			stock_qty INTEGER NOT NULL DEFAULT 0,
			confidence_score %s NOT NULL DEFAULT 0,
			search_text TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (retailer_id, id)
		)`, priceType, scoreType),
		"CREATE INDEX IF NOT EXISTS idx_products_retailer_stock ON products(retailer_id, stock_qty)",
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

const productColumns = `id, retailer_id, title, category, subcategory, color, material,
	fabric, style, room, price, stock_qty, confidence_score`

// FindCandidates returns a retailer's products with at least MinStock units,
// optionally narrowed to those whose title, category or subcategory mention
// CategoryKeyword at a word start. Results are ordered by id.
func (r *Repository) FindCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.Product, error) {
	if strings.TrimSpace(filter.RetailerID) == "" {
		return nil, fmt.Errorf("%w: retailer_id is required", domain.ErrInvalidInput)
	}

	query := "SELECT " + productColumns + " FROM products WHERE retailer_id = ? AND stock_qty >= ?"
	args := []any{filter.RetailerID, filter.MinStock}

	if term := textnorm.Term(filter.CategoryKeyword); term != "" {
		query += " AND search_text LIKE ?"
		args = append(args, "% "+term+"%")
	}

	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var products []domain.Product
	err := r.withRetry(ctx, "find candidates", func() error {
		found, err := r.queryProducts(ctx, r.rebind(query), args...)
		if err != nil {
			return err
		}
		products = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Loaded candidates",
		"retailer", filter.RetailerID,
		"category", filter.CategoryKeyword,
		"count", len(products))

	return products, nil
}

func (r *Repository) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.RetailerID, &p.Title, &p.Category, &p.Subcategory, &p.Color, &p.Material,
			&p.Fabric, &p.Style, &p.Room, &p.Price, &p.StockQty, &p.ConfidenceScore,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Upsert inserts or replaces products in a single transaction
func (r *Repository) Upsert(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	for i, p := range products {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.RetailerID) == "" {
			return fmt.Errorf("%w: product %d needs id and retailer_id", domain.ErrInvalidInput, i)
		}
	}

	return r.withRetry(ctx, "upsert", func() error {
		return r.upsertTx(ctx, products)
	})
}

func (r *Repository) upsertTx(ctx context.Context, products []domain.Product) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.rebind(`
		INSERT INTO products (
			id, retailer_id, title, category, subcategory, color, material,
			fabric, style, room, price, stock_qty, confidence_score, search_text, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (retailer_id, id) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			subcategory = excluded.subcategory,
			color = excluded.color,
			material = excluded.material,
			fabric = excluded.fabric,
			style = excluded.style,
			room = excluded.room,
			price = excluded.price,
			stock_qty = excluded.stock_qty,
			confidence_score = excluded.confidence_score,
			search_text = excluded.search_text,
			updated_at = excluded.updated_at
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range products {
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.RetailerID, p.Title, p.Category, p.Subcategory, p.Color, p.Material,
			p.Fabric, p.Style, p.Room, p.Price, p.StockQty, p.ConfidenceScore,
			searchText(p), now,
		); err != nil {
			return fmt.Errorf("failed to store product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("Stored products", "count", len(products))
	return nil
}

// Count returns the number of products stored for a retailer
func (r *Repository) Count(ctx context.Context, retailerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT COUNT(*) FROM products WHERE retailer_id = ?"), retailerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// searchText is the folded form of the fields the category filter looks at
func searchText(p domain.Product) string {
	return textnorm.TokenSpace(strings.Join([]string{p.Title, p.Category, p.Subcategory}, " "))
}

// rebind rewrites ? placeholders to $1, $2... for postgres
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// withRetry retries op with exponential backoff. Invalid input and context
// cancellation are returned immediately.
func (r *Repository) withRetry(ctx context.Context, name string, op func() error) error {
	return retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(r.retryAttempts),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded) &&
				!errors.Is(err, domain.ErrInvalidInput)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("Retrying catalog operation",
				"operation", name,
				"attempt", n+1,
				"max_attempts", r.retryAttempts,
				"error", err)
		}),
	)
}
