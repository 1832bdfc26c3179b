// Package postgres implements the product store on PostgreSQL. Key columns
// are broken out for filtering and stats; the full record rides along as a
// JSONB payload so the schema does not chase every attribute.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

const uniqueViolation = "23505"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS products (
	sku         TEXT PRIMARY KEY,
	store       TEXT NOT NULL DEFAULT 'default',
	url_key     TEXT NOT NULL,
	name        TEXT NOT NULL,
	categories1 TEXT NOT NULL DEFAULT '',
	price       NUMERIC NOT NULL DEFAULT 0,
	qty         INTEGER NOT NULL DEFAULT 0,
	is_in_stock INTEGER NOT NULL DEFAULT 0,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT products_url_key_key UNIQUE (url_key),
	CONSTRAINT products_sku_store_key UNIQUE (sku, store)
)`

// constraint names map to the record field the violation is reported under.
var constraintFields = map[string]string{
	"products_pkey":          "sku",
	"products_url_key_key":   "url_key",
	"products_sku_store_key": "sku",
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store is a Postgres-backed catalog.ProductStore.
type Store struct {
	pool querier
}

// New connects a pool and ensures the schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure products schema: %w", err)
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	return nil
}

const insertSQL = `
INSERT INTO products (
	sku, store, url_key, name, categories1, price, qty, is_in_stock,
	payload, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

// errEncodeProduct marks a record that could not be serialized. It fails
// that record only; everything else the server did not reject is treated as
// the store being unreachable.
var errEncodeProduct = errors.New("encode product")

// InsertBatch inserts one record at a time so a unique violation fails only
// its own record, mirroring an unordered bulk write. Per-record outcomes are
// limited to errors the server reported for that row; a connection-level
// failure aborts the batch and propagates.
func (s *Store) InsertBatch(ctx context.Context, products []catalog.Product) (catalog.BatchReport, error) {
	var report catalog.BatchReport
	now := time.Now().UTC()

	for i, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		err := s.insertOne(ctx, p, now)
		if err == nil {
			report.Inserted = append(report.Inserted, i)
			continue
		}

		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			report.Failures = append(report.Failures, classifyInsertError(i, p, err))
		case errors.Is(err, errEncodeProduct):
			report.Failures = append(report.Failures, catalog.InsertFailure{Index: i, Message: err.Error()})
		default:
			return catalog.BatchReport{}, fmt.Errorf("insert products: %w", err)
		}
	}
	return report, nil
}

func (s *Store) insertOne(ctx context.Context, p catalog.Product, now time.Time) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errEncodeProduct, p.SKU, err)
	}
	_, err = s.pool.Exec(ctx, insertSQL,
		p.SKU, p.Store, p.URLKey, p.Name, p.Categories1,
		priceValue(p.Price), p.Qty, p.IsInStock,
		payload, now, now,
	)
	return err
}

// classifyInsertError maps a server-reported insert error onto a per-record
// failure: a unique violation becomes the duplicate outcome, naming the
// violated field from the constraint; any other Postgres error (check
// violation, bad value) stays a plain record error.
func classifyInsertError(index int, p catalog.Product, err error) catalog.InsertFailure {
	failure := catalog.InsertFailure{Index: index, Message: err.Error()}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		failure.Duplicate = true
		failure.Field = constraintFields[pgErr.ConstraintName]
		switch failure.Field {
		case "url_key":
			failure.Value = p.URLKey
		case "sku":
			failure.Value = p.SKU
		}
	}
	return failure
}

func priceValue(price string) float64 {
	v, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return 0
	}
	return v
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

var sortColumns = map[string]string{
	"name":       "name",
	"sku":        "sku",
	"price":      "price",
	"qty":        "qty",
	"created_at": "created_at",
}

func (s *Store) List(ctx context.Context, query catalog.ProductQuery) ([]catalog.Product, int64, error) {
	where, args := buildWhere(query)

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count filtered products: %w", err)
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}

	column, ok := sortColumns[query.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if query.SortDesc {
		direction = "DESC"
	}

	sql := fmt.Sprintf(`SELECT payload FROM products%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		where, column, direction, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func buildWhere(query catalog.ProductQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if query.Category != "" {
		add("categories1 = $%d", query.Category)
	}
	if query.InStock {
		conds = append(conds, "is_in_stock = 1")
	}
	if query.Search != "" {
		args = append(args, "%"+query.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE $%d OR sku ILIKE $%d OR payload->>'description' ILIKE $%d)", n, n, n))
	}
	if min, err := strconv.ParseFloat(query.PriceMin, 64); err == nil && query.PriceMin != "" {
		add("price >= $%d", min)
	}
	if max, err := strconv.ParseFloat(query.PriceMax, 64); err == nil && query.PriceMax != "" {
		add("price <= $%d", max)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanProducts(rows pgx.Rows) ([]catalog.Product, error) {
	var products []catalog.Product
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		var p catalog.Product
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode product payload: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func (s *Store) GetBySKU(ctx context.Context, sku string) (catalog.Product, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM products WHERE sku = $1`, sku).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product %s: %w", sku, err)
	}
	var p catalog.Product
	if err := json.Unmarshal(payload, &p); err != nil {
		return catalog.Product{}, fmt.Errorf("decode product %s: %w", sku, err)
	}
	return p, nil
}

// UpdateBySKU merges the partial update into the stored record and rewrites
// both the key columns and the payload. The sku itself is immutable.
func (s *Store) UpdateBySKU(ctx context.Context, sku string, fields map[string]any) (catalog.Product, error) {
	current, err := s.GetBySKU(ctx, sku)
	if err != nil {
		return catalog.Product{}, err
	}

	merged, err := mergeProduct(current, fields)
	if err != nil {
		return catalog.Product{}, err
	}
	merged.SKU = sku
	merged.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(merged)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("marshal product %s: %w", sku, err)
	}

	tag, err := s.pool.Exec(ctx, `
UPDATE products SET
	store = $2, url_key = $3, name = $4, categories1 = $5,
	price = $6, qty = $7, is_in_stock = $8, payload = $9, updated_at = $10
WHERE sku = $1`,
		sku, merged.Store, merged.URLKey, merged.Name, merged.Categories1,
		priceValue(merged.Price), merged.Qty, merged.IsInStock, payload, merged.UpdatedAt,
	)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("update product %s: %w", sku, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return merged, nil
}

func mergeProduct(current catalog.Product, fields map[string]any) (catalog.Product, error) {
	patch, err := json.Marshal(fields)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("marshal update fields: %w", err)
	}
	if err := json.Unmarshal(patch, &current); err != nil {
		return catalog.Product{}, fmt.Errorf("apply update fields: %w", err)
	}
	return current, nil
}

func (s *Store) DeleteBySKU(ctx context.Context, sku string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE sku = $1`, sku)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", sku, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT categories1 FROM products WHERE categories1 <> '' ORDER BY categories1`)
	if err != nil {
		return nil, fmt.Errorf("distinct categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (s *Store) Stats(ctx context.Context) (catalog.Stats, error) {
	var stats catalog.Stats
	err := s.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COALESCE(AVG(price), 0),
       COUNT(*) FILTER (WHERE is_in_stock = 1)
FROM products`).Scan(&stats.TotalProducts, &stats.AveragePrice, &stats.InStock)
	if err != nil {
		return catalog.Stats{}, fmt.Errorf("aggregate product stats: %w", err)
	}
	stats.OutOfStock = stats.TotalProducts - stats.InStock
	return stats, nil
}

func (s *Store) All(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM products ORDER BY created_at, sku`)
	if err != nil {
		return nil, fmt.Errorf("load all products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}
