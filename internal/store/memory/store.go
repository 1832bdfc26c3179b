// Package memory provides an in-memory ProductStore for development/testing.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

// Store holds products in insertion order behind a mutex. It enforces the
// same uniqueness rules as the real adapters: sku, url_key and (sku, store).
type Store struct {
	mu       sync.RWMutex
	products []catalog.Product
	bySKU    map[string]int
	urlKeys  map[string]struct{}
	skuStore map[string]struct{}
}

// New constructs an empty Store.
func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.products = nil
	s.bySKU = make(map[string]int)
	s.urlKeys = make(map[string]struct{})
	s.skuStore = make(map[string]struct{})
}

// ClearAll discards every stored product.
func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// InsertBatch inserts records one by one, unordered semantics: a failing
// record never blocks the rest of the batch.
func (s *Store) InsertBatch(_ context.Context, products []catalog.Product) (catalog.BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report catalog.BatchReport
	for i, p := range products {
		if failure, ok := s.checkInsert(i, p); ok {
			report.Failures = append(report.Failures, failure)
			continue
		}
		now := time.Now().UTC()
		p.CreatedAt = now
		p.UpdatedAt = now
		s.bySKU[p.SKU] = len(s.products)
		s.urlKeys[p.URLKey] = struct{}{}
		s.skuStore[p.SKU+"\x00"+p.Store] = struct{}{}
		s.products = append(s.products, p)
		report.Inserted = append(report.Inserted, i)
	}
	return report, nil
}

func (s *Store) checkInsert(index int, p catalog.Product) (catalog.InsertFailure, bool) {
	if p.SKU == "" || p.Name == "" {
		return catalog.InsertFailure{
			Index:   index,
			Message: "validation failed: sku and name are required",
		}, true
	}
	if _, exists := s.bySKU[p.SKU]; exists {
		return catalog.InsertFailure{
			Index:     index,
			Duplicate: true,
			Field:     "sku",
			Value:     p.SKU,
			Message:   fmt.Sprintf("duplicate key: sku %q", p.SKU),
		}, true
	}
	if _, exists := s.urlKeys[p.URLKey]; exists {
		return catalog.InsertFailure{
			Index:     index,
			Duplicate: true,
			Field:     "url_key",
			Value:     p.URLKey,
			Message:   fmt.Sprintf("duplicate key: url_key %q", p.URLKey),
		}, true
	}
	if _, exists := s.skuStore[p.SKU+"\x00"+p.Store]; exists {
		return catalog.InsertFailure{
			Index:     index,
			Duplicate: true,
			Field:     "sku",
			Value:     p.SKU,
			Message:   fmt.Sprintf("duplicate key: (sku, store) (%q, %q)", p.SKU, p.Store),
		}, true
	}
	return catalog.InsertFailure{}, false
}

// Count returns the number of stored products.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

// List filters, sorts and paginates the stored products.
func (s *Store) List(_ context.Context, query catalog.ProductQuery) ([]catalog.Product, int64, error) {
	s.mu.RLock()
	matched := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if matches(p, query) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	sortProducts(matched, query)

	total := int64(len(matched))
	page, limit := query.Page, query.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []catalog.Product{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matches(p catalog.Product, q catalog.ProductQuery) bool {
	if q.Category != "" && p.Categories1 != q.Category {
		return false
	}
	if q.InStock && p.IsInStock != 1 {
		return false
	}
	price, priceOK := parsePrice(p.Price)
	if q.PriceMin != "" {
		min, err := strconv.ParseFloat(q.PriceMin, 64)
		if err == nil && (!priceOK || price < min) {
			return false
		}
	}
	if q.PriceMax != "" {
		max, err := strconv.ParseFloat(q.PriceMax, 64)
		if err == nil && (!priceOK || price > max) {
			return false
		}
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.SKU), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}

func sortProducts(products []catalog.Product, q catalog.ProductQuery) {
	less := func(a, b catalog.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch q.SortBy {
	case "name":
		less = func(a, b catalog.Product) bool { return a.Name < b.Name }
	case "sku":
		less = func(a, b catalog.Product) bool { return a.SKU < b.SKU }
	case "price":
		less = func(a, b catalog.Product) bool {
			pa, _ := parsePrice(a.Price)
			pb, _ := parsePrice(b.Price)
			return pa < pb
		}
	case "qty":
		less = func(a, b catalog.Product) bool { return a.Qty < b.Qty }
	}
	sort.SliceStable(products, func(i, j int) bool {
		if q.SortDesc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
}

func parsePrice(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetBySKU fetches one product.
func (s *Store) GetBySKU(_ context.Context, sku string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.bySKU[sku]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return s.products[idx], nil
}

// UpdateBySKU applies a partial update expressed as JSON-style field names.
func (s *Store) UpdateBySKU(_ context.Context, sku string, fields map[string]any) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.bySKU[sku]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	updated, err := applyFields(s.products[idx], fields)
	if err != nil {
		return catalog.Product{}, err
	}
	updated.SKU = sku // identity is immutable
	updated.UpdatedAt = time.Now().UTC()
	s.products[idx] = updated
	return updated, nil
}

func applyFields(p catalog.Product, fields map[string]any) (catalog.Product, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("marshal product: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return catalog.Product{}, fmt.Errorf("unmarshal product: %w", err)
	}
	for k, v := range fields {
		m[k] = v
	}
	merged, err := json.Marshal(m)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("marshal merged product: %w", err)
	}
	var out catalog.Product
	if err := json.Unmarshal(merged, &out); err != nil {
		return catalog.Product{}, fmt.Errorf("apply update fields: %w", err)
	}
	return out, nil
}

// DeleteBySKU removes one product.
func (s *Store) DeleteBySKU(_ context.Context, sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.bySKU[sku]
	if !ok {
		return catalog.ErrNotFound
	}
	p := s.products[idx]
	s.products = append(s.products[:idx], s.products[idx+1:]...)
	delete(s.bySKU, sku)
	delete(s.urlKeys, p.URLKey)
	delete(s.skuStore, p.SKU+"\x00"+p.Store)
	for i := idx; i < len(s.products); i++ {
		s.bySKU[s.products[i].SKU] = i
	}
	return nil
}

// Categories returns the distinct top-level categories.
func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.products {
		if p.Categories1 == "" {
			continue
		}
		if _, dup := seen[p.Categories1]; dup {
			continue
		}
		seen[p.Categories1] = struct{}{}
		out = append(out, p.Categories1)
	}
	sort.Strings(out)
	return out, nil
}

// Stats aggregates the stored products.
func (s *Store) Stats(_ context.Context) (catalog.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := catalog.Stats{TotalProducts: int64(len(s.products))}
	var priceSum float64
	var priced int64
	for _, p := range s.products {
		if v, ok := parsePrice(p.Price); ok {
			priceSum += v
			priced++
		}
		if p.IsInStock == 1 {
			stats.InStock++
		} else {
			stats.OutOfStock++
		}
	}
	if priced > 0 {
		stats.AveragePrice = priceSum / float64(priced)
	}
	return stats, nil
}

// All returns every stored product in insertion order.
func (s *Store) All(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// Close implements ProductStore; the memory store holds no resources.
func (s *Store) Close(_ context.Context) error { return nil }
