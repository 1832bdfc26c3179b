package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
	"github.com/taycommerce/abyat-crawler/internal/export"
)

type scrapeRequest struct {
	StartPage int `json:"start_page"`
}

func (s *Server) startScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if req.StartPage < 0 {
		writeError(w, http.StatusBadRequest, "start_page must be positive")
		return
	}

	if err := s.crawler.Start(req.StartPage); err != nil {
		if errors.Is(err, catalog.ErrCrawlInProgress) {
			writeError(w, http.StatusConflict, "crawl already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	startPage := req.StartPage
	if startPage == 0 {
		startPage = 1
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "started",
		"start_page": startPage,
	})
}

func (s *Server) stopScrape(w http.ResponseWriter, _ *http.Request) {
	if !s.crawler.Running() {
		writeError(w, http.StatusConflict, "no crawl in progress")
		return
	}
	s.crawler.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) scrapeStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "count products failed")
		return
	}

	running := s.crawler.Running()
	payload := map[string]any{
		"total_products": count,
		"running":        running,
		"last_updated":   nil,
	}
	if running {
		payload["current_page"] = s.crawler.CurrentPage()
	}
	if last := s.crawler.LastRun(); last != nil {
		payload["last_updated"] = last.FinishedAt
		payload["last_run"] = last
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	query := parseProductQuery(r)
	products, total, err := s.store.List(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list products failed")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func parseProductQuery(r *http.Request) catalog.ProductQuery {
	q := r.URL.Query()
	query := catalog.ProductQuery{
		Category: q.Get("category"),
		PriceMin: q.Get("price_min"),
		PriceMax: q.Get("price_max"),
		Search:   q.Get("search"),
		SortBy:   q.Get("sort_by"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		query.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		query.Limit = limit
	}
	if inStock, err := strconv.ParseBool(q.Get("in_stock")); err == nil {
		query.InStock = inStock
	}
	query.SortDesc = q.Get("order") == "desc"
	return query
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	product, err := s.store.GetBySKU(r.Context(), sku)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get product failed")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	product, err := s.store.UpdateBySKU(r.Context(), sku, fields)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update product failed")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	sku := chi.URLParam(r, "sku")
	err := s.store.DeleteBySKU(r.Context(), sku)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete product failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sku": sku, "status": "deleted"})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.Categories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list categories failed")
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "aggregate stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load products failed")
		return
	}

	filename := "catalog-" + time.Now().UTC().Format("20060102-150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	if err := export.WriteCSV(w, products); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}
