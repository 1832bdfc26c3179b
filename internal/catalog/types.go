// Package catalog defines core types shared across subsystems.
package catalog

import (
	"errors"
	"time"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrCrawlInProgress is returned when a start request races an active run.
	ErrCrawlInProgress = errors.New("crawl already in progress")
	// ErrNotFound is returned by stores when a product lookup misses.
	ErrNotFound = errors.New("product not found")
)

// Default attribute values applied to records that omit them.
const (
	DefaultStore            = "default"
	DefaultAttributeSetCode = "default"
	DefaultProductType      = "simple"
	DefaultProductWebsites  = "base"
	DefaultVisibility       = "catalog,search"
	DefaultTaxClassName     = "Taxable Goods"
)

// Product is the unit persisted and queried. Commerce attributes are free
// form text; quantity and flag fields are integers. The sku, url_key and
// (sku, store) pair are unique across the store.
type Product struct {
	SKU                string `json:"sku" bson:"sku"`
	Barcode            string `json:"barcode,omitempty" bson:"barcode,omitempty"`
	Store              string `json:"store" bson:"store"`
	AttributeSetCode   string `json:"attribute_set_code" bson:"attribute_set_code"`
	ProductType        string `json:"product_type" bson:"product_type"`
	ProductWebsites    string `json:"product_websites" bson:"product_websites"`
	LinkURL            string `json:"link_url,omitempty" bson:"link_url,omitempty"`
	Name               string `json:"name" bson:"name"`
	MetaTitle          string `json:"meta_title,omitempty" bson:"meta_title,omitempty"`
	URLKey             string `json:"url_key" bson:"url_key"`
	Description        string `json:"description,omitempty" bson:"description,omitempty"`
	ShortDescription   string `json:"short_description,omitempty" bson:"short_description,omitempty"`
	Categories1        string `json:"categories1,omitempty" bson:"categories1,omitempty"`
	Categories2        string `json:"categories2,omitempty" bson:"categories2,omitempty"`
	Categories3        string `json:"categories3,omitempty" bson:"categories3,omitempty"`
	Categories         string `json:"categories,omitempty" bson:"categories,omitempty"`
	RawMaterials       string `json:"raw_materials_n,omitempty" bson:"raw_materials_n,omitempty"`
	Style              string `json:"style,omitempty" bson:"style,omitempty"`
	Color              string `json:"color,omitempty" bson:"color,omitempty"`
	DimensionsHeight   string `json:"ts_dimensions_height,omitempty" bson:"ts_dimensions_height,omitempty"`
	DimensionsWidth    string `json:"ts_dimensions_width,omitempty" bson:"ts_dimensions_width,omitempty"`
	DimensionsLength   string `json:"ts_dimensions_length,omitempty" bson:"ts_dimensions_length,omitempty"`
	Weight             string `json:"weight,omitempty" bson:"weight,omitempty"`
	Manufacturer       string `json:"manufacturer,omitempty" bson:"manufacturer,omitempty"`
	Cost               string `json:"cost,omitempty" bson:"cost,omitempty"`
	Price              string `json:"price" bson:"price"`
	SpecialPrice       string `json:"special_price,omitempty" bson:"special_price,omitempty"`
	Visibility         string `json:"visibility" bson:"visibility"`
	TaxClassName       string `json:"tax_class_name" bson:"tax_class_name"`
	NewsFromDate       string `json:"news_from_date,omitempty" bson:"news_from_date,omitempty"`
	NewsToDate         string `json:"news_to_date,omitempty" bson:"news_to_date,omitempty"`
	BaseImage          string `json:"base_image,omitempty" bson:"base_image,omitempty"`
	SmallImage         string `json:"small_image,omitempty" bson:"small_image,omitempty"`
	SwatchImage        string `json:"swatch_image,omitempty" bson:"swatch_image,omitempty"`
	ThumbnailImage     string `json:"thumbnail_image,omitempty" bson:"thumbnail_image,omitempty"`
	AdditionalImages   string `json:"additional_images,omitempty" bson:"additional_images,omitempty"`
	ProductOnline      int    `json:"product_online" bson:"product_online"`
	Qty                int    `json:"qty" bson:"qty"`
	MaxCartQty         int    `json:"max_cart_qty" bson:"max_cart_qty"`
	OutOfStockQty      int    `json:"out_of_stock_qty" bson:"out_of_stock_qty"`
	AllowBackorders    int    `json:"allow_backorders" bson:"allow_backorders"`
	IsInStock          int    `json:"is_in_stock" bson:"is_in_stock"`
	ManageStock        int    `json:"manage_stock" bson:"manage_stock"`
	VendorScore        string `json:"vendor_score,omitempty" bson:"vendor_score,omitempty"`
	Supplier           string `json:"supplier,omitempty" bson:"supplier,omitempty"`
	Brand              string `json:"mgs_brand,omitempty" bson:"mgs_brand,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" bson:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// ApplyDefaults fills the schema defaults on fields left empty by extraction.
func (p *Product) ApplyDefaults() {
	if p.Store == "" {
		p.Store = DefaultStore
	}
	if p.AttributeSetCode == "" {
		p.AttributeSetCode = DefaultAttributeSetCode
	}
	if p.ProductType == "" {
		p.ProductType = DefaultProductType
	}
	if p.ProductWebsites == "" {
		p.ProductWebsites = DefaultProductWebsites
	}
	if p.Visibility == "" {
		p.Visibility = DefaultVisibility
	}
	if p.TaxClassName == "" {
		p.TaxClassName = DefaultTaxClassName
	}
	if p.ManageStock == 0 {
		p.ManageStock = 1
	}
}

// RunState is the lifecycle state of the crawl controller.
type RunState string

// Controller states. Failed runs always settle back to idle.
const (
	RunStateIdle    RunState = "idle"
	RunStateRunning RunState = "running"
)

// RunSummary aggregates one completed crawl run.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartPage  int           `json:"start_page"`
	PagesSeen  int           `json:"pages_seen"`
	Successful int           `json:"successful"`
	Duplicates int           `json:"duplicates"`
	Errors     int           `json:"errors"`
	Rejected   int           `json:"rejected"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Failed     bool          `json:"failed"`
	ErrorText  string        `json:"error_text,omitempty"`
}

// InsertFailure describes one record a store could not commit.
// Duplicate failures carry the colliding key field and value.
type InsertFailure struct {
	Index     int
	Duplicate bool
	Field     string
	Value     string
	Message   string
}

// BatchReport is the per-record outcome of an unordered batch insert.
// Every input index appears exactly once, either in Inserted or in a failure.
type BatchReport struct {
	Inserted []int
	Failures []InsertFailure
}

// DuplicateRecord pairs a record with the uniqueness violation it hit.
type DuplicateRecord struct {
	Product Product `json:"product"`
	Field   string  `json:"field"`
	Value   string  `json:"value"`
	Message string  `json:"message"`
}

// ErrorRecord pairs a record with a generic persistence failure.
type ErrorRecord struct {
	Product Product `json:"product"`
	Message string  `json:"message"`
}

// BulkResult partitions an ingested batch three ways, preserving the input
// order within each partition. It is ephemeral: summarized, then discarded.
type BulkResult struct {
	Successful []Product         `json:"successful"`
	Duplicates []DuplicateRecord `json:"duplicates"`
	Errors     []ErrorRecord     `json:"errors"`
}

// BulkSummary is the logged roll-up of a BulkResult.
type BulkSummary struct {
	TotalProcessed  int `json:"total_processed"`
	SuccessfulCount int `json:"successful_count"`
	DuplicateCount  int `json:"duplicate_count"`
	ErrorCount      int `json:"error_count"`
}

// Summary computes counts over the three partitions.
func (r BulkResult) Summary() BulkSummary {
	return BulkSummary{
		TotalProcessed:  len(r.Successful) + len(r.Duplicates) + len(r.Errors),
		SuccessfulCount: len(r.Successful),
		DuplicateCount:  len(r.Duplicates),
		ErrorCount:      len(r.Errors),
	}
}

// ProductQuery captures list/search filters for the read API.
type ProductQuery struct {
	Page      int
	Limit     int
	Category  string
	PriceMin  string
	PriceMax  string
	InStock   bool
	Search    string
	SortBy    string
	SortDesc  bool
}

// Stats is the aggregate view served by the statistics endpoint.
type Stats struct {
	TotalProducts int64   `json:"total_products"`
	AveragePrice  float64 `json:"average_price"`
	InStock       int64   `json:"in_stock"`
	OutOfStock    int64   `json:"out_of_stock"`
}
