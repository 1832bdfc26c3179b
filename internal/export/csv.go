// Package export renders the catalog into flat files for downstream import.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

// csvColumns is the import-sheet column order expected by the commerce
// backend. Keep it stable; consumers match by position as well as name.
var csvColumns = []string{
	"sku", "barcode", "store", "attribute_set_code", "product_type",
	"product_websites", "link_url", "name", "meta_title", "url_key",
	"description", "short_description",
	"categories1", "categories2", "categories3", "categories",
	"raw_materials_n", "style", "color",
	"ts_dimensions_height", "ts_dimensions_width", "ts_dimensions_length",
	"weight", "manufacturer", "cost", "price", "special_price",
	"visibility", "tax_class_name", "news_from_date", "news_to_date",
	"base_image", "small_image", "swatch_image", "thumbnail_image",
	"additional_images", "product_online", "qty", "max_cart_qty",
	"out_of_stock_qty", "allow_backorders", "is_in_stock", "manage_stock",
	"vendor_score", "supplier", "mgs_brand",
}

// WriteCSV writes the products as a CSV document with a header row.
func WriteCSV(w io.Writer, products []catalog.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range products {
		if err := cw.Write(csvRow(p)); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.SKU, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(p catalog.Product) []string {
	return []string{
		p.SKU, p.Barcode, p.Store, p.AttributeSetCode, p.ProductType,
		p.ProductWebsites, p.LinkURL, p.Name, p.MetaTitle, p.URLKey,
		p.Description, p.ShortDescription,
		p.Categories1, p.Categories2, p.Categories3, p.Categories,
		p.RawMaterials, p.Style, p.Color,
		p.DimensionsHeight, p.DimensionsWidth, p.DimensionsLength,
		p.Weight, p.Manufacturer, p.Cost, p.Price, p.SpecialPrice,
		p.Visibility, p.TaxClassName, p.NewsFromDate, p.NewsToDate,
		p.BaseImage, p.SmallImage, p.SwatchImage, p.ThumbnailImage,
		p.AdditionalImages,
		strconv.Itoa(p.ProductOnline), strconv.Itoa(p.Qty),
		strconv.Itoa(p.MaxCartQty), strconv.Itoa(p.OutOfStockQty),
		strconv.Itoa(p.AllowBackorders), strconv.Itoa(p.IsInStock),
		strconv.Itoa(p.ManageStock),
		p.VendorScore, p.Supplier, p.Brand,
	}
}
