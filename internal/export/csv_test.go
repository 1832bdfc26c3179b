package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	p := catalog.Product{
		SKU:    "TAY-77",
		Name:   "Round Mirror",
		URLKey: "tay-77-round-mirror",
		Price:  "499.00",
		Qty:    12,
	}
	p.IsInStock = 1
	p.ApplyDefaults()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []catalog.Product{p}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(records))
	}

	header, row := records[0], records[1]
	if len(header) != len(csvColumns) {
		t.Fatalf("header width = %d, want %d", len(header), len(csvColumns))
	}
	if len(row) != len(header) {
		t.Fatalf("row width = %d, want %d", len(row), len(header))
	}

	byName := make(map[string]string, len(header))
	for i, col := range header {
		byName[col] = row[i]
	}
	checks := map[string]string{
		"sku":            "TAY-77",
		"name":           "Round Mirror",
		"url_key":        "tay-77-round-mirror",
		"price":          "499.00",
		"qty":            "12",
		"is_in_stock":    "1",
		"store":          catalog.DefaultStore,
		"product_type":   catalog.DefaultProductType,
		"tax_class_name": catalog.DefaultTaxClassName,
	}
	for col, want := range checks {
		if byName[col] != want {
			t.Errorf("%s = %q, want %q", col, byName[col], want)
		}
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("rows = %d, want header only", len(records))
	}
}
