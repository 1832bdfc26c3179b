// Package extract derives product records from rendered catalog pages.
//
// The extraction rules (regexes, defaults, derivations) are deliberately
// separate from the fetching layer so they can be exercised against
// synthetic page structures in tests.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
	"github.com/taycommerce/abyat-crawler/internal/numerals"
)

// Selectors locates the product cards and pagination controls on a page.
type Selectors struct {
	Card       string
	Title      string
	Specs      string
	Price      string
	Stock      string
	Image      string
	Link       string
	PageLabel  string
	ActivePage string
}

// DefaultSelectors matches the live catalog markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:       ".impression",
		Title:      `[class*="text-[16px]"]`,
		Specs:      `div[class*="text-gray-dark"]`,
		Price:      ".price span",
		Stock:      "[data-stock-value]",
		Image:      "img",
		Link:       "a",
		PageLabel:  ".page-index h6",
		ActivePage: ".page-index.active",
	}
}

// UntitledName is the sentinel assigned to cards with no readable title.
// Records carrying it are rejected by the required-field filter.
const UntitledName = "Untitled Product"

const (
	skuPrefix   = "TAY-"
	cdnBase     = "https://cdn.abyat.com/products"
	newsWindow  = 60 * 24 * time.Hour
	availableAr = "متوفر"
)

var (
	dimensionRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)`)
	nonPriceRe  = regexp.MustCompile(`[^\d.]`)
	remainingRe = regexp.MustCompile(`تبقى\s*([0-9\x{0660}-\x{0669}]+)`)
	slugRe      = regexp.MustCompile(`[^a-z0-9]+`)
)

// PageResult is the outcome of extracting one catalog page.
type PageResult struct {
	Candidates  []catalog.Product
	HasNextPage bool
}

// Extractor turns one rendered page into candidate records.
type Extractor struct {
	selectors Selectors
	clock     catalog.Clock
}

// New builds an Extractor using the default page selectors.
func New(clock catalog.Clock) *Extractor {
	return NewWithSelectors(clock, DefaultSelectors())
}

// NewWithSelectors builds an Extractor with custom selectors.
func NewWithSelectors(clock catalog.Clock, sel Selectors) *Extractor {
	return &Extractor{selectors: sel, clock: clock}
}

// Page parses rendered HTML and returns every candidate record plus the
// pagination continuation signal. Cards that cannot be fully derived still
// yield a candidate; dropping invalid ones is the filter's job.
func (e *Extractor) Page(html string) (PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageResult{}, fmt.Errorf("parse page html: %w", err)
	}

	var result PageResult
	doc.Find(e.selectors.Card).Each(func(_ int, card *goquery.Selection) {
		result.Candidates = append(result.Candidates, e.extractCard(card))
	})
	result.HasNextPage = e.hasNextPage(doc)
	return result, nil
}

func (e *Extractor) extractCard(card *goquery.Selection) catalog.Product {
	linkURL, _ := card.Find(e.selectors.Link).First().Attr("href")
	productID := productIDFromURL(linkURL)

	name := strings.TrimSpace(card.Find(e.selectors.Title).First().Text())
	if name == "" {
		name = UntitledName
	}

	specs := card.Find(e.selectors.Specs).First().Text()
	width, height := parseDimensions(specs)

	price := nonPriceRe.ReplaceAllString(card.Find(e.selectors.Price).First().Text(), "")
	if price == "" {
		price = "0"
	}

	stockText := card.Find(e.selectors.Stock).First().Text()
	qty := parseQty(stockText)

	sku := skuPrefix + productID
	if productID == "" {
		sku = e.fallbackSKU()
	}

	baseImage, _ := card.Find(e.selectors.Image).First().Attr("src")

	now := e.clock.Now().UTC()
	p := catalog.Product{
		SKU:              sku,
		Barcode:          productID,
		LinkURL:          linkURL,
		Name:             name,
		MetaTitle:        name,
		URLKey:           sku + "-" + Slugify(name),
		Description:      name,
		ShortDescription: name,
		Categories1:      "أثاث وغرف",
		Categories2:      "أثاث غرف المعيشة",
		Categories3:      "خزائن",
		Categories:       "Home Decor/Wall Art & Mirrors",
		RawMaterials:     "خشب، زجاج",
		Style:            "عصري",
		Color:            colorFromSpecs(specs),
		DimensionsHeight: orZero(height),
		DimensionsWidth:  orZero(width),
		Manufacturer:     "مستوردة",
		Price:            price,
		NewsFromDate:     now.Format(time.RFC3339),
		NewsToDate:       now.Add(newsWindow).Format(time.RFC3339),
		BaseImage:        baseImage,
		SmallImage:       baseImage,
		SwatchImage:      baseImage,
		ThumbnailImage:   baseImage,
		AdditionalImages: additionalImages(productID),
		ProductOnline:    1,
		Qty:              qty,
		MaxCartQty:       qty,
		VendorScore:      "2",
		Supplier:         "TAY",
		Brand:            "Abyat",
	}
	if qty > 0 {
		p.IsInStock = 1
	}
	p.ApplyDefaults()
	return p
}

// hasNextPage reads every pagination index label, normalizes its numerals,
// and compares the active index against the maximum. A page with no active
// indicator means the traversal is done, not an error.
func (e *Extractor) hasNextPage(doc *goquery.Document) bool {
	maxPage := 0
	seen := false
	doc.Find(e.selectors.PageLabel).Each(func(_ int, label *goquery.Selection) {
		n, err := parsePageLabel(label.Text())
		if err != nil {
			return
		}
		if !seen || n > maxPage {
			maxPage = n
			seen = true
		}
	})
	if !seen {
		return false
	}

	active := doc.Find(e.selectors.ActivePage).First()
	if active.Length() == 0 {
		return false
	}
	current, err := parsePageLabel(active.Text())
	if err != nil {
		return false
	}
	return current < maxPage
}

func (e *Extractor) fallbackSKU() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d-%s", skuPrefix, e.clock.Now().UnixMilli(), suffix)
}

// Slugify lowercases s and collapses every run of non [a-z0-9] runes into a
// single hyphen.
func Slugify(s string) string {
	return slugRe.ReplaceAllString(strings.ToLower(s), "-")
}

func productIDFromURL(pageURL string) string {
	_, after, found := strings.Cut(pageURL, "products/")
	if !found {
		return ""
	}
	return after
}

func parseDimensions(specs string) (width, height string) {
	m := dimensionRe.FindStringSubmatch(specs)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// parseQty reads the remaining-stock phrase. The digits may be Arabic-Indic,
// so they go through the numeral normalizer before parsing.
func parseQty(stockText string) int {
	if m := remainingRe.FindStringSubmatch(stockText); m != nil {
		if qty, err := strconv.Atoi(numerals.ToASCII(m[1])); err == nil {
			return qty
		}
	}
	if strings.Contains(stockText, availableAr) {
		return 100
	}
	return 0
}

func parsePageLabel(label string) (int, error) {
	normalized := strings.TrimSpace(numerals.ToASCII(label))
	n, err := strconv.Atoi(normalized)
	if err != nil {
		return 0, fmt.Errorf("parse page label %q: %w", label, err)
	}
	return n, nil
}

func colorFromSpecs(specs string) string {
	head, _, _ := strings.Cut(specs, "|")
	return strings.TrimSpace(head)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func additionalImages(productID string) string {
	if productID == "" {
		return ""
	}
	urls := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		urls = append(urls, fmt.Sprintf("%s/%s/%s_PI_%d.png", cdnBase, productID, productID, i))
	}
	return strings.Join(urls, ",")
}
