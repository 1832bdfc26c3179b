package extract

import "github.com/taycommerce/abyat-crawler/internal/catalog"

// FilterAccepted drops candidates that are missing required fields: an empty
// name, an empty sku, or the untitled sentinel. Rejection is silent — it is
// not an error, and accepted records pass through unchanged.
func FilterAccepted(candidates []catalog.Product) []catalog.Product {
	accepted := make([]catalog.Product, 0, len(candidates))
	for _, c := range candidates {
		if c.Name == "" || c.SKU == "" || c.Name == UntitledName {
			continue
		}
		accepted = append(accepted, c)
	}
	return accepted
}
