// Package dedup assigns batch-unique URL keys to product records.
package dedup

import (
	"fmt"

	"github.com/taycommerce/abyat-crawler/internal/catalog"
)

// AssignURLKeys returns a copy of the batch in which every url_key is unique
// within the batch. Collisions are resolved by suffixing "-1", "-2", … onto
// the original base key in input order. This pass is batch-scoped only:
// a key that later collides with an already-persisted record is reported as
// a duplicate by the ingestor, never renamed a second time.
func AssignURLKeys(batch []catalog.Product) []catalog.Product {
	assigned := make(map[string]struct{}, len(batch))
	out := make([]catalog.Product, len(batch))
	for i, p := range batch {
		base := p.URLKey
		key := base
		for counter := 1; ; counter++ {
			if _, taken := assigned[key]; !taken {
				break
			}
			key = fmt.Sprintf("%s-%d", base, counter)
		}
		assigned[key] = struct{}{}
		p.URLKey = key
		out[i] = p
	}
	return out
}
