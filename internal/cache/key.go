package cache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// AggregatedKey builds the canonical cache key for an aggregated-price
// lookup. Per the normalization contract, the datacenter is case-folded and
// the item ids are filtered to positives, deduplicated, sorted ascending,
// and rejoined — so [3,1,2] and [1,2,3] (and repeats) collide on the same
// key, making normalization idempotent and order-independent.
func AggregatedKey(datacenter string, itemIDs []int) string {
	dc := strings.ToLower(strings.TrimSpace(datacenter))

	seen := make(map[int]struct{}, len(itemIDs))
	ids := make([]int, 0, len(itemIDs))
	for _, id := range itemIDs {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}

	return Policies[ClassAggregated].KeyPrefix + ":" + dc + ":" + strings.Join(parts, ",")
}

// DataCentersKey is the fixed cache key for the datacenter list endpoint.
func DataCentersKey() string {
	return Policies[ClassDataCenters].KeyPrefix + ":all"
}

// WorldsKey is the fixed cache key for the world list endpoint.
func WorldsKey() string {
	return Policies[ClassWorlds].KeyPrefix + ":all"
}

// EdgeSyntheticURL produces the synthetic URL form of a cache key
// (<origin>/__cache/<escaped key>). The in-process edge tier does not use
// it: it indexes entries by the raw cache key.
func EdgeSyntheticURL(origin, key string) string {
	return strings.TrimRight(origin, "/") + "/__cache/" + url.QueryEscape(key)
}

// RevalidationKey namespaces a background revalidation fetch so it does not
// share a coalescer slot with in-band requests for the same key.
func RevalidationKey(key string) string {
	return "revalidate:" + key
}
