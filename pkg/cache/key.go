package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key generates a deterministic cache key from a query and filter set.
// Format: "<normalized_query>::<key1>:<val1>|<key2>:<val2>|..."
//
// The query is lower-cased and trimmed. Filter keys are sorted, and
// array-valued filters are serialized as comma-joined sorted elements,
// so two logically identical requests always produce the same key
// regardless of filter map ordering.
//
// Example:
//
//	Key("Chicken Adobo ", map[string]any{"diet": []string{"keto", "dairy-free"}, "max_time": 45})
//	=> "chicken adobo::diet:dairy-free,keto|max_time:45"
func Key(query string, filters map[string]any) string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	if len(filters) == 0 {
		return normalized + "::"
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, filterValue(filters[k])))
	}

	return normalized + "::" + strings.Join(parts, "|")
}

// filterValue canonicalizes a single filter value. Array values are sorted
// and comma-joined; everything else uses its default formatting.
func filterValue(v any) string {
	switch vv := v.(type) {
	case []string:
		sorted := make([]string, len(vv))
		copy(sorted, vv)
		sort.Strings(sorted)
		return strings.Join(sorted, ",")
	case []any:
		sorted := make([]string, 0, len(vv))
		for _, el := range vv {
			sorted = append(sorted, fmt.Sprint(el))
		}
		sort.Strings(sorted)
		return strings.Join(sorted, ",")
	default:
		return fmt.Sprint(v)
	}
}
