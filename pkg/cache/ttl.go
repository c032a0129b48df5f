package cache

import "time"

// Namespace identifies one logical cache table.
type Namespace string

const (
	// NamespacePopular holds trending recipe lists.
	NamespacePopular Namespace = "popular"

	// NamespaceSearch holds search results keyed by query + filters.
	NamespaceSearch Namespace = "search"

	// NamespaceSimilar holds similar-recipe sets keyed by recipe ID.
	NamespaceSimilar Namespace = "similar"

	// NamespaceInstructions holds extracted cooking instructions.
	NamespaceInstructions Namespace = "instructions"
)

// Fixed per-namespace TTL policy. Search results are more session-stable
// than trending lists, and instructions almost never change after a first
// successful extraction, so the longest TTL amortizes the expensive
// acquisition pipeline.
const (
	TTLPopular      = 6 * time.Hour
	TTLSearch       = 12 * time.Hour
	TTLSimilar      = 24 * time.Hour
	TTLInstructions = 30 * 24 * time.Hour

	// TTLInstructionsHeuristic applies to instruction sets produced by the
	// last-resort heuristic scanner. The validation bar is the same as for
	// the other extractors, but the structural evidence is weaker, so the
	// result is retried sooner.
	TTLInstructionsHeuristic = 7 * 24 * time.Hour
)

// TTL returns the fixed policy TTL for the namespace.
func (n Namespace) TTL() time.Duration {
	switch n {
	case NamespacePopular:
		return TTLPopular
	case NamespaceSearch:
		return TTLSearch
	case NamespaceSimilar:
		return TTLSimilar
	case NamespaceInstructions:
		return TTLInstructions
	default:
		return TTLSearch
	}
}

// String returns the namespace name used by the durable store.
func (n Namespace) String() string {
	return string(n)
}
