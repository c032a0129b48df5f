// Package extract parses heterogeneous recipe pages into validated
// instruction steps.
//
// Extractors are tried in strict priority order: structured metadata
// (schema.org JSON-LD), per-site markup rules, generic instruction-list
// patterns, and finally a heuristic numbered-line scanner. All of them run
// candidates through the same validation filter.
package extract

// Source identifies which extractor produced an instruction set.
type Source string

const (
	// SourceStructuredMetadata marks steps read from embedded schema.org
	// recipe markup.
	SourceStructuredMetadata Source = "structured-metadata"

	// SourceSitePattern marks steps from a domain-specific markup rule.
	SourceSitePattern Source = "site-pattern"

	// SourceGenericPattern marks steps from domain-agnostic markup
	// patterns.
	SourceGenericPattern Source = "generic-pattern"

	// SourceHeuristic marks steps from the last-resort numbered-line
	// scanner.
	SourceHeuristic Source = "heuristic"

	// SourceFallback marks synthesized template instructions. Fallback
	// sets are never persisted.
	SourceFallback Source = "fallback-template"
)

// MaxSteps bounds the length of an instruction set.
const MaxSteps = 25

// InstructionSet is an ordered sequence of validated instruction steps.
type InstructionSet struct {
	Steps  []string `json:"steps"`
	Source Source   `json:"source"`
}

// Empty reports whether the set has no steps.
func (s InstructionSet) Empty() bool {
	return len(s.Steps) == 0
}
