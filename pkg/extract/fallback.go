package extract

import (
	"fmt"
	"net/url"
	"strings"
)

// Fallback synthesizes generic templated instructions referencing the
// source domain. Used only when every extraction strategy yields zero
// validated steps; the result is served but never persisted, so the next
// request retries real extraction.
func Fallback(pageURL string) InstructionSet {
	domain := "the original recipe site"
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		domain = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	}

	return InstructionSet{
		Source: SourceFallback,
		Steps: []string{
			fmt.Sprintf("Review the full recipe on %s for exact quantities and timing.", domain),
			"Gather and prepare all ingredients listed in the recipe before you start cooking.",
			fmt.Sprintf("Cook the dish following the step-by-step directions published on %s.", domain),
			"Taste, season as needed, and serve while hot.",
		},
	}
}
