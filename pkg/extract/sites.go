package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SiteRule encodes the instruction-container markup used by one recipe
// site. Adding a site is a data addition, not a control-flow change.
type SiteRule struct {
	// Name identifies the rule in logs.
	Name string

	// Match reports whether the rule applies to a page host.
	Match func(host string) bool

	// Selectors are tried in order; the first one yielding validated
	// steps wins.
	Selectors []string
}

// hostSuffix builds the usual matcher: the registered domain with or
// without subdomains.
func hostSuffix(domain string) func(string) bool {
	return func(host string) bool {
		host = strings.ToLower(host)
		return host == domain || strings.HasSuffix(host, "."+domain)
	}
}

// DefaultSiteRules is the production site registry.
var DefaultSiteRules = []SiteRule{
	{
		Name:  "allrecipes",
		Match: hostSuffix("allrecipes.com"),
		Selectors: []string{
			"div.recipe__steps ol li p",
			"li.mntl-sc-block-group--LI p",
		},
	},
	{
		Name:  "foodnetwork",
		Match: hostSuffix("foodnetwork.com"),
		Selectors: []string{
			"li.o-Method__m-Step",
			"section[data-module=recipe-method] li",
		},
	},
	{
		Name:  "seriouseats",
		Match: hostSuffix("seriouseats.com"),
		Selectors: []string{
			"div.structured-project__steps ol li p",
			"li.mntl-sc-block-group--LI p",
		},
	},
	{
		Name:  "bbcgoodfood",
		Match: hostSuffix("bbcgoodfood.com"),
		Selectors: []string{
			"section.recipe__method-steps li p",
			"div.method ol li",
		},
	},
	{
		Name:  "panlasangpinoy",
		Match: hostSuffix("panlasangpinoy.com"),
		Selectors: []string{
			"div.wprm-recipe-instruction-group li div.wprm-recipe-instruction-text",
			"li.wprm-recipe-instruction",
		},
	},
	{
		Name:  "kawalingpinoy",
		Match: hostSuffix("kawalingpinoy.com"),
		Selectors: []string{
			"div.wprm-recipe-instruction-group li div.wprm-recipe-instruction-text",
			"li.wprm-recipe-instruction",
		},
	},
	{
		Name:  "simplyrecipes",
		Match: hostSuffix("simplyrecipes.com"),
		Selectors: []string{
			"div.structured-project__steps ol li p",
			"li.mntl-sc-block-group--LI p",
		},
	},
}

// SitePattern extracts instruction steps using the first registry rule
// that matches the page host. Returns nil when no rule matches or the
// matching rule yields nothing, so the caller falls through to the
// generic parser.
func SitePattern(doc *goquery.Document, host string, rules []SiteRule) []string {
	for _, rule := range rules {
		if !rule.Match(host) {
			continue
		}
		for _, selector := range rule.Selectors {
			var candidates []string
			doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
				candidates = append(candidates, sel.Text())
			})
			if steps := Sanitize(candidates); len(steps) > 0 {
				return steps
			}
		}
	}
	return nil
}
