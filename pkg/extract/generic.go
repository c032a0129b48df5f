package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// genericSelectors are domain-agnostic instruction-container patterns,
// ordered from most to least specific.
var genericSelectors = []string{
	"[itemprop=recipeInstructions] li",
	"div.wprm-recipe-instructions li",
	"ol.recipe-instructions li",
	"div.recipe-instructions li",
	"ol.instructions li",
	"div.instructions li",
	"ol.directions li",
	"div.directions li",
	"div.method ol li",
	"div.method li",
	"[class*=instruction] li",
	"[class*=direction] li",
	"[class*=method] li",
	"[class*=steps] li",
}

// ingredientMarkers flag containers that actually hold the ingredient
// list. Class-substring selectors occasionally land on them.
var ingredientMarkers = []string{
	"ingredients",
	"you will need",
	"you'll need",
	"what you need",
	"shopping list",
}

// GenericPattern extracts instruction steps using common markup patterns,
// rejecting any container whose text begins with an ingredient-section
// marker.
func GenericPattern(doc *goquery.Document) []string {
	for _, selector := range genericSelectors {
		items := doc.Find(selector)
		if items.Length() == 0 {
			continue
		}

		if insideIngredientSection(items.First()) {
			continue
		}

		var candidates []string
		items.Each(func(_ int, sel *goquery.Selection) {
			candidates = append(candidates, sel.Text())
		})
		if steps := Sanitize(candidates); len(steps) > 0 {
			return steps
		}
	}
	return nil
}

// insideIngredientSection walks the ancestor chain looking for a container
// whose text leads with an ingredient-section marker.
func insideIngredientSection(sel *goquery.Selection) bool {
	found := false
	sel.Parents().EachWithBreak(func(_ int, ancestor *goquery.Selection) bool {
		name := goquery.NodeName(ancestor)
		if name == "body" || name == "html" {
			return false
		}
		if startsWithIngredientMarker(ancestor.Text()) {
			found = true
			return false
		}
		return true
	})
	return found
}

func startsWithIngredientMarker(text string) bool {
	head := strings.ToLower(strings.TrimSpace(text))
	if len(head) > 80 {
		head = head[:80]
	}
	for _, marker := range ingredientMarkers {
		if strings.HasPrefix(head, marker) {
			return true
		}
	}
	return false
}
