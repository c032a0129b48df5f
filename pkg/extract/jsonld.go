package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StructuredMetadata reads schema.org recipe markup embedded in the page
// and returns its validated instruction steps. It handles flat string
// lists, HowToStep objects, and HowToSection nesting, inside top-level
// objects, arrays, and @graph containers. Malformed blocks are skipped.
func StructuredMetadata(doc *goquery.Document) []string {
	var candidates []string

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(sel.Text()), &v); err != nil {
			// Broken embedded metadata is common; try the next block
			return true
		}
		candidates = recipeInstructions(v)
		return len(candidates) == 0
	})

	return Sanitize(candidates)
}

// recipeInstructions walks a decoded JSON-LD value looking for a Recipe
// node and returns its raw instruction texts.
func recipeInstructions(v any) []string {
	switch vv := v.(type) {
	case []any:
		for _, el := range vv {
			if steps := recipeInstructions(el); len(steps) > 0 {
				return steps
			}
		}
	case map[string]any:
		if isRecipeNode(vv) {
			if steps := instructionTexts(vv["recipeInstructions"]); len(steps) > 0 {
				return steps
			}
		}
		if graph, ok := vv["@graph"]; ok {
			if steps := recipeInstructions(graph); len(steps) > 0 {
				return steps
			}
		}
	}
	return nil
}

// isRecipeNode checks the @type field, which may be a string or a list.
func isRecipeNode(m map[string]any) bool {
	switch t := m["@type"].(type) {
	case string:
		return strings.EqualFold(t, "Recipe")
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok && strings.EqualFold(s, "Recipe") {
				return true
			}
		}
	}
	return false
}

// instructionTexts flattens a recipeInstructions value into step texts.
func instructionTexts(v any) []string {
	var texts []string

	switch vv := v.(type) {
	case string:
		texts = append(texts, vv)
	case []any:
		for _, el := range vv {
			switch step := el.(type) {
			case string:
				texts = append(texts, step)
			case map[string]any:
				texts = append(texts, stepObjectTexts(step)...)
			}
		}
	case map[string]any:
		texts = append(texts, stepObjectTexts(vv)...)
	}

	return texts
}

// stepObjectTexts reads a HowToStep or HowToSection object.
func stepObjectTexts(m map[string]any) []string {
	// Sections nest their steps under itemListElement
	if items, ok := m["itemListElement"]; ok {
		return instructionTexts(items)
	}

	if text, ok := m["text"].(string); ok && text != "" {
		return []string{text}
	}
	if name, ok := m["name"].(string); ok && name != "" {
		return []string{name}
	}
	return nil
}
