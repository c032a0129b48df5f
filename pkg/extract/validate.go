package extract

import (
	"regexp"
	"strings"
)

// Validation bounds for one instruction step.
const (
	minStepLength = 8
	maxStepLength = 1000
	minStepWords  = 2
)

// quantityPattern matches ingredient lines that lead with an amount and
// unit ("2 cups flour", "1/2 tsp salt"). Instruction steps never start
// this way.
var quantityPattern = regexp.MustCompile(`(?i)^\s*\d+([\s/.,-]\d+)?\s*(cups?|tbsps?|tablespoons?|tsps?|teaspoons?|grams?|g|kgs?|kilos?|oz|ounces?|lbs?|pounds?|ml|l|liters?|litres?|cloves?|pinch(?:es)?|dash(?:es)?|cans?|slices?|pieces?|sticks?|bunch(?:es)?|sprigs?|stalks?)\b`)

// actionVerbs is the cooking vocabulary a real instruction is expected to
// contain at least one of.
var actionVerbs = []string{
	"add", "arrange", "bake", "baste", "beat", "blend", "boil", "bring",
	"broil", "brown", "brush", "check", "chill", "chop", "coat", "combine",
	"cook", "cool", "cover", "cut", "dice", "drain", "drizzle", "flip",
	"fold", "fry", "garnish", "grate", "grill", "heat", "knead", "layer",
	"let", "marinate", "mash", "melt", "mince", "mix", "place", "pour",
	"preheat", "prepare", "reduce", "refrigerate", "remove", "repeat",
	"rinse", "roast", "saute", "sauté", "season", "serve", "set", "simmer",
	"slice", "soak", "spread", "sprinkle", "steam", "stir", "strain",
	"stuff", "toast", "top", "toss", "transfer", "turn", "whisk",
}

// rejectPatterns match boilerplate that leaks out of page chrome:
// navigation, legal footers, social sharing, nutrition tables, and date
// stamps.
var rejectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)copyright|©|all rights reserved`),
	regexp.MustCompile(`(?i)skip to (content|recipe)|jump to recipe|print recipe|save recipe`),
	regexp.MustCompile(`(?i)sign (up|in)|log in|subscribe|newsletter|create (an )?account`),
	regexp.MustCompile(`(?i)privacy policy|terms of (use|service)|cookie`),
	regexp.MustCompile(`(?i)follow us|share (this|on)|pin it|tweet|facebook|instagram|pinterest|youtube`),
	regexp.MustCompile(`(?i)nutrition (facts|information)|daily value|calories per serving|\bkcal\b`),
	regexp.MustCompile(`(?i)advertisement|sponsored|read more|related (recipes|posts)|leave a (comment|review)|rate this`),
	regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4}\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ValidStep reports whether a candidate string is acceptable as one
// cooking instruction. All four conditions must hold: sane length and word
// count, no leading ingredient quantity, at least one cooking action verb,
// and no boilerplate marker.
func ValidStep(candidate string) bool {
	s := strings.TrimSpace(candidate)

	if len(s) < minStepLength || len(s) > maxStepLength {
		return false
	}
	if len(strings.Fields(s)) < minStepWords {
		return false
	}
	if quantityPattern.MatchString(s) {
		return false
	}
	if !containsActionVerb(s) {
		return false
	}
	for _, p := range rejectPatterns {
		if p.MatchString(s) {
			return false
		}
	}
	return true
}

func containsActionVerb(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && r != 'é'
	}) {
		for _, verb := range actionVerbs {
			if w == verb {
				return true
			}
		}
	}
	return false
}

// Sanitize trims, collapses whitespace, drops invalid candidates, and caps
// the result at MaxSteps. Order is preserved.
func Sanitize(candidates []string) []string {
	steps := make([]string, 0, len(candidates))
	for _, c := range candidates {
		s := whitespaceRun.ReplaceAllString(strings.TrimSpace(c), " ")
		if !ValidStep(s) {
			continue
		}
		steps = append(steps, s)
		if len(steps) == MaxSteps {
			break
		}
	}
	return steps
}
