package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// numberedLine matches "1. ..." and "2) ..." style lines.
var numberedLine = regexp.MustCompile(`^\s*\d{1,2}[.)]\s+(.+)$`)

// stepLine matches "Step 3: ..." style lines.
var stepLine = regexp.MustCompile(`(?i)^\s*step\s*\d{1,2}[:.)]?\s+(.+)$`)

// Heuristic is the last-resort scanner: it walks the page text line by
// line looking for numbered instruction patterns. Structure is ignored
// entirely, so this only runs after every markup-based extractor came up
// empty.
func Heuristic(doc *goquery.Document) []string {
	var candidates []string

	for _, line := range strings.Split(doc.Text(), "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			candidates = append(candidates, m[1])
			continue
		}
		if m := stepLine.FindStringSubmatch(line); m != nil {
			candidates = append(candidates, m[1])
		}
	}

	return Sanitize(candidates)
}
