package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeTitle produces the canonical matching key for a title: Unicode
// case folding plus whitespace collapse. Folding (rather than a plain
// lowercase) keeps titles like "Grosse Straße" and "GROSSE STRASSE" on the
// same key.
func NormalizeTitle(title string) string {
	// Casers are stateful, so build one per call.
	folded := cases.Fold().String(title)
	return strings.Join(strings.Fields(folded), " ")
}
