package hierarchy

import (
	"strings"
	"unicode"
)

// slugify converts a title into a snake_case filename stem: lowercase
// alphanumerics pass through, runs of anything else collapse to a single
// underscore, and leading/trailing underscores are trimmed.
//
// Grounded on
// _examples/original_source/crates/diaryx/src/cli/normalize.rs's slugify.
func slugify(title string) string {
	var b strings.Builder
	lastWasUnderscore := true // avoid a leading underscore
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			lastWasUnderscore = false
		} else if !lastWasUnderscore {
			b.WriteByte('_')
			lastWasUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
