package match

import (
	"strings"
	"unicode"

	"github.com/harlowes/magpie/internal/common"
)

// noiseWords are marketing boilerplate stripped during normalization.
var noiseWords = map[string]bool{
	"new":      true,
	"sale":     true,
	"offer":    true,
	"deal":     true,
	"bargain":  true,
	"genuine":  true,
	"original": true,
	"official": true,
	"premium":  true,
	"quality":  true,
	"best":     true,
	"cheap":    true,
	"free":     true,
	"delivery": true,
	"postage":  true,
	"uk":       true,
	"stock":    true,
	"bnib":     true,
	"assorted": true,
}

// NormalizeTitle lowercases a product title, strips punctuation, marketing
// noise and unit suffixes, and collapses whitespace, producing a stable
// search query.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	var kept []string
	for _, token := range strings.Fields(b.String()) {
		if noiseWords[token] || common.IsUnitToken(token) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

// ExtractBrandModel pulls the probable brand (leading capitalized token) and
// model tokens (alphanumeric mixes like "RX-55" or "2000W") from a raw title
// for a targeted lookup. Returns "" when nothing usable is found.
func ExtractBrandModel(title string) string {
	var parts []string

	fields := strings.Fields(title)
	if len(fields) > 0 && isCapitalized(fields[0]) {
		parts = append(parts, strings.ToLower(strings.Trim(fields[0], ".,:;")))
	}

	for _, token := range fields {
		trimmed := strings.Trim(token, ".,:;()")
		if isModelToken(trimmed) {
			parts = append(parts, strings.ToLower(trimmed))
		}
	}

	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts, " ")
}

func isCapitalized(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

// isModelToken reports whether a token mixes letters and digits the way
// model numbers do, excluding plain unit measurements.
func isModelToken(s string) bool {
	if len(s) < 2 || common.IsUnitToken(strings.ToLower(s)) {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case r == '-' || r == '/':
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}
