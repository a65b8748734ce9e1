package common

import "regexp"

// unitTokenPattern matches quantity/unit tokens like "200ml", "1.5kg",
// "3x", "24pk" that carry no matching signal.
var unitTokenPattern = regexp.MustCompile(`^\d+(\.\d+)?(ml|cl|l|g|kg|mm|cm|m|w|v|pk|pc|pcs|x)?$`)

// IsUnitToken reports whether a lowercase token is a bare quantity or a
// quantity-with-unit measurement.
func IsUnitToken(token string) bool {
	return unitTokenPattern.MatchString(token)
}
