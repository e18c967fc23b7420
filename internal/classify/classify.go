// Package classify maps free-text goods names to canonical commodity groups.
package classify

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// OtherGroup is the fixed label for names that yield no usable token.
const OtherGroup = "سایر"

// keywords are matched in order against the folded goods name. Longer or
// more specific entries must precede shorter overlapping ones, so the sheet
// variants are listed before anything a bare "ورق" prefix could shadow.
var keywords = []string{
	"ورق گالوانیزه",
	"ورق سرد",
	"ورق گرم",
	"میلگرد",
	"تیرآهن",
	"تختال",
	"شمش",
	"کاتد",
	"کلاف",
}

// folder rewrites the Arabic codepoints that some upstream feeds use in
// place of their Persian equivalents, after NFC composition. Without this,
// the same product spelled with U+064A vs U+06CC lands in two groups.
var folder = transform.Chain(norm.NFC, runes.Map(func(r rune) rune {
	switch r {
	case 'ي': // ARABIC LETTER YEH
		return 'ی'
	case 'ك': // ARABIC LETTER KAF
		return 'ک'
	case 'ة': // ARABIC LETTER TEH MARBUTA
		return 'ه'
	}
	return r
}))

// Fold normalizes a goods name for matching. Returns the input unchanged if
// the transform fails, which for a rune-map chain it cannot in practice.
func Fold(s string) string {
	out, _, err := transform.String(folder, s)
	if err != nil {
		return s
	}
	return out
}

// Group returns the canonical commodity-group label for a goods name.
// Total and deterministic: the first matching keyword wins; otherwise the
// first token of the name (split on space or hyphen); otherwise OtherGroup.
func Group(goodsName string) string {
	name := Fold(goodsName)
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return kw
		}
	}
	token := name
	if i := strings.IndexAny(name, " -"); i >= 0 {
		token = name[:i]
	}
	if token == "" {
		return OtherGroup
	}
	return token
}
