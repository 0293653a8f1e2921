// Package textutil provides text normalization helpers shared by the
// geocoder, the commune reference store, and the observer resolver.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips diacritics: "Saint-Étienne" -> "Saint-Etienne".
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return folded
}

// Handwriting abbreviations commonly found on the cards, expanded before any
// commune lookup. Order matters: slash forms before bare space forms.
var communeAbbreviations = []struct{ from, to string }{
	{" S/", "-SUR-"},
	{"-S/", "-SUR-"},
	{"-S-", "-SUR-"},
	{" S ", "-SUR-"},
	{" ST-", "-SAINT-"},
	{" ST ", "-SAINT-"},
	{" STE-", "-SAINTE-"},
	{" STE ", "-SAINTE-"},
}

// NormalizeCommuneName builds the canonical lookup key for a commune name:
// trimmed, uppercased, accent-folded, with handwriting abbreviations
// expanded ("ST" -> "SAINT", "STE" -> "SAINTE", "S/" -> "SUR").
func NormalizeCommuneName(name string) string {
	key := strings.ToUpper(strings.TrimSpace(Fold(name)))
	if key == "" {
		return ""
	}

	// Leading abbreviations have no preceding space; pad so the table
	// matches them too, then trim the padding and any boundary dashes.
	padded := " " + key
	for _, abbr := range communeAbbreviations {
		padded = strings.ReplaceAll(padded, abbr.from, abbr.to)
	}
	key = strings.Trim(padded, " -")
	return key
}

// SanitizeNamePart keeps only letters, digits and spaces, then trims. Used
// on transcribed observer name parts.
func SanitizeNamePart(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// LoginToken lowercases and accent-folds a name part and drops anything that
// is not a letter or digit, producing a stable username token.
func LoginToken(s string) string {
	folded := strings.ToLower(Fold(s))
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
