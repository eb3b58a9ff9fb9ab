package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName collapses internal whitespace and upper-cases a place name so
// scraped and geocoded names compare with plain equality.
func NormalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return cases.Upper(language.AmericanEnglish).String(s)
}
