package tracker

import (
	"regexp"
	"strings"
	"unicode"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// companySuffixes are legal-form tokens dropped from the end of a company key.
var companySuffixes = map[string]bool{
	"inc": true, "incorporated": true,
	"llc": true, "llp": true,
	"ltd": true, "limited": true,
	"corp": true, "corporation": true,
	"co": true, "company": true,
	"gmbh": true, "plc": true, "ag": true, "sa": true,
}

// titleAbbreviations expand common shorthand in position titles.
var titleAbbreviations = map[string]string{
	"sr":  "senior",
	"jr":  "junior",
	"mgr": "manager",
	"eng": "engineer",
	"dev": "developer",
}

// Clean trims and collapses whitespace, keeping case. Used for display values.
func Clean(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Normalize lowercases, trims and collapses internal whitespace.
func Normalize(s string) string {
	return strings.ToLower(Clean(s))
}

// CompanyKey returns the matching key for a company name: case, whitespace and
// punctuation insensitive, with trailing legal-form suffixes removed.
// "Acme Corp." and "ACME, Inc" both yield "acme".
func CompanyKey(company string) string {
	tokens := keyTokens(strings.ReplaceAll(company, "&", " and "))
	stripped := tokens
	for len(stripped) > 1 && companySuffixes[stripped[len(stripped)-1]] {
		stripped = stripped[:len(stripped)-1]
	}
	return strings.Join(stripped, " ")
}

// PositionKey returns the matching key for a position title.
func PositionKey(position string) string {
	tokens := keyTokens(position)
	for i, tok := range tokens {
		if full, ok := titleAbbreviations[tok]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}

// keyTokens lowercases s and splits it on anything that is not a letter or digit.
func keyTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
