// Package search provides query sanitizing and unified search for unimem.
package search

import (
	"regexp"
	"strings"
)

var (
	ftsSpecialChars = regexp.MustCompile(`[*()":^~{}\[\]\\]`)
	ftsOperators    = regexp.MustCompile(`(?i)\b(AND|OR|NOT|NEAR)\b`)
)

// Terms strips full-text operator syntax from query and returns the bare terms.
func Terms(query string) []string {
	cleaned := ftsSpecialChars.ReplaceAllString(query, " ")
	cleaned = ftsOperators.ReplaceAllString(cleaned, " ")
	return strings.Fields(cleaned)
}

// Sanitize turns free text into a safe FTS5 MATCH expression: each term is
// quoted so the index treats it as a literal phrase. Returns "" when nothing
// searchable is left.
func Sanitize(query string) string {
	terms := Terms(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " ")
}

// Plain joins the bare terms with spaces, for engines that parse plain text.
func Plain(query string) string {
	return strings.Join(Terms(query), " ")
}
