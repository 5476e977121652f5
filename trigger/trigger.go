// Package trigger parses the literal marker tokens that activate the AI
// flows. Matching is case-sensitive substring match; the token may appear
// anywhere in the query.
package trigger

import "strings"

type Query struct {
	Active  bool
	Cleaned string
}

// Parse checks raw for the given token. When present, the token and the
// whitespace around it are removed and Active is true. Pure function, no
// error conditions.
func Parse(raw, token string) Query {
	if token == "" || !strings.Contains(raw, token) {
		return Query{Active: false, Cleaned: strings.TrimSpace(raw)}
	}
	cleaned := strings.ReplaceAll(raw, token, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return Query{Active: true, Cleaned: cleaned}
}
