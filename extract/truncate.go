package extract

import "strings"

const ellipsis = "…"

// truncateAtBoundary caps text at maxChars runes. When the cut falls
// mid-sentence it backtracks to the nearest sentence or paragraph end, as
// long as that keeps at least half the budget. Operating on runes means a
// multi-byte character is never split. A cut text ends with an ellipsis
// and still fits inside maxChars.
func truncateAtBoundary(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	if maxChars <= 1 {
		return ellipsis
	}

	cut := maxChars - 1 // room for the ellipsis
	window := string(runes[:cut])

	boundary := -1
	for _, sep := range []string{"\n\n", ". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(window, sep); idx > boundary {
			boundary = idx + len(sep) - 1
		}
	}
	if boundary >= 0 && len([]rune(window[:boundary+1])) >= maxChars/2 {
		return strings.TrimSpace(window[:boundary+1]) + ellipsis
	}
	return strings.TrimSpace(window) + ellipsis
}
