package search

import "strings"

// Result is one ranked entry from the host engine. The host owns the list;
// the pipeline only reads it.
type Result struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Snippet  string            `json:"snippet"`
	Rank     int               `json:"rank"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IsHTTP reports whether the URL uses a fetchable scheme. Results with
// other schemes (ftp, magnet, scheme-relative) are never offered to
// selection or fetch.
func IsHTTP(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}
