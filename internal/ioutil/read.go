package ioutil

import (
	"fmt"
	"io"
	"strings"
)

// ReadSnippet reads at most limit bytes of r for use in error messages.
// Whitespace runs are collapsed and a truncated body ends in "...". A read
// failure is described rather than dropped.
func ReadSnippet(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}

	truncated := int64(len(body)) > limit
	if truncated {
		body = body[:limit]
	}

	snippet := strings.Join(strings.Fields(string(body)), " ")
	if truncated {
		snippet += "..."
	}
	return snippet
}
