package domain

import "strings"

// StatusMaxLen is the column width of the journal status audit field.
const StatusMaxLen = 255

// statusEllipsis marks a truncated status string.
const statusEllipsis = "..."

// AppendStatus appends a clause to a journal status audit string and trims
// the result to StatusMaxLen. The status field is append-only: new facts
// are concatenated onto whatever is already recorded, and when the result
// exceeds the column width it is cut back at a word boundary and ends with
// the ellipsis marker.
func AppendStatus(existing, clause string) string {
	return ShortenStatus(existing + clause)
}

// ShortenStatus trims s to at most StatusMaxLen characters. Strings that
// fit are returned unchanged; longer ones are cut at the last word
// boundary that leaves room for the ellipsis marker.
func ShortenStatus(s string) string {
	if len(s) <= StatusMaxLen {
		return s
	}

	limit := StatusMaxLen - len(statusEllipsis)
	cut := s[:limit]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + statusEllipsis
}
