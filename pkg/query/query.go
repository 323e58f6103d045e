// Package query captures the user's search term for a single request.
//
// A Query distinguishes three states: no query parameter at all, a query
// parameter that is blank, and a query with content. Error policy depends on
// that distinction, so the states are never collapsed into one flag.
package query

import (
	"html"
	"strings"
)

// MarkerDelimiter is the sequence the template layer uses to delimit markers
// such as ###LLL:error_emptyQuery###.
const MarkerDelimiter = "###"

// escapedMarkerDelimiter is MarkerDelimiter encoded as HTML entities. It
// renders identically in a browser but is never resolved as a marker.
const escapedMarkerDelimiter = "&#35;&#35;&#35;"

// Query is the captured search term. The zero value is a null query.
type Query struct {
	raw       *string
	sanitized string
}

// Capture builds a Query from the raw request parameter. A nil raw means the
// parameter was not sent at all.
func Capture(raw *string) Query {
	if raw == nil {
		return Query{}
	}
	value := *raw
	return Query{
		raw:       &value,
		sanitized: CleanKeywords(value),
	}
}

// FromString captures a query that was supplied.
func FromString(raw string) Query {
	return Capture(&raw)
}

// Raw returns the raw parameter value and whether it was supplied.
func (q Query) Raw() (string, bool) {
	if q.raw == nil {
		return "", false
	}
	return *q.raw, true
}

// Sanitized returns the keyword-cleaned query, safe for HTML output and free
// of template marker delimiters.
func (q Query) Sanitized() string {
	return q.sanitized
}

// IsNull reports whether no query parameter was supplied.
func (q Query) IsNull() bool {
	return q.raw == nil
}

// IsEmptyString reports whether a query parameter was supplied but is blank.
func (q Query) IsEmptyString() bool {
	return q.raw != nil && strings.TrimSpace(*q.raw) == ""
}

// HasContent reports whether the query carries search terms.
func (q Query) HasContent() bool {
	return q.raw != nil && !q.IsEmptyString()
}

// String returns the sanitized query.
func (q Query) String() string {
	return q.sanitized
}

// CleanKeywords normalizes a user supplied keyword string: surrounding
// whitespace is trimmed, internal whitespace runs collapse to a single
// space, HTML special characters are escaped and finally the marker
// delimiter is escaped.
func CleanKeywords(keywords string) string {
	cleaned := strings.Join(strings.Fields(keywords), " ")
	cleaned = html.EscapeString(cleaned)
	return EscapeMarkers(cleaned)
}

// EscapeMarkers replaces every marker delimiter in s with its entity encoded
// form.
func EscapeMarkers(s string) string {
	return strings.ReplaceAll(s, MarkerDelimiter, escapedMarkerDelimiter)
}
