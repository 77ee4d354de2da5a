// Package requestlog records every request/response pair handled by a
// service (§4.6) and exposes query, export, and live subscription over that
// history.
package requestlog

import (
	"net/http"
	"time"
)

// Source identifies how an entry came to exist.
type Source string

// Entry sources.
const (
	SourceNormal        Source = "normal"
	SourceRecordedProxy Source = "recorded-proxy"
)

// Entry captures one handled request for a single service.
type Entry struct {
	ID             string      `json:"id"`
	Service        string      `json:"service"`
	At             time.Time   `json:"at"`
	Method         string      `json:"method"`
	Path           string      `json:"path"`
	EndpointIndex  int         `json:"endpoint_index"`
	Status         int         `json:"status"`
	DurationMs     int64       `json:"duration_ms"`
	RequestHeaders http.Header `json:"request_headers,omitempty"`
	RequestQuery   string      `json:"request_query,omitempty"`
	RequestBody    string      `json:"request_body,omitempty"`
	ResponseBody   string      `json:"response_body,omitempty"`
	Source         Source      `json:"source"`
	Error          string      `json:"error,omitempty"`
}

// maxSnippet caps embedded body text so one oversized request cannot
// balloon the in-memory log.
const maxSnippet = 4096

// Snippet truncates s to maxSnippet bytes, for storing request/response
// bodies in an Entry.
func Snippet(s string) string {
	if len(s) <= maxSnippet {
		return s
	}
	return s[:maxSnippet] + "...(truncated)"
}
