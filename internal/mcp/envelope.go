// Package mcp exposes the tool surface over the Model Context
// Protocol: typed tool handlers on the official Go SDK, a uniform
// response envelope, and the three-tier tool manifest.
package mcp

import (
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// Envelope is the uniform response wrapper every tool returns.
type Envelope struct {
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Metadata Metadata     `json:"metadata"`
	Errors   []ErrorEntry `json:"errors,omitempty"`
}

// Metadata describes one tool invocation.
type Metadata struct {
	Count     int    `json:"count"`
	TimingMS  int64  `json:"timing_ms"`
	Operation string `json:"operation"`
}

// ErrorEntry is one structured error inside an envelope.
type ErrorEntry struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// ok builds a success envelope. count is the number of data items, not
// a truncation signal; empty result sets are still successes.
func ok(operation string, start time.Time, count int, data any) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
		Metadata: Metadata{
			Count:     count,
			TimingMS:  time.Since(start).Milliseconds(),
			Operation: operation,
		},
	}
}

// fail builds a failure envelope. data may carry the successful part of
// a partial batch.
func fail(operation string, start time.Time, data any, entries ...ErrorEntry) Envelope {
	return Envelope{
		Success: false,
		Data:    data,
		Metadata: Metadata{
			TimingMS:  time.Since(start).Milliseconds(),
			Operation: operation,
		},
		Errors: entries,
	}
}

// entryFrom renders an error into an envelope entry. Plain errors are
// classified under the fallback code so every entry carries a stable
// code.
func entryFrom(err error, fallbackCode string) ErrorEntry {
	e := errors.AsError(err, fallbackCode)
	return ErrorEntry{
		Code:        e.Code,
		Message:     e.Message,
		Details:     e.Details,
		Suggestions: e.Suggestions,
	}
}

// formatID serializes a point id for the wire. Ids are strings in
// envelopes: JS clients lose integer precision beyond 2^53.
func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// parseID parses a wire point id.
func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Validation("invalid point id %q", s).
			WithSuggestion("pass point ids as decimal strings")
	}
	return id, nil
}

// precisionHint flags ids that look like they were round-tripped
// through a JSON number: 19 digits ending in zeros is the classic
// float64 truncation shape.
func precisionHint(id string) string {
	if len(id) == 19 && strings.HasSuffix(id, "0") {
		return "19-digit ids ending in zeros usually lost precision in a JSON number; pass point ids as strings"
	}
	return ""
}
