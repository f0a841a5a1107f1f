// Package upstream holds the error type returned for failed third-party HTTP calls.
package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxBodyChars bounds how much of an upstream error body is kept.
const MaxBodyChars = 300

// Error describes a non-success response from a third-party service.
type Error struct {
	Service string
	Status  int
	Body    string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Body)
}

// FromResponse builds an Error from resp, reading at most a few KB of its body.
func FromResponse(service string, resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &Error{Service: service, Status: resp.StatusCode, Body: Truncate(string(data), MaxBodyChars)}
}

// Truncate trims whitespace and cuts s to max runes.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Status
	}
	return 0
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}
