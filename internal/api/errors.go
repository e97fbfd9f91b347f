package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

var (
	// ErrServerUnreachable marks transport failures where no HTTP response was received.
	ErrServerUnreachable = errors.New("server unreachable")
	// ErrUnauthorized is returned when no usable credentials are stored.
	ErrUnauthorized = errors.New("not logged in")
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status of err when it is an *Error, else 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// parseError extracts a human-readable message from an error body. A single
// message/detail/error string wins; otherwise a field-error map is flattened.
func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"message", "detail", "error"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
				e.Message = s
				return e
			}
		}

		fields := make(map[string][]string)
		for k, raw := range obj {
			var list []string
			if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
				fields[k] = list
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				fields[k] = []string{s}
			}
		}
		if len(fields) > 0 {
			e.Fields = fields
			e.Message = formatFields(fields)
			return e
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		e.Message = text
	} else {
		e.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return e
}

func formatFields(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		msg := strings.Join(fields[k], ", ")
		if k == "non_field_errors" {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, k+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// classifyTransportError turns connection-level failures into ErrServerUnreachable.
func classifyTransportError(baseURL string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isNetworkError(err) {
		return fmt.Errorf("%w: cannot connect to %s, check that the backend is running", ErrServerUnreachable, baseURL)
	}
	return err
}

var networkSignatures = []string{
	"connection refused",
	"no such host",
	"connection reset",
	"network is unreachable",
	"failed to fetch",
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range networkSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
