// Package remote holds the error taxonomy for talk-site fetches: typed errors
// for HTTP failures and retry exhaustion, and the classifier that maps any
// fetch error to a user-facing category.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// HTTPStatusError reports a non-2xx response from the talk site.
type HTTPStatusError struct {
	Code   int
	Status string
}

func (e *HTTPStatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("request failed: %s", e.Status)
	}
	return fmt.Sprintf("request failed: status %d", e.Code)
}

// ExhaustedRetriesError is the terminal failure once every attempt has been
// spent. It carries the last attempt's error verbatim.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("download failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }

// Category is the small set of user-facing failure classes the presentation
// layer renders.
type Category int

const (
	CategoryGeneric Category = iota
	CategoryConnectivity
	CategoryTimeout
	CategoryNotFound
	CategoryServer
)

func (c Category) String() string {
	switch c {
	case CategoryConnectivity:
		return "connectivity"
	case CategoryTimeout:
		return "timeout"
	case CategoryNotFound:
		return "not-found"
	case CategoryServer:
		return "server"
	default:
		return "generic"
	}
}

// Classify maps an error to its user-facing category, preferring typed
// inspection and falling back to description matching.
func Classify(err error) Category {
	if err == nil {
		return CategoryGeneric
	}

	var status *HTTPStatusError
	if errors.As(err, &status) {
		switch {
		case status.Code == http.StatusNotFound:
			return CategoryNotFound
		case status.Code == http.StatusRequestTimeout:
			return CategoryTimeout
		case status.Code >= 500:
			return CategoryServer
		default:
			return CategoryGeneric
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	desc := strings.ToLower(err.Error())
	switch {
	case strings.Contains(desc, "timeout") || strings.Contains(desc, "timed out"):
		return CategoryTimeout
	case strings.Contains(desc, "connection refused"),
		strings.Contains(desc, "no such host"),
		strings.Contains(desc, "network is unreachable"),
		strings.Contains(desc, "connection reset"):
		return CategoryConnectivity
	case strings.Contains(desc, "404"):
		return CategoryNotFound
	default:
		return CategoryGeneric
	}
}
