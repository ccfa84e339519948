package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	// ErrUpstream matches failures of a service the API depends on (502).
	ErrUpstream = errors.New("upstream service failed")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode   int
	Message      string
	UpstreamCode int
}

func (e *APIError) Error() string {
	if e.UpstreamCode != 0 {
		return fmt.Sprintf("api error %d: %s (upstream code %d)", e.StatusCode, e.Message, e.UpstreamCode)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUpstream:
		return e.StatusCode == http.StatusBadGateway
	}
	return false
}
