package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for responses outside of the 2xx range.
type APIError struct {
	Method     string
	Path       string
	StatusCode int

	// Body is the raw response body.
	Body []byte
}

// Detail returns the "detail" message of an error response, if the API sent one.
func (e *APIError) Detail() string {
	var payload struct {
		Detail string `json:"detail"`
	}

	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return ""
	}

	return payload.Detail
}

func (e *APIError) Error() string {
	message := e.Detail()
	if message == "" {
		message = http.StatusText(e.StatusCode)
	}

	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, message)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, statusCode int) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == statusCode
}

// IsUnauthorized reports whether err is an unauthorized API response.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}
