package client

import (
	"fmt"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
)

// APIError is a structured error payload received from the server, paired
// with the HTTP status it arrived under.
type APIError struct {
	// StatusCode is the HTTP status of the failed response.
	StatusCode int

	// Kind, Code, Message, Field and Details mirror the server's wire
	// contract. Kind may be empty when the body was not parseable.
	Kind    apperr.Kind    `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %d %s/%s: %s", e.StatusCode, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}
