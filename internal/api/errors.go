package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any *Error with status 401.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx response from the API.
type Error struct {
	Method  string
	Path    string
	Message string
	Body    []byte
	Status  int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// StatusCode returns the HTTP status of err, or 0 when err is not an *Error.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorBody is the backend's error envelope. message is a string or a list
// of validation messages.
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

func parseErrorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return strings.TrimSpace(string(body))
	}

	var msg string
	if err := json.Unmarshal(eb.Message, &msg); err == nil && msg != "" {
		return msg
	}
	var msgs []string
	if err := json.Unmarshal(eb.Message, &msgs); err == nil && len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	return eb.Error
}
