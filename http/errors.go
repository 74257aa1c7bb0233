package http

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIError is rendered as {"error": "..."} with its status code.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError builds an error response with the given status.
func NewAPIError(status int, message string) *APIError {
	return &APIError{StatusCode: status, Message: message}
}

var (
	ErrInvalidBody      = NewAPIError(http.StatusBadRequest, "invalid request body")
	ErrBodyTooLarge     = NewAPIError(http.StatusRequestEntityTooLarge, "request body too large")
	ErrNotFound         = NewAPIError(http.StatusNotFound, "not found")
	ErrMethodNotAllowed = NewAPIError(http.StatusMethodNotAllowed, "method not allowed")
	ErrInternal         = NewAPIError(http.StatusInternalServerError, "internal server error")
)
