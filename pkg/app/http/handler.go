// Package http adapts error-returning handlers to chi routes and renders
// ServiceErrors as JSON.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
)

// HandlerFunc is an http handler that reports failure by returning an error.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// ErrorResponse is the JSON body written for a failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     int    `json:"code"`
	Category string `json:"category,omitempty"`
}

// HandleError converts h into a standard http.HandlerFunc.
//
//	r.Get("/status", apphttp.HandleError(handleStatus(store)))
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			DefaultErrorHandler(w, err)
		}
	}
}

// DefaultErrorHandler maps a ServiceError to its status code. Anything else
// is reported as an opaque 500.
func DefaultErrorHandler(w http.ResponseWriter, err error) {
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		WriteJSON(w, svcErr.StatusCode(), ErrorResponse{
			Error:    svcErr.Message,
			Code:     svcErr.StatusCode(),
			Category: svcErr.Category.String(),
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: "Unexpected Service Error",
		Code:  http.StatusInternalServerError,
	})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
