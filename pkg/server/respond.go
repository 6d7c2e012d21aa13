package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/entrhq/chromectl/pkg/browser"
)

const maxBodyBytes = 1 << 20

// respondJSON writes payload as indented JSON.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

// respondError sends a structured JSON error response.
func respondError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{
		Error:     err.Error(),
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if kind := browser.KindOf(err); kind != nil {
		resp.Kind = kind.Error()
	}
	respondJSON(w, status, resp)
}

// statusFor maps a session manager error to an HTTP status.
func statusFor(err error) int {
	switch browser.KindOf(err) {
	case browser.ErrNotFound:
		return http.StatusNotFound
	case browser.ErrConfiguration, browser.ErrNavigationDenied:
		return http.StatusBadRequest
	case browser.ErrNoActivePage, browser.ErrSessionExists:
		return http.StatusConflict
	case browser.ErrConnection:
		return http.StatusBadGateway
	case browser.ErrClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondManagerError answers with the status matching err's kind.
func respondManagerError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err)
}

// decodeJSONBody decodes a size-limited JSON body into dst. An empty body
// leaves dst untouched when allowEmpty is set.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) (int, error) {
	if r.Body == nil {
		if allowEmpty {
			return 0, nil
		}
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return 0, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBodyBytes)
		}
		return http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}
	return 0, nil
}
