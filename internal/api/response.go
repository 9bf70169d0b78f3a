// Package api implements the local HTTP control surface: a chi router
// exposing job CRUD, run/kill control, snapshot browsing, search, volume
// discovery, and a websocket upgrade for live progress, all under /api/v1.
// There is no authentication layer — amber-sub000 is a single-user local
// tool and the server is expected to bind to loopback only.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/amber-sync/amber-sub000/internal/amberr"
)

// envelope is the standard JSON response wrapper for all API responses.
//
// Success:  {"data": <payload>}
// Error:    {"error": {"kind": "...", "message": "..."}}
type envelope map[string]any

// JSON writes a JSON-encoded response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Ok writes a 200 OK response with the payload wrapped in {"data": payload}.
func Ok(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, envelope{"data": payload})
}

// Created writes a 201 Created response with the payload wrapped in {"data": payload}.
func Created(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusCreated, envelope{"data": payload})
}

// NoContent writes a 204 No Content response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// errorResponse is the shape of the "error" object in error responses. Kind
// is one of amberr.Kind's closed set, giving the frontend a stable value to
// branch on instead of parsing the message.
type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errJSON(w http.ResponseWriter, status int, kind amberr.Kind, message string) {
	JSON(w, status, envelope{
		"error": errorResponse{
			Kind:    string(kind),
			Message: message,
		},
	})
}

// ErrBadRequest writes a 400 Bad Request error response.
func ErrBadRequest(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusBadRequest, amberr.KindValidationError, message)
}

// ErrNotFound writes a 404 Not Found error response.
func ErrNotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "resource not found"
	}
	errJSON(w, http.StatusNotFound, amberr.KindNotFound, message)
}

// ErrConflict writes a 409 Conflict error response.
func ErrConflict(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusConflict, amberr.KindJob, message)
}

// ErrUnprocessable writes a 422 Unprocessable Entity error response. Used
// when the request is well-formed but fails business validation.
func ErrUnprocessable(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusUnprocessableEntity, amberr.KindValidationError, message)
}

// ErrInternal writes a 500 Internal Server Error response. The underlying
// error detail is logged by the caller but never exposed to the client.
func ErrInternal(w http.ResponseWriter) {
	errJSON(w, http.StatusInternalServerError, amberr.KindIO, "an internal error occurred")
}

// WriteError maps err's amberr.Kind (if any) onto the appropriate HTTP
// status and writes it. Errors with no recognized Kind fall back to 500.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case amberr.Is(err, amberr.KindNotFound), amberr.Is(err, amberr.KindJobNotFound):
		ErrNotFound(w, err.Error())
	case amberr.Is(err, amberr.KindInvalidPath), amberr.Is(err, amberr.KindValidationError):
		ErrUnprocessable(w, err.Error())
	case amberr.Is(err, amberr.KindPermissionDenied):
		errJSON(w, http.StatusForbidden, amberr.KindPermissionDenied, err.Error())
	default:
		ErrInternal(w)
	}
}

// decodeJSON decodes the request body into dst. Returns false and writes an
// appropriate error response if decoding fails, so callers can early-return.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		ErrBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}
