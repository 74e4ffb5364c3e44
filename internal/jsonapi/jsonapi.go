// Package jsonapi holds the request decoding and response writing shared by
// the public and admin JSON APIs.
package jsonapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const contentType = "application/json; charset=utf-8"

// RequestError is a malformed request body. Status is 400 or 413.
type RequestError struct {
	Status int
	Msg    string
	Err    error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *RequestError) Unwrap() error { return e.Err }

// AsRequestError reports the status carried by a RequestError in err's chain
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Decode reads a single JSON value from the request body into dst.
// Unknown fields are rejected so typos in admin payloads surface early.
func Decode(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return &RequestError{Status: http.StatusUnsupportedMediaType, Msg: "content type must be application/json"}
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return &RequestError{Status: http.StatusRequestEntityTooLarge, Msg: "request body too large", Err: err}
		case errors.Is(err, io.EOF):
			return &RequestError{Status: http.StatusBadRequest, Msg: "request body is empty"}
		default:
			return &RequestError{Status: http.StatusBadRequest, Msg: "malformed JSON body", Err: err}
		}
	}
	if dec.More() {
		return &RequestError{Status: http.StatusBadRequest, Msg: "request body must hold a single JSON value"}
	}
	return nil
}

// Write encodes v as the response body with status
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg}
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, map[string]string{"error": msg})
}

// NoContent writes a bare 204
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
