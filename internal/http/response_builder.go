// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and the mapping
// from ledger errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"keuangan/internal/ledger"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
	// Durable is only sent for persistence failures, where it is false: the
	// change is applied in memory but not yet on disk.
	Durable *bool `json:"durable,omitempty"`
	Records any   `json:"records,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// LedgerError maps an engine error to a response: rejected input is 422, a
// missing position 404, an unreadable source 503 and a persistence failure
// 500 with durable=false.
// records, when not nil, is the in-memory state after a failed persist.
func LedgerError(err error, records any) *JSONResponseBuilder {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrIndexOutOfRange):
		return NotFoundError(err.Error())
	case errors.Is(err, ledger.ErrUnreadableSource):
		return ErrorResponse(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ledger.ErrPersistence):
		durable := false
		return NewJSONResponse().
			Status(http.StatusInternalServerError).
			Body(errorBody{Error: err.Error(), Durable: &durable, Records: records})
	default:
		return ErrorResponse(http.StatusInternalServerError, err.Error())
	}
}
