// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for responses: JSON payloads,
// file downloads and the error envelope shared by every API route.

package http

import (
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"strconv"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// NoStore marks the response as not cacheable.
func (b *ResponseBuilder) NoStore() *ResponseBuilder {
	return b.Header("Cache-Control", "no-store")
}

// JSON sets the body to the encoding of v.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body, b.err = json.Marshal(v)
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *ResponseBuilder) BodyHTML(html string) *ResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Attachment sets the body to a downloadable file.
func (b *ResponseBuilder) Attachment(filename, contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	b.body = content
	return b
}

// Inline sets the body to content rendered by the browser, such as images.
func (b *ResponseBuilder) Inline(contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = content
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.body) > 0 {
		w.Header().Set("Content-Length", strconv.Itoa(len(b.body)))
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// JSONError creates the JSON error envelope for a status.
func JSONError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		NoStore().
		JSON(ErrorResponse{Error: http.StatusText(statusCode), Message: message, Code: statusCode})
}

// ValidationFailed creates a 400 with the offending fields.
func ValidationFailed(v *ValidationError) *ResponseBuilder {
	return NewResponse().
		Status(http.StatusBadRequest).
		NoStore().
		JSON(ErrorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Message: "invalid request parameters",
			Code:    http.StatusBadRequest,
			Fields:  v.Errors,
		})
}

// HTMLError creates an error response with HTML formatting.
// The message is HTML-escaped for safety.
func HTMLError(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}
