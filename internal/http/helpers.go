package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"indicadores/internal/core"
	"indicadores/internal/dashboard"
	"indicadores/internal/render"
	"indicadores/internal/services"
)

// statusFor maps service errors to HTTP statuses.
func statusFor(err error) int {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownTopic),
		errors.Is(err, core.ErrUnknownDataset),
		errors.Is(err, dashboard.ErrUnknownSection),
		errors.Is(err, render.ErrNoChart):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrUnknownColumn),
		errors.Is(err, dashboard.ErrInvalidPivot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrRefreshUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// publicMessage hides internal error detail from 5xx responses.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		return "internal error"
	}
	return err.Error()
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// routeName is the matched route template, used as a metrics label.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
