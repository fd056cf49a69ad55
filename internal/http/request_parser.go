// Package http provides HTTP server and handler implementations.
//
// This file parses query filters, pivot requests and request bodies.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"indicadores/internal/aggregate"
	"indicadores/internal/core"
	"indicadores/internal/dashboard"
)

const (
	maxBodyBytes  = 64 << 10
	maxYearSpan   = 100
	paramMunicip  = "municipios"
	paramYears    = "anos"
	paramDatasets = "datasets"
)

// RequestParser turns query strings into validated service requests
type RequestParser struct {
	validator *requestValidator
}

func NewRequestParser() *RequestParser {
	return &RequestParser{validator: newRequestValidator()}
}

// splitList accepts repeated keys and comma separated values alike.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseFilter reads municipios (names) and anos (years or "2021-2024"
// ranges). Missing keys leave the service defaults in place.
func (p *RequestParser) ParseFilter(q url.Values) (core.Filter, error) {
	f := core.Filter{Municipalities: splitList(q[paramMunicip])}
	for _, item := range splitList(q[paramYears]) {
		years, err := parseYears(item)
		if err != nil {
			return core.Filter{}, err
		}
		f.Years = append(f.Years, years...)
	}
	if err := p.validator.Struct(f); err != nil {
		return core.Filter{}, err
	}
	return f, nil
}

func parseYears(item string) ([]int, error) {
	lo, hi, isRange := strings.Cut(item, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return nil, fieldError(paramYears, "invalid year %q", item)
	}
	if !isRange {
		return []int{from}, nil
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || to < from || to-from > maxYearSpan {
		return nil, fieldError(paramYears, "invalid year range %q", item)
	}
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years, nil
}

// ParsePivotRequest reads kind, group, value, month, year, order and agg.
func (p *RequestParser) ParsePivotRequest(q url.Values) (dashboard.PivotRequest, error) {
	req := dashboard.PivotRequest{
		Kind:  dashboard.PivotKind(strings.ToLower(sanitizeInput(q.Get("kind")))),
		Group: sanitizeInput(q.Get("group")),
		Value: sanitizeInput(q.Get("value")),
	}
	if req.Kind == "" {
		req.Kind = dashboard.PivotMonthly
	}

	var err error
	if req.Month, err = intParam(q, "month"); err != nil {
		return req, err
	}
	if req.Year, err = intParam(q, "year"); err != nil {
		return req, err
	}

	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
		req.Order = aggregate.Ascending
	case "desc":
		req.Order = aggregate.Descending
	default:
		return req, fieldError("order", "must be one of: asc desc")
	}

	if raw := q.Get("agg"); raw != "" {
		if req.Agg, err = core.ParseAgg(raw); err != nil {
			return req, fieldError("agg", "must be one of: sum mean")
		}
	}

	if err := p.validator.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}

func intParam(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fieldError(key, "must be an integer")
	}
	return n, nil
}

// RequestBodyParser handles JSON and form-encoded bodies alike.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads at most maxBodyBytes of the body once.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := strings.TrimSpace(string(p.body))
	if body == "" {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(body), &p.jsonData); err != nil {
			p.err = err
		}
		return p.err
	}

	p.formData, p.err = url.ParseQuery(body)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetList returns a list from a JSON array, repeated form keys or a comma
// separated value.
func (p *RequestBodyParser) GetList(key string) []string {
	if p.jsonData != nil {
		switch val := p.jsonData[key].(type) {
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				items = append(items, stringValue(item))
			}
			return splitList(items)
		case string:
			return splitList([]string{val})
		}
		return nil
	}
	if p.formData != nil {
		return splitList(p.formData[key])
	}
	return nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
