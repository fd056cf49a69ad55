package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"indicadores/internal/aggregate"
	"indicadores/internal/core"
	"indicadores/internal/dashboard"
)

func TestParseFilter(t *testing.T) {
	p := NewRequestParser()
	tests := []struct {
		name      string
		query     url.Values
		wantMuni  []string
		wantYears []int
		wantField string
	}{
		{
			name:  "empty",
			query: url.Values{},
		},
		{
			name:     "comma separated and repeated",
			query:    url.Values{"municipios": {"Canoas, Esteio", " Sapucaia do Sul "}},
			wantMuni: []string{"Canoas", "Esteio", "Sapucaia do Sul"},
		},
		{
			name:      "years and ranges",
			query:     url.Values{"anos": {"2019", "2021-2023"}},
			wantYears: []int{2019, 2021, 2022, 2023},
		},
		{
			name:      "control characters stripped",
			query:     url.Values{"municipios": {"Can\x00oas"}},
			wantMuni:  []string{"Canoas"},
			wantYears: nil,
		},
		{name: "not a year", query: url.Values{"anos": {"dois mil"}}, wantField: "anos"},
		{name: "open range", query: url.Values{"anos": {"2021-"}}, wantField: "anos"},
		{name: "huge range", query: url.Values{"anos": {"1-99999"}}, wantField: "anos"},
		{name: "year below bound", query: url.Values{"anos": {"1989"}}, wantField: "anos[0]"},
		{name: "name too long", query: url.Values{"municipios": {strings.Repeat("x", 81)}}, wantField: "municipios[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := p.ParseFilter(tt.query)
			if tt.wantField != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want validation error", err)
				}
				if _, ok := verr.Errors[tt.wantField]; !ok {
					t.Fatalf("fields = %v, want %q", verr.Errors, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(f.Municipalities, tt.wantMuni) {
				t.Errorf("municipalities = %q, want %q", f.Municipalities, tt.wantMuni)
			}
			if !reflect.DeepEqual(f.Years, tt.wantYears) {
				t.Errorf("years = %v, want %v", f.Years, tt.wantYears)
			}
		})
	}
}

func TestParsePivotRequest(t *testing.T) {
	p := NewRequestParser()

	req, err := p.ParsePivotRequest(url.Values{})
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if req.Kind != dashboard.PivotMonthly || req.Order != aggregate.Ascending || req.Agg != "" {
		t.Fatalf("defaults = %+v", req)
	}

	req, err = p.ParsePivotRequest(url.Values{
		"kind": {"ANNUAL"}, "group": {"pais"}, "value": {"valor_exp"},
		"year": {"2023"}, "order": {"desc"}, "agg": {"mean"},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := dashboard.PivotRequest{
		Kind: dashboard.PivotAnnual, Group: "pais", Value: "valor_exp",
		Year: 2023, Order: aggregate.Descending, Agg: core.AggMean,
	}
	if req != want {
		t.Fatalf("req = %+v, want %+v", req, want)
	}

	bad := []struct {
		query url.Values
		field string
	}{
		{url.Values{"kind": {"weekly"}}, "kind"},
		{url.Values{"month": {"0x3"}}, "month"},
		{url.Values{"month": {"13"}}, "month"},
		{url.Values{"order": {"up"}}, "order"},
		{url.Values{"agg": {"median"}}, "agg"},
	}
	for _, tt := range bad {
		_, err := p.ParsePivotRequest(tt.query)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%v: err = %v", tt.query, err)
		}
		if _, ok := verr.Errors[tt.field]; !ok {
			t.Fatalf("%v: fields = %v, want %q", tt.query, verr.Errors, tt.field)
		}
	}
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantJSON    bool
		wantReason  string
		wantList    []string
	}{
		{
			name:        "json array",
			body:        `{"reason":"nightly","datasets":["seguranca","saude_mensal"]}`,
			contentType: "application/json",
			wantJSON:    true,
			wantReason:  "nightly",
			wantList:    []string{"seguranca", "saude_mensal"},
		},
		{
			name:        "json string list",
			body:        `{"datasets":"seguranca, cnpj_total"}`,
			contentType: "application/json",
			wantJSON:    true,
			wantList:    []string{"seguranca", "cnpj_total"},
		},
		{
			name:        "form repeated keys",
			body:        "reason=ui&datasets=seguranca&datasets=cnpj_total",
			contentType: "application/x-www-form-urlencoded",
			wantReason:  "ui",
			wantList:    []string{"seguranca", "cnpj_total"},
		},
		{
			name:        "empty body",
			body:        "",
			contentType: "application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/refresh", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			p := NewRequestBodyParser(req)
			if err := p.Parse(); err != nil {
				t.Fatalf("parse: %v", err)
			}
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON = %v", p.IsJSON())
			}
			if got := p.Get("reason"); got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
			if got := p.GetList("datasets"); !reflect.DeepEqual(got, tt.wantList) {
				t.Errorf("datasets = %q, want %q", got, tt.wantList)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", strings.NewReader(`{"datasets":`))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatalf("truncated json should fail")
	}
}
