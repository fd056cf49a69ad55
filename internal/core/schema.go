package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	AggSum  Agg = "sum"
	AggMean Agg = "mean"
)

// Agg is the policy used to combine duplicate observations of one cell.
type Agg string

// ParseAgg accepts "sum", "mean" or empty (sum).
func ParseAgg(s string) (Agg, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sum":
		return AggSum, nil
	case "mean", "avg":
		return AggMean, nil
	}
	return "", fmt.Errorf("unsupported aggregation %q", s)
}

// Measure is a numeric column and the way it aggregates.
type Measure struct {
	Name  string
	Label string
	Agg   Agg
}

// Schema describes the columns of one dataset.
type Schema struct {
	Dataset      string
	Title        string
	SheetID      string
	YearColumn   string
	PeriodColumn string
	EntityColumn string
	Granularity  Granularity
	Dimensions   []string
	Measures     []Measure
	// Orders holds fixed display orders keyed by dimension.
	Orders map[string][]string
}

// Measure looks up a measure by name.
func (s Schema) Measure(name string) (Measure, bool) {
	for _, m := range s.Measures {
		if m.Name == name {
			return m, true
		}
	}
	return Measure{}, false
}

func (s Schema) HasDimension(name string) bool {
	return slices.Contains(s.Dimensions, name)
}

// Order returns the explicit category order for a dimension, if any.
func (s Schema) Order(dim string) []string {
	return s.Orders[dim]
}

// Columns returns the header in storage order.
func (s Schema) Columns() []string {
	cols := []string{s.YearColumn}
	if s.PeriodColumn != "" {
		cols = append(cols, s.PeriodColumn)
	}
	cols = append(cols, s.Dimensions...)
	for _, m := range s.Measures {
		cols = append(cols, m.Name)
	}
	return cols
}

func (s Schema) Validate() error {
	var errs []error
	if s.Dataset == "" {
		errs = append(errs, errors.New("dataset name is required"))
	}
	if s.YearColumn == "" {
		errs = append(errs, errors.New("year column is required"))
	}
	if !s.Granularity.IsValid() {
		errs = append(errs, fmt.Errorf("invalid granularity %q", s.Granularity))
	}
	if s.Granularity != Annual && s.PeriodColumn == "" {
		errs = append(errs, fmt.Errorf("%s data needs a period column", s.Granularity))
	}
	if s.EntityColumn != "" && !s.HasDimension(s.EntityColumn) {
		errs = append(errs, fmt.Errorf("entity column %q is not a dimension", s.EntityColumn))
	}
	if len(s.Measures) == 0 {
		errs = append(errs, errors.New("at least one measure is required"))
	}
	for _, m := range s.Measures {
		if m.Agg != AggSum && m.Agg != AggMean {
			errs = append(errs, fmt.Errorf("measure %q: invalid aggregation %q", m.Name, m.Agg))
		}
	}
	for dim := range s.Orders {
		if !s.HasDimension(dim) {
			errs = append(errs, fmt.Errorf("order for unknown dimension %q", dim))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("schema %s: %w", s.Dataset, errors.Join(errs...))
	}
	return nil
}
