package core

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Record is one row of a dataset as read from a source.
// A measure absent from Values is missing and never aggregated.
type Record struct {
	Year   int                `json:"ano"`
	Month  int                `json:"mes,omitempty"`
	Dims   map[string]string  `json:"dims"`
	Values map[string]float64 `json:"values"`
}

// Table is a schema plus its rows.
type Table struct {
	Schema  Schema   `json:"schema"`
	Records []Record `json:"records"`
}

// GroupSeparator joins multi-column group keys.
const GroupSeparator = " - "

func (t Table) Len() int { return len(t.Records) }

// Observations projects the table onto one measure, grouping by the given
// dimensions. With no group columns the measure name becomes the group.
func (t Table) Observations(valueCol string, groupCols ...string) ([]Observation, error) {
	if _, ok := t.Schema.Measure(valueCol); !ok {
		return nil, fmt.Errorf("%s.%s: %w", t.Schema.Dataset, valueCol, ErrUnknownColumn)
	}
	for _, g := range groupCols {
		if !t.Schema.HasDimension(g) {
			return nil, fmt.Errorf("%s.%s: %w", t.Schema.Dataset, g, ErrUnknownColumn)
		}
	}

	out := make([]Observation, 0, len(t.Records))
	parts := make([]string, len(groupCols))
	for _, r := range t.Records {
		v, ok := r.Values[valueCol]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		group := valueCol
		if len(groupCols) > 0 {
			for i, g := range groupCols {
				parts[i] = r.Dims[g]
			}
			group = strings.Join(parts, GroupSeparator)
		}
		out = append(out, Observation{Year: r.Year, Month: r.Month, Group: group, Value: v})
	}
	if err := ValidateObservations(out, t.Schema.Granularity); err != nil {
		return nil, fmt.Errorf("%s: %w", t.Schema.Dataset, err)
	}
	return out, nil
}

// Where keeps the records whose dimension dim equals one of values.
func (t Table) Where(dim string, values ...string) Table {
	out := Table{Schema: t.Schema}
	for _, r := range t.Records {
		if slices.Contains(values, r.Dims[dim]) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Apply keeps the records that pass the filter.
func (t Table) Apply(f Filter) Table {
	if f.Empty() {
		return t
	}
	out := Table{Schema: t.Schema}
	for _, r := range t.Records {
		if !f.MatchYear(r.Year) {
			continue
		}
		if t.Schema.EntityColumn != "" && !f.MatchEntity(r.Dims[t.Schema.EntityColumn]) {
			continue
		}
		out.Records = append(out.Records, r)
	}
	return out
}

// Distinct lists the sorted distinct values of a dimension.
func (t Table) Distinct(dim string) []string {
	seen := make(map[string]struct{})
	for _, r := range t.Records {
		seen[r.Dims[dim]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
