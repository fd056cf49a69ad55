package sources

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"indicadores/internal/core"
)

// ErrMissingColumn is returned when a header lacks a schema column.
var ErrMissingColumn = errors.New("missing column")

// DecodeRows converts a header and string rows into a table. Numbers may use
// either "1234.5" or Brazilian "1.234,5" notation; blanks, "NA" and "NaN"
// are missing values. Rows failing the filter are dropped.
func DecodeRows(schema core.Schema, header []string, rows [][]string, filter core.Filter) (core.Table, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	col := func(name string) (int, error) {
		i, ok := idx[strings.ToLower(name)]
		if !ok {
			return -1, fmt.Errorf("%s: %w %q", schema.Dataset, ErrMissingColumn, name)
		}
		return i, nil
	}

	yearIdx, err := col(schema.YearColumn)
	if err != nil {
		return core.Table{}, err
	}
	periodIdx := -1
	if schema.PeriodColumn != "" {
		if periodIdx, err = col(schema.PeriodColumn); err != nil {
			return core.Table{}, err
		}
	}
	dimIdx := make([]int, len(schema.Dimensions))
	for i, d := range schema.Dimensions {
		if dimIdx[i], err = col(d); err != nil {
			return core.Table{}, err
		}
	}
	measureIdx := make([]int, len(schema.Measures))
	for i, m := range schema.Measures {
		if measureIdx[i], err = col(m.Name); err != nil {
			return core.Table{}, err
		}
	}

	table := core.Table{Schema: schema, Records: make([]core.Record, 0, len(rows))}
	for n, row := range rows {
		if isBlankRow(row) {
			continue
		}
		year, err := parseInt(cell(row, yearIdx))
		if err != nil {
			return core.Table{}, fmt.Errorf("%s row %d: year: %w", schema.Dataset, n+1, err)
		}
		month := 0
		if periodIdx >= 0 {
			if month, err = parseInt(cell(row, periodIdx)); err != nil {
				return core.Table{}, fmt.Errorf("%s row %d: %s: %w", schema.Dataset, n+1, schema.PeriodColumn, err)
			}
		}
		rec := core.Record{
			Year:   year,
			Month:  month,
			Dims:   make(map[string]string, len(dimIdx)),
			Values: make(map[string]float64, len(measureIdx)),
		}
		for i, d := range schema.Dimensions {
			rec.Dims[d] = strings.TrimSpace(cell(row, dimIdx[i]))
		}
		for i, m := range schema.Measures {
			v, ok, err := ParseNumber(cell(row, measureIdx[i]))
			if err != nil {
				return core.Table{}, fmt.Errorf("%s row %d: %s: %w", schema.Dataset, n+1, m.Name, err)
			}
			if ok {
				rec.Values[m.Name] = v
			}
		}
		if !filter.MatchYear(rec.Year) {
			continue
		}
		if schema.EntityColumn != "" && !filter.MatchEntity(rec.Dims[schema.EntityColumn]) {
			continue
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

// DecodeValues adapts a matrix of loosely typed cells, as returned by
// spreadsheet APIs, with the header in the first row.
func DecodeValues(schema core.Schema, values [][]any, filter core.Filter) (core.Table, error) {
	if len(values) == 0 {
		return core.Table{Schema: schema}, nil
	}
	header := ToStrings(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, v := range values[1:] {
		rows = append(rows, ToStrings(v))
	}
	return DecodeRows(schema, header, rows, filter)
}

// ToStrings renders cells as strings.
func ToStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case nil:
			out[i] = ""
		case string:
			out[i] = x
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(x)
		}
	}
	return out
}

// ParseNumber parses a numeric cell. ok is false for missing values.
func ParseNumber(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none", "-":
		return 0, false, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

func parseInt(s string) (int, error) {
	v, ok, err := ParseNumber(s)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.New("missing value")
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("not an integer: %v", v)
	}
	return int(v), nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
