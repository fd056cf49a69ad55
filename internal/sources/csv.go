package sources

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"indicadores/internal/core"
)

// ReadCSV loads a CSV export into a dataframe, narrows it with the filter
// and decodes it against the schema. All columns are read as strings so
// that decoding stays schema driven.
func ReadCSV(r io.Reader, schema core.Schema, filter core.Filter) (core.Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return core.Table{}, fmt.Errorf("%s: read csv: %w", schema.Dataset, df.Err)
	}

	if schema.EntityColumn != "" && len(filter.Municipalities) > 0 && hasColumn(df, schema.EntityColumn) {
		df = df.Filter(dataframe.F{
			Colname:    schema.EntityColumn,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				return filter.MatchEntity(el.String())
			},
		})
	}
	if len(filter.Years) > 0 && hasColumn(df, schema.YearColumn) {
		df = df.Filter(dataframe.F{
			Colname:    schema.YearColumn,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				y, err := strconv.Atoi(strings.TrimSpace(el.String()))
				// unparseable years are left for DecodeRows to report
				return err != nil || filter.MatchYear(y)
			},
		})
	}
	if df.Err != nil {
		return core.Table{}, fmt.Errorf("%s: filter csv: %w", schema.Dataset, df.Err)
	}

	records := df.Records()
	if len(records) == 0 {
		return core.Table{Schema: schema}, nil
	}
	return DecodeRows(schema, records[0], records[1:], filter)
}

func hasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}
