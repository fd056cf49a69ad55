// Package aggregate reshapes observation rows into time-indexed pivots and
// computes year-over-year variations over them.
package aggregate

import "indicadores/internal/core"

// Period is the latest available period of a dataset.
// Valid is false for empty input; every other field is then zero.
type Period struct {
	LatestYear   int  `json:"latest_year"`
	LatestMonth  int  `json:"latest_month"`
	CompleteYear int  `json:"complete_year"`
	Valid        bool `json:"valid"`
}

// ResolvePeriod finds the latest year, the latest period inside that year
// and the last complete year. Annual data (all months zero) skips month
// resolution and is complete by definition.
func ResolvePeriod(obs []core.Observation, g core.Granularity) Period {
	if len(obs) == 0 {
		return Period{}
	}

	latest := obs[0].Year
	for _, o := range obs[1:] {
		if o.Year > latest {
			latest = o.Year
		}
	}

	months := make(map[int]struct{})
	maxMonth := 0
	for _, o := range obs {
		if o.Year != latest || o.Month == 0 {
			continue
		}
		months[o.Month] = struct{}{}
		if o.Month > maxMonth {
			maxMonth = o.Month
		}
	}

	p := Period{LatestYear: latest, LatestMonth: maxMonth, CompleteYear: latest, Valid: true}
	periods := g.PeriodsPerYear()
	if periods == 0 {
		periods = 12
	}
	if g != core.Annual && len(months) > 0 && len(months) < periods {
		p.CompleteYear = latest - 1
	}
	return p
}

// Label describes the latest period, e.g. "Jul/24".
func (p Period) Label(g core.Granularity) string {
	if !p.Valid {
		return ""
	}
	return core.PeriodLabel(g, p.LatestYear, p.LatestMonth)
}
