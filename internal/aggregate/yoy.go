package aggregate

import (
	"encoding/json"
	"math"
	"slices"

	"indicadores/internal/core"
)

// DefaultRoundDigits is the rounding applied to percentage variations.
const DefaultRoundDigits = 2

// Optional is a nullable number; invalid values encode as JSON null.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps a defined value.
func Some(v float64) Optional { return Optional{Value: v, Valid: true} }

func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Optional{}
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// Variation returns round((current/prior - 1) * 100, digits). It is
// undefined when prior is undefined or zero.
func Variation(current float64, prior Optional, digits int) Optional {
	if !prior.Valid || prior.Value == 0 {
		return Optional{}
	}
	v := (current/prior.Value - 1) * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Optional{}
	}
	return Some(Round(v, digits))
}

// YoY pairs a value with the same period one year earlier.
type YoY struct {
	Current   float64  `json:"current"`
	Prior     Optional `json:"prior"`
	Variation Optional `json:"variation"`
}

// Compare builds a YoY with the default rounding.
func Compare(current float64, prior Optional) YoY {
	return YoY{Current: current, Prior: prior, Variation: Variation(current, prior, DefaultRoundDigits)}
}

// YoYAt compares a pivot cell against the row one year earlier with the
// same month key. A missing prior row leaves the prior undefined.
func YoYAt(p Pivot, year, month int, col string, digits int) (YoY, bool) {
	cur, ok := p.Value(year, month, col)
	if !ok {
		return YoY{}, false
	}
	var prior Optional
	if v, ok := p.Value(year-1, month, col); ok {
		prior = Some(v)
	}
	return YoY{Current: cur, Prior: prior, Variation: Variation(cur, prior, digits)}, true
}

// VariationTable holds variations aligned to a pivot's index and columns.
type VariationTable struct {
	Name    string       `json:"name"`
	Index   []Key        `json:"index"`
	Columns []string     `json:"columns"`
	Cells   [][]Optional `json:"cells"`
}

// LagVariations computes, for every cell, the variation against the row
// keyed one year earlier with the same month. Applied to YearSnapshot it
// gives same-month YoY; applied to YearToDate it gives same-range YoY;
// applied to PeriodSeries it gives same-period YoY per group.
func LagVariations(p Pivot, digits int) VariationTable {
	out := VariationTable{
		Name:    p.Name,
		Index:   slices.Clone(p.Index),
		Columns: slices.Clone(p.Columns),
		Cells:   make([][]Optional, len(p.Index)),
	}
	rows := make(map[keyID]int, len(p.Index))
	for i, k := range p.Index {
		rows[keyID{k.Year, k.Month}] = i
	}
	for i, k := range p.Index {
		out.Cells[i] = make([]Optional, len(p.Columns))
		prev, ok := rows[keyID{k.Year - 1, k.Month}]
		if !ok {
			continue
		}
		for j := range p.Columns {
			out.Cells[i][j] = Variation(p.Cells[i][j], Some(p.Cells[prev][j]), digits)
		}
	}
	return out
}

// MonthlyRow is one (group, year, month) line of a monthly YoY table.
type MonthlyRow struct {
	Group                string   `json:"group"`
	Year                 int      `json:"ano"`
	Month                int      `json:"mes"`
	Label                string   `json:"label"`
	Value                float64  `json:"value"`
	Prior                Optional `json:"prior"`
	Variation            Optional `json:"variation"`
	Accumulated          float64  `json:"accumulated"`
	AccumulatedPrior     Optional `json:"accumulated_prior"`
	AccumulatedVariation Optional `json:"accumulated_variation"`
}

type groupPeriod struct {
	group       string
	year, month int
}

// MonthlyYoY sums obs per (group, year, month) and pairs each line with
// the same month of the previous year, both for the month value and for
// the running total since January. Rows come newest first, larger values
// first within a month.
func MonthlyYoY(obs []core.Observation, digits int) []MonthlyRow {
	sums := make(map[groupPeriod]float64)
	for _, o := range obs {
		sums[groupPeriod{o.Group, o.Year, o.Month}] += o.Value
	}

	keys := make([]groupPeriod, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b groupPeriod) int {
		if a.group != b.group {
			if a.group < b.group {
				return -1
			}
			return 1
		}
		if a.year != b.year {
			return a.year - b.year
		}
		return a.month - b.month
	})

	// keys are chronological within a group
	acc := make(map[groupPeriod]float64, len(keys))
	for i, k := range keys {
		total := sums[k]
		if i > 0 {
			p := keys[i-1]
			if p.group == k.group && p.year == k.year {
				total += acc[p]
			}
		}
		acc[k] = total
	}

	rows := make([]MonthlyRow, 0, len(keys))
	for _, k := range keys {
		r := MonthlyRow{
			Group:       k.group,
			Year:        k.year,
			Month:       k.month,
			Label:       core.MonthLabel(k.year, k.month),
			Value:       sums[k],
			Accumulated: acc[k],
		}
		if v, ok := sums[groupPeriod{k.group, k.year - 1, k.month}]; ok {
			r.Prior = Some(v)
		}
		if v, ok := accumulatedUpTo(keys, acc, groupPeriod{k.group, k.year - 1, k.month}); ok {
			r.AccumulatedPrior = Some(v)
		}
		r.Variation = Variation(r.Value, r.Prior, digits)
		r.AccumulatedVariation = Variation(r.Accumulated, r.AccumulatedPrior, digits)
		rows = append(rows, r)
	}

	slices.SortStableFunc(rows, func(a, b MonthlyRow) int {
		if a.Year != b.Year {
			return b.Year - a.Year
		}
		if a.Month != b.Month {
			return b.Month - a.Month
		}
		switch {
		case a.Value > b.Value:
			return -1
		case a.Value < b.Value:
			return 1
		}
		return 0
	})
	return rows
}

// accumulatedUpTo returns the running total of at.group in at.year at the
// last month <= at.month.
func accumulatedUpTo(keys []groupPeriod, acc map[groupPeriod]float64, at groupPeriod) (float64, bool) {
	var (
		best  groupPeriod
		found bool
	)
	for _, k := range keys {
		if k.group != at.group || k.year != at.year || k.month > at.month {
			continue
		}
		best, found = k, true
	}
	if !found {
		return 0, false
	}
	return acc[best], true
}
