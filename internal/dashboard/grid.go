package dashboard

import (
	"indicadores/internal/aggregate"
	"indicadores/internal/core"
)

// Grid is a section formatted for display.
type Grid struct {
	Header []string  `json:"header"`
	Rows   []GridRow `json:"rows"`
}

type GridRow struct {
	Label string     `json:"label"`
	Cells []GridCell `json:"cells"`
}

// GridCell holds a formatted value and, when known, its variation.
type GridCell struct {
	Text      string `json:"text"`
	Variation string `json:"variation,omitempty"`
	Trend     int    `json:"trend"`
}

func trend(v aggregate.Optional) int {
	switch {
	case !v.Valid || v.Value == 0:
		return 0
	case v.Value > 0:
		return 1
	default:
		return -1
	}
}

// Grid formats the section with Brazilian number conventions.
func (s Section) Grid() Grid {
	if s.Kind == KindMonthlyYoY {
		return s.monthlyGrid()
	}
	if s.Pivot == nil {
		return Grid{}
	}
	p := s.Pivot
	g := Grid{Header: append([]string{"Período"}, p.Columns...)}
	for i, k := range p.Index {
		row := GridRow{Label: k.Label, Cells: make([]GridCell, len(p.Columns))}
		for j := range p.Columns {
			c := GridCell{Text: core.FormatNumber(p.Cells[i][j], s.Decimals)}
			if s.Variations != nil {
				v := s.Variations.Cells[i][j]
				if v.Valid {
					c.Variation = core.FormatPercent(v.Value, true)
				}
				c.Trend = trend(v)
			}
			row.Cells[j] = c
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

func (s Section) monthlyGrid() Grid {
	g := Grid{Header: []string{"", "Período", "Valor", "Ano anterior", "Var. %", "Acumulado", "Acum. ano anterior", "Var. acum. %"}}
	opt := func(o aggregate.Optional) string {
		if !o.Valid {
			return "-"
		}
		return core.FormatNumber(o.Value, s.Decimals)
	}
	for _, r := range s.Rows {
		g.Rows = append(g.Rows, GridRow{
			Label: r.Group,
			Cells: []GridCell{
				{Text: r.Label},
				{Text: core.FormatNumber(r.Value, s.Decimals)},
				{Text: opt(r.Prior)},
				{Text: core.FormatPercent(r.Variation.Value, r.Variation.Valid), Trend: trend(r.Variation)},
				{Text: core.FormatNumber(r.Accumulated, s.Decimals)},
				{Text: opt(r.AccumulatedPrior)},
				{Text: core.FormatPercent(r.AccumulatedVariation.Value, r.AccumulatedVariation.Valid), Trend: trend(r.AccumulatedVariation)},
			},
		})
	}
	return g
}
