package dashboard

import (
	"errors"
	"fmt"

	"indicadores/internal/aggregate"
	"indicadores/internal/core"
)

// ErrUnknownSection is returned for a section id a page does not have.
var ErrUnknownSection = errors.New("unknown section")

type builder struct {
	page   Page
	focus  string
	digits int
	tables map[string]core.Table
}

func (b *builder) table(dataset string) core.Table {
	return b.tables[dataset]
}

// obs projects a loaded dataset onto one measure.
func (b *builder) obs(dataset, value string, groups ...string) ([]core.Observation, error) {
	return b.table(dataset).Observations(value, groups...)
}

// focusObs projects the focus municipality's records.
func (b *builder) focusObs(dataset, value string, groups ...string) ([]core.Observation, error) {
	t := b.table(dataset)
	return aggregate.ScopeToFocus(t, t.Schema.EntityColumn, b.focus).Observations(value, groups...)
}

// measureObs projects several measures of t with the measure label as group.
func measureObs(t core.Table, names ...string) ([]core.Observation, error) {
	var out []core.Observation
	for _, n := range names {
		m, ok := t.Schema.Measure(n)
		if !ok {
			return nil, fmt.Errorf("%s.%s: %w", t.Schema.Dataset, n, core.ErrUnknownColumn)
		}
		obs, err := t.Observations(n)
		if err != nil {
			return nil, err
		}
		for i := range obs {
			obs[i].Group = m.Label
		}
		out = append(out, obs...)
	}
	return out, nil
}

// setPeriod records the page period the first time one is resolved.
func (b *builder) setPeriod(p aggregate.Period, g core.Granularity) {
	if b.page.Period.Valid || !p.Valid {
		return
	}
	b.page.Period = p
	b.page.PeriodLabel = p.Label(g)
}

func (b *builder) pivot(id, title string, chart ChartKind, decimals int, p aggregate.Pivot) {
	if p.Empty() {
		return
	}
	p.Name = title
	b.page.Sections = append(b.page.Sections, Section{
		ID: id, Title: title, Kind: KindPivot, Chart: chart, Decimals: decimals, Pivot: &p,
	})
}

// pivotYoY adds a year indexed pivot with its lag variations.
func (b *builder) pivotYoY(id, title string, chart ChartKind, decimals int, p aggregate.Pivot) {
	if p.Empty() {
		return
	}
	p.Name = title
	v := aggregate.LagVariations(p, b.digits)
	b.page.Sections = append(b.page.Sections, Section{
		ID: id, Title: title, Kind: KindPivot, Chart: chart, Decimals: decimals, Pivot: &p, Variations: &v,
	})
}

func (b *builder) monthlyYoY(id, title string, decimals int, rows []aggregate.MonthlyRow) {
	if len(rows) == 0 {
		return
	}
	b.page.Sections = append(b.page.Sections, Section{
		ID: id, Title: title, Kind: KindMonthlyYoY, Decimals: decimals, Rows: rows,
	})
}

// categories adds the month, year to date and annual views of a breakdown.
func (b *builder) categories(id, title string, obs []core.Observation, order []string, period aggregate.Period, agg core.Agg) {
	ct := aggregate.BuildCategoryTables(obs, aggregate.CategoryOptions{
		Name:   title,
		Agg:    agg,
		Order:  order,
		Period: &period,
	})
	if !ct.Period.Valid {
		return
	}
	b.pivotYoY(id+"_mes", title+" - "+period.Label(core.Monthly), ChartBar, 0, ct.Month)
	b.pivotYoY(id+"_acumulado", title+" - acumulado", ChartBar, 0, ct.YearToDate)
	b.pivot(id+"_anual", title+" - anual", ChartBar, 0, ct.Annual)
}

// kpi adds a headline comparison of the focus column of a year indexed pivot.
func (b *builder) kpi(label string, p aggregate.Pivot, year, month, decimals int) {
	y, ok := aggregate.YoYAt(p, year, month, b.focus, b.digits)
	if !ok {
		return
	}
	row := p.RowIndex(year, month)
	b.page.KPIs = append(b.page.KPIs, KPI{
		Label:     label,
		Period:    p.Index[row].Label,
		Value:     y.Current,
		Prior:     y.Prior,
		Variation: y.Variation,
		Decimals:  decimals,
	})
}

// latestRows keeps the monthly rows of the latest year.
func latestRows(rows []aggregate.MonthlyRow, p aggregate.Period) []aggregate.MonthlyRow {
	var out []aggregate.MonthlyRow
	for _, r := range rows {
		if r.Year == p.LatestYear {
			out = append(out, r)
		}
	}
	return out
}
