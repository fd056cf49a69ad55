package render

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"indicadores/internal/dashboard"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignRight},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)
}

// WriteTable prints the section grid as aligned text. Cells with a known
// variation carry it in parentheses.
func WriteTable(w io.Writer, sec dashboard.Section) error {
	g := sec.Grid()
	if len(g.Header) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(g.Rows))
	for _, r := range g.Rows {
		row := make([]string, 0, len(r.Cells)+1)
		row = append(row, r.Label)
		for _, c := range r.Cells {
			if c.Variation != "" {
				row = append(row, c.Text+" ("+c.Variation+")")
				continue
			}
			row = append(row, c.Text)
		}
		rows = append(rows, row)
	}

	t := newTable(w)
	t.Header(g.Header)
	if err := t.Bulk(rows); err != nil {
		return fmt.Errorf("table %s: %w", sec.ID, err)
	}
	return t.Render()
}

// WriteKPIs prints the headline numbers of a page.
func WriteKPIs(w io.Writer, page dashboard.Page) error {
	if len(page.KPIs) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(page.KPIs))
	for _, k := range page.KPIs {
		rows = append(rows, []string{k.Label, k.Period, k.Display(), k.VariationDisplay()})
	}
	t := newTable(w)
	t.Header([]string{"Indicador", "Período", "Valor", "Variação"})
	if err := t.Bulk(rows); err != nil {
		return fmt.Errorf("kpis: %w", err)
	}
	return t.Render()
}
