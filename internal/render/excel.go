// Package render writes dashboard pages as spreadsheets and charts.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"indicadores/internal/aggregate"
	"indicadores/internal/dashboard"
)

const (
	summarySheet  = "Resumo"
	maxSheetName  = 31
	labelColWidth = 22
	valueColWidth = 16
)

// WriteXLSX writes a workbook with a summary sheet of KPIs and one sheet
// per section. Values are written as numbers; undefined variations are
// left blank.
func WriteXLSX(w io.Writer, page dashboard.Page) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	x := &workbook{f: f, bold: bold, used: map[string]bool{summarySheet: true}}
	x.summary(page)
	for _, sec := range page.Sections {
		name := x.sheetName(sec.ID)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
		switch sec.Kind {
		case dashboard.KindMonthlyYoY:
			x.monthly(name, sec)
		default:
			x.pivot(name, sec)
		}
	}
	if x.err != nil {
		return x.err
	}
	_, err = f.WriteTo(w)
	return err
}

type workbook struct {
	f    *excelize.File
	bold int
	used map[string]bool
	err  error
}

// set writes one cell, keeping the first error.
func (x *workbook) set(sheet string, col, row int, v any) {
	if x.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = x.f.SetCellValue(sheet, cell, v)
	}
	x.err = err
}

func (x *workbook) header(sheet string, row int, cols ...string) {
	for i, c := range cols {
		x.set(sheet, i+1, row, c)
	}
	if x.err != nil || len(cols) == 0 {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(cols), row)
	x.err = x.f.SetCellStyle(sheet, first, last, x.bold)
}

func (x *workbook) widths(sheet string, cols int) {
	if x.err != nil {
		return
	}
	x.err = x.f.SetColWidth(sheet, "A", "A", labelColWidth)
	if x.err == nil && cols > 1 {
		last, _ := excelize.ColumnNumberToName(cols)
		x.err = x.f.SetColWidth(sheet, "B", last, valueColWidth)
	}
}

func (x *workbook) sheetName(id string) string {
	name := strings.NewReplacer("/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-").Replace(id)
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	base := name
	for i := 2; x.used[name]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		name = base
		if len(name)+len(suffix) > maxSheetName {
			name = name[:maxSheetName-len(suffix)]
		}
		name += suffix
	}
	x.used[name] = true
	return name
}

func optional(o aggregate.Optional) any {
	if !o.Valid {
		return ""
	}
	return o.Value
}

func (x *workbook) summary(page dashboard.Page) {
	x.set(summarySheet, 1, 1, page.Title)
	x.set(summarySheet, 1, 2, "Município em foco")
	x.set(summarySheet, 2, 2, page.Focus)
	x.set(summarySheet, 1, 3, "Período")
	x.set(summarySheet, 2, 3, page.PeriodLabel)

	x.header(summarySheet, 5, "Indicador", "Período", "Valor", "Ano anterior", "Var. %")
	for i, k := range page.KPIs {
		row := 6 + i
		x.set(summarySheet, 1, row, k.Label)
		x.set(summarySheet, 2, row, k.Period)
		x.set(summarySheet, 3, row, k.Value)
		x.set(summarySheet, 4, row, optional(k.Prior))
		x.set(summarySheet, 5, row, optional(k.Variation))
	}
	x.widths(summarySheet, 5)
}

// pivot writes the values block and, beside it, the variations block.
func (x *workbook) pivot(sheet string, sec dashboard.Section) {
	p := sec.Pivot
	if p == nil {
		return
	}
	x.set(sheet, 1, 1, sec.Title)
	x.header(sheet, 2, append([]string{"Período"}, p.Columns...)...)
	for i, k := range p.Index {
		x.set(sheet, 1, i+3, k.Label)
		for j := range p.Columns {
			x.set(sheet, j+2, i+3, p.Cells[i][j])
		}
	}
	total := len(p.Columns) + 1

	if v := sec.Variations; v != nil {
		offset := len(p.Columns) + 3
		x.set(sheet, offset, 1, "Variação % em relação ao ano anterior")
		for j, c := range v.Columns {
			x.set(sheet, offset+j, 2, c)
		}
		for i := range v.Index {
			for j := range v.Columns {
				x.set(sheet, offset+j, i+3, optional(v.Cells[i][j]))
			}
		}
		total = offset + len(v.Columns) - 1
	}
	x.widths(sheet, total)
}

func (x *workbook) monthly(sheet string, sec dashboard.Section) {
	x.set(sheet, 1, 1, sec.Title)
	x.header(sheet, 2, "Grupo", "Período", "Valor", "Ano anterior", "Var. %",
		"Acumulado", "Acum. ano anterior", "Var. acum. %")
	for i, r := range sec.Rows {
		row := i + 3
		x.set(sheet, 1, row, r.Group)
		x.set(sheet, 2, row, r.Label)
		x.set(sheet, 3, row, r.Value)
		x.set(sheet, 4, row, optional(r.Prior))
		x.set(sheet, 5, row, optional(r.Variation))
		x.set(sheet, 6, row, r.Accumulated)
		x.set(sheet, 7, row, optional(r.AccumulatedPrior))
		x.set(sheet, 8, row, optional(r.AccumulatedVariation))
	}
	x.widths(sheet, 8)
}
