package exportcli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"indicadores/internal/dashboard"
	"indicadores/internal/render"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatXLSX  = "xlsx"
)

func (a *app) topicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "topics",
		Aliases: []string{"ls"},
		Short:   "List the available topics",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeTopics(cmd.OutOrStdout(), a.svc.Focus(), a.svc.Topics())
		},
	}
}

func writeTopics(w io.Writer, focus string, topics []dashboard.TopicInfo) error {
	if _, err := fmt.Fprintf(w, "Município em foco: %s\n\n", focus); err != nil {
		return err
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)
	table.Header([]string{"TOPIC", "TITLE", "DATASETS"})
	for _, t := range topics {
		if err := table.Append([]string{t.Slug, t.Title, strings.Join(t.Datasets, ", ")}); err != nil {
			return err
		}
	}
	return table.Render()
}

func (a *app) pageCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "page <topic>",
		Short: "Build a topic page",
		Long: `Build a topic page and write it as text tables, JSON or an Excel workbook.

Examples:
  indicadores-export page emprego
  indicadores-export page comex --format json
  indicadores-export page financas --format xlsx --out financas.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := a.filter()
			if err != nil {
				return err
			}
			page, err := a.svc.Page(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			switch format {
			case formatTable:
				err = writePageText(&buf, page)
			case formatJSON:
				enc := json.NewEncoder(&buf)
				enc.SetIndent("", "  ")
				err = enc.Encode(page)
			case formatXLSX:
				if out == "" {
					return fmt.Errorf("--out is required for xlsx")
				}
				err = render.WriteXLSX(&buf, page)
			default:
				return fmt.Errorf("unknown format %q: use table, json or xlsx", format)
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, out, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func writePageText(w io.Writer, page dashboard.Page) error {
	if _, err := fmt.Fprintf(w, "%s - %s (%s)\n\n", page.Title, page.Focus, page.PeriodLabel); err != nil {
		return err
	}
	if page.Empty() {
		_, err := fmt.Fprintln(w, "Sem dados para os filtros informados.")
		return err
	}
	if err := render.WriteKPIs(w, page); err != nil {
		return err
	}
	for _, sec := range page.Sections {
		if _, err := fmt.Fprintf(w, "\n%s [%s]\n", sec.Title, sec.ID); err != nil {
			return err
		}
		if err := render.WriteTable(w, sec); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) chartCmd() *cobra.Command {
	var out string
	var width, height float64
	cmd := &cobra.Command{
		Use:   "chart <topic> <section>",
		Short: "Plot a section as PNG",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := a.filter()
			if err != nil {
				return err
			}
			sec, err := a.svc.Section(cmd.Context(), args[0], args[1], filter)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := render.WritePNG(&buf, sec, vg.Length(width)*vg.Centimeter, vg.Length(height)*vg.Centimeter); err != nil {
				return err
			}
			return a.emit(cmd, out, buf.Bytes())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().Float64Var(&width, "width", 0, "width in centimeters (default: 24)")
	cmd.Flags().Float64Var(&height, "height", 0, "height in centimeters (default: 12)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) pivotCmd() *cobra.Command {
	var kind, group, value, month, year, order, agg string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pivot <dataset>",
		Short: "Reshape one dataset into a period by group table",
		Long: `Reshape one dataset. Kinds are monthly, snapshot, ytd and annual.

Examples:
  indicadores-export pivot seguranca --group municipio --value roubos
  indicadores-export pivot comex_mensal --kind annual --group pais --order desc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := a.filter()
			if err != nil {
				return err
			}
			q := url.Values{}
			for k, v := range map[string]string{
				"kind": kind, "group": group, "value": value,
				"month": month, "year": year, "order": order, "agg": agg,
			} {
				if v != "" {
					q.Set(k, v)
				}
			}
			req, err := a.parser.ParsePivotRequest(q)
			if err != nil {
				return err
			}
			res, err := a.svc.Pivot(cmd.Context(), args[0], filter, req)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return render.WriteTable(w, dashboard.Section{
				ID:         res.Dataset,
				Kind:       dashboard.KindPivot,
				Decimals:   2,
				Pivot:      &res.Pivot,
				Variations: res.Variations,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "kind", "", "monthly, snapshot, ytd or annual (default: monthly)")
	f.StringVar(&group, "group", "", "column that becomes the table columns")
	f.StringVar(&value, "value", "", "measure to aggregate")
	f.StringVar(&month, "month", "", "reference month for snapshot and ytd")
	f.StringVar(&year, "year", "", "latest year to include")
	f.StringVar(&order, "order", "", "asc or desc")
	f.StringVar(&agg, "agg", "", "sum or mean (default: the measure's policy)")
	f.BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

// emit writes data to path, or to the command output when path is empty.
func (a *app) emit(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	a.logger.Info("Export written", "path", path, "bytes", len(data))
	return nil
}
