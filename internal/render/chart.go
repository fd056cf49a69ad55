package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"indicadores/internal/core"
	"indicadores/internal/dashboard"
)

// ErrNoChart is returned for sections without a chartable pivot.
var ErrNoChart = errors.New("section has no chart")

const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 5 * vg.Inch

	// maxSeries caps the lines of a line chart; columns past it are dropped.
	maxSeries = 8
	maxTicks  = 12
)

var barColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// WritePNG draws a section as a PNG. Line charts plot one series per
// column over the pivot index; bar charts plot the last row by column.
func WritePNG(w io.Writer, sec dashboard.Section, width, height vg.Length) error {
	if sec.Pivot == nil || sec.Pivot.Empty() || sec.Chart == dashboard.ChartNone {
		return fmt.Errorf("%s: %w", sec.ID, ErrNoChart)
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	p := plot.New()
	p.Title.Text = sec.Title
	p.Title.TextStyle.Font.Size = vg.Points(13)
	p.BackgroundColor = color.White
	p.Y.Tick.Marker = numTicks{}

	var err error
	switch sec.Chart {
	case dashboard.ChartLine:
		err = lineChart(p, sec)
	default:
		err = barChart(p, sec)
	}
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", sec.ID, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func lineChart(p *plot.Plot, sec dashboard.Section) error {
	pv := sec.Pivot
	cols := pv.Columns
	if len(cols) > maxSeries {
		cols = cols[:maxSeries]
	}
	for j, c := range cols {
		pts := make(plotter.XYs, len(pv.Index))
		for i := range pv.Index {
			pts[i] = plotter.XY{X: float64(i), Y: pv.Cells[i][j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("line %s: %w", c, err)
		}
		line.Color = plotutil.Color(j)
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(c, line)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.X.Tick.Marker = labelTicks(pv.Labels())
	p.X.Min = -0.5
	p.X.Max = float64(len(pv.Index)) - 0.5
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return nil
}

func barChart(p *plot.Plot, sec dashboard.Section) error {
	pv := sec.Pivot
	last := len(pv.Index) - 1
	values := make(plotter.Values, len(pv.Columns))
	copy(values, pv.Cells[last])

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return fmt.Errorf("bars: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(pv.Columns...)
	p.X.Label.Text = pv.Index[last].Label
	if len(pv.Columns) > 6 {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	return nil
}

// labelTicks labels integer positions with the pivot index, thinned to
// at most maxTicks labels.
type labelTicks []string

func (lt labelTicks) Ticks(min, max float64) []plot.Tick {
	n := len(lt)
	step := 1
	if n > maxTicks {
		step = (n + maxTicks - 1) / maxTicks
	}
	ticks := make([]plot.Tick, 0, n)
	for i := 0; i < n; i++ {
		t := plot.Tick{Value: float64(i)}
		if i%step == 0 {
			t.Label = lt[i]
		}
		ticks = append(ticks, t)
	}
	return ticks
}

type numTicks struct{}

func (numTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = compact(ticks[i].Value)
		}
	}
	return ticks
}

// compact abbreviates large axis values: 1,5 mi, 12 mil.
func compact(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return core.FormatNumber(v/1e9, 1) + " bi"
	case abs >= 1e6:
		return core.FormatNumber(v/1e6, 1) + " mi"
	case abs >= 1e4:
		return core.FormatNumber(v/1e3, 0) + " mil"
	default:
		return core.FormatNumber(v, 0)
	}
}
