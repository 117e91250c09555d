package chart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gradwatch-engine/internal/answer"

	"github.com/google/uuid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoNumericData means no column of the result could be plotted.
var ErrNoNumericData = errors.New("chart: no numeric column to plot")

const maxBars = 25

// Renderer writes PNG charts into Dir. Callers delete the file once it has
// been delivered.
type Renderer struct {
	Dir string
}

func (r Renderer) Render(spec answer.PlotSpec) (string, error) {
	labels, values, err := series(spec)
	if err != nil {
		return "", err
	}

	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel

	switch spec.Type {
	case answer.PlotHistogram:
		h, err := plotter.NewHist(values, bins(len(values)))
		if err != nil {
			return "", fmt.Errorf("chart histogram: %w", err)
		}
		p.Add(h)
		p.Y.Label.Text = "Count"

	case answer.PlotLine:
		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i].X = float64(i)
			pts[i].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("chart line: %w", err)
		}
		p.Add(line)
		if labels != nil {
			p.NominalX(labels...)
		}

	default:
		if len(values) > maxBars {
			values = values[:maxBars]
			if labels != nil {
				labels = labels[:maxBars]
			}
		}
		bars, err := plotter.NewBarChart(values, vg.Points(14))
		if err != nil {
			return "", fmt.Errorf("chart bar: %w", err)
		}
		p.Add(bars)
		if labels != nil {
			p.NominalX(labels...)
			p.X.Tick.Label.Rotation = 0.8
			p.X.Tick.Label.XAlign = -1
		}
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.Dir, "plot_"+uuid.NewString()+".png")
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("chart save: %w", err)
	}
	return path, nil
}

// series picks the value column (second column when numeric, else the first)
// and uses the first column as labels when there are two.
func series(spec answer.PlotSpec) ([]string, plotter.Values, error) {
	if len(spec.Rows) == 0 {
		return nil, nil, ErrNoNumericData
	}

	valueCol := -1
	if len(spec.Columns) > 1 && numericColumn(spec.Rows, 1) {
		valueCol = 1
	} else if numericColumn(spec.Rows, 0) {
		valueCol = 0
	}
	if valueCol < 0 {
		return nil, nil, ErrNoNumericData
	}

	var labels []string
	values := make(plotter.Values, 0, len(spec.Rows))
	for _, row := range spec.Rows {
		v, ok := toFloat(row[valueCol])
		if !ok {
			continue
		}
		values = append(values, v)
		if valueCol == 1 {
			labels = append(labels, answer.FormatCell(row[0]))
		}
	}
	if len(values) == 0 {
		return nil, nil, ErrNoNumericData
	}
	return labels, values, nil
}

func numericColumn(rows [][]any, col int) bool {
	seen := false
	for _, row := range rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		if _, ok := toFloat(row[col]); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func bins(n int) int {
	switch {
	case n < 10:
		return 5
	case n < 200:
		return 10
	default:
		return 20
	}
}
