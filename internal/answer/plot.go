package answer

import (
	"strings"

	"gradwatch-engine/internal/query"
)

type PlotType string

const (
	PlotBar       PlotType = "bar"
	PlotLine      PlotType = "line"
	PlotHistogram PlotType = "histogram"
)

// PlotSpec describes a chart for a result. Rendering is up to the caller.
type PlotSpec struct {
	Type    PlotType `json:"type"`
	Title   string   `json:"title"`
	XLabel  string   `json:"x_label"`
	YLabel  string   `json:"y_label"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

var plotKeywords = []string{"chart", "graph", "plot", "visualize", "show", "compare", "trend", "distribution", "top"}

func ShouldPlot(question string) bool {
	return containsAny(strings.ToLower(question), plotKeywords...)
}

func InferPlotType(question string) PlotType {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "trend") || strings.Contains(q, "over time"):
		return PlotLine
	case strings.Contains(q, "distribution"):
		return PlotHistogram
	default:
		return PlotBar
	}
}

// BuildPlotSpec returns nil when the result has no rows.
func BuildPlotSpec(question string, res query.Result) *PlotSpec {
	if len(res.Rows) == 0 {
		return nil
	}
	x, y := "X", "Count"
	if len(res.Columns) > 0 {
		x = res.Columns[0]
	}
	if len(res.Columns) > 1 {
		y = res.Columns[1]
	}
	title := []rune(question)
	if len(title) > 60 {
		title = title[:60]
	}
	return &PlotSpec{
		Type:    InferPlotType(question),
		Title:   string(title),
		XLabel:  x,
		YLabel:  y,
		Columns: res.Columns,
		Rows:    res.Rows,
	}
}
