package answer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gradwatch-engine/internal/query"

	"github.com/dustin/go-humanize"
)

const (
	NoResultsText = "I found no results for that query."
	maxListRows   = 10

	pageRows = 10
	maxPages = 4
)

// Format renders a result without calling the model, so the numbers in an
// answer never depend on the gloss.
func Format(question string, res query.Result) string {
	if len(res.Rows) == 0 {
		return NoResultsText
	}

	if len(res.Rows) == 1 && len(res.Rows[0]) == 1 {
		return formatScalar(question, columnName(res, 0), res.Rows[0][0])
	}

	var b strings.Builder
	b.WriteString("Here's what I found:")
	for i, row := range res.Rows {
		if i == maxListRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatCell(v)
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, strings.Join(cells, " | "))
	}
	if extra := len(res.Rows) - maxListRows; extra > 0 {
		fmt.Fprintf(&b, "\n+%s more", humanize.Comma(int64(extra)))
	}
	return b.String()
}

// Pages renders the rows Format leaves out as follow-up pages of pageRows
// rows each, numbered to continue the list. At most maxPages are returned;
// the last one notes any rows still left.
func Pages(res query.Result) []string {
	if len(res.Rows) <= maxListRows {
		return nil
	}
	total := len(res.Rows)
	var pages []string
	for start := maxListRows; start < total && len(pages) < maxPages; start += pageRows {
		end := min(start+pageRows, total)
		var b strings.Builder
		fmt.Fprintf(&b, "Rows %d-%d of %s:", start+1, end, humanize.Comma(int64(total)))
		for i := start; i < end; i++ {
			cells := make([]string, len(res.Rows[i]))
			for j, v := range res.Rows[i] {
				cells[j] = FormatCell(v)
			}
			fmt.Fprintf(&b, "\n%d. %s", i+1, strings.Join(cells, " | "))
		}
		if len(pages) == maxPages-1 && end < total {
			fmt.Fprintf(&b, "\n+%s more not shown", humanize.Comma(int64(total-end)))
		}
		pages = append(pages, b.String())
	}
	return pages
}

func formatScalar(question, column string, v any) string {
	q := strings.ToLower(question)
	col := strings.ToLower(column)

	n, isNum := toFloat(v)
	if !isNum {
		return "The answer is: " + FormatCell(v)
	}

	switch {
	case containsAny(q, "average", "mean") || strings.Contains(col, "avg") || strings.Contains(col, "average"):
		return fmt.Sprintf("The average is %.2f", n)
	case containsAny(q, "how many", "count") || strings.Contains(col, "count"):
		return fmt.Sprintf("There are %s results", formatCount(n))
	case containsAny(q, "percent") || strings.Contains(col, "pct") || strings.Contains(col, "percent"):
		return fmt.Sprintf("%.1f%%", n)
	}
	return "The answer is: " + FormatCell(v)
}

// FormatCell prints one value the way it appears in list answers.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "N/A"
	case float64:
		if isWhole(x) {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
		return strconv.FormatFloat(x, 'f', 2, 64)
	case float32:
		return FormatCell(float64(x))
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func formatCount(n float64) string {
	if isWhole(n) {
		return humanize.Comma(int64(n))
	}
	return humanize.CommafWithDigits(n, 2)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

func columnName(res query.Result, i int) string {
	if i < len(res.Columns) {
		return res.Columns[i]
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
