package query

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/store"
)

// Plan is a candidate query for one question. Raw keeps the model output.
type Plan struct {
	Question string
	SQL      string
	Raw      string
}

type Planner struct {
	llm       llm.Completer
	model     string
	views     []store.ViewSpec
	yearFloor int
	maxTokens int
}

func NewPlanner(c llm.Completer, model string, views []store.ViewSpec) *Planner {
	if len(views) == 0 {
		views = store.DefaultViews
	}
	return &Planner{llm: c, model: model, views: views, maxTokens: 300}
}

// WithYearFloor records the floor the views were rebuilt with so the schema
// text shown to the model states the covered years.
func (p *Planner) WithYearFloor(floor int) *Planner {
	p.yearFloor = floor
	return p
}

// Plan asks the model for a single SELECT answering question. It makes one
// completion call and never retries.
func (p *Planner) Plan(ctx context.Context, question string, recent []llm.Message) (Plan, error) {
	system, user := BuildPlannerPrompt(p.views, p.yearFloor, question, recent)

	raw, err := p.llm.Complete(ctx, llm.Request{
		Model:       p.model,
		System:      system,
		Prompt:      user,
		Temperature: 0.2,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %w", err)
	}

	plan := Plan{Question: question, Raw: raw}
	if isNone(raw) {
		return plan, ErrNotDataQuestion
	}

	sqlText, err := ExtractSQL(raw)
	if err != nil {
		log.Printf("[planner] no query in output=%.200q", raw)
		return plan, err
	}
	plan.SQL = sqlText
	log.Printf("[planner] question=%q sql=%q", truncate(question, 80), sqlText)
	return plan, nil
}

func isNone(raw string) bool {
	s := strings.Trim(strings.TrimSpace(raw), "`\"'.")
	return strings.EqualFold(s, "none")
}

var (
	fenceRe     = regexp.MustCompile("(?s)```[ \\t]*(?:sqlite|sql|SQL)?[ \\t]*\\n?(.*?)```")
	// WITH only counts when a CTE follows; "with" is too common in prose.
	selectRe    = regexp.MustCompile(`(?is)\b((?:SELECT\s|` + ctePrefix + `).+?)(?:;|\n\s*\n|$)`)
	leadQueryRe = regexp.MustCompile(`(?i)^(?:SELECT\b|` + ctePrefix + `)`)
)

// ExtractSQL pulls a query out of free-form model output: a fenced code
// block first, then text that starts with SELECT or a CTE, then the first
// SELECT or CTE statement anywhere.
func ExtractSQL(text string) (string, error) {
	text = strings.TrimSpace(text)

	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if q := cleanSQL(m[1]); q != "" {
			return q, nil
		}
	}

	if leadQueryRe.MatchString(text) {
		var lines []string
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "--") {
				continue
			}
			if i := strings.Index(line, ";"); i >= 0 {
				lines = append(lines, line[:i])
				break
			}
			lines = append(lines, line)
		}
		if q := cleanSQL(strings.Join(lines, " ")); q != "" {
			return q, nil
		}
	}

	if m := selectRe.FindStringSubmatch(text); m != nil {
		if q := cleanSQL(m[1]); q != "" {
			return q, nil
		}
	}
	return "", ErrNoQueryFound
}

func cleanSQL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
