package answer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/query"
)

const narratorPersona = "You are Beatriz Viterbo, a wise and reflective narrator with a hopeful tone. " +
	"You carry the quiet, precise sensibility of a Borges narrator. " +
	"You have seen an Aleph in a basement, though you do not insist on its truth. " +
	"You are knowledgeable about economics graduate admissions. "

const (
	summarizeBrief = "Summarize SQL results for the user question. Be concise and factual. " +
		"Provide a short summary and highlight key numbers. If the results are partial, say so. " +
		"Write plain prose without markdown."
	converseBrief = "The user question does not require querying the database. " +
		"Respond conversationally and concisely based on the question and channel context. " +
		"If the user intended a database query, ask a brief clarification."

	ConverseFallback = "I might not need the database for that. Can you clarify what you're looking for?"
	glossSampleRows  = 20
)

// Answer is what a question produces. Text is the deterministic block,
// followed by the gloss when one was produced.
type Answer struct {
	Text          string    `json:"text"`
	Deterministic string    `json:"deterministic"`
	Gloss         string    `json:"gloss,omitempty"`
	Plot          *PlotSpec `json:"plot,omitempty"`
}

type Composer struct {
	llm   llm.Completer
	model string
}

// NewComposer builds a composer. A nil completer disables the gloss.
func NewComposer(c llm.Completer, model string) *Composer {
	return &Composer{llm: c, model: model}
}

// Summarize builds the answer for an executed plan. A failed gloss is logged
// and dropped; it never turns into an error.
func (c *Composer) Summarize(ctx context.Context, question string, plan query.Plan, res query.Result, recent []llm.Message) (Answer, error) {
	det := Format(question, res)
	ans := Answer{Text: det, Deterministic: det}

	if len(res.Rows) > 0 && ShouldPlot(question) {
		ans.Plot = BuildPlotSpec(question, res)
	}

	if len(res.Rows) == 0 || c.llm == nil {
		return ans, nil
	}

	gloss, err := c.llm.Complete(ctx, llm.Request{
		Model:       c.model,
		System:      narratorPersona + summarizeBrief,
		Prompt:      buildSummaryPrompt(question, plan.SQL, res, recent),
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		log.Printf("[composer] gloss failed, using deterministic text: %v", err)
		return ans, nil
	}
	gloss = CleanGloss(gloss)
	if gloss == "" {
		return ans, nil
	}

	ans.Gloss = gloss
	ans.Text = det + "\n\n" + gloss
	return ans, nil
}

// Converse answers a question that needs no query. Model failures fall back
// to a fixed clarification.
func (c *Composer) Converse(ctx context.Context, question string, recent []llm.Message) (string, error) {
	if c.llm == nil {
		return ConverseFallback, nil
	}
	prompt := fmt.Sprintf("Recent channel context (most recent last):\n%s\n\nQuestion: %s\nSQL: none\nRows: none",
		recentOrNone(recent), question)

	out, err := c.llm.Complete(ctx, llm.Request{
		Model:       c.model,
		System:      narratorPersona + converseBrief,
		Prompt:      prompt,
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		log.Printf("[composer] converse failed: %v", err)
		return ConverseFallback, nil
	}
	if out = CleanGloss(out); out == "" {
		return ConverseFallback, nil
	}
	return out, nil
}

func buildSummaryPrompt(question, sqlText string, res query.Result, recent []llm.Message) string {
	sample := res.Rows
	if len(sample) > glossSampleRows {
		sample = sample[:glossSampleRows]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent channel context (most recent last):\n%s\n\n", recentOrNone(recent))
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "SQL: %s\n", sqlText)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(res.Columns, ", "))
	fmt.Fprintf(&b, "Row count: %d", len(res.Rows))
	if res.Truncated {
		b.WriteString(" (partial)")
	}
	fmt.Fprintf(&b, "\nRows (first %d):\n", len(sample))
	for _, row := range sample {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatCell(v)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func recentOrNone(recent []llm.Message) string {
	if s := llm.FormatRecentContext(recent); s != "" {
		return s
	}
	return "No recent channel context."
}
