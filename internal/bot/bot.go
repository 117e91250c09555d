package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"gradwatch-engine/internal/answer"
	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/query"
)

const (
	GreetingText = "Hi! Ask me anything about economics graduate admissions data. " +
		"For example: 'What month do most acceptances come out?' or 'Which schools send the most interviews?'"
	DisabledText    = "LLM queries are currently disabled."
	NoQueryText     = "I couldn't generate a valid SQL query for that question. Could you rephrase it?"
	RejectedText    = "I can't run that query."
	TimeoutText     = "That query took too long to run."
	UpstreamText    = "I couldn't reach the language model right now. Please try again in a bit."
	NoLastQueryText = "No SQL query has been run yet, or the last question didn't require a database query."

	seenLimit = 100
)

var showSQLPhrases = []string{"show sql", "last query", "what was the query", "show query", "sql query", "show the sql"}

type Planner interface {
	Plan(ctx context.Context, question string, recent []llm.Message) (query.Plan, error)
}

type Executor interface {
	Execute(ctx context.Context, plan query.Plan) (query.Result, error)
}

type Composer interface {
	Summarize(ctx context.Context, question string, plan query.Plan, res query.Result, recent []llm.Message) (answer.Answer, error)
	Converse(ctx context.Context, question string, recent []llm.Message) (string, error)
}

type ChartRenderer interface {
	Render(spec answer.PlotSpec) (string, error)
}

// Mention is one message addressed to the bot.
type Mention struct {
	ID      string
	BotID   string
	Content string
	Recent  []llm.Message
}

// Reply is what goes back to the channel. Ignored is set for duplicate
// deliveries of the same message; nothing should be sent.
type Reply struct {
	Text      string         `json:"text"`
	ChartPath string         `json:"chart_path,omitempty"`
	SQL       string         `json:"sql,omitempty"`
	Result    *query.Result  `json:"-"`
	Answer    *answer.Answer `json:"answer,omitempty"`
	Ignored   bool           `json:"-"`
}

type lastQuery struct {
	question string
	sql      string
}

type Bot struct {
	planner  Planner
	exec     Executor
	composer Composer
	charts   ChartRenderer // optional

	enabled atomic.Bool

	mu       sync.Mutex
	last     lastQuery
	seen     map[string]struct{}
	seenRing []string
}

func New(p Planner, e Executor, c Composer, charts ChartRenderer, enabled bool) *Bot {
	b := &Bot{
		planner:  p,
		exec:     e,
		composer: c,
		charts:   charts,
		seen:     make(map[string]struct{}, seenLimit),
	}
	b.enabled.Store(enabled)
	return b
}

func (b *Bot) SetEnabled(v bool) { b.enabled.Store(v) }
func (b *Bot) Enabled() bool { return b.enabled.Load() }

// HandleMention answers one mention. It never panics and never returns an
// error; every failure becomes a sentence for the channel.
func (b *Bot) HandleMention(ctx context.Context, m Mention) Reply {
	if m.ID != "" && b.markSeen(m.ID) {
		return Reply{Ignored: true}
	}

	question := StripMentions(m.Content, m.BotID)
	if question == "" {
		return Reply{Text: GreetingText}
	}
	return b.Ask(ctx, question, m.Recent)
}

// Ask runs the full question pipeline for an already-clean question.
func (b *Bot) Ask(ctx context.Context, question string, recent []llm.Message) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[bot] panic handling question=%q: %v", question, r)
			reply = Reply{Text: "Sorry, I encountered an error."}
		}
	}()

	if !b.Enabled() {
		return Reply{Text: DisabledText}
	}
	if wantsLastSQL(question) {
		return b.lastSQLReply()
	}

	plan, err := b.planner.Plan(ctx, question, recent)
	if errors.Is(err, query.ErrNotDataQuestion) {
		text, _ := b.composer.Converse(ctx, question, recent)
		return Reply{Text: text}
	}
	if err != nil {
		return Reply{Text: userMessage(err)}
	}

	res, err := b.exec.Execute(ctx, plan)
	if err != nil {
		log.Printf("[bot] execute failed question=%q err=%v", question, err)
		return Reply{Text: userMessage(err), SQL: plan.SQL}
	}
	b.remember(question, plan.SQL)

	ans, err := b.composer.Summarize(ctx, question, plan, res, recent)
	if err != nil {
		return Reply{Text: userMessage(err), SQL: plan.SQL}
	}

	reply = Reply{Text: ans.Text, SQL: plan.SQL, Result: &res, Answer: &ans}
	if ans.Plot != nil && b.charts != nil {
		path, err := b.charts.Render(*ans.Plot)
		if err != nil {
			log.Printf("[bot] chart render failed: %v", err)
		} else {
			reply.ChartPath = path
		}
	}
	return reply
}

var mentionRe = regexp.MustCompile(`<@!?\d+>`)

// StripMentions removes <@ID> and <@!ID> tokens for botID (any user when
// botID is empty) and trims the rest.
func StripMentions(content, botID string) string {
	if botID == "" {
		content = mentionRe.ReplaceAllString(content, "")
	} else {
		content = strings.ReplaceAll(content, "<@"+botID+">", "")
		content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	}
	return strings.TrimSpace(content)
}

func wantsLastSQL(question string) bool {
	q := strings.ToLower(question)
	for _, p := range showSQLPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

func (b *Bot) lastSQLReply() Reply {
	b.mu.Lock()
	last := b.last
	b.mu.Unlock()

	if last.sql == "" {
		return Reply{Text: NoLastQueryText}
	}
	return Reply{
		Text: fmt.Sprintf("Last query for: %q\n\n```sql\n%s\n```", last.question, last.sql),
		SQL:  last.sql,
	}
}

func (b *Bot) remember(question, sqlText string) {
	b.mu.Lock()
	b.last = lastQuery{question: question, sql: sqlText}
	b.mu.Unlock()
}

// markSeen records id and reports whether it was already there. Only the
// most recent ids are kept.
func (b *Bot) markSeen(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.seen[id]; ok {
		return true
	}
	b.seen[id] = struct{}{}
	b.seenRing = append(b.seenRing, id)
	if len(b.seenRing) > seenLimit {
		delete(b.seen, b.seenRing[0])
		b.seenRing = b.seenRing[1:]
	}
	return false
}

func userMessage(err error) string {
	var execErr *query.ExecutionError
	switch {
	case errors.Is(err, query.ErrNoQueryFound):
		return NoQueryText
	case errors.Is(err, query.ErrRejected):
		return RejectedText
	case errors.Is(err, query.ErrTimeout):
		return TimeoutText
	case errors.Is(err, llm.ErrUpstreamUnavailable):
		return UpstreamText
	case errors.As(err, &execErr):
		return "Sorry, that query failed: " + clip(execErr.Err.Error(), 200)
	default:
		return "Sorry, I encountered an error: " + clip(err.Error(), 200)
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
