package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gradwatch-engine/internal/answer"
	"gradwatch-engine/internal/bot"
	"gradwatch-engine/internal/config"
	"gradwatch-engine/internal/domain"
	"gradwatch-engine/internal/events"
	"gradwatch-engine/internal/llm"
	"gradwatch-engine/internal/poll"
	"gradwatch-engine/internal/query"
	"gradwatch-engine/internal/scrape/types"
)

type fakeIngest struct {
	running atomic.Bool
	runs    atomic.Int32
}

func (f *fakeIngest) RunOnce(context.Context) (poll.Result, error) {
	f.runs.Add(1)
	return poll.Result{Added: 1}, nil
}
func (f *fakeIngest) Status() types.ScrapeStatus {
	return types.ScrapeStatus{LastAdded: 3, Running: f.running.Load()}
}
func (f *fakeIngest) Running() bool { return f.running.Load() }

type fakePostings struct {
	since time.Time
	list  []domain.Posting
}

func (f *fakePostings) ListPendingNotification(_ context.Context, since time.Time) ([]domain.Posting, error) {
	f.since = since
	return f.list, nil
}
func (f *fakePostings) Count(context.Context) (int, error) { return len(f.list), nil }

type fakeAsker struct{ question string }

func (f *fakeAsker) Ask(_ context.Context, q string, _ []llm.Message) bot.Reply {
	f.question = q
	res := query.Result{Columns: []string{"institution", "n"}, Rows: [][]any{{"MIT", int64(4)}}}
	ans := answer.Answer{Text: "Here's what I found:", Plot: &answer.PlotSpec{Type: answer.PlotBar}}
	return bot.Reply{Text: ans.Text, SQL: "SELECT institution, COUNT(*) AS n FROM phd GROUP BY 1", Result: &res, Answer: &ans}
}

func newTestDeps(t *testing.T) (Deps, *fakeIngest, *fakePostings, *fakeAsker) {
	t.Helper()
	cfgVal := &atomic.Value{}
	cfgVal.Store(config.Default())
	added := time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)
	ing := &fakeIngest{}
	ps := &fakePostings{list: []domain.Posting{{ExternalID: "7", Institution: "MIT", Program: "Economics", AddedDate: &added, AddedDateRaw: "February 04, 2025"}}}
	ask := &fakeAsker{}
	path := filepath.Join(t.TempDir(), "config.yml")
	d := Deps{
		Hub:         events.NewHub(),
		CfgVal:      cfgVal,
		UserCfgPath: path,
		LoadCfg:     func() (config.Config, error) { return config.Load(path) },
		Ingest:      ing,
		Postings:    ps,
		Asker:       ask,
		ChartsDir:   t.TempDir(),
	}
	return d, ing, ps, ask
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRequestID(t *testing.T) {
	d, _, _, _ := newTestDeps(t)
	h := NewHandler(d)

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != true || body["postings"].(float64) != 1 {
		t.Fatalf("body = %v", body)
	}
}

func TestIngestRunConflictWhileRunning(t *testing.T) {
	d, ing, _, _ := newTestDeps(t)
	h := NewHandler(d)

	ing.running.Store(true)
	rec := do(t, h, http.MethodPost, "/ingest/run", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "already_running") {
		t.Fatalf("body = %s", rec.Body.String())
	}

	ing.running.Store(false)
	rec = do(t, h, http.MethodPost, "/ingest/run", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	deadline := time.Now().Add(2 * time.Second)
	for ing.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ing.runs.Load() != 1 {
		t.Fatalf("runs = %d", ing.runs.Load())
	}

	rec = do(t, h, http.MethodGet, "/ingest/status", nil)
	var st types.ScrapeStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.LastAdded != 3 {
		t.Fatalf("status = %+v", st)
	}
}

func TestPendingPostings(t *testing.T) {
	d, _, ps, _ := newTestDeps(t)
	h := NewHandler(d)

	rec := do(t, h, http.MethodGet, "/postings/pending?days=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if age := time.Since(ps.since); age < 71*time.Hour || age > 73*time.Hour {
		t.Fatalf("since = %v", ps.since)
	}
	var body struct {
		Postings []postingJSON `json:"postings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Postings) != 1 || body.Postings[0].ExternalID != "7" || body.Postings[0].AddedDate != "2025-02-04" {
		t.Fatalf("postings = %+v", body.Postings)
	}

	rec = do(t, h, http.MethodGet, "/postings/pending?days=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAsk(t *testing.T) {
	d, _, _, ask := newTestDeps(t)
	sub := d.Hub.Subscribe()
	defer d.Hub.Unsubscribe(sub)
	h := NewHandler(d)

	rec := do(t, h, http.MethodPost, "/ask", []byte(`{"question":"  which schools interview most?  "}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if ask.question != "which schools interview most?" {
		t.Fatalf("question = %q", ask.question)
	}
	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PlotType != "bar" || len(resp.Rows) != 1 || resp.Columns[1] != "n" || !strings.HasPrefix(resp.SQL, "SELECT") {
		t.Fatalf("resp = %+v", resp)
	}

	select {
	case evt := <-sub:
		if !strings.Contains(evt, events.TypeQueryAnswered) {
			t.Fatalf("event = %s", evt)
		}
	default:
		t.Fatal("no event published")
	}

	rec = do(t, h, http.MethodPost, "/ask", []byte(`{"question":""}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	d, _, _, _ := newTestDeps(t)
	var applied config.Config
	d.OnConfigUpdate = func(c config.Config) { applied = c }
	h := NewHandler(d)

	cfg := config.Default()
	cfg.Polling.IntervalSeconds = 300
	b, _ := json.Marshal(cfg)
	rec := do(t, h, http.MethodPut, "/config", b)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if applied.Polling.IntervalSeconds != 300 {
		t.Fatalf("update hook not called: %+v", applied.Polling)
	}
	if got := d.CfgVal.Load().(config.Config); got.Polling.IntervalSeconds != 300 {
		t.Fatalf("stored config = %+v", got.Polling)
	}

	cfg.App.Port = 0
	b, _ = json.Marshal(cfg)
	rec = do(t, h, http.MethodPut, "/config", b)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var vr config.Validation
	if err := json.Unmarshal(rec.Body.Bytes(), &vr); err != nil || vr.OK() {
		t.Fatalf("validation body = %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodPut, "/config", []byte(`{"nope":1}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}
}

func TestRoutingErrors(t *testing.T) {
	d, _, _, _ := newTestDeps(t)
	h := NewHandler(d)

	if rec := do(t, h, http.MethodGet, "/nowhere", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/health", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/charts/evil.png", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), RequestID, Recover)
	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var e APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Error.Code != "internal_error" || e.Error.RequestID == "" {
		t.Fatalf("error = %+v", e)
	}
}
