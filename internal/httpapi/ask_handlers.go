package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gradwatch-engine/internal/events"
)

const maxQuestionLen = 1000

type AskHandler struct {
	Asker     Asker
	Hub       *events.Hub
	ChartsDir string
}

func (h AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	if h.Asker == nil {
		WriteError(w, r, http.StatusServiceUnavailable, codeAskUnavailable, "question answering is not configured")
		return
	}
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, codeInvalidJSON, err.Error())
		return
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		WriteError(w, r, http.StatusBadRequest, codeEmptyQuestion, "question is required")
		return
	}
	if len(q) > maxQuestionLen {
		WriteError(w, r, http.StatusBadRequest, codeQuestionTooLong, "question is too long")
		return
	}

	if h.ChartsDir != "" {
		if n := pruneCharts(h.ChartsDir, chartTTL, time.Now()); n > 0 {
			log.Printf("[ask] pruned stale charts n=%d", n)
		}
	}
	reply := h.Asker.Ask(r.Context(), q, nil)

	resp := askResponse{Text: reply.Text, SQL: reply.SQL}
	if reply.Result != nil {
		resp.Columns = reply.Result.Columns
		resp.Rows = reply.Result.Rows
		resp.Truncated = reply.Result.Truncated
	}
	if reply.Answer != nil && reply.Answer.Plot != nil {
		resp.PlotType = string(reply.Answer.Plot.Type)
	}
	if reply.ChartPath != "" {
		resp.ChartURL = "/charts/" + filepath.Base(reply.ChartPath)
	}

	h.Hub.Publish(events.MakeEvent(RequestIDFrom(r.Context()), events.TypeQueryAnswered, 1, map[string]any{
		"question": q,
		"sql":      reply.SQL,
	}))
	writeJSON(w, resp)
}

var chartNameRe = regexp.MustCompile(`^plot_[0-9a-f-]+\.png$`)

// chartTTL bounds how long an unfetched chart stays on disk.
const chartTTL = 15 * time.Minute

// Chart serves a rendered chart once. The file is removed after it is read,
// so a second fetch returns 404.
func (h AskHandler) Chart(w http.ResponseWriter, r *http.Request, name string) {
	if !chartNameRe.MatchString(name) {
		WriteError(w, r, http.StatusNotFound, codeNotFound, "no such chart")
		return
	}
	p := filepath.Join(h.ChartsDir, name)
	b, err := os.ReadFile(p)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, codeNotFound, "no such chart")
		return
	}
	if err := os.Remove(p); err != nil {
		log.Printf("level=warn msg=\"chart remove\" request_id=%s file=%s err=%v", RequestIDFrom(r.Context()), name, err)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

// pruneCharts deletes chart files older than ttl. It returns how many were
// removed.
func pruneCharts(dir string, ttl time.Duration, now time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !chartNameRe.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < ttl {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			removed++
		}
	}
	return removed
}
