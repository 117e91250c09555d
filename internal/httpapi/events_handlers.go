package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gradwatch-engine/internal/events"
)

const sseHeartbeat = 25 * time.Second

type EventsHandler struct {
	Hub       *events.Hub
	Heartbeat time.Duration // defaults to sseHeartbeat
}

// ServeSSE streams hub events. Each frame is named after the envelope type
// (ingest.finished, posting.added, ...), so browsers can addEventListener per
// type. ?types=a,b limits the stream to those types.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, codeStreaming, "streaming unsupported")
		return
	}

	want := map[string]bool{}
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			want[t] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	beat := h.Heartbeat
	if beat <= 0 {
		beat = sseHeartbeat
	}
	ticker := time.NewTicker(beat)
	defer ticker.Stop()

	reqID := RequestIDFrom(r.Context())
	fmt.Fprintf(w, "retry: 5000\n")
	writeFrame(w, "hello", events.MakeEvent(reqID, "hello", 1, map[string]int{"subscribers": h.Hub.Subscribers()}))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			typ := eventType(msg)
			if len(want) > 0 && !want[typ] {
				continue
			}
			writeFrame(w, typ, msg)
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, name, data string) {
	if name == "" {
		name = "message"
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func eventType(msg string) string {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(msg), &env); err != nil {
		return ""
	}
	return env.Type
}
