package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"gradwatch-engine/internal/poll"
)

type IngestHandler struct {
	Ingest Ingester
}

func (h IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Ingest.Status())
}

// Run starts one ingestion run in the background. It answers 409 while a run
// (scheduled or manual) is in progress.
func (h IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Ingest.Running() {
		WriteError(w, r, http.StatusConflict, codeAlreadyRunning, "an ingestion run is already in progress")
		return
	}

	reqID := RequestIDFrom(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := h.Ingest.RunOnce(ctx); err != nil && !errors.Is(err, poll.ErrAlreadyRunning) {
			log.Printf("level=warn msg=\"manual ingest failed\" request_id=%s err=%v", reqID, err)
		}
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
