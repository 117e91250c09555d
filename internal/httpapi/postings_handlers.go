package httpapi

import (
	"net/http"
	"time"
)

type PostingsHandler struct {
	Postings PostingReader
	Now      func() time.Time
}

// Pending lists postings not yet announced, added within the last days
// (default 1).
func (h PostingsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	days, ok := intQuery(r, "days", 1)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, codeInvalidDays, "days must be a positive integer")
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	since := now().UTC().AddDate(0, 0, -days)

	ps, err := h.Postings.ListPendingNotification(r.Context(), since)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]postingJSON, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPostingJSON(p))
	}
	writeJSON(w, map[string]any{"since": since.Format("2006-01-02"), "postings": out})
}
