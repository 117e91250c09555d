package httpapi

import (
	"net/http"
)

type HealthHandler struct {
	Postings PostingReader
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"ok": true}
	if h.Postings != nil {
		n, err := h.Postings.Count(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		out["postings"] = n
	}
	writeJSON(w, out)
}
