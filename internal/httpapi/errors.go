package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gradwatch-engine/internal/store"
)

// Error codes returned in APIError.Error.Code.
const (
	codeInvalidJSON      = "invalid_json"
	codeInvalidDays      = "invalid_days"
	codeEmptyQuestion    = "empty_question"
	codeQuestionTooLong  = "question_too_long"
	codeAskUnavailable   = "ask_unavailable"
	codeAlreadyRunning   = "already_running"
	codeStoreUnavailable = "store_unavailable"
	codeStoreTimeout     = "store_timeout"
	codeSaveFailed       = "save_failed"
	codeReloadFailed     = "reload_failed"
	codeSecretRejected   = "secret_rejected"
	codeCheckpointFailed = "checkpoint_failed"
	codeStreaming        = "stream_unsupported"
	codeForbidden        = "forbidden"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeInternal         = "internal_error"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeStoreError maps a record store failure to a response. The driver text
// is logged, not returned.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := RequestIDFrom(r.Context())
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteError(w, r, http.StatusGatewayTimeout, codeStoreTimeout, "the record store did not answer in time")
	case errors.Is(err, store.ErrLocked):
		WriteError(w, r, http.StatusServiceUnavailable, codeStoreUnavailable, "the data dir is locked by another process")
	default:
		log.Printf("level=error msg=\"store\" request_id=%s path=%s err=%v", reqID, r.URL.Path, err)
		WriteError(w, r, http.StatusServiceUnavailable, codeStoreUnavailable, "the record store is unavailable")
	}
}
