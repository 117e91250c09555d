package httpapi

import (
	"encoding/json"
	"net/http"

	"gradwatch-engine/internal/secrets"
)

type SecretsHandler struct{}

type setSecretReq struct {
	Value string `json:"value"`
}

// Status reports which secrets resolve from the keychain or environment.
func (h SecretsHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, secrets.Status())
}

func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request, name string) {
	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, codeInvalidJSON, "invalid json")
		return
	}
	if err := secrets.Set(name, req.Value); err != nil {
		WriteError(w, r, http.StatusBadRequest, codeSecretRejected, "failed to store secret: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
