package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers every API route. main wraps it with the middleware
// chain and can still attach /shutdown, which needs the server and token.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", HealthHandler{Postings: d.Postings}.Health).Methods(http.MethodGet)

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		OnUpdate:    d.OnConfigUpdate,
		Hub:         d.Hub,
	}
	r.HandleFunc("/config", ch.Get).Methods(http.MethodGet)
	r.HandleFunc("/config", ch.Put).Methods(http.MethodPut)
	r.HandleFunc("/config/path", ch.Path).Methods(http.MethodGet)
	r.HandleFunc("/config/validate", ch.Validate).Methods(http.MethodGet)

	// Secrets
	sh := SecretsHandler{}
	r.HandleFunc("/secrets", sh.Status).Methods(http.MethodGet)
	r.HandleFunc("/secrets/{name}", func(w http.ResponseWriter, r *http.Request) {
		sh.Set(w, r, mux.Vars(r)["name"])
	}).Methods(http.MethodPut)

	// Ingestion
	ih := IngestHandler{Ingest: d.Ingest}
	r.HandleFunc("/ingest/status", ih.Status).Methods(http.MethodGet)
	r.HandleFunc("/ingest/run", ih.Run).Methods(http.MethodPost)

	ph := PostingsHandler{Postings: d.Postings}
	r.HandleFunc("/postings/pending", ph.Pending).Methods(http.MethodGet)

	// Questions
	ah := AskHandler{Asker: d.Asker, Hub: d.Hub, ChartsDir: d.ChartsDir}
	r.HandleFunc("/ask", ah.Ask).Methods(http.MethodPost)
	r.HandleFunc("/charts/{name}", func(w http.ResponseWriter, r *http.Request) {
		ah.Chart(w, r, mux.Vars(r)["name"])
	}).Methods(http.MethodGet)

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	r.HandleFunc("/events", eh.ServeSSE).Methods(http.MethodGet)

	dh := DBHandler{DB: d.DB}
	r.HandleFunc("/db/checkpoint", dh.Checkpoint).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, codeNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})
	return r
}

// NewHandler is the router wrapped in the standard middleware chain.
func NewHandler(d Deps) http.Handler {
	return Chain(NewRouter(d), RequestID, Recover, AccessLog, Cors)
}
