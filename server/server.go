// Package server exposes the HTTP surface: enricher catalog and launches,
// flow CRUD and compilation, type listings and scan polling.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/log"
	"github.com/flowsint/flowsint/store"
	"github.com/flowsint/flowsint/task"
)

// ExcludedEnrichers are hidden from every catalog listing. Connector-style
// entries exist for pipeline plumbing, not for direct launches from the UI.
var ExcludedEnrichers = []string{"n8n_connector"}

// Server routes platform HTTP traffic.
type Server struct {
	router *mux.Router
	db     *store.Store
	queue  *task.Queue
	reg    *enricher.Registry
}

// New builds the server and mounts all routes.
func New(db *store.Store, queue *task.Queue, reg *enricher.Registry) *Server {
	s := &Server{
		router: mux.NewRouter(),
		db:     db,
		queue:  queue,
		reg:    reg,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/enrichers/", s.listEnrichers).Methods(http.MethodGet)
	r.HandleFunc("/enrichers/input_type/{type}", s.listEnrichersByInputType).Methods(http.MethodGet)
	r.HandleFunc("/enrichers/{name}/launch", s.launchEnricher).Methods(http.MethodPost)

	r.HandleFunc("/flows/", s.listFlows).Methods(http.MethodGet)
	r.HandleFunc("/flows/raw_materials", s.flowRawMaterials).Methods(http.MethodGet)
	r.HandleFunc("/flows/input_type/{type}", s.listFlowsByInputType).Methods(http.MethodGet)
	r.HandleFunc("/flows/create", s.createFlow).Methods(http.MethodPost)
	r.HandleFunc("/flows/{id}", s.getFlow).Methods(http.MethodGet)
	r.HandleFunc("/flows/{id}", s.updateFlow).Methods(http.MethodPut)
	r.HandleFunc("/flows/{id}", s.deleteFlow).Methods(http.MethodDelete)
	r.HandleFunc("/flows/{id}/launch", s.launchFlow).Methods(http.MethodPost)
	r.HandleFunc("/flows/{id}/compute", s.computeFlow).Methods(http.MethodPost)

	r.HandleFunc("/types/", s.listTypes).Methods(http.MethodGet)
	r.HandleFunc("/scans/{id}", s.getScan).Methods(http.MethodGet)
}

// Handler wraps the router with permissive CORS for the flow editor.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// writeError renders the error payload shape the editor expects.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
