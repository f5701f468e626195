package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/store"
	"github.com/flowsint/flowsint/task"
)

// listEnrichers returns the catalog, optionally narrowed by ?category=. A
// category naming a published custom type yields every enricher flagged
// wobbly, since no built-in enricher declares user-authored types; any other
// category filters by input type.
func (s *Server) listEnrichers(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" || strings.EqualFold(category, "undefined") {
		writeJSON(w, http.StatusOK, s.reg.List(ExcludedEnrichers, false))
		return
	}
	userID := r.URL.Query().Get("user_id")
	if _, err := s.db.GetCustomType(r.Context(), userID, category); err == nil {
		writeJSON(w, http.StatusOK, s.reg.List(ExcludedEnrichers, true))
		return
	}
	writeJSON(w, http.StatusOK, s.reg.ListByInputType(category, ExcludedEnrichers))
}

// listEnrichersByInputType returns the enrichers accepting a given type.
// A custom type name yields the whole catalog flagged wobbly: no built-in
// enricher declares user-authored types, so the editor matches loosely.
func (s *Server) listEnrichersByInputType(w http.ResponseWriter, r *http.Request) {
	inputType := mux.Vars(r)["type"]
	if _, ok := entity.Get(inputType); !ok && inputType != "any" {
		userID := r.URL.Query().Get("user_id")
		if _, err := s.db.GetCustomType(r.Context(), userID, inputType); err == nil {
			writeJSON(w, http.StatusOK, s.reg.List(ExcludedEnrichers, true))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.reg.ListByInputType(inputType, ExcludedEnrichers))
}

type launchEnricherRequest struct {
	SketchID string         `json:"sketch_id"`
	UserID   string         `json:"user_id"`
	Values   []any          `json:"values"`
	NodeIDs  []string       `json:"node_ids"`
	Params   map[string]any `json:"params"`
}

// launchEnricher queues a single-enricher run and returns the task id.
func (s *Server) launchEnricher(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.reg.Exists(name) {
		writeError(w, http.StatusNotFound, "enricher not found: "+name)
		return
	}
	var req launchEnricherRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SketchID == "" {
		writeError(w, http.StatusBadRequest, "sketch_id is required")
		return
	}
	if len(req.Values) == 0 && len(req.NodeIDs) == 0 {
		writeError(w, http.StatusBadRequest, "values or node_ids must not be empty")
		return
	}
	id, err := s.queue.Enqueue(r.Context(), task.Job{
		Kind:     task.KindRunEnricher,
		SketchID: req.SketchID,
		UserID:   req.UserID,
		Enricher: name,
		Params:   req.Params,
		Values:   req.Values,
		NodeIDs:  req.NodeIDs,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to queue run: "+err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// getScan returns the scan row a launch handed back, for result polling.
func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	scan, err := s.db.GetScan(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scan)
}
