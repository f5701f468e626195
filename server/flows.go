package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flowsint/flowsint/flow"
	"github.com/flowsint/flowsint/store"
	"github.com/flowsint/flowsint/task"
)

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.db.ListFlows(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if flows == nil {
		flows = []*store.Flow{}
	}
	writeJSON(w, http.StatusOK, flows)
}

// flowRawMaterials returns everything the editor's palette needs in one
// call: the entity type schemas first, then the enrichers grouped by
// category.
func (s *Server) flowRawMaterials(w http.ResponseWriter, r *http.Request) {
	items := map[string]any{"types": typeCatalog()}
	for category, list := range s.reg.ListByCategory() {
		items[category] = list
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) listFlowsByInputType(w http.ResponseWriter, r *http.Request) {
	inputType := mux.Vars(r)["type"]
	flows, err := s.db.ListFlowsByInputType(r.Context(), inputType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if flows == nil {
		flows = []*store.Flow{}
	}
	writeJSON(w, http.StatusOK, flows)
}

type flowRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    []string       `json:"category"`
	FlowSchema  map[string]any `json:"flow_schema"`
}

func (s *Server) createFlow(w http.ResponseWriter, r *http.Request) {
	var req flowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	f, err := s.db.CreateFlow(r.Context(), &store.Flow{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		FlowSchema:  req.FlowSchema,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.db.GetFlow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.flowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) updateFlow(w http.ResponseWriter, r *http.Request) {
	var req flowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	f, err := s.db.UpdateFlow(r.Context(), &store.Flow{
		ID:          mux.Vars(r)["id"],
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		FlowSchema:  req.FlowSchema,
	})
	if err != nil {
		s.flowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteFlow(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.flowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type launchFlowRequest struct {
	SketchID string   `json:"sketch_id"`
	UserID   string   `json:"user_id"`
	Values   []any    `json:"values"`
	NodeIDs  []string `json:"node_ids"`
}

// launchFlow compiles the saved flow against the first seed value and queues
// the run.
func (s *Server) launchFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.db.GetFlow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.flowError(w, err)
		return
	}
	var req launchFlowRequest
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
	nodes, edges, err := decodeGraph(f.FlowSchema)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid flow schema: "+err.Error())
		return
	}
	seed := any(nil)
	if len(req.Values) > 0 {
		seed = req.Values[0]
	} else {
		seedType := "string"
		if len(f.Category) > 0 {
			seedType = f.Category[0]
		}
		seed = flow.SampleData(seedType)
	}
	branches := flow.Compile(seed, nodes, edges, s.reg)
	id, err := s.queue.Enqueue(r.Context(), task.Job{
		Kind:     task.KindRunFlow,
		SketchID: req.SketchID,
		UserID:   req.UserID,
		Branches: branches,
		Values:   req.Values,
		NodeIDs:  req.NodeIDs,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to queue run: "+err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

type computeFlowRequest struct {
	Nodes       []flow.Node `json:"nodes"`
	Edges       []flow.Edge `json:"edges"`
	InputType   string      `json:"inputType"`
	InitialData any         `json:"initialData"`
}

// computeFlow compiles a flow graph without running it. The editor posts its
// current nodes and edges to preview unsaved changes; without them the stored
// schema compiles. The seed is the posted value, or sample data for the
// posted input type, or for the flow's first category.
func (s *Server) computeFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.db.GetFlow(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.flowError(w, err)
		return
	}
	var req computeFlowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	seed := req.InitialData
	if seed == nil {
		seedType := req.InputType
		if seedType == "" {
			seedType = "string"
			if len(f.Category) > 0 {
				seedType = f.Category[0]
			}
		}
		seed = flow.SampleData(seedType)
	}
	nodes, edges := req.Nodes, req.Edges
	if len(nodes) == 0 {
		nodes, edges, err = decodeGraph(f.FlowSchema)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid flow schema: "+err.Error())
			return
		}
	}
	branches := flow.Compile(seed, nodes, edges, s.reg)
	writeJSON(w, http.StatusOK, map[string]any{
		"flowBranches": branches,
		"initialData":  seed,
	})
}

func (s *Server) flowError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "flow not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decodeGraph extracts the node and edge lists from a stored flow schema.
func decodeGraph(schema map[string]any) ([]flow.Node, []flow.Edge, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, err
	}
	var g struct {
		Nodes []flow.Node `json:"nodes"`
		Edges []flow.Edge `json:"edges"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, nil, err
	}
	return g.Nodes, g.Edges, nil
}
