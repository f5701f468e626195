package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := enricher.NewRegistry()
	reg.Register(enricher.Descriptor{
		Name:       "resolve",
		ClassName:  "ResolveEnricher",
		Category:   "Domain",
		InputType:  "Domain",
		OutputType: "Ip",
	}, func(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) { return nil, nil })

	return New(db, nil, reg)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestListTypesGroupedByCategory(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/types/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var groups map[string][]map[string]any
	decode(t, rec, &groups)
	require.Contains(t, groups, "Infrastructure")
	require.Contains(t, groups, "Identities & Entities")

	names := map[string]bool{}
	for _, entry := range groups["Infrastructure"] {
		names[entry["name"].(string)] = true
	}
	assert.True(t, names["Domain"])
	assert.True(t, names["Ip"])
}

func TestListTypesIncludesCustomTypes(t *testing.T) {
	s := newTestServer(t)
	_, err := s.db.CreateCustomType(context.Background(), &store.CustomType{
		OwnerID:   "user-1",
		Name:      "Vehicle",
		Published: true,
		Schema: map[string]any{
			"properties": map[string]any{
				"plate": map[string]any{"type": "string"},
				"make":  map[string]any{"type": "string"},
			},
			"required": []any{"plate"},
		},
	})
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/types/?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var groups map[string][]map[string]any
	decode(t, rec, &groups)
	require.Contains(t, groups, "Custom types")
	require.Len(t, groups["Custom types"], 1)

	vehicle := groups["Custom types"][0]
	assert.Equal(t, "Vehicle", vehicle["name"])
	assert.Equal(t, "plate", vehicle["primary_key"])
	assert.Equal(t, true, vehicle["custom"])
	fields := vehicle["fields"].([]any)
	assert.Len(t, fields, 2)
}

func TestListEnrichers(t *testing.T) {
	s := newTestServer(t)

	// No category: the flat excluded list.
	rec := do(t, s, http.MethodGet, "/enrichers/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "resolve", list[0]["name"])
	assert.Equal(t, false, list[0]["wobblyType"])

	// A category filters by input type.
	rec = do(t, s, http.MethodGet, "/enrichers/?category=Domain", nil)
	decode(t, rec, &list)
	require.Len(t, list, 1)

	rec = do(t, s, http.MethodGet, "/enrichers/?category=Email", nil)
	decode(t, rec, &list)
	assert.Empty(t, list)
}

func TestListEnrichersCustomTypeCategory(t *testing.T) {
	s := newTestServer(t)
	_, err := s.db.CreateCustomType(context.Background(), &store.CustomType{
		OwnerID:   "user-1",
		Name:      "Vehicle",
		Published: true,
	})
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/enrichers/?category=vehicle&user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	decode(t, rec, &list)
	require.NotEmpty(t, list)
	for _, entry := range list {
		assert.Equal(t, true, entry["wobblyType"])
	}
}

func TestListEnrichersByInputType(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/enrichers/input_type/Domain", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	decode(t, rec, &list)
	require.Len(t, list, 1)

	rec = do(t, s, http.MethodGet, "/enrichers/input_type/Email", nil)
	decode(t, rec, &list)
	assert.Empty(t, list)
}

func TestListEnrichersForCustomType(t *testing.T) {
	s := newTestServer(t)
	_, err := s.db.CreateCustomType(context.Background(), &store.CustomType{
		OwnerID:   "user-1",
		Name:      "Vehicle",
		Published: true,
	})
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/enrichers/input_type/Vehicle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	decode(t, rec, &list)
	require.NotEmpty(t, list)
	for _, entry := range list {
		assert.Equal(t, true, entry["wobblyType"])
	}

	// Names with no custom type behind them keep the strict empty listing.
	rec = do(t, s, http.MethodGet, "/enrichers/input_type/Spaceship", nil)
	decode(t, rec, &list)
	assert.Empty(t, list)
}

func TestFlowCRUDOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/flows/create", map[string]any{
		"name":        "Domain recon",
		"description": "resolve things",
		"category":    []string{"Domain"},
		"flow_schema": map[string]any{"nodes": []any{}, "edges": []any{}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	decode(t, rec, &created)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	rec = do(t, s, http.MethodGet, "/flows/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPut, "/flows/"+id, map[string]any{
		"name":        "Domain recon v2",
		"category":    []string{"Domain"},
		"flow_schema": map[string]any{},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated map[string]any
	decode(t, rec, &updated)
	assert.Equal(t, "Domain recon v2", updated["name"])

	rec = do(t, s, http.MethodGet, "/flows/", nil)
	var list []map[string]any
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = do(t, s, http.MethodDelete, "/flows/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/flows/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var errBody map[string]string
	decode(t, rec, &errBody)
	assert.Contains(t, errBody["detail"], "not found")
}

func TestCreateFlowValidation(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/flows/create", map[string]any{"description": "nameless"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody map[string]string
	decode(t, rec, &errBody)
	assert.Contains(t, errBody["detail"], "name")
}

func TestFlowRawMaterials(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/flows/raw_materials", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]map[string]any
	decode(t, rec, &body)
	items := body["items"]
	require.Contains(t, items, "types")
	assert.NotEmpty(t, items["types"])

	// Enrichers appear grouped under their category.
	domain, ok := items["Domain"].([]any)
	require.True(t, ok)
	require.Len(t, domain, 1)
	assert.Equal(t, "resolve", domain[0].(map[string]any)["name"])
}

func TestComputeFlow(t *testing.T) {
	s := newTestServer(t)

	schema := map[string]any{
		"nodes": []any{
			map[string]any{
				"id": "seed",
				"data": map[string]any{
					"type":    "type",
					"outputs": map[string]any{"properties": []any{map[string]any{"name": "domain"}}},
				},
			},
			map[string]any{
				"id": "resolve-1",
				"data": map[string]any{
					"type":       "enricher",
					"class_name": "ResolveEnricher",
					"outputs":    map[string]any{"properties": []any{map[string]any{"name": "address"}}},
				},
			},
		},
		"edges": []any{
			map[string]any{"source": "seed", "target": "resolve-1"},
		},
	}

	rec := do(t, s, http.MethodPost, "/flows/create", map[string]any{
		"name":        "Domain recon",
		"category":    []string{"Domain"},
		"flow_schema": schema,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decode(t, rec, &created)
	id := created["id"].(string)

	rec = do(t, s, http.MethodPost, "/flows/"+id+"/compute", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		FlowBranches []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Steps []struct {
				NodeID string `json:"nodeId"`
				Type   string `json:"type"`
			} `json:"steps"`
		} `json:"flowBranches"`
		InitialData any `json:"initialData"`
	}
	decode(t, rec, &body)

	// No seed in the request: the Domain category supplies sample data.
	assert.Equal(t, "example.com", body.InitialData)
	require.Len(t, body.FlowBranches, 1)
	assert.Equal(t, "Main Flow", body.FlowBranches[0].Name)
	require.Len(t, body.FlowBranches[0].Steps, 2)
	assert.Equal(t, "resolve-1", body.FlowBranches[0].Steps[1].NodeID)
}

func TestComputeFlowWithPostedGraph(t *testing.T) {
	s := newTestServer(t)

	// The stored schema is empty; the editor posts its working graph.
	rec := do(t, s, http.MethodPost, "/flows/create", map[string]any{
		"name":        "scratch",
		"flow_schema": map[string]any{},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decode(t, rec, &created)

	rec = do(t, s, http.MethodPost, "/flows/"+created["id"].(string)+"/compute", map[string]any{
		"inputType": "Ip",
		"nodes": []any{
			map[string]any{
				"id": "seed",
				"data": map[string]any{
					"type":    "type",
					"outputs": map[string]any{"properties": []any{map[string]any{"name": "address"}}},
				},
			},
			map[string]any{
				"id": "resolve-1",
				"data": map[string]any{
					"type":       "enricher",
					"class_name": "ResolveEnricher",
					"outputs":    map[string]any{"properties": []any{map[string]any{"name": "domain"}}},
				},
			},
		},
		"edges": []any{map[string]any{"source": "seed", "target": "resolve-1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, "192.168.1.1", body["initialData"])
	branches := body["flowBranches"].([]any)
	require.Len(t, branches, 1)
	steps := branches[0].(map[string]any)["steps"].([]any)
	require.Len(t, steps, 2)
	assert.Equal(t, "resolve-1", steps[1].(map[string]any)["nodeId"])
}

func TestComputeFlowUnknownEnricherYieldsErrorBranch(t *testing.T) {
	s := newTestServer(t)
	schema := map[string]any{
		"nodes": []any{
			map[string]any{
				"id":   "seed",
				"data": map[string]any{"type": "type", "outputs": map[string]any{"properties": []any{map[string]any{"name": "domain"}}}},
			},
			map[string]any{
				"id":   "ghost-1",
				"data": map[string]any{"type": "enricher", "outputs": map[string]any{"properties": []any{}}},
			},
		},
		"edges": []any{map[string]any{"source": "seed", "target": "ghost-1"}},
	}

	rec := do(t, s, http.MethodPost, "/flows/create", map[string]any{
		"name": "broken", "category": []string{"Domain"}, "flow_schema": schema,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decode(t, rec, &created)

	rec = do(t, s, http.MethodPost, "/flows/"+created["id"].(string)+"/compute", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	branches := body["flowBranches"].([]any)
	require.Len(t, branches, 1)
	steps := branches[0].(map[string]any)["steps"].([]any)
	assert.Equal(t, "error", steps[0].(map[string]any)["type"])
}

func TestScanNotFoundOverHTTP(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/scans/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var errBody map[string]string
	decode(t, rec, &errBody)
	assert.Contains(t, errBody["detail"], "scan not found")
}

func TestLaunchUnknownEnricher(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/enrichers/ghost/launch", map[string]any{
		"sketch_id": "sketch-1", "values": []any{"example.com"},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
