package server

import (
	"net/http"
	"slices"
	"sort"

	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/store"
)

// listTypes returns the entity type catalog grouped by category, with the
// caller's visible custom types appended under their own group.
func (s *Server) listTypes(w http.ResponseWriter, r *http.Request) {
	out := map[string][]map[string]any{}
	for _, t := range entity.Types.All() {
		out[t.Category] = append(out[t.Category], typeMetadata(t))
	}
	custom, err := s.db.ListCustomTypes(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, ct := range custom {
		out["Custom types"] = append(out["Custom types"], customTypeMetadata(ct))
	}
	writeJSON(w, http.StatusOK, out)
}

// typeCatalog flattens the type list for the editor palette.
func typeCatalog() []map[string]any {
	var out []map[string]any
	for _, t := range entity.Types.All() {
		out = append(out, typeMetadata(t))
	}
	return out
}

func typeMetadata(t *entity.Type) map[string]any {
	fields := make([]map[string]any, 0, len(t.Fields))
	for _, f := range t.Fields {
		fields = append(fields, map[string]any{
			"name":     f.Name,
			"type":     string(f.Kind),
			"required": f.Required,
		})
	}
	return map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"category":    t.Category,
		"primary_key": t.PrimaryKey,
		"fields":      fields,
	}
}

// customTypeMetadata shapes a stored custom type like a built-in entry. The
// primary key falls back to the schema's first required property, then its
// first property.
func customTypeMetadata(ct *store.CustomType) map[string]any {
	props, _ := ct.Schema["properties"].(map[string]any)
	var required []string
	if raw, ok := ct.Schema["required"].([]any); ok {
		for _, item := range raw {
			if name, ok := item.(string); ok {
				required = append(required, name)
			}
		}
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	primary := "value"
	if len(required) > 0 {
		primary = required[0]
	} else if len(names) > 0 {
		primary = names[0]
	}

	fields := make([]map[string]any, 0, len(names))
	for _, name := range names {
		info, _ := props[name].(map[string]any)
		kind, _ := info["type"].(string)
		if kind == "" {
			kind = "string"
		}
		fields = append(fields, map[string]any{
			"name":     name,
			"type":     kind,
			"required": slices.Contains(required, name),
		})
	}

	desc, _ := ct.Schema["description"].(string)
	return map[string]any{
		"name":        ct.Name,
		"description": desc,
		"category":    "Custom types",
		"primary_key": primary,
		"fields":      fields,
		"custom":      true,
	}
}
