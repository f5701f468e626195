package graph

// Display-only properties the UI stores on nodes.
var displayKeys = []string{"x", "y", "caption", "color"}

// CleanNodeData strips storage metadata and display fields from a raw node
// record and drops empty values. Parsing into typed entities happens later in
// the enricher's preprocess step; the loader is deliberately schema-agnostic.
func CleanNodeData(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		if k == MetaSketchID || k == MetaCreatedAt || k == MetaType {
			continue
		}
		if isDisplayKey(k) {
			continue
		}
		if isEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

func isDisplayKey(k string) bool {
	for _, d := range displayKeys {
		if k == d {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
