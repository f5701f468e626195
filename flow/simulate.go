package flow

import (
	"fmt"
	"strings"
)

// simulateOutputs produces placeholder values typed by the enricher node's
// declared output schema. Compilation never runs enrichers; the editor only
// needs representative shapes to preview data flowing through the graph.
func simulateOutputs(node Node, inputs map[string]any) map[string]any {
	outputs := map[string]any{}
	props := node.Data.Outputs.Properties
	if len(props) == 0 {
		props = []OutputField{{Name: "output"}}
	}
	for _, p := range props {
		name := p.Name
		if name == "" {
			name = "output"
		}
		outputs[name] = simulateValue(node.Data.ClassName, name, inputs)
	}
	return outputs
}

func simulateValue(className, outputName string, inputs map[string]any) any {
	switch className {
	case "ReverseResolveEnricher", "ResolveEnricher":
		if strings.Contains(strings.ToLower(outputName), "ip") {
			return "192.168.1.1"
		}
		return "example.com"
	case "SubdomainEnricher":
		return fmt.Sprintf("sub.%v", inputOr(inputs, "example.com"))
	case "WhoisEnricher":
		return map[string]any{
			"domain":        inputOr(inputs, "example.com"),
			"registrar":     "Example Registrar",
			"creation_date": "2020-01-01",
		}
	case "IpToInfosEnricher":
		return map[string]any{
			"country":     "France",
			"city":        "Paris",
			"coordinates": map[string]any{"lat": 48.8566, "lon": 2.3522},
		}
	case "MaigretEnricher":
		return map[string]any{
			"username":  inputOr(inputs, "user123"),
			"platforms": []any{"twitter", "github", "linkedin"},
		}
	default:
		if v := inputs["input"]; v != nil {
			return v
		}
		return "flowed_" + outputName
	}
}

func inputOr(inputs map[string]any, fallback any) any {
	if v := inputs["input"]; v != nil {
		return v
	}
	return fallback
}

// SampleData produces a representative seed value for a type name, used by
// compile-only requests that carry no real seed.
func SampleData(typeName string) any {
	switch strings.ToLower(typeName) {
	case "", "string":
		return "sample_text"
	case "number":
		return 42
	case "boolean":
		return true
	case "array":
		return []any{1, 2, 3}
	case "object":
		return map[string]any{"key": "value"}
	case "url":
		return "https://example.com"
	case "email":
		return "user@example.com"
	case "domain":
		return "example.com"
	case "ip":
		return "192.168.1.1"
	default:
		return "sample_" + strings.ToLower(typeName)
	}
}
