// Package entity defines the semantic types that flow through enrichers and
// the registry that maps type names to their schemas.
//
// A Type declares a set of fields, exactly one primary key field and an
// optional label field. Records are validated against a compiled JSON schema
// before they become entities; an entity that fails validation never enters
// the system.
package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// FieldKind classifies a field value.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindBoolean FieldKind = "boolean"
	KindObject  FieldKind = "object"
	KindArray   FieldKind = "array"
)

// Field describes one field of an entity type.
type Field struct {
	Name        string    `json:"name"`
	Kind        FieldKind `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
	// EntityType names the nested entity type for object or array fields.
	// Nested entities are never stored as node properties by the graph
	// writer; they become separate nodes.
	EntityType string `json:"entity_type,omitempty"`
}

// Type is the declaration of an entity type.
type Type struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	PrimaryKey  string  `json:"primary_key"`
	LabelField  string  `json:"label_field,omitempty"`
	Fields      []Field `json:"fields"`

	compiled *jsonschema.Schema
}

// ValidationError reports a record that does not satisfy its type's schema.
type ValidationError struct {
	TypeName string
	Fields   []string
	Err      error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("validation failed for %s: invalid fields %s", e.TypeName, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("validation failed for %s: %v", e.TypeName, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// HasField reports whether the type declares a field with the given name.
func (t *Type) HasField(name string) bool {
	for _, f := range t.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// JSONSchema returns a JSON-schema-compatible description of the type, used
// by the UI editor and API introspection.
func (t *Type) JSONSchema() map[string]any {
	props := map[string]any{}
	var required []any
	for _, f := range t.Fields {
		props[f.Name] = f.schema()
		if f.Required {
			required = append(required, f.Name)
		}
	}
	s := map[string]any{
		"title":                t.Name,
		"description":          t.Description,
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (f Field) schema() map[string]any {
	s := map[string]any{}
	switch f.Kind {
	case KindString:
		s["type"] = "string"
	case KindNumber:
		s["type"] = "number"
	case KindBoolean:
		s["type"] = "boolean"
	case KindObject:
		s["type"] = "object"
	case KindArray:
		s["type"] = "array"
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	return s
}

// compile builds the jsonschema validator for the type.
func (t *Type) compile() error {
	doc, err := normalize(t.JSONSchema())
	if err != nil {
		return err
	}
	c := jsonschema.NewCompiler()
	url := "flowsint://types/" + strings.ToLower(t.Name) + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return fmt.Errorf("add schema resource for %s: %w", t.Name, err)
	}
	t.compiled, err = c.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", t.Name, err)
	}
	return nil
}

// Validate checks a record against the type's schema. The record is
// normalized to plain JSON values first so that callers may pass native Go
// numbers. On failure the returned error is a *ValidationError listing the
// offending fields.
func (t *Type) Validate(record map[string]any) (map[string]any, error) {
	doc, err := normalize(record)
	if err != nil {
		return nil, &ValidationError{TypeName: t.Name, Err: err}
	}
	rec, ok := doc.(map[string]any)
	if !ok {
		return nil, &ValidationError{TypeName: t.Name, Err: fmt.Errorf("record is not an object")}
	}
	if t.compiled == nil {
		if err := t.compile(); err != nil {
			return nil, err
		}
	}
	if err := t.compiled.Validate(doc); err != nil {
		return nil, &ValidationError{TypeName: t.Name, Fields: offendingFields(err), Err: err}
	}
	if _, ok := rec[t.PrimaryKey]; !ok {
		return nil, &ValidationError{TypeName: t.Name, Fields: []string{t.PrimaryKey}, Err: fmt.Errorf("missing primary key %q", t.PrimaryKey)}
	}
	return rec, nil
}

func offendingFields(err error) []string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil
	}
	var fields []string
	seen := map[string]bool{}
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.InstanceLocation) > 0 {
			f := v.InstanceLocation[0]
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(verr)
	return fields
}

// normalize round-trips a value through encoding/json so that schema
// validation sees plain JSON values regardless of the Go types callers used.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Entity is a validated, immutable record of a type.
type Entity struct {
	typ    *Type
	fields map[string]any
}

// New validates the record against the type and returns the entity.
func (t *Type) New(record map[string]any) (*Entity, error) {
	rec, err := t.Validate(record)
	if err != nil {
		return nil, err
	}
	return &Entity{typ: t, fields: rec}, nil
}

// Type returns the entity's type declaration.
func (e *Entity) Type() *Type { return e.typ }

// Get returns the value of a field.
func (e *Entity) Get(name string) any { return e.fields[name] }

// PrimaryKey returns the value of the type's primary key field as a string.
func (e *Entity) PrimaryKey() string {
	return stringify(e.fields[e.typ.PrimaryKey])
}

// Label returns the stored label or, when absent, the primary key value.
func (e *Entity) Label() string {
	if e.typ.LabelField != "" {
		if v, ok := e.fields[e.typ.LabelField]; ok && v != nil && v != "" {
			return stringify(v)
		}
	}
	if v, ok := e.fields["label"]; ok && v != nil && v != "" {
		return stringify(v)
	}
	return e.PrimaryKey()
}

// Map returns a copy of the entity's fields.
func (e *Entity) Map() map[string]any {
	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// Scalars returns the scalar fields of the entity, skipping nested entity
// values. This is what the graph writer stores as node properties.
func (e *Entity) Scalars() map[string]any {
	out := map[string]any{}
	for _, f := range e.typ.Fields {
		v, ok := e.fields[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case KindObject:
			continue
		case KindArray:
			if f.EntityType != "" {
				continue
			}
			out[f.Name] = v
		default:
			out[f.Name] = v
		}
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
