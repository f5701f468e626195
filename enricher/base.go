package enricher

import (
	"context"
	"fmt"

	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/graph"
	"github.com/flowsint/flowsint/log"
	"github.com/flowsint/flowsint/vault"
)

// Config carries the run scope an enricher is constructed with.
type Config struct {
	SketchID string
	ScanID   string
	// Writer receives graph upserts from postprocess. May be nil for
	// compile-only usage; graph helpers then do nothing.
	Writer graph.Writer
	// Vault resolves vaultSecret parameters for the launching user.
	Vault *vault.Vault
	// Params is the node's parameter map from the flow editor.
	Params map[string]any
}

// Base implements the shared parts of the enricher contract: parameter
// validation, secret resolution at construction, generic preprocessing and
// graph write helpers. Concrete enrichers embed it and implement Scan plus,
// usually, Postprocess.
type Base struct {
	desc    Descriptor
	cfg     Config
	secrets map[string]string
}

// NewBase validates cfg.Params against the descriptor's parameter schema and
// resolves every vaultSecret entry. A missing required parameter fails
// construction with *ConfigError before any network call is attempted.
func NewBase(ctx context.Context, desc Descriptor, cfg Config) (*Base, error) {
	if cfg.Params == nil {
		cfg.Params = map[string]any{}
	}
	b := &Base{desc: desc, cfg: cfg, secrets: map[string]string{}}
	for _, p := range desc.Params {
		raw, present := cfg.Params[p.Name]
		if p.Kind == ParamVaultSecret {
			paramValue, _ := raw.(string)
			value, ok := cfg.Vault.GetSecret(ctx, p.Name, paramValue)
			if ok {
				b.secrets[p.Name] = value
				continue
			}
			if p.Required {
				return nil, &ConfigError{Name: p.Name}
			}
			continue
		}
		if !present || raw == nil || raw == "" {
			if p.Default != nil {
				cfg.Params[p.Name] = p.Default
				continue
			}
			if p.Required {
				return nil, &ConfigError{Name: p.Name}
			}
		}
	}
	return b, nil
}

// Descriptor returns the declared surface.
func (b *Base) Descriptor() Descriptor { return b.desc }

// SketchID returns the sketch scope of this run.
func (b *Base) SketchID() string { return b.cfg.SketchID }

// ScanID returns the scan identifier of this run.
func (b *Base) ScanID() string { return b.cfg.ScanID }

// Param returns a parameter value after defaulting.
func (b *Base) Param(name string) any { return b.cfg.Params[name] }

// Secret returns a secret resolved at construction.
func (b *Base) Secret(name string) string { return b.secrets[name] }

// Preprocess coerces raw inputs into validated entities of the declared
// input type. Strings become records bound to the primary input key; maps are
// validated as-is, except that a single entry under an undeclared key (the
// handle-less edge wrapper) is unwrapped first. Invalid items are dropped
// with a warning; when every item of a non-empty batch is invalid the whole
// step fails validation.
func (b *Base) Preprocess(ctx context.Context, raw []any) ([]*entity.Entity, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	typ, err := b.inputEntityType()
	if err != nil {
		return nil, err
	}
	var out []*entity.Entity
	var lastErr error
	for _, item := range raw {
		e, err := coerce(typ, b.desc.Key, item)
		if err != nil {
			lastErr = err
			log.Warnf("[%s] dropping invalid input %v: %v", b.desc.Name, item, err)
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		if verr, ok := lastErr.(*entity.ValidationError); ok {
			return nil, verr
		}
		return nil, &entity.ValidationError{TypeName: typ.Name, Err: fmt.Errorf("no valid inputs")}
	}
	return out, nil
}

func (b *Base) inputEntityType() (*entity.Type, error) {
	name := b.desc.InputType
	if name == "" || name == TypeAny {
		// Generic connectors accept anything; free text maps onto Phrase.
		return entity.Phrase, nil
	}
	typ, ok := entity.Get(name)
	if !ok {
		return nil, &EngineError{Msg: fmt.Sprintf("unknown input type %q for enricher %s", name, b.desc.Name)}
	}
	return typ, nil
}

func coerce(typ *entity.Type, key string, item any) (*entity.Entity, error) {
	switch v := item.(type) {
	case *entity.Entity:
		if v.Type().Name != typ.Name {
			return nil, &entity.ValidationError{TypeName: typ.Name, Err: fmt.Errorf("entity of type %s where %s expected", v.Type().Name, typ.Name)}
		}
		return v, nil
	case string:
		if key == "" {
			key = typ.PrimaryKey
		}
		return typ.New(map[string]any{key: v})
	case map[string]any:
		// Reference resolution hands records keyed by the edge's target
		// handle, which defaults to "input". A single entry under a key the
		// type does not declare is unwrapped and bound like a bare value.
		if len(v) == 1 {
			for k, val := range v {
				if typ.HasField(k) {
					break
				}
				if rec, ok := val.(map[string]any); ok {
					return typ.New(rec)
				}
				if key == "" {
					key = typ.PrimaryKey
				}
				return typ.New(map[string]any{key: val})
			}
		}
		return typ.New(v)
	default:
		return nil, &entity.ValidationError{TypeName: typ.Name, Err: fmt.Errorf("unsupported input of type %T", item)}
	}
}

// Postprocess is a no-op by default; enrichers that write to the graph
// override it.
func (b *Base) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	return results, nil
}

// CreateNode upserts an entity node into the sketch graph.
func (b *Base) CreateNode(ctx context.Context, e *entity.Entity) error {
	if b.cfg.Writer == nil {
		return nil
	}
	return b.cfg.Writer.UpsertNode(ctx, e, b.cfg.SketchID)
}

// CreateRelationship upserts a typed edge between two entities.
func (b *Base) CreateRelationship(ctx context.Context, src, dst *entity.Entity, relation string) error {
	return b.CreateRelationshipWithProps(ctx, src, dst, relation, nil)
}

// CreateRelationshipWithProps upserts a typed edge carrying scalar
// attributes, used for transaction-like relations.
func (b *Base) CreateRelationshipWithProps(ctx context.Context, src, dst *entity.Entity, relation string, props map[string]any) error {
	if b.cfg.Writer == nil {
		return nil
	}
	return b.cfg.Writer.UpsertEdge(ctx, src, dst, relation, b.cfg.SketchID, props)
}

// LogGraphMessage attaches a human-readable progress message to the run.
func (b *Base) LogGraphMessage(format string, args ...any) {
	log.Infof("[sketch %s] "+format, append([]any{b.cfg.SketchID}, args...)...)
}
