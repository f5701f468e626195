package enricher

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a name does not resolve to a registered
// enricher.
var ErrNotFound = errors.New("enricher not found")

// ConfigError reports a required vault secret or parameter missing at
// enricher construction. The step is never attempted.
type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required parameter or secret %q", e.Name)
}

// EnricherError wraps a transient failure inside an enricher's scan phase.
type EnricherError struct {
	Enricher string
	Err      error
}

func (e *EnricherError) Error() string {
	return fmt.Sprintf("enricher %s: %v", e.Enricher, e.Err)
}

func (e *EnricherError) Unwrap() error { return e.Err }

// EngineError reports an orchestrator internal invariant violation.
type EngineError struct {
	Msg string
}

func (e *EngineError) Error() string { return "engine error: " + e.Msg }
