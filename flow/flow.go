// Package flow models user-authored flow graphs and compiles them into
// linear execution branches.
//
// A flow is a directed graph of type nodes (seed slots) and enricher nodes
// with handle-labeled edges. Compilation turns it into an ordered list of
// branches, each one simple path from a seed node to a terminal node.
package flow

// NodeTypeType marks a seed slot of a fixed entity type.
const NodeTypeType = "type"

// NodeTypeEnricher marks a node referencing an enricher by name.
const NodeTypeEnricher = "enricher"

// NodeTypeError marks the single step of a synthetic error branch.
const NodeTypeError = "error"

// Step status values.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// OutputField describes one field of a node's output record. The first
// declared field is the default handle.
type OutputField struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// OutputSchema is the ordered list of a node's output field descriptors.
type OutputSchema struct {
	Properties []OutputField `json:"properties"`
}

// NodeData carries the editor-facing payload of a flow node.
type NodeData struct {
	// Type is "type" for seed slots and "enricher" for transforms.
	Type string `json:"type"`
	// Name is the enricher name for enricher nodes, or the entity type name
	// for type nodes.
	Name string `json:"name,omitempty"`
	// ClassName is the enricher implementation name, used by the
	// placeholder simulator.
	ClassName string         `json:"class_name,omitempty"`
	Outputs   OutputSchema   `json:"outputs"`
	Params    map[string]any `json:"params,omitempty"`
}

// Node is one node of the user-edited flow graph.
type Node struct {
	ID   string   `json:"id"`
	Data NodeData `json:"data"`
}

// Edge connects a field on the source node's output record to a field on the
// target node's input record.
type Edge struct {
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Step is one invocation of one enricher within one branch.
type Step struct {
	NodeID   string         `json:"nodeId"`
	Type     string         `json:"type"`
	Params   map[string]any `json:"params,omitempty"`
	Inputs   map[string]any `json:"inputs"`
	Outputs  map[string]any `json:"outputs"`
	Status   string         `json:"status"`
	BranchID string         `json:"branchId"`
	Depth    int            `json:"depth"`
	Error    string         `json:"error,omitempty"`
}

// Branch is a linear sequence of steps compiled from the flow graph.
// Branches share a prefix with their parent; the prefix is copied by value at
// fork points.
type Branch struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// EnricherName extracts the enricher name from a step. Node ids follow the
// editor's "<enricher_name>-<timestamp>" convention; an explicit name on the
// step params wins.
func EnricherName(nodeID string) string {
	for i := 0; i < len(nodeID); i++ {
		if nodeID[i] == '-' {
			return nodeID[:i]
		}
	}
	return nodeID
}
