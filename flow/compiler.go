package flow

import (
	"fmt"
	"sort"

	"github.com/flowsint/flowsint/enricher"
)

const unreachable = 1 << 30

// Compiler converts a flow plus one seed value into an ordered list of
// branches. Compilation never runs enrichers: enricher outputs are
// placeholders typed by the node's declared output schema, cached per node so
// shared-prefix branches stay consistent.
type Compiler struct {
	seed    any
	nodes   map[string]Node
	edges   []Edge
	reg     *enricher.Registry
	opOrder []Node

	branches      []Branch
	branchCounter int
	// outputs caches simulated enricher outputs by node id: the same node
	// visited from two branches must yield the same placeholder.
	outputs map[string]map[string]any
}

// Compile builds the branch list for one seed value. A malformed flow yields
// a single synthetic error branch, never a panic. reg may be nil to skip
// enricher existence checks (pure structural compilation).
func Compile(seed any, nodes []Node, edges []Edge, reg *enricher.Registry) []Branch {
	c := &Compiler{
		seed:    seed,
		nodes:   make(map[string]Node, len(nodes)),
		edges:   edges,
		reg:     reg,
		outputs: map[string]map[string]any{},
	}
	for _, n := range nodes {
		c.nodes[n.ID] = n
	}
	c.opOrder = nodes

	if err := c.validate(); err != nil {
		return errorBranch(err.Error())
	}

	var inputNodes []Node
	for _, n := range nodes {
		if n.Data.Type == NodeTypeType {
			inputNodes = append(inputNodes, n)
		}
	}
	if len(inputNodes) == 0 {
		return errorBranch("flow has no type node to seed from")
	}

	for i, input := range inputNodes {
		branchID := fmt.Sprintf("branch-%d", i)
		branchName := "Main Flow"
		if len(inputNodes) > 1 {
			branchName = fmt.Sprintf("Flow %d", i+1)
		}
		var path []string
		var steps []Step
		c.explore(input.ID, branchID, branchName, 0, map[string]any{}, &path, map[string]bool{}, &steps, nil)
	}

	sort.SliceStable(c.branches, func(i, j int) bool {
		return len(c.branches[i].Steps) < len(c.branches[j].Steps)
	})
	return c.branches
}

// validate checks edge endpoints, edge handles and enricher references.
func (c *Compiler) validate() error {
	for _, e := range c.edges {
		src, ok := c.nodes[e.Source]
		if !ok {
			return fmt.Errorf("edge references unknown source node %q", e.Source)
		}
		if _, ok := c.nodes[e.Target]; !ok {
			return fmt.Errorf("edge references unknown target node %q", e.Target)
		}
		if e.SourceHandle != "" && len(src.Data.Outputs.Properties) > 0 {
			found := false
			for _, p := range src.Data.Outputs.Properties {
				if p.Name == e.SourceHandle {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("edge source handle %q names no output field of node %q", e.SourceHandle, e.Source)
			}
		}
	}
	if c.reg != nil {
		for _, n := range c.opOrder {
			if n.Data.Type != NodeTypeEnricher {
				continue
			}
			name := n.Data.Name
			if name == "" {
				name = EnricherName(n.ID)
			}
			if !c.reg.Exists(name) {
				return fmt.Errorf("unknown enricher %q on node %q", name, n.ID)
			}
		}
	}
	return nil
}

// pathLength computes the shortest possible path length from a node to any
// leaf, treating revisits as unreachable.
func (c *Compiler) pathLength(nodeID string, visited map[string]bool) int {
	if visited[nodeID] {
		return unreachable
	}
	visited[nodeID] = true

	var out []Edge
	for _, e := range c.edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return 1
	}
	min := unreachable
	for _, e := range out {
		branchVisited := make(map[string]bool, len(visited))
		for k := range visited {
			branchVisited[k] = true
		}
		if l := c.pathLength(e.Target, branchVisited); l < min {
			min = l
		}
	}
	if min == unreachable {
		return min
	}
	return 1 + min
}

// outEdges returns the node's outgoing edges sorted ascending by the target's
// shortest distance to a leaf; ties keep the edges' original listing order.
// The first edge extends the current branch, the rest fork siblings.
func (c *Compiler) outEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range c.edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.pathLength(out[i].Target, map[string]bool{}) < c.pathLength(out[j].Target, map[string]bool{})
	})
	return out
}

func (c *Compiler) explore(
	nodeID, branchID, branchName string,
	depth int,
	inputData map[string]any,
	path *[]string,
	visited map[string]bool,
	steps *[]Step,
	parentOutputs map[string]any,
) {
	// Never revisit a node within the same branch.
	for _, p := range *path {
		if p == nodeID {
			return
		}
	}
	node, ok := c.nodes[nodeID]
	if !ok {
		return
	}

	isInput := node.Data.Type == NodeTypeType
	var outputs map[string]any
	if isInput {
		name := "output"
		if props := node.Data.Outputs.Properties; len(props) > 0 && props[0].Name != "" {
			name = props[0].Name
		}
		outputs = map[string]any{name: c.seed}
	} else if cached, ok := c.outputs[nodeID]; ok {
		outputs = cached
	} else {
		outputs = simulateOutputs(node, inputData)
		c.outputs[nodeID] = outputs
	}

	step := Step{
		NodeID:   nodeID,
		Params:   node.Data.Params,
		Outputs:  outputs,
		Status:   StatusPending,
		BranchID: branchID,
		Depth:    depth,
	}
	if isInput {
		step.Type = NodeTypeType
		step.Inputs = map[string]any{}
	} else {
		step.Type = NodeTypeEnricher
		step.Inputs = inputData
	}
	*steps = append(*steps, step)
	*path = append(*path, nodeID)
	visited[nodeID] = true

	out := c.outEdges(nodeID)
	explored := false
	for i, edge := range out {
		if containsStr(*path, edge.Target) {
			continue
		}
		explored = true
		outputKey := edge.SourceHandle
		if outputKey == "" {
			outputKey = defaultHandle(node, outputs)
		}
		var outputValue any
		if outputKey != "" {
			outputValue = outputs[outputKey]
			if outputValue == nil && parentOutputs != nil {
				outputValue = parentOutputs[outputKey]
			}
		}
		inputKey := edge.TargetHandle
		if inputKey == "" {
			inputKey = "input"
		}
		nextInput := map[string]any{inputKey: outputValue}

		if i == 0 {
			// Shortest continuation stays in the current branch.
			c.explore(edge.Target, branchID, branchName, depth+1, nextInput, path, visited, steps, outputs)
		} else {
			c.branchCounter++
			newID := fmt.Sprintf("%s-%d", branchID, c.branchCounter)
			newName := fmt.Sprintf("%s (Branch %d)", branchName, c.branchCounter)
			newSteps := make([]Step, len(*steps))
			copy(newSteps, *steps)
			newPath := make([]string, len(*path))
			copy(newPath, *path)
			newVisited := make(map[string]bool, len(visited))
			for k := range visited {
				newVisited[k] = true
			}
			c.explore(edge.Target, newID, newName, depth+1, nextInput, &newPath, newVisited, &newSteps, outputs)
		}
	}
	if !explored {
		// Leaf reached, or every continuation loops back into the branch:
		// emit a by-value snapshot.
		snapshot := make([]Step, len(*steps))
		copy(snapshot, *steps)
		c.branches = append(c.branches, Branch{ID: branchID, Name: branchName, Steps: snapshot})
	}

	// Backtrack.
	*path = (*path)[:len(*path)-1]
	*steps = (*steps)[:len(*steps)-1]
}

// defaultHandle picks the output field an unlabeled edge reads from: the
// node's first declared output field, falling back to the sole output key.
func defaultHandle(node Node, outputs map[string]any) string {
	if props := node.Data.Outputs.Properties; len(props) > 0 {
		return props[0].Name
	}
	if len(outputs) == 1 {
		for k := range outputs {
			return k
		}
	}
	return ""
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func errorBranch(msg string) []Branch {
	return []Branch{{
		ID:   "error",
		Name: "Error",
		Steps: []Step{{
			NodeID:   "error",
			Type:     NodeTypeError,
			Inputs:   map[string]any{},
			Outputs:  map[string]any{},
			Status:   StatusError,
			BranchID: "error",
			Depth:    0,
			Error:    msg,
		}},
	}}
}
