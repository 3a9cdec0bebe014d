// Package dag models the operation DAG the planner produces and the
// optimizer rewrites: a fixed set of media operations (Clip, Concat,
// Filter) connected into a tree in which every producer has exactly one
// consumer. The executor (pkg/executor) walks this tree bottom-up; the
// command printer (pkg/printer) turns a single Op into a media-tool
// invocation.
package dag

import (
	"fmt"
	"strings"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/timeline"
)

// Method selects how a Clip materializes its output.
type Method int

const (
	// Transcode fully decodes and re-encodes.
	Transcode Method = iota
	// StreamCopy remuxes without re-encoding; only valid when the cut
	// points land on keyframes.
	StreamCopy
)

func (m Method) String() string {
	if m == StreamCopy {
		return "StreamCopy"
	}
	return "Transcode"
}

// FilterInput is one labelled input to a Filter op: a source path and an
// optional bound range. A nil Range means the input is itself the output
// of a dependency DagNode rather than a seek into a raw source.
type FilterInput struct {
	Path  string
	Range *timeline.Range
}

// Op is the sum type over which DagNode is built: Clip, Concat, Filter.
type Op interface {
	// Out is the scratch (or final) output name this op produces.
	Out() string
	String() string
	opMarker()
}

// Clip extracts Range from Input, named Out, via Method using Codec when
// transcoding.
type Clip struct {
	Input  string
	Range  timeline.Range
	Output string
	Method Method
	Codec  catalog.Codec
}

func (Clip) opMarker()     {}
func (c Clip) Out() string { return c.Output }
func (c Clip) String() string {
	return fmt.Sprintf("Clip(%s on %s from %s to %s)", c.Method, c.Input, c.Range.Start, c.Range.End)
}

// Concat concatenates Inputs (by scratch name or path) in order into Out.
type Concat struct {
	Inputs []string
	Output string
}

func (Concat) opMarker()     {}
func (c Concat) Out() string { return c.Output }
func (c Concat) String() string {
	return fmt.Sprintf("Concat(%s)", strings.Join(c.Inputs, ", "))
}

// Filter applies Filter (a media-tool filter-graph fragment) across
// Inputs, writing Out. Complex selects the complex-filter-graph form
// (multiple labelled inputs); Approx makes the printer insert an fps=12
// step before scaling, trading frame-accuracy for speed.
type Filter struct {
	Inputs  []FilterInput
	Filter  string
	Complex bool
	Approx  bool
	Output  string
}

func (Filter) opMarker()     {}
func (f Filter) Out() string { return f.Output }
func (f Filter) String() string {
	return fmt.Sprintf("Filter(%q, complex=%v, approx=%v)", f.Filter, f.Complex, f.Approx)
}

// DagNode is one node of the plan tree: an Op plus the nodes that must run
// before it. Deps are owned by DagNode; the tree never shares a node
// between two consumers.
type DagNode struct {
	Op   Op
	Deps []*DagNode
}

func (n *DagNode) String() string {
	if len(n.Deps) == 0 {
		return n.Op.String()
	}
	parts := make([]string, len(n.Deps))
	for i, d := range n.Deps {
		parts[i] = d.String()
	}
	return fmt.Sprintf("%s after [%s]", n.Op, strings.Join(parts, ", "))
}

// Plan is a root DagNode: the whole compiled query.
type Plan struct {
	Root *DagNode
}

func (p Plan) String() string {
	return fmt.Sprintf("Plan(%s)", p.Root)
}

// Walk calls fn for every node in the tree rooted at n, post-order
// (dependencies before the node itself) — the same order the executor
// runs in sequential mode.
func Walk(n *DagNode, fn func(*DagNode)) {
	for _, d := range n.Deps {
		Walk(d, fn)
	}
	fn(n)
}
