// Package planner lowers a flattened query expression into an operation
// DAG. It is a direct structural descendant of the teacher's BuildDAG
// pass: the same "walk the IR, resolve named references via a lookup, emit
// nodes and deps" shape, narrowed to this language's fixed three operation
// kinds and its tree-shaped (non-reconverging) DAG.
package planner

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/dag"
	"github.com/vidlang/dve/pkg/expr"
	"github.com/vidlang/dve/pkg/pkgerr"
	"github.com/vidlang/dve/pkg/timeline"
)

const (
	// TargetWidth and TargetHeight are the fixed output frame dimensions
	// every Clip is scaled to.
	TargetWidth  = 1280
	TargetHeight = 720
)

// ScratchNamer produces a fresh, unique scratch file path on every call.
// The default is UUID-backed; tests supply a deterministic one so plan
// snapshots are stable.
type ScratchNamer func() string

// DefaultScratchNamer names scratch files /scratch/tmp_<uuid>.mp4.
func DefaultScratchNamer() string {
	return fmt.Sprintf("/scratch/tmp_%s.mp4", uuid.NewString())
}

// Planner lowers a Spec into a dag.Plan, consulting a Catalog to resolve
// source names and a ScratchNamer for intermediate output names.
type Planner struct {
	Catalog catalog.Catalog
	Namer   ScratchNamer
}

// New returns a Planner using the UUID-backed default scratch namer.
func New(cat catalog.Catalog) *Planner {
	return &Planner{Catalog: cat, Namer: DefaultScratchNamer}
}

// Plan lowers spec into a complete dag.Plan. After flattening the spec, a
// single leaf lowers directly into the root node; multiple leaves are
// wrapped in a Concat over per-leaf scratch outputs.
func (p *Planner) Plan(spec expr.Spec) (dag.Plan, error) {
	leaves := spec.FlattenMatches()
	if len(leaves) == 0 {
		return dag.Plan{}, pkgerr.BadSpecf("spec flattens to zero leaves")
	}

	if len(leaves) == 1 {
		root, err := p.planClip(leaves[0].Range, leaves[0].Expr, spec.Output)
		if err != nil {
			return dag.Plan{}, err
		}
		return dag.Plan{Root: root}, nil
	}

	var deps []*dag.DagNode
	var outputs []string
	for _, leaf := range leaves {
		out := p.Namer()
		node, err := p.planClip(leaf.Range, leaf.Expr, out)
		if err != nil {
			return dag.Plan{}, err
		}
		deps = append(deps, node)
		outputs = append(outputs, out)
	}

	root := &dag.DagNode{
		Op:   dag.Concat{Inputs: outputs, Output: spec.Output},
		Deps: deps,
	}
	return dag.Plan{Root: root}, nil
}

// planClip recursively lowers a single (Range, FrameExpr) leaf into a
// DagNode producing output. MatchT is unreachable here: the spec has
// already been flattened, so every remaining node is Source or F2F.
func (p *Planner) planClip(r timeline.Range, e expr.FrameExpr, output string) (*dag.DagNode, error) {
	switch v := e.(type) {
	case *expr.Source:
		if v.Func != expr.ReadFrame {
			return nil, pkgerr.BadSpecf("unrecognized source function %q", v.Func)
		}
		tr := v.T.Range(r)
		return &dag.DagNode{
			Op: dag.Clip{
				Input:  v.Source,
				Range:  tr,
				Output: output,
				Method: dag.Transcode,
				Codec:  catalog.H264,
			},
		}, nil

	case expr.F2F:
		switch v.Func {
		case expr.Quadrants:
			return p.planQuadrants(r, v, output)
		case expr.Filter:
			return p.planFilter(r, v, output)
		default:
			return nil, pkgerr.BadSpecf("unrecognized F2F function %q", v.Func)
		}

	case expr.MatchT:
		return nil, pkgerr.BadSpecf("MatchT reached the planner after flattening; this is a bug in flattening")

	default:
		return nil, pkgerr.BadSpecf("unrecognized FrameExpr variant %T", e)
	}
}

func (p *Planner) planQuadrants(r timeline.Range, f expr.F2F, output string) (*dag.DagNode, error) {
	if len(f.Sources) != 4 {
		return nil, pkgerr.BadSpecf("quadrants requires exactly 4 sources, got %d", len(f.Sources))
	}

	quadOuts := [4]string{p.Namer(), p.Namer(), p.Namer(), p.Namer()}
	deps := make([]*dag.DagNode, 4)
	inputs := make([]dag.FilterInput, 4)
	for i, src := range f.Sources {
		node, err := p.planClip(r, src, quadOuts[i])
		if err != nil {
			return nil, err
		}
		deps[i] = node
		inputs[i] = dag.FilterInput{Path: quadOuts[i]}
	}

	return &dag.DagNode{
		Op: dag.Filter{
			Inputs:  inputs,
			Filter:  quadrantsFilterGraph(),
			Complex: true,
			Approx:  false,
			Output:  output,
		},
		Deps: deps,
	}, nil
}

// quadrantsFilterGraph is the fixed 2x2 overlay graph: each quadrant is
// scaled to TargetWidth x TargetHeight, then composited onto a
// 2*TargetWidth x 2*TargetHeight base with A top-left, B top-right, C
// bottom-left, D bottom-right.
func quadrantsFilterGraph() string {
	w, h := TargetWidth, TargetHeight
	dubW, dubH := w*2, h*2
	return fmt.Sprintf(
		"nullsrc=size=%dx%d [base];"+
			"[0:v] setpts=PTS-STARTPTS, scale=%dx%d [upperleft];"+
			"[1:v] setpts=PTS-STARTPTS, scale=%dx%d [upperright];"+
			"[2:v] setpts=PTS-STARTPTS, scale=%dx%d [lowerleft];"+
			"[3:v] setpts=PTS-STARTPTS, scale=%dx%d [lowerright];"+
			"[base][upperleft] overlay=shortest=1 [tmp1];"+
			"[tmp1][upperright] overlay=shortest=1:x=%d [tmp2];"+
			"[tmp2][lowerleft] overlay=shortest=1:y=%d [tmp3];"+
			"[tmp3][lowerright] overlay=shortest=1:x=%d:y=%d",
		dubW, dubH, w, h, w, h, w, h, w, h, w, h, w, h,
	)
}

func (p *Planner) planFilter(r timeline.Range, f expr.F2F, output string) (*dag.DagNode, error) {
	if len(f.Sources) != 1 {
		return nil, pkgerr.BadSpecf("filter requires exactly 1 source, got %d", len(f.Sources))
	}
	if len(f.Args) != 1 {
		return nil, pkgerr.BadSpecf("filter requires exactly 1 string arg, got %d", len(f.Args))
	}
	filterStr, err := expr.UnwrapConstStr(f.Args[0])
	if err != nil {
		return nil, err
	}

	sourceOut := p.Namer()
	dep, err := p.planClip(r, f.Sources[0], sourceOut)
	if err != nil {
		return nil, err
	}

	return &dag.DagNode{
		Op: dag.Filter{
			Inputs:  []dag.FilterInput{{Path: sourceOut}},
			Filter:  filterStr,
			Complex: false,
			Approx:  false,
			Output:  output,
		},
		Deps: []*dag.DagNode{dep},
	}, nil
}
