// Package optimizer implements the four ordered DAG rewrite passes: seek
// pull-up, filter sharding, smart-cut, and concat squashing. Each pass is a
// pure function from plan to plan, ported one-for-one from the reference
// compiler's DOp::optimize_* methods; OptimizeHeuristic runs them in the
// one order that composes correctly (seek pull-up before sharding, so
// sharding sees concrete ranges; smart-cut before squashing, so the concat
// trees it creates get flattened).
package optimizer

import (
	"fmt"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/dag"
	"github.com/vidlang/dve/pkg/pkgerr"
	"github.com/vidlang/dve/pkg/planner"
	"github.com/vidlang/dve/pkg/rat"
	"github.com/vidlang/dve/pkg/timeline"
)

// ShardFrames is the frame-count threshold above which a Filter's inputs
// are split into parallel shards.
const ShardFrames = 300

// OptimizeHeuristic applies all four passes in the composing order: seek
// pull-up, filter sharding, smart-cut, concat squashing.
func OptimizeHeuristic(p dag.Plan, cat catalog.Catalog, namer planner.ScratchNamer) (dag.Plan, error) {
	if namer == nil {
		namer = planner.DefaultScratchNamer
	}

	root := SeekPullup(p.Root)

	root, err := ShardFilters(root, namer)
	if err != nil {
		return dag.Plan{}, err
	}

	root, err = SmartCut(root, cat, namer)
	if err != nil {
		return dag.Plan{}, err
	}

	root = ConcatSquash(root)

	return dag.Plan{Root: root}, nil
}

// SeekPullup avoids materializing a transcoded intermediate when a filter
// can seek directly into the source: for each Filter dependency that is a
// dependency-free Transcode Clip, the dependency is deleted and the
// filter's matching input is rewritten to seek the clip's own source and
// range directly.
func SeekPullup(n *dag.DagNode) *dag.DagNode {
	switch op := n.Op.(type) {
	case dag.Clip:
		deps := make([]*dag.DagNode, len(n.Deps))
		for i, d := range n.Deps {
			deps[i] = SeekPullup(d)
		}
		return &dag.DagNode{Op: op, Deps: deps}

	case dag.Concat:
		deps := make([]*dag.DagNode, len(n.Deps))
		for i, d := range n.Deps {
			deps[i] = SeekPullup(d)
		}
		return &dag.DagNode{Op: op, Deps: deps}

	case dag.Filter:
		inputs := make([]dag.FilterInput, len(op.Inputs))
		copy(inputs, op.Inputs)

		var outDeps []*dag.DagNode
		for i, dep := range n.Deps {
			if i >= len(inputs) {
				outDeps = append(outDeps, SeekPullup(dep))
				continue
			}
			if clip, ok := dep.Op.(dag.Clip); ok && clip.Method == dag.Transcode && len(dep.Deps) == 0 {
				r := clip.Range
				inputs[i] = dag.FilterInput{Path: clip.Input, Range: &r}
				continue
			}
			outDeps = append(outDeps, SeekPullup(dep))
		}

		return &dag.DagNode{
			Op:   dag.Filter{Inputs: inputs, Filter: op.Filter, Complex: op.Complex, Approx: op.Approx, Output: op.Output},
			Deps: outDeps,
		}

	default:
		return n
	}
}

// ShardFilters splits a long Filter's inputs into SHARD_FRAMES-sized
// pieces so they can run in parallel, replacing the filter with a Concat
// over the shard outputs. Only applies when the first input carries a
// bound range longer than ShardFrames (a precondition seek pull-up is
// expected to have established).
func ShardFilters(n *dag.DagNode, namer planner.ScratchNamer) (*dag.DagNode, error) {
	switch op := n.Op.(type) {
	case dag.Concat:
		deps := make([]*dag.DagNode, len(n.Deps))
		for i, d := range n.Deps {
			sharded, err := ShardFilters(d, namer)
			if err != nil {
				return nil, err
			}
			deps[i] = sharded
		}
		return &dag.DagNode{Op: op, Deps: deps}, nil

	case dag.Filter:
		if len(op.Inputs) == 0 || op.Inputs[0].Range == nil || op.Inputs[0].Range.Len() <= ShardFrames {
			return n, nil
		}
		return shardFilter(n, op, namer)

	default:
		return n, nil
	}
}

func shardFilter(n *dag.DagNode, op dag.Filter, namer planner.ScratchNamer) (*dag.DagNode, error) {
	activeRanges := make([]timeline.Range, len(op.Inputs))
	for i, in := range op.Inputs {
		if in.Range == nil {
			return nil, pkgerr.Arithmeticf("filter sharding requires every input to carry a bound range, input %d does not", i)
		}
		activeRanges[i] = *in.Range
		if activeRanges[0].Len() != activeRanges[i].Len() {
			return nil, pkgerr.Arithmeticf("filter sharding requires all inputs to have equal length: input 0 has %d, input %d has %d", activeRanges[0].Len(), i, activeRanges[i].Len())
		}
	}

	shardDuration := rat.FromInt(ShardFrames).Mul(activeRanges[0].Step)

	var outDeps []*dag.DagNode
	var outInputs []string

	for {
		// A full shard covers ShardFrames frames: [Start, Start+shardDuration-Step].
		shardPts := make([]rat.Rat, len(activeRanges))
		for i, r := range activeRanges {
			shardPts[i] = r.Start.Add(shardDuration).Sub(r.Step)
		}

		lefts := make([]timeline.Range, len(activeRanges))
		rights := make([]timeline.Range, len(activeRanges))
		for i, r := range activeRanges {
			left, right, err := r.SplitAt(shardPts[i])
			if err != nil {
				return nil, fmt.Errorf("optimizer: sharding split failed: %w", err)
			}
			lefts[i] = left
			rights[i] = right
		}

		shardName := namer()
		newInputs := make([]dag.FilterInput, len(op.Inputs))
		for i, in := range op.Inputs {
			r := lefts[i]
			newInputs[i] = dag.FilterInput{Path: in.Path, Range: &r}
		}
		outDeps = append(outDeps, &dag.DagNode{
			Op:   dag.Filter{Inputs: newInputs, Filter: op.Filter, Complex: op.Complex, Approx: op.Approx, Output: shardName},
			Deps: n.Deps,
		})
		outInputs = append(outInputs, shardName)

		for i := range activeRanges {
			activeRanges[i] = rights[i]
		}

		if activeRanges[0].Len() > ShardFrames {
			continue
		}

		// Remaining tail is no longer than a full shard: emit one final
		// shard covering it and stop.
		shardName = namer()
		newInputs = make([]dag.FilterInput, len(op.Inputs))
		for i, in := range op.Inputs {
			r := rights[i]
			newInputs[i] = dag.FilterInput{Path: in.Path, Range: &r}
		}
		outDeps = append(outDeps, &dag.DagNode{
			Op:   dag.Filter{Inputs: newInputs, Filter: op.Filter, Complex: op.Complex, Approx: op.Approx, Output: shardName},
			Deps: n.Deps,
		})
		outInputs = append(outInputs, shardName)
		break
	}

	return &dag.DagNode{
		Op:   dag.Concat{Inputs: outInputs, Output: op.Output},
		Deps: outDeps,
	}, nil
}

// SmartCut replaces a dependency-free Transcode Clip whose range spans at
// least two catalog keyframes with a Concat of (optional) Transcode head,
// StreamCopy body, (optional) Transcode tail — avoiding re-encoding the
// interior of the range. Only keyframe starts (GopBound.Start) gate the
// split; GopBound.End is not consulted, so for sources whose GOPs are not
// strictly contiguous the StreamCopy body may omit a frame.
func SmartCut(n *dag.DagNode, cat catalog.Catalog, namer planner.ScratchNamer) (*dag.DagNode, error) {
	switch op := n.Op.(type) {
	case dag.Clip:
		if len(n.Deps) > 0 {
			return n, nil
		}
		return smartCutClip(op, cat, namer)

	case dag.Concat:
		deps := make([]*dag.DagNode, len(n.Deps))
		for i, d := range n.Deps {
			cut, err := SmartCut(d, cat, namer)
			if err != nil {
				return nil, err
			}
			deps[i] = cut
		}
		return &dag.DagNode{Op: op, Deps: deps}, nil

	default:
		// Filter nodes (and anything else) are left unchanged, deps
		// included: smart-cut only ever targets bare source clips, which
		// by construction sit below any filter, not inside it.
		return n, nil
	}
}

func smartCutClip(clip dag.Clip, cat catalog.Catalog, namer planner.ScratchNamer) (*dag.DagNode, error) {
	bare := &dag.DagNode{Op: clip}

	if clip.Method != dag.Transcode {
		return bare, nil
	}

	key, err := cat.PathToKey(clip.Input)
	if err != nil {
		return nil, err
	}
	gops, err := cat.Gops(key)
	if err != nil {
		return nil, err
	}

	var iframes []rat.Rat
	for _, g := range gops {
		if !g.Start.Less(clip.Range.Start) && !clip.Range.End.Less(g.Start) {
			iframes = append(iframes, g.Start)
		}
	}

	if len(iframes) < 2 {
		return bare, nil
	}

	first, last := iframes[0], iframes[len(iframes)-1]

	var concatInputs []string
	var concatDeps []*dag.DagNode

	if clip.Range.Start.Less(first) {
		headOut := namer()
		concatInputs = append(concatInputs, headOut)
		concatDeps = append(concatDeps, &dag.DagNode{Op: dag.Clip{
			Input: clip.Input, Output: headOut, Method: dag.Transcode, Codec: clip.Codec,
			Range: timeline.Range{Start: clip.Range.Start, End: first, Step: clip.Range.Step},
		}})
	}

	bodyOut := namer()
	concatInputs = append(concatInputs, bodyOut)
	concatDeps = append(concatDeps, &dag.DagNode{Op: dag.Clip{
		Input: clip.Input, Output: bodyOut, Method: dag.StreamCopy, Codec: clip.Codec,
		Range: timeline.Range{Start: first, End: last, Step: clip.Range.Step},
	}})

	if last.Less(clip.Range.End) {
		tailOut := namer()
		concatInputs = append(concatInputs, tailOut)
		concatDeps = append(concatDeps, &dag.DagNode{Op: dag.Clip{
			Input: clip.Input, Output: tailOut, Method: dag.Transcode, Codec: clip.Codec,
			Range: timeline.Range{Start: last, End: clip.Range.End, Step: clip.Range.Step},
		}})
	}

	return &dag.DagNode{
		Op:   dag.Concat{Inputs: concatInputs, Output: clip.Output},
		Deps: concatDeps,
	}, nil
}

// ConcatSquash flattens a Concat whose dependency is itself a Concat whose
// output name matches one of the outer concat's inputs: the inner concat's
// inputs and deps are spliced into the outer one in place, and the inner
// concat node is dropped.
func ConcatSquash(n *dag.DagNode) *dag.DagNode {
	op, ok := n.Op.(dag.Concat)
	if !ok {
		return n
	}

	var innerConcats []*dag.DagNode
	var otherDeps []*dag.DagNode
	for _, d := range n.Deps {
		if _, ok := d.Op.(dag.Concat); ok {
			innerConcats = append(innerConcats, d)
		} else {
			otherDeps = append(otherDeps, d)
		}
	}

	var newInputs []string
	newDeps := otherDeps
	for _, input := range op.Inputs {
		var matched *dag.DagNode
		for _, ic := range innerConcats {
			if ic.Op.(dag.Concat).Output == input {
				matched = ic
				break
			}
		}
		if matched == nil {
			newInputs = append(newInputs, input)
			continue
		}
		innerOp := matched.Op.(dag.Concat)
		newInputs = append(newInputs, innerOp.Inputs...)
		newDeps = append(newDeps, matched.Deps...)
	}

	return &dag.DagNode{
		Op:   dag.Concat{Inputs: newInputs, Output: op.Output},
		Deps: newDeps,
	}
}
