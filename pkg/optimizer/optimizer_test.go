package optimizer

import (
	"fmt"
	"testing"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/dag"
	"github.com/vidlang/dve/pkg/rat"
	"github.com/vidlang/dve/pkg/timeline"
)

func rr(start, end int64) timeline.Range {
	return timeline.Range{Start: rat.FromInt(start), End: rat.FromInt(end), Step: rat.One}
}

func seqNamer() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("/scratch/tmp_%d.mp4", n)
	}
}

// TestSeekPullupFoldsClipIntoFilterInput implements the static half of
// scenario E4: a Filter whose single dependency is a dependency-free
// Transcode Clip has that dependency folded into its own input.
func TestSeekPullupFoldsClipIntoFilterInput(t *testing.T) {
	clip := &dag.DagNode{Op: dag.Clip{Input: "A", Range: rr(0, 1000), Output: "p1", Method: dag.Transcode, Codec: catalog.H264}}
	root := &dag.DagNode{
		Op:   dag.Filter{Inputs: []dag.FilterInput{{Path: "p1"}}, Filter: "hflip", Output: "final.mp4"},
		Deps: []*dag.DagNode{clip},
	}

	out := SeekPullup(root)

	filter, ok := out.Op.(dag.Filter)
	if !ok {
		t.Fatalf("root op = %T, want dag.Filter", out.Op)
	}
	if filter.Inputs[0].Path != "A" || filter.Inputs[0].Range == nil || !filter.Inputs[0].Range.Equal(rr(0, 1000)) {
		t.Errorf("input not folded: %+v", filter.Inputs[0])
	}
	if len(out.Deps) != 0 {
		t.Errorf("expected no deps left after seek pull-up, got %d", len(out.Deps))
	}
}

// TestSeekPullupPostCondition implements testable property #6: after the
// pass, no Filter has an immediate dependency that is a Clip{Transcode,
// deps=empty}.
func TestSeekPullupPostCondition(t *testing.T) {
	clip := &dag.DagNode{Op: dag.Clip{Input: "A", Range: rr(0, 10), Output: "p1", Method: dag.Transcode, Codec: catalog.H264}}
	root := &dag.DagNode{
		Op:   dag.Filter{Inputs: []dag.FilterInput{{Path: "p1"}}, Filter: "hflip", Output: "final.mp4"},
		Deps: []*dag.DagNode{clip},
	}

	out := SeekPullup(root)

	for _, dep := range out.Deps {
		if c, ok := dep.Op.(dag.Clip); ok && c.Method == dag.Transcode && len(dep.Deps) == 0 {
			t.Errorf("found a foldable clip dependency that survived seek pull-up")
		}
	}
}

func TestSeekPullupLeavesClipWithDepsAlone(t *testing.T) {
	grandchild := &dag.DagNode{Op: dag.Clip{Input: "B", Range: rr(0, 5), Output: "gc", Method: dag.Transcode, Codec: catalog.H264}}
	childWithDep := &dag.DagNode{
		Op:   dag.Clip{Input: "A", Range: rr(0, 10), Output: "p1", Method: dag.Transcode, Codec: catalog.H264},
		Deps: []*dag.DagNode{grandchild},
	}
	root := &dag.DagNode{
		Op:   dag.Filter{Inputs: []dag.FilterInput{{Path: "p1"}}, Filter: "hflip", Output: "final.mp4"},
		Deps: []*dag.DagNode{childWithDep},
	}

	out := SeekPullup(root)
	filter := out.Op.(dag.Filter)
	if filter.Inputs[0].Range != nil {
		t.Error("a clip with its own deps should not be folded into the filter input")
	}
	if len(out.Deps) != 1 {
		t.Fatalf("expected the clip-with-deps to remain as a dependency, got %d deps", len(out.Deps))
	}
}

// TestShardFiltersCoversWholeRange implements scenario E4: a 1001-frame
// filter shards into ceil(1001/300)=4 pieces wrapped in a Concat, and the
// shard ranges' lengths sum to the original.
func TestShardFiltersCoversWholeRange(t *testing.T) {
	r := rr(0, 1000) // length 1001
	node := &dag.DagNode{
		Op: dag.Filter{Inputs: []dag.FilterInput{{Path: "A", Range: &r}}, Filter: "hflip", Output: "final.mp4"},
	}

	out, err := ShardFilters(node, seqNamer())
	if err != nil {
		t.Fatalf("ShardFilters: %v", err)
	}

	concat, ok := out.Op.(dag.Concat)
	if !ok {
		t.Fatalf("root op = %T, want dag.Concat", out.Op)
	}
	if len(concat.Inputs) != 4 {
		t.Errorf("got %d shards, want 4 (ceil(1001/300))", len(concat.Inputs))
	}

	var total int64
	for _, dep := range out.Deps {
		f := dep.Op.(dag.Filter)
		total += f.Inputs[0].Range.Len()
	}
	if total != r.Len() {
		t.Errorf("shard lengths sum to %d, want %d", total, r.Len())
	}
}

func TestShardFiltersLeavesShortFilterAlone(t *testing.T) {
	r := rr(0, 10)
	node := &dag.DagNode{
		Op: dag.Filter{Inputs: []dag.FilterInput{{Path: "A", Range: &r}}, Filter: "hflip", Output: "final.mp4"},
	}
	out, err := ShardFilters(node, seqNamer())
	if err != nil {
		t.Fatalf("ShardFilters: %v", err)
	}
	if _, ok := out.Op.(dag.Filter); !ok {
		t.Errorf("a short filter should be left unchanged, got %T", out.Op)
	}
}

// TestSmartCutCorrectness implements testable property #5 / scenario E2:
// keyframes at {0,4,8} on a [0,10] clip produce head-omitted,
// body=[0,8]-StreamCopy, tail=[8,10]-Transcode, covering exactly the
// original range.
func TestSmartCutCorrectness(t *testing.T) {
	cat := catalog.NewMemory()
	cat.Add(catalog.Entry{
		Key: "A", Path: "A",
		Gops: []catalog.GopBound{
			{Start: rat.FromInt(0), End: rat.FromInt(4)},
			{Start: rat.FromInt(4), End: rat.FromInt(8)},
			{Start: rat.FromInt(8), End: rat.FromInt(10)},
		},
	})

	clip := &dag.DagNode{Op: dag.Clip{Input: "A", Range: rr(0, 10), Output: "final.mp4", Method: dag.Transcode, Codec: catalog.H264}}

	out, err := SmartCut(clip, cat, seqNamer())
	if err != nil {
		t.Fatalf("SmartCut: %v", err)
	}

	concat, ok := out.Op.(dag.Concat)
	if !ok {
		t.Fatalf("root op = %T, want dag.Concat", out.Op)
	}
	if len(concat.Inputs) != 2 {
		t.Fatalf("expected head omitted (a==K[0]): got %d pieces", len(concat.Inputs))
	}

	body := out.Deps[0].Op.(dag.Clip)
	if body.Method != dag.StreamCopy || !body.Range.Equal(rr(0, 8)) {
		t.Errorf("body = %+v, want StreamCopy [0,8]", body)
	}
	tail := out.Deps[1].Op.(dag.Clip)
	if tail.Method != dag.Transcode || !tail.Range.Equal(rr(8, 10)) {
		t.Errorf("tail = %+v, want Transcode [8,10]", tail)
	}
}

func TestSmartCutLeavesClipAloneWithFewerThanTwoKeyframes(t *testing.T) {
	cat := catalog.NewMemory()
	cat.Add(catalog.Entry{Key: "A", Path: "A", Gops: []catalog.GopBound{{Start: rat.FromInt(0), End: rat.FromInt(10)}}})

	clip := &dag.DagNode{Op: dag.Clip{Input: "A", Range: rr(0, 10), Output: "final.mp4", Method: dag.Transcode, Codec: catalog.H264}}
	out, err := SmartCut(clip, cat, seqNamer())
	if err != nil {
		t.Fatalf("SmartCut: %v", err)
	}
	if _, ok := out.Op.(dag.Clip); !ok {
		t.Errorf("expected clip to be left alone with <2 keyframes, got %T", out.Op)
	}
}

// TestConcatSquashFlattensInnerConcat implements scenario E6.
func TestConcatSquashFlattensInnerConcat(t *testing.T) {
	a := &dag.DagNode{Op: dag.Clip{Input: "A", Output: "a", Range: rr(0, 1), Method: dag.Transcode, Codec: catalog.H264}}
	b := &dag.DagNode{Op: dag.Clip{Input: "B", Output: "b", Range: rr(0, 1), Method: dag.Transcode, Codec: catalog.H264}}
	x := &dag.DagNode{Op: dag.Clip{Input: "X", Output: "x", Range: rr(0, 1), Method: dag.Transcode, Codec: catalog.H264}}

	inner := &dag.DagNode{Op: dag.Concat{Inputs: []string{"a", "b"}, Output: "inner_out"}, Deps: []*dag.DagNode{a, b}}
	outer := &dag.DagNode{Op: dag.Concat{Inputs: []string{"inner_out", "x"}, Output: "final.mp4"}, Deps: []*dag.DagNode{inner, x}}

	squashed := ConcatSquash(outer)

	concat := squashed.Op.(dag.Concat)
	if len(concat.Inputs) != 3 || concat.Inputs[0] != "a" || concat.Inputs[1] != "b" || concat.Inputs[2] != "x" {
		t.Errorf("squashed inputs = %v, want [a b x]", concat.Inputs)
	}
	if len(squashed.Deps) != 3 {
		t.Errorf("squashed deps = %d, want 3 (a, b, x; inner concat dropped)", len(squashed.Deps))
	}
}

// TestShardFiltersIdempotent implements testable property #4: each pass
// applied twice yields the same shape (here: same Concat input count)
// as applying it once.
func TestShardFiltersIdempotent(t *testing.T) {
	r := rr(0, 1000)
	node := &dag.DagNode{Op: dag.Filter{Inputs: []dag.FilterInput{{Path: "A", Range: &r}}, Filter: "hflip", Output: "final.mp4"}}

	once, err := ShardFilters(node, seqNamer())
	if err != nil {
		t.Fatalf("ShardFilters: %v", err)
	}
	twice, err := ShardFilters(once, seqNamer())
	if err != nil {
		t.Fatalf("ShardFilters (second pass): %v", err)
	}

	onceConcat := once.Op.(dag.Concat)
	twiceConcat := twice.Op.(dag.Concat)
	if len(onceConcat.Inputs) != len(twiceConcat.Inputs) {
		t.Errorf("shard count changed on reapplication: %d vs %d", len(onceConcat.Inputs), len(twiceConcat.Inputs))
	}
}

func TestSeekPullupIdempotent(t *testing.T) {
	clip := &dag.DagNode{Op: dag.Clip{Input: "A", Range: rr(0, 10), Output: "p1", Method: dag.Transcode, Codec: catalog.H264}}
	root := &dag.DagNode{
		Op:   dag.Filter{Inputs: []dag.FilterInput{{Path: "p1"}}, Filter: "hflip", Output: "final.mp4"},
		Deps: []*dag.DagNode{clip},
	}

	once := SeekPullup(root)
	twice := SeekPullup(once)

	if once.String() != twice.String() {
		t.Errorf("seek pull-up not idempotent: %v vs %v", once, twice)
	}
}
