package executor

import (
	"context"
	"sync"
	"testing"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/dag"
	"github.com/vidlang/dve/pkg/printer"
	"github.com/vidlang/dve/pkg/rat"
	"github.com/vidlang/dve/pkg/timeline"
)

// recordingPrinter prints "true" for every op and records the order it was
// asked to print them in, so tests can assert traversal order without
// spawning a real media tool.
type recordingPrinter struct {
	mu    sync.Mutex
	order []string
}

func (r *recordingPrinter) Print(op dag.Op) (printer.Command, error) {
	r.mu.Lock()
	r.order = append(r.order, op.Out())
	r.mu.Unlock()
	return printer.Command{Program: "true"}, nil
}

// failingPrinter prints "false" for any op named in failOutputs, "true"
// otherwise.
type failingPrinter struct {
	failOutputs map[string]bool
}

func (f *failingPrinter) Print(op dag.Op) (printer.Command, error) {
	if f.failOutputs[op.Out()] {
		return printer.Command{Program: "false"}, nil
	}
	return printer.Command{Program: "true"}, nil
}

func testRange(start, end int64) timeline.Range {
	return timeline.Range{Start: rat.FromInt(start), End: rat.FromInt(end), Step: rat.One}
}

func threeNodePlan() dag.Plan {
	a := &dag.DagNode{Op: dag.Clip{Input: "a", Range: testRange(0, 1), Output: "a_out", Method: dag.Transcode, Codec: catalog.H264}}
	b := &dag.DagNode{Op: dag.Clip{Input: "b", Range: testRange(0, 1), Output: "b_out", Method: dag.Transcode, Codec: catalog.H264}}
	root := &dag.DagNode{Op: dag.Concat{Inputs: []string{"a_out", "b_out"}, Output: "final.mp4"}, Deps: []*dag.DagNode{a, b}}
	return dag.Plan{Root: root}
}

func TestSequentialRunVisitsDepsBeforeRoot(t *testing.T) {
	rp := &recordingPrinter{}
	e := &Executor{Printer: rp, Mode: Sequential}

	if err := e.Run(context.Background(), threeNodePlan()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rp.order) != 3 || rp.order[2] != "final.mp4" {
		t.Errorf("order = %v, want deps before root with final.mp4 last", rp.order)
	}
}

func TestParallelRunCompletesAllDeps(t *testing.T) {
	rp := &recordingPrinter{}
	e := &Executor{Printer: rp, Mode: Parallel}

	if err := e.Run(context.Background(), threeNodePlan()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rp.order) != 3 {
		t.Fatalf("expected 3 ops run, got %d", len(rp.order))
	}
	if rp.order[len(rp.order)-1] != "final.mp4" {
		t.Errorf("root should run last regardless of fan-out order, got %v", rp.order)
	}
}

func TestRunCommandSucceedsForTrue(t *testing.T) {
	e := &Executor{Printer: &recordingPrinter{}, Mode: Sequential}
	if err := e.runCommand(context.Background(), "out", printer.Command{Program: "true"}); err != nil {
		t.Fatalf("runCommand(true): %v", err)
	}
}

func TestRunCommandReturnsExternalToolFailureForFalse(t *testing.T) {
	e := &Executor{Printer: &recordingPrinter{}, Mode: Sequential}
	if err := e.runCommand(context.Background(), "out", printer.Command{Program: "false"}); err == nil {
		t.Fatal("expected an error from a failing command")
	}
}

func TestParallelDepsReturnErrorOnAnyFailure(t *testing.T) {
	ok := &dag.DagNode{Op: dag.Clip{Input: "a", Range: testRange(0, 1), Output: "ok", Method: dag.Transcode, Codec: catalog.H264}}
	bad := &dag.DagNode{Op: dag.Clip{Input: "b", Range: testRange(0, 1), Output: "bad", Method: dag.Transcode, Codec: catalog.H264}}

	e := &Executor{Printer: &failingPrinter{failOutputs: map[string]bool{"bad": true}}, Mode: Parallel}
	err := e.runDepsParallel(context.Background(), []*dag.DagNode{ok, bad})
	if err == nil {
		t.Fatal("expected an error bubbled up from the failing dependency")
	}
}
