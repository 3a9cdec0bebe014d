package expr

import (
	"testing"

	"github.com/vidlang/dve/pkg/rat"
	"github.com/vidlang/dve/pkg/timeline"
)

func rng(start, end, step int64) timeline.Range {
	return timeline.Range{Start: rat.FromInt(start), End: rat.FromInt(end), Step: rat.FromInt(step)}
}

func TestFlattenMatchesCoversDomainExactly(t *testing.T) {
	e := MatchT{Cases: []MatchCase{
		{Range: rng(0, 4, 1), Expr: &Source{Func: ReadFrame, Source: "a", T: timeline.T{}}},
		{Range: rng(5, 9, 1), Expr: &Source{Func: ReadFrame, Source: "b", T: timeline.T{}}},
	}}

	leaves := FlattenMatches(e, rng(0, 9, 1))
	if len(leaves) != 2 {
		t.Fatalf("got %d leaves, want 2", len(leaves))
	}

	var total int64
	for _, l := range leaves {
		total += l.Range.Len()
	}
	if total != rng(0, 4, 1).Len()+rng(5, 9, 1).Len() {
		t.Errorf("leaf ranges do not sum to the covered domain: got %d", total)
	}
}

func TestFlattenMatchesDoesNotDescendThroughF2F(t *testing.T) {
	inner := MatchT{Cases: []MatchCase{
		{Range: rng(0, 4, 1), Expr: &Source{Func: ReadFrame, Source: "a", T: timeline.T{}}},
	}}
	e := F2F{Func: Filter, Sources: []FrameExpr{inner}, Args: []DataExpr{ConstStr{Value: "hflip"}}}

	leaves := FlattenMatches(e, rng(0, 4, 1))
	if len(leaves) != 1 {
		t.Fatalf("got %d leaves, want 1 (F2F should not be flattened into)", len(leaves))
	}
	if _, ok := leaves[0].Expr.(F2F); !ok {
		t.Errorf("expected the single leaf to still be the F2F node, got %T", leaves[0].Expr)
	}
}

func TestFlattenMatchesPassesThroughNonMatch(t *testing.T) {
	src := &Source{Func: ReadFrame, Source: "a", T: timeline.T{}}
	leaves := FlattenMatches(src, rng(0, 9, 1))
	if len(leaves) != 1 || leaves[0].Expr != FrameExpr(src) {
		t.Errorf("non-match expr should flatten to a single leaf over the whole domain")
	}
}

func TestRangeDepsCollectsSourceAndArrayRefs(t *testing.T) {
	e := F2F{
		Func: Filter,
		Sources: []FrameExpr{
			&Source{Func: ReadFrame, Source: "clip", T: timeline.T{}},
		},
		Args: []DataExpr{ArrayIdx{Name: "scores", T: timeline.T{}}},
	}

	deps := RangeDeps(e, rng(0, 9, 1))
	if len(deps) != 2 {
		t.Fatalf("got %d deps, want 2", len(deps))
	}

	var sawVideo, sawArray bool
	for _, d := range deps {
		switch d.Kind {
		case DatabaseVideo:
			sawVideo = d.Name == "clip"
		case QueryArray:
			sawArray = d.Name == "scores"
		}
	}
	if !sawVideo || !sawArray {
		t.Errorf("deps missing expected entries: %+v", deps)
	}
}

func TestSetAllSourcesRebindsInPlace(t *testing.T) {
	a := &Source{Func: ReadFrame, Source: "old", T: timeline.T{}}
	e := MatchT{Cases: []MatchCase{
		{Range: rng(0, 4, 1), Expr: a},
		{Range: rng(5, 9, 1), Expr: F2F{Func: Filter, Sources: []FrameExpr{a}, Args: nil}},
	}}

	SetAllSources(e, "new")

	if a.Source != "new" {
		t.Errorf("Source.Source = %q, want %q", a.Source, "new")
	}
}

func TestSpecJSONRoundTrip(t *testing.T) {
	spec := Spec{
		Iter: rng(0, 9, 1),
		Render: MatchT{Cases: []MatchCase{
			{Range: rng(0, 4, 1), Expr: &Source{Func: ReadFrame, Source: "a", T: timeline.T{}}},
			{
				Range: rng(5, 9, 1),
				Expr: F2F{
					Func:    Quadrants,
					Sources: []FrameExpr{&Source{Func: ReadFrame, Source: "b", T: timeline.T{}}},
					Args:    []DataExpr{ConstStr{Value: "overlay"}},
				},
			},
		}},
		Output: "out.mp4",
	}

	b, err := spec.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var back Spec
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}

	if back.Output != spec.Output {
		t.Errorf("Output = %q, want %q", back.Output, spec.Output)
	}
	if !back.Iter.Equal(spec.Iter) {
		t.Errorf("Iter = %v, want %v", back.Iter, spec.Iter)
	}
	if back.Render.String() != spec.Render.String() {
		t.Errorf("Render = %v, want %v", back.Render, spec.Render)
	}
}
