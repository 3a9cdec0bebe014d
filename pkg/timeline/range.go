// Package timeline implements the exact-rational time algebra the rest of
// the compiler builds on: frame-aligned Ranges and the TExpr language used
// to project a time expression over a domain.
package timeline

import (
	"fmt"

	"github.com/vidlang/dve/pkg/rat"
)

// Range is a closed, frame-aligned interval [Start, End] stepped by Step.
// Invariants: Start <= End, Step > 0, and (End-Start)/Step is a
// non-negative integer (the range covers a whole number of frames).
type Range struct {
	Start rat.Rat `json:"start"`
	End   rat.Rat `json:"end"`
	Step  rat.Rat `json:"step"`
}

// NewRange validates and constructs a Range.
func NewRange(start, end, step rat.Rat) (Range, error) {
	r := Range{Start: start, End: end, Step: step}
	if err := r.validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) validate() error {
	if !(r.Step.Cmp(rat.Zero) > 0) {
		return fmt.Errorf("timeline: range step must be positive, got %s", r.Step)
	}
	if r.End.Less(r.Start) {
		return fmt.Errorf("timeline: range end %s is before start %s", r.End, r.Start)
	}
	cnt := r.End.Sub(r.Start).Quo(r.Step)
	if !cnt.IsInt() {
		return fmt.Errorf("timeline: range [%s,%s] step %s is not frame-aligned", r.Start, r.End, r.Step)
	}
	return nil
}

// Len returns the inclusive frame count of the range: (End-Start)/Step + 1.
func (r Range) Len() int64 {
	cnt := r.End.Sub(r.Start).Quo(r.Step)
	return cnt.Int64() + 1
}

// SplitAt splits r into [Start,splitPt] and [splitPt+Step,End]. splitPt must
// satisfy Start <= splitPt < End. Both halves are guaranteed non-empty and
// their lengths sum to r.Len().
func (r Range) SplitAt(splitPt rat.Rat) (left, right Range, err error) {
	if splitPt.Less(r.Start) || !splitPt.Less(r.End) {
		return Range{}, Range{}, fmt.Errorf("timeline: split point %s outside [%s,%s)", splitPt, r.Start, r.End)
	}

	left = Range{Start: r.Start, End: splitPt, Step: r.Step}
	right = Range{Start: splitPt.Add(r.Step), End: r.End, Step: r.Step}

	if right.Start.Cmp(right.End) > 0 {
		return Range{}, Range{}, fmt.Errorf("timeline: split produced an empty right half")
	}
	if left.Len()+right.Len() != r.Len() {
		return Range{}, Range{}, fmt.Errorf("timeline: split lengths %d+%d do not sum to %d", left.Len(), right.Len(), r.Len())
	}

	return left, right, nil
}

// Shift returns a copy of r translated by delta (Start and End both move;
// Step is unaffected). Used by TExpr.Add/Sub.
func (r Range) Shift(delta rat.Rat) Range {
	return Range{Start: r.Start.Add(delta), End: r.End.Add(delta), Step: r.Step}
}

// Scale returns a copy of r with Start, End, and Step all multiplied by c.
// Used by TExpr.Mul.
func (r Range) Scale(c rat.Rat) Range {
	return Range{Start: r.Start.Mul(c), End: r.End.Mul(c), Step: r.Step.Mul(c)}
}

func (r Range) String() string {
	return fmt.Sprintf("Range(%s, %s, %s)", r.Start, r.End, r.Step)
}

// Equal reports whether two ranges have identical bounds and step.
func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End) && r.Step.Equal(o.Step)
}
