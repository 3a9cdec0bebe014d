package timeline

import (
	"testing"

	"github.com/vidlang/dve/pkg/rat"
)

func domain() Range {
	return r(0, 10, 1)
}

func TestTRangeIsDomain(t *testing.T) {
	d := domain()
	if !(T{}).Range(d).Equal(d) {
		t.Errorf("T.Range(D) should equal D")
	}
}

func TestConstLiftsToSingleton(t *testing.T) {
	got := Const{Value: rat.FromInt(5)}.Range(domain())
	want := Range{Start: rat.FromInt(5), End: rat.FromInt(6), Step: rat.One}
	if !got.Equal(want) {
		t.Errorf("Const(5).Range(D) = %v, want %v", got, want)
	}
}

func TestAddShiftsRange(t *testing.T) {
	d := domain()
	got := Add{Expr: T{}, C: rat.FromInt(3)}.Range(d)
	want := d.Shift(rat.FromInt(3))
	if !got.Equal(want) {
		t.Errorf("Add(T,3).Range(D) = %v, want %v", got, want)
	}
}

func TestSubShiftsRangeNegatively(t *testing.T) {
	d := domain()
	got := Sub{Expr: T{}, C: rat.FromInt(3)}.Range(d)
	want := d.Shift(rat.FromInt(-3))
	if !got.Equal(want) {
		t.Errorf("Sub(T,3).Range(D) = %v, want %v", got, want)
	}
}

func TestMulScalesStepAndBounds(t *testing.T) {
	d := domain()
	got := Mul{Expr: T{}, C: rat.FromInt(2)}.Range(d)
	if !got.Step.Equal(rat.FromInt(2)) {
		t.Errorf("Mul(T,2).Range(D).Step = %s, want 2", got.Step)
	}
	if !got.Equal(d.Scale(rat.FromInt(2))) {
		t.Errorf("Mul(T,2).Range(D) = %v, want %v", got, d.Scale(rat.FromInt(2)))
	}
}

func TestTExprJSONRoundTrip(t *testing.T) {
	exprs := []TExpr{
		Const{Value: rat.New(3, 2)},
		T{},
		Add{Expr: T{}, C: rat.FromInt(1)},
		Sub{Expr: Add{Expr: T{}, C: rat.FromInt(1)}, C: rat.FromInt(2)},
		Mul{Expr: T{}, C: rat.FromInt(4)},
	}

	for _, e := range exprs {
		b, err := MarshalTExpr(e)
		if err != nil {
			t.Fatalf("MarshalTExpr(%v): %v", e, err)
		}
		back, err := UnmarshalTExpr(b)
		if err != nil {
			t.Fatalf("UnmarshalTExpr(%s): %v", b, err)
		}
		if back.Range(domain()).String() != e.Range(domain()).String() {
			t.Errorf("round trip mismatch for %v: got %v, want %v", e, back.Range(domain()), e.Range(domain()))
		}
	}
}
