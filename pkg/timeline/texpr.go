package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/vidlang/dve/pkg/rat"
)

// TExpr is a tree over the free variable t and rational constants.
// It is a closed sum type: Const, T, Add, Sub, Mul are the only variants,
// matching the reference grammar exactly (no general arithmetic, no
// nested variables).
type TExpr interface {
	// Range projects the expression over domain D, producing the Range of
	// values it takes as t ranges over D.
	Range(d Range) Range
	String() string
	texprMarker()
}

// Const is a constant instant, lifted to the singleton range [c, c+1, 1].
type Const struct {
	Value rat.Rat
}

func (Const) texprMarker() {}

func (c Const) Range(Range) Range {
	return Range{Start: c.Value, End: c.Value.Add(rat.One), Step: rat.One}
}

func (c Const) String() string { return c.Value.String() }

// T is the free time variable: Range(D) = D.
type T struct{}

func (T) texprMarker() {}

func (T) Range(d Range) Range { return d }

func (T) String() string { return "t" }

// Add shifts Expr's range by +C.
type Add struct {
	Expr TExpr
	C    rat.Rat
}

func (Add) texprMarker() {}

func (a Add) Range(d Range) Range { return a.Expr.Range(d).Shift(a.C) }

func (a Add) String() string { return fmt.Sprintf("(%s + %s)", a.Expr, a.C) }

// Sub shifts Expr's range by -C.
type Sub struct {
	Expr TExpr
	C    rat.Rat
}

func (Sub) texprMarker() {}

func (s Sub) Range(d Range) Range { return s.Expr.Range(d).Shift(rat.Zero.Sub(s.C)) }

func (s Sub) String() string { return fmt.Sprintf("(%s - %s)", s.Expr, s.C) }

// Mul scales Expr's range (start, end, and step) by C.
type Mul struct {
	Expr TExpr
	C    rat.Rat
}

func (Mul) texprMarker() {}

func (m Mul) Range(d Range) Range { return m.Expr.Range(d).Scale(m.C) }

func (m Mul) String() string { return fmt.Sprintf("(%s * %s)", m.Expr, m.C) }

// --- JSON wire encoding ---
//
// TExpr documents are tagged objects: {"type": "...", ...}. This mirrors
// the Duration wire encoding's pattern of custom (Un)MarshalJSON methods
// hung off a small wrapper, generalized here to a discriminated union.

type texprWire struct {
	Type  string          `json:"type"`
	Value *rat.Rat        `json:"value,omitempty"`
	Expr  json.RawMessage `json:"expr,omitempty"`
	C     *rat.Rat        `json:"c,omitempty"`
}

// MarshalTExpr encodes a TExpr to its tagged-object wire form.
func MarshalTExpr(e TExpr) ([]byte, error) {
	switch v := e.(type) {
	case Const:
		return json.Marshal(texprWire{Type: "const", Value: &v.Value})
	case T:
		return json.Marshal(texprWire{Type: "t"})
	case Add:
		inner, err := MarshalTExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(texprWire{Type: "add", Expr: inner, C: &v.C})
	case Sub:
		inner, err := MarshalTExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(texprWire{Type: "sub", Expr: inner, C: &v.C})
	case Mul:
		inner, err := MarshalTExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(texprWire{Type: "mul", Expr: inner, C: &v.C})
	default:
		return nil, fmt.Errorf("timeline: unknown TExpr variant %T", e)
	}
}

// UnmarshalTExpr decodes a TExpr from its tagged-object wire form.
func UnmarshalTExpr(b []byte) (TExpr, error) {
	var w texprWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("timeline: invalid TExpr: %w", err)
	}

	switch w.Type {
	case "const":
		if w.Value == nil {
			return nil, fmt.Errorf("timeline: const TExpr missing value")
		}
		return Const{Value: *w.Value}, nil
	case "t":
		return T{}, nil
	case "add", "sub", "mul":
		if w.C == nil {
			return nil, fmt.Errorf("timeline: %s TExpr missing c", w.Type)
		}
		inner, err := UnmarshalTExpr(w.Expr)
		if err != nil {
			return nil, err
		}
		switch w.Type {
		case "add":
			return Add{Expr: inner, C: *w.C}, nil
		case "sub":
			return Sub{Expr: inner, C: *w.C}, nil
		default:
			return Mul{Expr: inner, C: *w.C}, nil
		}
	default:
		return nil, fmt.Errorf("timeline: unknown TExpr type %q", w.Type)
	}
}
