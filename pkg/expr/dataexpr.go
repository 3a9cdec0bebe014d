// Package expr implements the expression IR: DataExpr and FrameExpr, their
// flattening over a MatchT dispatch tree, range-dependency extraction, and
// source rebinding. This is the language the planner (pkg/planner) lowers.
package expr

import (
	"encoding/json"
	"fmt"

	"github.com/vidlang/dve/pkg/rat"
	"github.com/vidlang/dve/pkg/timeline"
)

// DataExpr is a literal value or a time-indexed external array reference.
type DataExpr interface {
	String() string
	dataExprMarker()
}

// ConstNum is a literal rational number.
type ConstNum struct{ Value rat.Rat }

func (ConstNum) dataExprMarker()  {}
func (c ConstNum) String() string { return c.Value.String() }

// ConstStr is a literal string, most commonly a filter-graph fragment.
type ConstStr struct{ Value string }

func (ConstStr) dataExprMarker()  {}
func (c ConstStr) String() string { return fmt.Sprintf("%q", c.Value) }

// ConstBool is a literal boolean.
type ConstBool struct{ Value bool }

func (ConstBool) dataExprMarker()  {}
func (c ConstBool) String() string { return fmt.Sprintf("%v", c.Value) }

// ArrayIdx is a time-indexed reference into an external query array.
type ArrayIdx struct {
	Name string
	T    timeline.TExpr
}

func (ArrayIdx) dataExprMarker() {}
func (a ArrayIdx) String() string {
	return fmt.Sprintf("%s[%s]", a.Name, a.T)
}

// UnwrapConstStr returns the string literal carried by a ConstStr, or an
// error if the expression is some other variant. Planner code uses this to
// pull the filter-graph argument out of an F2F(Filter, ...) node.
func UnwrapConstStr(d DataExpr) (string, error) {
	s, ok := d.(ConstStr)
	if !ok {
		return "", fmt.Errorf("expr: expected a string constant, got %T", d)
	}
	return s.Value, nil
}

// --- JSON wire encoding ---

type dataExprWire struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Name  string          `json:"name,omitempty"`
	T     json.RawMessage `json:"t,omitempty"`
}

// MarshalDataExpr encodes a DataExpr to its tagged-object wire form.
func MarshalDataExpr(d DataExpr) ([]byte, error) {
	switch v := d.(type) {
	case ConstNum:
		val, err := v.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		return json.Marshal(dataExprWire{Type: "num", Value: val})
	case ConstStr:
		val, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(dataExprWire{Type: "str", Value: val})
	case ConstBool:
		val, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(dataExprWire{Type: "bool", Value: val})
	case ArrayIdx:
		tb, err := timeline.MarshalTExpr(v.T)
		if err != nil {
			return nil, err
		}
		return json.Marshal(dataExprWire{Type: "array_idx", Name: v.Name, T: tb})
	default:
		return nil, fmt.Errorf("expr: unknown DataExpr variant %T", d)
	}
}

// UnmarshalDataExpr decodes a DataExpr from its tagged-object wire form.
func UnmarshalDataExpr(b []byte) (DataExpr, error) {
	var w dataExprWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("expr: invalid DataExpr: %w", err)
	}

	switch w.Type {
	case "num":
		var r rat.Rat
		if err := r.UnmarshalJSON(w.Value); err != nil {
			return nil, err
		}
		return ConstNum{Value: r}, nil
	case "str":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, err
		}
		return ConstStr{Value: s}, nil
	case "bool":
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return nil, err
		}
		return ConstBool{Value: b}, nil
	case "array_idx":
		t, err := timeline.UnmarshalTExpr(w.T)
		if err != nil {
			return nil, err
		}
		return ArrayIdx{Name: w.Name, T: t}, nil
	default:
		return nil, fmt.Errorf("expr: unknown DataExpr type %q", w.Type)
	}
}
