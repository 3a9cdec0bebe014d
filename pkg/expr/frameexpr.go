package expr

import (
	"encoding/json"
	"fmt"

	"github.com/vidlang/dve/pkg/timeline"
)

// F2FFunc names a recognized frame-to-frame composition function.
type F2FFunc string

const (
	// Quadrants composes exactly four sources into a 2x2 mosaic.
	Quadrants F2FFunc = "quadrants"
	// Filter applies a single ffmpeg filter-graph fragment to one source.
	Filter F2FFunc = "filter"
)

// SourceFunc names a recognized source-read function. ReadFrame is
// currently the only one.
type SourceFunc string

// ReadFrame reads one frame from a named source at a given time.
const ReadFrame SourceFunc = "read_frame"

// FrameExpr is the sum type over which Spec.Render is built.
type FrameExpr interface {
	String() string
	frameExprMarker()
}

// MatchCase pairs a sub-range of the parent domain with the expression
// active over it.
type MatchCase struct {
	Range timeline.Range
	Expr  FrameExpr
}

// MatchT dispatches on t, picking whichever case's Range contains it.
// Invariant: Cases' ranges are contiguous, non-overlapping, and together
// cover the parent domain exactly.
type MatchT struct {
	Cases []MatchCase
}

func (MatchT) frameExprMarker() {}

func (m MatchT) String() string {
	s := "match{"
	for i, c := range m.Cases {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("t in %s => %s", c.Range, c.Expr)
	}
	return s + "}"
}

// F2F is a frame-to-frame composition: Quadrants (exactly 4 sources) or
// Filter (1 source, 1 string arg naming the filter graph).
type F2F struct {
	Func    F2FFunc
	Sources []FrameExpr
	Args    []DataExpr
}

func (F2F) frameExprMarker() {}

func (f F2F) String() string {
	s := string(f.Func) + "("
	for i, src := range f.Sources {
		if i > 0 {
			s += ", "
		}
		s += src.String()
	}
	for _, a := range f.Args {
		s += ", " + a.String()
	}
	return s + ")"
}

// Source reads one frame from a named video at time T. It is always held
// behind a pointer (*Source implements FrameExpr, not Source) so that
// SetAllSources can rebind Source in place across a shared tree.
type Source struct {
	Func   SourceFunc
	Source string
	T      timeline.TExpr
	Args   []DataExpr
}

func (*Source) frameExprMarker() {}

func (s *Source) String() string {
	return fmt.Sprintf("vid<%s>[%s]", s.Source, s.T)
}

// ArraySourceKind classifies a range dependency as a catalog video or a
// user-supplied query array.
type ArraySourceKind string

const (
	DatabaseVideo ArraySourceKind = "database_video"
	QueryArray    ArraySourceKind = "query_array"
)

// RangeDep is one entry of the range-dependency list produced by RangeDeps:
// evaluating Expr on its domain requires Range of data named Name.
type RangeDep struct {
	Name  string
	Kind  ArraySourceKind
	Range timeline.Range
}

// RangeDeps walks e and returns every (name, kind, range) tuple needed to
// evaluate it on domain. Used for validation and index planning; the core
// planner does not consume this list directly.
func RangeDeps(e FrameExpr, domain timeline.Range) []RangeDep {
	var out []RangeDep

	switch v := e.(type) {
	case MatchT:
		for _, c := range v.Cases {
			out = append(out, RangeDeps(c.Expr, c.Range)...)
		}
	case F2F:
		for _, src := range v.Sources {
			out = append(out, RangeDeps(src, domain)...)
		}
		for _, arg := range v.Args {
			if idx, ok := arg.(ArrayIdx); ok {
				out = append(out, RangeDep{Name: idx.Name, Kind: QueryArray, Range: idx.T.Range(domain)})
			}
		}
	case *Source:
		out = append(out, RangeDep{Name: v.Source, Kind: DatabaseVideo, Range: v.T.Range(domain)})
		for _, arg := range v.Args {
			if idx, ok := arg.(ArrayIdx); ok {
				out = append(out, RangeDep{Name: idx.Name, Kind: QueryArray, Range: idx.T.Range(domain)})
			}
		}
	}

	return out
}

// Leaf is one flattened (Range, FrameExpr) pair produced by FlattenMatches.
type Leaf struct {
	Range timeline.Range
	Expr  FrameExpr
}

// FlattenMatches produces the ordered list of (Range, FrameExpr) leaves
// obtained by recursing through every MatchT dispatch, using each case's
// own sub-range as the new root. It does not descend through F2F: fusing
// frame-to-frame composition with match-dispatch is semantically intricate
// and is a conscious non-goal, not a missed optimization.
func FlattenMatches(e FrameExpr, domain timeline.Range) []Leaf {
	switch v := e.(type) {
	case MatchT:
		var out []Leaf
		for _, c := range v.Cases {
			out = append(out, FlattenMatches(c.Expr, c.Range)...)
		}
		return out
	default:
		return []Leaf{{Range: domain, Expr: e}}
	}
}

// SetAllSources replaces every Source.Source in the tree with newSource,
// in place. Used when benchmarking the same spec across many videos.
func SetAllSources(e FrameExpr, newSource string) {
	switch v := e.(type) {
	case MatchT:
		for _, c := range v.Cases {
			SetAllSources(c.Expr, newSource)
		}
	case F2F:
		for _, src := range v.Sources {
			SetAllSources(src, newSource)
		}
	case *Source:
		v.Source = newSource
	}
}

// Spec is the top-level query: iterate Render over the Iter domain and
// write the result to Output.
type Spec struct {
	Iter   timeline.Range
	Render FrameExpr
	Output string
}

func (s Spec) String() string {
	return fmt.Sprintf("Iter=%s;Render=%s)", s.Iter, s.Render)
}

// RangeDeps is Spec.range_deps: the dependency list for the whole query.
func (s Spec) RangeDeps() []RangeDep {
	return RangeDeps(s.Render, s.Iter)
}

// FlattenMatches is Spec.flatten_matches: the whole query's flattened leaf
// list.
func (s Spec) FlattenMatches() []Leaf {
	return FlattenMatches(s.Render, s.Iter)
}

// SetAllSources rebinds every source reference in the spec's render tree
// in place, letting the same Spec be replayed against a different input
// video without rebuilding the expression tree.
func (s *Spec) SetAllSources(newSource string) {
	SetAllSources(s.Render, newSource)
}

// --- JSON wire encoding ---

type frameExprWire struct {
	Type    string            `json:"type"`
	Cases   []matchCaseWire   `json:"cases,omitempty"`
	Func    string            `json:"func,omitempty"`
	Sources []json.RawMessage `json:"sources,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Source  string            `json:"source,omitempty"`
	T       json.RawMessage   `json:"t,omitempty"`
}

type matchCaseWire struct {
	Range timeline.Range  `json:"range"`
	Expr  json.RawMessage `json:"expr"`
}

// MarshalFrameExpr encodes a FrameExpr to its tagged-object wire form.
func MarshalFrameExpr(e FrameExpr) ([]byte, error) {
	switch v := e.(type) {
	case MatchT:
		cases := make([]matchCaseWire, len(v.Cases))
		for i, c := range v.Cases {
			b, err := MarshalFrameExpr(c.Expr)
			if err != nil {
				return nil, err
			}
			cases[i] = matchCaseWire{Range: c.Range, Expr: b}
		}
		return json.Marshal(frameExprWire{Type: "match", Cases: cases})

	case F2F:
		sources := make([]json.RawMessage, len(v.Sources))
		for i, s := range v.Sources {
			b, err := MarshalFrameExpr(s)
			if err != nil {
				return nil, err
			}
			sources[i] = b
		}
		args := make([]json.RawMessage, len(v.Args))
		for i, a := range v.Args {
			b, err := MarshalDataExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = b
		}
		return json.Marshal(frameExprWire{Type: "f2f", Func: string(v.Func), Sources: sources, Args: args})

	case *Source:
		tb, err := timeline.MarshalTExpr(v.T)
		if err != nil {
			return nil, err
		}
		args := make([]json.RawMessage, len(v.Args))
		for i, a := range v.Args {
			b, err := MarshalDataExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = b
		}
		return json.Marshal(frameExprWire{Type: "source", Func: string(v.Func), Source: v.Source, T: tb, Args: args})

	default:
		return nil, fmt.Errorf("expr: unknown FrameExpr variant %T", e)
	}
}

// UnmarshalFrameExpr decodes a FrameExpr from its tagged-object wire form.
func UnmarshalFrameExpr(b []byte) (FrameExpr, error) {
	var w frameExprWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("expr: invalid FrameExpr: %w", err)
	}

	switch w.Type {
	case "match":
		cases := make([]MatchCase, len(w.Cases))
		for i, c := range w.Cases {
			inner, err := UnmarshalFrameExpr(c.Expr)
			if err != nil {
				return nil, err
			}
			cases[i] = MatchCase{Range: c.Range, Expr: inner}
		}
		return MatchT{Cases: cases}, nil

	case "f2f":
		sources := make([]FrameExpr, len(w.Sources))
		for i, s := range w.Sources {
			inner, err := UnmarshalFrameExpr(s)
			if err != nil {
				return nil, err
			}
			sources[i] = inner
		}
		args, err := unmarshalDataExprs(w.Args)
		if err != nil {
			return nil, err
		}
		return F2F{Func: F2FFunc(w.Func), Sources: sources, Args: args}, nil

	case "source":
		t, err := timeline.UnmarshalTExpr(w.T)
		if err != nil {
			return nil, err
		}
		args, err := unmarshalDataExprs(w.Args)
		if err != nil {
			return nil, err
		}
		return &Source{Func: SourceFunc(w.Func), Source: w.Source, T: t, Args: args}, nil

	default:
		return nil, fmt.Errorf("expr: unknown FrameExpr type %q", w.Type)
	}
}

func unmarshalDataExprs(raw []json.RawMessage) ([]DataExpr, error) {
	out := make([]DataExpr, len(raw))
	for i, r := range raw {
		d, err := UnmarshalDataExpr(r)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler for Spec.
func (s *Spec) UnmarshalJSON(b []byte) error {
	var w struct {
		Iter   timeline.Range  `json:"iter"`
		Render json.RawMessage `json:"render"`
		Output string          `json:"output"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("expr: invalid Spec: %w", err)
	}
	render, err := UnmarshalFrameExpr(w.Render)
	if err != nil {
		return err
	}
	s.Iter = w.Iter
	s.Render = render
	s.Output = w.Output
	return nil
}

// MarshalJSON implements json.Marshaler for Spec.
func (s Spec) MarshalJSON() ([]byte, error) {
	render, err := MarshalFrameExpr(s.Render)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Iter   timeline.Range  `json:"iter"`
		Render json.RawMessage `json:"render"`
		Output string          `json:"output"`
	}{Iter: s.Iter, Render: render, Output: s.Output})
}
