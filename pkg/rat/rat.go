// Package rat provides the exact-rational number type used throughout the
// compiler's timeline arithmetic. Every instant, duration, and range in the
// system is an exact fraction of two 64-bit integers; floating point only
// enters at the command-printer boundary when formatting for the media
// tool.
package rat

import (
	"fmt"
	"math/big"
)

// Rat is an exact rational number, always kept in lowest terms.
type Rat struct {
	r *big.Rat
}

// Zero is the additive identity.
var Zero = FromInt(0)

// One is the multiplicative identity.
var One = FromInt(1)

// New builds a rational equal to num/den, reduced to lowest terms.
// Panics if den is zero, matching the original's use of an infallible
// constructor (callers control denominators, which are always positive
// frame-rate or timebase values).
func New(num, den int64) Rat {
	if den == 0 {
		panic("rat: zero denominator")
	}
	return Rat{r: big.NewRat(num, den)}
}

// FromInt builds a whole-number rational.
func FromInt(n int64) Rat {
	return Rat{r: big.NewRat(n, 1)}
}

// FromBig wraps an existing *big.Rat.
func FromBig(r *big.Rat) Rat {
	return Rat{r: new(big.Rat).Set(r)}
}

func (a Rat) big() *big.Rat {
	if a.r == nil {
		return big.NewRat(0, 1)
	}
	return a.r
}

// Num returns the reduced numerator.
func (a Rat) Num() int64 { return a.big().Num().Int64() }

// Den returns the reduced denominator (always positive).
func (a Rat) Den() int64 { return a.big().Denom().Int64() }

// Add returns a+b.
func (a Rat) Add(b Rat) Rat {
	return Rat{r: new(big.Rat).Add(a.big(), b.big())}
}

// Sub returns a-b.
func (a Rat) Sub(b Rat) Rat {
	return Rat{r: new(big.Rat).Sub(a.big(), b.big())}
}

// Mul returns a*b.
func (a Rat) Mul(b Rat) Rat {
	return Rat{r: new(big.Rat).Mul(a.big(), b.big())}
}

// Quo returns a/b. Panics on division by zero.
func (a Rat) Quo(b Rat) Rat {
	if b.big().Sign() == 0 {
		panic("rat: division by zero")
	}
	return Rat{r: new(big.Rat).Quo(a.big(), b.big())}
}

// Cmp returns -1, 0, or +1 as a is less than, equal to, or greater than b.
func (a Rat) Cmp(b Rat) int {
	return a.big().Cmp(b.big())
}

// Less reports whether a < b.
func (a Rat) Less(b Rat) bool { return a.Cmp(b) < 0 }

// LessEq reports whether a <= b.
func (a Rat) LessEq(b Rat) bool { return a.Cmp(b) <= 0 }

// Equal reports whether a == b.
func (a Rat) Equal(b Rat) bool { return a.Cmp(b) == 0 }

// IsInt reports whether a has denominator 1.
func (a Rat) IsInt() bool { return a.big().IsInt() }

// Int64 returns the value as an int64, valid only when IsInt is true.
func (a Rat) Int64() int64 { return a.big().Num().Int64() }

// Float64 converts to the nearest float64. Used only at the command-printer
// boundary; never feed the result back into further exact arithmetic.
func (a Rat) Float64() float64 {
	f, _ := a.big().Float64()
	return f
}

// String renders "num/den" (or "num" when the denominator is 1), matching
// the pretty-printer in the reference implementation's fmt module.
func (a Rat) String() string {
	if a.IsInt() {
		return fmt.Sprintf("%d", a.Num())
	}
	return fmt.Sprintf("%d/%d", a.Num(), a.Den())
}

// MarshalJSON encodes the rational as a "num/den" JSON string, the wire
// format used by Spec and Catalog documents.
func (a Rat) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses a "num/den" or "num" JSON string into a Rat.
func (a *Rat) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("rat: expected JSON string, got %q", b)
	}
	s := string(b[1 : len(b)-1])
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return fmt.Errorf("rat: invalid rational literal %q", s)
	}
	a.r = r
	return nil
}
