package core

import (
	"fmt"
	"math"
)

// Value is a float that may be undefined, e.g. a statistic over a window
// that is too short or a ratio with a zero denominator.
//
// Comparisons involving an undefined Value are always false, and arithmetic
// never turns an undefined operand into a defined result.
type Value struct {
	v  float64
	ok bool
}

// Defined wraps x. NaN and infinities are treated as undefined.
func Defined(x float64) Value {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Value{}
	}
	return Value{v: x, ok: true}
}

// Undefined returns the undefined Value.
func Undefined() Value { return Value{} }

// Get returns the value and whether it is defined.
func (v Value) Get() (float64, bool) { return v.v, v.ok }

// IsDefined reports whether the value is defined.
func (v Value) IsDefined() bool { return v.ok }

// Float returns the value, or NaN when undefined.
func (v Value) Float() float64 {
	if !v.ok {
		return math.NaN()
	}
	return v.v
}

// Less reports v < x.
func (v Value) Less(x float64) bool { return v.ok && v.v < x }

// Greater reports v > x.
func (v Value) Greater(x float64) bool { return v.ok && v.v > x }

// AtLeast reports v >= x.
func (v Value) AtLeast(x float64) bool { return v.ok && v.v >= x }

// AtMost reports v <= x.
func (v Value) AtMost(x float64) bool { return v.ok && v.v <= x }

// Div returns v / d, undefined when either side is undefined or d is zero.
func (v Value) Div(d Value) Value {
	if !v.ok || !d.ok || d.v == 0 {
		return Value{}
	}
	return Defined(v.v / d.v)
}

// Scale returns v * k.
func (v Value) Scale(k float64) Value {
	if !v.ok {
		return Value{}
	}
	return Defined(v.v * k)
}

// String renders the value, "n/a" when undefined.
func (v Value) String() string {
	if !v.ok {
		return "n/a"
	}
	return fmt.Sprintf("%.6f", v.v)
}
