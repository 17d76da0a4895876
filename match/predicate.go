package match

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
)

// Kind tags the variant held by a Predicate
type Kind int

const (
	// KindEquals compares the attribute for equality with a value
	KindEquals Kind = iota
	// KindRange tests numeric membership in an inclusive range
	KindRange
	// KindPattern matches a regular expression against the attribute's string form
	KindPattern
	// KindSatisfies calls a function with the attribute
	KindSatisfies
)

func (k Kind) String() string {
	switch k {
	case KindEquals:
		return "equals"
	case KindRange:
		return "range"
	case KindPattern:
		return "pattern"
	case KindSatisfies:
		return "satisfies"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Number is the set of numeric types accepted by InRange
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Predicate is an expectation about a single attribute value. The zero
// value is Equals(nil).
type Predicate struct {
	kind   Kind
	value  any
	lo, hi float64
	re     *regexp.Regexp
	fn     func(any) bool
	desc   string
}

// Equals expects the attribute to equal v. Numbers compare by value
// regardless of their Go type.
func Equals(v any) Predicate {
	return Predicate{kind: KindEquals, value: v}
}

// InRange expects a numeric attribute within [lo, hi]
func InRange[T Number](lo, hi T) Predicate {
	return Predicate{kind: KindRange, lo: float64(lo), hi: float64(hi)}
}

// Pattern expects the attribute's string form to match re
func Pattern(re *regexp.Regexp) Predicate {
	return Predicate{kind: KindPattern, re: re}
}

// MustPattern compiles expr and panics if it is not a valid regular expression
func MustPattern(expr string) Predicate {
	return Pattern(regexp.MustCompile(expr))
}

// Satisfies expects fn to return true for the attribute
func Satisfies(fn func(actual any) bool) Predicate {
	return Predicate{kind: KindSatisfies, fn: fn, desc: "func"}
}

// Kind returns the variant tag
func (p Predicate) Kind() Kind {
	return p.kind
}

// Match evaluates the predicate against actual. Dispatch is on the
// predicate's own kind, never on the kind of actual.
func (p Predicate) Match(actual any) bool {
	switch p.kind {
	case KindEquals:
		return equal(p.value, actual)
	case KindRange:
		n, ok := toFloat(actual)
		return ok && n >= p.lo && n <= p.hi
	case KindPattern:
		if p.re == nil || actual == nil {
			return false
		}
		return p.re.MatchString(stringOf(actual))
	case KindSatisfies:
		return p.fn != nil && p.fn(actual)
	}
	return false
}

func (p Predicate) String() string {
	switch p.kind {
	case KindEquals:
		return fmt.Sprintf("== %v", p.value)
	case KindRange:
		return fmt.Sprintf("in %s..%s", formatFloat(p.lo), formatFloat(p.hi))
	case KindPattern:
		if p.re == nil {
			return "=~ //"
		}
		return "=~ /" + p.re.String() + "/"
	case KindSatisfies:
		return "satisfies " + p.desc
	}
	return p.kind.String()
}

func equal(expected, actual any) bool {
	if IsNumber(expected) {
		return numberEqual(expected, actual)
	}
	switch e := expected.(type) {
	case nil:
		return actual == nil
	case string:
		switch a := actual.(type) {
		case string:
			return a == e
		case []byte:
			return string(a) == e
		}
		return false
	case []byte:
		switch a := actual.(type) {
		case string:
			return a == string(e)
		case []byte:
			return string(a) == string(e)
		}
		return false
	}
	return reflect.DeepEqual(expected, actual)
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// toBigUint returns unsigned values that do not fit in an int64
func toBigUint(v any) (uint64, bool) {
	var u uint64
	switch n := v.(type) {
	case uint:
		u = uint64(n)
	case uint64:
		u = n
	default:
		return 0, false
	}
	return u, u > math.MaxInt64
}

func toFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	if u, ok := toBigUint(v); ok {
		return float64(u), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// numberEqual compares two numbers exactly. Integers and floats are equal
// only when the float is integral and holds the same value.
func numberEqual(a, b any) bool {
	if u, ok := toBigUint(a); ok {
		return bigUintEqual(u, b)
	}
	if u, ok := toBigUint(b); ok {
		return bigUintEqual(u, a)
	}

	ai, aInt := toInt(a)
	bi, bInt := toInt(b)
	switch {
	case aInt && bInt:
		return ai == bi
	case aInt:
		f, ok := toFloat(b)
		return ok && intEqualsFloat(ai, f)
	case bInt:
		f, ok := toFloat(a)
		return ok && intEqualsFloat(bi, f)
	}
	af, _ := toFloat(a)
	bf, ok := toFloat(b)
	return ok && af == bf
}

func bigUintEqual(u uint64, v any) bool {
	if w, ok := toBigUint(v); ok {
		return u == w
	}
	if _, ok := toInt(v); ok {
		return false
	}
	f, ok := toFloat(v)
	return ok && f == math.Trunc(f) && f >= 1<<63 && f < 1<<64 && uint64(f) == u
}

func intEqualsFloat(i int64, f float64) bool {
	return f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63 && int64(f) == i
}

// IsNumber reports whether v holds one of the numeric kinds
func IsNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseValue converts a protocol string into int64, float64 or string,
// in that order of preference.
func ParseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
