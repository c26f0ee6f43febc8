// Package lang implements the deterministic expression language whose
// closures serve as committed payloads. Expressions are s-expression
// values (the language is homoiconic), evaluation is a step-budgeted
// reduction that emits a machine-checkable trace, and every committable
// value has a single canonical byte encoding.
package lang

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Kind tags the variants of the Value sum.
type Kind uint8

const (
	// KindNil is the empty list / false.
	KindNil Kind = iota
	// KindNum is an unsigned 256-bit field element.
	KindNum
	// KindSym is an interned symbol.
	KindSym
	// KindCons is a pair of values.
	KindCons
	// KindClosure is a function together with its captured environment.
	KindClosure
	// KindBuiltin is a primitive operator referenced in value position.
	// Builtins are applicable but have no canonical encoding.
	KindBuiltin
)

// scalarModulus is the BLS12-381 scalar field modulus. All numeric values
// are kept below it so every number is a canonical field element, which is
// what allows traces to be packed into KZG blob scalars without reduction.
var scalarModulus = uint256.MustFromHex("0x73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001")

// Value is the tagged runtime value. The zero Value is Nil.
type Value struct {
	Kind    Kind
	Num     *uint256.Int
	Sym     string
	Car     *Value
	Cdr     *Value
	Fn      *Closure
	Builtin string
}

// Closure pairs a function body with the lexical environment captured at
// definition time. Body is itself a Value (the language is homoiconic).
type Closure struct {
	Params []string
	Body   Value
	Env    *Env
}

// Nil returns the empty value.
func Nil() Value { return Value{Kind: KindNil} }

// Num constructs a numeric value reduced into the scalar field.
func Num(x *uint256.Int) Value {
	n := new(uint256.Int).Mod(x, scalarModulus)
	return Value{Kind: KindNum, Num: n}
}

// NumUint64 constructs a numeric value from a uint64.
func NumUint64(x uint64) Value {
	return Value{Kind: KindNum, Num: uint256.NewInt(x)}
}

// Sym constructs a symbol value.
func Sym(name string) Value { return Value{Kind: KindSym, Sym: name} }

// Cons constructs a pair.
func Cons(car, cdr Value) Value {
	return Value{Kind: KindCons, Car: &car, Cdr: &cdr}
}

// IsNil reports whether v is the empty value.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// list builds a proper list from the given elements.
func list(elems ...Value) Value {
	out := Nil()
	for i := len(elems) - 1; i >= 0; i-- {
		out = Cons(elems[i], out)
	}
	return out
}

// listElems unpacks a proper list into a slice. The second return is false
// if v is not nil-terminated.
func listElems(v Value) ([]Value, bool) {
	var out []Value
	for !v.IsNil() {
		if v.Kind != KindCons {
			return nil, false
		}
		out = append(out, *v.Car)
		v = *v.Cdr
	}
	return out, true
}

// String renders the value in source syntax. Closures and builtins render
// as opaque markers since they have no literal form.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindNum:
		return v.Num.Dec()
	case KindSym:
		return v.Sym
	case KindCons:
		return renderCons(v)
	case KindClosure:
		return "<closure>"
	case KindBuiltin:
		return "<builtin " + v.Builtin + ">"
	default:
		return fmt.Sprintf("<unknown kind %d>", v.Kind)
	}
}

// renderCons prints proper lists as (a b c) and improper tails as (a . b).
func renderCons(v Value) string {
	var b strings.Builder
	b.WriteByte('(')
	first := true
	for {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(v.Car.String())
		switch v.Cdr.Kind {
		case KindNil:
			b.WriteByte(')')
			return b.String()
		case KindCons:
			v = *v.Cdr
		default:
			b.WriteString(" . ")
			b.WriteString(v.Cdr.String())
			b.WriteByte(')')
			return b.String()
		}
	}
}

// Equal reports structural equality. Closures compare by pointer identity
// of their captured environment and structural equality of params and body.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindNum:
		return v.Num.Eq(o.Num)
	case KindSym:
		return v.Sym == o.Sym
	case KindCons:
		return v.Car.Equal(*o.Car) && v.Cdr.Equal(*o.Cdr)
	case KindClosure:
		if len(v.Fn.Params) != len(o.Fn.Params) {
			return false
		}
		for i := range v.Fn.Params {
			if v.Fn.Params[i] != o.Fn.Params[i] {
				return false
			}
		}
		return v.Fn.Body.Equal(o.Fn.Body) && v.Fn.Env == o.Fn.Env
	case KindBuiltin:
		return v.Builtin == o.Builtin
	default:
		return false
	}
}
