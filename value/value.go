// Package value defines the runtime's tagged value representation and heap
// object kinds. Values admit O(1) type discrimination; objects carry an
// ObjectHeader the heap package uses to trace and sweep them.
//
// A NaN-boxed 64-bit word would pack a value more tightly, but Go's
// garbage collector needs to see object pointers as real pointers —
// holding one inside a raw NaN-boxed word would require `unsafe`. This
// small tagged struct gives the same semantics: a Value is one of int,
// float, bool, nil, or an object reference, and comparing or branching
// on its kind never allocates.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Tag identifies which field of a Value is live.
type Tag uint8

const (
	TagNil Tag = iota
	TagBool
	TagInt
	TagFloat
	TagObject
)

// Value is the Runtime's universal value type.
type Value struct {
	tag Tag
	num uint64 // bit pattern for Bool/Int/Float
	obj Object
}

// Nil is the singleton nil value.
var Nil = Value{tag: TagNil}

// Bool constructs a boolean value.
func Bool(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{tag: TagBool, num: n}
}

// Int constructs an integer value (64-bit signed range).
func Int(i int64) Value {
	return Value{tag: TagInt, num: uint64(i)}
}

// Float constructs a double-precision float value.
func Float(f float64) Value {
	return Value{tag: TagFloat, num: math.Float64bits(f)}
}

// Obj wraps a heap object reference as a Value.
func Obj(o Object) Value {
	if o == nil {
		return Nil
	}
	return Value{tag: TagObject, obj: o}
}

func (v Value) Tag() Tag { return v.tag }

func (v Value) IsNil() bool    { return v.tag == TagNil }
func (v Value) IsBool() bool   { return v.tag == TagBool }
func (v Value) IsInt() bool    { return v.tag == TagInt }
func (v Value) IsFloat() bool  { return v.tag == TagFloat }
func (v Value) IsObject() bool { return v.tag == TagObject }

// IsNumber reports whether the value is an int or a float.
func (v Value) IsNumber() bool { return v.tag == TagInt || v.tag == TagFloat }

func (v Value) AsBool() bool       { return v.num != 0 }
func (v Value) AsInt() int64       { return int64(v.num) }
func (v Value) AsFloat() float64   { return math.Float64frombits(v.num) }
func (v Value) AsObject() Object   { return v.obj }

// AsFloat64 returns the numeric value as a float64 regardless of whether it
// is stored as an int or a float, for use by the polymorphic arithmetic ops.
func (v Value) AsFloat64() float64 {
	if v.tag == TagInt {
		return float64(int64(v.num))
	}
	return v.AsFloat()
}

// Kind returns the object kind for object values, or KindInvalid otherwise.
func (v Value) Kind() ObjectKind {
	if v.tag != TagObject || v.obj == nil {
		return KindInvalid
	}
	return v.obj.Header().Kind
}

// Truthy implements the runtime's truthiness table: nil and
// false are false; 0 and 0.0 are false; empty strings are false;
// non-empty strings and all other objects are true.
func (v Value) Truthy() bool {
	switch v.tag {
	case TagNil:
		return false
	case TagBool:
		return v.AsBool()
	case TagInt:
		return v.AsInt() != 0
	case TagFloat:
		return v.AsFloat() != 0
	case TagObject:
		if s, ok := v.obj.(*StringObj); ok {
			return len(s.Data) != 0
		}
		return true
	}
	return false
}

// TypeName returns a human-readable type name for diagnostics.
func (v Value) TypeName() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagObject:
		return v.obj.Header().Kind.String()
	}
	return "unknown"
}

// Stringify converts any value to its display/concatenation string:
// ints with decimal, floats with %g, bools as "true"/"false",
// nil as "nil", other objects as "[object]" (strings pass through).
func (v Value) Stringify() string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case TagInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case TagFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case TagObject:
		if s, ok := v.obj.(*StringObj); ok {
			return string(s.Data)
		}
		return "[object]"
	}
	return ""
}

// Equals implements value equality: reflexive for non-NaN, symmetric,
// transitive; NaN == NaN is false. Objects compare by identity except
// strings, which always compare equal by content: two interned strings
// with equal content are already the same object (pointer equality short-
// circuits that common case), but a string produced by concatenation or
// any other runtime computation is never interned and must still
// compare equal to an interned string with the same bytes, so the
// content comparison below never trusts the two sides' precomputed Hash
// fields — only NewString-constructed strings that were never run
// through the interner are allowed to carry a stale or zero Hash.
func (v Value) Equals(other Value) bool {
	if v.tag == TagObject && other.tag == TagObject {
		if a, ok := v.obj.(*StringObj); ok {
			if b, ok2 := other.obj.(*StringObj); ok2 {
				return a == b || string(a.Data) == string(b.Data)
			}
		}
		return v.obj == other.obj
	}
	if v.tag != other.tag {
		// int/float compare numerically across tags.
		if v.IsNumber() && other.IsNumber() {
			return v.AsFloat64() == other.AsFloat64()
		}
		return false
	}
	switch v.tag {
	case TagNil:
		return true
	case TagBool:
		return v.AsBool() == other.AsBool()
	case TagInt:
		return v.AsInt() == other.AsInt()
	case TagFloat:
		return v.AsFloat() == other.AsFloat()
	}
	return false
}

func (v Value) GoString() string {
	return fmt.Sprintf("Value{%s %q}", v.TypeName(), v.Stringify())
}
