package risa

import (
	"fmt"
	"math"
)

// ValueType tags the six variants a Value can hold. Only ValDense
// carries a heap reference; the rest are inline.
type ValueType byte

const (
	ValNull ValueType = iota
	ValBool
	ValByte
	ValInt
	ValFloat
	ValDense
)

func (t ValueType) String() string {
	switch t {
	case ValNull:
		return "null"
	case ValBool:
		return "bool"
	case ValByte:
		return "byte"
	case ValInt:
		return "int"
	case ValFloat:
		return "float"
	case ValDense:
		return "dense"
	default:
		return "unknown"
	}
}

// Value is the VM's tagged union. Dense carries the heap reference; the
// other fields double up the way a C union would (only the field matching
// Type is meaningful at any given time).
type Value struct {
	Type    ValueType
	boolean bool
	integer int64
	float   float64
	Dense   *Dense
}

func NullValue() Value                 { return Value{Type: ValNull} }
func BoolValue(b bool) Value           { return Value{Type: ValBool, boolean: b} }
func ByteValue(b byte) Value           { return Value{Type: ValByte, integer: int64(b)} }
func IntValue(i int64) Value           { return Value{Type: ValInt, integer: i} }
func FloatValue(f float64) Value       { return Value{Type: ValFloat, float: f} }
func DenseValue(d *Dense) Value        { return Value{Type: ValDense, Dense: d} }

func (v Value) IsNull() bool  { return v.Type == ValNull }
func (v Value) IsBool() bool  { return v.Type == ValBool }
func (v Value) IsByte() bool  { return v.Type == ValByte }
func (v Value) IsInt() bool   { return v.Type == ValInt }
func (v Value) IsFloat() bool { return v.Type == ValFloat }
func (v Value) IsDense() bool { return v.Type == ValDense }

func (v Value) AsBool() bool     { return v.boolean }
func (v Value) AsByte() byte     { return byte(v.integer) }
func (v Value) AsInt() int64     { return v.integer }
func (v Value) AsFloat() float64 { return v.float }

// AsNumber widens byte/int/float to a float64, for call sites that only
// care about the numeric magnitude (math stdlib, coercion checks).
func (v Value) AsNumber() float64 {
	switch v.Type {
	case ValByte:
		return float64(byte(v.integer))
	case ValInt:
		return float64(v.integer)
	case ValFloat:
		return v.float
	default:
		return 0
	}
}

func (v Value) IsDenseOfKind(kind DenseKind) bool {
	return v.Type == ValDense && v.Dense != nil && v.Dense.Kind == kind
}

func (v Value) IsString() bool   { return v.IsDenseOfKind(DenseString) }
func (v Value) IsArray() bool    { return v.IsDenseOfKind(DenseArray) }
func (v Value) IsObject() bool   { return v.IsDenseOfKind(DenseObject) }
func (v Value) IsCallable() bool {
	return v.IsDenseOfKind(DenseFunction) || v.IsDenseOfKind(DenseClosure) || v.IsDenseOfKind(DenseNative)
}

// IsTruthy follows §3: null and zero-valued primitives are falsy, every
// dense value (including empty strings/arrays/objects) is truthy.
func (v Value) IsTruthy() bool {
	switch v.Type {
	case ValNull:
		return false
	case ValBool:
		return v.boolean
	case ValByte:
		return byte(v.integer) != 0
	case ValInt:
		return v.integer != 0
	case ValFloat:
		return v.float != 0
	case ValDense:
		return true
	default:
		return false
	}
}

func (v Value) IsFalsy() bool { return !v.IsTruthy() }

// Equals implements §4.4's cross-numeric equality and pointer equality for
// dense values (interning makes string equality reduce to this).
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		switch {
		case v.Type == ValByte && other.Type == ValInt:
			return int64(byte(v.integer)) == other.integer
		case v.Type == ValByte && other.Type == ValFloat:
			return float64(byte(v.integer)) == other.float
		case v.Type == ValInt && other.Type == ValByte:
			return v.integer == int64(byte(other.integer))
		case v.Type == ValInt && other.Type == ValFloat:
			return float64(v.integer) == other.float
		case v.Type == ValFloat && other.Type == ValByte:
			return v.float == float64(byte(other.integer))
		case v.Type == ValFloat && other.Type == ValInt:
			return v.float == float64(other.integer)
		default:
			return false
		}
	}

	switch v.Type {
	case ValNull:
		return true
	case ValBool:
		return v.boolean == other.boolean
	case ValByte:
		return byte(v.integer) == byte(other.integer)
	case ValInt:
		return v.integer == other.integer
	case ValFloat:
		return v.float == other.float
	case ValDense:
		return v.Dense == other.Dense
	default:
		return false
	}
}

// StrictEquals additionally requires the exact same type tag (and, for
// dense values, the same dense kind). Used by the serializer's constant
// deduplication.
func (v Value) StrictEquals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	if v.Type == ValDense && (v.Dense == nil || other.Dense == nil || v.Dense.Kind != other.Dense.Kind) {
		return false
	}
	return v.Equals(other)
}

// Clone deep-copies arrays/objects; primitives, strings, and functions are
// copied by reference (see CLONE in §4.4).
func (v Value) Clone(vm *VM) Value {
	if v.Type != ValDense {
		return v
	}
	return v.Dense.Clone(vm)
}

func (v Value) String() string {
	switch v.Type {
	case ValNull:
		return "null"
	case ValBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case ValByte:
		return fmt.Sprintf("%d", byte(v.integer))
	case ValInt:
		return fmt.Sprintf("%d", v.integer)
	case ValFloat:
		return formatFloat(v.float)
	case ValDense:
		return v.Dense.String()
	default:
		return "UNK"
	}
}

// formatFloat matches the C original's "%.14g" precision convention
// (RISA_VALUE_FLOAT_PRECISION).
func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	return fmt.Sprintf("%.14g", f)
}
