package risa

import (
	"fmt"
	"math"
)

// numericRank orders byte < int < float for promotion (§4.4): a binary
// arithmetic op between two different numeric kinds promotes both
// operands to the wider of the two before operating, and the result
// carries that wider type.
func numericRank(t ValueType) (int, bool) {
	switch t {
	case ValByte:
		return 0, true
	case ValInt:
		return 1, true
	case ValFloat:
		return 2, true
	default:
		return -1, false
	}
}

func valueLen(v Value) (int, error) {
	switch {
	case v.IsString():
		return len(v.Dense.AsString().Chars), nil
	case v.IsArray():
		return len(v.Dense.AsArray().Values), nil
	case v.IsObject():
		return len(v.Dense.AsObject().Keys), nil
	default:
		return 0, fmt.Errorf("%w: LEN expects a string, array, or object", ErrTypeMismatch)
	}
}

func bitwiseNot(v Value) (Value, error) {
	switch v.Type {
	case ValByte:
		return ByteValue(^v.AsByte()), nil
	case ValInt:
		return IntValue(^v.AsInt()), nil
	default:
		return Value{}, fmt.Errorf("%w: BNOT expects a byte or int", ErrTypeMismatch)
	}
}

func negate(v Value) (Value, error) {
	switch v.Type {
	case ValByte:
		return IntValue(-int64(v.AsByte())), nil
	case ValInt:
		return IntValue(-v.AsInt()), nil
	case ValFloat:
		return FloatValue(-v.AsFloat()), nil
	default:
		return Value{}, fmt.Errorf("%w: NEG expects a numeric value", ErrTypeMismatch)
	}
}

func addOne(v Value, delta int64) (Value, error) {
	switch v.Type {
	case ValByte:
		return ByteValue(byte(int64(v.AsByte()) + delta)), nil
	case ValInt:
		return IntValue(v.AsInt() + delta), nil
	case ValFloat:
		return FloatValue(v.AsFloat() + float64(delta)), nil
	default:
		return Value{}, fmt.Errorf("%w: INC/DEC expects a numeric value", ErrTypeMismatch)
	}
}

// arith evaluates one of the numeric binary opcodes, concatenating
// strings for ADD and otherwise promoting byte/int/float per
// numericRank before operating.
func (vm *VM) arith(op OpCode, left, right Value) (Value, error) {
	if op == OpAdd && left.IsString() && right.IsString() {
		return DenseValue(vm.internDense(left.Dense.AsString().Chars + right.Dense.AsString().Chars)), nil
	}

	lr, lok := numericRank(left.Type)
	rr, rok := numericRank(right.Type)
	if !lok || !rok {
		return Value{}, fmt.Errorf("%w: %s expects numeric operands, got %s and %s", ErrTypeMismatch, op, left.Type, right.Type)
	}

	switch op {
	case OpShl, OpShr, OpBand, OpBxor, OpBor:
		if left.Type == ValFloat || right.Type == ValFloat {
			return Value{}, fmt.Errorf("%w: %s does not accept floats", ErrTypeMismatch, op)
		}
		l, r := left.AsInt(), right.AsInt()
		if left.Type == ValByte {
			l = int64(left.AsByte())
		}
		if right.Type == ValByte {
			r = int64(right.AsByte())
		}
		var result int64
		switch op {
		case OpShl:
			result = l << uint64(r)
		case OpShr:
			result = l >> uint64(r)
		case OpBand:
			result = l & r
		case OpBxor:
			result = l ^ r
		case OpBor:
			result = l | r
		}
		if lr == 0 && rr == 0 {
			return ByteValue(byte(result)), nil
		}
		return IntValue(result), nil
	}

	rank := lr
	if rr > rank {
		rank = rr
	}

	switch rank {
	case 2: // float
		l, r := left.AsNumber(), right.AsNumber()
		res, err := floatArith(op, l, r)
		return res, err
	case 1: // int
		l, r := widenInt(left), widenInt(right)
		return intArith(op, l, r)
	default: // byte
		l, r := int64(left.AsByte()), int64(right.AsByte())
		v, err := intArith(op, l, r)
		if err != nil {
			return Value{}, err
		}
		return ByteValue(byte(v.AsInt())), nil
	}
}

func widenInt(v Value) int64 {
	if v.Type == ValByte {
		return int64(v.AsByte())
	}
	return v.AsInt()
}

func intArith(op OpCode, l, r int64) (Value, error) {
	switch op {
	case OpAdd:
		return IntValue(l + r), nil
	case OpSub:
		return IntValue(l - r), nil
	case OpMul:
		return IntValue(l * r), nil
	case OpDiv:
		if r == 0 {
			return Value{}, fmt.Errorf("%w", ErrDivisionByZero)
		}
		return IntValue(l / r), nil
	case OpMod:
		if r == 0 {
			return Value{}, fmt.Errorf("%w", ErrDivisionByZero)
		}
		return IntValue(l % r), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported integer operator %s", ErrTypeMismatch, op)
	}
}

// floatArith matches intArith in rejecting a zero divisor outright: a
// zero right-hand side is a runtime error for DIV and MOD alike, not a
// silent IEEE 754 Inf/NaN (§4.4; §9's resolved Open Question only
// covers MOD's non-zero fmod-vs-truncated semantics).
func floatArith(op OpCode, l, r float64) (Value, error) {
	switch op {
	case OpAdd:
		return FloatValue(l + r), nil
	case OpSub:
		return FloatValue(l - r), nil
	case OpMul:
		return FloatValue(l * r), nil
	case OpDiv:
		if r == 0 {
			return Value{}, fmt.Errorf("%w", ErrDivisionByZero)
		}
		return FloatValue(l / r), nil
	case OpMod:
		if r == 0 {
			return Value{}, fmt.Errorf("%w", ErrDivisionByZero)
		}
		return FloatValue(math.Mod(l, r)), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported float operator %s", ErrTypeMismatch, op)
	}
}

func compareOrdered(op OpCode, left, right Value) (Value, error) {
	if left.IsString() && right.IsString() {
		lc, rc := left.Dense.AsString().Chars, right.Dense.AsString().Chars
		switch op {
		case OpLt:
			return BoolValue(lc < rc), nil
		case OpLte:
			return BoolValue(lc <= rc), nil
		}
	}

	if _, ok := numericRank(left.Type); !ok {
		return Value{}, fmt.Errorf("%w: comparison expects numeric or string operands", ErrTypeMismatch)
	}
	if _, ok := numericRank(right.Type); !ok {
		return Value{}, fmt.Errorf("%w: comparison expects numeric or string operands", ErrTypeMismatch)
	}

	l, r := left.AsNumber(), right.AsNumber()
	switch op {
	case OpLt:
		return BoolValue(l < r), nil
	case OpLte:
		return BoolValue(l <= r), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported comparison operator %s", ErrTypeMismatch, op)
	}
}

func (vm *VM) getIndex(collection, key Value) (Value, error) {
	switch {
	case collection.IsArray():
		if !key.IsByte() && !key.IsInt() {
			return Value{}, fmt.Errorf("%w: array index must be a byte or int", ErrTypeMismatch)
		}
		arr := collection.Dense.AsArray()
		idx := widenInt(key)
		if idx < 0 || idx >= int64(len(arr.Values)) {
			return Value{}, fmt.Errorf("%w: index %d out of bounds (len %d)", ErrIndexOutOfBounds, idx, len(arr.Values))
		}
		return arr.Values[idx], nil

	case collection.IsObject():
		if !key.IsString() {
			return Value{}, fmt.Errorf("%w: object key must be a string", ErrTypeMismatch)
		}
		obj := collection.Dense.AsObject()
		v, ok := obj.Get(key.Dense.AsString())
		if !ok {
			return Value{}, fmt.Errorf("%w: %s", ErrKeyNotFound, key.Dense.AsString().Chars)
		}
		return v, nil

	case collection.IsString():
		if !key.IsByte() && !key.IsInt() {
			return Value{}, fmt.Errorf("%w: string index must be a byte or int", ErrTypeMismatch)
		}
		chars := collection.Dense.AsString().Chars
		idx := widenInt(key)
		if idx < 0 || idx >= int64(len(chars)) {
			return Value{}, fmt.Errorf("%w: index %d out of bounds (len %d)", ErrIndexOutOfBounds, idx, len(chars))
		}
		return ByteValue(chars[idx]), nil

	default:
		return Value{}, fmt.Errorf("%w: GET expects an array, object, or string", ErrTypeMismatch)
	}
}

func (vm *VM) setIndex(collection, key, val Value) error {
	switch {
	case collection.IsArray():
		if !key.IsByte() && !key.IsInt() {
			return fmt.Errorf("%w: array index must be a byte or int", ErrTypeMismatch)
		}
		arr := collection.Dense.AsArray()
		idx := widenInt(key)
		if idx < 0 || idx >= int64(len(arr.Values)) {
			return fmt.Errorf("%w: index %d out of bounds (len %d)", ErrIndexOutOfBounds, idx, len(arr.Values))
		}
		arr.Values[idx] = val
		return nil

	case collection.IsObject():
		if !key.IsString() {
			return fmt.Errorf("%w: object key must be a string", ErrTypeMismatch)
		}
		collection.Dense.AsObject().Set(key.Dense.AsString(), val)
		return nil

	default:
		return fmt.Errorf("%w: SET expects an array or object", ErrTypeMismatch)
	}
}
