package risa

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Deserialize decodes the cluster wire format produced by Serialize,
// interning every string it encounters through vm so that pointer
// equality holds between a reloaded script and freshly compiled source
// using the same literals.
func Deserialize(vm *VM, data []byte) (*FunctionData, error) {
	r := &reader{data: data}

	magic, err := r.take(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != clusterMagic {
		return nil, fmt.Errorf("%w", ErrDeserializeMagicMismatch)
	}

	probe, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if probe != endianProbe {
		return nil, fmt.Errorf("%w", ErrDeserializeEndianMismatch)
	}

	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if version != clusterVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDeserializeVersionMismatch, version, clusterVersion)
	}

	stringCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	pool := make([]*StringData, stringCount)
	for i := range pool {
		length, err := r.uint32()
		if err != nil {
			return nil, err
		}
		raw, err := r.take(int(length))
		if err != nil {
			return nil, err
		}
		pool[i] = vm.internDense(string(raw)).AsString()
	}

	return readFunction(r, pool)
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w", ErrDeserializeEOF)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *reader) int64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *reader) float64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

func readString(pool []*StringData, idx int32) (*StringData, error) {
	if idx < 0 {
		return nil, nil
	}
	if int(idx) >= len(pool) {
		return nil, fmt.Errorf("%w: string pool index %d out of range (pool size %d)", ErrDeserializeOther, idx, len(pool))
	}
	return pool[idx], nil
}

func readFunction(r *reader, pool []*StringData) (*FunctionData, error) {
	nameIdx, err := r.int32()
	if err != nil {
		return nil, err
	}
	name, err := readString(pool, nameIdx)
	if err != nil {
		return nil, err
	}

	arity, err := r.uint32()
	if err != nil {
		return nil, err
	}

	fn := &FunctionData{Name: name, Arity: int(arity), Cluster: NewCluster()}

	constCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	fn.Cluster.Constants = make([]Value, constCount)
	for i := range fn.Cluster.Constants {
		v, err := readConstant(r, pool)
		if err != nil {
			return nil, err
		}
		fn.Cluster.Constants[i] = v
	}

	codeLen, err := r.uint32()
	if err != nil {
		return nil, err
	}
	code, err := r.take(int(codeLen))
	if err != nil {
		return nil, err
	}
	fn.Cluster.Bytecode = append([]byte(nil), code...)

	fn.Cluster.Indices = make([]uint32, codeLen)
	for i := range fn.Cluster.Indices {
		idx, err := r.uint32()
		if err != nil {
			return nil, err
		}
		fn.Cluster.Indices[i] = idx
	}

	return fn, nil
}

func readConstant(r *reader, pool []*StringData) (Value, error) {
	tagBytes, err := r.take(1)
	if err != nil {
		return Value{}, err
	}
	switch tagBytes[0] {
	case constTagNull:
		return NullValue(), nil
	case constTagBool:
		b, err := r.take(1)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b[0] != 0), nil
	case constTagByte:
		b, err := r.take(1)
		if err != nil {
			return Value{}, err
		}
		return ByteValue(b[0]), nil
	case constTagInt:
		v, err := r.int64()
		if err != nil {
			return Value{}, err
		}
		return IntValue(v), nil
	case constTagFloat:
		v, err := r.float64()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(v), nil
	case constTagString:
		idx, err := r.int32()
		if err != nil {
			return Value{}, err
		}
		sd, err := readString(pool, idx)
		if err != nil {
			return Value{}, err
		}
		if sd == nil {
			return Value{}, fmt.Errorf("%w: string constant with negative pool index", ErrDeserializeOther)
		}
		return DenseValue(&Dense{Kind: DenseString, Payload: sd}), nil
	case constTagFunction:
		fn, err := readFunction(r, pool)
		if err != nil {
			return Value{}, err
		}
		return DenseValue(&Dense{Kind: DenseFunction, Payload: fn}), nil
	case constTagArray:
		count, err := r.uint32()
		if err != nil {
			return Value{}, err
		}
		values := make([]Value, count)
		for i := range values {
			v, err := readConstant(r, pool)
			if err != nil {
				return Value{}, err
			}
			values[i] = v
		}
		return DenseValue(&Dense{Kind: DenseArray, Payload: &ArrayData{Values: values}}), nil
	case constTagObject:
		count, err := r.uint32()
		if err != nil {
			return Value{}, err
		}
		obj := NewObjectData()
		for i := uint32(0); i < count; i++ {
			keyIdx, err := r.int32()
			if err != nil {
				return Value{}, err
			}
			key, err := readString(pool, keyIdx)
			if err != nil {
				return Value{}, err
			}
			if key == nil {
				return Value{}, fmt.Errorf("%w: object key with negative pool index", ErrDeserializeOther)
			}
			val, err := readConstant(r, pool)
			if err != nil {
				return Value{}, err
			}
			obj.Set(key, val)
		}
		return DenseValue(&Dense{Kind: DenseObject, Payload: obj}), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown constant tag %d", ErrDeserializeOther, tagBytes[0])
	}
}
