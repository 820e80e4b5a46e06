package risa

import (
	"bytes"
	"encoding/binary"
)

// Cluster wire format (§3, §4.7):
//
//	magic        [4]byte  "RISA"
//	endianProbe  uint16   0x0001, always written little-endian
//	version      uint32
//	stringCount  uint32
//	strings      stringCount * (uint32 length, bytes)
//	root         serialized function (see writeFunction)
//
// Every string literal, global/object-key name, and function name in the
// tree is collected once into a flat, deduplicated pool; constants and
// names reference it by index rather than embedding text inline, so a
// string repeated across many functions is written only once.
const (
	clusterMagic   = "RISA"
	clusterVersion = uint32(1)
	endianProbe    = uint16(0x0001)
)

const (
	constTagNull byte = iota
	constTagBool
	constTagByte
	constTagInt
	constTagFloat
	constTagString
	constTagFunction
	constTagArray
	constTagObject
)

// Serialize encodes fn (and everything it transitively references) into
// the cluster wire format.
func Serialize(fn *FunctionData) ([]byte, error) {
	pool := collectStrings(fn, newStringPool())

	var buf bytes.Buffer
	buf.WriteString(clusterMagic)
	binary.Write(&buf, binary.LittleEndian, endianProbe)
	binary.Write(&buf, binary.LittleEndian, clusterVersion)

	binary.Write(&buf, binary.LittleEndian, uint32(len(pool.list)))
	for _, s := range pool.list {
		binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
		buf.WriteString(s)
	}

	writeFunction(&buf, fn, pool)

	return buf.Bytes(), nil
}

type stringPool struct {
	index map[string]int
	list  []string
}

func newStringPool() *stringPool {
	return &stringPool{index: make(map[string]int)}
}

func (p *stringPool) intern(s string) int {
	if i, ok := p.index[s]; ok {
		return i
	}
	i := len(p.list)
	p.index[s] = i
	p.list = append(p.list, s)
	return i
}

func collectStrings(fn *FunctionData, pool *stringPool) *stringPool {
	if fn.Name != nil {
		pool.intern(fn.Name.Chars)
	}
	for _, c := range fn.Cluster.Constants {
		collectValueStrings(c, pool)
	}
	return pool
}

func collectValueStrings(v Value, pool *stringPool) {
	if !v.IsDense() {
		return
	}
	switch v.Dense.Kind {
	case DenseString:
		pool.intern(v.Dense.AsString().Chars)
	case DenseFunction:
		collectStrings(v.Dense.AsFunction(), pool)
	case DenseArray:
		for _, el := range v.Dense.AsArray().Values {
			collectValueStrings(el, pool)
		}
	case DenseObject:
		obj := v.Dense.AsObject()
		for _, k := range obj.Keys {
			pool.intern(k.Chars)
		}
		obj.Entries.Each(func(k *StringData, val Value) {
			collectValueStrings(val, pool)
		})
	}
}

func writeFunction(buf *bytes.Buffer, fn *FunctionData, pool *stringPool) {
	nameIdx := int32(-1)
	if fn.Name != nil {
		nameIdx = int32(pool.intern(fn.Name.Chars))
	}
	binary.Write(buf, binary.LittleEndian, nameIdx)
	binary.Write(buf, binary.LittleEndian, uint32(fn.Arity))

	cl := fn.Cluster
	binary.Write(buf, binary.LittleEndian, uint32(len(cl.Constants)))
	for _, c := range cl.Constants {
		writeConstant(buf, c, pool)
	}

	binary.Write(buf, binary.LittleEndian, uint32(len(cl.Bytecode)))
	buf.Write(cl.Bytecode)
	for _, idx := range cl.Indices {
		binary.Write(buf, binary.LittleEndian, idx)
	}
}

func writeConstant(buf *bytes.Buffer, v Value, pool *stringPool) {
	switch v.Type {
	case ValNull:
		buf.WriteByte(constTagNull)
	case ValBool:
		buf.WriteByte(constTagBool)
		b := byte(0)
		if v.AsBool() {
			b = 1
		}
		buf.WriteByte(b)
	case ValByte:
		buf.WriteByte(constTagByte)
		buf.WriteByte(v.AsByte())
	case ValInt:
		buf.WriteByte(constTagInt)
		binary.Write(buf, binary.LittleEndian, v.AsInt())
	case ValFloat:
		buf.WriteByte(constTagFloat)
		binary.Write(buf, binary.LittleEndian, v.AsFloat())
	case ValDense:
		switch v.Dense.Kind {
		case DenseString:
			buf.WriteByte(constTagString)
			binary.Write(buf, binary.LittleEndian, int32(pool.intern(v.Dense.AsString().Chars)))
		case DenseFunction:
			buf.WriteByte(constTagFunction)
			writeFunction(buf, v.Dense.AsFunction(), pool)
		case DenseArray:
			buf.WriteByte(constTagArray)
			arr := v.Dense.AsArray()
			binary.Write(buf, binary.LittleEndian, uint32(len(arr.Values)))
			for _, el := range arr.Values {
				writeConstant(buf, el, pool)
			}
		case DenseObject:
			buf.WriteByte(constTagObject)
			obj := v.Dense.AsObject()
			binary.Write(buf, binary.LittleEndian, uint32(len(obj.Keys)))
			for _, k := range obj.Keys {
				binary.Write(buf, binary.LittleEndian, int32(pool.intern(k.Chars)))
				val, _ := obj.Get(k)
				writeConstant(buf, val, pool)
			}
		default:
			// Closures/upvalues/natives never appear in a constant pool:
			// they are runtime-only values with no wire representation.
			buf.WriteByte(constTagNull)
		}
	}
}
