package risa

import (
	"fmt"
	"strings"
)

// DenseKind tags the seven heap shapes a Dense value can take.
type DenseKind byte

const (
	DenseString DenseKind = iota
	DenseArray
	DenseObject
	DenseUpvalue
	DenseFunction
	DenseClosure
	DenseNative
)

func (k DenseKind) String() string {
	switch k {
	case DenseString:
		return "string"
	case DenseArray:
		return "array"
	case DenseObject:
		return "object"
	case DenseUpvalue:
		return "upvalue"
	case DenseFunction:
		return "function"
	case DenseClosure:
		return "closure"
	case DenseNative:
		return "native"
	default:
		return "unknown"
	}
}

// Dense is the common heap header shared by every heap shape: a GC mark
// bit, an intrusive "next in heap" link, and a kind-specific payload.
// Payload holds exactly one of *StringData, *ArrayData, *ObjectData,
// *UpvalueData, *FunctionData, *ClosureData, *NativeData.
type Dense struct {
	Kind    DenseKind
	Marked  bool
	Next    *Dense
	Payload any
}

func (d *Dense) String() string {
	switch d.Kind {
	case DenseString:
		return d.AsString().Chars
	case DenseArray:
		arr := d.AsArray()
		parts := make([]string, len(arr.Values))
		for i, v := range arr.Values {
			parts[i] = v.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case DenseObject:
		obj := d.AsObject()
		parts := make([]string, 0, len(obj.Keys))
		for _, k := range obj.Keys {
			v, _ := obj.Entries.Get(k)
			parts = append(parts, fmt.Sprintf("%s: %s", k.Chars, v.String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case DenseUpvalue:
		return d.AsUpvalue().get().String()
	case DenseFunction:
		fn := d.AsFunction()
		if fn.Name != nil {
			return fmt.Sprintf("<function %s>", fn.Name.Chars)
		}
		return "<function>"
	case DenseClosure:
		return d.AsClosure().Function.AsFunction().stringClosure()
	case DenseNative:
		return fmt.Sprintf("<native %s>", d.AsNative().Name)
	default:
		return "<dense>"
	}
}

func (fn *FunctionData) stringClosure() string {
	if fn.Name != nil {
		return fmt.Sprintf("<closure %s>", fn.Name.Chars)
	}
	return "<closure>"
}

func (d *Dense) AsString() *StringData     { return d.Payload.(*StringData) }
func (d *Dense) AsArray() *ArrayData       { return d.Payload.(*ArrayData) }
func (d *Dense) AsObject() *ObjectData     { return d.Payload.(*ObjectData) }
func (d *Dense) AsUpvalue() *UpvalueData   { return d.Payload.(*UpvalueData) }
func (d *Dense) AsFunction() *FunctionData { return d.Payload.(*FunctionData) }
func (d *Dense) AsClosure() *ClosureData   { return d.Payload.(*ClosureData) }
func (d *Dense) AsNative() *NativeData     { return d.Payload.(*NativeData) }

// IsTruthy: every dense value is truthy regardless of contents (§3).
func (d *Dense) IsTruthy() bool { return true }

// DenseSize is the GC heuristic byte size used for heapSize accounting
// (§4.6). It is a heuristic, not authoritative.
func (d *Dense) DenseSize() int {
	switch d.Kind {
	case DenseString:
		return 24 + len(d.AsString().Chars)
	case DenseArray:
		return 24 + len(d.AsArray().Values)*32
	case DenseObject:
		return 24 + d.AsObject().Entries.Len()*48
	case DenseUpvalue:
		return 16
	case DenseFunction:
		fn := d.AsFunction()
		return 32 + len(fn.Cluster.Bytecode) + len(fn.Cluster.Indices)*4 + len(fn.Cluster.Constants)*32
	case DenseClosure:
		return 24 + len(d.AsClosure().Upvalues)*8
	case DenseNative:
		return 16
	default:
		return 16
	}
}

// Clone implements CLONE (§4.4): arrays/objects are deep-copied, strings
// and functions are copied by reference.
func (d *Dense) Clone(vm *VM) Value {
	switch d.Kind {
	case DenseArray:
		src := d.AsArray()
		dst := make([]Value, len(src.Values))
		for i, v := range src.Values {
			dst[i] = v.Clone(vm)
		}
		return DenseValue(vm.registerDense(&Dense{Kind: DenseArray, Payload: &ArrayData{Values: dst}}))
	case DenseObject:
		src := d.AsObject()
		newObj := NewObjectData()
		for _, k := range src.Keys {
			v, _ := src.Entries.Get(k)
			newObj.Set(k, v.Clone(vm))
		}
		return DenseValue(vm.registerDense(&Dense{Kind: DenseObject, Payload: newObj}))
	default:
		return DenseValue(d)
	}
}

// StringData is an immutable interned byte sequence with a precomputed
// FNV-1a hash.
type StringData struct {
	Chars string
	Hash  uint32
}

// ArrayData is a dynamic sequence of Values.
type ArrayData struct {
	Values []Value
}

// ObjectData is an insertion-ordered hashmap with String keys.
type ObjectData struct {
	Entries *Map
	Keys    []*StringData
}

func NewObjectData() *ObjectData {
	return &ObjectData{Entries: NewMap()}
}

func (o *ObjectData) Get(key *StringData) (Value, bool) {
	return o.Entries.Get(key)
}

func (o *ObjectData) Set(key *StringData, value Value) {
	if _, existed := o.Entries.Get(key); !existed {
		o.Keys = append(o.Keys, key)
	}
	o.Entries.Set(key, value)
}

func (o *ObjectData) Delete(key *StringData) bool {
	if _, existed := o.Entries.Get(key); !existed {
		return false
	}
	o.Entries.Delete(key)
	for i, k := range o.Keys {
		if k == key {
			o.Keys = append(o.Keys[:i], o.Keys[i+1:]...)
			break
		}
	}
	return true
}

// UpvalueData references either a live stack slot (open) or a value
// copied into Closed (closed). Open upvalues form a VM-owned linked list
// ordered by descending stack address.
type UpvalueData struct {
	// Stack is non-nil while open; it is a slice view over the VM stack
	// starting at the captured slot, so *Stack[0] reaches the live slot.
	Stack  []Value
	Closed Value
	open   bool
	// NextOpen links the VM's open-upvalue list, sorted by descending
	// stack address (see §3 invariants).
	NextOpen *Dense
	// StackIndex is the absolute stack slot this upvalue was opened
	// against, used to keep the open list ordered and to find the close
	// boundary on frame pop.
	StackIndex int
}

func (u *UpvalueData) get() Value {
	if u.open {
		return u.Stack[0]
	}
	return u.Closed
}

func (u *UpvalueData) set(v Value) {
	if u.open {
		u.Stack[0] = v
	} else {
		u.Closed = v
	}
}

func (u *UpvalueData) close() {
	if u.open {
		u.Closed = u.Stack[0]
		u.open = false
		u.Stack = nil
	}
}

// FunctionData is an arity, an optional name, and the compiled Cluster.
type FunctionData struct {
	Arity   int
	Name    *StringData
	Cluster *Cluster
}

// ClosureData wraps a Function with its captured upvalues.
type ClosureData struct {
	Function  *Dense // DenseFunction
	Upvalues  []*Dense
}

// NativeFunc is the native-function ABI from §6: args holds exactly the
// argc call arguments. A native that calls back into script code does so
// through vm.Call.
type NativeFunc func(vm *VM, argc int, args []Value) Value

type NativeData struct {
	Name string
	Fn   NativeFunc
}
