package risa

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
)

func registerReflectNatives(vm *VM) {
	vm.defineNative("deepequal", func(vm *VM, argc int, args []Value) Value {
		return BoolValue(cmp.Equal(toComparable(arg(args, 0)), toComparable(arg(args, 1))))
	})

	vm.defineNative("iscallable", func(vm *VM, argc int, args []Value) Value {
		return BoolValue(arg(args, 0).IsCallable())
	})

	vm.defineNative("arity", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		if !v.IsCallable() || v.Dense.Kind == DenseNative {
			return IntValue(-1)
		}
		return IntValue(int64(calleeFunction(v.Dense).Arity))
	})
}

// toComparable projects a Value into plain Go values (bool, int64,
// float64, string, []any, map[string]any) so cmp.Equal can walk it
// without tripping over Value's unexported union fields or Dense's GC
// bookkeeping.
func toComparable(v Value) any {
	switch v.Type {
	case ValNull:
		return nil
	case ValBool:
		return v.AsBool()
	case ValByte:
		return v.AsByte()
	case ValInt:
		return v.AsInt()
	case ValFloat:
		return v.AsFloat()
	case ValDense:
		return denseComparable(v.Dense)
	default:
		return nil
	}
}

func denseComparable(d *Dense) any {
	switch d.Kind {
	case DenseString:
		return d.AsString().Chars
	case DenseArray:
		src := d.AsArray().Values
		out := make([]any, len(src))
		for i, e := range src {
			out[i] = toComparable(e)
		}
		return out
	case DenseObject:
		obj := d.AsObject()
		out := make(map[string]any, len(obj.Keys))
		for _, k := range obj.Keys {
			v, _ := obj.Get(k)
			out[k.Chars] = toComparable(v)
		}
		return out
	default:
		// Functions/closures/natives compare by identity only: their
		// payloads hold func values cmp can't walk.
		return fmt.Sprintf("%s@%p", d.Kind, d)
	}
}
