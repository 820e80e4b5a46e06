package risa

import (
	"fmt"
	"strconv"
)

// registerStdlib installs every native module as globals, the way the
// host embeds builtins into a fresh VM before handing it a script (§6).
func registerStdlib(vm *VM) {
	registerCoreNatives(vm)
	registerMathNatives(vm)
	registerStringNatives(vm)
	registerIONatives(vm)
	registerReflectNatives(vm)
	registerDebugNatives(vm)
}

// defineNative installs a single native function as a global, matching
// the flat (unnamespaced) shape the grammar supports: there is no dotted
// member access, so module names are folded into the function name
// itself (e.g. "hostmem" rather than a bare "mem") only where a bare name
// would collide.
func (vm *VM) defineNative(name string, fn NativeFunc) {
	nd := &NativeData{Name: name, Fn: fn}
	d := &Dense{Kind: DenseNative, Payload: nd}
	sd := vm.internDense(name).AsString()
	vm.Globals.Set(sd, DenseValue(d))
}

func arg(args []Value, i int) Value {
	if i < 0 || i >= len(args) {
		return NullValue()
	}
	return args[i]
}

func registerCoreNatives(vm *VM) {
	vm.defineNative("typeof", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		if v.IsDense() {
			return DenseValue(vm.internDense(v.Dense.Kind.String()))
		}
		return DenseValue(vm.internDense(v.Type.String()))
	})

	vm.defineNative("tostring", func(vm *VM, argc int, args []Value) Value {
		return DenseValue(vm.internDense(arg(args, 0).String()))
	})

	vm.defineNative("tonumber", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		switch {
		case v.IsInt(), v.IsFloat(), v.IsByte():
			return v
		case v.IsString():
			s := v.Dense.AsString().Chars
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return IntValue(i)
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return FloatValue(f)
			}
		}
		return NullValue()
	})

	vm.defineNative("push", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		if !v.IsArray() {
			return NullValue()
		}
		arr := v.Dense.AsArray()
		arr.Values = append(arr.Values, arg(args, 1))
		return v
	})

	vm.defineNative("pop", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		if !v.IsArray() {
			return NullValue()
		}
		arr := v.Dense.AsArray()
		if len(arr.Values) == 0 {
			return NullValue()
		}
		last := arr.Values[len(arr.Values)-1]
		arr.Values = arr.Values[:len(arr.Values)-1]
		return last
	})

	vm.defineNative("len", func(vm *VM, argc int, args []Value) Value {
		n, err := valueLen(arg(args, 0))
		if err != nil {
			return NullValue()
		}
		return IntValue(int64(n))
	})

	vm.defineNative("keys", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		if !v.IsObject() {
			return NullValue()
		}
		obj := v.Dense.AsObject()
		out := make([]Value, len(obj.Keys))
		for i, k := range obj.Keys {
			out[i] = DenseValue(vm.internDense(k.Chars))
		}
		return DenseValue(vm.registerDense(&Dense{Kind: DenseArray, Payload: &ArrayData{Values: out}}))
	})

	vm.defineNative("foreach", func(vm *VM, argc int, args []Value) Value {
		collection := arg(args, 0)
		callback := arg(args, 1)
		if !callback.IsCallable() {
			return NullValue()
		}

		switch {
		case collection.IsArray():
			for _, v := range collection.Dense.AsArray().Values {
				if _, err := vm.Call(callback.Dense, []Value{v}); err != nil {
					return NullValue()
				}
			}
		case collection.IsObject():
			obj := collection.Dense.AsObject()
			for _, k := range obj.Keys {
				v, _ := obj.Get(k)
				if _, err := vm.Call(callback.Dense, []Value{DenseValue(vm.internDense(k.Chars)), v}); err != nil {
					return NullValue()
				}
			}
		}
		return NullValue()
	})

	vm.defineNative("assert", func(vm *VM, argc int, args []Value) Value {
		if arg(args, 0).IsFalsy() {
			msg := "assertion failed"
			if argc > 1 && arg(args, 1).IsString() {
				msg = arg(args, 1).Dense.AsString().Chars
			}
			vm.IO.writeErr(fmt.Sprintf("%s\n", msg))
		}
		return NullValue()
	})
}
