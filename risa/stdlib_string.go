package risa

import "strings"

func registerStringNatives(vm *VM) {
	asString := func(v Value) (string, bool) {
		if v.IsString() {
			return v.Dense.AsString().Chars, true
		}
		return "", false
	}

	vm.defineNative("upper", func(vm *VM, argc int, args []Value) Value {
		s, ok := asString(arg(args, 0))
		if !ok {
			return NullValue()
		}
		return DenseValue(vm.internDense(strings.ToUpper(s)))
	})

	vm.defineNative("lower", func(vm *VM, argc int, args []Value) Value {
		s, ok := asString(arg(args, 0))
		if !ok {
			return NullValue()
		}
		return DenseValue(vm.internDense(strings.ToLower(s)))
	})

	vm.defineNative("trim", func(vm *VM, argc int, args []Value) Value {
		s, ok := asString(arg(args, 0))
		if !ok {
			return NullValue()
		}
		return DenseValue(vm.internDense(strings.TrimSpace(s)))
	})

	vm.defineNative("contains", func(vm *VM, argc int, args []Value) Value {
		s, ok1 := asString(arg(args, 0))
		sub, ok2 := asString(arg(args, 1))
		if !ok1 || !ok2 {
			return BoolValue(false)
		}
		return BoolValue(strings.Contains(s, sub))
	})

	vm.defineNative("indexof", func(vm *VM, argc int, args []Value) Value {
		s, ok1 := asString(arg(args, 0))
		sub, ok2 := asString(arg(args, 1))
		if !ok1 || !ok2 {
			return IntValue(-1)
		}
		return IntValue(int64(strings.Index(s, sub)))
	})

	vm.defineNative("substr", func(vm *VM, argc int, args []Value) Value {
		s, ok := asString(arg(args, 0))
		if !ok {
			return NullValue()
		}
		start := int(arg(args, 1).AsNumber())
		length := len(s) - start
		if argc > 2 {
			length = int(arg(args, 2).AsNumber())
		}
		if start < 0 || start > len(s) || length < 0 || start+length > len(s) {
			return NullValue()
		}
		return DenseValue(vm.internDense(s[start : start+length]))
	})

	vm.defineNative("split", func(vm *VM, argc int, args []Value) Value {
		s, ok1 := asString(arg(args, 0))
		sep, ok2 := asString(arg(args, 1))
		if !ok1 || !ok2 {
			return NullValue()
		}
		parts := strings.Split(s, sep)
		values := make([]Value, len(parts))
		for i, p := range parts {
			values[i] = DenseValue(vm.internDense(p))
		}
		return DenseValue(vm.registerDense(&Dense{Kind: DenseArray, Payload: &ArrayData{Values: values}}))
	})

	vm.defineNative("join", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		sep, _ := asString(arg(args, 1))
		if !v.IsArray() {
			return NullValue()
		}
		parts := make([]string, 0, len(v.Dense.AsArray().Values))
		for _, e := range v.Dense.AsArray().Values {
			parts = append(parts, e.String())
		}
		return DenseValue(vm.internDense(strings.Join(parts, sep)))
	})
}
