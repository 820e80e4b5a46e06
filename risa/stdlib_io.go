package risa

import "strings"

func registerIONatives(vm *VM) {
	vm.defineNative("print", func(vm *VM, argc int, args []Value) Value {
		parts := make([]string, argc)
		for i := 0; i < argc; i++ {
			parts[i] = args[i].String()
		}
		vm.IO.writeOut(strings.Join(parts, " "))
		return NullValue()
	})

	vm.defineNative("println", func(vm *VM, argc int, args []Value) Value {
		parts := make([]string, argc)
		for i := 0; i < argc; i++ {
			parts[i] = args[i].String()
		}
		vm.IO.writeOut(strings.Join(parts, " ") + "\n")
		return NullValue()
	})

	vm.defineNative("readline", func(vm *VM, argc int, args []Value) Value {
		if vm.IO.In == nil {
			return NullValue()
		}
		var sb strings.Builder
		for {
			b := vm.IO.In()
			if b == 0xFFFF || b == uint16('\n') {
				break
			}
			sb.WriteByte(byte(b))
		}
		return DenseValue(vm.internDense(sb.String()))
	})
}
