package risa

import "math"

func registerMathNatives(vm *VM) {
	unary := func(name string, f func(float64) float64) {
		vm.defineNative(name, func(vm *VM, argc int, args []Value) Value {
			return FloatValue(f(arg(args, 0).AsNumber()))
		})
	}

	unary("sqrt", math.Sqrt)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("round", math.Round)
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("log", math.Log)

	vm.defineNative("abs", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		switch v.Type {
		case ValInt:
			if v.AsInt() < 0 {
				return IntValue(-v.AsInt())
			}
			return v
		case ValFloat:
			return FloatValue(math.Abs(v.AsFloat()))
		case ValByte:
			return v
		default:
			return NullValue()
		}
	})

	vm.defineNative("pow", func(vm *VM, argc int, args []Value) Value {
		return FloatValue(math.Pow(arg(args, 0).AsNumber(), arg(args, 1).AsNumber()))
	})

	vm.defineNative("min", func(vm *VM, argc int, args []Value) Value {
		return FloatValue(math.Min(arg(args, 0).AsNumber(), arg(args, 1).AsNumber()))
	})

	vm.defineNative("max", func(vm *VM, argc int, args []Value) Value {
		return FloatValue(math.Max(arg(args, 0).AsNumber(), arg(args, 1).AsNumber()))
	})
}
