package risa

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/shirou/gopsutil/mem"
)

func registerDebugNatives(vm *VM) {
	vm.defineNative("dump", func(vm *VM, argc int, args []Value) Value {
		for i := 0; i < argc; i++ {
			vm.IO.writeOut(spew.Sdump(toComparable(args[i])))
		}
		return NullValue()
	})

	vm.defineNative("hostmem", func(vm *VM, argc int, args []Value) Value {
		vmStat, err := mem.VirtualMemory()
		if err != nil {
			return NullValue()
		}
		obj := NewObjectData()
		obj.Set(vm.internDense("total").AsString(), IntValue(int64(vmStat.Total)))
		obj.Set(vm.internDense("used").AsString(), IntValue(int64(vmStat.Used)))
		obj.Set(vm.internDense("free").AsString(), IntValue(int64(vmStat.Free)))
		obj.Set(vm.internDense("usedpercent").AsString(), FloatValue(vmStat.UsedPercent))
		return DenseValue(vm.registerDense(&Dense{Kind: DenseObject, Payload: obj}))
	})

	vm.defineNative("heapinfo", func(vm *VM, argc int, args []Value) Value {
		obj := NewObjectData()
		obj.Set(vm.internDense("size").AsString(), IntValue(int64(vm.HeapSize)))
		obj.Set(vm.internDense("threshold").AsString(), IntValue(int64(vm.HeapThreshold)))
		return DenseValue(vm.registerDense(&Dense{Kind: DenseObject, Payload: obj}))
	})

	vm.defineNative("dis", func(vm *VM, argc int, args []Value) Value {
		v := arg(args, 0)
		if !v.IsCallable() || v.Dense.Kind == DenseNative {
			return NullValue()
		}
		return DenseValue(vm.internDense(Disassemble(calleeFunction(v.Dense))))
	})
}
