package risa

import "fmt"

// execute runs instructions until the frame count drops back to
// floorFrame (the frame that was active when this call began), then
// returns the value left by the final RET.
func (vm *VM) execute(floorFrame int) (Value, error) {
	var result Value

	for vm.frameCount > floorFrame {
		f := vm.frame()
		fn := f.function()
		cl := fn.Cluster

		if f.IP+instructionSize > len(cl.Bytecode) {
			return NullValue(), fmt.Errorf("%w: instruction pointer ran past function end", ErrDeserializeOther)
		}

		instr := DecodeInstruction(cl.Bytecode, f.IP)
		f.IP += instructionSize

		switch instr.Op {
		case OpCnst:
			vm.setReg(f, instr.A, cl.Constants[instr.B])

		case OpCnstw:
			vm.setReg(f, instr.A, cl.Constants[instr.BC()])

		case OpMov:
			vm.setReg(f, instr.A, vm.getReg(f, instr.B))

		case OpClone:
			vm.setReg(f, instr.A, vm.getReg(f, instr.B).Clone(vm))

		case OpDglob:
			name := vm.getConst(cl, instr.A).Dense.AsString()
			vm.Globals.Set(name, vm.operand(f, cl, instr.B, instr.RightIsConst()))

		case OpGglob:
			name := cl.Constants[instr.B].Dense.AsString()
			val, ok := vm.Globals.Get(name)
			if !ok {
				return NullValue(), fmt.Errorf("%w: %s", ErrGlobalNotFound, name.Chars)
			}
			vm.setReg(f, instr.A, val)

		case OpSglob:
			name := cl.Constants[instr.A].Dense.AsString()
			if _, ok := vm.Globals.Get(name); !ok {
				return NullValue(), fmt.Errorf("%w: %s", ErrGlobalNotFound, name.Chars)
			}
			vm.Globals.Set(name, vm.operand(f, cl, instr.B, instr.RightIsConst()))

		case OpUpval:
			// Consumed inline by CLSR; should never be dispatched on its
			// own unless bytecode is malformed.
			return NullValue(), fmt.Errorf("%w: stray UPVAL outside of CLSR", ErrDeserializeOther)

		case OpGupval:
			closure := f.Callee
			if closure.Kind != DenseClosure {
				return NullValue(), fmt.Errorf("%w: GUPVAL in a non-closure frame", ErrTypeMismatch)
			}
			uv := closure.AsClosure().Upvalues[instr.B]
			vm.setReg(f, instr.A, uv.AsUpvalue().get())

		case OpSupval:
			closure := f.Callee
			if closure.Kind != DenseClosure {
				return NullValue(), fmt.Errorf("%w: SUPVAL in a non-closure frame", ErrTypeMismatch)
			}
			uv := closure.AsClosure().Upvalues[instr.A]
			uv.AsUpvalue().set(vm.getReg(f, instr.B))

		case OpCupval:
			vm.closeUpvalues(f.Base + int(instr.A))

		case OpClsr:
			fnVal := vm.getReg(f, instr.B)
			n := int(instr.C)
			upvalues := make([]*Dense, n)
			for i := 0; i < n; i++ {
				descOffset := f.IP + i*instructionSize
				desc := DecodeInstruction(cl.Bytecode, descOffset)
				if desc.B != 0 {
					upvalues[i] = vm.captureUpvalue(f.Base + int(desc.A))
				} else {
					upvalues[i] = f.Callee.AsClosure().Upvalues[desc.A]
				}
			}
			f.IP += n * instructionSize
			closure := vm.registerDense(&Dense{Kind: DenseClosure, Payload: &ClosureData{Function: fnVal.Dense, Upvalues: upvalues}})
			vm.setReg(f, instr.A, DenseValue(closure))

		case OpArr:
			vm.setReg(f, instr.A, DenseValue(vm.registerDense(&Dense{Kind: DenseArray, Payload: &ArrayData{}})))

		case OpParr:
			arrVal := vm.getReg(f, instr.A)
			if !arrVal.IsArray() {
				return NullValue(), fmt.Errorf("%w: PARR target is not an array", ErrTypeMismatch)
			}
			arr := arrVal.Dense.AsArray()
			arr.Values = append(arr.Values, vm.operand(f, cl, instr.B, instr.LeftIsConst()))

		case OpLen:
			src := vm.getReg(f, instr.B)
			n, err := valueLen(src)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, IntValue(int64(n)))

		case OpObj:
			vm.setReg(f, instr.A, DenseValue(vm.registerDense(&Dense{Kind: DenseObject, Payload: NewObjectData()})))

		case OpGet:
			collection := vm.getReg(f, instr.B)
			key := vm.operand(f, cl, instr.C, instr.LeftIsConst())
			v, err := vm.getIndex(collection, key)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, v)

		case OpSet:
			collection := vm.getReg(f, instr.A)
			key := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			val := vm.operand(f, cl, instr.C, instr.RightIsConst())
			if err := vm.setIndex(collection, key, val); err != nil {
				return NullValue(), err
			}

		case OpNull:
			vm.setReg(f, instr.A, NullValue())
		case OpTrue:
			vm.setReg(f, instr.A, BoolValue(true))
		case OpFalse:
			vm.setReg(f, instr.A, BoolValue(false))

		case OpNot:
			src := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			vm.setReg(f, instr.A, BoolValue(src.IsFalsy()))

		case OpBnot:
			src := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			v, err := bitwiseNot(src)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, v)

		case OpNeg:
			src := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			v, err := negate(src)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, v)

		case OpInc:
			src := vm.getReg(f, instr.A)
			v, err := addOne(src, 1)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, v)

		case OpDec:
			src := vm.getReg(f, instr.A)
			v, err := addOne(src, -1)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, v)

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpShl, OpShr, OpBand, OpBxor, OpBor:
			left := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			right := vm.operand(f, cl, instr.C, instr.RightIsConst())
			v, err := vm.arith(instr.Op, left, right)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, v)

		case OpLt, OpLte:
			left := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			right := vm.operand(f, cl, instr.C, instr.RightIsConst())
			v, err := compareOrdered(instr.Op, left, right)
			if err != nil {
				return NullValue(), err
			}
			vm.setReg(f, instr.A, v)

		case OpEq:
			left := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			right := vm.operand(f, cl, instr.C, instr.RightIsConst())
			vm.setReg(f, instr.A, BoolValue(left.Equals(right)))

		case OpNeq:
			left := vm.operand(f, cl, instr.B, instr.LeftIsConst())
			right := vm.operand(f, cl, instr.C, instr.RightIsConst())
			vm.setReg(f, instr.A, BoolValue(!left.Equals(right)))

		case OpTest:
			if vm.getReg(f, instr.A).IsFalsy() {
				f.IP += instructionSize
			}

		case OpNtest:
			if vm.getReg(f, instr.A).IsTruthy() {
				f.IP += instructionSize
			}

		case OpJmp:
			f.IP += int(instr.A) * instructionSize
		case OpJmpw:
			f.IP += int(instr.BC()) * instructionSize
		case OpBjmp:
			f.IP -= int(instr.A) * instructionSize
		case OpBjmpw:
			f.IP -= int(instr.BC()) * instructionSize

		case OpCall:
			if err := vm.dispatchCall(f, instr); err != nil {
				return NullValue(), err
			}

		case OpRet:
			v := vm.regOrNull(f, instr.A)
			vm.popFrame()
			result = v
			if vm.frameCount > floorFrame {
				caller := vm.frame()
				vm.setReg(caller, caller.pendingCallDst, v)
			}

		case OpAcc:
			vm.lastValue = vm.operand(f, cl, instr.A, instr.LeftIsConst())

		case OpDis:
			target := f.Callee
			if instr.A != byte(RegisterNull) {
				v := vm.getReg(f, instr.A)
				if !v.IsCallable() {
					return NullValue(), fmt.Errorf("%w: DIS operand is not callable", ErrTypeMismatch)
				}
				target = v.Dense
			}
			vm.IO.writeOut(Disassemble(calleeFunction(target)))

		default:
			return NullValue(), fmt.Errorf("%w: opcode %s", ErrDeserializeOther, instr.Op)
		}
	}

	return result, nil
}

func (vm *VM) getReg(f *CallFrame, idx byte) Value {
	if idx == byte(RegisterNull) {
		return NullValue()
	}
	return vm.Stack[f.Base+int(idx)]
}

func (vm *VM) regOrNull(f *CallFrame, idx byte) Value { return vm.getReg(f, idx) }

func (vm *VM) setReg(f *CallFrame, idx byte, v Value) {
	vm.Stack[f.Base+int(idx)] = v
}

func (vm *VM) getConst(cl *Cluster, idx byte) Value { return cl.Constants[idx] }

// operand resolves a single flagged operand (register unless isConst).
func (vm *VM) operand(f *CallFrame, cl *Cluster, idx byte, isConst bool) Value {
	if isConst {
		return cl.Constants[idx]
	}
	return vm.getReg(f, idx)
}

// dispatchCall implements CALL fn_reg,argc (§4.5): arguments already sit
// in the argc registers directly above fn_reg. Natives run inline;
// Functions/Closures push a new frame whose base makes the first
// argument register 0.
func (vm *VM) dispatchCall(f *CallFrame, instr Instruction) error {
	calleeVal := vm.getReg(f, instr.A)
	if !calleeVal.IsCallable() {
		return fmt.Errorf("%w", ErrInvalidCall)
	}
	argc := int(instr.B)
	callee := calleeVal.Dense

	if callee.Kind == DenseNative {
		args := make([]Value, argc)
		absBase := f.Base + int(instr.A) + 1
		for i := 0; i < argc; i++ {
			args[i] = vm.Stack[absBase+i]
		}
		result := vm.callNative(callee, args)
		vm.setReg(f, instr.A, result)
		return nil
	}

	fn := calleeFunction(callee)
	if argc != fn.Arity {
		return fmt.Errorf("%w: %s expected %d argument(s), got %d", ErrWrongArity, functionName(fn), fn.Arity, argc)
	}

	newBase := f.Base + int(instr.A) + 1
	f.pendingCallDst = instr.A
	return vm.pushFrame(callee, newBase)
}
