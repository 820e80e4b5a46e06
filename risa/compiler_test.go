package risa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func compileSource(t *testing.T, source string, replMode bool) *FunctionData {
	t.Helper()
	vm := newTestVM()
	fn, err := Compile(vm, source, replMode)
	assert.NoError(t, err)
	return fn
}

func opsOf(fn *FunctionData) []OpCode {
	ops := make([]OpCode, fn.Cluster.InstructionCount())
	for i := range ops {
		ops[i] = fn.Cluster.InstructionAt(i).Op
	}
	return ops
}

func TestCompile_GlobalVarDeclaration(t *testing.T) {
	fn := compileSource(t, "var x = 5;", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpDglob)
	assert.Contains(t, ops, OpRet)
}

func TestCompile_LocalVarDoesNotEmitGlobalOps(t *testing.T) {
	fn := compileSource(t, "{ var x = 5; }", false)
	ops := opsOf(fn)
	assert.NotContains(t, ops, OpDglob)
}

func TestCompile_TrailingReturnIsAlwaysEmitted(t *testing.T) {
	fn := compileSource(t, "var x = 1;", false)
	ops := opsOf(fn)
	assert.Equal(t, OpRet, ops[len(ops)-1])
}

func TestCompile_ReturnAtTopLevelIsError(t *testing.T) {
	vm := newTestVM()
	_, err := Compile(vm, "return 1;", false)
	assert.Error(t, err)
}

func TestCompile_ReplModeEmitsAccForExpressionStatement(t *testing.T) {
	fn := compileSource(t, "1 + 1;", true)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpAcc)
}

func TestCompile_ScriptModeOmitsAccForExpressionStatement(t *testing.T) {
	fn := compileSource(t, "1 + 1;", false)
	ops := opsOf(fn)
	assert.NotContains(t, ops, OpAcc)
}

func TestCompile_IfElseEmitsJumpsAndNtest(t *testing.T) {
	fn := compileSource(t, "if (true) { var x = 1; } else { var y = 2; }", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpNtest)
	assert.Contains(t, ops, OpJmp)
}

func TestCompile_WhileEmitsBackwardJump(t *testing.T) {
	fn := compileSource(t, "while (true) { break; }", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpNtest)
	assert.Contains(t, ops, OpBjmp)
}

func TestCompile_AndUsesNtest(t *testing.T) {
	fn := compileSource(t, "var x = true && false;", false)
	assert.Contains(t, opsOf(fn), OpNtest)
}

func TestCompile_OrUsesTest(t *testing.T) {
	fn := compileSource(t, "var x = true || false;", false)
	assert.Contains(t, opsOf(fn), OpTest)
}

func TestCompile_GreaterThanSwapsOperandsIntoLt(t *testing.T) {
	fn := compileSource(t, "var x = 5 > 3;", false)
	found := false
	for i := 0; i < fn.Cluster.InstructionCount(); i++ {
		instr := fn.Cluster.InstructionAt(i)
		if instr.Op == OpLt {
			found = true
			// 5 sits in the lower register, 3 in the one above it; LT
			// must compare them as (3, 5).
			assert.Greater(t, instr.B, instr.C)
		}
	}
	assert.True(t, found, "expected a > b to compile via LT with swapped operands")
}

func TestCompile_GreaterEqualCompilesViaLte(t *testing.T) {
	fn := compileSource(t, "var x = 5 >= 3;", false)
	assert.Contains(t, opsOf(fn), OpLte)
}

func TestCompile_FunctionDeclarationEmitsConstantAndDglob(t *testing.T) {
	fn := compileSource(t, "function add(a, b) { return a + b; }", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpDglob)
	assert.Contains(t, ops, OpCnst)
}

func TestCompile_CapturingNestedFunctionEmitsClsrAndUpval(t *testing.T) {
	fn := compileSource(t, `
		function outer() {
			var x = 1;
			function inner() {
				return x;
			}
			return inner;
		}
	`, false)

	var outer *FunctionData
	for _, c := range fn.Cluster.Constants {
		if c.IsDense() && c.Dense.Kind == DenseFunction {
			outer = c.Dense.AsFunction()
		}
	}
	assert.NotNil(t, outer)
	ops := opsOf(outer)
	assert.Contains(t, ops, OpClsr)
	assert.Contains(t, ops, OpUpval)
}

func TestCompile_ConstantPoolDedupsIdenticalValues(t *testing.T) {
	fn := compileSource(t, "var a = 7; var b = 7;", false)
	count := 0
	for _, c := range fn.Cluster.Constants {
		if c.Equals(IntValue(7)) {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCompile_TernarySharesOneDestinationRegister(t *testing.T) {
	fn := compileSource(t, "var x = true ? 1 : 2;", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpNtest)
	assert.Contains(t, ops, OpJmp)

	// Each arm moves its value into the destination; both MOVs must
	// target the same register.
	var movDsts []byte
	for i := 0; i < fn.Cluster.InstructionCount(); i++ {
		if instr := fn.Cluster.InstructionAt(i); instr.Op == OpMov {
			movDsts = append(movDsts, instr.A)
		}
	}
	if assert.Len(t, movDsts, 2) {
		assert.Equal(t, movDsts[0], movDsts[1])
	}
}

func TestCompile_ArrayLiteralEmitsArrAndParr(t *testing.T) {
	fn := compileSource(t, "var a = [1, 2, 3];", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpArr)
	count := 0
	for _, op := range ops {
		if op == OpParr {
			count++
		}
	}
	assert.Equal(t, 3, count)
}

func TestCompile_ObjectLiteralEmitsObjAndSet(t *testing.T) {
	fn := compileSource(t, "var o = { x: 1, y: 2 };", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpObj)
	count := 0
	for _, op := range ops {
		if op == OpSet {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestCompile_CompoundAssignmentEmitsUnderlyingOp(t *testing.T) {
	fn := compileSource(t, "var x = 1; x += 2;", false)
	assert.Contains(t, opsOf(fn), OpAdd)
}

func TestCompile_CloneEmitsCloneOp(t *testing.T) {
	fn := compileSource(t, "var a = [1]; var b = clone a;", false)
	assert.Contains(t, opsOf(fn), OpClone)
}

func TestCompile_ForLoopDesugarsToWhileShape(t *testing.T) {
	fn := compileSource(t, "for (var i = 0; i < 3; i = i + 1) { }", false)
	ops := opsOf(fn)
	assert.Contains(t, ops, OpLt)
	assert.Contains(t, ops, OpNtest)
	assert.Contains(t, ops, OpBjmp)
}
