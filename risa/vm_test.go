package risa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestVM() *VM {
	io := DefaultIO()
	return NewVM(&io, DefaultConfig())
}

func runExpr(t *testing.T, source string) Value {
	t.Helper()
	vm := newTestVM()
	v, err := vm.Run(source+";", true)
	assert.NoError(t, err)
	return v
}

func TestVM_Arithmetic(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected Value
	}{
		{"add ints", "1 + 2", IntValue(3)},
		{"sub ints", "5 - 2", IntValue(3)},
		{"mul ints", "3 * 4", IntValue(12)},
		{"div ints truncates", "7 / 2", IntValue(3)},
		{"mod ints", "7 % 2", IntValue(1)},
		{"mixed int float promotes", "1 + 2.5", FloatValue(3.5)},
		{"string concat", `"foo" + "bar"`, nil},
		{"operator precedence", "2 + 3 * 4", IntValue(14)},
		{"parens override precedence", "(2 + 3) * 4", IntValue(20)},
		{"unary negate", "-5", IntValue(-5)},
		{"unary not", "!false", BoolValue(true)},
		{"greater than via swapped lt", "5 > 3", BoolValue(true)},
		{"greater equal via swapped lte", "5 >= 5", BoolValue(true)},
		{"less than", "3 < 5", BoolValue(true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runExpr(t, tt.source)
			if tt.expected == nil {
				assert.Equal(t, "foobar", got.String())
				return
			}
			assert.True(t, tt.expected.Equals(got), "expected %v got %v", tt.expected, got)
		})
	}
}

func TestVM_DivisionByZero(t *testing.T) {
	vm := newTestVM()
	_, err := vm.Run("1 / 0;", true)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestVM_FloatDivisionByZeroErrors(t *testing.T) {
	vm := newTestVM()
	_, err := vm.Run("1.0 / 0.0;", true)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestVM_FloatModuloByZeroErrors(t *testing.T) {
	vm := newTestVM()
	_, err := vm.Run("1.0 % 0.0;", true)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestVM_AndOrShortCircuit(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected Value
	}{
		{"and both true", "true && true", BoolValue(true)},
		{"and short-circuits on falsy left", "false && (1/0 > 0)", BoolValue(false)},
		{"or short-circuits on truthy left", "true || (1/0 > 0)", BoolValue(true)},
		{"or evaluates right when left falsy", "false || true", BoolValue(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runExpr(t, tt.source)
			assert.True(t, tt.expected.Equals(got))
		})
	}
}

func TestVM_Ternary(t *testing.T) {
	assert.True(t, IntValue(1).Equals(runExpr(t, "true ? 1 : 2")))
	assert.True(t, IntValue(2).Equals(runExpr(t, "false ? 1 : 2")))
}

func TestVM_IfElse(t *testing.T) {
	source := `
		var x = 0;
		if (true) {
			x = 1;
		} else {
			x = 2;
		}
		x;
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(1).Equals(v))
}

func TestVM_WhileLoop(t *testing.T) {
	source := `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		sum;
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(10).Equals(v))
}

func TestVM_ForLoop(t *testing.T) {
	source := `
		var sum = 0;
		for (var i = 0; i < 5; i = i + 1) {
			sum = sum + i;
		}
		sum;
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(10).Equals(v))
}

func TestVM_BreakContinue(t *testing.T) {
	source := `
		var sum = 0;
		var i = 0;
		while (i < 10) {
			i = i + 1;
			if (i == 5) {
				break;
			}
			if (i % 2 == 0) {
				continue;
			}
			sum = sum + i;
		}
		sum;
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	// i: 1(sum=1) 2(skip) 3(sum=4) 4(skip) then i becomes 5 -> break
	assert.True(t, IntValue(4).Equals(v))
}

func TestVM_FunctionCallAndRecursion(t *testing.T) {
	source := `
		function fact(n) {
			if (n <= 1) {
				return 1;
			}
			return n * fact(n - 1);
		}
		fact(5);
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(120).Equals(v))
}

func TestVM_ClosureCapturesUpvalue(t *testing.T) {
	source := `
		function makeCounter() {
			var count = 0;
			function increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		counter();
		counter();
		counter();
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(3).Equals(v))
}

func TestVM_ArrayIndexingAndMutation(t *testing.T) {
	source := `
		var a = [1, 2, 3];
		a[1] = 9;
		push(a, 4);
		a[1] + a[3];
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(13).Equals(v))
}

func TestVM_ObjectIndexing(t *testing.T) {
	source := `
		var o = { x: 1, y: 2 };
		o["x"] = o["x"] + o["y"];
		o["x"];
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(3).Equals(v))
}

func TestVM_CloneDeepCopiesArray(t *testing.T) {
	source := `
		var a = [1, 2, 3];
		var b = clone a;
		b[0] = 99;
		a[0];
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(1).Equals(v))
}

func TestVM_LambdaArrowForm(t *testing.T) {
	source := `
		var add = (a, b) => a + b;
		add(2, 3);
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, IntValue(5).Equals(v))
}

func TestVM_GlobalNotFoundErrors(t *testing.T) {
	vm := newTestVM()
	_, err := vm.Run("missingGlobal;", true)
	assert.ErrorIs(t, err, ErrGlobalNotFound)
}

func TestVM_WrongArityErrors(t *testing.T) {
	source := `
		function needsOne(a) { return a; }
		needsOne(1, 2);
	`
	vm := newTestVM()
	_, err := vm.Run(source, true)
	assert.ErrorIs(t, err, ErrWrongArity)
}

func TestVM_CallingNonCallableErrors(t *testing.T) {
	source := `
		var x = 5;
		x();
	`
	vm := newTestVM()
	_, err := vm.Run(source, true)
	assert.ErrorIs(t, err, ErrInvalidCall)
}

func TestVM_Natives(t *testing.T) {
	assert.Equal(t, "int", runExpr(t, "typeof(5)").String())
	assert.True(t, BoolValue(true).Equals(runExpr(t, "iscallable(typeof)")))
	assert.True(t, IntValue(3).Equals(runExpr(t, "pop(push([1,2], 3))")))
}

func TestVM_LenCoversStringsArraysAndObjects(t *testing.T) {
	assert.True(t, IntValue(5).Equals(runExpr(t, `len("hello")`)))
	assert.True(t, IntValue(3).Equals(runExpr(t, "len([1, 2, 3])")))
	assert.True(t, IntValue(2).Equals(runExpr(t, `len({ x: 1, y: 2 })`)))
	assert.True(t, runExpr(t, "len(5)").IsNull())
}

func TestVM_DisReturnsDisassemblyOfAFunction(t *testing.T) {
	source := `
		function add(a, b) {
			return a + b;
		}
		dis(add);
	`
	vm := newTestVM()
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, v.IsString())
	assert.Contains(t, v.Dense.AsString().Chars, "add")
}

func TestVM_DisOnNonCallableReturnsNull(t *testing.T) {
	assert.True(t, runExpr(t, "dis(5)").IsNull())
}

func TestVM_ScriptModeReturnsNullRegardlessOfLastExpression(t *testing.T) {
	vm := newTestVM()
	v, err := vm.Run("1 + 1;", false)
	assert.NoError(t, err)
	assert.True(t, v.IsNull())
}
