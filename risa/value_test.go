package risa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_IsTruthy(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected bool
	}{
		{"null is falsy", NullValue(), false},
		{"false is falsy", BoolValue(false), false},
		{"true is truthy", BoolValue(true), true},
		{"zero byte is falsy", ByteValue(0), false},
		{"nonzero byte is truthy", ByteValue(1), true},
		{"zero int is falsy", IntValue(0), false},
		{"nonzero int is truthy", IntValue(-1), true},
		{"zero float is falsy", FloatValue(0), false},
		{"nonzero float is truthy", FloatValue(0.5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.IsTruthy())
			assert.Equal(t, !tt.expected, tt.value.IsFalsy())
		})
	}
}

func TestValue_Equals_CrossNumeric(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Value
		expected bool
	}{
		{"byte equals matching int", ByteValue(3), IntValue(3), true},
		{"byte differs from int", ByteValue(3), IntValue(4), false},
		{"int equals matching float", IntValue(2), FloatValue(2.0), true},
		{"float differs from int", FloatValue(2.5), IntValue(2), false},
		{"byte equals matching float", ByteValue(7), FloatValue(7.0), true},
		{"bool never equals int", BoolValue(true), IntValue(1), false},
		{"null equals null", NullValue(), NullValue(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Equals(tt.b))
		})
	}
}

func TestValue_StrictEquals_RejectsCrossNumeric(t *testing.T) {
	assert.True(t, IntValue(3).Equals(ByteValue(3)))
	assert.False(t, IntValue(3).StrictEquals(ByteValue(3)))
	assert.True(t, IntValue(3).StrictEquals(IntValue(3)))
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"null", NullValue(), "null"},
		{"true", BoolValue(true), "true"},
		{"false", BoolValue(false), "false"},
		{"int", IntValue(42), "42"},
		{"negative int", IntValue(-7), "-7"},
		{"float", FloatValue(3.5), "3.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.String())
		})
	}
}

func TestValue_AsNumber_Widens(t *testing.T) {
	assert.Equal(t, float64(5), ByteValue(5).AsNumber())
	assert.Equal(t, float64(-3), IntValue(-3).AsNumber())
	assert.Equal(t, 1.5, FloatValue(1.5).AsNumber())
}

func TestValue_IsCallable(t *testing.T) {
	fn := &Dense{Kind: DenseFunction, Payload: &FunctionData{Arity: 0}}
	native := &Dense{Kind: DenseNative, Payload: &NativeData{Name: "x"}}
	str := &Dense{Kind: DenseString, Payload: &StringData{Chars: "x"}}

	assert.True(t, DenseValue(fn).IsCallable())
	assert.True(t, DenseValue(native).IsCallable())
	assert.False(t, DenseValue(str).IsCallable())
	assert.False(t, IntValue(1).IsCallable())
}
