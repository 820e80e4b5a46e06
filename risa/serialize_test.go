package risa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerialize_RoundTripsClusterAndMetadata(t *testing.T) {
	vm := newTestVM()
	fn, err := Compile(vm, `
		function add(a, b) {
			return a + b;
		}
		add(2, 3);
	`, false)
	assert.NoError(t, err)

	data, err := Serialize(fn)
	assert.NoError(t, err)

	vm2 := newTestVM()
	reloaded, err := Deserialize(vm2, data)
	assert.NoError(t, err)

	assert.Equal(t, fn.Arity, reloaded.Arity)
	assert.Equal(t, fn.Cluster.Bytecode, reloaded.Cluster.Bytecode)
	assert.Equal(t, fn.Cluster.Indices, reloaded.Cluster.Indices)
	assert.Equal(t, len(fn.Cluster.Constants), len(reloaded.Cluster.Constants))
}

func TestSerialize_Deserialize_ExecutesIdenticallyToSource(t *testing.T) {
	vm := newTestVM()
	fn, err := Compile(vm, "1 + 1;", true)
	assert.NoError(t, err)

	data, err := Serialize(fn)
	assert.NoError(t, err)

	vm2 := newTestVM()
	reloaded, err := Deserialize(vm2, data)
	assert.NoError(t, err)

	callee := &Dense{Kind: DenseFunction, Payload: reloaded}
	_, err = vm2.Call(callee, nil)
	assert.NoError(t, err)
	assert.True(t, IntValue(2).Equals(vm2.LastValue()))
}

func TestSerialize_InternsStringConstantsThroughVM(t *testing.T) {
	vm := newTestVM()
	fn, err := Compile(vm, `var s = "hello";`, false)
	assert.NoError(t, err)

	data, err := Serialize(fn)
	assert.NoError(t, err)

	vm2 := newTestVM()
	_, err = Deserialize(vm2, data)
	assert.NoError(t, err)

	found := vm2.Strings.Find("hello", fnv1a("hello"))
	assert.NotNil(t, found)
}

func TestSerialize_RoundTripsArrayAndObjectConstants(t *testing.T) {
	vm := newTestVM()

	arr := &Dense{Kind: DenseArray, Payload: &ArrayData{
		Values: []Value{IntValue(1), IntValue(2), DenseValue(vm.internDense("nested"))},
	}}

	obj := NewObjectData()
	obj.Set(&StringData{Chars: "x", Hash: fnv1a("x")}, IntValue(7))
	obj.Set(&StringData{Chars: "y", Hash: fnv1a("y")}, DenseValue(arr))
	objDense := &Dense{Kind: DenseObject, Payload: obj}

	cl := NewCluster()
	cl.WriteInstruction(Encode(OpRet, 0, byte(RegisterNull), 0, 0), 0)
	cl.Constants = []Value{DenseValue(arr), DenseValue(objDense)}
	fn := &FunctionData{Arity: 0, Cluster: cl}

	data, err := Serialize(fn)
	assert.NoError(t, err)

	vm2 := newTestVM()
	reloaded, err := Deserialize(vm2, data)
	assert.NoError(t, err)

	assert.Len(t, reloaded.Cluster.Constants, 2)

	gotArr := reloaded.Cluster.Constants[0]
	assert.True(t, gotArr.IsArray())
	values := gotArr.Dense.AsArray().Values
	assert.Len(t, values, 3)
	assert.True(t, IntValue(1).Equals(values[0]))
	assert.True(t, IntValue(2).Equals(values[1]))
	assert.Equal(t, "nested", values[2].Dense.AsString().Chars)

	gotObj := reloaded.Cluster.Constants[1]
	assert.True(t, gotObj.IsObject())
	o := gotObj.Dense.AsObject()
	xv, ok := o.Get(&StringData{Chars: "x", Hash: fnv1a("x")})
	assert.True(t, ok)
	assert.True(t, IntValue(7).Equals(xv))

	yv, ok := o.Get(&StringData{Chars: "y", Hash: fnv1a("y")})
	assert.True(t, ok)
	assert.True(t, yv.IsArray())
	assert.Len(t, yv.Dense.AsArray().Values, 3)
}

func TestDeserialize_RejectsBadMagic(t *testing.T) {
	vm := newTestVM()
	_, err := Deserialize(vm, []byte("XXXXextragarbage"))
	assert.ErrorIs(t, err, ErrDeserializeMagicMismatch)
}

func TestDeserialize_RejectsBadEndianProbe(t *testing.T) {
	vm := newTestVM()
	data := []byte(clusterMagic)
	data = append(data, 0x02, 0x00) // wrong probe value
	_, err := Deserialize(vm, data)
	assert.ErrorIs(t, err, ErrDeserializeEndianMismatch)
}

func TestDeserialize_RejectsBadVersion(t *testing.T) {
	vm := newTestVM()
	data := []byte(clusterMagic)
	data = append(data, 0x01, 0x00) // endian probe ok
	data = append(data, 0x99, 0x00, 0x00, 0x00) // bogus version
	_, err := Deserialize(vm, data)
	assert.ErrorIs(t, err, ErrDeserializeVersionMismatch)
}

func TestDeserialize_RejectsTruncatedInput(t *testing.T) {
	vm := newTestVM()
	_, err := Deserialize(vm, []byte("RI"))
	assert.ErrorIs(t, err, ErrDeserializeEOF)
}

func TestReadString_RejectsOutOfRangePoolIndex(t *testing.T) {
	_, err := readString(nil, 0)
	assert.ErrorIs(t, err, ErrDeserializeOther)
}

func TestReadString_NegativeIndexMeansAbsent(t *testing.T) {
	sd, err := readString(nil, -1)
	assert.NoError(t, err)
	assert.Nil(t, sd)
}
