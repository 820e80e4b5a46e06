package risa

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func keyFor(s string) *StringData {
	return &StringData{Chars: s, Hash: fnv1a(s)}
}

func TestMap_SetGet(t *testing.T) {
	m := NewMap()
	k := keyFor("answer")

	_, ok := m.Get(k)
	assert.False(t, ok)

	m.Set(k, IntValue(42))
	v, ok := m.Get(k)
	assert.True(t, ok)
	assert.Equal(t, IntValue(42), v)
}

func TestMap_Overwrite(t *testing.T) {
	m := NewMap()
	k := keyFor("x")

	m.Set(k, IntValue(1))
	m.Set(k, IntValue(2))

	v, ok := m.Get(k)
	assert.True(t, ok)
	assert.Equal(t, IntValue(2), v)
	assert.Equal(t, 1, m.Len())
}

func TestMap_DeleteLeavesTombstoneThatKeepsProbeChain(t *testing.T) {
	m := NewMap()
	a, b := keyFor("a"), keyFor("b")

	m.Set(a, IntValue(1))
	m.Set(b, IntValue(2))

	assert.True(t, m.Delete(a))
	_, ok := m.Get(a)
	assert.False(t, ok)

	// b must still resolve even though its probe chain may pass through
	// a's now-tombstoned slot.
	v, ok := m.Get(b)
	assert.True(t, ok)
	assert.Equal(t, IntValue(2), v)
}

func TestMap_GrowsPastLoadFactor(t *testing.T) {
	m := NewMap()
	for i := 0; i < 100; i++ {
		k := keyFor(fmt.Sprintf("key%d", i))
		m.Set(k, IntValue(int64(i)))
	}
	assert.Equal(t, 100, m.Len())
}

func TestMap_Find_ResolvesInternedKeyByCharsAndHash(t *testing.T) {
	m := NewMap()
	k := keyFor("hello")
	m.Set(k, IntValue(1))

	found := m.Find("hello", fnv1a("hello"))
	assert.Same(t, k, found)

	assert.Nil(t, m.Find("nope", fnv1a("nope")))
}

func TestMap_RemoveUnmarkedStrings(t *testing.T) {
	m := NewMap()
	keep, drop := keyFor("keep"), keyFor("drop")
	m.Set(keep, BoolValue(true))
	m.Set(drop, BoolValue(true))

	m.RemoveUnmarkedStrings(func(s *StringData) bool { return s == keep })

	_, ok := m.Get(keep)
	assert.True(t, ok)
	_, ok = m.Get(drop)
	assert.False(t, ok)
}
