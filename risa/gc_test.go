package risa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGC_ReachableGlobalSurvivesCollection(t *testing.T) {
	vm := newTestVM()
	_, err := vm.Run("var kept = [1, 2, 3];", false)
	assert.NoError(t, err)
	assert.NotNil(t, vm.Heap)

	vm.collectGarbage()

	found := vm.Globals.Find("kept", fnv1a("kept"))
	assert.NotNil(t, found)
	v, ok := vm.Globals.Get(found)
	assert.True(t, ok)
	assert.True(t, v.IsArray())
	assert.Equal(t, 3, len(v.Dense.AsArray().Values))
}

func TestGC_UnreachableHeapObjectIsSwept(t *testing.T) {
	vm := newTestVM()
	source := `
		function makeArr() {
			var a = [1, 2, 3];
			return null;
		}
		makeArr();
	`
	_, err := vm.Run(source, false)
	assert.NoError(t, err)
	assert.NotNil(t, vm.Heap)

	vm.collectGarbage()

	assert.Nil(t, vm.Heap)
	assert.Equal(t, 0, vm.HeapSize)
}

func TestGC_ThresholdDoublesAfterCollection(t *testing.T) {
	vm := newTestVM()
	before := vm.HeapThreshold
	vm.collectGarbage()
	assert.Equal(t, before*2, vm.HeapThreshold)
}

func TestGC_OpenUpvalueKeepsCapturedLocalAlive(t *testing.T) {
	vm := newTestVM()
	source := `
		function makeCounter() {
			var count = [0];
			function increment() {
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		counter();
	`
	v, err := vm.Run(source, true)
	assert.NoError(t, err)
	assert.True(t, v.IsArray())

	vm.collectGarbage()

	found := vm.Globals.Find("counter", fnv1a("counter"))
	assert.NotNil(t, found)
	cv, ok := vm.Globals.Get(found)
	assert.True(t, ok)
	assert.True(t, cv.IsCallable())
}
