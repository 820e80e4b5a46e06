package risa

import "fmt"

// DefaultStackSize is the number of Value slots preallocated for the VM's
// register stack. The slice is never reallocated once created: open
// upvalues alias directly into it (UpvalueData.Stack), and a realloc
// would invalidate every live alias. Overflowing it is a runtime error,
// not a resize.
const DefaultStackSize = 1 << 16

// DefaultFrameLimit bounds call depth.
const DefaultFrameLimit = 1024

// DefaultHeapThreshold is the initial heapSize (bytes, per DenseSize's
// heuristic) at which the collector first runs; it doubles after every
// collection (§4.6).
const DefaultHeapThreshold = 1 << 20

// CallFrame is one activation record: which callee is running, the byte
// offset of the next instruction to execute, and the base stack slot its
// registers are addressed relative to.
type CallFrame struct {
	Callee *Dense // DenseFunction or DenseClosure
	IP     int
	Base   int

	// pendingCallDst is the register (relative to this frame) that the
	// in-flight CALL will receive its result in once the callee frame
	// above it returns.
	pendingCallDst byte
}

func (f *CallFrame) function() *FunctionData {
	switch f.Callee.Kind {
	case DenseClosure:
		return f.Callee.AsClosure().Function.AsFunction()
	case DenseFunction:
		return f.Callee.AsFunction()
	default:
		panic("risa: call frame callee is not a function or closure")
	}
}

// VM is a single interpreter instance: register stack, call frames,
// globals, the weak string-interning table, the GC-tracked heap, and the
// pluggable host IO (§3, §4.5, §4.6).
type VM struct {
	Stack []Value
	sp    int // next free stack slot

	Frames     []CallFrame
	frameCount int

	Globals *Map
	Strings *Map

	OpenUpvalues *Dense // head of the open-upvalue list, Kind==DenseUpvalue
	Heap         *Dense
	HeapSize     int
	HeapThreshold int

	IO     RisaIO
	Config *Config

	lastValue Value // set by ACC; exposed to the host (REPL echo)

	natives *Map // name -> NativeData dense, merged into Globals at startup
}

// NewVM builds a ready-to-run VM. A nil io defaults to DefaultIO(); a nil
// cfg defaults to DefaultConfig().
func NewVM(io *RisaIO, cfg *Config) *VM {
	var resolvedIO RisaIO
	if io != nil {
		resolvedIO = *io
	} else {
		resolvedIO = DefaultIO()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	vm := &VM{
		Stack:         make([]Value, cfg.StackSize),
		Frames:        make([]CallFrame, cfg.FrameLimit),
		Globals:       NewMap(),
		Strings:       NewMap(),
		HeapThreshold: cfg.HeapThreshold,
		IO:            resolvedIO,
		Config:        cfg,
	}
	registerStdlib(vm)
	return vm
}

// internDense resolves s to its canonical interned *Dense (Kind ==
// DenseString), creating and interning one if this is the first
// occurrence. Interned strings never enter vm.Heap (§4.6): they are kept
// alive solely by the weak Strings table and whatever still references
// them, and swept by name during collection.
func (vm *VM) internDense(s string) *Dense {
	hash := fnv1a(s)
	if existing := vm.Strings.Find(s, hash); existing != nil {
		v, _ := vm.Strings.Get(existing)
		return v.Dense
	}
	sd := &StringData{Chars: s, Hash: hash}
	d := &Dense{Kind: DenseString, Payload: sd}
	vm.Strings.Set(sd, DenseValue(d))
	return d
}

const fnvOffset32 = 2166136261
const fnvPrime32 = 16777619

func fnv1a(s string) uint32 {
	h := uint32(fnvOffset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime32
	}
	return h
}

// registerDense links d into the GC-tracked heap and accounts its
// heuristic size, then runs a collection if the threshold was crossed.
func (vm *VM) registerDense(d *Dense) *Dense {
	d.Next = vm.Heap
	vm.Heap = d
	vm.HeapSize += d.DenseSize()
	if vm.HeapSize > vm.HeapThreshold {
		vm.collectGarbage()
	}
	return d
}

func (vm *VM) push(v Value) error {
	if vm.sp >= len(vm.Stack) {
		return fmt.Errorf("%w: register stack exhausted", ErrStackOverflow)
	}
	vm.Stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() Value {
	vm.sp--
	v := vm.Stack[vm.sp]
	vm.Stack[vm.sp] = NullValue()
	return v
}

// frame returns the active call frame.
func (vm *VM) frame() *CallFrame { return &vm.Frames[vm.frameCount-1] }

// pushFrame allocates register space for a new frame starting at base
// and running fn/closure callee, erroring on frame or register overflow.
// The first arity slots hold the arguments the caller placed there and
// are kept; the rest of the register window is reset to null.
func (vm *VM) pushFrame(callee *Dense, base int) error {
	if vm.frameCount >= len(vm.Frames) {
		return fmt.Errorf("%w: call frames exhausted", ErrStackOverflow)
	}
	fn := calleeFunction(callee)
	needed := base + RegisterCount
	if needed > len(vm.Stack) {
		return fmt.Errorf("%w: register stack exhausted", ErrStackOverflow)
	}
	for i := base + fn.Arity; i < needed; i++ {
		vm.Stack[i] = NullValue()
	}
	vm.Frames[vm.frameCount] = CallFrame{Callee: callee, Base: base}
	vm.frameCount++
	if base+RegisterCount > vm.sp {
		vm.sp = base + RegisterCount
	}
	return nil
}

func calleeFunction(d *Dense) *FunctionData {
	if d.Kind == DenseClosure {
		return d.AsClosure().Function.AsFunction()
	}
	return d.AsFunction()
}

// popFrame closes any upvalues pointing at or above the frame's base and
// pops it.
func (vm *VM) popFrame() {
	f := vm.frame()
	vm.closeUpvalues(f.Base)
	vm.sp = f.Base
	vm.frameCount--
}

// ---- upvalues ----

// captureUpvalue returns the open upvalue for absolute stack slot
// index, reusing one already open at that slot if present. The open
// list is kept sorted by descending StackIndex (§3 invariants) so a new
// capture's insertion point is found by a single linear scan.
func (vm *VM) captureUpvalue(index int) *Dense {
	var prev *Dense
	cur := vm.OpenUpvalues
	for cur != nil {
		ud := cur.AsUpvalue()
		if ud.StackIndex == index {
			return cur
		}
		if ud.StackIndex < index {
			break
		}
		prev = cur
		cur = ud.NextOpen
	}

	ud := &UpvalueData{Stack: vm.Stack[index : index+1], open: true, StackIndex: index}
	created := &Dense{Kind: DenseUpvalue, Payload: ud}
	ud.NextOpen = cur

	if prev == nil {
		vm.OpenUpvalues = created
	} else {
		prev.AsUpvalue().NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above absolute stack
// slot from, copying the live value into the upvalue itself (CUPVAL,
// and implicitly on scope/frame exit).
func (vm *VM) closeUpvalues(from int) {
	for vm.OpenUpvalues != nil {
		ud := vm.OpenUpvalues.AsUpvalue()
		if ud.StackIndex < from {
			break
		}
		ud.close()
		vm.OpenUpvalues = ud.NextOpen
		ud.NextOpen = nil
	}
}

// ---- host entry points ----

// Compile compiles source into a callable top-level Function dense value.
func (vm *VM) Compile(source string, replMode bool) (*Dense, error) {
	fn, err := Compile(vm, source, replMode)
	if err != nil {
		return nil, err
	}
	return &Dense{Kind: DenseFunction, Payload: fn}, nil
}

// Run compiles and executes source as a fresh top-level script. In REPL
// mode the result is the last top-level expression statement's value
// (ACC's accumulator, §4.5); a plain script's own RET always carries
// RegisterNull, so outside REPL mode the result is always null.
func (vm *VM) Run(source string, replMode bool) (Value, error) {
	fn, err := vm.Compile(source, replMode)
	if err != nil {
		return NullValue(), err
	}
	if _, err := vm.Call(fn, nil); err != nil {
		return NullValue(), err
	}
	if replMode {
		return vm.lastValue, nil
	}
	return NullValue(), nil
}

// LastValue returns the accumulator's current value, the same one a REPL
// echoes after each line (§4.5). Only ACC sets it; Call returns a
// callee's result directly.
func (vm *VM) LastValue() Value { return vm.lastValue }

// Call invokes a Function/Closure/Native value with the given arguments
// and runs it to completion, returning its result. Used both for the
// initial script entry point and for native-function callbacks that
// re-enter the VM (§6's Invoke).
func (vm *VM) Call(callee *Dense, args []Value) (Value, error) {
	if callee.Kind == DenseNative {
		return vm.callNative(callee, args), nil
	}
	if callee.Kind != DenseFunction && callee.Kind != DenseClosure {
		return NullValue(), fmt.Errorf("%w", ErrInvalidCall)
	}

	fn := calleeFunction(callee)
	if len(args) != fn.Arity {
		return NullValue(), fmt.Errorf("%w: %s expected %d argument(s), got %d", ErrWrongArity, functionName(fn), fn.Arity, len(args))
	}

	base := vm.sp
	for _, a := range args {
		if err := vm.push(a); err != nil {
			return NullValue(), err
		}
	}
	floorFrame := vm.frameCount
	if err := vm.pushFrame(callee, base); err != nil {
		return NullValue(), err
	}

	result, err := vm.execute(floorFrame)
	return result, err
}

func (vm *VM) callNative(d *Dense, args []Value) Value {
	nd := d.AsNative()
	return nd.Fn(vm, len(args), args)
}

func functionName(fn *FunctionData) string {
	if fn.Name == nil {
		return "<anonymous>"
	}
	return fn.Name.Chars
}
