package risa

// collectGarbage runs one tracing mark-and-sweep cycle (§4.6). Roots are
// the live register stack, every active frame's callee, the open
// upvalue chain, and the globals table. The string-interning table is
// swept weakly: a StringData survives only if something reachable from
// a root still points at it.
func (vm *VM) collectGarbage() {
	marked := make(map[*StringData]bool)
	var visited []*Dense

	var mark func(d *Dense)
	markValue := func(v Value) {
		if v.IsDense() {
			mark(v.Dense)
		}
	}

	mark = func(d *Dense) {
		if d == nil || d.Marked {
			return
		}
		d.Marked = true
		visited = append(visited, d)

		switch d.Kind {
		case DenseString:
			marked[d.AsString()] = true

		case DenseArray:
			for _, v := range d.AsArray().Values {
				markValue(v)
			}

		case DenseObject:
			obj := d.AsObject()
			for _, k := range obj.Keys {
				marked[k] = true
			}
			obj.Entries.Each(func(k *StringData, v Value) {
				marked[k] = true
				markValue(v)
			})

		case DenseUpvalue:
			markValue(d.AsUpvalue().get())

		case DenseFunction:
			fn := d.AsFunction()
			if fn.Name != nil {
				marked[fn.Name] = true
			}
			for _, c := range fn.Cluster.Constants {
				markValue(c)
			}

		case DenseClosure:
			cd := d.AsClosure()
			mark(cd.Function)
			for _, uv := range cd.Upvalues {
				mark(uv)
			}

		case DenseNative:
			// no further references
		}
	}

	for i := 0; i < vm.sp; i++ {
		markValue(vm.Stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(vm.Frames[i].Callee)
	}
	for cur := vm.OpenUpvalues; cur != nil; cur = cur.AsUpvalue().NextOpen {
		mark(cur)
	}
	vm.Globals.Each(func(k *StringData, v Value) {
		marked[k] = true
		markValue(v)
	})

	vm.sweepHeap()
	vm.Strings.RemoveUnmarkedStrings(func(sd *StringData) bool { return marked[sd] })
	// Strings, functions, upvalues and natives are not on the heap list,
	// so sweepHeap leaves their marks set; clear every mark made this
	// cycle so the next cycle traverses them again.
	for _, d := range visited {
		d.Marked = false
	}

	vm.HeapThreshold *= 2
}

// sweepHeap unlinks every unmarked Dense from the heap list, clearing
// the mark bit on survivors for the next cycle.
func (vm *VM) sweepHeap() {
	var head *Dense
	tail := &head
	size := 0

	for d := vm.Heap; d != nil; {
		next := d.Next
		if d.Marked {
			d.Marked = false
			d.Next = nil
			*tail = d
			tail = &d.Next
			size += d.DenseSize()
		}
		d = next
	}

	vm.Heap = head
	vm.HeapSize = size
}
