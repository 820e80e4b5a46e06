package risa

// Map is an open-addressed hash table keyed by interned strings, used for
// the VM's globals table and for Object entries (§4.8).
//
// Capacity is always a power of two, starting at 8, grown (doubled) once
// the load factor would exceed 75%. Deletions leave a tombstone: key=nil,
// value=BoolValue(false); a genuinely empty slot carries a null Value and
// terminates probe chains.
type Map struct {
	entries []mapEntry
	count   int // occupied slots, tombstones included
	live    int // occupied slots, tombstones excluded
}

type mapEntry struct {
	key   *StringData
	value Value
	used  bool // true for both live entries and tombstones
	tomb  bool
}

const mapInitialCapacity = 8
const mapMaxLoad = 0.75

func NewMap() *Map {
	return &Map{entries: make([]mapEntry, mapInitialCapacity)}
}

func (m *Map) Len() int { return m.live }

func (m *Map) capacity() int { return len(m.entries) }

func (m *Map) growIfNeeded() {
	if float64(m.count+1) <= float64(m.capacity())*mapMaxLoad {
		return
	}

	newCap := m.capacity() * 2
	if newCap < mapInitialCapacity {
		newCap = mapInitialCapacity
	}
	old := m.entries
	m.entries = make([]mapEntry, newCap)
	m.count = 0
	m.live = 0

	for _, e := range old {
		if e.used && !e.tomb {
			m.set(e.key, e.value)
		}
	}
}

// findEntry probes for key (or the first open slot for insertion) using
// linear probing from hash&(cap-1).
func (m *Map) findEntry(hash uint32, chars string, length int) int {
	cap := m.capacity()
	idx := int(hash) & (cap - 1)
	firstTombstone := -1

	for {
		e := &m.entries[idx]
		if !e.used {
			if firstTombstone != -1 {
				return firstTombstone
			}
			return idx
		} else if e.tomb {
			if firstTombstone == -1 {
				firstTombstone = idx
			}
		} else if e.key.Hash == hash && len(e.key.Chars) == length && e.key.Chars == chars {
			return idx
		}

		idx = (idx + 1) & (cap - 1)
	}
}

func (m *Map) Get(key *StringData) (Value, bool) {
	if m.live == 0 {
		return NullValue(), false
	}
	idx := m.findEntry(key.Hash, key.Chars, len(key.Chars))
	e := &m.entries[idx]
	if !e.used || e.tomb {
		return NullValue(), false
	}
	return e.value, true
}

// Find is specialized for lookup by (chars, len, hash) so string interning
// can resolve-or-intern without allocating a StringData up front.
func (m *Map) Find(chars string, hash uint32) *StringData {
	if m.live == 0 {
		return nil
	}
	idx := m.findEntry(hash, chars, len(chars))
	e := &m.entries[idx]
	if !e.used || e.tomb {
		return nil
	}
	return e.key
}

func (m *Map) set(key *StringData, value Value) bool {
	idx := m.findEntry(key.Hash, key.Chars, len(key.Chars))
	e := &m.entries[idx]
	isNew := !e.used
	if isNew {
		m.count++
	}
	if isNew || e.tomb {
		m.live++
	}
	m.entries[idx] = mapEntry{key: key, value: value, used: true}
	return isNew
}

// Set inserts or overwrites key->value, growing the table first if
// needed to keep the load factor at or under 75%.
func (m *Map) Set(key *StringData, value Value) bool {
	m.growIfNeeded()
	return m.set(key, value)
}

// Delete replaces the slot with a tombstone so later probes keep working.
func (m *Map) Delete(key *StringData) bool {
	if m.live == 0 {
		return false
	}
	idx := m.findEntry(key.Hash, key.Chars, len(key.Chars))
	e := &m.entries[idx]
	if !e.used || e.tomb {
		return false
	}

	m.entries[idx] = mapEntry{used: true, tomb: true, value: BoolValue(false)}
	m.live--
	return true
}

// Each calls fn for every live entry. Order is the table's internal
// (hash) order, not insertion order — callers needing insertion order
// (Object) track it separately.
func (m *Map) Each(fn func(key *StringData, value Value)) {
	for _, e := range m.entries {
		if e.used && !e.tomb {
			fn(e.key, e.value)
		}
	}
}

// RemoveUnmarkedStrings tombstones every live entry whose key the marked
// callback reports as unmarked.
// Used by the GC to sweep the weak string-interning table (§4.6).
func (m *Map) RemoveUnmarkedStrings(marked func(*StringData) bool) {
	for i := range m.entries {
		e := &m.entries[i]
		if e.used && !e.tomb && !marked(e.key) {
			m.entries[i] = mapEntry{used: true, tomb: true, value: BoolValue(false)}
			m.live--
		}
	}
}
