package risa

// Cluster is a compiled unit: a growable bytecode buffer, a parallel
// per-byte source-index table, and a constant pool (§3, §4.7). It is
// created by the compiler or the deserializer, mutated only by the
// compiler until finalized, and owned thereafter by its Function.
type Cluster struct {
	Bytecode  []byte
	Indices   []uint32
	Constants []Value
}

func NewCluster() *Cluster {
	return &Cluster{}
}

// Write appends one bytecode byte tagged with the source offset it came
// from.
func (c *Cluster) Write(b byte, sourceIndex uint32) {
	c.Bytecode = append(c.Bytecode, b)
	c.Indices = append(c.Indices, sourceIndex)
}

// WriteInstruction appends all 4 bytes of an instruction, each tagged
// with the same source offset.
func (c *Cluster) WriteInstruction(instr [4]byte, sourceIndex uint32) {
	for _, b := range instr {
		c.Write(b, sourceIndex)
	}
}

// WriteConstant deduplicates by structural equality: it scans the pool
// linearly and returns an existing index if an equal constant is already
// present, otherwise appends and returns the new index.
func (c *Cluster) WriteConstant(v Value) int {
	for i, existing := range c.Constants {
		if existing.StrictEquals(v) {
			return i
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

func (c *Cluster) InstructionCount() int { return len(c.Bytecode) / instructionSize }

func (c *Cluster) InstructionAt(index int) Instruction {
	return DecodeInstruction(c.Bytecode, index*instructionSize)
}

func (c *Cluster) SourceIndexAt(byteOffset int) uint32 {
	if byteOffset < 0 || byteOffset >= len(c.Indices) {
		return 0
	}
	return c.Indices[byteOffset]
}
