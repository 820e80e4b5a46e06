package risa

import (
	"bytes"
	"fmt"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Disassemble renders a function's bytecode as a human-readable table:
// instruction index, opcode mnemonic, operands (annotated when they
// index the constant pool rather than a register), and the source
// offset the instruction was emitted from. It is display-only — nothing
// in the compiler or VM depends on its formatting (§6 Non-goals).
func Disassemble(fn *FunctionData) string {
	var buf bytes.Buffer

	header := color.New(color.FgCyan, color.Bold)
	name := "<script>"
	if fn.Name != nil {
		name = fn.Name.Chars
	}
	header.Fprintf(&buf, "== %s (arity %d) ==\n", name, fn.Arity)

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"idx", "op", "a", "b", "c", "src"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	cl := fn.Cluster
	for i := 0; i < cl.InstructionCount(); i++ {
		instr := cl.InstructionAt(i)
		table.Append([]string{
			fmt.Sprintf("%04d", i),
			colorizeOp(instr.Op),
			operandCell(instr.A, instr.LeftIsConst() && operandIsFlaggedA(instr.Op), cl),
			operandCell(instr.B, instr.LeftIsConst(), cl),
			operandCell(instr.C, instr.RightIsConst(), cl),
			fmt.Sprintf("%d", cl.SourceIndexAt(i*instructionSize)),
		})
	}
	table.Render()

	for _, c := range cl.Constants {
		if c.IsDenseOfKind(DenseFunction) {
			buf.WriteString("\n")
			buf.WriteString(Disassemble(c.Dense.AsFunction()))
		}
	}

	return buf.String()
}

// operandIsFlaggedA reports whether opcode op reads a register/constant
// operand from slot A, so the left-constant flag applies to A. ACC is the
// only such opcode: INC/DEC/TEST/NTEST/RET/DIS/CUPVAL use A as a plain
// register, and NOT/BNOT/NEG read their operand from B.
func operandIsFlaggedA(op OpCode) bool {
	switch op {
	case OpAcc:
		return true
	default:
		return false
	}
}

func operandCell(v byte, isConst bool, cl *Cluster) string {
	if !isConst {
		if v == byte(RegisterNull) {
			return "-"
		}
		return fmt.Sprintf("r%d", v)
	}
	if int(v) < len(cl.Constants) {
		return fmt.Sprintf("k%d(%s)", v, cl.Constants[v].String())
	}
	return fmt.Sprintf("k%d", v)
}

func colorizeOp(op OpCode) string {
	switch op {
	case OpJmp, OpJmpw, OpBjmp, OpBjmpw, OpTest, OpNtest:
		return color.YellowString(op.String())
	case OpCall, OpRet:
		return color.GreenString(op.String())
	case OpDglob, OpGglob, OpSglob:
		return color.MagentaString(op.String())
	default:
		return op.String()
	}
}
