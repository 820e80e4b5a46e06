package risa

import (
	"bufio"
	"fmt"
	"os"
)

// InHandler returns the next input byte widened to uint16, or 0xFFFF on
// EOF/error, matching §6's host I/O indirection.
type InHandler func() uint16
type OutHandler func(string)

// RisaIO is the VM's sole channel to the host, swappable and clonable
// the way the teacher's *bufio.Writer fields are, but generalized to the
// three-handler struct §6 specifies.
type RisaIO struct {
	In  InHandler
	Out OutHandler
	Err OutHandler
}

// DefaultIO wires RisaIO to process stdio, the same default the teacher's
// NewVirtualMachine falls back to when not in debug mode.
func DefaultIO() RisaIO {
	reader := bufio.NewReader(os.Stdin)
	return RisaIO{
		In: func() uint16 {
			b, err := reader.ReadByte()
			if err != nil {
				return 0xFFFF
			}
			return uint16(b)
		},
		Out: func(s string) { fmt.Fprint(os.Stdout, s) },
		Err: func(s string) { fmt.Fprint(os.Stderr, s) },
	}
}

func (io RisaIO) Clone() RisaIO {
	return RisaIO{In: io.In, Out: io.Out, Err: io.Err}
}

func (io RisaIO) writeOut(s string) {
	if io.Out != nil {
		io.Out(s)
	}
}

func (io RisaIO) writeErr(s string) {
	if io.Err != nil {
		io.Err(s)
	}
}

// StringIO builds a RisaIO backed by in-memory buffers, used by tests
// and by embedders that want to capture script output.
func StringIO(input string) (*RisaIO, *stringSink, *stringSink) {
	out := &stringSink{}
	errs := &stringSink{}
	pos := 0
	io := RisaIO{
		In: func() uint16 {
			if pos >= len(input) {
				return 0xFFFF
			}
			b := input[pos]
			pos++
			return uint16(b)
		},
		Out: out.write,
		Err: errs.write,
	}
	return &io, out, errs
}

type stringSink struct {
	data []byte
}

func (s *stringSink) write(str string) { s.data = append(s.data, str...) }
func (s *stringSink) String() string   { return string(s.data) }
