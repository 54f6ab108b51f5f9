package ir

// Instruction is a single tagged IR record: an Opcode, a source line number (0 if none), and an
// ordered operand list whose layout is fixed per opcode (spec §3, §4.4).
type Instruction struct {
	Op       Opcode
	Line     int
	Operands []Operand
}

// New constructs an Instruction with the given opcode, source line and operands.
func New(op Opcode, line int, operands ...Operand) Instruction {
	return Instruction{Op: op, Line: line, Operands: operands}
}

// Operand returns the operand at index i, or a MalformedIRError if the instruction has too few
// operands. Handlers use this instead of direct slice indexing so an under-populated instruction
// aborts with a diagnostic rather than panicking (spec §7).
func (in Instruction) Operand(i int) (Operand, error) {
	if i < 0 || i >= len(in.Operands) {
		return Operand{}, &MalformedIRError{
			Opcode:       in.Op,
			OperandIndex: i,
			Line:         in.Line,
			Reason:       "operand index out of range",
		}
	}
	return in.Operands[i], nil
}

// RequireOperandCount returns a MalformedIRError if the instruction does not carry exactly n
// operands, enforcing spec §3's "opcode-specific operand layouts are fixed contracts".
func (in Instruction) RequireOperandCount(n int) error {
	if len(in.Operands) != n {
		return &MalformedIRError{
			Opcode: in.Op,
			Line:   in.Line,
			Reason: "wrong operand count",
		}
	}
	return nil
}
