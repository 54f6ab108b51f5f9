package ir

import "fmt"

// The four fatal error categories of spec §7. All code generation errors are terminal: the
// orchestrator does not retry and does not emit a partial object file (spec §4.4 "Failure semantics").

// MalformedIRError reports a wrong operand count, an unsupported operand type, or an undefined
// identifier — a front-end bug reaching the backend.
type MalformedIRError struct {
	Opcode       Opcode
	OperandIndex int
	Line         int
	Reason       string
}

func (e *MalformedIRError) Error() string {
	return fmt.Sprintf("malformed IR at line %d, opcode %s, operand %d: %s", e.Line, e.Opcode, e.OperandIndex, e.Reason)
}

// UnsupportedOperationError reports a requested operation the back end does not implement, e.g. a
// conversion between sizes with no encoding.
type UnsupportedOperationError struct {
	Opcode Opcode
	Line   int
	Reason string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation at line %d, opcode %s: %s", e.Line, e.Opcode, e.Reason)
}

// ResourceExhaustedError reports that no register was available even after spilling — normally a
// front-end bug (too many simultaneously-live temporaries in one expression), not a recoverable
// condition.
type ResourceExhaustedError struct {
	Opcode Opcode
	Line   int
	Detail string
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("no register available at line %d, opcode %s: %s", e.Line, e.Opcode, e.Detail)
}

// InconsistentStateError reports a violated precondition inside the code generator itself (e.g.
// allocating an already-allocated register): a back-end bug, not an IR producer bug.
type InconsistentStateError struct {
	Detail string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent code generator state: %s", e.Detail)
}
