// Package frame computes per-function stack layout: total frame size, and the RBP-relative offset
// assigned to every local, temporary and parameter (spec §4.3). Grounded on the teacher's
// ir/lir/function.go and ir/lir/memory.go (per-function/per-variable bookkeeping), generalized from
// SSA-block declarations to the flat single-pass model spec §3 requires.
package frame

import "irx64/src/ir"

// ReferenceInfo records that a stack slot holds a pointer standing in for a reference (spec §3): the
// referred-to type, its bit width, and whether the reference binds an rvalue.
type ReferenceInfo struct {
	ReferentType ir.TypeTag
	ReferentBits int
	IsRvalue     bool
}

// VariableScope is the per-function mapping from name to signed stack offset (spec §3): negative for
// locals/temporaries, positive (>=16) for stack-passed parameters.
type VariableScope struct {
	Offsets         map[string]int32
	Sizes           map[string]int // size in bits, for load/store width selection.
	References      map[string]ReferenceInfo
	ScopeStackSpace int32 // the most-negative offset allocated; total frame usage for locals/temps.
	FrameSize       int32 // total 16-byte-aligned frame size (spec §4.3).
	ParamCount      int
}

// NewVariableScope returns an empty scope ready for FrameBuilder to populate.
func NewVariableScope() *VariableScope {
	return &VariableScope{
		Offsets:    make(map[string]int32),
		Sizes:      make(map[string]int),
		References: make(map[string]ReferenceInfo),
	}
}

// Offset looks up name's assigned stack offset. The second return value is false if name has no
// slot in this scope — callers surface this as ir.MalformedIRError ("undefined identifier").
func (s *VariableScope) Offset(name string) (int32, bool) {
	o, ok := s.Offsets[name]
	return o, ok
}

// Reference looks up whether name's slot holds a reference pointer rather than a direct value.
func (s *VariableScope) Reference(name string) (ReferenceInfo, bool) {
	r, ok := s.References[name]
	return r, ok
}

// Size returns the bit width recorded for name, defaulting to 64 if never recorded (e.g. parameters
// whose width is implied by the calling convention's register class).
func (s *VariableScope) Size(name string) int {
	if n, ok := s.Sizes[name]; ok {
		return n
	}
	return 64
}
