// Package codegen lowers one function's linear IR instruction stream into x86-64 machine code: it
// owns the single pass over the instruction list, drives the register allocator and frame layout,
// and patches branch/call displacements once a function's final length is known (spec §4.4, §4.5).
// Grounded on the teacher's ir/lir/function.go (one generate pass per function) and backend/asm.go
// (the top-level driver loop), generalized from per-basic-block SSA lowering to per-instruction flat
// lowering.
package codegen

import (
	"github.com/rs/zerolog"

	"irx64/src/frame"
	"irx64/src/ir"
	"irx64/src/object"
	"irx64/src/regalloc"
)

// PendingBranch records an intra-function branch (forward or backward) whose rel32 displacement is
// filled in by PatchBranches once every label's offset in the function is known.
type PendingBranch struct {
	DispOffset int    // byte offset within Context.Code where the rel32 field begins.
	NextIP     int    // byte offset immediately following the branch instruction (rel32 base).
	Target     string // label name the branch targets.
	Line       int
}

// PendingGlobalRelocation records a call or address reference to a symbol resolved outside this
// function (another function, a global variable, a string literal) — handed to the object writer as
// an AddRelocation call once the function's final code offset is known (spec §4.5, §6).
type PendingGlobalRelocation struct {
	DispOffset int
	Target     string
	Kind       object.RelocationKind
}

// Context carries one function's lowering state: the growing code buffer, the register allocator
// (reset at function entry and at every merge point), the frame layout, and the bookkeeping needed
// to patch branches and relocations once the function's bytes are final (spec §4.2, §4.3, §4.5).
type Context struct {
	FuncName string
	IsWindows bool

	Alloc *regalloc.Allocator
	Scope *frame.VariableScope

	Code   []byte
	Labels map[string]int // label name -> byte offset within Code, populated as Label instructions are lowered.

	PendingBranches []PendingBranch
	PendingRelocs   []PendingGlobalRelocation

	Writer object.Writer // needed immediately by StringLiteral to obtain its deduplicated symbol name.
	Log    zerolog.Logger

	callerSaved []regalloc.Register
	scratchNext int // round-robins scratch GP registers across a single instruction's operand setup.
}

// NewContext returns a Context ready to lower funcName's body, given its precomputed frame scope.
func NewContext(funcName string, isWindows bool, scope *frame.VariableScope, w object.Writer, log zerolog.Logger) *Context {
	callerSaved := regalloc.CallerSavedSysV
	if isWindows {
		callerSaved = regalloc.CallerSavedWindows
	}
	return &Context{
		FuncName:    funcName,
		IsWindows:   isWindows,
		Alloc:       regalloc.New(),
		Scope:       scope,
		Labels:      make(map[string]int),
		Writer:      w,
		Log:         log,
		callerSaved: callerSaved,
	}
}

// emit appends bytes to the code buffer and returns the offset they were written at.
func (c *Context) emit(b []byte) int {
	off := len(c.Code)
	c.Code = append(c.Code, b...)
	return off
}

// Offset returns the current end-of-buffer byte offset, i.e. where the next emitted instruction
// begins.
func (c *Context) Offset() int { return len(c.Code) }

// recordBranch emits a placeholder branch instruction and records it for later patching.
func (c *Context) recordBranch(bytes []byte, dispOffsetWithinInstr int, target string, line int) {
	start := c.emit(bytes)
	c.PendingBranches = append(c.PendingBranches, PendingBranch{
		DispOffset: start + dispOffsetWithinInstr,
		NextIP:     start + len(bytes),
		Target:     target,
		Line:       line,
	})
}

// recordCall emits a placeholder call instruction and records the callee relocation.
func (c *Context) recordCall(bytes []byte, dispOffsetWithinInstr int, target string, kind object.RelocationKind) {
	start := c.emit(bytes)
	c.PendingRelocs = append(c.PendingRelocs, PendingGlobalRelocation{
		DispOffset: start + dispOffsetWithinInstr,
		Target:     target,
		Kind:       kind,
	})
}

// nextScratch cycles through a small pool of GP registers for operand materialization that must not
// collide within the same instruction (e.g. both operands of a binary op needing distinct homes
// before the allocator has bound either). The allocator remains the source of truth for dirtiness and
// spilling; this only orders which free-or-spillable register a handler reaches for first.
func (c *Context) nextScratch() regalloc.Register {
	order := []regalloc.Register{regalloc.RAX, regalloc.RCX, regalloc.RDX, regalloc.RBX, regalloc.RSI, regalloc.RDI, regalloc.R8, regalloc.R9, regalloc.R10, regalloc.R11}
	r := order[c.scratchNext%len(order)]
	c.scratchNext++
	return r
}

// spillSink returns an EmitSink bound to this context's code buffer, used whenever the allocator
// needs to flush a dirty register to its stack home (spec §4.2 "EmitSink").
func (c *Context) spillSink() regalloc.EmitSink {
	return func(reg regalloc.Register, offset int32, sizeBits int) {
		c.emitStore(reg, offset, sizeBits)
	}
}

// ResetAtMergePoint clears the allocator at a Label (spec §4.2, §4.4: "different predecessors may
// have left different values in registers").
func (c *Context) ResetAtMergePoint() {
	c.Alloc.FlushAllDirty(c.spillSink())
	c.Alloc.Reset()
}

// unknownOpcodeError builds the UnsupportedOperationError surfaced when no lowering handler covers
// an Opcode: Lower's dispatch miss and the default cases of the shared arithmetic, float, unary and
// conversion handlers.
func unknownOpcodeError(op ir.Opcode) error {
	return &ir.UnsupportedOperationError{Opcode: op, Reason: "no lowering handler registered"}
}
