package codegen

import (
	"sort"

	"irx64/src/encoder"
	"irx64/src/ir"
)

// handleLabel defines a label at the current code offset and resets the register allocator: a Label
// is a control-flow merge point, and different predecessors may have left different values resident
// in registers (spec §4.2, §4.4, §8 property 4).
func handleLabel(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(1); err != nil {
		return err
	}
	name, _ := in.Operand(0)
	c.ResetAtMergePoint()
	c.Labels[name.Name] = c.Offset()
	return nil
}

// handleBranch lowers an unconditional jump: [0] target label.
func handleBranch(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(1); err != nil {
		return err
	}
	target, _ := in.Operand(0)
	c.Alloc.FlushAllDirty(c.spillSink())
	bytes, dispOff := encoder.JmpRel32Placeholder()
	c.recordBranch(bytes, dispOff, target.Name, in.Line)
	return nil
}

// Conditional branch layout: [0] condition value, [1] type (Type), [2] size (Size), [3] true-target
// label, [4] false-target label. The true path falls straight through to the instruction stream that
// follows (the front end always emits the true-target label right after this instruction); only the
// false path needs an explicit jump, a single `JE` against the condition (spec §4.4, §8 scenario 3:
// "test reg, reg; je false; <true-path falls through>").
func handleConditionalBranch(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(5); err != nil {
		return err
	}
	cond, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	falseLabel, _ := in.Operand(4)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	reg, err := c.materialize(in, cond, typ.Type, bits)
	if err != nil {
		return err
	}
	c.emit(encoder.Test(reg, bits))
	c.Alloc.Release(reg)
	c.Alloc.FlushAllDirty(c.spillSink())

	jccBytes, jccDisp := encoder.JccRel32Placeholder(encoder.CondE)
	c.recordBranch(jccBytes, jccDisp, falseLabel.Name, in.Line)
	return nil
}

// LoopBegin/LoopEnd mark the loop's continue/break targets; the backend treats them as plain labels
// (spec §4.4 "loop constructs lower to Label + ConditionalBranch + Branch").
func handleLoopMarker(c *Context, in ir.Instruction) error {
	return handleLabel(c, in)
}

// Break/Continue: [0] target label, an unconditional jump to the enclosing loop's recorded exit or
// continuation label.
func handleBreakContinue(c *Context, in ir.Instruction) error {
	return handleBranch(c, in)
}

// PatchBranches resolves every PendingBranch against the now-final Labels map and writes the rel32
// displacement in place (spec §4.5). Must run after the entire function body has been lowered, since
// a forward branch's target offset is not known until the label is reached.
func (c *Context) PatchBranches() error {
	// Deterministic order, not required for correctness but keeps output reproducible for tests.
	branches := append([]PendingBranch(nil), c.PendingBranches...)
	sort.Slice(branches, func(i, j int) bool { return branches[i].DispOffset < branches[j].DispOffset })

	for _, b := range branches {
		target, ok := c.Labels[b.Target]
		if !ok {
			return &ir.MalformedIRError{Line: b.Line, Reason: "branch targets undefined label " + b.Target}
		}
		rel := int32(target - b.NextIP)
		encoder.PatchRel32(c.Code, b.DispOffset, rel)
	}
	return nil
}
