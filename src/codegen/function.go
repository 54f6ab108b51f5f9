package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/regalloc"
)

// handleVariableDecl is a no-op at lowering time: frame.Builder already consumed every VariableDecl
// in its Phase A size-discovery pass before the per-instruction dispatcher runs (spec §4.3).
func handleVariableDecl(c *Context, in ir.Instruction) error { return nil }

// handleScopeMarker is a no-op: this backend computes one flat VariableScope per function rather than
// tracking nested lexical scopes at machine-code generation time (spec §4.3 rationale — nested scope
// bookkeeping belongs to the front end's symbol resolution, already baked into unique temp/variable
// names by the time IR reaches this backend).
func handleScopeMarker(c *Context, in ir.Instruction) error { return nil }

// handleReturn lowers a return statement: materialize the return value (if any) into RAX/XMM0 per the
// calling convention, then emit this function's epilogue directly at the return site rather than a
// shared tail jumped to from every return (spec §4.4 "Return", §9 "correct and direct, not optimal").
// Layout: [0] type (Type), [1] size (Size), [2] value — operands [0]/[1] absent (instruction carries
// zero operands) for a void return.
func handleReturn(c *Context, in ir.Instruction) error {
	if len(in.Operands) == 0 {
		c.Alloc.FlushAllDirty(c.spillSink())
		c.emit(encoder.Epilogue())
		return nil
	}
	if err := in.RequireOperandCount(3); err != nil {
		return err
	}
	typ, _ := in.Operand(0)
	size, _ := in.Operand(1)
	val, _ := in.Operand(2)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	reg, err := c.materialize(in, val, typ.Type, bits)
	if err != nil {
		return err
	}

	// Flush every other dirty register to memory before the value lands in its ABI-mandated return
	// register: if that register (RAX/XMM0) currently mirrors some other stack slot, flushing after
	// the move would overwrite that slot with the return value instead of its own (spec §4.2).
	c.Alloc.Release(reg)
	c.Alloc.FlushAllDirty(c.spillSink())

	if classFor(typ.Type) == regalloc.ClassXMM {
		if reg != regalloc.XMMRegisters[0] {
			c.emit(encoder.MovScalarRegToReg(bits == 64, regalloc.XMMRegisters[0], reg))
		}
	} else if reg != regalloc.RAX {
		c.emit(encoder.MovRegToReg(regalloc.RAX, reg, bits))
	}

	c.emit(encoder.Epilogue())
	return nil
}
