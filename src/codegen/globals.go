package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/object"
	"irx64/src/regalloc"
)

// Global variables and string literals live at a fixed (but link-time-unknown) absolute address, so
// every access goes through a relocated 64-bit immediate load into a scratch register followed by an
// indirect load/store (spec §4.4, §4.5 "global relocations are not limited to rel32 call sites";
// DESIGN.md records the Open Question decision to use absolute addressing here rather than
// RIP-relative LEA, matching this encoder's base+displacement-only addressing model).
func (c *Context) loadGlobalAddress(name string) regalloc.Register {
	reg, _ := c.acquireFresh(regalloc.ClassGP)
	bytes := encoder.MovImm64(reg, 0)
	c.recordCall(bytes, len(bytes)-8, name, object.RelADDR64)
	return reg
}

// GlobalLoad: [0] result (Temp), [1] type (Type), [2] size (Size), [3] global name (Identifier).
func handleGlobalLoad(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	name, _ := in.Operand(3)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	addr := c.loadGlobalAddress(name.Name)
	dst, err := c.acquireFresh(classFor(typ.Type))
	if err != nil {
		return err
	}
	if classFor(typ.Type) == regalloc.ClassXMM {
		c.emit(sseLoadIndirect(bits == 64, addr, dst, 0))
	} else {
		c.emit(encoder.LoadIndirect(addr, dst, 0, bits))
	}
	c.Alloc.Release(addr)
	return c.storeResult(in, result, dst, bits)
}

// GlobalStore: [0] global name (Identifier), [1] type (Type), [2] size (Size), [3] value.
func handleGlobalStore(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		return err
	}
	name, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	value, _ := in.Operand(3)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	addr := c.loadGlobalAddress(name.Name)
	val, err := c.materialize(in, value, typ.Type, bits)
	if err != nil {
		return err
	}
	if classFor(typ.Type) == regalloc.ClassXMM {
		c.emit(sseStoreIndirect(bits == 64, addr, val, 0))
	} else {
		c.emit(encoder.StoreIndirect(addr, val, 0, bits))
	}
	c.Alloc.Release(addr)
	c.Alloc.Release(val)
	return nil
}

// GlobalVariableDecl instructions are consumed by the Orchestrator before per-function lowering
// begins (spec §4.4 "global declarations register with the writer ahead of any function body that
// might reference them"); a stray one reaching the per-instruction dispatcher is a no-op.
func handleGlobalVariableDecl(c *Context, in ir.Instruction) error { return nil }

// StringLiteral: [0] result (Temp), [1] content (Identifier whose Name field carries the raw string
// bytes — the only operand kind with a free-form string payload). The literal's deduplicated symbol
// name comes from the object writer itself (spec §6 "AddStringLiteral"), so this handler needs direct
// writer access rather than deferring to a post-pass relocation record for the symbol name, though
// the address load still patches through the same relocation mechanism as any other global.
func handleStringLiteral(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(2); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	content, _ := in.Operand(1)

	symbol := c.Writer.AddStringLiteral(content.Name)
	reg := c.loadGlobalAddress(symbol)
	return c.storeResult(in, result, reg, 64)
}
