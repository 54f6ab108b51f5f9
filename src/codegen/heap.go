package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/object"
	"irx64/src/regalloc"
)

// HeapAlloc: [0] result (Temp, holds the returned pointer), [1] byte count value. Lowers to a call to
// the C runtime's malloc, the same external-symbol relocation mechanism as any other FunctionCall
// (spec §4.4 "HeapAlloc").
func handleHeapAlloc(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(2); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	countVal, _ := in.Operand(1)

	args := []callArg{{typ: ir.TypeUint, bits: 64, val: countVal}}
	if err := c.emitCallSequence(in, args, func() {
		bytes, dispOff := encoder.CallRel32Placeholder()
		c.recordCall(bytes, dispOff, "malloc", object.RelREL32)
	}); err != nil {
		return err
	}
	return c.storeResult(in, result, regalloc.RAX, 64)
}

// HeapFree: [0] pointer value. Lowers to a call to free.
func handleHeapFree(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(1); err != nil {
		return err
	}
	ptrVal, _ := in.Operand(0)
	args := []callArg{{typ: ir.TypePointer, bits: 64, val: ptrVal}}
	return c.emitCallSequence(in, args, func() {
		bytes, dispOff := encoder.CallRel32Placeholder()
		c.recordCall(bytes, dispOff, "free", object.RelREL32)
	})
}

// HeapFreeArray: [0] pointer value. This backend treats every array element as plain-old-data and
// frees the block directly, without emitting a per-element destructor loop (decided in DESIGN.md,
// Open Question "`HeapFreeArray` destructor invocation": a non-POD element type reaching this opcode is a
// front-end responsibility the backend does not detect).
func handleHeapFreeArray(c *Context, in ir.Instruction) error {
	return handleHeapFree(c, in)
}

// PlacementNew: [0] result (Temp, receives the same pointer passed in), [1] pointer value (already
// allocated storage), [2] constructor name (Identifier; empty Name means no constructor call, the
// placement is for a trivially-constructible type). Spec §4.4 "PlacementNew".
func handlePlacementNew(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(3); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	ptrVal, _ := in.Operand(1)
	ctor, _ := in.Operand(2)

	ptrReg, err := c.materialize(in, ptrVal, ir.TypePointer, 64)
	if err != nil {
		return err
	}
	if ctor.Name != "" {
		args := []callArg{{typ: ir.TypePointer, bits: 64, val: ptrVal}}
		if err := c.emitCallSequence(in, args, func() {
			bytes, dispOff := encoder.CallRel32Placeholder()
			c.recordCall(bytes, dispOff, ctor.Name, object.RelREL32)
		}); err != nil {
			return err
		}
		ptrReg, err = c.materialize(in, ptrVal, ir.TypePointer, 64)
		if err != nil {
			return err
		}
	}
	return c.storeResult(in, result, ptrReg, 64)
}
