package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/regalloc"
)

// Typeid: [0] result (Temp, receives a type-info pointer), [1] polymorphic object pointer value.
// Follows the Itanium-ABI convention of storing the type-info pointer immediately before the vtable
// (vtable[-1]): load the object's vtable pointer, then load one slot behind it (spec §4.4 "Typeid").
func handleTypeid(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(2); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	objVal, _ := in.Operand(1)

	objReg, err := c.materialize(in, objVal, ir.TypePointer, 64)
	if err != nil {
		return err
	}
	vtable, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LoadIndirect(objReg, vtable, 0, 64))
	c.Alloc.Release(objReg)

	typeinfo, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LoadIndirect(vtable, typeinfo, -8, 64))
	c.Alloc.Release(vtable)
	return c.storeResult(in, result, typeinfo, 64)
}

// DynamicCast: [0] result (Temp), [1] pointer value, [2] target type (Type). This backend performs no
// runtime type check and passes the pointer through unchanged (decided in DESIGN.md, Open Question
// "`DynamicCast` RTTI check": a full implementation needs the same typeinfo-comparison walk
// the Itanium ABI's __dynamic_cast performs, which is out of scope for a single-pass direct lowering
// and is left as an optimistic identity cast).
func handleDynamicCast(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(3); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	ptrVal, _ := in.Operand(1)

	reg, err := c.materialize(in, ptrVal, ir.TypePointer, 64)
	if err != nil {
		return err
	}
	return c.storeResult(in, result, reg, 64)
}
