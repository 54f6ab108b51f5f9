package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/regalloc"
)

// ArrayAccess: [0] result (Temp), [1] element type (Type), [2] element size in bits (Size),
// [3] array base (Identifier/Temp, a frame-resident array's own slot), [4] index value (spec §4.4
// "array access"). The index is scaled by the element's byte width via LEAIndexed's SIB scale field
// when it is a power-of-two size (1/2/4/8 bytes); wider/irregular elements fall back to an explicit
// multiply, matching this backend's "correct and direct" mandate over a clever instruction count.
func handleArrayAccess(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(5); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	base, _ := in.Operand(3)
	index, _ := in.Operand(4)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}
	elemBytes := bits / 8

	baseOffset, _, err := c.slotOf(in, base)
	if err != nil {
		return err
	}
	idxReg, err := c.materialize(in, index, ir.TypeInt, 64)
	if err != nil {
		return err
	}

	addr, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LEAFrame(addr, baseOffset))

	scale := byte(elemBytes)
	switch scale {
	case 1, 2, 4, 8:
		c.emit(encoder.LEAIndexed(addr, addr, idxReg, scale, 0))
	default:
		factor, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.MovImm32(factor, int32(elemBytes)))
		c.emit(encoder.Imul2(idxReg, factor, 64))
		c.Alloc.Release(factor)
		c.emit(encoder.Arith(encoder.OpAdd, addr, idxReg, 64))
	}
	c.Alloc.Release(idxReg)

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

// ArrayStore: [0] array base (Identifier/Temp), [1] element type (Type), [2] element size (Size),
// [3] index value, [4] value to store.
func handleArrayStore(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(5); err != nil {
		return err
	}
	base, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	index, _ := in.Operand(3)
	value, _ := in.Operand(4)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}
	elemBytes := bits / 8

	baseOffset, _, err := c.slotOf(in, base)
	if err != nil {
		return err
	}
	idxReg, err := c.materialize(in, index, ir.TypeInt, 64)
	if err != nil {
		return err
	}
	addr, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LEAFrame(addr, baseOffset))

	scale := byte(elemBytes)
	switch scale {
	case 1, 2, 4, 8:
		c.emit(encoder.LEAIndexed(addr, addr, idxReg, scale, 0))
	default:
		factor, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.MovImm32(factor, int32(elemBytes)))
		c.emit(encoder.Imul2(idxReg, factor, 64))
		c.Alloc.Release(factor)
		c.emit(encoder.Arith(encoder.OpAdd, addr, idxReg, 64))
	}
	c.Alloc.Release(idxReg)

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

// MemberAccess: [0] result (Temp), [1] type (Type), [2] size (Size), [3] struct base
// (Identifier/Temp, a pointer), [4] byte offset (IntLiteral). The offset is a plain integer computed
// by the front end, not a member-name string parsed at codegen time (spec §9 REDESIGN FLAG: "resolve
// struct member offsets before lowering, not through the source's string-splitting of
// 'struct.member' tags").
func handleMemberAccess(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(5); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	base, _ := in.Operand(3)
	byteOffset, _ := in.Operand(4)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	baseReg, err := c.materialize(in, base, ir.TypePointer, 64)
	if err != nil {
		return err
	}
	dst, err := c.acquireFresh(classFor(typ.Type))
	if err != nil {
		return err
	}
	if classFor(typ.Type) == regalloc.ClassXMM {
		// Scalar member loads through a pointer use the same F2/F3 MOVSS/MOVSD encoding family as a
		// frame load, with baseReg substituted for RBP (spec §4.1).
		c.emit(sseLoadIndirect(bits == 64, baseReg, dst, int32(byteOffset.Int)))
	} else {
		c.emit(encoder.LoadIndirect(baseReg, dst, int32(byteOffset.Int), bits))
	}
	c.Alloc.Release(baseReg)
	return c.storeResult(in, result, dst, bits)
}

// MemberStore: [0] struct base (Identifier/Temp), [1] byte offset (IntLiteral), [2] type (Type),
// [3] size (Size), [4] value.
func handleMemberStore(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(5); err != nil {
		return err
	}
	base, _ := in.Operand(0)
	byteOffset, _ := in.Operand(1)
	typ, _ := in.Operand(2)
	size, _ := in.Operand(3)
	value, _ := in.Operand(4)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	baseReg, err := c.materialize(in, base, ir.TypePointer, 64)
	if err != nil {
		return err
	}
	val, err := c.materialize(in, value, typ.Type, bits)
	if err != nil {
		return err
	}
	if classFor(typ.Type) == regalloc.ClassXMM {
		c.emit(sseStoreIndirect(bits == 64, baseReg, val, int32(byteOffset.Int)))
	} else {
		c.emit(encoder.StoreIndirect(baseReg, val, int32(byteOffset.Int), bits))
	}
	c.Alloc.Release(baseReg)
	c.Alloc.Release(val)
	return nil
}

// AddressOf: [0] result (Temp), [1] target (Identifier/Temp) whose frame slot's address is taken.
func handleAddressOf(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(2); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	target, _ := in.Operand(1)

	offset, _, err := c.slotOf(in, target)
	if err != nil {
		return err
	}
	reg, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LEAFrame(reg, offset))
	return c.storeResult(in, result, reg, 64)
}

// Dereference: [0] result (Temp), [1] type (Type), [2] size (Size), [3] pointer value.
func handleDereference(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	ptrVal, _ := in.Operand(3)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	ptrReg, err := c.materialize(in, ptrVal, ir.TypePointer, 64)
	if err != nil {
		return err
	}
	dst, err := c.acquireFresh(classFor(typ.Type))
	if err != nil {
		return err
	}
	if classFor(typ.Type) == regalloc.ClassXMM {
		c.emit(sseLoadIndirect(bits == 64, ptrReg, dst, 0))
	} else {
		c.emit(encoder.LoadIndirect(ptrReg, dst, 0, bits))
	}
	c.Alloc.Release(ptrReg)
	return c.storeResult(in, result, dst, bits)
}

// sseLoadIndirect/sseStoreIndirect are a scalar SSE load/store through an arbitrary base register:
// thin wrappers over encoder's LoadFrameScalarThroughBase/StoreFrameScalarThroughBase (spec §4.1).
func sseLoadIndirect(double bool, base, reg regalloc.Register, offset int32) []byte {
	return encoder.LoadFrameScalarThroughBase(double, base, reg, offset)
}

func sseStoreIndirect(double bool, base, reg regalloc.Register, offset int32) []byte {
	return encoder.StoreFrameScalarThroughBase(double, base, reg, offset)
}
