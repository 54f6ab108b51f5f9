package codegen

import (
	"math"

	"irx64/src/encoder"
	"irx64/src/frame"
	"irx64/src/ir"
	"irx64/src/regalloc"
)

// emitStore writes reg's current value to its tracked stack offset, choosing the GP or SSE store
// form by the register's class (used both by explicit stores and by the allocator's spill sink).
func (c *Context) emitStore(reg regalloc.Register, offset int32, sizeBits int) {
	if reg.RegClass() == regalloc.ClassXMM {
		c.emit(encoder.StoreFrameScalar(sizeBits == 64, reg, offset))
		return
	}
	c.emit(encoder.StoreFrame(reg, offset, sizeBits))
}

// classFor picks the allocator register class an operand's type tag belongs in.
func classFor(t ir.TypeTag) regalloc.Class {
	if t == ir.TypeFloat || t == ir.TypeDouble {
		return regalloc.ClassXMM
	}
	return regalloc.ClassGP
}

// slotOf resolves a name/temp operand to its frame offset, surfacing an undefined-identifier error
// per spec §7/§8 ("every temp-var used as an operand has an offset in the current scope's map").
func (c *Context) slotOf(in ir.Instruction, o ir.Operand) (int32, int, error) {
	off, ok := c.Scope.Offset(o.SlotName())
	if !ok {
		return 0, 0, &ir.MalformedIRError{Opcode: in.Op, Line: in.Line, Reason: "undefined identifier " + o.SlotName()}
	}
	return off, c.Scope.Size(o.SlotName()), nil
}

// acquireFresh obtains a register of class cls not already bound to any slot, spilling if necessary.
func (c *Context) acquireFresh(cls regalloc.Class) (regalloc.Register, error) {
	r, err := c.Alloc.AllocateWithSpilling(cls, c.spillSink())
	if err != nil {
		return regalloc.NoReg, err
	}
	return r, nil
}

// materialize loads operand o (literal, identifier or temp) into a register of the given type/size,
// reusing an already-resident register via TryGetRegisterForOffset when possible (spec §4.2 "elide a
// reload when the value is already resident"). A register holding a literal is returned unbound; a
// register holding an identifier or temp is bound to that operand's stack slot.
func (c *Context) materialize(in ir.Instruction, o ir.Operand, typ ir.TypeTag, sizeBits int) (regalloc.Register, error) {
	cls := classFor(typ)

	switch o.Kind {
	case ir.OperandIntLiteral, ir.OperandUintLiteral, ir.OperandBoolLiteral, ir.OperandCharLiteral:
		reg, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return regalloc.NoReg, err
		}
		var imm int64
		switch o.Kind {
		case ir.OperandIntLiteral:
			imm = o.Int
		case ir.OperandUintLiteral:
			imm = int64(o.Uint)
		case ir.OperandBoolLiteral:
			if o.Bool {
				imm = 1
			}
		case ir.OperandCharLiteral:
			imm = int64(o.Char)
		}
		if imm < -(1<<31) || imm > (1<<31)-1 {
			c.emit(encoder.MovImm64(reg, imm))
		} else {
			c.emit(encoder.MovImm32(reg, int32(imm)))
		}
		return reg, nil

	case ir.OperandFloatLiteral:
		// Float immediates have no encode-as-immediate form on x86: materialize the bit pattern
		// through a GP scratch register and MOVQ into XMM (spec §4.1 "MOVQ for GPR<->XMM bit-moves").
		gp, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return regalloc.NoReg, err
		}
		bits := floatBits(o.Float, sizeBits)
		c.emit(encoder.MovImm64(gp, bits))
		xmm, err := c.acquireFresh(regalloc.ClassXMM)
		if err != nil {
			c.Alloc.Release(gp)
			return regalloc.NoReg, err
		}
		c.emit(encoder.MovQGPRToXMM(xmm, gp))
		c.Alloc.Release(gp)
		return xmm, nil

	case ir.OperandIdentifier, ir.OperandTemp:
		offset, bits, err := c.slotOf(in, o)
		if err != nil {
			return regalloc.NoReg, err
		}
		if bits == 0 {
			bits = sizeBits
		}
		if ref, ok := c.Scope.Reference(o.SlotName()); ok {
			return c.materializeThroughReference(ref, offset, cls, sizeBits)
		}
		if existing := c.Alloc.TryGetRegisterForOffset(offset, cls); existing.IsValid() {
			return existing, nil
		}
		reg, err := c.acquireFresh(cls)
		if err != nil {
			return regalloc.NoReg, err
		}
		if cls == regalloc.ClassXMM {
			c.emit(encoder.LoadFrameScalar(bits == 64, reg, offset))
		} else {
			c.emit(encoder.LoadFrame(reg, offset, bits))
		}
		// Bind marks the register dirty even though a load just made it an exact mirror of memory; a
		// later flush will redundantly store it back, which is correct but not optimal, matching this
		// allocator's stated goal (spec §4.2, §9 "correct and direct, not optimal").
		c.Alloc.Bind(reg, offset, bits)
		return reg, nil
	}

	return regalloc.NoReg, &ir.MalformedIRError{Opcode: in.Op, Line: in.Line, Reason: "operand is not a value (literal/identifier/temp expected)"}
}

// materializeThroughReference loads the pointer held at offset (a reference slot never holds the
// referred-to value directly, spec §3 "Reference slot"), then loads the referent through it. The
// allocator's offset cache is not consulted or populated here: it models direct stack homes, and a
// reference's cached "home" is the pointer, not the value a register here would mirror.
func (c *Context) materializeThroughReference(ref frame.ReferenceInfo, offset int32, cls regalloc.Class, sizeBits int) (regalloc.Register, error) {
	ptr, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return regalloc.NoReg, err
	}
	c.emit(encoder.LoadFrame(ptr, offset, 64))

	bits := ref.ReferentBits
	if bits == 0 {
		bits = sizeBits
	}
	dst, err := c.acquireFresh(cls)
	if err != nil {
		c.Alloc.Release(ptr)
		return regalloc.NoReg, err
	}
	if cls == regalloc.ClassXMM {
		c.emit(sseLoadIndirect(bits == 64, ptr, dst, 0))
	} else {
		c.emit(encoder.LoadIndirect(ptr, dst, 0, bits))
	}
	c.Alloc.Release(ptr)
	return dst, nil
}

// storeResult writes value from reg back to o's home slot and records the binding as dirty so later
// reads in the same block can reuse it without reloading (spec §4.2). When o's slot is a reference,
// the write instead goes through the pointer the slot holds (spec §8 end-to-end scenario "reference
// parameter": "assignment emits a load-pointer-then-store-through-pointer sequence, not a direct
// frame store").
func (c *Context) storeResult(in ir.Instruction, o ir.Operand, reg regalloc.Register, sizeBits int) error {
	offset, bits, err := c.slotOf(in, o)
	if err != nil {
		return err
	}
	if bits == 0 {
		bits = sizeBits
	}
	if ref, ok := c.Scope.Reference(o.SlotName()); ok {
		return c.storeThroughReference(ref, offset, reg, bits)
	}
	c.Alloc.Bind(reg, offset, bits)
	return nil
}

// storeThroughReference loads the pointer held at offset, then stores reg's value at the pointer's
// target rather than into offset itself.
func (c *Context) storeThroughReference(ref frame.ReferenceInfo, offset int32, reg regalloc.Register, sizeBits int) error {
	ptr, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LoadFrame(ptr, offset, 64))

	bits := ref.ReferentBits
	if bits == 0 {
		bits = sizeBits
	}
	if reg.RegClass() == regalloc.ClassXMM {
		c.emit(sseStoreIndirect(bits == 64, ptr, reg, 0))
	} else {
		c.emit(encoder.StoreIndirect(ptr, reg, 0, bits))
	}
	c.Alloc.Release(ptr)
	c.Alloc.Release(reg)
	return nil
}

// floatBits reinterprets v's bit pattern at the requested width (32 for float, 64 for double) as an
// int64 suitable for MovImm64 + MOVQ.
func floatBits(v float64, sizeBits int) int64 {
	if sizeBits == 32 {
		return int64(int32(math.Float32bits(float32(v))))
	}
	return int64(math.Float64bits(v))
}
