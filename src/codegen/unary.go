package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/regalloc"
)

// Unary instructions share a 4-operand layout: [0] result (Temp), [1] type (Type), [2] size (Size),
// [3] value.
const (
	unaryResult = iota
	unaryType
	unarySize
	unaryVal
)

func handleUnary(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		return err
	}
	result, _ := in.Operand(unaryResult)
	typ, _ := in.Operand(unaryType)
	size, _ := in.Operand(unarySize)
	val, _ := in.Operand(unaryVal)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	reg, err := c.materialize(in, val, typ.Type, bits)
	if err != nil {
		return err
	}

	switch in.Op {
	case ir.OpBitwiseNot:
		c.emit(encoder.Not(reg, bits))
	case ir.OpNegate:
		c.emit(encoder.Neg(reg, bits))
	case ir.OpLogicalNot:
		c.emit(encoder.Test(reg, bits))
		dst, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.Setcc(encoder.CondE, dst))
		c.Alloc.Release(reg)
		return c.storeResult(in, result, dst, 8)
	default:
		return unknownOpcodeError(in.Op)
	}
	return c.storeResult(in, result, reg, bits)
}

// Conversion instructions: [0] result (Temp), [1] from type (Type), [2] from size (Size), [3] value,
// [4] to size (Size).
const (
	convResult = iota
	convFromType
	convFromSize
	convVal
	convToSize
)

func handleConversion(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(5); err != nil {
		return err
	}
	result, _ := in.Operand(convResult)
	fromType, _ := in.Operand(convFromType)
	fromSize, _ := in.Operand(convFromSize)
	val, _ := in.Operand(convVal)
	toSize, _ := in.Operand(convToSize)

	fromBits := fromSize.SizeBits
	toBits := toSize.SizeBits
	if fromBits == 0 {
		fromBits = 64
	}
	if toBits == 0 {
		toBits = 64
	}

	reg, err := c.materialize(in, val, fromType.Type, fromBits)
	if err != nil {
		return err
	}

	switch in.Op {
	case ir.OpTruncate:
		// Truncation needs no instruction: the backend simply treats the same register/slot at a
		// narrower width from here on (spec §4.4 "Truncate — no-op at the instruction level").
	case ir.OpZeroExtend:
		if fromBits < 32 {
			c.emit(encoder.Movzx(reg, reg, fromBits))
		}
		// 32->64 zero-extension is implicit in any 32-bit write; nothing further to emit.
	case ir.OpSignExtend:
		c.emit(encoder.Movsx(reg, reg, fromBits, toBits))
	default:
		return unknownOpcodeError(in.Op)
	}
	return c.storeResult(in, result, reg, toBits)
}

// Pre/Post Inc/Dec share a 4-operand layout: [0] result (Temp; PreInc/PreDec store the same new value
// here too), [1] target (Identifier/Temp), [2] type (Type), [3] size (Size).
const (
	incResult = iota
	incTarget
	incType
	incSize
)

func handleIncDec(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		return err
	}
	result, _ := in.Operand(incResult)
	target, _ := in.Operand(incTarget)
	typ, _ := in.Operand(incType)
	size, _ := in.Operand(incSize)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	reg, err := c.materialize(in, target, typ.Type, bits)
	if err != nil {
		return err
	}

	one, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.MovImm32(one, 1))

	isPost := in.Op == ir.OpPostInc || in.Op == ir.OpPostDec
	var old regalloc.Register
	if isPost {
		old, err = c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.MovRegToReg(old, reg, bits))
	}

	if in.Op == ir.OpPreInc || in.Op == ir.OpPostInc {
		c.emit(encoder.Arith(encoder.OpAdd, reg, one, bits))
	} else {
		c.emit(encoder.Arith(encoder.OpSub, reg, one, bits))
	}
	c.Alloc.Release(one)

	// A pre form's result gets its own copy of the new value: storeTargetBack leaves reg bound to the
	// target (or releases it after storing through a reference).
	var res regalloc.Register
	if !isPost {
		res, err = c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.MovRegToReg(res, reg, bits))
	}

	if err := c.storeTargetBack(in, target, reg, bits); err != nil {
		return err
	}

	if isPost {
		return c.storeResult(in, result, old, bits)
	}
	return c.storeResult(in, result, res, bits)
}

// storeTargetBack writes reg to the named target's home slot, used by increment/decrement and
// compound assignment where the destination is an existing variable rather than a fresh temp.
func (c *Context) storeTargetBack(in ir.Instruction, target ir.Operand, reg regalloc.Register, bits int) error {
	return c.storeResult(in, target, reg, bits)
}

// CompoundAssign (desugared +=/-=/etc. fused form): [0] target (Identifier/Temp), [1] type (Type),
// [2] size (Size), [3] rhs value. This backend recognises only the additive fused form; any other
// compound operator reaching here is a front-end responsibility to have already desugared into a
// separate Add/Sub/... plus Assign pair.
func handleCompoundAssign(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		return err
	}
	target, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	rhsVal, _ := in.Operand(3)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	lhs, err := c.materialize(in, target, typ.Type, bits)
	if err != nil {
		return err
	}
	rhs, err := c.materialize(in, rhsVal, typ.Type, bits)
	if err != nil {
		return err
	}
	c.emit(encoder.Arith(encoder.OpAdd, lhs, rhs, bits))
	c.Alloc.Release(rhs)
	return c.storeTargetBack(in, target, lhs, bits)
}

// Assign: plain move of an already-typed value. [0] dst (Identifier/Temp), [1] type (Type), [2] size
// (Size), [3] src value.
func handleAssign(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		return err
	}
	dst, _ := in.Operand(0)
	typ, _ := in.Operand(1)
	size, _ := in.Operand(2)
	src, _ := in.Operand(3)
	bits := size.SizeBits
	if bits == 0 {
		bits = 64
	}

	reg, err := c.materialize(in, src, typ.Type, bits)
	if err != nil {
		return err
	}
	return c.storeTargetBack(in, dst, reg, bits)
}
