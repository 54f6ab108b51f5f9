package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/regalloc"
)

// Arithmetic/comparison instructions share one fixed 7-operand layout (spec §3, §4.4):
//
//	[0] result (Temp)
//	[1] lhs type (Type)
//	[2] lhs size in bits (Size)
//	[3] lhs value
//	[4] rhs type (Type)
//	[5] rhs size in bits (Size)
//	[6] rhs value
const (
	arithResult = iota
	arithLhsType
	arithLhsSize
	arithLhsVal
	arithRhsType
	arithRhsSize
	arithRhsVal
)

var condByOp = map[ir.Opcode]encoder.Cond{
	ir.OpCmpEQ: encoder.CondE, ir.OpCmpNE: encoder.CondNE,
	ir.OpCmpLT: encoder.CondL, ir.OpCmpLE: encoder.CondLE,
	ir.OpCmpGT: encoder.CondG, ir.OpCmpGE: encoder.CondGE,
	ir.OpCmpLTU: encoder.CondB, ir.OpCmpLEU: encoder.CondBE,
	ir.OpCmpGTU: encoder.CondA, ir.OpCmpGEU: encoder.CondAE,
	ir.OpCmpEQF: encoder.CondE, ir.OpCmpNEF: encoder.CondNE,
	ir.OpCmpLTF: encoder.CondB, ir.OpCmpLEF: encoder.CondBE,
	ir.OpCmpGTF: encoder.CondA, ir.OpCmpGEF: encoder.CondAE,
}

// handleArithmetic lowers every opcode sharing the arithmetic archetype: materialize both operands,
// compute, store the result to its home slot, release any scratch register the computation consumed
// (spec §4.4 "shared operand setup for ~40 handlers").
func handleArithmetic(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(7); err != nil {
		return err
	}
	result, _ := in.Operand(arithResult)
	lhsType, _ := in.Operand(arithLhsType)
	lhsSize, _ := in.Operand(arithLhsSize)
	lhsVal, _ := in.Operand(arithLhsVal)
	rhsSize, _ := in.Operand(arithRhsSize)
	rhsVal, _ := in.Operand(arithRhsVal)

	bits := lhsSize.SizeBits
	if bits == 0 {
		bits = 64
	}
	rbits := rhsSize.SizeBits
	if rbits == 0 {
		rbits = bits
	}

	if in.Op.IsFloat() {
		return handleFloatArithmetic(c, in, result, bits, lhsVal, rhsVal)
	}

	lhs, err := c.materialize(in, lhsVal, lhsType.Type, bits)
	if err != nil {
		return err
	}
	rhs, err := c.materialize(in, rhsVal, lhsType.Type, rbits)
	if err != nil {
		return err
	}

	if in.Op.IsComparison() {
		c.emit(encoder.Cmp(lhs, rhs, bits))
		dst, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.Setcc(condByOp[in.Op], dst))
		c.Alloc.Release(lhs)
		c.Alloc.Release(rhs)
		return c.storeResult(in, result, dst, 8)
	}

	switch in.Op {
	case ir.OpAdd, ir.OpAddU:
		c.emit(encoder.Arith(encoder.OpAdd, lhs, rhs, bits))
	case ir.OpSub, ir.OpSubU:
		c.emit(encoder.Arith(encoder.OpSub, lhs, rhs, bits))
	case ir.OpBitwiseAnd:
		c.emit(encoder.Arith(encoder.OpAnd, lhs, rhs, bits))
	case ir.OpBitwiseOr:
		c.emit(encoder.Arith(encoder.OpOr, lhs, rhs, bits))
	case ir.OpBitwiseXor:
		c.emit(encoder.Arith(encoder.OpXor, lhs, rhs, bits))
	case ir.OpMul, ir.OpMulU:
		// The low bits of a wrapping multiply are identical for signed and unsigned interpretation;
		// the two-operand IMUL form suffices for both (spec §9: "direct, not optimal").
		c.emit(encoder.Imul2(lhs, rhs, bits))
	case ir.OpDiv, ir.OpMod, ir.OpDivU, ir.OpModU:
		return handleDivMod(c, in, result, lhs, rhs, bits)
	case ir.OpShiftLeft, ir.OpShiftRightSigned, ir.OpShiftRightUnsigned:
		return handleShift(c, in, result, lhs, rhs, bits)
	default:
		return unknownOpcodeError(in.Op)
	}
	c.Alloc.Release(rhs)
	return c.storeResult(in, result, lhs, bits)
}

func handleFloatArithmetic(c *Context, in ir.Instruction, result ir.Operand, bits int, lhsVal, rhsVal ir.Operand) error {
	double := bits == 64
	lhs, err := c.materialize(in, lhsVal, ir.TypeDouble, bits)
	if err != nil {
		return err
	}
	rhs, err := c.materialize(in, rhsVal, ir.TypeDouble, bits)
	if err != nil {
		return err
	}

	if in.Op.IsComparison() {
		c.emit(encoder.ComiScalar(double, lhs, rhs))
		dst, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.Setcc(condByOp[in.Op], dst))
		c.Alloc.Release(lhs)
		c.Alloc.Release(rhs)
		return c.storeResult(in, result, dst, 8)
	}

	switch in.Op {
	case ir.OpAddF:
		c.emit(encoder.AddScalar(double, lhs, rhs))
	case ir.OpSubF:
		c.emit(encoder.SubScalar(double, lhs, rhs))
	case ir.OpMulF:
		c.emit(encoder.MulScalar(double, lhs, rhs))
	case ir.OpDivF:
		c.emit(encoder.DivScalar(double, lhs, rhs))
	default:
		return unknownOpcodeError(in.Op)
	}
	c.Alloc.Release(rhs)
	return c.storeResult(in, result, lhs, bits)
}

// handleDivMod lowers Div/Mod/DivU/ModU: the IDIV/DIV family exclusively uses RAX:RDX, so the
// dividend is moved into RAX and a divisor that materialize left in RAX or RDX is moved out of that
// pair (spec §4.4 "Release RDX" / dedicated register pair).
func handleDivMod(c *Context, in ir.Instruction, result ir.Operand, lhs, rhs regalloc.Register, bits int) error {
	signed := in.Op == ir.OpDiv || in.Op == ir.OpMod
	wantsRemainder := in.Op == ir.OpMod || in.Op == ir.OpModU

	// Flush every dirty register to its home slot before RAX/RDX are clobbered by the reshuffle
	// and CQO below (spec §4.4 "flush all dirty registers — RDX will be clobbered by CQO").
	c.Alloc.FlushAllDirty(c.spillSink())

	if lhs != regalloc.RAX {
		c.emit(encoder.MovRegToReg(regalloc.RAX, lhs, bits))
		c.Alloc.Release(lhs)
	}
	if rhs == regalloc.RAX || rhs == regalloc.RDX {
		tmp, err := c.acquireFresh(regalloc.ClassGP)
		if err != nil {
			return err
		}
		c.emit(encoder.MovRegToReg(tmp, rhs, bits))
		c.Alloc.Release(rhs)
		rhs = tmp
	}
	c.Alloc.InvalidateCallerSaved(c.callerSaved)

	if signed {
		c.emit(encoder.Cqo(bits))
		c.emit(encoder.Idiv(rhs, bits))
	} else {
		c.emit(encoder.XorZero(regalloc.RDX, bits))
		c.emit(encoder.Div(rhs, bits))
	}
	c.Alloc.Release(rhs)

	dst := regalloc.RAX
	if wantsRemainder {
		dst = regalloc.RDX
	}
	return c.storeResult(in, result, dst, bits)
}

// handleShift lowers ShiftLeft/ShiftRightSigned/ShiftRightUnsigned: the count must be in CL (spec
// §4.4 "move RHS to RCX; CL holds count").
func handleShift(c *Context, in ir.Instruction, result ir.Operand, lhs, rhs regalloc.Register, bits int) error {
	if rhs != regalloc.RCX {
		c.emit(encoder.MovRegToReg(regalloc.RCX, rhs, 8))
		c.Alloc.Release(rhs)
	}
	var ext encoder.ShiftExt
	switch in.Op {
	case ir.OpShiftLeft:
		ext = encoder.ExtShl
	case ir.OpShiftRightSigned:
		ext = encoder.ExtSar
	case ir.OpShiftRightUnsigned:
		ext = encoder.ExtShr
	}
	c.emit(encoder.ShiftCL(ext, lhs, bits))
	return c.storeResult(in, result, lhs, bits)
}
