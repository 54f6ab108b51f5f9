package encoder

import "irx64/src/regalloc"

// sseOpcodeSet holds one SSE scalar arithmetic family's opcode bytes; sseArith's double argument
// chooses the F2 (scalar double) vs F3 (scalar single) mandatory prefix (spec §4.1 "SSE scalar").
type sseOpcodeSet struct {
	opSingle byte
	opDouble byte
}

var (
	sseAdd   = sseOpcodeSet{0x58, 0x58}
	sseSub   = sseOpcodeSet{0x5C, 0x5C}
	sseMul   = sseOpcodeSet{0x59, 0x59}
	sseDiv   = sseOpcodeSet{0x5E, 0x5E}
	sseComis = sseOpcodeSet{0x2F, 0x2F} // COMISS/COMISD (0F prefix, no F2/F3).
	sseMov   = sseOpcodeSet{0x10, 0x10} // MOVSS/MOVSD.
)

func sseRexIfNeeded(dst, src regalloc.Register) []byte {
	needR := needsRexExtend(dst)
	needB := needsRexExtend(src)
	if needR || needB {
		return []byte{rexByte(false, needR, false, needB)}
	}
	return nil
}

// sseEmit wires the mandatory F2/F3 prefix, optional REX, 0F escape and opcode+ModR/M for a scalar
// reg,reg SSE instruction (spec §4.1: "F3/F2 0F 10/11" family).
func sseEmit(mandatoryPrefix byte, op byte, dst, src regalloc.Register) []byte {
	var out []byte
	if mandatoryPrefix != 0 {
		out = append(out, mandatoryPrefix)
	}
	out = append(out, sseRexIfNeeded(dst, src)...)
	out = append(out, 0x0F, op)
	out = append(out, modrm(0b11, byte(dst.Id()&7), byte(src.Id()&7)))
	return out
}

// AddSS/AddSD etc. all share this shape: dst (xmm) op= src (xmm).
func sseArith(set sseOpcodeSet, double bool, dst, src regalloc.Register) []byte {
	if double {
		return sseEmit(0xF2, set.opDouble, dst, src)
	}
	return sseEmit(0xF3, set.opSingle, dst, src)
}

// AddScalar emits ADDSS/ADDSD dst, src.
func AddScalar(double bool, dst, src regalloc.Register) []byte { return sseArith(sseAdd, double, dst, src) }

// SubScalar emits SUBSS/SUBSD dst, src.
func SubScalar(double bool, dst, src regalloc.Register) []byte { return sseArith(sseSub, double, dst, src) }

// MulScalar emits MULSS/MULSD dst, src.
func MulScalar(double bool, dst, src regalloc.Register) []byte { return sseArith(sseMul, double, dst, src) }

// DivScalar emits DIVSS/DIVSD dst, src.
func DivScalar(double bool, dst, src regalloc.Register) []byte { return sseArith(sseDiv, double, dst, src) }

// ComiScalar emits COMISS/COMISD a, b, setting EFLAGS for a following SETcc (spec §4.1, §4.4 "float
// comparisons"). COMISS/COMISD carry no mandatory F2/F3 prefix; double precision instead uses the
// 0x66 operand-size prefix.
func ComiScalar(double bool, a, b regalloc.Register) []byte {
	var out []byte
	if double {
		out = append(out, 0x66)
	}
	out = append(out, sseRexIfNeeded(a, b)...)
	out = append(out, 0x0F, sseComis.opSingle)
	out = append(out, modrm(0b11, byte(a.Id()&7), byte(b.Id()&7)))
	return out
}

// MovScalarRegToReg emits MOVSS/MOVSD dst, src between two XMM registers.
func MovScalarRegToReg(double bool, dst, src regalloc.Register) []byte {
	if double {
		return sseEmit(0xF2, sseMov.opDouble, dst, src)
	}
	return sseEmit(0xF3, sseMov.opSingle, dst, src)
}

// LoadFrameScalar emits `movss/movsd xmm, [rbp+offset]`.
func LoadFrameScalar(double bool, reg regalloc.Register, offset int32) []byte {
	return memScalar(double, reg, regalloc.RBP, offset, true)
}

// StoreFrameScalar emits `movss/movsd [rbp+offset], xmm`.
func StoreFrameScalar(double bool, reg regalloc.Register, offset int32) []byte {
	return memScalar(double, reg, regalloc.RBP, offset, false)
}

// LoadFrameScalarThroughBase emits `movss/movsd xmm, [base+offset]` for an arbitrary base register,
// used for scalar member/array loads through a pointer rather than the current frame (spec §4.4
// "MemberAccess", "ArrayAccess" on float-typed fields/elements).
func LoadFrameScalarThroughBase(double bool, base, reg regalloc.Register, offset int32) []byte {
	return memScalar(double, reg, base, offset, true)
}

// StoreFrameScalarThroughBase emits `movss/movsd [base+offset], xmm` for an arbitrary base register.
func StoreFrameScalarThroughBase(double bool, base, reg regalloc.Register, offset int32) []byte {
	return memScalar(double, reg, base, offset, false)
}

func memScalar(double bool, reg, base regalloc.Register, offset int32, isLoad bool) []byte {
	var out []byte
	if double {
		out = append(out, 0xF2)
	} else {
		out = append(out, 0xF3)
	}
	needExtReg := needsRexExtend(reg)
	needExtBase := needsRexExtend(base)
	if needExtReg || needExtBase {
		out = append(out, rexByte(false, needExtReg, false, needExtBase))
	}
	out = append(out, 0x0F)
	if isLoad {
		out = append(out, 0x10)
	} else {
		out = append(out, 0x11)
	}
	mod, rm, sibBytes, disp := memOperand(base, offset)
	out = append(out, modrm(mod, byte(reg.Id()&7), rm))
	out = append(out, sibBytes...)
	out = append(out, disp...)
	return out
}

// MovQGPRToXMM emits `movq xmm, gpr`: a bit-pattern move, not a numeric conversion (spec §4.1 "MOVQ
// for GPR<->XMM bit-moves").
func MovQGPRToXMM(xmm, gpr regalloc.Register) []byte {
	var out []byte
	out = append(out, 0x66)
	out = append(out, rexByte(true, needsRexExtend(xmm), false, needsRexExtend(gpr)))
	out = append(out, 0x0F, 0x6E)
	out = append(out, modrm(0b11, byte(xmm.Id()&7), byte(gpr.Id()&7)))
	return out
}

// MovQXMMToGPR emits `movq gpr, xmm`.
func MovQXMMToGPR(gpr, xmm regalloc.Register) []byte {
	var out []byte
	out = append(out, 0x66)
	out = append(out, rexByte(true, needsRexExtend(xmm), false, needsRexExtend(gpr)))
	out = append(out, 0x0F, 0x7E)
	out = append(out, modrm(0b11, byte(xmm.Id()&7), byte(gpr.Id()&7)))
	return out
}
