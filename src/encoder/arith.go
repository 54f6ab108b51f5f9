package encoder

import "irx64/src/regalloc"

// MovRegToReg emits a register-to-register MOV sized 1/2/4/8 bytes (spec §4.1).
func MovRegToReg(dst, src regalloc.Register, sizeBits int) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)
	w := sizeBits == 64
	needExtReg := needsRexExtend(src) // source goes in the ModR/M reg field for MOV r/m, r (0x89).
	needExtRM := needsRexExtend(dst)
	needByte := needsByteRex(src, sizeBits) || needsByteRex(dst, sizeBits)
	if w || needExtReg || needExtRM || needByte {
		out = append(out, rexByte(w, needExtReg, false, needExtRM))
	}
	op := byte(0x89)
	if sizeBits == 8 {
		op = 0x88
	}
	out = append(out, op)
	out = append(out, modrm(0b11, byte(src.Id()&7), byte(dst.Id()&7)))
	return out
}

// MovImm64 emits `mov reg, imm64` via B8+r (spec §4.1 "load imm64 via B8+r, imm64").
func MovImm64(reg regalloc.Register, imm int64) []byte {
	var out []byte
	out = append(out, rexByte(true, false, false, needsRexExtend(reg)))
	out = append(out, 0xB8+(byte(reg.Id()&7)))
	out = append(out, le64(imm)...)
	return out
}

// MovImm32 emits a 32-bit `mov reg, imm32`, which implicitly zero-extends to 64 bits (spec §4.1
// "32->64 via plain 32-bit MOV").
func MovImm32(reg regalloc.Register, imm int32) []byte {
	var out []byte
	if needsRexExtend(reg) {
		out = append(out, rexByte(false, false, false, true))
	}
	out = append(out, 0xB8+(byte(reg.Id()&7)))
	out = append(out, le32(imm)...)
	return out
}

// ArithOp selects the two-register ALU operation family.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpAnd
	OpOr
	OpXor
)

var arithOpcode = map[ArithOp]byte{
	OpAdd: 0x01,
	OpSub: 0x29,
	OpAnd: 0x21,
	OpOr:  0x09,
	OpXor: 0x31,
}

// Arith emits `<op> dst, src` (ADD/SUB/AND/OR/XOR, reg,reg), accumulating into dst (spec §4.1).
func Arith(op ArithOp, dst, src regalloc.Register, sizeBits int) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)
	w := sizeBits == 64
	needExtReg := needsRexExtend(src)
	needExtRM := needsRexExtend(dst)
	if w || needExtReg || needExtRM {
		out = append(out, rexByte(w, needExtReg, false, needExtRM))
	}
	out = append(out, arithOpcode[op])
	out = append(out, modrm(0b11, byte(src.Id()&7), byte(dst.Id()&7)))
	return out
}

// Imul2 emits the two-operand IMUL `imul dst, src` (0F AF /r), dst *= src, signed (spec §4.1).
func Imul2(dst, src regalloc.Register, sizeBits int) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)
	w := sizeBits == 64
	needExtReg := needsRexExtend(dst)
	needExtRM := needsRexExtend(src)
	if w || needExtReg || needExtRM {
		out = append(out, rexByte(w, needExtReg, false, needExtRM))
	}
	out = append(out, 0x0F, 0xAF)
	out = append(out, modrm(0b11, byte(dst.Id()&7), byte(src.Id()&7)))
	return out
}

// OpExt is the x86 "opcode extension" selector the /digit field of ModR/M carries for the F7/FF/D3
// opcode groups (spec §9: "keep the opcode extension enum as a first-class type consumed by a single
// encode_opext helper. Do not duplicate the encoding across handlers.").
type OpExt byte

const (
	ExtNot  OpExt = 2 // F7 /2
	ExtNeg  OpExt = 3 // F7 /3
	ExtMul  OpExt = 4 // F7 /4 (unsigned multiply, RDX:RAX = RAX*r/m)
	ExtImul OpExt = 5 // F7 /5 (signed multiply, RDX:RAX = RAX*r/m)
	ExtDiv  OpExt = 6 // F7 /6 (unsigned divide)
	ExtIdiv OpExt = 7 // F7 /7 (signed divide)
	ExtRol  OpExt = 0 // D3/C1 /0
	ExtRor  OpExt = 1 // D3/C1 /1
	ExtShl  OpExt = 4 // D3/C1 /4
	ExtShr  OpExt = 5 // D3/C1 /5
	ExtSar  OpExt = 7 // D3/C1 /7
)

// EncodeOpExt emits an F7-class unary instruction (NOT/NEG/MUL/IMUL/DIV/IDIV) selecting ext via the
// ModR/M reg field (spec §9 "opcode extension enum").
func EncodeOpExt(op byte, ext OpExt, reg regalloc.Register, sizeBits int) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)
	w := sizeBits == 64
	needExtRM := needsRexExtend(reg)
	needByte := needsByteRex(reg, sizeBits)
	if w || needExtRM || needByte {
		out = append(out, rexByte(w, false, false, needExtRM))
	}
	out = append(out, op)
	out = append(out, modrm(0b11, byte(ext), byte(reg.Id()&7)))
	return out
}

// Not emits `not reg` (F7 /2).
func Not(reg regalloc.Register, sizeBits int) []byte { return EncodeOpExt(0xF7, ExtNot, reg, sizeBits) }

// Neg emits `neg reg` (F7 /3).
func Neg(reg regalloc.Register, sizeBits int) []byte { return EncodeOpExt(0xF7, ExtNeg, reg, sizeBits) }

// Idiv emits `idiv reg` (F7 /7): signed RDX:RAX / reg -> quotient RAX, remainder RDX.
func Idiv(reg regalloc.Register, sizeBits int) []byte {
	return EncodeOpExt(0xF7, ExtIdiv, reg, sizeBits)
}

// Div emits `div reg` (F7 /6): unsigned RDX:RAX / reg.
func Div(reg regalloc.Register, sizeBits int) []byte { return EncodeOpExt(0xF7, ExtDiv, reg, sizeBits) }

// Cqo emits CQO/CDQ: sign-extends RAX/EAX into RDX:RAX/EDX:EAX ahead of IDIV (spec §4.4).
func Cqo(sizeBits int) []byte {
	if sizeBits == 64 {
		return []byte{rexByte(true, false, false, false), 0x99}
	}
	return []byte{0x99}
}

// XorZero emits `xor edx, edx`, used ahead of unsigned DIV in place of CQO (spec §4.4).
func XorZero(reg regalloc.Register, sizeBits int) []byte {
	return Arith(OpXor, reg, reg, sizeBits)
}

// ShiftExt selects which shift/rotate the D3/C1 opcode group performs.
type ShiftExt = OpExt

// ShiftCL emits `<shl|shr|sar> reg, cl` (D3 /ext): count implicitly taken from CL (spec §4.4
// "move RHS to RCX; CL holds count").
func ShiftCL(ext ShiftExt, reg regalloc.Register, sizeBits int) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)
	w := sizeBits == 64
	needExtRM := needsRexExtend(reg)
	if w || needExtRM {
		out = append(out, rexByte(w, false, false, needExtRM))
	}
	out = append(out, 0xD3)
	out = append(out, modrm(0b11, byte(ext), byte(reg.Id()&7)))
	return out
}

// Cmp emits `cmp a, b` (reg,reg), setting EFLAGS for a following SETcc or Jcc.
func Cmp(a, b regalloc.Register, sizeBits int) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)
	w := sizeBits == 64
	needExtReg := needsRexExtend(b)
	needExtRM := needsRexExtend(a)
	if w || needExtReg || needExtRM {
		out = append(out, rexByte(w, needExtReg, false, needExtRM))
	}
	out = append(out, 0x39)
	out = append(out, modrm(0b11, byte(b.Id()&7), byte(a.Id()&7)))
	return out
}

// Test emits `test a, a`, used by ConditionalBranch to derive a zero/nonzero flag from a boolean
// value already resident in a register (spec §4.4).
func Test(a regalloc.Register, sizeBits int) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)
	w := sizeBits == 64
	needExt := needsRexExtend(a)
	if w || needExt {
		out = append(out, rexByte(w, needExt, false, needExt))
	}
	out = append(out, 0x85)
	out = append(out, modrm(0b11, byte(a.Id()&7), byte(a.Id()&7)))
	return out
}

// Cond is an x86 condition code selector for SETcc/Jcc.
type Cond byte

const (
	CondE  Cond = 0x4 // equal / zero
	CondNE Cond = 0x5
	CondL  Cond = 0xC // signed less
	CondLE Cond = 0xE
	CondG  Cond = 0xF
	CondGE Cond = 0xD
	CondB  Cond = 0x2 // unsigned below
	CondBE Cond = 0x6
	CondA  Cond = 0x7
	CondAE Cond = 0x3
)

// Setcc emits `setcc reg8` with a mandatory REX prefix so SPL/BPL/SIL/DIL are addressable even when
// none would otherwise be required (spec §4.1, §9 "always emit a REX prefix before SETcc").
func Setcc(cc Cond, reg regalloc.Register) []byte {
	var out []byte
	out = append(out, rexByte(false, false, false, needsRexExtend(reg)))
	out = append(out, 0x0F, 0x90+byte(cc))
	out = append(out, modrm(0b11, 0, byte(reg.Id()&7)))
	return out
}

// Movzx emits `movzx dst, src` widening an 8 or 16-bit value to 32 bits (spec §4.1). dst is always
// treated as a 32-bit destination (movzx has no 64-bit source encoding; callers needing 64-bit width
// rely on the implicit zero-extension of a 32-bit write).
func Movzx(dst, src regalloc.Register, fromBits int) []byte {
	var out []byte
	op2 := byte(0xB6)
	if fromBits == 16 {
		op2 = 0xB7
	}
	needExtReg := needsRexExtend(dst)
	needExtRM := needsRexExtend(src)
	needByte := fromBits == 8 && needsByteRex(src, 8)
	if needExtReg || needExtRM || needByte {
		out = append(out, rexByte(false, needExtReg, false, needExtRM))
	}
	out = append(out, 0x0F, op2)
	out = append(out, modrm(0b11, byte(dst.Id()&7), byte(src.Id()&7)))
	return out
}

// Movsx emits `movsx dst, src` (8->32, 16->32) or `movsxd dst, src` (32->64) (spec §4.1).
func Movsx(dst, src regalloc.Register, fromBits, toBits int) []byte {
	var out []byte
	if fromBits == 32 {
		// movsxd: 63 /r, REX.W for a 64-bit destination.
		out = append(out, rexByte(toBits == 64, needsRexExtend(dst), false, needsRexExtend(src)))
		out = append(out, 0x63)
		out = append(out, modrm(0b11, byte(dst.Id()&7), byte(src.Id()&7)))
		return out
	}
	op2 := byte(0xBE)
	if fromBits == 16 {
		op2 = 0xBF
	}
	w := toBits == 64
	needExtReg := needsRexExtend(dst)
	needExtRM := needsRexExtend(src)
	needByte := fromBits == 8 && needsByteRex(src, 8)
	if w || needExtReg || needExtRM || needByte {
		out = append(out, rexByte(w, needExtReg, false, needExtRM))
	}
	out = append(out, 0x0F, op2)
	out = append(out, modrm(0b11, byte(dst.Id()&7), byte(src.Id()&7)))
	return out
}

// PushReg emits `push reg` (50+r).
func PushReg(reg regalloc.Register) []byte {
	var out []byte
	if needsRexExtend(reg) {
		out = append(out, rexByte(false, false, false, true))
	}
	out = append(out, 0x50+byte(reg.Id()&7))
	return out
}

// PopReg emits `pop reg` (58+r).
func PopReg(reg regalloc.Register) []byte {
	var out []byte
	if needsRexExtend(reg) {
		out = append(out, rexByte(false, false, false, true))
	}
	out = append(out, 0x58+byte(reg.Id()&7))
	return out
}
