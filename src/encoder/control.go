package encoder

import "irx64/src/regalloc"

// JmpRel32Placeholder emits the 5-byte unconditional jump `E9 00000000` with a zeroed rel32 field;
// the caller records a PendingBranch at the displacement's offset for BranchPatcher (spec §4.1,
// §4.5). Returns the full 5-byte instruction and the offset within it where the rel32 begins.
func JmpRel32Placeholder() (bytes []byte, dispOffset int) {
	return []byte{0xE9, 0, 0, 0, 0}, 1
}

// JccRel32Placeholder emits the 6-byte conditional jump `0F 8x 00000000`.
func JccRel32Placeholder(cc Cond) (bytes []byte, dispOffset int) {
	return []byte{0x0F, 0x80 + byte(cc), 0, 0, 0, 0}, 2
}

// PatchRel32 writes the little-endian rel32 displacement into buf at dispOffset (spec §4.5).
func PatchRel32(buf []byte, dispOffset int, rel32 int32) {
	u := uint32(rel32)
	buf[dispOffset+0] = byte(u)
	buf[dispOffset+1] = byte(u >> 8)
	buf[dispOffset+2] = byte(u >> 16)
	buf[dispOffset+3] = byte(u >> 24)
}

// CallReg emits `call reg` (FF /2).
func CallReg(reg regalloc.Register) []byte {
	var out []byte
	if needsRexExtend(reg) {
		out = append(out, rexByte(false, false, false, true))
	}
	out = append(out, 0xFF)
	out = append(out, modrm(0b11, 2, byte(reg.Id()&7)))
	return out
}

// CallRel32Placeholder emits the 5-byte `E8 00000000` direct call; the caller records a
// PendingGlobalRelocation against the callee's mangled name (spec §4.4 "Function call").
func CallRel32Placeholder() (bytes []byte, dispOffset int) {
	return []byte{0xE8, 0, 0, 0, 0}, 1
}

// Ret emits a bare `ret` (C3), used at the tail of the epilogue (spec §4.4 "Return").
func Ret() []byte { return []byte{0xC3} }

// Prologue emits `push rbp; mov rbp, rsp; sub rsp, frameSize` (spec §4.4 "FunctionDecl (prologue)").
func Prologue(frameSize int32) []byte {
	var out []byte
	out = append(out, PushReg(regalloc.RBP)...)
	out = append(out, movRspToRbp()...)
	if frameSize != 0 {
		out = append(out, subRspImm32(frameSize)...)
	}
	return out
}

// Epilogue emits `mov rsp, rbp; pop rbp; ret` (spec §4.4 "Return").
func Epilogue() []byte {
	var out []byte
	out = append(out, movRbpToRsp()...)
	out = append(out, PopReg(regalloc.RBP)...)
	out = append(out, Ret()...)
	return out
}

func movRspToRbp() []byte {
	// mov rbp, rsp: REX.W 8B ModRM(mod=11, reg=rbp, rm=rsp) -- load direction, rbp <- rsp.
	return []byte{rexByte(true, false, false, false), 0x8B, modrm(0b11, byte(regalloc.RBP.Id()), byte(regalloc.RSP.Id()))}
}

func movRbpToRsp() []byte {
	// mov rsp, rbp: REX.W 89 ModRM(mod=11, reg=rbp, rm=rsp) -- store direction, rsp <- rbp.
	return []byte{rexByte(true, false, false, false), 0x89, modrm(0b11, byte(regalloc.RBP.Id()), byte(regalloc.RSP.Id()))}
}

func subRspImm32(imm int32) []byte {
	out := []byte{rexByte(true, false, false, false), 0x81, modrm(0b11, 5, byte(regalloc.RSP.Id()))}
	out = append(out, le32(imm)...)
	return out
}

// AddRspImm32 emits `add rsp, imm32`, used to tear down a call's stack-argument area after the call
// returns (spec §4.4 "spill remainder to stack slots").
func AddRspImm32(imm int32) []byte {
	out := []byte{rexByte(true, false, false, false), 0x81, modrm(0b11, 0, byte(regalloc.RSP.Id()))}
	out = append(out, le32(imm)...)
	return out
}

// Nop emits a single-byte NOP, used to align function entry points to 16 bytes (spec §4.4
// "FunctionDecl (prologue)... Align to 16 bytes with NOPs").
func Nop() []byte { return []byte{0x90} }
