package encoder

import "irx64/src/regalloc"

// memOperand computes the ModR/M mod/rm fields, optional SIB byte and displacement for an
// indirect/base+displacement memory operand, handling the two special cases of spec §4.1: base
// r/m=100 (RSP/R12) requires a SIB byte, and base r/m=101 (RBP/R13) requires a displacement even for
// offset 0 (mod=00,r/m=101 would otherwise mean RIP-relative).
func memOperand(base regalloc.Register, offset int32) (mod, rm byte, sibBytes, disp []byte) {
	low3 := byte(base.Id() & 7)
	forceDisp := low3 == 5 // RBP or R13.
	if low3 == 4 {
		// RSP or R12: SIB required, index=100 (none), scale irrelevant.
		sibBytes = []byte{sib(0, 0b100, low3)}
		rm = 0b100
	} else {
		rm = low3
	}
	if offset == 0 && !forceDisp {
		mod = 0b00
		return
	}
	mod, disp = encodeDisp(offset)
	return
}

// needsByteRex reports whether an 8-bit operand naming reg requires a REX prefix purely to select
// SPL/BPL/SIL/DIL instead of AH/CH/DH/BH (spec §4.1 "SETcc requires a REX prefix...even when none
// would otherwise be needed").
func needsByteRex(reg regalloc.Register, sizeBits int) bool {
	return sizeBits == 8 && reg.Id() >= 4 && reg.Id() < 8
}

// movOpcodes returns the MOV load and store opcode bytes for general purpose register<->memory
// moves of the given width.
func movOpcodes(sizeBits int) (load, store byte) {
	if sizeBits == 8 {
		return 0x8A, 0x88
	}
	return 0x8B, 0x89
}

// LoadFrame emits `mov reg, [rbp+offset]` (or the 8/16-bit equivalent), sized per sizeBits. RBP
// addressing always carries a displacement byte, even for offset 0 (spec §4.1).
func LoadFrame(reg regalloc.Register, offset int32, sizeBits int) []byte {
	return loadStoreBase(regalloc.RBP, reg, offset, sizeBits, true)
}

// StoreFrame emits `mov [rbp+offset], reg`.
func StoreFrame(reg regalloc.Register, offset int32, sizeBits int) []byte {
	return loadStoreBase(regalloc.RBP, reg, offset, sizeBits, false)
}

// LoadIndirect emits `mov reg, [base+offset]` through an arbitrary base register (array/pointer
// dereference, spec §4.4 "array access / member access").
func LoadIndirect(base, reg regalloc.Register, offset int32, sizeBits int) []byte {
	return loadStoreBase(base, reg, offset, sizeBits, true)
}

// StoreIndirect emits `mov [base+offset], reg`.
func StoreIndirect(base, reg regalloc.Register, offset int32, sizeBits int) []byte {
	return loadStoreBase(base, reg, offset, sizeBits, false)
}

func loadStoreBase(base, reg regalloc.Register, offset int32, sizeBits int, isLoad bool) []byte {
	var out []byte
	out = append(out, sizePrefix(sizeBits)...)

	load, store := movOpcodes(sizeBits)
	op := store
	if isLoad {
		op = load
	}

	w := sizeBits == 64
	needExtReg := needsRexExtend(reg)
	needExtBase := needsRexExtend(base)
	needByte := needsByteRex(reg, sizeBits)
	if w || needExtReg || needExtBase || needByte {
		out = append(out, rexByte(w, needExtReg, false, needExtBase))
	}

	out = append(out, op)
	mod, rm, sibBytes, disp := memOperand(base, offset)
	out = append(out, modrm(mod, byte(reg.Id()&7), rm))
	out = append(out, sibBytes...)
	out = append(out, disp...)
	return out
}

// LEAFrame emits `lea reg, [rbp+offset]` (spec §4.1 "address-of via LEA").
func LEAFrame(reg regalloc.Register, offset int32) []byte {
	return LEABase(regalloc.RBP, reg, offset)
}

// LEABase emits `lea reg, [base+offset]` for an arbitrary base register (array element address).
func LEABase(base, reg regalloc.Register, offset int32) []byte {
	var out []byte
	needExtReg := needsRexExtend(reg)
	needExtBase := needsRexExtend(base)
	out = append(out, rexByte(true, needExtReg, false, needExtBase))
	out = append(out, 0x8D)
	mod, rm, sibBytes, disp := memOperand(base, offset)
	out = append(out, modrm(mod, byte(reg.Id()&7), rm))
	out = append(out, sibBytes...)
	out = append(out, disp...)
	return out
}

// LEAIndexed emits `lea dst, [base + index*scale + offset]`, used for array element addressing with
// a variable index after the index has been folded into a constant scale encoding (spec §4.4 "array
// access"). scale must be 1, 2, 4 or 8.
func LEAIndexed(dst, base, index regalloc.Register, scale byte, offset int32) []byte {
	var out []byte
	needExtReg := needsRexExtend(dst)
	needExtBase := needsRexExtend(base)
	needExtIndex := needsRexExtend(index)
	out = append(out, rexByte(true, needExtReg, needExtIndex, needExtBase))
	out = append(out, 0x8D)

	ss := scaleBits(scale)
	baseLow3 := byte(base.Id() & 7)
	forceDisp := baseLow3 == 5
	var mod byte
	var disp []byte
	if offset == 0 && !forceDisp {
		mod = 0b00
	} else {
		mod, disp = encodeDisp(offset)
	}
	out = append(out, modrm(mod, byte(dst.Id()&7), 0b100))
	out = append(out, sib(ss, byte(index.Id()&7), baseLow3))
	out = append(out, disp...)
	return out
}

func scaleBits(scale byte) byte {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}
