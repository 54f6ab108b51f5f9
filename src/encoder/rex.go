// Package encoder is the stateless, pure byte-sequence producer of spec §4.1: every function here
// computes REX (W/R/X/B), opcode, ModR/M, optional SIB and displacement, and nothing else. Encoders
// own the bit-level correctness of x86-64 so the lowering handlers above can treat instruction
// emission as an algebra (spec §4.1 rationale). Grounded on the REX/ModR/M bit math used throughout
// other_examples' x86 encoders (e.g. xyproto-vibe67's mov.go/imul.go register-encoding bit shifts).
package encoder

import "irx64/src/regalloc"

// rexByte computes the REX prefix byte: 0x40 | W<<3 | R<<2 | X<<1 | B (spec glossary "REX prefix").
func rexByte(w, r, x, b bool) byte {
	rex := byte(0x40)
	if w {
		rex |= 0x08
	}
	if r {
		rex |= 0x04
	}
	if x {
		rex |= 0x02
	}
	if b {
		rex |= 0x01
	}
	return rex
}

// needsRexExtend reports whether encoding reg in the reg or r/m field of ModR/M requires a REX prefix
// purely to extend the register number (id >= 8), independent of operand size.
func needsRexExtend(reg regalloc.Register) bool {
	return reg.Id() >= 8
}

// modrm packs mod (2 bits), reg (3 bits) and rm (3 bits) into a single ModR/M byte (spec glossary
// "ModR/M").
func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

// sib packs scale (2 bits), index (3 bits) and base (3 bits) into a SIB byte (spec glossary "SIB"),
// required whenever ModR/M's r/m field is 100 (RSP/R12).
func sib(scale, index, base byte) byte {
	return (scale << 6) | ((index & 7) << 3) | (base & 7)
}

// encodeDisp returns the displacement bytes for offset: 1 byte if it fits signed 8-bit, else 4
// bytes little-endian (spec §4.1 "8-bit if fits signed, else 32-bit"). mod is the corresponding
// ModR/M mod field value (0b01 for disp8, 0b10 for disp32).
func encodeDisp(offset int32) (mod byte, bytes []byte) {
	if offset >= -128 && offset <= 127 {
		return 0b01, []byte{byte(int8(offset))}
	}
	return 0b10, le32(offset)
}

func le32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func le64(v int64) []byte {
	u := uint64(v)
	return []byte{
		byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24),
		byte(u >> 32), byte(u >> 40), byte(u >> 48), byte(u >> 56),
	}
}

// sizePrefix returns the 0x66 operand-size override prefix needed for 16-bit GP operations.
func sizePrefix(sizeBits int) []byte {
	if sizeBits == 16 {
		return []byte{0x66}
	}
	return nil
}
