package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"irx64/src/regalloc"
)

func TestPrologueMatchesReturnLiteralScenario(t *testing.T) {
	// spec.md §8 scenario 1: FunctionDecl "main" prologue disassembles to 55 48 8B EC.
	assert.Equal(t, []byte{0x55, 0x48, 0x8B, 0xEC}, Prologue(0))
}

func TestEpilogueMatchesReturnLiteralScenario(t *testing.T) {
	assert.Equal(t, []byte{0x48, 0x89, 0xEC, 0x5D, 0xC3}, Epilogue())
}

func TestMovImm32MatchesReturnLiteralScenario(t *testing.T) {
	// spec.md §8 scenario 1: mov eax, 42 disassembles to B8 2A 00 00 00.
	assert.Equal(t, []byte{0xB8, 0x2A, 0x00, 0x00, 0x00}, MovImm32(regalloc.RAX, 42))
}

func TestRBPLoadAlwaysCarriesDisplacement(t *testing.T) {
	// offset 0 must still carry a disp8 byte because mod=00,r/m=101 means RIP-relative (spec §4.1).
	bytes := LoadFrame(regalloc.RAX, 0, 32)
	assert.NotEmpty(t, bytes)
	mod, _, _, disp := memOperand(regalloc.RBP, 0)
	assert.NotEqual(t, byte(0b00), mod)
	assert.Len(t, disp, 1)
}

func TestRSPBaseRequiresSIB(t *testing.T) {
	mod, rm, sibBytes, _ := memOperand(regalloc.RSP, 8)
	assert.Equal(t, byte(0b100), rm)
	assert.Len(t, sibBytes, 1)
	_ = mod
}

func TestSetccAlwaysEmitsRex(t *testing.T) {
	// RAX needs no REX for most instructions, but SETcc must still carry one (spec §4.1, §9).
	bytes := Setcc(CondE, regalloc.RAX)
	assert.Equal(t, byte(0x40), bytes[0]&0xF0)
}

func TestReg2RegMovSizes(t *testing.T) {
	b64 := MovRegToReg(regalloc.RCX, regalloc.RAX, 64)
	assert.Equal(t, byte(0x48), b64[0]) // REX.W
	b16 := MovRegToReg(regalloc.RCX, regalloc.RAX, 16)
	assert.Equal(t, byte(0x66), b16[0]) // operand-size override
}

func TestCallRel32PlaceholderLayout(t *testing.T) {
	bytes, dispOffset := CallRel32Placeholder()
	assert.Equal(t, byte(0xE8), bytes[0])
	assert.Equal(t, 1, dispOffset)
	assert.Len(t, bytes, 5)
}

func TestPatchRel32WritesLittleEndian(t *testing.T) {
	buf, off := JmpRel32Placeholder()
	PatchRel32(buf, off, -10)
	assert.Equal(t, byte(0xE9), buf[0])
	assert.Equal(t, []byte{0xF6, 0xFF, 0xFF, 0xFF}, buf[1:5])
}
