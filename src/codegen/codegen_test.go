package codegen

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irx64/src/frame"
	"irx64/src/ir"
	"irx64/src/ir/parser"
	"irx64/src/object"
	"irx64/src/regalloc"
)

func newTestContext(scope *frame.VariableScope) *Context {
	return NewContext("f", false, scope, object.NewMemWriter(), zerolog.Nop())
}

func TestReturnLiteralEmitsExactPrologueMovEpilogue(t *testing.T) {
	src := strings.NewReader("FunctionDecl %main i0\nReturn type:i32 size:32 i42\n")
	program, err := parser.Parse(src)
	require.NoError(t, err)

	writer := object.NewMemWriter()
	orch := NewOrchestrator(false, writer)
	require.NoError(t, orch.Convert(program))

	require.Len(t, writer.Functions, 1)
	assert.Equal(t, int32(0), writer.Functions[0].FrameSize, "a function with no locals needs no frame space")
	assert.Equal(t, 14, writer.Functions[0].Length)

	want := []byte{
		0x55,                   // push rbp
		0x48, 0x8B, 0xEC,       // mov rbp, rsp
		0xB8, 0x2A, 0x00, 0x00, 0x00, // mov eax, 42
		0x48, 0x89, 0xEC, // mov rsp, rbp
		0x5D,             // pop rbp
		0xC3,             // ret
	}
	assert.Equal(t, want, writer.Text)
}

func TestAddTwoLocalsFrameSizeAtLeast16(t *testing.T) {
	src := strings.NewReader(strings.Join([]string{
		"FunctionDecl %main i0",
		"VariableDecl %a type:i32 size:32 i0 bfalse size:0",
		"VariableDecl %b type:i32 size:32 i0 bfalse size:0",
		"Assign %a type:i32 size:32 i3",
		"Assign %b type:i32 size:32 i5",
		"Add t1 type:i32 size:32 %a type:i32 size:32 %b",
		"Return type:i32 size:32 t1",
		"",
	}, "\n"))
	program, err := parser.Parse(src)
	require.NoError(t, err)

	writer := object.NewMemWriter()
	orch := NewOrchestrator(false, writer)
	require.NoError(t, orch.Convert(program))

	require.Len(t, writer.Functions, 1)
	frameSize := writer.Functions[0].FrameSize
	assert.GreaterOrEqual(t, frameSize, int32(16), "two 32-bit locals plus a temp need at least 16 bytes of frame")
	assert.Equal(t, int32(0), frameSize%16, "frame size must stay 16-byte aligned")
}

func TestForwardBranchPatchesExactRel32(t *testing.T) {
	scope := frame.NewVariableScope()
	scope.Offsets["cond"] = -8
	scope.Sizes["cond"] = 32
	c := newTestContext(scope)

	cb := ir.New(ir.OpConditionalBranch, 1,
		ir.IdentOperand("cond"), ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32),
		ir.LabelOperand("then"), ir.LabelOperand("else"))
	require.NoError(t, handleConditionalBranch(c, cb))

	require.NoError(t, handleBranch(c, ir.New(ir.OpBranch, 2, ir.LabelOperand("done"))))
	require.NoError(t, handleLabel(c, ir.New(ir.OpLabel, 3, ir.LabelOperand("then"))))
	require.NoError(t, handleLabel(c, ir.New(ir.OpLabel, 4, ir.LabelOperand("else"))))
	require.NoError(t, handleLabel(c, ir.New(ir.OpLabel, 5, ir.LabelOperand("done"))))

	pending := append([]PendingBranch(nil), c.PendingBranches...)
	require.Len(t, pending, 2, "conditional branch emits one JE-to-false-target placeholder (true path falls through), plus the unconditional jump")

	require.NoError(t, c.PatchBranches())

	for _, b := range pending {
		target, ok := c.Labels[b.Target]
		require.True(t, ok)
		wantRel := int32(target - b.NextIP)
		gotRel := int32(c.Code[b.DispOffset]) | int32(c.Code[b.DispOffset+1])<<8 |
			int32(c.Code[b.DispOffset+2])<<16 | int32(c.Code[b.DispOffset+3])<<24
		assert.Equal(t, wantRel, gotRel, "patched rel32 for branch to %s must equal target-NextIP", b.Target)
	}
}

func TestIntegerDivideEmitsCqoBeforeIdivAndUnbindsRDX(t *testing.T) {
	scope := frame.NewVariableScope()
	scope.Offsets["t1"] = -16
	scope.Sizes["t1"] = 32
	c := newTestContext(scope)

	in := ir.New(ir.OpDiv, 1,
		ir.TempOperand(1), ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32), ir.Int64Operand(-10),
		ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32), ir.Int64Operand(3))
	require.NoError(t, handleArithmetic(c, in))

	cqoIdx := indexOfByte(c.Code, 0x99)
	require.GreaterOrEqual(t, cqoIdx, 0, "signed divide must sign-extend EAX into EDX:EAX via CQO/CDQ before IDIV")

	idivIdx := -1
	for i := cqoIdx + 1; i < len(c.Code); i++ {
		if c.Code[i] == 0xF7 && i+1 < len(c.Code) && (c.Code[i+1]>>3)&7 == 7 {
			idivIdx = i
			break
		}
	}
	assert.GreaterOrEqual(t, idivIdx, 0, "IDIV (F7 /7) must follow CQO")

	assert.Equal(t, regalloc.NoOffset, c.Alloc.Offset(regalloc.RDX), "RDX never mirrors a named slot; it only holds the hardware-defined remainder")

	resultOffset, ok := c.Scope.Offset("t1")
	require.True(t, ok)
	assert.Equal(t, regalloc.RAX, c.Alloc.TryGetRegisterForOffset(resultOffset, regalloc.ClassGP), "quotient lands in RAX and is bound to the result's home slot")
}

func TestVirtualCallEmitsLoadVtableLoadSlotAndCallReg(t *testing.T) {
	scope := frame.NewVariableScope()
	scope.Offsets["obj"] = -8
	scope.Sizes["obj"] = 64
	scope.Offsets["t1"] = -16
	scope.Sizes["t1"] = 64
	c := newTestContext(scope)

	in := ir.New(ir.OpVirtualCall, 1,
		ir.TempOperand(1), ir.Int64Operand(2), ir.TypeOperand(ir.TypePointer), ir.Int64Operand(1),
		ir.TypeOperand(ir.TypeFunctionPointer), ir.SizeOperand(64), ir.IdentOperand("obj"))
	require.NoError(t, handleVirtualCall(c, in))

	require.Len(t, c.PendingRelocs, 0, "a virtual call resolves its target at runtime through the vtable, not via a symbol relocation")

	callIdx := -1
	for i := 0; i+1 < len(c.Code); i++ {
		if c.Code[i] == 0xFF && (c.Code[i+1]>>3)&7 == 2 {
			callIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, callIdx, 0, "must emit a register-indirect CALL (FF /2) against the resolved vtable slot")

	loadCount := 0
	for i := 0; i+2 < callIdx; i++ {
		if c.Code[i] == 0x48 && c.Code[i+1] == 0x8B {
			loadCount++
		}
	}
	assert.GreaterOrEqual(t, loadCount, 2, "expects a load of the vtable pointer from [this+0] and a load of the target from [vtable+8*slot]")
}

func TestReferenceParameterStoresThroughPointer(t *testing.T) {
	scope := frame.NewVariableScope()
	scope.Offsets["x"] = 16 // a stack-passed reference parameter's home slot holds a pointer.
	scope.Sizes["x"] = 64
	scope.References["x"] = frame.ReferenceInfo{ReferentType: ir.TypeInt, ReferentBits: 32}
	c := newTestContext(scope)

	assign := ir.New(ir.OpAssign, 1, ir.IdentOperand("x"), ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32), ir.Int64Operand(7))
	require.NoError(t, handleAssign(c, assign))

	loadPtrIdx := -1
	for i := 0; i+2 < len(c.Code); i++ {
		if c.Code[i] == 0x48 && c.Code[i+1] == 0x8B {
			loadPtrIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, loadPtrIdx, 0, "assigning through a reference slot must first load the pointer it holds")

	storeIdx := -1
	for i := loadPtrIdx + 1; i+1 < len(c.Code); i++ {
		if c.Code[i] == 0x89 {
			storeIdx = i
			break
		}
	}
	assert.GreaterOrEqual(t, storeIdx, 0, "the value must be stored through the loaded pointer, not into x's own slot")

	assert.Equal(t, regalloc.NoOffset, c.Alloc.Offset(regalloc.RAX), "the referent store releases its scratch register rather than binding it to x's offset")
}

func indexOfByte(b []byte, v byte) int {
	for i, x := range b {
		if x == v {
			return i
		}
	}
	return -1
}
