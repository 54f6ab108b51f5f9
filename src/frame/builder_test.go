package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irx64/src/ir"
)

func decl(name string, sizeBits int) ir.Instruction {
	return ir.New(ir.OpVariableDecl, 1,
		ir.IdentOperand(name), ir.TypeOperand(ir.TypeInt), ir.SizeOperand(sizeBits),
		ir.Int64Operand(0), ir.BoolOperand(false), ir.SizeOperand(0))
}

func TestBuildAssignsNegativeOffsetsInDeclarationOrder(t *testing.T) {
	body := []ir.Instruction{
		decl("a", 32),
		decl("b", 32),
		ir.New(ir.OpAdd, 2, ir.TempOperand(1), ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32), ir.IdentOperand("a"),
			ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32), ir.IdentOperand("b")),
	}
	scope, err := NewBuilder(false).Build(body, nil)
	require.NoError(t, err)

	oa, ok := scope.Offset("a")
	require.True(t, ok)
	ob, ok := scope.Offset("b")
	require.True(t, ok)
	ot, ok := scope.Offset("t1")
	require.True(t, ok)

	for _, o := range []int32{oa, ob, ot} {
		assert.LessOrEqual(t, o, int32(-8))
		assert.GreaterOrEqual(t, o, scope.ScopeStackSpace)
	}
	assert.Equal(t, int32(0), scope.FrameSize%16, "frame size must be 16-byte aligned")
}

func TestBuildRespectsExplicitAlignment(t *testing.T) {
	aligned := ir.New(ir.OpVariableDecl, 1,
		ir.IdentOperand("v"), ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32),
		ir.Int64Operand(0), ir.BoolOperand(false), ir.SizeOperand(128))
	scope, err := NewBuilder(false).Build([]ir.Instruction{aligned}, nil)
	require.NoError(t, err)

	off, ok := scope.Offset("v")
	require.True(t, ok)
	assert.Equal(t, int32(0), off%16, "alignas(16) must round the slot to a 16-byte boundary")
}

func TestWindowsReservesShadowSpaceWhenCallsOccur(t *testing.T) {
	body := []ir.Instruction{
		decl("a", 32),
		ir.New(ir.OpFunctionCall, 1, ir.IdentOperand("f")),
	}
	scope, err := NewBuilder(true).Build(body, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, scope.FrameSize, int32(32))
}

func TestReferenceParameterStoresPointerSize(t *testing.T) {
	param := ir.New(ir.OpVariableDecl, 1,
		ir.IdentOperand("x"), ir.TypeOperand(ir.TypeInt), ir.SizeOperand(32),
		ir.Int64Operand(0), ir.BoolOperand(true), ir.SizeOperand(0))
	scope, err := NewBuilder(false).Build(nil, []ir.Instruction{param})
	require.NoError(t, err)

	ref, ok := scope.Reference("x")
	require.True(t, ok)
	assert.Equal(t, ir.TypeInt, ref.ReferentType)
	assert.Equal(t, 64, scope.Size("x"), "home slot is pointer-sized regardless of referent width")
}
