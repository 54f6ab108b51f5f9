package codegen

import "irx64/src/ir"

// handlerFunc lowers a single IR instruction against ctx, emitting zero or more machine-code bytes
// and updating the allocator/scope bindings (spec §4.4).
type handlerFunc func(ctx *Context, in ir.Instruction) error

// dispatch maps every Opcode to its lowering handler. Built once; Lower consults it per instruction.
// The ~40 arithmetic/comparison opcodes collapse onto one shared handler (spec §4.4's "shared operand
// setup" archetype); the remainder get one handler each, grouped by file: function.go
// (VariableDecl/Return/scope markers; FunctionDecl is handled by the Orchestrator), branch.go (control flow), calls.go, memory.go (arrays/structs/
// pointers), globals.go, heap.go, rtti.go, unary.go (unary/conversion/inc-dec/assign).
var dispatch = map[ir.Opcode]handlerFunc{
	ir.OpVariableDecl: handleVariableDecl,
	ir.OpScopeBegin:   handleScopeMarker,
	ir.OpScopeEnd:     handleScopeMarker,
	ir.OpReturn:       handleReturn,

	ir.OpFunctionCall:    handleFunctionCall,
	ir.OpConstructorCall: handleConstructorCall,
	ir.OpDestructorCall:  handleDestructorCall,
	ir.OpVirtualCall:     handleVirtualCall,
	ir.OpFunctionAddress: handleFunctionAddress,
	ir.OpIndirectCall:    handleIndirectCall,

	ir.OpAdd: handleArithmetic, ir.OpSub: handleArithmetic, ir.OpMul: handleArithmetic,
	ir.OpDiv: handleArithmetic, ir.OpMod: handleArithmetic,
	ir.OpAddU: handleArithmetic, ir.OpSubU: handleArithmetic, ir.OpMulU: handleArithmetic,
	ir.OpDivU: handleArithmetic, ir.OpModU: handleArithmetic,
	ir.OpAddF: handleArithmetic, ir.OpSubF: handleArithmetic, ir.OpMulF: handleArithmetic, ir.OpDivF: handleArithmetic,
	ir.OpBitwiseAnd: handleArithmetic, ir.OpBitwiseOr: handleArithmetic, ir.OpBitwiseXor: handleArithmetic,
	ir.OpShiftLeft: handleArithmetic, ir.OpShiftRightSigned: handleArithmetic, ir.OpShiftRightUnsigned: handleArithmetic,
	ir.OpCmpEQ: handleArithmetic, ir.OpCmpNE: handleArithmetic, ir.OpCmpLT: handleArithmetic,
	ir.OpCmpLE: handleArithmetic, ir.OpCmpGT: handleArithmetic, ir.OpCmpGE: handleArithmetic,
	ir.OpCmpLTU: handleArithmetic, ir.OpCmpLEU: handleArithmetic, ir.OpCmpGTU: handleArithmetic, ir.OpCmpGEU: handleArithmetic,
	ir.OpCmpEQF: handleArithmetic, ir.OpCmpNEF: handleArithmetic, ir.OpCmpLTF: handleArithmetic,
	ir.OpCmpLEF: handleArithmetic, ir.OpCmpGTF: handleArithmetic, ir.OpCmpGEF: handleArithmetic,

	ir.OpLogicalNot: handleUnary, ir.OpBitwiseNot: handleUnary, ir.OpNegate: handleUnary,

	ir.OpSignExtend: handleConversion, ir.OpZeroExtend: handleConversion, ir.OpTruncate: handleConversion,

	ir.OpCompoundAssign: handleCompoundAssign,
	ir.OpAssign:          handleAssign,

	ir.OpPreInc: handleIncDec, ir.OpPostInc: handleIncDec, ir.OpPreDec: handleIncDec, ir.OpPostDec: handleIncDec,

	ir.OpLabel:              handleLabel,
	ir.OpBranch:             handleBranch,
	ir.OpConditionalBranch:  handleConditionalBranch,
	ir.OpLoopBegin:          handleLoopMarker,
	ir.OpLoopEnd:            handleLoopMarker,
	ir.OpBreak:              handleBreakContinue,
	ir.OpContinue:           handleBreakContinue,

	ir.OpArrayAccess:  handleArrayAccess,
	ir.OpArrayStore:   handleArrayStore,
	ir.OpMemberAccess: handleMemberAccess,
	ir.OpMemberStore:  handleMemberStore,
	ir.OpAddressOf:    handleAddressOf,
	ir.OpDereference:  handleDereference,

	ir.OpHeapAlloc:      handleHeapAlloc,
	ir.OpHeapFree:       handleHeapFree,
	ir.OpHeapFreeArray:  handleHeapFreeArray,
	ir.OpPlacementNew:   handlePlacementNew,

	ir.OpTypeid:       handleTypeid,
	ir.OpDynamicCast:  handleDynamicCast,

	ir.OpGlobalVariableDecl: handleGlobalVariableDecl,
	ir.OpGlobalLoad:         handleGlobalLoad,
	ir.OpGlobalStore:        handleGlobalStore,

	ir.OpStringLiteral: handleStringLiteral,
}

// Lower dispatches a single instruction to its registered handler (spec §4.4 "the orchestrator
// dispatches on Opcode to a lowering handler"). FunctionDecl is handled specially by the Orchestrator
// (it drives prologue emission and Context construction) and never reaches Lower directly.
func Lower(c *Context, in ir.Instruction) error {
	h, ok := dispatch[in.Op]
	if !ok {
		return unknownOpcodeError(in.Op)
	}
	c.Log.Debug().Str("func", c.FuncName).Int("line", in.Line).Int("offset", c.Offset()).Msg(in.Op.String())
	spillsBefore := c.Alloc.Spills()
	if err := h(c, in); err != nil {
		return err
	}
	if spilled := c.Alloc.Spills() - spillsBefore; spilled > 0 {
		c.Log.Warn().Str("func", c.FuncName).Int("line", in.Line).Int("spills", spilled).Msg("register pressure forced a spill")
	}
	return nil
}
