package frame

import (
	"irx64/src/ir"
)

// stackAlign is the ABI-mandated final frame alignment (spec §4.3, §6).
const stackAlign = 16

// shadowSpaceBytes is the Windows x64 home-storage reservation a function that calls anything must
// reserve (spec §4.3 Phase A; System V reserves none).
const shadowSpaceBytes = 32

// VariableDecl operand layout (fixed contract, spec §3/§4.3):
//
//	[0] name (Identifier)
//	[1] type (Type)
//	[2] element size in bits (Size)
//	[3] array element count (IntLiteral; 0 means scalar, not array)
//	[4] is-reference (Bool)
//	[5] optional explicit alignment in bits (Size; 0 means "use natural alignment")
const (
	declOperandName = iota
	declOperandType
	declOperandSize
	declOperandArrayCount
	declOperandIsReference
	declOperandAlign
)

// pendingVar is the Phase A record for one VariableDecl, carried into Phase B in declaration order.
type pendingVar struct {
	name      string
	typ       ir.TypeTag
	sizeBytes int32
	alignment int32
	isRef     bool
	refType   ir.TypeTag
	refBits   int
}

// Builder runs the two-phase per-function frame analysis of spec §4.3.
type Builder struct {
	IsWindows bool // selects shadow-space reservation and stack-parameter base.
}

// NewBuilder returns a Builder for the given target OS's calling convention.
func NewBuilder(isWindows bool) *Builder {
	return &Builder{IsWindows: isWindows}
}

// Build walks body (one function's IR instructions after its FunctionDecl and parameter
// descriptors, up to the next FunctionDecl or end of stream) and returns the
// populated VariableScope. params lists the function's parameter VariableDecl-shaped descriptors, in
// declaration order, for Phase B's stack-parameter assignment.
func (b *Builder) Build(body []ir.Instruction, params []ir.Instruction) (*VariableScope, error) {
	scope := NewVariableScope()
	scope.ParamCount = len(params)

	// Phase A: size discovery.
	var locals []pendingVar
	callsAnything := false
	for _, in := range body {
		switch in.Op {
		case ir.OpVariableDecl:
			pv, err := declToPending(in)
			if err != nil {
				return nil, err
			}
			locals = append(locals, pv)
		case ir.OpFunctionCall, ir.OpConstructorCall, ir.OpDestructorCall, ir.OpVirtualCall,
			ir.OpIndirectCall, ir.OpHeapAlloc, ir.OpHeapFree, ir.OpHeapFreeArray:
			callsAnything = true
		}
		if name, bits, ok := resultTemp(in); ok {
			if _, seen := scope.Sizes[name]; !seen {
				scope.Sizes[name] = bits
				locals = append(locals, pendingVar{
					name:      name,
					typ:       ir.TypeInt,
					sizeBytes: int32(bits / 8),
					alignment: alignFor(bits/8, 0),
				})
			}
		}
	}

	// Phase B: slot assignment, declaration order, offset 0 downward.
	var offset int32
	for _, v := range locals {
		align := v.alignment
		if align < 8 {
			align = 8
		}
		offset = roundDownTo(offset, align)
		offset -= v.sizeBytes
		scope.Offsets[v.name] = offset
		if v.sizeBytes > 0 {
			scope.Sizes[v.name] = int(v.sizeBytes * 8)
		}
		if v.isRef {
			scope.References[v.name] = ReferenceInfo{ReferentType: v.refType, ReferentBits: v.refBits}
		}
	}
	scope.ScopeStackSpace = offset

	// Stack-passed parameters: first N (4 Windows / 6 SysV) arrive in registers and are spilled to
	// negative-offset home slots by the prologue (spec §4.4 FunctionDecl); any beyond that arrive on
	// the caller's stack at [rbp+16+8k] and never get a negative slot.
	regParamCount := 6
	if b.IsWindows {
		regParamCount = 4
	}
	for i, p := range params {
		pv, err := declToPending(p)
		if err != nil {
			return nil, err
		}
		if i < regParamCount {
			align := pv.alignment
			if align < 8 {
				align = 8
			}
			offset = roundDownTo(offset, align)
			offset -= 8 // home slots are always a full 8-byte GP/XMM spill regardless of declared width.
			scope.Offsets[pv.name] = offset
			scope.Sizes[pv.name] = int(pv.sizeBytes * 8)
			if pv.isRef {
				scope.References[pv.name] = ReferenceInfo{ReferentType: pv.refType, ReferentBits: pv.refBits}
			}
		} else {
			k := int32(i - regParamCount)
			scope.Offsets[pv.name] = 16 + 8*k
			scope.Sizes[pv.name] = int(pv.sizeBytes * 8)
		}
	}
	scope.ScopeStackSpace = offset

	frameSize := -offset
	paramBytes := int32(len(params) * 8)
	if paramBytes > frameSize {
		frameSize = paramBytes
	}
	if callsAnything && b.IsWindows {
		frameSize += shadowSpaceBytes
	}
	if frameSize < 0 {
		frameSize = 0
	}
	scope.FrameSize = align16(frameSize)

	return scope, nil
}

func declToPending(in ir.Instruction) (pendingVar, error) {
	if err := in.RequireOperandCount(6); err != nil {
		// Array count / reference / align operands are optional in hand-written textual IR; accept
		// a shorter form and default the trailing fields.
		if len(in.Operands) < 3 {
			return pendingVar{}, err
		}
	}
	name, err := in.Operand(declOperandName)
	if err != nil {
		return pendingVar{}, err
	}
	typ, err := in.Operand(declOperandType)
	if err != nil {
		return pendingVar{}, err
	}
	size, err := in.Operand(declOperandSize)
	if err != nil {
		return pendingVar{}, err
	}
	elemBytes := int32(size.SizeBits / 8)
	if elemBytes == 0 {
		elemBytes = 8
	}

	count := int64(0)
	if len(in.Operands) > declOperandArrayCount {
		if o, err := in.Operand(declOperandArrayCount); err == nil && o.Kind == ir.OperandIntLiteral {
			count = o.Int
		}
	}
	isRef := false
	if len(in.Operands) > declOperandIsReference {
		if o, err := in.Operand(declOperandIsReference); err == nil && o.Kind == ir.OperandBoolLiteral {
			isRef = o.Bool
		}
	}
	alignBits := 0
	if len(in.Operands) > declOperandAlign {
		if o, err := in.Operand(declOperandAlign); err == nil && o.Kind == ir.OperandSize {
			alignBits = o.SizeBits
		}
	}

	sizeBytes := elemBytes
	if count > 1 {
		sizeBytes = elemBytes * int32(count)
	}
	if isRef {
		sizeBytes = 8 // a reference is stored as a pointer, regardless of referent size (spec §3).
	}

	return pendingVar{
		name:      name.Name,
		typ:       typ.Type,
		sizeBytes: sizeBytes,
		alignment: alignFor(elemBytes, alignBits),
		isRef:     isRef,
		refType:   typ.Type,
		refBits:   size.SizeBits,
	}, nil
}

// alignFor computes natural alignment = max(8, explicit alignas(n)) per spec §4.3 step 1.
func alignFor(elemBytes int32, explicitAlignBits int) int32 {
	align := int32(8)
	if explicitAlignBits > 0 {
		a := int32(explicitAlignBits / 8)
		if a > align {
			align = a
		}
	} else if elemBytes > align {
		align = elemBytes
	}
	return align
}

// roundDownTo rounds off toward negative infinity to a multiple of align (spec §4.3 step 2: "round
// the running offset down to a multiple of alignment, negative direction").
func roundDownTo(off, align int32) int32 {
	if align <= 0 {
		return off
	}
	r := off % align
	if r != 0 {
		off -= align + r // off is <= 0 throughout Phase B; r has off's sign, so this always rounds down.
	}
	return off
}

func align16(n int32) int32 {
	return (n + (stackAlign - 1)) &^ (stackAlign - 1)
}

// resultTemp reports whether in produces a value into a Temp home slot, and if so that Temp's name
// and bit width. Every opcode that can write operand[0] as a Temp needs a slot reserved here in Phase
// A — codegen's storeResult (operand.go) looks the slot up by name and panics-by-error if Phase A
// never saw it (spec §4.3, §4.4).
func resultTemp(in ir.Instruction) (string, int, bool) {
	if len(in.Operands) == 0 || in.Operands[0].Kind != ir.OperandTemp {
		return "", 0, false
	}
	name := in.Operands[0].Temp.Name()

	switch {
	case in.Op.IsComparison():
		return name, 8, true // SETcc writes a single byte; widened at use sites, not at the home slot.
	case in.Op.IsArithmetic():
		if len(in.Operands) > 2 && in.Operands[2].Kind == ir.OperandSize {
			return name, in.Operands[2].SizeBits, true
		}
		return name, 64, true
	case in.Op == ir.OpLogicalNot:
		return name, 8, true
	case in.Op == ir.OpBitwiseNot, in.Op == ir.OpNegate:
		if len(in.Operands) > 2 && in.Operands[2].Kind == ir.OperandSize {
			return name, in.Operands[2].SizeBits, true
		}
		return name, 64, true
	case in.Op == ir.OpSignExtend, in.Op == ir.OpZeroExtend, in.Op == ir.OpTruncate:
		// Conversion: [0] result, [1] fromType, [2] fromSize, [3] value, [4] toSize — the home slot
		// takes the destination width, not the source's.
		if len(in.Operands) > 4 && in.Operands[4].Kind == ir.OperandSize {
			return name, in.Operands[4].SizeBits, true
		}
		return name, 64, true
	case in.Op == ir.OpArrayAccess, in.Op == ir.OpMemberAccess, in.Op == ir.OpGlobalLoad, in.Op == ir.OpDereference:
		// [0] result, [1] type, [2] size, ... — uniform across these four.
		if len(in.Operands) > 2 && in.Operands[2].Kind == ir.OperandSize {
			return name, in.Operands[2].SizeBits, true
		}
		return name, 64, true
	case in.Op == ir.OpPreInc, in.Op == ir.OpPostInc, in.Op == ir.OpPreDec, in.Op == ir.OpPostDec:
		// [0] result, [1] target, [2] type, [3] size.
		if len(in.Operands) > 3 && in.Operands[3].Kind == ir.OperandSize {
			return name, in.Operands[3].SizeBits, true
		}
		return name, 64, true
	case in.Op == ir.OpFunctionCall, in.Op == ir.OpConstructorCall, in.Op == ir.OpVirtualCall,
		in.Op == ir.OpIndirectCall, in.Op == ir.OpFunctionAddress, in.Op == ir.OpAddressOf,
		in.Op == ir.OpHeapAlloc, in.Op == ir.OpPlacementNew, in.Op == ir.OpTypeid,
		in.Op == ir.OpDynamicCast, in.Op == ir.OpStringLiteral:
		// Result width isn't carried on these instructions at this layer (call return types live in
		// the caller's own declaration, pointers are always word-sized); a call whose result is
		// narrower than 64 bits still round-trips correctly since the upper bits are simply unused.
		return name, 64, true
	default:
		return "", 0, false
	}
}
