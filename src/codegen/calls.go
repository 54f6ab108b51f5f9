package codegen

import (
	"irx64/src/encoder"
	"irx64/src/ir"
	"irx64/src/object"
	"irx64/src/regalloc"
)

// windowsIntArgs / sysvIntArgs list the integer/pointer argument registers in ABI order (spec §4.3,
// §4.4 "FunctionCall"). windowsFloatArgs / sysvFloatArgs mirror them for XMM arguments; Windows
// shares one counter between GP and XMM slots (the Nth argument always occupies the Nth slot of
// whichever bank it needs, skipping the other bank's register of the same index), System V keeps two
// independent counters.
var (
	windowsIntArgs   = []regalloc.Register{regalloc.RCX, regalloc.RDX, regalloc.R8, regalloc.R9}
	windowsFloatArgs = []regalloc.Register{regalloc.XMMRegisters[0], regalloc.XMMRegisters[1], regalloc.XMMRegisters[2], regalloc.XMMRegisters[3]}
	sysvIntArgs      = []regalloc.Register{regalloc.RDI, regalloc.RSI, regalloc.RDX, regalloc.RCX, regalloc.R8, regalloc.R9}
	sysvFloatArgs    = func() []regalloc.Register { return regalloc.XMMRegisters[:8] }()
)

// callArg is one resolved call argument: its type/size (for materialization) and raw operand.
type callArg struct {
	typ  ir.TypeTag
	bits int
	val  ir.Operand
}

// Call instructions share a variable-length layout, the only opcode family exempted from the fixed
// operand-count contract (spec §3 "calls are inherently variable arity"):
//
//	[0] result (Temp, or Operand{} zero value for a void call)
//	[1] callee name (Identifier) — IndirectCall instead carries the function-pointer value here and
//	    VirtualCall the vtable slot index (IntLiteral)
//	[2] result type (Type) — TypeUnknown for a void call; selects RAX vs XMM0 on return
//	[3] argument count (IntLiteral)
//	[4..] argCount triples of (type, size, value)
func parseCallArgs(in ir.Instruction) (result, callee ir.Operand, resultType ir.TypeTag, args []callArg, err error) {
	if len(in.Operands) < 4 {
		return ir.Operand{}, ir.Operand{}, ir.TypeUnknown, nil, &ir.MalformedIRError{Opcode: in.Op, Line: in.Line, Reason: "call instruction missing result/callee/result type/argcount"}
	}
	result = in.Operands[0]
	callee = in.Operands[1]
	resultType = in.Operands[2].Type
	count := int(in.Operands[3].Int)
	want := 4 + count*3
	if len(in.Operands) < want {
		return ir.Operand{}, ir.Operand{}, ir.TypeUnknown, nil, &ir.MalformedIRError{Opcode: in.Op, Line: in.Line, Reason: "call instruction argument count mismatch"}
	}
	for i := 0; i < count; i++ {
		base := 4 + i*3
		args = append(args, callArg{
			typ:  in.Operands[base].Type,
			bits: in.Operands[base+1].SizeBits,
			val:  in.Operands[base+2],
		})
	}
	return result, callee, resultType, args, nil
}

// emitCallSequence materializes args into the ABI's register/stack slots, flushes every dirty cached
// register first (the callee may clobber memory this function believes it owns a register-resident
// copy of), invalidates caller-saved registers after the call, and optionally stores RAX/XMM0 into
// the result's home slot (spec §4.4 "FunctionCall").
func (c *Context) emitCallSequence(in ir.Instruction, args []callArg, emitCall func()) error {
	c.Alloc.FlushAllDirty(c.spillSink())

	intArgs, floatArgs := sysvIntArgs, sysvFloatArgs
	if c.IsWindows {
		intArgs, floatArgs = windowsIntArgs, windowsFloatArgs
	}

	var stackArgs []callArg
	intIdx, floatIdx := 0, 0
	type placed struct {
		reg regalloc.Register
		arg callArg
	}
	var placements []placed

	for _, a := range args {
		if classFor(a.typ) == regalloc.ClassXMM {
			if c.IsWindows {
				// Windows shares the argument index across banks.
				idx := intIdx
				if idx >= len(floatArgs) {
					stackArgs = append(stackArgs, a)
					continue
				}
				placements = append(placements, placed{floatArgs[idx], a})
				intIdx++
				continue
			}
			if floatIdx >= len(floatArgs) {
				stackArgs = append(stackArgs, a)
				continue
			}
			placements = append(placements, placed{floatArgs[floatIdx], a})
			floatIdx++
			continue
		}
		if c.IsWindows {
			idx := intIdx
			if idx >= len(intArgs) {
				stackArgs = append(stackArgs, a)
				continue
			}
			placements = append(placements, placed{intArgs[idx], a})
			intIdx++
			continue
		}
		if intIdx >= len(intArgs) {
			stackArgs = append(stackArgs, a)
			continue
		}
		placements = append(placements, placed{intArgs[intIdx], a})
		intIdx++
	}

	// Push stack-passed arguments right to left so they land in source order at increasing addresses.
	for i := len(stackArgs) - 1; i >= 0; i-- {
		a := stackArgs[i]
		reg, err := c.materialize(in, a.val, a.typ, a.bits)
		if err != nil {
			return err
		}
		if classFor(a.typ) == regalloc.ClassXMM {
			gp, err := c.acquireFresh(regalloc.ClassGP)
			if err != nil {
				return err
			}
			c.emit(encoder.MovQXMMToGPR(gp, reg))
			c.emit(encoder.PushReg(gp))
			c.Alloc.Release(gp)
		} else {
			c.emit(encoder.PushReg(reg))
		}
		c.Alloc.Release(reg)
	}

	if c.IsWindows {
		// Shadow space is reserved by the caller's prologue-time frame allocation (spec §4.3), not
		// re-reserved per call site.
	}

	for _, p := range placements {
		reg, err := c.materialize(in, p.arg.val, p.arg.typ, p.arg.bits)
		if err != nil {
			return err
		}
		if classFor(p.arg.typ) == regalloc.ClassXMM {
			c.emit(encoder.MovScalarRegToReg(p.arg.bits == 64, p.reg, reg))
		} else {
			c.emit(encoder.MovRegToReg(p.reg, reg, p.arg.bits))
		}
		c.Alloc.Release(reg)
	}

	emitCall()

	if len(stackArgs) > 0 {
		c.emit(encoder.AddRspImm32(int32(len(stackArgs) * 8)))
	}
	c.Alloc.InvalidateCallerSaved(c.callerSaved)
	return nil
}

func handleFunctionCall(c *Context, in ir.Instruction) error {
	result, callee, resultType, args, err := parseCallArgs(in)
	if err != nil {
		return err
	}
	if err := c.emitCallSequence(in, args, func() {
		bytes, dispOff := encoder.CallRel32Placeholder()
		c.recordCall(bytes, dispOff, callee.Name, object.RelREL32)
	}); err != nil {
		return err
	}
	return c.storeCallResult(in, result, resultType)
}

// handleConstructorCall / handleDestructorCall share FunctionCall's shape: a constructor/destructor
// is, at the machine-code level, just a call with an implicit `this` as its first argument already
// present in the args list by front-end convention (spec §4.4).
func handleConstructorCall(c *Context, in ir.Instruction) error { return handleFunctionCall(c, in) }
func handleDestructorCall(c *Context, in ir.Instruction) error  { return handleFunctionCall(c, in) }

// handleVirtualCall: callee operand names the vtable-relative slot instead of a direct symbol; args[0]
// is always `this`. The vtable pointer is loaded from [this+0] and the target from [vtable+8*slot]
// (spec §4.4 "VirtualCall").
func handleVirtualCall(c *Context, in ir.Instruction) error {
	result, slotOperand, resultType, args, err := parseCallArgs(in)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return &ir.MalformedIRError{Opcode: in.Op, Line: in.Line, Reason: "VirtualCall requires `this` as argument 0"}
	}
	slot := slotOperand.Int

	thisReg, err := c.materialize(in, args[0].val, args[0].typ, 64)
	if err != nil {
		return err
	}
	vtable, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LoadIndirect(thisReg, vtable, 0, 64))
	target, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	c.emit(encoder.LoadIndirect(vtable, target, int32(slot*8), 64))
	c.Alloc.Release(vtable)

	if err := c.emitCallSequence(in, args, func() {
		c.emit(encoder.CallReg(target))
	}); err != nil {
		return err
	}
	c.Alloc.Release(target)
	return c.storeCallResult(in, result, resultType)
}

// handleIndirectCall: callee is a temp/identifier already holding a function pointer value, not a
// symbol name (spec §4.4 "IndirectCall").
func handleIndirectCall(c *Context, in ir.Instruction) error {
	result, calleeVal, resultType, args, err := parseCallArgs(in)
	if err != nil {
		return err
	}
	target, err := c.materialize(in, calleeVal, ir.TypeFunctionPointer, 64)
	if err != nil {
		return err
	}
	if err := c.emitCallSequence(in, args, func() {
		c.emit(encoder.CallReg(target))
	}); err != nil {
		return err
	}
	c.Alloc.Release(target)
	return c.storeCallResult(in, result, resultType)
}

// handleFunctionAddress materializes a function's address via an absolute-address relocation:
// emitted as a 10-byte MOVABS placeholder patched by the linker with the symbol's absolute address
// (spec §4.4 "FunctionAddress", §4.5 "global relocations are not limited to rel32 call sites").
// Layout: [0] result (Temp), [1] function name (Identifier).
func handleFunctionAddress(c *Context, in ir.Instruction) error {
	if err := in.RequireOperandCount(2); err != nil {
		return err
	}
	result, _ := in.Operand(0)
	name, _ := in.Operand(1)

	reg, err := c.acquireFresh(regalloc.ClassGP)
	if err != nil {
		return err
	}
	bytes := encoder.MovImm64(reg, 0)
	// The imm64 field occupies the trailing 8 bytes of a 10-byte REX.W B8+r instruction.
	c.recordCall(bytes, len(bytes)-8, name.Name, object.RelADDR64)
	return c.storeResult(in, result, reg, 64)
}

// storeCallResult writes the callee's return value to result's home slot: RAX for every integer/
// pointer return, XMM0 for a float/double return (spec §4.4 "store RAX (or XMM0 for float return)").
func (c *Context) storeCallResult(in ir.Instruction, result ir.Operand, resultType ir.TypeTag) error {
	if result.Kind == ir.OperandInvalid {
		return nil // void call.
	}
	src := regalloc.RAX
	if classFor(resultType) == regalloc.ClassXMM {
		src = regalloc.XMMRegisters[0]
	}
	bits := 64
	if result.Kind == ir.OperandTemp || result.Kind == ir.OperandIdentifier {
		if sz, ok := lookupSize(c, result); ok {
			bits = sz
		}
	}
	return c.storeResult(in, result, src, bits)
}

func lookupSize(c *Context, o ir.Operand) (int, bool) {
	if _, ok := c.Scope.Offset(o.SlotName()); ok {
		return c.Scope.Size(o.SlotName()), true
	}
	return 0, false
}
