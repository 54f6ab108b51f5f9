package codegen

import (
	"math"

	"github.com/rs/zerolog"

	"irx64/src/encoder"
	"irx64/src/frame"
	"irx64/src/ir"
	"irx64/src/object"
	"irx64/src/regalloc"
)

// FunctionDecl carries [0] function name (Identifier), [1] parameter count (IntLiteral). The
// following paramCount instructions are VariableDecl-shaped parameter descriptors (spec §4.3's Build
// `params` argument); everything after that, up to the next FunctionDecl or end of stream, is the
// function body.
const (
	funcDeclName      = 0
	funcDeclParamCount = 1
)

// Orchestrator drives the whole-program, single pass: register every top-level GlobalVariableDecl
// with the writer, then lower each function in turn, patch its branches, and hand its bytes to the
// writer (spec §4.4 "Orchestrator", §4.5 "patch branches once per function after lowering its full
// body"). Grounded on the teacher's backend/asm.go top-level driver loop generalized from
// per-basic-block SSA scheduling to this flat single-pass model.
type Orchestrator struct {
	IsWindows bool
	Writer    object.Writer
	Log       zerolog.Logger

	textLen int // running byte offset into the .text section, across every function lowered so far.
}

// NewOrchestrator returns an Orchestrator targeting the given OS's calling convention, logging
// nothing by default; set Log directly (e.g. from cmd/irc) to observe lowering progress.
func NewOrchestrator(isWindows bool, w object.Writer) *Orchestrator {
	return &Orchestrator{IsWindows: isWindows, Writer: w, Log: zerolog.Nop()}
}

// Convert lowers program (the entire IR instruction stream, top-level declarations and all function
// bodies concatenated in source order) and hands every function's machine code to the Orchestrator's
// Writer (spec §4.4). It returns the first error encountered; per spec §7 "Failure semantics", no
// partial function is ever registered with the writer.
func (o *Orchestrator) Convert(program []ir.Instruction) error {
	o.Log.Debug().Int("instructions", len(program)).Msg("convert starting")
	i := 0
	for i < len(program) {
		in := program[i]
		switch in.Op {
		case ir.OpGlobalVariableDecl:
			if err := o.registerGlobal(in); err != nil {
				return err
			}
			i++
		case ir.OpFunctionDecl:
			consumed, err := o.convertFunction(program[i:])
			if err != nil {
				return err
			}
			i += consumed
		default:
			return &ir.MalformedIRError{Opcode: in.Op, Line: in.Line, Reason: "unexpected top-level instruction outside any function"}
		}
	}
	return nil
}

// GlobalVariableDecl: [0] name (Identifier), [1] size in bits (Size), [2] initialized (Bool),
// [3] optional initial value (IntLiteral/FloatLiteral; absent or zero for a zero-initialized global).
func (o *Orchestrator) registerGlobal(in ir.Instruction) error {
	if err := in.RequireOperandCount(4); err != nil {
		if len(in.Operands) < 3 {
			return err
		}
	}
	name, err := in.Operand(0)
	if err != nil {
		return err
	}
	size, err := in.Operand(1)
	if err != nil {
		return err
	}
	initialized, err := in.Operand(2)
	if err != nil {
		return err
	}
	sizeBytes := size.SizeBits / 8
	if sizeBytes == 0 {
		sizeBytes = 8
	}

	var initBytes []byte
	var isFloat bool
	if initialized.Bool && len(in.Operands) > 3 {
		v, _ := in.Operand(3)
		initBytes = encodeGlobalInit(v, sizeBytes)
		isFloat = v.Kind == ir.OperandFloatLiteral
	}
	o.Writer.AddGlobalVariable(name.Name, sizeBytes, initialized.Bool, initBytes, isFloat)
	return nil
}

func encodeGlobalInit(v ir.Operand, sizeBytes int) []byte {
	switch v.Kind {
	case ir.OperandIntLiteral:
		return leBytes(uint64(v.Int), sizeBytes)
	case ir.OperandUintLiteral:
		return leBytes(v.Uint, sizeBytes)
	case ir.OperandFloatLiteral:
		if sizeBytes == 4 {
			return leBytes(uint64(float32Bits(v.Float)), 4)
		}
		return leBytes(float64Bits(v.Float), 8)
	}
	return nil
}

func leBytes(u uint64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(u >> (8 * i))
	}
	return out
}

func float32Bits(v float64) uint64 { return uint64(math.Float32bits(float32(v))) }
func float64Bits(v float64) uint64 { return math.Float64bits(v) }

// convertFunction lowers the single function beginning at stream[0] (an OpFunctionDecl) and returns
// how many instructions of stream it consumed, so Convert can advance past it.
func (o *Orchestrator) convertFunction(stream []ir.Instruction) (int, error) {
	decl := stream[0]
	if err := decl.RequireOperandCount(2); err != nil {
		return 0, err
	}
	name, _ := decl.Operand(funcDeclName)
	paramCountOp, _ := decl.Operand(funcDeclParamCount)
	paramCount := int(paramCountOp.Int)

	if 1+paramCount > len(stream) {
		return 0, &ir.MalformedIRError{Opcode: decl.Op, Line: decl.Line, Reason: "function declares more parameters than remain in the instruction stream"}
	}
	params := stream[1 : 1+paramCount]

	bodyStart := 1 + paramCount
	bodyEnd := bodyStart
	for bodyEnd < len(stream) && stream[bodyEnd].Op != ir.OpFunctionDecl {
		bodyEnd++
	}
	body := stream[bodyStart:bodyEnd]

	builder := frame.NewBuilder(o.IsWindows)
	scope, err := builder.Build(body, params)
	if err != nil {
		return 0, err
	}
	o.Log.Debug().Str("func", name.Name).Int32("frame_size", scope.FrameSize).Msg("frame built")

	ctx := NewContext(name.Name, o.IsWindows, scope, o.Writer, o.Log)
	emitPrologue(ctx, scope, params)

	for _, in := range body {
		if err := Lower(ctx, in); err != nil {
			return 0, err
		}
	}

	if err := ctx.PatchBranches(); err != nil {
		return 0, err
	}

	// Align the function's entry point to 16 bytes with single-byte NOPs.
	for o.textLen%16 != 0 {
		o.Writer.AddData(encoder.Nop(), object.SectionText)
		o.textLen++
	}

	codeOffset := o.textLen
	mangled := o.Writer.GenerateMangledName(name.Name, "")
	o.Writer.AddFunctionSymbol(mangled, codeOffset, scope.FrameSize, object.LinkageExternal)
	o.Writer.AddData(ctx.Code, object.SectionText)
	o.Writer.UpdateFunctionLength(mangled, len(ctx.Code))

	for _, r := range ctx.PendingRelocs {
		o.Writer.AddRelocation(codeOffset+r.DispOffset, r.Target, r.Kind)
	}
	o.textLen += len(ctx.Code)

	return bodyEnd, nil
}

// emitPrologue emits `push rbp; mov rbp, rsp; sub rsp, frameSize` and then spills every
// register-passed parameter into its home slot (spec §4.4 "FunctionDecl (prologue)").
func emitPrologue(c *Context, scope *frame.VariableScope, params []ir.Instruction) {
	c.emit(encoder.Prologue(scope.FrameSize))

	intArgs, floatArgs := sysvIntArgs, sysvFloatArgs
	if c.IsWindows {
		intArgs, floatArgs = windowsIntArgs, windowsFloatArgs
	}

	intIdx, floatIdx := 0, 0
	for _, p := range params {
		if len(p.Operands) < 2 {
			continue
		}
		name, _ := p.Operand(0)
		typ, _ := p.Operand(1)
		offset, ok := scope.Offset(name.Name)
		if !ok {
			continue
		}
		if classFor(typ.Type) == regalloc.ClassXMM {
			idx := floatIdx
			if c.IsWindows {
				idx = intIdx
			}
			if idx < len(floatArgs) {
				c.emit(encoder.StoreFrameScalar(scope.Size(name.Name) == 64, floatArgs[idx], offset))
			}
			if c.IsWindows {
				intIdx++
			} else {
				floatIdx++
			}
			continue
		}
		if intIdx < len(intArgs) {
			c.emit(encoder.StoreFrame(intArgs[intIdx], offset, scope.Size(name.Name)))
		}
		intIdx++
	}
}
