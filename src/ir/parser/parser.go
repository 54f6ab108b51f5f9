// Package parser reads the line-oriented textual IR format used by cmd/irc and the test suite to
// construct an ir.Instruction stream without a real front end (spec.md §6 names the front end an
// external, out-of-scope collaborator; this package exists only to exercise the backend end-to-end).
//
// Line/position tracking style is adapted from the teacher's frontend line/pos bookkeeping
// (frontend/lexer.go's lexer.line/startOnLine fields), simplified to a per-line tokenizer since the
// textual format is whitespace-delimited mnemonics, not a full programming-language grammar.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"irx64/src/ir"
)

// Error reports a syntax problem in the textual IR, with the offending line number and raw text.
type Error struct {
	Line int
	Text string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ir parse error at line %d: %s (%q)", e.Line, e.Msg, e.Text)
}

// Parse reads a textual IR program from r and returns the decoded Instruction stream.
//
// Grammar (one instruction per line, blank lines and '#'-comments ignored):
//
//	<mnemonic> <operand> <operand> ...
//
// Operand encoding:
//
//	i<N>            integer literal, e.g. i42, i-7
//	u<N>             unsigned literal, e.g. u42
//	f<N>            float literal, e.g. f3.14
//	b<true|false>   bool literal
//	t<N>            TempVar, e.g. t3
//	%<name>         identifier (variable/global/function/param name)
//	@<name>         label name
//	type:<tag>      type tag (i32, u32, f32, f64, bool, char, ptr, struct, fnptr)
//	size:<bits>     size-in-bits operand
func Parse(r io.Reader) ([]ir.Instruction, error) {
	scanner := bufio.NewScanner(r)
	var out []ir.Instruction
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		text := strings.TrimSpace(raw)
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		mnemonic := fields[0]
		op, ok := ir.LookupOpcode(mnemonic)
		if !ok {
			return nil, &Error{Line: line, Text: raw, Msg: "unknown opcode mnemonic " + mnemonic}
		}
		operands := make([]ir.Operand, 0, len(fields)-1)
		for _, tok := range fields[1:] {
			operand, err := parseOperand(tok)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: %q", line, raw)
			}
			operands = append(operands, operand)
		}
		out = append(out, ir.New(op, line, operands...))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning textual IR")
	}
	return out, nil
}

func parseOperand(tok string) (ir.Operand, error) {
	switch {
	// The multi-character "type:"/"size:" prefixes must be checked before the single-letter
	// literal prefixes below — "type:i32" starts with "t" and would otherwise be misread as a
	// malformed TempVar.
	case strings.HasPrefix(tok, "type:"):
		return ir.TypeOperand(parseTypeTag(tok[len("type:"):])), nil
	case strings.HasPrefix(tok, "size:"):
		n, err := strconv.Atoi(tok[len("size:"):])
		if err != nil {
			return ir.Operand{}, errors.Wrapf(err, "size operand %q", tok)
		}
		return ir.SizeOperand(n), nil
	case strings.HasPrefix(tok, "i"):
		v, err := strconv.ParseInt(tok[1:], 10, 64)
		if err != nil {
			return ir.Operand{}, errors.Wrapf(err, "integer literal %q", tok)
		}
		return ir.Int64Operand(v), nil
	case strings.HasPrefix(tok, "u"):
		v, err := strconv.ParseUint(tok[1:], 10, 64)
		if err != nil {
			return ir.Operand{}, errors.Wrapf(err, "unsigned literal %q", tok)
		}
		return ir.Uint64Operand(v), nil
	case strings.HasPrefix(tok, "f"):
		v, err := strconv.ParseFloat(tok[1:], 64)
		if err != nil {
			return ir.Operand{}, errors.Wrapf(err, "float literal %q", tok)
		}
		return ir.FloatOperand(v), nil
	case strings.HasPrefix(tok, "b"):
		v, err := strconv.ParseBool(tok[1:])
		if err != nil {
			return ir.Operand{}, errors.Wrapf(err, "bool literal %q", tok)
		}
		return ir.BoolOperand(v), nil
	case strings.HasPrefix(tok, "t"):
		n, err := strconv.Atoi(tok[1:])
		if err != nil {
			return ir.Operand{}, errors.Wrapf(err, "temp var %q", tok)
		}
		return ir.TempOperand(ir.TempVar(n)), nil
	case strings.HasPrefix(tok, "%"):
		return ir.IdentOperand(tok[1:]), nil
	case strings.HasPrefix(tok, "@"):
		return ir.LabelOperand(tok[1:]), nil
	}
	return ir.Operand{}, fmt.Errorf("unrecognised operand token %q", tok)
}

func parseTypeTag(s string) ir.TypeTag {
	switch s {
	case "i32", "i64", "int":
		return ir.TypeInt
	case "u32", "u64", "uint":
		return ir.TypeUint
	case "f32", "float":
		return ir.TypeFloat
	case "f64", "double":
		return ir.TypeDouble
	case "bool":
		return ir.TypeBool
	case "char":
		return ir.TypeChar
	case "ptr", "pointer":
		return ir.TypePointer
	case "struct":
		return ir.TypeStruct
	case "fnptr":
		return ir.TypeFunctionPointer
	default:
		return ir.TypeUnknown
	}
}
