package ir

import "fmt"

// OperandKind differentiates the sum-type variants an Operand can hold. Handlers pattern-match
// exhaustively on Kind; see spec §9 "avoid the source's isOperandType<T> probing".
type OperandKind int

const (
	OperandInvalid OperandKind = iota
	OperandIntLiteral
	OperandUintLiteral
	OperandFloatLiteral
	OperandBoolLiteral
	OperandCharLiteral
	OperandIdentifier // named variable, parameter, global or function.
	OperandTemp       // TempVar handle.
	OperandType       // type tag operand (e.g. the "i32" in an arithmetic triplet).
	OperandSize       // size-in-bits operand.
	OperandLabel      // label name, used by Branch/ConditionalBranch/Label.
)

// TempVar is a 1-based generation index. Its home slot is assigned by frame.Builder together with
// the locals, in order of first appearance in the body; the offset is not derived from N.
type TempVar int

// Name returns the textual form of the TempVar, unique within the owning function.
func (t TempVar) Name() string {
	return fmt.Sprintf("t%d", int(t))
}

// TypeTag names a front-end type without carrying full type-system detail; the backend only needs
// enough to pick an encoding family (integer vs float, signed vs unsigned).
type TypeTag int

const (
	TypeUnknown TypeTag = iota
	TypeInt
	TypeUint
	TypeFloat
	TypeDouble
	TypeBool
	TypeChar
	TypePointer
	TypeStruct
	TypeFunctionPointer
)

// Operand is a tagged sum over every operand shape an IR Instruction can carry.
type Operand struct {
	Kind   OperandKind
	Int    int64   // OperandIntLiteral
	Uint   uint64  // OperandUintLiteral
	Float  float64 // OperandFloatLiteral
	Bool   bool    // OperandBoolLiteral
	Char   byte    // OperandCharLiteral
	Name   string  // OperandIdentifier, OperandLabel
	Temp   TempVar // OperandTemp
	Type   TypeTag // OperandType
	SizeBits int   // OperandSize
}

// Int64Operand constructs a signed integer literal operand.
func Int64Operand(v int64) Operand { return Operand{Kind: OperandIntLiteral, Int: v} }

// Uint64Operand constructs an unsigned integer literal operand.
func Uint64Operand(v uint64) Operand { return Operand{Kind: OperandUintLiteral, Uint: v} }

// FloatOperand constructs a double-precision literal operand.
func FloatOperand(v float64) Operand { return Operand{Kind: OperandFloatLiteral, Float: v} }

// BoolOperand constructs a bool literal operand.
func BoolOperand(v bool) Operand { return Operand{Kind: OperandBoolLiteral, Bool: v} }

// IdentOperand constructs a named-identifier operand (variable, parameter, global, function).
func IdentOperand(name string) Operand { return Operand{Kind: OperandIdentifier, Name: name} }

// TempOperand constructs a TempVar handle operand.
func TempOperand(t TempVar) Operand { return Operand{Kind: OperandTemp, Temp: t} }

// TypeOperand constructs a type-tag operand.
func TypeOperand(t TypeTag) Operand { return Operand{Kind: OperandType, Type: t} }

// SizeOperand constructs a size-in-bits operand.
func SizeOperand(bits int) Operand { return Operand{Kind: OperandSize, SizeBits: bits} }

// LabelOperand constructs a label-name operand.
func LabelOperand(name string) Operand { return Operand{Kind: OperandLabel, Name: name} }

// IsName reports whether the operand refers to a name or temp-var slot that must resolve through the
// current function's VariableScope (spec §3 invariant: "every temp-var used as an operand has an
// offset in the current scope's map").
func (o Operand) IsName() bool {
	return o.Kind == OperandIdentifier || o.Kind == OperandTemp
}

// SlotName returns the scope-map key for a name/temp operand.
func (o Operand) SlotName() string {
	switch o.Kind {
	case OperandIdentifier:
		return o.Name
	case OperandTemp:
		return o.Temp.Name()
	}
	return ""
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandIntLiteral:
		return fmt.Sprintf("%d", o.Int)
	case OperandUintLiteral:
		return fmt.Sprintf("%d", o.Uint)
	case OperandFloatLiteral:
		return fmt.Sprintf("%g", o.Float)
	case OperandBoolLiteral:
		return fmt.Sprintf("%t", o.Bool)
	case OperandCharLiteral:
		return fmt.Sprintf("%q", o.Char)
	case OperandIdentifier:
		return o.Name
	case OperandTemp:
		return o.Temp.Name()
	case OperandType:
		return fmt.Sprintf("type(%d)", o.Type)
	case OperandSize:
		return fmt.Sprintf("%db", o.SizeBits)
	case OperandLabel:
		return o.Name
	default:
		return "<invalid operand>"
	}
}
