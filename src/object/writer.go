// Package object defines the interface the backend hands structured data to (spec §6): the
// COFF/PE vs ELF layout, CodeView/DWARF containers, symbol table and relocation table encoding are
// all the writer's concern, external to this module's scope. Grounded on the interface shape of
// other_examples' pe64.go/elf_complete.go — this module implements only a minimal in-memory stub
// (below) sufficient for the test suite; a production COFF/ELF emitter is the out-of-scope external
// collaborator spec.md §1 names.
package object

// Section names a target byte region a writer places a Data blob into.
type Section int

const (
	SectionText Section = iota
	SectionData
	SectionRData
	SectionBSS
)

// RelocationKind selects how a writer must patch a recorded relocation site at link time.
type RelocationKind int

const (
	RelREL32 RelocationKind = iota
	RelADDR32
	RelADDR64
)

// Linkage selects a function symbol's visibility.
type Linkage int

const (
	LinkageExternal Linkage = iota
	LinkageInternal
)

// Writer is the external collaborator the Orchestrator drives (spec §6). Every method corresponds
// 1:1 to a bullet in spec.md §6 "Output — Object-file writer (consumed capabilities)".
type Writer interface {
	AddFunctionSymbol(mangledName string, codeOffset int, frameSize int32, linkage Linkage)
	UpdateFunctionLength(name string, length int)
	AddFunctionExceptionInfo(mangledName string, offset, length int)
	AddFunctionParameter(funcName, paramName string, typeIndex int, frameOffset int32)
	AddLocalVariable(funcName, varName string, typeIndex int, frameOffset int32)
	AddLineMapping(functionOffset, sourceLine int)
	AddStringLiteral(content string) (symbolName string)
	AddGlobalVariable(name string, size int, initialized bool, initValue []byte, isFloat bool)
	AddRelocation(codeOffset int, targetSymbol string, kind RelocationKind)
	AddData(bytes []byte, section Section)
	GetMangledName(unmangledName string) (mangled string, ok bool)
	GenerateMangledName(name string, signature string) string
	Write(filename string) error
}
