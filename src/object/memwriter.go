package object

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"irx64/src/backend/xtoa"
)

// FunctionSymbol records one function's position and frame metadata.
type FunctionSymbol struct {
	MangledName string
	CodeOffset  int
	Length      int
	FrameSize   int32
	Linkage     Linkage
}

// Relocation records a pending relocation site a real linker/loader must resolve.
type Relocation struct {
	CodeOffset   int
	TargetSymbol string
	Kind         RelocationKind
}

// GlobalVariable mirrors spec §3's GlobalVariable record as seen by the writer.
type GlobalVariable struct {
	Name        string
	Size        int
	Initialized bool
	InitValue   []byte
	IsFloat     bool // true if InitValue holds an IEEE-754 bit pattern rather than a plain integer.
}

// MemWriter is a minimal in-memory stand-in for a real COFF/ELF object-file writer: it implements
// Writer fully enough to drive and assert against in tests, but performs no section layout, no
// symbol table encoding and no CodeView/DWARF emission (spec §1 names that work out of scope,
// belonging to an external collaborator). Grounded on the interface/record shapes visible in
// other_examples' pe64.go and elf_complete.go, without reproducing their section-header machinery.
type MemWriter struct {
	Functions []FunctionSymbol
	Relocs    []Relocation
	Globals   []GlobalVariable
	Strings   map[string]string // content -> generated symbol name, deduplicated.
	Text      []byte
	Data      []byte
	RData     []byte
	BSS       []byte

	mangled map[string]string
	nextStr int
}

// NewMemWriter returns a ready-to-use MemWriter.
func NewMemWriter() *MemWriter {
	return &MemWriter{
		Strings: make(map[string]string),
		mangled: make(map[string]string),
	}
}

func (w *MemWriter) AddFunctionSymbol(mangledName string, codeOffset int, frameSize int32, linkage Linkage) {
	w.Functions = append(w.Functions, FunctionSymbol{
		MangledName: mangledName,
		CodeOffset:  codeOffset,
		FrameSize:   frameSize,
		Linkage:     linkage,
	})
}

func (w *MemWriter) UpdateFunctionLength(name string, length int) {
	for i := range w.Functions {
		if w.Functions[i].MangledName == name {
			w.Functions[i].Length = length
			return
		}
	}
}

func (w *MemWriter) AddFunctionExceptionInfo(mangledName string, offset, length int) {
	// No-op: x64 unwind-info encoding is a writer concern (spec §6), out of scope here.
}

func (w *MemWriter) AddFunctionParameter(funcName, paramName string, typeIndex int, frameOffset int32) {
	// No-op: debug-info container emission belongs to the writer.
}

func (w *MemWriter) AddLocalVariable(funcName, varName string, typeIndex int, frameOffset int32) {
	// No-op: same as above.
}

func (w *MemWriter) AddLineMapping(functionOffset, sourceLine int) {
	// No-op: line-table encoding belongs to the writer.
}

func (w *MemWriter) AddStringLiteral(content string) string {
	if name, ok := w.Strings[content]; ok {
		return name
	}
	name := fmt.Sprintf(".rdata$str%d", w.nextStr)
	w.nextStr++
	w.Strings[content] = name
	w.RData = append(w.RData, []byte(content)...)
	w.RData = append(w.RData, 0)
	return name
}

func (w *MemWriter) AddGlobalVariable(name string, size int, initialized bool, initValue []byte, isFloat bool) {
	w.Globals = append(w.Globals, GlobalVariable{Name: name, Size: size, Initialized: initialized, InitValue: initValue, IsFloat: isFloat})
}

func (w *MemWriter) AddRelocation(codeOffset int, targetSymbol string, kind RelocationKind) {
	w.Relocs = append(w.Relocs, Relocation{CodeOffset: codeOffset, TargetSymbol: targetSymbol, Kind: kind})
}

func (w *MemWriter) AddData(bytes []byte, section Section) {
	switch section {
	case SectionText:
		w.Text = append(w.Text, bytes...)
	case SectionData:
		w.Data = append(w.Data, bytes...)
	case SectionRData:
		w.RData = append(w.RData, bytes...)
	case SectionBSS:
		w.BSS = append(w.BSS, bytes...)
	}
}

func (w *MemWriter) GetMangledName(unmangledName string) (string, bool) {
	m, ok := w.mangled[unmangledName]
	return m, ok
}

func (w *MemWriter) GenerateMangledName(name string, signature string) string {
	mangled := "?" + name + "@@" + strings.ReplaceAll(signature, " ", "_")
	w.mangled[name] = mangled
	return mangled
}

// Write dumps a human-readable summary to filename; a real writer would instead emit a COFF/ELF
// image. This exists only so the CLI driver has something observable to produce end-to-end.
func (w *MemWriter) Write(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating object summary output")
	}
	defer f.Close()

	sort.Slice(w.Functions, func(i, j int) bool { return w.Functions[i].CodeOffset < w.Functions[j].CodeOffset })
	for _, fn := range w.Functions {
		fmt.Fprintf(f, "function %s offset=%d length=%d frame=%d\n", fn.MangledName, fn.CodeOffset, fn.Length, fn.FrameSize)
	}
	for _, r := range w.Relocs {
		fmt.Fprintf(f, "reloc offset=%d target=%s kind=%d\n", r.CodeOffset, r.TargetSymbol, r.Kind)
	}
	for _, g := range w.Globals {
		fmt.Fprintf(f, "global %s size=%d initialized=%t%s\n", g.Name, g.Size, g.Initialized, initValueAnnotation(g))
	}
	fmt.Fprintf(f, "text_bytes=%d data_bytes=%d rdata_bytes=%d bss_bytes=%d\n", len(w.Text), len(w.Data), len(w.RData), len(w.BSS))
	return nil
}

// initValueAnnotation decodes g's little-endian InitValue back to a number and renders it with
// xtoa, so the dumped summary reads as " = 42" or " = 3.1400" instead of a raw byte slice. Globals
// wider than 64 bits or with no initializer print nothing.
func initValueAnnotation(g GlobalVariable) string {
	if !g.Initialized || len(g.InitValue) == 0 || len(g.InitValue) > 8 {
		return ""
	}
	var u uint64
	for i, b := range g.InitValue {
		u |= uint64(b) << (8 * i)
	}
	if g.IsFloat {
		if len(g.InitValue) == 4 {
			return " = " + xtoa.FtoA(math.Float32frombits(uint32(u)))
		}
		return " = " + xtoa.FtoA(float32(math.Float64frombits(u)))
	}
	// Sign-extend from the global's declared width so a negative initializer decodes correctly.
	bits := uint(len(g.InitValue) * 8)
	if bits < 64 && u&(1<<(bits-1)) != 0 {
		u |= ^uint64(0) << bits
	}
	return " = " + xtoa.ItoA(int(int64(u)))
}
