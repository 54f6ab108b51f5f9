package util

// Options carries the resolved configuration for a convert run (spec.md §6, SPEC_FULL.md Ambient
// Stack "Config"). cmd/irc builds one of these from its cobra flags; the field names and the
// constant-based TargetOS enum are kept from the original compiler's Options/ParseArgs surface, with
// TargetArch/TargetVendor/TargetCPU dropped — this module targets one architecture (x86-64), so
// TargetOS alone selects the calling convention (Windows x64 vs System V AMD64).
type Options struct {
	Src      string // Path to the textual IR source file.
	Out      string // Path to the object summary output file.
	Verbose  bool   // Set true to log every instruction lowered at debug level.
	TargetOS int    // Output target operating system type.
}

// Target operating system.
const (
	UnknownOS = iota
	Linux
	Windows
	MAC
)

// IsWindows reports whether opt selects the Windows x64 calling convention (4 register args, 32-byte
// shadow space) rather than System V AMD64 (6 register args, no shadow space).
func (o Options) IsWindows() bool {
	return o.TargetOS == Windows
}
