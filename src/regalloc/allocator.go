package regalloc

import (
	"math"

	"irx64/src/ir"
)

// NoOffset is the AllocatedRegister.Offset sentinel meaning "holds no named value" (spec §3:
// stack_variable_offset = INT_MIN).
const NoOffset = math.MinInt32

// AllocatedRegister is the per-physical-register bookkeeping record of spec §3.
type AllocatedRegister struct {
	Allocated bool
	Dirty     bool
	Offset    int32 // stack slot this register mirrors, or NoOffset.
	SizeBits  int
}

// EmitSink is the callback the allocator uses to ask the caller to emit a store of a spilled
// register's value to its tracked stack offset. The caller (codegen's Context) owns the Encoder and
// byte buffer; regalloc stays encoding-agnostic so it can be tested in isolation.
type EmitSink func(reg Register, offset int32, sizeBits int)

// Allocator tracks the 32-register file (16 GP + 16 XMM) as a local cache of the stack: every named
// value has a canonical stack home, and a register binding is always a hint (spec §4.2 rationale).
type Allocator struct {
	gp  [16]AllocatedRegister
	xmm [16]AllocatedRegister

	// offsetToGP/offsetToXMM invert the binding for try_get_register_for_offset lookups.
	offsetToGP  map[int32]int
	offsetToXMM map[int32]int

	spills int // count of AllocateWithSpilling calls that had to evict a live binding.
}

// Spills returns how many times this allocator has had to evict a live register binding to satisfy
// an allocation request, a proxy for register pressure a caller may want to log.
func (a *Allocator) Spills() int { return a.spills }

// New returns a freshly reset Allocator.
func New() *Allocator {
	a := &Allocator{}
	a.reset()
	return a
}

// AllocateGP returns an unallocated general-purpose register, or NoReg if none is free (caller
// should then use AllocateWithSpilling).
func (a *Allocator) AllocateGP() Register {
	for _, r := range allocatableGP {
		if !a.gp[r.id].Allocated {
			a.gp[r.id].Allocated = true
			return r
		}
	}
	return NoReg
}

// AllocateXMM returns an unallocated XMM register, or NoReg if none is free.
func (a *Allocator) AllocateXMM() Register {
	for i := 0; i < 16; i++ {
		if !a.xmm[i].Allocated {
			a.xmm[i].Allocated = true
			return XMMRegisters[i]
		}
	}
	return NoReg
}

// AllocateWithSpilling returns a register of class c, spilling a victim if the class is full.
// Clean victims are preferred over dirty ones; a dirty victim's value is flushed via sink before
// the register is handed back. The caller owns the returned register exclusively afterward.
func (a *Allocator) AllocateWithSpilling(c Class, sink EmitSink) (Register, error) {
	if c == ClassGP {
		if r := a.AllocateGP(); r.IsValid() {
			return r, nil
		}
	} else {
		if r := a.AllocateXMM(); r.IsValid() {
			return r, nil
		}
	}

	victim, err := a.pickSpillVictim(c)
	if err != nil {
		return NoReg, err
	}
	a.spills++
	a.spillOne(victim, sink)
	a.setAllocated(victim, true)
	return victim, nil
}

func (a *Allocator) pickSpillVictim(c Class) (Register, error) {
	var clean, dirty Register
	regs := allocatableGP
	entries := a.gp[:]
	if c == ClassXMM {
		regs = XMMRegisters[:]
		entries = a.xmm[:]
	}
	for _, r := range regs {
		e := entries[r.id]
		if !clean.IsValid() && !e.Dirty {
			clean = r
		}
		if !dirty.IsValid() && e.Dirty {
			dirty = r
		}
	}
	if clean.IsValid() {
		return clean, nil
	}
	if dirty.IsValid() {
		return dirty, nil
	}
	return NoReg, &ir.ResourceExhaustedError{Detail: "no register available even after spill attempt"}
}

// spillOne writes back a single register's value if dirty and clears its binding, without touching
// its Allocated flag (the caller sets that immediately after).
func (a *Allocator) spillOne(r Register, sink EmitSink) {
	entry := a.entry(r)
	if entry.Dirty && sink != nil {
		sink(r, entry.Offset, entry.SizeBits)
	}
	a.clearBinding(r)
}

func (a *Allocator) setAllocated(r Register, v bool) {
	if r.class == ClassXMM {
		a.xmm[r.id].Allocated = v
	} else {
		a.gp[r.id].Allocated = v
	}
}

func (a *Allocator) entry(r Register) AllocatedRegister {
	if r.class == ClassXMM {
		return a.xmm[r.id]
	}
	return a.gp[r.id]
}

func (a *Allocator) clearBinding(r Register) {
	if r.class == ClassXMM {
		if a.xmm[r.id].Offset != NoOffset {
			delete(a.offsetToXMM, a.xmm[r.id].Offset)
		}
		a.xmm[r.id].Dirty = false
		a.xmm[r.id].Offset = NoOffset
	} else {
		if a.gp[r.id].Offset != NoOffset {
			delete(a.offsetToGP, a.gp[r.id].Offset)
		}
		a.gp[r.id].Dirty = false
		a.gp[r.id].Offset = NoOffset
	}
}

// TryGetRegisterForOffset looks up a register already bound to offset, eliding a reload when the
// value is already resident. Returns NoReg if no register currently mirrors that slot.
func (a *Allocator) TryGetRegisterForOffset(offset int32, c Class) Register {
	if c == ClassXMM {
		if id, ok := a.offsetToXMM[offset]; ok {
			return XMMRegisters[id]
		}
		return NoReg
	}
	if id, ok := a.offsetToGP[offset]; ok {
		return allocatableGPByID(id)
	}
	return NoReg
}

func allocatableGPByID(id int) Register {
	for _, r := range GPRegisters {
		if r.id == id {
			return r
		}
	}
	return NoReg
}

// Bind marks reg as holding stack slot offset, dirty, unbinding any other register previously bound
// to the same offset (spec §4.2: "prevents two registers claiming one slot").
func (a *Allocator) Bind(reg Register, offset int32, sizeBits int) {
	if reg.class == ClassXMM {
		if prevID, ok := a.offsetToXMM[offset]; ok && prevID != reg.id {
			a.clearBinding(XMMRegisters[prevID])
		}
		if old := a.xmm[reg.id].Offset; old != NoOffset && old != offset {
			delete(a.offsetToXMM, old)
		}
		a.xmm[reg.id].Offset = offset
		a.xmm[reg.id].Dirty = true
		a.xmm[reg.id].SizeBits = sizeBits
		a.xmm[reg.id].Allocated = true
		a.offsetToXMM[offset] = reg.id
		return
	}
	if prevID, ok := a.offsetToGP[offset]; ok && prevID != reg.id {
		a.clearBinding(allocatableGPByID(prevID))
	}
	if old := a.gp[reg.id].Offset; old != NoOffset && old != offset {
		delete(a.offsetToGP, old)
	}
	a.gp[reg.id].Offset = offset
	a.gp[reg.id].Dirty = true
	a.gp[reg.id].SizeBits = sizeBits
	a.gp[reg.id].Allocated = true
	a.offsetToGP[offset] = reg.id
}

// IsDirty reports whether reg currently mirrors a stack slot newer than memory.
func (a *Allocator) IsDirty(reg Register) bool {
	return a.entry(reg).Dirty
}

// Offset returns the stack slot reg mirrors, or NoOffset.
func (a *Allocator) Offset(reg Register) int32 {
	return a.entry(reg).Offset
}

// FlushAllDirty writes back every dirty register via sink, then clears dirty flags and bindings so
// subsequent code reloads from memory (spec §4.2 "clear binding on flush" — the source forgets this,
// producing stale-binding bugs; this is mandatory here).
func (a *Allocator) FlushAllDirty(sink EmitSink) {
	for _, r := range allocatableGP {
		if a.gp[r.id].Dirty {
			if sink != nil {
				sink(r, a.gp[r.id].Offset, a.gp[r.id].SizeBits)
			}
			a.clearBinding(r)
		}
	}
	for i := 0; i < 16; i++ {
		if a.xmm[i].Dirty {
			r := XMMRegisters[i]
			if sink != nil {
				sink(r, a.xmm[i].Offset, a.xmm[i].SizeBits)
			}
			a.clearBinding(r)
		}
	}
}

// InvalidateCallerSaved clears bindings (not allocations) for the ABI's caller-saved registers after
// a call site; their content is assumed clobbered by the callee (spec §4.2).
func (a *Allocator) InvalidateCallerSaved(callerSaved []Register) {
	for _, r := range callerSaved {
		a.clearBinding(r)
	}
	for i := 0; i < 16; i++ {
		a.clearBinding(XMMRegisters[i])
	}
}

// Release marks reg as free without writing it back; used once IDIV/IMOD has consumed the register
// it needed exclusively (spec §4.4 "Release RDX").
func (a *Allocator) Release(reg Register) {
	a.clearBinding(reg)
	a.setAllocated(reg, false)
}

// Reset fully clears the allocator: used at function entry and at every merge point (a Label),
// because different predecessors may have left different values in registers (spec §4.2, §4.4).
func (a *Allocator) Reset() {
	a.reset()
}

func (a *Allocator) reset() {
	for i := 0; i < 16; i++ {
		a.gp[i] = AllocatedRegister{Offset: NoOffset}
		a.xmm[i] = AllocatedRegister{Offset: NoOffset}
	}
	a.offsetToGP = make(map[int32]int)
	a.offsetToXMM = make(map[int32]int)
}

// HasAnyBinding reports whether any register still maps to a stack offset, i.e. whether the
// merge-point-hygiene property (spec §8 property 4: "at every Label handler, the allocator's
// register→offset map is empty") would be violated at this point. No lowering handler calls it.
func (a *Allocator) HasAnyBinding() bool {
	return len(a.offsetToGP) > 0 || len(a.offsetToXMM) > 0
}
