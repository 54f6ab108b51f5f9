package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindUnbindsPreviousOwner(t *testing.T) {
	a := New()
	r1 := a.AllocateGP()
	r2 := a.AllocateGP()
	require.NotEqual(t, NoReg, r1)
	require.NotEqual(t, NoReg, r2)

	a.Bind(r1, 8, 32)
	a.Bind(r2, 8, 32) // same slot, different register.

	assert.False(t, a.IsDirty(r1), "previous owner must be unbound when a new register claims its slot")
	assert.True(t, a.IsDirty(r2))
	assert.Equal(t, r2, a.TryGetRegisterForOffset(8, ClassGP))
}

func TestFlushAllDirtyClearsBindings(t *testing.T) {
	a := New()
	r := a.AllocateGP()
	a.Bind(r, -8, 32)

	var flushed []Register
	a.FlushAllDirty(func(reg Register, offset int32, sizeBits int) {
		flushed = append(flushed, reg)
	})

	assert.Len(t, flushed, 1)
	assert.False(t, a.IsDirty(r))
	assert.Equal(t, int32(NoOffset), a.Offset(r))
	assert.False(t, a.HasAnyBinding())
}

func TestInvalidateCallerSavedClearsOnlyThoseRegisters(t *testing.T) {
	a := New()
	a.Bind(RAX, -8, 64)
	a.Bind(RBX, -16, 64) // RBX is callee-saved, must survive.

	a.InvalidateCallerSaved(CallerSavedSysV)

	assert.Equal(t, int32(NoOffset), a.Offset(RAX))
	assert.Equal(t, int32(-16), a.Offset(RBX))
}

func TestAllocateWithSpillingPrefersCleanVictim(t *testing.T) {
	a := New()
	var spilled []Register
	sink := func(reg Register, offset int32, sizeBits int) {
		spilled = append(spilled, reg)
	}

	// Allocate all 14 allocatable GP registers; bind all but one as dirty.
	regs := make([]Register, 0, 14)
	for {
		r := a.AllocateGP()
		if !r.IsValid() {
			break
		}
		regs = append(regs, r)
	}
	require.Len(t, regs, 14)
	for i, r := range regs[:13] {
		a.Bind(r, int32(-8*(i+1)), 64)
	}
	// regs[13] stays clean (allocated but never bound/dirty).

	victim, err := a.AllocateWithSpilling(ClassGP, sink)
	require.NoError(t, err)
	assert.Equal(t, regs[13], victim, "clean register must be preferred as spill victim")
	assert.Empty(t, spilled, "clean victim requires no writeback")
}

func TestResetClearsEverything(t *testing.T) {
	a := New()
	r := a.AllocateGP()
	a.Bind(r, -8, 32)
	a.Reset()
	assert.False(t, a.HasAnyBinding())
	assert.False(t, a.IsDirty(r))
}
