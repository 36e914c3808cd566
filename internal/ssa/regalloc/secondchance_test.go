package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// New(SecondChance, ...) must not itself populate Unhandled: that is
// Seed's job. A rerun that Seed never touched must start empty.
func TestNewSecondChanceStartsEmpty(t *testing.T) {
	f := ssa.NewFunc("f")
	a := f.NewValue(hir.I64)
	a.Range.Add(0, 10)

	mask := x86.RegSet(0).Add(x86.RAX)
	alloc := New(SecondChance, []*ssa.Variable{a}, x86.ClassGP, mask)

	require.Empty(t, alloc.Unhandled)
	require.Empty(t, alloc.UnhandledPrecolored)
}

// Seed must route the prior run's survivors to Committed (not Unhandled,
// where they would be reprocessed or made evictable again) and only the
// prior run's evictees to Unhandled, sorted by ascending Range.Begin so
// expireAndReactivate's precondition holds on the rerun.
func TestSecondChanceSeedSplitsSurvivorsAndEvictees(t *testing.T) {
	f := ssa.NewFunc("f")

	survivor := f.NewValue(hir.I64)
	survivor.Range.Add(0, 20)
	survivor.HasReg = true
	survivor.Reg = x86.Reg{Class: x86.ClassGP, Num: x86.RAX}

	evictedLate := f.NewValue(hir.I64)
	evictedLate.Range.Add(10, 15)

	evictedEarly := f.NewValue(hir.I64)
	evictedEarly.Range.Add(2, 8)

	prev := New(Global, nil, x86.ClassGP, x86.RegSet(0).Add(x86.RAX))
	prev.Handled = []*ssa.Variable{survivor}
	prev.Evicted = []*ssa.Variable{evictedLate, evictedEarly}

	mask := x86.RegSet(0).Add(x86.RAX).Add(x86.RCX)
	next := New(SecondChance, []*ssa.Variable{survivor, evictedLate, evictedEarly}, x86.ClassGP, mask)
	next.Seed(prev)

	require.Contains(t, next.Committed, survivor)
	require.NotContains(t, next.Unhandled, survivor)

	require.Equal(t, []*ssa.Variable{evictedEarly, evictedLate}, next.Unhandled)
}

// a survivor committed by Seed must remain an obstacle on the rerun: its
// register is excluded from freeMask and rejected by strictlyForbidden for
// any overlapping variable, without the survivor itself ever being
// reprocessed.
func TestSecondChanceCommittedSurvivorBlocksItsRegister(t *testing.T) {
	f := ssa.NewFunc("f")

	survivor := f.NewValue(hir.I64)
	survivor.Range.Add(0, 20)
	survivor.HasReg = true
	survivor.Reg = x86.Reg{Class: x86.ClassGP, Num: x86.RAX}

	evictee := f.NewValue(hir.I64)
	evictee.Range.Add(5, 12) // overlaps survivor's range

	prev := New(Global, nil, x86.ClassGP, x86.RegSet(0).Add(x86.RAX).Add(x86.RCX))
	prev.Handled = []*ssa.Variable{survivor}
	prev.Evicted = []*ssa.Variable{evictee}

	mask := x86.RegSet(0).Add(x86.RAX).Add(x86.RCX)
	next := New(SecondChance, []*ssa.Variable{survivor, evictee}, x86.ClassGP, mask)
	next.Seed(prev)

	free := next.freeMask(evictee)
	require.False(t, free.Has(x86.RAX), "committed survivor's register must not appear free")
	require.True(t, free.Has(x86.RCX))
	require.True(t, next.strictlyForbidden(x86.RAX, evictee))

	next.Run()
	require.NotEqual(t, x86.RAX, evictee.Reg.Num, "evicted retry must not double-book the committed survivor's register")
}
