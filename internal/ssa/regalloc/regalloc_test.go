package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// two variables whose live ranges overlap end-to-end must never receive
// the same physical register, the invariant freeMask's Active exclusion
// exists to uphold.
func TestFreeMaskExcludesActive(t *testing.T) {
	f := ssa.NewFunc("f")

	a := f.NewValue(hir.I64)
	a.Range.Add(0, 10)

	b := f.NewValue(hir.I64)
	b.Range.Add(2, 8)

	mask := x86.RegSet(0).Add(x86.RAX).Add(x86.RCX)

	alloc := New(Global, []*ssa.Variable{a, b}, x86.ClassGP, mask)
	alloc.Run()

	require.True(t, a.HasReg)
	require.True(t, b.HasReg)
	require.NotEqual(t, a.Reg.Num, b.Reg.Num, "overlapping live ranges colored into the same register")
}

// with only one register available, one of two overlapping variables must
// be evicted or spilled rather than double-booked.
func TestSingleRegisterForcesEviction(t *testing.T) {
	f := ssa.NewFunc("f")

	a := f.NewValue(hir.I64)
	a.Range.Add(0, 10)
	a.Weight = 1

	b := f.NewValue(hir.I64)
	b.Range.Add(2, 8)
	b.Weight = 100

	mask := x86.RegSet(0).Add(x86.RAX)

	alloc := New(Global, []*ssa.Variable{a, b}, x86.ClassGP, mask)
	alloc.Run()

	// whichever of the two ends up colored, both cannot hold RAX at once.
	if a.HasReg && b.HasReg {
		require.NotEqual(t, a.Reg.Num, b.Reg.Num)
	}
}
