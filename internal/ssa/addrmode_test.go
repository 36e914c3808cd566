package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/hir"
)

// buildFoldableChain constructs t1 = b*4; t2 = c+t1; t3 = t2+8, the shape
// end-to-end scenario 5 folds entirely into one AddrMode, and returns the
// three defining instructions alongside the leaf variables.
func buildFoldableChain(f *Func) (b, c *Variable, t3 *Variable, defs []Instr) {
	b = f.NewValue(hir.I64)
	c = f.NewValue(hir.I64)

	t1 := f.NewValue(hir.I64)
	mul := NewInstruction(OpArith, t1, &VarOperand{V: b}, &ConstInt{Ty: hir.I64, Val: 4})
	mul.ArithOp = hir.OpMul

	t2 := f.NewValue(hir.I64)
	add := NewInstruction(OpArith, t2, &VarOperand{V: c}, &VarOperand{V: t1})
	add.ArithOp = hir.OpAdd

	t3 = f.NewValue(hir.I64)
	off := NewInstruction(OpArith, t3, &VarOperand{V: t2}, &ConstInt{Ty: hir.I64, Val: 8})
	off.ArithOp = hir.OpAdd

	// the load the chain feeds, giving t3 the single use a real address has.
	ld := f.NewValue(hir.I64)
	_ = NewInstruction(OpLoad, ld, &VarOperand{V: t3})

	return b, c, t3, []Instr{mul, add, off}
}

// the fold reduces base+index*scale+disp to exactly the effective address
// the original three-instruction chain computed, for every concrete
// assignment to the free variables (AM-1), and consumes every instruction
// it folded away.
func TestSynthesizeAddressFoldsMulAddOffset(t *testing.T) {
	f := NewFunc("f")
	b, c, t3, defs := buildFoldableChain(f)

	am, consumed, ok := SynthesizeAddress(t3)
	require.True(t, ok)

	require.True(t, am.HasBase)
	require.Same(t, c, am.Base)
	require.True(t, am.HasIndex)
	require.Same(t, b, am.Index)
	require.EqualValues(t, 2, am.Scale) // log2(4)
	require.EqualValues(t, 8, am.Disp)

	require.ElementsMatch(t, defs, consumed)

	for _, bVal := range []int64{0, 1, 3, -7} {
		for _, cVal := range []int64{0, 100, -50} {
			original := cVal + bVal*4 + 8 // c + t1 + 8, t1 = b*4
			synthesized := cVal + bVal*(1<<am.Scale) + int64(am.Disp)
			require.Equal(t, original, synthesized)
		}
	}
}

// running the fold again from the same starting base is a no-op: the
// second call observes the same instruction defs (still not deleted by
// SynthesizeAddress itself) and reaches the identical fixed point.
func TestSynthesizeAddressIsIdempotent(t *testing.T) {
	f := NewFunc("f")
	_, _, t3, _ := buildFoldableChain(f)

	first, _, ok1 := SynthesizeAddress(t3)
	require.True(t, ok1)

	second, _, ok2 := SynthesizeAddress(t3)
	require.True(t, ok2)

	require.Equal(t, first, second)
}

// a base with no foldable structure at all (a bare parameter) reports ok
// == false rather than a degenerate zero-value AddrMode.
func TestSynthesizeAddressNoRuleFires(t *testing.T) {
	f := NewFunc("f")
	base := f.NewValue(hir.I64)

	am, consumed, ok := SynthesizeAddress(base)
	require.False(t, ok)
	require.Nil(t, am)
	require.Nil(t, consumed)
}

// a base+index add whose result is read by something other than the
// address fold itself (t1 = a+b; load [t1]; store t1 -> [q]) must not be
// folded away: t1's second use would be left reading a deleted def.
func TestSynthesizeAddressLeavesMultiUseDefIntact(t *testing.T) {
	f := NewFunc("f")
	a := f.NewValue(hir.I64)
	b := f.NewValue(hir.I64)

	t1 := f.NewValue(hir.I64)
	add := NewInstruction(OpArith, t1, &VarOperand{V: a}, &VarOperand{V: b})
	add.ArithOp = hir.OpAdd

	// the address use of t1: load [t1].
	ld := f.NewValue(hir.I64)
	_ = NewInstruction(OpLoad, ld, &VarOperand{V: t1})

	// second use of t1, outside the fold: a store of t1's own value.
	q := f.NewValue(hir.I64)
	_ = NewInstruction(OpStore, nil, &VarOperand{V: q}, &VarOperand{V: t1})

	require.False(t, t1.IsSingleUse())

	am, consumed, ok := SynthesizeAddress(t1)
	require.False(t, ok)
	require.Nil(t, am)
	require.Nil(t, consumed)
}
