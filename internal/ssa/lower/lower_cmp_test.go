package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/cpu"
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// a scalar fcmp lowers to ucomiss/setcc, never the packed cmpps used by
// the vector path.
func TestFcmpScalarUsesUcomiss(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	a := c.Func.NewValue(hir.F32)
	b := c.Func.NewValue(hir.F32)
	dst := c.Func.NewValue(hir.I1)

	c.Fcmp(dst, hir.FcmpOlt, &ssa.VarOperand{V: a}, &ssa.VarOperand{V: b}, hir.F32)

	ops := x86Ops(n)
	require.Contains(t, ops, x86.OpUcomiss)
	require.Contains(t, ops, x86.OpSetcc)
	require.NotContains(t, ops, x86.OpCmpps)

	last := n.Ins[len(n.Ins)-1].(*ssa.Instruction)
	d, ok := last.Dest()
	require.True(t, ok)
	require.Same(t, dst, d)
}

// Oeq needs two conditions (ordered AND equal) anded together into dst.
func TestFcmpScalarOeqCombinesTwoSetcc(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	a := c.Func.NewValue(hir.F64)
	b := c.Func.NewValue(hir.F64)
	dst := c.Func.NewValue(hir.I1)

	c.Fcmp(dst, hir.FcmpOeq, &ssa.VarOperand{V: a}, &ssa.VarOperand{V: b}, hir.F64)

	ops := x86Ops(n)
	require.Contains(t, ops, x86.OpUcomisd)

	setccCount := 0
	for _, op := range ops {
		if op == x86.OpSetcc {
			setccCount++
		}
	}
	require.Equal(t, 2, setccCount)
	require.Contains(t, ops, x86.OpAnd)
}

// a vector fcmp lowers via cmpps, never ucomiss.
func TestFcmpVectorUsesCmpps(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	a := c.Func.NewValue(hir.V4f32)
	b := c.Func.NewValue(hir.V4f32)
	dst := c.Func.NewValue(hir.V4f32)

	c.Fcmp(dst, hir.FcmpOlt, &ssa.VarOperand{V: a}, &ssa.VarOperand{V: b}, hir.V4f32)

	ops := x86Ops(n)
	require.Contains(t, ops, x86.OpCmpps)
	require.NotContains(t, ops, x86.OpUcomiss)
}

// One (unordered-or-not-equal's complement, "ordered and not equal") needs
// two cmpps results combined with pand in the vector path.
func TestFcmpVectorOneCombinesWithPand(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	a := c.Func.NewValue(hir.V4f32)
	b := c.Func.NewValue(hir.V4f32)
	dst := c.Func.NewValue(hir.V4f32)

	c.Fcmp(dst, hir.FcmpOne, &ssa.VarOperand{V: a}, &ssa.VarOperand{V: b}, hir.V4f32)

	ops := x86Ops(n)
	cmppsCount := 0
	for _, op := range ops {
		if op == x86.OpCmpps {
			cmppsCount++
		}
	}
	require.Equal(t, 2, cmppsCount)
	require.Contains(t, ops, x86.OpPand)
}

// fcmp false/true short-circuit to a zeroed/all-ones result without
// touching either operand.
func TestFcmpFalseAndTrueShortCircuit(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())
	dst := c.Func.NewValue(hir.I1)

	c.Fcmp(dst, hir.FcmpFalse, &ssa.VarOperand{V: c.Func.NewValue(hir.F32)}, &ssa.VarOperand{V: c.Func.NewValue(hir.F32)}, hir.F32)
	require.Equal(t, []x86.Opcode{x86.OpXor}, x86Ops(n))

	c2, n2 := newTestContext(Bits64, cpu.Baseline())
	dst2 := c2.Func.NewValue(hir.I1)

	c2.Fcmp(dst2, hir.FcmpTrue, &ssa.VarOperand{V: c2.Func.NewValue(hir.F32)}, &ssa.VarOperand{V: c2.Func.NewValue(hir.F32)}, hir.F32)
	require.Equal(t, []x86.Opcode{x86.OpMov}, x86Ops(n2))
}
