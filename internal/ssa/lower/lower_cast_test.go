package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/cpu"
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// end-to-end scenario 6: sext i1 to i32 lowers to movzx; shl 31; sar 31;
// mov into the final destination, regardless of which register the
// intermediate temporary lands in.
func TestSextI1ToI32(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	bit := c.Func.NewValue(hir.I1)
	dst := c.Func.NewValue(hir.I32)

	c.Cast(dst, hir.CastSext, &ssa.VarOperand{V: bit}, hir.I1, hir.I32)

	require.False(t, c.Func.HasError())
	ops := x86Ops(n)
	require.Equal(t, []x86.Opcode{x86.OpMovzx, x86.OpShl, x86.OpSar, x86.OpMov}, ops)

	shl := n.Ins[1].(*ssa.Instruction)
	require.Equal(t, int64(31), shl.Sources()[1].(*ssa.ConstInt).Val)
	sar := n.Ins[2].(*ssa.Instruction)
	require.Equal(t, int64(31), sar.Sources()[1].(*ssa.ConstInt).Val)

	movzx := n.Ins[0].(*ssa.Instruction)
	movzxDst, ok := movzx.Dest()
	require.True(t, ok)

	shlDst, _ := shl.Dest()
	sarDst, _ := sar.Dest()
	require.Same(t, movzxDst, shlDst)
	require.Same(t, movzxDst, sarDst)

	final := n.Ins[3].(*ssa.Instruction)
	finalDst, ok := final.Dest()
	require.True(t, ok)
	require.Same(t, dst, finalDst)
}

// zext of an i1 widens via a single movzx.
func TestZextI1ToI32(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	bit := c.Func.NewValue(hir.I1)
	dst := c.Func.NewValue(hir.I32)

	c.Cast(dst, hir.CastZext, &ssa.VarOperand{V: bit}, hir.I1, hir.I32)

	require.Equal(t, []x86.Opcode{x86.OpMovzx}, x86Ops(n))
}

// an i64-involving cast on a 32-bit target must have already been
// rewritten to a helper call; reaching Cast directly is an error.
func TestCastI64On32BitTargetFails(t *testing.T) {
	c, _ := newTestContext(Bits32, cpu.Baseline())

	src := c.Func.NewValue(hir.I64)
	dst := c.Func.NewValue(hir.I32)

	c.Cast(dst, hir.CastTrunc, &ssa.VarOperand{V: src}, hir.I64, hir.I32)

	require.True(t, c.Func.HasError())
}
