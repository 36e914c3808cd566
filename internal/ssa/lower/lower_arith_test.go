package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/cpu"
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// newTestContext builds a Context over a single empty node, ready for a
// lowering function to emit into via its Cursor.
func newTestContext(bits Bits, features cpu.Features) (*Context, *ssa.Node) {
	gctx := ssa.NewGlobalContext(nil)
	f := ssa.NewFunc("f")
	n := ssa.NewNode(0)
	f.AddNode(n)

	c := NewContext(gctx, f, bits, features, nil)
	c.Cursor = &ssa.Cursor{}
	c.Cursor.Init(n)
	return c, n
}

func x86Ops(n *ssa.Node) []x86.Opcode {
	ops := make([]x86.Opcode, len(n.Ins))
	for i, ins := range n.Ins {
		ops[i] = ins.(*ssa.Instruction).X86Op
	}
	return ops
}

// end-to-end scenario 1: i32 multiply by 100 strength-reduces to two leas
// and a shl, with no imul.
func TestMulByConstant100StrengthReduces(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	x := c.Func.NewValue(hir.I32)
	dst := c.Func.NewValue(hir.I32)

	c.Arith(dst, hir.OpMul, &ssa.VarOperand{V: x}, &ssa.ConstInt{Ty: hir.I32, Val: 100}, hir.I32)

	require.False(t, c.Func.HasError())
	ops := x86Ops(n)
	require.Equal(t, []x86.Opcode{x86.OpLea, x86.OpLea, x86.OpShl}, ops)

	for _, op := range ops {
		require.NotEqual(t, x86.OpImul, op)
	}

	last := n.Ins[len(n.Ins)-1].(*ssa.Instruction)
	d, ok := last.Dest()
	require.True(t, ok)
	require.Same(t, dst, d)
}

// multiplying by a constant with no strength-reduction plan (e.g. a large
// prime) falls back to a plain imul.
func TestMulByConstantWithoutPlanFallsBackToImul(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	x := c.Func.NewValue(hir.I32)
	dst := c.Func.NewValue(hir.I32)

	c.Arith(dst, hir.OpMul, &ssa.VarOperand{V: x}, &ssa.ConstInt{Ty: hir.I32, Val: 17}, hir.I32)

	require.False(t, c.Func.HasError())
	ops := x86Ops(n)
	require.Contains(t, ops, x86.OpImul)
}

// multiplying by 10 (2*5, one factor step plus one shift) strength-reduces
// to a lea and a shl with no imul.
func TestMulByConstant10StrengthReduces(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	x := c.Func.NewValue(hir.I32)
	dst := c.Func.NewValue(hir.I32)

	c.Arith(dst, hir.OpMul, &ssa.VarOperand{V: x}, &ssa.ConstInt{Ty: hir.I32, Val: 10}, hir.I32)

	require.False(t, c.Func.HasError())
	ops := x86Ops(n)
	require.Equal(t, []x86.Opcode{x86.OpLea, x86.OpShl}, ops)
}

// multiplying by 45 (9*5, two lea factor steps) strength-reduces with no
// imul or shl at all.
func TestMulByConstant45StrengthReduces(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	x := c.Func.NewValue(hir.I32)
	dst := c.Func.NewValue(hir.I32)

	c.Arith(dst, hir.OpMul, &ssa.VarOperand{V: x}, &ssa.ConstInt{Ty: hir.I32, Val: 45}, hir.I32)

	require.False(t, c.Func.HasError())
	ops := x86Ops(n)
	require.Equal(t, []x86.Opcode{x86.OpLea, x86.OpLea}, ops)
}

// multiplying by a negative constant in the reducible set (-9) reduces the
// magnitude and appends a trailing neg, never falling back to imul.
func TestMulByNegativeConstantStrengthReducesWithNeg(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	x := c.Func.NewValue(hir.I32)
	dst := c.Func.NewValue(hir.I32)

	c.Arith(dst, hir.OpMul, &ssa.VarOperand{V: x}, &ssa.ConstInt{Ty: hir.I32, Val: -9}, hir.I32)

	require.False(t, c.Func.HasError())
	ops := x86Ops(n)
	require.Equal(t, []x86.Opcode{x86.OpLea, x86.OpNeg}, ops)
	require.NotContains(t, ops, x86.OpImul)
}

// end-to-end scenario 3: v4i32 multiply without SSE4.1 lowers to the
// pmuludq/pshufd/shufps recombination sequence, never pmulld.
func TestV4i32MultiplyWithoutSSE41(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Baseline())

	a := c.Func.NewValue(hir.V4i32)
	b := c.Func.NewValue(hir.V4i32)
	dst := c.Func.NewValue(hir.V4i32)

	c.Arith(dst, hir.OpMul, &ssa.VarOperand{V: a}, &ssa.VarOperand{V: b}, hir.V4i32)

	require.False(t, c.Func.HasError())
	ops := x86Ops(n)
	require.Equal(t, []x86.Opcode{
		x86.OpMovaps, x86.OpMovaps, x86.OpPmuludq,
		x86.OpPshufd, x86.OpPshufd, x86.OpPmuludq,
		x86.OpShufps, x86.OpPshufd,
	}, ops)

	shufps := n.Ins[6].(*ssa.Instruction)
	require.Len(t, shufps.Sources(), 3)
	require.Equal(t, int64(0x88), shufps.Sources()[2].(*ssa.ConstInt).Val)

	finalShuffle := n.Ins[7].(*ssa.Instruction)
	require.Equal(t, int64(0xd8), finalShuffle.Sources()[1].(*ssa.ConstInt).Val)
	d, ok := finalShuffle.Dest()
	require.True(t, ok)
	require.Same(t, dst, d)
}

// with SSE4.1 available, the same multiply instead uses a single pmulld.
func TestV4i32MultiplyWithSSE41(t *testing.T) {
	c, n := newTestContext(Bits64, cpu.Features{HasSSE41: true})

	a := c.Func.NewValue(hir.V4i32)
	b := c.Func.NewValue(hir.V4i32)
	dst := c.Func.NewValue(hir.V4i32)

	c.Arith(dst, hir.OpMul, &ssa.VarOperand{V: a}, &ssa.VarOperand{V: b}, hir.V4i32)

	ops := x86Ops(n)
	require.Contains(t, ops, x86.OpPmulld)
	require.NotContains(t, ops, x86.OpPmuludq)
}
