package ssa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/hir"
)

// an icmp feeding a br as its sole, last use folds into the br: the
// producer ends up dead and is the value BoolFolder reports for it (BF-1).
func TestBoolFolderFoldsIcmpIntoBr(t *testing.T) {
	f := NewFunc("f")
	n := NewNode(0)
	f.AddNode(n)

	a := f.NewValue(hir.I32)
	b := f.NewValue(hir.I32)
	cond := f.NewValue(hir.I1)

	cmp := NewInstruction(OpIcmp, cond, &VarOperand{V: a}, &VarOperand{V: b})
	cmp.IcmpCond = hir.IcmpEq
	cmp.Ty = hir.I32
	n.Append(cmp)

	br := NewInstruction(OpBr, nil, &VarOperand{V: cond})
	br.SetLastUse(0, true)
	n.Append(br)

	bf := NewBoolFolder()
	bf.Analyze(n, false)

	producer := bf.ProducerFor(&VarOperand{V: cond})
	require.NotNil(t, producer)
	require.Same(t, cmp, producer)
	require.True(t, producer.Dead())

	dst, ok := producer.Dest()
	require.True(t, ok)
	require.Same(t, cond, dst)
}

// a producer whose i1 result is still live out of the node (no consumer
// consumed it as a last use within the node) must not be folded: it stays
// out of BoolFolder's table and is left alive (BF-2).
func TestBoolFolderLeavesLiveOutProducerAlone(t *testing.T) {
	f := NewFunc("f")
	n := NewNode(0)
	f.AddNode(n)

	a := f.NewValue(hir.I32)
	b := f.NewValue(hir.I32)
	cond := f.NewValue(hir.I1)

	cmp := NewInstruction(OpIcmp, cond, &VarOperand{V: a}, &VarOperand{V: b})
	cmp.IcmpCond = hir.IcmpEq
	cmp.Ty = hir.I32
	n.Append(cmp)

	br := NewInstruction(OpBr, nil, &VarOperand{V: cond})
	// no SetLastUse(0, true): cond is treated as still live past this node.
	n.Append(br)

	bf := NewBoolFolder()
	bf.Analyze(n, false)

	require.Nil(t, bf.ProducerFor(&VarOperand{V: cond}))
	require.False(t, cmp.Dead())
}

// a consumer outside the Br/Select whitelist (e.g. an ordinary arithmetic
// use) also disqualifies the producer from folding, even when it is the
// value's only use.
func TestBoolFolderRejectsNonWhitelistedConsumer(t *testing.T) {
	f := NewFunc("f")
	n := NewNode(0)
	f.AddNode(n)

	a := f.NewValue(hir.I32)
	b := f.NewValue(hir.I32)
	cond := f.NewValue(hir.I1)
	widened := f.NewValue(hir.I32)

	cmp := NewInstruction(OpIcmp, cond, &VarOperand{V: a}, &VarOperand{V: b})
	cmp.IcmpCond = hir.IcmpEq
	cmp.Ty = hir.I32
	n.Append(cmp)

	cast := NewInstruction(OpCast, widened, &VarOperand{V: cond})
	cast.CastKind = hir.CastZext
	cast.SetLastUse(0, true)
	n.Append(cast)

	bf := NewBoolFolder()
	bf.Analyze(n, false)

	require.Nil(t, bf.ProducerFor(&VarOperand{V: cond}))
	require.False(t, cmp.Dead())
}
