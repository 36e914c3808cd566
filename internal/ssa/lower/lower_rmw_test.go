package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
)

func addrTo(base *ssa.Variable) *ssa.AddrMode {
	return &ssa.AddrMode{HasBase: true, Base: base}
}

// a plain Load/Add/Store triple over the same address, with no other
// reader of the load or the arith result, fuses.
func TestDetectRMWFusesSimpleTriple(t *testing.T) {
	f := ssa.NewFunc("f")
	n := ssa.NewNode(0)
	f.AddNode(n)

	p := f.NewValue(hir.I64)
	x := f.NewValue(hir.I64)

	loadDst := f.NewValue(hir.I64)
	load := ssa.NewInstruction(ssa.OpLoad, loadDst, &ssa.VarOperand{V: p})
	load.Mem = addrTo(p)

	arithDst := f.NewValue(hir.I64)
	arith := ssa.NewInstruction(ssa.OpArith, arithDst, &ssa.VarOperand{V: loadDst}, &ssa.VarOperand{V: x})
	arith.ArithOp = hir.OpAdd

	store := ssa.NewInstruction(ssa.OpStore, nil, &ssa.VarOperand{V: p}, &ssa.VarOperand{V: arithDst})
	store.Mem = addrTo(p)

	n.Append(load)
	n.Append(arith)
	n.Append(store)

	cands := DetectRMW(n)
	require.Len(t, cands, 1)
	require.Same(t, load, cands[0].Load)
	require.Same(t, arith, cands[0].Op)
	require.Same(t, store, cands[0].Store)
	require.Equal(t, hir.RMWAdd, cands[0].AtomicOp)
}

// a≠[p]; b←add a,x; store b→[p]; c←add a,y -- the loaded value has a
// second reader beyond the arith op, so fusing would delete the load out
// from under c. Must not fuse.
func TestDetectRMWRejectsLoadWithSecondUse(t *testing.T) {
	f := ssa.NewFunc("f")
	n := ssa.NewNode(0)
	f.AddNode(n)

	p := f.NewValue(hir.I64)
	x := f.NewValue(hir.I64)
	y := f.NewValue(hir.I64)

	loadDst := f.NewValue(hir.I64)
	load := ssa.NewInstruction(ssa.OpLoad, loadDst, &ssa.VarOperand{V: p})
	load.Mem = addrTo(p)

	arithDst := f.NewValue(hir.I64)
	arith := ssa.NewInstruction(ssa.OpArith, arithDst, &ssa.VarOperand{V: loadDst}, &ssa.VarOperand{V: x})
	arith.ArithOp = hir.OpAdd

	store := ssa.NewInstruction(ssa.OpStore, nil, &ssa.VarOperand{V: p}, &ssa.VarOperand{V: arithDst})
	store.Mem = addrTo(p)

	cDst := f.NewValue(hir.I64)
	second := ssa.NewInstruction(ssa.OpArith, cDst, &ssa.VarOperand{V: loadDst}, &ssa.VarOperand{V: y})
	second.ArithOp = hir.OpAdd

	n.Append(load)
	n.Append(arith)
	n.Append(store)
	n.Append(second)

	require.False(t, loadDst.IsSingleUse())
	require.Empty(t, DetectRMW(n))
}

// store d->[p], where d is unrelated to the arith's result, must not fuse
// into a locked op that would store the wrong value.
func TestDetectRMWRejectsStoreOfUnrelatedValue(t *testing.T) {
	f := ssa.NewFunc("f")
	n := ssa.NewNode(0)
	f.AddNode(n)

	p := f.NewValue(hir.I64)
	x := f.NewValue(hir.I64)
	d := f.NewValue(hir.I64)

	loadDst := f.NewValue(hir.I64)
	load := ssa.NewInstruction(ssa.OpLoad, loadDst, &ssa.VarOperand{V: p})
	load.Mem = addrTo(p)

	arithDst := f.NewValue(hir.I64)
	arith := ssa.NewInstruction(ssa.OpArith, arithDst, &ssa.VarOperand{V: loadDst}, &ssa.VarOperand{V: x})
	arith.ArithOp = hir.OpAdd

	store := ssa.NewInstruction(ssa.OpStore, nil, &ssa.VarOperand{V: p}, &ssa.VarOperand{V: d})
	store.Mem = addrTo(p)

	n.Append(load)
	n.Append(arith)
	n.Append(store)

	require.Empty(t, DetectRMW(n))
}

// a load and a store sharing a base but differing index must not be
// treated as the same address.
func TestSameAddressRejectsDifferingIndex(t *testing.T) {
	f := ssa.NewFunc("f")

	p := f.NewValue(hir.I64)
	i := f.NewValue(hir.I64)
	j := f.NewValue(hir.I64)
	x := f.NewValue(hir.I64)

	loadDst := f.NewValue(hir.I64)
	load := ssa.NewInstruction(ssa.OpLoad, loadDst, &ssa.VarOperand{V: p})
	load.Mem = &ssa.AddrMode{HasBase: true, Base: p, HasIndex: true, Index: i, Scale: 0}

	arithDst := f.NewValue(hir.I64)
	arith := ssa.NewInstruction(ssa.OpArith, arithDst, &ssa.VarOperand{V: loadDst}, &ssa.VarOperand{V: x})
	arith.ArithOp = hir.OpAdd

	store := ssa.NewInstruction(ssa.OpStore, nil, &ssa.VarOperand{V: p}, &ssa.VarOperand{V: arithDst})
	store.Mem = &ssa.AddrMode{HasBase: true, Base: p, HasIndex: true, Index: j, Scale: 0}

	require.False(t, sameAddress(load, store))
}
