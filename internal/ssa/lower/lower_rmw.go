package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
)

// RMWCandidate is a detected Load/op/Store triple: a load from addr, a
// binary op combining the loaded value with operand, and a store of the
// result back to the same address, all within one node with no
// intervening use of the loaded value elsewhere (spec.md §4.H step 6,
// "RMW detection: Load/op/Store triple recognition, FakeRMW beacon
// insertion").
type RMWCandidate struct {
	Load    *ssa.Instruction
	Op      *ssa.Instruction
	Store   *ssa.Instruction
	AtomicOp hir.AtomicRMWOp
	HasOp   bool
}

// DetectRMW scans node for Load/op/Store triples eligible for fusion into
// a single locked instruction, matching by address identity and requiring
// the loaded value's only use be the arithmetic op immediately preceding
// the store.
func DetectRMW(node *ssa.Node) []RMWCandidate {
	var out []RMWCandidate
	ins := node.Ins
	for i := 0; i+2 < len(ins); i++ {
		load, ok := ins[i].(*ssa.Instruction)
		if !ok || load.Op != ssa.OpLoad || load.Deleted() {
			continue
		}
		arith, ok := ins[i+1].(*ssa.Instruction)
		if !ok || arith.Op != ssa.OpArith || arith.Deleted() {
			continue
		}
		store, ok := ins[i+2].(*ssa.Instruction)
		if !ok || store.Op != ssa.OpStore || store.Deleted() {
			continue
		}

		loadDst, hasDst := load.Dest()
		if !hasDst || !loadDst.IsSingleUse() {
			continue
		}
		if !usesOnly(arith, loadDst) {
			continue
		}
		arithDst, hasArithDst := arith.Dest()
		if !hasArithDst || !arithDst.IsSingleUse() {
			continue
		}
		if len(store.Sources()) < 2 {
			continue
		}
		if storedVal, ok := ssa.AsVariable(store.Sources()[1]); !ok || storedVal != arithDst {
			continue
		}
		if !sameAddress(load, store) {
			continue
		}

		rmwOp, ok := arithToRMW(arith.ArithOp)
		if !ok {
			continue
		}

		out = append(out, RMWCandidate{Load: load, Op: arith, Store: store, AtomicOp: rmwOp, HasOp: true})
	}
	return out
}

// usesOnly reports whether ins reads v among its sources, given that v's
// definition-site oracle has already established ins is v's only reader
// anywhere in the function (IsSingleUse, checked by the caller).
func usesOnly(ins *ssa.Instruction, v *ssa.Variable) bool {
	for _, use := range ins.VarSources() {
		if use.V == v {
			return true
		}
	}
	return false
}

func sameAddress(load, store *ssa.Instruction) bool {
	if load.Mem == nil || store.Mem == nil {
		return false
	}
	return load.Mem.Base == store.Mem.Base &&
		load.Mem.HasIndex == store.Mem.HasIndex &&
		load.Mem.Index == store.Mem.Index &&
		load.Mem.Scale == store.Mem.Scale &&
		load.Mem.Disp == store.Mem.Disp &&
		load.Mem.Sym == store.Mem.Sym
}

func arithToRMW(op hir.Op) (hir.AtomicRMWOp, bool) {
	switch op {
	case hir.OpAdd:
		return hir.RMWAdd, true
	case hir.OpSub:
		return hir.RMWSub, true
	case hir.OpAnd:
		return hir.RMWAnd, true
	case hir.OpOr:
		return hir.RMWOr, true
	case hir.OpXor:
		return hir.RMWXor, true
	default:
		return 0, false
	}
}

// FuseRMW rewrites a detected candidate into a single OpFakeRMW beacon
// that carries enough information for the emitter to select a locked
// instruction, deleting the original load/op/store trio.
func FuseRMW(c *Context, cand RMWCandidate) {
	other, _ := cand.Op.Dest()
	loadDst, _ := cand.Load.Dest()

	var val ssa.Operand
	for _, s := range cand.Op.Sources() {
		if v, ok := ssa.AsVariable(s); !ok || v != loadDst {
			val = s
		}
	}

	beacon := ssa.NewInstruction(ssa.OpFakeRMW, other)
	beacon.Mem = cand.Load.Mem
	beacon.RMWOp = cand.AtomicOp
	beacon.Ty = cand.Load.Ty
	beacon.Args = []ssa.Operand{val}

	c.Node.Append(beacon)
	cand.Load.SetDeleted()
	cand.Op.SetDeleted()
	cand.Store.SetDeleted()
}
