// Package driver ties internal/ssa/lower and internal/ssa/regalloc into
// the per-function compilation pipeline of spec.md §4.H, run by Compile
// as a fixed sequence of steps.
package driver

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
)

// builder's operand method resolves one hir operand slot: a non-negative Id names a
// value produced somewhere in the function; a negative Id (-(k+1)) names
// Consts[k] instead. This is the convention the (out-of-scope) frontend
// is expected to follow when it wants a compile-time constant in an
// operand position that otherwise takes a Value — kept local to this
// package since core/lower/regalloc never need to know it.
type builder struct {
	gctx    *ssa.GlobalContext
	hf      *hir.Func
	f       *ssa.Func
	nodeMap map[int]*ssa.Node
	valMap  map[int]*ssa.Variable

	// allocaAlign records the alignment hir carried per alloca-producing
	// Variable, since ssa.Instruction has no dedicated Alloca fields.
	allocaAlign map[*ssa.Variable]uint8

	// branch records each ssa.Node's not-yet-lowered conditional-branch
	// metadata, translated from hir.Node's CondArg/CondTrue/CondFalse.
	branch map[*ssa.Node]*branchInfo
}

type branchInfo struct {
	Cond  ssa.Operand
	True  *ssa.Node
	False *ssa.Node
}

// Build translates hf, an already-CFG-built LLIR function (spec.md §1's
// out-of-scope frontend having already run), into this backend's own
// ssa.Func model: fresh Variables per hir.Value, ssa.Node per hir.Node
// with wiring preserved, and ssa.Instruction values that still mirror
// hir.Op one-for-one (real x86 lowering is the codegen pass, codegen.go).
func Build(gctx *ssa.GlobalContext, hf *hir.Func) (*ssa.Func, map[*ssa.Node]*branchInfo, map[*ssa.Variable]uint8) {
	b := &builder{
		gctx:        gctx,
		hf:          hf,
		f:           ssa.NewFunc(hf.Name),
		nodeMap:     map[int]*ssa.Node{},
		valMap:      map[int]*ssa.Variable{},
		allocaAlign: map[*ssa.Variable]uint8{},
		branch:      map[*ssa.Node]*branchInfo{},
	}

	for _, hn := range hf.Nodes {
		n := ssa.NewNode(hn.Id)
		n.LoopDepth = hn.LoopDepth
		b.nodeMap[hn.Id] = n
	}
	for _, hn := range hf.Nodes {
		b.f.AddNode(b.nodeMap[hn.Id])
	}
	for _, hn := range hf.Nodes {
		n := b.nodeMap[hn.Id]
		for _, s := range hn.Succs {
			n.AddSucc(b.nodeMap[s.Id])
		}
	}

	// Parameter values occupy Ids [0, len(Args)) by frontend convention
	// (documented in DESIGN.md); materialize them first so instruction
	// bodies referencing argument Ids resolve to the same Variables.
	for i, ty := range hf.Args {
		v := b.getVar(hir.Value{Id: i, Typ: ty})
		v.Flags |= ssa.FlagIsArg
		b.f.Params = append(b.f.Params, v)
	}

	for _, hn := range hf.Nodes {
		n := b.nodeMap[hn.Id]
		b.buildPhis(n, hn)
		for _, hi := range hn.Ins {
			if hi.Deleted() {
				continue
			}
			ins := b.translate(hi)
			if ins != nil {
				n.Append(ins)
			}
		}
		if hn.CondTrue != nil && hn.CondFalse != nil {
			b.branch[n] = &branchInfo{
				Cond:  b.operand(hn.CondArg, nil),
				True:  b.nodeMap[hn.CondTrue.Id],
				False: b.nodeMap[hn.CondFalse.Id],
			}
		}
	}

	return b.f, b.branch, b.allocaAlign
}

func (b *builder) getVar(hv hir.Value) *ssa.Variable {
	if v, ok := b.valMap[hv.Id]; ok {
		return v
	}
	v := b.f.NewValue(hv.Typ)
	b.valMap[hv.Id] = v
	return v
}

// operand resolves one operand Value against consts, the Consts slice of
// the instruction (or phi input) hv was taken from; nil is fine for
// contexts that never carry embedded constants (branch conditions, phi
// inputs coming from another Value).
func (b *builder) operand(hv hir.Value, consts []hir.Const) ssa.Operand {
	if hv.Id < 0 {
		k := -(hv.Id + 1)
		if k < len(consts) {
			return translateConst(b.gctx, consts[k])
		}
		return &ssa.ConstUndef{Ty: hv.Typ}
	}
	return &ssa.VarOperand{V: b.getVar(hv)}
}

func (b *builder) buildPhis(n *ssa.Node, hn *hir.Node) {
	for _, hp := range hn.Phis {
		if hp.Deleted() {
			continue
		}
		dst := b.getVar(hp.Dest)
		phi := &ssa.Phi{Dst: dst}
		for pred, val := range hp.PhiIn {
			phi.AddIncoming(b.nodeMap[pred.Id], b.operand(val, nil))
		}
		n.Phis = append(n.Phis, phi)
	}
}

func translateConst(gctx *ssa.GlobalContext, c hir.Const) ssa.Operand {
	switch c.Kind {
	case hir.ConstI32:
		return gctx.InternInt(uint8(hir.I32), int64(c.I32))
	case hir.ConstI64:
		return gctx.InternInt(uint8(hir.I64), c.I64)
	case hir.ConstF32:
		return gctx.InternFloat(uint8(hir.F32), float64(c.F32))
	case hir.ConstF64:
		return gctx.InternFloat(uint8(hir.F64), c.F64)
	case hir.ConstReloc:
		return gctx.InternReloc(c.Reloc.Sym, int32(c.Reloc.Offset), c.Reloc.SuppressMangling)
	default:
		return &ssa.ConstUndef{Ty: hir.I64}
	}
}

// translate converts one hir.Instr into its LLIR-shaped ssa.Instruction
// counterpart (Op mirrors hi.Op; real x86 selection is a later pass).
// Phi, Br, and Jump carry no Instr representation here: phis were already
// split off by buildPhis, and control flow is read directly off the
// owning hir.Node (CondArg/CondTrue/CondFalse, or the lone Succ).
func (b *builder) translate(hi *hir.Instr) *ssa.Instruction {
	var dst *ssa.Variable
	if hi.Dest.Typ != hir.Void {
		dst = b.getVar(hi.Dest)
	}

	args := func(i int) ssa.Operand { return b.operand(hi.Args[i], hi.Consts) }

	switch hi.Op {
	case hir.OpAssign:
		return ssa.NewInstruction(ssa.OpAssign, dst, args(0))

	case hir.OpAdd, hir.OpSub, hir.OpMul, hir.OpSdiv, hir.OpUdiv, hir.OpSrem, hir.OpUrem,
		hir.OpShl, hir.OpLshr, hir.OpAshr, hir.OpAnd, hir.OpOr, hir.OpXor,
		hir.OpFadd, hir.OpFsub, hir.OpFmul, hir.OpFdiv, hir.OpFrem:
		ins := ssa.NewInstruction(ssa.OpArith, dst, args(0), args(1))
		ins.ArithOp = hi.Op
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpIcmp:
		ins := ssa.NewInstruction(ssa.OpIcmp, dst, args(0), args(1))
		ins.IcmpCond = hi.Icmp
		ins.Ty = args(0).Type()
		return ins

	case hir.OpFcmp:
		ins := ssa.NewInstruction(ssa.OpFcmp, dst, args(0), args(1))
		ins.FcmpCond = hi.Fcmp
		ins.Ty = args(0).Type()
		return ins

	case hir.OpLoad:
		ins := ssa.NewInstruction(ssa.OpLoad, dst, args(0))
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpStore:
		val := args(1)
		ins := ssa.NewInstruction(ssa.OpStore, nil, args(0), val)
		ins.Ty = val.Type()
		return ins

	case hir.OpAlloca:
		sz := &ssa.ConstInt{Ty: hir.I64, Val: hi.AllocaSz}
		ins := ssa.NewInstruction(ssa.OpAlloca, dst, sz)
		b.allocaAlign[dst] = hi.AllocaAl
		return ins

	case hir.OpSelect:
		ins := ssa.NewInstruction(ssa.OpSelect, dst, args(0), args(1), args(2))
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpCast:
		src := args(0)
		ins := ssa.NewInstruction(ssa.OpCast, dst, src)
		ins.CastKind = hi.Cast
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpExtractElement:
		ins := ssa.NewInstruction(ssa.OpExtractElement, dst, args(0), args(1))
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpInsertElement:
		ins := ssa.NewInstruction(ssa.OpInsertElement, dst, args(0), args(1), args(2))
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpCall:
		// CallRets beyond the first result are out of scope: every helper
		// and every call site this backend lowers (spec.md §5/§6) returns
		// at most one value plus, on a 32-bit target, its i64 high half
		// via the ABI's eax:edx pair -- handled inside lower.Call itself,
		// not as a second hir-level Dest.
		ins := ssa.NewInstruction(ssa.OpCall, dst)
		ins.CallTarget = hi.Call
		for _, a := range hi.CallArgs {
			ins.Args = append(ins.Args, b.operand(a, hi.Consts))
		}
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpIntrinsicCall:
		ins := ssa.NewInstruction(ssa.OpIntrinsicCall, dst)
		ins.Intrinsic = hi.Intr
		for _, a := range hi.CallArgs {
			ins.Args = append(ins.Args, b.operand(a, hi.Consts))
		}
		ins.Ty = hi.Dest.Typ
		return ins

	case hir.OpRet:
		ins := ssa.NewInstruction(ssa.OpRet, nil)
		for _, a := range hi.Args {
			ins.Args = append(ins.Args, b.operand(a, hi.Consts))
		}
		return ins

	case hir.OpUnreachable:
		return ssa.NewInstruction(ssa.OpUnreachable, nil)

	case hir.OpFakeDef:
		return ssa.NewInstruction(ssa.OpFakeDef, dst)

	case hir.OpFakeUse:
		return ssa.NewInstruction(ssa.OpFakeUse, nil, args(0))

	default:
		return nil
	}
}
