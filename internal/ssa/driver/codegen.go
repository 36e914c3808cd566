package driver

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/ssa/lower"
)

// codegenNode walks node's still-LLIR-shaped instruction list once,
// dispatching each to the matching lower.Context method (spec.md §4.H
// step 9), then emits the node's terminator from the branch metadata
// Build recorded, since hir keeps control flow off the instruction list
// entirely. RMW fusion (step 6) and address-mode synthesis (step 5) run
// inline, immediately ahead of the instructions they would otherwise
// leave for Load/Store/Arith to lower verbatim. preds, if non-nil,
// receives a cursor positioned just before node's terminator so a later
// phi-lowering pass (step 4, run after every node has its own terminator
// in place) can insert parallel-move instructions on this edge.
func codegenNode(ctx *lower.Context, node *ssa.Node, br *branchInfo, preds map[*ssa.Node]*ssa.Cursor) {
	ctx.Node = node

	runAddressSynthesis(node)
	fuseRMWCandidates(ctx, node)

	cur := &ssa.Cursor{}
	cur.Init(node)
	ctx.Cursor = cur

	for !cur.AtEnd() {
		ins, ok := cur.GetCur().(*ssa.Instruction)
		if !ok || ins.Deleted() {
			cur.AdvanceCur()
			continue
		}
		codegenInstr(ctx, ins)
		ins.SetDeleted()
		cur.AdvanceCur()
	}

	if preds != nil {
		preds[node] = snapshotCursor(node)
	}

	switch {
	case br != nil:
		ctx.Br(br.Cond, br.True, br.False)
	case len(node.Succs) == 1:
		ctx.Jump(node.Succs[0])
	}

	foldLoadsInNode(ctx, node)
}

// snapshotCursor builds an independent cursor already advanced past every
// instruction node currently holds, i.e. positioned exactly where the
// node's terminator is about to be appended.
func snapshotCursor(node *ssa.Node) *ssa.Cursor {
	c := &ssa.Cursor{}
	c.Init(node)
	for i := 0; i < len(node.Ins); i++ {
		c.AdvanceCur()
	}
	return c
}

func codegenInstr(ctx *lower.Context, ins *ssa.Instruction) {
	dst, hasDst := ins.Dest()
	src := ins.Sources()

	switch ins.Op {
	case ssa.OpAssign:
		ctx.Assign(dst, src[0])

	case ssa.OpArith:
		if ctx.RewriteToHelper(dst, ins.ArithOp, src[0], src[1], ins.Ty) {
			return
		}
		ctx.Arith(dst, ins.ArithOp, src[0], src[1], ins.Ty)

	case ssa.OpIcmp:
		ctx.Icmp(dst, ins.IcmpCond, src[0], src[1], ins.Ty)

	case ssa.OpFcmp:
		ctx.Fcmp(dst, ins.FcmpCond, src[0], src[1], ins.Ty)

	case ssa.OpCast:
		fromTy := src[0].Type()
		if ctx.RewriteCastToHelper(dst, ins.CastKind, src[0], fromTy, ins.Ty) {
			return
		}
		ctx.Cast(dst, ins.CastKind, src[0], fromTy, ins.Ty)

	case ssa.OpLoad:
		ctx.Load(dst, src[0], ins.Mem, ins.Ty)

	case ssa.OpStore:
		ctx.Store(src[0], ins.Mem, src[1], ins.Ty)

	case ssa.OpAlloca:
		// entirely resolved by layoutAllocas ahead of codegen; the pointer
		// variable already carries its rematerializable stack address.

	case ssa.OpSelect:
		ctx.Select(dst, src[0], src[1], src[2], ins.Ty)

	case ssa.OpExtractElement:
		idx := constIndex(src[1])
		ctx.ExtractElement(dst, src[0], idx, ins.Ty)

	case ssa.OpInsertElement:
		idx := constIndex(src[2])
		ctx.InsertElement(dst, src[0], src[1], idx, ins.Ty)

	case ssa.OpCall:
		var dsts []*ssa.Variable
		var retTys []hir.Type
		if hasDst {
			dsts, retTys = []*ssa.Variable{dst}, []hir.Type{ins.Ty}
		}
		ctx.Call(dsts, ins.CallTarget, ins.Args, typesOf(ins.Args), retTys)

	case ssa.OpIntrinsicCall:
		ctx.Intrinsic(dst, ins.Intrinsic, ins.Args, ins.Ty)

	case ssa.OpRet:
		ctx.Ret(ins.Args, typesOf(ins.Args))

	case ssa.OpUnreachable:
		ctx.Intrinsic(nil, hir.IntrinsicTrap, nil, hir.Void)

	case ssa.OpFakeDef, ssa.OpFakeUse:
		// liveness-only markers; the metadata oracle already saw the def,
		// nothing to emit.
	}
}

func constIndex(op ssa.Operand) int64 {
	if c, ok := op.(*ssa.ConstInt); ok {
		return c.Val
	}
	return 0
}

func typesOf(ops []ssa.Operand) []hir.Type {
	tys := make([]hir.Type, len(ops))
	for i, o := range ops {
		tys[i] = o.Type()
	}
	return tys
}

// runAddressSynthesis tries the address-mode fixed point (spec.md §4.E)
// on every not-yet-lowered Load/Store in node, ahead of both RMW
// detection (which keys off Mem identity) and the generic codegen walk
// (which would otherwise lower the folded-away arithmetic verbatim).
// A folded AddrMode is stashed directly on the instruction's Mem field,
// the same field OpX86 forms use, so codegenInstr's Load/Store cases
// need no separate lookup table.
func runAddressSynthesis(node *ssa.Node) {
	for _, instr := range node.Ins {
		ins, ok := instr.(*ssa.Instruction)
		if !ok || ins.Deleted() || (ins.Op != ssa.OpLoad && ins.Op != ssa.OpStore) {
			continue
		}
		v, ok := ssa.AsVariable(ins.Sources()[0])
		if !ok {
			continue
		}
		am, consumed, ok := ssa.SynthesizeAddress(v)
		if !ok {
			continue
		}
		ins.Mem = am
		for _, c := range consumed {
			c.SetDeleted()
		}
	}
}

// fuseRMWCandidates runs Load/op/Store recognition over node before the
// main codegen walk sees any of the three instructions individually
// (spec.md §4.H step 6).
func fuseRMWCandidates(ctx *lower.Context, node *ssa.Node) {
	for _, cand := range lower.DetectRMW(node) {
		lower.FuseRMW(ctx, cand)
	}

	cur := &ssa.Cursor{}
	cur.Init(node)
	ctx.Cursor = cur
	for !cur.AtEnd() {
		ins, ok := cur.GetCur().(*ssa.Instruction)
		if ok && ins.Op == ssa.OpFakeRMW {
			dst, _ := ins.Dest()
			ctx.LowerAtomicRMW(dst, ins.RMWOp, ins.Mem, ins.Args[0], ins.Ty)
			ins.SetDeleted()
		}
		cur.AdvanceCur()
	}
}

// foldLoadsInNode retries load-folding (spec.md §4.H step 8) over the
// freshly emitted x86 instruction stream: a mov-from-memory immediately
// followed by its single consumer collapses into one memory-operand
// instruction.
func foldLoadsInNode(ctx *lower.Context, node *ssa.Node) {
	for i := 0; i+1 < len(node.Ins); i++ {
		load, ok := node.Ins[i].(*ssa.Instruction)
		if !ok || load.Deleted() || load.Mem == nil {
			continue
		}
		consumer, ok := node.Ins[i+1].(*ssa.Instruction)
		if !ok || consumer.Deleted() {
			continue
		}
		ctx.TryFoldLoad(load, consumer)
	}
}
