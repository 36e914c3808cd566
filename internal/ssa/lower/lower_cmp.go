package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

var icmpToCond = map[hir.IcmpCond]x86.Condition{
	hir.IcmpEq: x86.CondE, hir.IcmpNe: x86.CondNE,
	hir.IcmpUgt: x86.CondA, hir.IcmpUge: x86.CondAE, hir.IcmpUlt: x86.CondB, hir.IcmpUle: x86.CondBE,
	hir.IcmpSgt: x86.CondG, hir.IcmpSge: x86.CondGE, hir.IcmpSlt: x86.CondL, hir.IcmpSle: x86.CondLE,
}

// Icmp lowers a compare whose consumer is not a fold-eligible Br: emit
// cmp then setcc into dst (spec.md §4.F).
func (c *Context) Icmp(dst *ssa.Variable, cond hir.IcmpCond, a, b ssa.Operand, ty hir.Type) {
	if ty == hir.I64 && c.Is32Bit() {
		c.icmp64On32(dst, cond, a, b, false, nil, nil)
		return
	}
	al := c.Legalize(a, AllowReg, nil)
	bl := c.Legalize(b, AllowReg|AllowImm|AllowMem, nil)
	c.emit(x86.OpCmp, nil, al, bl)
	c.emitCond(x86.OpSetcc, icmpToCond[cond], dst)
}

// IcmpBr lowers a compare fused directly into a conditional branch,
// avoiding materializing the i1 (spec.md §4.D/§4.F).
func (c *Context) IcmpBr(cond hir.IcmpCond, a, b ssa.Operand, ty hir.Type, taken, fallthroughN *ssa.Node) {
	if ty == hir.I64 && c.Is32Bit() {
		c.icmp64On32(nil, cond, a, b, true, taken, fallthroughN)
		return
	}
	al := c.Legalize(a, AllowReg, nil)
	bl := c.Legalize(b, AllowReg|AllowImm|AllowMem, nil)
	c.emit(x86.OpCmp, nil, al, bl)
	ins := c.emitCond(x86.OpJcc, icmpToCond[cond], nil)
	ins.Targets = []*ssa.Node{fallthroughN, taken}
}

// icmp64On32 implements the 6-row table of spec.md §4.F for i64 compares
// on a 32-bit target: up to three branch conditions (hi !=, hi <, lo u<)
// plus a default bit. When toBranch is true it emits control flow
// directly against taken; otherwise it materializes dst without a branch,
// via setcc results combined with and/or.
func (c *Context) icmp64On32(dst *ssa.Variable, cond hir.IcmpCond, a, b ssa.Operand, toBranch bool, taken, notTaken *ssa.Node) {
	alo, ahi := c.splitHalves(a)
	blo, bhi := c.splitHalves(b)

	switch cond {
	case hir.IcmpEq, hir.IcmpNe:
		// eq iff both halves match; xor+xor+or catches mismatches in
		// either half without any branch, then a single setcc/test decides.
		xlo := c.fresh(hir.I32)
		c.emit(x86.OpXor, xlo, alo, blo)
		xhi := c.fresh(hir.I32)
		c.emit(x86.OpXor, xhi, ahi, bhi)
		combined := c.fresh(hir.I32)
		c.emit(x86.OpOr, combined, &ssa.VarOperand{V: xlo}, &ssa.VarOperand{V: xhi})
		andOp := x86.CondE
		if cond == hir.IcmpNe {
			andOp = x86.CondNE
		}
		c.emit(x86.OpTest, nil, &ssa.VarOperand{V: combined}, &ssa.VarOperand{V: combined})
		if toBranch {
			ins := c.emitCond(x86.OpJcc, andOp, nil)
			ins.Targets = []*ssa.Node{nil, taken}
			return
		}
		c.emitCond(x86.OpSetcc, andOp, dst)
	default:
		hiCond, loCond := splitSignedUnsigned(cond)
		c.emit(x86.OpCmp, nil, ahi, bhi)
		if toBranch {
			// hi decides unless equal, in which case the lo (always
			// unsigned) comparison decides; spec.md §4.F's "up to three
			// branch conditions (hi !=, hi <, lo u<)".
			hiTaken := c.emitCond(x86.OpJcc, hiCond, nil)
			hiTaken.Targets = []*ssa.Node{nil, taken}
			hiMismatch := c.emitCond(x86.OpJcc, x86.CondNE, nil)
			hiMismatch.Targets = []*ssa.Node{nil, notTaken}
			c.emit(x86.OpCmp, nil, alo, blo)
			loTaken := c.emitCond(x86.OpJcc, loCond, nil)
			loTaken.Targets = []*ssa.Node{nil, taken}
			return
		}
		hiGt := c.fresh(hir.I8)
		c.emitCond(x86.OpSetcc, hiCond, hiGt)
		hiEq := c.fresh(hir.I8)
		c.emitCond(x86.OpSetcc, x86.CondE, hiEq)
		c.emit(x86.OpCmp, nil, alo, blo)
		loLt := c.fresh(hir.I8)
		c.emitCond(x86.OpSetcc, loCond, loLt)
		t := c.fresh(hir.I8)
		c.emit(x86.OpAnd, t, &ssa.VarOperand{V: hiEq}, &ssa.VarOperand{V: loLt})
		c.emit(x86.OpOr, dst, &ssa.VarOperand{V: hiGt}, &ssa.VarOperand{V: t})
	}
}

// splitSignedUnsigned returns the (hi-compare, lo-compare-unsigned)
// condition pair for a signed or unsigned ordering compare, per spec.md
// §4.F's "hi <, lo u<" description: the hi half takes the signedness of
// cond, the lo half is always compared unsigned with cond's strictness.
func splitSignedUnsigned(cond hir.IcmpCond) (hiCond, loCond x86.Condition) {
	switch cond {
	case hir.IcmpUgt:
		return x86.CondA, x86.CondA
	case hir.IcmpUge:
		return x86.CondA, x86.CondAE
	case hir.IcmpUlt:
		return x86.CondB, x86.CondB
	case hir.IcmpUle:
		return x86.CondB, x86.CondBE
	case hir.IcmpSgt:
		return x86.CondG, x86.CondA
	case hir.IcmpSge:
		return x86.CondG, x86.CondAE
	case hir.IcmpSlt:
		return x86.CondL, x86.CondB
	case hir.IcmpSle:
		return x86.CondL, x86.CondBE
	default:
		return x86.CondL, x86.CondB
	}
}

// Fcmp lowers a float compare via the 16-row table of spec.md §4.F.
// Vector compares reduce to cmpps (One/Ueq need a second cmpps combined
// with pand/por, since the 3-bit SSE predicate has no single "unordered
// or equal" encoding); a scalar compare instead emits ucomiss/ucomisd
// followed by one setcc, or two setcc's combined with and/or when the
// row needs a second condition (spec.md's C1/C2, materialized as
// register booleans instead of the original's branch-and-flip sequence
// since there is no branch-fused Fcmp counterpart to IcmpBr here).
func (c *Context) Fcmp(dst *ssa.Variable, cond hir.FcmpCond, a, b ssa.Operand, ty hir.Type) {
	if cond == hir.FcmpFalse {
		zero := x86.OpXor
		if ty.IsVector() {
			zero = x86.OpPxor
		}
		c.emit(zero, dst, &ssa.VarOperand{V: dst}, &ssa.VarOperand{V: dst})
		return
	}
	if cond == hir.FcmpTrue {
		if ty.IsVector() {
			c.emit(x86.OpPcmpeqd, dst, &ssa.VarOperand{V: dst}, &ssa.VarOperand{V: dst})
		} else {
			c.emit(x86.OpMov, dst, &ssa.ConstInt{Ty: hir.I8, Val: 1})
		}
		return
	}

	al := c.Legalize(a, AllowReg, nil)
	bl := c.Legalize(b, AllowReg|AllowMem, nil)

	if ty.IsVector() {
		c.fcmpVector(dst, cond, al, bl)
		return
	}
	c.fcmpScalar(dst, cond, al, bl, ty)
}

// fcmpVector implements the vector half of the 16-row table: a single
// cmpps against the row's 3-bit predicate, operands swapped when the
// predicate only exists in one direction, or (One/Ueq) two cmpps results
// merged with pand/por.
func (c *Context) fcmpVector(dst *ssa.Variable, cond hir.FcmpCond, al, bl ssa.Operand) {
	switch cond {
	case hir.FcmpOne:
		neq := c.cmppsInto(dst.Ty, al, bl, 4)
		ord := c.cmppsInto(dst.Ty, al, bl, 7)
		c.emit(x86.OpPand, dst, &ssa.VarOperand{V: neq}, &ssa.VarOperand{V: ord})
	case hir.FcmpUeq:
		eq := c.cmppsInto(dst.Ty, al, bl, 0)
		unord := c.cmppsInto(dst.Ty, al, bl, 3)
		c.emit(x86.OpPor, dst, &ssa.VarOperand{V: eq}, &ssa.VarOperand{V: unord})
	default:
		row := vectorFcmpRows[cond]
		la, lb := al, bl
		if row.swap {
			la, lb = bl, al
		}
		t := c.cmppsInto(dst.Ty, la, lb, row.predicate)
		c.emit(x86.OpMovaps, dst, &ssa.VarOperand{V: t})
	}
}

// cmppsInto copies la into a fresh register and cmpps's it against lb in
// place, matching the two-address shape of the real instruction.
func (c *Context) cmppsInto(ty hir.Type, la, lb ssa.Operand, predicate uint8) *ssa.Variable {
	t := c.fresh(ty)
	c.emit(x86.OpMovaps, t, la)
	c.emit(x86.OpCmpps, t, &ssa.VarOperand{V: t}, lb, cmppsPredicate(predicate))
	return t
}

func cmppsPredicate(p uint8) ssa.Operand { return &ssa.ConstInt{Ty: hir.I8, Val: int64(p)} }

type vectorFcmpRow struct {
	predicate uint8
	swap      bool
}

// vectorFcmpRows maps each non-compound condition to the SSE cmpps 3-bit
// predicate (0=eq,1=lt,2=le,3=unord,4=neq,5=nlt,6=nle,7=ord); a row whose
// direction isn't directly encodable reuses its mirror predicate with
// operands swapped (Ogt as swapped Olt, Ult as swapped "nle", etc).
var vectorFcmpRows = map[hir.FcmpCond]vectorFcmpRow{
	hir.FcmpOeq: {predicate: 0},
	hir.FcmpOgt: {predicate: 1, swap: true},
	hir.FcmpOge: {predicate: 2, swap: true},
	hir.FcmpOlt: {predicate: 1},
	hir.FcmpOle: {predicate: 2},
	hir.FcmpOrd: {predicate: 7},
	hir.FcmpUgt: {predicate: 6},
	hir.FcmpUge: {predicate: 5},
	hir.FcmpUlt: {predicate: 6, swap: true},
	hir.FcmpUle: {predicate: 5, swap: true},
	hir.FcmpUne: {predicate: 4},
	hir.FcmpUno: {predicate: 3},
}

// fcmpScalar implements the scalar half of the table: ucomiss/ucomisd
// sets flags for (la, lb), then either a single setcc or two setcc's
// and/or'd together as 0/1 bytes materialize dst.
func (c *Context) fcmpScalar(dst *ssa.Variable, cond hir.FcmpCond, al, bl ssa.Operand, ty hir.Type) {
	row := fcmpRows[cond]
	la, lb := al, bl
	if row.swap {
		la, lb = bl, al
	}

	ucomOp := x86.OpUcomiss
	if ty == hir.F64 {
		ucomOp = x86.OpUcomisd
	}
	t := c.fresh(ty)
	c.emit(movOpFor(ty), t, la)
	c.emit(ucomOp, nil, &ssa.VarOperand{V: t}, lb)

	if !row.hasC2 {
		c.emitCond(x86.OpSetcc, row.c1, dst)
		return
	}

	p1 := c.fresh(hir.I8)
	c.emitCond(x86.OpSetcc, row.c1, p1)
	p2 := c.fresh(hir.I8)
	c.emitCond(x86.OpSetcc, row.c2, p2)
	combine := x86.OpOr
	if row.and {
		combine = x86.OpAnd
	}
	c.emit(combine, dst, &ssa.VarOperand{V: p1}, &ssa.VarOperand{V: p2})
}

type fcmpRow struct {
	swap  bool
	c1    x86.Condition
	hasC2 bool
	c2    x86.Condition
	and   bool
}

// fcmpRows maps each non-compound-vector condition to its ucomiss-based
// scalar form: Oeq/One need C1 AND C2 (parity clear rules out the NaN
// case ucomiss's ZF/NE alone can't distinguish), Ueq/Ugt/Uge/Une need
// C1 OR C2, and the rest reduce to one condition (Olt/Ole via the
// operand swap that turns them into their Ogt/Oge mirror).
var fcmpRows = map[hir.FcmpCond]fcmpRow{
	hir.FcmpOeq: {c1: x86.CondNP, hasC2: true, c2: x86.CondE, and: true},
	hir.FcmpOne: {c1: x86.CondNP, hasC2: true, c2: x86.CondNE, and: true},
	hir.FcmpOgt: {c1: x86.CondA},
	hir.FcmpOge: {c1: x86.CondAE},
	hir.FcmpOlt: {swap: true, c1: x86.CondA},
	hir.FcmpOle: {swap: true, c1: x86.CondAE},
	hir.FcmpOrd: {c1: x86.CondNP},
	hir.FcmpUeq: {c1: x86.CondP, hasC2: true, c2: x86.CondE},
	hir.FcmpUgt: {c1: x86.CondP, hasC2: true, c2: x86.CondA},
	hir.FcmpUge: {c1: x86.CondP, hasC2: true, c2: x86.CondAE},
	hir.FcmpUlt: {c1: x86.CondB},
	hir.FcmpUle: {c1: x86.CondBE},
	hir.FcmpUne: {c1: x86.CondP, hasC2: true, c2: x86.CondNE},
	hir.FcmpUno: {c1: x86.CondP},
}
