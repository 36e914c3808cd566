package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Arith lowers an OpArith instruction, dispatching on (opcode, type) per
// spec.md §4.F.
func (c *Context) Arith(dst *ssa.Variable, op hir.Op, a, b ssa.Operand, ty hir.Type) {
	switch {
	case ty == hir.I64 && c.Is32Bit():
		c.arithI64On32(dst, op, a, b)
	case ty.IsVector():
		c.arithVector(dst, op, a, b, ty)
	case ty.IsFloat():
		c.arithScalarFP(dst, op, a, b, ty)
	default:
		c.arithScalarInt(dst, op, a, b, ty)
	}
}

// arithScalarInt handles integer add/sub/bitwise/mul/div/rem/shift on a
// natively-addressable scalar type.
func (c *Context) arithScalarInt(dst *ssa.Variable, op hir.Op, a, b ssa.Operand, ty hir.Type) {
	switch op {
	case hir.OpAdd:
		c.rrOp(x86.OpAdd, dst, a, b, ty)
	case hir.OpSub:
		c.rrOp(x86.OpSub, dst, a, b, ty)
	case hir.OpAnd:
		c.rrOp(x86.OpAnd, dst, a, b, ty)
	case hir.OpOr:
		c.rrOp(x86.OpOr, dst, a, b, ty)
	case hir.OpXor:
		c.rrOp(x86.OpXor, dst, a, b, ty)
	case hir.OpMul:
		c.mulScalarInt(dst, a, b, ty)
	case hir.OpShl:
		c.shiftScalarInt(dst, x86.OpShl, a, b, ty)
	case hir.OpLshr:
		c.shiftScalarInt(dst, x86.OpShr, a, b, ty)
	case hir.OpAshr:
		c.shiftScalarInt(dst, x86.OpSar, a, b, ty)
	case hir.OpSdiv, hir.OpUdiv, hir.OpSrem, hir.OpUrem:
		// Div/rem must already have been dispatched to helper calls
		// before lowering reaches this point (spec.md §4.F); reaching
		// here means the pre-lowering rewrite pass was skipped.
		c.Fail("div/rem reached scalar lowering without a prior helper-call rewrite")
	default:
		c.Fail("unsupported scalar arithmetic opcode %s", op)
	}
}

// rrOp legalizes both operands and emits a two-address x86 op: dst gets a
// copy of a (unless dst already aliases a via the availability map), then
// op b into it.
func (c *Context) rrOp(op x86.Opcode, dst *ssa.Variable, a, b ssa.Operand, ty hir.Type) {
	al := c.Legalize(a, AllowReg, dst)
	bl := c.Legalize(b, AllowReg|AllowImm|AllowMem, nil)
	if av, ok := ssa.AsVariable(al); !ok || av != dst {
		c.emit(x86.OpMov, dst, al)
	}
	c.emit(op, dst, &ssa.VarOperand{V: dst}, bl)
}

// mulScalarInt strength-reduces multiplication by a small constant into
// up to three lea/shl operations (spec.md §4.F, and the LOW-1 scenario
// "i32 multiply by 100"); falls back to imul otherwise.
func (c *Context) mulScalarInt(dst *ssa.Variable, a, b ssa.Operand, ty hir.Type) {
	if k, ok := b.(*ssa.ConstInt); ok {
		if _, done := c.tryMulStrengthReduce(dst, a, k.Val, ty); done {
			return
		}
	}
	if k, ok := a.(*ssa.ConstInt); ok {
		if _, done := c.tryMulStrengthReduce(dst, b, k.Val, ty); done {
			return
		}
	}
	al := c.Legalize(a, AllowReg, dst)
	bl := c.Legalize(b, AllowReg|AllowImm, nil)
	if av, ok := ssa.AsVariable(al); !ok || av != dst {
		c.emit(x86.OpMov, dst, al)
	}
	c.emit(x86.OpImul, dst, &ssa.VarOperand{V: dst}, bl)
}

// strengthFactors lists the lea factors a {1,2,-1,3,5,9} decomposition step tries: multiplier
// k is expressed as a lea addressing-mode multiply (v + v*scale) where
// scale in {1,2,4,8} corresponds to compositions of {2,3,5,9}, bounded at
// three auxiliary ops total (spec.md §4.F, boundary behavior in §8).
var strengthFactors = []int64{9, 5, 3, 2}

// tryMulStrengthReduce attempts to express dst = a*k using at most three
// lea/shl instructions. Returns (lastInstr, true) on success.
func (c *Context) tryMulStrengthReduce(dst *ssa.Variable, a ssa.Operand, k int64, ty hir.Type) (*ssa.Instruction, bool) {
	if k == 0 {
		return nil, false
	}
	plan, ok := planStrengthReduction(k)
	if !ok || len(plan) > 3 {
		return nil, false
	}

	al := c.Legalize(a, AllowReg, nil)
	av, _ := ssa.AsVariable(al)
	cur := av

	if len(plan) == 0 {
		last := c.emit(x86.OpMov, dst, &ssa.VarOperand{V: av})
		return last, true
	}

	var last *ssa.Instruction
	for i, step := range plan {
		target := dst
		if i < len(plan)-1 {
			target = c.fresh(ty)
		}
		switch {
		case step.negate:
			last = c.emit(x86.OpNeg, target, &ssa.VarOperand{V: cur})
		case step.shift:
			last = c.emit(x86.OpShl, target, &ssa.VarOperand{V: cur}, &ssa.ConstInt{Ty: hir.I32, Val: step.by})
		default:
			mem := &ssa.AddrMode{HasBase: true, Base: cur, HasIndex: true, Index: cur, Scale: step.log2Scale, Disp: 0}
			last = c.emitMem(x86.OpLea, target, mem)
		}
		cur = target
	}
	return last, true
}

type reduceStep struct {
	shift     bool
	negate    bool
	by        int64 // valid when shift
	log2Scale uint8 // valid when !shift && !negate, lea v + v*scale
}

// planStrengthReduction decomposes k into at most three steps drawn from
// the {1,2,-1,3,5,9} factor set: a lea v+v*scale for each of {2,3,5,9}, a
// single shl for a pure power of two, and a trailing neg for a negative
// multiplier, e.g. 100 = 5*5*4, 45 = 9*5, -9 = neg(9).
func planStrengthReduction(k int64) ([]reduceStep, bool) {
	if k == 0 {
		return nil, false
	}
	if k < 0 {
		plan, ok := decomposeFactors(-k, 2)
		if !ok {
			return nil, false
		}
		return append(plan, reduceStep{negate: true}), true
	}
	return decomposeFactors(k, 3)
}

// decomposeFactors expresses k as a chain of at most budget lea/shl steps,
// preferring a single shift when k is itself a power of two and otherwise
// dividing out the largest of {9,5,3,2} that evenly divides it first.
func decomposeFactors(k int64, budget int) ([]reduceStep, bool) {
	if k == 1 {
		return nil, true
	}
	if budget <= 0 {
		return nil, false
	}
	if shift, ok := log2Exact(k); ok {
		return []reduceStep{{shift: true, by: shift}}, true
	}
	for _, f := range strengthFactors {
		if k%f != 0 {
			continue
		}
		rest, ok := decomposeFactors(k/f, budget-1)
		if !ok {
			continue
		}
		return append([]reduceStep{factorStep(f)}, rest...), true
	}
	return nil, false
}

// factorStep builds the lea v+v*scale step for f in {2,3,5,9}, i.e.
// v*f == v + v*(f-1).
func factorStep(f int64) reduceStep {
	log2, _ := log2Exact(f - 1)
	return reduceStep{log2Scale: uint8(log2)}
}

// log2Exact reports whether k is a positive power of two, and its shift
// amount.
func log2Exact(k int64) (int64, bool) {
	if k <= 0 {
		return 0, false
	}
	shift := int64(0)
	for k&1 == 0 {
		k >>= 1
		shift++
	}
	if k != 1 {
		return 0, false
	}
	return shift, true
}

func (c *Context) shiftScalarInt(dst *ssa.Variable, op x86.Opcode, a, b ssa.Operand, ty hir.Type) {
	al := c.Legalize(a, AllowReg, dst)
	if av, ok := ssa.AsVariable(al); !ok || av != dst {
		c.emit(x86.OpMov, dst, al)
	}
	if k, ok := b.(*ssa.ConstInt); ok {
		mask := int64(31)
		if ty == hir.I64 {
			mask = 63
		}
		c.emit(op, dst, &ssa.VarOperand{V: dst}, &ssa.ConstInt{Ty: hir.I8, Val: k.Val & mask})
		return
	}
	cl := c.fresh(hir.I8)
	c.emit(x86.OpMov, cl, b)
	c.emit(op, dst, &ssa.VarOperand{V: dst}, &ssa.VarOperand{V: cl})
}

func (c *Context) arithScalarFP(dst *ssa.Variable, op hir.Op, a, b ssa.Operand, ty hir.Type) {
	var opc x86.Opcode
	switch {
	case op == hir.OpFadd && ty == hir.F32:
		opc = x86.OpAddss
	case op == hir.OpFsub && ty == hir.F32:
		opc = x86.OpSubss
	case op == hir.OpFmul && ty == hir.F32:
		opc = x86.OpMulss
	case op == hir.OpFdiv && ty == hir.F32:
		opc = x86.OpDivss
	case op == hir.OpFadd && ty == hir.F64:
		opc = x86.OpAddsd
	case op == hir.OpFsub && ty == hir.F64:
		opc = x86.OpSubsd
	case op == hir.OpFmul && ty == hir.F64:
		opc = x86.OpMulsd
	case op == hir.OpFdiv && ty == hir.F64:
		opc = x86.OpDivsd
	case op == hir.OpFrem:
		c.Fail("frem reached scalar lowering without a prior helper-call rewrite")
		return
	default:
		c.Fail("unsupported scalar FP arithmetic opcode %s", op)
		return
	}
	al := c.Legalize(a, AllowReg, dst)
	bl := c.Legalize(b, AllowReg|AllowMem, nil)
	if av, ok := ssa.AsVariable(al); !ok || av != dst {
		c.emit(x86.OpMovss, dst, al)
	}
	c.emit(opc, dst, &ssa.VarOperand{V: dst}, bl)
}

// arithVector emits the SSE family for vector arithmetic (spec.md §4.F);
// multiply on v4i32 without SSE4.1 uses the two-pmuludq/pshufd/shufps
// sequence of end-to-end scenario 3.
func (c *Context) arithVector(dst *ssa.Variable, op hir.Op, a, b ssa.Operand, ty hir.Type) {
	if op == hir.OpMul && ty == hir.V4i32 {
		c.mulV4i32(dst, a, b)
		return
	}

	var opc x86.Opcode
	switch op {
	case hir.OpAdd:
		opc = vecOpByElem(ty, x86.OpPaddb, x86.OpPaddw, x86.OpPaddd)
	case hir.OpSub:
		opc = vecOpByElem(ty, x86.OpPsubb, x86.OpPsubw, x86.OpPsubd)
	case hir.OpAnd:
		opc = x86.OpPand
	case hir.OpOr:
		opc = x86.OpPor
	case hir.OpXor:
		opc = x86.OpPxor
	case hir.OpFadd:
		opc = x86.OpAddps
	case hir.OpFsub:
		opc = x86.OpSubps
	case hir.OpFmul:
		opc = x86.OpMulps
	case hir.OpFdiv:
		opc = x86.OpDivps
	default:
		c.Fail("vector opcode %s must have been scalarized before lowering", op)
		return
	}

	al := c.Legalize(a, AllowReg, dst)
	bl := c.Legalize(b, AllowReg|AllowMem, nil)
	if av, ok := ssa.AsVariable(al); !ok || av != dst {
		c.emit(x86.OpMovaps, dst, al)
	}
	c.emit(opc, dst, &ssa.VarOperand{V: dst}, bl)
}

func vecOpByElem(ty hir.Type, b8, w16, d32 x86.Opcode) x86.Opcode {
	switch ty.ElemType().Width() {
	case 1:
		return b8
	case 2:
		return w16
	default:
		return d32
	}
}

// mulV4i32 implements end-to-end scenario 3: without SSE4.1, v4i32
// multiply is two pmuludq (even/odd lanes) recombined with pshufd/shufps.
func (c *Context) mulV4i32(dst *ssa.Variable, a, b ssa.Operand) {
	if c.CPU.HasSSE41 {
		al := c.Legalize(a, AllowReg, dst)
		bl := c.Legalize(b, AllowReg|AllowMem, nil)
		if av, ok := ssa.AsVariable(al); !ok || av != dst {
			c.emit(x86.OpMovaps, dst, al)
		}
		c.emit(x86.OpPmulld, dst, &ssa.VarOperand{V: dst}, bl)
		return
	}

	av, _ := ssa.AsVariable(c.Legalize(a, AllowReg, nil))
	bv, _ := ssa.AsVariable(c.Legalize(b, AllowReg, nil))

	evenA := c.fresh(hir.V4i32)
	evenB := c.fresh(hir.V4i32)
	c.emit(x86.OpMovaps, evenA, &ssa.VarOperand{V: av})
	c.emit(x86.OpMovaps, evenB, &ssa.VarOperand{V: bv})
	evenProd := c.fresh(hir.V4i32)
	c.emit(x86.OpPmuludq, evenProd, &ssa.VarOperand{V: evenA}, &ssa.VarOperand{V: evenB})

	oddA := c.fresh(hir.V4i32)
	oddB := c.fresh(hir.V4i32)
	c.emit(x86.OpPshufd, oddA, &ssa.VarOperand{V: av}, &ssa.ConstInt{Ty: hir.I8, Val: 0x31})
	c.emit(x86.OpPshufd, oddB, &ssa.VarOperand{V: bv}, &ssa.ConstInt{Ty: hir.I8, Val: 0x31})
	oddProd := c.fresh(hir.V4i32)
	c.emit(x86.OpPmuludq, oddProd, &ssa.VarOperand{V: oddA}, &ssa.VarOperand{V: oddB})

	packed := c.fresh(hir.V4i32)
	c.emit(x86.OpShufps, packed, &ssa.VarOperand{V: evenProd}, &ssa.VarOperand{V: oddProd}, &ssa.ConstInt{Ty: hir.I8, Val: 0x88})
	c.emit(x86.OpPshufd, dst, &ssa.VarOperand{V: packed}, &ssa.ConstInt{Ty: hir.I8, Val: 0xd8})
}

// arithI64On32 expands 64-bit arithmetic on a 32-bit target into pairwise
// lo/hi operations (spec.md §4.F). dst is never itself the destination of
// an emitted instruction: it is a lookup key into splitVar's cache, and
// every later reference to dst (as an Arith operand) resolves through
// splitHalves to the same (dlo, dhi) pair written here.
func (c *Context) arithI64On32(dst *ssa.Variable, op hir.Op, a, b ssa.Operand) {
	alo, ahi := c.splitHalves(a)
	blo, bhi := c.splitHalves(b)
	dlo, dhi := c.splitVar(dst)

	switch op {
	case hir.OpAdd:
		c.emit(x86.OpMov, dlo, alo)
		c.emit(x86.OpAdd, dlo, &ssa.VarOperand{V: dlo}, blo)
		c.emit(x86.OpMov, dhi, ahi)
		c.emit(x86.OpAdc, dhi, &ssa.VarOperand{V: dhi}, bhi)
	case hir.OpSub:
		c.emit(x86.OpMov, dlo, alo)
		c.emit(x86.OpSub, dlo, &ssa.VarOperand{V: dlo}, blo)
		c.emit(x86.OpMov, dhi, ahi)
		c.emit(x86.OpSbb, dhi, &ssa.VarOperand{V: dhi}, bhi)
	case hir.OpAnd, hir.OpOr, hir.OpXor:
		opc := map[hir.Op]x86.Opcode{hir.OpAnd: x86.OpAnd, hir.OpOr: x86.OpOr, hir.OpXor: x86.OpXor}[op]
		c.emit(x86.OpMov, dlo, alo)
		c.emit(opc, dlo, &ssa.VarOperand{V: dlo}, blo)
		c.emit(x86.OpMov, dhi, ahi)
		c.emit(opc, dhi, &ssa.VarOperand{V: dhi}, bhi)
	case hir.OpMul:
		// classic b.hi*c.lo + b.lo*c.hi + mul(b.lo,c.lo) sequence, using
		// the fixed eax:edx pair.
		eax := c.precoloredEax()
		edx := c.precoloredEdx()
		t1 := c.fresh(hir.I32)
		c.emit(x86.OpMov, t1, ahi)
		c.emit(x86.OpImul, t1, &ssa.VarOperand{V: t1}, blo)
		t2 := c.fresh(hir.I32)
		c.emit(x86.OpMov, t2, bhi)
		c.emit(x86.OpImul, t2, &ssa.VarOperand{V: t2}, alo)
		c.emit(x86.OpMov, eax, alo)
		c.emit(x86.OpMul, edx, &ssa.VarOperand{V: eax}, blo) // edx:eax = alo*blo
		c.emit(x86.OpAdd, edx, &ssa.VarOperand{V: edx}, &ssa.VarOperand{V: t1})
		c.emit(x86.OpAdd, edx, &ssa.VarOperand{V: edx}, &ssa.VarOperand{V: t2})
		c.emit(x86.OpMov, dlo, &ssa.VarOperand{V: eax})
		c.emit(x86.OpMov, dhi, &ssa.VarOperand{V: edx})
	case hir.OpShl:
		c.shiftI64On32(dlo, dhi, alo, ahi, b, shiftLeft)
	case hir.OpLshr:
		c.shiftI64On32(dlo, dhi, alo, ahi, b, shiftRightLogical)
	case hir.OpAshr:
		c.shiftI64On32(dlo, dhi, alo, ahi, b, shiftRightArith)
	default:
		c.Fail("i64-on-32 arithmetic opcode %s must have been rewritten to a helper call", op)
	}
}

// splitHalves legalizes op and returns its (lo, hi) sub-operands for an
// i64-on-32 value: a ConstInt decomposes directly, a Variable resolves
// through splitVar so every read agrees with every write.
func (c *Context) splitHalves(op ssa.Operand) (lo, hi ssa.Operand) {
	switch v := op.(type) {
	case *ssa.ConstInt:
		return &ssa.ConstInt{Ty: hir.I32, Val: int64(int32(v.Val))}, &ssa.ConstInt{Ty: hir.I32, Val: v.Val >> 32}
	case *ssa.VarOperand:
		lo, hi := c.splitVar(v.V)
		return &ssa.VarOperand{V: lo}, &ssa.VarOperand{V: hi}
	default:
		return op, op
	}
}

// shiftKind distinguishes the three i64-on-32 shift families; Lshr and
// Ashr share the shrd-based low half but differ in how the high half
// fills once the shift crosses the 32-bit boundary.
type shiftKind int

const (
	shiftLeft shiftKind = iota
	shiftRightLogical
	shiftRightArith
)

// shiftI64On32 expands an i64 shl/lshr/ashr on a 32-bit target into
// shld/shrd/sar-31 sequences bucketed by the shift amount (spec.md §4.F):
// a constant count picks its bucket at lowering time; a variable count
// computes both the <32 and >=32 results unconditionally and selects
// between them with cmovcc on bit 0x20 of the masked count, since this
// backend's per-node instruction lowering has no way to express a forward
// branch to a label within the same node (only whole-Node control flow).
func (c *Context) shiftI64On32(dlo, dhi *ssa.Variable, alo, ahi, count ssa.Operand, kind shiftKind) {
	if k, ok := count.(*ssa.ConstInt); ok {
		c.shiftI64ByConst(dlo, dhi, alo, ahi, k.Val&63, kind)
		return
	}
	countLo, _ := c.splitHalves(count)
	c.shiftI64ByReg(dlo, dhi, alo, ahi, countLo, kind)
}

func (c *Context) shiftI64ByConst(dlo, dhi *ssa.Variable, alo, ahi ssa.Operand, k int64, kind shiftKind) {
	switch {
	case k == 0:
		c.emit(x86.OpMov, dlo, alo)
		c.emit(x86.OpMov, dhi, ahi)

	case k < 32:
		imm := &ssa.ConstInt{Ty: hir.I8, Val: k}
		switch kind {
		case shiftLeft:
			c.emit(x86.OpMov, dhi, ahi)
			c.emit(x86.OpShld, dhi, &ssa.VarOperand{V: dhi}, alo, imm)
			c.emit(x86.OpMov, dlo, alo)
			c.emit(x86.OpShl, dlo, &ssa.VarOperand{V: dlo}, imm)
		default: // shiftRightLogical, shiftRightArith
			c.emit(x86.OpMov, dlo, alo)
			c.emit(x86.OpShrd, dlo, &ssa.VarOperand{V: dlo}, ahi, imm)
			c.emit(x86.OpMov, dhi, ahi)
			if kind == shiftRightLogical {
				c.emit(x86.OpShr, dhi, &ssa.VarOperand{V: dhi}, imm)
			} else {
				c.emit(x86.OpSar, dhi, &ssa.VarOperand{V: dhi}, imm)
			}
		}

	case k == 32:
		switch kind {
		case shiftLeft:
			c.emit(x86.OpMov, dhi, alo)
			c.emit(x86.OpMov, dlo, &ssa.ConstInt{Ty: hir.I32, Val: 0})
		case shiftRightLogical:
			c.emit(x86.OpMov, dlo, ahi)
			c.emit(x86.OpMov, dhi, &ssa.ConstInt{Ty: hir.I32, Val: 0})
		case shiftRightArith:
			c.emit(x86.OpMov, dlo, ahi)
			c.emit(x86.OpMov, dhi, ahi)
			c.emit(x86.OpSar, dhi, &ssa.VarOperand{V: dhi}, &ssa.ConstInt{Ty: hir.I8, Val: 31})
		}

	default: // 33..63
		imm := &ssa.ConstInt{Ty: hir.I8, Val: k - 32}
		switch kind {
		case shiftLeft:
			c.emit(x86.OpMov, dhi, alo)
			c.emit(x86.OpShl, dhi, &ssa.VarOperand{V: dhi}, imm)
			c.emit(x86.OpMov, dlo, &ssa.ConstInt{Ty: hir.I32, Val: 0})
		case shiftRightLogical:
			c.emit(x86.OpMov, dlo, ahi)
			c.emit(x86.OpShr, dlo, &ssa.VarOperand{V: dlo}, imm)
			c.emit(x86.OpMov, dhi, &ssa.ConstInt{Ty: hir.I32, Val: 0})
		case shiftRightArith:
			c.emit(x86.OpMov, dlo, ahi)
			c.emit(x86.OpSar, dlo, &ssa.VarOperand{V: dlo}, imm)
			c.emit(x86.OpMov, dhi, ahi)
			c.emit(x86.OpSar, dhi, &ssa.VarOperand{V: dhi}, &ssa.ConstInt{Ty: hir.I8, Val: 31})
		}
	}
}

// shiftI64ByReg handles a non-constant shift amount: cl is masked to the
// six bits an i64 shift amount can carry, then both the <32 (shld/shrd)
// and >=32 (single shift, hardware-masked to cl-32) results are computed
// unconditionally and merged with cmovcc on bit 0x20 of cl.
func (c *Context) shiftI64ByReg(dlo, dhi *ssa.Variable, alo, ahi, count ssa.Operand, kind shiftKind) {
	cl := c.fresh(hir.I8)
	c.emit(x86.OpMov, cl, count)
	c.emit(x86.OpAnd, cl, &ssa.VarOperand{V: cl}, &ssa.ConstInt{Ty: hir.I8, Val: 0x3f})
	clSrc := &ssa.VarOperand{V: cl}

	smallLo := c.fresh(hir.I32)
	smallHi := c.fresh(hir.I32)
	largeLo := c.fresh(hir.I32)
	largeHi := c.fresh(hir.I32)

	switch kind {
	case shiftLeft:
		c.emit(x86.OpMov, smallHi, ahi)
		c.emit(x86.OpShld, smallHi, &ssa.VarOperand{V: smallHi}, alo, clSrc)
		c.emit(x86.OpMov, smallLo, alo)
		c.emit(x86.OpShl, smallLo, &ssa.VarOperand{V: smallLo}, clSrc)
		c.emit(x86.OpMov, largeHi, alo)
		c.emit(x86.OpShl, largeHi, &ssa.VarOperand{V: largeHi}, clSrc)
		c.emit(x86.OpMov, largeLo, &ssa.ConstInt{Ty: hir.I32, Val: 0})
	case shiftRightLogical:
		c.emit(x86.OpMov, smallLo, alo)
		c.emit(x86.OpShrd, smallLo, &ssa.VarOperand{V: smallLo}, ahi, clSrc)
		c.emit(x86.OpMov, smallHi, ahi)
		c.emit(x86.OpShr, smallHi, &ssa.VarOperand{V: smallHi}, clSrc)
		c.emit(x86.OpMov, largeLo, ahi)
		c.emit(x86.OpShr, largeLo, &ssa.VarOperand{V: largeLo}, clSrc)
		c.emit(x86.OpMov, largeHi, &ssa.ConstInt{Ty: hir.I32, Val: 0})
	case shiftRightArith:
		c.emit(x86.OpMov, smallLo, alo)
		c.emit(x86.OpShrd, smallLo, &ssa.VarOperand{V: smallLo}, ahi, clSrc)
		c.emit(x86.OpMov, smallHi, ahi)
		c.emit(x86.OpSar, smallHi, &ssa.VarOperand{V: smallHi}, clSrc)
		c.emit(x86.OpMov, largeLo, ahi)
		c.emit(x86.OpSar, largeLo, &ssa.VarOperand{V: largeLo}, clSrc)
		c.emit(x86.OpMov, largeHi, ahi)
		c.emit(x86.OpSar, largeHi, &ssa.VarOperand{V: largeHi}, &ssa.ConstInt{Ty: hir.I8, Val: 31})
	}

	c.emit(x86.OpMov, dlo, &ssa.VarOperand{V: smallLo})
	c.emit(x86.OpMov, dhi, &ssa.VarOperand{V: smallHi})
	c.emit(x86.OpTest, nil, clSrc, &ssa.ConstInt{Ty: hir.I8, Val: 0x20})
	c.emitCond(x86.OpCmovcc, x86.CondNE, dlo, &ssa.VarOperand{V: dlo}, &ssa.VarOperand{V: largeLo})
	c.emitCond(x86.OpCmovcc, x86.CondNE, dhi, &ssa.VarOperand{V: dhi}, &ssa.VarOperand{V: largeHi})
}

func (c *Context) precoloredEax() *ssa.Variable {
	v := c.fresh(hir.I32)
	v.Precolor(x86.GP(x86.RAX))
	return v
}

func (c *Context) precoloredEdx() *ssa.Variable {
	v := c.fresh(hir.I32)
	v.Precolor(x86.GP(x86.RDX))
	return v
}
