package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Br lowers a conditional branch on an i1 value that was not fused with
// its producing compare (spec.md §4.D): compare the value against zero
// and jump not-equal to taken.
func (c *Context) Br(cond ssa.Operand, taken, fallthroughN *ssa.Node) {
	if producer := c.Fold.ProducerFor(cond); producer != nil {
		// The bool-folder marked this producer's flags reusable; the
		// driver should have called IcmpBr/fused emission instead of Br.
		// Falling back here still produces correct code, just an extra
		// compare-against-zero.
	}
	cl := c.Legalize(cond, AllowReg, nil)
	c.emit(x86.OpTest, nil, cl, cl)
	ins := c.emitCond(x86.OpJcc, x86.CondNE, nil)
	ins.Targets = []*ssa.Node{fallthroughN, taken}
}

// Jump lowers an unconditional branch.
func (c *Context) Jump(target *ssa.Node) {
	ins := c.emit(x86.OpJmp, nil)
	ins.Targets = []*ssa.Node{target}
}

// Ret lowers a return, placing vals into the ABI-specified return
// registers/slots (spec.md §4.F/§5).
func (c *Context) Ret(vals []ssa.Operand, tys []hir.Type) {
	for i, v := range vals {
		ty := tys[i]
		vl := c.Legalize(v, AllowReg|AllowImm, nil)
		if ty.IsFloat() || ty.IsVector() {
			ret := c.fresh(ty)
			ret.Precolor(x86.XMM(x86.XMM0))
			c.emit(x86.OpMovss, ret, vl)
			continue
		}
		if ty == hir.I64 && c.Is32Bit() {
			lo, hi := c.splitHalves(v)
			eax := c.precoloredEax()
			edx := c.precoloredEdx()
			c.emit(x86.OpMov, eax, lo)
			c.emit(x86.OpMov, edx, hi)
			continue
		}
		ret := c.fresh(ty)
		ret.Precolor(x86.GP(x86.RAX))
		c.emit(x86.OpMov, ret, vl)
	}
	c.emit(x86.OpRet, nil)
}

// Select lowers a select instruction. Scalar select on a flags-eligible
// condition uses cmovcc; vector select falls back to
// pand/pandn/por (spec.md §4.F).
func (c *Context) Select(dst *ssa.Variable, cond ssa.Operand, a, b ssa.Operand, ty hir.Type) {
	if ty.IsVector() {
		c.selectVector(dst, cond, a, b, ty)
		return
	}

	cl := c.Legalize(cond, AllowReg, nil)
	c.emit(x86.OpTest, nil, cl, cl)
	al := c.Legalize(a, AllowReg, dst)
	if av, ok := ssa.AsVariable(al); !ok || av != dst {
		c.emit(x86.OpMov, dst, al)
	}
	bl := c.Legalize(b, AllowReg, nil)
	c.emitCond(x86.OpCmovcc, x86.CondE, dst, &ssa.VarOperand{V: dst}, bl)
}

// selectVector implements the mask-based select fallback (spec.md §4.F):
// dst = (a & mask) | (b & ~mask), used when no blend instruction is
// available for the element width; SSE4.1 targets use pblendvb/blendvps
// instead when the driver detects the feature.
func (c *Context) selectVector(dst *ssa.Variable, mask ssa.Operand, a, b ssa.Operand, ty hir.Type) {
	if c.CPU.HasSSE41 {
		ml := c.Legalize(mask, AllowReg, nil)
		al := c.Legalize(a, AllowReg, dst)
		if av, ok := ssa.AsVariable(al); !ok || av != dst {
			c.emit(x86.OpMovaps, dst, al)
		}
		bl := c.Legalize(b, AllowReg|AllowMem, nil)
		c.emit(x86.OpBlendvps, dst, &ssa.VarOperand{V: dst}, bl, ml)
		return
	}

	ml, _ := ssa.AsVariable(c.Legalize(mask, AllowReg, nil))
	al, _ := ssa.AsVariable(c.Legalize(a, AllowReg, nil))
	bl, _ := ssa.AsVariable(c.Legalize(b, AllowReg, nil))

	maskedA := c.fresh(ty)
	c.emit(x86.OpMovaps, maskedA, &ssa.VarOperand{V: al})
	c.emit(x86.OpPand, maskedA, &ssa.VarOperand{V: maskedA}, &ssa.VarOperand{V: ml})

	notMask := c.fresh(ty)
	c.emit(x86.OpMovaps, notMask, &ssa.VarOperand{V: ml})
	c.emit(x86.OpPandn, notMask, &ssa.VarOperand{V: bl}, &ssa.VarOperand{V: notMask})

	c.emit(x86.OpPor, dst, &ssa.VarOperand{V: maskedA}, &ssa.VarOperand{V: notMask})
}

// LowerPhi materializes a phi node's inputs as parallel moves on each
// predecessor edge, inserted at the end of the predecessor node just
// before its terminator (spec.md §4.H step 4 "lower phis to per-
// predecessor moves").
func LowerPhi(c *Context, phi *ssa.Phi, predCursors map[*ssa.Node]*ssa.Cursor) {
	for _, entry := range phi.In {
		cur, ok := predCursors[entry.Pred]
		if !ok {
			continue
		}
		save := c.Cursor
		c.Cursor = cur
		vl := c.Legalize(entry.Val, AllowReg|AllowImm, nil)
		c.emit(x86.OpMov, phi.Dst, vl)
		c.Cursor = save
	}
}
