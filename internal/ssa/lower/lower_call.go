package lower

import (
	"github.com/subzero-lang/subzero/internal/abi"
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Call lowers a call (spec.md §5's C/Go/interface CallTarget kinds): move
// each argument into its ABI-assigned register or stack slot, emit the
// call, then move return values out of their ABI slots into fresh
// virtual registers.
func (c *Context) Call(dsts []*ssa.Variable, target *hir.CallTarget, args []ssa.Operand, argTys []hir.Type, retTys []hir.Type) {
	layout := abi.LayoutFunc(c.Conv, argTys, retTys)

	// Stack args go right-to-left so esp/rsp ends at the layout's base
	// once every push completes, matching cdecl/System V call sequences.
	for i := len(args) - 1; i >= 0; i-- {
		slot := layout.Args[i]
		if slot.InReg {
			continue
		}
		vl := c.Legalize(args[i], AllowReg|AllowImm, nil)
		c.emit(x86.OpPush, nil, vl)
	}
	for i, a := range args {
		slot := layout.Args[i]
		if !slot.InReg {
			continue
		}
		dst := c.fresh(argTys[i])
		dst.Precolor(slot.Reg)
		vl := c.Legalize(a, AllowReg|AllowImm, nil)
		op := x86.OpMov
		if argTys[i].IsFloat() {
			op = x86.OpMovss
		}
		c.emit(op, dst, vl)
	}

	ins := c.emit(x86.OpCall, nil)
	ins.CallTarget = target
	ins.Args = args

	for i, dst := range dsts {
		if i >= len(layout.Ret) {
			break
		}
		slot := layout.Ret[i]
		src := c.fresh(retTys[i])
		src.Precolor(slot.Reg)
		op := x86.OpMov
		if retTys[i].IsFloat() || retTys[i].IsVector() {
			op = x86.OpMovss
		}
		c.emit(op, dst, &ssa.VarOperand{V: src})
	}
}

// CallHelper builds and lowers a call to a fixed runtime helper (spec.md
// §6's Helper ABI), used by the pre-lowering rewrite pass for div/rem/
// frem/i64-conversion/bitcast operations this backend does not inline.
func (c *Context) CallHelper(dst *ssa.Variable, h hir.HelperFn, args []ssa.Operand, argTys []hir.Type, retTy hir.Type) {
	target := hir.CallTargetForHelper(h)
	var dsts []*ssa.Variable
	var retTys []hir.Type
	if retTy != hir.Void {
		dsts = []*ssa.Variable{dst}
		retTys = []hir.Type{retTy}
	}
	c.Call(dsts, target, args, argTys, retTys)
}
