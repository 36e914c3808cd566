package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Cast lowers sext/zext/trunc/fptrunc/fpext/fptosi/fptoui/sitofp/uitofp/
// bitcast per spec.md §4.F. On a 32-bit target all i64-involving casts
// other than bitcast, and on either target fp-to-ui/certain fp-to-si
// cases, must already have been rewritten to helper calls before
// reaching here; Cast rejects them defensively.
func (c *Context) Cast(dst *ssa.Variable, kind hir.CastKind, src ssa.Operand, fromTy, toTy hir.Type) {
	if (fromTy == hir.I64 || toTy == hir.I64) && c.Is32Bit() && kind != hir.CastBitcast {
		c.Fail("i64-involving cast %s must have been rewritten to a helper call before lowering", kind)
		return
	}

	switch kind {
	case hir.CastTrunc:
		c.castTrunc(dst, src, fromTy, toTy)
	case hir.CastZext:
		c.castZext(dst, src, fromTy, toTy)
	case hir.CastSext:
		c.castSext(dst, src, fromTy, toTy)
	case hir.CastFptrunc:
		c.emit(x86.OpCvtsd2ss, dst, c.Legalize(src, AllowReg|AllowMem, nil))
	case hir.CastFpext:
		c.emit(x86.OpCvtss2sd, dst, c.Legalize(src, AllowReg|AllowMem, nil))
	case hir.CastFptosi:
		c.castFptosi(dst, src, fromTy, toTy)
	case hir.CastFptoui:
		c.Fail("fptoui must have been rewritten to a helper call before lowering")
	case hir.CastSitofp:
		c.emit(x86.OpCvtsi2ss, dst, c.Legalize(src, AllowReg|AllowMem, nil))
	case hir.CastUitofp:
		c.Fail("uitofp of a value that may be negative-as-signed must have been rewritten to a helper call before lowering")
	case hir.CastBitcast:
		c.castBitcast(dst, src, fromTy, toTy)
	default:
		c.Fail("unsupported cast kind %s", kind)
	}
}

func (c *Context) castTrunc(dst *ssa.Variable, src ssa.Operand, fromTy, toTy hir.Type) {
	sl := c.Legalize(src, AllowReg, nil)
	if toTy == hir.I1 {
		// "Truncating to i1 requires an explicit and 1" (spec.md §4.F).
		c.emit(x86.OpMov, dst, sl)
		c.emit(x86.OpAnd, dst, &ssa.VarOperand{V: dst}, &ssa.ConstInt{Ty: hir.I8, Val: 1})
		return
	}
	c.emit(x86.OpMov, dst, sl) // narrower sub-register view of the same physical register at emission time
}

func (c *Context) castZext(dst *ssa.Variable, src ssa.Operand, fromTy, toTy hir.Type) {
	sl := c.Legalize(src, AllowReg|AllowMem, nil)
	// i1 widening: zext via movzx (spec.md §4.F).
	c.emit(x86.OpMovzx, dst, sl)
}

func (c *Context) castSext(dst *ssa.Variable, src ssa.Operand, fromTy, toTy hir.Type) {
	sl := c.Legalize(src, AllowReg, nil)
	if fromTy == hir.I1 {
		// i1 widening: sext via shl; sar by destBits-1 (spec.md §4.F,
		// end-to-end scenario 6: movzx t,b; shl t,31; sar t,31; mov z,t).
		t := c.fresh(toTy)
		c.emit(x86.OpMovzx, t, sl)
		shiftBy := int64(toTy.Width())*8 - 1
		c.emit(x86.OpShl, t, &ssa.VarOperand{V: t}, &ssa.ConstInt{Ty: hir.I8, Val: shiftBy})
		c.emit(x86.OpSar, t, &ssa.VarOperand{V: t}, &ssa.ConstInt{Ty: hir.I8, Val: shiftBy})
		c.emit(x86.OpMov, dst, &ssa.VarOperand{V: t})
		return
	}
	c.emit(x86.OpMovsx, dst, sl)
}

func (c *Context) castFptosi(dst *ssa.Variable, src ssa.Operand, fromTy, toTy hir.Type) {
	sl := c.Legalize(src, AllowReg|AllowMem, nil)
	op := x86.OpCvttss2si
	if fromTy == hir.F64 {
		op = x86.OpCvttsd2si
	}
	c.emit(op, dst, sl)
}

// castBitcast implements integer<->scalar FP bitcasts of matching width:
// via movd/movq on a 64-bit target (spec.md §4.F). The 32-bit-target
// spill-slot path is handled by the driver materializing a temporary
// alloca before calling Cast, so this function only emits the direct
// register-to-register form.
func (c *Context) castBitcast(dst *ssa.Variable, src ssa.Operand, fromTy, toTy hir.Type) {
	sl := c.Legalize(src, AllowReg, nil)
	if fromTy.Width() != toTy.Width() {
		c.Func.Fail(ssa.ErrInvariantViolation, "bitcast width mismatch: %s -> %s", fromTy, toTy)
		return
	}
	switch toTy.Width() {
	case 4:
		c.emit(x86.OpMovd, dst, sl)
	case 8:
		c.emit(x86.OpMovq, dst, sl)
	default:
		c.Fail("bitcast of width %d unsupported", toTy.Width())
	}
}
