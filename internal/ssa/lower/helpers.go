package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
)

// RewriteToHelper replaces an instruction this backend does not lower
// natively (64-bit div/rem on either target, frem) with a call to the
// fixed helper ABI of spec.md §6; casts go through RewriteCastToHelper.
// Both run in the driver before Arith/Cast/Fcmp
// lowering ever sees the instruction (spec.md §4.F's repeated "must
// already have been rewritten to a helper call" preconditions).
func (c *Context) RewriteToHelper(dst *ssa.Variable, op hir.Op, a, b ssa.Operand, ty hir.Type) bool {
	switch {
	case (op == hir.OpUdiv || op == hir.OpSdiv || op == hir.OpUrem || op == hir.OpSrem) && ty == hir.I64:
		h := divRemHelper(op)
		c.CallHelper(dst, h, []ssa.Operand{a, b}, []hir.Type{hir.I64, hir.I64}, hir.I64)
		return true
	case op == hir.OpFrem:
		h := hir.HelperFremF32
		if ty == hir.F64 {
			h = hir.HelperFremF64
		}
		c.CallHelper(dst, h, []ssa.Operand{a, b}, []hir.Type{ty, ty}, ty)
		return true
	default:
		return false
	}
}

func divRemHelper(op hir.Op) hir.HelperFn {
	switch op {
	case hir.OpUdiv:
		return hir.HelperUdivI64
	case hir.OpSdiv:
		return hir.HelperSdivI64
	case hir.OpUrem:
		return hir.HelperUremI64
	default:
		return hir.HelperSremI64
	}
}

// RewriteCastToHelper replaces a cast this backend cannot lower natively:
// fp-to-i64, i64-to-fp, fptoui of any width, uitofp of a value that may be
// negative as signed, and i1-vector bitcasts.
func (c *Context) RewriteCastToHelper(dst *ssa.Variable, kind hir.CastKind, src ssa.Operand, fromTy, toTy hir.Type) bool {
	switch kind {
	case hir.CastFptosi:
		if toTy == hir.I64 {
			h := hir.HelperFptosiF32I64
			if fromTy == hir.F64 {
				h = hir.HelperFptosiF64I64
			}
			c.CallHelper(dst, h, []ssa.Operand{src}, []hir.Type{fromTy}, hir.I64)
			return true
		}
	case hir.CastFptoui:
		h := hir.HelperFptouiF32I64
		switch {
		case fromTy == hir.F64 && toTy == hir.I64:
			h = hir.HelperFptouiF64I64
		case fromTy == hir.F32 && toTy == hir.I64:
			h = hir.HelperFptouiF32I64
		case toTy == hir.V4i32:
			h = hir.HelperFptoui4xi32F32
		}
		c.CallHelper(dst, h, []ssa.Operand{src}, []hir.Type{fromTy}, toTy)
		return true
	case hir.CastSitofp:
		if fromTy == hir.I64 {
			h := hir.HelperSitofpI64F32
			if toTy == hir.F64 {
				h = hir.HelperSitofpI64F64
			}
			c.CallHelper(dst, h, []ssa.Operand{src}, []hir.Type{fromTy}, toTy)
			return true
		}
	case hir.CastUitofp:
		h := hir.HelperUitofpI64F32
		switch {
		case fromTy == hir.I64 && toTy == hir.F64:
			h = hir.HelperUitofpI64F64
		case fromTy == hir.V4i32:
			h = hir.HelperUitofp4xi32F32
		}
		c.CallHelper(dst, h, []ssa.Operand{src}, []hir.Type{fromTy}, toTy)
		return true
	case hir.CastBitcast:
		if fromTy == hir.V8i1 && toTy == hir.I8 {
			c.CallHelper(dst, hir.HelperBitcast8xi1I8, []ssa.Operand{src}, []hir.Type{fromTy}, toTy)
			return true
		}
		if fromTy == hir.V16i1 && toTy == hir.I16 {
			c.CallHelper(dst, hir.HelperBitcast16xi1I16, []ssa.Operand{src}, []hir.Type{fromTy}, toTy)
			return true
		}
		if fromTy == hir.I8 && toTy == hir.V8i1 {
			c.CallHelper(dst, hir.HelperBitcastI8_8xi1, []ssa.Operand{src}, []hir.Type{fromTy}, toTy)
			return true
		}
		if fromTy == hir.I16 && toTy == hir.V16i1 {
			c.CallHelper(dst, hir.HelperBitcastI16_16xi1, []ssa.Operand{src}, []hir.Type{fromTy}, toTy)
			return true
		}
	}
	return false
}
