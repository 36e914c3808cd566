package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// ExtractElement lowers extraction of one lane of a vector into a scalar
// (spec.md §6's ExtractElement/InsertElement operations).
func (c *Context) ExtractElement(dst *ssa.Variable, vec ssa.Operand, idx int64, elemTy hir.Type) {
	vl := c.Legalize(vec, AllowReg, nil)
	switch elemTy.Width() {
	case 1:
		c.emit(x86.OpPextrb, dst, vl, &ssa.ConstInt{Ty: hir.I8, Val: idx})
	case 2:
		c.emit(x86.OpPextrw, dst, vl, &ssa.ConstInt{Ty: hir.I8, Val: idx})
	default:
		if idx == 0 {
			c.emit(x86.OpMovss, dst, vl)
			return
		}
		c.emit(x86.OpPextrd, dst, vl, &ssa.ConstInt{Ty: hir.I8, Val: idx})
	}
}

// InsertElement lowers replacement of one lane of a vector.
func (c *Context) InsertElement(dst *ssa.Variable, vec, scalar ssa.Operand, idx int64, elemTy hir.Type) {
	vl := c.Legalize(vec, AllowReg, dst)
	if av, ok := ssa.AsVariable(vl); !ok || av != dst {
		c.emit(x86.OpMovaps, dst, vl)
	}
	sl := c.Legalize(scalar, AllowReg|AllowMem, nil)
	switch elemTy.Width() {
	case 1:
		c.emit(x86.OpPinsrb, dst, &ssa.VarOperand{V: dst}, sl, &ssa.ConstInt{Ty: hir.I8, Val: idx})
	case 2:
		c.emit(x86.OpPinsrw, dst, &ssa.VarOperand{V: dst}, sl, &ssa.ConstInt{Ty: hir.I8, Val: idx})
	default:
		c.emit(x86.OpInsertps, dst, &ssa.VarOperand{V: dst}, sl, &ssa.ConstInt{Ty: hir.I8, Val: idx << 4})
	}
}

// ScalarizeVectorOp expands a per-lane vector operation this backend has
// no packed instruction for (v16i8 multiply, vector div/rem, frem) into
// extract/scalar-op/insert per lane, per spec.md §4.F's scalarization
// fallback.
func (c *Context) ScalarizeVectorOp(dst *ssa.Variable, op hir.Op, a, b ssa.Operand, ty hir.Type) {
	elemTy := ty.ElemType()
	lanes := ty.NumElems()

	acc := c.fresh(ty)
	c.emit(x86.OpPxor, acc, &ssa.VarOperand{V: acc}, &ssa.VarOperand{V: acc})

	for lane := int64(0); lane < int64(lanes); lane++ {
		ea := c.fresh(elemTy)
		c.ExtractElement(ea, a, lane, elemTy)
		eb := c.fresh(elemTy)
		c.ExtractElement(eb, b, lane, elemTy)

		er := c.fresh(elemTy)
		if elemTy.IsFloat() {
			c.arithScalarFP(er, op, &ssa.VarOperand{V: ea}, &ssa.VarOperand{V: eb}, elemTy)
		} else {
			c.arithScalarInt(er, op, &ssa.VarOperand{V: ea}, &ssa.VarOperand{V: eb}, elemTy)
		}

		next := acc
		if lane < int64(lanes)-1 {
			next = c.fresh(ty)
		} else {
			next = dst
		}
		c.InsertElement(next, &ssa.VarOperand{V: acc}, &ssa.VarOperand{V: er}, lane, elemTy)
		acc = next
	}
}
