package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Intrinsic lowers one of spec.md §6's IntrinsicId operations. Most map
// to a single native instruction when the target CPU feature is present
// and fall back to a helper call otherwise (popcount without POPCNT, all
// of memcpy/memmove/memset/setjmp/longjmp). ctlz/cttz have no fallback:
// without BMI1 they record an unsupported-lowering error.
func (c *Context) Intrinsic(dst *ssa.Variable, id hir.IntrinsicId, args []ssa.Operand, ty hir.Type) {
	switch id {
	case hir.IntrinsicBswap:
		al := c.Legalize(args[0], AllowReg, dst)
		if av, ok := ssa.AsVariable(al); !ok || av != dst {
			c.emit(x86.OpMov, dst, al)
		}
		c.emit(x86.OpBswap, dst, &ssa.VarOperand{V: dst})

	case hir.IntrinsicPopcount:
		if c.CPU.HasPOPCNT {
			al := c.Legalize(args[0], AllowReg|AllowMem, nil)
			c.emit(x86.OpPopcnt, dst, al)
			return
		}
		h := hir.HelperCtpopI32
		if ty == hir.I64 {
			h = hir.HelperCtpopI64
		}
		c.CallHelper(dst, h, args, []hir.Type{ty}, ty)

	case hir.IntrinsicCtlz:
		if c.CPU.HasBMI1 {
			al := c.Legalize(args[0], AllowReg|AllowMem, nil)
			c.emit(x86.OpLzcnt, dst, al)
			return
		}
		c.Fail("ctlz without BMI1 must have been rewritten to a helper call")

	case hir.IntrinsicCttz:
		if c.CPU.HasBMI1 {
			al := c.Legalize(args[0], AllowReg|AllowMem, nil)
			c.emit(x86.OpTzcnt, dst, al)
			return
		}
		c.Fail("cttz without BMI1 must have been rewritten to a helper call")

	case hir.IntrinsicMemcpy:
		c.CallHelper(nil, hir.HelperMemcpy, args, []hir.Type{hir.I64, hir.I64, hir.I64}, hir.Void)
	case hir.IntrinsicMemmove:
		c.CallHelper(nil, hir.HelperMemmove, args, []hir.Type{hir.I64, hir.I64, hir.I64}, hir.Void)
	case hir.IntrinsicMemset:
		c.CallHelper(nil, hir.HelperMemset, args, []hir.Type{hir.I64, hir.I32, hir.I64}, hir.Void)

	case hir.IntrinsicSqrt:
		al := c.Legalize(args[0], AllowReg|AllowMem, nil)
		op := x86.OpSqrtss
		if ty == hir.F64 {
			op = x86.OpSqrtsd
		}
		c.emit(op, dst, al)

	case hir.IntrinsicFabs:
		al := c.Legalize(args[0], AllowReg, dst)
		if av, ok := ssa.AsVariable(al); !ok || av != dst {
			c.emit(x86.OpMovss, dst, al)
		}
		mask := c.absMaskConst(ty)
		c.emit(x86.OpFabsAnd, dst, &ssa.VarOperand{V: dst}, mask)

	case hir.IntrinsicAtomicLoad:
		c.atomicLoad(dst, args[0], ty)
	case hir.IntrinsicAtomicStore:
		c.atomicStore(args[0], args[1], ty)
	case hir.IntrinsicAtomicCmpxchg:
		c.atomicCmpxchg(dst, args[0], args[1], args[2], ty)
	case hir.IntrinsicAtomicRMW:
		c.Fail("atomic rmw must be lowered via LowerAtomicRMW with an explicit AtomicRMWOp")
	case hir.IntrinsicFence:
		c.emit(x86.OpMfence, nil)
	case hir.IntrinsicSetjmp:
		c.CallHelper(dst, hir.HelperSetjmp, args, []hir.Type{hir.I64}, hir.I32)
	case hir.IntrinsicLongjmp:
		c.CallHelper(nil, hir.HelperLongjmp, args, []hir.Type{hir.I64, hir.I32}, hir.Void)
	case hir.IntrinsicTrap:
		c.emit(x86.OpUd2, nil)
	default:
		c.Fail("unsupported intrinsic %d", id)
	}
}

// LowerAtomicRMW lowers a fused Load/op/Store RMW triple detected by the
// driver's RMW-recognition pass (spec.md §4.H step 6): xadd for
// add/sub, a single xchg for xchg, and a cmpxchg retry loop for
// and/or/xor where no single locked instruction suffices.
func (c *Context) LowerAtomicRMW(dst *ssa.Variable, op hir.AtomicRMWOp, addr *ssa.AddrMode, val ssa.Operand, ty hir.Type) {
	vl := c.Legalize(val, AllowReg, nil)
	switch op {
	case hir.RMWAdd:
		c.emit(x86.OpLock, nil)
		c.emitMem(x86.OpXadd, dst, addr, vl)
	case hir.RMWSub:
		neg := c.fresh(ty)
		c.emit(x86.OpMov, neg, vl)
		c.emit(x86.OpNeg, neg, &ssa.VarOperand{V: neg})
		c.emit(x86.OpLock, nil)
		c.emitMem(x86.OpXadd, dst, addr, &ssa.VarOperand{V: neg})
	case hir.RMWXchg:
		c.emitMem(x86.OpXchg, dst, addr, vl)
	case hir.RMWAnd, hir.RMWOr, hir.RMWXor:
		c.rmwCasLoop(dst, op, addr, vl, ty)
	default:
		c.Fail("unsupported atomic rmw op %d", op)
	}
}

// rmwCasLoop implements and/or/xor via a compare-and-swap retry loop,
// since x86 has no locked and/or/xor-with-fetch instruction (spec.md
// §4.F's atomic rmw section).
func (c *Context) rmwCasLoop(dst *ssa.Variable, op hir.AtomicRMWOp, addr *ssa.AddrMode, val ssa.Operand, ty hir.Type) {
	loop := ssa.NewNode(c.Func.Entry.Id + 1000 + int(op))
	c.Func.AddNode(loop)

	eax := c.precoloredEax()
	c.emitMem(x86.OpMov, eax, addr)

	loopCursor := &ssa.Cursor{}
	loopCursor.Init(loop)
	save := c.Cursor
	c.Cursor = loopCursor

	newVal := c.fresh(ty)
	c.emit(x86.OpMov, newVal, &ssa.VarOperand{V: eax})
	var opc x86.Opcode
	switch op {
	case hir.RMWAnd:
		opc = x86.OpAnd
	case hir.RMWOr:
		opc = x86.OpOr
	case hir.RMWXor:
		opc = x86.OpXor
	}
	c.emit(opc, newVal, &ssa.VarOperand{V: newVal}, val)
	c.emit(x86.OpLock, nil)
	c.emitMem(x86.OpCmpxchg, eax, addr, &ssa.VarOperand{V: newVal})
	retry := c.emitCond(x86.OpJcc, x86.CondNE, nil)
	retry.Targets = []*ssa.Node{nil, loop}

	c.Cursor = save
	c.emit(x86.OpMov, dst, &ssa.VarOperand{V: eax})
}

func (c *Context) atomicLoad(dst *ssa.Variable, addr ssa.Operand, ty hir.Type) {
	mem := &ssa.AddrMode{}
	if v, ok := ssa.AsVariable(addr); ok {
		mem.HasBase, mem.Base = true, v
	}
	c.emitMem(x86.OpMov, dst, mem)
}

func (c *Context) atomicStore(addr, val ssa.Operand, ty hir.Type) {
	mem := &ssa.AddrMode{}
	if v, ok := ssa.AsVariable(addr); ok {
		mem.HasBase, mem.Base = true, v
	}
	vl := c.Legalize(val, AllowReg|AllowImm, nil)
	c.emitMem(x86.OpMov, nil, mem, vl)
	c.emit(x86.OpMfence, nil)
}

// atomicCmpxchg lowers a compare-and-swap: eax preloaded with expected,
// lock cmpxchg writes new on match and zf reflects success (spec.md §4.F
// end-to-end scenario 5, "cmpxchg fusion").
func (c *Context) atomicCmpxchg(dst *ssa.Variable, addr, expected, newVal ssa.Operand, ty hir.Type) {
	eax := c.precoloredEax()
	el := c.Legalize(expected, AllowReg|AllowImm, nil)
	c.emit(x86.OpMov, eax, el)

	mem := &ssa.AddrMode{}
	if v, ok := ssa.AsVariable(addr); ok {
		mem.HasBase, mem.Base = true, v
	}
	nl := c.Legalize(newVal, AllowReg, nil)
	c.emit(x86.OpLock, nil)
	c.emitMem(x86.OpCmpxchg, eax, mem, nl)
	c.emit(x86.OpMov, dst, &ssa.VarOperand{V: eax})
}

func (c *Context) absMaskConst(ty hir.Type) ssa.Operand {
	sym := ".Lfabs.mask"
	if ty == hir.F64 {
		sym = ".Lfabs.mask64"
	}
	return &ssa.AddrMode{Sym: sym}
}
