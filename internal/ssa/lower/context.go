// Package lower implements spec.md §4.F: per-instruction lowering from
// LLIR-shaped ssa.Instruction values into low-level x86 ssa.Instruction
// values (Op == ssa.OpX86), inserted at a ssa.Cursor. Organized the way
// atm/pgen_amd64.go organizes per-opcode emission functions — one
// function per LLIR instruction family, dispatched by the driver — but
// split one file per family (lower_arith.go, lower_cmp.go, ...) to keep
// each file at the size the teacher's own pass files use.
package lower

import (
	"github.com/subzero-lang/subzero/internal/abi"
	"github.com/subzero-lang/subzero/internal/cpu"
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Bits selects the target word width.
type Bits int

const (
	Bits32 Bits = 32
	Bits64 Bits = 64
)

// Context bundles everything a per-instruction lowering function needs:
// the cursor to emit into, the owning function (for NewValue), the
// bool-fold analyzer's query, the target word size and CPU features, and
// the per-function constant pool for scalar FP materialization (spec.md
// §4.F, grounded on ssa/constdata.go's constant-pool bookkeeping).
type Context struct {
	GCtx   *ssa.GlobalContext
	Func   *ssa.Func
	Node   *ssa.Node
	Cursor *ssa.Cursor
	Bits   Bits
	CPU    cpu.Features
	Conv   abi.Convention
	Fold   *ssa.BoolFolder

	// FrameBase is the Variable precolored to the frame-pointer register,
	// the base every rematerialized alloca/spill slot address is relative
	// to (spec.md §4.H steps 2 and 7).
	FrameBase *ssa.Variable

	pool      *ConstPool
	spillOff  map[*ssa.Variable]int32
	nextSpill int32

	// splitVars memoizes the (lo, hi) Variable pair backing an i64-on-32
	// value, keyed by the parent Variable, so every read and write of the
	// same logical i64 resolves to the same two allocator-visible halves
	// (spec.md §4.F, Variable.LinkedTo).
	splitVars map[*ssa.Variable][2]*ssa.Variable
}

func NewContext(gctx *ssa.GlobalContext, f *ssa.Func, bits Bits, features cpu.Features, frameBase *ssa.Variable) *Context {
	conv := abi.X86_64
	if bits == Bits32 {
		conv = abi.X86_32
	}
	return &Context{
		GCtx: gctx, Func: f, Bits: bits, CPU: features, Conv: conv,
		FrameBase: frameBase, pool: NewConstPool(), spillOff: map[*ssa.Variable]int32{},
		splitVars: map[*ssa.Variable][2]*ssa.Variable{},
	}
}

func (c *Context) Is32Bit() bool { return c.Bits == Bits32 }

// splitVar returns the (lo, hi) Variable pair backing v, an i64-on-32
// value, creating and memoizing a fresh I32 pair the first time v is
// seen. Both halves link back to v so liveness and debugging can recover
// the pairing (spec.md §3, Variable.LinkedTo).
func (c *Context) splitVar(v *ssa.Variable) (lo, hi *ssa.Variable) {
	if pair, ok := c.splitVars[v]; ok {
		return pair[0], pair[1]
	}
	lo = c.fresh(hir.I32)
	hi = c.fresh(hir.I32)
	lo.LinkedTo = v
	hi.LinkedTo = v
	c.splitVars[v] = [2]*ssa.Variable{lo, hi}
	return lo, hi
}

// WordType is the target's native word type (spec.md §3).
func (c *Context) WordType() hir.Type { return hir.WordType(int(c.Bits)) }

// emit appends a low-level x86 instruction built from op/cond/dst/src at
// the cursor.
func (c *Context) emit(op x86.Opcode, dst *ssa.Variable, src ...ssa.Operand) *ssa.Instruction {
	ins := ssa.NewInstruction(ssa.OpX86, dst, src...)
	ins.X86Op = op
	c.Cursor.Insert(ins)
	c.GCtx.NoteInstrLowered(1)
	return ins
}

func (c *Context) emitCond(op x86.Opcode, cond x86.Condition, dst *ssa.Variable, src ...ssa.Operand) *ssa.Instruction {
	ins := c.emit(op, dst, src...)
	ins.Cond = cond
	return ins
}

// emitMem appends a memory-touching low-level instruction.
func (c *Context) emitMem(op x86.Opcode, dst *ssa.Variable, mem *ssa.AddrMode, src ...ssa.Operand) *ssa.Instruction {
	ins := c.emit(op, dst, src...)
	ins.Mem = mem
	return ins
}

// fresh allocates a new virtual register of type ty.
func (c *Context) fresh(ty hir.Type) *ssa.Variable { return c.Func.NewValue(ty) }

// Fail records an Unsupported-lowering error on the function, per
// spec.md §7. It returns nothing; callers return or keep building after
// it, and the driver checks the function's error once codegen is done.
func (c *Context) Fail(format string, args ...interface{}) {
	c.Func.Fail(ssa.ErrUnsupportedLowering, format, args...)
}

// Assign lowers a plain copy, materializing src into dst unless it is
// already resident there (the common case once Legalize's availability
// map has already substituted an infinite-weight source in place).
func (c *Context) Assign(dst *ssa.Variable, src ssa.Operand) {
	vl := c.Legalize(src, AllowReg|AllowImm|AllowMem, dst)
	if v, ok := ssa.AsVariable(vl); ok && v == dst {
		return
	}
	c.emit(movOpFor(dst.Ty), dst, vl)
}

func movOpFor(ty hir.Type) x86.Opcode {
	switch {
	case ty.IsVector():
		return x86.OpMovaps
	case ty.IsFloat():
		if ty == hir.F64 {
			return x86.OpMovsd
		}
		return x86.OpMovss
	default:
		return x86.OpMov
	}
}

// SpillVar and FillVar materialize one addSpillFill decision (spec.md
// §4.G step 7): a dedicated slot below the alloca region holds v's value
// while its register is lent to a higher-priority beneficiary for the
// duration of the beneficiary's live range.
func (c *Context) SpillVar(v *ssa.Variable) {
	c.emitMem(movOpFor(v.Ty), nil, c.spillSlot(v), &ssa.VarOperand{V: v})
}

func (c *Context) FillVar(v *ssa.Variable) {
	c.emitMem(movOpFor(v.Ty), v, c.spillSlot(v))
}

func (c *Context) spillSlot(v *ssa.Variable) *ssa.AddrMode {
	off, ok := c.spillOff[v]
	if !ok {
		c.nextSpill += int32(v.Ty.Width())
		off = c.nextSpill
		c.spillOff[v] = off
	}
	return &ssa.AddrMode{HasBase: true, Base: c.FrameBase, Disp: -off}
}

// SpillBytes reports the total stack footprint SpillVar/FillVar have
// claimed so far, for the frame emitter to fold into the prologue's
// stack-adjustment immediate.
func (c *Context) SpillBytes() int32 { return c.nextSpill }
