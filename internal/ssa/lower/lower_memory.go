package lower

import (
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Load lowers a load into a mem operand plus an Assign, per spec.md §4.F.
// If addr already carries a synthesized ssa.AddrMode (address-mode
// optimization ran first, spec.md §4.H step 5), it is used directly;
// otherwise a plain [addr+0] operand is built.
func (c *Context) Load(dst *ssa.Variable, addr ssa.Operand, mem *ssa.AddrMode, ty hir.Type) *ssa.Instruction {
	if mem == nil {
		if v, ok := ssa.AsVariable(addr); ok {
			mem = &ssa.AddrMode{HasBase: true, Base: v}
		}
	}
	op := x86.OpMov
	if ty.IsVector() {
		op = x86.OpMovaps
	} else if ty.IsFloat() {
		op = x86.OpMovss
		if ty == hir.F64 {
			op = x86.OpMovsd
		}
	}
	return c.emitMem(op, dst, mem)
}

// Store lowers a store, splitting into lo/hi moves for i64-on-32 (spec.md
// §4.F).
func (c *Context) Store(addr ssa.Operand, mem *ssa.AddrMode, val ssa.Operand, ty hir.Type) {
	if mem == nil {
		if v, ok := ssa.AsVariable(addr); ok {
			mem = &ssa.AddrMode{HasBase: true, Base: v}
		}
	}

	if ty == hir.I64 && c.Is32Bit() {
		lo, hi := c.splitHalves(val)
		memHi := *mem
		memHi.Disp += 4
		c.emitMem(x86.OpMov, nil, mem, c.Legalize(lo, AllowReg|AllowImm, nil))
		c.emitMem(x86.OpMov, nil, &memHi, c.Legalize(hi, AllowReg|AllowImm, nil))
		return
	}

	vl := c.Legalize(val, AllowReg|AllowImm, nil)
	op := x86.OpMov
	if ty.IsVector() {
		op = x86.OpMovaps
	} else if ty.IsFloat() {
		op = x86.OpMovss
		if ty == hir.F64 {
			op = x86.OpMovsd
		}
	}
	c.emitMem(op, nil, mem, vl)
}

// TryFoldLoad implements load-folding participation (spec.md §4.F): if
// load is the single last use consumed by consumer, rewrite consumer's
// operand in place to read directly from the load's memory operand,
// delete the load, and splice liveness from the deleted load onto the
// folded instruction's remaining operands. consumer is not re-emitted.
func (c *Context) TryFoldLoad(load *ssa.Instruction, consumer *ssa.Instruction) bool {
	if load.Op != ssa.OpX86 || load.Mem == nil {
		return false
	}
	loadDst, ok := load.Dest()
	if !ok {
		return false
	}

	for idx, src := range consumer.Sources() {
		v, isVar := ssa.AsVariable(src)
		if !isVar || v != loadDst {
			continue
		}
		if !consumer.LastUse(idx) {
			continue
		}
		consumer.SetSource(idx, load.Mem)
		consumer.SpliceLiveRangeFrom(load)
		load.SetDeleted()
		return true
	}
	return false
}

// AllocaSlot is the resolved fixed offset (or dynamic esp-relative
// marker) for one alloca, per spec.md §4.H step 2.
type AllocaSlot struct {
	Var      *ssa.Variable
	Offset   int32
	Dynamic  bool // variable-size alloca; updates esp instead of a fixed offset
	SizeExpr ssa.Operand
}

// LayoutAllocas combines constant-size allocas, in the order given, into a
// single contiguous region and assigns fixed offsets; variable-size allocas are
// flagged Dynamic so the frame emitter knows to bump esp/rsp at the
// alloca site instead.
func LayoutAllocas(allocas []AllocaSlot, align int32) []AllocaSlot {
	var fixed, dynamic []AllocaSlot
	for _, a := range allocas {
		if a.Dynamic {
			dynamic = append(dynamic, a)
		} else {
			fixed = append(fixed, a)
		}
	}

	var off int32
	for i := range fixed {
		sz := int32(fixed[i].Var.Ty.Width())
		off = alignUp(off, align)
		fixed[i].Offset = off
		off += sz
	}

	return append(fixed, dynamic...)
}

func alignUp(v, align int32) int32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
