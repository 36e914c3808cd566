// Package ssa is the core of the Subzero backend: the operand/variable
// model, the instruction model, the lowering context, the bool-folding
// and address-mode analyses, and (in the lower, regalloc and driver
// subpackages) the passes that turn a hir.Func into a colored sequence of
// x86 instructions. It is grounded on frugal/internal/atm/ssa, generalized
// from that package's fixed HIR to the wider typed LLIR this backend
// consumes (internal/hir).
package ssa

import (
	"fmt"

	"github.com/subzero-lang/subzero/internal/hir"
)

// Operand is the tagged variant of spec.md §4.A: every value an
// instruction can read or write is one of the concrete types below,
// distinguished the way ir_amd64.go distinguishes its IrNode variants —
// a private marker method rather than a type switch on an interface{}.
type Operand interface {
	operand()
	Type() hir.Type
	String() string
}

// ConstInt is Constant{Integer32 | Integer64}.
type ConstInt struct {
	Ty  hir.Type
	Val int64
}

func (*ConstInt) operand()        {}
func (c *ConstInt) Type() hir.Type { return c.Ty }
func (c *ConstInt) String() string { return fmt.Sprintf("$%d", c.Val) }

// ConstFloat is Constant{Float | Double}.
type ConstFloat struct {
	Ty  hir.Type // F32 or F64
	Val float64
}

func (*ConstFloat) operand()        {}
func (c *ConstFloat) Type() hir.Type { return c.Ty }
func (c *ConstFloat) String() string { return fmt.Sprintf("$%g", c.Val) }

// ConstReloc is Constant{Relocatable}. Interning key is (Sym, Offset,
// Suppress) per spec.md §4.A.
type ConstReloc struct {
	Sym      string
	Offset   int32
	Suppress bool // suppress-mangling
}

func (*ConstReloc) operand()        {}
func (*ConstReloc) Type() hir.Type   { return hir.I64 }
func (c *ConstReloc) String() string {
	if c.Offset == 0 {
		return "$" + c.Sym
	}
	return fmt.Sprintf("$%s+%d", c.Sym, c.Offset)
}

// ConstUndef is Constant{Undef}: an unspecified bit pattern of type Ty.
type ConstUndef struct{ Ty hir.Type }

func (*ConstUndef) operand()        {}
func (c *ConstUndef) Type() hir.Type { return c.Ty }
func (*ConstUndef) String() string   { return "undef" }

// VarOperand wraps a Variable as an Operand.
type VarOperand struct{ V *Variable }

func (*VarOperand) operand()        {}
func (o *VarOperand) Type() hir.Type { return o.V.Ty }
func (o *VarOperand) String() string { return o.V.String() }

// AddrMode is the pre-regalloc, virtual-register form of MemOperand: base
// and index are Variables, not yet PhysReg-resolved. The address-mode
// synthesizer (addrmode.go) builds these; instruction lowering (the
// lower package) consumes them; x86.Mem is the post-regalloc counterpart
// the final emitter builds from one of these once Base/Index are colored.
type AddrMode struct {
	Base     *Variable
	HasBase  bool
	Index    *Variable
	HasIndex bool
	Scale    uint8 // 0..3 (log2 of the {1,2,4,8} multiplier), meaningful only if HasIndex
	Disp     int32
	Sym      string
	SymOff   int32
	Segment  string
	// Randomized marks a mem operand whose base/index ordering was chosen
	// by GlobalContext's deterministic PRNG for randomized allocation
	// (spec.md §4.A "randomized?"), rather than by address-mode synthesis.
	Randomized bool
}

func (*AddrMode) operand() {}

func (m *AddrMode) Type() hir.Type { return hir.I64 } // address values are always pointer-width

func (m *AddrMode) String() string {
	sym := ""
	if m.Sym != "" {
		sym = fmt.Sprintf("%s+%d", m.Sym, m.SymOff)
	}
	switch {
	case m.HasBase && m.HasIndex:
		return fmt.Sprintf("%s%d(%s,%s,%d)", sym, m.Disp, m.Base, m.Index, 1<<m.Scale)
	case m.HasBase:
		return fmt.Sprintf("%s%d(%s)", sym, m.Disp, m.Base)
	default:
		return fmt.Sprintf("%s%d", sym, m.Disp)
	}
}

// SpillOperand is SpillVariable: a stack slot linked back to the Variable
// it was spilled from, used while an interval is temporarily displaced by
// addSpillFill (spec.md §4.G step 7).
type SpillOperand struct{ Linked *Variable }

func (*SpillOperand) operand()        {}
func (o *SpillOperand) Type() hir.Type { return o.Linked.Ty }
func (o *SpillOperand) String() string { return fmt.Sprintf("spill(%s)", o.Linked) }

// AsVariable extracts the Variable behind an Operand when there is one
// (VarOperand, or the base/index of an AddrMode do not count — callers
// that need those walk AddrMode directly).
func AsVariable(op Operand) (*Variable, bool) {
	if v, ok := op.(*VarOperand); ok {
		return v.V, true
	}
	return nil, false
}

// IsConstant reports whether op is one of the Constant{...} variants.
func IsConstant(op Operand) bool {
	switch op.(type) {
	case *ConstInt, *ConstFloat, *ConstReloc, *ConstUndef:
		return true
	default:
		return false
	}
}
