package ssa

import (
	"fmt"

	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/x86"
)

// RegClassHint narrows the candidate physical registers a Variable may
// receive, per spec.md §3. The four *To8 hints exist because only four
// legacy GP registers (rax/rcx/rdx/rbx) have a byte-addressable high half,
// and a variable produced by truncation to i8 may need to land in one of
// the low-byte-addressable registers instead.
type RegClassHint uint8

const (
	HintDefault RegClassHint = iota
	HintIs64To8
	HintIs32To8
	HintIs16To8
	HintIsTrunc8Rcvr
)

// VarFlags are the boolean attributes of spec.md §3's Variable.
type VarFlags uint8

const (
	FlagMustHaveReg VarFlags = 1 << iota
	FlagMustNotHaveReg
	FlagIgnoreLiveness
	FlagRematerializable
	FlagIsArg
)

func (f VarFlags) Has(bit VarFlags) bool { return f&bit != 0 }

// Variable is spec.md §3's Variable: the unit the register allocator
// colors. Grounded on frugal's Reg (a compact packed value) generalized
// into a full struct since this backend's allocator (unlike frugal's) is
// implemented in full and needs mutable per-variable bookkeeping.
type Variable struct {
	Index int
	Ty    hir.Type
	Flags VarFlags
	Hint  RegClassHint

	// HasReg / Reg hold the post-regalloc physical assignment; a variable
	// is precolored when HasReg is already true at construction (with
	// Weight forced to infinite), colored by regalloc, or left with
	// HasReg == false meaning it lives on the stack at StackOffset.
	HasReg bool
	Reg    x86.Reg

	HasStackOffset bool
	StackOffset    int32

	// BaseOverride, when non-nil, is the register a rematerializable
	// variable's address is expressed relative to (e.g. a stack-relative
	// constant address), rather than RBP/RSP implicitly.
	BaseOverride   *Variable
	HasBaseOverride bool

	// RematBase/RematOffset describe how to rematerialize this variable
	// in place of a load, when FlagRematerializable is set: emitting it as
	// an operand means emitting [RematBase + RematOffset] directly.
	RematBase   *Variable
	RematOffset int32

	Range  LiveRange
	Weight float64 // sum of per-use weights scaled by loop-nest depth; InfiniteWeight for precolored

	// LinkedTo pairs a SpillVariable / VariableSplit half back to the
	// Variable it decomposes, per spec.md §3.
	LinkedTo *Variable

	def  Instr // the single defining instruction, if singleDefinition()
	defs int   // count of definitions seen (for isMultiDef)

	uses int // count of source-operand appearances seen (for IsSingleUse)

	multiBlock bool
}

// MarkMultiBlock records that v is live into more than one CfgNode, set by
// liveness computation (cfg.go).
func (v *Variable) MarkMultiBlock() { v.multiBlock = true }

const InfiniteWeight = 1e18

// NewVariable allocates a fresh, uncolored Variable of type ty.
func NewVariable(index int, ty hir.Type) *Variable {
	return &Variable{Index: index, Ty: ty}
}

// Precolor marks v as already bound to physical register r, with infinite
// weight and ignore-liveness, per spec.md §3's precolored invariant.
func (v *Variable) Precolor(r x86.Reg) {
	v.HasReg = true
	v.Reg = r
	v.Weight = InfiniteWeight
	v.Flags |= FlagIgnoreLiveness | FlagMustHaveReg
}

func (v *Variable) IsPrecolored() bool {
	return v.HasReg && v.Flags.Has(FlagIgnoreLiveness)
}

func (v *Variable) String() string { return fmt.Sprintf("v%d", v.Index) }

func (v *Variable) GoString() string {
	if v.HasReg {
		return fmt.Sprintf("v%d/%s", v.Index, v.Reg)
	}
	if v.HasStackOffset {
		return fmt.Sprintf("v%d/[sp+%d]", v.Index, v.StackOffset)
	}
	return fmt.Sprintf("v%d", v.Index)
}

// noteDef records a definition site, used by the "variable metadata
// oracle" (spec.md §6) to answer singleDefinition/isMultiDef.
func (v *Variable) noteDef(ins Instr) {
	if v.defs == 0 {
		v.def = ins
	}
	v.defs++
}

// SingleDefinition returns the unique defining instruction, or nil if v
// has zero or more than one definition.
func (v *Variable) SingleDefinition() Instr {
	if v.defs == 1 {
		return v.def
	}
	return nil
}

func (v *Variable) IsMultiDef() bool { return v.defs > 1 }

// noteUse records one source-operand appearance, used by the variable
// metadata oracle to answer IsSingleUse. Hooked at the same choke point as
// noteDef (NewInstruction), so it counts exactly the uses VarSources/
// liveness/weight-assignment already treat as canonical.
func (v *Variable) noteUse() { v.uses++ }

// IsSingleUse reports whether v appears as a source operand exactly once
// across the function, the precondition a rewrite needs before deleting
// v's defining instruction out from under it.
func (v *Variable) IsSingleUse() bool { return v.uses == 1 }

// IsMultiBlock is populated by liveness (it needs the CFG); see cfg.go's
// Func.ComputeLiveness, which sets this via MarkMultiBlock.
func (v *Variable) IsMultiBlock() bool { return v.multiBlock }
