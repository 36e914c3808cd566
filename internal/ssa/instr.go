package ssa

import (
	"fmt"
	"strings"

	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Op is the top-level tag of the Instruction tagged variant (spec.md
// §4.B). Arithmetic/Icmp/Fcmp/Cast further dispatch on hir's own
// sub-enums (ArithOp, IcmpCond, FcmpCond, CastKind) rather than growing
// their own, so lowering can switch on the pair (Op, hir sub-op) the way
// atm/pgen_amd64.go switches on a single flat OpCode -- the two-level
// dispatch here exists only because Op additionally needs to name the
// >100 x86 mnemonics of OpX86, which would otherwise dwarf the LLIR ops.
type Op uint16

const (
	OpAssign Op = iota
	OpArith
	OpIcmp
	OpFcmp
	OpBr
	OpJump
	OpLoad
	OpStore
	OpAlloca
	OpPhi
	OpSelect
	OpCall
	OpRet
	OpCast
	OpExtractElement
	OpInsertElement
	OpIntrinsicCall
	OpUnreachable
	OpFakeDef
	OpFakeUse
	OpFakeRMW
	// OpX86 instructions are the "low-level x86 insts" component 4.F
	// inserts at the cursor; X86Op distinguishes the mnemonic.
	OpX86
)

// Instr is the public contract of spec.md §4.B: create, attach, query
// sources/dest, iterate variable sources with index, mark dead/deleted/
// redefined, splice live-range info between instructions.
type Instr interface {
	Number() int
	SetNumber(n int)

	Dead() bool
	SetDead()
	Deleted() bool
	SetDeleted()

	DestRedefine() bool
	SetDestRedefine(bool)

	Dest() (*Variable, bool)
	Sources() []Operand
	SetSource(i int, op Operand)

	// VarSources yields (index, *Variable) for every source operand that
	// is itself a Variable (spec.md §4.B "iterate variable-typed
	// sources with their operand index").
	VarSources() []VarUse

	LastUse(i int) bool
	SetLastUse(i int, last bool)

	SpliceLiveRangeFrom(other Instr)

	fmt.Stringer
}

// VarUse names one variable-typed source operand by its index within
// Sources().
type VarUse struct {
	Index int
	V     *Variable
}

// Instruction is the sole concrete implementation of Instr, a wide struct
// in the manner of atm.Instr's single-struct-many-opcodes idiom, extended
// to cover both LLIR-level and x86-level operations rather than atm's
// fixed bytecode set.
type Instruction struct {
	Op Op

	ArithOp   hir.Op
	IcmpCond  hir.IcmpCond
	FcmpCond  hir.FcmpCond
	CastKind  hir.CastKind
	Intrinsic hir.IntrinsicId
	RMWOp     hir.AtomicRMWOp // valid for OpFakeRMW beacons
	X86Op     x86.Opcode
	Cond      x86.Condition

	Ty hir.Type // result / working type for this op

	dst    *Variable
	hasDst bool

	src      []Operand
	lastUse  []bool

	Mem *AddrMode // valid for OpLoad/OpStore/OpX86 forms that touch memory

	Args       []Operand      // call/intrinsic argument list
	CallTarget *hir.CallTarget

	// Targets holds successor nodes for control-flow instructions: [0] is
	// the fallthrough/unconditional target, [1] the taken-branch target
	// for OpBr.
	Targets []*Node

	num          int
	dead         bool
	deleted      bool
	destRedefine bool

	node *Node
}

// NewInstruction constructs an Instruction with dst as its optional
// destination (pass nil for instructions with no result) and src as its
// ordered source operands, registering the definition with dst's metadata
// oracle bookkeeping (spec.md §6).
func NewInstruction(op Op, dst *Variable, src ...Operand) *Instruction {
	ins := &Instruction{Op: op, src: src, lastUse: make([]bool, len(src))}
	if dst != nil {
		ins.dst, ins.hasDst = dst, true
		dst.noteDef(ins)
	}
	for _, use := range ins.VarSources() {
		use.V.noteUse()
	}
	return ins
}

func (i *Instruction) Number() int     { return i.num }
func (i *Instruction) SetNumber(n int) { i.num = n }

func (i *Instruction) Dead() bool { return i.dead }
func (i *Instruction) SetDead()   { i.dead = true }

func (i *Instruction) Deleted() bool { return i.deleted }
func (i *Instruction) SetDeleted()   { i.deleted = true }

func (i *Instruction) DestRedefine() bool          { return i.destRedefine }
func (i *Instruction) SetDestRedefine(v bool)       { i.destRedefine = v }

func (i *Instruction) Dest() (*Variable, bool) { return i.dst, i.hasDst }

func (i *Instruction) Sources() []Operand { return i.src }

func (i *Instruction) SetSource(idx int, op Operand) { i.src[idx] = op }

func (i *Instruction) VarSources() []VarUse {
	var out []VarUse
	for idx, op := range i.src {
		if v, ok := AsVariable(op); ok {
			out = append(out, VarUse{idx, v})
		}
		if am, ok := op.(*AddrMode); ok {
			if am.HasBase {
				out = append(out, VarUse{idx, am.Base})
			}
			if am.HasIndex {
				out = append(out, VarUse{idx, am.Index})
			}
		}
	}
	return out
}

func (i *Instruction) LastUse(idx int) bool         { return i.lastUse[idx] }
func (i *Instruction) SetLastUse(idx int, last bool) { i.lastUse[idx] = last }

// SpliceLiveRangeFrom is called when fusion (load folding) deletes other
// in favour of this instruction. For every variable that both
// instructions read, it re-appends that variable's own intervals and
// normalizes its range; other's destination range is not merged into
// this instruction's destination.
func (i *Instruction) SpliceLiveRangeFrom(other Instr) {
	src, ok := other.(*Instruction)
	if !ok {
		return
	}
	for _, use := range src.VarSources() {
		for _, mine := range i.VarSources() {
			if mine.V == use.V {
				mine.V.Range.Intervals = append(mine.V.Range.Intervals, use.V.Range.Intervals...)
				mine.V.Range.Normalize()
			}
		}
	}
}

func (i *Instruction) String() string {
	var b strings.Builder
	if i.hasDst {
		fmt.Fprintf(&b, "%s = ", i.dst)
	}
	switch i.Op {
	case OpX86:
		fmt.Fprintf(&b, "x86.%d", i.X86Op)
	case OpArith:
		fmt.Fprintf(&b, "%s", i.ArithOp)
	case OpIcmp:
		fmt.Fprintf(&b, "icmp %s", i.IcmpCond)
	case OpFcmp:
		fmt.Fprintf(&b, "fcmp %s", i.FcmpCond)
	case OpCast:
		fmt.Fprintf(&b, "cast %s", i.CastKind)
	default:
		fmt.Fprintf(&b, "op%d", i.Op)
	}
	strs := make([]string, len(i.src))
	for idx, s := range i.src {
		strs[idx] = s.String()
	}
	b.WriteString(" ")
	b.WriteString(strings.Join(strs, ", "))
	if i.dead {
		b.WriteString(" ; dead")
	}
	return b.String()
}
