package ssa

import "github.com/subzero-lang/subzero/internal/hir"

// addrState is the mutable (reloc, off, base, index, shift) tuple the
// fixed-point loop of spec.md §4.E rewrites in place.
type addrState struct {
	hasBase  bool
	base     *Variable
	hasIndex bool
	index    *Variable
	shift    uint8 // 0..3
	off      int32
	sym      string
	symOff   int32
	hasSym   bool

	// consumed collects the arithmetic instructions the rewrite has
	// fully subsumed, candidates for DCE via the deletion bit once every
	// use of their result has been folded away.
	consumed []Instr
}

// SynthesizeAddress runs the address-mode fixed-point loop of spec.md
// §4.E starting from a base variable (and no index), returning the
// synthesized AddrMode plus the list of now-fully-consumed arithmetic
// instructions. ok is false if no rule ever fired (base stays a plain
// register operand, not worth replacing).
//
// Grounded on pass_fusion_amd64.go's fusemem, generalized from that
// function's fixed handful of inline cases into the general worklist
// algorithm spec.md §4.E describes.
func SynthesizeAddress(base *Variable) (*AddrMode, []Instr, bool) {
	st := &addrState{hasBase: true, base: base}
	fired := false

	for i := 0; i < 64; i++ { // the loop always terminates per spec; cap defends against a modeling bug
		if !applyOneRule(st) {
			break
		}
		fired = true
	}

	if !fired {
		return nil, nil, false
	}

	am := &AddrMode{
		HasBase:  st.hasBase,
		Base:     st.base,
		HasIndex: st.hasIndex,
		Index:    st.index,
		Scale:    st.shift,
		Disp:     st.off,
		Sym:      st.sym,
		SymOff:   st.symOff,
	}
	return am, st.consumed, true
}

func applyOneRule(st *addrState) bool {
	if ruleAssignSubstitute(st) {
		return true
	}
	if ruleSplitBaseIndex(st) {
		return true
	}
	if ruleShiftedIndex(st) {
		return true
	}
	if ruleOffsetBase(st) {
		return true
	}
	if ruleSwap(st) {
		return true
	}
	return false
}

// eligible reports whether v's defining instruction may be folded into the
// address and deleted: v must not be live across multiple blocks, and its
// value must be fully subsumed by the fold, i.e. this is its only use
// anywhere (spec.md §4.E precondition, checked via the variable-metadata
// oracle). A variable with a second use survives as a plain register
// operand instead of being consumed.
func eligible(v *Variable) bool {
	return v != nil && !v.IsMultiBlock() && v.IsSingleUse()
}

func singleDefArgs(v *Variable) (op hir.Op, args []Operand, ok bool) {
	if v == nil || v.IsMultiDef() {
		return 0, nil, false
	}
	def := v.SingleDefinition()
	if def == nil {
		return 0, nil, false
	}
	in, isArith := def.(*Instruction)
	if !isArith || in.Op != OpArith {
		return 0, nil, false
	}
	return in.ArithOp, in.Sources(), true
}

// rule 1: assign-substitute.
func ruleAssignSubstitute(st *addrState) bool {
	for _, slot := range []**Variable{&st.base, &st.index} {
		v := *slot
		if v == nil || !eligible(v) || v.IsMultiDef() {
			continue
		}
		def := v.SingleDefinition()
		if def == nil {
			continue
		}
		in, ok := def.(*Instruction)
		if !ok || in.Op != OpAssign {
			continue
		}
		src := in.Sources()[0]
		switch s := src.(type) {
		case *VarOperand:
			if !eligible(s.V) {
				continue
			}
			*slot = s.V
			st.consumed = append(st.consumed, def)
			return true
		case *ConstInt:
			if slot == &st.base {
				newOff, overflow := addI32(st.off, int32(s.Val))
				if overflow {
					continue
				}
				st.off = newOff
				st.hasBase = false
				st.base = nil
				st.consumed = append(st.consumed, def)
				return true
			}
		case *ConstReloc:
			if !st.hasSym {
				st.sym, st.symOff, st.hasSym = s.Sym, s.Offset, true
				if slot == &st.base {
					st.hasBase = false
					st.base = nil
				} else {
					st.hasIndex = false
					st.index = nil
				}
				st.consumed = append(st.consumed, def)
				return true
			}
		}
	}
	return false
}

// rule 2: split base into base+index.
func ruleSplitBaseIndex(st *addrState) bool {
	if st.hasIndex || !st.hasBase || !eligible(st.base) {
		return false
	}
	op, args, ok := singleDefArgs(st.base)
	if !ok || op != hir.OpAdd {
		return false
	}
	v1, ok1 := AsVariable(args[0])
	v2, ok2 := AsVariable(args[1])
	if !ok1 || !ok2 || !eligible(v1) || !eligible(v2) || v1.IsMultiDef() || v2.IsMultiDef() {
		return false
	}
	def := st.base.SingleDefinition()
	st.base, st.index, st.shift = v1, v2, 0
	st.hasIndex = true
	st.consumed = append(st.consumed, def)
	return true
}

// rule 3: shifted index.
func ruleShiftedIndex(st *addrState) bool {
	if !st.hasIndex || !eligible(st.index) {
		return false
	}
	op, args, ok := singleDefArgs(st.index)
	if !ok {
		return false
	}
	switch op {
	case hir.OpMul:
		v, kOp := args[0], args[1]
		vv, isVar := AsVariable(v)
		k, isConst := kOp.(*ConstInt)
		if !isVar || !isConst || !eligible(vv) {
			return false
		}
		log2, ok := log2Scale(k.Val)
		if !ok || st.shift+log2 > 3 {
			return false
		}
		def := st.index.SingleDefinition()
		st.index = vv
		st.shift += log2
		st.consumed = append(st.consumed, def)
		return true
	case hir.OpShl:
		vv, isVar := AsVariable(args[0])
		c, isConst := args[1].(*ConstInt)
		if !isVar || !isConst || !eligible(vv) || c.Val < 0 || c.Val > 3 {
			return false
		}
		if st.shift+uint8(c.Val) > 3 {
			return false
		}
		def := st.index.SingleDefinition()
		st.index = vv
		st.shift += uint8(c.Val)
		st.consumed = append(st.consumed, def)
		return true
	}
	return false
}

func log2Scale(k int64) (uint8, bool) {
	switch k {
	case 1:
		return 0, true
	case 2:
		return 1, true
	case 4:
		return 2, true
	case 8:
		return 3, true
	default:
		return 0, false
	}
}

// rule 4: offset base.
func ruleOffsetBase(st *addrState) bool {
	if !st.hasBase || !eligible(st.base) {
		return false
	}
	op, args, ok := singleDefArgs(st.base)
	if !ok {
		return false
	}
	var x Operand
	var c *ConstInt
	var reloc *ConstReloc
	var negate bool

	switch op {
	case hir.OpAdd:
		if k, isK := args[1].(*ConstInt); isK {
			x, c = args[0], k
		} else if k, isK := args[0].(*ConstInt); isK {
			x, c = args[1], k
		} else if r, isR := args[1].(*ConstReloc); isR {
			x, reloc = args[0], r
		} else if r, isR := args[0].(*ConstReloc); isR {
			x, reloc = args[1], r
		} else {
			return false
		}
	case hir.OpSub:
		if k, isK := args[1].(*ConstInt); isK {
			x, c, negate = args[0], k, true
		} else {
			return false // subtract-of-reloc rejected; non-constant subtrahend not foldable here
		}
	default:
		return false
	}

	xv, isVar := AsVariable(x)
	if !isVar || !eligible(xv) {
		return false
	}

	def := st.base.SingleDefinition()

	if c != nil {
		delta := c.Val
		if negate {
			delta = -delta
		}
		newOff, overflow := addI32(st.off, int32(delta))
		if overflow {
			return false
		}
		st.off = newOff
		st.base = xv
		st.consumed = append(st.consumed, def)
		return true
	}

	if reloc != nil {
		if st.hasSym {
			return false // reloc+reloc rejected
		}
		st.sym, st.symOff, st.hasSym = reloc.Sym, reloc.Offset, true
		st.base = xv
		st.consumed = append(st.consumed, def)
		return true
	}

	return false
}

// rule 5: swap base and index.
func ruleSwap(st *addrState) bool {
	if !st.hasBase && st.hasIndex && st.shift == 0 {
		st.hasBase, st.base = true, st.index
		st.hasIndex, st.index = false, nil
		return true
	}
	return false
}

func addI32(a, b int32) (int32, bool) {
	sum := int64(a) + int64(b)
	if sum > 1<<31-1 || sum < -(1<<31) {
		return 0, true
	}
	return int32(sum), false
}
