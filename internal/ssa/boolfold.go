package ssa

import "github.com/subzero-lang/subzero/internal/hir"

// ProducerEntry tracks one i1-producing instruction being considered for
// flags-register fusion into its single consumer, per spec.md §4.D.
type ProducerEntry struct {
	Inst    Instr
	Complex bool
	LiveOut bool
	Uses    int
}

// BoolFolder is the per-node analyzer of spec.md §4.D: it finds
// producer/consumer pairs where an i1 value never needs to be
// materialized into a register because its single consumer (Br or
// Select) can read the flags register directly. Grounded on
// pass_fusion_amd64.go's `defs map[Reg]IrNode` producer map, generalized
// from frugal's fixed condition-code IR to this backend's Icmp/Fcmp/
// FlagSettingArith producer set.
type BoolFolder struct {
	entries map[*Variable]*ProducerEntry
}

func NewBoolFolder() *BoolFolder { return &BoolFolder{} }

// isProducerKind reports whether ins is one of Icmp-native, Icmp-64 (only
// meaningful on a 32-bit target, flagged via is32Bit), Fcmp, or
// FlagSettingArith (And|Or, not on an i64-on-32 operand).
func isProducerKind(ins Instr, is32Bit bool) (complex bool, ok bool) {
	in, isInstruction := ins.(*Instruction)
	if !isInstruction {
		return false, false
	}
	switch in.Op {
	case OpIcmp:
		if in.Ty == hir.I64 && is32Bit {
			return true, true // Icmp-64
		}
		return false, true
	case OpFcmp:
		return fcmpIsComplex(in.FcmpCond), true
	case OpArith:
		if (in.ArithOp == hir.OpAnd || in.ArithOp == hir.OpOr) && !(in.Ty == hir.I64 && is32Bit) {
			return false, true
		}
	}
	return false, false
}

// fcmpIsComplex reports whether an fcmp condition requires two branches
// in the lowering table (spec.md §4.D and §4.F's 16-row Fcmp table: One
// and Ueq need cmpps;cmpps;pand|por).
func fcmpIsComplex(c hir.FcmpCond) bool {
	return c == hir.FcmpOne || c == hir.FcmpUeq
}

// isWhitelistedConsumer reports whether ins is a Br or Select (spec.md
// §4.D's consumer whitelist).
func isWhitelistedConsumer(ins Instr) bool {
	in, ok := ins.(*Instruction)
	if !ok {
		return false
	}
	return in.Op == OpBr || in.Op == OpSelect
}

// Analyze runs the single pass of spec.md §4.D over node, using is32Bit to
// gate the Icmp-64/FlagSettingArith producer-kind exceptions.
func (bf *BoolFolder) Analyze(node *Node, is32Bit bool) {
	bf.entries = map[*Variable]*ProducerEntry{}

	for _, ins := range node.Ins {
		if ins.Deleted() {
			continue
		}
		dst, ok := ins.Dest()
		if !ok || dst.Ty != hir.I1 {
			continue
		}
		complex, isProducer := isProducerKind(ins, is32Bit)
		if !isProducer {
			continue
		}
		bf.entries[dst] = &ProducerEntry{Inst: ins, Complex: complex, LiveOut: true}
	}

	for _, ins := range node.Ins {
		if ins.Deleted() {
			continue
		}
		for _, use := range ins.VarSources() {
			entry, tracked := bf.entries[use.V]
			if !tracked {
				continue
			}
			if entry.Inst == ins {
				continue // the producer's own def-site "use" of its operands is irrelevant here
			}

			invalid := use.Index != 0 ||
				!isWhitelistedConsumer(ins) ||
				(entry.Complex && entry.Inst.(*Instruction).Op == OpIcmp && entry.Inst.(*Instruction).Ty == hir.I64 && !isBr(ins)) ||
				(entry.Complex && entry.Uses > 0)

			if invalid {
				delete(bf.entries, use.V)
				continue
			}

			entry.Uses++
			if ins.LastUse(use.Index) {
				entry.LiveOut = false
			}
		}
	}

	for v, entry := range bf.entries {
		if entry.LiveOut {
			delete(bf.entries, v)
			continue
		}
		entry.Inst.SetDead()
	}
}

func isBr(ins Instr) bool {
	in, ok := ins.(*Instruction)
	return ok && in.Op == OpBr
}

// ProducerFor is the public query of spec.md §4.D: the producer
// instruction for operand, or nil.
func (bf *BoolFolder) ProducerFor(operand Operand) Instr {
	v, ok := AsVariable(operand)
	if !ok {
		return nil
	}
	entry, ok := bf.entries[v]
	if !ok {
		return nil
	}
	return entry.Inst
}
