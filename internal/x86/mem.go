package x86

import "fmt"

// Mem is a synthesized x86 memory operand: disp(base, index, scale). Both
// Base and Index are virtual registers at construction time (see
// ssa.Operand's MemOperand variant) and are only ever PhysReg-resolved
// values by the time an Instr reaches this package, mirroring frugal's
// ir_amd64.go Mem{M Reg; I Reg; S uint8; D int32}.
type Mem struct {
	Base    Reg
	HasBase bool
	Index   Reg
	HasIndex bool
	Scale   uint8 // one of 1, 2, 4, 8; 0 means "no index"
	Disp    int32
	Sym     string // relocatable symbol, "" if none
	SymOff  int32
}

func (m Mem) String() string {
	sym := ""
	if m.Sym != "" {
		sym = fmt.Sprintf("%s+%d", m.Sym, m.SymOff)
	}
	switch {
	case m.HasBase && m.HasIndex:
		return fmt.Sprintf("%s%d(%s,%s,%d)", sym, m.Disp, m.Base, m.Index, m.Scale)
	case m.HasBase:
		return fmt.Sprintf("%s%d(%s)", sym, m.Disp, m.Base)
	default:
		return fmt.Sprintf("%s%d", sym, m.Disp)
	}
}

// ScaleLog2 converts a {1,2,4,8} multiplier to the {0,1,2,3} shift the
// address-mode synthesizer (ssa/addrmode.go) works in.
func ScaleLog2(mult uint8) uint8 {
	switch mult {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		panic("x86: invalid scale multiplier")
	}
}

func ScaleMult(log2 uint8) uint8 { return 1 << log2 }
