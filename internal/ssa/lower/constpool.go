package lower

import (
	"fmt"
	"math"

	"github.com/subzero-lang/subzero/internal/ssa"
)

// ConstPool is the per-function scalar-FP constant pool spec.md §4.F
// requires ("Scalar FP constants are materialized as memory references
// into a constant pool"), grounded on ssa/constdata.go's constant-pool
// bookkeeping.
type ConstPool struct {
	seq     int
	entries map[uint64]string
	Order   []PoolEntry
}

type PoolEntry struct {
	Sym  string
	Bits uint64
	F64  bool
}

func NewConstPool() *ConstPool {
	return &ConstPool{entries: map[uint64]string{}}
}

// Intern returns the symbol name backing v's bit pattern, creating a new
// pool slot on first use. F32 and F64 constants with the same numeric
// value but different width get distinct slots, keyed by width-tagged
// bits.
func (p *ConstPool) Intern(v *ssa.ConstFloat) string {
	isF64 := v.Ty.Width() == 8
	var bits uint64
	if isF64 {
		bits = math.Float64bits(v.Val)
	} else {
		bits = uint64(math.Float32bits(float32(v.Val)))
	}
	for _, e := range p.Order {
		if e.Bits == bits && e.F64 == isF64 {
			return e.Sym
		}
	}
	sym := fmt.Sprintf(".Lconst.%d", p.seq)
	p.seq++
	p.Order = append(p.Order, PoolEntry{Sym: sym, Bits: bits, F64: isF64})
	return sym
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
