package hir

// Value is a reference to an SSA value produced by some instruction or
// phi in the LLIR. The frontend assigns Ids; the backend never allocates
// new hir.Values (its own temporaries live in the ssa package's own
// Variable space).
type Value struct {
	Id   int
	Typ  Type
	Name string
}

func (v Value) String() string {
	if v.Name != "" {
		return "%" + v.Name
	}
	return "%v" + itoa(v.Id)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	p := len(buf)
	for i > 0 {
		p--
		buf[p] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		p--
		buf[p] = '-'
	}
	return string(buf[p:])
}

// Relocatable identifies a symbol plus a byte offset, e.g. the address of
// a global or a helper function. suppressMangling mirrors the LLIR's
// ability to reference a raw linker symbol without name mangling, used for
// helper-ABI calls.
type Relocatable struct {
	Sym              string
	Offset           int64
	SuppressMangling bool
}

// ConstKind tags the variant carried by a Const.
type ConstKind uint8

const (
	ConstI32 ConstKind = iota
	ConstI64
	ConstF32
	ConstF64
	ConstReloc
	ConstUndef
)

// Const is a compile-time-known operand. Integer and relocatable constants
// are interned by the frontend; the backend re-interns them again in its
// own operand model (see ssa.InternInt / ssa.InternReloc) since it may
// synthesize new constants during lowering (e.g. splitting an i64 literal).
type Const struct {
	Kind  ConstKind
	I32   int32
	I64   int64
	F32   float32
	F64   float64
	Reloc Relocatable
}
