package x86

// Width names one of the sub-register views of a GP register: al/ah live
// inside ax, which lives inside eax, which lives inside rax. XMM registers
// have no sub-register aliasing that matters to the allocator (the low
// 128 bits of a wider AVX register are out of scope for this ABI).
type Width uint8

const (
	W8L Width = iota // al, cl, dl, bl, sil, dil, bpl, spl, r8b..r15b
	W8H              // ah, ch, dh, bh -- only for rax/rcx/rdx/rbx
	W16              // ax, cx, ...
	W32              // eax, ecx, ...
	W64              // rax, rcx, ...
)

// hasHighByte reports whether r has a legacy `ah`-style high-byte alias.
// Only the four original 8086 registers do; anything reached via a REX
// prefix (rsi, rdi, r8-r15, rbp, rsp) does not.
func hasHighByte(r PhysReg) bool {
	return r == RAX || r == RCX || r == RDX || r == RBX
}

// RegSet is a bitset over PhysReg, used both for "which registers are
// free" (spec.md §4.G Free mask) and for alias propagation.
type RegSet uint32

func (s RegSet) Has(r PhysReg) bool  { return s&(1<<uint(r)) != 0 }
func (s RegSet) Add(r PhysReg) RegSet { return s | (1 << uint(r)) }
func (s RegSet) Del(r PhysReg) RegSet { return s &^ (1 << uint(r)) }
func (s RegSet) Union(o RegSet) RegSet { return s | o }
func (s RegSet) Intersect(o RegSet) RegSet { return s & o }
func (s RegSet) Empty() bool { return s == 0 }

func (s RegSet) Each(f func(PhysReg)) {
	for i := PhysReg(0); i < NumGP; i++ {
		if s.Has(i) {
			f(i)
		}
	}
}

// Aliases returns the full alias set for reg r at width w: every physical
// register that shares silicon with r (spec.md §4.G "Aliasing discipline"
// — al ⊂ ax ⊂ eax ⊂ rax, ah also ⊂ ax). Since this backend never colors
// two *different* GP PhysReg values into overlapping silicon (there is
// exactly one PhysReg per architectural register, not one per width), the
// alias set of GP registers under this model is always the singleton
// {r} — the width dimension exists so the encoder can select the correct
// sub-register form (movb/movw/movl/movq) without the allocator having to
// reason about it. Width-based interference (e.g. a live i8 in %al and a
// live i8 in %ah of the same rax) is not modelled: the allocator treats
// each GP PhysReg as one unit and does not read the IsTrunc8Rcvr /
// Is64To8 hints (variable.go), mirroring how frugal
// always allocates whole Register64 slots and narrows at emission time
// (ir_amd64.go's ArchRegs is a []Register64, not a per-width table).
func Aliases(r PhysReg, class RegClass) RegSet {
	if class == ClassXMM {
		return RegSet(0)
	}
	return RegSet(1) << uint(r)
}

// ByteAddressable reports whether r can be used as the destination of an
// 8-bit operation without a REX prefix ambiguity. It reports true for
// every register; the register allocator does not call it.
func ByteAddressable(r PhysReg) bool {
	return true // under a REX-prefixed encoder, every GP register is byte-addressable.
}
