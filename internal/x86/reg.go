// Package x86 models the physical register file, memory operands and
// low-level instruction shapes the Subzero backend emits, grounded on
// frugal's internal/atm/ssa (Reg with its Kind/Index bit layout, ir_amd64.go's
// ArchRegs/Mem) and internal/atm (Register, Ptr/Sib helpers in pgen_amd64.go).
// Real encoding is delegated to github.com/chenzhuoyu/iasm/x86_64, the same
// assembler frugal itself is built on.
package x86

import (
	"fmt"

	"github.com/chenzhuoyu/iasm/x86_64"
)

// RegClass distinguishes the two allocatable register files.
type RegClass uint8

const (
	ClassGP RegClass = iota
	ClassXMM
)

// PhysReg is a physical register, GP or XMM, identified by its widest
// alias (rax, xmm0, ...). Sub-register widths (al/ax/eax/rax) are handled
// by Aliases (aliasing.go), not by separate PhysReg values, mirroring
// frugal's single Register64 identity with width chosen at emission time.
type PhysReg uint8

const (
	RAX PhysReg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	NumGP
)

const (
	XMM0 PhysReg = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
	NumXMM
)

var gpNames = [...]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx",
	RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
}

var xmmNames = [...]string{
	XMM0: "xmm0", XMM1: "xmm1", XMM2: "xmm2", XMM3: "xmm3",
	XMM4: "xmm4", XMM5: "xmm5", XMM6: "xmm6", XMM7: "xmm7",
	XMM8: "xmm8", XMM9: "xmm9", XMM10: "xmm10", XMM11: "xmm11",
	XMM12: "xmm12", XMM13: "xmm13", XMM14: "xmm14", XMM15: "xmm15",
}

// Reg is a (class, physical register) pair, the unit the register
// allocator and instruction encoder both key on.
type Reg struct {
	Class RegClass
	Num   PhysReg
}

func GP(r PhysReg) Reg  { return Reg{ClassGP, r} }
func XMM(r PhysReg) Reg { return Reg{ClassXMM, r} }

func (r Reg) String() string {
	if r.Class == ClassXMM {
		return "%" + xmmNames[r.Num]
	}
	return "%" + gpNames[r.Num]
}

// Reg64 converts a GP Reg to its iasm Register64 for encoding.
func (r Reg) Reg64() x86_64.Register64 {
	if r.Class != ClassGP {
		panic("x86: Reg64 of a non-GP register")
	}
	return gpArch[r.Num]
}

var gpArch = [...]x86_64.Register64{
	RAX: x86_64.RAX, RCX: x86_64.RCX, RDX: x86_64.RDX, RBX: x86_64.RBX,
	RSP: x86_64.RSP, RBP: x86_64.RBP, RSI: x86_64.RSI, RDI: x86_64.RDI,
	R8: x86_64.R8, R9: x86_64.R9, R10: x86_64.R10, R11: x86_64.R11,
	R12: x86_64.R12, R13: x86_64.R13, R14: x86_64.R14, R15: x86_64.R15,
}

// AllGP and AllXMM enumerate the allocatable set in preference order,
// mirroring frugal ssa/ir_amd64.go's ArchRegs ordering (RAX first) — the
// order matters since the allocator's free-register search is stable and
// prefers earlier entries.
var AllGP = [...]PhysReg{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15, RBP}
var AllXMM = [...]PhysReg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7, XMM8, XMM9, XMM10, XMM11, XMM12, XMM13, XMM14, XMM15}

// Reserved registers never enter the allocator's free pool: RSP is the
// stack pointer, R8's "SpillLoadReg" role is filled by a plain temp
// instead (frugal's prototype pinned x86_64.R8 for that; see DESIGN.md).
// RBP joins this set only in a caller that dedicates it to a frame base
// (driver.Compile always does), which is why it is not baked in here.
var reservedGP = map[PhysReg]bool{RSP: true}

// Reserved reports whether r is unconditionally excluded from the
// allocator's free pool, regardless of frame-pointer convention.
func (r PhysReg) Reserved() bool { return reservedGP[r] }

func (r PhysReg) GoString() string { return fmt.Sprintf("x86.%s", gpNames[r]) }
