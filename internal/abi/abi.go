// Package abi lays out call argument and return locations for the two
// flat calling conventions the backend targets, grounded on frugal's
// internal/atm/abi_amd64.go (Parameter, FunctionLayout) generalized from
// "always frugal's one Go-runtime ABI" to "one convention per word size",
// per spec.md §6.
package abi

import (
	"fmt"

	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Convention selects the calling convention in force for a compilation.
type Convention uint8

const (
	// X86_32 passes every argument on the stack, in declaration order,
	// keeping 16-byte stack alignment at the call site.
	X86_32 Convention = iota
	// X86_64 passes integer arguments in GPRs (up to X86MaxGPRArgs) and
	// vector/FP arguments in xmm registers (up to X86MaxXMMArgs); the
	// remainder spill to the stack in declaration order.
	X86_64
)

// X86MaxGPRArgs and X86MaxXMMArgs bound how many arguments the x86-64
// convention passes in registers before falling back to the stack; named
// directly after spec.md §6's X86_MAX_GPR_ARGS / X86_MAX_XMM_ARGS.
const (
	X86MaxGPRArgs = 6
	X86MaxXMMArgs = 8
)

// gpArgOrder and xmmArgOrder are the System V argument-register orders.
var gpArgOrder = [X86MaxGPRArgs]x86.PhysReg{x86.RDI, x86.RSI, x86.RDX, x86.RCX, x86.R8, x86.R9}
var xmmArgOrder = [X86MaxXMMArgs]x86.PhysReg{
	x86.XMM0, x86.XMM1, x86.XMM2, x86.XMM3, x86.XMM4, x86.XMM5, x86.XMM6, x86.XMM7,
}

// Slot is where one argument or return value lives: either a physical
// register or a stack offset relative to the callee's incoming frame.
type Slot struct {
	InReg  bool
	Reg    x86.Reg
	Offset int32 // valid when !InReg
}

func (s Slot) String() string {
	if s.InReg {
		return fmt.Sprintf("%s", s.Reg)
	}
	return fmt.Sprintf("%d(%%sp)", s.Offset)
}

// Layout is the resolved argument/return placement for one function
// signature, mirroring FunctionLayout in atm/abi_amd64.go.
type Layout struct {
	Conv       Convention
	Args       []Slot
	Ret        []Slot // 0, 1 (eax/xmm0), or 2 (eax:edx) slots
	StackBytes int32  // total incoming stack-argument footprint
}

// wordSize is the pointer width in bytes for a convention.
func wordSize(c Convention) int32 {
	if c == X86_64 {
		return 8
	}
	return 4
}

// LayoutFunc computes argument and return placement for a signature given
// as ordered hir.Type parameter and result types, per spec.md §6's two
// conventions.
func LayoutFunc(conv Convention, params []hir.Type, results []hir.Type) *Layout {
	l := &Layout{Conv: conv}
	ws := wordSize(conv)

	if conv == X86_32 {
		var off int32
		for _, t := range params {
			sz := int32(t.Width())
			if sz < ws {
				sz = ws
			}
			l.Args = append(l.Args, Slot{Offset: off})
			off += sz
		}
		l.StackBytes = alignUp(off, 16)
	} else {
		var gpUsed, xmmUsed int
		var off int32
		for _, t := range params {
			if t.IsFloat() || t.IsVector() {
				if xmmUsed < X86MaxXMMArgs {
					l.Args = append(l.Args, Slot{InReg: true, Reg: x86.XMM(xmmArgOrder[xmmUsed])})
					xmmUsed++
					continue
				}
			} else {
				if gpUsed < X86MaxGPRArgs {
					l.Args = append(l.Args, Slot{InReg: true, Reg: x86.GP(gpArgOrder[gpUsed])})
					gpUsed++
					continue
				}
			}
			l.Args = append(l.Args, Slot{Offset: off})
			off += ws
		}
		l.StackBytes = alignUp(off, 16)
	}

	for _, t := range results {
		switch {
		case t == hir.Void:
			// no slot
		case t.IsFloat() || t.IsVector():
			l.Ret = append(l.Ret, Slot{InReg: true, Reg: x86.XMM(x86.XMM0)})
		case int32(t.Width()) > ws:
			// i64 return on a 32-bit target: eax:edx pair.
			l.Ret = append(l.Ret, Slot{InReg: true, Reg: x86.GP(x86.RAX)})
			l.Ret = append(l.Ret, Slot{InReg: true, Reg: x86.GP(x86.RDX)})
		default:
			l.Ret = append(l.Ret, Slot{InReg: true, Reg: x86.GP(x86.RAX)})
		}
	}

	return l
}

func alignUp(v, align int32) int32 {
	return (v + align - 1) &^ (align - 1)
}
