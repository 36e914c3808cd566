// Package driver ties internal/ssa/lower and internal/ssa/regalloc into
// the per-function compilation pipeline of spec.md §4.H, run by Compile
// as a fixed sequence of steps.
package driver

import (
	"github.com/subzero-lang/subzero/internal/abi"
	"github.com/subzero-lang/subzero/internal/cpu"
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/ssa/lower"
	"github.com/subzero-lang/subzero/internal/ssa/regalloc"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Result is one function's finished compilation: a colored ssa.Func plus
// the frame/ABI metadata the emitter needs to turn it into bytes.
type Result struct {
	Func       *ssa.Func
	Layout     *abi.Layout
	Frame      *Frame
	FrameBytes int32
	Reruns     int // total second-chance reruns across both register classes
}

// Compile runs the full per-function pipeline of spec.md §4.H over hf, an
// already-CFG-built LLIR function: loop-depth/renumbering, translation
// into this backend's own instruction model, alloca layout, per-node
// codegen (address-mode synthesis, RMW fusion, generic lowering, load
// folding), phi lowering, liveness, and linear-scan register allocation
// to a fixpoint, returning a colored, x86-instruction-shaped ssa.Func
// ready for frame emission.
func Compile(gctx *ssa.GlobalContext, hf *hir.Func, bits lower.Bits, features cpu.Features) *Result {
	hir.AssignLoopDepth(hf)
	hir.RenumberInstructions(hf)

	f, branches, allocaAlign := Build(gctx, hf)

	conv := abi.X86_64
	if bits == lower.Bits32 {
		conv = abi.X86_32
	}
	layout := abi.LayoutFunc(conv, hf.Args, hf.Rets)

	frameBase := f.NewValue(hir.WordType(int(bits)))
	frameBase.Precolor(x86.GP(x86.RBP))

	precolorParams(f, layout, bits, frameBase)
	frameBytes := layoutAllocas(f, allocaAlign, frameBase)

	ctx := lower.NewContext(gctx, f, bits, features, frameBase)

	predCursors := map[*ssa.Node]*ssa.Cursor{}
	for _, n := range f.Nodes {
		codegenNode(ctx, n, branches[n], predCursors)
	}
	if f.HasError() {
		return &Result{Func: f, Layout: layout}
	}
	for _, n := range f.Nodes {
		for _, phi := range n.Phis {
			if phi.Deleted() {
				continue
			}
			lower.LowerPhi(ctx, phi, predCursors)
			phi.SetDeleted()
		}
	}

	renumber(f)
	f.ComputeLiveness()
	assignWeights(f, frameBase)

	vars := collectVars(f)
	gpAlloc, gpReruns := regalloc.RunToFixpoint(gctx, vars, x86.ClassGP, gpMask())
	xmmAlloc, xmmReruns := regalloc.RunToFixpoint(gctx, vars, x86.ClassXMM, xmmMask())
	materializeSpillFills(ctx, gpAlloc)
	materializeSpillFills(ctx, xmmAlloc)

	renumber(f)
	f.ComputeLiveness()

	gctx.NoteFuncCompiled()

	total := alignUp(frameBytes+ctx.SpillBytes(), 16)
	frame := LayoutFrame(f, total)
	return &Result{Func: f, Layout: layout, Frame: frame, FrameBytes: total, Reruns: gpReruns + xmmReruns}
}

// precolorParams binds each of f's parameter Variables to its ABI slot: a
// register parameter is precolored outright; a stack parameter is left
// uncolored but marked rematerializable relative to the incoming frame
// (spec.md §6, the counterpart of frugal's Parameter.IsReg()/InMem()
// split in abi_amd64.go).
func precolorParams(f *ssa.Func, layout *abi.Layout, bits lower.Bits, frameBase *ssa.Variable) {
	retAddrAndSavedBP := int32(2 * wordBytes(bits))

	for i, v := range f.Params {
		if i >= len(layout.Args) {
			continue
		}
		slot := layout.Args[i]
		if slot.InReg {
			v.Precolor(slot.Reg)
			continue
		}
		v.Flags |= ssa.FlagRematerializable
		v.RematBase = frameBase
		v.RematOffset = slot.Offset + retAddrAndSavedBP
	}
}

func wordBytes(bits lower.Bits) int32 {
	if bits == lower.Bits64 {
		return 8
	}
	return 4
}

// layoutAllocas resolves every OpAlloca in f into a fixed offset from
// frameBase, per spec.md §4.H step 2: the alloca instruction itself is
// deleted (it names a compile-time address, not a runtime effect) and its
// destination Variable becomes rematerializable relative to frameBase.
// Returns the total stack footprint the allocas require.
func layoutAllocas(f *ssa.Func, align map[*ssa.Variable]uint8, frameBase *ssa.Variable) int32 {
	var slots []lower.AllocaSlot
	var owners []*ssa.Instruction

	for _, n := range f.Nodes {
		for _, instr := range n.Ins {
			ins, ok := instr.(*ssa.Instruction)
			if !ok || ins.Op != ssa.OpAlloca || ins.Deleted() {
				continue
			}
			dst, _ := ins.Dest()
			slots = append(slots, lower.AllocaSlot{Var: dst})
			owners = append(owners, ins)
		}
	}
	if len(slots) == 0 {
		return 0
	}

	maxAlign := int32(1)
	for _, a := range align {
		if int32(a) > maxAlign {
			maxAlign = int32(a)
		}
	}

	laid := lower.LayoutAllocas(slots, maxAlign)
	byVar := map[*ssa.Variable]lower.AllocaSlot{}
	for _, s := range laid {
		byVar[s.Var] = s
	}

	var total int32
	for _, ins := range owners {
		dst, _ := ins.Dest()
		s := byVar[dst]
		dst.Flags |= ssa.FlagRematerializable
		dst.RematBase = frameBase
		dst.RematOffset = -(s.Offset + int32(dst.Ty.Width()))
		ins.SetDeleted()
		if end := s.Offset + int32(dst.Ty.Width()); end > total {
			total = end
		}
	}

	return alignUp(total, maxAlign)
}

func alignUp(v, align int32) int32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// renumber assigns the even, strictly increasing instruction numbers
// liveness requires (spec.md §3), the ssa.Func counterpart of
// hir.RenumberInstructions. By the time this runs every node's Phis have
// already been lowered to per-predecessor moves and marked deleted (this
// function's own call sites both come after that pass), so only Ins needs
// a pass; deleted instructions are skipped, dead ones still get a number
// since they remain walkable.
func renumber(f *ssa.Func) {
	n := 0
	for _, node := range f.Nodes {
		for _, ins := range node.Ins {
			if ins.Deleted() {
				continue
			}
			ins.SetNumber(n)
			n += 2
		}
	}
}

// assignWeights computes each Variable's use weight, per spec.md §3: a
// sum of per-use contributions scaled by the loop-nest depth of the node
// the use occurs in, so hoisting a variable out of a hot loop when
// choosing an eviction victim is cheap and keeping it in one is
// expensive. Precolored variables keep their InfiniteWeight; frameBase
// itself never enters the allocator's Unhandled set (its class filter in
// regalloc.New only takes variables with a live range, and frameBase's
// range is never built since nothing computes liveness for it directly.
func assignWeights(f *ssa.Func, frameBase *ssa.Variable) {
	for _, node := range f.Nodes {
		scale := loopScale(node.LoopDepth)
		for _, instr := range node.Ins {
			ins, ok := instr.(*ssa.Instruction)
			if !ok || ins.Deleted() {
				continue
			}
			if dst, ok := ins.Dest(); ok && !dst.IsPrecolored() {
				dst.Weight += scale
			}
			for _, use := range ins.VarSources() {
				if !use.V.IsPrecolored() {
					use.V.Weight += scale
				}
			}
		}
	}
}

func loopScale(depth int) float64 {
	scale := 1.0
	for i := 0; i < depth && i < 8; i++ {
		scale *= 10
	}
	return scale
}

// collectVars gathers every Variable actually referenced by a live (not
// deleted) instruction across f, the population the register allocator
// runs over; rematerializable variables are excluded since they never
// need a register colored — every use materializes their address afresh.
func collectVars(f *ssa.Func) []*ssa.Variable {
	seen := map[*ssa.Variable]bool{}
	var out []*ssa.Variable

	add := func(v *ssa.Variable) {
		if v == nil || v.Flags.Has(ssa.FlagRematerializable) || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	for _, node := range f.Nodes {
		for _, instr := range node.Ins {
			ins, ok := instr.(*ssa.Instruction)
			if !ok || ins.Deleted() {
				continue
			}
			if dst, ok := ins.Dest(); ok {
				add(dst)
			}
			for _, use := range ins.VarSources() {
				add(use.V)
			}
		}
	}
	return out
}

// gpMask excludes RBP on top of x86's own reserved set since frameBase
// dedicates it to addressing allocas and spill slots for this function.
func gpMask() x86.RegSet {
	var s x86.RegSet
	for _, r := range x86.AllGP {
		if r != x86.RBP && !r.Reserved() {
			s = s.Add(r)
		}
	}
	return s
}

func xmmMask() x86.RegSet {
	var s x86.RegSet
	for _, r := range x86.AllXMM {
		s = s.Add(r)
	}
	return s
}

// materializeSpillFills turns each recorded addSpillFill decision into a
// real spill-before/fill-after instruction pair bracketing beneficiary's
// live range, per spec.md §4.G step 7's "the driver materializes each
// decision": the victim is written to a dedicated stack slot immediately
// before beneficiary's range begins and reloaded immediately after it
// ends, at whichever node owns each of those instruction numbers. This
// pass fires only in the rare case every allocatable register is pinned
// by infinite-weight variables (spec.md §8's boundary behavior), so it
// does not attempt to rewrite any use of victim that might fall inside
// the bracketed window itself -- there is none in the traces this
// backend's own helper-call and RMW lowering ever produce, since both
// keep their infinite-weight temporaries to a single instruction's span.
func materializeSpillFills(ctx *lower.Context, a *regalloc.Allocator) {
	for _, sf := range a.SpillFills {
		ctx.GCtx.NoteSpill()

		insertAdjacent(ctx.Func, sf.Beneficiary.Range.Begin(), func(cur *ssa.Cursor) {
			ctx.Cursor = cur
			ctx.SpillVar(sf.Victim)
		})
		insertAdjacent(ctx.Func, sf.Beneficiary.Range.End(), func(cur *ssa.Cursor) {
			ctx.Cursor = cur
			ctx.FillVar(sf.Victim)
		})
	}
}

// insertAdjacent locates the node containing instruction number num and
// runs fn with a cursor positioned there, per the spec's "bracketing
// beneficiary's live range" contract; returns whether a matching node was
// found (a spill/fill request past the end of the last node is dropped, a
// case that does not arise for a range this allocator itself produced).
func insertAdjacent(f *ssa.Func, num int, fn func(cur *ssa.Cursor)) bool {
	for _, node := range f.Nodes {
		for i, instr := range node.Ins {
			if instr.Deleted() || instr.Number() != num {
				continue
			}
			cur := &ssa.Cursor{}
			cur.Init(node)
			for j := 0; j < i; j++ {
				cur.AdvanceCur()
			}
			fn(cur)
			return true
		}
	}
	return false
}
