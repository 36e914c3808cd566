package driver

import (
	"github.com/oleiade/lane"

	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Frame is the layout an emitter needs to turn a colored ssa.Func into
// bytes: block order, prologue/epilogue shape and the callee-saved set
// the register allocator actually touched (spec.md §4.H step 11).
type Frame struct {
	Order        []*ssa.Node
	FrameBytes   int32
	CalleeSaved  []x86.Reg
	UsesFrameBase bool
}

// LayoutFrame reorders f's nodes into reverse postorder, the block order
// frugal's own BasicBlockIter walk produces (internal/atm/ssa/blockiter.go),
// so straight-line fallthrough is preferred over an explicit jump wherever
// the CFG allows it, and computes the prologue's callee-saved set from
// which of those registers the allocation actually colored into.
func LayoutFrame(f *ssa.Func, frameBytes int32) *Frame {
	order := reversePostorder(f)
	saved := calleeSavedUsed(f)

	return &Frame{
		Order:         order,
		FrameBytes:    frameBytes,
		CalleeSaved:   saved,
		UsesFrameBase: frameBytes > 0,
	}
}

// reversePostorder walks f's CFG depth-first from the entry node using an
// explicit stack, mirroring frugal's BasicBlockIter.Next (blockiter.go):
// push the current node's not-yet-visited successors one at a time, and
// only pop a node onto the order once every successor beneath it has been
// visited. That produces a postorder pop sequence, so Order is built by
// prepending each pop -- the reverse of postorder.
func reversePostorder(f *ssa.Func) []*ssa.Node {
	if f.Entry == nil {
		return nil
	}

	s := lane.NewStack()
	s.Push(f.Entry)
	visited := map[int]bool{f.Entry.Id: true}

	var post []*ssa.Node
	for !s.Empty() {
		tail := true
		this := s.Head().(*ssa.Node)

		for _, succ := range this.Succs {
			if !visited[succ.Id] {
				visited[succ.Id] = true
				tail = false
				s.Push(succ)
				break
			}
		}

		if tail {
			post = append(post, s.Pop().(*ssa.Node))
		}
	}

	order := make([]*ssa.Node, len(post))
	for i, n := range post {
		order[len(post)-1-i] = n
	}

	// Any node unreachable from Entry (should not occur post-CFG-build, but
	// codegen's own address-synthesis/RMW passes never add nodes the walk
	// above wouldn't already see) is appended in original order rather
	// than silently dropped.
	seen := map[int]bool{}
	for _, n := range order {
		seen[n.Id] = true
	}
	for _, n := range f.Nodes {
		if !seen[n.Id] {
			order = append(order, n)
		}
	}
	return order
}

// calleeSavedInts is the System V callee-saved GP set in prologue push
// order, the same set frugal's abi_amd64.go reserves across a call.
var calleeSavedInts = []x86.PhysReg{x86.RBX, x86.R12, x86.R13, x86.R14, x86.R15}

// calleeSavedUsed reports which of calleeSavedInts the allocator actually
// colored a Variable into, so the prologue only pushes what the epilogue
// will need to pop -- frugal's pgen_amd64.go makes the same trade rather
// than always saving the maximal set.
func calleeSavedUsed(f *ssa.Func) []x86.Reg {
	used := map[x86.PhysReg]bool{}
	for _, node := range f.Nodes {
		for _, instr := range node.Ins {
			ins, ok := instr.(*ssa.Instruction)
			if !ok || ins.Deleted() {
				continue
			}
			if dst, ok := ins.Dest(); ok && dst.HasReg && dst.Reg.Class == x86.ClassGP {
				used[dst.Reg.Num] = true
			}
		}
	}

	var saved []x86.Reg
	for _, r := range calleeSavedInts {
		if used[r] {
			saved = append(saved, x86.GP(r))
		}
	}
	return saved
}
