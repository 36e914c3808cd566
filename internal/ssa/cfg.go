package ssa

import "github.com/subzero-lang/subzero/internal/hir"

// PhiEntry is one incoming edge of a not-yet-lowered phi, keyed by
// predecessor node.
type PhiEntry struct {
	Pred *Node
	Val  Operand
}

// Phi is an SSA phi node, present only until phi lowering runs (spec.md
// §4.H step 3), after which CfgNode.Phis is empty and equivalent
// assignments have been placed on predecessors.
type Phi struct {
	Dst *Variable
	In  []PhiEntry

	num     int
	deleted bool
}

func (p *Phi) SetDeleted() { p.deleted = true }
func (p *Phi) Deleted() bool { return p.deleted }

// AddIncoming records one incoming edge, noting a use of val against the
// variable metadata oracle so a value read only through a phi still counts
// as used when address/RMW folding considers deleting its definition.
func (p *Phi) AddIncoming(pred *Node, val Operand) {
	p.In = append(p.In, PhiEntry{Pred: pred, Val: val})
	if v, ok := AsVariable(val); ok {
		v.noteUse()
	}
}

// Node is spec.md §3's CfgNode: an ordered list of phis then
// instructions, edges to successors, and loop-nest depth.
type Node struct {
	Id        int
	Phis      []*Phi
	Ins       []Instr
	Succs     []*Node
	Preds     []*Node
	LoopDepth int

	// Alive-out/Alive-in are populated by Func.ComputeLiveness for the
	// allocator's per-node interval construction.
	LiveIn  map[*Variable]bool
	LiveOut map[*Variable]bool

	err error
}

func NewNode(id int) *Node {
	return &Node{Id: id, LiveIn: map[*Variable]bool{}, LiveOut: map[*Variable]bool{}}
}

func (n *Node) AddSucc(succ *Node) {
	n.Succs = append(n.Succs, succ)
	succ.Preds = append(succ.Preds, n)
}

// Append adds ins as the new last instruction of the node.
func (n *Node) Append(ins Instr) { n.Ins = append(n.Ins, ins) }

// InsertBefore inserts ins immediately before the instruction at index i.
func (n *Node) InsertBefore(i int, ins Instr) {
	n.Ins = append(n.Ins, nil)
	copy(n.Ins[i+1:], n.Ins[i:])
	n.Ins[i] = ins
}

// SetError attaches a sticky error to the node's owning function via the
// CFG-wide error slot (spec.md §7); this method exists on Node because
// individual passes hold a *Node while walking, not the *Func.
func (n *Node) SetError(err error) {
	if n.err == nil {
		n.err = err
	}
}

func (n *Node) HasError() bool { return n.err != nil }
func (n *Node) Error() error   { return n.err }

// Func is a function body: an ordered node list plus its entry.
type Func struct {
	Name    string
	Entry   *Node
	Nodes   []*Node
	Params  []*Variable
	nextVar int

	err error
}

func NewFunc(name string) *Func {
	return &Func{Name: name}
}

func (f *Func) AddNode(n *Node) {
	f.Nodes = append(f.Nodes, n)
	if f.Entry == nil {
		f.Entry = n
	}
}

// NewValue allocates a fresh Variable with the next unique index in this
// function, per spec.md §3's "Variables are created by the frontend, by
// the lowering (as temporaries), or by spill-pair construction."
func (f *Func) NewValue(ty hir.Type) *Variable {
	v := NewVariable(f.nextVar, ty)
	f.nextVar++
	return v
}

func (f *Func) SetError(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *Func) HasError() bool { return f.err != nil }
func (f *Func) Error() error   { return f.err }

// ComputeLiveness runs a standard backward dataflow fixpoint over the
// function's nodes to populate LiveIn/LiveOut and, from there, each
// Variable's Range (union of [def, lastUse+1) intervals, spec.md §3) and
// IsMultiBlock bit. Instruction numbers must already be assigned
// (RenumberInstructions-equivalent walk over ssa.Instr; the driver calls
// this after codegen per spec.md §4.H step 10).
func (f *Func) ComputeLiveness() {
	changed := true
	for changed {
		changed = false
		for i := len(f.Nodes) - 1; i >= 0; i-- {
			n := f.Nodes[i]
			out := map[*Variable]bool{}
			for _, s := range n.Succs {
				for v := range s.LiveIn {
					out[v] = true
				}
			}
			in := map[*Variable]bool{}
			for v := range out {
				in[v] = true
			}
			for j := len(n.Ins) - 1; j >= 0; j-- {
				ins := n.Ins[j]
				if ins.Deleted() {
					continue
				}
				if d, ok := ins.Dest(); ok {
					delete(in, d)
				}
				for _, use := range ins.VarSources() {
					in[use.V] = true
				}
			}
			if !mapEq(in, n.LiveIn) || !mapEq(out, n.LiveOut) {
				n.LiveIn, n.LiveOut = in, out
				changed = true
			}
		}
	}

	for _, n := range f.Nodes {
		f.buildRangesForNode(n)
	}
}

func mapEq(a, b map[*Variable]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// buildRangesForNode extends every live variable's Range across n and
// marks cross-block variables, walking instructions forward to find def
// points and backward-derived last-use points.
func (f *Func) buildRangesForNode(n *Node) {
	begin := 0
	if len(n.Ins) > 0 {
		begin = n.Ins[0].Number()
	}
	end := begin
	if len(n.Ins) > 0 {
		end = n.Ins[len(n.Ins)-1].Number() + 2
	}

	for v := range n.LiveIn {
		v.Range.Add(begin, end)
		if len(n.Preds) > 0 || len(n.Succs) > 0 {
			v.MarkMultiBlock()
		}
	}

	lastUse := map[*Variable]int{}
	// a variable live out of n stays live to n's end, so none of its reads
	// in n is a last use.
	for v := range n.LiveOut {
		lastUse[v] = end
	}
	for j := len(n.Ins) - 1; j >= 0; j-- {
		ins := n.Ins[j]
		if ins.Deleted() {
			continue
		}
		num := ins.Number()
		if d, ok := ins.Dest(); ok {
			endPt, seen := lastUse[d]
			if !seen {
				endPt = num + 2
			}
			d.Range.Add(num, endPt)
		}
		for _, use := range ins.VarSources() {
			if _, seen := lastUse[use.V]; !seen {
				lastUse[use.V] = num + 2
				ins.SetLastUse(use.Index, true)
			}
		}
	}
}

// Program is the top-level container the driver compiles (spec.md §2).
type Program struct {
	Funcs []*Func
}
