package hir

// AssignLoopDepth computes each node's loop-nest depth by finding natural
// loops via back edges (an edge n -> h where h dominates n) and counting,
// for each node, how many loop headers' bodies it is nested inside. This
// feeds the use-weight computation in the backend's Variable model
// (spec.md §3: "use weight ... scaled by loop nest depth").
func AssignLoopDepth(f *Func) {
	if f.Entry == nil {
		return
	}

	dom := BuildDominatorTree(f.Entry)
	depth := make(map[int]int, len(f.Nodes))

	for _, n := range f.Nodes {
		for _, succ := range n.Succs {
			if dom.Dominates(succ, n) {
				body := naturalLoopBody(n, succ)
				for id := range body {
					depth[id]++
				}
			}
		}
	}

	for _, n := range f.Nodes {
		n.LoopDepth = depth[n.Id]
	}
}

// naturalLoopBody returns the set of node ids in the natural loop of the
// back edge tail->head, via the standard reverse-CFG worklist algorithm.
func naturalLoopBody(tail, head *Node) map[int]struct{} {
	body := map[int]struct{}{head.Id: {}, tail.Id: {}}
	stack := []*Node{tail}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, p := range n.Preds {
			if _, ok := body[p.Id]; !ok {
				body[p.Id] = struct{}{}
				stack = append(stack, p)
			}
		}
	}

	return body
}

// RenumberInstructions assigns the even, strictly increasing instruction
// numbers required before liveness (spec.md §3). Deleted instructions are
// skipped; dead ones still get a number since they remain walkable.
func RenumberInstructions(f *Func) {
	n := 0

	for _, bb := range f.Nodes {
		for _, phi := range bb.Phis {
			if phi.deleted {
				continue
			}
			phi.num = n
			n += 2
		}
		for _, ins := range bb.Ins {
			if ins.deleted {
				continue
			}
			ins.num = n
			n += 2
		}
	}
}
