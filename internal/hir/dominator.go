package hir

// Lengauer-Tarjan dominator tree construction, adapted from the algorithm
// in Lengauer & Tarjan 1979 (doi:10.1145/357062.357071). The out-of-scope
// frontend CFG builder is assumed to hand the backend node lists with
// Preds/Succs already wired (spec.md §1); this file exists only so the
// target driver can compute loop-nest depth for use-weight scaling
// (spec.md §4.H step 4), which needs a dominator tree to find back edges.

type ltNode struct {
	semi     int
	node     *Node
	dom      *ltNode
	label    *ltNode
	parent   *ltNode
	ancestor *ltNode
	pred     []*ltNode
	bucket   map[*ltNode]struct{}
}

type lengauerTarjan struct {
	nodes  []*ltNode
	vertex map[int]int
}

func (lt *lengauerTarjan) dfs(n *Node) {
	i := len(lt.nodes)
	lt.vertex[n.Id] = i

	p := &ltNode{
		semi:   i,
		node:   n,
		bucket: make(map[*ltNode]struct{}),
	}
	p.label = p
	lt.nodes = append(lt.nodes, p)

	for _, w := range n.Succs {
		idx, ok := lt.vertex[w.Id]
		if !ok {
			lt.dfs(w)
			idx = lt.vertex[w.Id]
			lt.nodes[idx].parent = p
		}
		q := lt.nodes[idx]
		q.pred = append(q.pred, p)
	}
}

func (lt *lengauerTarjan) compress(p *ltNode) {
	if p.ancestor.ancestor != nil {
		lt.compress(p.ancestor)
		if p.label.semi > p.ancestor.label.semi {
			p.label = p.ancestor.label
		}
		p.ancestor = p.ancestor.ancestor
	}
}

func (lt *lengauerTarjan) eval(p *ltNode) *ltNode {
	if p.ancestor == nil {
		return p
	}
	lt.compress(p)
	return p.label
}

// DominatorTree maps each non-root node to its immediate dominator.
type DominatorTree struct {
	Root        *Node
	DominatedBy map[int]*Node
}

func (t DominatorTree) Dominates(a, b *Node) bool {
	for c := b; c != nil; c = t.DominatedBy[c.Id] {
		if c.Id == a.Id {
			return true
		}
		if c.Id == t.Root.Id {
			break
		}
	}
	return a.Id == t.Root.Id
}

func BuildDominatorTree(root *Node) DominatorTree {
	domby := make(map[int]*Node)
	lt := &lengauerTarjan{vertex: make(map[int]int)}
	lt.dfs(root)

	for i := len(lt.nodes) - 1; i > 0; i-- {
		p := lt.nodes[i]

		for _, v := range p.pred {
			q := lt.eval(v)
			if q.semi < p.semi {
				p.semi = q.semi
			}
		}

		p.ancestor = p.parent
		lt.nodes[p.semi].bucket[p] = struct{}{}

		for v := range p.parent.bucket {
			q := lt.eval(v)
			if q.semi < v.semi {
				v.dom = q
			} else {
				v.dom = p.parent
			}
		}
		for v := range p.parent.bucket {
			delete(p.parent.bucket, v)
		}
	}

	for _, p := range lt.nodes[1:] {
		if p.dom.node.Id != lt.nodes[p.semi].node.Id {
			p.dom = p.dom.dom
		}
	}

	for _, p := range lt.nodes[1:] {
		domby[p.node.Id] = p.dom.node
	}

	return DominatorTree{Root: root, DominatedBy: domby}
}
