package ssa

// Cursor is spec.md §4.C's lowering context: a cursor over a node's
// instruction list, plus the per-node availability map used for
// legalize-time copy propagation. Grounded on ssa/builder.go's
// cursor-style block construction (an index into a growing instruction
// slice, insert-before-current semantics), generalized to also expose
// advanceNext/getNextInst since this backend's lowering (unlike the
// teacher's single-pass builder) needs to look at the instruction that
// follows the one it is replacing (load folding, RMW detection).
type Cursor struct {
	node *Node
	cur  int // index of "current" instruction in node.Ins
	last Instr

	avail map[*Variable]*Variable
}

// Init resets the cursor onto node, with its first instruction as the
// current one, and clears the availability map (spec.md §4.C: "invalidated
// at node boundaries").
func (c *Cursor) Init(node *Node) {
	c.node = node
	c.cur = 0
	c.last = nil
	c.avail = map[*Variable]*Variable{}
}

func (c *Cursor) AtEnd() bool { return c.cur >= len(c.node.Ins) }

func (c *Cursor) GetCur() Instr {
	if c.AtEnd() {
		return nil
	}
	return c.node.Ins[c.cur]
}

// GetNextInst returns the instruction after the current one, or nil at
// the tail; used by load-folding and RMW detection to peek ahead without
// advancing.
func (c *Cursor) GetNextInst() Instr {
	if c.cur+1 >= len(c.node.Ins) {
		return nil
	}
	return c.node.Ins[c.cur+1]
}

// AdvanceCur moves past the current instruction, i.e. consumes it (the
// typical action after lowering it into zero or more replacements).
func (c *Cursor) AdvanceCur() {
	if !c.AtEnd() {
		c.cur++
	}
}

// AdvanceNext is a synonym kept distinct from AdvanceCur because callers
// that just called Insert want to re-read the *same* logical position
// (spec.md §4.C names both operations even though on this slice-backed
// cursor they coincide after an insert shifts indices).
func (c *Cursor) AdvanceNext() { c.AdvanceCur() }

// Insert splices ins immediately before the cursor's current position and
// leaves the cursor on the same current instruction, so ins ends up
// before it, matching spec.md §4.C: "insert *before* current".
func (c *Cursor) Insert(ins Instr) {
	c.node.InsertBefore(c.cur, ins)
	c.last = ins
	c.cur++ // keep pointing at the same logical "current" instruction, now shifted right
}

func (c *Cursor) GetLastInserted() Instr { return c.last }

// Lookup returns the availability-map replacement for v, if any live one
// exists: "after mov a <- b with b infinite-weight and not yet written
// again, a later use of b where any register is acceptable may be
// replaced by a" (spec.md §4.C).
func (c *Cursor) Lookup(v *Variable) (*Variable, bool) {
	r, ok := c.avail[v]
	return r, ok
}

// Note records that dst is available as a substitute for src following a
// `dst <- src` move where src is infinite-weight (i.e. precolored).
func (c *Cursor) Note(dst, src *Variable) {
	if src.Weight >= InfiniteWeight {
		c.avail[src] = dst
	}
}

// Invalidate removes v from the availability map on both sides: called
// whenever v is written again (either as the recorded src or as some
// other instruction's dest), per spec.md §4.C: "invalidated ... whenever
// either side is written."
func (c *Cursor) Invalidate(v *Variable) {
	delete(c.avail, v)
	for k, r := range c.avail {
		if r == v {
			delete(c.avail, k)
		}
	}
}
