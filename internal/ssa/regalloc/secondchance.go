package regalloc

import (
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// MaxSecondChanceIterations bounds the bin-packing retry loop of spec.md
// §4.G ("Repeat until fixpoint or an iteration cap"), guarding against a
// pathological function that never converges.
const MaxSecondChanceIterations = 16

// RunToFixpoint drives the second-chance bin-packing loop: run once as
// Global, then rerun as SecondChance while HasEvictions() holds, seeding
// each rerun from the prior run's survivor assignments (spec.md §4.G).
// Returns the final allocator and the number of SecondChance reruns
// performed (RA-3's fixpoint-or-cap contract).
func RunToFixpoint(gctx *ssa.GlobalContext, vars []*ssa.Variable, class x86.RegClass, mask x86.RegSet) (*Allocator, int) {
	cur := New(Global, vars, class, mask)
	cur.Run()
	cur.AssignFinalRegisters()

	reruns := 0
	for cur.HasEvictions() && reruns < MaxSecondChanceIterations {
		gctx.NoteSecondChanceRun()
		for i := 0; i < cur.NumEvictions(); i++ {
			gctx.NoteEviction()
		}

		next := New(SecondChance, vars, class, mask)
		next.Seed(cur)
		next.Run()
		next.AssignFinalRegisters()

		cur = next
		reruns++
	}

	return cur, reruns
}

// RunInfOnly drives the -Om1 variant: regalloc runs only over
// infinite-weight variables (spec.md §4.H "At -Om1: ... regalloc runs
// only over infinite-weight variables").
func RunInfOnly(vars []*ssa.Variable, class x86.RegClass, mask x86.RegSet) *Allocator {
	a := New(InfOnly, vars, class, mask)
	a.Run()
	a.AssignFinalRegisters()
	return a
}
