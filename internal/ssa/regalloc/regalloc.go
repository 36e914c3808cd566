// Package regalloc implements the linear-scan register allocator of
// spec.md §4.G: Unhandled/Active/Inactive/Handled/Evicted set management,
// precoloring pass-through, preference/AllowOverlap inference, free-mask
// computation and eviction by minimum aliased weight, addSpillFill, and
// the second-chance bin-packing driver.
//
// Grounded on frugal's internal/atm/ssa/pass_regalloc_linearscan.go — a
// real, if intentionally unfinished (`+build ignore`), linear-scan
// prototype in the same style this backend needs. That prototype only
// ever spills (never evicts, has no Inactive set, no second-chance
// rerun); this package keeps its vocabulary (active set kept sorted by
// interval end, expire-then-allocate-then-spill main loop shape) and
// extends it with the eviction/inactive/second-chance machinery spec.md
// §4.G requires, since frugal's own version never grew that far.
package regalloc

import (
	"fmt"
	"sort"

	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/x86"
)

// Kind selects the allocator variant, per spec.md §4.G "Initialization by
// kind".
type Kind uint8

const (
	Global Kind = iota
	InfOnly
	SecondChance
)

// Allocator holds the full mutable state of one linear-scan run.
type Allocator struct {
	Kind    Kind
	RegMask x86.RegSet
	Class   x86.RegClass

	Unhandled           []*ssa.Variable
	UnhandledPrecolored []*ssa.Variable
	Active              []*ssa.Variable
	Inactive            []*ssa.Variable
	Handled             []*ssa.Variable
	Evicted             []*ssa.Variable

	// Committed holds the prior run's survivors on a SecondChance rerun:
	// fixed (register, range) commitments that freeMask/evictOrSpill must
	// treat as occupied without themselves being reprocessed or evicted.
	Committed []*ssa.Variable

	RegUses map[x86.PhysReg]int
	Kills   []int // instruction numbers where the scratch set is clobbered by calls

	// SpillFills records the (victim, beneficiary) pairs addSpillFill
	// decided on; the driver materializes each as a spill-before/fill-after
	// instruction pair bracketing beneficiary's live range.
	SpillFills []SpillFill

	evictionCount int
}

// SpillFill is one addSpillFill decision: victim is temporarily displaced
// to the stack so beneficiary can borrow its register for its own range.
type SpillFill struct {
	Victim      *ssa.Variable
	Beneficiary *ssa.Variable
	Reg         x86.PhysReg
}

// New builds an allocator over vars for one function, seeding Unhandled
// per Kind's rule (spec.md §4.G "Initialization by kind").
func New(kind Kind, vars []*ssa.Variable, class x86.RegClass, mask x86.RegSet) *Allocator {
	a := &Allocator{Kind: kind, RegMask: mask, Class: class, RegUses: map[x86.PhysReg]int{}}

	for _, v := range vars {
		if v.Ty.IsVector() || v.Ty.IsFloat() {
			if class != x86.ClassXMM {
				continue
			}
		} else if class != x86.ClassGP {
			continue
		}

		if len(v.Range.Intervals) == 0 {
			continue
		}

		switch kind {
		case InfOnly:
			if v.Weight >= ssa.InfiniteWeight {
				a.Unhandled = append(a.Unhandled, v)
			}
		case SecondChance:
			// Seed populates Unhandled with the prior run's evictees and
			// Committed with its survivors; New contributes nothing here.
		default:
			if v.IsPrecolored() {
				a.UnhandledPrecolored = append(a.UnhandledPrecolored, v)
			} else {
				a.Unhandled = append(a.Unhandled, v)
			}
		}
	}

	sort.SliceStable(a.Unhandled, func(i, j int) bool {
		bi, bj := a.Unhandled[i].Range.Begin(), a.Unhandled[j].Range.Begin()
		if bi != bj {
			return bi < bj
		}
		if a.Unhandled[i].Weight != a.Unhandled[j].Weight {
			return a.Unhandled[i].Weight > a.Unhandled[j].Weight
		}
		return a.Unhandled[i].Index < a.Unhandled[j].Index
	})

	return a
}

// Seed re-uses a prior run's Handled result as SecondChance's starting
// commitment set, retrying only the Evicted variables (spec.md §4.G
// "SecondChance: re-use the existing Handled result as a seed... variables
// previously evicted become Unhandled with elevated priority"). Survivors
// go to Committed, not Unhandled: they keep the register the prior run
// gave them and are never reprocessed, only consulted as an obstacle by
// freeMask/evictOrSpill. Only the evictees are handed back to Unhandled,
// so Run's ascending-begin precondition holds on a rerun the same way it
// does on the initial Global pass.
func (a *Allocator) Seed(prev *Allocator) {
	a.Committed = append(a.Committed, prev.Handled...)
	a.Committed = append(a.Committed, prev.Active...)
	a.Committed = append(a.Committed, prev.Inactive...)

	elevated := append([]*ssa.Variable{}, prev.Evicted...)
	sort.SliceStable(elevated, func(i, j int) bool {
		return elevated[i].Range.Begin() < elevated[j].Range.Begin()
	})
	a.Unhandled = elevated

	for r, n := range prev.RegUses {
		a.RegUses[r] = n
	}
}

// Run executes the main loop of spec.md §4.G until Unhandled is empty.
func (a *Allocator) Run() {
	for len(a.Unhandled) > 0 {
		cur := a.Unhandled[0]
		a.Unhandled = a.Unhandled[1:]

		a.expireAndReactivate(cur)

		if cur.IsPrecolored() {
			a.markUsed(cur.Reg.Num)
			a.Active = append(a.Active, cur)
			continue
		}

		preferReg, allowOverlap := a.preference(cur)
		free := a.freeMask(cur)

		if preferReg != nil {
			r := *preferReg
			if free.Has(r) || (allowOverlap && !a.strictlyForbidden(r, cur)) {
				a.assign(cur, r)
				continue
			}
		}

		if !free.Empty() {
			r := a.pickLowestWeight(free)
			a.assign(cur, r)
			continue
		}

		a.evictOrSpill(cur)
	}
}

// expireAndReactivate implements step 1: Active variables whose range has
// ended move to Handled; those with a hole at cur.begin move to Inactive.
// Inactive variables that resume overlap reactivate to Active; those that
// have fully ended move to Handled.
func (a *Allocator) expireAndReactivate(cur *ssa.Variable) {
	begin := cur.Range.Begin()

	var stillActive []*ssa.Variable
	for _, v := range a.Active {
		switch {
		case v.Range.EndsBefore(begin):
			a.Handled = append(a.Handled, v)
			a.freeReg(v)
		case v.Range.HasHoleAt(begin):
			a.Inactive = append(a.Inactive, v)
			a.freeReg(v)
		default:
			stillActive = append(stillActive, v)
		}
	}
	a.Active = stillActive

	var stillInactive []*ssa.Variable
	for _, v := range a.Inactive {
		switch {
		case v.Range.EndsBefore(begin):
			a.Handled = append(a.Handled, v)
		case !v.Range.HasHoleAt(begin):
			a.Active = append(a.Active, v)
			a.markUsed(v.Reg.Num)
		default:
			stillInactive = append(stillInactive, v)
		}
	}
	a.Inactive = stillInactive
}

// preference implements step 3: from cur's single-def source, when it is
// exactly one copy-source with a register, prefer that register and infer
// AllowOverlap when the source's range does not overlap cur's and no
// aliasing precolored range is live.
func (a *Allocator) preference(cur *ssa.Variable) (*x86.PhysReg, bool) {
	def := cur.SingleDefinition()
	if def == nil {
		return nil, false
	}
	uses := def.VarSources()
	if len(uses) != 1 {
		return nil, false
	}
	src := uses[0].V
	if !src.HasReg {
		return nil, false
	}

	allowOverlap := !src.Range.Overlaps(&cur.Range) && !a.hasOverlappingPrecolored(src.Reg.Num, cur)
	r := src.Reg.Num
	return &r, allowOverlap
}

func (a *Allocator) hasOverlappingPrecolored(r x86.PhysReg, cur *ssa.Variable) bool {
	for _, v := range a.UnhandledPrecolored {
		if v.Reg.Num == r && v.Range.Overlaps(&cur.Range) {
			return true
		}
	}
	for _, v := range a.Active {
		if v.IsPrecolored() && v.Reg.Num == r && v.Range.Overlaps(&cur.Range) {
			return true
		}
	}
	return false
}

// freeMask implements step 4: every register held by a still-Active
// variable is unavailable outright (Active means live and overlapping cur
// by construction, once expireAndReactivate has run), on top of the
// Inactive/UnhandledPrecolored ranges that merely overlap cur's interval.
func (a *Allocator) freeMask(cur *ssa.Variable) x86.RegSet {
	free := a.RegMask
	for _, v := range a.Active {
		free = free.Del(v.Reg.Num)
	}
	for _, v := range a.Inactive {
		if v.Range.Overlaps(&cur.Range) {
			free = free.Del(v.Reg.Num)
		}
	}
	for _, v := range a.UnhandledPrecolored {
		if v.Range.Overlaps(&cur.Range) {
			free = free.Del(v.Reg.Num)
		}
	}
	for _, v := range a.Committed {
		if v.Range.Overlaps(&cur.Range) {
			free = free.Del(v.Reg.Num)
		}
	}
	return free
}

func (a *Allocator) strictlyForbidden(r x86.PhysReg, cur *ssa.Variable) bool {
	for _, v := range a.UnhandledPrecolored {
		if v.Reg.Num == r && v.Range.Overlaps(&cur.Range) {
			return true
		}
	}
	for _, v := range a.Committed {
		if v.Reg.Num == r && v.Range.Overlaps(&cur.Range) {
			return true
		}
	}
	return false
}

// pickLowestWeight implements step 6: choose the free register with the
// lowest alias-weight sum across Active, ties broken by index.
func (a *Allocator) pickLowestWeight(free x86.RegSet) x86.PhysReg {
	var best x86.PhysReg
	bestWeight := -1.0
	found := false

	free.Each(func(r x86.PhysReg) {
		w := 0.0
		for _, v := range a.Active {
			if v.Reg.Num == r {
				w += v.Weight
			}
		}
		if !found || w < bestWeight {
			best, bestWeight, found = r, w, true
		}
	})

	return best
}

// evictOrSpill implements step 7.
func (a *Allocator) evictOrSpill(cur *ssa.Variable) {
	weights := map[x86.PhysReg]float64{}
	a.RegMask.Each(func(r x86.PhysReg) { weights[r] = 0 })

	for _, v := range a.Active {
		weights[v.Reg.Num] += v.Weight
	}
	for _, v := range a.Inactive {
		if v.Range.Overlaps(&cur.Range) {
			weights[v.Reg.Num] += v.Weight
		}
	}

	var rStar x86.PhysReg
	minW := -1.0
	found := false
	a.RegMask.Each(func(r x86.PhysReg) {
		if a.strictlyForbidden(r, cur) {
			return
		}
		w := weights[r]
		if !found || w < minW {
			rStar, minW, found = r, w, true
		}
	})

	if !found || cur.Weight <= minW {
		if cur.Weight >= ssa.InfiniteWeight {
			a.addSpillFill(cur)
			return
		}
		// finite-weight Cur that cannot improve on the current pinning
		// spills to the stack instead of forcing an eviction.
		a.spillToStack(cur)
		return
	}

	var kept []*ssa.Variable
	for _, v := range a.Active {
		if v.Reg.Num == rStar {
			a.Evicted = append(a.Evicted, v)
			a.Unhandled = append([]*ssa.Variable{v}, a.Unhandled...)
			a.evictionCount++
		} else {
			kept = append(kept, v)
		}
	}
	a.Active = kept

	var keptInactive []*ssa.Variable
	for _, v := range a.Inactive {
		if v.Reg.Num == rStar && v.Range.Overlaps(&cur.Range) {
			a.Evicted = append(a.Evicted, v)
			a.Unhandled = append([]*ssa.Variable{v}, a.Unhandled...)
			a.evictionCount++
		} else {
			keptInactive = append(keptInactive, v)
		}
	}
	a.Inactive = keptInactive

	a.assign(cur, rStar)
}

func (a *Allocator) spillToStack(v *ssa.Variable) {
	v.HasReg = false
	v.HasStackOffset = true
	a.Handled = append(a.Handled, v)
}

// addSpillFill inserts a spill/fill around cur.begin..end that temporarily
// frees an unrelated register, firing only when every allocatable register
// is pinned by infinite-weight variables and cur is itself infinite-weight
// (spec.md §8 boundary behavior). The actual spill/fill instruction pair
// is materialized by the driver at cur's live-range boundary; this method
// records the decision the driver acts on.
func (a *Allocator) addSpillFill(cur *ssa.Variable) {
	var victim *ssa.Variable
	for _, v := range a.Active {
		if !v.IsPrecolored() {
			victim = v
			break
		}
	}
	if victim == nil {
		panic(fmt.Sprintf("regalloc: no register obtainable for infinite-weight variable %s", cur))
	}

	victim.LinkedTo = cur
	r := victim.Reg.Num
	a.SpillFills = append(a.SpillFills, SpillFill{Victim: victim, Beneficiary: cur, Reg: r})
	a.assign(cur, r)
}

func (a *Allocator) assign(v *ssa.Variable, r x86.PhysReg) {
	v.HasReg = true
	v.Reg = x86.Reg{Class: a.Class, Num: r}
	a.markUsed(r)
	a.Active = append(a.Active, v)
}

func (a *Allocator) markUsed(r x86.PhysReg) { a.RegUses[r]++ }
func (a *Allocator) freeReg(v *ssa.Variable) {
	if a.RegUses[v.Reg.Num] > 0 {
		a.RegUses[v.Reg.Num]--
	}
}

// HasEvictions reports whether this run evicted any variable, per spec.md
// §4.G "Second-chance bin-packing".
func (a *Allocator) HasEvictions() bool { return a.evictionCount > 0 }

// NumEvictions is RA-3's getNumEvictions().
func (a *Allocator) NumEvictions() int { return a.evictionCount }

// AssignFinalRegisters closes a run (spec.md §4.G "Finalization") by
// moving every variable still in Active or Inactive into Handled. It does
// not change any variable's Reg and sets no stack-residency flag.
func (a *Allocator) AssignFinalRegisters() {
	for _, v := range a.Active {
		a.Handled = append(a.Handled, v)
	}
	a.Active = nil
	for _, v := range a.Inactive {
		a.Handled = append(a.Handled, v)
	}
	a.Inactive = nil
}
