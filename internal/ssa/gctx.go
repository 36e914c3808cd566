package ssa

import (
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/subzero-lang/subzero/internal/hir"
)

// intKey and relocKey are the interning keys for ConstInt/ConstReloc,
// spec.md §4.A.
type intKey struct {
	ty  uint8
	val int64
}

type relocKey struct {
	sym      string
	offset   int32
	suppress bool
}

// Stats holds the relaxed process-wide counters spec.md §5 calls for
// ("Statistics counters use relaxed atomic increments").
type Stats struct {
	FuncsCompiled   int64
	InstrsLowered   int64
	SpillsInserted  int64
	Evictions       int64
	SecondChanceRuns int64
}

// GlobalContext is the one piece of process-wide state spec.md §5
// describes: interned constants, the symbol table, output streams and
// statistics, all safe for concurrent per-function compilation. Grounded
// on frugal's small set of process-wide construct-once tables
// (internal/rt's type cache, internal/loader's symbol table) rather than
// any single frugal type, since frugal has no literal "GlobalContext".
type GlobalContext struct {
	mu sync.Mutex

	ints    map[intKey]*ConstInt
	floats  map[intKey]*ConstFloat
	relocs  map[relocKey]*ConstReloc
	symbols map[string]int // symbol -> assigned ordinal, for deterministic output ordering

	out io.Writer

	Stats Stats
}

func NewGlobalContext(out io.Writer) *GlobalContext {
	return &GlobalContext{
		ints:    map[intKey]*ConstInt{},
		floats:  map[intKey]*ConstFloat{},
		relocs:  map[relocKey]*ConstReloc{},
		symbols: map[string]int{},
		out:     out,
	}
}

// InternInt returns the canonical *ConstInt for (ty, val), constructing it
// on first use. Interning is immutable after construction and racesafe
// (spec.md §5), so lookups only need the mutex around the map access, not
// around any use of the returned pointer.
func (g *GlobalContext) InternInt(tyBits uint8, val int64) *ConstInt {
	k := intKey{tyBits, val}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.ints[k]; ok {
		return c
	}
	c := &ConstInt{Ty: hir.Type(tyBits), Val: val}
	g.ints[k] = c
	return c
}

func (g *GlobalContext) InternFloat(tyBits uint8, val float64) *ConstFloat {
	k := intKey{tyBits, int64(math.Float64bits(val))}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.floats[k]; ok {
		return c
	}
	c := &ConstFloat{Ty: hir.Type(tyBits), Val: val}
	g.floats[k] = c
	return c
}

func (g *GlobalContext) InternReloc(sym string, offset int32, suppress bool) *ConstReloc {
	k := relocKey{sym, offset, suppress}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.relocs[k]; ok {
		return c
	}
	c := &ConstReloc{Sym: sym, Offset: offset, Suppress: suppress}
	g.relocs[k] = c
	if _, ok := g.symbols[sym]; !ok {
		g.symbols[sym] = len(g.symbols)
	}
	return c
}

// Dump writes a structured debug dump of v to the context's output
// stream, serialized by the scoped mutex spec.md §5 requires around
// "the duration of a formatted dump or emit block". Uses go-spew, the
// same library frugal's own -Om1/debug builds reach for.
func (g *GlobalContext) Dump(label string, v interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fmt.Fprintf(g.out, "-- %s --\n", label)
	spew.Fdump(g.out, v)
}

func (g *GlobalContext) NoteFuncCompiled()    { atomic.AddInt64(&g.Stats.FuncsCompiled, 1) }
func (g *GlobalContext) NoteInstrLowered(n int64) { atomic.AddInt64(&g.Stats.InstrsLowered, n) }
func (g *GlobalContext) NoteSpill()           { atomic.AddInt64(&g.Stats.SpillsInserted, 1) }
func (g *GlobalContext) NoteEviction()        { atomic.AddInt64(&g.Stats.Evictions, 1) }
func (g *GlobalContext) NoteSecondChanceRun() { atomic.AddInt64(&g.Stats.SecondChanceRuns, 1) }
