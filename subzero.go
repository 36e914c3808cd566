// Package subzero is the public entry point: it hands a whole hir.Program
// to internal/ssa/driver one function at a time and collects the results,
// the same role frugal.go plays over frugal's internal jit package.
package subzero

import (
	"io"

	"github.com/subzero-lang/subzero/internal/cpu"
	"github.com/subzero-lang/subzero/internal/hir"
	"github.com/subzero-lang/subzero/internal/ssa"
	"github.com/subzero-lang/subzero/internal/ssa/driver"
	"github.com/subzero-lang/subzero/internal/ssa/lower"
)

// Option configures a Program compilation.
type Option func(*config)

type config struct {
	features *cpu.Features
	out      io.Writer
}

// WithFeatures pins the CPU feature set instead of probing the host, for
// reproducible output across machines (spec.md §9's cross-compilation note).
func WithFeatures(f cpu.Features) Option {
	return func(c *config) { c.features = &f }
}

// WithDebugOutput routes GlobalContext.Dump traffic to w instead of
// discarding it.
func WithDebugOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// Output is one compiled hir.Func alongside the metadata its name maps to.
type Output struct {
	Name   string
	Result *driver.Result
}

// Compile lowers every function in p to colored x86 machine-level SSA,
// spec.md §4.H run once per function with a GlobalContext shared across
// the whole batch (spec.md §5's concurrency contract -- callers are free
// to fan Compile's per-function work out across goroutines themselves;
// GlobalContext is the only state Bits crosses that boundary).
func Compile(p *hir.Program, opts ...Option) ([]Output, *ssa.GlobalContext) {
	cfg := &config{out: io.Discard}
	for _, o := range opts {
		o(cfg)
	}

	features := cpu.Detect()
	if cfg.features != nil {
		features = *cfg.features
	}

	bits := lower.Bits64
	if p.Bits == 32 {
		bits = lower.Bits32
	}

	gctx := ssa.NewGlobalContext(cfg.out)

	out := make([]Output, 0, len(p.Funcs))
	for _, fn := range p.Funcs {
		res := driver.Compile(gctx, fn, bits, features)
		out = append(out, Output{Name: fn.Name, Result: res})
	}
	return out, gctx
}
