package ssa

import "fmt"

// ErrorKind classifies the errors the core reports on a CFG, per
// spec.md §7. Grounded on the teacher's pattern of attaching a sticky
// error to a long-lived struct (Node/Func's err field, cfg.go) rather
// than threading error returns through every lowering call; the driver
// checks Func.HasError after codegen.
type ErrorKind uint8

const (
	// ErrUnsupportedLowering: a cast, intrinsic, or operand shape the
	// backend does not implement.
	ErrUnsupportedLowering ErrorKind = iota
	// ErrInvariantViolation: precolored infinite-weight variable ends
	// without a register; a phi survives into the regular instruction
	// list; a bitcast with mismatched bit widths.
	ErrInvariantViolation
	// ErrOverflow: address-mode folding would overflow the 32-bit
	// displacement; detected pre-commit.
	ErrOverflow
	// ErrConfiguration: memory-ordering argument to an atomic is invalid;
	// byte-size to atomic.is.lock.free is non-constant.
	ErrConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedLowering:
		return "unsupported-lowering"
	case ErrInvariantViolation:
		return "invariant-violation"
	case ErrOverflow:
		return "overflow"
	case ErrConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// CoreError is the concrete error type the core produces; Kind lets the
// driver decide whether to keep partial diagnostics or bail immediately.
type CoreError struct {
	Kind ErrorKind
	Func string
	Msg  string
}

func (e *CoreError) Error() string {
	return fmt.Sprintf("subzero: %s: %s: %s", e.Func, e.Kind, e.Msg)
}

func newError(f *Func, kind ErrorKind, format string, args ...interface{}) *CoreError {
	return &CoreError{Kind: kind, Func: f.Name, Msg: fmt.Sprintf(format, args...)}
}

// Fail records err on f if no error has been recorded yet, matching
// spec.md §7's propagation policy: "lowering records an error on the CFG
// and returns; the driver checks hasError() between passes."
func (f *Func) Fail(kind ErrorKind, format string, args ...interface{}) {
	f.SetError(newError(f, kind, format, args...))
}
