// Package cpu exposes the CPU feature gates the lowering stage consults —
// spec.md §4.F's "SSE4.1 unavailable" fallback path for v4i32 multiply and
// the MOVBE-gated load/store rewrite pass_fusion_amd64.go references as
// cpu.HasMOVBE. frugal's own internal/cpu package (referenced but not
// present in the retrieved snapshot) did this with hand-rolled CPUID
// probing; here it is delegated to github.com/klauspost/cpuid/v2, the
// maintained ecosystem library for the same job.
package cpu

import "github.com/klauspost/cpuid/v2"

// Features is a snapshot of the feature bits the backend cares about,
// captured once so lowering decisions are deterministic within a
// compilation even if cpuid.CPU were ever refreshed concurrently.
type Features struct {
	HasSSE41 bool
	HasSSE42 bool
	HasMOVBE bool
	HasAVX   bool
	HasAVX2  bool
	HasBMI1  bool
	HasBMI2  bool
	HasPOPCNT bool
}

// Detect reads the running machine's feature bits.
func Detect() Features {
	return Features{
		HasSSE41:  cpuid.CPU.Supports(cpuid.SSE4),
		HasSSE42:  cpuid.CPU.Supports(cpuid.SSE42),
		HasMOVBE:  cpuid.CPU.Supports(cpuid.MOVBE),
		HasAVX:    cpuid.CPU.Supports(cpuid.AVX),
		HasAVX2:   cpuid.CPU.Supports(cpuid.AVX2),
		HasBMI1:   cpuid.CPU.Supports(cpuid.BMI1),
		HasBMI2:   cpuid.CPU.Supports(cpuid.BMI2),
		HasPOPCNT: cpuid.CPU.Supports(cpuid.POPCNT),
	}
}

// Baseline is the conservative feature set used when the target machine is
// unknown at compile time (cross-compilation): plain SSE2 only, matching
// the x86-64 psABI floor.
func Baseline() Features { return Features{} }
