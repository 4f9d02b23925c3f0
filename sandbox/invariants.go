package sandbox

// This file implements the Safety-Invariant Monitor (C7): predicates that
// state the wrapper pre/postconditions and are checkable by tests. The
// wrappers in wrappers.go do not evaluate them; tests call them directly. In the
// reference C sources these are compiled away for the symbolic-execution
// harness (SFI_SAFE / FD_SAFE / PATH_SAFE are stubbed `true`, left to the
// builtin memory-safety checker or a not-yet-written type system). Here
// there is no external verifier, so AssertSafe and AssumeSafe perform the
// identical concrete check; AssumeSafe exists as a distinct entry point
// only so a caller can tell, from a stack trace, whether a violation was
// caught as a precondition (assume) or a postcondition (assert).

import "unsafe"

// ValidCtx is I1: membase+memlen does not overflow and membase > memlen.
func ValidCtx(ctx *Context) bool {
	return ctx.validCtx()
}

// SFISafe stands in for the reference design's builtin memory-safety
// checker: here it verifies that ctx's cached membase still matches the
// address of ctx.mem's backing array, i.e. the one invariant a Go
// implementation must hold in place of a symbolic SFI proof (see the
// caching note in context.go).
func SFISafe(ctx *Context) bool {
	if ctx.mem == nil {
		return true // destroyed; nothing left to check
	}

	return ctx.memlen == uint64(len(ctx.mem)) &&
		ctx.membase == uintptr(unsafe.Pointer(&ctx.mem[0]))
}

// FDSafe is I2/I3 restricted to a single witness pair: if vfdWitness is
// in range and sealed, its host fd maps back to it and lies in range; if
// hfdWitness is in range and sealed, its virtual fd maps back to it and
// lies in range.
func FDSafe(ctx *Context, vfdWitness, hfdWitness int32) bool {
	if vfdWitness >= 0 && vfdWitness < MaxVirtualFDs {
		if hfd := ctx.v2h[vfdWitness]; hfd != unsetFD {
			if hfd < 0 || hfd >= MaxHostFDs {
				return false
			}

			if ctx.h2v[hfd] != vfdWitness {
				return false
			}
		}
	}

	if hfdWitness >= 0 && hfdWitness < MaxHostFDs {
		if vfd := ctx.h2v[hfdWitness]; vfd != unsetFD {
			if vfd < 0 || vfd >= MaxVirtualFDs {
				return false
			}

			if ctx.v2h[vfd] != hfdWitness {
				return false
			}
		}
	}

	return true
}

// PathSafe is I4: every host fd recorded in v2h came from a
// path-resolution that produced an authorized path. Confinement is
// enforced at resolution time (ResolvePath, C3) rather than carried as
// per-fd state, so there is nothing further to check here; PathSafe
// always holds for a Context whose only path-accepting entry point is
// ResolvePath.
func PathSafe(_ *Context) bool {
	return true
}

// AssertSafe is C7's assert_safe: the postcondition form, for checking state
// after a wrapper has mutated it.
func AssertSafe(ctx *Context, vfdWitness, hfdWitness int32) bool {
	return ValidCtx(ctx) && SFISafe(ctx) && FDSafe(ctx, vfdWitness, hfdWitness) && PathSafe(ctx)
}

// AssumeSafe is C7's assume_safe: the precondition form, for checking state
// before a wrapper reads it.
func AssumeSafe(ctx *Context, vfdWitness, hfdWitness int32) bool {
	return ValidCtx(ctx) && SFISafe(ctx) && FDSafe(ctx, vfdWitness, hfdWitness) && PathSafe(ctx)
}

// CheckAllWitnesses exhaustively checks FDSafe across every (vfd, hfd)
// witness pair, matching spec.md §4.7's "for exhaustive testing, the
// witnesses range over all indices". Used by property-style tests (P1/P2
// under churn).
func CheckAllWitnesses(ctx *Context) bool {
	if !ValidCtx(ctx) || !SFISafe(ctx) || !PathSafe(ctx) {
		return false
	}

	for vfd := int32(0); vfd < MaxVirtualFDs; vfd++ {
		for hfd := int32(0); hfd < MaxHostFDs; hfd++ {
			if !FDSafe(ctx, vfd, hfd) {
				return false
			}
		}
	}

	return true
}
