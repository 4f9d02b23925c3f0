package sandbox

// This file implements the FD Sealer (C4): the bijection between virtual
// fds (small integers < MaxVirtualFDs) and host fds (< MaxHostFDs).
//
// Allocation policy is fixed at "smallest free virtual fd index" (spec.md
// §9, Design Notes, "Dynamic fd reuse"): CreateSeal always scans v2h for
// the lowest unsealed slot. counter is kept only as a monotonic high-water
// mark of the highest vfd ever handed out — it is not consulted to pick a
// slot, since after an out-of-order Close it no longer names the smallest
// free index (observable in the allocator tie-break scenario: closing vfd
// 1 out of {0,1,2,3} must make the next Open return 1, not 4).

// InFDMap is C4's in_fd_map: reports whether vfd is currently sealed.
func (ctx *Context) InFDMap(vfd int32) bool {
	if vfd < 0 || vfd >= MaxVirtualFDs {
		return false
	}

	return ctx.v2h[vfd] != unsetFD
}

// InRevFDMap is C4's in_rev_fd_map: reports whether hfd is currently
// sealed to some virtual fd.
func (ctx *Context) InRevFDMap(hfd int32) bool {
	if hfd < 0 || hfd >= MaxHostFDs {
		return false
	}

	return ctx.h2v[hfd] != unsetFD
}

// Translate is C4's translate. Pre: InFDMap(vfd).
func (ctx *Context) Translate(vfd int32) int32 {
	return ctx.v2h[vfd]
}

// ReverseTranslate is C4's reverse_translate. Pre: InRevFDMap(hfd).
func (ctx *Context) ReverseTranslate(hfd int32) int32 {
	return ctx.h2v[hfd]
}

// CreateSeal is C4's create_seal: binds hfd to a freshly chosen vfd,
// preserving I2/I3. Fails with ErrTooManyFds if v2h has no free slot, and
// with TaxonomyBadFd if hfd itself falls outside [0, MaxHostFDs) — h2v is a
// fixed-size array, so an out-of-range hfd must be rejected here rather
// than indexed (matching the reference create_seal's host-fd bound check).
func (ctx *Context) CreateSeal(hfd int32) (int32, error) {
	if hfd < 0 || hfd >= MaxHostFDs {
		return -1, wrapErr("CreateSeal", TaxonomyBadFd, nil)
	}

	vfd := ctx.smallestFreeVFD()
	if vfd == -1 {
		return -1, wrapErr("CreateSeal", TaxonomyTooManyFds, nil)
	}

	ctx.v2h[vfd] = hfd
	ctx.h2v[hfd] = vfd

	if ctx.counter <= vfd {
		ctx.counter = vfd + 1
		if ctx.counter > MaxVirtualFDs {
			ctx.counter = MaxVirtualFDs
		}
	}

	return vfd, nil
}

// DeleteSeal is C4's delete_seal: resets both table entries for vfd to
// unsealed. Pre: InFDMap(vfd).
func (ctx *Context) DeleteSeal(vfd int32) {
	ctx.deleteSeal(vfd)
}

func (ctx *Context) deleteSeal(vfd int32) {
	hfd := ctx.v2h[vfd]
	ctx.v2h[vfd] = unsetFD

	if hfd != unsetFD {
		ctx.h2v[hfd] = unsetFD
	}
}

// sealAt binds hfd to the caller-chosen vfd directly, bypassing the
// smallest-free-index search. Used only by Dup2, where the guest names the
// virtual fd it wants rather than accepting whichever one the allocator
// would pick. Rejects hfd outside [0, MaxHostFDs) for the same reason
// CreateSeal does: h2v is a fixed-size array and an out-of-range index
// would otherwise panic instead of failing cleanly.
func (ctx *Context) sealAt(vfd, hfd int32) error {
	if hfd < 0 || hfd >= MaxHostFDs {
		return wrapErr("sealAt", TaxonomyBadFd, nil)
	}

	ctx.v2h[vfd] = hfd
	ctx.h2v[hfd] = vfd

	if ctx.counter <= vfd {
		ctx.counter = vfd + 1
		if ctx.counter > MaxVirtualFDs {
			ctx.counter = MaxVirtualFDs
		}
	}

	return nil
}

func (ctx *Context) smallestFreeVFD() int32 {
	for i := int32(0); i < MaxVirtualFDs; i++ {
		if ctx.v2h[i] == unsetFD {
			return i
		}
	}

	return -1
}
