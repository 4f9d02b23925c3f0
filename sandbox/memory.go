package sandbox

// GPtr is a guest pointer (gptr): an unsigned 32-bit offset into guest
// linear memory. It carries no validity guarantee by itself.
type GPtr uint32

// HPtr is a host pointer (hptr): an opaque host address. It is only
// meaningful relative to the Context it was swizzled from.
type HPtr uintptr

// InMemRegion is C2's in_mem_region: reports whether hptr lies within
// [membase, membase+memlen].
func (ctx *Context) InMemRegion(hptr HPtr) bool {
	base := HPtr(ctx.membase)
	top := HPtr(ctx.membase + uintptr(ctx.memlen))

	return hptr >= base && hptr <= top
}

// FitsInMemRegion is C2's fits_in_mem_region: reports whether hptr+n stays
// strictly below membase+memlen, computed without overflowing uintptr.
func (ctx *Context) FitsInMemRegion(hptr HPtr, n uint64) bool {
	top := ctx.membase + uintptr(ctx.memlen)

	// Guard the addition against wrapping before comparing.
	if uintptr(hptr) > top {
		return false
	}

	remaining := top - uintptr(hptr)

	return uint64(remaining) > n
}

// Swizzle is C2's swizzle: computes membase+gptr. The result is
// unvalidated; callers must follow up with InMemRegion/FitsInMemRegion
// before dereferencing it.
func (ctx *Context) Swizzle(gptr GPtr) HPtr {
	return HPtr(ctx.membase + uintptr(gptr))
}

// ReverseSwizzle is C2's reverse_swizzle: the inverse of Swizzle. P6
// requires ReverseSwizzle(Swizzle(g)) == g for any gptr g.
func (ctx *Context) ReverseSwizzle(hptr HPtr) GPtr {
	return GPtr(uintptr(hptr) - ctx.membase)
}

// rangeInBounds reports whether [gptr, gptr+n) lies within [0, memlen),
// computed in a width that cannot wrap at memlen. n == 0 is always in
// bounds (and is a no-op for the copy helpers below); n >= memlen is
// always rejected, matching spec.md §4.2's edge cases verbatim.
func (ctx *Context) rangeInBounds(gptr GPtr, n uint64) bool {
	if n == 0 {
		return uint64(gptr) <= ctx.memlen
	}

	if n >= ctx.memlen {
		return false
	}

	end := uint64(gptr) + n

	return end >= uint64(gptr) && end <= ctx.memlen
}

// CopyBufFromSandbox is C2's copy_buf_from_sandbox: validates that
// [gptr, gptr+n) lies inside guest memory, then returns an owned copy of
// those n bytes.
func (ctx *Context) CopyBufFromSandbox(gptr GPtr, n uint64) ([]byte, error) {
	if !ctx.rangeInBounds(gptr, n) {
		return nil, wrapErr("CopyBufFromSandbox", TaxonomyInvalidPointer, nil)
	}

	out := make([]byte, n)
	copy(out, ctx.mem[gptr:uint64(gptr)+n])

	return out, nil
}

// CopyBufToSandbox is C2's copy_buf_to_sandbox: validates the destination
// range, then copies src into guest memory.
func (ctx *Context) CopyBufToSandbox(gptr GPtr, src []byte) error {
	n := uint64(len(src))
	if !ctx.rangeInBounds(gptr, n) {
		return wrapErr("CopyBufToSandbox", TaxonomyInvalidPointer, nil)
	}

	copy(ctx.mem[gptr:uint64(gptr)+n], src)

	return nil
}

// guestSlice returns the guest memory window [gptr, gptr+n) for direct
// host I/O (spec.md §4.5: "no bounce buffer is required once the range
// check has passed"). Callers must validate the range first.
func (ctx *Context) guestSlice(gptr GPtr, n uint64) []byte {
	return ctx.mem[gptr : uint64(gptr)+n]
}
