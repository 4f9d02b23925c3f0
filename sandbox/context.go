package sandbox

import (
	"fmt"
	"unsafe"
)

const (
	// MaxVirtualFDs is MAX_V: the size of the virtual fd namespace a guest
	// sees. Fixed by the reference design at 8.
	MaxVirtualFDs = 8
	// MaxHostFDs is MAX_H: the upper bound on host fds the sealer will
	// track. Fixed by the reference design at 1024.
	MaxHostFDs = 1024

	// MinMemLen and MaxMemLen bound memlen at Context construction.
	MinMemLen = 1 << 20      // 1 MiB
	MaxMemLen = 4 << 30      // 4 GiB
	unsetFD   = int32(-1)
)

// Context is the Sandbox Context (C1): the root entity of one sandbox
// instance. It owns the guest's linear memory region, the virtual<->host fd
// tables, and the monotonic fd allocator counter.
//
// A Context is not safe for concurrent use. The concurrency model (spec.md
// §5) is single-threaded-per-context: one host worker owns a Context at a
// time and wrappers run to completion before the next one begins. Run
// independent contexts on independent workers instead of sharing one.
type Context struct {
	mem     []byte
	membase uintptr
	memlen  uint64

	root string

	v2h     [MaxVirtualFDs]int32
	h2v     [MaxHostFDs]int32
	counter int32

	host hostPrimitives
}

// New constructs a Context with memlen bytes of linear memory and root as
// the authorized path-confinement prefix (see C3). It fails with
// ErrResourceExhausted if memlen is outside [MinMemLen, MaxMemLen] or the
// backing allocation fails.
//
// Post: I1-I4 hold, every v2h[v] == -1, every h2v[h] == -1, counter == 0.
func New(memlen uint64, root string) (*Context, error) {
	return newContext(memlen, root, realHostPrimitives{})
}

func newContext(memlen uint64, root string, host hostPrimitives) (*Context, error) {
	if memlen < MinMemLen || memlen > MaxMemLen {
		return nil, wrapErr("New", TaxonomyResourceExhausted,
			fmt.Errorf("memlen %d outside [%d, %d]", memlen, uint64(MinMemLen), uint64(MaxMemLen)))
	}

	mem := make([]byte, memlen)

	// membase is taken once and cached for the Context's lifetime. This is
	// safe only because ctx.mem keeps the backing array reachable for as
	// long as ctx is reachable, and Go's current heap is non-moving: the
	// address a slice's backing array occupies does not change after
	// allocation. If that ever changes, membase must be recomputed from
	// ctx.mem on every use instead of cached here.
	membase := uintptr(unsafe.Pointer(&mem[0]))

	ctx := &Context{
		mem:     mem,
		membase: membase,
		memlen:  memlen,
		root:    root,
		host:    host,
	}

	for i := range ctx.v2h {
		ctx.v2h[i] = unsetFD
	}

	for i := range ctx.h2v {
		ctx.h2v[i] = unsetFD
	}

	if !ctx.validCtx() {
		return nil, wrapErr("New", TaxonomyResourceExhausted, fmt.Errorf("allocated membase %#x fails I1 for memlen %d", membase, memlen))
	}

	return ctx, nil
}

// Destroy releases the Context's resources: every host fd still recorded in
// v2h is closed (P3: no leaks), then the linear memory is released.
//
// Pre: I1-I4 hold (always true for a Context obtained from New and never
// mutated outside this package).
func (ctx *Context) Destroy() error {
	var firstErr error

	for vfd := int32(0); vfd < MaxVirtualFDs; vfd++ {
		hfd := ctx.v2h[vfd]
		if hfd == unsetFD {
			continue
		}

		ctx.deleteSeal(vfd)

		if err := ctx.host.close(hfd); err != nil && firstErr == nil {
			firstErr = wrapErr("Destroy", TaxonomyHostError, err)
		}
	}

	ctx.mem = nil

	return firstErr
}

// validCtx is I1: membase + memlen does not overflow the address space and
// membase > memlen (so the sum cannot alias low addresses).
func (ctx *Context) validCtx() bool {
	sum := ctx.membase + uintptr(ctx.memlen)

	return sum >= ctx.membase && ctx.membase > uintptr(ctx.memlen)
}
