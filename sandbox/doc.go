// Package sandbox implements the verified wrapper layer of a sandboxed
// syscall mediation runtime: a host-side component that executes a
// restricted subset of POSIX-like file I/O on behalf of an untrusted guest
// that sees only a linear memory region and a virtualized file-descriptor
// namespace.
//
// Before calling any host primitive, every wrapper in this package proves
// three invariants:
//
//  1. every host-memory access derived from a guest pointer lies inside the
//     guest's linear memory region (Context.InMemRegion/FitsInMemRegion);
//  2. every host file descriptor handed back to the guest is one the guest
//     was previously authorized to receive (the FD Sealer, fdtable.go);
//  3. every path the guest names has been resolved and confined to an
//     authorized root (Context.ResolvePath).
//
// The guest itself, the example guest programs that exercise this package
// (see cmd/wave-guest), and the underlying OS primitives are treated as
// external collaborators; this package specifies only the contract between
// them.
package sandbox
