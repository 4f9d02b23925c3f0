package sandbox

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// This file implements the Syscall Wrappers (C5): the public, guest-visible
// entry points. Each wrapper validates arguments with C2 (memory)/C3
// (paths)/C4 (fds), calls the Host Primitive Interface (C6), performs any
// fd-table bookkeeping, and returns a guest-safe result.
//
// Every wrapper returns a single int64: a non-negative result on success, or
// -1 on failure (getcwd instead returns 0 on failure, matching POSIX
// getcwd's NULL return and spec.md §6). The underlying error taxonomy
// (errors.go) is available only inside this package (its tests) via the
// unexported *Err variants; it is never exposed across the guest boundary
// itself.

// recognizedOpenFlags is the only bits open() accepts; anything else fails
// the call outright (spec.md §6).
const recognizedOpenFlags = unix.O_RDONLY | unix.O_WRONLY | unix.O_RDWR |
	unix.O_CREAT | unix.O_EXCL | unix.O_TRUNC | unix.O_APPEND

// Open is the open wrapper.
func (ctx *Context) Open(gptrPath GPtr, flags int32) int64 {
	vfd, _ := ctx.openErr(gptrPath, flags)

	return int64(vfd)
}

func (ctx *Context) openErr(gptrPath GPtr, flags int32) (int32, error) {
	if flags & ^int32(recognizedOpenFlags) != 0 {
		return -1, wrapErr("open", TaxonomyHostError, errUnrecognizedFlags)
	}

	path, err := ctx.ResolvePath(gptrPath)
	if err != nil {
		return -1, err
	}

	hfd, err := ctx.host.open(path, flags)
	if err != nil {
		return -1, wrapErr("open", TaxonomyHostError, err)
	}

	vfd, err := ctx.CreateSeal(hfd)
	if err != nil {
		_ = ctx.host.close(hfd)

		return -1, err
	}

	return vfd, nil
}

// Close is the close wrapper. The seal is released before the host close
// call so that a failing host_close still leaves the guest's view of the
// fd table consistent (spec.md §4.5 note 3).
func (ctx *Context) Close(vfd int32) int64 {
	r, _ := ctx.closeErr(vfd)

	return int64(r)
}

func (ctx *Context) closeErr(vfd int32) (int32, error) {
	if vfd < 0 || vfd >= MaxVirtualFDs || !ctx.InFDMap(vfd) {
		return -1, wrapErr("close", TaxonomyBadFd, nil)
	}

	hfd := ctx.Translate(vfd)
	ctx.DeleteSeal(vfd)

	if err := ctx.host.close(hfd); err != nil {
		return -1, wrapErr("close", TaxonomyHostError, err)
	}

	return 0, nil
}

// Read is the read wrapper. Bytes are read directly into the guest memory
// window; no bounce buffer is used once the range check passes.
func (ctx *Context) Read(vfd int32, gptrBuf GPtr, n uint32) int64 {
	r, _ := ctx.readErr(vfd, gptrBuf, n)

	return int64(r)
}

func (ctx *Context) readErr(vfd int32, gptrBuf GPtr, n uint32) (int32, error) {
	if !ctx.InFDMap(vfd) {
		return -1, wrapErr("read", TaxonomyBadFd, nil)
	}

	if _, err := ctx.validateBufRange(gptrBuf, uint64(n)); err != nil {
		return -1, err
	}

	hfd := ctx.Translate(vfd)

	got, err := ctx.host.read(hfd, ctx.guestSlice(gptrBuf, uint64(n)))
	if err != nil {
		return -1, wrapErr("read", TaxonomyHostError, err)
	}

	return int32(got), nil
}

// Write is the write wrapper, the mirror of Read.
func (ctx *Context) Write(vfd int32, gptrBuf GPtr, n uint32) int64 {
	r, _ := ctx.writeErr(vfd, gptrBuf, n)

	return int64(r)
}

func (ctx *Context) writeErr(vfd int32, gptrBuf GPtr, n uint32) (int32, error) {
	if !ctx.InFDMap(vfd) {
		return -1, wrapErr("write", TaxonomyBadFd, nil)
	}

	if _, err := ctx.validateBufRange(gptrBuf, uint64(n)); err != nil {
		return -1, err
	}

	hfd := ctx.Translate(vfd)

	got, err := ctx.host.write(hfd, ctx.guestSlice(gptrBuf, uint64(n)))
	if err != nil {
		return -1, wrapErr("write", TaxonomyHostError, err)
	}

	return int32(got), nil
}

// validateBufRange is the shared read/write bounds check: swizzle, then
// require in_mem_region, n < memlen, and fits_in_mem_region, per spec.md
// §4.5.
func (ctx *Context) validateBufRange(gptrBuf GPtr, n uint64) (HPtr, error) {
	if n >= ctx.memlen {
		return 0, wrapErr("validateBufRange", TaxonomyInvalidPointer, nil)
	}

	hptr := ctx.Swizzle(gptrBuf)

	if !ctx.InMemRegion(hptr) || !ctx.FitsInMemRegion(hptr, n) {
		return 0, wrapErr("validateBufRange", TaxonomyInvalidPointer, nil)
	}

	return hptr, nil
}

// GuestStat is the fixed-layout stat buffer fstat marshals into guest
// memory: the common stat fields, of which the example stat guest prints
// Ino, Mode, Size and Blocks.
type GuestStat struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint64
	UID     uint32
	GID     uint32
	Rdev    uint64
	Size    int64
	Blksize int64
	Blocks  int64
	Atime   int64
	Mtime   int64
	Ctime   int64
}

// GuestStatSize is the marshaled size of GuestStat in bytes.
const GuestStatSize = 8 + 8 + 4 + 8 + 4 + 4 + 8 + 8 + 8 + 8 + 8 + 8 + 8

func (s GuestStat) marshal() []byte {
	var buf bytes.Buffer

	buf.Grow(GuestStatSize)
	_ = binary.Write(&buf, binary.LittleEndian, s)

	return buf.Bytes()
}

// Fstat is the fstat wrapper.
func (ctx *Context) Fstat(vfd int32, gptrStat GPtr) int64 {
	r, _ := ctx.fstatErr(vfd, gptrStat)

	return int64(r)
}

func (ctx *Context) fstatErr(vfd int32, gptrStat GPtr) (int32, error) {
	if !ctx.InFDMap(vfd) {
		return -1, wrapErr("fstat", TaxonomyBadFd, nil)
	}

	hfd := ctx.Translate(vfd)

	var st unix.Stat_t
	if err := ctx.host.fstat(hfd, &st); err != nil {
		return -1, wrapErr("fstat", TaxonomyHostError, err)
	}

	gs := GuestStat{
		Dev:     uint64(st.Dev),
		Ino:     uint64(st.Ino),
		Mode:    uint32(st.Mode),
		Nlink:   uint64(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Rdev:    uint64(st.Rdev),
		Size:    st.Size,
		Blksize: int64(st.Blksize),
		Blocks:  st.Blocks,
		Atime:   int64(st.Atim.Sec),
		Mtime:   int64(st.Mtim.Sec),
		Ctime:   int64(st.Ctim.Sec),
	}

	if err := ctx.CopyBufToSandbox(gptrStat, gs.marshal()); err != nil {
		return -1, err
	}

	return 0, nil
}

// Lseek is the lseek wrapper.
func (ctx *Context) Lseek(vfd int32, offset int64, whence int32) int64 {
	r, _ := ctx.lseekErr(vfd, offset, whence)

	return r
}

func (ctx *Context) lseekErr(vfd int32, offset int64, whence int32) (int64, error) {
	if !ctx.InFDMap(vfd) {
		return -1, wrapErr("lseek", TaxonomyBadFd, nil)
	}

	hfd := ctx.Translate(vfd)

	pos, err := ctx.host.lseek(hfd, offset, whence)
	if err != nil {
		return -1, wrapErr("lseek", TaxonomyHostError, err)
	}

	return pos, nil
}

// Dup2 is the dup2 wrapper.
//
// Open question (spec.md §9) resolved: newvfd must be unused. dup2 never
// evicts a live seal — the bijection model seals one host fd per virtual
// fd, so silently closing whatever newvfd held would drop a host fd the
// guest still believes is open with no way to signal that loss back to it.
// A guest that wants newvfd reused must Close it first.
//
// The duplicate is a fresh host fd (a host-level dup, not dup2): forcing
// the new fd to a specific host fd number would fight the sealer's own
// allocation and is unnecessary, since the guest only ever sees the virtual
// number it asked for.
func (ctx *Context) Dup2(oldvfd, newvfd int32) int64 {
	r, _ := ctx.dup2Err(oldvfd, newvfd)

	return int64(r)
}

func (ctx *Context) dup2Err(oldvfd, newvfd int32) (int32, error) {
	if !ctx.InFDMap(oldvfd) {
		return -1, wrapErr("dup2", TaxonomyBadFd, nil)
	}

	if newvfd < 0 || newvfd >= MaxVirtualFDs {
		return -1, wrapErr("dup2", TaxonomyBadFd, nil)
	}

	if oldvfd == newvfd {
		return newvfd, nil
	}

	if ctx.InFDMap(newvfd) {
		return -1, wrapErr("dup2", TaxonomyBadFd, nil)
	}

	oldHFD := ctx.Translate(oldvfd)

	newHFD, err := ctx.host.dup(oldHFD)
	if err != nil {
		return -1, wrapErr("dup2", TaxonomyHostError, err)
	}

	if err := ctx.sealAt(newvfd, newHFD); err != nil {
		_ = ctx.host.close(newHFD)

		return -1, err
	}

	return newvfd, nil
}

// Unlink is the unlink wrapper.
func (ctx *Context) Unlink(gptrPath GPtr) int64 {
	r, _ := ctx.unlinkErr(gptrPath)

	return int64(r)
}

func (ctx *Context) unlinkErr(gptrPath GPtr) (int32, error) {
	path, err := ctx.ResolvePath(gptrPath)
	if err != nil {
		return -1, err
	}

	if err := ctx.host.unlink(path); err != nil {
		return -1, wrapErr("unlink", TaxonomyHostError, err)
	}

	return 0, nil
}

// Symlink is the symlink wrapper. Both target and linkpath are resolved and
// confined to the authorized root: an unconfined target would let a guest
// plant a link whose target escapes the root, defeating confinement the
// first time something follows the link.
func (ctx *Context) Symlink(gptrTarget, gptrLinkpath GPtr) int64 {
	r, _ := ctx.symlinkErr(gptrTarget, gptrLinkpath)

	return int64(r)
}

func (ctx *Context) symlinkErr(gptrTarget, gptrLinkpath GPtr) (int32, error) {
	target, err := ctx.ResolvePath(gptrTarget)
	if err != nil {
		return -1, err
	}

	linkpath, err := ctx.ResolvePath(gptrLinkpath)
	if err != nil {
		return -1, err
	}

	if err := ctx.host.symlink(target, linkpath); err != nil {
		return -1, wrapErr("symlink", TaxonomyHostError, err)
	}

	return 0, nil
}

// Readlink is the readlink wrapper.
//
// Open question (spec.md §9) resolved: the output is not null-terminated,
// matching POSIX readlink(2) and the host primitive it wraps; the returned
// byte count is authoritative, as for read/write.
func (ctx *Context) Readlink(gptrPath, gptrBuf GPtr, size uint32) int64 {
	r, _ := ctx.readlinkErr(gptrPath, gptrBuf, size)

	return int64(r)
}

func (ctx *Context) readlinkErr(gptrPath, gptrBuf GPtr, size uint32) (int32, error) {
	path, err := ctx.ResolvePath(gptrPath)
	if err != nil {
		return -1, err
	}

	if _, err := ctx.validateBufRange(gptrBuf, uint64(size)); err != nil {
		return -1, err
	}

	n, err := ctx.host.readlink(path, ctx.guestSlice(gptrBuf, uint64(size)))
	if err != nil {
		return -1, wrapErr("readlink", TaxonomyHostError, err)
	}

	return int32(n), nil
}

// Getcwd is the getcwd wrapper. Unlike the other wrappers it returns 0 (not
// -1) on failure, matching POSIX getcwd's NULL return and spec.md §6.
//
// host_chdir/host_getcwd are true pass-throughs onto the OS process's
// current directory (C6 is "strictly pass-through; no policy"), which means
// they operate on process-wide state. spec.md §5 already requires that a
// process host at most one live Context per host-fd range; the same
// constraint extends to chdir/getcwd — do not run two Contexts that both
// call Chdir in the same process concurrently.
func (ctx *Context) Getcwd(gptrBuf GPtr, size uint32) int64 {
	r, _ := ctx.getcwdErr(gptrBuf, size)

	return r
}

func (ctx *Context) getcwdErr(gptrBuf GPtr, size uint32) (int64, error) {
	if _, err := ctx.validateBufRange(gptrBuf, uint64(size)); err != nil {
		return 0, err
	}

	if _, err := ctx.host.getcwd(ctx.guestSlice(gptrBuf, uint64(size))); err != nil {
		return 0, wrapErr("getcwd", TaxonomyHostError, err)
	}

	return int64(gptrBuf), nil
}

// Chdir is the chdir wrapper.
func (ctx *Context) Chdir(gptrPath GPtr) int64 {
	r, _ := ctx.chdirErr(gptrPath)

	return int64(r)
}

func (ctx *Context) chdirErr(gptrPath GPtr) (int32, error) {
	path, err := ctx.ResolvePath(gptrPath)
	if err != nil {
		return -1, err
	}

	if err := ctx.host.chdir(path); err != nil {
		return -1, wrapErr("chdir", TaxonomyHostError, err)
	}

	return 0, nil
}

// Mkdir is the mkdir wrapper.
func (ctx *Context) Mkdir(gptrPath GPtr, mode uint32) int64 {
	r, _ := ctx.mkdirErr(gptrPath, mode)

	return int64(r)
}

func (ctx *Context) mkdirErr(gptrPath GPtr, mode uint32) (int32, error) {
	path, err := ctx.ResolvePath(gptrPath)
	if err != nil {
		return -1, err
	}

	if err := ctx.host.mkdir(path, mode); err != nil {
		return -1, wrapErr("mkdir", TaxonomyHostError, err)
	}

	return 0, nil
}

// Rmdir is the rmdir wrapper.
func (ctx *Context) Rmdir(gptrPath GPtr) int64 {
	r, _ := ctx.rmdirErr(gptrPath)

	return int64(r)
}

func (ctx *Context) rmdirErr(gptrPath GPtr) (int32, error) {
	path, err := ctx.ResolvePath(gptrPath)
	if err != nil {
		return -1, err
	}

	if err := ctx.host.rmdir(path); err != nil {
		return -1, wrapErr("rmdir", TaxonomyHostError, err)
	}

	return 0, nil
}
