package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/sandboxrt/wave/sandbox"
)

// guestArena hands out non-overlapping guest buffer regions. Each guest
// program below only ever touches the sandbox through its exported
// wrapper methods (spec.md §4.5/§4.5.1); the arena exists purely so this
// driver has somewhere to stage paths and I/O buffers in guest memory,
// the same role argv/local buffers play in the original C examples.
type guestArena struct {
	next sandbox.GPtr
}

const guestArenaSlot = 4096

func (a *guestArena) alloc() sandbox.GPtr {
	g := a.next
	a.next += guestArenaSlot

	return g
}

// putPath copies a NUL-terminated path into a fresh arena slot and
// returns its guest pointer.
func putPath(ctx *sandbox.Context, a *guestArena, path string) (sandbox.GPtr, error) {
	g := a.alloc()

	buf := append([]byte(path), 0)
	if err := ctx.CopyBufToSandbox(g, buf); err != nil {
		return 0, fmt.Errorf("staging path %q: %w", path, err)
	}

	return g, nil
}

// guestFunc runs one guest program against an already-constructed Context.
// debug is non-nil only when --debug is passed; guests log through it
// rather than taking an io.Writer of their own, since the underlying
// wrapper calls are what's worth tracing (spec.md §1 Non-goals: guest
// programs themselves are not verified).
type guestFunc func(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error

var guestPrograms = map[string]guestFunc{
	"cat":      guestCat,
	"cp":       guestCp,
	"ls":       guestLs,
	"stat":     guestStat,
	"mkdir":    guestMkdir,
	"symlink":  guestSymlink,
	"renumber": guestRenumber,
}

// guestCat is grounded on examples/cat/cat.c: open data/tmp.txt (or
// args[0], when given) read-only and stream it to stdout.
func guestCat(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error {
	path := "data/tmp.txt"
	if len(args) > 0 {
		path = args[0]
	}

	arena := &guestArena{}

	gpath, err := putPath(ctx, arena, path)
	if err != nil {
		return err
	}

	fd := ctx.Open(gpath, int32(unix.O_RDONLY))
	debug.WrapperCall("open", fd)

	if fd < 0 {
		return fmt.Errorf("cat: open %q failed", path)
	}

	gbuf := arena.alloc()

	for {
		n := ctx.Read(int32(fd), gbuf, guestArenaSlot)
		debug.WrapperCall("read", n)

		if n < 0 {
			ctx.Close(int32(fd))

			return fmt.Errorf("cat: read failed")
		}

		if n == 0 {
			break
		}

		chunk, err := ctx.CopyBufFromSandbox(gbuf, uint64(n))
		if err != nil {
			ctx.Close(int32(fd))

			return fmt.Errorf("cat: retrieving read buffer: %w", err)
		}

		if _, err := stdout.Write(chunk); err != nil {
			ctx.Close(int32(fd))

			return fmt.Errorf("cat: writing stdout: %w", err)
		}
	}

	r := ctx.Close(int32(fd))
	debug.WrapperCall("close", r)

	return nil
}

// guestCp is grounded on examples/cp/cp.c: open src read-only, dst
// create/write/truncate, copy in fixed-size chunks.
func guestCp(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error {
	if len(args) < 2 {
		return fmt.Errorf("cp: need source and destination paths")
	}

	arena := &guestArena{}

	srcPath, err := putPath(ctx, arena, args[0])
	if err != nil {
		return err
	}

	dstPath, err := putPath(ctx, arena, args[1])
	if err != nil {
		return err
	}

	srcFD := ctx.Open(srcPath, int32(unix.O_RDONLY))
	debug.WrapperCall("open(src)", srcFD)

	if srcFD < 0 {
		return fmt.Errorf("cp: open source failed")
	}

	dstFlags := int32(unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC)

	dstFD := ctx.Open(dstPath, dstFlags)
	debug.WrapperCall("open(dst)", dstFD)

	if dstFD < 0 {
		ctx.Close(int32(srcFD))

		return fmt.Errorf("cp: open destination failed")
	}

	gbuf := arena.alloc()

	for {
		n := ctx.Read(int32(srcFD), gbuf, guestArenaSlot)
		debug.WrapperCall("read", n)

		if n <= 0 {
			break
		}

		w := ctx.Write(int32(dstFD), gbuf, uint32(n))
		debug.WrapperCall("write", w)

		if w != n {
			ctx.Close(int32(srcFD))
			ctx.Close(int32(dstFD))

			return fmt.Errorf("cp: short write")
		}
	}

	ctx.Close(int32(srcFD))
	ctx.Close(int32(dstFD))

	return nil
}

// guestLs is grounded on examples/ls/ls.c. Directory enumeration is out of
// scope for the wrapper surface (spec.md §1 Non-goals), so this lists only
// the single authorized root via a stat-style probe, matching the role
// SPEC_FULL.md §4.5.1 assigns it.
func guestLs(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error {
	arena := &guestArena{}

	gpath, err := putPath(ctx, arena, ".")
	if err != nil {
		return err
	}

	fd := ctx.Open(gpath, int32(unix.O_RDONLY))
	debug.WrapperCall("open", fd)

	if fd < 0 {
		return fmt.Errorf("ls: open root failed")
	}

	gstat := arena.alloc()

	r := ctx.Fstat(int32(fd), gstat)
	debug.WrapperCall("fstat", r)
	ctx.Close(int32(fd))

	if r != 0 {
		return fmt.Errorf("ls: fstat root failed")
	}

	_, _ = fmt.Fprintln(stdout, ".")

	return nil
}

// guestStat is grounded on examples/stat/stat.c: fstat an open file and
// print the fields the C original prints.
func guestStat(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error {
	path := "data/tmp.txt"
	if len(args) > 0 {
		path = args[0]
	}

	arena := &guestArena{}

	gpath, err := putPath(ctx, arena, path)
	if err != nil {
		return err
	}

	fd := ctx.Open(gpath, int32(unix.O_RDONLY))
	debug.WrapperCall("open", fd)

	if fd < 0 {
		return fmt.Errorf("stat: open failed")
	}

	defer ctx.Close(int32(fd))

	gstat := arena.alloc()

	r := ctx.Fstat(int32(fd), gstat)
	debug.WrapperCall("fstat", r)

	if r != 0 {
		return fmt.Errorf("stat: fstat failed")
	}

	raw, err := ctx.CopyBufFromSandbox(gstat, sandbox.GuestStatSize)
	if err != nil {
		return fmt.Errorf("stat: retrieving stat buffer: %w", err)
	}

	var st sandbox.GuestStat
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &st); err != nil {
		return fmt.Errorf("stat: decoding stat buffer: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Inode #: %d\n", st.Ino)
	_, _ = fmt.Fprintf(stdout, "Permissions: %o\n", st.Mode)
	_, _ = fmt.Fprintf(stdout, "Size: %d\n", st.Size)
	_, _ = fmt.Fprintf(stdout, "Blocks: %d\n", st.Blocks)

	return nil
}

// guestMkdir is grounded on examples/mkdir/mkdir.c.
func guestMkdir(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error {
	path := "test_dir"
	if len(args) > 0 {
		path = args[0]
	}

	arena := &guestArena{}

	gpath, err := putPath(ctx, arena, path)
	if err != nil {
		return err
	}

	r := ctx.Mkdir(gpath, 0o700)
	debug.WrapperCall("mkdir", r)

	_, _ = fmt.Fprintf(stdout, "mkdir result = %d\n", r)

	return nil
}

// guestSymlink is grounded on examples/symlink/symlink.c: create a link,
// then read it back with readlink.
func guestSymlink(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error {
	target := "data/tmp.txt"
	linkpath := "data/link"

	if len(args) >= 2 {
		target, linkpath = args[0], args[1]
	}

	arena := &guestArena{}

	gtarget, err := putPath(ctx, arena, target)
	if err != nil {
		return err
	}

	glinkpath, err := putPath(ctx, arena, linkpath)
	if err != nil {
		return err
	}

	r := ctx.Symlink(gtarget, glinkpath)
	debug.WrapperCall("symlink", r)

	if r != 0 {
		return fmt.Errorf("symlink: failed")
	}

	gbuf := arena.alloc()

	n := ctx.Readlink(glinkpath, gbuf, guestArenaSlot)
	debug.WrapperCall("readlink", n)

	if n < 0 {
		return fmt.Errorf("readlink: failed")
	}

	contents, err := ctx.CopyBufFromSandbox(gbuf, uint64(n))
	if err != nil {
		return fmt.Errorf("symlink: retrieving readlink buffer: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Contents of symlink = %s\n", contents)

	return nil
}

// guestRenumber is grounded on examples/renumber/renumber.c: open a file,
// renumber it onto an explicit virtual fd (__wasi_fd_renumber -> Dup2 onto
// a fixed newvfd), and read the content back through the new number.
func guestRenumber(ctx *sandbox.Context, args []string, stdout io.Writer, debug *DebugLogger) error {
	path := "data/tmp.txt"
	if len(args) > 0 {
		path = args[0]
	}

	const newvfd = int32(sandbox.MaxVirtualFDs - 1)

	arena := &guestArena{}

	gpath, err := putPath(ctx, arena, path)
	if err != nil {
		return err
	}

	fd := ctx.Open(gpath, int32(unix.O_RDONLY))
	debug.WrapperCall("open", fd)

	if fd < 0 {
		return fmt.Errorf("renumber: open failed")
	}

	r := ctx.Dup2(int32(fd), newvfd)
	debug.WrapperCall("dup2", r)

	if r != int64(newvfd) {
		ctx.Close(int32(fd))

		return fmt.Errorf("renumber: dup2 failed")
	}

	gbuf := arena.alloc()

	n := ctx.Read(newvfd, gbuf, guestArenaSlot)
	debug.WrapperCall("read", n)

	if n < 0 {
		return fmt.Errorf("renumber: read failed")
	}

	chunk, err := ctx.CopyBufFromSandbox(gbuf, uint64(n))
	if err != nil {
		return fmt.Errorf("renumber: retrieving read buffer: %w", err)
	}

	_, _ = stdout.Write(chunk)

	return nil
}
