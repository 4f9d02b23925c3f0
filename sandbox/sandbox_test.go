package sandbox_test

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/sandboxrt/wave/sandbox"
)

// gptrFor spaces out per-file path buffers in guest memory so concurrent
// path strings in the same Context don't overlap.
func gptrFor(i int) sandbox.GPtr {
	return sandbox.GPtr(4096 * (i + 1))
}

// Test_Scenario1_Open_Write_Read_Close_Cycle is scenario 1 from spec.md §8:
// a guest opens a file, writes to it, reopens and reads it back, and closes
// it, observing real file content end to end through the host.
func Test_Scenario1_Open_Write_Read_Close_Cycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	ctx, err := sandbox.New(sandbox.MinMemLen, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() { _ = ctx.Destroy() })

	writeGuestPath(t, ctx, 0, "greeting.txt")

	flags := int32(unix.O_CREAT | unix.O_RDWR | unix.O_TRUNC)

	wfd := ctx.Open(0, flags)
	if wfd < 0 {
		t.Fatalf("Open(write) = %d", wfd)
	}

	payload := []byte("hello")
	if err := ctx.CopyBufToSandbox(4096, payload); err != nil {
		t.Fatalf("CopyBufToSandbox: %v", err)
	}

	if n := ctx.Write(int32(wfd), 4096, uint32(len(payload))); n != int64(len(payload)) {
		t.Fatalf("Write = %d, want %d", n, len(payload))
	}

	if r := ctx.Close(int32(wfd)); r != 0 {
		t.Fatalf("Close(write fd) = %d", r)
	}

	rfd := ctx.Open(0, int32(unix.O_RDONLY))
	if rfd < 0 {
		t.Fatalf("Open(read) = %d", rfd)
	}

	n := ctx.Read(int32(rfd), 8192, uint32(len(payload)))
	if n != int64(len(payload)) {
		t.Fatalf("Read = %d, want %d", n, len(payload))
	}

	got, err := ctx.CopyBufFromSandbox(8192, uint64(len(payload)))
	if err != nil {
		t.Fatalf("CopyBufFromSandbox: %v", err)
	}

	if string(got) != "hello" {
		t.Errorf("read back %q, want %q", got, "hello")
	}

	if r := ctx.Close(int32(rfd)); r != 0 {
		t.Fatalf("Close(read fd) = %d", r)
	}

	onDisk, err := os.ReadFile(filepath.Join(root, "greeting.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(onDisk) != "hello" {
		t.Errorf("on-disk content = %q, want %q", onDisk, "hello")
	}
}

// Test_Scenario3_OutOfBounds_Read_Never_Reaches_Host is scenario 3 from
// spec.md §8: a buffer range that overruns guest memory is rejected before
// any host call, so the underlying fd's read offset never advances.
func Test_Scenario3_OutOfBounds_Read_Never_Reaches_Host(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "f"), []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, err := sandbox.New(sandbox.MinMemLen, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() { _ = ctx.Destroy() })

	writeGuestPath(t, ctx, 0, "f")

	fd := ctx.Open(0, int32(unix.O_RDONLY))
	if fd < 0 {
		t.Fatalf("Open = %d", fd)
	}

	// gptr + n overflows memlen: must be rejected at the memory-safety check.
	badGptr := sandbox.GPtr(sandbox.MinMemLen - 1)

	if n := ctx.Read(int32(fd), badGptr, 100); n != -1 {
		t.Fatalf("Read with out-of-bounds range = %d, want -1", n)
	}

	// A subsequent well-formed read must still start at offset 0: the
	// rejected call above must never have reached the host.
	n := ctx.Read(int32(fd), 0, 5)
	if n != 5 {
		t.Fatalf("Read after rejected call = %d, want 5", n)
	}

	first5, err := ctx.CopyBufFromSandbox(0, 5)
	if err != nil {
		t.Fatalf("CopyBufFromSandbox: %v", err)
	}

	if string(first5) != "01234" {
		t.Errorf("first 5 bytes = %q, want %q (host offset must not have advanced)", first5, "01234")
	}
}

// Test_Scenario4_Path_Escape_Is_Rejected is scenario 4 from spec.md §8.
func Test_Scenario4_Path_Escape_Is_Rejected(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	ctx, err := sandbox.New(sandbox.MinMemLen, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() { _ = ctx.Destroy() })

	writeGuestPath(t, ctx, 0, "../../etc/passwd")

	if fd := ctx.Open(0, int32(unix.O_RDONLY)); fd != -1 {
		t.Fatalf("Open(escaping path) = %d, want -1", fd)
	}
}

// Test_Scenario5_Seal_Exhaustion is scenario 5 from spec.md §8: once
// MaxVirtualFDs files are open, the next open fails and the briefly held
// host fd is closed rather than leaked.
func Test_Scenario5_Seal_Exhaustion(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	ctx, err := sandbox.New(sandbox.MinMemLen, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() { _ = ctx.Destroy() })

	var vfds [sandbox.MaxVirtualFDs]int64

	for i := range vfds {
		name := "f" + string(rune('0'+i))
		if err := os.WriteFile(filepath.Join(root, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}

		writeGuestPath(t, ctx, gptrFor(i), name)

		fd := ctx.Open(gptrFor(i), int32(unix.O_RDONLY))
		if fd < 0 {
			t.Fatalf("Open #%d = %d", i, fd)
		}

		vfds[i] = fd
	}

	if err := os.WriteFile(filepath.Join(root, "overflow"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	writeGuestPath(t, ctx, gptrFor(sandbox.MaxVirtualFDs), "overflow")

	if fd := ctx.Open(gptrFor(sandbox.MaxVirtualFDs), int32(unix.O_RDONLY)); fd != -1 {
		t.Fatalf("Open past capacity = %d, want -1", fd)
	}

	// Every prior vfd must be distinct.
	for i, fd := range vfds {
		for j := i + 1; j < len(vfds); j++ {
			if fd == vfds[j] {
				t.Fatalf("vfd %d reused at indices %d and %d", fd, i, j)
			}
		}
	}
}

// Test_Dup2_Rejects_Evicting_A_Live_Seal resolves the dup2 open question
// from spec.md §9 at the black-box level.
func Test_Dup2_Rejects_Evicting_A_Live_Seal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"a", "b"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(name), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	ctx, err := sandbox.New(sandbox.MinMemLen, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() { _ = ctx.Destroy() })

	writeGuestPath(t, ctx, gptrFor(0), "a")
	writeGuestPath(t, ctx, gptrFor(1), "b")

	fdA := ctx.Open(gptrFor(0), int32(unix.O_RDONLY))
	fdB := ctx.Open(gptrFor(1), int32(unix.O_RDONLY))

	if fdA < 0 || fdB < 0 {
		t.Fatalf("Open failed: fdA=%d fdB=%d", fdA, fdB)
	}

	if r := ctx.Dup2(int32(fdA), int32(fdB)); r != -1 {
		t.Fatalf("Dup2 onto a live seal = %d, want -1", r)
	}

	// fdB must still point at "b", unaffected by the rejected Dup2.
	n := ctx.Read(int32(fdB), gptrFor(2), 1)
	if n != 1 {
		t.Fatalf("Read(fdB) after rejected Dup2 = %d, want 1", n)
	}

	got, err := ctx.CopyBufFromSandbox(gptrFor(2), 1)
	if err != nil {
		t.Fatalf("CopyBufFromSandbox: %v", err)
	}

	if string(got) != "b" {
		t.Errorf("fdB content = %q, want %q", got, "b")
	}
}

// Test_Mkdir_Rmdir_Cycle exercises the directory wrappers end to end.
func Test_Mkdir_Rmdir_Cycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	ctx, err := sandbox.New(sandbox.MinMemLen, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() { _ = ctx.Destroy() })

	writeGuestPath(t, ctx, 0, "sub")

	if r := ctx.Mkdir(0, 0o755); r != 0 {
		t.Fatalf("Mkdir = %d", r)
	}

	if fi, err := os.Stat(filepath.Join(root, "sub")); err != nil || !fi.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	if r := ctx.Rmdir(0); r != 0 {
		t.Fatalf("Rmdir = %d", r)
	}

	if _, err := os.Stat(filepath.Join(root, "sub")); !os.IsNotExist(err) {
		t.Fatalf("directory still exists after Rmdir: %v", err)
	}
}

// Test_Unlink_Removes_File exercises the unlink wrapper end to end.
func Test_Unlink_Removes_File(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "doomed"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ctx, err := sandbox.New(sandbox.MinMemLen, root)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() { _ = ctx.Destroy() })

	writeGuestPath(t, ctx, 0, "doomed")

	if r := ctx.Unlink(0); r != 0 {
		t.Fatalf("Unlink = %d", r)
	}

	if _, err := os.Stat(filepath.Join(root, "doomed")); !os.IsNotExist(err) {
		t.Fatalf("file still exists after Unlink: %v", err)
	}
}
