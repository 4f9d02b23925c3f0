package sandbox

import (
	"errors"

	"golang.org/x/sys/unix"
)

// fakeHost is an in-memory hostPrimitives used by the component tests in
// this package (fdtable_test.go, memory_test.go, invariants_test.go) so
// they can exercise wrapper bookkeeping without touching the filesystem.
// Scenario/black-box tests in sandbox_test.go use the real host instead.
//
// Host fd allocation mirrors what a real OS does: the lowest unused fd
// number is reused, which is also what keeps host fds safely inside
// MaxHostFDs across a long open/close churn sequence.
type fakeHost struct {
	fds  map[int32]*fakeFD
	used [MaxHostFDs]bool
}

type fakeFD struct {
	data []byte
	pos  int64
}

func newFakeHost() *fakeHost {
	return &fakeHost{fds: make(map[int32]*fakeFD)}
}

var errFakeNoFreeFDs = errors.New("fakeHost: out of host fds")

func (h *fakeHost) allocHFD() (int32, error) {
	for i := int32(0); i < MaxHostFDs; i++ {
		if !h.used[i] {
			h.used[i] = true

			return i, nil
		}
	}

	return -1, errFakeNoFreeFDs
}

func (h *fakeHost) open(_ string, _ int32) (int32, error) {
	hfd, err := h.allocHFD()
	if err != nil {
		return -1, err
	}

	h.fds[hfd] = &fakeFD{}

	return hfd, nil
}

func (h *fakeHost) close(hfd int32) error {
	if _, ok := h.fds[hfd]; !ok {
		return unix.EBADF
	}

	delete(h.fds, hfd)
	h.used[hfd] = false

	return nil
}

func (h *fakeHost) read(hfd int32, buf []byte) (int, error) {
	fd, ok := h.fds[hfd]
	if !ok {
		return 0, unix.EBADF
	}

	if fd.pos >= int64(len(fd.data)) {
		return 0, nil
	}

	n := copy(buf, fd.data[fd.pos:])
	fd.pos += int64(n)

	return n, nil
}

func (h *fakeHost) write(hfd int32, buf []byte) (int, error) {
	fd, ok := h.fds[hfd]
	if !ok {
		return 0, unix.EBADF
	}

	end := fd.pos + int64(len(buf))
	if end > int64(len(fd.data)) {
		grown := make([]byte, end)
		copy(grown, fd.data)
		fd.data = grown
	}

	n := copy(fd.data[fd.pos:end], buf)
	fd.pos += int64(n)

	return n, nil
}

func (h *fakeHost) fstat(hfd int32, stat *unix.Stat_t) error {
	fd, ok := h.fds[hfd]
	if !ok {
		return unix.EBADF
	}

	*stat = unix.Stat_t{Size: int64(len(fd.data))}

	return nil
}

func (h *fakeHost) lseek(hfd int32, offset int64, whence int32) (int64, error) {
	fd, ok := h.fds[hfd]
	if !ok {
		return -1, unix.EBADF
	}

	switch whence {
	case unix.SEEK_SET:
		fd.pos = offset
	case unix.SEEK_CUR:
		fd.pos += offset
	case unix.SEEK_END:
		fd.pos = int64(len(fd.data)) + offset
	default:
		return -1, unix.EINVAL
	}

	return fd.pos, nil
}

func (h *fakeHost) dup(oldHFD int32) (int32, error) {
	fd, ok := h.fds[oldHFD]
	if !ok {
		return -1, unix.EBADF
	}

	newHFD, err := h.allocHFD()
	if err != nil {
		return -1, err
	}

	h.fds[newHFD] = fd // shared *fakeFD: dup shares the file offset, like a real dup.

	return newHFD, nil
}

func (h *fakeHost) unlink(_ string) error          { return nil }
func (h *fakeHost) symlink(_, _ string) error      { return nil }
func (h *fakeHost) readlink(_ string, _ []byte) (int, error) { return 0, nil }
func (h *fakeHost) getcwd(_ []byte) (int, error)   { return 0, nil }
func (h *fakeHost) chdir(_ string) error           { return nil }
func (h *fakeHost) mkdir(_ string, _ uint32) error { return nil }
func (h *fakeHost) rmdir(_ string) error           { return nil }

// newTestContext builds a Context backed by a fakeHost, for white-box
// component tests that don't need a real filesystem.
func newTestContext() *Context {
	ctx, err := newContext(MinMemLen, "/sandbox-root", newFakeHost())
	if err != nil {
		panic(err)
	}

	return ctx
}
