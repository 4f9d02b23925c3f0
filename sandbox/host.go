package sandbox

import (
	"golang.org/x/sys/unix"
)

// hostPrimitives is the Host Primitive Interface (C6): a strictly
// pass-through surface over the underlying OS. Implementations take
// already-validated host values (ranges checked, paths confined, fds
// sealed) and carry no policy of their own. Tests substitute a fake to
// exercise wrapper bookkeeping without touching the filesystem.
type hostPrimitives interface {
	open(path string, flags int32) (int32, error)
	close(hfd int32) error
	read(hfd int32, buf []byte) (int, error)
	write(hfd int32, buf []byte) (int, error)
	fstat(hfd int32, stat *unix.Stat_t) error
	lseek(hfd int32, offset int64, whence int32) (int64, error)
	dup(oldHFD int32) (int32, error)
	unlink(path string) error
	symlink(target, linkpath string) error
	readlink(path string, buf []byte) (int, error)
	getcwd(buf []byte) (int, error)
	chdir(path string) error
	mkdir(path string, mode uint32) error
	rmdir(path string) error
}

// realHostPrimitives is the production hostPrimitives: direct calls into
// golang.org/x/sys/unix, no buffering, no retry on EINTR (short reads/writes
// are returned verbatim per spec.md §4.5).
type realHostPrimitives struct{}

func (realHostPrimitives) open(path string, flags int32) (int32, error) {
	hfd, err := unix.Open(path, int(flags), 0o644)

	return int32(hfd), err
}

func (realHostPrimitives) close(hfd int32) error {
	return unix.Close(int(hfd))
}

func (realHostPrimitives) read(hfd int32, buf []byte) (int, error) {
	return unix.Read(int(hfd), buf)
}

func (realHostPrimitives) write(hfd int32, buf []byte) (int, error) {
	return unix.Write(int(hfd), buf)
}

func (realHostPrimitives) fstat(hfd int32, stat *unix.Stat_t) error {
	return unix.Fstat(int(hfd), stat)
}

func (realHostPrimitives) lseek(hfd int32, offset int64, whence int32) (int64, error) {
	return unix.Seek(int(hfd), offset, int(whence))
}

func (realHostPrimitives) dup(oldHFD int32) (int32, error) {
	newHFD, err := unix.Dup(int(oldHFD))

	return int32(newHFD), err
}

func (realHostPrimitives) unlink(path string) error {
	return unix.Unlink(path)
}

func (realHostPrimitives) symlink(target, linkpath string) error {
	return unix.Symlink(target, linkpath)
}

func (realHostPrimitives) readlink(path string, buf []byte) (int, error) {
	return unix.Readlink(path, buf)
}

func (realHostPrimitives) getcwd(buf []byte) (int, error) {
	return unix.Getcwd(buf)
}

func (realHostPrimitives) chdir(path string) error {
	return unix.Chdir(path)
}

func (realHostPrimitives) mkdir(path string, mode uint32) error {
	return unix.Mkdir(path, mode)
}

func (realHostPrimitives) rmdir(path string) error {
	return unix.Rmdir(path)
}
