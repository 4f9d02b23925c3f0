package sandbox

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Test_GuestStat_Marshal_Roundtrip exercises Fstat's on-the-wire encoding:
// marshal a GuestStat, stage it through guest memory and back (the same
// path Fstat/CopyBufToSandbox use), decode it, and diff with go-cmp so a
// future field reorder or width change in GuestStat shows up as a
// readable diff instead of a raw byte mismatch.
func Test_GuestStat_Marshal_Roundtrip(t *testing.T) {
	t.Parallel()

	want := GuestStat{
		Dev:     1,
		Ino:     2,
		Mode:    0o100644,
		Nlink:   1,
		UID:     1000,
		GID:     1000,
		Rdev:    0,
		Size:    1234,
		Blksize: 4096,
		Blocks:  8,
		Atime:   111,
		Mtime:   222,
		Ctime:   333,
	}

	raw := want.marshal()
	if len(raw) != GuestStatSize {
		t.Fatalf("marshal length = %d, want %d", len(raw), GuestStatSize)
	}

	ctx := newTestContext()

	if err := ctx.CopyBufToSandbox(0, raw); err != nil {
		t.Fatalf("CopyBufToSandbox: %v", err)
	}

	back, err := ctx.CopyBufFromSandbox(0, uint64(len(raw)))
	if err != nil {
		t.Fatalf("CopyBufFromSandbox: %v", err)
	}

	var got GuestStat
	if err := binary.Read(bytes.NewReader(back), binary.LittleEndian, &got); err != nil {
		t.Fatalf("binary.Read: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GuestStat roundtrip mismatch (-want +got):\n%s", diff)
	}
}

// Test_Open_Rejects_Unrecognized_Flags is spec.md §6: "Unrecognized bits
// cause open to fail with -1." It must fail before ever reaching the host,
// so the fake host's fd table stays empty.
func Test_Open_Rejects_Unrecognized_Flags(t *testing.T) {
	t.Parallel()

	ctx := newTestContext()
	host := ctx.host.(*fakeHost)

	var path GPtr = 0
	if err := ctx.CopyBufToSandbox(path, []byte("f\x00")); err != nil {
		t.Fatalf("CopyBufToSandbox: %v", err)
	}

	const unrecognizedBit = 1 << 30 // well above any recognizedOpenFlags bit

	if r := ctx.Open(path, unrecognizedBit); r != -1 {
		t.Errorf("Open with unrecognized flags = %d, want -1", r)
	}

	if len(host.fds) != 0 {
		t.Errorf("host.fds = %v, want no host call performed", host.fds)
	}
}

// hfdOverrideHost wraps a *fakeHost and forces dup's return value, so tests
// can exercise the bound-check paths that a real host would only trigger
// after an implausibly long fd lifetime.
type hfdOverrideHost struct {
	*fakeHost
	forcedDupHFD int32
}

func (h *hfdOverrideHost) dup(oldHFD int32) (int32, error) {
	if _, err := h.fakeHost.dup(oldHFD); err != nil {
		return -1, err
	}

	return h.forcedDupHFD, nil
}

// Test_Dup2_Rejects_Out_Of_Range_Host_Fd exercises dup2Err's rollback when
// the host hands back an fd outside [0, MaxHostFDs): sealAt must reject it
// rather than index h2v out of bounds, so Dup2 returns -1 and newvfd stays
// unsealed. Whether the host fd is closed is not checked here.
func Test_Dup2_Rejects_Out_Of_Range_Host_Fd(t *testing.T) {
	t.Parallel()

	base := newFakeHost()
	ctx, err := newContext(MinMemLen, "/sandbox-root", &hfdOverrideHost{fakeHost: base, forcedDupHFD: MaxHostFDs})
	if err != nil {
		t.Fatalf("newContext: %v", err)
	}

	hfd, err := base.open("f", 0)
	if err != nil {
		t.Fatalf("base.open: %v", err)
	}

	oldvfd, err := ctx.CreateSeal(hfd)
	if err != nil {
		t.Fatalf("CreateSeal: %v", err)
	}

	if r := ctx.Dup2(oldvfd, 1); r != -1 {
		t.Fatalf("Dup2 with out-of-range host fd = %d, want -1", r)
	}

	if ctx.InFDMap(1) {
		t.Fatal("vfd 1 must not be sealed after a rejected dup2")
	}
}
