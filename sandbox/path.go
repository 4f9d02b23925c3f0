package sandbox

import (
	"bytes"
	"path/filepath"
	"strings"
)

// PathMax is the fixed upper bound, in bytes, on a guest-supplied path used
// for copy-in, matching the Linux PATH_MAX.
const PathMax = 4096

// ResolvePath is C3's resolve_path: it copies a guest-named path out of
// guest memory, normalizes it, and confines it to ctx's authorized root.
//
//  1. Copies up to PathMax bytes from guest memory starting at gptrPath.
//  2. Fails with ErrInvalidPath if no NUL terminator is found in that
//     window.
//  3. Joins the (terminated) path against ctx.root and cleans the result,
//     collapsing "." and ".." segments.
//  4. Fails with ErrPathEscape if the cleaned result is not ctx.root or a
//     descendant of it.
func (ctx *Context) ResolvePath(gptrPath GPtr) (string, error) {
	window := PathMax
	if remaining := ctx.memlen - uint64(gptrPath); uint64(window) > remaining {
		window = int(remaining)
	}

	if uint64(gptrPath) > ctx.memlen || window <= 0 {
		return "", wrapErr("ResolvePath", TaxonomyInvalidPointer, nil)
	}

	raw := ctx.guestSlice(gptrPath, uint64(window))

	idx := bytes.IndexByte(raw, 0)
	if idx < 0 {
		return "", wrapErr("ResolvePath", TaxonomyInvalidPath, nil)
	}

	guestPath := string(raw[:idx])

	return ctx.confine(guestPath)
}

// confine normalizes guestPath against ctx.root and rejects any result that
// escapes it. Normalization collapses "." and ".." the way a real
// filesystem would, rather than pre-clamping "/" + guestPath first: a
// guest path is expected to fail outright when it tries to climb above the
// root, not be silently rewritten into a harmless one.
func (ctx *Context) confine(guestPath string) (string, error) {
	candidate := filepath.Join(ctx.root, guestPath)

	if candidate != ctx.root && !strings.HasPrefix(candidate, ctx.root+string(filepath.Separator)) {
		return "", wrapErr("ResolvePath", TaxonomyPathEscape, nil)
	}

	return candidate, nil
}
