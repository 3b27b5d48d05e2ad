package cfs

import (
	"context"

	"github.com/kvsfs/kvsfs/dsal"
)

// alignBounds computes the block-aligned window [lo, hi) containing
// [x1, x2), for a block-aligned backend's read-modify-write splicing (spec
// §4.H "Block-aligned I/O").
func alignBounds(x1, x2, bs int64) (lo, hi int64) {
	lo = (x1 / bs) * bs
	hi = ((x2 + bs - 1) / bs) * bs
	return
}

// alignedWrite implements the read-modify-write splice spec §4.H requires
// when a backend insists on block-aligned regions: read the block(s)
// spanning the write, splice the caller's bytes in at the right offset,
// and write the whole aligned span back. This also correctly handles the
// "insider" case where both ends fall in the same block, since lo/hi then
// collapse to that one block.
func alignedWrite(ctx context.Context, ds dsal.Backend, h dsal.Handle, buf []byte, offset int64, bs int64) (int, error) {
	end := offset + int64(len(buf))
	lo, hi := alignBounds(offset, end, bs)

	// A short read past the object's current EOF leaves the tail of span at
	// its zero-fill from make, matching the hole semantics of a grown
	// object (spec §4.H "growth is a no-op hole").
	span := make([]byte, hi-lo)
	if _, err := ds.Pread(ctx, h, span, lo); err != nil {
		return 0, err
	}

	copy(span[offset-lo:], buf)

	if _, err := ds.Pwrite(ctx, h, span, lo); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// alignedRead is the read-side counterpart: read the aligned span covering
// [offset, offset+len(buf)) and copy out just the requested sub-range.
func alignedRead(ctx context.Context, ds dsal.Backend, h dsal.Handle, buf []byte, offset int64, bs int64) (int, error) {
	end := offset + int64(len(buf))
	lo, hi := alignBounds(offset, end, bs)

	span := make([]byte, hi-lo)
	n, err := ds.Pread(ctx, h, span, lo)
	if err != nil {
		return 0, err
	}
	span = span[:n]

	start := offset - lo
	if start >= int64(len(span)) {
		return 0, nil
	}
	return copy(buf, span[start:]), nil
}
