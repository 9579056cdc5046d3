// Package buffer implements the dual-region append/consume byte buffer
// that backs every connection's read and write sides. It is modeled on
// original_source's Buffer (readPos/writePos over a contiguous byte
// region, readv-assisted fill via a stack overflow region) adapted to
// Go's slice-of-bytes idiom, with backing storage drawn from
// bytebufferpool instead of a raw make([]byte, n) so repeated connection
// churn reuses capacity.
package buffer

import (
	"errors"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"
)

// overflowSize is the size of the stack-resident secondary iovec used by
// Fill to let a single readv ingest more than the buffer's current
// writable region in one syscall.
const overflowSize = 64 * 1024

const defaultCapacity = 1024

var (
	// ErrNothingToAdvance is returned by AdvanceRead when n exceeds the
	// readable region.
	ErrNothingToAdvance = errors.New("buffer: advance exceeds readable region")
)

// Buffer is a grow-on-demand append/consume region. Bytes in [r, w) are
// readable, bytes in [w, cap) are writable, bytes in [0, r) are
// reclaimable. It is not safe for concurrent use; spec.md §5 restricts
// buffer access to exactly one worker at a time per connection.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
	// buf is the storage backing this Buffer; its length is always the
	// full capacity, not merely the written prefix.
	buf  []byte
	r, w int
}

// New returns an empty Buffer with at least defaultCapacity bytes of
// backing storage, drawn from the shared bytebufferpool.
func New() *Buffer {
	b := &Buffer{bb: bytebufferpool.Get()}
	b.buf = growSlice(b.bb.B[:0], defaultCapacity)
	return b
}

// Release returns the backing storage to the pool. The Buffer must not be
// used afterward.
func (b *Buffer) Release() {
	b.bb.B = b.buf[:0]
	bytebufferpool.Put(b.bb)
	b.buf = nil
	b.r, b.w = 0, 0
}

func growSlice(s []byte, n int) []byte {
	if cap(s) >= n {
		return s[:n]
	}
	grown := make([]byte, n)
	copy(grown, s)
	return grown
}

// ReadableLen returns the number of bytes available to consume.
func (b *Buffer) ReadableLen() int { return b.w - b.r }

// WritableLen returns the number of bytes available to append without
// compacting or growing.
func (b *Buffer) WritableLen() int { return len(b.buf) - b.w }

// ReclaimableLen returns the number of already-consumed bytes at the
// front of the region that compaction would reclaim.
func (b *Buffer) ReclaimableLen() int { return b.r }

// PeekRead returns the readable region [r, w) without consuming it.
func (b *Buffer) PeekRead() []byte { return b.buf[b.r:b.w] }

// PeekWrite returns the writable region [w, cap) for direct writes
// followed by AdvanceWrite.
func (b *Buffer) PeekWrite() []byte { return b.buf[b.w:] }

// AdvanceRead consumes n bytes from the readable region.
func (b *Buffer) AdvanceRead(n int) error {
	if n < 0 || n > b.ReadableLen() {
		return ErrNothingToAdvance
	}
	b.r += n
	if b.r == b.w {
		// Nothing left to read; reset to the front so the whole capacity
		// becomes writable again without a compaction pass.
		b.r, b.w = 0, 0
	}
	return nil
}

// AdvanceReadTo consumes every readable byte before offsetFromReadStart,
// an offset relative to PeekRead's start (r), exactly like AdvanceRead.
// It is a convenience for parsers that locate a delimiter with
// bytes.Index over PeekRead() and want to advance by that offset.
func (b *Buffer) AdvanceReadTo(offsetFromReadStart int) error {
	return b.AdvanceRead(offsetFromReadStart)
}

// AdvanceWrite records that n bytes were written into PeekWrite()'s
// region, e.g. after a direct copy or syscall.
func (b *Buffer) AdvanceWrite(n int) {
	b.w += n
}

// EnsureWritable guarantees WritableLen() >= n after return, compacting
// first and growing only if compaction is insufficient.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableLen() >= n {
		return
	}
	b.compact()
	if b.WritableLen() >= n {
		return
	}
	newCap := b.w + n + 1
	b.buf = growSlice(b.buf, newCap)
}

func (b *Buffer) compact() {
	if b.r == 0 {
		return
	}
	readable := b.ReadableLen()
	copy(b.buf, b.buf[b.r:b.w])
	b.r = 0
	b.w = readable
}

// Append copies p into the buffer, growing as needed.
func (b *Buffer) Append(p []byte) {
	b.EnsureWritable(len(p))
	b.w += copy(b.buf[b.w:], p)
}

// Reset discards all buffered content without releasing backing storage.
func (b *Buffer) Reset() {
	b.r, b.w = 0, 0
}

// Fill performs one readv(2) from fd into the writable region plus a
// stack-resident overflow iovec, so a single syscall can ingest more than
// currently fits. Any bytes landing in the overflow region are appended
// to the buffer (growing it if necessary) before Fill returns. It
// returns the total number of bytes read and the syscall error, if any
// (including unix.EAGAIN on a non-blocking fd with no data ready).
func (b *Buffer) Fill(fd int) (int, error) {
	var overflow [overflowSize]byte
	writable := b.PeekWrite()
	iov := []unix.Iovec{
		{Base: sliceBase(writable), Len: uint64(len(writable))},
		{Base: &overflow[0], Len: overflowSize},
	}
	if len(writable) == 0 {
		iov = iov[1:]
	}
	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return n, err
	}
	if n <= len(writable) {
		b.AdvanceWrite(n)
		return n, err
	}
	b.AdvanceWrite(len(writable))
	b.Append(overflow[:n-len(writable)])
	return n, err
}

func sliceBase(p []byte) *byte {
	if len(p) == 0 {
		return nil
	}
	return &p[0]
}

// Drain issues a single non-iovec write(2) of the readable region to fd
// and advances r by the number of bytes actually written.
func (b *Buffer) Drain(fd int) (int, error) {
	readable := b.PeekRead()
	if len(readable) == 0 {
		return 0, nil
	}
	n, err := unix.Write(fd, readable)
	if n > 0 {
		_ = b.AdvanceRead(n)
	}
	return n, err
}
