// Package conn implements the Connection (spec component G): two byte
// buffers, a parser, a responder, and the two-entry scatter-gather vector
// used by write_once. Grounded on original_source's HttpConnection plus
// shockwave's http11.Connection for the Go-side idiom of atomic state and
// idempotent Close via atomic.Bool.
package conn

import (
	"errors"
	"sync/atomic"

	"github.com/yourusername/reactord/internal/buffer"
	"github.com/yourusername/reactord/internal/httpcore"
	"golang.org/x/sys/unix"
)

var (
	// ErrReadShort is returned by ReadOnce when the peer closed the
	// connection (readv returned 0).
	ErrReadShort = errors.New("conn: peer closed connection")
)

// Connection owns one accepted socket's read/write buffers, parser, and
// responder. Exactly one worker touches a Connection at a time per
// spec.md §5; Connection itself does no locking.
type Connection struct {
	FD   int
	Peer string

	readBuf  *buffer.Buffer
	writeBuf *buffer.Buffer
	req      *httpcore.Request
	resp     httpcore.Response

	closed atomic.Bool

	// iov tracks the in-flight writev plan: iov[0] is the headers/
	// write-buffer region, iov[1] is the mmap'd body region (possibly
	// empty). Both are re-sliced as partial writes drain them.
	iov [2][]byte
}

// New wraps an accepted, non-blocking fd.
func New(fd int, peer string) *Connection {
	return &Connection{
		FD:       fd,
		Peer:     peer,
		readBuf:  buffer.New(),
		writeBuf: buffer.New(),
		req:      httpcore.NewRequest(),
	}
}

// ReadOnce performs a single readv into the read buffer. It returns the
// number of bytes read and any syscall error (including EAGAIN).
func (c *Connection) ReadOnce() (int, error) {
	n, err := c.readBuf.Fill(c.FD)
	if n == 0 && err == nil {
		return 0, ErrReadShort
	}
	return n, err
}

// Process runs the parser and, once a request completes, the responder,
// loading the result into the write vector. It returns true if the
// connection should switch its readiness interest to WRITE.
func (c *Connection) Process(srcRoot string, creds httpcore.CredentialStore) (wantWrite bool, err error) {
	progress, perr := c.req.Parse(c.readBuf, creds)
	if perr != nil {
		c.buildErrorResponse(srcRoot, 400)
		c.armWriteVector()
		return true, nil
	}
	if progress == httpcore.NeedMore {
		return false, nil
	}

	c.resp.Init(srcRoot, c.req.Path, c.req.IsKeepAlive(), -1)
	if err := c.resp.Build(c.writeBuf); err != nil {
		return false, err
	}
	c.armWriteVector()
	return true, nil
}

func (c *Connection) buildErrorResponse(srcRoot string, status int) {
	c.resp.Init(srcRoot, "/400.html", false, status)
	_ = c.resp.Build(c.writeBuf)
}

func (c *Connection) armWriteVector() {
	c.iov[0] = c.writeBuf.PeekRead()
	c.iov[1] = c.resp.Body()
}

// KeepAlive reports whether the most recently finished exchange wants
// the connection kept open.
func (c *Connection) KeepAlive() bool { return c.req.IsKeepAlive() }

// WriteOnce issues a single writev across the two-entry vector and
// advances both entries by the bytes consumed, per spec.md §4.G's
// partial-write handling rule. It returns true once the vector has fully
// drained.
func (c *Connection) WriteOnce() (drained bool, err error) {
	iovecs := make([]unix.Iovec, 0, 2)
	if len(c.iov[0]) > 0 {
		iovecs = append(iovecs, unix.Iovec{Base: &c.iov[0][0], Len: uint64(len(c.iov[0]))})
	}
	if len(c.iov[1]) > 0 {
		iovecs = append(iovecs, unix.Iovec{Base: &c.iov[1][0], Len: uint64(len(c.iov[1]))})
	}
	if len(iovecs) == 0 {
		return true, nil
	}

	n, werr := unix.Writev(c.FD, iovecs)
	if n > 0 {
		c.advanceIOV(n)
	}
	if werr != nil {
		return false, werr
	}
	return len(c.iov[0]) == 0 && len(c.iov[1]) == 0, nil
}

func (c *Connection) advanceIOV(n int) {
	if n <= len(c.iov[0]) {
		_ = c.writeBuf.AdvanceRead(n)
		c.iov[0] = c.iov[0][n:]
		return
	}
	rest := n - len(c.iov[0])
	_ = c.writeBuf.AdvanceRead(len(c.iov[0]))
	c.iov[0] = nil
	c.iov[1] = c.iov[1][rest:]
}

// ResetForNextRequest prepares the connection to parse another request
// on a keep-alive connection, releasing the previous response's mapping.
func (c *Connection) ResetForNextRequest() {
	c.resp.Release()
	c.req.Reset()
	c.writeBuf.Reset()
	c.iov[0], c.iov[1] = nil, nil
}

// Close unmaps any held response mapping, releases the buffers, and
// closes the fd. Idempotent via atomic.Bool per original_source's
// HttpConnection::closeConn pattern.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.resp.Release()
	c.readBuf.Release()
	c.writeBuf.Release()
	return unix.Close(c.FD)
}

// Closed reports whether Close has already run.
func (c *Connection) Closed() bool { return c.closed.Load() }
