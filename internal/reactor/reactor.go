// Package reactor implements the listen-socket lifecycle, accept loop,
// and dispatch (spec component H). Grounded on original_source's
// TaoWebserver for the run()/handleListen_/onRead_/onProcess_/onWrite_
// control flow, reworked into Go: raw epoll fds via internal/poller,
// readv/writev via internal/buffer and internal/conn, and dispatch to
// internal/workerpool instead of a C++ thread pool.
package reactor

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/reactord/internal/conn"
	"github.com/yourusername/reactord/internal/config"
	"github.com/yourusername/reactord/internal/httpcore"
	"github.com/yourusername/reactord/internal/kvstore"
	"github.com/yourusername/reactord/internal/logging"
	"github.com/yourusername/reactord/internal/poller"
	"github.com/yourusername/reactord/internal/socket"
	"github.com/yourusername/reactord/internal/timer"
	"github.com/yourusername/reactord/internal/workerpool"
	"golang.org/x/sys/unix"
)

// maxFD is the process-wide connection cap (spec.md §6): accepts beyond
// this are sent the literal "Server busy!" and closed.
const maxFD = 65536

// Reactor owns the listen socket, the demuxer, the timer heap, and the
// connection table. Per spec.md §5, the reactor goroutine exclusively
// owns all of these; workers only read and mutate individual Connections
// borrowed for one unit of work. Workers that decide a connection must
// close do not touch the table, timer, or demuxer themselves — they hand
// the fd to closeQueue and wake the reactor via wakeFD, and only the
// reactor goroutine ever calls closeConn.
type Reactor struct {
	cfg   *config.Config
	log   *logging.Logger
	demux poller.Demuxer
	timer *timer.Timer
	pool  *workerpool.Pool
	creds *kvstore.SkipList

	listenFD int
	wakeFD   int
	conns    map[int]*conn.Connection

	closeMu    sync.Mutex
	closeQueue []int

	ready  chan struct{}
	closed atomic.Bool
}

// New constructs a Reactor without starting it; call Run to bind, listen,
// and enter the event loop.
func New(cfg *config.Config, log *logging.Logger) (*Reactor, error) {
	if log == nil {
		log = logging.Nop()
	}
	demux, err := poller.New(1024)
	if err != nil {
		return nil, fmt.Errorf("reactor: create poller: %w", err)
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		demux.Close()
		return nil, fmt.Errorf("reactor: create wake eventfd: %w", err)
	}
	creds := kvstore.New()
	kvstore.SeedDemoCredentials(creds)

	return &Reactor{
		cfg:    cfg,
		log:    log,
		demux:  demux,
		timer:  timer.New(),
		pool:   workerpool.New(cfg.WorkerCount),
		creds:  creds,
		wakeFD: wakeFD,
		conns:  make(map[int]*conn.Connection),
		ready:  make(chan struct{}),
	}, nil
}

// Ready is closed once the listen socket is bound and the event loop has
// started waiting for connections. Embedders (and tests) that need to
// know when Run has actually started serving should select on it rather
// than sleeping.
func (r *Reactor) Ready() <-chan struct{} { return r.ready }

// listenInterest/connInterest compute the base (non-readiness) interest
// bits for the listen and connection fds, per original_source's
// initEventMode_.
func (r *Reactor) listenInterest() poller.Interest {
	i := poller.Read | poller.PeerHup
	if r.cfg.TriggerMode.ListenEdge() {
		i |= poller.EdgeTriggered
	}
	return i
}

func (r *Reactor) connBaseInterest() poller.Interest {
	i := poller.PeerHup | poller.OneShot
	if r.cfg.TriggerMode.ConnEdge() {
		i |= poller.EdgeTriggered
	}
	return i
}

// Run binds the listen socket and runs the event loop until Close is
// called from another goroutine or a fatal startup error occurs.
func (r *Reactor) Run() error {
	if err := r.initSocket(); err != nil {
		return err
	}
	defer unix.Close(r.listenFD)
	defer unix.Close(r.wakeFD)
	defer r.demux.Close()
	defer r.pool.Shutdown()

	if err := r.demux.Add(r.listenFD, r.listenInterest()); err != nil {
		return fmt.Errorf("reactor: add listen fd: %w", err)
	}
	if err := r.demux.Add(r.wakeFD, poller.Read); err != nil {
		return fmt.Errorf("reactor: add wake fd: %w", err)
	}

	r.log.Infof("listening on port %d (workers=%d, mode=%d)", r.cfg.Port, r.cfg.WorkerCount, r.cfg.TriggerMode.Normalize())
	close(r.ready)

	for !r.closed.Load() {
		timeoutMS := -1
		if r.cfg.IdleTimeoutMS > 0 {
			timeoutMS = r.timer.Tick()
		}
		events, err := r.demux.Wait(timeoutMS)
		if err != nil {
			return fmt.Errorf("reactor: wait: %w", err)
		}
		// Apply any closes workers queued up before touching the
		// connection table, timer, or demuxer ourselves — this keeps
		// those three pieces of state mutated only from this goroutine,
		// per spec.md §5, and must run before handleListen below so an
		// about-to-be-reused fd number is never closed out from under a
		// freshly accepted connection.
		r.drainCloseQueue()
		for _, ev := range events {
			r.dispatch(ev)
		}
	}
	return nil
}

// Close requests the event loop stop. It pings wakeFD so a Wait blocked
// indefinitely (idle timeout disabled) observes the request promptly
// instead of waiting for the next unrelated readiness event.
func (r *Reactor) Close() {
	r.closed.Store(true)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(r.wakeFD, buf[:])
}

func (r *Reactor) dispatch(ev poller.Event) {
	if ev.FD == r.listenFD {
		r.handleListen()
		return
	}
	if ev.FD == r.wakeFD {
		r.drainWake()
		return
	}
	c, ok := r.conns[ev.FD]
	if !ok {
		return
	}
	if ev.Interest&(poller.PeerHup|poller.ErrorEvent) != 0 {
		r.closeConn(c)
		return
	}
	if ev.Interest&poller.Read != 0 {
		r.extendTimer(c)
		r.pool.Submit(func() { r.onRead(c) })
		return
	}
	if ev.Interest&poller.Write != 0 {
		r.extendTimer(c)
		r.pool.Submit(func() { r.onWrite(c) })
	}
}

func (r *Reactor) initSocket() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		r.log.Errorf("create socket error: %v", err)
		return fmt.Errorf("reactor: socket: %w", err)
	}

	if r.cfg.LingerClose {
		_ = unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 1})
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		r.log.Errorf("setsockopt SO_REUSEADDR error: %v", err)
		return fmt.Errorf("reactor: setsockopt: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: r.cfg.Port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		r.log.Errorf("bind port %d error: %v", r.cfg.Port, err)
		return fmt.Errorf("reactor: bind port %d: %w", r.cfg.Port, err)
	}
	if err := unix.Listen(fd, 6); err != nil {
		unix.Close(fd)
		r.log.Errorf("listen port %d error: %v", r.cfg.Port, err)
		return fmt.Errorf("reactor: listen port %d: %w", r.cfg.Port, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("reactor: set nonblock: %w", err)
	}
	_ = socket.ApplyListener(fd, nil)

	r.listenFD = fd
	return nil
}

// handleListen accepts as many pending connections as are ready: once if
// the listen fd is level-triggered, repeatedly until EAGAIN if
// edge-triggered, per original_source's do/while(listenEvent_ & EPOLLET).
func (r *Reactor) handleListen() {
	for {
		fd, sa, err := unix.Accept4(r.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err != unix.EAGAIN {
				r.log.Warnf("accept error: %v", err)
			}
			return
		}
		if len(r.conns) >= maxFD {
			r.sendBusy(fd)
			r.log.Warnf("connection table full, rejecting fd %d", fd)
		} else {
			r.addClientConnection(fd, sa)
		}
		if !r.cfg.TriggerMode.ListenEdge() {
			return
		}
	}
}

func (r *Reactor) sendBusy(fd int) {
	_, _ = unix.Write(fd, []byte("Server busy!"))
	unix.Close(fd)
}

func (r *Reactor) addClientConnection(fd int, sa unix.Sockaddr) {
	_ = socket.Apply(fd, nil)
	c := conn.New(fd, peerString(sa))
	r.conns[fd] = c

	if r.cfg.IdleTimeoutMS > 0 {
		r.timer.Add(fd, time.Duration(r.cfg.IdleTimeoutMS)*time.Millisecond, func() {
			r.closeConn(c)
		})
	}
	if err := r.demux.Add(fd, poller.Read|r.connBaseInterest()); err != nil {
		r.log.Warnf("add fd %d to poller failed: %v", fd, err)
		r.closeConn(c)
	}
}

// closeConn performs the actual table/timer/demuxer teardown. Per
// spec.md §5 ("entries are removed only by the reactor") this must only
// ever run on the reactor goroutine: from dispatch's PEER_HUP/ERROR
// branch, from a fired idle timer, from addClientConnection when
// registering a new fd fails (all already reactor-goroutine calls), or
// from drainCloseQueue. Workers never call this directly — see
// requestClose.
func (r *Reactor) closeConn(c *conn.Connection) {
	if c.Closed() {
		return
	}
	r.timer.Cancel(c.FD)
	_ = r.demux.Remove(c.FD)
	delete(r.conns, c.FD)
	if err := c.Close(); err != nil {
		r.log.Warnf("close fd %d: %v", c.FD, err)
	}
}

// requestClose is how a worker goroutine asks the reactor to tear down a
// connection. It only appends to a mutex-guarded queue and pings wakeFD;
// the actual conns/timer/demuxer mutation happens later on the reactor
// goroutine via drainCloseQueue, keeping that state single-writer per
// spec.md §5's "workers... may mark the connection closed, which the
// reactor observes later."
func (r *Reactor) requestClose(fd int) {
	r.closeMu.Lock()
	r.closeQueue = append(r.closeQueue, fd)
	r.closeMu.Unlock()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(r.wakeFD, buf[:])
}

// drainCloseQueue runs on the reactor goroutine only, applying every
// close a worker queued up via requestClose since the last iteration.
func (r *Reactor) drainCloseQueue() {
	r.closeMu.Lock()
	fds := r.closeQueue
	r.closeQueue = nil
	r.closeMu.Unlock()

	for _, fd := range fds {
		if c, ok := r.conns[fd]; ok {
			r.closeConn(c)
		}
	}
}

// drainWake resets wakeFD's counter so the next requestClose wakes a
// blocked demux.Wait again instead of epoll reporting it level-triggered
// forever.
func (r *Reactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakeFD, buf[:])
}

func (r *Reactor) extendTimer(c *conn.Connection) {
	if r.cfg.IdleTimeoutMS > 0 {
		r.timer.Update(c.FD, time.Duration(r.cfg.IdleTimeoutMS)*time.Millisecond)
	}
}

// onRead runs on a worker goroutine: drain readv until EAGAIN (edge mode)
// or once (level mode), then process and re-arm.
func (r *Reactor) onRead(c *conn.Connection) {
	for {
		n, err := c.ReadOnce()
		if n <= 0 {
			if err != nil && err != unix.EAGAIN {
				r.requestClose(c.FD)
				return
			}
			break
		}
		if !r.cfg.TriggerMode.ConnEdge() {
			break
		}
	}
	r.onProcess(c)
}

func (r *Reactor) onProcess(c *conn.Connection) {
	wantWrite, err := c.Process(r.cfg.SourceRoot, r.creds)
	if err != nil {
		r.requestClose(c.FD)
		return
	}
	interest := r.connBaseInterest()
	if wantWrite {
		interest |= poller.Write
	} else {
		interest |= poller.Read
	}
	if err := r.demux.Modify(c.FD, interest); err != nil {
		r.requestClose(c.FD)
	}
}

// onWrite runs on a worker goroutine: drain the write vector, then either
// loop back into onProcess on keep-alive or close.
func (r *Reactor) onWrite(c *conn.Connection) {
	drained, err := c.WriteOnce()
	for !drained && err == nil {
		drained, err = c.WriteOnce()
	}
	if drained {
		if c.KeepAlive() {
			c.ResetForNextRequest()
			r.onProcess(c)
			return
		}
		r.requestClose(c.FD)
		return
	}
	if err == unix.EAGAIN {
		interest := r.connBaseInterest() | poller.Write
		if merr := r.demux.Modify(c.FD, interest); merr != nil {
			r.requestClose(c.FD)
		}
		return
	}
	r.requestClose(c.FD)
}

func peerString(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3], addr.Port)
	default:
		return "unknown"
	}
}

// *kvstore.SkipList satisfies httpcore.CredentialStore directly; the
// interface boundary (spec.md §9's "inject a CredentialStore interface")
// is enforced at httpcore's package boundary, not by a wrapper type here.
var _ httpcore.CredentialStore = (*kvstore.SkipList)(nil)
