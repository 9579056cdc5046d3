// Package poller implements the readiness demuxer (spec component B) over
// Linux epoll via golang.org/x/sys/unix, grounded on original_source's
// Epoller (addFd/modFd/delFd/wait) with the ret==0-as-error bug it carried
// not reproduced: unix.EpollCtl already returns a proper error, so "no
// error" is simply nil rather than a sentinel integer a caller could
// invert.
package poller

import (
	"golang.org/x/sys/unix"
)

// Interest is a bitset of readiness conditions plus the two edge/one-shot
// modifiers, translated to epoll event bits in Add/Modify.
type Interest uint32

const (
	Read Interest = 1 << iota
	Write
	PeerHup
	ErrorEvent
	EdgeTriggered
	OneShot
)

func (i Interest) toEpollEvents() uint32 {
	var ev uint32
	if i&Read != 0 {
		ev |= unix.EPOLLIN
	}
	if i&Write != 0 {
		ev |= unix.EPOLLOUT
	}
	if i&PeerHup != 0 {
		ev |= unix.EPOLLRDHUP
	}
	if i&EdgeTriggered != 0 {
		ev |= unix.EPOLLET
	}
	if i&OneShot != 0 {
		ev |= unix.EPOLLONESHOT
	}
	return ev
}

func fromEpollEvents(ev uint32) Interest {
	var i Interest
	if ev&unix.EPOLLIN != 0 {
		i |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		i |= Write
	}
	if ev&(unix.EPOLLRDHUP|unix.EPOLLHUP) != 0 {
		i |= PeerHup
	}
	if ev&unix.EPOLLERR != 0 {
		i |= ErrorEvent
	}
	return i
}

// Event reports one fd's readiness set from Wait.
type Event struct {
	FD       int
	Interest Interest
}

// Demuxer is the interface the reactor programs against, keeping the
// epoll syscalls isolated to this package the way the teacher corpus
// isolates platform syscalls behind small per-OS files (socket/tuning_*.go).
type Demuxer interface {
	Add(fd int, interest Interest) error
	Modify(fd int, interest Interest) error
	Remove(fd int) error
	Wait(timeoutMS int) ([]Event, error)
	Close() error
}

// Epoll is the Linux epoll-backed Demuxer.
type Epoll struct {
	fd     int
	events []unix.EpollEvent
}

// New creates an epoll instance sized for maxEvents per Wait call.
func New(maxEvents int) (*Epoll, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Epoll{fd: fd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

func (e *Epoll) Add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: interest.toEpollEvents(), Fd: int32(fd)}
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (e *Epoll) Modify(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: interest.toEpollEvents(), Fd: int32(fd)}
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (e *Epoll) Remove(fd int) error {
	return unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks up to timeoutMS milliseconds (-1 blocks indefinitely, 0
// polls) and returns the ready set.
func (e *Epoll) Wait(timeoutMS int) ([]Event, error) {
	n, err := unix.EpollWait(e.fd, e.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Event{
			FD:       int(e.events[i].Fd),
			Interest: fromEpollEvents(e.events[i].Events),
		})
	}
	return out, nil
}

func (e *Epoll) Close() error {
	return unix.Close(e.fd)
}
