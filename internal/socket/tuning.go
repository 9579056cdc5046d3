// Package socket applies listen/accept socket tuning for the reactor's
// raw, non-blocking file descriptors. Unlike a net.Listener-based server,
// the reactor owns fds directly (see internal/reactor), so every option
// here is applied with golang.org/x/sys/unix against an fd rather than a
// net.Conn.
package socket

import "golang.org/x/sys/unix"

// Config represents socket tuning configuration. Zero values mean "use
// system defaults".
type Config struct {
	// NoDelay disables Nagle's algorithm (TCP_NODELAY). Recommended for
	// HTTP/1.1 request/response traffic.
	NoDelay bool

	// RecvBuffer sets SO_RCVBUF in bytes. 0 means leave the system default.
	RecvBuffer int

	// SendBuffer sets SO_SNDBUF in bytes. 0 means leave the system default.
	SendBuffer int

	// QuickAck requests immediate ACKs (TCP_QUICKACK, Linux only).
	QuickAck bool

	// DeferAccept avoids waking the acceptor until data has arrived
	// (TCP_DEFER_ACCEPT, Linux only).
	DeferAccept bool

	// KeepAlive enables SO_KEEPALIVE.
	KeepAlive bool
}

// DefaultConfig returns the tuning used by the demo reactor: low-latency
// request/response traffic over short-lived keep-alive connections.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		QuickAck:    true,
		DeferAccept: true,
		KeepAlive:   true,
	}
}

// Apply tunes an accepted connection fd. Non-critical options are applied
// best-effort; only TCP_NODELAY failures are returned, since it is the one
// option that materially affects the spec's request/response latency.
func Apply(fd int, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if cfg.NoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return err
		}
	}
	if cfg.RecvBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBuffer)
	}
	if cfg.SendBuffer > 0 {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBuffer)
	}
	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}
	applyPlatformOptions(fd, cfg)
	return nil
}

// ApplyListener tunes the bound listen fd before the accept loop starts.
func ApplyListener(fd int, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return applyListenerOptions(fd, cfg)
}
