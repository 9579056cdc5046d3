//go:build linux

package socket

import "golang.org/x/sys/unix"

// applyPlatformOptions applies Linux-specific connection options.
func applyPlatformOptions(fd int, cfg *Config) {
	if cfg.QuickAck {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	}
}

// applyListenerOptions applies Linux-specific listener options. Failures
// are non-fatal: the kernel may not support a given option, and the
// reactor falls back to plain accept semantics.
func applyListenerOptions(fd int, cfg *Config) error {
	var lastErr error
	if cfg.DeferAccept {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
