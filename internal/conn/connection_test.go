package conn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/reactord/internal/kvstore"
	"golang.org/x/sys/unix"
)

// socketPair returns two connected, non-blocking Unix-domain socket fds.
func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestProcessBuildsResponseAfterFullRequest(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<p>hi</p>"), 0o644))

	serverFD, clientFD := socketPair(t)
	c := New(serverFD, "test-peer")

	_, err := unix.Write(clientFD, []byte("GET /index.html HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	n, err := c.ReadOnce()
	require.NoError(t, err)
	require.Greater(t, n, 0)

	wantWrite, err := c.Process(root, kvstore.New())
	require.NoError(t, err)
	require.True(t, wantWrite)
	require.False(t, c.KeepAlive())

	for {
		drained, werr := c.WriteOnce()
		require.NoError(t, werr)
		if drained {
			break
		}
	}

	buf := make([]byte, 4096)
	n, err = unix.Read(clientFD, buf)
	require.NoError(t, err)
	out := string(buf[:n])
	require.Contains(t, out, "HTTP/1.1 200 OK")
	require.Contains(t, out, "<p>hi</p>")
}

func TestProcessNeedsMoreReturnsNoWrite(t *testing.T) {
	serverFD, clientFD := socketPair(t)
	c := New(serverFD, "test-peer")

	_, err := unix.Write(clientFD, []byte("GET /index.html HTTP/1.1\r\n"))
	require.NoError(t, err)

	_, err = c.ReadOnce()
	require.NoError(t, err)

	wantWrite, err := c.Process(t.TempDir(), nil)
	require.NoError(t, err)
	require.False(t, wantWrite)
}

func TestCloseIsIdempotent(t *testing.T) {
	serverFD, _ := socketPair(t)
	c := New(serverFD, "test-peer")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.True(t, c.Closed())
}

func TestResetForNextRequestClearsParserAndBuffers(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("ok"), 0o644))

	serverFD, clientFD := socketPair(t)
	c := New(serverFD, "test-peer")

	_, err := unix.Write(clientFD, []byte("GET /index.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"))
	require.NoError(t, err)
	_, err = c.ReadOnce()
	require.NoError(t, err)

	wantWrite, err := c.Process(root, kvstore.New())
	require.NoError(t, err)
	require.True(t, wantWrite)
	require.True(t, c.KeepAlive())

	for {
		drained, werr := c.WriteOnce()
		require.NoError(t, werr)
		if drained {
			break
		}
	}

	c.ResetForNextRequest()
	require.Equal(t, 0, c.writeBuf.ReadableLen())
}
