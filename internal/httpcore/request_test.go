package httpcore

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/reactord/internal/buffer"
)

type fakeCreds map[string]string

func (f fakeCreds) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func newBuf(s string) *buffer.Buffer {
	b := buffer.New()
	b.Append([]byte(s))
	return b
}

func TestParseSimpleGETRootRewritesToLoginHTML(t *testing.T) {
	buf := newBuf("GET / HTTP/1.1\r\nHost: x\r\n\r\n")
	req := NewRequest()

	progress, err := req.Parse(buf, nil)
	require.NoError(t, err)
	require.Equal(t, Complete, progress)
	require.Equal(t, "/login.html", req.Path)
	require.Equal(t, "GET", req.Method)
	require.Equal(t, "1.1", req.Version)
}

func TestParseShortNameGetsHTMLSuffix(t *testing.T) {
	buf := newBuf("GET /index HTTP/1.1\r\n\r\n")
	req := NewRequest()
	_, err := req.Parse(buf, nil)
	require.NoError(t, err)
	require.Equal(t, "/index.html", req.Path)
}

func TestParseUnknownPathIsUnchanged(t *testing.T) {
	buf := newBuf("GET /style.css HTTP/1.1\r\n\r\n")
	req := NewRequest()
	_, err := req.Parse(buf, nil)
	require.NoError(t, err)
	require.Equal(t, "/style.css", req.Path)
}

func TestParseNeedsMoreWhenHeadersIncomplete(t *testing.T) {
	buf := newBuf("GET / HTTP/1.1\r\n")
	req := NewRequest()
	progress, err := req.Parse(buf, nil)
	require.NoError(t, err)
	require.Equal(t, NeedMore, progress)
}

func TestParseMalformedRequestLineIsBadRequest(t *testing.T) {
	buf := newBuf("GARBAGE\r\n\r\n")
	req := NewRequest()
	_, err := req.Parse(buf, nil)
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestIsKeepAliveRequiresHTTP11AndHeader(t *testing.T) {
	buf := newBuf("GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	req := NewRequest()
	_, err := req.Parse(buf, nil)
	require.NoError(t, err)
	require.True(t, req.IsKeepAlive())
}

func TestIsKeepAliveFalseOnHTTP10(t *testing.T) {
	buf := newBuf("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	req := NewRequest()
	_, err := req.Parse(buf, nil)
	require.NoError(t, err)
	require.False(t, req.IsKeepAlive())
}

func TestParseBodyWithContentLength(t *testing.T) {
	body := "username=admin&password=123456"
	raw := "POST /doLogin HTTP/1.1\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	buf := newBuf(raw)
	req := NewRequest()
	creds := fakeCreds{"admin": "123456"}

	progress, err := req.Parse(buf, creds)
	require.NoError(t, err)
	require.Equal(t, Complete, progress)
	require.Equal(t, "/index.html", req.Path)
	require.Equal(t, "admin", req.Post["username"])
}

func TestParseBodyWithContentLengthNeedsMoreUntilFullyBuffered(t *testing.T) {
	body := "username=admin&password=123456"
	head := "POST /doLogin HTTP/1.1\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n"
	buf := newBuf(head + body[:5])
	req := NewRequest()

	progress, err := req.Parse(buf, nil)
	require.NoError(t, err)
	require.Equal(t, NeedMore, progress)
}

func TestParseBadLoginDoesNotRewritePath(t *testing.T) {
	body := "username=admin&password=wrong"
	raw := "POST /doLogin HTTP/1.1\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	buf := newBuf(raw)
	req := NewRequest()
	creds := fakeCreds{"admin": "123456"}

	_, err := req.Parse(buf, creds)
	require.NoError(t, err)
	require.Equal(t, "/doLogin", req.Path)
}

func TestResetClearsStateForNextRequest(t *testing.T) {
	buf := newBuf("GET /index HTTP/1.1\r\nConnection: keep-alive\r\n\r\n")
	req := NewRequest()
	_, err := req.Parse(buf, nil)
	require.NoError(t, err)

	req.Reset()
	require.Equal(t, StateRequestLine, req.State())
	require.Empty(t, req.Path)
	require.Empty(t, req.Headers)
}
