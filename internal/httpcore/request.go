package httpcore

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourusername/reactord/internal/buffer"
)

// State is the request parser's state machine position.
type State int

const (
	StateRequestLine State = iota
	StateHeaders
	StateBody
	StateFinish
)

// Progress reports whether Parse consumed a complete request or needs
// more bytes.
type Progress int

const (
	NeedMore Progress = iota
	Complete
)

// defaultHTMLShortNames are paths that get ".html" appended if matched
// exactly, per original_source's HttpRequest::DEFAULT_HTML.
var defaultHTMLShortNames = map[string]bool{
	"/login": true,
	"/index": true,
}

// Request holds the parser's accumulated state for one HTTP/1.1 exchange.
type Request struct {
	state State

	Method  string
	Path    string
	Version string
	Headers map[string]string
	Post    map[string]string
	Body    []byte

	contentLength    int
	haveContentLength bool
	bodyConsumed      int
}

// NewRequest returns a Request ready to parse a fresh exchange.
func NewRequest() *Request {
	return &Request{
		state:   StateRequestLine,
		Headers: make(map[string]string),
		Post:    make(map[string]string),
	}
}

// Reset clears a Request for reuse on the next exchange over a
// keep-alive connection.
func (r *Request) Reset() {
	r.state = StateRequestLine
	r.Method, r.Path, r.Version = "", "", ""
	for k := range r.Headers {
		delete(r.Headers, k)
	}
	for k := range r.Post {
		delete(r.Post, k)
	}
	r.Body = nil
	r.contentLength = 0
	r.haveContentLength = false
	r.bodyConsumed = 0
}

// State returns the parser's current state.
func (r *Request) State() State { return r.state }

// IsKeepAlive reports whether this exchange should keep the connection
// open: HTTP/1.1 and an explicit "Connection: keep-alive" header.
func (r *Request) IsKeepAlive() bool {
	return r.Version == "1.1" && strings.EqualFold(r.Headers["Connection"], "keep-alive")
}

// Parse drives the state machine forward using bytes available in buf,
// consuming from buf as it completes each state. It returns NeedMore if
// no further progress can be made without more bytes (e.g. no CRLF found
// yet in REQUEST_LINE/HEADERS), or Complete once the state reaches
// FINISH.
func (r *Request) Parse(buf *buffer.Buffer, creds CredentialStore) (Progress, error) {
	for r.state != StateFinish {
		switch r.state {
		case StateRequestLine, StateHeaders:
			readable := buf.PeekRead()
			idx := bytes.Index(readable, []byte("\r\n"))
			if idx < 0 {
				return NeedMore, nil
			}
			line := readable[:idx]
			if r.state == StateRequestLine {
				if err := r.parseRequestLine(line); err != nil {
					return NeedMore, err
				}
				r.parsePath()
			} else {
				if len(line) == 0 {
					// Blank line ends headers.
					_ = buf.AdvanceRead(idx + 2)
					r.enterBody(buf)
					continue
				}
				r.parseHeaderLine(line)
			}
			_ = buf.AdvanceRead(idx + 2)

		case StateBody:
			if !r.consumeBody(buf, creds) {
				return NeedMore, nil
			}
		}
	}
	return Complete, nil
}

func (r *Request) enterBody(buf *buffer.Buffer) {
	if cl, ok := r.Headers["Content-Length"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(cl)); err == nil && n >= 0 {
			r.contentLength = n
			r.haveContentLength = true
		}
	}
	if r.haveContentLength && r.contentLength > 0 {
		r.state = StateBody
		return
	}
	if buf.ReadableLen() <= 2 {
		r.state = StateFinish
		return
	}
	r.state = StateBody
}

// consumeBody implements spec.md §4.E's BODY state plus the
// Content-Length resolution from §9's open question: when
// Content-Length was sent, read exactly that many bytes as the body;
// otherwise fall back to the documented one-logical-line limitation
// inherited from the reference implementation.
func (r *Request) consumeBody(buf *buffer.Buffer, creds CredentialStore) bool {
	if r.haveContentLength {
		if buf.ReadableLen() < r.contentLength {
			return false
		}
		r.Body = append([]byte(nil), buf.PeekRead()[:r.contentLength]...)
		_ = buf.AdvanceRead(r.contentLength)
	} else {
		readable := buf.PeekRead()
		idx := bytes.Index(readable, []byte("\r\n"))
		if idx < 0 {
			if len(readable) == 0 {
				r.Body = nil
			} else {
				return false
			}
		} else {
			r.Body = append([]byte(nil), readable[:idx]...)
			_ = buf.AdvanceRead(idx + 2)
		}
	}
	r.parsePost(creds)
	r.state = StateFinish
	return true
}

func (r *Request) parseRequestLine(line []byte) error {
	parts := bytes.Fields(line)
	if len(parts) != 3 {
		return ErrBadRequest
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if len(method) == 0 || len(target) == 0 {
		return ErrBadRequest
	}
	const prefix = "HTTP/"
	if !bytes.HasPrefix(proto, []byte(prefix)) {
		return ErrBadRequest
	}
	r.Method = string(method)
	r.Path = string(target)
	r.Version = string(proto[len(prefix):])
	r.state = StateHeaders
	return nil
}

// parsePath applies the path-rewrite rules of spec.md §3: "/" becomes
// "/login.html"; a path matching the known-short-name set gets ".html"
// appended; "/doLogin" is passed through unchanged to be resolved by the
// login side-effect in parsePost.
func (r *Request) parsePath() {
	switch {
	case r.Path == "/":
		r.Path = "/login.html"
	case r.Path == "/doLogin":
		// unchanged
	case defaultHTMLShortNames[r.Path]:
		r.Path += ".html"
	}
}

func (r *Request) parseHeaderLine(line []byte) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return
	}
	name := string(bytes.TrimSpace(line[:idx]))
	value := string(bytes.TrimSpace(line[idx+1:]))
	r.Headers[name] = value
}

// parsePost form-decodes the body into the Post map when the method is
// POST and Content-Type is application/x-www-form-urlencoded, then
// applies the credential-form side-effect of spec.md §4.E.
func (r *Request) parsePost(creds CredentialStore) {
	if r.Method != "POST" || r.Headers["Content-Type"] != "application/x-www-form-urlencoded" {
		return
	}
	if len(r.Body) == 0 {
		return
	}
	values, err := url.ParseQuery(string(r.Body))
	if err != nil {
		return
	}
	for k, vs := range values {
		if len(vs) > 0 {
			r.Post[k] = vs[len(vs)-1]
		}
	}

	if r.Path != "/doLogin" {
		return
	}
	username, password := r.Post["username"], r.Post["password"]
	if username == "" {
		return
	}
	if creds == nil {
		return
	}
	if want, ok := creds.Get(username); ok && want == password {
		r.Path = "/index.html"
	}
}
