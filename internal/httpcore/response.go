package httpcore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yourusername/reactord/internal/buffer"
	"golang.org/x/sys/unix"
)

// suffixType mirrors original_source's HttpResponse::SUFFIX_TYPE content
// type table.
var suffixType = map[string]string{
	".html":  "text/html",
	".xml":   "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":   "text/plain",
	".rtf":   "application/rtf",
	".pdf":   "application/pdf",
	".word":  "application/nsword",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".au":    "audio/basic",
	".mpeg":  "video/mpeg",
	".mpg":   "video/mpeg",
	".avi":   "video/x-msvideo",
	".gz":    "application/x-gzip",
	".tar":   "application/x-tar",
	".css":   "text/css",
	".js":    "text/javascript",
}

var codeStatus = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
}

var codePath = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// Response builds a status line + headers + mmap-backed body into a
// write buffer (spec component F). It owns its mmap mapping for the
// lifetime of one response; Release must be called before reuse.
type Response struct {
	srcRoot   string
	path      string
	keepAlive bool
	status    int // -1 means unset

	mapped []byte // nil if no mapping is held
	err    error  // last taxonomy error observed while resolving the body, if any
}

// Init resets the responder for a new response. status == -1 means
// unset, to be resolved by Build's stat check.
func (r *Response) Init(srcRoot, path string, keepAlive bool, status int) {
	r.Release()
	r.srcRoot = srcRoot
	r.path = path
	r.keepAlive = keepAlive
	r.status = status
	r.err = nil
}

// Release unmaps any held file mapping. Idempotent.
func (r *Response) Release() {
	if r.mapped != nil {
		_ = unix.Munmap(r.mapped)
		r.mapped = nil
	}
}

// Status returns the resolved status code. Valid only after Build.
func (r *Response) Status() int { return r.status }

// Body returns the mmap'd body region, or nil if the body was an inline
// error document (see Build step 5).
func (r *Response) Body() []byte { return r.mapped }

// Err returns the taxonomy error (ErrFileMissing/ErrNotReadable/
// ErrMappingFailed) that drove the resolved status code, or nil for a
// plain 200. Callers use this for logging; it never changes Build's
// control flow, since every one of these outcomes is still served as a
// normal HTTP error response rather than aborting the exchange.
func (r *Response) Err() error { return r.err }

// Build resolves the target file, writes the status line, headers, and
// Content-Length into w, and mmaps the body (or falls back to an inline
// HTML error body on mmap failure), per spec.md §4.F.
func (r *Response) Build(w *buffer.Buffer) error {
	fullPath := filepath.Join(r.srcRoot, r.path)
	info, statErr := os.Stat(fullPath)

	switch {
	case statErr != nil || info.IsDir():
		r.status = 404
		r.err = ErrFileMissing
	case info.Mode().Perm()&0o004 == 0:
		r.status = 403
		r.err = ErrNotReadable
	case r.status == -1:
		r.status = 200
	}

	if errPath, ok := codePath[r.status]; ok {
		r.path = errPath
		fullPath = filepath.Join(r.srcRoot, r.path)
		info, _ = os.Stat(fullPath)
	}

	r.writeStatusLine(w)
	r.writeHeaders(w)
	return r.writeContent(w, fullPath, info)
}

func (r *Response) writeStatusLine(w *buffer.Buffer) {
	status, ok := codeStatus[r.status]
	if !ok {
		r.status = 400
		status = codeStatus[400]
	}
	w.Append([]byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", r.status, status)))
}

func (r *Response) writeHeaders(w *buffer.Buffer) {
	if r.keepAlive {
		w.Append([]byte("Connection: keep-alive\r\n"))
		w.Append([]byte("keep-alive: max=6, timeout=120\r\n"))
	} else {
		w.Append([]byte("Connection: close\r\n"))
	}
	w.Append([]byte("Content-type: " + r.contentType() + "\r\n"))
}

func (r *Response) contentType() string {
	idx := strings.LastIndexByte(r.path, '.')
	if idx < 0 {
		return "text/plain"
	}
	if t, ok := suffixType[strings.ToLower(r.path[idx:])]; ok {
		return t
	}
	return "text/plain"
}

func (r *Response) writeContent(w *buffer.Buffer, fullPath string, info os.FileInfo) error {
	f, err := os.Open(fullPath)
	if err != nil {
		r.err = ErrFileMissing
		r.inlineError(w, "File NotFound!")
		return nil
	}
	defer f.Close()

	size := info.Size()
	if size == 0 {
		w.Append([]byte("Content-length: 0\r\n\r\n"))
		return nil
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		r.err = ErrMappingFailed
		r.inlineError(w, "File NotFound!")
		return nil
	}
	r.mapped = mapped
	w.Append([]byte("Content-length: " + strconv.FormatInt(size, 10) + "\r\n\r\n"))
	return nil
}

// inlineError appends the fallback HTML error body used when the target
// cannot be opened or mapped, per original_source's errorContent.
func (r *Response) inlineError(w *buffer.Buffer, message string) {
	status, ok := codeStatus[r.status]
	if !ok {
		status = "Bad Request"
	}
	var b strings.Builder
	b.WriteString("<html><title>Error</title>")
	b.WriteString(`<body bgcolor="ffffff">`)
	fmt.Fprintf(&b, "%d : %s\n", r.status, status)
	b.WriteString("<p>" + message + "</p>")
	b.WriteString("<hr><em>reactord</em></body></html>")

	body := b.String()
	w.Append([]byte("Content-length: " + strconv.Itoa(len(body)) + "\r\n\r\n"))
	w.Append([]byte(body))
}
