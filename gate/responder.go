package gate

import (
	"bytes"
	"net/http"
	"sync"
)

// bufPool recycles the capture buffers the response guard uses. Buffers that
// grew past the cap are dropped rather than pooled.
var bufPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

const maxPooledBufSize = 1 << 20 // 1 MiB

// responder is the buffering http.ResponseWriter handed to controllers and
// the mock synthesizer. Nothing reaches the underlying connection until the
// response guard approves the captured response: status, body, and headers
// are all held here, so a rejected response leaves no trace of what the
// handler wrote.
type responder struct {
	w           http.ResponseWriter
	header      http.Header
	buf         *bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponder(w http.ResponseWriter) *responder {
	return &responder{
		w:      w,
		header: make(http.Header),
		buf:    bufPool.Get().(*bytes.Buffer),
	}
}

// Header returns the header map that will be sent on flush.
func (rw *responder) Header() http.Header {
	return rw.header
}

// WriteHeader captures the status code without committing it.
func (rw *responder) WriteHeader(status int) {
	if rw.wroteHeader {
		return
	}
	rw.status = status
	rw.wroteHeader = true
}

// Write buffers the body.
func (rw *responder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.buf.Write(b)
}

// Status returns the captured status, defaulting to 200 when the handler
// wrote neither a status nor a body.
func (rw *responder) Status() int {
	if !rw.wroteHeader {
		return http.StatusOK
	}
	return rw.status
}

// Body returns the captured body bytes.
func (rw *responder) Body() []byte {
	return rw.buf.Bytes()
}

// Flush commits the captured headers, status, and body to the underlying
// writer.
func (rw *responder) Flush() error {
	dst := rw.w.Header()
	for name, values := range rw.header {
		dst[name] = values
	}
	rw.w.WriteHeader(rw.Status())
	_, err := rw.w.Write(rw.buf.Bytes())
	return err
}

// Release returns the capture buffer to the pool. The responder must not be
// used afterwards.
func (rw *responder) Release() {
	if rw.buf.Cap() <= maxPooledBufSize {
		rw.buf.Reset()
		bufPool.Put(rw.buf)
	}
	rw.buf = nil
}

var _ http.ResponseWriter = (*responder)(nil)
