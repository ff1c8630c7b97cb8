// Package responsewriter wraps http.ResponseWriter to record the status
// code and body size for logging, metrics and tracing.
package responsewriter

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// ResponseWriter records what the wrapped writer sent.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int
	headerWritten bool
	hijacked      bool
}

// Wrap returns w unchanged if it is already wrapped.
func Wrap(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader records the first status code written.
func (w *ResponseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.statusCode = statusCode
	w.headerWritten = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

// StatusCode is 101 for hijacked (WebSocket) connections.
func (w *ResponseWriter) StatusCode() int {
	if w.hijacked {
		return http.StatusSwitchingProtocols
	}
	return w.statusCode
}

// BytesWritten counts body bytes only.
func (w *ResponseWriter) BytesWritten() int { return w.bytesWritten }

// Flush implements http.Flusher when the underlying writer does.
func (w *ResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets WebSocket upgrades pass through the wrapper.
func (w *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("responsewriter: underlying writer does not support hijacking")
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		w.hijacked = true
	}
	return conn, rw, err
}

// Unwrap supports http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
