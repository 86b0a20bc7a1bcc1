package lux

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Result is the finalized response of one request. It is a snapshot: the
// Response that produced it can no longer change it.
type Result struct {
	StatusCode int
	Header     Header
	Body       []byte
}

func newTextResult(code int, body string) *Result {
	res := &Result{StatusCode: code, Body: []byte(body)}
	res.Header.Set("Content-Type", contentTypeText)
	return res
}

// WriteHTTP copies the result to a net/http response writer. net/http
// only accepts three-digit codes, anything else goes out as 500.
func (r *Result) WriteHTTP(w http.ResponseWriter) {
	h := w.Header()
	for _, f := range r.Header.fields {
		if validHeaderField(f.Name, f.Value) {
			h.Set(f.Name, f.Value)
		}
	}
	code := r.StatusCode
	if code < 100 || code > 999 {
		code = http.StatusInternalServerError
	}
	w.WriteHeader(code)
	if len(r.Body) > 0 && bodyAllowedForStatus(code) {
		w.Write(r.Body)
	}
}

// WriteTo writes the result as an HTTP/1.1 message, body included.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}
	if err := r.write(cw, false, ""); err != nil {
		return cw.n, err
	}
	return cw.n, bw.Flush()
}

// write serializes the status line, headers and, unless omitBody, the
// body. A non-empty connection is sent as the Connection header. Fields
// that would not survive as a single header line are skipped.
func (r *Result) write(w io.Writer, omitBody bool, connection string) error {
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", r.StatusCode, http.StatusText(r.StatusCode)); err != nil {
		return err
	}
	for _, f := range r.Header.fields {
		if f.Name == "Content-Length" || f.Name == "Connection" || !validHeaderField(f.Name, f.Value) {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", f.Name, f.Value); err != nil {
			return err
		}
	}
	if connection != "" {
		if _, err := io.WriteString(w, "Connection: "+connection+"\r\n"); err != nil {
			return err
		}
	}
	if !bodyAllowedForStatus(r.StatusCode) {
		_, err := io.WriteString(w, "\r\n")
		return err
	}
	if _, err := io.WriteString(w, "Content-Length: "+strconv.Itoa(len(r.Body))+"\r\n\r\n"); err != nil {
		return err
	}
	if omitBody {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

// bodyAllowedForStatus reports whether a response with the given status
// may carry a body (RFC 7230, section 3.3).
func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
