package lux

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http/httpguts"
)

// ErrServerClosed is returned by Serve and ListenAndServe after Shutdown
// or Close.
var ErrServerClosed = errors.New("lux: server closed")

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Dispatcher turns one request into one Result. *Router implements it.
type Dispatcher interface {
	Handle(req *http.Request) *Result
}

// Server is an HTTP/1.1 server that reads requests straight off TCP
// connections, one goroutine per connection, and writes each Result back
// with keep-alive support.
type Server struct {
	Addr    string
	Handler Dispatcher

	// ReadTimeout bounds reading one request, WriteTimeout writing one
	// response and IdleTimeout the wait for the next keep-alive request.
	// Zero selects the defaults (30s, 30s, 60s).
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Logger *slog.Logger

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]bool // true while a request is in flight
	inShutdown bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// ListenAndServe listens on s.Addr and serves until the server is shut
// down.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("lux: listen on %s: %w", s.Addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l. It always closes l and returns a
// non-nil error, ErrServerClosed after Shutdown or Close.
func (s *Server) Serve(l net.Listener) error {
	if s.Handler == nil {
		l.Close()
		return errors.New("lux: server has no handler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.inShutdown {
		s.mu.Unlock()
		cancel()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.cancel = cancel
	if s.conns == nil {
		s.conns = make(map[net.Conn]bool)
	}
	s.mu.Unlock()

	defer l.Close()
	s.logger().Info("lux: serving", "addr", l.Addr().String())

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				tempDelay = backoff(tempDelay)
				s.logger().Warn("lux: accept error, retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("lux: accept: %w", err)
		}
		tempDelay = 0

		if !s.track(conn) {
			conn.Close()
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		return time.Second
	}
	return d
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inShutdown
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown {
		return false
	}
	s.conns[conn] = false
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// setActive flips the connection state and reports whether the connection
// may keep going.
func (s *Server) setActive(conn net.Conn, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown && !active {
		return false
	}
	s.conns[conn] = active
	return true
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.untrack(conn)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	readTimeout := timeoutOr(s.ReadTimeout, defaultReadTimeout)
	first := true

	for {
		wait := readTimeout
		if !first {
			wait = timeoutOr(s.IdleTimeout, defaultIdleTimeout)
		}
		first = false
		conn.SetReadDeadline(time.Now().Add(wait))

		req, err := http.ReadRequest(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) && !isTimeout(err) && !errors.Is(err, net.ErrClosed) {
				s.logger().Debug("lux: read request failed", "remote", conn.RemoteAddr().String(), "error", err)
				s.writeResult(conn, writer, newTextResult(http.StatusBadRequest, http.StatusText(http.StatusBadRequest)), false, connClose)
			}
			return
		}
		if !s.setActive(conn, true) {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		req.RemoteAddr = conn.RemoteAddr().String()

		reqCtx, cancel := context.WithCancel(ctx)
		result := s.Handler.Handle(req.WithContext(reqCtx))
		cancel()
		if result == nil {
			s.logger().Error("lux: handler returned no result", "method", req.Method, "path", req.URL.Path)
			result = newTextResult(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}

		io.Copy(io.Discard, req.Body)
		req.Body.Close()

		token := connectionToken(req, s.shuttingDown())
		if err := s.writeResult(conn, writer, result, req.Method == http.MethodHead, token); err != nil {
			s.logger().Debug("lux: write response failed", "remote", req.RemoteAddr, "error", err)
			return
		}
		if token == connClose || !s.setActive(conn, false) {
			return
		}
	}
}

func (s *Server) writeResult(conn net.Conn, w *bufio.Writer, result *Result, omitBody bool, token string) error {
	conn.SetWriteDeadline(time.Now().Add(timeoutOr(s.WriteTimeout, defaultWriteTimeout)))
	if err := result.write(w, omitBody, token); err != nil {
		return err
	}
	return w.Flush()
}

const (
	connClose     = "close"
	connKeepAlive = "keep-alive"
)

// connectionToken decides the Connection header of the response: "close"
// when the connection ends after it, "keep-alive" for HTTP/1.0 clients
// that asked for it, "" otherwise.
func connectionToken(req *http.Request, shuttingDown bool) string {
	if shuttingDown || shouldClose(req.ProtoMajor, req.ProtoMinor, req.Header) {
		return connClose
	}
	if req.ProtoMajor == 1 && req.ProtoMinor == 0 {
		return connKeepAlive
	}
	return ""
}

func shouldClose(major, minor int, header http.Header) bool {
	if major < 1 {
		return true
	}
	conv := header["Connection"]
	if httpguts.HeaderValuesContainsToken(conv, "close") {
		return true
	}
	if major == 1 && minor == 0 {
		return !httpguts.HeaderValuesContainsToken(conv, "keep-alive")
	}
	return false
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Shutdown stops accepting connections, closes idle ones and waits for
// in-flight requests to finish or ctx to end. Connections still open when
// ctx ends are closed forcibly and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.inShutdown = true
	if s.listener != nil {
		s.listener.Close()
	}
	for conn, active := range s.conns {
		if !active {
			conn.Close()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.stopContext()
		return nil
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

// Close shuts the listener and every connection immediately, cancelling
// the context of in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	s.inShutdown = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.stopContext()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) stopContext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
