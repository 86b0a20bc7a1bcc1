package lux

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startServer(t *testing.T, r *Router) (*Server, string, <-chan error) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &Server{Handler: r, Logger: discardLogger()}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	t.Cleanup(func() { srv.Close() })
	return srv, l.Addr().String(), errc
}

func testRouter() *Router {
	r := New(WithLogger(discardLogger()))
	r.Get("/", func(req *http.Request, res *Response, next NextFunc) error {
		return res.Send("Hello")
	})
	r.Get("/index", func(req *http.Request, res *Response, next NextFunc) error {
		return res.Send("hi")
	})
	return r
}

func TestServerServesHTTPClients(t *testing.T) {
	_, addr, _ := startServer(t, testRouter())

	resp, err := http.Get("http://" + addr + "/index")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "hi" {
		t.Errorf("got %d %q, want 200 hi", resp.StatusCode, body)
	}

	resp, err = http.Post("http://"+addr+"/index", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed || resp.Header.Get("Allow") != "GET" {
		t.Errorf("POST got %d Allow %q", resp.StatusCode, resp.Header.Get("Allow"))
	}
}

func TestServerKeepAlive(t *testing.T) {
	_, addr, _ := startServer(t, testRouter())
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(conn)

	for _, target := range []string{"/", "/index"} {
		io.WriteString(conn, "GET "+target+" HTTP/1.1\r\nHost: test\r\n\r\n")
		resp, err := http.ReadResponse(reader, nil)
		if err != nil {
			t.Fatalf("read response for %s: %v", target, err)
		}
		io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", target, resp.StatusCode)
		}
		if resp.Close {
			t.Errorf("%s closed the connection", target)
		}
	}
}

func TestServerHTTP10ClosesByDefault(t *testing.T) {
	_, addr, _ := startServer(t, testRouter())
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	io.WriteString(conn, "GET / HTTP/1.0\r\n\r\n")
	raw, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(raw)
	if !strings.Contains(got, "Connection: close\r\n") || !strings.HasSuffix(got, "\r\n\r\nHello") {
		t.Errorf("response = %q", got)
	}
}

func TestServerHeadOmitsBody(t *testing.T) {
	_, addr, _ := startServer(t, testRouter())
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	io.WriteString(conn, "HEAD / HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n")
	raw, _ := io.ReadAll(conn)
	got := string(raw)
	if !strings.HasPrefix(got, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("response = %q", got)
	}
	if !strings.Contains(got, "Content-Length: 5\r\n") || !strings.HasSuffix(got, "\r\n\r\n") {
		t.Errorf("HEAD response = %q", got)
	}
}

func TestServerRejectsMalformedRequest(t *testing.T) {
	_, addr, _ := startServer(t, testRouter())
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	io.WriteString(conn, "NOT A REQUEST\r\n\r\n")
	raw, _ := io.ReadAll(conn)
	if !strings.HasPrefix(string(raw), "HTTP/1.1 400 Bad Request\r\n") {
		t.Errorf("response = %q", raw)
	}
}

func TestServerDropsEchoedLineBreaks(t *testing.T) {
	r := New(WithLogger(discardLogger()))
	r.Get("/echo", func(req *http.Request, res *Response, next NextFunc) error {
		res.Header().Set("X-Echo", req.URL.Query().Get("v"))
		return res.Send("ok")
	})
	_, addr, _ := startServer(t, r)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	io.WriteString(conn, "GET /echo?v=a%0D%0ASet-Cookie:%20pwned=1 HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n")
	raw, _ := io.ReadAll(conn)
	got := string(raw)
	if strings.Contains(got, "Set-Cookie") || strings.Contains(got, "X-Echo") {
		t.Errorf("injected header reached the client: %q", got)
	}
	if !strings.HasPrefix(got, "HTTP/1.1 500 ") {
		t.Errorf("response = %q, want a 500", got)
	}
}

type dispatcherFunc func(req *http.Request) *Result

func (f dispatcherFunc) Handle(req *http.Request) *Result { return f(req) }

func TestServerNilResult(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &Server{
		Handler: dispatcherFunc(func(*http.Request) *Result { return nil }),
		Logger:  discardLogger(),
	}
	go srv.Serve(l)
	defer srv.Close()

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestServerShutdown(t *testing.T) {
	srv, addr, errc := startServer(t, testRouter())

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("listener still accepting after Shutdown")
	}
}

func TestServeWithoutHandler(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := (&Server{}).Serve(l); err == nil {
		t.Error("Serve without a handler succeeded")
	}
}

func TestShouldClose(t *testing.T) {
	tests := []struct {
		name         string
		major, minor int
		connection   []string
		want         bool
	}{
		{"http/1.1 default", 1, 1, nil, false},
		{"http/1.1 close", 1, 1, []string{"close"}, true},
		{"http/1.1 mixed tokens", 1, 1, []string{"Upgrade, Close"}, true},
		{"http/1.0 default", 1, 0, nil, true},
		{"http/1.0 keep-alive", 1, 0, []string{"keep-alive"}, false},
		{"http/0.9", 0, 9, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.connection != nil {
				header["Connection"] = tt.connection
			}
			if got := shouldClose(tt.major, tt.minor, header); got != tt.want {
				t.Errorf("shouldClose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnectionToken(t *testing.T) {
	req := &http.Request{ProtoMajor: 1, ProtoMinor: 0, Header: http.Header{"Connection": {"keep-alive"}}}
	if got := connectionToken(req, false); got != connKeepAlive {
		t.Errorf("HTTP/1.0 keep-alive token = %q", got)
	}
	if got := connectionToken(req, true); got != connClose {
		t.Errorf("token while shutting down = %q", got)
	}
	req = &http.Request{ProtoMajor: 1, ProtoMinor: 1, Header: http.Header{}}
	if got := connectionToken(req, false); got != "" {
		t.Errorf("HTTP/1.1 token = %q, want empty", got)
	}
}
