package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edgflow/lux-router/internal/config"
	"github.com/edgflow/lux-router/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func TestAppRoutes(t *testing.T) {
	app := newApp(config.DefaultConfig(), logging.NewDiscardLogger(), prometheus.NewRegistry())

	tests := []struct {
		method, target string
		status         int
		body           string
	}{
		{http.MethodGet, "/", http.StatusOK, "Hello"},
		{http.MethodGet, "/index", http.StatusOK, "hi"},
		{http.MethodGet, "/healthz", http.StatusOK, `{"status":"ok"}`},
		{http.MethodGet, "/missing", http.StatusNotFound, "Not Found"},
		{http.MethodDelete, "/items", http.StatusMethodNotAllowed, "Method Not Allowed"},
	}
	for _, tt := range tests {
		res := app.Handle(httptest.NewRequest(tt.method, tt.target, nil))
		if res.StatusCode != tt.status || string(res.Body) != tt.body {
			t.Errorf("%s %s = %d %q, want %d %q", tt.method, tt.target, res.StatusCode, res.Body, tt.status, tt.body)
		}
		if res.Header.Get("X-Request-Id") == "" {
			t.Errorf("%s %s has no request id", tt.method, tt.target)
		}
	}
}

func TestAppItems(t *testing.T) {
	app := newApp(config.DefaultConfig(), logging.NewDiscardLogger(), nil)

	post := func(contentType, body string) (int, string) {
		req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		res := app.Handle(req)
		return res.StatusCode, string(res.Body)
	}

	if code, body := post("application/json", `{"name":"lamp"}`); code != http.StatusCreated || body != `{"id":1,"name":"lamp"}` {
		t.Errorf("create = %d %s", code, body)
	}
	if code, _ := post("text/plain", `{"name":"lamp"}`); code != http.StatusUnsupportedMediaType {
		t.Errorf("non-JSON create = %d, want 415", code)
	}
	if code, _ := post("application/json", `{`); code != http.StatusBadRequest {
		t.Errorf("malformed create = %d, want 400", code)
	}
	if code, body := post("application/json", `{}`); code != http.StatusUnprocessableEntity || body != "item name is required" {
		t.Errorf("nameless create = %d %q", code, body)
	}

	res := app.Handle(httptest.NewRequest(http.MethodGet, "/items", nil))
	if string(res.Body) != `[{"id":1,"name":"lamp"}]` {
		t.Errorf("list = %s", res.Body)
	}
}

func TestRoutesCommand(t *testing.T) {
	root := &cobra.Command{Use: "luxd"}
	root.PersistentFlags().StringP("config", "c", "", "")
	root.AddCommand(routesCmd(), versionCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"routes"})
	if err := root.Execute(); err != nil {
		t.Fatalf("routes: %v", err)
	}
	for _, want := range []string{"METHOD", "USE", "GET     /items", "POST    /items"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("routes output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "luxd dev") {
		t.Errorf("version output = %q", out.String())
	}
}
