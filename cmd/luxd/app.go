package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	lux "github.com/edgflow/lux-router"
	"github.com/edgflow/lux-router/internal/config"
	"github.com/edgflow/lux-router/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const maxItemBytes = 1 << 20

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type itemStore struct {
	mu    sync.Mutex
	items []item
}

func (s *itemStore) list(req *http.Request, res *lux.Response, next lux.NextFunc) error {
	s.mu.Lock()
	out := make([]item, len(s.items))
	copy(out, s.items)
	s.mu.Unlock()
	return res.JSON(out)
}

func (s *itemStore) create(req *http.Request, res *lux.Response, next lux.NextFunc) error {
	var in item
	if err := json.NewDecoder(io.LimitReader(req.Body, maxItemBytes)).Decode(&in); err != nil {
		return lux.NewHTTPError(http.StatusBadRequest, "invalid item").Wrap(err)
	}
	if in.Name == "" {
		return lux.NewHTTPError(http.StatusUnprocessableEntity, "item name is required")
	}
	s.mu.Lock()
	in.ID = len(s.items) + 1
	s.items = append(s.items, in)
	s.mu.Unlock()
	return res.Status(http.StatusCreated).JSON(in)
}

// requireJSON rejects bodies that are not JSON before the item handlers run.
func requireJSON(req *http.Request, res *lux.Response, next lux.NextFunc) error {
	if ct := req.Header.Get("Content-Type"); ct != "application/json" {
		return res.Status(http.StatusUnsupportedMediaType).Send("expected application/json")
	}
	return next()
}

// newApp builds the demo router. reg may be nil to skip metrics.
func newApp(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *lux.Router {
	router := lux.New(
		lux.WithCaseSensitive(cfg.Router.CaseSensitive),
		lux.WithStrictSlash(cfg.Router.StrictSlash),
		lux.WithLogger(logger),
	)

	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(logger),
		middleware.Tracing(middleware.WithTracerName("luxd")),
	)
	if reg != nil {
		router.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
	}

	router.Get("/", func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		return res.Send("Hello")
	})
	router.Get("/index", func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		return res.Send("hi")
	})
	router.Get("/healthz", func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		return res.JSON(map[string]string{"status": "ok"})
	})

	store := &itemStore{}
	router.Route("/items").
		Get(store.list).
		Post(requireJSON, store.create)

	return router
}
