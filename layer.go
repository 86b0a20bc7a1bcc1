package lux

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Layer binds a normalized path, and optionally a method, to a handler.
//
// Router-level layers either own a Route (path dispatch) or are pure
// middleware with neither a route nor a method. Route-level layers carry a
// method and a bare handler.
type Layer struct {
	path    string
	method  string
	route   *Route
	handler HandlerFunc
	opts    Options
	logger  *slog.Logger
}

func newLayer(path string, opts Options, logger *slog.Logger, handler HandlerFunc) *Layer {
	if handler == nil {
		panic(fmt.Sprintf("lux: nil handler for path %q", path))
	}
	normalized, err := normalizePath(path, opts)
	if err != nil {
		panic(err)
	}
	return &Layer{
		path:    normalized,
		handler: handler,
		opts:    opts,
		logger:  logger,
	}
}

// Path returns the normalized layer path.
func (l *Layer) Path() string { return l.path }

// Method returns the lower-case verb of a route-level layer, or "".
func (l *Layer) Method() string { return l.method }

// Route returns the route a router-level layer dispatches to, or nil for
// middleware and route-level layers.
func (l *Layer) Route() *Route { return l.route }

// Match reports whether the layer applies to path. Malformed paths never
// match; the failure is logged at debug level.
func (l *Layer) Match(path string) bool {
	ok, err := l.match(path)
	if err != nil {
		l.logger.Debug("lux: layer match failed", "layer", l.path, "path", path, "error", err)
		return false
	}
	return ok
}

func (l *Layer) match(path string) (bool, error) {
	candidate, err := normalizePath(path, l.opts)
	if err != nil {
		return false, err
	}
	return l.path == Wildcard || l.path == candidate, nil
}

// HandleRequest invokes the layer handler. Errors are returned as-is.
func (l *Layer) HandleRequest(req *http.Request, res *Response, next NextFunc) error {
	return l.handler(req, res, next)
}
