package lux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync/atomic"
)

type IRoutes interface {
	Use(...HandlerFunc) IRoutes
	UseAt(string, ...HandlerFunc) IRoutes
	Any(string, ...HandlerFunc) IRoutes
	Get(string, ...HandlerFunc) IRoutes
	Post(string, ...HandlerFunc) IRoutes
	Delete(string, ...HandlerFunc) IRoutes
	Patch(string, ...HandlerFunc) IRoutes
	Put(string, ...HandlerFunc) IRoutes
	Options(string, ...HandlerFunc) IRoutes
	Head(string, ...HandlerFunc) IRoutes
	Match([]string, string, ...HandlerFunc) IRoutes
}

// Router is the ordered layer stack of an application and the entry point
// of request dispatch.
//
// Registration is not synchronized: register every route and middleware
// before serving. The first call to Handle or ServeHTTP seals the Router
// and any later registration panics with ErrRouterSealed.
type Router struct {
	stack  []*Layer
	opts   Options
	logger *slog.Logger
	sealed atomic.Bool
}

// Option configures a Router.
type Option func(*Router)

// WithCaseSensitive makes path comparison case sensitive.
func WithCaseSensitive(enabled bool) Option {
	return func(r *Router) { r.opts.CaseSensitive = enabled }
}

// WithStrictSlash makes a trailing slash significant.
func WithStrictSlash(enabled bool) Option {
	return func(r *Router) { r.opts.StrictSlash = enabled }
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns an empty Router. Paths are case-insensitive and trailing
// slashes are ignored unless configured otherwise.
func New(opts ...Option) *Router {
	r := &Router{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the path normalization options of the Router.
func (r *Router) Config() Options { return r.opts }

func (r *Router) mustBeOpen() {
	if r.sealed.Load() {
		panic(ErrRouterSealed)
	}
}

// Route creates a Route for path and appends a layer dispatching to it.
// Registering a path twice yields two independent routes, tried in order.
func (r *Router) Route(path string) *Route {
	r.mustBeOpen()
	var route *Route
	var layer *Layer
	layer = newLayer(path, r.opts, r.logger, func(req *http.Request, res *Response, next NextFunc) error {
		res.routePath = layer.path
		return route.Dispatch(req, res, next)
	})
	route = newRoute(path, r.opts, r.logger)
	layer.route = route
	r.stack = append(r.stack, layer)
	return route
}

// Use appends middleware that runs for every request path.
func (r *Router) Use(handlers ...HandlerFunc) IRoutes {
	return r.UseAt(Wildcard, handlers...)
}

// UseAt appends middleware that runs for requests to path, whatever
// their method.
func (r *Router) UseAt(path string, handlers ...HandlerFunc) IRoutes {
	r.mustBeOpen()
	for _, h := range handlers {
		r.stack = append(r.stack, newLayer(path, r.opts, r.logger, h))
	}
	return r
}

// Any registers handlers for path under every standard verb.
func (r *Router) Any(path string, handlers ...HandlerFunc) IRoutes {
	r.Route(path).All(handlers...)
	return r
}

// Get is a shortcut for router.Route(path).Get(handlers...).
func (r *Router) Get(path string, handlers ...HandlerFunc) IRoutes {
	return r.handle(http.MethodGet, path, handlers)
}

// Post is a shortcut for router.Route(path).Post(handlers...).
func (r *Router) Post(path string, handlers ...HandlerFunc) IRoutes {
	return r.handle(http.MethodPost, path, handlers)
}

// Delete is a shortcut for router.Route(path).Delete(handlers...).
func (r *Router) Delete(path string, handlers ...HandlerFunc) IRoutes {
	return r.handle(http.MethodDelete, path, handlers)
}

// Patch is a shortcut for router.Route(path).Patch(handlers...).
func (r *Router) Patch(path string, handlers ...HandlerFunc) IRoutes {
	return r.handle(http.MethodPatch, path, handlers)
}

// Put is a shortcut for router.Route(path).Put(handlers...).
func (r *Router) Put(path string, handlers ...HandlerFunc) IRoutes {
	return r.handle(http.MethodPut, path, handlers)
}

// Options is a shortcut for router.Route(path).Options(handlers...).
func (r *Router) Options(path string, handlers ...HandlerFunc) IRoutes {
	return r.handle(http.MethodOptions, path, handlers)
}

// Head is a shortcut for router.Route(path).Head(handlers...).
func (r *Router) Head(path string, handlers ...HandlerFunc) IRoutes {
	return r.handle(http.MethodHead, path, handlers)
}

// Match registers one route for path that accepts each of methods.
func (r *Router) Match(methods []string, path string, handlers ...HandlerFunc) IRoutes {
	route := r.Route(path)
	for _, method := range methods {
		route.AddMethod(method, handlers...)
	}
	return r
}

func (r *Router) handle(method, path string, handlers []HandlerFunc) IRoutes {
	r.Route(path).AddMethod(method, handlers...)
	return r
}

// Routes lists every registered handler in dispatch order. Middleware
// layers are reported with the method "USE".
func (r *Router) Routes() (routes RoutesInfo) {
	for _, layer := range r.stack {
		if layer.route == nil {
			routes = append(routes, RouteInfo{
				Method:  "USE",
				Path:    layer.path,
				Handler: nameOfFunction(layer.handler),
			})
			continue
		}
		for _, l := range layer.route.stack {
			routes = append(routes, RouteInfo{
				Method:  strings.ToUpper(l.method),
				Path:    l.path,
				Handler: nameOfFunction(l.handler),
			})
		}
	}
	return routes
}

// ServeHTTP makes the Router a net/http handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handle(req).WriteHTTP(w)
}

// Handle dispatches req through the layer stack and returns its single
// response. It always returns a Result: one finalized by a handler, a 404
// when no layer handled the path, a 405 when the first matching route does
// not accept the method, or a 500 when an error or panic escapes the chain.
func (r *Router) Handle(req *http.Request) (result *Result) {
	r.sealed.Store(true)

	method := strings.ToLower(req.Method)
	pathname := requestPath(req)
	res := newResponse()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("lux: handler panic recovered",
				"method", req.Method, "path", pathname, "panic", rec, "stack", string(debug.Stack()))
			result = r.fail(req, res, pathname, fmt.Errorf("%w: %v", ErrHandlerPanic, rec))
		}
	}()

	if err := r.dispatch(req, res, method, pathname); err != nil {
		return r.fail(req, res, pathname, err)
	}
	if !res.Finalized() {
		if err := res.SendBytes(nil); err != nil {
			return r.fail(req, res, pathname, err)
		}
	}
	return res.Result()
}

func (r *Router) dispatch(req *http.Request, res *Response, method, pathname string) error {
	ctx := req.Context()

	var step func(i int) NextFunc
	step = func(i int) NextFunc {
		return advance(ctx, func() error {
			for ; i < len(r.stack); i++ {
				layer := r.stack[i]
				ok, err := layer.match(pathname)
				if err != nil {
					r.logger.Debug("lux: layer match failed", "layer", layer.path, "path", pathname, "error", err)
					continue
				}
				if !ok {
					continue
				}
				if route := layer.route; route != nil && len(route.stack) > 0 && !route.handlesMethod(method) {
					return r.methodNotAllowed(res, layer)
				}
				return layer.HandleRequest(req, res, step(i+1))
			}
			return r.notFound(res)
		})
	}
	return step(0)()
}

func (r *Router) notFound(res *Response) error {
	if res.Finalized() {
		return nil
	}
	return res.Status(http.StatusNotFound).Send(http.StatusText(http.StatusNotFound))
}

func (r *Router) methodNotAllowed(res *Response, layer *Layer) error {
	if res.Finalized() {
		return nil
	}
	res.routePath = layer.path
	return res.
		SetHeader("Allow", layer.route.allow()).
		Status(http.StatusMethodNotAllowed).
		Send(http.StatusText(http.StatusMethodNotAllowed))
}

// fail converts an error that escaped the chain into the final Result.
// A response that was already finalized wins over the error.
func (r *Router) fail(req *http.Request, res *Response, pathname string, err error) *Result {
	if res.Finalized() {
		r.logger.Warn("lux: error after response was sent",
			"method", req.Method, "path", pathname, "error", err)
		return res.Result()
	}

	code := StatusOf(err)
	var he *HTTPError
	message := http.StatusText(code)
	if errors.As(err, &he) && he.Message != "" {
		message = he.Message
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.logger.Info("lux: request cancelled", "method", req.Method, "path", pathname, "error", err)
	case code >= http.StatusInternalServerError:
		r.logger.Error("lux: unhandled handler error", "method", req.Method, "path", pathname, "error", err)
	default:
		r.logger.Debug("lux: handler returned http error", "method", req.Method, "path", pathname, "status", code, "error", err)
	}
	return newTextResult(code, message)
}
