package lux

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

var (
	// anyMethods for Route.All and Router.Any
	anyMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodHead, http.MethodOptions, http.MethodDelete, http.MethodConnect,
		http.MethodTrace,
	}
)

// Route holds the method-bound handler chains registered for one path.
type Route struct {
	path    string
	methods map[string]struct{}
	order   []string
	stack   []*Layer
	opts    Options
	logger  *slog.Logger
}

func newRoute(path string, opts Options, logger *slog.Logger) *Route {
	return &Route{
		path:    path,
		methods: make(map[string]struct{}),
		opts:    opts,
		logger:  logger,
	}
}

// Path returns the path exactly as it was registered. Matching uses the
// normalized form held by the router layer.
func (r *Route) Path() string { return r.path }

// Methods returns the registered verbs, upper-cased, in the order they
// were first registered.
func (r *Route) Methods() []string {
	out := make([]string, len(r.order))
	for i, m := range r.order {
		out[i] = strings.ToUpper(m)
	}
	return out
}

// AddMethod appends one layer per handler, bound to method. Any verb is
// accepted; it is stored lower-cased.
func (r *Route) AddMethod(method string, handlers ...HandlerFunc) *Route {
	method = strings.ToLower(method)
	for _, h := range handlers {
		layer := newLayer(r.path, r.opts, r.logger, h)
		layer.method = method
		r.stack = append(r.stack, layer)

		if _, ok := r.methods[method]; !ok {
			r.methods[method] = struct{}{}
			r.order = append(r.order, method)
		}
	}
	return r
}

// Get is a shortcut for AddMethod("GET", handlers...).
func (r *Route) Get(handlers ...HandlerFunc) *Route {
	return r.AddMethod(http.MethodGet, handlers...)
}

// Post is a shortcut for AddMethod("POST", handlers...).
func (r *Route) Post(handlers ...HandlerFunc) *Route {
	return r.AddMethod(http.MethodPost, handlers...)
}

// Put is a shortcut for AddMethod("PUT", handlers...).
func (r *Route) Put(handlers ...HandlerFunc) *Route {
	return r.AddMethod(http.MethodPut, handlers...)
}

// Patch is a shortcut for AddMethod("PATCH", handlers...).
func (r *Route) Patch(handlers ...HandlerFunc) *Route {
	return r.AddMethod(http.MethodPatch, handlers...)
}

// Delete is a shortcut for AddMethod("DELETE", handlers...).
func (r *Route) Delete(handlers ...HandlerFunc) *Route {
	return r.AddMethod(http.MethodDelete, handlers...)
}

// Head is a shortcut for AddMethod("HEAD", handlers...).
func (r *Route) Head(handlers ...HandlerFunc) *Route {
	return r.AddMethod(http.MethodHead, handlers...)
}

// Options is a shortcut for AddMethod("OPTIONS", handlers...).
func (r *Route) Options(handlers ...HandlerFunc) *Route {
	return r.AddMethod(http.MethodOptions, handlers...)
}

// All registers handlers for every standard verb.
func (r *Route) All(handlers ...HandlerFunc) *Route {
	for _, method := range anyMethods {
		r.AddMethod(method, handlers...)
	}
	return r
}

// handlesMethod reports whether a request with the lower-case method can
// be dispatched here. HEAD falls back to GET.
func (r *Route) handlesMethod(method string) bool {
	return r.resolveMethod(method) != ""
}

func (r *Route) resolveMethod(method string) string {
	if _, ok := r.methods[method]; ok {
		return method
	}
	if method == "head" {
		if _, ok := r.methods["get"]; ok {
			return "get"
		}
	}
	return ""
}

func (r *Route) allow() string {
	return strings.Join(r.Methods(), ", ")
}

// Dispatch runs the layers bound to the request method in registration
// order. Each handler continues with next; once the stack is exhausted
// parentNext takes over.
func (r *Route) Dispatch(req *http.Request, res *Response, parentNext NextFunc) error {
	if len(r.stack) == 0 {
		return parentNext()
	}
	method := r.resolveMethod(strings.ToLower(req.Method))
	ctx := req.Context()

	var step func(i int) NextFunc
	step = func(i int) NextFunc {
		return advance(ctx, func() error {
			for ; i < len(r.stack); i++ {
				layer := r.stack[i]
				if layer.method != method {
					continue
				}
				return layer.HandleRequest(req, res, step(i+1))
			}
			return parentNext()
		})
	}
	return step(0)()
}

// advance makes step a single-shot continuation that refuses to run once
// ctx is done.
func advance(ctx context.Context, step func() error) NextFunc {
	var called bool
	return func() error {
		if called {
			return ErrNextCalled
		}
		called = true
		if err := ctx.Err(); err != nil {
			return err
		}
		return step()
	}
}
