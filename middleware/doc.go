// Package middleware provides production middleware for lux routers.
//
// This package includes:
//   - Prometheus request metrics
//   - OpenTelemetry server spans
//   - Request ID propagation
//   - Structured access logging
//
// Every constructor returns a lux.HandlerFunc meant for Router.Use. The
// middleware calls next, then inspects the Response once the rest of the
// chain has run, so register them before any route:
//
//	router := lux.New()
//	router.Use(
//	    middleware.RequestID(),
//	    middleware.AccessLog(logger),
//	    middleware.Prometheus(middleware.WithRegistry(reg)),
//	    middleware.Tracing(middleware.WithTracerName("my-app")),
//	)
//	router.Get("/", hello)
//
// # Prometheus Metrics
//
// The metrics middleware records:
//   - lux_requests_total: requests by method, route and status
//   - lux_request_duration_seconds: dispatch duration by method and route
//   - lux_request_errors_total: errors that escaped the chain
//
// Requests that matched no route are labelled with route="unmatched".
// Expose them with promhttp on a separate listener:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Trace Context
//
// Tracing stores the span context in the Response key/value bag. Handlers
// running after it reach it through TraceContext:
//
//	func handler(req *http.Request, res *lux.Response, next lux.NextFunc) error {
//	    ctx := middleware.TraceContext(req, res)
//	    row := db.QueryRowContext(ctx, "SELECT ...")
//	    ...
//	}
package middleware
