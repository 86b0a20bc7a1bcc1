package middleware

import (
	"context"
	"net/http"

	lux "github.com/edgflow/lux-router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for lux routers.
const defaultTracerName = "lux"

// spanContextKey is the Response key holding the span context.
const spanContextKey = "lux.middleware.span_context"

// TracingConfig configures the OpenTelemetry middleware.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "lux").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// Propagator extracts the parent span from request headers.
	// Default: the global text map propagator.
	Propagator propagation.TextMapPropagator

	// Filter determines which requests to trace.
	// If nil, all requests are traced.
	Filter func(req *http.Request) bool

	// AttributeExtractor adds custom attributes once the chain returns.
	AttributeExtractor func(req *http.Request, res *lux.Response) []attribute.KeyValue
}

// TracingOption configures the OpenTelemetry middleware.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(provider trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.TracerProvider = provider
	}
}

// WithPropagator sets the propagator used for incoming trace headers.
func WithPropagator(p propagation.TextMapPropagator) TracingOption {
	return func(c *TracingConfig) {
		c.Propagator = p
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(req *http.Request) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(req *http.Request, res *lux.Response) []attribute.KeyValue) TracingOption {
	return func(c *TracingConfig) {
		c.AttributeExtractor = extractor
	}
}

// Tracing creates middleware that opens a server span per request.
//
// The middleware:
//   - Continues a trace propagated in the request headers
//   - Names the span after the matched route ("GET /items")
//   - Records the response status and any escaping error
//   - Stores the span context in the Response for downstream handlers
func Tracing(opts ...TracingOption) lux.HandlerFunc {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	propagator := config.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	tracer := provider.Tracer(config.TracerName)

	return func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		if config.Filter != nil && !config.Filter(req) {
			return next()
		}

		parent := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		spanCtx, span := tracer.Start(parent, "HTTP "+req.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("url.path", urlPath(req)),
			),
		)
		defer span.End()

		res.Set(spanContextKey, spanCtx)

		err := next()

		if route := res.MatchedPath(); route != "" {
			span.SetName(req.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		status := responseStatus(res, err)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if config.AttributeExtractor != nil {
			span.SetAttributes(config.AttributeExtractor(req, res)...)
		}

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		return err
	}
}

// TraceContext returns the context carrying the request span, or the
// request context when the request is not traced.
func TraceContext(req *http.Request, res *lux.Response) context.Context {
	if ctx, ok := res.Get(spanContextKey); ok {
		if spanCtx, ok := ctx.(context.Context); ok {
			return spanCtx
		}
	}
	return req.Context()
}

// SpanFromResponse returns the request span, or nil when the request is
// not traced.
func SpanFromResponse(res *lux.Response) trace.Span {
	if ctx, ok := res.Get(spanContextKey); ok {
		if spanCtx, ok := ctx.(context.Context); ok {
			return trace.SpanFromContext(spanCtx)
		}
	}
	return nil
}
