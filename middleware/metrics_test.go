package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	lux "github.com/edgflow/lux-router"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func metricsRouter(m *Metrics) *lux.Router {
	r := lux.New()
	r.Use(m.Handler())
	r.Get("/items", func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		return res.Send("items")
	})
	r.Get("/fail", func(req *http.Request, res *lux.Response, next lux.NextFunc) error {
		return errors.New("boom")
	})
	return r
}

func TestMetricsRecordsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	r := metricsRouter(m)

	r.Handle(httptest.NewRequest(http.MethodGet, "/items", nil))
	r.Handle(httptest.NewRequest(http.MethodGet, "/items", nil))
	r.Handle(httptest.NewRequest(http.MethodPost, "/items", nil))
	r.Handle(httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("GET", "/items", "200")); got != 2 {
		t.Errorf("requests_total(GET /items 200) = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("POST", "/items", "405")); got != 1 {
		t.Errorf("requests_total(POST /items 405) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("requests_total(GET unmatched 404) = %v, want 1", got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues("GET", "/items")); got != 2 {
		t.Errorf("request_duration_seconds count = %d, want 2", got)
	}
}

func TestMetricsRecordsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))
	r := metricsRouter(m)

	res := r.Handle(httptest.NewRequest(http.MethodGet, "/fail", nil))
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", res.StatusCode)
	}
	if got := metricCounterValue(t, m.requestErrors.WithLabelValues("GET", "/fail")); got != 1 {
		t.Errorf("request_errors_total = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("GET", "/fail", "500")); got != 1 {
		t.Errorf("requests_total(500) = %v, want 1", got)
	}
}

func TestMetricsOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	mw := Prometheus(
		WithRegistry(reg),
		WithNamespace("app"),
		WithSubsystem("http"),
		WithConstLabels(prometheus.Labels{"service": "test"}),
		WithBuckets([]float64{0.1, 1}),
	)

	r := lux.New()
	r.Use(mw)
	r.Handle(httptest.NewRequest(http.MethodGet, "/", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := map[string]*dto.MetricFamily{}
	for _, f := range families {
		names[f.GetName()] = f
	}
	for _, want := range []string{"app_http_requests_total", "app_http_request_duration_seconds"} {
		if names[want] == nil {
			t.Errorf("metric %s not registered, have %v", want, names)
		}
	}
	hist := names["app_http_request_duration_seconds"]
	if hist != nil {
		metric := hist.GetMetric()[0]
		if got := len(metric.GetHistogram().GetBucket()); got != 2 {
			t.Errorf("histogram has %d buckets, want 2", got)
		}
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "service" && lp.GetValue() == "test" {
				found = true
			}
		}
		if !found {
			t.Error("const label service=test missing")
		}
	}
}

func TestNewMetricsTwicePanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(WithRegistry(reg))
	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry did not panic")
		}
	}()
	NewMetrics(WithRegistry(reg))
}
