package observe

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

// newTestMux routes the endpoints the middleware must tell apart.
func newTestMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/assessments/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func middlewareSetup(t *testing.T) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)
	exp := useTestTracer(t)
	return Middleware(m)(newTestMux()), reader, exp
}

func serve(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func durationPoints(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.HistogramDataPoint[float64] {
	t.Helper()
	met := findMetric(collect(t, reader), "fluentia.http.request.duration")
	if met == nil {
		t.Fatal("fluentia.http.request.duration not recorded")
	}
	return met.Data.(metricdata.Histogram[float64]).DataPoints
}

func attrValue(dp metricdata.HistogramDataPoint[float64], key string) string {
	v, _ := dp.Attributes.Value(attribute.Key(key))
	return v.AsString()
}

func TestMiddleware_GroupsByRoutePattern(t *testing.T) {
	h, reader, _ := middlewareSetup(t)

	for _, id := range []string{"a1", "b2", "c3"} {
		serve(h, "/v1/assessments/"+id, nil)
	}
	serve(h, "/v1/assessments/missing", nil)
	serve(h, "/nowhere", nil)

	points := durationPoints(t, reader)
	counts := map[string]uint64{}
	for _, dp := range points {
		counts[attrValue(dp, "route")+" "+attrValue(dp, "status_class")] += dp.Count
	}
	want := map[string]uint64{
		"GET /v1/assessments/{id} 2xx": 3,
		"GET /v1/assessments/{id} 4xx": 1,
		"unmatched 4xx":                1,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("count[%q] = %d, want %d (all: %v)", k, counts[k], n, counts)
		}
	}
}

func TestMiddleware_SpanNamedAfterRoute(t *testing.T) {
	h, _, exp := middlewareSetup(t)

	serve(h, "/v1/assessments/missing", nil)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /v1/assessments/{id}" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var status int64
	var route string
	for _, a := range spans[0].Attributes {
		switch a.Key {
		case "http.response.status_code":
			status = a.Value.AsInt64()
		case "http.route":
			route = a.Value.AsString()
		}
	}
	if status != http.StatusNotFound || route != "GET /v1/assessments/{id}" {
		t.Errorf("span status %d route %q", status, route)
	}
}

func TestMiddleware_CorrelationID(t *testing.T) {
	h, _, _ := middlewareSetup(t)

	rec := serve(h, "/v1/assessments/a1", nil)
	if cid := rec.Header().Get("X-Correlation-ID"); len(cid) != 32 {
		t.Errorf("generated X-Correlation-ID = %q", cid)
	}

	rec = serve(h, "/v1/assessments/a1", http.Header{"Traceparent": {traceparent}})
	if cid := rec.Header().Get("X-Correlation-ID"); cid != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("propagated X-Correlation-ID = %q", cid)
	}
}

func TestMiddleware_HealthRoutesLoggedAtDebug(t *testing.T) {
	h, _, _ := middlewareSetup(t)
	buf := captureLogs(t, slog.LevelInfo)

	serve(h, "/healthz", nil)
	if strings.Contains(buf.String(), "request completed") {
		t.Errorf("health route logged at info: %s", buf.String())
	}

	serve(h, "/v1/assessments/a1", nil)
	if !strings.Contains(buf.String(), `route="GET /v1/assessments/{id}"`) {
		t.Errorf("API request not logged: %s", buf.String())
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]string{200: "2xx", 101: "1xx", 404: "4xx", 503: "5xx"} {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestStatusRecorder_Hijack(t *testing.T) {
	t.Parallel()

	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rec.Hijack(); err == nil {
		t.Error("expected error when the wrapped writer cannot hijack")
	}
	if rec.Unwrap() == nil {
		t.Error("Unwrap returned nil")
	}
}
