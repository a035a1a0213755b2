package middleware

import (
	"bufio"
	"errors"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	latencyWindowSize = 200
	unmatchedRoute    = "<unmatched>"
)

type RouteLatency struct {
	Route string `json:"route"`
	Count int    `json:"count"`
	P50Ms int64  `json:"p50Ms"`
	P95Ms int64  `json:"p95Ms"`
}

type latencyWindow struct {
	samples []int64
	index   int
}

func (w *latencyWindow) add(value int64, max int) {
	if len(w.samples) < max {
		w.samples = append(w.samples, value)
		return
	}
	w.samples[w.index] = value
	w.index = (w.index + 1) % max
}

func (w *latencyWindow) sorted() []int64 {
	values := append([]int64(nil), w.samples...)
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values
}

// Telemetry logs one line per request with rolling p50/p95 latency per
// chi route pattern.
type Telemetry struct {
	logger *zap.Logger
	window int

	mu     sync.Mutex
	routes map[string]*latencyWindow
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Telemetry{logger: logger, window: latencyWindowSize, routes: make(map[string]*latencyWindow)}
}

func (t *Telemetry) record(key string, value int64) (int64, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	win, ok := t.routes[key]
	if !ok {
		win = &latencyWindow{}
		t.routes[key] = win
	}
	win.add(value, t.window)

	values := win.sorted()
	return percentile(values, 0.5), percentile(values, 0.95)
}

func (t *Telemetry) Snapshot() []RouteLatency {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]RouteLatency, 0, len(t.routes))
	for route, win := range t.routes {
		values := win.sorted()
		out = append(out, RouteLatency{
			Route: route,
			Count: len(values),
			P50Ms: percentile(values, 0.5),
			P95Ms: percentile(values, 0.95),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

func percentile(values []int64, p float64) int64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func (t *Telemetry) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &telemetryRecorder{response: w}

		next.ServeHTTP(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}

		duration := time.Since(start)
		routePattern := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			routePattern = rc.RoutePattern()
		}
		p50, p95 := t.record(metricKey(r.Method, routePattern), duration.Milliseconds())

		t.logger.Info(
			"http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("routePattern", routePattern),
			zap.String("requestId", readRequestID(r)),
			zap.Int("status", status),
			zap.Int("bytes", recorder.bytes),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.Int64("p50_ms", p50),
			zap.Int64("p95_ms", p95),
			zap.Bool("error", status >= 500),
			zap.Bool("clientError", status >= 400 && status < 500),
		)
	})
}

// metricKey folds requests no route matched, and non-standard methods,
// into fixed keys so clients cannot grow the route table.
func metricKey(method, routePattern string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
	default:
		method = "OTHER"
	}
	if routePattern == "" {
		routePattern = unmatchedRoute
	}
	return method + " " + routePattern
}

type telemetryRecorder struct {
	response http.ResponseWriter
	status   int
	bytes    int
}

func (r *telemetryRecorder) Header() http.Header {
	return r.response.Header()
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.response.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.response.Write(data)
	r.bytes += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection.
func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.response.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *telemetryRecorder) Flush() {
	if f, ok := r.response.(http.Flusher); ok {
		f.Flush()
	}
}
