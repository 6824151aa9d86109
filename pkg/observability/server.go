package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"

	readHeaderTimeout = 5 * time.Second
)

// ErrNoMetricsHandler is returned when a metrics server is requested without
// a Prometheus handler.
var ErrNoMetricsHandler = errors.New("metrics handler not configured")

// ReadyCheck reports nil when a subsystem is ready to serve.
type ReadyCheck func(ctx context.Context) error

// HealthHandler always answers 200 with {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeHealth(rw, http.StatusOK, healthStatusOK)
	})
}

// ReadyHandler answers 503 when any check fails and 200 otherwise.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		for _, check := range checks {
			if check(hr.Context()) != nil {
				writeHealth(rw, http.StatusServiceUnavailable, healthStatusUnavailable)

				return
			}
		}

		writeHealth(rw, http.StatusOK, healthStatusOK)
	})
}

func writeHealth(rw http.ResponseWriter, code int, status string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	err := json.NewEncoder(rw).Encode(map[string]string{"status": status})
	if err != nil {
		return
	}
}

// MetricsServer serves /metrics, /healthz and /readyz while a replay runs.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewMetricsServer listens on addr and serves metrics through HTTPMiddleware.
// Use ":0" to pick a free port and read it back with Addr. A nil red skips
// per-route RED recording.
func NewMetricsServer(
	addr string, metrics http.Handler, tracer trace.Tracer, red *REDMetrics, checks ...ReadyCheck,
) (*MetricsServer, error) {
	if metrics == nil {
		return nil, ErrNoMetricsHandler
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", HTTPMiddleware(tracer, red, metrics))
	mux.Handle("/healthz", HTTPMiddleware(tracer, red, HealthHandler()))
	mux.Handle("/readyz", HTTPMiddleware(tracer, red, ReadyHandler(checks...)))

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	return &MetricsServer{server: srv, listener: listener}, nil
}

// Addr returns the address the server listens on.
func (m *MetricsServer) Addr() string {
	return m.listener.Addr().String()
}

// Close shuts the server down, waiting for in-flight scrapes.
func (m *MetricsServer) Close(ctx context.Context) error {
	err := m.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}
