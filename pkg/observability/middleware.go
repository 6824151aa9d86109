package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const attrResponseBytes = "http.response.body.size"

// responseRecorder remembers the first status code and counts body bytes.
type responseRecorder struct {
	http.ResponseWriter

	status int
	bytes  int64
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}

	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(buf []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}

	n, err := rr.ResponseWriter.Write(buf)
	rr.bytes += int64(n)

	return n, err //nolint:wrapcheck // io.Writer contract.
}

func (rr *responseRecorder) code() int {
	if rr.status == 0 {
		return http.StatusOK
	}

	return rr.status
}

// HTTPMiddleware wraps next with a server span named "METHOD /path" and, when
// red is non-nil, records one RED observation per request under the same name.
// Incoming W3C trace headers become the span parent.
func HTTPMiddleware(tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		route := req.Method + " " + req.URL.Path
		start := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		ctx, span := tracer.Start(ctx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				attribute.String("http.target", req.URL.Path),
			),
		)
		defer span.End()

		done := red.TrackInflight(ctx, route)
		defer done()

		rec := &responseRecorder{ResponseWriter: rw}
		next.ServeHTTP(rec, req.WithContext(ctx))

		code := rec.code()
		span.SetAttributes(
			semconv.HTTPResponseStatusCode(code),
			attribute.Int64(attrResponseBytes, rec.bytes),
		)

		status := StatusOK
		if code >= http.StatusInternalServerError {
			status = StatusError

			span.SetStatus(codes.Error, http.StatusText(code))
		}

		red.RecordRequest(ctx, route, status, time.Since(start))
	})
}
