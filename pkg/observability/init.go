package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	instrumentationName = "github.com/Sumatoshi-tech/rtalign"

	attrAppMode = "app.mode"

	envTracesSampler    = "OTEL_TRACES_SAMPLER"
	envTracesSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

// envSamplers maps OTEL_TRACES_SAMPLER values to samplers. The argument is
// the ratio parsed from OTEL_TRACES_SAMPLER_ARG.
var envSamplers = map[string]func(ratio float64) sdktrace.Sampler{
	"always_on":  func(float64) sdktrace.Sampler { return sdktrace.AlwaysSample() },
	"always_off": func(float64) sdktrace.Sampler { return sdktrace.NeverSample() },
	"traceidratio": func(r float64) sdktrace.Sampler {
		return sdktrace.TraceIDRatioBased(r)
	},
	"parentbased_always_on": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	},
	"parentbased_always_off": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.NeverSample())
	},
	"parentbased_traceidratio": func(r float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(r))
	},
}

// Providers holds the initialized observability providers.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// MetricsHandler serves the Prometheus scrape endpoint. Nil unless
	// Config.Prometheus is set.
	MetricsHandler http.Handler

	// Shutdown flushes pending telemetry within Config.ShutdownTimeoutSec.
	// Calling it more than once is safe.
	Shutdown func(ctx context.Context) error
}

// Init wires tracing, metrics and logging from cfg and installs the tracer
// provider, meter provider and W3C propagators as the otel globals. Without
// an OTLP endpoint or Prometheus reader every provider is a no-op.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	var closers shutdownStack

	tp, err := buildTracerProvider(ctx, cfg, res, &closers)
	if err != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", err)
	}

	mp, metricsHandler, err := buildMeterProvider(ctx, cfg, res, &closers)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", err), closers.run(ctx))
	}

	if !cfg.TraceVerbose {
		tp = NewFilteringTracerProvider(tp)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeoutSec * time.Second
	}

	return Providers{
		Tracer:         tp.Tracer(instrumentationName),
		Meter:          mp.Meter(instrumentationName),
		Logger:         buildLogger(cfg),
		MetricsHandler: metricsHandler,
		Shutdown: func(shutdownCtx context.Context) error {
			deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeout)
			defer cancel()

			return closers.run(deadlineCtx)
		},
	}, nil
}

// shutdownStack runs registered shutdown functions in reverse order. Each
// function runs at most once.
type shutdownStack struct {
	funcs []func(context.Context) error
}

func (s *shutdownStack) push(fn func(context.Context) error) {
	s.funcs = append(s.funcs, fn)
}

func (s *shutdownStack) run(ctx context.Context) error {
	funcs := s.funcs
	s.funcs = nil

	var errs []error

	for _, fn := range slices.Backward(funcs) {
		errs = append(errs, fn(ctx))
	}

	return errors.Join(errs...)
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String(attrAppMode, string(cfg.Mode)))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

// otlpTarget is the collector connection shared by the trace and metric
// exporters.
type otlpTarget struct {
	endpoint string
	insecure bool
	headers  map[string]string
}

func (o otlpTarget) traceOptions() []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(o.endpoint)}
	if o.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(o.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(o.headers))
	}

	return opts
}

func (o otlpTarget) metricOptions() []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(o.endpoint)}
	if o.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(o.headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(o.headers))
	}

	return opts
}

func targetOf(cfg Config) otlpTarget {
	return otlpTarget{endpoint: cfg.OTLPEndpoint, insecure: cfg.OTLPInsecure, headers: cfg.OTLPHeaders}
}

func buildTracerProvider(
	ctx context.Context, cfg Config, res *resource.Resource, closers *shutdownStack,
) (trace.TracerProvider, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), nil
	}

	exporter, err := otlptracegrpc.New(ctx, targetOf(cfg).traceOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	// Dropped attributes are only reported while debugging traces.
	var dropLogger *slog.Logger
	if cfg.DebugTrace {
		dropLogger = slog.New(slog.NewTextHandler(logOutput(cfg), &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewAttributeFilter(
			sdktrace.NewBatchSpanProcessor(exporter), DefaultAttributePolicy(), dropLogger,
		)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(selectSampler(cfg)),
	)
	closers.push(tp.Shutdown)

	return tp, nil
}

// selectSampler resolves, in order: DebugTrace, OTEL_TRACES_SAMPLER,
// Config.SampleRatio, then parent-based always-on.
func selectSampler(cfg Config) sdktrace.Sampler {
	if cfg.DebugTrace {
		return sdktrace.AlwaysSample()
	}

	if name := os.Getenv(envTracesSampler); name != "" {
		if build, ok := envSamplers[strings.ToLower(name)]; ok {
			return build(parseRatio(os.Getenv(envTracesSamplerArg)))
		}
	}

	if cfg.SampleRatio > 0 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	}

	return sdktrace.ParentBased(sdktrace.AlwaysSample())
}

func logOutput(cfg Config) io.Writer {
	if cfg.LogOutput != nil {
		return cfg.LogOutput
	}

	return os.Stderr
}

func buildLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	out := logOutput(cfg)

	var inner slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(out, opts)
	}

	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

// buildMeterProvider attaches a Prometheus reader and an OTLP periodic reader
// as configured. With neither a no-op provider is returned.
func buildMeterProvider(
	ctx context.Context, cfg Config, res *resource.Resource, closers *shutdownStack,
) (metric.MeterProvider, http.Handler, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	readers := 0

	var handler http.Handler

	if cfg.Prometheus {
		reader, promHandler, err := NewPrometheusReader()
		if err != nil {
			return nil, nil, err
		}

		opts = append(opts, sdkmetric.WithReader(reader))
		handler = promHandler
		readers++
	}

	if cfg.OTLPEndpoint != "" {
		exporter, err := otlpmetricgrpc.New(ctx, targetOf(cfg).metricOptions()...)
		if err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
		readers++
	}

	if readers == 0 {
		return noopmetric.NewMeterProvider(), nil, nil
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	closers.push(mp.Shutdown)

	return mp, handler, nil
}

// ParseOTLPHeaders parses OTEL_EXPORTER_OTLP_HEADERS style input,
// "key=value,key=value". Pairs without "=" are skipped; nil is returned when
// nothing remains.
func ParseOTLPHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return headers
}

// parseRatio reads a sampler ratio, falling back to 1 for empty or
// unparsable input and clamping to [0, 1].
func parseRatio(s string) float64 {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 1
	}

	return min(max(ratio, 0), 1)
}
