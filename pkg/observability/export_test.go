package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
)

var ParseRatio = parseRatio

func ProbeBuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(cfg)
}

// SamplerDescription names the sampler Init would install for cfg.
func SamplerDescription(cfg Config) string {
	return selectSampler(cfg).Description()
}

// RunShutdownTwice registers fns on a shutdown stack and runs it twice,
// returning both results.
func RunShutdownTwice(ctx context.Context, fns ...func(context.Context) error) (first, second error) {
	var s shutdownStack

	for _, fn := range fns {
		s.push(fn)
	}

	return s.run(ctx), s.run(ctx)
}
