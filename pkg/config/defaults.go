package config

import (
	"github.com/Sumatoshi-tech/rtalign/pkg/normalizer"
	"github.com/Sumatoshi-tech/rtalign/pkg/seedtracker"
)

// Normalizer defaults.
const (
	DefaultBufferSize  = normalizer.DefaultCapacity
	DefaultTargetMean  = normalizer.DefaultTargetMean
	DefaultTargetStdev = normalizer.DefaultTargetStdev
)

// Tracker defaults.
const (
	DefaultMaxRefGap        = seedtracker.DefaultMaxRefGap
	DefaultMaxEvtGap        = seedtracker.DefaultMaxEvtGap
	DefaultMaxDiagonalDrift = seedtracker.DefaultMaxDiagonalDrift
	DefaultMinLength        = 0
)

// Replay defaults.
const (
	DefaultWorkers    = 0 // NumCPU.
	DefaultChunkSize  = 400
	DefaultKeepUnread = 0 // Never discard.
	DefaultTop        = 5
	DefaultPollEvery  = 1
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Observability defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultSampleRatio  = 0.0
	DefaultEnvironment  = ""
	DefaultMetricsAddr  = ""
	DefaultDebugTrace   = false
	DefaultTraceVerbose = false
)
