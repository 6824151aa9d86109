package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rtalign/pkg/config"
	"github.com/Sumatoshi-tech/rtalign/pkg/observability"
	"github.com/Sumatoshi-tech/rtalign/pkg/readio"
	"github.com/Sumatoshi-tech/rtalign/pkg/version"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
	flagFormat   = "format"
)

// Globals holds the persistent flags shared by every command.
type Globals struct {
	ConfigPath string
	LogLevel   string
	LogJSON    bool
}

// Register binds the persistent flags on root.
func (g *Globals) Register(root *cobra.Command) {
	root.PersistentFlags().StringVar(&g.ConfigPath, flagConfig, "", "config file (default: rtalign.yaml in ., ./config or /etc/rtalign)")
	root.PersistentFlags().StringVar(&g.LogLevel, flagLogLevel, config.DefaultLogLevel, "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&g.LogJSON, flagLogJSON, config.DefaultLogJSON, "emit JSON logs")
}

// loadConfig reads the configuration and applies the logging flags that
// were set explicitly on the command line.
func (g *Globals) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed(flagLogLevel) {
		cfg.Logging.Level = g.LogLevel
	}

	if cmd.Flags().Changed(flagLogJSON) {
		cfg.Logging.JSON = g.LogJSON
	}

	return cfg, nil
}

// initObservability starts logging, tracing and metrics for one command run.
// Logs go to the command's stderr so stdout stays reserved for results.
func initObservability(
	cmd *cobra.Command, cfg *config.Config, mode observability.AppMode, prometheus bool,
) (observability.Providers, error) {
	level, err := observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.DebugTrace = cfg.Observability.DebugTrace
	obsCfg.TraceVerbose = cfg.Observability.TraceVerbose
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.LogOutput = cmd.ErrOrStderr()
	obsCfg.Prometheus = prometheus

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}

func shutdownObservability(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// openInput resolves the optional positional path argument, defaulting to stdin.
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, string, error) {
	path := readio.Stdin
	if len(args) > 0 {
		path = args[0]
	}

	if path == readio.Stdin {
		return io.NopCloser(cmd.InOrStdin()), path, nil
	}

	rc, err := readio.Open(path)
	if err != nil {
		return nil, path, err
	}

	return rc, path, nil
}
