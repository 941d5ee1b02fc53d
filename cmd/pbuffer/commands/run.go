package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FerroO2000/pbuffer"
	"github.com/FerroO2000/pbuffer/session"
	"github.com/spf13/cobra"
)

var errDeliveryMismatch = errors.New("items were not delivered exactly once")

var runFlags struct {
	file string

	strategy   string
	mode       string
	capacity   int
	producers  int
	consumers  int
	items      int
	timeout    time.Duration
	retryDelay time.Duration
	activity   bool

	json bool

	otel         bool
	grpcEndpoint string
	httpEndpoint string
	traceRatio   float64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a producer/consumer session",
	Long: `Run producers and consumers against a shared bounded buffer.

The session is configured by the defaults, then by the file given with -f
(YAML or JSON), then by the flags explicitly set on the command line.

Example session file:

  capacity: 4
  strategy: semaphore
  producers: 3
  consumers: 2
  items: 1000
  mode: timed
  timeout: 50ms

The command fails if any item is lost or delivered more than once.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	flags := runCmd.Flags()

	flags.StringVarP(&runFlags.file, "file", "f", "", "session file (YAML or JSON)")

	flags.StringVar(&runFlags.strategy, "strategy", session.DefaultConfigStrategy.String(), "buffer strategy: condvar or semaphore")
	flags.StringVar(&runFlags.mode, "mode", session.DefaultConfigMode.String(), "access mode: blocking, nonblocking or timed")
	flags.IntVar(&runFlags.capacity, "capacity", session.DefaultConfigBufferCapacity, "buffer capacity")
	flags.IntVar(&runFlags.producers, "producers", session.DefaultConfigProducers, "number of producers")
	flags.IntVar(&runFlags.consumers, "consumers", session.DefaultConfigConsumers, "number of consumers")
	flags.IntVar(&runFlags.items, "items", session.DefaultConfigItemsPerProducer, "items inserted by each producer")
	flags.DurationVar(&runFlags.timeout, "timeout", session.DefaultConfigTimeout, "timeout of every timed operation")
	flags.DurationVar(&runFlags.retryDelay, "retry-delay", session.DefaultConfigRetryDelay, "pause after a failed non-blocking operation")
	flags.BoolVar(&runFlags.activity, "activity", session.DefaultConfigLogActivity, "log every buffer operation (needs -v)")

	flags.BoolVar(&runFlags.json, "json", false, "print the report as JSON")

	flags.BoolVar(&runFlags.otel, "otel", false, "export traces, metrics and logs to an OpenTelemetry collector")
	flags.StringVar(&runFlags.grpcEndpoint, "otel-grpc", "localhost:4317", "collector gRPC endpoint (traces and metrics)")
	flags.StringVar(&runFlags.httpEndpoint, "otel-http", "localhost:4318", "collector HTTP endpoint (logs)")
	flags.Float64Var(&runFlags.traceRatio, "trace-ratio", 1, "trace sampling ratio")
}

// buildConfig merges the defaults, the session file and the changed flags.
func buildConfig(cmd *cobra.Command) (*session.Config, error) {
	cfg := session.NewConfig()

	if runFlags.file != "" {
		sf, err := loadSessionFile(runFlags.file)
		if err != nil {
			return nil, err
		}

		if err := sf.apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid session file %s: %w", runFlags.file, err)
		}
	}

	flags := cmd.Flags()

	if flags.Changed("strategy") {
		strategy, err := pbuffer.ParseStrategy(runFlags.strategy)
		if err != nil {
			return nil, err
		}
		cfg.Strategy = strategy
	}

	if flags.Changed("mode") {
		mode, err := session.ParseMode(runFlags.mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}

	if flags.Changed("capacity") {
		cfg.BufferCapacity = runFlags.capacity
	}
	if flags.Changed("producers") {
		cfg.Producers = runFlags.producers
	}
	if flags.Changed("consumers") {
		cfg.Consumers = runFlags.consumers
	}
	if flags.Changed("items") {
		cfg.ItemsPerProducer = runFlags.items
	}
	if flags.Changed("timeout") {
		cfg.Timeout = runFlags.timeout
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay = runFlags.retryDelay
	}
	if flags.Changed("activity") {
		cfg.LogActivity = runFlags.activity
	}

	return cfg, nil
}

func runSession(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runFlags.otel {
		tel, err := initTelemetry(ctx, telemetryConfig{
			grpcEndpoint: runFlags.grpcEndpoint,
			httpEndpoint: runFlags.httpEndpoint,
			traceRatio:   runFlags.traceRatio,
		})
		switch {
		case errors.Is(err, errCollectorUnreachable):
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v, telemetry export disabled\n", err)
		case err != nil:
			return err
		default:
			defer closeTelemetry(cmd, tel)
		}
	}

	s, err := session.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Init(ctx); err != nil {
		return err
	}

	report, err := s.Run(ctx)
	if report != nil {
		if printErr := printReport(cmd.OutOrStdout(), report, runFlags.json); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return err
	}

	if !report.Valid() {
		return errDeliveryMismatch
	}

	return nil
}

func closeTelemetry(cmd *cobra.Command, tel *telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tel.close(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: telemetry shutdown: %v\n", err)
	}
}
