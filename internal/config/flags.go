package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ratesweep",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target and identity
	flags.String("target", "", "Absolute URL to POST against (env TARGET_URL)")
	flags.String("tag", "", "Run tag used in output filenames (env RUN_TAG)")

	// Sweep shape
	flags.Float64Slice("rates", nil, "Rate points in requests per second (default the 1..1000 ladder)")
	flags.DurationP("duration", "d", 30*time.Second, "Measured duration per rate point")
	flags.Duration("warmup", 2*time.Second, "Warmup duration per rate point, discarded from results")
	flags.Duration("timeout", 300*time.Second, "Per-request timeout")
	flags.Duration("drain-grace", 120*time.Second, "Max wait for in-flight requests after a rate point's dispatch window")
	flags.IntP("concurrency", "c", 0, "Max in-flight requests (0 derives a bound per rate point)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model for tick spacing (uniform or poisson)")

	// Payload
	flags.String("prompt-file", "", "Path to a file holding the prompt payload (>= 1000 characters)")

	// Output
	flags.String("results-dir", "results", "Directory for CSV artifacts (env RESULTS_DIR)")
	flags.Bool("overwrite", false, "Overwrite existing artifacts with the same tag and rate")
	flags.Bool("raw-records", true, "Write per-request record CSVs alongside aggregates")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	// Assertions
	flags.Duration("skew-threshold", time.Second, "Dispatch skew p99 above this flags the rate point as schedule-not-honored")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g. 'latency:p99 < 500')")

	// Tracing
	flags.String("otlp-endpoint", "", "OTLP endpoint for span export (empty disables export)")
	flags.String("otlp-protocol", "grpc", "OTLP transport: 'grpc' or 'http'")
	flags.String("trace-service-name", "", "Service name reported on spans")
	flags.Float64("trace-sample-rate", 0.01, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("trace-propagate", false, "Inject W3C traceparent headers into every request")
	flags.Bool("otlp-insecure", false, "Skip TLS for the OTLP exporter")

	flags.String("config", "", "Path to configuration file (JSON or YAML)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("tag") {
		val, err := fs.GetString("tag")
		if err != nil {
			return err
		}
		cfg.RunTag = strings.TrimSpace(val)
	}
	if fs.Changed("rates") {
		val, err := fs.GetFloat64Slice("rates")
		if err != nil {
			return err
		}
		cfg.Rates = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("warmup") {
		val, err := fs.GetDuration("warmup")
		if err != nil {
			return err
		}
		cfg.Warmup = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("drain-grace") {
		val, err := fs.GetDuration("drain-grace")
		if err != nil {
			return err
		}
		cfg.DrainGrace = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("prompt-file") {
		val, err := fs.GetString("prompt-file")
		if err != nil {
			return err
		}
		cfg.PromptFile = strings.TrimSpace(val)
	}
	if fs.Changed("results-dir") {
		val, err := fs.GetString("results-dir")
		if err != nil {
			return err
		}
		cfg.ResultsDir = strings.TrimSpace(val)
	}
	if fs.Changed("overwrite") {
		val, err := fs.GetBool("overwrite")
		if err != nil {
			return err
		}
		cfg.Overwrite = val
	}
	if fs.Changed("raw-records") {
		val, err := fs.GetBool("raw-records")
		if err != nil {
			return err
		}
		cfg.RawRecords = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("skew-threshold") {
		val, err := fs.GetDuration("skew-threshold")
		if err != nil {
			return err
		}
		cfg.SkewThreshold = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("otlp-endpoint") {
		val, err := fs.GetString("otlp-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("otlp-protocol") {
		val, err := fs.GetString("otlp-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-service-name") {
		val, err := fs.GetString("trace-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("trace-propagate") {
		val, err := fs.GetBool("trace-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = val
	}
	if fs.Changed("otlp-insecure") {
		val, err := fs.GetBool("otlp-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	return nil
}
