// Command ratesweep drives an HTTP endpoint through a ladder of fixed
// request rates, open-loop, and writes per-rate-point CSV results.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mpetrov/ratesweep/internal/config"
	"github.com/mpetrov/ratesweep/internal/executor"
	"github.com/mpetrov/ratesweep/internal/httpclient"
	"github.com/mpetrov/ratesweep/internal/metrics"
	"github.com/mpetrov/ratesweep/internal/output"
	"github.com/mpetrov/ratesweep/internal/runner"
	"github.com/mpetrov/ratesweep/internal/threshold"
	"github.com/mpetrov/ratesweep/internal/tracing"
)

const (
	progressInterval = time.Second
	preflightTimeout = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}
	evaluator := threshold.NewEvaluator(thresholds)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("trace exporter shutdown failed")
		}
	}()

	reporter, err := output.NewReporter(cfg.ResultsDir, cfg.RunTag, cfg.Overwrite, cfg.RawRecords)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"run_id": reporter.RunID(),
		"target": cfg.TargetURL,
		"tag":    cfg.RunTag,
		"rates":  cfg.Rates,
	}).Info("starting sweep")

	// Size the client's pool for the largest rate point so the connection
	// pool is not the bottleneck anywhere on the ladder.
	maxConcurrency := 0
	for _, rate := range cfg.Rates {
		if c := cfg.ConcurrencyFor(rate); c > maxConcurrency {
			maxConcurrency = c
		}
	}
	client := httpclient.New(cfg.Timeout, maxConcurrency)

	preflight(ctx, log, cfg.TargetURL)

	startedAt := time.Now()
	var artifacts []string
	var failures []string

	for _, rate := range cfg.Rates {
		if ctx.Err() != nil {
			break
		}

		collector := metrics.NewCollector(cfg.RawRecords)

		var opts []executor.Option
		if cfg.Tracing.Enabled() {
			opts = append(opts, executor.WithTracing(provider.Tracer(), provider.ShouldPropagate()))
		}
		exec, err := executor.New(client, cfg.TargetURL, cfg.Prompt, rate, opts...)
		if err != nil {
			return err
		}

		concurrency := cfg.ConcurrencyFor(rate)
		log.WithFields(logrus.Fields{
			"rate":        rate,
			"duration":    cfg.Duration,
			"concurrency": concurrency,
			"arrival":     cfg.Arrival.Model,
		}).Info("starting rate point")

		r := runner.New(runner.Options{
			Rate:        rate,
			Duration:    cfg.Duration,
			Warmup:      cfg.Warmup,
			Concurrency: concurrency,
			DrainGrace:  cfg.DrainGrace,
			Executor:    exec,
			Collector:   collector,
			Arrival:     cfg.Arrival.Model,
		})

		progress := output.NewProgressReporter(collector, rate, progressInterval, os.Stdout)
		progress.Start()
		res := r.Run(ctx)
		progress.Stop()

		res.ScheduleNotHonored = cfg.SkewThreshold > 0 && res.SkewP99 > cfg.SkewThreshold

		output.PrintPointReport(os.Stdout, res)

		path, err := reporter.WritePoint(res, collector.Records())
		if err != nil {
			return fmt.Errorf("write results for rate point %s: %w", metrics.FormatRate(rate), err)
		}
		artifacts = append(artifacts, path)
		log.WithField("artifact", path).Info("rate point written")

		if err := reporter.AppendSummary(res); err != nil {
			return fmt.Errorf("append summary for rate point %s: %w", metrics.FormatRate(rate), err)
		}

		if res.Issued > 0 && res.Success == 0 {
			failures = append(failures, fmt.Sprintf("rate %s: no successful requests", metrics.FormatRate(rate)))
		}
		if res.ScheduleNotHonored {
			log.WithFields(logrus.Fields{
				"rate":     rate,
				"skew_p99": res.SkewP99,
			}).Warn("dispatch schedule not honored")
			failures = append(failures, fmt.Sprintf("rate %s: dispatch skew p99 %s exceeds %s",
				metrics.FormatRate(rate), res.SkewP99, cfg.SkewThreshold))
		}
		for _, result := range evaluator.Evaluate(res) {
			fmt.Fprintln(os.Stdout, result.Message)
			if !result.Pass {
				failures = append(failures, result.Message)
			}
		}
	}

	if _, err := reporter.WriteManifest(output.Manifest{
		Target:     cfg.TargetURL,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Rates:      cfg.Rates,
		Duration:   cfg.Duration,
		Warmup:     cfg.Warmup,
		Timeout:    cfg.Timeout,
		DrainGrace: cfg.DrainGrace,
		Arrival:    string(cfg.Arrival.Model),
		Artifacts:  artifacts,
	}); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("sweep interrupted after %d of %d rate points", len(artifacts), len(cfg.Rates))
	}
	if len(failures) > 0 {
		return fmt.Errorf("sweep completed with failures:\n  %s", strings.Join(failures, "\n  "))
	}

	log.WithField("artifacts", len(artifacts)).Info("sweep complete")
	return nil
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// preflight probes the target's health endpoint once before the sweep. A
// failure is logged but never blocks the run; the first rate point will
// surface a dead target in its own results.
func preflight(ctx context.Context, log *logrus.Logger, target string) {
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	u.Path = "/health"
	u.RawQuery = ""

	reqCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("health preflight failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.WithField("status", resp.StatusCode).Warn("health preflight returned an error status")
		return
	}
	log.WithField("status", resp.StatusCode).Debug("health preflight ok")
}
