package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultRates is the rate-point ladder driven when no override is given.
var DefaultRates = []float64{1, 10, 50, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}

// MinPromptLength is the smallest prompt the services under test accept.
const MinPromptLength = 1000

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Config is the immutable run configuration for one invocation of the tool.
// It is owned by the sweep orchestrator and passed read-only everywhere else.
type Config struct {
	TargetURL     string        `mapstructure:"target"`
	RunTag        string        `mapstructure:"tag"`
	Rates         []float64     `mapstructure:"rates"`
	Duration      time.Duration `mapstructure:"duration"`
	Warmup        time.Duration `mapstructure:"warmup"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DrainGrace    time.Duration `mapstructure:"drain_grace"`
	Concurrency   int           `mapstructure:"concurrency"` // 0 derives a per-rate bound
	Prompt        string        `mapstructure:"prompt"`
	PromptFile    string        `mapstructure:"prompt_file"`
	ResultsDir    string        `mapstructure:"results_dir"`
	Overwrite     bool          `mapstructure:"overwrite"`
	RawRecords    bool          `mapstructure:"raw_records"`
	SkewThreshold time.Duration `mapstructure:"skew_threshold"`
	Thresholds    []string      `mapstructure:"thresholds"`
	Arrival       ArrivalConfig `mapstructure:"arrival"`
	Tracing       TracingConfig `mapstructure:"tracing"`
	LogLevel      string        `mapstructure:"log_level"`
	ConfigFile    string        `mapstructure:"-"`
}

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ConcurrencyFor resolves the in-flight bound for one rate point. With no
// explicit bound, three in-flight slots per offered request-per-second keeps
// the limiter from binding under normal conditions while capping local
// socket usage at the top of the ladder.
func (c Config) ConcurrencyFor(rate float64) int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	n := int(3 * rate)
	if n < 16 {
		n = 16
	}
	if n > 1024 {
		n = 1024
	}
	return n
}

// ValidationError aggregates every problem found in a Config.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (set TARGET_URL or --target)")
	} else if u, err := url.Parse(target); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("target must be an absolute URL, got %q", target))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("target scheme must be http or https, got %q", u.Scheme))
	}

	if strings.TrimSpace(c.RunTag) == "" {
		issues = append(issues, "run tag is required (set RUN_TAG or --tag)")
	} else if strings.ContainsAny(c.RunTag, "/\\") {
		issues = append(issues, "run tag must not contain path separators")
	}

	if len(c.Rates) == 0 {
		issues = append(issues, "at least one rate point is required")
	}
	for i, r := range c.Rates {
		if r <= 0 {
			issues = append(issues, fmt.Sprintf("rates[%d] must be > 0, got %v", i, r))
		}
	}

	if c.Duration <= 0 {
		issues = append(issues, "duration must be > 0")
	}
	if c.Warmup < 0 {
		issues = append(issues, "warmup must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.DrainGrace < 0 {
		issues = append(issues, "drain grace must be >= 0")
	}
	if c.Concurrency < 0 {
		issues = append(issues, "concurrency must be >= 0")
	}
	if c.SkewThreshold < 0 {
		issues = append(issues, "skew threshold must be >= 0")
	}

	if len(c.Prompt) < MinPromptLength {
		issues = append(issues, fmt.Sprintf("prompt must be at least %d characters, got %d", MinPromptLength, len(c.Prompt)))
	}

	if strings.TrimSpace(c.ResultsDir) == "" {
		issues = append(issues, "results dir is required")
	}

	switch c.Arrival.Model {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", c.Arrival.Model))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing sample_rate must be between 0.0 and 1.0")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// DefaultPrompt builds the standard request payload: a filler block that
// satisfies the services' minimum prompt length, plus a fixed instruction
// suffix so every request does comparable work.
func DefaultPrompt() string {
	return strings.Repeat("A", MinPromptLength) +
		"\nWrite a detailed explanation of cloud elasticity vs scalability.\n" +
		"Rules:\n" +
		"- 12 bullet points, each 2 sentences.\n" +
		"- Then write a 10-line summary.\n" +
		"- Be specific and technical.\n"
}
