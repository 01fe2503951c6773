package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		TargetURL:  "http://localhost:8080/generate",
		RunTag:     "baseline",
		Rates:      []float64{1, 10},
		Duration:   30 * time.Second,
		Warmup:     2 * time.Second,
		Timeout:    300 * time.Second,
		DrainGrace: 120 * time.Second,
		Prompt:     DefaultPrompt(),
		ResultsDir: "results",
		Arrival:    ArrivalConfig{Model: ArrivalModelUniform},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateCollectsIssues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing target", func(c *Config) { c.TargetURL = "" }, "target is required"},
		{"relative target", func(c *Config) { c.TargetURL = "/generate" }, "absolute URL"},
		{"bad scheme", func(c *Config) { c.TargetURL = "ftp://host/x" }, "scheme must be http or https"},
		{"missing tag", func(c *Config) { c.RunTag = "" }, "run tag is required"},
		{"tag with separator", func(c *Config) { c.RunTag = "a/b" }, "path separators"},
		{"no rates", func(c *Config) { c.Rates = nil }, "at least one rate"},
		{"zero rate", func(c *Config) { c.Rates = []float64{10, 0} }, "rates[1] must be > 0"},
		{"negative rate", func(c *Config) { c.Rates = []float64{-5} }, "rates[0] must be > 0"},
		{"zero duration", func(c *Config) { c.Duration = 0 }, "duration must be > 0"},
		{"negative warmup", func(c *Config) { c.Warmup = -time.Second }, "warmup must be >= 0"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout must be > 0"},
		{"negative drain", func(c *Config) { c.DrainGrace = -time.Second }, "drain grace must be >= 0"},
		{"short prompt", func(c *Config) { c.Prompt = "hi" }, "prompt must be at least"},
		{"no results dir", func(c *Config) { c.ResultsDir = " " }, "results dir is required"},
		{"bad arrival", func(c *Config) { c.Arrival.Model = "bursty" }, "not supported"},
		{"bad sample rate", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want issue containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want containing %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidateAggregatesMultipleIssues(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	var verr ValidationError
	if ve, ok := err.(ValidationError); ok {
		verr = ve
	} else {
		t.Fatalf("Validate() returned %T, want ValidationError", err)
	}
	if len(verr.Issues()) < 4 {
		t.Errorf("Issues() reported %d problems, want at least 4: %v", len(verr.Issues()), verr.Issues())
	}
}

func TestConcurrencyFor(t *testing.T) {
	tests := []struct {
		explicit int
		rate     float64
		want     int
	}{
		{0, 1, 16},      // floor
		{0, 100, 300},   // 3x rate
		{0, 1000, 1024}, // ceiling
		{8, 1000, 8},    // explicit wins
	}

	for _, tt := range tests {
		cfg := Config{Concurrency: tt.explicit}
		if got := cfg.ConcurrencyFor(tt.rate); got != tt.want {
			t.Errorf("ConcurrencyFor(%v) with explicit %d = %d, want %d", tt.rate, tt.explicit, got, tt.want)
		}
	}
}

func TestDefaultPromptMeetsMinimumLength(t *testing.T) {
	prompt := DefaultPrompt()
	if len(prompt) < MinPromptLength {
		t.Errorf("DefaultPrompt() length = %d, want >= %d", len(prompt), MinPromptLength)
	}
	if !strings.HasPrefix(prompt, strings.Repeat("A", MinPromptLength)) {
		t.Error("DefaultPrompt() missing the filler block prefix")
	}
}
