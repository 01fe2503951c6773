package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"45", 45 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{30, 30 * time.Second},
		{float64(2.5), 2500 * time.Millisecond},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsRates(t *testing.T) {
	tests := []struct {
		input interface{}
		want  []float64
	}{
		{"1,10,50", []float64{1, 10, 50}},
		{" 1 , 2.5 ", []float64{1, 2.5}},
		{[]interface{}{1, 10.0, "100"}, []float64{1, 10, 100}},
		{nil, nil},
	}

	for _, tt := range tests {
		got, err := asRates(tt.input)
		if err != nil {
			t.Errorf("asRates(%v) error = %v", tt.input, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("asRates(%v) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("asRates(%v)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestAsRatesRejectsGarbage(t *testing.T) {
	if _, err := asRates("1,oops,3"); err == nil {
		t.Error("asRates(\"1,oops,3\") = nil error, want parse failure")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Duration != 30*time.Second {
		t.Errorf("Duration = %v, want 30s", cfg.Duration)
	}
	if cfg.Warmup != 2*time.Second {
		t.Errorf("Warmup = %v, want 2s", cfg.Warmup)
	}
	if cfg.Timeout != 300*time.Second {
		t.Errorf("Timeout = %v, want 300s", cfg.Timeout)
	}
	if cfg.DrainGrace != 120*time.Second {
		t.Errorf("DrainGrace = %v, want 120s", cfg.DrainGrace)
	}
	if cfg.ResultsDir != "results" {
		t.Errorf("ResultsDir = %q, want \"results\"", cfg.ResultsDir)
	}
	if !cfg.RawRecords {
		t.Error("RawRecords = false, want true by default")
	}
	if cfg.SkewThreshold != time.Second {
		t.Errorf("SkewThreshold = %v, want 1s", cfg.SkewThreshold)
	}
	if len(cfg.Rates) != len(DefaultRates) {
		t.Errorf("Rates has %d points, want %d", len(cfg.Rates), len(DefaultRates))
	}
	if cfg.Arrival.Model != ArrivalModelUniform {
		t.Errorf("Arrival.Model = %q, want uniform", cfg.Arrival.Model)
	}
	if cfg.Prompt != DefaultPrompt() {
		t.Error("Prompt not filled with the default payload")
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	args := []string{
		"--target", "http://svc:9000/generate",
		"--tag", "nightly",
		"--rates", "5,25",
		"-d", "10s",
		"--warmup", "0s",
		"-c", "64",
		"--arrival-model", "poisson",
		"--overwrite",
	}
	cfg, err := NewLoader().Load(args)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "http://svc:9000/generate" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.RunTag != "nightly" {
		t.Errorf("RunTag = %q", cfg.RunTag)
	}
	if len(cfg.Rates) != 2 || cfg.Rates[0] != 5 || cfg.Rates[1] != 25 {
		t.Errorf("Rates = %v, want [5 25]", cfg.Rates)
	}
	if cfg.Duration != 10*time.Second {
		t.Errorf("Duration = %v, want 10s", cfg.Duration)
	}
	if cfg.Warmup != 0 {
		t.Errorf("Warmup = %v, want 0", cfg.Warmup)
	}
	if cfg.Concurrency != 64 {
		t.Errorf("Concurrency = %d, want 64", cfg.Concurrency)
	}
	if cfg.Arrival.Model != ArrivalModelPoisson {
		t.Errorf("Arrival.Model = %q, want poisson", cfg.Arrival.Model)
	}
	if !cfg.Overwrite {
		t.Error("Overwrite = false, want true")
	}
}

func TestLoadEnvironmentFallbacks(t *testing.T) {
	t.Setenv("TARGET_URL", "http://env-host/generate")
	t.Setenv("RUN_TAG", "from-env")
	t.Setenv("DURATION_SECONDS", "45")
	t.Setenv("TIMEOUT_SECONDS", "0.5")
	t.Setenv("RESULTS_DIR", "/tmp/sweeps")

	cfg, err := NewLoader().Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "http://env-host/generate" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.RunTag != "from-env" {
		t.Errorf("RunTag = %q", cfg.RunTag)
	}
	if cfg.Duration != 45*time.Second {
		t.Errorf("Duration = %v, want 45s", cfg.Duration)
	}
	if cfg.Timeout != 500*time.Millisecond {
		t.Errorf("Timeout = %v, want 500ms", cfg.Timeout)
	}
	if cfg.ResultsDir != "/tmp/sweeps" {
		t.Errorf("ResultsDir = %q", cfg.ResultsDir)
	}
}

func TestLoadFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("TARGET_URL", "http://env-host/generate")
	cfg, err := NewLoader().Load([]string{"--target", "http://flag-host/generate"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "http://flag-host/generate" {
		t.Errorf("TargetURL = %q, want flag value to win", cfg.TargetURL)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.yaml")
	content := `target: http://file-host/generate
tag: file-run
rates: "2,20"
duration: 15s
warmup: 1
drain_grace: 60
skew_threshold: 250ms
arrival:
  model: poisson
tracing:
  endpoint: otel:4317
  sample_rate: 0.5
  propagate: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "http://file-host/generate" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.RunTag != "file-run" {
		t.Errorf("RunTag = %q", cfg.RunTag)
	}
	if len(cfg.Rates) != 2 || cfg.Rates[0] != 2 || cfg.Rates[1] != 20 {
		t.Errorf("Rates = %v, want [2 20]", cfg.Rates)
	}
	if cfg.Duration != 15*time.Second {
		t.Errorf("Duration = %v, want 15s", cfg.Duration)
	}
	if cfg.Warmup != time.Second {
		t.Errorf("Warmup = %v, want 1s (bare number means seconds)", cfg.Warmup)
	}
	if cfg.DrainGrace != 60*time.Second {
		t.Errorf("DrainGrace = %v, want 60s", cfg.DrainGrace)
	}
	if cfg.SkewThreshold != 250*time.Millisecond {
		t.Errorf("SkewThreshold = %v, want 250ms", cfg.SkewThreshold)
	}
	if cfg.Arrival.Model != ArrivalModelPoisson {
		t.Errorf("Arrival.Model = %q, want poisson", cfg.Arrival.Model)
	}
	if cfg.Tracing.Endpoint != "otel:4317" {
		t.Errorf("Tracing.Endpoint = %q", cfg.Tracing.Endpoint)
	}
	if cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing.SampleRate = %v, want 0.5", cfg.Tracing.SampleRate)
	}
	if !cfg.Tracing.Propagate {
		t.Error("Tracing.Propagate = false, want true")
	}
	if !cfg.Tracing.Enabled() {
		t.Error("Tracing.Enabled() = false with an endpoint set")
	}
}

func TestLoadPromptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	payload := "custom prompt payload"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().Load([]string{"--prompt-file", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Prompt != payload {
		t.Errorf("Prompt = %q, want file contents", cfg.Prompt)
	}
}

func TestLoadMissingPromptFile(t *testing.T) {
	_, err := NewLoader().Load([]string{"--prompt-file", "/nonexistent/prompt.txt"})
	if err == nil {
		t.Fatal("Load() = nil error for missing prompt file")
	}
}

func TestLoadHelpRequested(t *testing.T) {
	_, err := NewLoader().Load([]string{"--help"})
	if err != ErrHelpRequested {
		t.Errorf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}
