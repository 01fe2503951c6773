package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from the environment, config files
// and command-line arguments. Precedence, lowest to highest: built-in
// defaults, environment variables, config file, flags.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, environment variables and an optional
// configuration file to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Rates:         append([]float64(nil), DefaultRates...),
		Duration:      30 * time.Second,
		Warmup:        2 * time.Second,
		Timeout:       300 * time.Second,
		DrainGrace:    120 * time.Second,
		ResultsDir:    "results",
		RawRecords:    true,
		SkewThreshold: time.Second,
		LogLevel:      "info",
		Arrival:       ArrivalConfig{Model: ArrivalModelUniform},
		Tracing:       TracingConfig{Protocol: "grpc", SampleRate: 0.01},
		ConfigFile:    configPath,
	}

	applyEnvironment(cfg)

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.RunTag = strings.TrimSpace(cfg.RunTag)

	if err := resolvePrompt(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvironment reads the environment surface the original deployment
// scripts export: bare variable names, durations expressed in seconds.
func applyEnvironment(cfg *Config) {
	if v := os.Getenv("TARGET_URL"); v != "" {
		cfg.TargetURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("RUN_TAG"); v != "" {
		cfg.RunTag = strings.TrimSpace(v)
	}
	if v := os.Getenv("RESULTS_DIR"); v != "" {
		cfg.ResultsDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("RATES"); v != "" {
		if rates, err := parseRateList(v); err == nil && len(rates) > 0 {
			cfg.Rates = rates
		}
	}
	for env, dst := range map[string]*time.Duration{
		"DURATION_SECONDS":      &cfg.Duration,
		"WARMUP_SECONDS":        &cfg.Warmup,
		"TIMEOUT_SECONDS":       &cfg.Timeout,
		"DRAIN_TIMEOUT_SECONDS": &cfg.DrainGrace,
	} {
		if v := os.Getenv(env); v != "" {
			if secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				*dst = time.Duration(secs * float64(time.Second))
			}
		}
	}
	if v := os.Getenv("MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Concurrency = n
		}
	}
}

// applyConfigSettings applies settings from a config file to the Config.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "tag", "run_tag", "run-tag"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("tag: %w", err)
		}
		cfg.RunTag = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "rates"); ok {
		rates, err := asRates(raw)
		if err != nil {
			return fmt.Errorf("rates: %w", err)
		}
		if len(rates) > 0 {
			cfg.Rates = rates
		}
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "warmup"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		cfg.Warmup = dur
	}
	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}
	if raw, ok := lookupSetting(settings, "draingrace", "drain_grace", "drain-grace"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("drainGrace: %w", err)
		}
		cfg.DrainGrace = dur
	}
	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}
	if raw, ok := lookupSetting(settings, "prompt"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		cfg.Prompt = val
	}
	if raw, ok := lookupSetting(settings, "promptfile", "prompt_file", "prompt-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("promptFile: %w", err)
		}
		cfg.PromptFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "resultsdir", "results_dir", "results-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("resultsDir: %w", err)
		}
		cfg.ResultsDir = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "overwrite"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("overwrite: %w", err)
		}
		cfg.Overwrite = val
	}
	if raw, ok := lookupSetting(settings, "rawrecords", "raw_records", "raw-records"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("rawRecords: %w", err)
		}
		cfg.RawRecords = val
	}
	if raw, ok := lookupSetting(settings, "skewthreshold", "skew_threshold", "skew-threshold"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("skewThreshold: %w", err)
		}
		cfg.SkewThreshold = dur
	}
	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = vals
	}
	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "arrival", "arrivalmodel", "arrival_model", "arrival-model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		if raw, ok := lookupSetting(entry, "model"); ok {
			val, err := asString(raw)
			if err != nil {
				return ArrivalConfig{}, fmt.Errorf("model: %w", err)
			}
			return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(val)))}, nil
		}
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tracing := base
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tracing.Propagate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	return tracing, nil
}

func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, err := asString(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("unsupported string list type %T", value)
	}
}

func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			s, err := asString(key)
			if err != nil {
				return nil, err
			}
			out[s] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", value)
	}
}

// resolvePrompt fills Config.Prompt from the prompt file when one is given,
// falling back to the built-in payload.
func resolvePrompt(cfg *Config) error {
	if cfg.PromptFile != "" {
		data, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		cfg.Prompt = string(data)
		return nil
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt()
	}
	return nil
}
