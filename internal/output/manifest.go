package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest describes one sweep run: the configuration that shaped it and the
// artifacts it produced. It is written once, after the last rate point.
type Manifest struct {
	RunID      string        `yaml:"run_id"`
	Tag        string        `yaml:"tag"`
	Target     string        `yaml:"target"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	Rates      []float64     `yaml:"rates"`
	Duration   time.Duration `yaml:"duration"`
	Warmup     time.Duration `yaml:"warmup"`
	Timeout    time.Duration `yaml:"timeout"`
	DrainGrace time.Duration `yaml:"drain_grace"`
	Arrival    string        `yaml:"arrival_model"`
	Artifacts  []string      `yaml:"artifacts"`
}

// WriteManifest writes the run manifest as YAML next to the CSV artifacts.
func (r *Reporter) WriteManifest(m Manifest) (string, error) {
	m.RunID = r.runID
	m.Tag = r.tag

	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := r.resolvePath(fmt.Sprintf("%s_manifest.yaml", r.tag))
	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish manifest: %w", err)
	}
	return path, nil
}
