// Package output writes sweep artifacts: per-rate-point CSV aggregates,
// optional raw per-request records, a cross-point summary and a run
// manifest, plus console reporting.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"

	"github.com/mpetrov/ratesweep/internal/metrics"
)

// aggregateHeader is the column set of a rate point CSV. Latencies and skew
// are in seconds, duration in whole seconds.
var aggregateHeader = []string{
	"rate",
	"duration_s",
	"issued",
	"completed",
	"success",
	"http_error",
	"timeout",
	"connection_error",
	"abandoned",
	"latency_min",
	"latency_mean",
	"latency_p50",
	"latency_p90",
	"latency_p99",
	"latency_max",
	"skew_p99",
	"throughput_achieved",
}

var recordHeader = []string{
	"dispatched_at",
	"latency_s",
	"outcome",
	"status_code",
	"bytes",
	"skew_s",
	"server_timing_s",
	"error",
}

// Reporter writes a run's artifacts under a single results directory. Each
// Reporter carries a unique run ID so two runs with the same tag never
// clobber each other's files unless overwriting is requested.
type Reporter struct {
	dir        string
	tag        string
	runID      string
	overwrite  bool
	rawRecords bool
}

// NewReporter creates the results directory if needed and mints a run ID.
func NewReporter(dir, tag string, overwrite, rawRecords bool) (*Reporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Reporter{
		dir:        dir,
		tag:        tag,
		runID:      ulid.Make().String(),
		overwrite:  overwrite,
		rawRecords: rawRecords,
	}, nil
}

// RunID returns this run's unique identifier.
func (r *Reporter) RunID() string {
	return r.runID
}

// WritePoint writes one rate point's aggregate CSV, and its raw record CSV
// when enabled. Writes are all-or-nothing: rows go to a temp file in the
// results directory which is renamed into place only after a clean flush.
// When the destination already exists and overwriting is off, the run ID is
// folded into the filename instead. Returns the aggregate file path.
func (r *Reporter) WritePoint(res metrics.RatePointResult, records []metrics.Record) (string, error) {
	base := fmt.Sprintf("%s_rps%s", r.tag, metrics.FormatRate(res.Rate))
	path := r.resolvePath(base + ".csv")

	row := []string{
		metrics.FormatRate(res.Rate),
		seconds(res.Duration),
		strconv.FormatInt(res.Issued, 10),
		strconv.FormatInt(res.Completed, 10),
		strconv.FormatInt(res.Success, 10),
		strconv.FormatInt(res.HTTPError, 10),
		strconv.FormatInt(res.Timeout, 10),
		strconv.FormatInt(res.ConnectionError, 10),
		strconv.FormatInt(res.Abandoned, 10),
		seconds(res.LatencyMin),
		seconds(res.LatencyMean),
		seconds(res.LatencyP50),
		seconds(res.LatencyP90),
		seconds(res.LatencyP99),
		seconds(res.LatencyMax),
		seconds(res.SkewP99),
		strconv.FormatFloat(res.Throughput, 'f', 3, 64),
	}
	if err := r.writeAtomic(path, [][]string{aggregateHeader, row}); err != nil {
		return "", err
	}

	if r.rawRecords && len(records) > 0 {
		recPath := r.resolvePath(base + "_records.csv")
		rows := make([][]string, 0, len(records)+1)
		rows = append(rows, recordHeader)
		for _, rec := range records {
			rows = append(rows, []string{
				rec.DispatchedAt.Format(time.RFC3339Nano),
				seconds(rec.Latency),
				string(rec.Outcome),
				strconv.Itoa(rec.StatusCode),
				strconv.FormatInt(rec.Bytes, 10),
				seconds(rec.Skew),
				strconv.FormatFloat(rec.ServerTiming, 'f', 6, 64),
				rec.Error,
			})
		}
		if err := r.writeAtomic(recPath, rows); err != nil {
			return "", err
		}
	}

	return path, nil
}

// AppendSummary appends one row per rate point to the run's summary CSV,
// writing the header first when the file is new. The append is guarded by a
// file lock so concurrent sweeps sharing a results directory interleave
// whole rows, never partial ones.
func (r *Reporter) AppendSummary(res metrics.RatePointResult) error {
	path := filepath.Join(r.dir, r.tag+"_summary.csv")

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock summary: %w", err)
	}
	defer lock.Unlock()

	info, err := os.Stat(path)
	writeHeader := os.IsNotExist(err) || (err == nil && info.Size() == 0)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("stat summary: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		header := append([]string{"run_id", "tag"}, aggregateHeader...)
		if err := w.Write(header); err != nil {
			return err
		}
	}
	row := append([]string{r.runID, r.tag},
		metrics.FormatRate(res.Rate),
		seconds(res.Duration),
		strconv.FormatInt(res.Issued, 10),
		strconv.FormatInt(res.Completed, 10),
		strconv.FormatInt(res.Success, 10),
		strconv.FormatInt(res.HTTPError, 10),
		strconv.FormatInt(res.Timeout, 10),
		strconv.FormatInt(res.ConnectionError, 10),
		strconv.FormatInt(res.Abandoned, 10),
		seconds(res.LatencyMin),
		seconds(res.LatencyMean),
		seconds(res.LatencyP50),
		seconds(res.LatencyP90),
		seconds(res.LatencyP99),
		seconds(res.LatencyMax),
		seconds(res.SkewP99),
		strconv.FormatFloat(res.Throughput, 'f', 3, 64),
	)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// resolvePath returns the destination for name, switching to a run-ID
// suffixed variant when the plain name is taken and overwriting is off.
func (r *Reporter) resolvePath(name string) string {
	path := filepath.Join(r.dir, name)
	if r.overwrite {
		return path
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	return filepath.Join(r.dir, fmt.Sprintf("%s_%s%s", stem, r.runID, ext))
}

// writeAtomic writes all rows to a temp file in the results directory and
// renames it over path. A failure at any stage leaves no file at path.
func (r *Reporter) writeAtomic(path string, rows [][]string) error {
	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
