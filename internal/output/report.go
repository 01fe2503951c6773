package output

import (
	"fmt"
	"io"

	"github.com/mpetrov/ratesweep/internal/metrics"
)

// PrintPointReport outputs a human-readable summary for one rate point.
func PrintPointReport(w io.Writer, res metrics.RatePointResult) {
	fmt.Fprintf(w, "\n--- Rate Point %s rps ---\n", metrics.FormatRate(res.Rate))
	fmt.Fprintf(w, "Issued:            %d\n", res.Issued)
	fmt.Fprintf(w, "Completed:         %d\n", res.Completed)
	fmt.Fprintf(w, "  Success:         %d\n", res.Success)
	fmt.Fprintf(w, "  HTTP Errors:     %d\n", res.HTTPError)
	fmt.Fprintf(w, "  Timeouts:        %d\n", res.Timeout)
	fmt.Fprintf(w, "  Conn Errors:     %d\n", res.ConnectionError)
	fmt.Fprintf(w, "Abandoned:         %d\n", res.Abandoned)
	fmt.Fprintf(w, "Throughput:        %.2f rps\n", res.Throughput)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", res.LatencyMin)
	fmt.Fprintf(w, "  Mean:            %s\n", res.LatencyMean)
	fmt.Fprintf(w, "  P50:             %s\n", res.LatencyP50)
	fmt.Fprintf(w, "  P90:             %s\n", res.LatencyP90)
	fmt.Fprintf(w, "  P99:             %s\n", res.LatencyP99)
	fmt.Fprintf(w, "  Max:             %s\n", res.LatencyMax)
	fmt.Fprintf(w, "\nDispatch Skew:     p99=%s max=%s\n", res.SkewP99, res.SkewMax)
	if res.ScheduleNotHonored {
		fmt.Fprintln(w, "WARNING: dispatch schedule not honored; results understate offered load")
	}
	if buckets := res.StatusBuckets(); len(buckets) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, b := range buckets {
			fmt.Fprintf(w, "  %d: %d\n", b.Code, b.Count)
		}
	}
}
