// Package reporting renders performance reports.
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/discochess/faultkv/benchmark/analysis"
	"github.com/discochess/faultkv/benchmark/perf"
)

// Workload describes what was measured.
type Workload struct {
	Operations  int
	ShardCount  int
	FailureRate float64
	MaxLatency  time.Duration
	Codec       string
}

// MarkdownReport generates performance reports in Markdown format.
type MarkdownReport struct {
	w   io.Writer
	now func() time.Time
}

// NewMarkdownReport creates a new Markdown report writer.
func NewMarkdownReport(w io.Writer) *MarkdownReport {
	return &MarkdownReport{w: w, now: time.Now}
}

// WriteHeader writes the report header.
func (r *MarkdownReport) WriteHeader(title string) {
	fmt.Fprintf(r.w, "# %s\n\n", title)
	fmt.Fprintf(r.w, "Generated: %s\n\n", r.now().Format(time.RFC3339))
}

// WriteMethodology writes the methodology section.
func (r *MarkdownReport) WriteMethodology(wl Workload) {
	fmt.Fprintln(r.w, "## Methodology")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Operations:** %d set/get pairs on keys `key_0` .. `key_%d`\n", wl.Operations, max(wl.Operations-1, 0))
	fmt.Fprintf(r.w, "- **Shards:** %d\n", wl.ShardCount)
	fmt.Fprintf(r.w, "- **Codec:** %s\n", wl.Codec)
	fmt.Fprintf(r.w, "- **Fault injection:** failure rate %.2f, max latency %s\n", wl.FailureRate, wl.MaxLatency)
	fmt.Fprintln(r.w, "- **Metric:** wall time per successful call in milliseconds")
	fmt.Fprintln(r.w)
}

// WriteSummaryTable writes one row per operation.
func (r *MarkdownReport) WriteSummaryTable(rep *perf.Report) {
	fmt.Fprintln(r.w, "## Summary")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Operation | Total | Errors | Faults | Error Rate | Mean (ms) | Median (ms) | P99 (ms) |")
	fmt.Fprintln(r.w, "|-----------|-------|--------|--------|------------|-----------|-------------|----------|")

	for _, op := range rep.Ops {
		fmt.Fprintf(r.w, "| %s | %d | %d | %d | %.2f%% | %.4f | %.4f | %.4f |\n",
			op.Name, op.Total(), op.Errors, op.Faults, op.ErrorRate()*100,
			op.Latency.Mean, op.Latency.Median, op.Latency.P99)
	}
	fmt.Fprintln(r.w)
}

// WriteComparison writes a detailed comparison section.
func (r *MarkdownReport) WriteComparison(comp *analysis.Comparison) {
	fmt.Fprintf(r.w, "## %s vs %s\n\n", comp.Name1, comp.Name2)

	fmt.Fprintln(r.w, "### Descriptive Statistics")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "| Metric | "+comp.Name1+" | "+comp.Name2+" |")
	fmt.Fprintln(r.w, "|--------|"+strings.Repeat("-", len(comp.Name1)+2)+"|"+strings.Repeat("-", len(comp.Name2)+2)+"|")
	fmt.Fprintf(r.w, "| Mean | %.4f | %.4f |\n", comp.Stats1.Mean, comp.Stats2.Mean)
	fmt.Fprintf(r.w, "| Median | %.4f | %.4f |\n", comp.Stats1.Median, comp.Stats2.Median)
	fmt.Fprintf(r.w, "| Std Dev | %.4f | %.4f |\n", comp.Stats1.StdDev, comp.Stats2.StdDev)
	fmt.Fprintf(r.w, "| P90 | %.4f | %.4f |\n", comp.Stats1.P90, comp.Stats2.P90)
	fmt.Fprintf(r.w, "| Max | %.4f | %.4f |\n", comp.Stats1.Max, comp.Stats2.Max)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Statistical Analysis")
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "- **Mann-Whitney U:** %.2f (z=%.2f, p=%.4f)\n",
		comp.MannWhitney.U, comp.MannWhitney.Z, comp.MannWhitney.PValue)
	fmt.Fprintf(r.w, "- **Effect size (Cohen's d):** %.2f (%s)\n",
		comp.EffectSize.CohensD, comp.EffectSize.Interpretation)
	fmt.Fprintf(r.w, "- **%.0f%% CI for mean difference:** [%.4f, %.4f]\n",
		comp.BootstrapCI.Confidence*100, comp.BootstrapCI.LowerBound, comp.BootstrapCI.UpperBound)
	fmt.Fprintln(r.w)

	fmt.Fprintln(r.w, "### Conclusion")
	fmt.Fprintln(r.w)
	if comp.FasterConfident {
		fmt.Fprintf(r.w, "**%s** is significantly faster than %s (p < 0.05, effect size: %s).\n",
			comp.Faster, other(comp.Faster, comp.Name1, comp.Name2), comp.EffectSize.Interpretation)
	} else {
		fmt.Fprintln(r.w, "No statistically significant difference detected (p >= 0.05).")
	}
	fmt.Fprintln(r.w)
}

func other(name, a, b string) string {
	if name == a {
		return b
	}
	return a
}

// WriteDistributionChart writes an ASCII histogram of latencies in ms.
func (r *MarkdownReport) WriteDistributionChart(name string, data []float64) {
	fmt.Fprintf(r.w, "### %s Distribution\n\n", name)
	fmt.Fprintln(r.w, "```")

	const buckets, width = 10, 40
	hist, lo, step := makeHistogram(data, buckets)
	maxCount := 0
	for _, count := range hist {
		maxCount = max(maxCount, count)
	}

	for i, count := range hist {
		barLen := 0
		if maxCount > 0 {
			barLen = count * width / maxCount
		}
		fmt.Fprintf(r.w, "%9.4f │ %s %d\n", lo+float64(i)*step, strings.Repeat("█", barLen), count)
	}

	fmt.Fprintln(r.w, "```")
	fmt.Fprintln(r.w)
}

// makeHistogram returns bucket counts, the lower bound and bucket width.
func makeHistogram(data []float64, buckets int) ([]int, float64, float64) {
	hist := make([]int, buckets)
	if len(data) == 0 {
		return hist, 0, 0
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	step := (hi - lo) / float64(buckets)
	if step == 0 {
		hist[0] = len(data)
		return hist, lo, 0
	}

	for _, v := range data {
		b := int((v - lo) / step)
		if b >= buckets {
			b = buckets - 1
		}
		hist[b]++
	}
	return hist, lo, step
}

// WriteFooter writes the report footer.
func (r *MarkdownReport) WriteFooter() {
	fmt.Fprintln(r.w, "---")
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, "*Report generated by faultkv bench*")
}

// WriteText writes the plain-text report: average time, total operations
// and error rate for each operation.
func WriteText(w io.Writer, rep *perf.Report) {
	fmt.Fprintln(w, "Performance Report")
	fmt.Fprintln(w, "==================")
	fmt.Fprintln(w)

	for _, op := range rep.Ops {
		if op.Total() == 0 {
			continue
		}
		fmt.Fprintf(w, "%s Operations:\n", capitalize(op.Name))
		fmt.Fprintf(w, "  Average time: %.4f seconds\n", op.Latency.Mean/1000)
		fmt.Fprintf(w, "  Total operations: %d\n", op.Succeeded)
		fmt.Fprintf(w, "  Error rate: %.2f%%\n", op.ErrorRate()*100)
		fmt.Fprintln(w)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
