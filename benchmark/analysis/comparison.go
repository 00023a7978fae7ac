package analysis

import (
	"fmt"

	"github.com/discochess/faultkv/internal/randsrc"
)

// Comparison contains a full statistical comparison between two latency
// samples, typically the same operation under two configurations.
type Comparison struct {
	Name1           string
	Name2           string
	Stats1          *DescriptiveStats
	Stats2          *DescriptiveStats
	MannWhitney     *MannWhitneyResult
	EffectSize      *EffectSize
	BootstrapCI     *BootstrapResult
	Faster          string // Name with the lower mean, or "tie".
	FasterConfident bool   // True if statistically significant.
}

// Compare runs every test on the two samples. seed drives the bootstrap.
func Compare(name1 string, sample1 []float64, name2 string, sample2 []float64, bootstrapIterations int, confidence float64, seed uint64) *Comparison {
	c := &Comparison{
		Name1:       name1,
		Name2:       name2,
		Stats1:      Describe(sample1),
		Stats2:      Describe(sample2),
		MannWhitney: MannWhitneyU(sample1, sample2),
		EffectSize:  ComputeEffectSize(sample1, sample2),
		BootstrapCI: BootstrapConfidenceInterval(sample1, sample2, bootstrapIterations, confidence, randsrc.New(seed)),
	}

	switch {
	case c.Stats1.Mean < c.Stats2.Mean:
		c.Faster = name1
		c.FasterConfident = c.MannWhitney.Significant
	case c.Stats2.Mean < c.Stats1.Mean:
		c.Faster = name2
		c.FasterConfident = c.MannWhitney.Significant
	default:
		c.Faster = "tie"
	}
	return c
}

// Summary returns a human-readable summary of the comparison.
func (c *Comparison) Summary() string {
	sig := "not statistically significant"
	if c.MannWhitney.Significant {
		sig = fmt.Sprintf("statistically significant (p=%.4f)", c.MannWhitney.PValue)
	}

	return fmt.Sprintf(
		"%s vs %s:\n"+
			"  %s: mean=%.4fms, median=%.4fms, std=%.4fms\n"+
			"  %s: mean=%.4fms, median=%.4fms, std=%.4fms\n"+
			"  Difference: %.4fms (%.1f%%)\n"+
			"  Effect size: %.2f (%s)\n"+
			"  Faster: %s, %s",
		c.Name1, c.Name2,
		c.Name1, c.Stats1.Mean, c.Stats1.Median, c.Stats1.StdDev,
		c.Name2, c.Stats2.Mean, c.Stats2.Median, c.Stats2.StdDev,
		c.Stats1.Mean-c.Stats2.Mean,
		safePctDiff(c.Stats1.Mean, c.Stats2.Mean),
		c.EffectSize.CohensD, c.EffectSize.Interpretation,
		c.Faster, sig,
	)
}

func safePctDiff(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return (a - b) / b * 100
}
