package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/discochess/faultkv/internal/randsrc"
)

func TestMannWhitneyU(t *testing.T) {
	tests := []struct {
		name       string
		sample1    []float64
		sample2    []float64
		wantSignif bool
	}{
		{
			name:       "identical samples",
			sample1:    []float64{1, 2, 3, 4, 5},
			sample2:    []float64{1, 2, 3, 4, 5},
			wantSignif: false,
		},
		{
			name:       "clearly different samples",
			sample1:    []float64{1, 2, 3, 4, 5},
			sample2:    []float64{10, 11, 12, 13, 14},
			wantSignif: true,
		},
		{
			name:       "highly overlapping samples",
			sample1:    []float64{3, 4, 5, 6, 7},
			sample2:    []float64{4, 5, 6, 7, 8},
			wantSignif: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MannWhitneyU(tt.sample1, tt.sample2)
			if result.Significant != tt.wantSignif {
				t.Errorf("Significant = %v, want %v (p=%f)", result.Significant, tt.wantSignif, result.PValue)
			}
		})
	}
}

func TestMannWhitneyU_Empty(t *testing.T) {
	result := MannWhitneyU([]float64{}, []float64{1, 2, 3})
	if result.U != 0 {
		t.Errorf("U = %f, want 0 for empty sample", result.U)
	}
	if result.Significant {
		t.Error("empty sample reported as significant")
	}
}

func TestEffectSize(t *testing.T) {
	tests := []struct {
		name       string
		sample1    []float64
		sample2    []float64
		wantInterp string
	}{
		{
			name:       "large effect",
			sample1:    []float64{1, 2, 3, 4, 5},
			sample2:    []float64{10, 11, 12, 13, 14},
			wantInterp: "large",
		},
		{
			name:       "negligible effect",
			sample1:    []float64{5, 5, 5, 5, 5},
			sample2:    []float64{5.1, 5, 4.9, 5, 5},
			wantInterp: "negligible",
		},
		{
			name:       "too few samples",
			sample1:    []float64{1},
			sample2:    []float64{2, 3},
			wantInterp: "undefined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeEffectSize(tt.sample1, tt.sample2)
			if result.Interpretation != tt.wantInterp {
				t.Errorf("Interpretation = %s, want %s (d=%f)", result.Interpretation, tt.wantInterp, result.CohensD)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	sample := []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	stats := Describe(sample)

	if stats.N != 10 {
		t.Errorf("N = %d, want 10", stats.N)
	}
	if stats.Mean != 5.5 {
		t.Errorf("Mean = %f, want 5.5", stats.Mean)
	}
	if stats.Median != 5 {
		t.Errorf("Median = %f, want 5", stats.Median)
	}
	if stats.Min != 1 {
		t.Errorf("Min = %f, want 1", stats.Min)
	}
	if stats.Max != 10 {
		t.Errorf("Max = %f, want 10", stats.Max)
	}
	if stats.P90 != 9 {
		t.Errorf("P90 = %f, want 9", stats.P90)
	}
	if sample[0] != 10 {
		t.Error("Describe reordered its input")
	}
}

func TestDescribe_Single(t *testing.T) {
	stats := Describe([]float64{3})
	if stats.StdDev != 0 {
		t.Errorf("StdDev = %f, want 0", stats.StdDev)
	}
	if stats.P99 != 3 {
		t.Errorf("P99 = %f, want 3", stats.P99)
	}
}

func TestDescribe_Empty(t *testing.T) {
	stats := Describe([]float64{})
	if stats.N != 0 {
		t.Errorf("N = %d, want 0", stats.N)
	}
}

func TestBootstrapConfidenceInterval(t *testing.T) {
	sample1 := []float64{1, 2, 3, 4, 5}
	sample2 := []float64{6, 7, 8, 9, 10}

	result := BootstrapConfidenceInterval(sample1, sample2, 1000, 0.95, randsrc.New(1))

	if math.Abs(result.MeanDiff-(-5)) > 1e-9 {
		t.Errorf("MeanDiff = %f, want -5", result.MeanDiff)
	}
	if result.LowerBound > result.MeanDiff || result.UpperBound < result.MeanDiff {
		t.Errorf("CI [%f, %f] does not contain mean diff %f", result.LowerBound, result.UpperBound, result.MeanDiff)
	}
	if result.LowerBound == result.UpperBound {
		t.Error("bootstrap produced a degenerate interval")
	}
}

func TestBootstrapConfidenceInterval_Empty(t *testing.T) {
	result := BootstrapConfidenceInterval(nil, []float64{1}, 100, 0.95, randsrc.New(1))
	if result.MeanDiff != 0 || result.Confidence != 0.95 {
		t.Errorf("got %+v, want zero interval at 0.95", result)
	}
}

func TestCompare(t *testing.T) {
	fast := []float64{1, 1.1, 0.9, 1, 1.05, 0.95, 1, 1.02}
	slow := []float64{5, 5.2, 4.8, 5.1, 4.9, 5, 5.05, 4.95}

	c := Compare("none", fast, "zstd", slow, 500, 0.95, 7)

	if c.Faster != "none" {
		t.Errorf("Faster = %s, want none", c.Faster)
	}
	if !c.FasterConfident {
		t.Errorf("FasterConfident = false (p=%f)", c.MannWhitney.PValue)
	}
	if !strings.Contains(c.Summary(), "none vs zstd") {
		t.Errorf("Summary missing header:\n%s", c.Summary())
	}
}

func TestCompare_Tie(t *testing.T) {
	s := []float64{1, 2, 3}
	c := Compare("a", s, "b", s, 10, 0.95, 1)
	if c.Faster != "tie" || c.FasterConfident {
		t.Errorf("Faster = %s confident=%v, want tie", c.Faster, c.FasterConfident)
	}
}
