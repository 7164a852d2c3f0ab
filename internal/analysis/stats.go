package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/statflow/statflow/pkg/schema"
)

const statisticalTestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["test"],
  "properties": {
    "test": { "type": "string", "enum": ["t_test", "paired_t_test", "correlation"] },
    "column": { "type": "string" },
    "column_a": { "type": "string" },
    "column_b": { "type": "string" },
    "mu": { "type": "number" },
    "alpha": { "type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1 }
  },
  "additionalProperties": false
}`

// StatisticalTestAnalyzer runs hypothesis tests over dataset columns.
type StatisticalTestAnalyzer struct{}

// NewStatisticalTestAnalyzer creates a statistical test analyzer.
func NewStatisticalTestAnalyzer() *StatisticalTestAnalyzer { return &StatisticalTestAnalyzer{} }

func (a *StatisticalTestAnalyzer) Type() schema.StepType { return schema.StepTypeStatisticalTest }

func (a *StatisticalTestAnalyzer) ConfigSchema() []byte { return []byte(statisticalTestSchema) }

func (a *StatisticalTestAnalyzer) RequiresDataset() bool { return true }

func (a *StatisticalTestAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	test, _ := in.Config["test"].(string)
	alpha := 0.05
	if v, ok := toFloat(in.Config["alpha"]); ok {
		alpha = v
	}

	switch test {
	case "t_test":
		return a.oneSampleTTest(in, alpha)
	case "paired_t_test":
		return a.pairedTTest(in, alpha)
	case "correlation":
		return a.correlation(in)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown statistical test %q", test)
	}
}

func (a *StatisticalTestAnalyzer) oneSampleTTest(in *Input, alpha float64) (*Output, error) {
	col, _ := in.Config["column"].(string)
	xs := in.Dataset.Column(col)
	if len(xs) < 2 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"column %q needs at least 2 numeric values, got %d", col, len(xs))
	}
	mu, _ := toFloat(in.Config["mu"])

	m := mean(xs)
	sd := stddev(xs)
	if sd == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "column %q has zero variance", col)
	}
	n := float64(len(xs))
	t := (m - mu) / (sd / math.Sqrt(n))
	df := n - 1
	p := twoSidedTPValue(t, df)

	return &Output{
		Summary: fmt.Sprintf("one-sample t-test on %q: t=%.4f, p=%.4f", col, t, p),
		Result: map[string]any{
			"test":        "t_test",
			"column":      col,
			"n":           len(xs),
			"mean":        m,
			"stddev":      sd,
			"t_statistic": t,
			"df":          df,
			"p_value":     p,
			"significant": p < alpha,
			"alpha":       alpha,
		},
	}, nil
}

func (a *StatisticalTestAnalyzer) pairedTTest(in *Input, alpha float64) (*Output, error) {
	colA, _ := in.Config["column_a"].(string)
	colB, _ := in.Config["column_b"].(string)
	xs := in.Dataset.Column(colA)
	ys := in.Dataset.Column(colB)
	if len(xs) != len(ys) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"paired t-test requires equal lengths, got %d and %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, schema.NewError(schema.ErrCodeValidation, "paired t-test needs at least 2 pairs")
	}

	diffs := make([]float64, len(xs))
	for i := range xs {
		diffs[i] = xs[i] - ys[i]
	}
	m := mean(diffs)
	sd := stddev(diffs)
	if sd == 0 {
		return nil, schema.NewError(schema.ErrCodeExecution, "paired differences have zero variance")
	}
	n := float64(len(diffs))
	t := m / (sd / math.Sqrt(n))
	df := n - 1
	p := twoSidedTPValue(t, df)

	return &Output{
		Summary: fmt.Sprintf("paired t-test %q vs %q: t=%.4f, p=%.4f", colA, colB, t, p),
		Result: map[string]any{
			"test":        "paired_t_test",
			"column_a":    colA,
			"column_b":    colB,
			"n":           len(xs),
			"mean_diff":   m,
			"t_statistic": t,
			"df":          df,
			"p_value":     p,
			"significant": p < alpha,
			"alpha":       alpha,
		},
	}, nil
}

func (a *StatisticalTestAnalyzer) correlation(in *Input) (*Output, error) {
	colA, _ := in.Config["column_a"].(string)
	colB, _ := in.Config["column_b"].(string)
	xs := in.Dataset.Column(colA)
	ys := in.Dataset.Column(colB)
	if len(xs) != len(ys) || len(xs) < 2 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"correlation requires two equal-length columns with at least 2 values, got %d and %d",
			len(xs), len(ys))
	}

	r := pearson(xs, ys)
	return &Output{
		Summary: fmt.Sprintf("Pearson correlation of %q and %q: r=%.4f", colA, colB, r),
		Result: map[string]any{
			"test":        "correlation",
			"column_a":    colA,
			"column_b":    colB,
			"n":           len(xs),
			"coefficient": r,
			"r_squared":   r * r,
		},
	}, nil
}

// --- shared numeric helpers ---

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the sample variance (n-1 denominator).
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}

func stddev(xs []float64) float64 {
	return math.Sqrt(variance(xs))
}

func pearson(xs, ys []float64) float64 {
	mx, my := mean(xs), mean(ys)
	var num, dx, dy float64
	for i := range xs {
		a, b := xs[i]-mx, ys[i]-my
		num += a * b
		dx += a * a
		dy += b * b
	}
	denom := math.Sqrt(dx * dy)
	if denom == 0 {
		return 0
	}
	return num / denom
}

// twoSidedTPValue approximates the two-sided p-value of Student's t via the
// regularized incomplete beta function.
func twoSidedTPValue(t, df float64) float64 {
	x := df / (df + t*t)
	p := incompleteBeta(df/2, 0.5, x)
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// incompleteBeta computes the regularized incomplete beta function I_x(a, b)
// using the continued fraction expansion.
func incompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lbeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(math.Log(x)*a+math.Log(1-x)*b+lbeta) / a

	if x > (a+1)/(a+b+2) {
		return 1 - incompleteBeta(b, a, 1-x)
	}

	// Lentz's algorithm.
	const eps = 1e-12
	f, c, d := 1.0, 1.0, 0.0
	for i := 0; i <= 200; i++ {
		m := i / 2
		var numerator float64
		switch {
		case i == 0:
			numerator = 1.0
		case i%2 == 0:
			numerator = (float64(m) * (b - float64(m)) * x) /
				((a + 2*float64(m) - 1) * (a + 2*float64(m)))
		default:
			numerator = -((a + float64(m)) * (a + b + float64(m)) * x) /
				((a + 2*float64(m)) * (a + 2*float64(m) + 1))
		}

		d = 1 + numerator*d
		if math.Abs(d) < 1e-30 {
			d = 1e-30
		}
		d = 1 / d
		c = 1 + numerator/c
		if math.Abs(c) < 1e-30 {
			c = 1e-30
		}
		f *= c * d
		if math.Abs(1-c*d) < eps {
			break
		}
	}
	return front * (f - 1)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

var _ Analyzer = (*StatisticalTestAnalyzer)(nil)
