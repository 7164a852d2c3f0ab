package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/statflow/statflow/pkg/schema"
)

const bayesianSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["column"],
  "properties": {
    "column": { "type": "string", "minLength": 1 },
    "prior_alpha": { "type": "number", "exclusiveMinimum": 0 },
    "prior_beta": { "type": "number", "exclusiveMinimum": 0 },
    "credible_level": { "type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1 }
  },
  "additionalProperties": false
}`

// BayesianAnalyzer estimates a success rate with a Beta-Binomial conjugate
// model. The column holds binary outcomes; nonzero counts as success.
type BayesianAnalyzer struct{}

// NewBayesianAnalyzer creates a Bayesian inference analyzer.
func NewBayesianAnalyzer() *BayesianAnalyzer { return &BayesianAnalyzer{} }

func (a *BayesianAnalyzer) Type() schema.StepType { return schema.StepTypeBayesian }

func (a *BayesianAnalyzer) ConfigSchema() []byte { return []byte(bayesianSchema) }

func (a *BayesianAnalyzer) RequiresDataset() bool { return true }

func (a *BayesianAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	col, _ := in.Config["column"].(string)
	priorAlpha, priorBeta := 1.0, 1.0
	if v, ok := toFloat(in.Config["prior_alpha"]); ok {
		priorAlpha = v
	}
	if v, ok := toFloat(in.Config["prior_beta"]); ok {
		priorBeta = v
	}
	level := 0.95
	if v, ok := toFloat(in.Config["credible_level"]); ok {
		level = v
	}

	xs := in.Dataset.Column(col)
	if len(xs) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"column %q has no numeric values", col)
	}

	successes := 0
	for _, x := range xs {
		if x != 0 {
			successes++
		}
	}
	failures := len(xs) - successes

	alpha := priorAlpha + float64(successes)
	beta := priorBeta + float64(failures)
	postMean := alpha / (alpha + beta)
	postVar := (alpha * beta) / ((alpha + beta) * (alpha + beta) * (alpha + beta + 1))

	tail := (1 - level) / 2
	lo := betaQuantile(alpha, beta, tail)
	hi := betaQuantile(alpha, beta, 1-tail)

	return &Output{
		Summary: fmt.Sprintf("Beta-Binomial posterior for %q: mean=%.4f, %d%% CI [%.4f, %.4f]",
			col, postMean, int(level*100), lo, hi),
		Result: map[string]any{
			"column":           col,
			"n":                len(xs),
			"successes":        successes,
			"failures":         failures,
			"posterior_alpha":  alpha,
			"posterior_beta":   beta,
			"posterior_mean":   postMean,
			"posterior_stddev": math.Sqrt(postVar),
			"credible_level":   level,
			"credible_low":     lo,
			"credible_high":    hi,
		},
	}, nil
}

// betaQuantile inverts the regularized incomplete beta function by bisection.
func betaQuantile(a, b, p float64) float64 {
	lo, hi := 0.0, 1.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if incompleteBeta(a, b, mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

var _ Analyzer = (*BayesianAnalyzer)(nil)
