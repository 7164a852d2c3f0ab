package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/statflow/statflow/pkg/schema"
)

const machineLearningSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["model", "target", "feature"],
  "properties": {
    "model": { "type": "string", "enum": ["linear_regression"] },
    "target": { "type": "string", "minLength": 1 },
    "feature": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

// MachineLearningAnalyzer fits simple predictive models. Currently ordinary
// least squares regression of one target on one feature.
type MachineLearningAnalyzer struct{}

// NewMachineLearningAnalyzer creates a machine learning analyzer.
func NewMachineLearningAnalyzer() *MachineLearningAnalyzer { return &MachineLearningAnalyzer{} }

func (a *MachineLearningAnalyzer) Type() schema.StepType { return schema.StepTypeMachineLearning }

func (a *MachineLearningAnalyzer) ConfigSchema() []byte { return []byte(machineLearningSchema) }

func (a *MachineLearningAnalyzer) RequiresDataset() bool { return true }

func (a *MachineLearningAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	target, _ := in.Config["target"].(string)
	feature, _ := in.Config["feature"].(string)

	ys := in.Dataset.Column(target)
	xs := in.Dataset.Column(feature)
	if len(xs) != len(ys) || len(xs) < 3 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"linear regression requires equal-length columns with at least 3 values, got %d and %d",
			len(xs), len(ys))
	}

	mx, my := mean(xs), mean(ys)
	var sxx, sxy float64
	for i := range xs {
		dx := xs[i] - mx
		sxx += dx * dx
		sxy += dx * (ys[i] - my)
	}
	if sxx == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "feature %q has zero variance", feature)
	}

	slope := sxy / sxx
	intercept := my - slope*mx

	var ssRes, ssTot float64
	for i := range xs {
		pred := intercept + slope*xs[i]
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTot += (ys[i] - my) * (ys[i] - my)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	rmse := math.Sqrt(ssRes / float64(len(xs)))

	return &Output{
		Summary: fmt.Sprintf("linear regression of %q on %q: R²=%.4f", target, feature, r2),
		Result: map[string]any{
			"model":     "linear_regression",
			"target":    target,
			"feature":   feature,
			"n":         len(xs),
			"slope":     slope,
			"intercept": intercept,
			"r_squared": r2,
			"rmse":      rmse,
		},
	}, nil
}

var _ Analyzer = (*MachineLearningAnalyzer)(nil)
