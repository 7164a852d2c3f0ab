package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/statflow/statflow/pkg/schema"
)

const advancedStatisticsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["method"],
  "properties": {
    "method": { "type": "string", "enum": ["descriptive", "anova"] },
    "column": { "type": "string" },
    "group_column": { "type": "string" },
    "value_column": { "type": "string" }
  },
  "additionalProperties": false
}`

// AdvancedStatisticsAnalyzer covers descriptive summaries and one-way ANOVA.
type AdvancedStatisticsAnalyzer struct{}

// NewAdvancedStatisticsAnalyzer creates an advanced statistics analyzer.
func NewAdvancedStatisticsAnalyzer() *AdvancedStatisticsAnalyzer {
	return &AdvancedStatisticsAnalyzer{}
}

func (a *AdvancedStatisticsAnalyzer) Type() schema.StepType { return schema.StepTypeAdvancedStatistics }

func (a *AdvancedStatisticsAnalyzer) ConfigSchema() []byte { return []byte(advancedStatisticsSchema) }

func (a *AdvancedStatisticsAnalyzer) RequiresDataset() bool { return true }

func (a *AdvancedStatisticsAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	method, _ := in.Config["method"].(string)
	switch method {
	case "descriptive":
		return a.descriptive(in)
	case "anova":
		return a.anova(in)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown method %q", method)
	}
}

func (a *AdvancedStatisticsAnalyzer) descriptive(in *Input) (*Output, error) {
	col, _ := in.Config["column"].(string)
	xs := in.Dataset.Column(col)
	if len(xs) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"column %q has no numeric values", col)
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	return &Output{
		Summary: fmt.Sprintf("descriptive statistics for %q over %d values", col, len(xs)),
		Result: map[string]any{
			"method": "descriptive",
			"column": col,
			"n":      len(xs),
			"mean":   mean(xs),
			"stddev": stddev(xs),
			"min":    sorted[0],
			"max":    sorted[len(sorted)-1],
			"median": quantile(sorted, 0.5),
			"q1":     quantile(sorted, 0.25),
			"q3":     quantile(sorted, 0.75),
		},
	}, nil
}

func (a *AdvancedStatisticsAnalyzer) anova(in *Input) (*Output, error) {
	groupCol, _ := in.Config["group_column"].(string)
	valueCol, _ := in.Config["value_column"].(string)

	groups := make(map[string][]float64)
	for _, row := range in.Dataset.Rows {
		g, ok := row[groupCol].(string)
		if !ok {
			continue
		}
		if v, ok := toFloat(row[valueCol]); ok {
			groups[g] = append(groups[g], v)
		}
	}
	if len(groups) < 2 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"ANOVA needs at least 2 groups in %q, got %d", groupCol, len(groups))
	}

	var all []float64
	for _, vs := range groups {
		if len(vs) < 2 {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"every ANOVA group needs at least 2 values")
		}
		all = append(all, vs...)
	}
	grandMean := mean(all)

	var ssBetween, ssWithin float64
	for _, vs := range groups {
		gm := mean(vs)
		ssBetween += float64(len(vs)) * (gm - grandMean) * (gm - grandMean)
		for _, v := range vs {
			ssWithin += (v - gm) * (v - gm)
		}
	}

	dfBetween := float64(len(groups) - 1)
	dfWithin := float64(len(all) - len(groups))
	msBetween := ssBetween / dfBetween
	msWithin := ssWithin / dfWithin
	if msWithin == 0 {
		return nil, schema.NewError(schema.ErrCodeExecution, "within-group variance is zero")
	}
	f := msBetween / msWithin
	p := fPValue(f, dfBetween, dfWithin)

	return &Output{
		Summary: fmt.Sprintf("one-way ANOVA across %d groups: F=%.4f, p=%.4f", len(groups), f, p),
		Result: map[string]any{
			"method":      "anova",
			"groups":      len(groups),
			"n":           len(all),
			"f_statistic": f,
			"df_between":  dfBetween,
			"df_within":   dfWithin,
			"p_value":     p,
		},
	}, nil
}

// quantile computes a linearly interpolated quantile of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// fPValue is the upper-tail p-value of the F distribution, expressed through
// the regularized incomplete beta function.
func fPValue(f, d1, d2 float64) float64 {
	if f <= 0 {
		return 1
	}
	x := d2 / (d2 + d1*f)
	return incompleteBeta(d2/2, d1/2, x)
}

var _ Analyzer = (*AdvancedStatisticsAnalyzer)(nil)
