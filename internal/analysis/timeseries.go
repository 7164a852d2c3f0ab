package analysis

import (
	"context"
	"fmt"

	"github.com/statflow/statflow/pkg/schema"
)

const timeSeriesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["column"],
  "properties": {
    "column": { "type": "string", "minLength": 1 },
    "window": { "type": "integer", "minimum": 2 },
    "forecast_periods": { "type": "integer", "minimum": 0, "maximum": 100 }
  },
  "additionalProperties": false
}`

// TimeSeriesAnalyzer smooths a series with a trailing moving average and
// extends it with a naive trend forecast. Row order is the time axis.
type TimeSeriesAnalyzer struct{}

// NewTimeSeriesAnalyzer creates a time series analyzer.
func NewTimeSeriesAnalyzer() *TimeSeriesAnalyzer { return &TimeSeriesAnalyzer{} }

func (a *TimeSeriesAnalyzer) Type() schema.StepType { return schema.StepTypeTimeSeries }

func (a *TimeSeriesAnalyzer) ConfigSchema() []byte { return []byte(timeSeriesSchema) }

func (a *TimeSeriesAnalyzer) RequiresDataset() bool { return true }

func (a *TimeSeriesAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	col, _ := in.Config["column"].(string)
	window := 3
	if v, ok := toFloat(in.Config["window"]); ok {
		window = int(v)
	}
	forecastPeriods := 0
	if v, ok := toFloat(in.Config["forecast_periods"]); ok {
		forecastPeriods = int(v)
	}

	series := in.Dataset.Column(col)
	if len(series) < window {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"column %q has %d values, need at least the window size %d", col, len(series), window)
	}

	smoothed := make([]float64, 0, len(series)-window+1)
	for i := window; i <= len(series); i++ {
		smoothed = append(smoothed, mean(series[i-window:i]))
	}

	// Naive linear trend over the smoothed tail.
	var forecast []float64
	if forecastPeriods > 0 {
		last := smoothed[len(smoothed)-1]
		trend := 0.0
		if len(smoothed) >= 2 {
			trend = last - smoothed[len(smoothed)-2]
		}
		forecast = make([]float64, forecastPeriods)
		for i := range forecast {
			forecast[i] = last + trend*float64(i+1)
		}
	}

	return &Output{
		Summary: fmt.Sprintf("moving average (window %d) over %d points, %d forecast periods",
			window, len(series), forecastPeriods),
		Result: map[string]any{
			"column":   col,
			"window":   window,
			"n":        len(series),
			"smoothed": smoothed,
			"forecast": forecast,
		},
	}, nil
}

var _ Analyzer = (*TimeSeriesAnalyzer)(nil)
