package analysis

import (
	"context"
	"fmt"

	"github.com/statflow/statflow/pkg/schema"
)

const visualizationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["chart_type"],
  "properties": {
    "chart_type": { "type": "string", "enum": ["bar", "line", "scatter", "histogram", "boxplot"] },
    "x_column": { "type": "string" },
    "y_column": { "type": "string" },
    "title": { "type": "string" },
    "bins": { "type": "integer", "minimum": 1, "maximum": 200 }
  },
  "additionalProperties": false
}`

// VisualizationAnalyzer produces a renderer-agnostic chart specification with
// the series data extracted from the dataset. Rendering happens client-side.
type VisualizationAnalyzer struct{}

// NewVisualizationAnalyzer creates a visualization analyzer.
func NewVisualizationAnalyzer() *VisualizationAnalyzer { return &VisualizationAnalyzer{} }

func (a *VisualizationAnalyzer) Type() schema.StepType { return schema.StepTypeVisualization }

func (a *VisualizationAnalyzer) ConfigSchema() []byte { return []byte(visualizationSchema) }

func (a *VisualizationAnalyzer) RequiresDataset() bool { return true }

func (a *VisualizationAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	chartType, _ := in.Config["chart_type"].(string)
	xCol, _ := in.Config["x_column"].(string)
	yCol, _ := in.Config["y_column"].(string)
	title, _ := in.Config["title"].(string)

	spec := map[string]any{
		"chart_type": chartType,
		"title":      title,
	}

	switch chartType {
	case "histogram", "boxplot":
		col := xCol
		if col == "" {
			col = yCol
		}
		values := in.Dataset.Column(col)
		if len(values) == 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"column %q has no numeric values", col)
		}
		spec["column"] = col
		spec["values"] = values
		if chartType == "histogram" {
			bins := 10
			if v, ok := toFloat(in.Config["bins"]); ok {
				bins = int(v)
			}
			spec["bins"] = bins
		}
	default:
		xs := columnValues(in.Dataset, xCol)
		ys := columnValues(in.Dataset, yCol)
		if len(xs) == 0 || len(ys) == 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"chart %q needs both x_column and y_column with values", chartType)
		}
		spec["x"] = map[string]any{"column": xCol, "values": xs}
		spec["y"] = map[string]any{"column": yCol, "values": ys}
	}

	return &Output{
		Summary: fmt.Sprintf("built %s chart specification from %d rows", chartType, len(in.Dataset.Rows)),
		Result:  map[string]any{"chart": spec},
	}, nil
}

// columnValues returns the raw cell values of a column, preserving strings
// for categorical axes.
func columnValues(d *Dataset, name string) []any {
	if name == "" {
		return nil
	}
	var out []any
	for _, row := range d.Rows {
		if v, ok := row[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

var _ Analyzer = (*VisualizationAnalyzer)(nil)
