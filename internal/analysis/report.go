package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/statflow/statflow/pkg/schema"
)

const reportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "title": { "type": "string" },
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "query"],
        "properties": {
          "name": { "type": "string", "minLength": 1 },
          "query": { "type": "string", "minLength": 1 }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// ReportAnalyzer assembles a report from the outcomes of earlier steps. Each
// section is a jq query run against the step outcome map, keyed by step ID.
// Thread-safe: compiled queries are cached and reused across goroutines.
type ReportAnalyzer struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewReportAnalyzer creates a report generation analyzer.
func NewReportAnalyzer() *ReportAnalyzer {
	return &ReportAnalyzer{cache: make(map[string]*gojq.Code)}
}

func (a *ReportAnalyzer) Type() schema.StepType { return schema.StepTypeReportGeneration }

func (a *ReportAnalyzer) ConfigSchema() []byte { return []byte(reportSchema) }

func (a *ReportAnalyzer) RequiresDataset() bool { return false }

func (a *ReportAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	title, _ := in.Config["title"].(string)
	if title == "" {
		title = "Analysis Report"
	}

	doc := map[string]any{"steps": normalizeForJQ(in.StepOutcomes)}

	sections := map[string]any{}
	sectionsRaw, _ := in.Config["sections"].([]any)
	for _, raw := range sectionsRaw {
		sec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := sec["name"].(string)
		query, _ := sec["query"].(string)

		result, err := a.evaluate(ctx, query, doc)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"report section %q failed", name).WithCause(err)
		}
		sections[name] = result
	}

	return &Output{
		Summary: fmt.Sprintf("generated report %q with %d sections from %d step outcomes",
			title, len(sections), len(in.StepOutcomes)),
		Result: map[string]any{
			"title":    title,
			"sections": sections,
		},
	}, nil
}

// evaluate runs one jq query. A single output is returned directly; multiple
// outputs collect into a slice.
func (a *ReportAnalyzer) evaluate(ctx context.Context, query string, doc map[string]any) (any, error) {
	code, err := a.getOrCompile(query)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, doc)
	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"jq evaluation failed for %q: %s", query, err.Error()).WithCause(err)
		}
		results = append(results, val)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (a *ReportAnalyzer) getOrCompile(query string) (*gojq.Code, error) {
	a.mu.RLock()
	if code, ok := a.cache[query]; ok {
		a.mu.RUnlock()
		return code, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if code, ok := a.cache[query]; ok {
		return code, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq parse error in %q: %s", query, err.Error()).WithCause(err)
	}

	code, err := gojq.Compile(parsed,
		// Block $ENV and env access inside report queries.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq compile error in %q: %s", query, err.Error()).WithCause(err)
	}

	a.cache[query] = code
	return code, nil
}

// normalizeForJQ converts Go native numeric types to float64, which is what
// gojq expects for numbers.
func normalizeForJQ(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = normalizeForJQ(v)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = normalizeForJQ(v)
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, v := range val {
			out[i] = v
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

var _ Analyzer = (*ReportAnalyzer)(nil)
