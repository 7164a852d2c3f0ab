package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/statflow/statflow/pkg/schema"
)

const preprocessingSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "filter": { "type": "string", "minLength": 1 },
    "derive": {
      "type": "object",
      "additionalProperties": { "type": "string", "minLength": 1 }
    },
    "drop_columns": {
      "type": "array",
      "items": { "type": "string" }
    },
    "drop_missing": { "type": "boolean" }
  },
  "additionalProperties": false
}`

// PreprocessingAnalyzer cleans and reshapes a dataset. Row filters and derived
// columns are expr expressions evaluated against each row, with all column
// values available as top-level variables.
// Thread-safe: compiled programs are cached and reused across goroutines.
type PreprocessingAnalyzer struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewPreprocessingAnalyzer creates a data preprocessing analyzer.
func NewPreprocessingAnalyzer() *PreprocessingAnalyzer {
	return &PreprocessingAnalyzer{cache: make(map[string]*vm.Program)}
}

func (a *PreprocessingAnalyzer) Type() schema.StepType { return schema.StepTypeDataPreprocessing }

func (a *PreprocessingAnalyzer) ConfigSchema() []byte { return []byte(preprocessingSchema) }

func (a *PreprocessingAnalyzer) RequiresDataset() bool { return true }

// Execute applies, in order: missing-value removal, the row filter, derived
// columns, and column drops. The transformed rows are returned in the result
// so downstream steps can report on them.
func (a *PreprocessingAnalyzer) Execute(ctx context.Context, in *Input) (*Output, error) {
	rows := in.Dataset.Rows
	columns := append([]string(nil), in.Dataset.Columns...)
	originalCount := len(rows)

	if dropMissing, _ := in.Config["drop_missing"].(bool); dropMissing {
		rows = filterRows(rows, func(row map[string]any) bool {
			for _, col := range columns {
				if v, ok := row[col]; !ok || v == nil {
					return false
				}
			}
			return true
		})
	}

	if filterExpr, _ := in.Config["filter"].(string); filterExpr != "" {
		prg, err := a.getOrCompile(filterExpr)
		if err != nil {
			return nil, err
		}
		var kept []map[string]any
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out, err := vm.Run(prg, row)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeExecution,
					"filter evaluation failed for %q: %s", filterExpr, err.Error()).WithCause(err)
			}
			if keep, ok := out.(bool); ok && keep {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if derive, _ := in.Config["derive"].(map[string]any); len(derive) > 0 {
		derived := make([]map[string]any, len(rows))
		for i, row := range rows {
			out := make(map[string]any, len(row)+len(derive))
			for k, v := range row {
				out[k] = v
			}
			derived[i] = out
		}
		for col, raw := range derive {
			exprStr, ok := raw.(string)
			if !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"derive expression for column %q is not a string", col)
			}
			prg, err := a.getOrCompile(exprStr)
			if err != nil {
				return nil, err
			}
			for _, row := range derived {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				val, err := vm.Run(prg, row)
				if err != nil {
					return nil, schema.NewErrorf(schema.ErrCodeExecution,
						"derive evaluation failed for column %q: %s", col, err.Error()).WithCause(err)
				}
				row[col] = val
			}
			columns = append(columns, col)
		}
		rows = derived
	}

	if dropRaw, ok := in.Config["drop_columns"].([]any); ok && len(dropRaw) > 0 {
		drop := make(map[string]struct{}, len(dropRaw))
		for _, c := range dropRaw {
			if name, ok := c.(string); ok {
				drop[name] = struct{}{}
			}
		}
		var remaining []string
		for _, col := range columns {
			if _, gone := drop[col]; !gone {
				remaining = append(remaining, col)
			}
		}
		columns = remaining
		for _, row := range rows {
			for name := range drop {
				delete(row, name)
			}
		}
	}

	return &Output{
		Summary: fmt.Sprintf("preprocessed %d rows into %d rows", originalCount, len(rows)),
		Result: map[string]any{
			"rows_before": originalCount,
			"rows_after":  len(rows),
			"columns":     columns,
			"rows":        rows,
		},
	}, nil
}

func (a *PreprocessingAnalyzer) getOrCompile(expression string) (*vm.Program, error) {
	a.mu.RLock()
	if prg, ok := a.cache[expression]; ok {
		a.mu.RUnlock()
		return prg, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if prg, ok := a.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"expression compile error in %q: %s", expression, err.Error()).WithCause(err)
	}
	a.cache[expression] = prg
	return prg, nil
}

func filterRows(rows []map[string]any, keep func(map[string]any) bool) []map[string]any {
	var out []map[string]any
	for _, row := range rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

var _ Analyzer = (*PreprocessingAnalyzer)(nil)
