package engine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/statflow/statflow/pkg/schema"
)

// ConditionEvaluator evaluates optional per-step run conditions written in
// CEL. A step whose condition evaluates to false is skipped without counting
// as a failure. The environment exposes three top-level variables:
//
//	steps:    map(string, dyn), outcomes of completed steps keyed by step ID
//	workflow: map(string, dyn), workflow attributes (id, name, dataset_id)
//	metadata: map(string, dyn), workflow metadata
//
// Thread-safe: compiled programs are cached and reused across goroutines.
type ConditionEvaluator struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewConditionEvaluator creates a sandboxed CEL evaluator for step conditions.
func NewConditionEvaluator() (*ConditionEvaluator, error) {
	mapType := cel.MapType(cel.StringType, cel.DynType)

	env, err := cel.NewEnv(
		cel.Variable("steps", mapType),
		cel.Variable("workflow", mapType),
		cel.Variable("metadata", mapType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &ConditionEvaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Evaluate compiles (or retrieves from cache) a condition and evaluates it.
// The result must be a boolean.
func (e *ConditionEvaluator) Evaluate(condition string, data map[string]any) (bool, error) {
	if condition == "" {
		return true, nil
	}

	prg, err := e.getOrCompile(condition)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(buildActivation(data))
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"condition evaluation failed for %q: %s", condition, err.Error()).WithCause(err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"condition %q did not evaluate to a boolean", condition)
	}
	return result, nil
}

func (e *ConditionEvaluator) getOrCompile(condition string) (cel.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[condition]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[condition]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(condition)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"condition compile error in %q: %s", condition, issues.Err().Error()).
			WithCause(issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"condition program error for %q: %s", condition, err.Error()).WithCause(err)
	}

	e.cache[condition] = prg
	return prg, nil
}

// buildActivation fills missing keys with empty maps so evaluation never hits
// a nil reference.
func buildActivation(data map[string]any) map[string]any {
	activation := make(map[string]any, 3)
	for _, key := range []string{"steps", "workflow", "metadata"} {
		if v, ok := data[key]; ok && v != nil {
			activation[key] = v
		} else {
			activation[key] = map[string]any{}
		}
	}
	return activation
}
