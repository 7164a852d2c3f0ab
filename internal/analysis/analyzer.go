package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/statflow/statflow/pkg/schema"
)

// Input carries everything an analyzer needs to run one step.
type Input struct {
	WorkflowID string
	StepID     string
	UserID     string

	// Dataset is resolved by the executor before dispatch. Nil when the
	// workflow has no dataset bound; analyzers that require one never see nil.
	Dataset *Dataset

	// Config is the step's decoded configuration, already validated against
	// the analyzer's config schema.
	Config map[string]any

	// StepOutcomes holds the results of previously completed steps in this
	// execution, keyed by step ID. Used by report generation.
	StepOutcomes map[string]any
}

// Output is the result of a successful analyzer run.
type Output struct {
	Summary string         `json:"summary"`
	Result  map[string]any `json:"result"`
}

// Analyzer executes one type of analysis step. Implementations must be safe
// for concurrent use; the executor may run multiple steps of the same type
// from different workflows at once.
type Analyzer interface {
	// Type returns the step type this analyzer handles.
	Type() schema.StepType

	// ConfigSchema returns the JSON Schema the step configuration must
	// satisfy, or nil when any configuration is accepted.
	ConfigSchema() []byte

	// RequiresDataset reports whether the analyzer needs a dataset bound to
	// the workflow.
	RequiresDataset() bool

	// Execute runs the analysis. It must honor ctx cancellation.
	Execute(ctx context.Context, in *Input) (*Output, error)
}

// ConfigValidator validates step configurations against analyzer schemas.
// Compiled schemas are cached per analyzer type. Safe for concurrent use.
type ConfigValidator struct {
	mu    sync.RWMutex
	cache map[schema.StepType]*jsonschema.Schema
}

// NewConfigValidator creates an empty validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{cache: make(map[schema.StepType]*jsonschema.Schema)}
}

// Validate checks raw step configuration against the analyzer's schema.
// A nil schema or empty configuration passes.
func (v *ConfigValidator) Validate(a Analyzer, config json.RawMessage) error {
	schemaBytes := a.ConfigSchema()
	if len(schemaBytes) == 0 {
		return nil
	}

	compiled, err := v.getOrCompile(a.Type(), schemaBytes)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"invalid config schema for %s", a.Type()).WithCause(err)
	}

	raw := config
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "configuration is not valid JSON").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toValidationError(err)
	}
	return nil
}

func (v *ConfigValidator) getOrCompile(t schema.StepType, schemaBytes []byte) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if cached, ok := v.cache[t]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[t]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaBytes)))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := fmt.Sprintf("statflow://config-schema/%s", t)
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[t] = compiled
	return compiled, nil
}

// toValidationError flattens a jsonschema.ValidationError tree into a FlowError.
func toValidationError(err error) *schema.FlowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation,
		"configuration validation failed with %d errors", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}
	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
