package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/statflow/statflow/internal/analysis"
	"github.com/statflow/statflow/internal/logging"
	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// StepRunner executes a single step through its analyzer. It resolves the
// dataset, validates the step configuration, and captures analyzer panics so
// a misbehaving analyzer fails the step instead of the process.
type StepRunner struct {
	registry  *analysis.Registry
	validator *analysis.ConfigValidator
	datasets  analysis.Provider
	logger    *slog.Logger
}

// NewStepRunner creates a step runner.
func NewStepRunner(registry *analysis.Registry, validator *analysis.ConfigValidator, datasets analysis.Provider, logger *slog.Logger) *StepRunner {
	return &StepRunner{
		registry:  registry,
		validator: validator,
		datasets:  datasets,
		logger:    logger,
	}
}

// Run executes the step and returns the analyzer output. Cancellation and
// timeout enforcement happen outside; Run only honors the passed context.
func (r *StepRunner) Run(ctx context.Context, wf *store.Workflow, step *store.WorkflowStep, stepOutcomes map[string]any) (out *analysis.Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			// The traversal loop puts the correlation IDs on the context.
			logging.LogWith(ctx, r.logger).Error("analyzer panic",
				slog.String("step_type", string(step.StepType)),
				slog.Any("panic", rec))
			out = nil
			err = schema.NewErrorf(schema.ErrCodeExecution,
				"analyzer panicked: %v", rec).WithStep(step.ID)
		}
	}()

	analyzer, err := r.registry.Get(step.StepType)
	if err != nil {
		return nil, err
	}

	if err := r.validator.Validate(analyzer, step.Configuration); err != nil {
		if ferr, ok := err.(*schema.FlowError); ok {
			return nil, ferr.WithStep(step.ID)
		}
		return nil, err
	}

	config := map[string]any{}
	if len(step.Configuration) > 0 {
		if err := json.Unmarshal(step.Configuration, &config); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation,
				"step configuration is not a JSON object").WithStep(step.ID).WithCause(err)
		}
	}

	in := &analysis.Input{
		WorkflowID:   wf.ID,
		StepID:       step.ID,
		UserID:       wf.UserID,
		Config:       config,
		StepOutcomes: stepOutcomes,
	}

	if analyzer.RequiresDataset() {
		if wf.DatasetID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"step type %q requires a dataset but the workflow has none bound", step.StepType).
				WithStep(step.ID)
		}
		dataset, err := r.datasets.Get(ctx, wf.DatasetID)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"resolve dataset %q: %s", wf.DatasetID, err.Error()).
				WithStep(step.ID).WithCause(err)
		}
		in.Dataset = dataset
	}

	out, err = analyzer.Execute(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("analyzer %s returned no output", step.StepType)
	}
	return out, nil
}
