package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statflow/statflow/internal/analysis"
	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

func newTestRunner(t *testing.T, datasets analysis.Provider, analyzers ...analysis.Analyzer) *StepRunner {
	t.Helper()
	reg, err := analysis.NewRegistry(analyzers...)
	require.NoError(t, err)
	if datasets == nil {
		datasets = analysis.NewInMemoryProvider()
	}
	return NewStepRunner(reg, analysis.NewConfigValidator(), datasets, discardLogger())
}

func runnerStep(typ schema.StepType, config string) *store.WorkflowStep {
	s := &store.WorkflowStep{ID: "s1", WorkflowID: "wf-1", StepType: typ}
	if config != "" {
		s.Configuration = []byte(config)
	}
	return s
}

func TestStepRunner_HappyPath(t *testing.T) {
	a := &stubAnalyzer{
		typ: schema.StepTypeStatisticalTest,
		fn: func(_ context.Context, in *analysis.Input) (*analysis.Output, error) {
			assert.Equal(t, "wf-1", in.WorkflowID)
			assert.Equal(t, "s1", in.StepID)
			assert.Equal(t, "alpha", in.Config["mode"])
			return &analysis.Output{Summary: "done", Result: map[string]any{"n": 1}}, nil
		},
	}
	r := newTestRunner(t, nil, a)

	wf := &store.Workflow{ID: "wf-1", UserID: "user-1"}
	out, err := r.Run(context.Background(), wf, runnerStep(schema.StepTypeStatisticalTest, `{"mode":"alpha"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Summary)
}

func TestStepRunner_UnknownStepType(t *testing.T) {
	r := newTestRunner(t, nil, &stubAnalyzer{typ: schema.StepTypeStatisticalTest})

	_, err := r.Run(context.Background(), &store.Workflow{ID: "wf-1"},
		runnerStep(schema.StepTypeBayesian, ""), nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeAnalyzerUnavailable, err.(*schema.FlowError).Code)
}

func TestStepRunner_ConfigValidation(t *testing.T) {
	strict := &stubAnalyzer{
		typ: schema.StepTypeStatisticalTest,
		cfg: []byte(`{
			"type": "object",
			"required": ["test"],
			"properties": {"test": {"type": "string"}},
			"additionalProperties": false
		}`),
	}
	r := newTestRunner(t, nil, strict)
	wf := &store.Workflow{ID: "wf-1"}

	_, err := r.Run(context.Background(), wf,
		runnerStep(schema.StepTypeStatisticalTest, `{"bogus": 1}`), nil)
	require.Error(t, err)
	ferr := err.(*schema.FlowError)
	assert.Equal(t, schema.ErrCodeValidation, ferr.Code)
	assert.Equal(t, "s1", ferr.StepID)

	_, err = r.Run(context.Background(), wf,
		runnerStep(schema.StepTypeStatisticalTest, `{"test": "t_test"}`), nil)
	require.NoError(t, err)
}

func TestStepRunner_DatasetResolution(t *testing.T) {
	var got *analysis.Dataset
	needsData := &stubAnalyzer{
		typ:      schema.StepTypeStatisticalTest,
		requires: true,
		fn: func(_ context.Context, in *analysis.Input) (*analysis.Output, error) {
			got = in.Dataset
			return &analysis.Output{Summary: "ok"}, nil
		},
	}

	provider := analysis.NewInMemoryProvider()
	provider.Put(&analysis.Dataset{ID: "ds-1", Name: "trial data"})
	r := newTestRunner(t, provider, needsData)

	// No dataset bound to the workflow.
	_, err := r.Run(context.Background(), &store.Workflow{ID: "wf-1"},
		runnerStep(schema.StepTypeStatisticalTest, ""), nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, err.(*schema.FlowError).Code)

	// Bound but unknown dataset.
	_, err = r.Run(context.Background(), &store.Workflow{ID: "wf-1", DatasetID: "ghost"},
		runnerStep(schema.StepTypeStatisticalTest, ""), nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeExecution, err.(*schema.FlowError).Code)

	// Resolvable dataset reaches the analyzer.
	_, err = r.Run(context.Background(), &store.Workflow{ID: "wf-1", DatasetID: "ds-1"},
		runnerStep(schema.StepTypeStatisticalTest, ""), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "trial data", got.Name)
}

func TestStepRunner_PanicBecomesError(t *testing.T) {
	panicky := &stubAnalyzer{
		typ: schema.StepTypeStatisticalTest,
		fn: func(_ context.Context, _ *analysis.Input) (*analysis.Output, error) {
			panic("numerical instability")
		},
	}
	r := newTestRunner(t, nil, panicky)

	_, err := r.Run(context.Background(), &store.Workflow{ID: "wf-1"},
		runnerStep(schema.StepTypeStatisticalTest, ""), nil)
	require.Error(t, err)
	ferr := err.(*schema.FlowError)
	assert.Equal(t, schema.ErrCodeExecution, ferr.Code)
	assert.Contains(t, ferr.Message, "panicked")
}

func TestStepRunner_ContextCancellationWins(t *testing.T) {
	blocked := &stubAnalyzer{
		typ: schema.StepTypeStatisticalTest,
		fn: func(ctx context.Context, _ *analysis.Input) (*analysis.Output, error) {
			<-ctx.Done()
			return nil, schema.NewError(schema.ErrCodeExecution, "wrapped analyzer error")
		},
	}
	r := newTestRunner(t, nil, blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, &store.Workflow{ID: "wf-1"},
		runnerStep(schema.StepTypeStatisticalTest, ""), nil)
	// When the context is done the runner reports the context error, not the
	// analyzer's own.
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStepRunner_NilOutputRejected(t *testing.T) {
	silent := &stubAnalyzer{
		typ: schema.StepTypeStatisticalTest,
		fn: func(_ context.Context, _ *analysis.Input) (*analysis.Output, error) {
			return nil, nil
		},
	}
	r := newTestRunner(t, nil, silent)

	_, err := r.Run(context.Background(), &store.Workflow{ID: "wf-1"},
		runnerStep(schema.StepTypeStatisticalTest, ""), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned no output")
}
