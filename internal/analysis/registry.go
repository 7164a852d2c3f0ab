package analysis

import (
	"github.com/statflow/statflow/pkg/schema"
)

// Registry maps step types to their analyzers. The set is fixed at
// construction time; lookups after that are lock-free.
type Registry struct {
	analyzers map[schema.StepType]Analyzer
}

// NewRegistry builds a registry from the given analyzers. Duplicate step
// types are rejected.
func NewRegistry(analyzers ...Analyzer) (*Registry, error) {
	m := make(map[schema.StepType]Analyzer, len(analyzers))
	for _, a := range analyzers {
		if _, exists := m[a.Type()]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"duplicate analyzer for step type %q", a.Type())
		}
		m[a.Type()] = a
	}
	return &Registry{analyzers: m}, nil
}

// NewDefaultRegistry builds a registry with all built-in analyzers.
func NewDefaultRegistry() (*Registry, error) {
	return NewRegistry(
		NewPreprocessingAnalyzer(),
		NewVisualizationAnalyzer(),
		NewStatisticalTestAnalyzer(),
		NewMachineLearningAnalyzer(),
		NewAdvancedStatisticsAnalyzer(),
		NewTimeSeriesAnalyzer(),
		NewBayesianAnalyzer(),
		NewReportAnalyzer(),
	)
}

// Get returns the analyzer for a step type.
func (r *Registry) Get(t schema.StepType) (Analyzer, error) {
	a, ok := r.analyzers[t]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeAnalyzerUnavailable,
			"no analyzer registered for step type %q", t)
	}
	return a, nil
}

// Types returns the registered step types.
func (r *Registry) Types() []schema.StepType {
	types := make([]schema.StepType, 0, len(r.analyzers))
	for t := range r.analyzers {
		types = append(types, t)
	}
	return types
}
