package schema

// StepType enumerates the kinds of analysis steps a workflow may contain.
// The set is closed: the runner dispatches through a registry keyed by these
// values, and adding a new analysis capability means adding a new variant.
type StepType string

const (
	StepTypeDataPreprocessing  StepType = "data_preprocessing"
	StepTypeVisualization      StepType = "visualization"
	StepTypeStatisticalTest    StepType = "statistical_test"
	StepTypeMachineLearning    StepType = "machine_learning"
	StepTypeAdvancedStatistics StepType = "advanced_statistics"
	StepTypeTimeSeries         StepType = "time_series"
	StepTypeBayesian           StepType = "bayesian"
	StepTypeReportGeneration   StepType = "report_generation"
)

// AllStepTypes lists every recognized step type, in no particular order.
var AllStepTypes = []StepType{
	StepTypeDataPreprocessing,
	StepTypeVisualization,
	StepTypeStatisticalTest,
	StepTypeMachineLearning,
	StepTypeAdvancedStatistics,
	StepTypeTimeSeries,
	StepTypeBayesian,
	StepTypeReportGeneration,
}

// ValidStepType reports whether t is one of the recognized step types.
func ValidStepType(t StepType) bool {
	for _, s := range AllStepTypes {
		if s == t {
			return true
		}
	}
	return false
}

// DefaultStepTimeoutSeconds is applied when a step does not configure its own
// timeout budget.
const DefaultStepTimeoutSeconds = 3600
