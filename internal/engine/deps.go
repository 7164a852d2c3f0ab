package engine

import (
	"github.com/statflow/statflow/internal/store"
	"github.com/statflow/statflow/pkg/schema"
)

// SkipReasonDependencies is recorded on steps skipped because something they
// depend on did not complete.
const SkipReasonDependencies = "dependent steps were not successfully completed"

// DependenciesSatisfied reports whether every dependency of step has
// completed. statuses maps step ID to its current status; a dependency
// missing from the map counts as not satisfied.
func DependenciesSatisfied(step *store.WorkflowStep, statuses map[string]schema.StepStatus) bool {
	for _, dep := range step.DependsOn {
		if statuses[dep] != schema.StepStatusCompleted {
			return false
		}
	}
	return true
}

// Dependents returns the IDs of steps that list stepID in their depends_on,
// directly or transitively.
func Dependents(steps []*store.WorkflowStep, stepID string) []string {
	affected := map[string]bool{stepID: true}
	// Steps are ordered, but dependencies may point anywhere, so iterate to
	// a fixed point.
	for changed := true; changed; {
		changed = false
		for _, s := range steps {
			if affected[s.ID] {
				continue
			}
			for _, dep := range s.DependsOn {
				if affected[dep] {
					affected[s.ID] = true
					changed = true
					break
				}
			}
		}
	}

	var out []string
	for _, s := range steps {
		if s.ID != stepID && affected[s.ID] {
			out = append(out, s.ID)
		}
	}
	return out
}

// ValidateDependencies checks that every depends_on reference resolves to a
// step in the same workflow and that the graph has no cycles.
func ValidateDependencies(steps []*store.WorkflowStep) error {
	byID := make(map[string]*store.WorkflowStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"step %q depends on itself", s.ID).WithStep(s.ID)
			}
			if _, ok := byID[dep]; !ok {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"step %q depends on unknown step %q", s.ID, dep).WithStep(s.ID)
			}
		}
	}

	// Cycle detection via three-color DFS.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(steps))

	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = gray
		for _, dep := range byID[id].DependsOn {
			switch colors[dep] {
			case gray:
				return schema.NewErrorf(schema.ErrCodeValidation,
					"dependency cycle involving steps %q and %q", id, dep)
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		colors[id] = black
		return nil
	}

	for _, s := range steps {
		if colors[s.ID] == white {
			if err := visit(s.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
