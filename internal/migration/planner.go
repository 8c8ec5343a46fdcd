package migration

import (
	"fmt"
	"strings"
)

// TablePlan is the set of steps targeting one table, in declaration order
type TablePlan struct {
	Table string
	Steps []Step
}

// Plan validates steps and groups them by table, preserving the order in
// which tables and columns were first declared. Duplicate steps are rejected.
func Plan(steps []Step) ([]TablePlan, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("no migration steps configured")
	}

	var plans []TablePlan
	index := make(map[string]int)
	seen := make(map[string]bool)

	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("invalid step at index %d: %w", i, err)
		}
		key := strings.ToLower(step.String())
		if seen[key] {
			return nil, fmt.Errorf("duplicate step for column %s", step)
		}
		seen[key] = true

		pos, ok := index[step.Table]
		if !ok {
			pos = len(plans)
			index[step.Table] = pos
			plans = append(plans, TablePlan{Table: step.Table})
		}
		plans[pos].Steps = append(plans[pos].Steps, step)
	}

	return plans, nil
}
