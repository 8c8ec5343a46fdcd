package migration

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Step describes one managed, additive column. It has no persisted state:
// whether it is applied is read from the live schema on every run.
type Step struct {
	Table      string `mapstructure:"table" yaml:"table" json:"table"`
	Column     string `mapstructure:"column" yaml:"column" json:"column"`
	Definition string `mapstructure:"definition" yaml:"definition" json:"definition"`
}

// String renders the step as table.column
func (s Step) String() string {
	return s.Table + "." + s.Column
}

// Validate validates the Step
func (s Step) Validate() error {
	if !identifierPattern.MatchString(s.Table) {
		return fmt.Errorf("invalid table name %q", s.Table)
	}
	if !identifierPattern.MatchString(s.Column) {
		return fmt.Errorf("invalid column name %q", s.Column)
	}
	if strings.TrimSpace(s.Definition) == "" {
		return fmt.Errorf("column %s has an empty definition", s)
	}
	if strings.Contains(s.Definition, ";") {
		return fmt.Errorf("column %s definition must be a single clause", s)
	}
	return nil
}

// DefaultSteps returns the columns this tool manages on the orders table
func DefaultSteps() []Step {
	return []Step{
		{Table: "orders", Column: "coupon_code", Definition: "VARCHAR(64) DEFAULT NULL"},
		{Table: "orders", Column: "discount_amount", Definition: "NUMERIC(10,2) DEFAULT 0"},
		{Table: "orders", Column: "final_amount", Definition: "NUMERIC(10,2) DEFAULT 0"},
	}
}

// State is derived per run, never stored
type State string

const (
	// StatePending means the column is absent
	StatePending State = "pending"
	// StateApplied means the column is present
	StateApplied State = "applied"
)

// StepStatus pairs a step with its live state
type StepStatus struct {
	Step  Step  `json:"step"`
	State State `json:"state"`
}

// Report summarizes one migration run
type Report struct {
	RunID    string        `json:"run_id"`
	Added    []Step        `json:"added"`
	Skipped  []Step        `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// AddedCount returns how many columns were added by this run
func (r *Report) AddedCount() int {
	return len(r.Added)
}
