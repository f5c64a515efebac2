package feasibility

import (
	"fmt"

	"planweave/internal/plan"
	logx "planweave/pkg/logx"
)

// Kind mirrors how a warning should be presented.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Severity drives acceptance: critical blocks, major flags, minor advises.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// Warning categories. Stable strings; callers key UI copy off them.
const (
	CategoryEstimation   = "estimation"
	CategoryFrequency    = "frequency"
	CategorySession      = "session"
	CategoryAvailability = "availability"
	CategoryWorkload     = "workload"
	CategoryMode         = "mode"
	CategoryDeadline     = "deadline"
	CategoryCategory     = "category"
)

type Warning struct {
	Type     Kind
	Category string
	Severity Severity
	Message  string
}

// Alternatives carries concrete revised parameters synthesized by inverting
// the arithmetic of the checks that fired. Nil/empty fields mean "no
// suggestion".
type Alternatives struct {
	Frequency      *plan.Frequency
	Deadline       string // "" = none
	EstimatedHours *float64
	MarkOneSitting bool
	MinDailyHours  *float64
}

// Report is the validator's outcome. IsValid is false exactly when a
// critical warning is present.
type Report struct {
	IsValid      bool
	Warnings     []Warning
	Alternatives Alternatives
}

type Options struct {
	Today string // required
	Log   logx.Logger
}

func (o Options) withDefaults() (Options, error) {
	if o.Today == "" {
		return o, fmt.Errorf("options: today is required")
	}
	if _, err := plan.ParseDate(o.Today); err != nil {
		return o, err
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
	return o, nil
}
