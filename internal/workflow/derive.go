package workflow

// StepKey names one of the four ordered phases.
type StepKey string

const (
	StepDiagnosis    StepKey = "diagnosis"
	StepOrganization StepKey = "organization"
	StepPerformance  StepKey = "performance"
	StepCompensation StepKey = "compensation"
)

// Steps is the fixed step order.
var Steps = []StepKey{StepDiagnosis, StepOrganization, StepPerformance, StepCompensation}

func ParseStep(raw string) (StepKey, bool) {
	for _, k := range Steps {
		if string(k) == raw {
			return k, true
		}
	}
	return "", false
}

// Number returns the 1-based position of the step, or 0 when unknown.
func (k StepKey) Number() int {
	for i, s := range Steps {
		if s == k {
			return i + 1
		}
	}
	return 0
}

// Next returns the step after k.
func (k StepKey) Next() (StepKey, bool) {
	n := k.Number()
	if n == 0 || n >= len(Steps) {
		return "", false
	}
	return Steps[n], true
}

func (k StepKey) Title() string {
	switch k {
	case StepDiagnosis:
		return "Diagnosis"
	case StepOrganization:
		return "Organization Design"
	case StepPerformance:
		return "Performance System"
	case StepCompensation:
		return "Compensation System"
	}
	return string(k)
}

// State is the derived classification of a step.
type State string

const (
	StateCurrent   State = "current"
	StateLocked    State = "locked"
	StateCompleted State = "completed"
)

type DerivedStep struct {
	Key    StepKey `json:"key"`
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Raw    string  `json:"raw_status"`
	State  State   `json:"state"`
	Label  string  `json:"label"`
	Badge  string  `json:"badge"`
}

// Derive classifies every step in order from its raw status and the state of the step before it.
// Step two additionally waits for the CEO philosophy survey.
func Derive(order []StepKey, raw map[StepKey]string, philosophy string) []DerivedStep {
	gate, _ := ParsePhilosophyStatus(philosophy)
	out := make([]DerivedStep, 0, len(order))
	prevCompleted := true
	haveCurrent := false
	for i, key := range order {
		r := raw[key]
		d := DerivedStep{
			Key:    key,
			Number: i + 1,
			Title:  key.Title(),
			Raw:    r,
			Label:  Label(r),
			Badge:  Badge(r),
		}
		s, known := ParseStatus(r)
		completed := known && IsCompletedForDisplay(s)
		prereq := prevCompleted
		if i == 1 && !gate.Unlocks() {
			prereq = false
		}
		switch {
		case completed:
			d.State = StateCompleted
		case !known || !prereq || haveCurrent:
			d.State = StateLocked
		default:
			d.State = StateCurrent
			haveCurrent = true
		}
		prevCompleted = completed
		out = append(out, d)
	}
	return out
}

// DeriveAll runs Derive over the fixed step order.
func DeriveAll(raw map[StepKey]string, philosophy string) []DerivedStep {
	return Derive(Steps, raw, philosophy)
}

func Current(steps []DerivedStep) (DerivedStep, bool) {
	for _, s := range steps {
		if s.State == StateCurrent {
			return s, true
		}
	}
	return DerivedStep{}, false
}

func AllCompleted(steps []DerivedStep) bool {
	if len(steps) == 0 {
		return false
	}
	for _, s := range steps {
		if s.State != StateCompleted {
			return false
		}
	}
	return true
}

// Progress is the share of completed steps as a whole percentage.
func Progress(steps []DerivedStep) int {
	if len(steps) == 0 {
		return 0
	}
	done := 0
	for _, s := range steps {
		if s.State == StateCompleted {
			done++
		}
	}
	return done * 100 / len(steps)
}

// Find returns the derived entry for key.
func Find(steps []DerivedStep, key StepKey) (DerivedStep, bool) {
	for _, s := range steps {
		if s.Key == key {
			return s, true
		}
	}
	return DerivedStep{}, false
}
