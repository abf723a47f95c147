package workflow

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func rawStatusGen() gopter.Gen {
	return gen.OneConstOf("not_started", "in_progress", "submitted", "approved", "locked", "completed", "garbage", "")
}

func philosophyGen() gopter.Gen {
	return gen.OneConstOf("not_started", "in_progress", "completed", "locked", "")
}

func rawMap(a, b, c, d string) map[StepKey]string {
	return map[StepKey]string{
		StepDiagnosis:    a,
		StepOrganization: b,
		StepPerformance:  c,
		StepCompensation: d,
	}
}

func TestDeriveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one current, none when all completed", prop.ForAll(
		func(a, b, c, d, p string) bool {
			steps := DeriveAll(rawMap(a, b, c, d), p)
			current := 0
			for _, s := range steps {
				if s.State == StateCurrent {
					current++
				}
			}
			if AllCompleted(steps) {
				return current == 0
			}
			return current <= 1
		},
		rawStatusGen(), rawStatusGen(), rawStatusGen(), rawStatusGen(), philosophyGen(),
	))

	properties.Property("first open step is current unless gated or unknown", prop.ForAll(
		func(a, b, c, d, p string) bool {
			steps := DeriveAll(rawMap(a, b, c, d), p)
			if AllCompleted(steps) {
				return true
			}
			first := -1
			for i, s := range steps {
				if s.State != StateCompleted {
					first = i
					break
				}
			}
			_, known := ParseStatus(steps[first].Raw)
			gate, _ := ParsePhilosophyStatus(p)
			if known && !(first == 1 && !gate.Unlocks()) {
				cur, ok := Current(steps)
				return ok && cur.Number == first+1
			}
			return true
		},
		rawStatusGen(), rawStatusGen(), rawStatusGen(), rawStatusGen(), philosophyGen(),
	))

	properties.Property("a current step follows a completed step and passes the gate", prop.ForAll(
		func(a, b, c, d, p string) bool {
			steps := DeriveAll(rawMap(a, b, c, d), p)
			cur, ok := Current(steps)
			if !ok {
				return true
			}
			i := cur.Number - 1
			if _, known := ParseStatus(cur.Raw); !known {
				return false
			}
			if i > 0 && steps[i-1].State != StateCompleted {
				return false
			}
			gate, _ := ParsePhilosophyStatus(p)
			return i != 1 || gate.Unlocks()
		},
		rawStatusGen(), rawStatusGen(), rawStatusGen(), rawStatusGen(), philosophyGen(),
	))

	properties.Property("a locked step has an open predecessor or a gate", prop.ForAll(
		func(a, b, c, d, p string) bool {
			steps := DeriveAll(rawMap(a, b, c, d), p)
			gate, _ := ParsePhilosophyStatus(p)
			seenCurrent := false
			for i, s := range steps {
				if s.State == StateLocked {
					_, known := ParseStatus(s.Raw)
					switch {
					case !known:
					case i == 0:
						return false
					case steps[i-1].State != StateCompleted:
					case i == 1 && !gate.Unlocks():
					case seenCurrent:
					default:
						return false
					}
				}
				if s.State == StateCurrent {
					seenCurrent = true
				}
			}
			return true
		},
		rawStatusGen(), rawStatusGen(), rawStatusGen(), rawStatusGen(), philosophyGen(),
	))

	properties.TestingRun(t)
}
