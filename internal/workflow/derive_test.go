package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func states(steps []DerivedStep) []State {
	out := make([]State, len(steps))
	for i, s := range steps {
		out[i] = s.State
	}
	return out
}

func TestDeriveScenarios(t *testing.T) {
	cases := []struct {
		name       string
		raw        map[StepKey]string
		philosophy string
		want       []State
	}{
		{
			name: "submitted diagnosis waits on ceo survey",
			raw: map[StepKey]string{
				StepDiagnosis:    "submitted",
				StepOrganization: "not_started",
				StepPerformance:  "not_started",
				StepCompensation: "not_started",
			},
			philosophy: "not_started",
			want:       []State{StateCompleted, StateLocked, StateLocked, StateLocked},
		},
		{
			name: "completed survey opens organization",
			raw: map[StepKey]string{
				StepDiagnosis:    "submitted",
				StepOrganization: "not_started",
				StepPerformance:  "not_started",
				StepCompensation: "not_started",
			},
			philosophy: "completed",
			want:       []State{StateCompleted, StateCurrent, StateLocked, StateLocked},
		},
		{
			name: "all locked",
			raw: map[StepKey]string{
				StepDiagnosis:    "locked",
				StepOrganization: "locked",
				StepPerformance:  "locked",
				StepCompensation: "locked",
			},
			philosophy: "locked",
			want:       []State{StateCompleted, StateCompleted, StateCompleted, StateCompleted},
		},
		{
			name:       "fresh project",
			raw:        map[StepKey]string{},
			philosophy: "",
			want:       []State{StateLocked, StateLocked, StateLocked, StateLocked},
		},
		{
			name: "not started diagnosis is current",
			raw: map[StepKey]string{
				StepDiagnosis:    "not_started",
				StepOrganization: "not_started",
				StepPerformance:  "not_started",
				StepCompensation: "not_started",
			},
			philosophy: "not_started",
			want:       []State{StateCurrent, StateLocked, StateLocked, StateLocked},
		},
		{
			name: "legacy completed value counts as done",
			raw: map[StepKey]string{
				StepDiagnosis:    "completed",
				StepOrganization: "approved",
				StepPerformance:  "in_progress",
				StepCompensation: "not_started",
			},
			philosophy: "locked",
			want:       []State{StateCompleted, StateCompleted, StateCurrent, StateLocked},
		},
		{
			name: "unknown status fails closed",
			raw: map[StepKey]string{
				StepDiagnosis:    "archived",
				StepOrganization: "not_started",
				StepPerformance:  "not_started",
				StepCompensation: "not_started",
			},
			philosophy: "completed",
			want:       []State{StateLocked, StateLocked, StateLocked, StateLocked},
		},
		{
			name: "step after a completed one opens despite an unknown earlier step",
			raw: map[StepKey]string{
				StepDiagnosis:    "",
				StepOrganization: "garbage",
				StepPerformance:  "submitted",
				StepCompensation: "in_progress",
			},
			philosophy: "completed",
			want:       []State{StateLocked, StateLocked, StateCompleted, StateCurrent},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveAll(tc.raw, tc.philosophy)
			require.Len(t, got, 4)
			assert.Equal(t, tc.want, states(got))
		})
	}
}

func TestDeriveAllCompletedHasNoCurrent(t *testing.T) {
	got := DeriveAll(map[StepKey]string{
		StepDiagnosis:    "locked",
		StepOrganization: "locked",
		StepPerformance:  "locked",
		StepCompensation: "locked",
	}, "locked")
	_, ok := Current(got)
	assert.False(t, ok)
	assert.True(t, AllCompleted(got))
	assert.Equal(t, 100, Progress(got))
}

func TestDeriveLabels(t *testing.T) {
	got := DeriveAll(map[StepKey]string{
		StepDiagnosis:    "approved",
		StepOrganization: "bogus",
	}, "completed")
	assert.Equal(t, "Approved", got[0].Label)
	assert.Equal(t, "Locked", got[1].Label)
	assert.Equal(t, "outline", got[1].Badge)
	assert.Equal(t, 2, got[1].Number)
	assert.Equal(t, "Organization Design", got[1].Title)
}

func TestStepOrder(t *testing.T) {
	next, ok := StepDiagnosis.Next()
	require.True(t, ok)
	assert.Equal(t, StepOrganization, next)
	_, ok = StepCompensation.Next()
	assert.False(t, ok)
	assert.Equal(t, 3, StepPerformance.Number())
	_, ok = ParseStep("payroll")
	assert.False(t, ok)
}
