package survey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRequiresConsent(t *testing.T) {
	w := Wizard{}
	assert.False(t, w.Next())
	assert.Equal(t, 0, w.Index)

	w.Agree(true)
	assert.True(t, w.Next())
	assert.Equal(t, 1, w.Index)
	assert.Equal(t, SectionManagementPhilosophy, w.Section())
}

func TestNextClampsAtLastSection(t *testing.T) {
	w := Wizard{Index: LastIndex, HasAgreed: true}
	assert.False(t, w.Next())
	assert.Equal(t, 7, w.Index)
	assert.True(t, w.CanSubmit())
}

func TestPreviousClampsAtIntro(t *testing.T) {
	w := Wizard{}
	assert.False(t, w.Previous())
	assert.Equal(t, 0, w.Index)

	w = Wizard{Index: 3, HasAgreed: true}
	assert.True(t, w.Previous())
	assert.Equal(t, 2, w.Index)
}

func TestNextDoesNotCheckAnswers(t *testing.T) {
	w := Wizard{HasAgreed: true}
	for i := 0; i < 10; i++ {
		w.Next()
	}
	assert.Equal(t, LastIndex, w.Index)
}

func TestSubmitOnlyFromFinalSection(t *testing.T) {
	w := Wizard{Index: 5, HasAgreed: true}
	assert.ErrorIs(t, w.Submit(Response{}), ErrNotAtFinalSection)

	w.Index = LastIndex
	assert.NoError(t, w.Submit(Response{GrowthStage: "growth"}))
}

func TestMoveTo(t *testing.T) {
	w := Wizard{}
	assert.ErrorIs(t, w.MoveTo(3), ErrConsentRequired)
	assert.Equal(t, 0, w.Index)

	w.Agree(true)
	require.NoError(t, w.MoveTo(6))
	assert.Equal(t, SectionOrganizationalIssues, w.Section())
	require.NoError(t, w.MoveTo(2))
	assert.Equal(t, 2, w.Index)
	assert.ErrorIs(t, w.MoveTo(8), ErrIndexOutOfRange)
	assert.ErrorIs(t, w.MoveTo(-1), ErrIndexOutOfRange)
}

func TestSectionsFixed(t *testing.T) {
	require.Len(t, Sections, 8)
	s, ok := ParseSection("growth_stage")
	assert.True(t, ok)
	assert.Equal(t, SectionGrowthStage, s)
}
