package survey

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "management_philosophy": {"1": 7, "2": 4},
  "vision_mission": {"10": "Grow people first", "11": 3},
  "growth_stage": "growth",
  "leadership": {"20": 1},
  "general": {"30": 4},
  "organizational_issues": ["5", 6],
  "concerns": "retention"
}`

func sampleCatalog() Catalog {
	return Catalog{
		Questions: []Question{
			{ID: "1", Section: SectionManagementPhilosophy, Required: true},
			{ID: "2", Section: SectionManagementPhilosophy, Required: true},
			{ID: "10", Section: SectionVisionMission, Required: true},
			{ID: "11", Section: SectionVisionMission, Options: []string{"1", "2", "3"}},
			{ID: "20", Section: SectionLeadership, Required: true},
			{ID: "30", Section: SectionGeneral},
		},
		GrowthStages: []string{"startup", "growth", "mature"},
		IssueIDs:     []string{"5", "6", "7"},
	}
}

func TestDecodeMixedPayload(t *testing.T) {
	var r Response
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &r))
	assert.Equal(t, 7, r.ManagementPhilosophy["1"])
	assert.Equal(t, "Grow people first", r.VisionMission["10"].String())
	assert.True(t, r.VisionMission["11"].IsNumber)
	assert.Equal(t, IssueIDs{"5", "6"}, r.OrganizationalIssues)
	require.NoError(t, r.Validate())
	require.NoError(t, r.CheckAgainst(sampleCatalog()))
}

func TestValidateJSONRejectsOutOfScale(t *testing.T) {
	err := ValidateJSON([]byte(`{
	  "management_philosophy": {"1": 9},
	  "vision_mission": {},
	  "growth_stage": "growth",
	  "leadership": {},
	  "general": {},
	  "organizational_issues": [],
	  "concerns": ""
	}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "management_philosophy.1")
}

func TestValidateJSONAcceptsNumericIssueIDs(t *testing.T) {
	require.NoError(t, ValidateJSON([]byte(samplePayload)))

	var ids IssueIDs
	require.NoError(t, json.Unmarshal([]byte(`[1, "3", "1"]`), &ids))
	assert.Equal(t, IssueIDs{"1", "3"}, ids)
}

func TestValidateJSONRejectsMissingAndExtraKeys(t *testing.T) {
	err := ValidateJSON([]byte(`{"growth_stage": "growth", "extra": true}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Fields)
}

func TestCheckAgainstCatalog(t *testing.T) {
	r := Response{
		ManagementPhilosophy: map[string]int{"1": 3, "99": 2},
		VisionMission:        map[string]VisionAnswer{"11": NumberAnswer(8)},
		GrowthStage:          "unicorn",
		OrganizationalIssues: IssueIDs{"42"},
	}
	err := r.CheckAgainst(sampleCatalog())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unknown question", ve.Fields["management_philosophy.99"])
	assert.Equal(t, "required", ve.Fields["management_philosophy.2"])
	assert.Equal(t, "required", ve.Fields["leadership.20"])
	assert.Contains(t, ve.Fields, "vision_mission.11")
	assert.Contains(t, ve.Fields, "growth_stage")
	assert.Contains(t, ve.Fields, "organizational_issues")
}

func TestAlignmentScore(t *testing.T) {
	assert.Equal(t, 0, AlignmentScore(Response{}))
	assert.Equal(t, 100, AlignmentScore(Response{Leadership: map[string]int{"a": 7}}))
	assert.Equal(t, 50, AlignmentScore(Response{
		ManagementPhilosophy: map[string]int{"a": 1},
		General:              map[string]int{"b": 7},
	}))
	assert.Equal(t, 0, AlignmentScore(Response{General: map[string]int{"b": 1}}))
}
