package survey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	ScaleMin = 1
	ScaleMax = 7
)

// VisionAnswer holds either free text or a numeric choice.
type VisionAnswer struct {
	Text     string
	Number   float64
	IsNumber bool
}

func TextAnswer(s string) VisionAnswer { return VisionAnswer{Text: s} }

func NumberAnswer(n float64) VisionAnswer { return VisionAnswer{Number: n, IsNumber: true} }

func (a VisionAnswer) String() string {
	if a.IsNumber {
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	}
	return a.Text
}

func (a VisionAnswer) MarshalJSON() ([]byte, error) {
	if a.IsNumber {
		return json.Marshal(a.Number)
	}
	return json.Marshal(a.Text)
}

func (a *VisionAnswer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("vision answer must be a string or number")
	}
	*a = NumberAnswer(n)
	return nil
}

// IssueIDs accepts string or numeric ids and keeps them as strings.
type IssueIDs []string

func (ids *IssueIDs) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IssueIDs, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, v := range raw {
		var id string
		switch t := v.(type) {
		case string:
			id = t
		case float64:
			id = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Errorf("issue id must be a string or number")
		}
		// 1 and "1" name the same issue.
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	*ids = out
	return nil
}

// Response is the full survey submission.
type Response struct {
	ManagementPhilosophy map[string]int          `json:"management_philosophy"`
	VisionMission        map[string]VisionAnswer `json:"vision_mission"`
	GrowthStage          string                  `json:"growth_stage"`
	Leadership           map[string]int          `json:"leadership"`
	General              map[string]int          `json:"general"`
	OrganizationalIssues IssueIDs                `json:"organizational_issues"`
	Concerns             string                  `json:"concerns"`
}

// Normalized fills nil collections so the payload always serializes to objects and arrays.
func (r Response) Normalized() Response {
	if r.ManagementPhilosophy == nil {
		r.ManagementPhilosophy = map[string]int{}
	}
	if r.VisionMission == nil {
		r.VisionMission = map[string]VisionAnswer{}
	}
	if r.Leadership == nil {
		r.Leadership = map[string]int{}
	}
	if r.General == nil {
		r.General = map[string]int{}
	}
	if r.OrganizationalIssues == nil {
		r.OrganizationalIssues = IssueIDs{}
	}
	return r
}

// ValidationError carries per-field messages keyed like "leadership.q3".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "survey validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

const responseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["management_philosophy", "vision_mission", "growth_stage", "leadership", "general", "organizational_issues", "concerns"],
  "additionalProperties": false,
  "properties": {
    "management_philosophy": {"$ref": "#/$defs/scale"},
    "vision_mission": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number"]}
    },
    "growth_stage": {"type": "string"},
    "leadership": {"$ref": "#/$defs/scale"},
    "general": {"$ref": "#/$defs/scale"},
    "organizational_issues": {
      "type": "array",
      "items": {"type": ["string", "number"]},
      "uniqueItems": true
    },
    "concerns": {"type": "string"}
  },
  "$defs": {
    "scale": {
      "type": "object",
      "additionalProperties": {"type": "integer", "minimum": 1, "maximum": 7}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const url = "https://hrdesign.local/schemas/ceo-philosophy-response.json"
		if err := c.AddResource(url, strings.NewReader(responseSchema)); err != nil {
			schemaErr = fmt.Errorf("survey schema load failed: %w", err)
			return
		}
		schema, schemaErr = c.Compile(url)
	})
	return schema, schemaErr
}

// ValidateJSON checks a raw submission body against the response schema.
func ValidateJSON(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ValidationError{Fields: map[string]string{"body": "invalid JSON"}}
	}
	if err := s.Validate(doc); err != nil {
		return schemaFieldErrors(err)
	}
	return nil
}

// Validate checks the structural shape of an already decoded response.
func (r Response) Validate() error {
	data, err := json.Marshal(r.Normalized())
	if err != nil {
		return err
	}
	return ValidateJSON(data)
}

func schemaFieldErrors(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	out := &ValidationError{}
	var walk func(v *jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			field := strings.ReplaceAll(strings.TrimPrefix(v.InstanceLocation, "/"), "/", ".")
			if field == "" {
				field = "body"
			}
			out.add(field, v.Message)
			return
		}
		for _, c := range v.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

// Question is the catalog view the validator needs.
type Question struct {
	ID       string
	Section  Section
	Required bool
	Options  []string
}

// Catalog is what a submission is checked against.
type Catalog struct {
	Questions    []Question
	GrowthStages []string
	IssueIDs     []string
}

// CheckAgainst verifies question and issue ids exist and required questions are answered.
func (r Response) CheckAgainst(c Catalog) error {
	out := &ValidationError{}
	known := map[Section]map[string]Question{}
	for _, q := range c.Questions {
		if known[q.Section] == nil {
			known[q.Section] = map[string]Question{}
		}
		known[q.Section][q.ID] = q
	}
	checkScale := func(sec Section, answers map[string]int) {
		for qid, v := range answers {
			if _, ok := known[sec][qid]; !ok {
				out.add(string(sec)+"."+qid, "unknown question")
				continue
			}
			if v < ScaleMin || v > ScaleMax {
				out.add(string(sec)+"."+qid, fmt.Sprintf("must be between %d and %d", ScaleMin, ScaleMax))
			}
		}
	}
	checkScale(SectionManagementPhilosophy, r.ManagementPhilosophy)
	checkScale(SectionLeadership, r.Leadership)
	checkScale(SectionGeneral, r.General)
	for qid, a := range r.VisionMission {
		q, ok := known[SectionVisionMission][qid]
		if !ok {
			out.add(string(SectionVisionMission)+"."+qid, "unknown question")
			continue
		}
		if len(q.Options) > 0 && !containsString(q.Options, a.String()) {
			out.add(string(SectionVisionMission)+"."+qid, "not one of the allowed options")
		}
	}
	if r.GrowthStage != "" && len(c.GrowthStages) > 0 && !containsString(c.GrowthStages, r.GrowthStage) {
		out.add(string(SectionGrowthStage), "not one of the allowed options")
	}
	for _, id := range r.OrganizationalIssues {
		if !containsString(c.IssueIDs, id) {
			out.add(string(SectionOrganizationalIssues), "unknown issue "+id)
		}
	}
	for _, q := range c.Questions {
		if !q.Required || r.answered(q) {
			continue
		}
		out.add(string(q.Section)+"."+q.ID, "required")
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

func (r Response) answered(q Question) bool {
	switch q.Section {
	case SectionManagementPhilosophy:
		_, ok := r.ManagementPhilosophy[q.ID]
		return ok
	case SectionLeadership:
		_, ok := r.Leadership[q.ID]
		return ok
	case SectionGeneral:
		_, ok := r.General[q.ID]
		return ok
	case SectionVisionMission:
		a, ok := r.VisionMission[q.ID]
		return ok && (a.IsNumber || strings.TrimSpace(a.Text) != "")
	case SectionGrowthStage:
		return r.GrowthStage != ""
	case SectionOrganizationalIssues:
		return len(r.OrganizationalIssues) > 0
	case SectionConcerns:
		return strings.TrimSpace(r.Concerns) != ""
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// AlignmentScore maps every scale answer onto 0..100 and averages them.
// It returns 0 when nothing on a scale was answered.
func AlignmentScore(r Response) int {
	total := 0.0
	n := 0
	for _, m := range []map[string]int{r.ManagementPhilosophy, r.Leadership, r.General} {
		for _, v := range m {
			if v < ScaleMin || v > ScaleMax {
				continue
			}
			total += float64(v-ScaleMin) / float64(ScaleMax-ScaleMin)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return int(total/float64(n)*100 + 0.5)
}
