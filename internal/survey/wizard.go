package survey

import "errors"

// Section identifies one page of the CEO philosophy survey.
type Section string

const (
	SectionIntro                Section = "intro"
	SectionManagementPhilosophy Section = "management_philosophy"
	SectionVisionMission        Section = "vision_mission"
	SectionGrowthStage          Section = "growth_stage"
	SectionLeadership           Section = "leadership"
	SectionGeneral              Section = "general"
	SectionOrganizationalIssues Section = "organizational_issues"
	SectionConcerns             Section = "concerns"
)

// Sections is the fixed page order.
var Sections = []Section{
	SectionIntro,
	SectionManagementPhilosophy,
	SectionVisionMission,
	SectionGrowthStage,
	SectionLeadership,
	SectionGeneral,
	SectionOrganizationalIssues,
	SectionConcerns,
}

// LastIndex is the only index from which the survey can be submitted.
var LastIndex = len(Sections) - 1

var (
	ErrConsentRequired   = errors.New("consent is required before continuing")
	ErrNotAtFinalSection = errors.New("survey can only be submitted from the final section")
	ErrIndexOutOfRange   = errors.New("section index out of range")
)

func ParseSection(raw string) (Section, bool) {
	for _, s := range Sections {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Wizard is the linear position within the survey.
// Moving past the intro requires HasAgreed; required questions are not enforced per page.
type Wizard struct {
	Index     int  `json:"current_step_index"`
	HasAgreed bool `json:"has_agreed"`
}

func (w *Wizard) Agree(v bool) { w.HasAgreed = v }

// Next advances one section and reports whether the index moved.
func (w *Wizard) Next() bool {
	if w.Index == 0 && !w.HasAgreed {
		return false
	}
	if w.Index >= LastIndex {
		w.Index = LastIndex
		return false
	}
	w.Index++
	return true
}

// Previous steps back one section and reports whether the index moved.
func (w *Wizard) Previous() bool {
	if w.Index <= 0 {
		w.Index = 0
		return false
	}
	w.Index--
	return true
}

func (w Wizard) CanSubmit() bool { return w.Index == LastIndex }

func (w Wizard) Section() Section {
	if w.Index < 0 || w.Index > LastIndex {
		return SectionIntro
	}
	return Sections[w.Index]
}

// Submit checks that the wizard is at the final section and the payload is well formed.
func (w Wizard) Submit(r Response) error {
	if !w.CanSubmit() {
		return ErrNotAtFinalSection
	}
	return r.Validate()
}

// MoveTo replays Next/Previous until the wizard reaches target.
// It is how a client-reported position is checked on the server.
func (w *Wizard) MoveTo(target int) error {
	if target < 0 || target > LastIndex {
		return ErrIndexOutOfRange
	}
	for w.Index < target {
		if !w.Next() {
			return ErrConsentRequired
		}
	}
	for w.Index > target {
		w.Previous()
	}
	return nil
}
