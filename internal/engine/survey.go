package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hrdesign/internal/domain"
	"hrdesign/internal/events"
	"hrdesign/internal/notify"
	"hrdesign/internal/options"
	"hrdesign/internal/repo"
	"hrdesign/internal/survey"
	"hrdesign/internal/workflow"
)

// SurveyQuestion is a catalog question with its options already normalized.
type SurveyQuestion struct {
	ID       string           `json:"id"`
	Section  string           `json:"section"`
	Text     string           `json:"question_text"`
	Type     string           `json:"question_type"`
	Options  []options.Option `json:"options"`
	Order    int              `json:"order"`
	Required bool             `json:"required"`
}

type SurveyView struct {
	ProjectID        string              `json:"project_id"`
	Wizard           survey.Wizard       `json:"wizard"`
	Section          survey.Section      `json:"section"`
	Sections         []survey.Section    `json:"sections"`
	CanSubmit        bool                `json:"can_submit"`
	Questions        []SurveyQuestion    `json:"questions"`
	IssueGroups      []survey.IssueGroup `json:"issue_groups"`
	Draft            json.RawMessage     `json:"draft"`
	PhilosophyStatus string              `json:"philosophy_status"`
	SubmittedAt      *string             `json:"submitted_at,omitempty"`
}

// SurveyProgress is an autosave from the wizard.
type SurveyProgress struct {
	Index     int
	HasAgreed bool
	Payload   json.RawMessage
}

// SurveySubmission is the final answer set. Index, when set, is the position the client reports.
type SurveySubmission struct {
	Index     *int
	HasAgreed bool
	Response  survey.Response
}

type SurveyResult struct {
	Response       domain.SurveyResponse `json:"response"`
	AlignmentScore int                   `json:"alignment_score"`
	// NotifyErr is set when the mail about a step the survey opened failed after commit.
	NotifyErr error `json:"-"`
}

func (e Engine) surveyQuestions(ctx context.Context) ([]SurveyQuestion, error) {
	rows, err := e.Repo.ListCEOQuestions(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]SurveyQuestion, 0, len(rows))
	for _, q := range rows {
		opts, err := options.Parse(q.OptionsJSON)
		if err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		out = append(out, SurveyQuestion{
			ID:       q.ID,
			Section:  q.Section,
			Text:     q.QuestionText,
			Type:     q.QuestionType,
			Options:  opts,
			Order:    q.Order,
			Required: q.Required,
		})
	}
	return out, nil
}

func (e Engine) surveyIssues(ctx context.Context) ([]survey.Issue, error) {
	rows, err := e.Repo.ListOrganizationalIssues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]survey.Issue, 0, len(rows))
	for _, i := range rows {
		out = append(out, survey.Issue{ID: i.ID, Category: i.Category, Name: i.Name, Order: i.Order})
	}
	return out, nil
}

// surveyCatalog is what a submission is checked against.
func (e Engine) surveyCatalog(ctx context.Context) (survey.Catalog, error) {
	qs, err := e.surveyQuestions(ctx)
	if err != nil {
		return survey.Catalog{}, err
	}
	issues, err := e.surveyIssues(ctx)
	if err != nil {
		return survey.Catalog{}, err
	}
	var c survey.Catalog
	for _, q := range qs {
		values := make([]string, 0, len(q.Options))
		for _, o := range q.Options {
			values = append(values, o.Value)
		}
		sec := survey.Section(q.Section)
		if sec == survey.SectionGrowthStage {
			c.GrowthStages = append(c.GrowthStages, values...)
		}
		c.Questions = append(c.Questions, survey.Question{ID: q.ID, Section: sec, Required: q.Required, Options: values})
	}
	for _, i := range issues {
		c.IssueIDs = append(c.IssueIDs, i.ID)
	}
	return c, nil
}

func (e Engine) loadSurvey(ctx context.Context, tx *sql.Tx, projectID, userID string) (domain.SurveyResponse, error) {
	sr, err := e.Repo.GetSurveyResponse(ctx, tx, projectID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.SurveyResponse{ProjectID: projectID, UserID: userID, PayloadJSON: "{}"}, nil
	}
	return sr, err
}

// GetSurvey returns everything the wizard needs to resume.
func (e Engine) GetSurvey(ctx context.Context, projectID, userID string) (SurveyView, error) {
	p, err := e.Repo.GetProject(ctx, nil, projectID)
	if err != nil {
		return SurveyView{}, err
	}
	sr, err := e.loadSurvey(ctx, nil, projectID, userID)
	if err != nil {
		return SurveyView{}, err
	}
	qs, err := e.surveyQuestions(ctx)
	if err != nil {
		return SurveyView{}, err
	}
	issues, err := e.surveyIssues(ctx)
	if err != nil {
		return SurveyView{}, err
	}
	w := survey.Wizard{Index: sr.CurrentSection, HasAgreed: sr.HasAgreed}
	draft := json.RawMessage(sr.PayloadJSON)
	if !json.Valid(draft) {
		draft = json.RawMessage("{}")
	}
	return SurveyView{
		ProjectID:        p.ID,
		Wizard:           w,
		Section:          w.Section(),
		Sections:         survey.Sections,
		CanSubmit:        w.CanSubmit(),
		Questions:        qs,
		IssueGroups:      survey.GroupIssues(issues),
		Draft:            draft,
		PhilosophyStatus: p.CEOPhilosophyStatus,
		SubmittedAt:      sr.SubmittedAt,
	}, nil
}

// SaveSurveyProgress stores the wizard position and draft answers.
// The position is replayed through the wizard so the consent gate holds server-side.
func (e Engine) SaveSurveyProgress(ctx context.Context, projectID, userID string, prog SurveyProgress) (survey.Wizard, error) {
	if len(prog.Payload) > 0 && !isJSONObject(prog.Payload) {
		return survey.Wizard{}, FieldError{Field: "payload", Message: "must be a JSON object"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return survey.Wizard{}, err
	}
	defer tx.Rollback()

	p, err := e.loadActive(ctx, tx, projectID)
	if err != nil {
		return survey.Wizard{}, err
	}
	status, _ := workflow.ParsePhilosophyStatus(p.CEOPhilosophyStatus)
	if status.Unlocks() {
		return survey.Wizard{}, ErrPhilosophySubmitted
	}
	sr, err := e.loadSurvey(ctx, tx, projectID, userID)
	if err != nil {
		return survey.Wizard{}, err
	}
	w := survey.Wizard{Index: sr.CurrentSection, HasAgreed: sr.HasAgreed}
	w.Agree(prog.HasAgreed)
	if err := w.MoveTo(prog.Index); err != nil {
		return survey.Wizard{}, err
	}
	sr.CurrentSection = w.Index
	sr.HasAgreed = w.HasAgreed
	if len(prog.Payload) > 0 {
		sr.PayloadJSON = string(prog.Payload)
	}
	now := e.stamp()
	sr.UpdatedAt = now
	if err := e.Repo.UpsertSurveyResponse(ctx, tx, sr); err != nil {
		return survey.Wizard{}, err
	}
	if status == workflow.PhilosophyNotStarted {
		if err := workflow.CanTransitionPhilosophy(status, workflow.PhilosophyInProgress); err != nil {
			return survey.Wizard{}, err
		}
		if err := e.Repo.UpdatePhilosophyStatus(ctx, tx, p.ID, string(status), string(workflow.PhilosophyInProgress), now); err != nil {
			return survey.Wizard{}, stale(err)
		}
	}
	if err := e.append(ctx, tx, events.SurveyProgressSaved, p.ID, events.KindSurvey, p.ID+":"+userID, userID, events.EventPayload{"index": w.Index, "has_agreed": w.HasAgreed}); err != nil {
		return survey.Wizard{}, err
	}
	if err := tx.Commit(); err != nil {
		return survey.Wizard{}, err
	}
	return w, nil
}

// SubmitSurvey validates the final answers, completes the philosophy gate and tells HR.
func (e Engine) SubmitSurvey(ctx context.Context, projectID, userID string, sub SurveySubmission) (SurveyResult, error) {
	catalog, err := e.surveyCatalog(ctx)
	if err != nil {
		return SurveyResult{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return SurveyResult{}, err
	}
	defer tx.Rollback()

	p, err := e.loadActive(ctx, tx, projectID)
	if err != nil {
		return SurveyResult{}, err
	}
	status, ok := workflow.ParsePhilosophyStatus(p.CEOPhilosophyStatus)
	if !ok {
		return SurveyResult{}, workflow.InvalidTransitionError{Kind: "philosophy", From: p.CEOPhilosophyStatus, To: string(workflow.PhilosophyCompleted)}
	}
	if status.Unlocks() {
		return SurveyResult{}, ErrPhilosophySubmitted
	}
	if err := workflow.CanTransitionPhilosophy(status, workflow.PhilosophyCompleted); err != nil {
		return SurveyResult{}, err
	}
	sr, err := e.loadSurvey(ctx, tx, projectID, userID)
	if err != nil {
		return SurveyResult{}, err
	}
	w := survey.Wizard{Index: sr.CurrentSection, HasAgreed: sr.HasAgreed}
	if sub.Index != nil {
		w.Agree(w.HasAgreed || sub.HasAgreed)
		if err := w.MoveTo(*sub.Index); err != nil {
			return SurveyResult{}, err
		}
	}
	resp := sub.Response.Normalized()
	if err := w.Submit(resp); err != nil {
		return SurveyResult{}, err
	}
	if err := resp.CheckAgainst(catalog); err != nil {
		return SurveyResult{}, err
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return SurveyResult{}, err
	}
	now := e.stamp()
	sr.CurrentSection = w.Index
	sr.HasAgreed = true
	sr.PayloadJSON = string(payload)
	sr.UpdatedAt = now
	sr.SubmittedAt = &now
	if err := e.Repo.UpsertSurveyResponse(ctx, tx, sr); err != nil {
		return SurveyResult{}, err
	}
	if err := e.Repo.UpdatePhilosophyStatus(ctx, tx, p.ID, string(status), string(workflow.PhilosophyCompleted), now); err != nil {
		return SurveyResult{}, stale(err)
	}
	score := survey.AlignmentScore(resp)
	if err := e.append(ctx, tx, events.SurveySubmitted, p.ID, events.KindSurvey, p.ID+":"+userID, userID, events.EventPayload{"alignment_score": score}); err != nil {
		return SurveyResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return SurveyResult{}, err
	}
	e.sendQueued(ctx, e.companyUsers(ctx, p.CompanyID, domain.RoleHRManager), notify.PhilosophyCompleted{
		CompanyName: e.companyName(ctx, p.CompanyID),
		ProjectID:   p.ID,
		CEOName:     e.userName(ctx, userID),
	})
	after := p
	after.CEOPhilosophyStatus = string(workflow.PhilosophyCompleted)
	return SurveyResult{Response: sr, AlignmentScore: score, NotifyErr: e.notifyUnlocked(ctx, p, after)}, nil
}
