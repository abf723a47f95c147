package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"hrdesign/internal/domain"
	"hrdesign/internal/events"
	"hrdesign/internal/notify"
	"hrdesign/internal/repo"
	"hrdesign/internal/routes"
	"hrdesign/internal/survey"
	"hrdesign/internal/workflow"
)

// StepResult is a committed step change plus the outcome of its inline mail.
type StepResult struct {
	Project domain.Project
	Steps   []workflow.DerivedStep
	// NotifyErr is set when a synchronous notification failed after commit.
	NotifyErr error
}

func (e Engine) CreateProject(ctx context.Context, companyID, actorID string) (domain.Project, error) {
	if strings.TrimSpace(companyID) == "" {
		return domain.Project{}, FieldError{Field: "company_id", Message: "required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetCompany(ctx, tx, companyID); err != nil {
		return domain.Project{}, err
	}
	now := e.stamp()
	p := domain.Project{
		ID:                  uuid.NewString(),
		CompanyID:           companyID,
		Status:              domain.ProjectActive,
		DiagnosisStatus:     string(workflow.StatusNotStarted),
		OrganizationStatus:  string(workflow.StatusNotStarted),
		PerformanceStatus:   string(workflow.StatusNotStarted),
		CompensationStatus:  string(workflow.StatusNotStarted),
		CEOPhilosophyStatus: string(workflow.PhilosophyNotStarted),
		CreatedBy:           actorID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.append(ctx, tx, events.ProjectCreated, p.ID, events.KindProject, p.ID, actorID, events.EventPayload{"company_id": companyID}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return e.Repo.GetProject(ctx, nil, id)
}

func (e Engine) ListProjects(ctx context.Context, f repo.ProjectFilters) ([]domain.Project, error) {
	return e.Repo.ListProjects(ctx, f)
}

// stepMove is one committed step transition with the project as it was before and after.
type stepMove struct {
	key    workflow.StepKey
	before domain.Project
	after  domain.Project
}

// moveStep applies one forward transition after checking the lock, the derived state and the lifecycle.
func (e Engine) moveStep(ctx context.Context, projectID, step, actorID string, to workflow.Status, evtType string) (stepMove, error) {
	key, err := parseStep(step)
	if err != nil {
		return stepMove{}, err
	}
	m := stepMove{key: key}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()

	p, err := e.loadActive(ctx, tx, projectID)
	if err != nil {
		return m, err
	}
	m.before = p
	d, _ := workflow.Find(Derive(p), key)
	from, ok := workflow.ParseStatus(d.Raw)
	if !ok {
		return m, workflow.InvalidTransitionError{Kind: "step", From: d.Raw, To: string(to)}
	}
	if err := workflow.CanTransition(from, to); err != nil {
		return m, err
	}
	if d.State == workflow.StateLocked {
		return m, ErrStepLocked
	}
	if err := e.Repo.UpdateStepStatus(ctx, tx, p.ID, string(key), string(from), string(to), e.stamp()); err != nil {
		return m, stale(err)
	}
	payload := events.EventPayload{"step": string(key), "from": string(from), "to": string(to)}
	if err := e.append(ctx, tx, evtType, p.ID, events.KindStep, p.ID+":"+string(key), actorID, payload); err != nil {
		return m, err
	}
	if m.after, err = e.Repo.GetProject(ctx, tx, p.ID); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	return m, nil
}

// StartStep moves the current step from not_started to in_progress.
func (e Engine) StartStep(ctx context.Context, projectID, step, actorID string) (domain.Project, error) {
	m, err := e.moveStep(ctx, projectID, step, actorID, workflow.StatusInProgress, events.StepStarted)
	if err != nil {
		return domain.Project{}, err
	}
	return m.after, nil
}

// SaveStepData autosaves the form of a step that is in progress. Last write wins.
func (e Engine) SaveStepData(ctx context.Context, projectID, step string, payload json.RawMessage, actorID string) (domain.StepData, error) {
	key, err := parseStep(step)
	if err != nil {
		return domain.StepData{}, err
	}
	if !isJSONObject(payload) {
		return domain.StepData{}, FieldError{Field: "payload", Message: "must be a JSON object"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StepData{}, err
	}
	defer tx.Rollback()

	p, err := e.loadActive(ctx, tx, projectID)
	if err != nil {
		return domain.StepData{}, err
	}
	d, _ := workflow.Find(Derive(p), key)
	if d.State == workflow.StateLocked {
		return domain.StepData{}, ErrStepLocked
	}
	if d.Raw != string(workflow.StatusInProgress) {
		return domain.StepData{}, ErrStepNotEditable
	}
	data := domain.StepData{
		ProjectID:   p.ID,
		Step:        string(key),
		PayloadJSON: string(payload),
		UpdatedBy:   actorID,
		UpdatedAt:   e.stamp(),
	}
	if err := e.Repo.UpsertStepData(ctx, tx, data); err != nil {
		return domain.StepData{}, err
	}
	if err := e.append(ctx, tx, events.StepDataSaved, p.ID, events.KindStep, p.ID+":"+string(key), actorID, events.EventPayload{"step": string(key), "bytes": len(payload)}); err != nil {
		return domain.StepData{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StepData{}, err
	}
	return data, nil
}

// GetStepData returns the saved form, or an empty object when nothing was saved yet.
func (e Engine) GetStepData(ctx context.Context, projectID, step string) (domain.StepData, error) {
	key, err := parseStep(step)
	if err != nil {
		return domain.StepData{}, err
	}
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return domain.StepData{}, err
	}
	d, err := e.Repo.GetStepData(ctx, projectID, string(key))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.StepData{ProjectID: projectID, Step: string(key), PayloadJSON: "{}"}, nil
	}
	return d, err
}

// SubmitStep hands a step in for review and tells the CEO. HR managers hear about any step it opens.
func (e Engine) SubmitStep(ctx context.Context, projectID, step, actorID string) (StepResult, error) {
	m, err := e.moveStep(ctx, projectID, step, actorID, workflow.StatusSubmitted, events.StepSubmitted)
	if err != nil {
		return StepResult{}, err
	}
	p := m.after
	res := StepResult{Project: p, Steps: Derive(p)}
	company := e.companyName(ctx, p.CompanyID)
	ceos := e.companyUsers(ctx, p.CompanyID, domain.RoleCEO)
	submitErr := e.send(ctx, ceos, notify.StepSubmitted{CompanyName: company, ProjectID: p.ID, StepTitle: m.key.Title()})
	if m.key == workflow.StepDiagnosis {
		e.sendQueued(ctx, ceos, notify.DiagnosisSubmitted{CompanyName: company, ProjectID: p.ID, SubmittedBy: e.userName(ctx, actorID)})
	}
	res.NotifyErr = errors.Join(submitErr, e.notifyUnlocked(ctx, m.before, m.after))
	return res, nil
}

// ApproveStep signs off a submitted step.
func (e Engine) ApproveStep(ctx context.Context, projectID, step, actorID string) (StepResult, error) {
	m, err := e.moveStep(ctx, projectID, step, actorID, workflow.StatusApproved, events.StepApproved)
	if err != nil {
		return StepResult{}, err
	}
	res := StepResult{Project: m.after, Steps: Derive(m.after)}
	res.NotifyErr = e.notifyUnlocked(ctx, m.before, m.after)
	return res, nil
}

// unlockedBetween lists the steps that were locked before a change and are current after it.
func unlockedBetween(before, after domain.Project) []workflow.StepKey {
	prev := Derive(before)
	var out []workflow.StepKey
	for _, d := range Derive(after) {
		if d.State != workflow.StateCurrent {
			continue
		}
		if old, _ := workflow.Find(prev, d.Key); old.State == workflow.StateLocked {
			out = append(out, d.Key)
		}
	}
	return out
}

// notifyUnlocked tells HR managers about every step a committed change opened.
func (e Engine) notifyUnlocked(ctx context.Context, before, after domain.Project) error {
	keys := unlockedBetween(before, after)
	if len(keys) == 0 {
		return nil
	}
	hr := e.companyUsers(ctx, after.CompanyID, domain.RoleHRManager)
	company := e.companyName(ctx, after.CompanyID)
	var errs []error
	for _, k := range keys {
		if err := e.send(ctx, hr, notify.StepUnlocked{CompanyName: company, ProjectID: after.ID, StepTitle: k.Title()}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LockProject freezes a project whose steps are all completed.
func (e Engine) LockProject(ctx context.Context, projectID, actorID string) (StepResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return StepResult{}, err
	}
	defer tx.Rollback()

	p, err := e.loadActive(ctx, tx, projectID)
	if err != nil {
		return StepResult{}, err
	}
	if !workflow.AllCompleted(Derive(p)) {
		return StepResult{}, ErrNotAllCompleted
	}
	now := e.stamp()
	if err := e.Repo.LockProject(ctx, tx, p.ID, now); err != nil {
		return StepResult{}, stale(err)
	}
	if err := e.append(ctx, tx, events.ProjectLocked, p.ID, events.KindProject, p.ID, actorID, events.EventPayload{"steps": p.StepStatuses()}); err != nil {
		return StepResult{}, err
	}
	locked, err := e.Repo.GetProject(ctx, tx, p.ID)
	if err != nil {
		return StepResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return StepResult{}, err
	}
	e.sendQueued(ctx, e.companyUsers(ctx, p.CompanyID, ""), notify.SystemLocked{CompanyName: e.companyName(ctx, p.CompanyID), ProjectID: p.ID})
	return StepResult{Project: locked, Steps: Derive(locked)}, nil
}

// Overview is what the progress page and the dashboards render for one project.
type Overview struct {
	Project          domain.Project         `json:"project"`
	Steps            []workflow.DerivedStep `json:"steps"`
	Progress         int                    `json:"progress"`
	Current          *workflow.DerivedStep  `json:"current,omitempty"`
	AllCompleted     bool                   `json:"all_completed"`
	CTARoute         string                 `json:"cta_route,omitempty"`
	CTAURL           string                 `json:"cta_url,omitempty"`
	PhilosophyStatus string                 `json:"philosophy_status"`
	AlignmentScore   *int                   `json:"alignment_score,omitempty"`
}

func (e Engine) Overview(ctx context.Context, projectID string) (Overview, error) {
	p, err := e.Repo.GetProject(ctx, nil, projectID)
	if err != nil {
		return Overview{}, err
	}
	return e.overview(ctx, p)
}

func (e Engine) overview(ctx context.Context, p domain.Project) (Overview, error) {
	steps := Derive(p)
	ov := Overview{
		Project:          p,
		Steps:            steps,
		Progress:         workflow.Progress(steps),
		AllCompleted:     workflow.AllCompleted(steps),
		PhilosophyStatus: p.CEOPhilosophyStatus,
	}
	if cur, ok := workflow.Current(steps); ok {
		ov.Current = &cur
	}
	if ov.AllCompleted {
		ov.CTARoute = routes.HRSystemOverview
		u, err := e.Links.URL(routes.HRSystemOverview, "project", p.ID)
		if err != nil {
			return ov, err
		}
		ov.CTAURL = u
	}
	score, err := e.alignment(ctx, p.ID)
	if err != nil {
		return ov, err
	}
	ov.AlignmentScore = score
	return ov, nil
}

// alignment scores the latest submitted survey of a project.
func (e Engine) alignment(ctx context.Context, projectID string) (*int, error) {
	sr, err := e.Repo.LatestSubmittedSurvey(ctx, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r survey.Response
	if err := json.Unmarshal([]byte(sr.PayloadJSON), &r); err != nil {
		e.log().WarnContext(ctx, "stored survey payload unreadable", "project", projectID, "error", err)
		return nil, nil
	}
	score := survey.AlignmentScore(r)
	return &score, nil
}

func isJSONObject(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	return len(raw) > 0 && json.Unmarshal(raw, &m) == nil && m != nil
}
