package engine_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesign/internal/config"
	"hrdesign/internal/db"
	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
	"hrdesign/internal/migrate"
	"hrdesign/internal/notify"
	"hrdesign/internal/repo"
	"hrdesign/internal/survey"
	"hrdesign/internal/workflow"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Clock   *clock
	Mailer  *notify.MemoryMailer
	Company domain.Company
	HR      domain.User
	CEO     domain.User
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	c := &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cfg := config.Default("https://hr.example.com")
	eng := engine.New(conn, cfg)
	eng.Now = c.now

	renderer, err := notify.NewRenderer("HR Design", "")
	require.NoError(t, err)
	mailer := &notify.MemoryMailer{}
	eng.Notify = &notify.Dispatcher{
		Queue:    notify.SQLQueue{Repo: eng.Repo, Now: c.now},
		Mailer:   mailer,
		Renderer: renderer,
		Links:    eng.Links,
		From:     "no-reply@example.com",
	}

	ctx := context.Background()
	hr, company, err := eng.Register(ctx, engine.RegisterOptions{
		Name:        "Hana",
		Email:       "hana@acme.test",
		Password:    "correct-horse",
		CompanyName: "Acme",
		IndustryID:  "it",
	})
	require.NoError(t, err)
	ceo, err := eng.CreateUser(ctx, engine.UserOptions{
		Name:      "Dana",
		Email:     "dana@acme.test",
		Password:  "correct-horse",
		Role:      domain.RoleCEO,
		CompanyID: company.ID,
		ActorID:   "admin",
	})
	require.NoError(t, err)
	return testEnv{Engine: eng, Ctx: ctx, Clock: c, Mailer: mailer, Company: company, HR: hr, CEO: ceo}
}

func (env testEnv) project(t *testing.T) domain.Project {
	t.Helper()
	p, err := env.Engine.CreateProject(env.Ctx, env.Company.ID, env.HR.ID)
	require.NoError(t, err)
	return p
}

func (env testEnv) outbox(t *testing.T, event string) []domain.OutboxMessage {
	t.Helper()
	rows, err := env.Engine.Repo.ListOutbox(env.Ctx, domain.OutboxPending, 0)
	require.NoError(t, err)
	var out []domain.OutboxMessage
	for _, r := range rows {
		if r.Event == event {
			out = append(out, r)
		}
	}
	return out
}

func (env testEnv) completeStep(t *testing.T, projectID string, step workflow.StepKey) {
	t.Helper()
	_, err := env.Engine.StartStep(env.Ctx, projectID, string(step), env.HR.ID)
	require.NoError(t, err)
	res, err := env.Engine.SubmitStep(env.Ctx, projectID, string(step), env.HR.ID)
	require.NoError(t, err)
	require.NoError(t, res.NotifyErr)
}

func validResponse() survey.Response {
	return survey.Response{
		ManagementPhilosophy: map[string]int{"mp-1": 7, "mp-2": 7, "mp-3": 7},
		VisionMission:        map[string]survey.VisionAnswer{"vm-1": survey.TextAnswer("Grow together"), "vm-2": survey.NumberAnswer(100)},
		GrowthStage:          "growth",
		Leadership:           map[string]int{"ld-1": 1},
		OrganizationalIssues: survey.IssueIDs{"1", "3"},
	}
}

func (env testEnv) completeSurvey(t *testing.T, projectID string) engine.SurveyResult {
	t.Helper()
	last := survey.LastIndex
	res, err := env.Engine.SubmitSurvey(env.Ctx, projectID, env.CEO.ID, engine.SurveySubmission{Index: &last, HasAgreed: true, Response: validResponse()})
	require.NoError(t, err)
	return res
}

func states(steps []workflow.DerivedStep) []workflow.State {
	out := make([]workflow.State, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.State)
	}
	return out
}

func TestStepLifecycleGuards(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)

	_, err := env.Engine.StartStep(env.Ctx, p.ID, "organization", env.HR.ID)
	assert.ErrorIs(t, err, engine.ErrStepLocked)

	_, err = env.Engine.StartStep(env.Ctx, p.ID, "payroll", env.HR.ID)
	var fe engine.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "step", fe.Field)

	_, err = env.Engine.SaveStepData(env.Ctx, p.ID, "diagnosis", []byte(`{"headcount":40}`), env.HR.ID)
	assert.ErrorIs(t, err, engine.ErrStepNotEditable)

	started, err := env.Engine.StartStep(env.Ctx, p.ID, "diagnosis", env.HR.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_progress", started.DiagnosisStatus)

	_, err = env.Engine.StartStep(env.Ctx, p.ID, "diagnosis", env.HR.ID)
	var it workflow.InvalidTransitionError
	require.ErrorAs(t, err, &it)

	_, err = env.Engine.ApproveStep(env.Ctx, p.ID, "diagnosis", env.CEO.ID)
	require.ErrorAs(t, err, &it)

	_, err = env.Engine.SaveStepData(env.Ctx, p.ID, "diagnosis", []byte(`[1,2]`), env.HR.ID)
	require.ErrorAs(t, err, &fe)
	saved, err := env.Engine.SaveStepData(env.Ctx, p.ID, "diagnosis", []byte(`{"headcount":40}`), env.HR.ID)
	require.NoError(t, err)
	assert.Equal(t, `{"headcount":40}`, saved.PayloadJSON)
	_, err = env.Engine.SaveStepData(env.Ctx, p.ID, "diagnosis", []byte(`{"headcount":42}`), env.CEO.ID)
	require.NoError(t, err)
	got, err := env.Engine.GetStepData(env.Ctx, p.ID, "diagnosis")
	require.NoError(t, err)
	assert.Equal(t, `{"headcount":42}`, got.PayloadJSON)
	assert.Equal(t, env.CEO.ID, got.UpdatedBy)

	empty, err := env.Engine.GetStepData(env.Ctx, p.ID, "compensation")
	require.NoError(t, err)
	assert.Equal(t, "{}", empty.PayloadJSON)
}

func TestSubmitDiagnosisNotifiesCEO(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.completeStep(t, p.ID, workflow.StepDiagnosis)

	sent := env.Mailer.SentTo(env.CEO.Email)
	require.Len(t, sent, 1)
	assert.Equal(t, "Diagnosis was submitted", sent[0].Subject)

	queued := env.outbox(t, notify.EventDiagnosisSubmitted)
	require.Len(t, queued, 1)
	assert.Equal(t, env.CEO.Email, queued[0].Recipient)
	assert.Contains(t, queued[0].PayloadJSON, "/ceo/review/diagnosis/"+p.ID)

	ov, err := env.Engine.Overview(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []workflow.State{workflow.StateCompleted, workflow.StateLocked, workflow.StateLocked, workflow.StateLocked}, states(ov.Steps))
	assert.Nil(t, ov.Current)
	assert.Equal(t, 25, ov.Progress)
	assert.Empty(t, ov.CTARoute)
}

func TestSyncMailFailureKeepsTransition(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	_, err := env.Engine.StartStep(env.Ctx, p.ID, "diagnosis", env.HR.ID)
	require.NoError(t, err)

	env.Mailer.SetErr(errors.New("relay down"))
	res, err := env.Engine.SubmitStep(env.Ctx, p.ID, "diagnosis", env.HR.ID)
	require.NoError(t, err)
	var ne *engine.NotificationError
	require.ErrorAs(t, res.NotifyErr, &ne)
	assert.Equal(t, notify.EventStepSubmitted, ne.Event)

	stored, err := env.Engine.GetProject(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "submitted", stored.DiagnosisStatus)
}

func TestPhilosophyGateAndApproval(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.completeStep(t, p.ID, workflow.StepDiagnosis)

	_, err := env.Engine.SaveSurveyProgress(env.Ctx, p.ID, env.CEO.ID, engine.SurveyProgress{Index: 1})
	assert.ErrorIs(t, err, survey.ErrConsentRequired)

	w, err := env.Engine.SaveSurveyProgress(env.Ctx, p.ID, env.CEO.ID, engine.SurveyProgress{Index: 2, HasAgreed: true, Payload: []byte(`{"management_philosophy":{"mp-1":5}}`)})
	require.NoError(t, err)
	assert.Equal(t, 2, w.Index)

	view, err := env.Engine.GetSurvey(env.Ctx, p.ID, env.CEO.ID)
	require.NoError(t, err)
	assert.Equal(t, survey.SectionVisionMission, view.Section)
	assert.Equal(t, "in_progress", view.PhilosophyStatus)
	assert.JSONEq(t, `{"management_philosophy":{"mp-1":5}}`, string(view.Draft))
	assert.False(t, view.CanSubmit)
	require.NotEmpty(t, view.IssueGroups)
	for _, q := range view.Questions {
		if q.ID == "vm-2" {
			assert.Equal(t, "50", q.Options[0].Value)
			assert.Equal(t, "50", q.Options[0].Label)
		}
	}

	_, err = env.Engine.SubmitSurvey(env.Ctx, p.ID, env.CEO.ID, engine.SurveySubmission{Response: validResponse()})
	assert.ErrorIs(t, err, survey.ErrNotAtFinalSection)

	incomplete := validResponse()
	delete(incomplete.Leadership, "ld-1")
	last := survey.LastIndex
	_, err = env.Engine.SubmitSurvey(env.Ctx, p.ID, env.CEO.ID, engine.SurveySubmission{Index: &last, Response: incomplete})
	var ve *survey.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "leadership.ld-1")

	res := env.completeSurvey(t, p.ID)
	assert.Equal(t, 75, res.AlignmentScore)
	require.NoError(t, res.NotifyErr)
	require.Len(t, env.outbox(t, notify.EventPhilosophyCompleted), 1)
	unlocked := env.Mailer.SentTo(env.HR.Email)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "Organization Design is now unlocked", unlocked[0].Subject)

	_, err = env.Engine.SaveSurveyProgress(env.Ctx, p.ID, env.CEO.ID, engine.SurveyProgress{Index: 3, HasAgreed: true})
	assert.ErrorIs(t, err, engine.ErrPhilosophySubmitted)

	ov, err := env.Engine.Overview(env.Ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, ov.Current)
	assert.Equal(t, workflow.StepOrganization, ov.Current.Key)
	require.NotNil(t, ov.AlignmentScore)
	assert.Equal(t, 75, *ov.AlignmentScore)

	approved, err := env.Engine.ApproveStep(env.Ctx, p.ID, "diagnosis", env.CEO.ID)
	require.NoError(t, err)
	require.NoError(t, approved.NotifyErr)
	assert.Equal(t, "approved", approved.Project.DiagnosisStatus)
	assert.Len(t, env.Mailer.SentTo(env.HR.Email), 1)
}

func TestStepUnlockedFollowsTheActualUnlock(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.completeStep(t, p.ID, workflow.StepDiagnosis)
	approved, err := env.Engine.ApproveStep(env.Ctx, p.ID, "diagnosis", env.CEO.ID)
	require.NoError(t, err)
	require.NoError(t, approved.NotifyErr)
	assert.Empty(t, env.Mailer.SentTo(env.HR.Email))

	res := env.completeSurvey(t, p.ID)
	require.NoError(t, res.NotifyErr)
	sent := env.Mailer.SentTo(env.HR.Email)
	require.Len(t, sent, 1)
	assert.Equal(t, "Organization Design is now unlocked", sent[0].Subject)

	env.completeStep(t, p.ID, workflow.StepOrganization)
	sent = env.Mailer.SentTo(env.HR.Email)
	require.Len(t, sent, 2)
	assert.Equal(t, "Performance System is now unlocked", sent[1].Subject)

	_, err = env.Engine.ApproveStep(env.Ctx, p.ID, "organization", env.CEO.ID)
	require.NoError(t, err)
	assert.Len(t, env.Mailer.SentTo(env.HR.Email), 2)
}

func TestLockProject(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)

	_, err := env.Engine.LockProject(env.Ctx, p.ID, env.CEO.ID)
	assert.ErrorIs(t, err, engine.ErrNotAllCompleted)

	env.completeStep(t, p.ID, workflow.StepDiagnosis)
	env.completeSurvey(t, p.ID)
	env.completeStep(t, p.ID, workflow.StepOrganization)
	env.completeStep(t, p.ID, workflow.StepPerformance)
	env.completeStep(t, p.ID, workflow.StepCompensation)

	ov, err := env.Engine.Overview(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ov.AllCompleted)
	assert.Equal(t, "hr-system.overview", ov.CTARoute)
	assert.Equal(t, "https://hr.example.com/hr-system/"+p.ID+"/overview", ov.CTAURL)
	assert.Equal(t, 100, ov.Progress)

	res, err := env.Engine.LockProject(env.Ctx, p.ID, env.CEO.ID)
	require.NoError(t, err)
	locked := res.Project
	assert.Equal(t, domain.ProjectLocked, locked.Status)
	for _, raw := range locked.StepStatuses() {
		assert.Equal(t, "locked", raw)
	}
	assert.Equal(t, "locked", locked.CEOPhilosophyStatus)
	assert.NotNil(t, locked.LockedAt)
	assert.Len(t, env.outbox(t, notify.EventSystemLocked), 2)

	_, err = env.Engine.LockProject(env.Ctx, p.ID, env.CEO.ID)
	assert.ErrorIs(t, err, engine.ErrProjectLocked)
	_, err = env.Engine.ApproveStep(env.Ctx, p.ID, "diagnosis", env.CEO.ID)
	assert.ErrorIs(t, err, engine.ErrProjectLocked)
	_, err = env.Engine.SaveStepData(env.Ctx, p.ID, "compensation", []byte(`{}`), env.HR.ID)
	assert.ErrorIs(t, err, engine.ErrProjectLocked)
	_, err = env.Engine.SaveSurveyProgress(env.Ctx, p.ID, env.CEO.ID, engine.SurveyProgress{Index: 1, HasAgreed: true})
	assert.ErrorIs(t, err, engine.ErrProjectLocked)
	_, err = env.Engine.CreateKPIReviewToken(env.Ctx, engine.KPITokenOptions{ProjectID: p.ID, ReviewerName: "R", ReviewerEmail: "r@x.test"})
	assert.ErrorIs(t, err, engine.ErrProjectLocked)
}

func TestInvitationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)

	_, err := env.Engine.InviteCEO(env.Ctx, engine.InviteOptions{CompanyID: env.Company.ID, Email: "not-an-email", ActorID: env.HR.ID})
	var fes engine.FieldErrors
	require.ErrorAs(t, err, &fes)
	assert.Contains(t, fes.Map(), "email")

	inv, err := env.Engine.InviteCEO(env.Ctx, engine.InviteOptions{CompanyID: env.Company.ID, ProjectID: p.ID, Email: "Owner@Acme.test", ActorID: env.HR.ID})
	require.NoError(t, err)
	assert.Len(t, inv.Token, 64)
	assert.Equal(t, "owner@acme.test", inv.Email)
	assert.Equal(t, "2024-03-08T09:00:00Z", inv.ExpiresAt)
	queued := env.outbox(t, notify.EventInvitationSent)
	require.Len(t, queued, 1)
	assert.Contains(t, queued[0].PayloadJSON, "/invitations/"+inv.Token+"/accept")

	view, err := env.Engine.GetInvitation(env.Ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, "Acme", view.CompanyName)
	assert.False(t, view.Expired)

	_, err = env.Engine.AcceptInvitation(env.Ctx, inv.Token, engine.AcceptOptions{Name: "Owner"})
	require.ErrorAs(t, err, &fes)
	assert.Contains(t, fes.Map(), "password")

	user, err := env.Engine.AcceptInvitation(env.Ctx, inv.Token, engine.AcceptOptions{Name: "Owner", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCEO, user.Role)
	require.NotNil(t, user.CompanyID)
	assert.Equal(t, env.Company.ID, *user.CompanyID)

	_, err = env.Engine.AcceptInvitation(env.Ctx, inv.Token, engine.AcceptOptions{Name: "Owner", Password: "long-enough"})
	assert.ErrorIs(t, err, engine.ErrInvitationUsed)
	assert.ErrorIs(t, env.Engine.RejectInvitation(env.Ctx, inv.Token), engine.ErrInvitationUsed)

	_, err = env.Engine.GetInvitation(env.Ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestInvitationExpiryAndReject(t *testing.T) {
	env := newTestEnv(t)
	stale, err := env.Engine.InviteCEO(env.Ctx, engine.InviteOptions{CompanyID: env.Company.ID, Email: "late@acme.test", ActorID: env.HR.ID})
	require.NoError(t, err)
	declined, err := env.Engine.InviteCEO(env.Ctx, engine.InviteOptions{CompanyID: env.Company.ID, Email: "no@acme.test", ActorID: env.HR.ID})
	require.NoError(t, err)

	require.NoError(t, env.Engine.RejectInvitation(env.Ctx, declined.Token))
	rejected := env.outbox(t, notify.EventInvitationRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, env.HR.Email, rejected[0].Recipient)

	env.Clock.t = env.Clock.t.Add(7 * 24 * time.Hour)
	_, err = env.Engine.AcceptInvitation(env.Ctx, stale.Token, engine.AcceptOptions{Name: "Late", Password: "long-enough"})
	assert.ErrorIs(t, err, engine.ErrInvitationExpired)
	assert.ErrorIs(t, env.Engine.RejectInvitation(env.Ctx, stale.Token), engine.ErrInvitationExpired)

	view, err := env.Engine.GetInvitation(env.Ctx, stale.Token)
	require.NoError(t, err)
	assert.True(t, view.Expired)
	assert.Equal(t, domain.InvitationPending, view.Invitation.Status)
}

func TestKPIReviewTokenLimits(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)

	tok, err := env.Engine.CreateKPIReviewToken(env.Ctx, engine.KPITokenOptions{
		ProjectID:     p.ID,
		ReviewerName:  "Rita",
		ReviewerEmail: "rita@partner.test",
		ExpiresOn:     "2024-03-02",
		ActorID:       env.HR.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, tok.MaxUses)

	answers := map[string]any{"ps-1": "Top-down", "ps-2": "Weekly", "ps-3": 4}

	_, err = env.Engine.SubmitKPIReview(env.Ctx, tok.Token, engine.KPIReviewInput{Answers: map[string]any{"ps-1": "Sideways"}})
	var fes engine.FieldErrors
	require.ErrorAs(t, err, &fes)
	assert.Equal(t, "not one of the allowed options", fes.Map()["answers.ps-1"])
	assert.Equal(t, "required", fes.Map()["answers.ps-2"])

	for i := 0; i < 3; i++ {
		_, err := env.Engine.SubmitKPIReview(env.Ctx, tok.Token, engine.KPIReviewInput{Answers: answers})
		require.NoError(t, err, "submission %d", i+1)
	}
	_, err = env.Engine.SubmitKPIReview(env.Ctx, tok.Token, engine.KPIReviewInput{Answers: answers})
	assert.ErrorIs(t, err, engine.ErrTokenExhausted)

	view, err := env.Engine.GetKPIReviewToken(env.Ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Remaining)
	assert.Len(t, view.Questions, 4)

	reviews, err := env.Engine.ListKPIReviews(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 3)

	fresh, err := env.Engine.CreateKPIReviewToken(env.Ctx, engine.KPITokenOptions{ProjectID: p.ID, ReviewerName: "Sam", ReviewerEmail: "sam@partner.test", ExpiresOn: "2024-03-02"})
	require.NoError(t, err)
	env.Clock.t = time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC)
	_, err = env.Engine.SubmitKPIReview(env.Ctx, fresh.Token, engine.KPIReviewInput{Answers: answers})
	require.NoError(t, err)
	env.Clock.t = time.Date(2024, 3, 3, 0, 0, 1, 0, time.UTC)
	_, err = env.Engine.SubmitKPIReview(env.Ctx, fresh.Token, engine.KPIReviewInput{Answers: answers})
	assert.ErrorIs(t, err, engine.ErrTokenExpired)

	_, err = env.Engine.CreateKPIReviewToken(env.Ctx, engine.KPITokenOptions{ProjectID: p.ID, ReviewerName: "Old", ReviewerEmail: "old@partner.test", ExpiresOn: "2024-01-01"})
	require.ErrorAs(t, err, &fes)
	assert.Contains(t, fes.Map(), "expires_on")
}

func TestCEORoleRequests(t *testing.T) {
	env := newTestEnv(t)
	member, err := env.Engine.CreateUser(env.Ctx, engine.UserOptions{Name: "Mo", Email: "mo@acme.test", Password: "long-enough", Role: domain.RoleHRManager, CompanyID: env.Company.ID})
	require.NoError(t, err)

	_, err = env.Engine.RequestCEORole(env.Ctx, env.CEO.ID, "")
	assert.ErrorIs(t, err, engine.ErrAlreadyCEO)

	rr, err := env.Engine.RequestCEORole(env.Ctx, member.ID, "")
	require.NoError(t, err)
	assert.Equal(t, env.Company.ID, rr.CompanyID)
	_, err = env.Engine.RequestCEORole(env.Ctx, member.ID, "")
	assert.ErrorIs(t, err, engine.ErrRoleRequestPending)

	pending, err := env.Engine.ListRoleRequests(env.Ctx, domain.RoleRequestPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	decided, err := env.Engine.ApproveCEORole(env.Ctx, rr.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleRequestApproved, decided.Status)
	u, err := env.Engine.Repo.GetUser(env.Ctx, nil, member.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCEO, u.Role)
	approved := env.outbox(t, notify.EventCEORoleApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, "mo@acme.test", approved[0].Recipient)
	assert.Contains(t, approved[0].PayloadJSON, "https://hr.example.com/login")

	_, err = env.Engine.RejectCEORole(env.Ctx, rr.ID, "admin-1", "late")
	assert.ErrorIs(t, err, engine.ErrRoleRequestDecided)
}

func TestCatalogCRUD(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.SaveIndustry(env.Ctx, engine.IndustryInput{}, true, "admin")
	var fes engine.FieldErrors
	require.ErrorAs(t, err, &fes)
	assert.Equal(t, map[string]string{"name": "required", "order": "required"}, fes.Map())

	order := 9
	ind, err := env.Engine.SaveIndustry(env.Ctx, engine.IndustryInput{ID: "energy", Name: "Energy", Order: &order}, true, "admin")
	require.NoError(t, err)
	_, err = env.Engine.SaveIndustry(env.Ctx, engine.IndustryInput{ID: "energy", Name: "Energy", Order: &order}, true, "admin")
	var fe engine.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "id", fe.Field)

	_, err = env.Engine.SaveSubcategory(env.Ctx, engine.SubcategoryInput{IndustryID: "nope", Name: "Solar", Order: &order}, true, "admin")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "industry_id", fe.Field)
	sub, err := env.Engine.SaveSubcategory(env.Ctx, engine.SubcategoryInput{IndustryID: ind.ID, Name: "Solar", Order: &order}, true, "admin")
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)

	_, err = env.Engine.SaveCEOQuestion(env.Ctx, engine.CEOQuestionInput{Section: "intro", QuestionType: "dial", Order: &order}, true, "admin")
	require.ErrorAs(t, err, &fes)
	assert.Contains(t, fes.Map(), "section")
	assert.Contains(t, fes.Map(), "question_type")
	assert.Contains(t, fes.Map(), "question_text")

	q, err := env.Engine.SaveCEOQuestion(env.Ctx, engine.CEOQuestionInput{
		ID:           "gs-2",
		Section:      "growth_stage",
		QuestionText: "Expected stage in five years",
		QuestionType: "select",
		OptionsJSON:  `["growth", 3]`,
		Order:        &order,
	}, true, "admin")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"value":"growth","label":"growth"},{"value":"3","label":"3"}]`, q.OptionsJSON)

	q.QuestionText = "Stage in five years"
	_, err = env.Engine.SaveCEOQuestion(env.Ctx, engine.CEOQuestionInput{ID: q.ID, Section: q.Section, QuestionText: q.QuestionText, QuestionType: q.QuestionType, OptionsJSON: q.OptionsJSON, Order: &order}, false, "admin")
	require.NoError(t, err)

	_, err = env.Engine.SaveOrganizationalIssue(env.Ctx, engine.IssueInput{ID: "99", Category: "legacy_bucket", Name: "Old issue", Order: &order}, true, "admin")
	require.NoError(t, err)

	assert.ErrorIs(t, env.Engine.DeleteCatalogItem(env.Ctx, repo.TableIndustries, ind.ID, false, "admin"), engine.ErrConfirmationRequired)
	require.NoError(t, env.Engine.DeleteCatalogItem(env.Ctx, repo.TableIndustries, ind.ID, true, "admin"))
	assert.ErrorIs(t, env.Engine.DeleteCatalogItem(env.Ctx, repo.TableIndustries, ind.ID, true, "admin"), repo.ErrNotFound)
	subs, err := env.Engine.Repo.ListSubcategories(env.Ctx, ind.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

var codePattern = regexp.MustCompile(`code is (\d{6})`)

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Engine.RequestPasswordOTP(env.Ctx, "nobody@acme.test"))
	assert.Empty(t, env.Mailer.Sent())

	require.NoError(t, env.Engine.RequestPasswordOTP(env.Ctx, "HANA@acme.test"))
	sent := env.Mailer.SentTo(env.HR.Email)
	require.Len(t, sent, 1)
	m := codePattern.FindStringSubmatch(sent[0].Text)
	require.Len(t, m, 2)
	code := m[1]

	assert.ErrorIs(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, "000000x", "new-password-1"), engine.ErrInvalidCode)
	var fe engine.FieldError
	require.ErrorAs(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, code, "short"), &fe)

	require.NoError(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, code, "new-password-1"))
	_, err := env.Engine.Login(env.Ctx, env.HR.Email, "correct-horse")
	assert.Error(t, err)
	_, err = env.Engine.Login(env.Ctx, env.HR.Email, "new-password-1")
	require.NoError(t, err)
	assert.ErrorIs(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, code, "new-password-2"), engine.ErrInvalidCode)

	env.Clock.t = env.Clock.t.Add(time.Hour)
	require.NoError(t, env.Engine.RequestPasswordOTP(env.Ctx, env.HR.Email))
	env.Clock.t = env.Clock.t.Add(16 * time.Minute)
	sent = env.Mailer.SentTo(env.HR.Email)
	late := codePattern.FindStringSubmatch(sent[len(sent)-1].Text)[1]
	assert.ErrorIs(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, late, "new-password-3"), engine.ErrInvalidCode)
}

func TestResetCodeBurnsAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Engine.RequestPasswordOTP(env.Ctx, env.HR.Email))
	sent := env.Mailer.SentTo(env.HR.Email)
	require.Len(t, sent, 1)
	code := codePattern.FindStringSubmatch(sent[0].Text)[1]
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < engine.MaxOTPAttempts-1; i++ {
		assert.ErrorIs(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, wrong, "new-password-1"), engine.ErrInvalidCode)
	}
	otps, err := env.Engine.Repo.ActiveOTPs(env.Ctx, nil, env.HR.Email, env.Clock.t.UTC().Format(time.RFC3339))
	require.NoError(t, err)
	require.Len(t, otps, 1)
	assert.Equal(t, engine.MaxOTPAttempts-1, otps[0].Attempts)

	assert.ErrorIs(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, wrong, "new-password-1"), engine.ErrInvalidCode)
	assert.ErrorIs(t, env.Engine.ResetPassword(env.Ctx, env.HR.Email, code, "new-password-1"), engine.ErrInvalidCode)
	_, err = env.Engine.Login(env.Ctx, env.HR.Email, "correct-horse")
	require.NoError(t, err)
}

func TestInviteWithoutConfigUsesWeekTTL(t *testing.T) {
	env := newTestEnv(t)
	eng := env.Engine
	eng.Config = nil
	inv, err := eng.InviteCEO(env.Ctx, engine.InviteOptions{CompanyID: env.Company.ID, Email: "bare@acme.test", ActorID: env.HR.ID})
	require.NoError(t, err)
	assert.Equal(t, env.Clock.t.Add(7*24*time.Hour).Format(time.RFC3339), inv.ExpiresAt)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{Name: "X", Email: "hana@acme.test", Password: "long-enough", CompanyName: "Other"})
	assert.ErrorIs(t, err, engine.ErrEmailTaken)

	_, _, err = env.Engine.Register(env.Ctx, engine.RegisterOptions{Name: "X", Email: "x@other.test", Password: "long-enough", CompanyName: "Other", IndustryID: "mining"})
	var fe engine.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "industry_id", fe.Field)

	key, row, err := env.Engine.CreateAPIKey(env.Ctx, env.HR.ID, "ci")
	require.NoError(t, err)
	assert.Equal(t, repo.HashAPIKey(key), row.KeyHash)
	got, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(key))
	require.NoError(t, err)
	assert.Equal(t, env.HR.ID, got.UserID)
}

func TestDashboards(t *testing.T) {
	env := newTestEnv(t)
	p := env.project(t)
	env.completeStep(t, p.ID, workflow.StepDiagnosis)
	_, err := env.Engine.InviteCEO(env.Ctx, engine.InviteOptions{CompanyID: env.Company.ID, Email: "board@acme.test", ActorID: env.HR.ID})
	require.NoError(t, err)

	ceo, err := env.Engine.CEODashboard(env.Ctx, env.CEO.ID)
	require.NoError(t, err)
	require.Len(t, ceo.Projects, 1)
	require.Len(t, ceo.PendingReviews, 1)
	assert.Equal(t, "https://hr.example.com/ceo/review/diagnosis/"+p.ID, ceo.PendingReviews[0].URL)
	assert.Equal(t, "not_started", ceo.PhilosophyStatus)

	hr, err := env.Engine.HRManagerDashboard(env.Ctx, env.HR.ID)
	require.NoError(t, err)
	assert.Len(t, hr.PendingInvitations, 1)

	consultant, err := env.Engine.ConsultantDashboard(env.Ctx)
	require.NoError(t, err)
	require.Len(t, consultant.Queue, 1)
	assert.Equal(t, workflow.StepDiagnosis, consultant.Queue[0].Step)

	admin, err := env.Engine.AdminDashboard(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, admin.Companies)
	assert.Equal(t, 1, admin.UsersByRole[domain.RoleCEO])
	assert.Equal(t, 1, admin.UsersByRole[domain.RoleHRManager])
	assert.Equal(t, 1, admin.ProjectsByStatus[domain.ProjectActive])
	assert.Equal(t, 1, admin.PendingInvitations)
}
