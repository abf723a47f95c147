package engine

import (
	"context"

	"hrdesign/internal/domain"
	"hrdesign/internal/repo"
	"hrdesign/internal/routes"
	"hrdesign/internal/workflow"
)

type CEODashboard struct {
	Company          domain.Company `json:"company"`
	Projects         []Overview     `json:"projects"`
	PendingReviews   []ReviewItem   `json:"pending_reviews"`
	PhilosophyStatus string         `json:"philosophy_status,omitempty"`
	AlignmentScore   *int           `json:"alignment_score,omitempty"`
}

type HRManagerDashboard struct {
	Company            domain.Company      `json:"company"`
	Projects           []Overview          `json:"projects"`
	PendingInvitations []domain.Invitation `json:"pending_invitations"`
}

// ReviewItem is one submitted step waiting for sign-off.
type ReviewItem struct {
	ProjectID string           `json:"project_id"`
	CompanyID string           `json:"company_id"`
	Step      workflow.StepKey `json:"step"`
	Title     string           `json:"title"`
	URL       string           `json:"url,omitempty"`
}

type ConsultantDashboard struct {
	Queue []ReviewItem `json:"queue"`
}

type AdminDashboard struct {
	Companies           int            `json:"companies"`
	UsersByRole         map[string]int `json:"users_by_role"`
	ProjectsByStatus    map[string]int `json:"projects_by_status"`
	PendingRoleRequests int            `json:"pending_role_requests"`
	PendingInvitations  int            `json:"pending_invitations"`
}

func (e Engine) userCompany(ctx context.Context, userID string) (domain.Company, error) {
	u, err := e.Repo.GetUser(ctx, nil, userID)
	if err != nil {
		return domain.Company{}, err
	}
	if u.CompanyID == nil {
		return domain.Company{}, FieldError{Field: "company_id", Message: "user has no company"}
	}
	return e.Repo.GetCompany(ctx, nil, *u.CompanyID)
}

func (e Engine) companyOverviews(ctx context.Context, companyID string) ([]Overview, error) {
	projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	out := make([]Overview, 0, len(projects))
	for _, p := range projects {
		ov, err := e.overview(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, nil
}

// reviewItems lists the submitted steps of p.
func (e Engine) reviewItems(p domain.Project) []ReviewItem {
	var out []ReviewItem
	for _, d := range Derive(p) {
		if d.Raw != string(workflow.StatusSubmitted) {
			continue
		}
		item := ReviewItem{ProjectID: p.ID, CompanyID: p.CompanyID, Step: d.Key, Title: d.Title}
		if d.Key == workflow.StepDiagnosis {
			item.URL, _ = e.Links.URL(routes.CEOReviewDiagnosis, "project", p.ID)
		}
		out = append(out, item)
	}
	return out
}

func (e Engine) CEODashboard(ctx context.Context, userID string) (CEODashboard, error) {
	company, err := e.userCompany(ctx, userID)
	if err != nil {
		return CEODashboard{}, err
	}
	overviews, err := e.companyOverviews(ctx, company.ID)
	if err != nil {
		return CEODashboard{}, err
	}
	d := CEODashboard{Company: company, Projects: overviews, PendingReviews: []ReviewItem{}}
	for _, ov := range overviews {
		d.PendingReviews = append(d.PendingReviews, e.reviewItems(ov.Project)...)
	}
	if len(overviews) > 0 {
		latest := overviews[0]
		d.PhilosophyStatus = latest.PhilosophyStatus
		d.AlignmentScore = latest.AlignmentScore
	}
	return d, nil
}

func (e Engine) HRManagerDashboard(ctx context.Context, userID string) (HRManagerDashboard, error) {
	company, err := e.userCompany(ctx, userID)
	if err != nil {
		return HRManagerDashboard{}, err
	}
	overviews, err := e.companyOverviews(ctx, company.ID)
	if err != nil {
		return HRManagerDashboard{}, err
	}
	pending, err := e.Repo.ListInvitations(ctx, repo.InvitationFilters{CompanyID: company.ID, Status: domain.InvitationPending})
	if err != nil {
		return HRManagerDashboard{}, err
	}
	if pending == nil {
		pending = []domain.Invitation{}
	}
	return HRManagerDashboard{Company: company, Projects: overviews, PendingInvitations: pending}, nil
}

// ConsultantDashboard is the review queue across all active projects.
func (e Engine) ConsultantDashboard(ctx context.Context) (ConsultantDashboard, error) {
	projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{Status: domain.ProjectActive, StepStatus: string(workflow.StatusSubmitted)})
	if err != nil {
		return ConsultantDashboard{}, err
	}
	d := ConsultantDashboard{Queue: []ReviewItem{}}
	for _, p := range projects {
		d.Queue = append(d.Queue, e.reviewItems(p)...)
	}
	return d, nil
}

func (e Engine) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	var d AdminDashboard
	var err error
	if d.Companies, err = e.Repo.CountCompanies(ctx); err != nil {
		return d, err
	}
	if d.UsersByRole, err = e.Repo.CountUsersByRole(ctx); err != nil {
		return d, err
	}
	if d.ProjectsByStatus, err = e.Repo.CountProjectsByStatus(ctx); err != nil {
		return d, err
	}
	requests, err := e.Repo.ListRoleRequests(ctx, domain.RoleRequestPending)
	if err != nil {
		return d, err
	}
	d.PendingRoleRequests = len(requests)
	if d.PendingInvitations, err = e.Repo.CountPendingInvitations(ctx); err != nil {
		return d, err
	}
	return d, nil
}
