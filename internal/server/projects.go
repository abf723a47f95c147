package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
	"hrdesign/internal/engine/auth"
	"hrdesign/internal/repo"
	"hrdesign/internal/routes"
)

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermProjectCreate)
		if err != nil {
			return nil, handleError(err)
		}
		companyID := input.Body.CompanyID
		if companyID == "" {
			companyID = s.CompanyID()
		}
		if err := requireCompany(s, companyID); err != nil {
			return nil, handleError(err)
		}
		p, err := e.CreateProject(ctx, companyID, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		CompanyID string `query:"company_id"`
		Status    string `query:"status"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermProjectRead)
		if err != nil {
			return nil, handleError(err)
		}
		companyID := input.CompanyID
		if !crossCompany(s.Role()) {
			companyID = s.CompanyID()
		}
		items, err := e.ListProjects(ctx, repo.ProjectFilters{CompanyID: companyID, Status: input.Status, Limit: normalizeLimit(input.Limit)})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Project{}
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		_, p, err := projectAccess(ctx, e, input.ProjectID, auth.PermProjectRead)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "project-overview",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/overview",
		Summary:     "Step progress and next action",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.Overview `json:"body"`
	}, error) {
		if _, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermProjectRead); err != nil {
			return nil, handleError(err)
		}
		ov, err := e.Overview(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Overview `json:"body"`
		}{Body: ov}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "lock-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/lock",
		Summary:     "Lock a completed project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermProjectLock)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.LockProject(ctx, input.ProjectID, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: stepResponse(res)}, nil
	})
}

type stepPath struct {
	ProjectID string `path:"project_id"`
	Step      string `path:"step" enum:"diagnosis,organization,performance,compensation"`
}

func registerSteps(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "start-step",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/steps/{step}/start",
		Summary:     "Start the current step",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *stepPath) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermStepEdit)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.StartStep(ctx, input.ProjectID, input.Step, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: StepResponse{Project: p, Steps: engine.Derive(p)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-step",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/steps/{step}/submit",
		Summary:     "Submit a step for review",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *stepPath) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermStepEdit)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.SubmitStep(ctx, input.ProjectID, input.Step, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		out := stepResponse(res)
		out.NotificationError = notificationError(ctx, e, res.NotifyErr)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-step",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/steps/{step}/approve",
		Summary:     "Approve a submitted step",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *stepPath) (*struct {
		Body StepResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermStepApprove)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.ApproveStep(ctx, input.ProjectID, input.Step, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		out := stepResponse(res)
		out.NotificationError = notificationError(ctx, e, res.NotifyErr)
		return &struct {
			Body StepResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-step-data",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/steps/{step}/data",
		Summary:     "Saved form of a step",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *stepPath) (*struct {
		Body StepDataResponse `json:"body"`
	}, error) {
		if _, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermProjectRead); err != nil {
			return nil, handleError(err)
		}
		d, err := e.GetStepData(ctx, input.ProjectID, input.Step)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepDataResponse `json:"body"`
		}{Body: stepDataResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-step-data",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/steps/{step}/data",
		Summary:     "Autosave the form of a step in progress",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string          `path:"project_id"`
		Step      string          `path:"step" enum:"diagnosis,organization,performance,compensation"`
		Body      StepDataRequest `json:"body"`
	}) (*struct {
		Body StepDataResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermStepEdit)
		if err != nil {
			return nil, handleError(err)
		}
		payload := rawField(ctx, "payload")
		if payload == nil {
			if payload, err = json.Marshal(input.Body.Payload); err != nil {
				return nil, handleError(err)
			}
		}
		d, err := e.SaveStepData(ctx, input.ProjectID, input.Step, payload, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepDataResponse `json:"body"`
		}{Body: stepDataResponse(d)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermEventsRead); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := e.Repo.LatestEvents(ctx, repo.EventFilters{
			ProjectID:  input.ProjectID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     before,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerKPI(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-kpi-token",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/kpi-tokens",
		Summary:       "Issue a KPI review link",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string          `path:"project_id"`
		Body      KPITokenRequest `json:"body"`
	}) (*struct {
		Body KPITokenResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermKPITokenCreate)
		if err != nil {
			return nil, handleError(err)
		}
		tok, err := e.CreateKPIReviewToken(ctx, engine.KPITokenOptions{
			ProjectID:     input.ProjectID,
			ReviewerName:  input.Body.ReviewerName,
			ReviewerEmail: input.Body.ReviewerEmail,
			ExpiresOn:     input.Body.ExpiresOn,
			ActorID:       s.UserID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		url, _ := e.Links.URL(routes.KPIReviewToken, "token", tok.Token)
		return &struct {
			Body KPITokenResponse `json:"body"`
		}{Body: KPITokenResponse{Token: tok, ReviewToken: tok.Token, URL: url}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-kpi-reviews",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/kpi-reviews",
		Summary:     "Submitted KPI reviews of a project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.KPIReview `json:"body"`
	}, error) {
		if _, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermProjectRead); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListKPIReviews(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.KPIReview{}
		}
		return &struct {
			Body []domain.KPIReview `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-kpi-review",
		Method:      http.MethodGet,
		Path:        "/kpi-review/{token}",
		Summary:     "Open a KPI review link",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
	}) (*struct {
		Body engine.KPIReviewView `json:"body"`
	}, error) {
		view, err := e.GetKPIReviewToken(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.KPIReviewView `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-kpi-review",
		Method:        http.MethodPost,
		Path:          "/kpi-review/{token}",
		Summary:       "Submit a KPI review",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusGone, http.StatusUnprocessableEntity, http.StatusTooManyRequests},
	}, func(ctx context.Context, input *struct {
		Token string           `path:"token"`
		Body  KPIReviewRequest `json:"body"`
	}) (*struct {
		Body domain.KPIReview `json:"body"`
	}, error) {
		rv, err := e.SubmitKPIReview(ctx, input.Token, engine.KPIReviewInput{Answers: input.Body.Answers, Comment: input.Body.Comment})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.KPIReview `json:"body"`
		}{Body: rv}, nil
	})
}
