package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
	"hrdesign/internal/engine/auth"
	"hrdesign/internal/repo"
	"hrdesign/internal/routes"
)

// catalogResource wires one admin catalog table to list, create, update and delete operations.
type catalogResource[Req any, Row any] struct {
	name  string
	table string
	list  func(ctx context.Context) ([]Row, error)
	save  func(ctx context.Context, req Req, id string, create bool, actorID string) (Row, error)
}

func registerCatalog[Req any, Row any](api huma.API, e engine.Engine, c catalogResource[Req, Row]) {
	base := "/admin/" + c.name
	huma.Register(api, huma.Operation{
		OperationID: "list-" + c.name,
		Method:      http.MethodGet,
		Path:        base,
		Summary:     "List " + c.name,
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []Row `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, auth.PermCatalogManage); err != nil {
			return nil, handleError(err)
		}
		rows, err := c.list(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if rows == nil {
			rows = []Row{}
		}
		return &struct {
			Body []Row `json:"body"`
		}{Body: rows}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-" + c.name,
		Method:        http.MethodPost,
		Path:          base,
		Summary:       "Create one of " + c.name,
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body Req `json:"body"`
	}) (*struct {
		Body Row `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermCatalogManage)
		if err != nil {
			return nil, handleError(err)
		}
		row, err := c.save(ctx, input.Body, "", true, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body Row `json:"body"`
		}{Body: row}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + c.name,
		Method:      http.MethodPut,
		Path:        base + "/{id}",
		Summary:     "Update one of " + c.name,
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body Req    `json:"body"`
	}) (*struct {
		Body Row `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermCatalogManage)
		if err != nil {
			return nil, handleError(err)
		}
		row, err := c.save(ctx, input.Body, input.ID, false, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body Row `json:"body"`
		}{Body: row}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-" + c.name,
		Method:        http.MethodDelete,
		Path:          base + "/{id}",
		Summary:       "Delete one of " + c.name,
		Description:   "Deletion cannot be undone and requires confirm=true.",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		Confirm bool   `query:"confirm"`
	}) (*struct{}, error) {
		s, err := requirePermission(ctx, e, auth.PermCatalogManage)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteCatalogItem(ctx, c.table, input.ID, input.Confirm, s.UserID()); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// pick prefers the path id on update and the body id on create.
func pick(pathID, bodyID string) string {
	if pathID != "" {
		return pathID
	}
	return bodyID
}

func registerCatalogAdmin(api huma.API, e engine.Engine) {
	registerCatalog(api, e, catalogResource[IndustryRequest, domain.Industry]{
		name:  "industries",
		table: repo.TableIndustries,
		list:  e.Repo.ListIndustries,
		save: func(ctx context.Context, req IndustryRequest, id string, create bool, actorID string) (domain.Industry, error) {
			return e.SaveIndustry(ctx, engine.IndustryInput{ID: pick(id, req.ID), Name: req.Name, Order: req.Order}, create, actorID)
		},
	})
	registerCatalog(api, e, catalogResource[SubcategoryRequest, domain.Subcategory]{
		name:  "subcategories",
		table: repo.TableSubcategories,
		list:  func(ctx context.Context) ([]domain.Subcategory, error) { return e.Repo.ListSubcategories(ctx, "") },
		save: func(ctx context.Context, req SubcategoryRequest, id string, create bool, actorID string) (domain.Subcategory, error) {
			return e.SaveSubcategory(ctx, engine.SubcategoryInput{ID: pick(id, req.ID), IndustryID: req.IndustryID, Name: req.Name, Order: req.Order}, create, actorID)
		},
	})
	registerCatalog(api, e, catalogResource[CEOQuestionRequest, domain.CEOQuestion]{
		name:  "ceo-questions",
		table: repo.TableCEOQuestions,
		list:  func(ctx context.Context) ([]domain.CEOQuestion, error) { return e.Repo.ListCEOQuestions(ctx, "") },
		save: func(ctx context.Context, req CEOQuestionRequest, id string, create bool, actorID string) (domain.CEOQuestion, error) {
			opts, err := encodeOptions(req.Options)
			if err != nil {
				return domain.CEOQuestion{}, engine.FieldError{Field: "options", Message: err.Error()}
			}
			return e.SaveCEOQuestion(ctx, engine.CEOQuestionInput{
				ID:           pick(id, req.ID),
				Section:      req.Section,
				QuestionText: req.QuestionText,
				QuestionType: req.QuestionType,
				OptionsJSON:  opts,
				Order:        req.Order,
				Required:     req.Required,
			}, create, actorID)
		},
	})
	registerCatalog(api, e, catalogResource[SnapshotQuestionRequest, domain.PerformanceSnapshotQuestion]{
		name:  "performance-snapshot-questions",
		table: repo.TablePerformanceSnapshotQuestions,
		list:  e.Repo.ListPerformanceSnapshotQuestions,
		save: func(ctx context.Context, req SnapshotQuestionRequest, id string, create bool, actorID string) (domain.PerformanceSnapshotQuestion, error) {
			opts, err := encodeOptions(req.Options)
			if err != nil {
				return domain.PerformanceSnapshotQuestion{}, engine.FieldError{Field: "options", Message: err.Error()}
			}
			return e.SavePerformanceSnapshotQuestion(ctx, engine.SnapshotQuestionInput{
				ID:           pick(id, req.ID),
				QuestionText: req.QuestionText,
				Category:     req.Category,
				AnswerType:   req.AnswerType,
				OptionsJSON:  opts,
				Order:        req.Order,
				Required:     req.Required,
			}, create, actorID)
		},
	})
	registerCatalog(api, e, catalogResource[IssueRequest, domain.OrganizationalIssue]{
		name:  "organizational-issues",
		table: repo.TableOrganizationalIssues,
		list:  e.Repo.ListOrganizationalIssues,
		save: func(ctx context.Context, req IssueRequest, id string, create bool, actorID string) (domain.OrganizationalIssue, error) {
			return e.SaveOrganizationalIssue(ctx, engine.IssueInput{ID: pick(id, req.ID), Category: req.Category, Name: req.Name, Order: req.Order}, create, actorID)
		},
	})

	// The registration form needs the industry lists before anyone is signed in.
	huma.Register(api, huma.Operation{
		OperationID: "public-industries",
		Method:      http.MethodGet,
		Path:        "/catalog/industries",
		Summary:     "Industries for the registration form",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Industry `json:"body"`
	}, error) {
		rows, err := e.Repo.ListIndustries(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if rows == nil {
			rows = []domain.Industry{}
		}
		return &struct {
			Body []domain.Industry `json:"body"`
		}{Body: rows}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "public-subcategories",
		Method:      http.MethodGet,
		Path:        "/catalog/industries/{industry_id}/subcategories",
		Summary:     "Subcategories of one industry",
	}, func(ctx context.Context, input *struct {
		IndustryID string `path:"industry_id"`
	}) (*struct {
		Body []domain.Subcategory `json:"body"`
	}, error) {
		rows, err := e.Repo.ListSubcategories(ctx, input.IndustryID)
		if err != nil {
			return nil, handleError(err)
		}
		if rows == nil {
			rows = []domain.Subcategory{}
		}
		return &struct {
			Body []domain.Subcategory `json:"body"`
		}{Body: rows}, nil
	})
}

func registerOutboxAdmin(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-outbox",
		Method:      http.MethodGet,
		Path:        "/admin/outbox",
		Summary:     "Queued notification mails",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.OutboxMessage `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, auth.PermDashboardAdmin); err != nil {
			return nil, handleError(err)
		}
		rows, err := e.Repo.ListOutbox(ctx, input.Status, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		if rows == nil {
			rows = []domain.OutboxMessage{}
		}
		return &struct {
			Body []domain.OutboxMessage `json:"body"`
		}{Body: rows}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "retry-outbox",
		Method:      http.MethodPost,
		Path:        "/admin/outbox/retry",
		Summary:     "Requeue failed notification mails",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int64 `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, auth.PermDashboardAdmin); err != nil {
			return nil, handleError(err)
		}
		n, err := e.Repo.RetryFailedOutbox(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int64 `json:"body"`
		}{Body: map[string]int64{"requeued": n}}, nil
	})
}

func registerDashboards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-ceo",
		Method:      http.MethodGet,
		Path:        "/dashboard/ceo",
		Summary:     "CEO dashboard",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.CEODashboard `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermDashboardCEO)
		if err != nil {
			return nil, handleError(err)
		}
		d, err := e.CEODashboard(ctx, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.CEODashboard `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-hr-manager",
		Method:      http.MethodGet,
		Path:        "/dashboard/hr-manager",
		Summary:     "HR manager dashboard",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.HRManagerDashboard `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermDashboardHRManager)
		if err != nil {
			return nil, handleError(err)
		}
		d, err := e.HRManagerDashboard(ctx, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.HRManagerDashboard `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-consultant",
		Method:      http.MethodGet,
		Path:        "/dashboard/consultant",
		Summary:     "Consultant review queue",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.ConsultantDashboard `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, auth.PermDashboardConsult); err != nil {
			return nil, handleError(err)
		}
		d, err := e.ConsultantDashboard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ConsultantDashboard `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-admin",
		Method:      http.MethodGet,
		Path:        "/dashboard/admin",
		Summary:     "Admin counters",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.AdminDashboard `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, auth.PermDashboardAdmin); err != nil {
			return nil, handleError(err)
		}
		d, err := e.AdminDashboard(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AdminDashboard `json:"body"`
		}{Body: d}, nil
	})
}

func registerRoutes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "resolve-route",
		Method:      http.MethodGet,
		Path:        "/routes/{name}",
		Summary:     "Resolve a named route",
		Description: "Every other query parameter fills the placeholder of the same name.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body RouteResponse `json:"body"`
	}, error) {
		params := map[string]string{}
		if req := requestFrom(ctx); req != nil {
			for k, v := range req.URL.Query() {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
		}
		p, err := routes.Path(input.Name, params)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RouteResponse `json:"body"`
		}{Body: RouteResponse{Name: input.Name, Path: p, URL: strings.TrimRight(e.Links.BaseURL, "/") + p}}, nil
	})
}
