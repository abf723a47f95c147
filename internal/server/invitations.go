package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
	"hrdesign/internal/engine/auth"
	"hrdesign/internal/session"
)

func registerInvitations(api huma.API, e engine.Engine, sessions session.Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "invite-ceo",
		Method:        http.MethodPost,
		Path:          "/companies/{company_id}/invitations",
		Summary:       "Invite a CEO to the company",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		CompanyID string            `path:"company_id"`
		Body      InvitationRequest `json:"body"`
	}) (*struct {
		Body domain.Invitation `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermInvitationCreate)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requireCompany(s, input.CompanyID); err != nil {
			return nil, handleError(err)
		}
		inv, err := e.InviteCEO(ctx, engine.InviteOptions{
			CompanyID: input.CompanyID,
			ProjectID: input.Body.ProjectID,
			Email:     input.Body.Email,
			ActorID:   s.UserID(),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Invitation `json:"body"`
		}{Body: inv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-invitation",
		Method:      http.MethodGet,
		Path:        "/invitations/{token}",
		Summary:     "Look up an invitation by its token",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
	}) (*struct {
		Body engine.InvitationView `json:"body"`
	}, error) {
		view, err := e.GetInvitation(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.InvitationView `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-invitation",
		Method:      http.MethodPost,
		Path:        "/invitations/{token}/accept",
		Summary:     "Accept an invitation and create the CEO account",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity, http.StatusTooManyRequests},
	}, func(ctx context.Context, input *struct {
		Token string                  `path:"token"`
		Body  AcceptInvitationRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		user, err := e.AcceptInvitation(ctx, input.Token, engine.AcceptOptions{Name: input.Body.Name, Password: input.Body.Password})
		if err != nil {
			return nil, handleError(err)
		}
		token, s, err := sessions.Start(ctx, user)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, ExpiresAt: s.ExpiresAt, User: user}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "reject-invitation",
		Method:        http.MethodPost,
		Path:          "/invitations/{token}/reject",
		Summary:       "Decline an invitation",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict, http.StatusGone, http.StatusTooManyRequests},
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
	}) (*struct{}, error) {
		if err := e.RejectInvitation(ctx, input.Token); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerRoleRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "request-ceo-role",
		Method:        http.MethodPost,
		Path:          "/role-requests",
		Summary:       "Ask an admin for the CEO role",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body RoleRequestCreate `json:"body"`
	}) (*struct {
		Body domain.RoleRequest `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermRoleRequestCreate)
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
		rr, err := e.RequestCEORole(ctx, s.UserID(), companyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RoleRequest `json:"body"`
		}{Body: rr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-role-requests",
		Method:      http.MethodGet,
		Path:        "/admin/role-requests",
		Summary:     "List CEO role requests",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body []domain.RoleRequest `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, auth.PermRoleRequestDecide); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListRoleRequests(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.RoleRequest{}
		}
		return &struct {
			Body []domain.RoleRequest `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-role-request",
		Method:      http.MethodPost,
		Path:        "/admin/role-requests/{id}/approve",
		Summary:     "Grant the CEO role",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.RoleRequest `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermRoleRequestDecide)
		if err != nil {
			return nil, handleError(err)
		}
		rr, err := e.ApproveCEORole(ctx, input.ID, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RoleRequest `json:"body"`
		}{Body: rr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-role-request",
		Method:      http.MethodPost,
		Path:        "/admin/role-requests/{id}/reject",
		Summary:     "Decline a CEO role request",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body *RoleDecisionRequest `json:"body,omitempty"`
	}) (*struct {
		Body domain.RoleRequest `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermRoleRequestDecide)
		if err != nil {
			return nil, handleError(err)
		}
		note := ""
		if input.Body != nil {
			note = input.Body.Note
		}
		rr, err := e.RejectCEORole(ctx, input.ID, s.UserID(), note)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RoleRequest `json:"body"`
		}{Body: rr}, nil
	})
}
