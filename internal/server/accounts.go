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

func registerAccounts(api huma.API, e engine.Engine, sessions session.Manager) {
	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Register a company and its HR manager",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body RegisterResponse `json:"body"`
	}, error) {
		user, company, err := e.Register(ctx, engine.RegisterOptions{
			Name:          input.Body.Name,
			Email:         input.Body.Email,
			Password:      input.Body.Password,
			CompanyName:   input.Body.CompanyName,
			IndustryID:    input.Body.IndustryID,
			SubcategoryID: input.Body.SubcategoryID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		token, _, err := sessions.Start(ctx, user)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RegisterResponse `json:"body"`
		}{Body: RegisterResponse{User: user, Company: company, Token: token}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for a session token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		user, err := e.Login(ctx, input.Body.Email, input.Body.Password)
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
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/auth/logout",
		Summary:       "End the current session",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		s, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := sessions.End(ctx, s.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "password-otp",
		Method:        http.MethodPost,
		Path:          "/auth/password/otp",
		Summary:       "Mail a password reset code",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusTooManyRequests},
	}, func(ctx context.Context, input *struct {
		Body PasswordOTPRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := e.RequestPasswordOTP(ctx, input.Body.Email); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "sent"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "password-reset",
		Method:        http.MethodPost,
		Path:          "/auth/password/reset",
		Summary:       "Set a new password with a reset code",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusTooManyRequests},
	}, func(ctx context.Context, input *struct {
		Body PasswordResetRequest `json:"body"`
	}) (*struct{}, error) {
		if err := e.ResetPassword(ctx, input.Body.Email, input.Body.Code, input.Body.Password); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		s, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		perms := e.Auth.RolePermissions(s.Role())
		if perms == nil {
			perms = []string{}
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{Session: s, Permissions: perms}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-appearance",
		Method:      http.MethodPut,
		Path:        "/me/appearance",
		Summary:     "Store the display preference",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body AppearanceRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		s, authErr := requireSession(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !session.ValidAppearance(input.Body.Appearance) {
			return nil, handleError(engine.FieldError{Field: "appearance", Message: "must be one of light, dark, system"})
		}
		if err := sessions.SetAppearance(ctx, s.UserID(), input.Body.Appearance); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"appearance": input.Body.Appearance}}, nil
	})

	registerAPIKeys(api, e)
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/me/api-keys",
		Summary:       "Issue an API key for the current user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body APIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermAPIKeyManage)
		if err != nil {
			return nil, handleError(err)
		}
		plain, key, err := e.CreateAPIKey(ctx, s.UserID(), input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{Key: plain, APIKey: key}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/me/api-keys",
		Summary:     "List API keys of the current user",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		s, err := requirePermission(ctx, e, auth.PermAPIKeyManage)
		if err != nil {
			return nil, handleError(err)
		}
		keys, err := e.Repo.ListAPIKeys(ctx, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		if keys == nil {
			keys = []domain.APIKey{}
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: keys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api-key",
		Method:        http.MethodDelete,
		Path:          "/me/api-keys/{id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		s, err := requirePermission(ctx, e, auth.PermAPIKeyManage)
		if err != nil {
			return nil, handleError(err)
		}
		keys, err := e.Repo.ListAPIKeys(ctx, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		owned := false
		for _, k := range keys {
			if k.ID == input.ID {
				owned = true
				break
			}
		}
		if !owned {
			return nil, newAPIError(http.StatusNotFound, "not_found", "api key not found", nil)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
