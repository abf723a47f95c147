package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hrdesign/internal/engine"
	"hrdesign/internal/engine/auth"
	"hrdesign/internal/survey"
)

func registerSurvey(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-philosophy-survey",
		Method:      http.MethodGet,
		Path:        "/ceo/philosophy/survey/{project_id}",
		Summary:     "Resume the CEO philosophy survey",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.SurveyView `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermSurveyRespond)
		if err != nil {
			return nil, handleError(err)
		}
		view, err := e.GetSurvey(ctx, input.ProjectID, s.UserID())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.SurveyView `json:"body"`
		}{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-philosophy-progress",
		Method:      http.MethodPut,
		Path:        "/ceo/philosophy/survey/{project_id}/progress",
		Summary:     "Autosave the survey position and draft",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string                `path:"project_id"`
		Body      SurveyProgressRequest `json:"body"`
	}) (*struct {
		Body SurveyProgressResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermSurveyRespond)
		if err != nil {
			return nil, handleError(err)
		}
		payload := rawField(ctx, "payload")
		if payload == nil && input.Body.Payload != nil {
			if payload, err = json.Marshal(input.Body.Payload); err != nil {
				return nil, handleError(err)
			}
		}
		w, err := e.SaveSurveyProgress(ctx, input.ProjectID, s.UserID(), engine.SurveyProgress{
			Index:     input.Body.Index,
			HasAgreed: input.Body.HasAgreed,
			Payload:   payload,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SurveyProgressResponse `json:"body"`
		}{Body: SurveyProgressResponse{
			Index:     w.Index,
			Section:   string(w.Section()),
			HasAgreed: w.HasAgreed,
			CanSubmit: w.CanSubmit(),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-philosophy-survey",
		Method:      http.MethodPost,
		Path:        "/ceo/philosophy/survey/{project_id}",
		Summary:     "Submit the CEO philosophy survey",
		Description: "The body is the full answer set. index and has_agreed report the wizard position when the client did not autosave it.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string         `path:"project_id"`
		Index     int            `query:"index" default:"-1"`
		HasAgreed bool           `query:"has_agreed"`
		Body      map[string]any `json:"body"`
	}) (*struct {
		Body SurveySubmitResponse `json:"body"`
	}, error) {
		s, _, err := projectAccess(ctx, e, input.ProjectID, auth.PermSurveyRespond)
		if err != nil {
			return nil, handleError(err)
		}
		raw := bodyBytes(ctx)
		if err := survey.ValidateJSON(raw); err != nil {
			return nil, handleError(err)
		}
		var resp survey.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		sub := engine.SurveySubmission{HasAgreed: input.HasAgreed, Response: resp}
		if input.Index >= 0 {
			idx := input.Index
			sub.Index = &idx
		}
		res, err := e.SubmitSurvey(ctx, input.ProjectID, s.UserID(), sub)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SurveySubmitResponse `json:"body"`
		}{Body: SurveySubmitResponse{
			Response:          res.Response,
			AlignmentScore:    res.AlignmentScore,
			NotificationError: notificationError(ctx, e, res.NotifyErr),
		}}, nil
	})
}
