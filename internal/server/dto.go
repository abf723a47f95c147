package server

import (
	"encoding/json"

	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
	"hrdesign/internal/session"
	"hrdesign/internal/workflow"
)

type RegisterRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	CompanyName   string `json:"company_name"`
	IndustryID    string `json:"industry_id,omitempty"`
	SubcategoryID string `json:"subcategory_id,omitempty"`
}

type RegisterResponse struct {
	User    domain.User    `json:"user"`
	Company domain.Company `json:"company"`
	Token   string         `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at" format:"date-time"`
	User      domain.User `json:"user"`
}

type PasswordOTPRequest struct {
	Email string `json:"email"`
}

type PasswordResetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type MeResponse struct {
	Session     session.Session `json:"session"`
	Permissions []string        `json:"permissions"`
}

type AppearanceRequest struct {
	Appearance string `json:"appearance" enum:"light,dark,system"`
}

type APIKeyRequest struct {
	Name string `json:"name"`
}

type APIKeyResponse struct {
	Key    string        `json:"key,omitempty"`
	APIKey domain.APIKey `json:"api_key"`
}

type CreateProjectRequest struct {
	CompanyID string `json:"company_id,omitempty"`
}

// StepResponse is a step change with the derived display state of every step.
type StepResponse struct {
	Project           domain.Project         `json:"project"`
	Steps             []workflow.DerivedStep `json:"steps"`
	NotificationError string                 `json:"notification_error,omitempty"`
}

func stepResponse(res engine.StepResult) StepResponse {
	return StepResponse{Project: res.Project, Steps: res.Steps}
}

type SurveySubmitResponse struct {
	Response          domain.SurveyResponse `json:"response"`
	AlignmentScore    int                   `json:"alignment_score"`
	NotificationError string                `json:"notification_error,omitempty"`
}

type StepDataRequest struct {
	Payload any `json:"payload"`
}

type StepDataResponse struct {
	ProjectID string          `json:"project_id"`
	Step      string          `json:"step"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedBy string          `json:"updated_by,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

func stepDataResponse(d domain.StepData) StepDataResponse {
	payload := json.RawMessage(d.PayloadJSON)
	if !json.Valid(payload) {
		payload = json.RawMessage("{}")
	}
	return StepDataResponse{
		ProjectID: d.ProjectID,
		Step:      d.Step,
		Payload:   payload,
		UpdatedBy: d.UpdatedBy,
		UpdatedAt: d.UpdatedAt,
	}
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	ProjectID  string          `json:"project_id,omitempty"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		ProjectID:  evt.ProjectID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

type SurveyProgressRequest struct {
	Index     int  `json:"index"`
	HasAgreed bool `json:"has_agreed,omitempty"`
	Payload   any  `json:"payload,omitempty"`
}

type SurveyProgressResponse struct {
	Index     int    `json:"index"`
	Section   string `json:"section"`
	HasAgreed bool   `json:"has_agreed"`
	CanSubmit bool   `json:"can_submit"`
}

type InvitationRequest struct {
	Email     string `json:"email"`
	ProjectID string `json:"project_id,omitempty"`
}

type AcceptInvitationRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type RoleRequestCreate struct {
	CompanyID string `json:"company_id,omitempty"`
}

type RoleDecisionRequest struct {
	Note string `json:"note,omitempty"`
}

type KPITokenRequest struct {
	ReviewerName  string `json:"reviewer_name"`
	ReviewerEmail string `json:"reviewer_email"`
	ExpiresOn     string `json:"expires_on,omitempty" format:"date"`
}

// KPITokenResponse carries the link secret once, at creation.
type KPITokenResponse struct {
	Token       domain.KPIReviewToken `json:"token"`
	ReviewToken string                `json:"review_token"`
	URL         string                `json:"url,omitempty"`
}

type KPIReviewRequest struct {
	Answers map[string]any `json:"answers"`
	Comment string         `json:"comment,omitempty"`
}

type IndustryRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Order *int   `json:"order,omitempty"`
}

type SubcategoryRequest struct {
	ID         string `json:"id,omitempty"`
	IndustryID string `json:"industry_id"`
	Name       string `json:"name"`
	Order      *int   `json:"order,omitempty"`
}

type CEOQuestionRequest struct {
	ID           string `json:"id,omitempty"`
	Section      string `json:"section"`
	QuestionText string `json:"question_text"`
	QuestionType string `json:"question_type"`
	Options      any    `json:"options,omitempty"`
	Order        *int   `json:"order,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

type SnapshotQuestionRequest struct {
	ID           string `json:"id,omitempty"`
	QuestionText string `json:"question_text"`
	Category     string `json:"category"`
	AnswerType   string `json:"answer_type"`
	Options      any    `json:"options,omitempty"`
	Order        *int   `json:"order,omitempty"`
	Required     bool   `json:"required,omitempty"`
}

type IssueRequest struct {
	ID       string `json:"id,omitempty"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Order    *int   `json:"order,omitempty"`
}

type RouteResponse struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// encodeOptions turns a client options value into the stored JSON text.
func encodeOptions(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
