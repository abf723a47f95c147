package hrdesignsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HR Design HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Project represents the API project model.
type Project struct {
	ID                  string `json:"id"`
	CompanyID           string `json:"company_id"`
	Status              string `json:"status"`
	DiagnosisStatus     string `json:"diagnosis_status"`
	OrganizationStatus  string `json:"organization_status"`
	PerformanceStatus   string `json:"performance_status"`
	CompensationStatus  string `json:"compensation_status"`
	CEOPhilosophyStatus string `json:"ceo_philosophy_status"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

// Step is the derived display state of one step.
type Step struct {
	Key    string `json:"key"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Raw    string `json:"raw_status"`
	State  string `json:"state"`
	Label  string `json:"label"`
	Badge  string `json:"badge"`
}

// StepResult is returned by step transitions.
type StepResult struct {
	Project           Project `json:"project"`
	Steps             []Step  `json:"steps"`
	NotificationError string  `json:"notification_error,omitempty"`
}

// Overview is the progress view of a project.
type Overview struct {
	Project          Project `json:"project"`
	Steps            []Step  `json:"steps"`
	Progress         int     `json:"progress"`
	Current          *Step   `json:"current,omitempty"`
	AllCompleted     bool    `json:"all_completed"`
	CTARoute         string  `json:"cta_route,omitempty"`
	CTAURL           string  `json:"cta_url,omitempty"`
	PhilosophyStatus string  `json:"philosophy_status"`
	AlignmentScore   *int    `json:"alignment_score,omitempty"`
}

// StepData is the saved form of a step.
type StepData struct {
	ProjectID string          `json:"project_id"`
	Step      string          `json:"step"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedBy string          `json:"updated_by,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	ProjectID  string          `json:"project_id"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// KPIReview is a submitted external review.
type KPIReview struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Answers   json.RawMessage `json:"answers"`
	Comment   string          `json:"comment"`
	CreatedAt string          `json:"created_at"`
}

// Route is a resolved named route.
type Route struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// APIError wraps non-2xx responses. Code and Message come from the error envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a session token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// CreateProject creates a project. An empty companyID uses the caller's company.
func (c *Client) CreateProject(ctx context.Context, companyID string) (Project, error) {
	body := map[string]any{}
	if companyID != "" {
		body["company_id"] = companyID
	}
	var resp Project
	err := c.do(ctx, http.MethodPost, "projects", body, &resp)
	return resp, err
}

// Overview returns the progress view of a project.
func (c *Client) Overview(ctx context.Context, projectID string) (Overview, error) {
	var resp Overview
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "overview"), nil, &resp)
	return resp, err
}

// StartStep moves the current step to in_progress.
func (c *Client) StartStep(ctx context.Context, projectID, step string) (StepResult, error) {
	return c.stepAction(ctx, projectID, step, "start")
}

// SubmitStep submits a step for review.
func (c *Client) SubmitStep(ctx context.Context, projectID, step string) (StepResult, error) {
	return c.stepAction(ctx, projectID, step, "submit")
}

// ApproveStep approves a submitted step.
func (c *Client) ApproveStep(ctx context.Context, projectID, step string) (StepResult, error) {
	return c.stepAction(ctx, projectID, step, "approve")
}

func (c *Client) stepAction(ctx context.Context, projectID, step, action string) (StepResult, error) {
	var resp StepResult
	endpoint := projectPath(projectID, fmt.Sprintf("steps/%s/%s", url.PathEscape(step), action))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// SaveStepData autosaves the form of a step.
func (c *Client) SaveStepData(ctx context.Context, projectID, step string, payload any) (StepData, error) {
	var resp StepData
	endpoint := projectPath(projectID, fmt.Sprintf("steps/%s/data", url.PathEscape(step)))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"payload": payload}, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, projectID string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := projectPath(projectID, "events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SubmitKPIReview posts a review through a public review link.
func (c *Client) SubmitKPIReview(ctx context.Context, token string, answers map[string]any, comment string) (KPIReview, error) {
	body := map[string]any{"answers": answers}
	if comment != "" {
		body["comment"] = comment
	}
	var resp KPIReview
	err := c.do(ctx, http.MethodPost, "kpi-review/"+url.PathEscape(token), body, &resp)
	return resp, err
}

// ResolveRoute resolves a named route with its placeholder values.
func (c *Client) ResolveRoute(ctx context.Context, name string, params map[string]string) (Route, error) {
	endpoint := "routes/" + url.PathEscape(name)
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}
	var resp Route
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return parseAPIError(resp.StatusCode, b)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Details = env.Error.Details
	}
	return apiErr
}

func projectPath(projectID, p string) string {
	return fmt.Sprintf("projects/%s/%s", url.PathEscape(projectID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
