package hrdesignsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginKeepsBearerToken(t *testing.T) {
	var authz []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = append(authz, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hana@acme.test", body["email"])
			_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok-1"})
		case "/v1/projects/p-1/steps/diagnosis/start":
			assert.Equal(t, http.MethodPost, r.Method)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"project": map[string]any{"id": "p-1", "diagnosis_status": "in_progress"},
				"steps":   []map[string]any{{"key": "diagnosis", "number": 1, "state": "in_progress"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	token, err := c.Login(context.Background(), "hana@acme.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	res, err := c.StartStep(context.Background(), "p-1", "diagnosis")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", res.Project.DiagnosisStatus)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "in_progress", res.Steps[0].State)
	assert.Equal(t, []string{"", "Bearer tok-1"}, authz)
}

func TestAPIErrorParsesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"step_locked","message":"step is locked","details":{"step":"organization"}}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "key-1"
	_, err := c.SubmitStep(context.Background(), "p-1", "organization")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "step_locked", apiErr.Code)
	assert.Equal(t, "organization", apiErr.Details["step"])
}

func TestEventsPageAndRouteQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/projects/p-1/events":
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			assert.Equal(t, "42", r.URL.Query().Get("cursor"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items":       []map[string]any{{"id": 41, "type": "step_started", "payload": map[string]any{}}},
				"next_cursor": "41",
			})
		case "/v1/routes/hr-system.overview":
			assert.Equal(t, "p-1", r.URL.Query().Get("project"))
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "hr-system.overview", "path": "/hr-system/p-1/overview", "url": "https://hr.example.com/hr-system/p-1/overview"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	page, err := c.EventsPage(context.Background(), "p-1", 10, "42")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(41), page.Items[0].ID)
	assert.Equal(t, "41", page.NextCursor)

	route, err := c.ResolveRoute(context.Background(), "hr-system.overview", map[string]string{"project": "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "/hr-system/p-1/overview", route.Path)
}
