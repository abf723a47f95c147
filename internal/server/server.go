package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hrdesign/internal/domain"
	"hrdesign/internal/engine"
	"hrdesign/internal/engine/auth"
	"hrdesign/internal/repo"
	"hrdesign/internal/routes"
	"hrdesign/internal/session"
	"hrdesign/internal/survey"
	"hrdesign/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Sessions session.Manager
	BasePath string
	// CORSOrigins defaults to the server.cors_origins list of the engine config.
	CORSOrigins []string
	// RateLimit guards the public token endpoints. Zero values fall back to the engine config.
	RateLimit RateLimit
	Logger    *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"step_locked"`
	Message string         `json:"message" example:"step is locked until the previous step is completed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the HR Design API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" && cfg.Engine.Config != nil {
		basePath = cfg.Engine.Config.Server.BasePath
	}
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = logger
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema validation of the request is a bad request; 422 is kept for domain field errors.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 && cfg.Engine.Config != nil {
		origins = cfg.Engine.Config.Server.CORSOrigins
	}
	limits := cfg.RateLimit
	if limits.RPS == 0 && cfg.Engine.Config != nil {
		limits = RateLimit{RPS: cfg.Engine.Config.RateLimit.RPS, Burst: cfg.Engine.Config.RateLimit.Burst}
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	if len(origins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newRateLimitMiddleware(basePath, limits))
	router.Use(newAuthMiddleware(basePath, cfg.Sessions))
	hcfg := huma.DefaultConfig("HR Design API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	e := cfg.Engine
	registerDocs(router, basePath)
	registerHealth(group, e)
	registerAccounts(group, e, cfg.Sessions)
	registerProjects(group, e)
	registerSteps(group, e)
	registerEvents(group, e)
	registerSurvey(group, e)
	registerInvitations(group, e, cfg.Sessions)
	registerRoleRequests(group, e)
	registerKPI(group, e)
	registerCatalogAdmin(group, e)
	registerOutboxAdmin(group, e)
	registerDashboards(group, e)
	registerRoutes(group, e)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func fieldErrorDetails(fields map[string]string) map[string]any {
	return map[string]any{"errors": fields}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	var fields engine.FieldErrors
	if errors.As(err, &fields) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", "validation failed", fieldErrorDetails(fields.Map()))
	}
	var field engine.FieldError
	if errors.As(err, &field) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), fieldErrorDetails(map[string]string{field.Field: field.Message}))
	}
	var sv *survey.ValidationError
	if errors.As(err, &sv) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", "survey validation failed", fieldErrorDetails(sv.Fields))
	}
	var it workflow.InvalidTransitionError
	if errors.As(err, &it) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"kind": it.Kind, "from": it.From, "to": it.To})
	}
	var mp routes.MissingParamError
	if errors.As(err, &mp) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"param": mp.Param})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", msg, nil)
	case errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrExpired),
		errors.Is(err, session.ErrRevoked):
		return newAPIError(http.StatusUnauthorized, "unauthorized", msg, nil)
	case errors.Is(err, engine.ErrOtherCompany):
		return newAPIError(http.StatusForbidden, "forbidden", msg, nil)
	case errors.Is(err, engine.ErrProjectLocked):
		return newAPIError(http.StatusConflict, "project_locked", msg, nil)
	case errors.Is(err, engine.ErrStepLocked):
		return newAPIError(http.StatusConflict, "step_locked", msg, nil)
	case errors.Is(err, engine.ErrStepNotEditable),
		errors.Is(err, engine.ErrStaleStatus),
		errors.Is(err, engine.ErrNotAllCompleted),
		errors.Is(err, engine.ErrPhilosophySubmitted),
		errors.Is(err, engine.ErrInvitationUsed),
		errors.Is(err, engine.ErrConfirmationRequired),
		errors.Is(err, engine.ErrRoleRequestPending),
		errors.Is(err, engine.ErrRoleRequestDecided),
		errors.Is(err, engine.ErrAlreadyCEO),
		errors.Is(err, engine.ErrEmailTaken),
		errors.Is(err, survey.ErrConsentRequired),
		errors.Is(err, survey.ErrNotAtFinalSection),
		errors.Is(err, repo.ErrConflict),
		errors.Is(err, repo.ErrDuplicate):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case errors.Is(err, engine.ErrInvitationExpired),
		errors.Is(err, engine.ErrTokenExpired),
		errors.Is(err, engine.ErrTokenExhausted):
		return newAPIError(http.StatusGone, "gone", msg, nil)
	case errors.Is(err, engine.ErrInvalidCode):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, fieldErrorDetails(map[string]string{"code": msg}))
	case errors.Is(err, survey.ErrIndexOutOfRange),
		errors.Is(err, routes.ErrUnknownRoute):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusGone:
		return "gone"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func requireSession(ctx context.Context) (session.Session, huma.StatusError) {
	s, ok := session.From(ctx)
	if !ok {
		return session.Session{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	return s, nil
}

// requirePermission resolves the caller and checks its role against the rbac table.
func requirePermission(ctx context.Context, e engine.Engine, perm string) (session.Session, error) {
	s, authErr := requireSession(ctx)
	if authErr != nil {
		return s, authErr
	}
	if err := e.Auth.Require(s.Role(), perm); err != nil {
		return s, err
	}
	return s, nil
}

// crossCompany reports whether a role may act on any company.
func crossCompany(role string) bool {
	return role == domain.RoleAdmin || role == domain.RoleConsultant
}

func requireCompany(s session.Session, companyID string) error {
	if crossCompany(s.Role()) {
		return nil
	}
	if s.CompanyID() == "" || s.CompanyID() != companyID {
		return engine.ErrOtherCompany
	}
	return nil
}

// projectAccess checks perm and that the caller may see the project's company.
func projectAccess(ctx context.Context, e engine.Engine, projectID, perm string) (session.Session, domain.Project, error) {
	s, err := requirePermission(ctx, e, perm)
	if err != nil {
		return s, domain.Project{}, err
	}
	p, err := e.GetProject(ctx, projectID)
	if err != nil {
		return s, domain.Project{}, err
	}
	if err := requireCompany(s, p.CompanyID); err != nil {
		return s, domain.Project{}, err
	}
	return s, p, nil
}

func logger(e engine.Engine) *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// notificationError logs a mail that failed after commit and returns the text for the response.
func notificationError(ctx context.Context, e engine.Engine, err error) string {
	if err == nil {
		return ""
	}
	logger(e).WarnContext(ctx, "notification failed after commit", "error", err)
	return err.Error()
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if isPublicPath(basePath, route) {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>HR Design API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		status := "ok"
		if e.DB != nil {
			if err := e.DB.PingContext(ctx); err != nil {
				status = "degraded"
			}
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": status}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func requestFrom(ctx context.Context) *http.Request {
	req, _ := ctx.Value(requestKey{}).(*http.Request)
	return req
}

// rawField returns one top-level member of the request body, re-encoded.
func rawField(ctx context.Context, name string) json.RawMessage {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes(ctx), &outer); err != nil {
		return nil
	}
	return outer[name]
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
