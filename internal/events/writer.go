package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event types appended by the engine.
const (
	ProjectCreated      = "project.created"
	StepStarted         = "step.started"
	StepDataSaved       = "step.data_saved"
	StepSubmitted       = "step.submitted"
	StepApproved        = "step.approved"
	ProjectLocked       = "project.locked"
	SurveyProgressSaved = "survey.progress_saved"
	SurveySubmitted     = "survey.submitted"
	InvitationSent      = "invitation.sent"
	InvitationAccepted  = "invitation.accepted"
	InvitationRejected  = "invitation.rejected"
	RoleRequested       = "role_request.created"
	RoleRequestApproved = "role_request.approved"
	RoleRequestRejected = "role_request.rejected"
	KPITokenCreated     = "kpi_token.created"
	KPIReviewSubmitted  = "kpi_review.submitted"
	CatalogChanged      = "catalog.changed"
	UserRegistered      = "user.registered"
	PasswordReset       = "user.password_reset"
	APIKeyCreated       = "api_key.created"
)

// Entity kinds recorded on events.
const (
	KindProject    = "project"
	KindStep       = "step"
	KindSurvey     = "survey"
	KindInvitation = "invitation"
	KindRole       = "role_request"
	KindKPIToken   = "kpi_token"
	KindCatalog    = "catalog"
	KindUser       = "user"
	KindAPIKey     = "api_key"
)

// SystemActor is recorded when no user triggered the change, e.g. public token endpoints.
const SystemActor = "system"

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event inside the caller's transaction.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	if tx == nil {
		return errors.New("events: transaction required")
	}
	if w.Now == nil {
		w.Now = time.Now
	}
	if actorID == "" {
		actorID = SystemActor
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(projectID), entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
