package repo

import (
	"context"
	"database/sql"

	"hrdesign/internal/domain"
)

func (r Repo) GetSurveyResponse(ctx context.Context, tx *sql.Tx, projectID, userID string) (domain.SurveyResponse, error) {
	var s domain.SurveyResponse
	var agreed int
	var submitted sql.NullString
	err := r.q(tx).QueryRowContext(ctx, `SELECT project_id,user_id,current_section,has_agreed,payload_json,updated_at,submitted_at
FROM survey_responses WHERE project_id=? AND user_id=?`, projectID, userID).
		Scan(&s.ProjectID, &s.UserID, &s.CurrentSection, &agreed, &s.PayloadJSON, &s.UpdatedAt, &submitted)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.HasAgreed = agreed == 1
	s.SubmittedAt = stringPtr(submitted)
	return s, err
}

// LatestSubmittedSurvey returns the most recent submitted response for a project, from any CEO.
func (r Repo) LatestSubmittedSurvey(ctx context.Context, projectID string) (domain.SurveyResponse, error) {
	var s domain.SurveyResponse
	var agreed int
	var submitted sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT project_id,user_id,current_section,has_agreed,payload_json,updated_at,submitted_at
FROM survey_responses WHERE project_id=? AND submitted_at IS NOT NULL ORDER BY submitted_at DESC LIMIT 1`, projectID).
		Scan(&s.ProjectID, &s.UserID, &s.CurrentSection, &agreed, &s.PayloadJSON, &s.UpdatedAt, &submitted)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.HasAgreed = agreed == 1
	s.SubmittedAt = stringPtr(submitted)
	return s, err
}

// UpsertSurveyResponse writes the draft; submitted_at is kept unless the new value sets it.
func (r Repo) UpsertSurveyResponse(ctx context.Context, tx *sql.Tx, s domain.SurveyResponse) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO survey_responses(project_id,user_id,current_section,has_agreed,payload_json,updated_at,submitted_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(project_id,user_id) DO UPDATE SET
  current_section=excluded.current_section,
  has_agreed=excluded.has_agreed,
  payload_json=excluded.payload_json,
  updated_at=excluded.updated_at,
  submitted_at=COALESCE(excluded.submitted_at, survey_responses.submitted_at)`,
		s.ProjectID, s.UserID, s.CurrentSection, boolInt(s.HasAgreed), s.PayloadJSON, s.UpdatedAt, nullableStringPtr(s.SubmittedAt))
	return err
}
