package repo

import (
	"context"
	"database/sql"

	"hrdesign/internal/domain"
)

const kpiTokenColumns = `id,token,project_id,reviewer_name,reviewer_email,expires_on,max_uses,uses,created_by,created_at`

func scanKPIToken(row interface{ Scan(...any) error }) (domain.KPIReviewToken, error) {
	var t domain.KPIReviewToken
	err := row.Scan(&t.ID, &t.Token, &t.ProjectID, &t.ReviewerName, &t.ReviewerEmail, &t.ExpiresOn, &t.MaxUses, &t.Uses, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

func (r Repo) InsertKPIToken(ctx context.Context, tx *sql.Tx, t domain.KPIReviewToken) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO kpi_review_tokens(`+kpiTokenColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Token, t.ProjectID, t.ReviewerName, t.ReviewerEmail, t.ExpiresOn, t.MaxUses, t.Uses, t.CreatedBy, t.CreatedAt)
	return err
}

func (r Repo) GetKPIToken(ctx context.Context, tx *sql.Tx, token string) (domain.KPIReviewToken, error) {
	t, err := scanKPIToken(r.q(tx).QueryRowContext(ctx, `SELECT `+kpiTokenColumns+` FROM kpi_review_tokens WHERE token=?`, token))
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

// ConsumeKPIToken spends one use. ErrConflict means the token was already exhausted.
func (r Repo) ConsumeKPIToken(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE kpi_review_tokens SET uses=uses+1 WHERE id=? AND uses<max_uses`, id)
	return affectedOrConflict(res, err)
}

func (r Repo) InsertKPIReview(ctx context.Context, tx *sql.Tx, rv domain.KPIReview) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO kpi_reviews(id,token_id,project_id,payload_json,submitted_at) VALUES (?,?,?,?,?)`,
		rv.ID, rv.TokenID, rv.ProjectID, rv.PayloadJSON, rv.SubmittedAt)
	return err
}

func (r Repo) ListKPIReviews(ctx context.Context, projectID string) ([]domain.KPIReview, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,token_id,project_id,payload_json,submitted_at FROM kpi_reviews WHERE project_id=? ORDER BY submitted_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.KPIReview
	for rows.Next() {
		var rv domain.KPIReview
		if err := rows.Scan(&rv.ID, &rv.TokenID, &rv.ProjectID, &rv.PayloadJSON, &rv.SubmittedAt); err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

// ListExpiredKPITokens returns tokens whose last valid day is before the given date (YYYY-MM-DD).
func (r Repo) ListExpiredKPITokens(ctx context.Context, before string) ([]domain.KPIReviewToken, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+kpiTokenColumns+` FROM kpi_review_tokens WHERE expires_on<? ORDER BY expires_on`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.KPIReviewToken
	for rows.Next() {
		t, err := scanKPIToken(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
