package repo

import (
	"context"
	"database/sql"

	"hrdesign/internal/domain"
)

const roleRequestColumns = `id,user_id,company_id,status,note,decided_by,decided_at,created_at`

func scanRoleRequest(row interface{ Scan(...any) error }) (domain.RoleRequest, error) {
	var rr domain.RoleRequest
	var by, at sql.NullString
	if err := row.Scan(&rr.ID, &rr.UserID, &rr.CompanyID, &rr.Status, &rr.Note, &by, &at, &rr.CreatedAt); err != nil {
		return rr, err
	}
	rr.DecidedBy = stringPtr(by)
	rr.DecidedAt = stringPtr(at)
	return rr, nil
}

func (r Repo) InsertRoleRequest(ctx context.Context, tx *sql.Tx, rr domain.RoleRequest) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO role_requests(`+roleRequestColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		rr.ID, rr.UserID, rr.CompanyID, rr.Status, rr.Note, nullableStringPtr(rr.DecidedBy), nullableStringPtr(rr.DecidedAt), rr.CreatedAt)
	return err
}

func (r Repo) GetRoleRequest(ctx context.Context, tx *sql.Tx, id string) (domain.RoleRequest, error) {
	rr, err := scanRoleRequest(r.q(tx).QueryRowContext(ctx, `SELECT `+roleRequestColumns+` FROM role_requests WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return rr, ErrNotFound
	}
	return rr, err
}

// HasPendingRoleRequest reports whether the user already waits on a decision.
func (r Repo) HasPendingRoleRequest(ctx context.Context, tx *sql.Tx, userID string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM role_requests WHERE user_id=? AND status='pending'`, userID).Scan(&n)
	return n > 0, err
}

// DecideRoleRequest closes a pending request. Deciding twice yields ErrConflict.
func (r Repo) DecideRoleRequest(ctx context.Context, tx *sql.Tx, id, status, deciderID, note, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE role_requests SET status=?, decided_by=?, decided_at=?, note=CASE WHEN ?='' THEN note ELSE ? END
WHERE id=? AND status='pending'`, status, deciderID, now, note, note, id)
	return affectedOrConflict(res, err)
}

func (r Repo) ListRoleRequests(ctx context.Context, status string) ([]domain.RoleRequest, error) {
	query := `SELECT ` + roleRequestColumns + ` FROM role_requests`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RoleRequest
	for rows.Next() {
		rr, err := scanRoleRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rr)
	}
	return res, rows.Err()
}
