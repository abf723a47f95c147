package repo

import (
	"context"
	"database/sql"

	"hrdesign/internal/domain"
)

const invitationColumns = `id,token,company_id,project_id,email,role,status,invited_by,created_at,expires_at,responded_at`

func scanInvitation(row interface{ Scan(...any) error }) (domain.Invitation, error) {
	var inv domain.Invitation
	var project, responded sql.NullString
	err := row.Scan(&inv.ID, &inv.Token, &inv.CompanyID, &project, &inv.Email, &inv.Role, &inv.Status,
		&inv.InvitedBy, &inv.CreatedAt, &inv.ExpiresAt, &responded)
	if err != nil {
		return inv, err
	}
	inv.ProjectID = stringPtr(project)
	inv.RespondedAt = stringPtr(responded)
	return inv, nil
}

func (r Repo) InsertInvitation(ctx context.Context, tx *sql.Tx, inv domain.Invitation) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO invitations(`+invitationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		inv.ID, inv.Token, inv.CompanyID, nullableStringPtr(inv.ProjectID), inv.Email, inv.Role, inv.Status,
		inv.InvitedBy, inv.CreatedAt, inv.ExpiresAt, nullableStringPtr(inv.RespondedAt))
	return err
}

func (r Repo) GetInvitationByToken(ctx context.Context, tx *sql.Tx, token string) (domain.Invitation, error) {
	inv, err := scanInvitation(r.q(tx).QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE token=?`, token))
	if err == sql.ErrNoRows {
		return inv, ErrNotFound
	}
	return inv, err
}

// RespondInvitation closes a pending invitation. A second response yields ErrConflict.
func (r Repo) RespondInvitation(ctx context.Context, tx *sql.Tx, id, status, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE invitations SET status=?, responded_at=? WHERE id=? AND status='pending'`, status, now, id)
	return affectedOrConflict(res, err)
}

type InvitationFilters struct {
	CompanyID string
	Status    string
	// ExpiredBefore keeps only rows whose expires_at is earlier than this RFC3339 time.
	ExpiredBefore string
}

func (r Repo) ListInvitations(ctx context.Context, f InvitationFilters) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE 1=1`
	var args []any
	if f.CompanyID != "" {
		query += ` AND company_id=?`
		args = append(args, f.CompanyID)
	}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	if f.ExpiredBefore != "" {
		query += ` AND expires_at<?`
		args = append(args, f.ExpiredBefore)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

func (r Repo) CountPendingInvitations(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM invitations WHERE status='pending'`).Scan(&n)
	return n, err
}
