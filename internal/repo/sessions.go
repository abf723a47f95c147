package repo

import (
	"context"
	"database/sql"

	"hrdesign/internal/domain"
)

func (r Repo) InsertSession(ctx context.Context, s domain.Session) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sessions(id,user_id,created_at,expires_at,revoked_at) VALUES (?,?,?,?,?)`,
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt, nullableStringPtr(s.RevokedAt))
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	var revoked sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,user_id,created_at,expires_at,revoked_at FROM sessions WHERE id=?`, id).
		Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &revoked)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.RevokedAt = stringPtr(revoked)
	return s, err
}

func (r Repo) RevokeSession(ctx context.Context, id, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE sessions SET revoked_at=? WHERE id=? AND revoked_at IS NULL`, now, id)
	return affectedOrNotFound(res, err)
}

// RevokeUserSessions ends every open session of a user, used after a password reset.
func (r Repo) RevokeUserSessions(ctx context.Context, tx *sql.Tx, userID, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE sessions SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL`, now, userID)
	return err
}

func (r Repo) PurgeSessions(ctx context.Context, before string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at<? OR revoked_at IS NOT NULL`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) InsertOTP(ctx context.Context, tx *sql.Tx, o domain.PasswordResetOTP) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO password_reset_otps(id,email,code_hash,expires_at,used_at) VALUES (?,?,?,?,?)`,
		o.ID, o.Email, o.CodeHash, o.ExpiresAt, nullableStringPtr(o.UsedAt))
	return err
}

// ActiveOTPs lists unused codes for an email that expire after now, newest first.
func (r Repo) ActiveOTPs(ctx context.Context, tx *sql.Tx, email, now string) ([]domain.PasswordResetOTP, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,email,code_hash,expires_at,used_at,attempts FROM password_reset_otps
WHERE email=? AND used_at IS NULL AND expires_at>? ORDER BY expires_at DESC`, email, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PasswordResetOTP
	for rows.Next() {
		var o domain.PasswordResetOTP
		var used sql.NullString
		if err := rows.Scan(&o.ID, &o.Email, &o.CodeHash, &o.ExpiresAt, &used, &o.Attempts); err != nil {
			return nil, err
		}
		o.UsedAt = stringPtr(used)
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) UseOTP(ctx context.Context, tx *sql.Tx, id, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE password_reset_otps SET used_at=? WHERE id=? AND used_at IS NULL`, now, id)
	return affectedOrConflict(res, err)
}

// FailOTPs counts a wrong code against every live code of an email
// and burns the ones that reached max failures.
func (r Repo) FailOTPs(ctx context.Context, tx *sql.Tx, email, now string, max int) (int64, error) {
	if _, err := r.q(tx).ExecContext(ctx, `UPDATE password_reset_otps SET attempts=attempts+1
WHERE email=? AND used_at IS NULL AND expires_at>?`, email, now); err != nil {
		return 0, err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE password_reset_otps SET used_at=?
WHERE email=? AND used_at IS NULL AND attempts>=?`, now, email, max)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeOTPs removes used codes and codes that expired before the cutoff.
func (r Repo) PurgeOTPs(ctx context.Context, before string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM password_reset_otps WHERE used_at IS NOT NULL OR expires_at<?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
