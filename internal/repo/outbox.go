package repo

import (
	"context"
	"database/sql"

	"hrdesign/internal/domain"
)

const outboxColumns = `id,event,recipient,payload_json,status,attempts,last_error,created_at,sent_at`

func scanOutbox(row interface{ Scan(...any) error }) (domain.OutboxMessage, error) {
	var m domain.OutboxMessage
	var sent sql.NullString
	if err := row.Scan(&m.ID, &m.Event, &m.Recipient, &m.PayloadJSON, &m.Status, &m.Attempts, &m.LastError, &m.CreatedAt, &sent); err != nil {
		return m, err
	}
	m.SentAt = stringPtr(sent)
	return m, nil
}

func (r Repo) InsertOutbox(ctx context.Context, tx *sql.Tx, m domain.OutboxMessage) error {
	if m.Status == "" {
		m.Status = domain.OutboxPending
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO outbox(`+outboxColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.Event, m.Recipient, m.PayloadJSON, m.Status, m.Attempts, m.LastError, m.CreatedAt, nullableStringPtr(m.SentAt))
	return err
}

func (r Repo) GetOutbox(ctx context.Context, id string) (domain.OutboxMessage, error) {
	m, err := scanOutbox(r.DB.QueryRowContext(ctx, `SELECT `+outboxColumns+` FROM outbox WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

// ListOutbox returns messages oldest first; status narrows when set.
func (r Repo) ListOutbox(ctx context.Context, status string, limit int) ([]domain.OutboxMessage, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OutboxMessage
	for rows.Next() {
		m, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ClaimOutbox flips a pending message to processing. ErrConflict means another worker took it.
func (r Repo) ClaimOutbox(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE outbox SET status='processing' WHERE id=? AND status='pending'`, id)
	return affectedOrConflict(res, err)
}

func (r Repo) MarkOutboxSent(ctx context.Context, id, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE outbox SET status='sent', attempts=attempts+1, last_error='', sent_at=? WHERE id=?`, now, id)
	return affectedOrNotFound(res, err)
}

// MarkOutboxAttemptFailed records a failed delivery and returns the row to pending,
// or to failed once maxAttempts is reached.
func (r Repo) MarkOutboxAttemptFailed(ctx context.Context, id, lastError string, maxAttempts int) (string, error) {
	var status string
	err := r.DB.QueryRowContext(ctx, `UPDATE outbox SET
  attempts=attempts+1,
  last_error=?,
  status=CASE WHEN attempts+1>=? THEN 'failed' ELSE 'pending' END
WHERE id=?
RETURNING status`, lastError, maxAttempts, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return status, err
}

// ReleaseProcessing returns rows orphaned in processing, e.g. after a crash, to pending.
func (r Repo) ReleaseProcessing(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE outbox SET status='pending' WHERE status='processing'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RetryFailedOutbox puts failed rows back in the queue with a fresh attempt budget.
func (r Repo) RetryFailedOutbox(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE outbox SET status='pending', attempts=0 WHERE status='failed'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeSentOutbox deletes delivered rows sent before the cutoff.
func (r Repo) PurgeSentOutbox(ctx context.Context, before string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM outbox WHERE status='sent' AND sent_at<?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
