package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesign/internal/domain"
)

func newMockRepo(t *testing.T) (Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return Repo{DB: db}, mock
}

func TestUpdateStepStatusIsConditional(t *testing.T) {
	r, mock := newMockRepo(t)
	ctx := context.Background()
	query := regexp.QuoteMeta(`UPDATE projects SET diagnosis_status=?, updated_at=? WHERE id=? AND diagnosis_status=? AND status='active'`)

	mock.ExpectExec(query).WithArgs("submitted", "now", "p1", "in_progress").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, r.UpdateStepStatus(ctx, nil, "p1", "diagnosis", "in_progress", "submitted", "now"))

	mock.ExpectExec(query).WithArgs("submitted", "now", "p1", "in_progress").WillReturnResult(sqlmock.NewResult(0, 0))
	err := r.UpdateStepStatus(ctx, nil, "p1", "diagnosis", "in_progress", "submitted", "now")
	assert.True(t, errors.Is(err, ErrConflict))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStepStatusRejectsUnknownStep(t *testing.T) {
	r, mock := newMockRepo(t)
	err := r.UpdateStepStatus(context.Background(), nil, "p1", "payroll", "in_progress", "submitted", "now")
	assert.ErrorContains(t, err, "unknown step")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeKPITokenBound(t *testing.T) {
	r, mock := newMockRepo(t)
	query := regexp.QuoteMeta(`UPDATE kpi_review_tokens SET uses=uses+1 WHERE id=? AND uses<max_uses`)
	mock.ExpectExec(query).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.ConsumeKPIToken(context.Background(), nil, "t1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxAttemptFailedReturnsStatus(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE outbox SET`)).
		WithArgs("smtp down", 5, "m1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("failed"))

	status, err := r.MarkOutboxAttemptFailed(context.Background(), "m1", "smtp down", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.OutboxFailed, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmailNormalizes(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+userColumns+` FROM users WHERE email=?`)).
		WithArgs("ceo@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "email", "password_hash", "role", "appearance", "created_at"}).
			AddRow("u1", "c1", "Dana", "ceo@example.com", "hash", "ceo", "dark", "2024-01-01T00:00:00Z"))

	u, err := r.GetUserByEmail(context.Background(), nil, "  CEO@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	require.NotNil(t, u.CompanyID)
	assert.Equal(t, "c1", *u.CompanyID)
	assert.Equal(t, "dark", u.Appearance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	r, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id=?`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := r.GetUser(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteCatalogRowGuardsTable(t *testing.T) {
	r, mock := newMockRepo(t)
	ctx := context.Background()
	assert.Error(t, r.DeleteCatalogRow(ctx, nil, "users", "u1"))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM industries WHERE id=?`)).WithArgs("x").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, r.DeleteCatalogRow(ctx, nil, TableIndustries, "x"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRespondInvitationOnlyOnce(t *testing.T) {
	r, mock := newMockRepo(t)
	query := regexp.QuoteMeta(`UPDATE invitations SET status=?, responded_at=? WHERE id=? AND status='pending'`)
	mock.ExpectExec(query).WithArgs("accepted", "now", "i1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("rejected", "now", "i1").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, r.RespondInvitation(ctx, nil, "i1", "accepted", "now"))
	assert.ErrorIs(t, r.RespondInvitation(ctx, nil, "i1", "rejected", "now"), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
