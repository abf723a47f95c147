package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"hrdesign/internal/domain"
	"hrdesign/internal/events"
	"hrdesign/internal/notify"
	"hrdesign/internal/repo"
)

// RequestCEORole queues a user's request to act as CEO of a company.
func (e Engine) RequestCEORole(ctx context.Context, userID, companyID string) (domain.RoleRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RoleRequest{}, err
	}
	defer tx.Rollback()

	user, err := e.Repo.GetUser(ctx, tx, userID)
	if err != nil {
		return domain.RoleRequest{}, err
	}
	if user.Role == domain.RoleCEO {
		return domain.RoleRequest{}, ErrAlreadyCEO
	}
	if strings.TrimSpace(companyID) == "" {
		companyID = deref(user.CompanyID)
	}
	if companyID == "" {
		return domain.RoleRequest{}, FieldError{Field: "company_id", Message: "required"}
	}
	if _, err := e.Repo.GetCompany(ctx, tx, companyID); err != nil {
		return domain.RoleRequest{}, err
	}
	pending, err := e.Repo.HasPendingRoleRequest(ctx, tx, userID)
	if err != nil {
		return domain.RoleRequest{}, err
	}
	if pending {
		return domain.RoleRequest{}, ErrRoleRequestPending
	}
	rr := domain.RoleRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		CompanyID: companyID,
		Status:    domain.RoleRequestPending,
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertRoleRequest(ctx, tx, rr); err != nil {
		return domain.RoleRequest{}, err
	}
	if err := e.append(ctx, tx, events.RoleRequested, "", events.KindRole, rr.ID, userID, events.EventPayload{"company_id": companyID}); err != nil {
		return domain.RoleRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RoleRequest{}, err
	}
	return rr, nil
}

func (e Engine) decideRole(ctx context.Context, id, adminID, status, note string) (domain.RoleRequest, domain.User, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RoleRequest{}, domain.User{}, err
	}
	defer tx.Rollback()

	rr, err := e.Repo.GetRoleRequest(ctx, tx, id)
	if err != nil {
		return rr, domain.User{}, err
	}
	now := e.stamp()
	if err := e.Repo.DecideRoleRequest(ctx, tx, id, status, adminID, note, now); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return rr, domain.User{}, ErrRoleRequestDecided
		}
		return rr, domain.User{}, err
	}
	user, err := e.Repo.GetUser(ctx, tx, rr.UserID)
	if err != nil {
		return rr, domain.User{}, err
	}
	evt := events.RoleRequestRejected
	if status == domain.RoleRequestApproved {
		evt = events.RoleRequestApproved
		if err := e.Repo.SetUserRole(ctx, tx, user.ID, rr.CompanyID, domain.RoleCEO); err != nil {
			return rr, user, err
		}
		user.Role = domain.RoleCEO
		user.CompanyID = &rr.CompanyID
	}
	if err := e.append(ctx, tx, evt, "", events.KindRole, rr.ID, adminID, events.EventPayload{"user_id": rr.UserID, "note": note}); err != nil {
		return rr, user, err
	}
	decided, err := e.Repo.GetRoleRequest(ctx, tx, id)
	if err != nil {
		return rr, user, err
	}
	if err := tx.Commit(); err != nil {
		return rr, user, err
	}
	return decided, user, nil
}

// ApproveCEORole grants the ceo role and mails a login link.
func (e Engine) ApproveCEORole(ctx context.Context, id, adminID string) (domain.RoleRequest, error) {
	rr, user, err := e.decideRole(ctx, id, adminID, domain.RoleRequestApproved, "")
	if err != nil {
		return rr, err
	}
	e.sendQueued(ctx, []domain.User{user}, notify.CEORoleApproved{CompanyName: e.companyName(ctx, rr.CompanyID)})
	return rr, nil
}

func (e Engine) RejectCEORole(ctx context.Context, id, adminID, note string) (domain.RoleRequest, error) {
	rr, _, err := e.decideRole(ctx, id, adminID, domain.RoleRequestRejected, strings.TrimSpace(note))
	return rr, err
}

func (e Engine) ListRoleRequests(ctx context.Context, status string) ([]domain.RoleRequest, error) {
	return e.Repo.ListRoleRequests(ctx, status)
}
