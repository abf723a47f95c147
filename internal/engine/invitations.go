package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrdesign/internal/domain"
	"hrdesign/internal/engine/auth"
	"hrdesign/internal/events"
	"hrdesign/internal/notify"
	"hrdesign/internal/repo"
)

type InviteOptions struct {
	CompanyID string
	ProjectID string
	Email     string
	ActorID   string
}

type AcceptOptions struct {
	Name     string
	Password string
}

// InvitationView is what the accept page renders.
type InvitationView struct {
	Invitation  domain.Invitation `json:"invitation"`
	CompanyName string            `json:"company_name"`
	Expired     bool              `json:"expired"`
}

const defaultInvitationTTL = 7 * 24 * time.Hour

func (e Engine) invitationTTL() time.Duration {
	if e.Config == nil {
		return defaultInvitationTTL
	}
	if ttl := e.Config.InvitationTTL(); ttl > 0 {
		return ttl
	}
	return defaultInvitationTTL
}

// InviteCEO creates a single-use invitation and mails the accept and decline links.
func (e Engine) InviteCEO(ctx context.Context, opts InviteOptions) (domain.Invitation, error) {
	var fe FieldErrors
	if strings.TrimSpace(opts.CompanyID) == "" {
		fe.add("company_id", "required")
	}
	if !validEmail(opts.Email) {
		fe.add("email", "must be a valid email address")
	}
	if err := fe.err(); err != nil {
		return domain.Invitation{}, err
	}
	token, err := randomToken(32)
	if err != nil {
		return domain.Invitation{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invitation{}, err
	}
	defer tx.Rollback()

	company, err := e.Repo.GetCompany(ctx, tx, opts.CompanyID)
	if err != nil {
		return domain.Invitation{}, err
	}
	var projectID *string
	if opts.ProjectID != "" {
		p, err := e.Repo.GetProject(ctx, tx, opts.ProjectID)
		if err != nil {
			return domain.Invitation{}, err
		}
		if p.CompanyID != company.ID {
			return domain.Invitation{}, FieldError{Field: "project_id", Message: "project belongs to another company"}
		}
		projectID = &p.ID
	}
	now := e.now().UTC()
	inv := domain.Invitation{
		ID:        uuid.NewString(),
		Token:     token,
		CompanyID: company.ID,
		ProjectID: projectID,
		Email:     strings.ToLower(strings.TrimSpace(opts.Email)),
		Role:      domain.RoleCEO,
		Status:    domain.InvitationPending,
		InvitedBy: opts.ActorID,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(e.invitationTTL()).Format(time.RFC3339),
	}
	if err := e.Repo.InsertInvitation(ctx, tx, inv); err != nil {
		return domain.Invitation{}, err
	}
	if err := e.append(ctx, tx, events.InvitationSent, opts.ProjectID, events.KindInvitation, inv.ID, opts.ActorID, events.EventPayload{"email": inv.Email, "expires_at": inv.ExpiresAt}); err != nil {
		return domain.Invitation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Invitation{}, err
	}
	e.sendQueued(ctx, []domain.User{{Email: inv.Email}}, notify.InvitationSent{
		CompanyName: company.Name,
		InviterName: e.userName(ctx, opts.ActorID),
		Token:       inv.Token,
		ExpiresAt:   inv.ExpiresAt,
	})
	return inv, nil
}

func (e Engine) GetInvitation(ctx context.Context, token string) (InvitationView, error) {
	inv, err := e.Repo.GetInvitationByToken(ctx, nil, token)
	if err != nil {
		return InvitationView{}, err
	}
	return InvitationView{
		Invitation:  inv,
		CompanyName: e.companyName(ctx, inv.CompanyID),
		Expired:     e.expired(inv.ExpiresAt),
	}, nil
}

func (e Engine) expired(expiresAt string) bool {
	t, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return true
	}
	return !e.now().Before(t)
}

// openInvitation loads a token that can still be answered.
func (e Engine) openInvitation(ctx context.Context, tx *sql.Tx, token string) (domain.Invitation, error) {
	inv, err := e.Repo.GetInvitationByToken(ctx, tx, token)
	if err != nil {
		return inv, err
	}
	if inv.Status != domain.InvitationPending {
		return inv, ErrInvitationUsed
	}
	if e.expired(inv.ExpiresAt) {
		return inv, ErrInvitationExpired
	}
	return inv, nil
}

func (e Engine) respond(ctx context.Context, tx *sql.Tx, inv domain.Invitation, status string) error {
	if err := e.Repo.RespondInvitation(ctx, tx, inv.ID, status, e.stamp()); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return ErrInvitationUsed
		}
		return err
	}
	return nil
}

// AcceptInvitation makes the invitee the company's CEO, creating the account when needed.
func (e Engine) AcceptInvitation(ctx context.Context, token string, opts AcceptOptions) (domain.User, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	inv, err := e.openInvitation(ctx, tx, token)
	if err != nil {
		return domain.User{}, err
	}
	user, err := e.Repo.GetUserByEmail(ctx, tx, inv.Email)
	switch {
	case err == nil:
		if user.CompanyID != nil && *user.CompanyID != inv.CompanyID {
			return domain.User{}, ErrOtherCompany
		}
		if err := e.Repo.SetUserRole(ctx, tx, user.ID, inv.CompanyID, domain.RoleCEO); err != nil {
			return domain.User{}, err
		}
		user.Role = domain.RoleCEO
		user.CompanyID = &inv.CompanyID
	case errors.Is(err, repo.ErrNotFound):
		var fe FieldErrors
		if strings.TrimSpace(opts.Name) == "" {
			fe.add("name", "required")
		}
		hash, herr := auth.HashPassword(opts.Password)
		if herr != nil {
			fe.add("password", herr.Error())
		}
		if err := fe.err(); err != nil {
			return domain.User{}, err
		}
		companyID := inv.CompanyID
		user = domain.User{
			ID:           uuid.NewString(),
			CompanyID:    &companyID,
			Name:         strings.TrimSpace(opts.Name),
			Email:        inv.Email,
			PasswordHash: hash,
			Role:         domain.RoleCEO,
			Appearance:   "system",
			CreatedAt:    e.stamp(),
		}
		if err := e.Repo.InsertUser(ctx, tx, user); err != nil {
			return domain.User{}, err
		}
	default:
		return domain.User{}, err
	}
	if err := e.respond(ctx, tx, inv, domain.InvitationAccepted); err != nil {
		return domain.User{}, err
	}
	if err := e.append(ctx, tx, events.InvitationAccepted, deref(inv.ProjectID), events.KindInvitation, inv.ID, user.ID, events.EventPayload{"email": inv.Email}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// RejectInvitation declines a token and tells the inviter.
func (e Engine) RejectInvitation(ctx context.Context, token string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	inv, err := e.openInvitation(ctx, tx, token)
	if err != nil {
		return err
	}
	if err := e.respond(ctx, tx, inv, domain.InvitationRejected); err != nil {
		return err
	}
	if err := e.append(ctx, tx, events.InvitationRejected, deref(inv.ProjectID), events.KindInvitation, inv.ID, events.SystemActor, events.EventPayload{"email": inv.Email}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	inviter, err := e.Repo.GetUser(ctx, nil, inv.InvitedBy)
	if err != nil {
		e.log().WarnContext(ctx, "inviter not found", "invitation", inv.ID, "error", err)
		return nil
	}
	e.sendQueued(ctx, []domain.User{inviter}, notify.InvitationRejected{
		CompanyName:  e.companyName(ctx, inv.CompanyID),
		InviteeEmail: inv.Email,
	})
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
