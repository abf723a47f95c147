package engine

import (
	"context"
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

type RegisterOptions struct {
	Name          string
	Email         string
	Password      string
	CompanyName   string
	IndustryID    string
	SubcategoryID string
}

type UserOptions struct {
	Name      string
	Email     string
	Password  string
	Role      string
	CompanyID string
	ActorID   string
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (e Engine) newUser(opts UserOptions, fe *FieldErrors) domain.User {
	if strings.TrimSpace(opts.Name) == "" {
		fe.add("name", "required")
	}
	if !validEmail(opts.Email) {
		fe.add("email", "must be a valid email address")
	}
	if !domain.ValidRole(opts.Role) {
		fe.add("role", "must be one of "+strings.Join(domain.Roles, ", "))
	}
	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		fe.add("password", err.Error())
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(opts.Name),
		Email:        normalizeEmail(opts.Email),
		PasswordHash: hash,
		Role:         opts.Role,
		Appearance:   "system",
		CreatedAt:    e.stamp(),
	}
	if opts.CompanyID != "" {
		companyID := opts.CompanyID
		u.CompanyID = &companyID
	}
	return u
}

func taken(err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrEmailTaken
	}
	return err
}

// Register creates a company and its first HR manager.
func (e Engine) Register(ctx context.Context, opts RegisterOptions) (domain.User, domain.Company, error) {
	var fe FieldErrors
	if strings.TrimSpace(opts.CompanyName) == "" {
		fe.add("company_name", "required")
	}
	company := domain.Company{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(opts.CompanyName),
		CreatedAt: e.stamp(),
	}
	if opts.IndustryID != "" {
		company.IndustryID = &opts.IndustryID
	}
	if opts.SubcategoryID != "" {
		company.SubcategoryID = &opts.SubcategoryID
	}
	user := e.newUser(UserOptions{Name: opts.Name, Email: opts.Email, Password: opts.Password, Role: domain.RoleHRManager, CompanyID: company.ID}, &fe)
	if err := fe.err(); err != nil {
		return domain.User{}, domain.Company{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, domain.Company{}, err
	}
	defer tx.Rollback()

	if company.IndustryID != nil {
		if _, err := e.Repo.GetIndustry(ctx, tx, *company.IndustryID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.User{}, domain.Company{}, FieldError{Field: "industry_id", Message: "unknown industry"}
			}
			return domain.User{}, domain.Company{}, err
		}
	}
	if err := e.Repo.InsertCompany(ctx, tx, company); err != nil {
		return domain.User{}, domain.Company{}, err
	}
	if err := e.Repo.InsertUser(ctx, tx, user); err != nil {
		return domain.User{}, domain.Company{}, taken(err)
	}
	if err := e.append(ctx, tx, events.UserRegistered, "", events.KindUser, user.ID, user.ID, events.EventPayload{"company_id": company.ID, "role": user.Role}); err != nil {
		return domain.User{}, domain.Company{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, domain.Company{}, err
	}
	return user, company, nil
}

// CreateUser adds an account directly, e.g. the seeded admin or a consultant.
func (e Engine) CreateUser(ctx context.Context, opts UserOptions) (domain.User, error) {
	var fe FieldErrors
	user := e.newUser(opts, &fe)
	if err := fe.err(); err != nil {
		return domain.User{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if user.CompanyID != nil {
		if _, err := e.Repo.GetCompany(ctx, tx, *user.CompanyID); err != nil {
			return domain.User{}, err
		}
	}
	if err := e.Repo.InsertUser(ctx, tx, user); err != nil {
		return domain.User{}, taken(err)
	}
	if err := e.append(ctx, tx, events.UserRegistered, "", events.KindUser, user.ID, opts.ActorID, events.EventPayload{"role": user.Role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login checks credentials. Unknown emails and wrong passwords look the same.
func (e Engine) Login(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, auth.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// RequestPasswordOTP mails a one-time code. Unknown emails succeed silently.
func (e Engine) RequestPasswordOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := e.Repo.GetUserByEmail(ctx, nil, email)
	if errors.Is(err, repo.ErrNotFound) {
		e.log().DebugContext(ctx, "password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	code, err := auth.GenerateOTP(6)
	if err != nil {
		return err
	}
	hash, err := auth.HashCode(code)
	if err != nil {
		return err
	}
	ttl := 15 * time.Minute
	if e.Config != nil {
		ttl = e.Config.OTPTTL()
	}
	otp := domain.PasswordResetOTP{
		ID:        uuid.NewString(),
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: e.now().UTC().Add(ttl).Format(time.RFC3339),
	}
	if err := e.Repo.InsertOTP(ctx, nil, otp); err != nil {
		return err
	}
	return e.send(ctx, []domain.User{u}, notify.PasswordResetOTP{Code: code, ExpiresIn: ttl.String()})
}

// MaxOTPAttempts is the number of wrong codes after which a reset code stops working.
const MaxOTPAttempts = 5

// ResetPassword spends a valid code, sets the new password and ends every session of the user.
// A wrong code counts against the live codes of the email; MaxOTPAttempts failures burn them.
func (e Engine) ResetPassword(ctx context.Context, email, code, password string) error {
	email = normalizeEmail(email)
	hash, err := auth.HashPassword(password)
	if err != nil {
		return FieldError{Field: "password", Message: err.Error()}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := e.stamp()
	otps, err := e.Repo.ActiveOTPs(ctx, tx, email, now)
	if err != nil {
		return err
	}
	var match *domain.PasswordResetOTP
	for i := range otps {
		if auth.CheckPassword(otps[i].CodeHash, strings.TrimSpace(code)) == nil {
			match = &otps[i]
			break
		}
	}
	if match == nil {
		if len(otps) == 0 {
			return ErrInvalidCode
		}
		burned, err := e.Repo.FailOTPs(ctx, tx, email, now, MaxOTPAttempts)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if burned > 0 {
			e.log().WarnContext(ctx, "password reset code burned", "email", email, "codes", burned)
		}
		return ErrInvalidCode
	}
	u, err := e.Repo.GetUserByEmail(ctx, tx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}
	if err := e.Repo.UseOTP(ctx, tx, match.ID, now); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return ErrInvalidCode
		}
		return err
	}
	if err := e.Repo.SetUserPassword(ctx, tx, u.ID, hash); err != nil {
		return err
	}
	if err := e.Repo.RevokeUserSessions(ctx, tx, u.ID, now); err != nil {
		return err
	}
	if err := e.append(ctx, tx, events.PasswordReset, "", events.KindUser, u.ID, u.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateAPIKey issues a machine key for a user. The plain key is only returned here.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (string, domain.APIKey, error) {
	secret, err := randomToken(24)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	plain := "hrd_" + secret
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetUser(ctx, tx, userID); err != nil {
		return "", domain.APIKey{}, err
	}
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := e.append(ctx, tx, events.APIKeyCreated, "", events.KindAPIKey, key.ID, userID, events.EventPayload{"name": key.Name}); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}
