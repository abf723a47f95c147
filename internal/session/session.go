// Package session carries the authenticated user and display preferences through a request.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"hrdesign/internal/domain"
	"hrdesign/internal/repo"
)

const (
	AppearanceLight  = "light"
	AppearanceDark   = "dark"
	AppearanceSystem = "system"
)

func ValidAppearance(a string) bool {
	switch a {
	case AppearanceLight, AppearanceDark, AppearanceSystem:
		return true
	}
	return false
}

// Session is the request's view of who is acting.
type Session struct {
	ID         string      `json:"id,omitempty"`
	User       domain.User `json:"user"`
	Appearance string      `json:"appearance"`
	StartedAt  string      `json:"started_at,omitempty"`
	ExpiresAt  string      `json:"expires_at,omitempty"`
	// Source is jwt or api_key.
	Source string `json:"source"`
}

func (s Session) UserID() string { return s.User.ID }
func (s Session) Role() string   { return s.User.Role }

func (s Session) CompanyID() string {
	if s.User.CompanyID == nil {
		return ""
	}
	return *s.User.CompanyID
}

type ctxKey struct{}

func With(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func From(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.User.ID != ""
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("session expired")
	ErrRevoked      = errors.New("session revoked")
)

type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	Role      string `json:"role,omitempty"`
}

// Manager issues and resolves JWT-backed sessions.
type Manager struct {
	Repo   repo.Repo
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (m Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// Start records a session row and signs a token that refers to it.
func (m Manager) Start(ctx context.Context, user domain.User) (string, Session, error) {
	if len(m.Secret) == 0 {
		return "", Session{}, errors.New("jwt secret not configured")
	}
	ttl := m.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := m.now()
	row := domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(ttl).Format(time.RFC3339),
	}
	if err := m.Repo.InsertSession(ctx, row); err != nil {
		return "", Session{}, fmt.Errorf("insert session: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: row.ID,
		Role:      user.Role,
	})
	signed, err := token.SignedString(m.Secret)
	if err != nil {
		return "", Session{}, err
	}
	return signed, Session{
		ID:         row.ID,
		User:       user,
		Appearance: appearanceOf(user),
		StartedAt:  row.CreatedAt,
		ExpiresAt:  row.ExpiresAt,
		Source:     "jwt",
	}, nil
}

// Resolve validates a token and loads the live session and user behind it.
func (m Manager) Resolve(ctx context.Context, token string) (Session, error) {
	if len(m.Secret) == 0 {
		return Session{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(*jwt.Token) (any, error) { return m.Secret, nil })
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}
	if c.Subject == "" || c.SessionID == "" {
		return Session{}, ErrInvalidToken
	}
	row, err := m.Repo.GetSession(ctx, c.SessionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Session{}, ErrInvalidToken
		}
		return Session{}, err
	}
	if row.UserID != c.Subject {
		return Session{}, ErrInvalidToken
	}
	if row.RevokedAt != nil {
		return Session{}, ErrRevoked
	}
	exp, err := time.Parse(time.RFC3339, row.ExpiresAt)
	if err != nil || !m.now().Before(exp) {
		return Session{}, ErrExpired
	}
	user, err := m.Repo.GetUser(ctx, nil, row.UserID)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:         row.ID,
		User:       user,
		Appearance: appearanceOf(user),
		StartedAt:  row.CreatedAt,
		ExpiresAt:  row.ExpiresAt,
		Source:     "jwt",
	}, nil
}

// FromAPIKey builds a session for machine access. It has no session row.
func (m Manager) FromAPIKey(ctx context.Context, key string) (Session, error) {
	if strings.TrimSpace(key) == "" {
		return Session{}, errors.New("api key required")
	}
	k, err := m.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return Session{}, err
	}
	user, err := m.Repo.GetUser(ctx, nil, k.UserID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user, Appearance: appearanceOf(user), Source: "api_key"}, nil
}

// End revokes a session at logout.
func (m Manager) End(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return m.Repo.RevokeSession(ctx, sid, m.now().Format(time.RFC3339))
}

// SetAppearance persists the display preference on the user.
func (m Manager) SetAppearance(ctx context.Context, userID, appearance string) error {
	if !ValidAppearance(appearance) {
		return fmt.Errorf("appearance must be one of light, dark, system")
	}
	return m.Repo.SetAppearance(ctx, userID, appearance)
}

func appearanceOf(u domain.User) string {
	if ValidAppearance(u.Appearance) {
		return u.Appearance
	}
	return AppearanceSystem
}
