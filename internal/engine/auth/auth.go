package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"golang.org/x/crypto/bcrypt"

	"hrdesign/internal/config"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Permission ids checked by the engine and the server.
const (
	PermProjectCreate      = "project.create"
	PermProjectRead        = "project.read"
	PermStepEdit           = "project.step.edit"
	PermStepApprove        = "project.step.approve"
	PermProjectLock        = "project.lock"
	PermEventsRead         = "project.events.read"
	PermSurveyRespond      = "survey.respond"
	PermInvitationCreate   = "invitation.create"
	PermKPITokenCreate     = "kpi.token.create"
	PermRoleRequestCreate  = "role_request.create"
	PermRoleRequestDecide  = "role_request.decide"
	PermCatalogManage      = "catalog.manage"
	PermDashboardCEO       = "dashboard.ceo"
	PermDashboardHRManager = "dashboard.hr_manager"
	PermDashboardConsult   = "dashboard.consultant"
	PermDashboardAdmin     = "dashboard.admin"
	PermAPIKeyManage       = "apikey.manage"
)

// Service resolves permissions from the role table in hrdesign.yml.
type Service struct {
	Config *config.Config
}

func (s Service) RoleHasPermission(role, perm string) bool {
	for _, p := range s.Config.Permissions(role) {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// Require returns ForbiddenError when the role lacks perm.
func (s Service) Require(role, perm string) error {
	if s.RoleHasPermission(role, perm) {
		return nil
	}
	return ForbiddenError{Permission: perm}
}

// RolePermissions returns the sorted permission set of a role.
func (s Service) RolePermissions(role string) []string {
	perms := append([]string(nil), s.Config.Permissions(role)...)
	sort.Strings(perms)
	return perms
}

const bcryptCost = bcrypt.DefaultCost

var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword hashes a secret with bcrypt.
func HashPassword(secret string) (string, error) {
	if len(secret) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HashCode hashes a short one-time code. Codes skip the length rule applied to passwords.
func HashCode(code string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword compares a bcrypt hash against a candidate secret.
func CheckPassword(hash, secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateOTP returns a numeric code of n digits.
func GenerateOTP(n int) (string, error) {
	if n <= 0 {
		n = 6
	}
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}
