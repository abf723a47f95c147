package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesign/internal/config"
)

func TestRequireUsesConfiguredRoles(t *testing.T) {
	svc := Service{Config: config.Default("")}

	assert.NoError(t, svc.Require("ceo", PermStepApprove))
	assert.NoError(t, svc.Require("admin", PermCatalogManage))

	err := svc.Require("hr_manager", PermCatalogManage)
	var fe ForbiddenError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, PermCatalogManage, fe.Permission)

	assert.Error(t, svc.Require("intern", PermProjectRead))
	assert.Contains(t, svc.RolePermissions("consultant"), PermDashboardConsult)
}

func TestPasswordHashing(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong horse"), ErrInvalidCredentials)
}

func TestGenerateOTP(t *testing.T) {
	code, err := GenerateOTP(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9')
	}
}
