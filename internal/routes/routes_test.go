package routes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverURL(t *testing.T) {
	r := Resolver{BaseURL: "https://app.example.com/"}
	u, err := r.URL(InvitationsAccept, "token", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/invitations/abc123/accept", u)

	u, err = r.URL(Login)
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/login", u)

	u, err = r.URL(HRSystemOverview, "project", "p 1")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/hr-system/p%201/overview", u)
}

func TestResolverErrors(t *testing.T) {
	r := Resolver{BaseURL: "http://localhost"}
	_, err := r.URL("payroll.index")
	assert.True(t, errors.Is(err, ErrUnknownRoute))

	_, err = r.URL(KPIReviewToken)
	var mp MissingParamError
	require.ErrorAs(t, err, &mp)
	assert.Equal(t, "token", mp.Param)

	_, err = r.URL(KPIReviewToken, "token")
	assert.Error(t, err)

	assert.Equal(t, "http://localhost/", r.MustURL("nope"))
}

func TestAllNamedRoutesRegistered(t *testing.T) {
	names := Names()
	for _, n := range []string{
		Login, Register, Dashboard, Home, CompaniesShow, InvitationsAccept, CEOReviewDiagnosis,
		HRManagerDashboard, DashboardCEO, DashboardHRManager, HRSystemOverview, KPIReviewToken,
	} {
		assert.Contains(t, names, n)
	}
	params, err := Params(CEOReviewDiagnosis)
	require.NoError(t, err)
	assert.Equal(t, []string{"project"}, params)
}
