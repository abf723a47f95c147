package routes

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Named routes the front end and the mails link to.
const (
	Login              = "login"
	Register           = "register"
	Dashboard          = "dashboard"
	Home               = "home"
	CompaniesShow      = "companies.show"
	InvitationsAccept  = "invitations.accept"
	CEOReviewDiagnosis = "ceo.review.diagnosis"
	HRManagerDashboard = "hr-manager.dashboard"
	DashboardCEO       = "dashboard.ceo"
	DashboardHRManager = "dashboard.hr-manager"
	HRSystemOverview   = "hr-system.overview"
	KPIReviewToken     = "kpi-review.token"
)

var table = map[string]string{
	Login:              "/login",
	Register:           "/register",
	Dashboard:          "/dashboard",
	Home:               "/",
	CompaniesShow:      "/companies/{company}",
	InvitationsAccept:  "/invitations/{token}/accept",
	CEOReviewDiagnosis: "/ceo/review/diagnosis/{project}",
	HRManagerDashboard: "/hr-manager/dashboard",
	DashboardCEO:       "/dashboard/ceo",
	DashboardHRManager: "/dashboard/hr-manager",
	HRSystemOverview:   "/hr-system/{project}/overview",
	KPIReviewToken:     "/kpi-review/{token}",
}

var ErrUnknownRoute = errors.New("unknown route")

// MissingParamError is returned when a path placeholder has no value.
type MissingParamError struct {
	Route string
	Param string
}

func (e MissingParamError) Error() string {
	return fmt.Sprintf("route %s requires parameter %s", e.Route, e.Param)
}

// Names lists every registered route name.
func Names() []string {
	out := make([]string, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Params returns the placeholder names of a route in path order.
func Params(name string) ([]string, error) {
	pattern, ok := table[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	var out []string
	for _, seg := range strings.Split(pattern, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			out = append(out, strings.Trim(seg, "{}"))
		}
	}
	return out, nil
}

// Path fills the placeholders of a named route.
func Path(name string, params map[string]string) (string, error) {
	pattern, ok := table[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	segs := strings.Split(pattern, "/")
	for i, seg := range segs {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		key := strings.Trim(seg, "{}")
		v := strings.TrimSpace(params[key])
		if v == "" {
			return "", MissingParamError{Route: name, Param: key}
		}
		segs[i] = url.PathEscape(v)
	}
	return strings.Join(segs, "/"), nil
}

// Resolver builds absolute URLs against the public base URL.
type Resolver struct {
	BaseURL string
}

// URL resolves a named route. Params are alternating key, value pairs.
func (r Resolver) URL(name string, kv ...string) (string, error) {
	if len(kv)%2 != 0 {
		return "", fmt.Errorf("route %s: odd number of parameters", name)
	}
	params := make(map[string]string, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		params[kv[i]] = kv[i+1]
	}
	p, err := Path(name, params)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(r.BaseURL, "/") + p, nil
}

// MustURL is URL for call sites whose route names are constants; failures yield the base URL.
func (r Resolver) MustURL(name string, kv ...string) string {
	u, err := r.URL(name, kv...)
	if err != nil {
		return strings.TrimRight(r.BaseURL, "/") + "/"
	}
	return u
}
