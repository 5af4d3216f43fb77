package authz

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
)

// ObjectPayrollRun is the only object the payroll policy talks about.
const ObjectPayrollRun = "payroll_run"

// Scope values in the policy: "own" grants only on the actor's home site.
const (
	ScopeAny = "any"
	ScopeOwn = "own"
)

const modelText = `
[request_definition]
r = sub, home, site, obj, act

[policy_definition]
p = sub, scope, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act) && (p.scope == "any" || (p.scope == "own" && r.home != "" && r.home == r.site))
`

// DefaultPolicies is used when no policy file is configured.
var DefaultPolicies = [][]string{
	{SubjectFromRole("admin"), ScopeAny, "*", "*"},

	{SubjectFromRole("hr"), ScopeOwn, ObjectPayrollRun, string(payroll.ActionRun)},
	{SubjectFromRole("hr"), ScopeOwn, ObjectPayrollRun, string(payroll.ActionReview)},
	{SubjectFromRole("hr"), ScopeOwn, ObjectPayrollRun, string(payroll.ActionDelete)},
	{SubjectFromRole("hr"), ScopeOwn, ObjectPayrollRun, string(payroll.ActionRead)},

	{SubjectFromRole("manager"), ScopeOwn, ObjectPayrollRun, string(payroll.ActionApprove)},
	{SubjectFromRole("manager"), ScopeOwn, ObjectPayrollRun, string(payroll.ActionRead)},

	{SubjectFromRole("finance"), ScopeAny, ObjectPayrollRun, string(payroll.ActionLock)},
	{SubjectFromRole("finance"), ScopeAny, ObjectPayrollRun, string(payroll.ActionRead)},
}

// Authorizer answers payroll capability questions from a casbin policy.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// NewAuthorizer loads policies from policyPath (casbin CSV) or, when empty, DefaultPolicies.
func NewAuthorizer(policyPath string) (*Authorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("authz: invalid model: %w", err)
	}

	if policyPath != "" {
		enforcer, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(policyPath))
		if err != nil {
			return nil, fmt.Errorf("authz: failed to load policy %s: %w", policyPath, err)
		}
		return &Authorizer{enforcer: enforcer}, nil
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to create enforcer: %w", err)
	}
	if _, err := enforcer.AddPolicies(DefaultPolicies); err != nil {
		return nil, fmt.Errorf("authz: failed to add default policies: %w", err)
	}
	return &Authorizer{enforcer: enforcer}, nil
}

func SubjectFromRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}

func (a *Authorizer) Can(actor payroll.Actor, siteID string, action payroll.Action) bool {
	ok, err := a.enforcer.Enforce(
		SubjectFromRole(actor.Role),
		strings.TrimSpace(actor.SiteID),
		strings.TrimSpace(siteID),
		ObjectPayrollRun,
		string(action),
	)
	if err != nil {
		slog.Error("authz: enforce failed", "role", actor.Role, "action", string(action), "error", err)
		return false
	}
	return ok
}

func (a *Authorizer) CanRunPayroll(actor payroll.Actor, siteID string) bool {
	return a.Can(actor, siteID, payroll.ActionRun)
}

func (a *Authorizer) CanTransition(actor payroll.Actor, siteID string, target payroll.RunStatus) bool {
	action, ok := payroll.TransitionAction(target)
	if !ok {
		return false
	}
	return a.Can(actor, siteID, action)
}

var _ payroll.Authorizer = (*Authorizer)(nil)
