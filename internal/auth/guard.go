package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Action string

const (
	ActionSignup     Action = "signup"
	ActionUnregister Action = "unregister"
)

//go:embed rbac_model.conf
var rbacModel string

var (
	policies = [][]string{
		{string(RolePerformer), string(ActionSignup)},
		{string(RoleCoordinator), string(ActionUnregister)},
	}
	// child role inherits every action of the parent
	roleInheritance = [][]string{
		{string(RoleCoordinator), string(RolePerformer)},
		{string(RoleAdmin), string(RoleCoordinator)},
	}
)

// Guard decides which role may perform which action.
type Guard struct {
	enforcer *casbin.SyncedEnforcer
}

func NewGuard() (*Guard, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parse rbac model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create rbac enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("add rbac policies: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicies(roleInheritance); err != nil {
		return nil, fmt.Errorf("add rbac role inheritance: %w", err)
	}

	return &Guard{enforcer: enforcer}, nil
}

// Require fails with ErrUnauthorized when there is no valid identity, and with
// ErrForbidden when the identity's role may not perform action.
func (g *Guard) Require(identity *Identity, action Action) (Role, error) {
	if !identity.valid() {
		return "", ErrUnauthorized
	}

	allowed, err := g.AllowedRoles(action)
	if err != nil {
		return "", err
	}
	return RequireRole(identity, allowed...)
}

// AllowedRoles lists the roles permitted to perform action.
func (g *Guard) AllowedRoles(action Action) ([]Role, error) {
	var allowed []Role
	for _, role := range Roles() {
		ok, err := g.enforcer.Enforce(string(role), string(action))
		if err != nil {
			return nil, fmt.Errorf("enforce %s for %s: %w", action, role, err)
		}
		if ok {
			allowed = append(allowed, role)
		}
	}
	return allowed, nil
}

// RequireRole checks that the identity's role is one of allowed.
func RequireRole(identity *Identity, allowed ...Role) (Role, error) {
	if !identity.valid() {
		return "", ErrUnauthorized
	}
	for _, role := range allowed {
		if identity.Role == role {
			return role, nil
		}
	}
	return "", ErrForbidden
}

func (identity *Identity) valid() bool {
	return identity != nil && identity.Username != "" && identity.Role.Valid()
}
