package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of staff roles. Anything outside the four values is
// rejected at the boundary so downstream code never sees an unknown role.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDPRManager Role = "dpr_manager"
	RoleDPRLead    Role = "dpr_lead"
	RoleAssistant  Role = "assistant"
)

// DefaultRole is assigned on first sign-in and mutated only through the
// user-management endpoint.
const DefaultRole = RoleAssistant

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleDPRManager:
		return RoleDPRManager, nil
	case RoleDPRLead:
		return RoleDPRLead, nil
	case RoleAssistant:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Action identifies a capability checked against the role table.
type Action string

const (
	ActionReadAllClients    Action = "clients.read_all"
	ActionWriteAllClients   Action = "clients.write_all"
	ActionDeleteClient      Action = "clients.delete"
	ActionManageAssignments Action = "assignments.manage"
	ActionManageUsers       Action = "users.manage"
)

// capabilities is the single source of truth for role-based checks; handlers
// never compare role strings directly.
var capabilities = map[Role]map[Action]struct{}{
	RoleAdmin: {
		ActionReadAllClients:    {},
		ActionWriteAllClients:   {},
		ActionDeleteClient:      {},
		ActionManageAssignments: {},
		ActionManageUsers:       {},
	},
	RoleDPRManager: {
		ActionReadAllClients:    {},
		ActionWriteAllClients:   {},
		ActionManageAssignments: {},
		ActionManageUsers:       {},
	},
	RoleDPRLead:   {},
	RoleAssistant: {},
}

// Can reports whether the role grants the action.
func (r Role) Can(action Action) bool {
	set, ok := capabilities[r]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}

// Privileged reports whether the role is exempt from row-level assignment
// checks.
func (r Role) Privileged() bool {
	return r.Can(ActionReadAllClients)
}
