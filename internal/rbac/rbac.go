package rbac

import "github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"

type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionReadAll Action = "read_all"
	ActionReply   Action = "reply"
	ActionResolve Action = "resolve"
	ActionReopen  Action = "reopen"
	ActionDelete  Action = "delete"
)

func Can(role inquiry.Role, action Action) bool {
	switch role {
	case inquiry.RoleAdmin:
		return true
	case inquiry.RoleUser:
		return action == ActionCreate || action == ActionRead || action == ActionReply || action == ActionDelete
	default:
		return false
	}
}

// CanOnThread combines the role table with ownership: a user only ever acts
// on threads they own.
func CanOnThread(id inquiry.Identity, action Action, thread inquiry.Thread) bool {
	if !Can(id.Role, action) {
		return false
	}
	return id.IsAdmin() || id.Owns(thread)
}
