package access

import "github.com/shardbase/backend/internal/domain/shared"

// Action is one of the closed set of operations the ACL engine decides on
type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRevert  Action = "revert"
	ActionCompare Action = "compare"
)

// AllActions lists every action in the closed set
func AllActions() []Action {
	return []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionRevert, ActionCompare}
}

// ParseAction validates a string against the closed action set
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionRevert, ActionCompare:
		return Action(s), nil
	default:
		return "", shared.NewDomainError("INVALID_INPUT", "Unknown action: "+s)
	}
}
