package inquiry

import "fmt"

type Status string

const (
	StatusUnread       Status = "Unread"
	StatusRead         Status = "Read"
	StatusUserReply    Status = "UserReply"
	StatusAdminReplied Status = "AdminReplied"
	StatusResolved     Status = "Resolved"
)

var allStatuses = []Status{StatusUnread, StatusRead, StatusUserReply, StatusAdminReplied, StatusResolved}

func ParseStatus(value string) (Status, error) {
	for _, status := range allStatuses {
		if string(status) == value {
			return status, nil
		}
	}
	return "", Invalid("status", fmt.Sprintf("unknown status %q", value))
}

type Event string

const (
	EventCreated      Event = "created"
	EventAdminViewed  Event = "admin_viewed"
	EventAdminReplied Event = "admin_replied"
	EventUserReplied  Event = "user_replied"
	EventResolved     Event = "resolved"
	EventReopened     Event = "reopened"
)

// ReplyEvent is the event produced when a party with the given role appends.
func ReplyEvent(role Role) Event {
	if role == RoleAdmin {
		return EventAdminReplied
	}
	return EventUserReplied
}

// Machine applies the thread status transition table. Resolved is terminal
// unless AllowReopen is set, in which case EventReopened moves it back to Read.
type Machine struct {
	AllowReopen bool
}

// Apply returns the status after ev. A rejected event returns the current
// status together with the error.
func (m Machine) Apply(current Status, ev Event) (Status, error) {
	if current == "" && ev != EventCreated {
		return current, fmt.Errorf("%w: %s before created", ErrInvalidTransition, ev)
	}
	switch ev {
	case EventCreated:
		if current != "" {
			return current, fmt.Errorf("%w: thread already created", ErrInvalidTransition)
		}
		return StatusUnread, nil
	case EventAdminViewed:
		if current == StatusUnread || current == StatusUserReply {
			return StatusRead, nil
		}
		return current, nil
	case EventAdminReplied:
		if current == StatusResolved {
			return current, ErrThreadResolved
		}
		return StatusAdminReplied, nil
	case EventUserReplied:
		if current == StatusResolved {
			return current, ErrThreadResolved
		}
		return StatusUserReply, nil
	case EventResolved:
		return StatusResolved, nil
	case EventReopened:
		if !m.AllowReopen {
			return current, ErrReopenDisabled
		}
		if current != StatusResolved {
			return current, fmt.Errorf("%w: only resolved threads can be reopened", ErrInvalidTransition)
		}
		return StatusRead, nil
	default:
		return current, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
}

// Replay folds events over an empty thread. Rejected events leave the status
// unchanged, the same as a rejected write against the store.
func (m Machine) Replay(events ...Event) Status {
	var status Status
	for _, ev := range events {
		next, err := m.Apply(status, ev)
		if err != nil {
			continue
		}
		status = next
	}
	return status
}

// CanCompose reports whether either party may still append to the thread.
func CanCompose(status Status) bool {
	return status != StatusResolved
}

type Capabilities struct {
	CanReply   bool `json:"canReply"`
	CanResolve bool `json:"canResolve"`
	CanReopen  bool `json:"canReopen"`
	CanDelete  bool `json:"canDelete"`
}

func (m Machine) Capabilities(t Thread, id Identity) Capabilities {
	participant := id.IsAdmin() || id.Owns(t)
	return Capabilities{
		CanReply:   participant && CanCompose(t.Status),
		CanResolve: id.IsAdmin() && t.Status != StatusResolved,
		CanReopen:  id.IsAdmin() && m.AllowReopen && t.Status == StatusResolved,
		CanDelete:  participant,
	}
}
