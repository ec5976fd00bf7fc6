package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of identities the client distinguishes.
type Role int

const (
	RoleGuest Role = iota
	RoleStudent
	RoleAdmin
)

// ErrUnknownRole is returned when the API reports a role outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole maps the API's string form onto a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "guest":
		return RoleGuest, nil
	case "student":
		return RoleStudent, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleGuest, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleStudent:
		return "student"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode role: %w", err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Action is a mutating capability gated by role.
type Action int

const (
	ActionPost Action = iota
	ActionStar
	ActionApprove
)

func (a Action) String() string {
	switch a {
	case ActionPost:
		return "post"
	case ActionStar:
		return "star"
	case ActionApprove:
		return "approve"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Can reports whether the role may perform the action.
func (r Role) Can(a Action) bool {
	switch r {
	case RoleGuest:
		return false
	case RoleStudent:
		switch a {
		case ActionPost, ActionStar:
			return true
		case ActionApprove:
			return false
		}
	case RoleAdmin:
		switch a {
		case ActionPost, ActionStar, ActionApprove:
			return true
		}
	}
	return false
}

// SubmissionStatus is the status a new submission from this role starts in.
// Admin submissions skip the approval queue.
func (r Role) SubmissionStatus() Status {
	if r == RoleAdmin {
		return StatusApproved
	}
	return StatusPending
}
