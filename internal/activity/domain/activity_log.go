package domain

import "time"

// ActivityLog is one recorded platform activity event.
type ActivityLog struct {
	ID        string
	AccountID string // empty for events with no resolved account
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions emitted by the session lifecycle.
const (
	ActionUserRegistered = "USER_REGISTERED"
	ActionUserLogin      = "USER_LOGIN"
	ActionUserLogout     = "USER_LOGOUT"
)
