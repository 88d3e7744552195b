package users

import (
	"context"
	"time"
)

// Identity is a chat user as the download pipeline sees it.
type Identity struct {
	ID                   string     `json:"id"`
	Key                  string     `json:"key"`
	Username             string     `json:"username,omitempty"`
	FirstName            string     `json:"first_name,omitempty"`
	LastName             string     `json:"last_name,omitempty"`
	RemainingQuotaBytes  int64      `json:"remaining_quota_bytes"`
	MaxDailyQuotaBytes   int64      `json:"max_daily_quota_bytes"`
	IsPrivileged         bool       `json:"is_privileged"`
	PrivilegeRequested   bool       `json:"privilege_requested"`
	PrivilegeRequestedAt *time.Time `json:"privilege_requested_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// DisplayName prefers the first name, then the username, then the key.
func (i Identity) DisplayName() string {
	switch {
	case i.FirstName != "":
		return i.FirstName
	case i.Username != "":
		return "@" + i.Username
	default:
		return i.Key
	}
}

// Profile is what the chat front end knows about a user on each update.
type Profile struct {
	Key       string
	Username  string
	FirstName string
	LastName  string
}

// ListFilter narrows List.
type ListFilter struct {
	PendingPrivilegeOnly bool
	Limit                int32
	Offset               int32
}

// Quotas are the daily allowances for each class of identity.
type Quotas struct {
	Regular    int64
	Privileged int64
}

// PrivilegeListener is told when an admin changes an identity's privilege.
type PrivilegeListener interface {
	PrivilegeChanged(ctx context.Context, identity Identity)
}
