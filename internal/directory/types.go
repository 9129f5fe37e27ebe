package directory

import (
	"time"

	"agencydesk.io/internal/auth"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

const (
	AssignmentActive   = "active"
	AssignmentInactive = "inactive"
)

// User is a staff account. Identity comes from the external provider; role
// and status are managed locally.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Role       auth.Role `json:"role"`
	Status     string    `json:"status"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Client is an agency client record, the unit of row-level protection.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Industry     string    `json:"industry,omitempty"`
	Website      string    `json:"website,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ActivityType is the closed set of activity kinds.
type ActivityType string

const (
	ActivityTrend ActivityType = "trend"
	ActivityIdea  ActivityType = "idea"
	ActivityPR    ActivityType = "pr"
)

// ClientActivity is a stored analysis or generation result for a client.
type ClientActivity struct {
	ID        string         `json:"id"`
	ClientID  string         `json:"client_id"`
	Type      ActivityType   `json:"activity_type"`
	Content   map[string]any `json:"content"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ClientAssignment grants a non-privileged user visibility of one client.
type ClientAssignment struct {
	ClientID   string    `json:"client_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Active reports whether the assignment currently grants access.
func (a ClientAssignment) Active() bool {
	return a.Status == AssignmentActive
}

// AuditEntry is an append-only record of a sensitive action.
type AuditEntry struct {
	ID           string            `json:"id"`
	OccurredAt   time.Time         `json:"occurred_at"`
	ActorID      string            `json:"actor_id"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// UserUpdate carries optional user mutations; nil fields are untouched.
type UserUpdate struct {
	Role       *string
	Status     *string
	Department *string
}

// ClientUpdate carries optional client mutations; nil fields are untouched.
type ClientUpdate struct {
	Name         *string
	Industry     *string
	Website      *string
	ContactEmail *string
	Notes        *string
}
