package group

import (
	"time"

	"github.com/fkhayef/eventcheckin/pkg/approval"
)

// Group represents a group students can join. Groups sharing a non-null Code
// are mutually exclusive: a student may hold at most one active membership
// across them.
type Group struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	Code           *string   `json:"code,omitempty"`
	RequireApprove bool      `json:"require_approve"`
	CreatedAt      time.Time `json:"created_at"`
}

// Membership represents a user's membership in a group
type Membership struct {
	GroupID    int64          `json:"group_id"`
	UserID     int64          `json:"user_id"`
	JoinedAt   time.Time      `json:"joined_at"`
	State      approval.State `json:"state"`
	ApprovedAt *time.Time     `json:"approved_at,omitempty"`
	AddedBy    *int64         `json:"added_by,omitempty"`

	// Populated from JOIN
	Fullname  string `json:"fullname,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Username  string `json:"username,omitempty"`
	GroupName string `json:"group_name,omitempty"`
}
