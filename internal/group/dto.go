package group

import (
	"strings"

	"github.com/fkhayef/eventcheckin/pkg/approval"
	"github.com/fkhayef/eventcheckin/pkg/validate"
)

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	Code           *string `json:"code,omitempty"`
	RequireApprove bool    `json:"require_approve"`
}

func (req *CreateGroupRequest) Validate() error {
	errs := validate.Errors{}
	if strings.TrimSpace(req.Name) == "" {
		errs.Check("name", "name is required")
	}
	if req.Code != nil && strings.TrimSpace(*req.Code) == "" {
		req.Code = nil
	}
	return errs.Err()
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name           *string `json:"name,omitempty"`
	Description    *string `json:"description,omitempty"`
	Code           *string `json:"code,omitempty"`
	RequireApprove *bool   `json:"require_approve,omitempty"`
}

func (req *UpdateGroupRequest) Validate() error {
	errs := validate.Errors{}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		errs.Check("name", "name is required")
	}
	return errs.Err()
}

// AddMemberRequest is the optional body of a manager adding a student.
// Approve defaults to true.
type AddMemberRequest struct {
	Approve *bool `json:"approve,omitempty"`
}

// State returns the approval state the new membership should start in
func (req *AddMemberRequest) State() approval.State {
	if req.Approve == nil || *req.Approve {
		return approval.Approved
	}
	return approval.Rejected
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Description    *string `json:"description,omitempty"`
	Code           *string `json:"code,omitempty"`
	RequireApprove bool    `json:"require_approve"`
	CreatedAt      string  `json:"created_at"`
}

// MemberResponse represents a membership in list responses
type MemberResponse struct {
	GroupID    int64          `json:"group_id"`
	GroupName  string         `json:"group_name,omitempty"`
	UserID     int64          `json:"user_id"`
	Fullname   string         `json:"fullname,omitempty"`
	StudentID  string         `json:"student_id,omitempty"`
	Username   string         `json:"username,omitempty"`
	State      approval.State `json:"state"`
	JoinedAt   string         `json:"joined_at"`
	ApprovedAt *string        `json:"approved_at,omitempty"`
	AddedBy    *int64         `json:"added_by,omitempty"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:             g.ID,
		Name:           g.Name,
		Description:    g.Description,
		Code:           g.Code,
		RequireApprove: g.RequireApprove,
		CreatedAt:      g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ToResponse converts a Membership model to a MemberResponse DTO
func (m *Membership) ToResponse() *MemberResponse {
	resp := &MemberResponse{
		GroupID:   m.GroupID,
		GroupName: m.GroupName,
		UserID:    m.UserID,
		Fullname:  m.Fullname,
		StudentID: m.StudentID,
		Username:  m.Username,
		State:     m.State,
		JoinedAt:  m.JoinedAt.Format("2006-01-02T15:04:05Z"),
		AddedBy:   m.AddedBy,
	}
	if m.ApprovedAt != nil {
		s := m.ApprovedAt.Format("2006-01-02T15:04:05Z")
		resp.ApprovedAt = &s
	}
	return resp
}
