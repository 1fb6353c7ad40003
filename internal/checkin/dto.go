package checkin

import (
	"strings"

	"github.com/fkhayef/eventcheckin/pkg/approval"
)

const timeLayout = "2006-01-02T15:04:05Z"

// ReviewRequest is the optional body of approve and reject
type ReviewRequest struct {
	Score *float64 `json:"score,omitempty"`
}

// CheckinResponse represents a check-in image
type CheckinResponse struct {
	ID         int64          `json:"id"`
	Path       string         `json:"path"`
	UploadedAt string         `json:"uploaded_at"`
	Status     approval.State `json:"status"`
	AcceptedAt *string        `json:"accepted_at,omitempty"`
	Score      *float64       `json:"score,omitempty"`
	UserID     int64          `json:"user_id"`
	EventID    int64          `json:"event_id"`
	Fullname   string         `json:"fullname,omitempty"`
	StudentID  string         `json:"student_id,omitempty"`
	EventTitle string         `json:"event_title,omitempty"`
}

// ToResponse converts a CheckinImage model to a CheckinResponse DTO
func (c *CheckinImage) ToResponse() *CheckinResponse {
	resp := &CheckinResponse{
		ID:         c.ID,
		Path:       c.Path,
		UploadedAt: c.UploadedAt.Format(timeLayout),
		Status:     c.State,
		Score:      c.Score,
		UserID:     c.UserID,
		EventID:    c.EventID,
		Fullname:   c.Fullname,
		StudentID:  c.StudentID,
		EventTitle: c.EventTitle,
	}
	if c.AcceptedAt != nil {
		s := c.AcceptedAt.Format(timeLayout)
		resp.AcceptedAt = &s
	}
	return resp
}

func toResponses(items []*CheckinImage) []*CheckinResponse {
	out := make([]*CheckinResponse, len(items))
	for i, c := range items {
		out[i] = c.ToResponse()
	}
	return out
}

// parseStatus maps the status query parameter to a state filter
func parseStatus(raw string) (*approval.State, bool) {
	if raw == "" {
		return nil, true
	}
	s := approval.State(strings.ToUpper(raw))
	switch s {
	case approval.Pending, approval.Approved, approval.Rejected:
		return &s, true
	}
	return nil, false
}

