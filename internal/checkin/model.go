package checkin

import (
	"time"

	"github.com/fkhayef/eventcheckin/pkg/approval"
)

// CheckinImage is a photo a participant submits to prove attendance
type CheckinImage struct {
	ID         int64
	Path       string
	UploadedAt time.Time
	State      approval.State
	AcceptedAt *time.Time
	Score      *float64
	UserID     int64
	EventID    int64

	// Populated from JOIN
	Fullname   string
	StudentID  string
	EventTitle string
}
