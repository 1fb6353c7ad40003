package event

import "time"

// Event represents an event students register for and check in to
type Event struct {
	ID                 int64
	Title              string
	Place              *string
	MaximumParticipant *int
	LocationID         *int64
	CreatedAt          time.Time
	UpdatedAt          *time.Time
	StartAt            *time.Time
	StopAt             *time.Time
	StartRegisterAt    time.Time
	StopRegisterAt     *time.Time
	SoonCheckinTime    *int
	LateCheckinTime    *int
	SoonCheckoutTime   *int
	LateCheckoutTime   *int

	// NumParticipant counts registrations that are not blocked
	NumParticipant int
}

// Detail holds the optional descriptive part of an event
type Detail struct {
	EventID     int64
	Description *string
	CreatedBy   *int64
	Leader      *int64
}

// LimitGroup is a group whose approved members may register for an event
type LimitGroup struct {
	ID   int64
	Name string
	Code *string
}

// Registration is a user's registration for an event. Block marks a user
// barred from the event while keeping the row.
type Registration struct {
	EventID    int64
	UserID     int64
	AddedBy    *int64
	Block      bool
	Note       *string
	Feedback   *string
	CreatedAt  time.Time
	CheckinAt  *time.Time
	CheckoutAt *time.Time

	// Populated from JOIN
	Fullname   string
	StudentID  string
	Phone      string
	EventTitle string
	EventPlace *string
}
