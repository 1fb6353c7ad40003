package event

import (
	"strings"
	"time"

	"github.com/fkhayef/eventcheckin/internal/location"
	"github.com/fkhayef/eventcheckin/pkg/validate"
)

const timeLayout = "2006-01-02T15:04:05Z"

// CreateEventRequest represents the request body for creating an event
type CreateEventRequest struct {
	Title              string     `json:"title"`
	Place              *string    `json:"place,omitempty"`
	MaximumParticipant *int       `json:"maximum_participant,omitempty"`
	LocationID         *int64     `json:"location_id,omitempty"`
	StartAt            *time.Time `json:"start_at,omitempty"`
	StopAt             *time.Time `json:"stop_at,omitempty"`
	StartRegisterAt    *time.Time `json:"start_register_at,omitempty"`
	StopRegisterAt     *time.Time `json:"stop_register_at,omitempty"`
	SoonCheckinTime    *int       `json:"soon_checkin_time,omitempty"`
	LateCheckinTime    *int       `json:"late_checkin_time,omitempty"`
	SoonCheckoutTime   *int       `json:"soon_checkout_time,omitempty"`
	LateCheckoutTime   *int       `json:"late_checkout_time,omitempty"`

	Description *string `json:"description,omitempty"`
	Leader      *int64  `json:"leader,omitempty"`
	LimitGroups []int64 `json:"limit_groups,omitempty"`
}

func (req *CreateEventRequest) Validate() error {
	errs := validate.Errors{}
	if strings.TrimSpace(req.Title) == "" {
		errs.Check("title", "title is required")
	}
	checkCounts(errs, req.MaximumParticipant, req.SoonCheckinTime, req.LateCheckinTime, req.SoonCheckoutTime, req.LateCheckoutTime)
	checkWindows(errs, req.StartAt, req.StopAt, req.StartRegisterAt, req.StopRegisterAt)
	return errs.Err()
}

// UpdateEventRequest represents the request body for updating an event.
// Nil fields are left unchanged.
type UpdateEventRequest struct {
	Title              *string    `json:"title,omitempty"`
	Place              *string    `json:"place,omitempty"`
	MaximumParticipant *int       `json:"maximum_participant,omitempty"`
	LocationID         *int64     `json:"location_id,omitempty"`
	StartAt            *time.Time `json:"start_at,omitempty"`
	StopAt             *time.Time `json:"stop_at,omitempty"`
	StartRegisterAt    *time.Time `json:"start_register_at,omitempty"`
	StopRegisterAt     *time.Time `json:"stop_register_at,omitempty"`
	SoonCheckinTime    *int       `json:"soon_checkin_time,omitempty"`
	LateCheckinTime    *int       `json:"late_checkin_time,omitempty"`
	SoonCheckoutTime   *int       `json:"soon_checkout_time,omitempty"`
	LateCheckoutTime   *int       `json:"late_checkout_time,omitempty"`

	// ClearMaximumParticipant makes the event unlimited again
	ClearMaximumParticipant bool `json:"clear_maximum_participant,omitempty"`
	ClearLocation           bool `json:"clear_location,omitempty"`

	Description *string `json:"description,omitempty"`
	Leader      *int64  `json:"leader,omitempty"`
}

// Validate checks req as it would apply on top of current
func (req *UpdateEventRequest) Validate(current *Event) error {
	errs := validate.Errors{}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		errs.Check("title", "title is required")
	}
	checkCounts(errs, req.MaximumParticipant, req.SoonCheckinTime, req.LateCheckinTime, req.SoonCheckoutTime, req.LateCheckoutTime)
	if req.ClearMaximumParticipant && req.MaximumParticipant != nil {
		errs.Check("maximum_participant", "maximum_participant cannot be set and cleared at once")
	}
	if req.ClearLocation && req.LocationID != nil {
		errs.Check("location_id", "location_id cannot be set and cleared at once")
	}

	startRegister := current.StartRegisterAt
	if req.StartRegisterAt != nil {
		startRegister = *req.StartRegisterAt
	}
	checkWindows(errs,
		pick(req.StartAt, current.StartAt),
		pick(req.StopAt, current.StopAt),
		&startRegister,
		pick(req.StopRegisterAt, current.StopRegisterAt),
	)
	return errs.Err()
}

func (req *UpdateEventRequest) touchesDetail() bool {
	return req.Description != nil || req.Leader != nil
}

func pick(v, fallback *time.Time) *time.Time {
	if v != nil {
		return v
	}
	return fallback
}

func checkCounts(errs validate.Errors, maximum, soonIn, lateIn, soonOut, lateOut *int) {
	for name, v := range map[string]*int{
		"maximum_participant": maximum,
		"soon_checkin_time":   soonIn,
		"late_checkin_time":   lateIn,
		"soon_checkout_time":  soonOut,
		"late_checkout_time":  lateOut,
	} {
		if v != nil {
			errs.Check(name, validate.NonNegative(name, float64(*v)))
		}
	}
}

func checkWindows(errs validate.Errors, start, stop, startRegister, stopRegister *time.Time) {
	if start != nil && stop != nil && stop.Before(*start) {
		errs.Check("stop_at", "stop_at must not be before start_at")
	}
	if startRegister != nil && stopRegister != nil && stopRegister.Before(*startRegister) {
		errs.Check("stop_register_at", "stop_register_at must not be before start_register_at")
	}
}

// NoteRequest carries the optional note of a manager registration or block
type NoteRequest struct {
	Note *string `json:"note,omitempty"`
}

// FeedbackRequest carries a participant's feedback
type FeedbackRequest struct {
	Content string `json:"content"`
}

// EventResponse represents an event in list responses
type EventResponse struct {
	ID                 int64   `json:"id"`
	Title              string  `json:"title"`
	Place              *string `json:"place,omitempty"`
	MaximumParticipant *int    `json:"maximum_participant,omitempty"`
	LocationID         *int64  `json:"location_id,omitempty"`
	NumParticipant     int     `json:"num_participant"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          *string `json:"updated_at,omitempty"`
	StartAt            *string `json:"start_at,omitempty"`
	StopAt             *string `json:"stop_at,omitempty"`
	StartRegisterAt    string  `json:"start_register_at"`
	StopRegisterAt     *string `json:"stop_register_at,omitempty"`
	SoonCheckinTime    *int    `json:"soon_checkin_time,omitempty"`
	LateCheckinTime    *int    `json:"late_checkin_time,omitempty"`
	SoonCheckoutTime   *int    `json:"soon_checkout_time,omitempty"`
	LateCheckoutTime   *int    `json:"late_checkout_time,omitempty"`
}

// EventDetailResponse is the full view of a single event
type EventDetailResponse struct {
	*EventResponse
	Description *string               `json:"description,omitempty"`
	CreatedBy   *int64                `json:"created_by,omitempty"`
	Leader      *int64                `json:"leader,omitempty"`
	Location    *location.Location    `json:"location,omitempty"`
	LimitGroups []*LimitGroupResponse `json:"limit_groups"`
}

// LimitGroupResponse represents a limit group of an event
type LimitGroupResponse struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Code *string `json:"code,omitempty"`
}

// RegistrationResponse represents a registration row
type RegistrationResponse struct {
	EventID    int64   `json:"event_id"`
	UserID     int64   `json:"user_id"`
	AddedBy    *int64  `json:"added_by,omitempty"`
	Block      bool    `json:"block"`
	Note       *string `json:"note,omitempty"`
	Feedback   *string `json:"feedback,omitempty"`
	CreatedAt  string  `json:"created_at"`
	CheckinAt  *string `json:"checkin_at,omitempty"`
	CheckoutAt *string `json:"checkout_at,omitempty"`

	Fullname   string  `json:"fullname,omitempty"`
	StudentID  string  `json:"student_id,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	EventTitle string  `json:"event_title,omitempty"`
	EventPlace *string `json:"event_place,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

// ToResponse converts an Event model to an EventResponse DTO
func (e *Event) ToResponse() *EventResponse {
	return &EventResponse{
		ID:                 e.ID,
		Title:              e.Title,
		Place:              e.Place,
		MaximumParticipant: e.MaximumParticipant,
		LocationID:         e.LocationID,
		NumParticipant:     e.NumParticipant,
		CreatedAt:          e.CreatedAt.Format(timeLayout),
		UpdatedAt:          formatTime(e.UpdatedAt),
		StartAt:            formatTime(e.StartAt),
		StopAt:             formatTime(e.StopAt),
		StartRegisterAt:    e.StartRegisterAt.Format(timeLayout),
		StopRegisterAt:     formatTime(e.StopRegisterAt),
		SoonCheckinTime:    e.SoonCheckinTime,
		LateCheckinTime:    e.LateCheckinTime,
		SoonCheckoutTime:   e.SoonCheckoutTime,
		LateCheckoutTime:   e.LateCheckoutTime,
	}
}

// ToResponse converts a View to an EventDetailResponse DTO
func (v *View) ToResponse() *EventDetailResponse {
	resp := &EventDetailResponse{
		EventResponse: v.Event.ToResponse(),
		Location:      v.Location,
		LimitGroups:   make([]*LimitGroupResponse, len(v.LimitGroups)),
	}
	if v.Detail != nil {
		resp.Description = v.Detail.Description
		resp.CreatedBy = v.Detail.CreatedBy
		resp.Leader = v.Detail.Leader
	}
	for i, g := range v.LimitGroups {
		resp.LimitGroups[i] = &LimitGroupResponse{ID: g.ID, Name: g.Name, Code: g.Code}
	}
	return resp
}

// ToResponse converts a Registration model to a RegistrationResponse DTO
func (r *Registration) ToResponse() *RegistrationResponse {
	return &RegistrationResponse{
		EventID:    r.EventID,
		UserID:     r.UserID,
		AddedBy:    r.AddedBy,
		Block:      r.Block,
		Note:       r.Note,
		Feedback:   r.Feedback,
		CreatedAt:  r.CreatedAt.Format(timeLayout),
		CheckinAt:  formatTime(r.CheckinAt),
		CheckoutAt: formatTime(r.CheckoutAt),
		Fullname:   r.Fullname,
		StudentID:  r.StudentID,
		Phone:      r.Phone,
		EventTitle: r.EventTitle,
		EventPlace: r.EventPlace,
	}
}

func registrationResponses(regs []*Registration) []*RegistrationResponse {
	out := make([]*RegistrationResponse, len(regs))
	for i, r := range regs {
		out[i] = r.ToResponse()
	}
	return out
}
