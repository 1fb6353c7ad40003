package event

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/internal/location"
	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Common errors
var (
	ErrEventNotFound    = apperr.New(apperr.NotFound, "event not found")
	ErrUserNotFound     = apperr.New(apperr.NotFound, "user not found")
	ErrGroupNotFound    = apperr.New(apperr.NotFound, "group not found")
	ErrManagerNotFound  = apperr.New(apperr.NotFound, "manager not found")
	ErrLocationNotFound = apperr.New(apperr.NotFound, "location not found")

	ErrAlreadyRegistered   = apperr.New(apperr.Conflict, "you have already registered for this event")
	ErrBlockedFromEvent    = apperr.New(apperr.Forbidden, "you have been blocked from this event")
	ErrCapacityExceeded    = apperr.New(apperr.LimitExceeded, "the event has reached its maximum number of participants")
	ErrNotInAllowedGroup   = apperr.New(apperr.Forbidden, "this event is only open to members of its groups")
	ErrNotRegistered       = apperr.New(apperr.InvalidState, "you have not registered for this event")
	ErrCannotLeaveBlocked  = apperr.New(apperr.Forbidden, "you have been blocked and cannot leave this event")
	ErrBlockedFromFeedback = apperr.New(apperr.Forbidden, "you have been blocked and cannot send feedback for this event")
)

// Store is the persistence the event service depends on
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error

	Create(ctx context.Context, req *CreateEventRequest) (*Event, error)
	GetByID(ctx context.Context, id int64) (*Event, error)
	LockEvent(ctx context.Context, id int64) (*Event, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Search(ctx context.Context, filter Filter, limit, offset int) ([]*Event, int, error)
	Update(ctx context.Context, id int64, req *UpdateEventRequest) (*Event, error)
	Delete(ctx context.Context, id int64) (bool, error)
	GetDetail(ctx context.Context, eventID int64) (*Detail, error)
	UpsertDetail(ctx context.Context, d *Detail) error

	LimitGroups(ctx context.Context, eventID int64) ([]*LimitGroup, error)
	LimitGroupIDs(ctx context.Context, eventID int64) ([]int64, error)
	AddLimitGroups(ctx context.Context, eventID int64, groupIDs []int64) error
	RemoveLimitGroup(ctx context.Context, eventID, groupID int64) error

	GetRegistration(ctx context.Context, eventID, userID int64) (*Registration, error)
	LockRegistration(ctx context.Context, eventID, userID int64) (*Registration, error)
	CountActive(ctx context.Context, eventID int64) (int, error)
	CreateRegistration(ctx context.Context, reg *Registration) (*Registration, error)
	Block(ctx context.Context, eventID, userID int64, note *string) (*Registration, error)
	DeleteRegistration(ctx context.Context, eventID, userID int64) error
	SetFeedback(ctx context.Context, eventID, userID int64, content string) error
	Participants(ctx context.Context, eventID int64) ([]*Registration, error)
	RegistrationsOfUser(ctx context.Context, userID int64, eventID *int64) ([]*Registration, error)
}

// MembershipChecker answers the limit group question for registrations
type MembershipChecker interface {
	HasApprovedMemberIn(ctx context.Context, userID int64, groupIDs []int64) (bool, error)
}

// LocationLookup resolves the location attached to an event
type LocationLookup interface {
	GetByID(ctx context.Context, id int64) (*location.Location, error)
}

// Filter narrows event searches
type Filter struct {
	Keyword string
	From    *time.Time
	To      *time.Time
}

// View is an event with everything shown on its detail page
type View struct {
	Event       *Event
	Detail      *Detail
	Location    *location.Location
	LimitGroups []*LimitGroup
}

// Service handles the event registry and registration rules
type Service struct {
	store     Store
	members   MembershipChecker
	locations LocationLookup
	logger    *zap.Logger
}

// NewService creates a new event service
func NewService(store Store, members MembershipChecker, locations LocationLookup, logger *zap.Logger) *Service {
	return &Service{store: store, members: members, locations: locations, logger: logger}
}

// Create stores an event with its detail and initial limit groups in one
// transaction. createdBy is the manager creating it.
func (s *Service) Create(ctx context.Context, createdBy int64, req *CreateEventRequest) (*Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var created *Event
	err := s.store.WithTx(ctx, func(tx Store) error {
		e, err := tx.Create(ctx, req)
		if err != nil {
			return err
		}
		detail := &Detail{EventID: e.ID, Description: req.Description, CreatedBy: &createdBy, Leader: req.Leader}
		if err := tx.UpsertDetail(ctx, detail); err != nil {
			return err
		}
		if err := tx.AddLimitGroups(ctx, e.ID, req.LimitGroups); err != nil {
			return err
		}
		created = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event created", zap.Int64("event_id", created.ID), zap.Int64("created_by", createdBy))
	return created, nil
}

// GetByID retrieves an event with its detail, location and limit groups
func (s *Service) GetByID(ctx context.Context, id int64) (*View, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEventNotFound
	}

	v := &View{Event: e}
	if v.Detail, err = s.store.GetDetail(ctx, id); err != nil {
		return nil, err
	}
	if v.LimitGroups, err = s.store.LimitGroups(ctx, id); err != nil {
		return nil, err
	}
	if e.LocationID != nil {
		l, err := s.locations.GetByID(ctx, *e.LocationID)
		if err != nil && apperr.KindOf(err) != apperr.NotFound {
			return nil, err
		}
		v.Location = l
	}
	return v, nil
}

// Exists reports whether an event exists
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.store.Exists(ctx, id)
}

// Search lists events matching filter, newest first
func (s *Service) Search(ctx context.Context, filter Filter, page, perPage int) ([]*Event, int, error) {
	page, perPage = response.Normalize(page, perPage)
	return s.store.Search(ctx, filter, perPage, (page-1)*perPage)
}

// Update changes event fields and upserts the detail
func (s *Service) Update(ctx context.Context, id int64, req *UpdateEventRequest) (*Event, error) {
	var updated *Event
	err := s.store.WithTx(ctx, func(tx Store) error {
		current, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrEventNotFound
		}
		if err := req.Validate(current); err != nil {
			return err
		}

		if updated, err = tx.Update(ctx, id, req); err != nil {
			return err
		}
		if updated == nil {
			return ErrEventNotFound
		}
		if req.touchesDetail() {
			return tx.UpsertDetail(ctx, &Detail{EventID: id, Description: req.Description, Leader: req.Leader})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an event; registrations, limit groups and check-ins cascade
func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEventNotFound
	}
	s.logger.Info("event deleted", zap.Int64("event_id", id))
	return nil
}

// Register registers userID for eventID.
//
// The event row is locked for the duration of the checks so that concurrent
// registrations cannot both pass the capacity check. Checks run in order:
// event exists, not already registered (blocked users get a distinct error),
// capacity counting non-blocked registrations, limit group membership.
func (s *Service) Register(ctx context.Context, eventID, userID int64, addedBy *int64, note *string) (*Registration, error) {
	var created *Registration
	err := s.store.WithTx(ctx, func(tx Store) error {
		e, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrEventNotFound
		}

		existing, err := tx.GetRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Block {
				return ErrBlockedFromEvent
			}
			return ErrAlreadyRegistered
		}

		if e.MaximumParticipant != nil {
			n, err := tx.CountActive(ctx, eventID)
			if err != nil {
				return err
			}
			if n >= *e.MaximumParticipant {
				return ErrCapacityExceeded
			}
		}

		groupIDs, err := tx.LimitGroupIDs(ctx, eventID)
		if err != nil {
			return err
		}
		if len(groupIDs) > 0 {
			ok, err := s.members.HasApprovedMemberIn(ctx, userID, groupIDs)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotInAllowedGroup
			}
		}

		created, err = tx.CreateRegistration(ctx, &Registration{EventID: eventID, UserID: userID, AddedBy: addedBy, Note: note})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event registered",
		zap.Int64("event_id", eventID),
		zap.Int64("user_id", userID),
		zap.Bool("by_manager", addedBy != nil),
	)
	return created, nil
}

// Unregister deletes a registration. Blocked users cannot leave.
func (s *Service) Unregister(ctx context.Context, eventID, userID int64) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		reg, err := tx.LockRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if reg == nil {
			return ErrNotRegistered
		}
		if reg.Block {
			return ErrCannotLeaveBlocked
		}
		return tx.DeleteRegistration(ctx, eventID, userID)
	})
}

// Feedback stores a participant's feedback. Blocked users cannot send any.
func (s *Service) Feedback(ctx context.Context, eventID, userID int64, content string) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		reg, err := tx.LockRegistration(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if reg == nil {
			return ErrNotRegistered
		}
		if reg.Block {
			return ErrBlockedFromFeedback
		}
		return tx.SetFeedback(ctx, eventID, userID, content)
	})
}

// Block bars userID from eventID, creating the registration if needed. No
// eligibility rule applies.
func (s *Service) Block(ctx context.Context, eventID, userID int64, note *string) (*Registration, error) {
	reg, err := s.store.Block(ctx, eventID, userID, note)
	if err != nil {
		return nil, err
	}
	s.logger.Info("participant blocked", zap.Int64("event_id", eventID), zap.Int64("user_id", userID))
	return reg, nil
}

// AddLimitGroup restricts registration to members of groupID. Adding a group
// twice is a no-op.
func (s *Service) AddLimitGroup(ctx context.Context, eventID, groupID int64) error {
	ok, err := s.store.Exists(ctx, eventID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEventNotFound
	}
	return s.store.AddLimitGroups(ctx, eventID, []int64{groupID})
}

// RemoveLimitGroup lifts a restriction if present
func (s *Service) RemoveLimitGroup(ctx context.Context, eventID, groupID int64) error {
	return s.store.RemoveLimitGroup(ctx, eventID, groupID)
}

// Participants lists everyone registered for an event, blocked included
func (s *Service) Participants(ctx context.Context, eventID int64) ([]*Registration, error) {
	ok, err := s.store.Exists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEventNotFound
	}
	return s.store.Participants(ctx, eventID)
}

// RegistrationsOfUser lists the events a user registered for
func (s *Service) RegistrationsOfUser(ctx context.Context, userID int64, eventID *int64) ([]*Registration, error) {
	return s.store.RegistrationsOfUser(ctx, userID, eventID)
}

// RegisterStatus returns the caller's registration for an event
func (s *Service) RegisterStatus(ctx context.Context, eventID, userID int64) (*Registration, error) {
	reg, err := s.store.GetRegistration(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrNotRegistered
	}
	return reg, nil
}

// ExportParticipants renders the participant list of an event as a workbook
func (s *Service) ExportParticipants(ctx context.Context, eventID int64) (*Event, []byte, error) {
	e, err := s.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if e == nil {
		return nil, nil, ErrEventNotFound
	}
	regs, err := s.store.Participants(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	data, err := participantsWorkbook(e, regs)
	if err != nil {
		return nil, nil, err
	}
	return e, data, nil
}
