// Package checkin implements attendance proof: participants upload a photo
// per attempt and managers accept or reject it.
package checkin

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/internal/storage"
	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/approval"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// checkinDir is the blob directory holding per-user check-in folders
const checkinDir = "checkins"

// Common errors
var (
	ErrEventNotFound   = apperr.New(apperr.NotFound, "event not found")
	ErrUserNotFound    = apperr.New(apperr.NotFound, "user not found")
	ErrCheckinNotFound = apperr.New(apperr.NotFound, "check-in not found")

	ErrNotRegistered    = apperr.New(apperr.InvalidState, "you have not registered for this event")
	ErrBlockedFromEvent = apperr.New(apperr.Forbidden, "you have been blocked from this event")
	ErrLimitExceeded    = apperr.New(apperr.LimitExceeded, "you have used all your check-in attempts for this event")
	ErrPendingReview    = apperr.New(apperr.InvalidState, "your previous check-in is still waiting for review")
	ErrAlreadyAccepted  = apperr.New(apperr.InvalidState, "you have already checked in to this event")
)

// Store is the persistence the check-in service depends on
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error

	LockRegistration(ctx context.Context, eventID, userID int64) (registered, blocked bool, err error)
	Attempts(ctx context.Context, eventID, userID int64) ([]approval.State, error)
	Create(ctx context.Context, c *CheckinImage) (*CheckinImage, error)
	Review(ctx context.Context, id int64, state approval.State, score *float64) (*CheckinImage, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]*CheckinImage, int, error)
}

// EventLookup reports whether an event exists
type EventLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Filter narrows check-in listings
type Filter struct {
	UserID  *int64
	EventID *int64
	State   *approval.State
}

// Options configures check-in submissions
type Options struct {
	// Limit is the number of attempts allowed per user and event
	Limit        int
	ImageLimitKB int
}

// Service handles check-in submission and review
type Service struct {
	store    Store
	events   EventLookup
	uploader *storage.Uploader
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new check-in service
func NewService(store Store, events EventLookup, uploader *storage.Uploader, opts Options, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		events:   events,
		uploader: uploader,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// blobPath builds checkins/<uid>/student_<uid>.event_<eid>.<uuid>.<timestamp>.jpg
func blobPath(userID, eventID int64, now time.Time) string {
	name := storage.NewFilename(fmt.Sprintf("student_%d.event_%d", userID, eventID), now)
	return path.Join(checkinDir, fmt.Sprint(userID), name)
}

// Checkin submits a new attempt for userID at eventID.
//
// The registration row stays locked while the attempt rules are checked and
// the image is stored, so two uploads from the same user cannot both pass the
// attempt limit. The file is written before the row; a failed insert or a
// failed commit removes it again.
func (s *Service) Checkin(ctx context.Context, userID, eventID int64, data []byte) (*CheckinImage, error) {
	ok, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEventNotFound
	}

	blob := blobPath(userID, eventID, s.now())
	var created *CheckinImage
	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := s.checkEligible(ctx, tx, eventID, userID); err != nil {
			return err
		}
		if err := storage.ValidateImage(data, s.opts.ImageLimitKB); err != nil {
			return err
		}
		return s.uploader.Upload(ctx, blob, data, func(ctx context.Context) error {
			c, err := tx.Create(ctx, &CheckinImage{Path: blob, UserID: userID, EventID: eventID})
			if err != nil {
				return err
			}
			created = c
			return nil
		})
	})
	if err != nil {
		if created != nil {
			s.uploader.Discard(ctx, blob)
		}
		return nil, err
	}

	s.logger.Info("check-in submitted",
		zap.Int64("checkin_id", created.ID),
		zap.Int64("event_id", eventID),
		zap.Int64("user_id", userID),
	)
	return created, nil
}

// checkEligible applies the attempt rules in order: registered, not blocked,
// under the attempt limit, nothing pending, nothing accepted
func (s *Service) checkEligible(ctx context.Context, tx Store, eventID, userID int64) error {
	registered, blocked, err := tx.LockRegistration(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !registered {
		return ErrNotRegistered
	}
	if blocked {
		return ErrBlockedFromEvent
	}

	states, err := tx.Attempts(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if len(states) >= s.opts.Limit {
		return apperr.Detail(ErrLimitExceeded, "you can check in at most %d times for this event", s.opts.Limit)
	}
	for _, st := range states {
		if !st.Resolved() {
			return ErrPendingReview
		}
	}
	for _, st := range states {
		if st == approval.Approved {
			return ErrAlreadyAccepted
		}
	}
	return nil
}

// Approve accepts a check-in, optionally scoring it
func (s *Service) Approve(ctx context.Context, id int64, score *float64) (*CheckinImage, error) {
	return s.review(ctx, id, approval.Approved, score)
}

// Reject refuses a check-in, optionally scoring it
func (s *Service) Reject(ctx context.Context, id int64, score *float64) (*CheckinImage, error) {
	return s.review(ctx, id, approval.Rejected, score)
}

func (s *Service) review(ctx context.Context, id int64, state approval.State, score *float64) (*CheckinImage, error) {
	if score != nil && (*score < 0 || *score > 1) {
		return nil, apperr.Invalid(map[string]string{"score": "score must be between 0 and 1"})
	}

	c, err := s.store.Review(ctx, id, state, score)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCheckinNotFound
	}

	s.logger.Info("check-in reviewed", zap.Int64("checkin_id", id), zap.String("state", string(state)))
	return c, nil
}

// List retrieves a paginated list of check-ins
func (s *Service) List(ctx context.Context, filter Filter, page, perPage int) ([]*CheckinImage, int, error) {
	page, perPage = response.Normalize(page, perPage)
	return s.store.List(ctx, filter, perPage, (page-1)*perPage)
}
