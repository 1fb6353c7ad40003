package group

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/approval"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

// Common errors
var (
	ErrGroupNotFound   = apperr.New(apperr.NotFound, "group not found")
	ErrUserNotFound    = apperr.New(apperr.NotFound, "user not found")
	ErrManagerNotFound = apperr.New(apperr.NotFound, "manager not found")
	ErrAlreadyMember   = apperr.New(apperr.Conflict, "you are already a member of this group")
	ErrCodeConflict    = apperr.New(apperr.Conflict, "you already belong to a group with the same code")
)

// Store is the persistence the group service depends on
type Store interface {
	WithTx(ctx context.Context, fn func(Store) error) error

	Create(ctx context.Context, req *CreateGroupRequest) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	Search(ctx context.Context, keyword string, limit, offset int) ([]*Group, int, error)
	Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error)
	Delete(ctx context.Context, id int64) (bool, error)

	LockUser(ctx context.Context, userID int64) (bool, error)
	GetMembership(ctx context.Context, groupID, userID int64) (*Membership, error)
	FindActiveByCode(ctx context.Context, userID int64, code string, excludeGroupID int64) (*Group, error)
	CreateMembership(ctx context.Context, m *Membership) (*Membership, error)
	SetApproval(ctx context.Context, groupID, userID int64, state approval.State, at *time.Time) (bool, error)
	DeleteMembership(ctx context.Context, groupID, userID int64) error
	ListMembers(ctx context.Context, groupID int64) ([]*Membership, error)
	ListOfUser(ctx context.Context, userID int64) ([]*Membership, error)
	HasApprovedMember(ctx context.Context, userID int64, groupIDs []int64) (bool, error)
}

// Service handles group administration and membership rules
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new group service
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Create creates a new group
func (s *Service) Create(ctx context.Context, req *CreateGroupRequest) (*Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, req)
}

// GetByID retrieves a group by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Group, error) {
	g, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// Search retrieves a paginated list of groups matching keyword
func (s *Service) Search(ctx context.Context, keyword string, page, perPage int) ([]*Group, int, error) {
	page, perPage = response.Normalize(page, perPage)
	return s.store.Search(ctx, keyword, perPage, (page-1)*perPage)
}

// Update modifies a group; nil fields are left unchanged
func (s *Service) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	g, err := s.store.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return g, nil
}

// Delete removes a group together with its memberships
func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGroupNotFound
	}
	return nil
}

// Join adds userID to groupID.
//
// The membership is approved immediately when the group does not require
// approval. Otherwise it starts in preApprove: Pending for self-service joins,
// the manager's choice when a manager adds the student. addedBy is nil for
// self-service joins.
func (s *Service) Join(ctx context.Context, groupID, userID int64, addedBy *int64, preApprove approval.State) (*Membership, error) {
	var created *Membership
	err := s.store.WithTx(ctx, func(tx Store) error {
		g, err := tx.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if g == nil {
			return ErrGroupNotFound
		}

		ok, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}

		existing, err := tx.GetMembership(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyMember
		}

		if g.Code != nil {
			other, err := tx.FindActiveByCode(ctx, userID, *g.Code, groupID)
			if err != nil {
				return err
			}
			if other != nil {
				return apperr.Detail(ErrCodeConflict, "you cannot join this group while you are a member of group %q", other.Name)
			}
		}

		m := &Membership{GroupID: groupID, UserID: userID, State: preApprove, AddedBy: addedBy}
		if !g.RequireApprove {
			m.State = approval.Approved
		}
		if m.State == approval.Approved {
			now := s.now()
			m.ApprovedAt = &now
		}

		created, err = tx.CreateMembership(ctx, m)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("group joined",
		zap.Int64("group_id", groupID),
		zap.Int64("user_id", userID),
		zap.String("state", string(created.State)),
	)
	return created, nil
}

// Approve marks a membership approved. Missing groups or memberships are ignored.
func (s *Service) Approve(ctx context.Context, groupID, userID int64) error {
	now := s.now()
	return s.review(ctx, groupID, userID, approval.Approved, &now)
}

// Reject marks a membership rejected. Missing groups or memberships are ignored.
func (s *Service) Reject(ctx context.Context, groupID, userID int64) error {
	return s.review(ctx, groupID, userID, approval.Rejected, nil)
}

func (s *Service) review(ctx context.Context, groupID, userID int64, state approval.State, at *time.Time) error {
	ok, err := s.store.SetApproval(ctx, groupID, userID, state, at)
	if err != nil {
		return err
	}
	if ok {
		s.logger.Info("membership reviewed",
			zap.Int64("group_id", groupID),
			zap.Int64("user_id", userID),
			zap.String("state", string(state)),
		)
	}
	return nil
}

// Remove deletes a membership in any state. Removing an absent membership is not an error.
func (s *Service) Remove(ctx context.Context, groupID, userID int64) error {
	return s.store.DeleteMembership(ctx, groupID, userID)
}

// Members lists the memberships of a group
func (s *Service) Members(ctx context.Context, groupID int64) ([]*Membership, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// GroupsOfUser lists the memberships a user holds in any state
func (s *Service) GroupsOfUser(ctx context.Context, userID int64) ([]*Membership, error) {
	return s.store.ListOfUser(ctx, userID)
}

// HasApprovedMember reports whether userID is an approved member of groupID
func (s *Service) HasApprovedMember(ctx context.Context, groupID, userID int64) (bool, error) {
	return s.store.HasApprovedMember(ctx, userID, []int64{groupID})
}

// HasApprovedMemberIn reports whether userID is an approved member of at least
// one of groupIDs
func (s *Service) HasApprovedMemberIn(ctx context.Context, userID int64, groupIDs []int64) (bool, error) {
	return s.store.HasApprovedMember(ctx, userID, groupIDs)
}
