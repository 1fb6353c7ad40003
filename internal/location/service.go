package location

import (
	"context"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/response"
)

var ErrLocationNotFound = apperr.New(apperr.NotFound, "location not found")

// Store is the persistence the location service depends on
type Store interface {
	Create(ctx context.Context, req *CreateLocationRequest) (*Location, error)
	GetByID(ctx context.Context, id int64) (*Location, error)
	Search(ctx context.Context, keyword string, limit, offset int) ([]*Location, int, error)
	Update(ctx context.Context, id int64, req *UpdateLocationRequest) (*Location, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Service handles location business logic
type Service struct {
	store Store
}

// NewService creates a new location service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create validates and stores a new location
func (s *Service) Create(ctx context.Context, req *CreateLocationRequest) (*Location, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.Create(ctx, req)
}

// GetByID retrieves a location by ID
func (s *Service) GetByID(ctx context.Context, id int64) (*Location, error) {
	l, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrLocationNotFound
	}
	return l, nil
}

// Search retrieves a paginated list of locations
func (s *Service) Search(ctx context.Context, keyword string, page, perPage int) ([]*Location, int, error) {
	page, perPage = response.Normalize(page, perPage)
	return s.store.Search(ctx, keyword, perPage, (page-1)*perPage)
}

// Update modifies a location
func (s *Service) Update(ctx context.Context, id int64, req *UpdateLocationRequest) (*Location, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	l, err := s.store.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrLocationNotFound
	}
	return l, nil
}

// Delete removes a location. Events pointing at it keep existing without one.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLocationNotFound
	}
	return nil
}
