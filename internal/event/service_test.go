package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/internal/location"
	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

type regKey struct{ event, user int64 }

type fakeStore struct {
	events      map[int64]*Event
	details     map[int64]*Detail
	limitGroups map[int64][]int64
	regs        map[regKey]*Registration
	nextID      int64
	txCalls     int

	// mu serializes transactions the way the event row lock does
	mu sync.Mutex
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:      map[int64]*Event{},
		details:     map[int64]*Detail{},
		limitGroups: map[int64][]int64{},
		regs:        map[regKey]*Registration{},
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	return fn(f)
}

func (f *fakeStore) Create(ctx context.Context, req *CreateEventRequest) (*Event, error) {
	f.nextID++
	e := &Event{
		ID:                 f.nextID,
		Title:              req.Title,
		Place:              req.Place,
		MaximumParticipant: req.MaximumParticipant,
		LocationID:         req.LocationID,
		CreatedAt:          time.Now(),
		StartAt:            req.StartAt,
		StopAt:             req.StopAt,
		StartRegisterAt:    time.Now(),
		StopRegisterAt:     req.StopRegisterAt,
	}
	if req.StartRegisterAt != nil {
		e.StartRegisterAt = *req.StartRegisterAt
	}
	f.events[e.ID] = e
	return e, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	n, _ := f.CountActive(ctx, id)
	e.NumParticipant = n
	return e, nil
}

func (f *fakeStore) LockEvent(ctx context.Context, id int64) (*Event, error) { return f.GetByID(ctx, id) }

func (f *fakeStore) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := f.events[id]
	return ok, nil
}

func (f *fakeStore) Search(ctx context.Context, filter Filter, limit, offset int) ([]*Event, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, req *UpdateEventRequest) (*Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	if req.Title != nil {
		e.Title = *req.Title
	}
	if req.MaximumParticipant != nil {
		e.MaximumParticipant = req.MaximumParticipant
	}
	if req.ClearMaximumParticipant {
		e.MaximumParticipant = nil
	}
	if req.LocationID != nil {
		e.LocationID = req.LocationID
	}
	if req.ClearLocation {
		e.LocationID = nil
	}
	if req.StartAt != nil {
		e.StartAt = req.StartAt
	}
	if req.StopAt != nil {
		e.StopAt = req.StopAt
	}
	if req.StartRegisterAt != nil {
		e.StartRegisterAt = *req.StartRegisterAt
	}
	if req.StopRegisterAt != nil {
		e.StopRegisterAt = req.StopRegisterAt
	}
	return e, nil
}

func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) {
	_, ok := f.events[id]
	delete(f.events, id)
	return ok, nil
}

func (f *fakeStore) GetDetail(ctx context.Context, eventID int64) (*Detail, error) {
	return f.details[eventID], nil
}

func (f *fakeStore) UpsertDetail(ctx context.Context, d *Detail) error {
	cur, ok := f.details[d.EventID]
	if !ok {
		f.details[d.EventID] = d
		return nil
	}
	if d.Description != nil {
		cur.Description = d.Description
	}
	if d.Leader != nil {
		cur.Leader = d.Leader
	}
	return nil
}

func (f *fakeStore) LimitGroups(ctx context.Context, eventID int64) ([]*LimitGroup, error) {
	var out []*LimitGroup
	for _, id := range f.limitGroups[eventID] {
		out = append(out, &LimitGroup{ID: id})
	}
	return out, nil
}

func (f *fakeStore) LimitGroupIDs(ctx context.Context, eventID int64) ([]int64, error) {
	return f.limitGroups[eventID], nil
}

func (f *fakeStore) AddLimitGroups(ctx context.Context, eventID int64, groupIDs []int64) error {
	for _, id := range groupIDs {
		present := false
		for _, have := range f.limitGroups[eventID] {
			present = present || have == id
		}
		if !present {
			f.limitGroups[eventID] = append(f.limitGroups[eventID], id)
		}
	}
	return nil
}

func (f *fakeStore) RemoveLimitGroup(ctx context.Context, eventID, groupID int64) error {
	kept := f.limitGroups[eventID][:0]
	for _, id := range f.limitGroups[eventID] {
		if id != groupID {
			kept = append(kept, id)
		}
	}
	f.limitGroups[eventID] = kept
	return nil
}

func (f *fakeStore) GetRegistration(ctx context.Context, eventID, userID int64) (*Registration, error) {
	return f.regs[regKey{eventID, userID}], nil
}

func (f *fakeStore) LockRegistration(ctx context.Context, eventID, userID int64) (*Registration, error) {
	return f.GetRegistration(ctx, eventID, userID)
}

func (f *fakeStore) CountActive(ctx context.Context, eventID int64) (int, error) {
	n := 0
	for k, r := range f.regs {
		if k.event == eventID && !r.Block {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateRegistration(ctx context.Context, reg *Registration) (*Registration, error) {
	reg.CreatedAt = time.Now()
	f.regs[regKey{reg.EventID, reg.UserID}] = reg
	return reg, nil
}

func (f *fakeStore) Block(ctx context.Context, eventID, userID int64, note *string) (*Registration, error) {
	reg, ok := f.regs[regKey{eventID, userID}]
	if !ok {
		reg = &Registration{EventID: eventID, UserID: userID, CreatedAt: time.Now()}
		f.regs[regKey{eventID, userID}] = reg
	}
	reg.Block = true
	reg.Note = note
	return reg, nil
}

func (f *fakeStore) DeleteRegistration(ctx context.Context, eventID, userID int64) error {
	delete(f.regs, regKey{eventID, userID})
	return nil
}

func (f *fakeStore) SetFeedback(ctx context.Context, eventID, userID int64, content string) error {
	f.regs[regKey{eventID, userID}].Feedback = &content
	return nil
}

func (f *fakeStore) Participants(ctx context.Context, eventID int64) ([]*Registration, error) {
	var out []*Registration
	for k, r := range f.regs {
		if k.event == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) RegistrationsOfUser(ctx context.Context, userID int64, eventID *int64) ([]*Registration, error) {
	var out []*Registration
	for k, r := range f.regs {
		if k.user == userID && (eventID == nil || *eventID == k.event) {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeMembers answers membership from a fixed set of (user, group) pairs
type fakeMembers map[int64][]int64

func (m fakeMembers) HasApprovedMemberIn(ctx context.Context, userID int64, groupIDs []int64) (bool, error) {
	for _, have := range m[userID] {
		for _, want := range groupIDs {
			if have == want {
				return true, nil
			}
		}
	}
	return false, nil
}

type fakeLocations map[int64]*location.Location

func (l fakeLocations) GetByID(ctx context.Context, id int64) (*location.Location, error) {
	loc, ok := l[id]
	if !ok {
		return nil, location.ErrLocationNotFound
	}
	return loc, nil
}

func newTestService() (*Service, *fakeStore, fakeMembers) {
	store := newFakeStore()
	members := fakeMembers{}
	locations := fakeLocations{7: {ID: 7, Name: "Hall A", Radius: 50}}
	return NewService(store, members, locations, zap.NewNop()), store, members
}

func intPtr(v int) *int { return &v }

func createEvent(t *testing.T, svc *Service, req *CreateEventRequest) *Event {
	t.Helper()
	e, err := svc.Create(context.Background(), 1, req)
	require.NoError(t, err)
	return e
}

func TestCreate_StoresDetailAndLimitGroupsTogether(t *testing.T) {
	svc, store, _ := newTestService()
	desc := "Orientation day"
	loc := int64(7)

	e := createEvent(t, svc, &CreateEventRequest{Title: "Welcome", Description: &desc, LocationID: &loc, LimitGroups: []int64{3, 4}})
	assert.Equal(t, 1, store.txCalls)
	assert.Equal(t, []int64{3, 4}, store.limitGroups[e.ID])

	v, err := svc.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Orientation day", *v.Detail.Description)
	assert.Equal(t, int64(1), *v.Detail.CreatedBy)
	assert.Equal(t, "Hall A", v.Location.Name)
	assert.Len(t, v.LimitGroups, 2)
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stop := start.Add(-time.Hour)

	_, err := svc.Create(context.Background(), 1, &CreateEventRequest{
		Title:              " ",
		MaximumParticipant: intPtr(-1),
		StartAt:            &start,
		StopAt:             &stop,
	})

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.Validation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "title")
	assert.Contains(t, appErr.Fields, "maximum_participant")
	assert.Contains(t, appErr.Fields, "stop_at")
}

func TestGetByID_MissingLocationIsIgnored(t *testing.T) {
	svc, _, _ := newTestService()
	loc := int64(99)
	e := createEvent(t, svc, &CreateEventRequest{Title: "Welcome", LocationID: &loc})

	v, err := svc.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Nil(t, v.Location)

	_, err = svc.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestRegister_CapacityCountsOnlyUnblocked(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc, &CreateEventRequest{Title: "Workshop", MaximumParticipant: intPtr(1)})

	_, err := svc.Register(ctx, e.ID, 10, nil, nil)
	require.NoError(t, err)

	_, err = svc.Register(ctx, e.ID, 11, nil, nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, apperr.LimitExceeded, apperr.KindOf(err))

	_, err = svc.Block(ctx, e.ID, 10, nil)
	require.NoError(t, err)

	reg, err := svc.Register(ctx, e.ID, 11, nil, nil)
	require.NoError(t, err)
	assert.False(t, reg.Block)

	got, err := svc.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Event.NumParticipant)
}

func TestRegister_BlockedUserCannotReregister(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc, &CreateEventRequest{Title: "Workshop"})

	reason := "disruptive"
	reg, err := svc.Block(ctx, e.ID, 10, &reason)
	require.NoError(t, err)
	assert.True(t, reg.Block)

	_, err = svc.Register(ctx, e.ID, 10, nil, nil)
	assert.ErrorIs(t, err, ErrBlockedFromEvent)

	assert.ErrorIs(t, svc.Unregister(ctx, e.ID, 10), ErrCannotLeaveBlocked)
	assert.ErrorIs(t, svc.Feedback(ctx, e.ID, 10, "great"), ErrBlockedFromFeedback)
}

func TestRegister_Twice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc, &CreateEventRequest{Title: "Workshop"})

	_, err := svc.Register(ctx, e.ID, 10, nil, nil)
	require.NoError(t, err)

	_, err = svc.Register(ctx, e.ID, 10, nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Register(ctx, 404, 10, nil, nil)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestRegister_LimitGroups(t *testing.T) {
	svc, _, members := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc, &CreateEventRequest{Title: "Faculty night", LimitGroups: []int64{3}})

	_, err := svc.Register(ctx, e.ID, 10, nil, nil)
	assert.ErrorIs(t, err, ErrNotInAllowedGroup)

	members[10] = []int64{3}
	_, err = svc.Register(ctx, e.ID, 10, nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveLimitGroup(ctx, e.ID, 3))
	_, err = svc.Register(ctx, e.ID, 11, nil, nil)
	require.NoError(t, err)
}

func TestRegister_ByManagerKeepsNote(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc, &CreateEventRequest{Title: "Workshop"})

	manager := int64(1)
	note := "late signup"
	reg, err := svc.Register(ctx, e.ID, 10, &manager, &note)
	require.NoError(t, err)
	assert.Equal(t, manager, *reg.AddedBy)
	assert.Equal(t, note, *reg.Note)
}

func TestUnregisterAndFeedback(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc, &CreateEventRequest{Title: "Workshop"})

	assert.ErrorIs(t, svc.Unregister(ctx, e.ID, 10), ErrNotRegistered)
	assert.ErrorIs(t, svc.Feedback(ctx, e.ID, 10, "nice"), ErrNotRegistered)

	_, err := svc.Register(ctx, e.ID, 10, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Feedback(ctx, e.ID, 10, "nice"))
	assert.Equal(t, "nice", *store.regs[regKey{e.ID, 10}].Feedback)

	require.NoError(t, svc.Unregister(ctx, e.ID, 10))
	_, err = svc.RegisterStatus(ctx, e.ID, 10)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestUpdate_ValidatesAgainstCurrentWindows(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stop := start.Add(2 * time.Hour)
	e := createEvent(t, svc, &CreateEventRequest{Title: "Workshop", StartAt: &start, StopAt: &stop})

	early := start.Add(-time.Hour)
	_, err := svc.Update(ctx, e.ID, &UpdateEventRequest{StopAt: &early})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	title := "Workshop II"
	desc := "Second run"
	updated, err := svc.Update(ctx, e.ID, &UpdateEventRequest{Title: &title, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	v, err := svc.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, desc, *v.Detail.Description)

	_, err = svc.Update(ctx, 404, &UpdateEventRequest{Title: &title})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestLimitGroupsAndParticipants_MissingEvent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.AddLimitGroup(ctx, 404, 3), ErrEventNotFound)
	_, err := svc.Participants(ctx, 404)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 404), ErrEventNotFound)
}

func TestRegister_ConcurrentAttemptsRespectCapacity(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	e := createEvent(t, svc, &CreateEventRequest{Title: "Seminar", MaximumParticipant: intPtr(1)})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, e.ID, int64(20+i), nil, nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	}
	assert.Equal(t, 1, succeeded)

	participants, err := svc.Participants(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestUpdate_ClearsCapacityAndLocation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	loc := int64(7)
	e := createEvent(t, svc, &CreateEventRequest{Title: "Seminar", MaximumParticipant: intPtr(1), LocationID: &loc})

	_, err := svc.Update(ctx, e.ID, &UpdateEventRequest{MaximumParticipant: intPtr(5), ClearMaximumParticipant: true})
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	updated, err := svc.Update(ctx, e.ID, &UpdateEventRequest{ClearMaximumParticipant: true, ClearLocation: true})
	require.NoError(t, err)
	assert.Nil(t, updated.MaximumParticipant)
	assert.Nil(t, updated.LocationID)

	_, err = svc.Register(ctx, e.ID, 20, nil, nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, e.ID, 21, nil, nil)
	require.NoError(t, err)
}
