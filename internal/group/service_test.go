package group

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
	"github.com/fkhayef/eventcheckin/pkg/approval"
)

type memberKey struct{ group, user int64 }

type fakeStore struct {
	groups  map[int64]*Group
	users   map[int64]bool
	members map[memberKey]*Membership
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:  map[int64]*Group{},
		users:   map[int64]bool{1: true, 2: true},
		members: map[memberKey]*Membership{},
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(Store) error) error { return fn(f) }

func (f *fakeStore) Create(ctx context.Context, req *CreateGroupRequest) (*Group, error) {
	f.nextID++
	g := &Group{ID: f.nextID, Name: req.Name, Code: req.Code, RequireApprove: req.RequireApprove, CreatedAt: time.Now()}
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*Group, error) { return f.groups[id], nil }

func (f *fakeStore) Search(ctx context.Context, keyword string, limit, offset int) ([]*Group, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, nil
	}
	if req.Name != nil {
		g.Name = *req.Name
	}
	return g, nil
}

func (f *fakeStore) Delete(ctx context.Context, id int64) (bool, error) {
	_, ok := f.groups[id]
	delete(f.groups, id)
	return ok, nil
}

func (f *fakeStore) LockUser(ctx context.Context, userID int64) (bool, error) { return f.users[userID], nil }

func (f *fakeStore) GetMembership(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return f.members[memberKey{groupID, userID}], nil
}

func (f *fakeStore) FindActiveByCode(ctx context.Context, userID int64, code string, excludeGroupID int64) (*Group, error) {
	for k, m := range f.members {
		g := f.groups[k.group]
		if k.user != userID || g.ID == excludeGroupID || g.Code == nil || *g.Code != code {
			continue
		}
		if m.State != approval.Rejected {
			return g, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateMembership(ctx context.Context, m *Membership) (*Membership, error) {
	m.JoinedAt = time.Now()
	f.members[memberKey{m.GroupID, m.UserID}] = m
	return m, nil
}

func (f *fakeStore) SetApproval(ctx context.Context, groupID, userID int64, state approval.State, at *time.Time) (bool, error) {
	m, ok := f.members[memberKey{groupID, userID}]
	if !ok {
		return false, nil
	}
	m.State, m.ApprovedAt = state, at
	return true, nil
}

func (f *fakeStore) DeleteMembership(ctx context.Context, groupID, userID int64) error {
	delete(f.members, memberKey{groupID, userID})
	return nil
}

func (f *fakeStore) ListMembers(ctx context.Context, groupID int64) ([]*Membership, error) {
	var out []*Membership
	for k, m := range f.members {
		if k.group == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListOfUser(ctx context.Context, userID int64) ([]*Membership, error) {
	var out []*Membership
	for k, m := range f.members {
		if k.user == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) HasApprovedMember(ctx context.Context, userID int64, groupIDs []int64) (bool, error) {
	for _, id := range groupIDs {
		if m, ok := f.members[memberKey{id, userID}]; ok && m.State == approval.Approved {
			return true, nil
		}
	}
	return false, nil
}

func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	return NewService(store, zap.NewNop()), store
}

func mustGroup(t *testing.T, svc *Service, name string, code *string, requireApprove bool) *Group {
	t.Helper()
	g, err := svc.Create(context.Background(), &CreateGroupRequest{Name: name, Code: code, RequireApprove: requireApprove})
	require.NoError(t, err)
	return g
}

func TestJoin_OpenGroupApprovesImmediately(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	g := mustGroup(t, svc, "Chess club", nil, false)

	m, err := svc.Join(ctx, g.ID, 1, nil, approval.Pending)
	require.NoError(t, err)
	assert.Equal(t, approval.Approved, m.State)
	assert.NotNil(t, m.ApprovedAt)

	ok, err := svc.HasApprovedMember(ctx, g.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJoin_ApprovalRequiredStaysPending(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	g := mustGroup(t, svc, "Volunteers", nil, true)

	m, err := svc.Join(ctx, g.ID, 1, nil, approval.Pending)
	require.NoError(t, err)
	assert.Equal(t, approval.Pending, m.State)
	assert.Nil(t, m.ApprovedAt)

	ok, err := svc.HasApprovedMember(ctx, g.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	managerID := int64(9)
	m, err = svc.Join(ctx, g.ID, 2, &managerID, approval.Approved)
	require.NoError(t, err)
	assert.Equal(t, approval.Approved, m.State)
	assert.Equal(t, &managerID, m.AddedBy)
}

func TestJoin_AlreadyMember(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	g := mustGroup(t, svc, "Chess club", nil, false)

	_, err := svc.Join(ctx, g.ID, 1, nil, approval.Pending)
	require.NoError(t, err)

	_, err = svc.Join(ctx, g.ID, 1, nil, approval.Pending)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestJoin_CodeConflictNamesOtherGroup(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	code := "faculty"
	first := mustGroup(t, svc, "Faculty of IT", &code, true)
	second := mustGroup(t, svc, "Faculty of Law", &code, false)

	_, err := svc.Join(ctx, first.ID, 1, nil, approval.Pending)
	require.NoError(t, err)

	_, err = svc.Join(ctx, second.ID, 1, nil, approval.Pending)
	require.ErrorIs(t, err, ErrCodeConflict)
	assert.Contains(t, err.Error(), "Faculty of IT")

	// a rejected membership no longer holds the code
	require.NoError(t, svc.Reject(ctx, first.ID, 1))
	_, err = svc.Join(ctx, second.ID, 1, nil, approval.Pending)
	assert.NoError(t, err)
}

func TestJoin_MissingTargets(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	g := mustGroup(t, svc, "Chess club", nil, false)

	_, err := svc.Join(ctx, 404, 1, nil, approval.Pending)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = svc.Join(ctx, g.ID, 404, nil, approval.Pending)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestApproveReject(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	g := mustGroup(t, svc, "Volunteers", nil, true)

	_, err := svc.Join(ctx, g.ID, 1, nil, approval.Pending)
	require.NoError(t, err)

	require.NoError(t, svc.Approve(ctx, g.ID, 1))
	m := store.members[memberKey{g.ID, 1}]
	assert.Equal(t, approval.Approved, m.State)
	assert.NotNil(t, m.ApprovedAt)

	require.NoError(t, svc.Reject(ctx, g.ID, 1))
	assert.Equal(t, approval.Rejected, m.State)
	assert.Nil(t, m.ApprovedAt)

	// absent targets are ignored
	assert.NoError(t, svc.Approve(ctx, g.ID, 2))
	assert.NoError(t, svc.Reject(ctx, 404, 1))
}

func TestRemove_Idempotent(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	g := mustGroup(t, svc, "Chess club", nil, false)

	_, err := svc.Join(ctx, g.ID, 1, nil, approval.Pending)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, g.ID, 1))
	assert.Empty(t, store.members)
	assert.NoError(t, svc.Remove(ctx, g.ID, 1))
}

func TestAddMemberRequestState(t *testing.T) {
	no := false
	assert.Equal(t, approval.Approved, (&AddMemberRequest{}).State())
	assert.Equal(t, approval.Rejected, (&AddMemberRequest{Approve: &no}).State())
}
