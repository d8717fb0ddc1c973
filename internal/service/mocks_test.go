package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"vidpress/internal/domain"
	"vidpress/internal/port"
)

type JobStoreMock struct {
	mock.Mock
}

func (m *JobStoreMock) Insert(ctx context.Context, ownerID int64, sourceRef, filename string, size int64, profile string) (*domain.Job, error) {
	args := m.Called(ctx, ownerID, sourceRef, filename, size, profile)
	if v := args.Get(0); v != nil {
		return v.(*domain.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobStoreMock) Get(ctx context.Context, id int64) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*domain.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobStoreMock) ClaimNext(ctx context.Context) (*domain.Job, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*domain.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobStoreMock) UpdateProgress(ctx context.Context, id int64, progress float64) error {
	return m.Called(ctx, id, progress).Error(0)
}

func (m *JobStoreMock) Complete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *JobStoreMock) Fail(ctx context.Context, id int64, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *JobStoreMock) CountActiveForOwner(ctx context.Context, ownerID int64) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *JobStoreMock) ListForOwner(ctx context.Context, ownerID int64, limit int) ([]domain.Job, error) {
	args := m.Called(ctx, ownerID, limit)
	if v := args.Get(0); v != nil {
		return v.([]domain.Job), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *JobStoreMock) PositionInQueue(ctx context.Context, id int64) (int, int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *JobStoreMock) Release(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *JobStoreMock) RecoverOrphans(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var _ port.JobStore = (*JobStoreMock)(nil)

// fakeUserStore is an in-memory UserStore for auth tests.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]domain.User)}
}

func (s *fakeUserStore) Upsert(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *fakeUserStore) Get(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *fakeUserStore) SetAuthorized(_ context.Context, id int64, authorized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsAuthorized = authorized
	s.users[id] = u
	return nil
}

var _ port.UserStore = (*fakeUserStore)(nil)
