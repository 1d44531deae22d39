package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/deliver"
	"github.com/AlisiaBaielli/TirAImisu/notify"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) ListUsers() ([]*db.User, error) {
	args := m.Called()
	users, _ := args.Get(0).([]*db.User)
	return users, args.Error(1)
}

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Compute(ctx context.Context, user *db.User, now time.Time) (*notify.Payload, error) {
	args := m.Called(user, now)
	payload, _ := args.Get(0).(*notify.Payload)
	return payload, args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, user *db.User, notifications []notify.Notification, now time.Time) deliver.Report {
	return m.Called(user, notifications, now).Get(0).(deliver.Report)
}

var fixedNow = time.Date(2025, 11, 10, 7, 45, 0, 0, time.UTC)

func newTestScheduler(users Users, engine Engine, dispatcher Dispatcher) *Scheduler {
	s := New(users, engine, dispatcher, "", time.UTC, time.Second, nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestRunOnceDispatchesEveryUser(t *testing.T) {
	alice := &db.User{ID: uuid.New(), Name: "alice"}
	bob := &db.User{ID: uuid.New(), Name: "bob"}

	users := &mockUsers{}
	users.On("ListUsers").Return([]*db.User{alice, bob}, nil)

	batch := []notify.Notification{{ID: "reminder:x:1"}}
	engine := &mockEngine{}
	engine.On("Compute", alice, fixedNow).Return(&notify.Payload{Notifications: batch}, nil)
	engine.On("Compute", bob, fixedNow).Return(nil, errors.New("corrupt store"))

	dispatcher := &mockDispatcher{}
	dispatcher.On("Dispatch", alice, batch, fixedNow).Return(deliver.Report{Sent: 1})

	report, err := newTestScheduler(users, engine, dispatcher).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, deliver.Report{Sent: 1}, report)

	dispatcher.AssertNotCalled(t, "Dispatch", bob, mock.Anything, mock.Anything)
}

func TestRunOnceFailsWithoutUsers(t *testing.T) {
	users := &mockUsers{}
	users.On("ListUsers").Return(nil, errors.New("closed"))

	_, err := newTestScheduler(users, &mockEngine{}, &mockDispatcher{}).RunOnce(context.Background())
	assert.ErrorContains(t, err, "closed")
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	users := &mockUsers{}
	users.On("ListUsers").Return([]*db.User{{Name: "alice"}}, nil)
	engine := &mockEngine{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScheduler(users, engine, &mockDispatcher{}).RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	engine.AssertNotCalled(t, "Compute", mock.Anything, mock.Anything)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(&mockUsers{}, &mockEngine{}, &mockDispatcher{}, "every so often", time.UTC, 0, nil)
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := New(&mockUsers{}, &mockEngine{}, &mockDispatcher{}, "@every 1h", time.UTC, 0, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
