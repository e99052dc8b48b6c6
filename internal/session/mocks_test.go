package session

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"session-service/internal/playback"
	"session-service/internal/presence"
	"session-service/internal/store"
)

// MockStore implements SessionStore for testing.
type MockStore struct {
	CreateSessionFunc   func(ctx context.Context, creatorID, name string) (*store.Session, error)
	GetSessionFunc      func(ctx context.Context, sessionID string) (*store.Session, error)
	CollaboratorsFunc   func(ctx context.Context, sessionID string) ([]string, error)
	IsCollaboratorFunc  func(ctx context.Context, sessionID, userID string) (bool, error)
	AddCollaboratorFunc func(ctx context.Context, sessionID, userID string) error
	CreateInviteFunc    func(ctx context.Context, sessionID string) (string, error)
	ConsumeInviteFunc   func(ctx context.Context, token string) (string, error)
}

func (m *MockStore) CreateSession(ctx context.Context, creatorID, name string) (*store.Session, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, creatorID, name)
	}
	return &store.Session{ID: "s1", CreatorID: creatorID, Name: name, IsLive: true}, nil
}

func (m *MockStore) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return nil, pgx.ErrNoRows
}

func (m *MockStore) Collaborators(ctx context.Context, sessionID string) ([]string, error) {
	if m.CollaboratorsFunc != nil {
		return m.CollaboratorsFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockStore) IsCollaborator(ctx context.Context, sessionID, userID string) (bool, error) {
	if m.IsCollaboratorFunc != nil {
		return m.IsCollaboratorFunc(ctx, sessionID, userID)
	}
	return false, nil
}

func (m *MockStore) AddCollaborator(ctx context.Context, sessionID, userID string) error {
	if m.AddCollaboratorFunc != nil {
		return m.AddCollaboratorFunc(ctx, sessionID, userID)
	}
	return nil
}

func (m *MockStore) CreateInvite(ctx context.Context, sessionID string) (string, error) {
	if m.CreateInviteFunc != nil {
		return m.CreateInviteFunc(ctx, sessionID)
	}
	return "token", nil
}

func (m *MockStore) ConsumeInvite(ctx context.Context, token string) (string, error) {
	if m.ConsumeInviteFunc != nil {
		return m.ConsumeInviteFunc(ctx, token)
	}
	return "", pgx.ErrNoRows
}

// MockCommands records published commands.
type MockCommands struct {
	mu       sync.Mutex
	Commands []playback.Command
	Err      error
}

func (m *MockCommands) Publish(ctx context.Context, cmd playback.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Commands = append(m.Commands, cmd)
	return nil
}

// MockEnder records EndSession calls.
type MockEnder struct {
	Ended []string
	Err   error
}

func (m *MockEnder) EndSession(ctx context.Context, sessionID string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Ended = append(m.Ended, sessionID)
	return nil
}

type testEnv struct {
	srv      *Server
	store    *MockStore
	commands *MockCommands
	ender    *MockEnder
	queue    *playback.Queue
	states   *playback.States
	ends     *playback.Schedule
	rdb      *redis.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := &MockStore{}
	commands := &MockCommands{}
	ender := &MockEnder{}
	queue := playback.NewQueue(rdb)
	states := playback.NewStates(rdb)
	ends := playback.NewEndSchedule(rdb)
	events := playback.NewEvents(rdb)
	pres := presence.NewTracker(rdb, ends, events)

	return &testEnv{
		srv:      NewServer(st, queue, states, commands, pres, ender, events),
		store:    st,
		commands: commands,
		ender:    ender,
		queue:    queue,
		states:   states,
		ends:     ends,
		rdb:      rdb,
	}
}

func liveSession(creatorID string) *store.Session {
	return &store.Session{
		ID:        "s1",
		CreatorID: creatorID,
		Name:      "test session",
		IsLive:    true,
	}
}
