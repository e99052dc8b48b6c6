package session

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"session-service/internal/playback"
	"session-service/internal/presence"
	"session-service/internal/store"
)

// SessionStore is the document-store surface the API needs.
type SessionStore interface {
	CreateSession(ctx context.Context, creatorID, name string) (*store.Session, error)
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	Collaborators(ctx context.Context, sessionID string) ([]string, error)
	IsCollaborator(ctx context.Context, sessionID, userID string) (bool, error)
	AddCollaborator(ctx context.Context, sessionID, userID string) error
	CreateInvite(ctx context.Context, sessionID string) (string, error)
	ConsumeInvite(ctx context.Context, token string) (string, error)
}

// CommandPublisher hands playback commands to the scheduler processes.
// Handlers never mutate scheduling state in-process.
type CommandPublisher interface {
	Publish(ctx context.Context, cmd playback.Command) error
}

// Ender performs the idempotent session teardown (archive, cleanup).
type Ender interface {
	EndSession(ctx context.Context, sessionID string) error
}

type Server struct {
	store    SessionStore
	queue    *playback.Queue
	states   *playback.States
	commands CommandPublisher
	presence *presence.Tracker
	ender    Ender
	events   *playback.Events
}

func NewServer(st SessionStore, queue *playback.Queue, states *playback.States, commands CommandPublisher, pres *presence.Tracker, ender Ender, events *playback.Events) *Server {
	return &Server{
		store:    st,
		queue:    queue,
		states:   states,
		commands: commands,
		presence: pres,
		ender:    ender,
		events:   events,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		for _, mw := range middlewares {
			r.Use(mw)
		}

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Post("/sessions/{id}/end", s.handleEndSession)
		r.Post("/sessions/join", s.handleJoin)
		r.Post("/sessions/{id}/invites", s.handleCreateInvite)

		r.Post("/sessions/{id}/tracks", s.handleAddTracks)
		r.Get("/sessions/{id}/tracks", s.handleListTracks)

		r.Post("/sessions/{id}/skip", s.handleSkipForward)
		r.Post("/sessions/{id}/back", s.handleSkipBackward)
		r.Post("/sessions/{id}/play", s.handlePlay)

		r.Post("/sessions/{id}/ping", s.handlePing)
		r.Get("/sessions/{id}/listeners", s.handleListeners)
		r.Post("/sessions/{id}/reactions", s.handleReact)
		r.Get("/sessions/{id}/reactions", s.handleReactions)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "session-service",
	})
}
