package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sess, err := s.store.CreateSession(ctx, userID, body.Name)
	if err != nil {
		log.Printf("session-service: create session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// First creator ping registers presence and arms the auto-end deadline.
	if _, err := s.presence.Ping(ctx, sess.ID, userID, true); err != nil {
		log.Printf("session-service: create session initial ping: %v", err)
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("session-service: get session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	collaborators, err := s.store.Collaborators(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: get session collaborators: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	st, err := s.states.Get(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: get session state: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":       sess,
		"collaborators": collaborators,
		"nowPlaying":    st,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sessionID := chi.URLParam(r, "id")

	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("session-service: end session fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sess.CreatorID != userID {
		writeError(w, http.StatusForbidden, "only the creator can end a session")
		return
	}

	// Idempotent: ending an already-ended session is a no-op.
	if err := s.ender.EndSession(ctx, sessionID); err != nil {
		log.Printf("session-service: end session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "could not end session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sessionID := chi.URLParam(r, "id")

	ok, err := s.store.IsCollaborator(ctx, sessionID, userID)
	if err != nil {
		log.Printf("session-service: create invite collaborator check: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	token, err := s.store.CreateInvite(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: create invite: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	sessionID, err := s.store.ConsumeInvite(ctx, body.Token)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "invalid invite token")
		return
	}
	if err != nil {
		log.Printf("session-service: consume invite: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := s.store.AddCollaborator(ctx, sessionID, userID); err != nil {
		log.Printf("session-service: join add collaborator: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}
