package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"session-service/internal/presence"
)

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
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
		log.Printf("session-service: ping fetch session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !sess.IsLive {
		writeError(w, http.StatusConflict, "session has ended")
		return
	}

	joined, err := s.presence.Ping(ctx, sessionID, userID, userID == sess.CreatorID)
	if err != nil {
		log.Printf("session-service: ping: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"joined": joined})
}

func (s *Server) handleListeners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	listeners, err := s.presence.Listeners(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: listeners: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"listeners": listeners})
}

// handleReact records a reaction against whatever is playing right now.
// With nothing playing there is no uid to scope it to, so the request is
// rejected.
func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sessionID := chi.URLParam(r, "id")

	var body struct {
		Reaction string `json:"reaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	st, err := s.states.Get(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: react state: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	if st == nil {
		writeError(w, http.StatusConflict, "nothing is playing")
		return
	}

	tallies, err := s.presence.React(ctx, sessionID, st.PlayingUID, userID, body.Reaction)
	if errors.Is(err, presence.ErrUnknownReaction) {
		writeError(w, http.StatusBadRequest, "unknown reaction")
		return
	}
	if err != nil {
		log.Printf("session-service: react: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tallies": tallies})
}

func (s *Server) handleReactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	st, err := s.states.Get(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: reactions state: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	if st == nil {
		writeJSON(w, http.StatusOK, map[string]any{"tallies": map[string]int{}})
		return
	}

	tallies, err := s.presence.Reactions(ctx, sessionID, st.PlayingUID)
	if err != nil {
		log.Printf("session-service: reactions: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tallies": tallies})
}
