package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"session-service/internal/playback"
)

// authorizePlayback enforces the contract that only a collaborator of a live
// session may trigger skip/jump. Returns the session id, or "" after having
// written the error response.
func (s *Server) authorizePlayback(w http.ResponseWriter, r *http.Request) string {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return ""
	}
	sessionID := chi.URLParam(r, "id")

	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return ""
	}
	if err != nil {
		log.Printf("session-service: playback fetch session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return ""
	}
	if !sess.IsLive {
		writeError(w, http.StatusConflict, "session has ended")
		return ""
	}

	ok, err := s.store.IsCollaborator(ctx, sessionID, userID)
	if err != nil {
		log.Printf("session-service: playback collaborator check: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return ""
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return ""
	}
	return sessionID
}

func (s *Server) publishCommand(w http.ResponseWriter, r *http.Request, cmd playback.Command) {
	if err := s.commands.Publish(r.Context(), cmd); err != nil {
		log.Printf("session-service: publish %s for %s: %v", cmd.Action, cmd.SessionID, err)
		writeError(w, http.StatusBadGateway, "could not advance playback")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleSkipForward(w http.ResponseWriter, r *http.Request) {
	sessionID := s.authorizePlayback(w, r)
	if sessionID == "" {
		return
	}
	s.publishCommand(w, r, playback.Command{
		Action:    playback.ActionSkipForward,
		SessionID: sessionID,
	})
}

func (s *Server) handleSkipBackward(w http.ResponseWriter, r *http.Request) {
	sessionID := s.authorizePlayback(w, r)
	if sessionID == "" {
		return
	}
	s.publishCommand(w, r, playback.Command{
		Action:    playback.ActionSkipBackward,
		SessionID: sessionID,
	})
}

// handlePlay jumps to an explicit queue position, by uid or by index. The
// target is validated against the queue before publishing so an impossible
// jump fails here instead of dying silently in the scheduler.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	sessionID := s.authorizePlayback(w, r)
	if sessionID == "" {
		return
	}
	ctx := r.Context()

	var body struct {
		UID   string `json:"uid"`
		Index *int   `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch {
	case body.UID != "":
		if _, err := s.queue.IndexOf(ctx, sessionID, body.UID); err != nil {
			if errors.Is(err, playback.ErrNotFound) {
				writeError(w, http.StatusUnprocessableEntity, "could not advance playback")
				return
			}
			log.Printf("session-service: play resolve uid: %v", err)
			writeError(w, http.StatusInternalServerError, "store error")
			return
		}
		s.publishCommand(w, r, playback.Command{
			Action:    playback.ActionPlayUID,
			SessionID: sessionID,
			UID:       body.UID,
		})
	case body.Index != nil:
		length, err := s.queue.Len(ctx, sessionID)
		if err != nil {
			log.Printf("session-service: play queue length: %v", err)
			writeError(w, http.StatusInternalServerError, "store error")
			return
		}
		if *body.Index < 0 || int64(*body.Index) >= length {
			writeError(w, http.StatusUnprocessableEntity, "could not advance playback")
			return
		}
		s.publishCommand(w, r, playback.Command{
			Action:    playback.ActionPlayIndex,
			SessionID: sessionID,
			Index:     *body.Index,
		})
	default:
		writeError(w, http.StatusBadRequest, "uid or index is required")
	}
}
