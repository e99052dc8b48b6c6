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

// handleAddTracks appends tracks to the session queue. Enqueueing into an
// idle live session kicks off playback by publishing a playIndex command;
// the scheduler process performs the actual transition.
func (s *Server) handleAddTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	sessionID := chi.URLParam(r, "id")

	var body struct {
		TrackIDs []string `json:"trackIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.TrackIDs) == 0 {
		writeError(w, http.StatusBadRequest, "trackIds is required")
		return
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("session-service: add tracks fetch session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !sess.IsLive {
		writeError(w, http.StatusConflict, "session has ended")
		return
	}

	ok, err := s.store.IsCollaborator(ctx, sessionID, userID)
	if err != nil {
		log.Printf("session-service: add tracks collaborator check: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	before, err := s.queue.Len(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: add tracks queue length: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	items := make([]playback.QueueItem, 0, len(body.TrackIDs))
	for _, trackID := range body.TrackIDs {
		items = append(items, playback.QueueItem{
			TrackID:   trackID,
			CreatorID: userID,
		})
	}

	length, err := s.queue.Push(ctx, sessionID, items)
	if err != nil {
		log.Printf("session-service: add tracks push: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	s.events.Publish(ctx, playback.EventQueueUpdated, map[string]any{
		"sessionId": sessionID,
		"length":    length,
	})

	if before == 0 {
		err := s.commands.Publish(ctx, playback.Command{
			Action:    playback.ActionPlayIndex,
			SessionID: sessionID,
			Index:     0,
		})
		if err != nil {
			log.Printf("session-service: add tracks start playback: %v", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"length": length})
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	items, err := s.queue.Range(ctx, sessionID, 0, -1)
	if err != nil {
		log.Printf("session-service: list tracks: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	st, err := s.states.Get(ctx, sessionID)
	if err != nil {
		log.Printf("session-service: list tracks state: %v", err)
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"nowPlaying": st,
	})
}
