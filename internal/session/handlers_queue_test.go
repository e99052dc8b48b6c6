package session

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"session-service/internal/playback"
	"session-service/internal/store"
)

func TestHandleAddTracksStartsPlayback(t *testing.T) {
	env := newTestEnv(t)
	env.store.GetSessionFunc = func(ctx context.Context, sessionID string) (*store.Session, error) {
		return liveSession("owner"), nil
	}
	env.store.IsCollaboratorFunc = func(ctx context.Context, sessionID, userID string) (bool, error) {
		return true, nil
	}

	// First enqueue into an idle session kicks off playback at index 0.
	w := doRequest(t, env, http.MethodPost, "/sessions/s1/tracks", "owner", `{"trackIds":["t1","t2"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, env.commands.Commands, 1)
	require.Equal(t, playback.ActionPlayIndex, env.commands.Commands[0].Action)
	require.Equal(t, 0, env.commands.Commands[0].Index)

	// Further enqueues just grow the queue.
	w = doRequest(t, env, http.MethodPost, "/sessions/s1/tracks", "owner", `{"trackIds":["t3"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, env.commands.Commands, 1)

	items, err := env.queue.Range(context.Background(), "s1", 0, -1)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "t1", items[0].TrackID)
	require.Equal(t, "owner", items[0].CreatorID)
	require.NotEmpty(t, items[0].UID)
	require.NotEqual(t, items[0].UID, items[1].UID)
}

func TestHandleAddTracksAuthz(t *testing.T) {
	env := newTestEnv(t)
	env.store.GetSessionFunc = func(ctx context.Context, sessionID string) (*store.Session, error) {
		return liveSession("owner"), nil
	}
	env.store.IsCollaboratorFunc = func(ctx context.Context, sessionID, userID string) (bool, error) {
		return false, nil
	}

	w := doRequest(t, env, http.MethodPost, "/sessions/s1/tracks", "outsider", `{"trackIds":["t1"]}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	n, err := env.queue.Len(context.Background(), "s1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestHandleAddTracksEndedSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.GetSessionFunc = func(ctx context.Context, sessionID string) (*store.Session, error) {
		s := liveSession("owner")
		s.IsLive = false
		return s, nil
	}

	w := doRequest(t, env, http.MethodPost, "/sessions/s1/tracks", "owner", `{"trackIds":["t1"]}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleAddTracksEmptyBody(t *testing.T) {
	env := newTestEnv(t)

	w := doRequest(t, env, http.MethodPost, "/sessions/s1/tracks", "owner", `{"trackIds":[]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleListTracks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.queue.Push(ctx, "s1", []playback.QueueItem{
		{UID: "u1", TrackID: "t1", CreatorID: "owner"},
		{UID: "u2", TrackID: "t2", CreatorID: "bob"},
	})
	require.NoError(t, err)

	w := doRequest(t, env, http.MethodGet, "/sessions/s1/tracks", "anyone", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items      []playback.QueueItem `json:"items"`
		NowPlaying any                  `json:"nowPlaying"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	require.Equal(t, "u2", resp.Items[1].UID)
	require.Nil(t, resp.NowPlaying)
}
