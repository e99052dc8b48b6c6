package session

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"session-service/internal/store"
)

func TestHandleCreateSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.CreateSessionFunc = func(ctx context.Context, creatorID, name string) (*store.Session, error) {
		return &store.Session{ID: "s1", CreatorID: creatorID, Name: name, IsLive: true}, nil
	}

	w := doRequest(t, env, http.MethodPost, "/sessions", "alice", `{"name":"friday night"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var sess store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	require.Equal(t, "alice", sess.CreatorID)
	require.True(t, sess.IsLive)

	// The creator's initial ping arms the auto-end deadline.
	due, err := env.ends.Due(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Contains(t, due, "s1")

	listeners, err := env.srv.presence.Listeners(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, listeners)
}

func TestHandleCreateSessionRejectsBlankName(t *testing.T) {
	env := newTestEnv(t)

	w := doRequest(t, env, http.MethodPost, "/sessions", "alice", `{"name":"  "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, env, http.MethodPost, "/sessions", "", `{"name":"x"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleGetSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.GetSessionFunc = func(ctx context.Context, sessionID string) (*store.Session, error) {
		return liveSession("owner"), nil
	}
	env.store.CollaboratorsFunc = func(ctx context.Context, sessionID string) ([]string, error) {
		return []string{"owner", "bob"}, nil
	}

	w := doRequest(t, env, http.MethodGet, "/sessions/s1", "anyone", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Session       store.Session `json:"session"`
		Collaborators []string      `json:"collaborators"`
		NowPlaying    any           `json:"nowPlaying"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "s1", resp.Session.ID)
	require.Equal(t, []string{"owner", "bob"}, resp.Collaborators)
	require.Nil(t, resp.NowPlaying, "idle session has no now-playing state")
}

func TestHandleGetSessionNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := doRequest(t, env, http.MethodGet, "/sessions/nope", "anyone", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleEndSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.GetSessionFunc = func(ctx context.Context, sessionID string) (*store.Session, error) {
		return liveSession("owner"), nil
	}

	w := doRequest(t, env, http.MethodPost, "/sessions/s1/end", "intruder", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, env.ender.Ended)

	w = doRequest(t, env, http.MethodPost, "/sessions/s1/end", "owner", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"s1"}, env.ender.Ended)
}

func TestHandleInviteFlow(t *testing.T) {
	env := newTestEnv(t)
	env.store.GetSessionFunc = func(ctx context.Context, sessionID string) (*store.Session, error) {
		return liveSession("owner"), nil
	}
	env.store.IsCollaboratorFunc = func(ctx context.Context, sessionID, userID string) (bool, error) {
		return userID == "owner", nil
	}
	env.store.CreateInviteFunc = func(ctx context.Context, sessionID string) (string, error) {
		return "tok123", nil
	}
	var added []string
	env.store.ConsumeInviteFunc = func(ctx context.Context, token string) (string, error) {
		require.Equal(t, "tok123", token)
		return "s1", nil
	}
	env.store.AddCollaboratorFunc = func(ctx context.Context, sessionID, userID string) error {
		added = append(added, userID)
		return nil
	}

	w := doRequest(t, env, http.MethodPost, "/sessions/s1/invites", "outsider", "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, env, http.MethodPost, "/sessions/s1/invites", "owner", "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), "tok123")

	w = doRequest(t, env, http.MethodPost, "/sessions/join", "bob", `{"token":"tok123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"bob"}, added)
	require.Contains(t, w.Body.String(), "s1")
}

func TestHandleJoinInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	w := doRequest(t, env, http.MethodPost, "/sessions/join", "bob", `{"token":"bogus"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, env, http.MethodPost, "/sessions/join", "bob", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthSkipsAuth(t *testing.T) {
	env := newTestEnv(t)

	req := doRequest(t, env, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, req.Code)
	require.Contains(t, req.Body.String(), "session-service")
}
