package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// States persists the per-session NowPlayingState as one JSON value under
// session:{id}:nowplaying. A plain SET replaces the whole record, so a
// reader can never observe a state mixing two transitions.
type States struct {
	rdb *redis.Client
}

func NewStates(rdb *redis.Client) *States {
	return &States{rdb: rdb}
}

func stateKey(sessionID string) string {
	return "session:" + sessionID + ":nowplaying"
}

// Get returns the session's current state, or nil when nothing is playing.
func (s *States) Get(ctx context.Context, sessionID string) (*NowPlayingState, error) {
	data, err := s.rdb.Get(ctx, stateKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("playback: get state: %w", err)
	}
	var st NowPlayingState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("playback: decode state: %w", err)
	}
	return &st, nil
}

// Set replaces the session's state wholesale.
func (s *States) Set(ctx context.Context, sessionID string, st NowPlayingState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("playback: marshal state: %w", err)
	}
	if err := s.rdb.Set(ctx, stateKey(sessionID), data, 0).Err(); err != nil {
		return fmt.Errorf("playback: set state: %w", err)
	}
	return nil
}

// Delete removes the session's state. Called when the session ends.
func (s *States) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, stateKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("playback: delete state: %w", err)
	}
	return nil
}
