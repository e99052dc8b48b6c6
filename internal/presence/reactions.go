package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"session-service/internal/playback"
)

// ErrUnknownReaction rejects symbols outside the closed reaction set.
var ErrUnknownReaction = errors.New("presence: unknown reaction")

var validReactions = map[string]bool{
	"heart":     true,
	"fire":      true,
	"joy":       true,
	"crying":    true,
	"thumbs_up": true,
}

// Reaction hashes are scoped to a playing uid; once the session advances
// they become unreachable, so a TTL reaps them instead of explicit cleanup.
const reactionsTTL = 24 * time.Hour

func reactionsKey(sessionID, playingUID string) string {
	return "session:" + sessionID + ":reactions:" + playingUID
}

// React records (or, with an empty reaction, removes) the user's reaction to
// the currently playing item and publishes the updated tallies. The caller
// resolves playingUID from the now-playing state at call time.
func (t *Tracker) React(ctx context.Context, sessionID, playingUID, userID, reaction string) (map[string]int, error) {
	key := reactionsKey(sessionID, playingUID)

	if reaction == "" {
		if err := t.rdb.HDel(ctx, key, userID).Err(); err != nil {
			return nil, fmt.Errorf("presence: remove reaction: %w", err)
		}
	} else {
		if !validReactions[reaction] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownReaction, reaction)
		}
		if err := t.rdb.HSet(ctx, key, userID, reaction).Err(); err != nil {
			return nil, fmt.Errorf("presence: record reaction: %w", err)
		}
		if err := t.rdb.Expire(ctx, key, reactionsTTL).Err(); err != nil {
			return nil, fmt.Errorf("presence: expire reactions: %w", err)
		}
	}

	tallies, err := t.Reactions(ctx, sessionID, playingUID)
	if err != nil {
		return nil, err
	}
	t.events.Publish(ctx, playback.EventReactionsUpdated, map[string]any{
		"sessionId": sessionID,
		"tallies":   tallies,
	})
	return tallies, nil
}

// Reactions tallies reactions for the given playing uid only. Reactions left
// on a previous uid are stale by construction and never surface here.
func (t *Tracker) Reactions(ctx context.Context, sessionID, playingUID string) (map[string]int, error) {
	entries, err := t.rdb.HGetAll(ctx, reactionsKey(sessionID, playingUID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: reactions: %w", err)
	}
	tallies := make(map[string]int, len(validReactions))
	for _, reaction := range entries {
		tallies[reaction]++
	}
	return tallies, nil
}
