package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"session-service/internal/playback"
)

const (
	// A listener counts as present while their last ping is younger than
	// this. A ping after a longer gap is a (re)join.
	defaultActivityTimeout = 40 * time.Second
	// Creator silence for this long auto-ends the session.
	defaultInactivityWindow = 10 * time.Minute
)

// Tracker keeps per-session listener presence in a sorted set scored by the
// last ping instant, and per-now-playing-item reaction tallies.
type Tracker struct {
	rdb    *redis.Client
	ends   *playback.Schedule
	events *playback.Events

	activityTimeout  time.Duration
	inactivityWindow time.Duration
}

func NewTracker(rdb *redis.Client, ends *playback.Schedule, events *playback.Events) *Tracker {
	return &Tracker{
		rdb:              rdb,
		ends:             ends,
		events:           events,
		activityTimeout:  defaultActivityTimeout,
		inactivityWindow: defaultInactivityWindow,
	}
}

func listenersKey(sessionID string) string {
	return "session:" + sessionID + ":listeners"
}

// Ping upserts the user's last-ping timestamp. A ping from a user whose
// previous ping is absent or older than the activity timeout is a join: it
// emits a join notification and a refreshed listener list. A creator ping
// also pushes the session's auto-end deadline forward.
func (t *Tracker) Ping(ctx context.Context, sessionID, userID string, isCreator bool) (joined bool, err error) {
	now := time.Now()

	prev, err := t.rdb.ZScore(ctx, listenersKey(sessionID), userID).Result()
	hasPrev := err == nil
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("presence: previous ping: %w", err)
	}

	err = t.rdb.ZAdd(ctx, listenersKey(sessionID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: userID,
	}).Err()
	if err != nil {
		return false, fmt.Errorf("presence: record ping: %w", err)
	}

	if isCreator && t.ends != nil {
		if err := t.ends.Arm(ctx, sessionID, now.Add(t.inactivityWindow)); err != nil {
			return false, err
		}
	}

	joined = !hasPrev || float64(now.UnixMilli())-prev > float64(t.activityTimeout.Milliseconds())
	if joined {
		t.events.Publish(ctx, playback.EventListenerJoined, map[string]any{
			"sessionId": sessionID,
			"userId":    userID,
		})
		if listeners, err := t.Listeners(ctx, sessionID); err == nil {
			t.events.Publish(ctx, playback.EventListenersUpdated, map[string]any{
				"sessionId": sessionID,
				"listeners": listeners,
			})
		}
	}
	return joined, nil
}

// Listeners returns the users whose last ping falls within the activity
// timeout window.
func (t *Tracker) Listeners(ctx context.Context, sessionID string) ([]string, error) {
	cutoff := time.Now().Add(-t.activityTimeout)
	users, err := t.rdb.ZRangeByScore(ctx, listenersKey(sessionID), &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: listeners: %w", err)
	}
	return users, nil
}

// Clear drops the session's presence set. Reaction hashes are left to their
// TTL since they are keyed by uid and unreachable once the session is gone.
func (t *Tracker) Clear(ctx context.Context, sessionID string) error {
	if err := t.rdb.Del(ctx, listenersKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("presence: clear: %w", err)
	}
	return nil
}
