package playback

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// BroadcastChannel is consumed by the realtime fan-out, which forwards each
// event to interested subscribers.
const BroadcastChannel = "broadcast"

const (
	EventNowPlayingUpdated = "session.now_playing_updated"
	EventListenersUpdated  = "session.listeners_updated"
	EventListenerJoined    = "session.listener_joined"
	EventReactionsUpdated  = "session.reactions_updated"
	EventQueueUpdated      = "session.queue_updated"
	EventSessionEnded      = "session.ended"
)

// Events publishes engine updates to the broadcast channel. Publishing is
// best-effort: a dropped event never fails the transition that produced it.
type Events struct {
	rdb *redis.Client
}

func NewEvents(rdb *redis.Client) *Events {
	return &Events{rdb: rdb}
}

func (e *Events) Publish(ctx context.Context, eventType string, payload any) {
	if e == nil || e.rdb == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		log.Printf("session-service: marshal event %s: %v", eventType, err)
		return
	}
	if err := e.rdb.Publish(ctx, BroadcastChannel, string(data)).Err(); err != nil {
		log.Printf("session-service: publish event %s: %v", eventType, err)
	}
}

func (e *Events) NowPlayingUpdated(ctx context.Context, sessionID string, current, next *QueueItem) {
	e.Publish(ctx, EventNowPlayingUpdated, map[string]any{
		"sessionId": sessionID,
		"current":   current,
		"next":      next,
	})
}

func (e *Events) SessionEnded(ctx context.Context, sessionID string) {
	e.Publish(ctx, EventSessionEnded, map[string]any{
		"sessionId": sessionID,
	})
}
