package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a queue lookup resolves to nothing where a
// value is required. Callers treat it as fatal for the current transition.
var ErrNotFound = errors.New("playback: not found")

// Queue is the per-session ordered track queue, stored as a Redis list of
// JSON-encoded items under session:{id}:queue.
type Queue struct {
	rdb *redis.Client
}

func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

func queueKey(sessionID string) string {
	return "session:" + sessionID + ":queue"
}

// Push appends items to the session's queue and returns the new length.
// Items without a UID get a fresh random one.
func (q *Queue) Push(ctx context.Context, sessionID string, items []QueueItem) (int64, error) {
	if len(items) == 0 {
		return q.Len(ctx, sessionID)
	}

	values := make([]interface{}, 0, len(items))
	for i := range items {
		if items[i].UID == "" {
			items[i].UID = newUID()
		}
		data, err := json.Marshal(items[i])
		if err != nil {
			return 0, fmt.Errorf("playback: marshal queue item: %w", err)
		}
		values = append(values, data)
	}

	n, err := q.rdb.RPush(ctx, queueKey(sessionID), values...).Result()
	if err != nil {
		return 0, fmt.Errorf("playback: push queue: %w", err)
	}
	return n, nil
}

func (q *Queue) Len(ctx context.Context, sessionID string) (int64, error) {
	n, err := q.rdb.LLen(ctx, queueKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("playback: queue length: %w", err)
	}
	return n, nil
}

// ItemAt returns the item at index, or nil if the index is out of range.
func (q *Queue) ItemAt(ctx context.Context, sessionID string, index int) (*QueueItem, error) {
	data, err := q.rdb.LIndex(ctx, queueKey(sessionID), int64(index)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("playback: queue index %d: %w", index, err)
	}
	var item QueueItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("playback: decode queue item at %d: %w", index, err)
	}
	return &item, nil
}

// UIDAt returns the uid of the item at index, or "" if out of range.
func (q *Queue) UIDAt(ctx context.Context, sessionID string, index int) (string, error) {
	item, err := q.ItemAt(ctx, sessionID, index)
	if err != nil || item == nil {
		return "", err
	}
	return item.UID, nil
}

// IndexOf returns the position of the item with the given uid, or
// ErrNotFound if no such item exists in the queue.
func (q *Queue) IndexOf(ctx context.Context, sessionID, uid string) (int, error) {
	items, err := q.Range(ctx, sessionID, 0, -1)
	if err != nil {
		return 0, err
	}
	for i := range items {
		if items[i].UID == uid {
			return i, nil
		}
	}
	return 0, fmt.Errorf("playback: uid %q: %w", uid, ErrNotFound)
}

// Range returns items between from and to inclusive, Redis-style (negative
// indexes count from the end).
func (q *Queue) Range(ctx context.Context, sessionID string, from, to int64) ([]QueueItem, error) {
	raw, err := q.rdb.LRange(ctx, queueKey(sessionID), from, to).Result()
	if err != nil {
		return nil, fmt.Errorf("playback: queue range: %w", err)
	}
	items := make([]QueueItem, 0, len(raw))
	for _, data := range raw {
		var item QueueItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("playback: decode queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Clear removes the whole queue. Only used when a session ends.
func (q *Queue) Clear(ctx context.Context, sessionID string) error {
	if err := q.rdb.Del(ctx, queueKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("playback: clear queue: %w", err)
	}
	return nil
}
