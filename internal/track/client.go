package track

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTrackNotFound means the provider has no such track. Transitions that
// hit this fail fatally rather than defaulting a duration.
var ErrTrackNotFound = errors.New("track: not found")

const cacheTTL = 24 * time.Hour

// Client resolves track durations from the music-provider service and
// caches them in Redis. Durations are immutable, so the cache is safe.
type Client struct {
	baseURL string
	http    *http.Client
	rdb     *redis.Client
}

func NewClient(baseURL string, rdb *redis.Client) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		rdb: rdb,
	}
}

func cacheKey(trackID string) string {
	return "track:duration:" + trackID
}

// Duration returns the track's length. Cache first, then the provider.
func (c *Client) Duration(ctx context.Context, trackID string) (time.Duration, error) {
	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, cacheKey(trackID)).Result()
		if err == nil {
			if ms, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("session-service: track cache get %s: %v", trackID, err)
		}
	}

	ms, err := c.fetchDurationMs(ctx, trackID)
	if err != nil {
		return 0, err
	}

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, cacheKey(trackID), strconv.FormatInt(ms, 10), cacheTTL).Err(); err != nil {
			log.Printf("session-service: track cache set %s: %v", trackID, err)
		}
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (c *Client) fetchDurationMs(ctx context.Context, trackID string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tracks/"+trackID, nil)
	if err != nil {
		return 0, fmt.Errorf("track: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("track: fetch %s: %w", trackID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("track %s: %w", trackID, ErrTrackNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("track: provider status %d for %s", resp.StatusCode, trackID)
	}

	var body struct {
		DurationMs int64 `json:"durationMs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("track: decode %s: %w", trackID, err)
	}
	if body.DurationMs <= 0 {
		return 0, fmt.Errorf("track %s has no duration: %w", trackID, ErrTrackNotFound)
	}
	return body.DurationMs, nil
}
