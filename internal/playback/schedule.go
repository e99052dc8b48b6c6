package playback

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimResult makes the at-most-once contract of schedule claims visible at
// call sites: only a Claimed result may proceed to execute the transition.
type ClaimResult int

const (
	// Claimed means this caller removed the entry and owns the execution.
	Claimed ClaimResult = iota
	// AlreadyHandled means a concurrent claimer got there first. This is an
	// expected outcome, not an error.
	AlreadyHandled
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyHandled:
		return "alreadyHandled"
	default:
		return "unknown"
	}
}

const (
	skipScheduleKey = "schedule:skip"
	endScheduleKey  = "schedule:end"
)

// Schedule is a shared priority queue over one Redis sorted set: member is a
// session id, score is an absolute deadline in ms since epoch. A session has
// at most one entry at a time; arming replaces any previous deadline. The
// atomic remove in Claim is the sole concurrency-control primitive of the
// engine.
type Schedule struct {
	rdb *redis.Client
	key string
}

// NewSkipSchedule holds one entry per live session, due when its current
// track ends.
func NewSkipSchedule(rdb *redis.Client) *Schedule {
	return &Schedule{rdb: rdb, key: skipScheduleKey}
}

// NewEndSchedule holds one entry per live session, due when the creator's
// inactivity window has elapsed without a presence ping.
func NewEndSchedule(rdb *redis.Client) *Schedule {
	return &Schedule{rdb: rdb, key: endScheduleKey}
}

// Arm schedules (or reschedules) the session's entry for the given instant.
func (s *Schedule) Arm(ctx context.Context, sessionID string, at time.Time) error {
	err := s.rdb.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: sessionID,
	}).Err()
	if err != nil {
		return fmt.Errorf("playback: arm schedule: %w", err)
	}
	return nil
}

// Cancel removes the session's pending entry, if any.
func (s *Schedule) Cancel(ctx context.Context, sessionID string) error {
	if err := s.rdb.ZRem(ctx, s.key, sessionID).Err(); err != nil {
		return fmt.Errorf("playback: cancel schedule: %w", err)
	}
	return nil
}

// Due lists all session ids whose deadline is at or before now. Listing does
// not claim; every candidate must still win Claim before executing.
func (s *Schedule) Due(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("playback: due entries: %w", err)
	}
	return ids, nil
}

// Claim atomically removes the session's entry. Exactly one of any number of
// concurrent claimers observes Claimed; the rest observe AlreadyHandled.
func (s *Schedule) Claim(ctx context.Context, sessionID string) (ClaimResult, error) {
	n, err := s.rdb.ZRem(ctx, s.key, sessionID).Result()
	if err != nil {
		return AlreadyHandled, fmt.Errorf("playback: claim schedule: %w", err)
	}
	if n == 0 {
		return AlreadyHandled, nil
	}
	return Claimed, nil
}
