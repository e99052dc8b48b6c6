package playback

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// SkipScheduler owns the execution of track-end transitions. Two paths feed
// the same actuation logic: a polling loop over the skip schedule and a
// listener on the command channel. Any number of scheduler processes may run
// concurrently; the claim discipline keeps execution at-most-once.
type SkipScheduler struct {
	rdb      *redis.Client
	schedule *Schedule
	actuator *Actuator
	interval time.Duration
}

func NewSkipScheduler(rdb *redis.Client, schedule *Schedule, actuator *Actuator) *SkipScheduler {
	return &SkipScheduler{
		rdb:      rdb,
		schedule: schedule,
		actuator: actuator,
		interval: time.Second,
	}
}

// Start launches the polling loop. It stops when ctx is cancelled.
func (s *SkipScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				s.checkDue(ctx)
			}
		}
	}()
}

func (s *SkipScheduler) checkDue(ctx context.Context) {
	due, err := s.schedule.Due(ctx, time.Now())
	if err != nil {
		// Transient store trouble: wait for the next tick.
		log.Printf("session-service: skip scheduler due query: %v", err)
		return
	}

	for _, sessionID := range due {
		res, err := s.schedule.Claim(ctx, sessionID)
		if err != nil {
			log.Printf("session-service: skip scheduler claim %s: %v", sessionID, err)
			continue
		}
		if res != Claimed {
			// A concurrent scheduler instance won the race. Correct outcome.
			continue
		}
		if err := s.actuator.Actuate(ctx, Command{Action: ActionSkipForward, SessionID: sessionID}); err != nil {
			// Abandon this cycle; the stale state stays until the next
			// successful trigger.
			log.Printf("session-service: skip scheduler advance %s: %v", sessionID, err)
		}
	}
}

// StartCommandListener subscribes to the command channel and executes manual
// skip/jump requests published by the API processes.
func (s *SkipScheduler) StartCommandListener(ctx context.Context) {
	sub := s.rdb.Subscribe(ctx, CommandChannel)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				s.handleCommand(ctx, []byte(msg.Payload))
			}
		}
	}()
}

func (s *SkipScheduler) handleCommand(ctx context.Context, payload []byte) {
	cmd, err := DecodeCommand(payload)
	if err != nil {
		log.Printf("session-service: skip scheduler command: %v", err)
		return
	}

	if cmd.Action == ActionReschedule {
		if err := s.schedule.Arm(ctx, cmd.SessionID, time.UnixMilli(cmd.EndedAt)); err != nil {
			log.Printf("session-service: skip scheduler reschedule %s: %v", cmd.SessionID, err)
		}
		return
	}

	// Actuate cancels the session's pending entry before executing, so a
	// manual skip racing a natural track-end fires exactly one transition.
	if err := s.actuator.Actuate(ctx, cmd); err != nil {
		log.Printf("session-service: skip scheduler %s %s: %v", cmd.Action, cmd.SessionID, err)
	}
}
