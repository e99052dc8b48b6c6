package playback

import (
	"context"
	"log"
	"time"
)

// SessionArchiver is the document-store side of ending a session: flip the
// session non-live and persist the final queue order. Must be idempotent.
type SessionArchiver interface {
	ArchiveQueueAndEndSession(ctx context.Context, sessionID string, orderedTrackIDs []string) error
}

// PresenceCleaner removes a session's listener bookkeeping when it ends.
type PresenceCleaner interface {
	Clear(ctx context.Context, sessionID string) error
}

// EndScheduler auto-ends sessions whose creator stopped pinging presence.
// Ending is idempotent, so unlike the skip path no claim race protection is
// needed: two instances ending the same session is a harmless no-op.
type EndScheduler struct {
	ends     *Schedule
	skips    *Schedule
	queue    *Queue
	states   *States
	store    SessionArchiver
	presence PresenceCleaner
	events   *Events
	interval time.Duration
}

func NewEndScheduler(ends, skips *Schedule, queue *Queue, states *States, store SessionArchiver, presence PresenceCleaner, events *Events) *EndScheduler {
	return &EndScheduler{
		ends:     ends,
		skips:    skips,
		queue:    queue,
		states:   states,
		store:    store,
		presence: presence,
		events:   events,
		interval: time.Minute,
	}
}

// Start launches the polling loop. It stops when ctx is cancelled.
func (s *EndScheduler) Start(ctx context.Context) {
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

func (s *EndScheduler) checkDue(ctx context.Context) {
	due, err := s.ends.Due(ctx, time.Now())
	if err != nil {
		log.Printf("session-service: end scheduler due query: %v", err)
		return
	}
	for _, sessionID := range due {
		if err := s.EndSession(ctx, sessionID); err != nil {
			log.Printf("session-service: end scheduler end %s: %v", sessionID, err)
		}
	}
}

// EndSession archives the queue order into the session document, flips it
// non-live and cleans up all coordination state. Also used for explicit ends
// requested through the API.
func (s *EndScheduler) EndSession(ctx context.Context, sessionID string) error {
	// Drop both schedule entries first so no scheduler re-triggers while we
	// tear down.
	if err := s.ends.Cancel(ctx, sessionID); err != nil {
		return err
	}
	if err := s.skips.Cancel(ctx, sessionID); err != nil {
		return err
	}

	items, err := s.queue.Range(ctx, sessionID, 0, -1)
	if err != nil {
		return err
	}
	trackIDs := make([]string, 0, len(items))
	for _, item := range items {
		trackIDs = append(trackIDs, item.TrackID)
	}

	if err := s.store.ArchiveQueueAndEndSession(ctx, sessionID, trackIDs); err != nil {
		return err
	}

	if err := s.states.Delete(ctx, sessionID); err != nil {
		log.Printf("session-service: end %s delete state: %v", sessionID, err)
	}
	if err := s.queue.Clear(ctx, sessionID); err != nil {
		log.Printf("session-service: end %s clear queue: %v", sessionID, err)
	}
	if s.presence != nil {
		if err := s.presence.Clear(ctx, sessionID); err != nil {
			log.Printf("session-service: end %s clear presence: %v", sessionID, err)
		}
	}

	s.events.SessionEnded(ctx, sessionID)
	return nil
}
