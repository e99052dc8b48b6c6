package playback

import (
	"context"
	"fmt"
	"time"
)

// TrackResolver is the external track-metadata collaborator. The engine only
// needs logical durations; it never touches audio.
type TrackResolver interface {
	Duration(ctx context.Context, trackID string) (time.Duration, error)
}

// Actuator computes and commits now-playing transitions: it resolves the
// target item, derives the end time from the track duration, replaces the
// state, re-arms the skip schedule and publishes the update.
type Actuator struct {
	queue  *Queue
	states *States
	skips  *Schedule
	tracks TrackResolver
	events *Events
}

func NewActuator(queue *Queue, states *States, skips *Schedule, tracks TrackResolver, events *Events) *Actuator {
	return &Actuator{
		queue:  queue,
		states: states,
		skips:  skips,
		tracks: tracks,
		events: events,
	}
}

// SetByIndex starts playback of the item at index. An out-of-range index
// means the queue is inconsistent with the caller's view; the transition
// fails and the previous state stays in place.
func (a *Actuator) SetByIndex(ctx context.Context, sessionID string, index int) error {
	item, err := a.queue.ItemAt(ctx, sessionID, index)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("playback: queue index %d: %w", index, ErrNotFound)
	}
	return a.commit(ctx, sessionID, index, *item)
}

// SetByUID starts playback of the item with the given uid.
func (a *Actuator) SetByUID(ctx context.Context, sessionID, uid string) error {
	index, err := a.queue.IndexOf(ctx, sessionID, uid)
	if err != nil {
		return err
	}
	item, err := a.queue.ItemAt(ctx, sessionID, index)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("playback: uid %q vanished at index %d: %w", uid, index, ErrNotFound)
	}
	return a.commit(ctx, sessionID, index, *item)
}

// SkipForward advances to the next item, wrapping to the start after the
// last one. The queue is a loop; it never ends on its own.
func (a *Actuator) SkipForward(ctx context.Context, sessionID string) error {
	length, err := a.queue.Len(ctx, sessionID)
	if err != nil {
		return err
	}
	if length == 0 {
		return fmt.Errorf("playback: empty queue: %w", ErrNotFound)
	}

	st, err := a.states.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	next := 0
	if st != nil && st.PlayingIndex < int(length)-1 {
		next = st.PlayingIndex + 1
	}
	return a.SetByIndex(ctx, sessionID, next)
}

// SkipBackward moves to the previous item, clamping at the start.
func (a *Actuator) SkipBackward(ctx context.Context, sessionID string) error {
	st, err := a.states.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	prev := 0
	if st != nil && st.PlayingIndex > 0 {
		prev = st.PlayingIndex - 1
	}
	return a.SetByIndex(ctx, sessionID, prev)
}

// Actuate is the single entry point shared by the timer loop and the command
// listener. It always cancels the session's pending skip entry before
// executing, so a natural track-end and a manual skip can never both fire.
func (a *Actuator) Actuate(ctx context.Context, cmd Command) error {
	if err := a.skips.Cancel(ctx, cmd.SessionID); err != nil {
		return err
	}
	switch cmd.Action {
	case ActionSkipForward:
		return a.SkipForward(ctx, cmd.SessionID)
	case ActionSkipBackward:
		return a.SkipBackward(ctx, cmd.SessionID)
	case ActionPlayIndex:
		return a.SetByIndex(ctx, cmd.SessionID, cmd.Index)
	case ActionPlayUID:
		return a.SetByUID(ctx, cmd.SessionID, cmd.UID)
	default:
		return fmt.Errorf("playback: cannot actuate action %q", cmd.Action)
	}
}

// commit is all-or-nothing up to the state write: if the duration lookup
// fails nothing is written and the previous state stays authoritative.
func (a *Actuator) commit(ctx context.Context, sessionID string, index int, item QueueItem) error {
	duration, err := a.tracks.Duration(ctx, item.TrackID)
	if err != nil {
		return fmt.Errorf("playback: resolve track %s: %w", item.TrackID, err)
	}

	playedAt := time.Now()
	endedAt := playedAt.Add(duration)

	st := NowPlayingState{
		PlayingIndex: index,
		PlayingUID:   item.UID,
		PlayedAt:     playedAt,
		EndedAt:      endedAt,
	}
	if err := a.states.Set(ctx, sessionID, st); err != nil {
		return err
	}
	if err := a.skips.Arm(ctx, sessionID, endedAt); err != nil {
		return err
	}

	a.events.NowPlayingUpdated(ctx, sessionID, &item, a.peekNext(ctx, sessionID, index))
	return nil
}

// peekNext resolves the item after index for client pre-fetch. Best effort;
// a nil next is fine.
func (a *Actuator) peekNext(ctx context.Context, sessionID string, index int) *QueueItem {
	length, err := a.queue.Len(ctx, sessionID)
	if err != nil || length == 0 {
		return nil
	}
	next := 0
	if index < int(length)-1 {
		next = index + 1
	}
	if next == index {
		return nil
	}
	item, err := a.queue.ItemAt(ctx, sessionID, next)
	if err != nil {
		return nil
	}
	return item
}
