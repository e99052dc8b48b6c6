package playback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CommandChannel carries playback commands from stateless API processes to
// the scheduler processes that actually mutate shared state.
const CommandChannel = "playback:commands"

type Action string

const (
	ActionSkipForward  Action = "skipForward"
	ActionSkipBackward Action = "skipBackward"
	ActionPlayIndex    Action = "playIndex"
	ActionPlayUID      Action = "playUid"
	// ActionReschedule re-arms the skip schedule without a transition. Used
	// internally when an entry must be restored at a known end time.
	ActionReschedule Action = "reschedule"
)

// Command is the typed message on the command channel. JSON-encoded rather
// than string-concatenated so decoding is unambiguous.
type Command struct {
	Action    Action `json:"action"`
	SessionID string `json:"sessionId"`
	Index     int    `json:"index"`
	UID       string `json:"uid,omitempty"`
	EndedAt   int64  `json:"endedAt,omitempty"` // ms since epoch, reschedule only
}

func EncodeCommand(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("playback: encode command: %w", err)
	}
	return data, nil
}

func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("playback: decode command: %w", err)
	}
	switch cmd.Action {
	case ActionSkipForward, ActionSkipBackward, ActionPlayIndex, ActionPlayUID, ActionReschedule:
	default:
		return Command{}, fmt.Errorf("playback: unknown command action %q", cmd.Action)
	}
	if cmd.SessionID == "" {
		return Command{}, fmt.Errorf("playback: command without session id")
	}
	return cmd, nil
}

// CommandBus publishes commands for the scheduler processes. API handlers
// never actuate transitions in-process; they go through here.
type CommandBus struct {
	rdb *redis.Client
}

func NewCommandBus(rdb *redis.Client) *CommandBus {
	return &CommandBus{rdb: rdb}
}

func (b *CommandBus) Publish(ctx context.Context, cmd Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, CommandChannel, data).Err(); err != nil {
		return fmt.Errorf("playback: publish command: %w", err)
	}
	return nil
}
