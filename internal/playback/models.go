package playback

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// QueueItem is one entry of a session's queue. The UID is assigned on
// enqueue and never changes, so it survives index shifts when the queue
// is edited elsewhere.
type QueueItem struct {
	UID       string `json:"uid"`
	TrackID   string `json:"trackId"`
	CreatorID string `json:"creatorId"`
}

// NowPlayingState is the single source of truth for what a session is
// playing right now. It is always replaced wholesale, never merged.
type NowPlayingState struct {
	PlayingIndex int       `json:"playingIndex"`
	PlayingUID   string    `json:"playingUid"`
	PlayedAt     time.Time `json:"playedAt"`
	EndedAt      time.Time `json:"endedAt"`
}

func newUID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic("playback: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
