package state

import (
	"time"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/features"
)

// #region episode
// Episode is one persisted conversation. HeadID points at the latest
// committed turn.
type Episode struct {
	ID        string
	HeadID    string
	Layout    features.Layout
	Turns     int
	StartedAt time.Time
}

// #endregion episode

// #region turn-record
// TurnRecord is the encoded state after one action, chained to the previous
// turn of the same episode.
type TurnRecord struct {
	VersionID string
	EpisodeID string
	ParentID  string
	Round     int
	Speaker   dialogue.Speaker
	Action    dialogue.Action
	Vector    []float32
	Done      bool
	CreatedAt time.Time
}

// #endregion turn-record
