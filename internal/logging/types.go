package logging

import "time"

// Resolution outcomes.
const (
	OutcomeGrounded = "grounded"
	OutcomeMatch    = "match"
	OutcomeNoMatch  = "no_match"
	OutcomeAppended = "appended"
	OutcomeRejected = "rejected"
)

// #region resolution-entry
// ResolutionEntry is a single row in the resolution_log table: what the
// agent proposed, what the knowledge base grounded it to and why.
type ResolutionEntry struct {
	EpisodeID    string
	VersionID    string
	Round        int
	Intent       string
	ProposedJSON string
	GroundedJSON string
	MatchKey     string
	MatchObjects int
	Outcome      string
	Reason       string
	CreatedAt    time.Time
}

// #endregion resolution-entry
