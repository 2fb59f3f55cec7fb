package history

import (
	"errors"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
)

// ErrRoundRegression is returned when an appended action carries a round
// lower than the last stored one.
var ErrRoundRegression = errors.New("history: round regression")

// #region ledger
// Ledger is the append-only action log of one episode.
type Ledger struct {
	actions []dialogue.Action
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append stores a deep copy of a. The copy is never handed out again;
// readers always receive further copies.
func (l *Ledger) Append(a dialogue.Action) error {
	if n := len(l.actions); n > 0 && a.Round < l.actions[n-1].Round {
		return fmt.Errorf("%w: round %d after %d", ErrRoundRegression, a.Round, l.actions[n-1].Round)
	}
	l.actions = append(l.actions, a.Clone())
	return nil
}

// Len returns the number of stored actions.
func (l *Ledger) Len() int { return len(l.actions) }

// Last returns up to n most recent actions, oldest first.
func (l *Ledger) Last(n int) []dialogue.Action {
	if n <= 0 {
		return nil
	}
	if n > len(l.actions) {
		n = len(l.actions)
	}
	tail := l.actions[len(l.actions)-n:]
	out := make([]dialogue.Action, len(tail))
	for i, a := range tail {
		out[i] = a.Clone()
	}
	return out
}

// Latest returns the most recent action.
func (l *Ledger) Latest() (dialogue.Action, bool) {
	if len(l.actions) == 0 {
		return dialogue.Action{}, false
	}
	return l.actions[len(l.actions)-1].Clone(), true
}

// LatestBy returns the most recent action produced by speaker.
func (l *Ledger) LatestBy(speaker dialogue.Speaker) (dialogue.Action, bool) {
	for i := len(l.actions) - 1; i >= 0; i-- {
		if l.actions[i].Speaker == speaker {
			return l.actions[i].Clone(), true
		}
	}
	return dialogue.Action{}, false
}

// All returns a copy of the whole history.
func (l *Ledger) All() []dialogue.Action {
	return l.Last(len(l.actions))
}

// Reset drops every action.
func (l *Ledger) Reset() {
	l.actions = nil
}

// #endregion ledger
