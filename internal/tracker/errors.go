package tracker

import (
	"errors"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/features"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/history"
)

// #region contract-errors
// ErrContract marks a violated caller contract. Every error in this family
// is returned before any state is touched and is meant to be fatal to the
// episode.
var ErrContract = errors.New("contract violation")

var (
	ErrEmptyAgentInform  = fmt.Errorf("%w: agent inform has no slots", ErrContract)
	ErrPlaceholderInform = fmt.Errorf("%w: grounded inform holds the placeholder", ErrContract)
	ErrMatchKeyInform    = fmt.Errorf("%w: grounded inform names the match key", ErrContract)
	ErrInformOnMatch     = fmt.Errorf("%w: match_found carries inform slots", ErrContract)
	ErrRoundOutOfRange   = fmt.Errorf("%w: round out of range", ErrContract)
	ErrNoUserAction      = fmt.Errorf("%w: no user action to encode", ErrContract)
)

// IsContract reports whether err belongs to the contract family, including
// the ones raised by the encoder and the history ledger.
func IsContract(err error) bool {
	return errors.Is(err, ErrContract) ||
		errors.Is(err, features.ErrRoundOutOfRange) ||
		errors.Is(err, history.ErrRoundRegression)
}

// #endregion contract-errors
