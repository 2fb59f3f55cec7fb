package replay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/eval"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/logging"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/state"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/tracker"
	"go.uber.org/zap"
)

// #region types
// Per-turn actions. The agent outcomes reuse the resolution log vocabulary.
const (
	ActionGrounded      = logging.OutcomeGrounded
	ActionMatch         = logging.OutcomeMatch
	ActionNoMatch       = logging.OutcomeNoMatch
	ActionAppended      = logging.OutcomeAppended
	ActionObserved      = "observed"
	ActionContractError = "contract_error"
	ActionError         = "error"
)

// Turn is one recorded exchange: an optional user action, the encoded state
// the policy saw, then an optional agent action.
type Turn struct {
	TurnID string
	User   *dialogue.Action
	Agent  *dialogue.Action
	Done   bool
}

// ReplayConfig controls validation and persistence of a replay run.
type ReplayConfig struct {
	EvalConfig eval.EvalConfig
	// Store, when set, receives one episode with a snapshot per turn and a
	// resolution row per agent action.
	Store  *state.Store
	Logger *zap.Logger
}

// DefaultReplayConfig validates with the default eval config and persists
// nothing.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		EvalConfig: eval.DefaultEvalConfig(),
		Logger:     zap.NewNop(),
	}
}

// ReplayResult captures the outcome of replaying one turn.
type ReplayResult struct {
	TurnID string
	Action string
	Reason string
	Round  int

	// Vector is the state encoded after the user action.
	Vector     []float32
	EvalResult *eval.EvalResult

	// Agent is the grounded agent action as stored in the history.
	Agent *dialogue.Action

	VersionID string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns     int
	Grounded       int
	Matches        int
	NoMatches      int
	Appended       int
	Observed       int
	ContractErrors int
	Errors         int
	EvalFailures   int
	Mismatches     int
	EpisodeID      string
}

// #endregion types

// #region replay
// Replay drives tr through turns. tr is reset first. A contract error ends
// the episode; the failing turn is the last result.
func Replay(ctx context.Context, tr *tracker.Tracker, turns []Turn, config ReplayConfig) ([]ReplayResult, string, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tr.Reset()
	evalInst := eval.NewEvalHarness(config.EvalConfig)

	var episodeID string
	if config.Store != nil {
		ep, err := config.Store.BeginEpisode(tr.Layout())
		if err != nil {
			return nil, "", err
		}
		episodeID = ep.ID
	}

	results := make([]ReplayResult, 0, len(turns))
	for _, turn := range turns {
		r := ReplayResult{TurnID: turn.TurnID}

		// 1. User action
		if turn.User != nil {
			if err := tr.UpdateUser(*turn.User); err != nil {
				results = append(results, failed(r, err))
				if tracker.IsContract(err) {
					break
				}
				continue
			}
		}

		// 2. Encode the state the policy would see
		vec, err := tr.State(ctx, turn.Done)
		if err != nil {
			results = append(results, failed(r, err))
			if tracker.IsContract(err) {
				break
			}
			continue
		}
		r.Vector = vec
		evalResult := evalInst.Run(tr.Layout(), vec)
		r.EvalResult = &evalResult
		if !evalResult.Passed {
			logger.Warn("state vector failed validation",
				zap.String("turn_id", turn.TurnID), zap.String("reason", evalResult.Reason))
		}
		if config.Store != nil && turn.User != nil {
			latest := tr.History()[len(tr.History())-1]
			saved, err := config.Store.CommitTurn(state.TurnRecord{
				EpisodeID: episodeID,
				Round:     tr.Round(),
				Speaker:   dialogue.SpeakerUser,
				Action:    latest,
				Vector:    vec,
				Done:      turn.Done,
			})
			if err != nil {
				return results, episodeID, err
			}
			r.VersionID = saved.VersionID
		}

		// 3. Agent action
		r.Action = ActionObserved
		r.Reason = evalResult.Reason
		if turn.Agent != nil {
			out, err := tr.UpdateAgent(ctx, *turn.Agent)
			if config.Store != nil {
				if lerr := logging.LogResolution(config.Store.DB(), resolutionEntry(episodeID, r.VersionID, tr, *turn.Agent, out, err)); lerr != nil {
					logger.Error("log resolution", zap.Error(lerr))
				}
			}
			if err != nil {
				results = append(results, failed(r, err))
				if tracker.IsContract(err) {
					break
				}
				continue
			}
			r.Agent = &out
			r.Action = agentOutcome(out, tr.MatchKey())
		}
		r.Round = tr.Round()
		results = append(results, r)
		logger.Debug("turn replayed", zap.String("turn_id", turn.TurnID), zap.String("action", r.Action))
	}
	return results, episodeID, nil
}

func failed(r ReplayResult, err error) ReplayResult {
	r.Action = ActionError
	if tracker.IsContract(err) {
		r.Action = ActionContractError
	}
	r.Reason = err.Error()
	return r
}

func agentOutcome(a dialogue.Action, matchKey string) string {
	switch a.Intent {
	case dialogue.IntentInform:
		return ActionGrounded
	case dialogue.IntentMatchFound:
		if a.InformSlots[matchKey] == dialogue.NoMatch {
			return ActionNoMatch
		}
		return ActionMatch
	}
	return ActionAppended
}

func resolutionEntry(episodeID, versionID string, tr *tracker.Tracker, proposed, grounded dialogue.Action, err error) logging.ResolutionEntry {
	entry := logging.ResolutionEntry{
		EpisodeID:    episodeID,
		VersionID:    versionID,
		Round:        tr.Round(),
		Intent:       proposed.Intent,
		ProposedJSON: marshalOrEmpty(proposed.InformSlots),
	}
	if err != nil {
		entry.Outcome = logging.OutcomeRejected
		entry.Reason = err.Error()
		return entry
	}
	entry.GroundedJSON = marshalOrEmpty(grounded.InformSlots)
	entry.MatchObjects = len(grounded.MatchObjects)
	entry.Outcome = agentOutcome(grounded, tr.MatchKey())
	if v, ok := grounded.InformSlots[tr.MatchKey()]; ok {
		entry.MatchKey = dialogue.Display(v)
	}
	return entry
}

func marshalOrEmpty(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Summarize computes aggregate stats from replay results. Expected results
// are matched by turn ID; turns without an expectation are not checked.
func Summarize(results []ReplayResult, expected []FixtureExpectedResult) ReplaySummary {
	s := ReplaySummary{TotalTurns: len(results)}
	byID := make(map[string]FixtureExpectedResult, len(expected))
	for _, e := range expected {
		byID[e.TurnID] = e
	}
	for _, r := range results {
		switch r.Action {
		case ActionGrounded:
			s.Grounded++
		case ActionMatch:
			s.Matches++
		case ActionNoMatch:
			s.NoMatches++
		case ActionAppended:
			s.Appended++
		case ActionObserved:
			s.Observed++
		case ActionContractError:
			s.ContractErrors++
		case ActionError:
			s.Errors++
		}
		if r.EvalResult != nil && !r.EvalResult.Passed {
			s.EvalFailures++
		}
		if e, ok := byID[r.TurnID]; ok && len(Check(r, e)) > 0 {
			s.Mismatches++
		}
	}
	return s
}

// ErrMismatch is returned by callers that treat expectation drift as failure.
var ErrMismatch = errors.New("replay: expectation mismatch")

// #endregion replay
