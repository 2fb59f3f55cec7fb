package tracker

import (
	"context"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"go.uber.org/zap"
)

// #region slot-filling
// resolveInform grounds an agent inform through the knowledge base.
func (t *Tracker) resolveInform(ctx context.Context, a dialogue.Action) (dialogue.Action, error) {
	if len(a.InformSlots) == 0 {
		return dialogue.Action{}, ErrEmptyAgentInform
	}
	user, _ := t.history.LatestBy(dialogue.SpeakerUser)
	proposed := a.Clone().InformSlots

	inform, objs, err := t.db.FillInformSlot(ctx, proposed, t.store.Snapshot(), user)
	if err != nil {
		return dialogue.Action{}, fmt.Errorf("fill inform slot: %w", err)
	}
	if err := t.checkGrounded(inform); err != nil {
		return dialogue.Action{}, err
	}

	out := a.Clone()
	out.InformSlots = dialogue.Action{InformSlots: inform}.Clone().InformSlots
	out.MatchObjects = append([]dialogue.MatchObject{}, objs...)
	out, err = t.appendAgent(out)
	if err != nil {
		return dialogue.Action{}, err
	}

	// The user's current-turn informs are re-applied before the grounded
	// value so an agent answer on the same slot wins.
	t.applyInforms(user.InformSlots)
	t.applyInforms(out.InformSlots)
	t.store.AppendCandidates(t.round, objs)

	t.logger.Debug("agent inform grounded",
		zap.Any("proposed", proposed),
		zap.Any("grounded", out.InformSlots),
		zap.Int("match_objects", len(objs)),
		zap.Int("round", t.round))
	return out, nil
}

func (t *Tracker) checkGrounded(inform map[string]any) error {
	if len(inform) == 0 {
		return ErrEmptyAgentInform
	}
	for k, v := range inform {
		if k == t.matchKey {
			return fmt.Errorf("%w: %q", ErrMatchKeyInform, k)
		}
		for _, s := range dialogue.Strings(v) {
			if s == dialogue.Placeholder {
				return fmt.Errorf("%w: slot %q", ErrPlaceholderInform, k)
			}
		}
	}
	if err := t.slots.Require(dialogue.Action{InformSlots: inform}.InformKeys()...); err != nil {
		return fmt.Errorf("grounded inform: %w", err)
	}
	return nil
}

// #endregion slot-filling

// #region match
// resolveMatch announces a match chosen from the current query results.
func (t *Tracker) resolveMatch(ctx context.Context, a dialogue.Action) (dialogue.Action, error) {
	if len(a.InformSlots) > 0 {
		return dialogue.Action{}, ErrInformOnMatch
	}
	results, err := t.db.Query(ctx, t.store.Snapshot())
	if err != nil {
		return dialogue.Action{}, fmt.Errorf("match query: %w", err)
	}

	inform := make(map[string]any)
	objs := []dialogue.MatchObject{}
	if len(results) == 0 {
		inform[t.matchKey] = dialogue.NoMatch
	} else {
		chosen := t.preferRequested(results)
		keys := chosen.Keys()
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = map[string]any(chosen[k].Clone())
		}
		repKey := keys[0]
		inform[repKey] = values
		inform[t.matchKey] = repKey
		objs = t.subOfferings(chosen[repKey])
	}

	out := a.Clone()
	out.InformSlots = inform
	out.MatchObjects = objs
	out, err = t.appendAgent(out)
	if err != nil {
		return dialogue.Action{}, err
	}
	// The match key is a scalar slot; routing cannot fail.
	_ = t.store.SetScalar(t.matchKey, inform[t.matchKey])

	t.logger.Debug("match resolved",
		zap.Any("match", inform[t.matchKey]),
		zap.Int("results", len(results)),
		zap.Int("match_objects", len(objs)),
		zap.Int("round", t.round))
	return out, nil
}

// preferRequested narrows results to records holding a non-empty list
// under the earliest requested slot, when any do.
func (t *Tracker) preferRequested(results dialogue.Results) dialogue.Results {
	want, ok := t.requests.First()
	if !ok || want == t.matchKey {
		return results
	}
	filtered := make(dialogue.Results)
	for k, rec := range results {
		if dialogue.IsNonEmptyList(rec[want]) {
			filtered[k] = rec
		}
	}
	if len(filtered) == 0 {
		return results
	}
	return filtered
}

// subOfferings keeps the record's correlations that satisfy at least one
// mapping row. It returns an empty list unless the mapping group is active.
func (t *Tracker) subOfferings(rec dialogue.Record) []dialogue.MatchObject {
	out := []dialogue.MatchObject{}
	if !t.store.HasMapping() {
		return out
	}
	corr := rec.Correlations()
	rows := t.store.Rows()
	if len(corr) == 0 || len(rows) == 0 {
		return out
	}
	for _, m := range corr {
		for _, r := range rows {
			if t.matcher(r.Match, m) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// #endregion match
