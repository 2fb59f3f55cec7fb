package tracker

import (
	"context"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/constraint"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/features"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/history"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/registry"
	"go.uber.org/zap"
)

// #region types
// Config is the static configuration of one tracker.
type Config struct {
	Intents           []string `json:"intents" yaml:"intents"`
	Slots             []string `json:"slots" yaml:"slots"`
	AgentInformSlots  []string `json:"agent_inform_slots" yaml:"agent_inform_slots"`
	AgentRequestSlots []string `json:"agent_request_slots" yaml:"agent_request_slots"`
	MaxRoundNum       int      `json:"max_round_num" yaml:"max_round_num"`
	// DefaultKey is the match key. Empty means dialogue.DefaultMatchKey.
	DefaultKey string `json:"default_key" yaml:"default_key"`
}

// Database is the knowledge base the tracker grounds agent acts against.
type Database interface {
	features.Prober
	FillInformSlot(ctx context.Context, proposed map[string]any, c dialogue.Constraints, user dialogue.Action) (map[string]any, []dialogue.MatchObject, error)
}

// #endregion types

// #region tracker
// Tracker holds the state of one episode. It is not safe for concurrent use;
// run one tracker per episode and Reset it before reuse.
type Tracker struct {
	intents  *registry.Registry
	slots    *registry.Registry
	encoder  *features.Encoder
	db       Database
	matcher  dialogue.Matcher
	logger   *zap.Logger
	matchKey string
	maxRound int

	history  *history.Ledger
	store    *constraint.Store
	requests *constraint.RequestTracker
	round    int
}

// New builds a tracker. matcher defaults to dialogue.MatchFields and logger
// to a no-op logger.
func New(cfg Config, db Database, matcher dialogue.Matcher, logger *zap.Logger) (*Tracker, error) {
	if db == nil {
		return nil, fmt.Errorf("new tracker: database is required")
	}
	intents, err := registry.New("intent", cfg.Intents)
	if err != nil {
		return nil, fmt.Errorf("new tracker: %w", err)
	}
	slots, err := registry.New("slot", cfg.Slots)
	if err != nil {
		return nil, fmt.Errorf("new tracker: %w", err)
	}
	matchKey := cfg.DefaultKey
	if matchKey == "" {
		matchKey = dialogue.DefaultMatchKey
	}
	if err := slots.Require(matchKey); err != nil {
		return nil, fmt.Errorf("new tracker: match key: %w", err)
	}
	if dialogue.IsMappingSlot(matchKey) {
		return nil, fmt.Errorf("new tracker: match key %q is a mapping slot", matchKey)
	}
	if err := requireMappingGroup(slots); err != nil {
		return nil, fmt.Errorf("new tracker: mapping slots: %w", err)
	}
	enc, err := features.NewEncoder(features.Config{
		Intents:           intents,
		Slots:             slots,
		AgentInformSlots:  cfg.AgentInformSlots,
		AgentRequestSlots: cfg.AgentRequestSlots,
		MaxRound:          cfg.MaxRoundNum,
	})
	if err != nil {
		return nil, fmt.Errorf("new tracker: %w", err)
	}
	if matcher == nil {
		matcher = dialogue.MatchFields
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		intents:  intents,
		slots:    slots,
		encoder:  enc,
		db:       db,
		matcher:  matcher,
		logger:   logger,
		matchKey: matchKey,
		maxRound: cfg.MaxRoundNum,
		history:  history.NewLedger(),
		store:    constraint.NewStore(),
		requests: constraint.NewRequestTracker(),
	}, nil
}

// requireMappingGroup accepts a slot registry holding none or all of the
// mapping slots. The constraint store reports the whole group once any
// member is set.
func requireMappingGroup(slots *registry.Registry) error {
	registered := 0
	for _, s := range dialogue.MappingSlots {
		if slots.Contains(s) {
			registered++
		}
	}
	if registered == 0 {
		return nil
	}
	return slots.Require(dialogue.MappingSlots[:]...)
}

// Reset clears history, constraints, requests and the round counter.
func (t *Tracker) Reset() {
	t.history.Reset()
	t.store.Reset()
	t.requests.Reset()
	t.round = 0
}

// #endregion tracker

// #region accessors
func (t *Tracker) Round() int                       { return t.round }
func (t *Tracker) MatchKey() string                 { return t.matchKey }
func (t *Tracker) StateSize() int                   { return t.encoder.Size() }
func (t *Tracker) Layout() features.Layout          { return t.encoder.Layout() }
func (t *Tracker) History() []dialogue.Action       { return t.history.All() }
func (t *Tracker) Constraints() dialogue.Constraints { return t.store.Snapshot() }
func (t *Tracker) Requests() []string               { return t.requests.Slots() }

// Representative returns the representative half of a mapping slot.
func (t *Tracker) Representative(slot string) string { return t.store.Representative(slot) }

// Candidates returns one column of the mapping table.
func (t *Tracker) Candidates(slot string) []string { return t.store.Candidates(slot) }

// #endregion accessors

// #region user
// UpdateUser integrates a user action. Nothing is mutated unless every
// intent and slot is registered and the round stays within the maximum.
func (t *Tracker) UpdateUser(a dialogue.Action) error {
	if _, err := t.intents.Index(a.Intent); err != nil {
		return fmt.Errorf("user action: %w", err)
	}
	if err := t.slots.Require(a.InformKeys()...); err != nil {
		return fmt.Errorf("user inform: %w", err)
	}
	if err := t.slots.Require(a.RequestSlots...); err != nil {
		return fmt.Errorf("user request: %w", err)
	}
	if t.round >= t.maxRound {
		return fmt.Errorf("%w: user turn at round %d, max %d", ErrRoundOutOfRange, t.round, t.maxRound)
	}

	out := a.Clone()
	out.Round = t.round
	out.Speaker = dialogue.SpeakerUser
	if err := t.history.Append(out); err != nil {
		return err
	}
	t.applyInforms(a.InformSlots)
	if hasMappingInform(a.InformSlots) {
		t.store.AppendCandidates(t.round, a.MatchObjects)
	}
	t.requests.Add(a.RequestSlots...)
	t.round++

	t.logger.Debug("user action integrated",
		zap.String("intent", a.Intent),
		zap.Strings("inform", a.InformKeys()),
		zap.Strings("request", a.RequestSlots),
		zap.Int("round", t.round))
	return nil
}

// applyInforms writes informs in ascending slot order.
func (t *Tracker) applyInforms(informs map[string]any) {
	for _, k := range (dialogue.Action{InformSlots: informs}).InformKeys() {
		// Set only fails on a slot-kind mismatch, which routing rules out.
		_ = t.store.Set(k, informs[k])
	}
}

// hasMappingInform reports whether any informed slot is a mapping slot.
// Attached match objects only become mapping rows in that case.
func hasMappingInform(informs map[string]any) bool {
	for k := range informs {
		if dialogue.IsMappingSlot(k) {
			return true
		}
	}
	return false
}

// #endregion user

// #region agent
// UpdateAgent grounds and integrates an agent action and returns the action
// as stored in the history.
func (t *Tracker) UpdateAgent(ctx context.Context, a dialogue.Action) (dialogue.Action, error) {
	if _, err := t.intents.Index(a.Intent); err != nil {
		return dialogue.Action{}, fmt.Errorf("agent action: %w", err)
	}
	if err := t.slots.Require(a.RequestSlots...); err != nil {
		return dialogue.Action{}, fmt.Errorf("agent request: %w", err)
	}

	var (
		out dialogue.Action
		err error
	)
	switch a.Intent {
	case dialogue.IntentInform:
		out, err = t.resolveInform(ctx, a)
	case dialogue.IntentMatchFound:
		out, err = t.resolveMatch(ctx, a)
	default:
		out = a.Clone()
		out.MatchObjects = []dialogue.MatchObject{}
		out, err = t.appendAgent(out)
	}
	if err != nil {
		return dialogue.Action{}, err
	}
	return out, nil
}

func (t *Tracker) appendAgent(a dialogue.Action) (dialogue.Action, error) {
	a.Round = t.round
	a.Speaker = dialogue.SpeakerAgent
	if err := t.history.Append(a); err != nil {
		return dialogue.Action{}, err
	}
	return a.Clone(), nil
}

// #endregion agent

// #region state
// State encodes the current state. With done set it returns the zero
// vector and touches nothing else. The latest user action is encoded even
// when an agent action was appended after it, so the state seen after an
// agent turn is well defined.
func (t *Tracker) State(ctx context.Context, done bool) ([]float32, error) {
	if done {
		return t.encoder.Zero(), nil
	}
	user, ok := t.history.LatestBy(dialogue.SpeakerUser)
	if !ok {
		return nil, ErrNoUserAction
	}
	in := features.Input{
		User:        user,
		Requests:    t.requests.Slots(),
		Constraints: t.store.Snapshot(),
		Round:       t.round,
	}
	if agent, ok := t.history.LatestBy(dialogue.SpeakerAgent); ok {
		in.Agent = &agent
	}
	vec, err := t.encoder.Encode(ctx, false, in, t.db)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return vec, nil
}

// #endregion state
