package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/registry"
)

// ErrRoundOutOfRange is returned when the round falls outside [1, MaxRound].
var ErrRoundOutOfRange = errors.New("features: round out of range")

// #region prober
// Prober is the read-only part of the knowledge base the encoder needs.
type Prober interface {
	AggregateQuery(ctx context.Context, c dialogue.Constraints, user dialogue.Action) (dialogue.Aggregate, error)
	Query(ctx context.Context, c dialogue.Constraints) (dialogue.Results, error)
}

// #endregion prober

// #region config
// Config fixes the vector shape for the lifetime of an encoder.
type Config struct {
	Intents           *registry.Registry
	Slots             *registry.Registry
	AgentInformSlots  []string
	AgentRequestSlots []string
	MaxRound          int
}

// Input is everything the encoder reads for one turn.
type Input struct {
	User        dialogue.Action
	Agent       *dialogue.Action // nil before the agent has spoken
	Requests    []string
	Constraints dialogue.Constraints
	Round       int
}

// #endregion config

// #region encoder
// Encoder turns tracker state into the fixed-length policy input.
type Encoder struct {
	intents      *registry.Registry
	slots        *registry.Registry
	agentInform  map[string]struct{}
	agentRequest map[string]struct{}
	maxRound     int
	layout       Layout
}

// NewEncoder validates cfg and fixes the layout.
func NewEncoder(cfg Config) (*Encoder, error) {
	if cfg.Intents == nil || cfg.Slots == nil {
		return nil, errors.New("encoder: intent and slot registries are required")
	}
	if cfg.MaxRound < 1 {
		return nil, fmt.Errorf("encoder: max round must be >= 1, got %d", cfg.MaxRound)
	}
	if err := cfg.Slots.Require(cfg.AgentInformSlots...); err != nil {
		return nil, fmt.Errorf("agent inform slots: %w", err)
	}
	if err := cfg.Slots.Require(cfg.AgentRequestSlots...); err != nil {
		return nil, fmt.Errorf("agent request slots: %w", err)
	}
	return &Encoder{
		intents:      cfg.Intents,
		slots:        cfg.Slots,
		agentInform:  toSet(cfg.AgentInformSlots),
		agentRequest: toSet(cfg.AgentRequestSlots),
		maxRound:     cfg.MaxRound,
		layout:       NewLayout(cfg.Intents.Len(), cfg.Slots.Len(), cfg.MaxRound),
	}, nil
}

// Layout returns the block layout.
func (e *Encoder) Layout() Layout { return e.layout }

// Size returns the vector length.
func (e *Encoder) Size() int { return e.layout.Size }

// Zero returns a fresh all-zero vector of the encoder's length.
func (e *Encoder) Zero() []float32 { return make([]float32, e.layout.Size) }

// Encode builds the state vector. When done is set it returns the zero
// vector without touching in or probe.
func (e *Encoder) Encode(ctx context.Context, done bool, in Input, probe Prober) ([]float32, error) {
	if done {
		return e.Zero(), nil
	}
	if in.Round < 1 || in.Round > e.maxRound {
		return nil, fmt.Errorf("%w: round %d, max %d", ErrRoundOutOfRange, in.Round, e.maxRound)
	}

	vec := e.Zero()
	l := e.layout

	// User act.
	if err := e.oneHot(vec, l.UserIntent, in.User.Intent); err != nil {
		return nil, err
	}
	if err := e.bag(vec, l.UserInform, in.User.InformKeys(), nil); err != nil {
		return nil, err
	}
	if err := e.bag(vec, l.UserRequest, in.Requests, nil); err != nil {
		return nil, err
	}

	// Previous agent act.
	if in.Agent != nil {
		if err := e.oneHot(vec, l.AgentIntent, in.Agent.Intent); err != nil {
			return nil, err
		}
		if err := e.bag(vec, l.AgentInform, in.Agent.InformKeys(), e.agentInform); err != nil {
			return nil, err
		}
		if err := e.bag(vec, l.AgentRequest, in.Agent.RequestSlots, e.agentRequest); err != nil {
			return nil, err
		}
	}

	if err := e.bag(vec, l.Constraints, in.Constraints.Slots(), nil); err != nil {
		return nil, err
	}

	vec[l.Turn[0]] = float32(in.Round) / 5.0
	vec[l.TurnOneHot[0]+in.Round-1] = 1.0

	agg, err := probe.AggregateQuery(ctx, in.Constraints, in.User)
	if err != nil {
		return nil, fmt.Errorf("aggregate probe: %w", err)
	}
	e.fillAggregate(vec, agg)

	results, err := probe.Query(ctx, in.Constraints)
	if err != nil {
		return nil, fmt.Errorf("record probe: %w", err)
	}
	e.fillRecordSlots(vec, results)

	return vec, nil
}

// #endregion encoder

// #region blocks
func (e *Encoder) oneHot(vec []float32, r [2]int, intent string) error {
	i, err := e.intents.Index(intent)
	if err != nil {
		return err
	}
	vec[r[0]+i] = 1.0
	return nil
}

// bag sets one bit per slot. When allowed is non-nil, slots outside it are
// skipped rather than rejected.
func (e *Encoder) bag(vec []float32, r [2]int, slots []string, allowed map[string]struct{}) error {
	for _, s := range slots {
		if allowed != nil {
			if _, ok := allowed[s]; !ok {
				continue
			}
		}
		i, err := e.slots.Index(s)
		if err != nil {
			return err
		}
		vec[r[0]+i] = 1.0
	}
	return nil
}

// fillAggregate seeds every cell of both kb blocks with the all-constraints
// count, then overwrites cells of slots the aggregate reports. Keys that are
// not registered slots are ignored.
func (e *Encoder) fillAggregate(vec []float32, agg dialogue.Aggregate) {
	all := agg[dialogue.MatchingAllKey]
	bin, cnt := e.layout.KBBinary, e.layout.KBCount
	for i := 0; i < bin[1]-bin[0]; i++ {
		vec[bin[0]+i] = binary(all)
		vec[cnt[0]+i] = float32(all) / 100.0
	}
	for key, n := range agg {
		i, err := e.slots.Index(key)
		if err != nil {
			continue
		}
		vec[bin[0]+i] = binary(n)
		vec[cnt[0]+i] = float32(n) / 100.0
	}
}

// fillRecordSlots marks slots whose attribute in the first record is a
// non-empty list.
func (e *Encoder) fillRecordSlots(vec []float32, results dialogue.Results) {
	_, rec, ok := results.First()
	if !ok {
		return
	}
	r := e.layout.RecordSlots
	for slot, value := range rec {
		i, err := e.slots.Index(slot)
		if err != nil {
			continue
		}
		if dialogue.IsNonEmptyList(value) {
			vec[r[0]+i] = 1.0
		}
	}
}

func binary(n int) float32 {
	if n > 0 {
		return 1.0
	}
	return 0
}

func toSet(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// #endregion blocks
