package features

import (
	"context"
	"errors"
	"testing"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/registry"
	"github.com/google/go-cmp/cmp"
)

// #region helpers
type stubProber struct {
	agg     dialogue.Aggregate
	results dialogue.Results
	err     error
	calls   int
}

func (p *stubProber) AggregateQuery(_ context.Context, _ dialogue.Constraints, _ dialogue.Action) (dialogue.Aggregate, error) {
	p.calls++
	return p.agg, p.err
}

func (p *stubProber) Query(_ context.Context, _ dialogue.Constraints) (dialogue.Results, error) {
	p.calls++
	return p.results, p.err
}

func newEncoder(t *testing.T) *Encoder {
	t.Helper()
	intents, _ := registry.New("intent", []string{"inform", "request", "match_found"})
	slots, _ := registry.New("slot", []string{"a", "b", "match"})
	e, err := NewEncoder(Config{
		Intents:           intents,
		Slots:             slots,
		AgentInformSlots:  []string{"a", "b"},
		AgentRequestSlots: []string{"a"},
		MaxRound:          10,
	})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	return e
}

func userInput(round int) Input {
	return Input{
		User: dialogue.Action{
			Intent:      "inform",
			InformSlots: map[string]any{"a": "X"},
			Speaker:     dialogue.SpeakerUser,
		},
		Round: round,
	}
}

// #endregion helpers

func TestLayoutSize(t *testing.T) {
	l := NewLayout(3, 3, 10)
	// 2I + 8S + 4 + M
	if l.Size != 2*3+8*3+4+10 {
		t.Fatalf("unexpected size %d", l.Size)
	}
	prev := 0
	for _, b := range l.Blocks() {
		if b.Range[0] != prev {
			t.Fatalf("block %s starts at %d, want %d", b.Name, b.Range[0], prev)
		}
		prev = b.Range[1]
	}
	if prev != l.Size {
		t.Fatalf("blocks end at %d, size %d", prev, l.Size)
	}
}

func TestEncodeDoneSkipsEverything(t *testing.T) {
	e := newEncoder(t)
	p := &stubProber{err: errors.New("must not be called")}

	// Invalid round and unknown intent are ignored on the done path.
	vec, err := e.Encode(context.Background(), true, Input{Round: 99, User: dialogue.Action{Intent: "nope"}}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("probe called %d times on done", p.calls)
	}
	if len(vec) != e.Size() {
		t.Fatalf("len = %d, want %d", len(vec), e.Size())
	}
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("non-zero at %d", i)
		}
	}
}

func TestEncodeBlocks(t *testing.T) {
	e := newEncoder(t)
	l := e.Layout()
	p := &stubProber{
		agg: dialogue.Aggregate{dialogue.MatchingAllKey: 3, "a": 0, "b": 250, "unregistered": 7},
		results: dialogue.Results{
			"r2": {"a": []any{"x"}, "b": []any{"y"}},
			"r1": {"a": []any{}, "b": []any{"y"}, "match": "m"},
		},
	}
	in := userInput(2)
	in.Requests = []string{"b"}
	in.Agent = &dialogue.Action{
		Intent:       "request",
		InformSlots:  map[string]any{"match": "z", "b": "y"},
		RequestSlots: []string{"a", "b"},
	}
	in.Constraints = dialogue.Constraints{Scalars: map[string]any{"a": "X", "match": "m"}}

	vec, err := e.Encode(context.Background(), false, in, p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	check := func(name string, r [2]int, want []float32) {
		t.Helper()
		if diff := cmp.Diff(want, Slice(vec, r)); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
	check("user_intent", l.UserIntent, []float32{1, 0, 0})
	check("user_inform", l.UserInform, []float32{1, 0, 0})
	check("user_request", l.UserRequest, []float32{0, 1, 0})
	check("agent_intent", l.AgentIntent, []float32{0, 1, 0})
	// "match" is not agent-informable.
	check("agent_inform", l.AgentInform, []float32{0, 1, 0})
	// only "a" is agent-requestable.
	check("agent_request", l.AgentRequest, []float32{1, 0, 0})
	check("constraints", l.Constraints, []float32{1, 0, 1})
	check("turn", l.Turn, []float32{0.4})
	check("turn_onehot", l.TurnOneHot, []float32{0, 1, 0, 0, 0, 0, 0, 0, 0, 0})
	// "match" cell and the trailing cell keep the all-constraints value.
	check("kb_binary", l.KBBinary, []float32{0, 1, 1, 1})
	check("kb_count", l.KBCount, []float32{0, 2.5, 0.03, 0.03})
	// r1 is the first record: only b is a non-empty list there.
	check("record_slots", l.RecordSlots, []float32{0, 1, 0, 0})
}

func TestEncodeWithoutAgentLeavesAgentBlocksZero(t *testing.T) {
	e := newEncoder(t)
	l := e.Layout()
	vec, err := e.Encode(context.Background(), false, userInput(1), &stubProber{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, r := range [][2]int{l.AgentIntent, l.AgentInform, l.AgentRequest, l.KBBinary, l.KBCount, l.RecordSlots} {
		for _, v := range Slice(vec, r) {
			if v != 0 {
				t.Fatalf("expected zero block %v, got %v", r, Slice(vec, r))
			}
		}
	}
}

func TestEncodeRoundOutOfRange(t *testing.T) {
	e := newEncoder(t)
	for _, round := range []int{0, 11} {
		_, err := e.Encode(context.Background(), false, userInput(round), &stubProber{})
		if !errors.Is(err, ErrRoundOutOfRange) {
			t.Fatalf("round %d: expected ErrRoundOutOfRange, got %v", round, err)
		}
	}
	if _, err := e.Encode(context.Background(), false, userInput(10), &stubProber{}); err != nil {
		t.Fatalf("round 10 should be valid: %v", err)
	}
}

func TestEncodeUnknownNames(t *testing.T) {
	e := newEncoder(t)

	in := userInput(1)
	in.User.Intent = "greet"
	_, err := e.Encode(context.Background(), false, in, &stubProber{})
	var cfgErr *registry.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != "intent" || cfgErr.Name != "greet" {
		t.Fatalf("expected intent ConfigError, got %v", err)
	}

	in = userInput(1)
	in.Constraints = dialogue.Constraints{Scalars: map[string]any{"zzz": 1}}
	_, err = e.Encode(context.Background(), false, in, &stubProber{})
	if !errors.As(err, &cfgErr) || cfgErr.Name != "zzz" {
		t.Fatalf("expected slot ConfigError, got %v", err)
	}
}

func TestEncodeProbeErrorPropagates(t *testing.T) {
	e := newEncoder(t)
	boom := errors.New("db down")
	_, err := e.Encode(context.Background(), false, userInput(1), &stubProber{err: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped probe error, got %v", err)
	}
}

func TestNewEncoderValidatesAgentSubsets(t *testing.T) {
	intents, _ := registry.New("intent", []string{"inform"})
	slots, _ := registry.New("slot", []string{"a"})
	_, err := NewEncoder(Config{Intents: intents, Slots: slots, AgentInformSlots: []string{"b"}, MaxRound: 1})
	if !errors.Is(err, registry.ErrUnknownName) {
		t.Fatalf("expected unknown slot error, got %v", err)
	}
	if _, err := NewEncoder(Config{Intents: intents, Slots: slots, MaxRound: 0}); err == nil {
		t.Fatal("expected max round error")
	}
}
