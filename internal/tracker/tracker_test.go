package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/kb"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/registry"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region helpers
type stubDB struct {
	results dialogue.Results
	agg     dialogue.Aggregate
	fill    map[string]any
	objs    []dialogue.MatchObject
	err     error

	calls    int
	lastView dialogue.Constraints
}

func (s *stubDB) AggregateQuery(_ context.Context, c dialogue.Constraints, _ dialogue.Action) (dialogue.Aggregate, error) {
	s.calls++
	s.lastView = c
	return s.agg, s.err
}

func (s *stubDB) Query(_ context.Context, c dialogue.Constraints) (dialogue.Results, error) {
	s.calls++
	s.lastView = c
	return s.results.Clone(), s.err
}

func (s *stubDB) FillInformSlot(_ context.Context, proposed map[string]any, c dialogue.Constraints, _ dialogue.Action) (map[string]any, []dialogue.MatchObject, error) {
	s.calls++
	s.lastView = c
	if s.err != nil {
		return nil, nil, s.err
	}
	if s.fill != nil {
		return dialogue.Action{InformSlots: s.fill}.Clone().InformSlots, s.objs, nil
	}
	return proposed, s.objs, nil
}

func smallConfig() Config {
	return Config{
		Intents:           []string{"inform", "request", "match_found"},
		Slots:             []string{"a", "b", "match"},
		AgentInformSlots:  []string{"a", "b"},
		AgentRequestSlots: []string{"a", "b"},
		MaxRoundNum:       10,
		DefaultKey:        "match",
	}
}

func activityConfig() Config {
	return Config{
		Intents:           []string{"inform", "request", "match_found", "done"},
		Slots:             []string{"activity", "holder", "reward", "works", "name_place", "address", "time"},
		AgentInformSlots:  []string{"holder", "reward", "works", "name_place", "address", "time"},
		AgentRequestSlots: []string{"holder", "reward", "time"},
		MaxRoundNum:       20,
	}
}

func newTracker(t *testing.T, cfg Config, db Database) *Tracker {
	t.Helper()
	tr, err := New(cfg, db, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func userInform(kv map[string]any, requests ...string) dialogue.Action {
	return dialogue.Action{Intent: dialogue.IntentInform, InformSlots: kv, RequestSlots: requests}
}

func mustUser(t *testing.T, tr *Tracker, a dialogue.Action) {
	t.Helper()
	if err := tr.UpdateUser(a); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
}

func mustAgent(t *testing.T, tr *Tracker, a dialogue.Action) dialogue.Action {
	t.Helper()
	out, err := tr.UpdateAgent(context.Background(), a)
	if err != nil {
		t.Fatalf("UpdateAgent: %v", err)
	}
	return out
}

func kbRecords() dialogue.Results {
	return dialogue.Results{
		"act-a": {
			"activity": "act-a",
			"holder":   []any{"cse"},
			"reward":   []any{},
			"time":     []any{"10am"},
			dialogue.CorrelationKey: []any{
				map[string]any{"works": "teaching", "name_place": "hall b", "address": "2 main", "time": "10am"},
				map[string]any{"works": "cleaning", "name_place": "hall c", "address": "3 main", "time": "10am"},
			},
		},
		"act-b": {
			"activity": "act-b",
			"holder":   []any{"cse"},
			"reward":   []any{"drl"},
			"time":     []any{"9am"},
			dialogue.CorrelationKey: []any{
				map[string]any{"works": "cleaning", "name_place": "hall a", "address": "1 main", "time": "9am"},
			},
		},
	}
}

// #endregion helpers

// #region construction
func TestNewRejectsBadConfig(t *testing.T) {
	db := &stubDB{}
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"duplicate slot", func(c *Config) { c.Slots = append(c.Slots, "a") }},
		{"unknown agent slot", func(c *Config) { c.AgentInformSlots = []string{"zzz"} }},
		{"unregistered match key", func(c *Config) { c.DefaultKey = "missing" }},
		{"zero max round", func(c *Config) { c.MaxRoundNum = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.edit(&cfg)
			if _, err := New(cfg, db, nil, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := New(smallConfig(), nil, nil, nil); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func TestStateSize(t *testing.T) {
	tr := newTracker(t, smallConfig(), &stubDB{})
	// 2*3 + 8*3 + 4 + 10
	if tr.StateSize() != 44 {
		t.Fatalf("StateSize = %d, want 44", tr.StateSize())
	}
}

// #endregion construction

// #region properties
func TestDoneAlwaysYieldsZeroVector(t *testing.T) {
	db := &stubDB{agg: dialogue.Aggregate{dialogue.MatchingAllKey: 3}}
	tr := newTracker(t, smallConfig(), db)

	check := func() {
		t.Helper()
		before := db.calls
		vec, err := tr.State(context.Background(), true)
		if err != nil {
			t.Fatalf("State(done): %v", err)
		}
		if len(vec) != tr.StateSize() {
			t.Fatalf("len = %d, want %d", len(vec), tr.StateSize())
		}
		for i, v := range vec {
			if v != 0 {
				t.Fatalf("vec[%d] = %v, want 0", i, v)
			}
		}
		if db.calls != before {
			t.Fatal("done state must not probe the knowledge base")
		}
	}

	check()
	mustUser(t, tr, userInform(map[string]any{"a": "X"}, "b"))
	check()
	mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentRequest, RequestSlots: []string{"a"}})
	check()
}

func TestResetClearsEpisode(t *testing.T) {
	tr := newTracker(t, smallConfig(), &stubDB{fill: map[string]any{"b": "Y"}})
	mustUser(t, tr, userInform(map[string]any{"a": "X"}, "b"))
	mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"b": dialogue.Placeholder}})

	tr.Reset()
	if tr.Round() != 0 {
		t.Fatalf("round = %d after reset", tr.Round())
	}
	if len(tr.History()) != 0 {
		t.Fatalf("history not empty: %v", tr.History())
	}
	if len(tr.Requests()) != 0 {
		t.Fatalf("requests not empty: %v", tr.Requests())
	}
	if slots := tr.Constraints().Slots(); len(slots) != 0 {
		t.Fatalf("constraints not empty: %v", slots)
	}
}

func TestUserThenAgentInformAdvancesByOneRound(t *testing.T) {
	tr := newTracker(t, smallConfig(), &stubDB{fill: map[string]any{"b": "Y"}})
	h0, r0 := len(tr.History()), tr.Round()

	mustUser(t, tr, userInform(map[string]any{"a": "X"}))
	mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"b": dialogue.Placeholder}})

	if got := len(tr.History()) - h0; got != 2 {
		t.Fatalf("history grew by %d, want 2", got)
	}
	if got := tr.Round() - r0; got != 1 {
		t.Fatalf("round grew by %d, want 1", got)
	}
	h := tr.History()
	if h[0].Speaker != dialogue.SpeakerUser || h[0].Round != 0 {
		t.Fatalf("unexpected user entry %+v", h[0])
	}
	if h[1].Speaker != dialogue.SpeakerAgent || h[1].Round != 1 {
		t.Fatalf("unexpected agent entry %+v", h[1])
	}
}

func TestRequestsOnlyGrow(t *testing.T) {
	tr := newTracker(t, smallConfig(), &stubDB{})
	turns := [][]string{{"b"}, nil, {"a", "b"}, {"match"}}
	var prev []string
	for i, reqs := range turns {
		mustUser(t, tr, dialogue.Action{Intent: dialogue.IntentRequest, RequestSlots: reqs})
		cur := tr.Requests()
		seen := make(map[string]bool, len(cur))
		for _, s := range cur {
			seen[s] = true
		}
		for _, s := range prev {
			if !seen[s] {
				t.Fatalf("turn %d lost request %q: %v", i, s, cur)
			}
		}
		prev = cur
	}
	if diff := cmp.Diff([]string{"b", "a", "match"}, prev); diff != "" {
		t.Fatalf("requests mismatch:\n%s", diff)
	}
}

func TestMappingInformBlanksOtherRepresentatives(t *testing.T) {
	db := &stubDB{fill: map[string]any{"address": "2 main"}}
	tr := newTracker(t, activityConfig(), db)

	mustUser(t, tr, userInform(map[string]any{"works": "teaching"}))
	mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"address": dialogue.Placeholder}})

	if got := tr.Representative("address"); got != "2 main" {
		t.Fatalf("address representative = %q", got)
	}
	for _, slot := range []string{"works", "name_place", "time"} {
		if got := tr.Representative(slot); got != dialogue.EmptyPlaceholder {
			t.Fatalf("%s representative = %q, want empty placeholder", slot, got)
		}
	}
}

func TestMatchOnEmptyResultsIsNoMatch(t *testing.T) {
	tr := newTracker(t, activityConfig(), &stubDB{results: dialogue.Results{}})
	mustUser(t, tr, userInform(map[string]any{"holder": "nobody"}))

	out := mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentMatchFound})
	if out.InformSlots[dialogue.DefaultMatchKey] != dialogue.NoMatch {
		t.Fatalf("inform = %v", out.InformSlots)
	}
	if len(out.InformSlots) != 1 {
		t.Fatalf("no-match inform must hold only the match key: %v", out.InformSlots)
	}
	if v := tr.Constraints().Scalars[dialogue.DefaultMatchKey]; v != dialogue.NoMatch {
		t.Fatalf("match key constraint = %v", v)
	}
}

func TestMatchPrefersRecordsWithRequestedList(t *testing.T) {
	db := &stubDB{results: kbRecords()}
	tr := newTracker(t, activityConfig(), db)
	// act-a sorts first but has an empty reward list.
	mustUser(t, tr, userInform(map[string]any{"holder": "cse"}, "reward"))

	out := mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentMatchFound})
	if got := out.InformSlots[dialogue.DefaultMatchKey]; got != "act-b" {
		t.Fatalf("match = %v, want act-b", got)
	}
	values, ok := out.InformSlots["act-b"].([]any)
	if !ok || len(values) != 1 {
		t.Fatalf("representative values = %#v", out.InformSlots["act-b"])
	}
	if len(out.InformSlots) != 2 {
		t.Fatalf("match inform must hold one data key plus the match key: %v", out.InformSlots)
	}
}

func TestMatchFallsBackToAllResults(t *testing.T) {
	db := &stubDB{results: kbRecords()}
	tr := newTracker(t, activityConfig(), db)
	mustUser(t, tr, userInform(map[string]any{"holder": "cse"}, "name_place"))

	out := mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentMatchFound})
	if got := out.InformSlots[dialogue.DefaultMatchKey]; got != "act-a" {
		t.Fatalf("match = %v, want act-a", got)
	}
	values := out.InformSlots["act-a"].([]any)
	if len(values) != 2 {
		t.Fatalf("expected both records, got %d", len(values))
	}
	if len(out.MatchObjects) != 0 {
		t.Fatalf("no mapping constraint, expected no match objects: %v", out.MatchObjects)
	}
}

// #endregion properties

// #region scenarios
// Scenario 1: user a=X, agent b=Y, constraint bag holds exactly a and b.
func TestConstraintBagAfterUserAndAgentInform(t *testing.T) {
	db := &stubDB{fill: map[string]any{"b": "Y"}, agg: dialogue.Aggregate{dialogue.MatchingAllKey: 1}}
	tr := newTracker(t, smallConfig(), db)

	mustUser(t, tr, userInform(map[string]any{"a": "X"}))
	mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"b": dialogue.Placeholder}})

	vec, err := tr.State(context.Background(), false)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	r := tr.Layout().Constraints
	if diff := cmp.Diff([]float32{1, 1, 0}, vec[r[0]:r[1]]); diff != "" {
		t.Fatalf("constraint bag mismatch:\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"a": "X", "b": "Y"}, tr.Constraints().Scalars); diff != "" {
		t.Fatalf("constraints mismatch:\n%s", diff)
	}
}

// Scenario 2: works then time leaves the other halves blank and the
// candidate columns at their prior length.
func TestTwoMappingInformsNoSpuriousAppend(t *testing.T) {
	tr := newTracker(t, activityConfig(), &stubDB{})
	first := userInform(map[string]any{"works": "W1"})
	first.MatchObjects = []dialogue.MatchObject{{Works: "W1", NamePlace: "hall", Address: "1 main", Time: "9am"}}
	mustUser(t, tr, first)

	before := len(tr.Candidates("address"))
	mustUser(t, tr, userInform(map[string]any{"time": "T1"}))

	for _, slot := range []string{"address", "name_place"} {
		if got := tr.Representative(slot); got != dialogue.EmptyPlaceholder {
			t.Fatalf("%s representative = %q", slot, got)
		}
		if got := len(tr.Candidates(slot)); got != before {
			t.Fatalf("%s candidates = %d, want %d", slot, got, before)
		}
	}
	if tr.Representative("time") != "T1" || tr.Representative("works") != dialogue.EmptyPlaceholder {
		t.Fatalf("unexpected representatives time=%q works=%q", tr.Representative("time"), tr.Representative("works"))
	}
}

// Scenario 3: a grounded mapping inform feeds match_found sub-offerings.
func TestMatchCollectsSubOfferingsFromMappingRows(t *testing.T) {
	db := kb.NewDatabase(kbRecords(), dialogue.DefaultMatchKey)
	tr := newTracker(t, activityConfig(), db)

	mustUser(t, tr, userInform(map[string]any{"holder": "cse"}, "time"))
	informed := mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"time": dialogue.Placeholder}})
	if informed.InformSlots["time"] != "10am" || len(informed.MatchObjects) != 2 {
		t.Fatalf("unexpected grounded inform %+v", informed)
	}
	if got := len(tr.Candidates("works")); got != 2 {
		t.Fatalf("mapping rows = %d, want 2", got)
	}

	mustUser(t, tr, dialogue.Action{Intent: dialogue.IntentRequest, RequestSlots: []string{"activity"}})
	out := mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentMatchFound})
	if out.InformSlots[dialogue.DefaultMatchKey] != "act-a" {
		t.Fatalf("match = %v", out.InformSlots[dialogue.DefaultMatchKey])
	}
	want := []dialogue.MatchObject{
		{Works: "teaching", NamePlace: "hall b", Address: "2 main", Time: "10am"},
		{Works: "cleaning", NamePlace: "hall c", Address: "3 main", Time: "10am"},
	}
	if diff := cmp.Diff(want, out.MatchObjects); diff != "" {
		t.Fatalf("match objects mismatch:\n%s", diff)
	}

	vec, err := tr.State(context.Background(), false)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(vec) != tr.StateSize() {
		t.Fatalf("len = %d", len(vec))
	}
}

func TestCustomMatcherIsUsed(t *testing.T) {
	db := kb.NewDatabase(kbRecords(), dialogue.DefaultMatchKey)
	never := func(dialogue.MatchObject, dialogue.MatchObject) bool { return false }
	tr, err := New(activityConfig(), db, never, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustUser(t, tr, userInform(map[string]any{"holder": "cse"}))
	mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"time": dialogue.Placeholder}})
	out := mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentMatchFound})
	if len(out.MatchObjects) != 0 {
		t.Fatalf("matcher ignored: %v", out.MatchObjects)
	}
}

// #endregion scenarios

// #region errors
func TestAgentContractErrors(t *testing.T) {
	tests := []struct {
		name   string
		fill   map[string]any
		action dialogue.Action
		want   error
	}{
		{"empty inform", nil, dialogue.Action{Intent: dialogue.IntentInform}, ErrEmptyAgentInform},
		{"empty grounded", map[string]any{}, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"b": dialogue.Placeholder}}, ErrEmptyAgentInform},
		{"placeholder grounded", map[string]any{"b": dialogue.Placeholder}, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"b": dialogue.Placeholder}}, ErrPlaceholderInform},
		{"match key grounded", map[string]any{"match": "x"}, dialogue.Action{Intent: dialogue.IntentInform, InformSlots: map[string]any{"match": dialogue.Placeholder}}, ErrMatchKeyInform},
		{"inform on match", nil, dialogue.Action{Intent: dialogue.IntentMatchFound, InformSlots: map[string]any{"a": "X"}}, ErrInformOnMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker(t, smallConfig(), &stubDB{fill: tt.fill})
			mustUser(t, tr, userInform(map[string]any{"a": "X"}))
			before := tr.Constraints()
			hist := len(tr.History())

			_, err := tr.UpdateAgent(context.Background(), tt.action)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrContract) || !IsContract(err) {
				t.Fatalf("%v is not a contract error", err)
			}
			if len(tr.History()) != hist {
				t.Fatal("history mutated on contract error")
			}
			if diff := cmp.Diff(before, tr.Constraints()); diff != "" {
				t.Fatalf("constraints mutated on contract error:\n%s", diff)
			}
		})
	}
}

func TestUserRoundLimit(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxRoundNum = 2
	tr := newTracker(t, cfg, &stubDB{})
	mustUser(t, tr, userInform(map[string]any{"a": "X"}))
	mustUser(t, tr, userInform(map[string]any{"a": "Z"}))

	err := tr.UpdateUser(userInform(map[string]any{"b": "Y"}))
	if !errors.Is(err, ErrRoundOutOfRange) {
		t.Fatalf("err = %v, want ErrRoundOutOfRange", err)
	}
	if len(tr.History()) != 2 || tr.Constraints().Has("b") {
		t.Fatal("state mutated past the round limit")
	}
}

// A user turn carrying match objects without any mapping inform leaves the
// mapping rows untouched.
func TestScalarUserInformIgnoresMatchObjects(t *testing.T) {
	tr := newTracker(t, activityConfig(), &stubDB{})
	a := userInform(map[string]any{"holder": "cse"})
	a.MatchObjects = []dialogue.MatchObject{{Works: "w", NamePlace: "p", Address: "a", Time: "t"}}
	mustUser(t, tr, a)

	if got := tr.Candidates("works"); len(got) != 0 {
		t.Fatalf("works candidates = %v, want none", got)
	}

	b := userInform(map[string]any{"works": "w"})
	b.MatchObjects = a.MatchObjects
	mustUser(t, tr, b)
	if got := tr.Candidates("works"); len(got) != 1 || got[0] != "w" {
		t.Fatalf("works candidates = %v, want [w]", got)
	}
}

func TestNewRejectsPartialMappingGroup(t *testing.T) {
	cfg := smallConfig()
	cfg.Slots = []string{"a", "b", "match", "time"}

	_, err := New(cfg, &stubDB{}, nil, nil)
	var cfgErr *registry.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if cfgErr.Name != "works" {
		t.Fatalf("missing slot = %q, want works", cfgErr.Name)
	}

	cfg.Slots = append(cfg.Slots, "works", "name_place", "address")
	if _, err := New(cfg, &stubDB{}, nil, nil); err != nil {
		t.Fatalf("full mapping group rejected: %v", err)
	}
}

// After an agent turn the state still encodes the latest user action,
// alongside the agent action that followed it.
func TestStateAfterAgentTurnKeepsLatestUser(t *testing.T) {
	tr := newTracker(t, smallConfig(), &stubDB{})
	mustUser(t, tr, dialogue.Action{Intent: dialogue.IntentRequest, RequestSlots: []string{"a"}})
	mustAgent(t, tr, dialogue.Action{Intent: dialogue.IntentMatchFound})

	vec, err := tr.State(context.Background(), false)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	l := tr.Layout()
	if vec[l.UserIntent[0]+1] != 1 {
		t.Fatalf("user intent block = %v, want request set", vec[l.UserIntent[0]:l.UserIntent[1]])
	}
	if vec[l.AgentIntent[0]+2] != 1 {
		t.Fatalf("agent intent block = %v, want match_found set", vec[l.AgentIntent[0]:l.AgentIntent[1]])
	}
}

func TestStateWithoutUserAction(t *testing.T) {
	tr := newTracker(t, smallConfig(), &stubDB{})
	if _, err := tr.State(context.Background(), false); !errors.Is(err, ErrNoUserAction) {
		t.Fatalf("err = %v, want ErrNoUserAction", err)
	}
}

func TestUnknownNamesAreConfigErrors(t *testing.T) {
	tr := newTracker(t, smallConfig(), &stubDB{})

	err := tr.UpdateUser(dialogue.Action{Intent: "greet"})
	var cfgErr *registry.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != "intent" || cfgErr.Name != "greet" {
		t.Fatalf("err = %v, want intent config error", err)
	}

	err = tr.UpdateUser(userInform(map[string]any{"zzz": 1}))
	if !errors.Is(err, registry.ErrUnknownName) {
		t.Fatalf("err = %v, want ErrUnknownName", err)
	}
	if IsContract(err) {
		t.Fatal("config errors are not contract errors")
	}
	if len(tr.History()) != 0 {
		t.Fatal("history mutated on config error")
	}
}

func TestCollaboratorErrorsAreWrapped(t *testing.T) {
	boom := errors.New("backend down")
	db := &stubDB{err: boom}
	tr := newTracker(t, smallConfig(), db)
	mustUser(t, tr, userInform(map[string]any{"a": "X"}))

	if _, err := tr.UpdateAgent(context.Background(), dialogue.Action{Intent: dialogue.IntentMatchFound}); !errors.Is(err, boom) {
		t.Fatalf("match err = %v", err)
	}
	if _, err := tr.State(context.Background(), false); !errors.Is(err, boom) {
		t.Fatalf("state err = %v", err)
	}
	if len(tr.History()) != 1 {
		t.Fatal("failed resolution appended to history")
	}
}

// #endregion errors

// #region aliasing
func TestProbesReceiveCopies(t *testing.T) {
	db := &stubDB{agg: dialogue.Aggregate{dialogue.MatchingAllKey: 1}}
	tr := newTracker(t, smallConfig(), db)
	mustUser(t, tr, userInform(map[string]any{"a": []any{"X"}}))
	if _, err := tr.State(context.Background(), false); err != nil {
		t.Fatalf("State: %v", err)
	}
	db.lastView.Scalars["a"].([]any)[0] = "mutated"
	db.lastView.Scalars["b"] = "injected"

	got := tr.Constraints().Scalars
	if diff := cmp.Diff(map[string]any{"a": []any{"X"}}, got); diff != "" {
		t.Fatalf("probe aliased the store:\n%s", diff)
	}
}

// #endregion aliasing
