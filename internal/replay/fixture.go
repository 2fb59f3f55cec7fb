package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/tracker"
	"github.com/google/go-cmp/cmp"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          tracker.Config          `json:"config"`
	Database        dialogue.Results        `json:"database"`
	Turns           []FixtureTurn           `json:"turns"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureTurn mirrors Turn with JSON tags.
type FixtureTurn struct {
	TurnID string           `json:"turn_id"`
	User   *dialogue.Action `json:"user,omitempty"`
	Agent  *dialogue.Action `json:"agent,omitempty"`
	Done   bool             `json:"done,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per turn. Inform is
// checked as a subset of the grounded agent inform.
type FixtureExpectedResult struct {
	TurnID       string         `json:"turn_id"`
	Action       string         `json:"action"`
	Inform       map[string]any `json:"inform,omitempty"`
	MatchObjects *int           `json:"match_objects,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToTurns converts the fixture turns to domain turns.
func (f *Fixture) ToTurns() []Turn {
	out := make([]Turn, len(f.Turns))
	for i, ft := range f.Turns {
		out[i] = Turn{TurnID: ft.TurnID, User: ft.User, Agent: ft.Agent, Done: ft.Done}
	}
	return out
}

// #endregion fixture-loader

// #region check

// Check compares one result with its expectation and describes every
// difference. Values are compared after a JSON round trip so fixture
// literals match runtime values.
func Check(r ReplayResult, e FixtureExpectedResult) []string {
	var diffs []string
	if e.Action != "" && r.Action != e.Action {
		diffs = append(diffs, fmt.Sprintf("action: got %s, want %s", r.Action, e.Action))
	}
	if len(e.Inform) > 0 {
		var got map[string]any
		if r.Agent != nil {
			got = normalize(r.Agent.InformSlots)
		}
		keys := make([]string, 0, len(e.Inform))
		for k := range e.Inform {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		want := normalize(e.Inform)
		for _, k := range keys {
			if d := cmp.Diff(want[k], got[k]); d != "" {
				diffs = append(diffs, fmt.Sprintf("inform[%s] (-want +got):\n%s", k, d))
			}
		}
	}
	if e.MatchObjects != nil {
		n := 0
		if r.Agent != nil {
			n = len(r.Agent.MatchObjects)
		}
		if n != *e.MatchObjects {
			diffs = append(diffs, fmt.Sprintf("match objects: got %d, want %d", n, *e.MatchObjects))
		}
	}
	return diffs
}

func normalize(m map[string]any) map[string]any {
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return m
	}
	return out
}

// #endregion check
