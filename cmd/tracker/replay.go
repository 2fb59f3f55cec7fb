package main

import (
	"encoding/json"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/kb"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/replay"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/state"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/tracker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// #region replay-cmd
var (
	replayFixture string
	replayDB      string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a fixture and compare every turn with its expectation",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := replay.LoadFixture(replayFixture)
		if err != nil {
			return err
		}
		if f.Config.DefaultKey == "" {
			f.Config.DefaultKey = cfg.Tracker.DefaultKey
		}
		tr, err := tracker.New(f.Config, kb.NewDatabase(f.Database, f.Config.DefaultKey), nil, logger)
		if err != nil {
			return err
		}

		rc := replay.DefaultReplayConfig()
		rc.Logger = logger
		if replayDB != "" {
			store, err := state.NewStore(replayDB)
			if err != nil {
				return err
			}
			defer store.Close()
			rc.Store = store
		}

		results, episodeID, err := replay.Replay(cmd.Context(), tr, f.ToTurns(), rc)
		if err != nil {
			return err
		}
		for _, d := range drift(results, f.ExpectedResults) {
			logger.Warn("expectation drift", zap.String("turn_id", d.turnID), zap.String("diff", d.diff))
		}

		summary := replay.Summarize(results, f.ExpectedResults)
		summary.EpisodeID = episodeID
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if summary.Mismatches > 0 || summary.EvalFailures > 0 {
			return fmt.Errorf("%w: %d mismatches, %d eval failures", replay.ErrMismatch, summary.Mismatches, summary.EvalFailures)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFixture, "fixture", "", "path to fixture JSON")
	replayCmd.Flags().StringVar(&replayDB, "db", "", "persist the replayed episode to this snapshot database")
	_ = replayCmd.MarkFlagRequired("fixture")
}

type turnDrift struct {
	turnID string
	diff   string
}

// drift checks each result against the expectation with the same turn ID.
// Turns without an expectation are skipped.
func drift(results []replay.ReplayResult, expected []replay.FixtureExpectedResult) []turnDrift {
	byID := make(map[string]replay.FixtureExpectedResult, len(expected))
	for _, e := range expected {
		byID[e.TurnID] = e
	}
	var out []turnDrift
	for _, r := range results {
		e, ok := byID[r.TurnID]
		if !ok {
			continue
		}
		for _, d := range replay.Check(r, e) {
			out = append(out, turnDrift{turnID: r.TurnID, diff: d})
		}
	}
	return out
}

// #endregion replay-cmd
