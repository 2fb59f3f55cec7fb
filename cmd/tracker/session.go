package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/state"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/tracker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// #region types
// sessionLine is one input line of a live session. Exactly one of User,
// Agent or Done is expected.
type sessionLine struct {
	User  *dialogue.Action `json:"user,omitempty"`
	Agent *dialogue.Action `json:"agent,omitempty"`
	Done  bool             `json:"done,omitempty"`
}

// sessionReply is written once per input line.
type sessionReply struct {
	Round   int              `json:"round"`
	State   []float32        `json:"state,omitempty"`
	Agent   *dialogue.Action `json:"agent,omitempty"`
	Version string           `json:"version_id,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// #endregion types

// #region run-cmd
var runSnapshots bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track one session read as JSON lines from stdin",
	Long: `Each stdin line is {"user": action}, {"agent": action} or {"done": true}.
A user line is answered with the encoded state, an agent line with the
grounded action. Contract violations end the process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tr, closeDB, err := newTracker(ctx)
		defer closeDB()
		if err != nil {
			return err
		}

		var store *state.Store
		if runSnapshots || cfg.Snapshots.Enabled {
			store, err = state.NewStore(cfg.Snapshots.Path)
			if err != nil {
				return err
			}
			defer store.Close()
		}

		if err := runSession(ctx, tr, store, cmd.InOrStdin(), cmd.OutOrStdout(), logger); err != nil {
			if tracker.IsContract(err) {
				logger.Fatal("contract violation", zap.Error(err))
			}
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runSnapshots, "snapshots", false, "persist every encoded state (overrides snapshots.enabled)")
}

// #endregion run-cmd

// #region session
// runSession processes in line by line until EOF. Config errors are
// reported on the reply and the session continues; contract errors are
// returned.
func runSession(ctx context.Context, tr *tracker.Tracker, store *state.Store, in io.Reader, out io.Writer, logger *zap.Logger) error {
	var episodeID string
	if store != nil {
		ep, err := store.BeginEpisode(tr.Layout())
		if err != nil {
			return err
		}
		episodeID = ep.ID
		logger.Info("episode started", zap.String("episode_id", episodeID))
	}

	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line sessionLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			if werr := enc.Encode(sessionReply{Round: tr.Round(), Error: fmt.Sprintf("decode line: %v", err)}); werr != nil {
				return werr
			}
			continue
		}

		reply, err := step(ctx, tr, store, episodeID, line)
		if err != nil {
			if tracker.IsContract(err) {
				return err
			}
			reply.Error = err.Error()
			logger.Warn("rejected line", zap.Error(err))
		}
		reply.Round = tr.Round()
		if err := enc.Encode(reply); err != nil {
			return err
		}
		if line.Done {
			break
		}
	}
	return scanner.Err()
}

func step(ctx context.Context, tr *tracker.Tracker, store *state.Store, episodeID string, line sessionLine) (sessionReply, error) {
	var reply sessionReply
	switch {
	case line.Agent != nil:
		grounded, err := tr.UpdateAgent(ctx, *line.Agent)
		if err != nil {
			return reply, err
		}
		reply.Agent = &grounded
		return reply, nil
	case line.User != nil:
		if err := tr.UpdateUser(*line.User); err != nil {
			return reply, err
		}
	}

	vec, err := tr.State(ctx, line.Done)
	if err != nil {
		return reply, err
	}
	reply.State = vec
	if store != nil && line.User != nil {
		h := tr.History()
		saved, err := store.CommitTurn(state.TurnRecord{
			EpisodeID: episodeID,
			Round:     tr.Round(),
			Speaker:   dialogue.SpeakerUser,
			Action:    h[len(h)-1],
			Vector:    vec,
			Done:      line.Done,
		})
		if err != nil {
			return reply, err
		}
		reply.Version = saved.VersionID
	}
	return reply, nil
}

// #endregion session
