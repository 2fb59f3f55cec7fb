package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/state"
	"github.com/spf13/cobra"
)

// #region inspect-cmd
var (
	inspectDB      string
	inspectEpisode string
	inspectLimit   int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List persisted episodes or the turns of one episode",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inspectDB
		if path == "" {
			path = cfg.Snapshots.Path
		}
		store, err := state.NewStore(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if inspectEpisode == "" {
			eps, err := store.ListEpisodes(inspectLimit)
			if err != nil {
				return err
			}
			printEpisodes(cmd.OutOrStdout(), eps)
			return nil
		}

		ep, err := store.GetEpisode(inspectEpisode)
		if err != nil {
			return err
		}
		turns, err := store.ListTurns(ep.ID)
		if err != nil {
			return err
		}
		printTurns(cmd.OutOrStdout(), ep, turns)
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "snapshot database (defaults to snapshots.path)")
	inspectCmd.Flags().StringVar(&inspectEpisode, "episode", "", "episode ID to expand")
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 20, "episodes to list")
}

// #endregion inspect-cmd

// #region print
func printEpisodes(w io.Writer, eps []state.Episode) {
	fmt.Fprintf(w, "%-36s  %-5s  %-5s  %s\n", "EPISODE", "TURNS", "SIZE", "STARTED")
	for _, ep := range eps {
		fmt.Fprintf(w, "%-36s  %-5d  %-5d  %s\n", ep.ID, ep.Turns, ep.Layout.Size, ep.StartedAt.Format("2006-01-02 15:04:05"))
	}
}

func printTurns(w io.Writer, ep state.Episode, turns []state.TurnRecord) {
	fmt.Fprintf(w, "episode %s (%d turns, state size %d)\n", ep.ID, len(turns), ep.Layout.Size)
	for _, t := range turns {
		slots := t.Action.InformKeys()
		fmt.Fprintf(w, "  round %-3d %-6s %-12s inform=[%s] request=[%s] done=%v\n",
			t.Round, t.Speaker, t.Action.Intent,
			strings.Join(slots, ","), strings.Join(t.Action.RequestSlots, ","), t.Done)
	}
}

// #endregion print
