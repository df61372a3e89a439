package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/errscout/pkg/errscout/journal"
)

func newJournalCmd(a *app) *cobra.Command {
	var (
		path   string
		remove bool
	)
	cmd := &cobra.Command{
		Use:   "journal [RUN_ID]",
		Short: "List recorded sessions, print one session's transcript or delete it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = a.settings.JournalPath
			}
			if path == "" {
				return errors.New("no journal file (use --journal or set journal in the config)")
			}
			store, err := journal.NewSQLiteStore(path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if remove {
				if len(args) == 0 {
					return errors.New("--delete needs a RUN_ID")
				}
				if err := store.DeleteRun(args[0]); err != nil {
					return fmt.Errorf("delete run: %w", err)
				}
				fmt.Fprintf(out, "Deleted run %s\n", args[0])
				return nil
			}
			if len(args) == 0 {
				runs, err := store.Runs()
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No sessions recorded.")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						r.RunID,
						strconv.Itoa(r.Turns),
						r.FirstSeen.Local().Format(time.DateTime),
						r.LastSeen.Sub(r.FirstSeen).Round(time.Second).String(),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"RUN", "TURNS", "STARTED", "SPAN"}, rows))
				return nil
			}

			turns, err := store.Turns(args[0])
			if err != nil {
				return err
			}
			if len(turns) == 0 {
				return fmt.Errorf("no turns recorded for run %q", args[0])
			}
			for _, t := range turns {
				head := fmt.Sprintf("[%d] %s", t.Seq+1, t.Tool)
				if len(t.Args) > 0 {
					head += " " + string(t.Args)
				}
				fmt.Fprintln(out, titleStyle.Render(head))
				fmt.Fprintln(out, t.Outcome)
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "journal", "", "SQLite journal file")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the run's transcript")
	return cmd
}
