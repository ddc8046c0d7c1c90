package cmd

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dhcgn/patent-reminders/store"
)

var (
	completeSubject  string
	completeDeadline string
)

var completeCmd = &cobra.Command{
	Use:   "complete <application-no> <file-path>",
	Short: "Mark a reminder as handled",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStatus(cmd, func(s *store.SQLiteStore) error {
			if _, err := s.MarkCompleted(cmd.Context(), args[0], args[1], completeSubject, completeDeadline); err != nil {
				return err
			}
			pterm.Success.Printf("%s marked completed\n", args[0])
			return nil
		})
	},
}

var uncompleteCmd = &cobra.Command{
	Use:   "uncomplete <application-no> <file-path>",
	Short: "Reopen a reminder marked as handled",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStatus(cmd, func(s *store.SQLiteStore) error {
			found, err := s.MarkUncompleted(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no completion record for %s in %s", args[0], args[1])
			}
			pterm.Success.Printf("%s reopened\n", args[0])
			return nil
		})
	},
}

var purgeOlderThan time.Duration

var completedCmd = &cobra.Command{
	Use:   "completed",
	Short: "List completed reminders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStatus(cmd, func(s *store.SQLiteStore) error {
			if purgeOlderThan > 0 {
				n, err := s.CleanupCompleted(cmd.Context(), purgeOlderThan)
				if err != nil {
					return err
				}
				pterm.Info.Printf("Removed %d completion records older than %s\n", n, purgeOlderThan)
			}

			entries, err := s.CompletedEntries(cmd.Context())
			if err != nil {
				return err
			}
			st, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}
			pterm.Info.Printf("Tracked: %d, completed: %d, pending: %d\n", st.Total, st.Completed, st.Pending)
			if len(entries) == 0 {
				return nil
			}

			rows := [][]string{{"Application", "Deadline", "Completed at", "Subject", "File"}}
			for _, en := range entries {
				rows = append(rows, []string{
					en.ApplicationNo, en.Deadline, en.CompletedAt.Local().Format("2006-01-02 15:04"), shorten(en.Subject, 40), en.FilePath,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		})
	},
}

func init() {
	completeCmd.Flags().StringVar(&completeSubject, "subject", "", "Subject stored with the record")
	completeCmd.Flags().StringVar(&completeDeadline, "deadline", "", "Deadline stored with the record")
	completedCmd.Flags().DurationVar(&purgeOlderThan, "purge-older-than", 0, "Delete completion records older than this first")
	rootCmd.AddCommand(completeCmd, uncompleteCmd, completedCmd)
}

func withStatus(cmd *cobra.Command, fn func(*store.SQLiteStore) error) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	s, err := store.Open(e.cfg.StatusDB, e.logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
