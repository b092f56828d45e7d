package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"saturn/internal/store"
)

var (
	listLimit int
	pruneKeep int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect stored taxonomy snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.Runs(cmd.Context(), listLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tLABEL\tPOLICY\tSTATUS\tCLASSES\tINDIVIDUALS\tCONCLUSIONS")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Label, r.Policy, r.Status,
				r.Classes, r.Individuals, r.Conclusions)
		}
		return tw.Flush()
	},
}

var snapshotsDiffCmd = &cobra.Command{
	Use:   "diff <old-id> <new-id>",
	Short: "Show how the taxonomy changed between two snapshots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		prev, err := s.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		next, err := s.Load(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		printChange(cmd.OutOrStdout(), store.Compare(prev, next))
		return nil
	},
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.Prune(cmd.Context(), pruneKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshots\n", n)
		return nil
	},
}

func init() {
	snapshotsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum number of snapshots to list (0 for all)")
	snapshotsPruneCmd.Flags().IntVar(&pruneKeep, "keep", 10, "Number of snapshots to keep")

	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsDiffCmd, snapshotsPruneCmd)
}
