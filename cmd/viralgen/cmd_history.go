// cmd/viralgen/cmd_history.go
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Corphon/ViralGen/internal/display"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List saved generations, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.History == nil {
				return fmt.Errorf("generation history is disabled (set HISTORY_DIR to enable it)")
			}

			if len(args) == 1 {
				out, err := a.History.Get(args[0])
				if err != nil {
					return err
				}
				groups := display.Groups(a.Generation.Grammar(), out.Result)
				if opts.jsonOut {
					return writeJSON(cmd.OutOrStdout(), generationOutput{GenerationResult: out, Groups: groups})
				}
				return writeGroups(cmd.OutOrStdout(), groups, out.Report)
			}

			entries, err := a.History.List(limit)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tCATEGORY\tVIBE\tMODEL\tTOPIC")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Category, e.Vibe, e.Model, e.Topic)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to list (0 for all)")
	return cmd
}
