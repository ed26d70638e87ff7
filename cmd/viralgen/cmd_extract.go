// cmd/viralgen/cmd_extract.go
package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Corphon/ViralGen/internal/display"
	"github.com/Corphon/ViralGen/internal/protocol"
)

func newExtractCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file]",
		Short: "Decode saved model output (file or stdin) into the three groups",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return err
			}

			g := protocol.DefaultGrammar()
			result, report := protocol.NewExtractor(g).Extract(string(raw))
			groups := display.Groups(g, result)
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), extractionOutput{Result: result, Groups: groups, Report: report})
			}
			return writeGroups(cmd.OutOrStdout(), groups, report)
		},
	}
}
