// cmd/viralgen/cmd_generate.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Corphon/ViralGen/internal/display"
	"github.com/Corphon/ViralGen/internal/services"
)

func newGenerateCmd(opts *options) *cobra.Command {
	form := &formFlags{}
	var stream bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Call the model and print the three platform groups",
		Example: `  viralgen generate --topic "Budget Travel Hacks" --category Lifestyle --vibe Funny
  viralgen generate -t "Desk setup tour" -c Tech -v Aesthetic/Calm --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := form.request()
			if err != nil {
				return err
			}

			a, err := loadApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, a.Config.RequestTimeout)
			defer cancel()

			var out *services.GenerationResult
			if stream && !opts.jsonOut {
				out, err = a.Generation.GenerateStream(ctx, req, func(text string) {
					fmt.Fprint(cmd.ErrOrStderr(), text)
				})
				fmt.Fprintln(cmd.ErrOrStderr())
			} else {
				out, err = a.Generation.Generate(ctx, req)
			}
			if err != nil {
				return err
			}

			groups := display.Groups(a.Generation.Grammar(), out.Result)
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), generationOutput{GenerationResult: out, Groups: groups})
			}
			return writeGroups(cmd.OutOrStdout(), groups, out.Report)
		},
	}

	form.register(cmd)
	cmd.Flags().BoolVar(&stream, "stream", false, "echo the raw model output to stderr while it arrives")
	return cmd
}
