// cmd/viralgen/cmd_prompt.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/protocol"
)

func newPromptCmd(opts *options) *cobra.Command {
	form := &formFlags{}

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the prompt that would be sent, without calling the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := form.request()
			if err != nil {
				return err
			}
			prompt := protocol.NewComposer(protocol.DefaultGrammar()).Compose(req)
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"prompt": prompt})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return err
		},
	}

	form.register(cmd)
	return cmd
}

func newOptionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the accepted categories and vibes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"categories": models.Categories(),
					"vibes":      models.Vibes(),
				})
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Categories:")
			for _, c := range models.Categories() {
				fmt.Fprintln(w, "  "+string(c))
			}
			fmt.Fprintln(w, "Vibes:")
			for _, v := range models.Vibes() {
				fmt.Fprintln(w, "  "+string(v))
			}
			return nil
		},
	}
}
