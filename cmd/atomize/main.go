// Command atomize writes the social calendar for a stored post.
package main

import (
	"github.com/spf13/cobra"

	"contentmachine/internal/cli"
)

func main() {
	cli.Execute(newRootCmd())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atomize <slug>",
		Short: "Turn a stored post into a week of LinkedIn and X posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cli.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			studio, err := a.RequireStudio()
			if err != nil {
				return err
			}
			post, err := a.Store.Load(args[0])
			if err != nil {
				return err
			}
			p := cli.NewProducer(studio, a.Store, a.Dispatcher, a.Config.SiteURL, cmd.OutOrStdout(), a.Logger)
			_, err = p.WriteSocial(cmd.Context(), post)
			return err
		},
	}
	return cli.Quiet(cmd)
}
