// Command generate writes a blog post from text, a file or a screenshot, then its
// social calendar.
package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"contentmachine/internal/cli"
	"contentmachine/internal/machine"
)

func main() {
	cli.Execute(newRootCmd())
}

func newRootCmd() *cobra.Command {
	var (
		file       string
		image      string
		text       string
		skipSocial bool
		publishTo  string
	)
	cmd := &cobra.Command{
		Use:   "generate [text...]",
		Short: "Generate a blog post and its social week",
		Example: `  generate "most marketplaces die in the middle"
  generate --file notes.md --publish github,medium
  generate --image screenshot.png --text "from the Q3 board deck"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := inputFrom(args, file, image, text)
			if err != nil {
				return err
			}
			if err := machine.Validate(in); err != nil {
				return err
			}

			a, err := cli.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			studio, err := a.RequireStudio()
			if err != nil {
				return err
			}

			p := cli.NewProducer(studio, a.Store, a.Dispatcher, a.Config.SiteURL, cmd.OutOrStdout(), a.Logger)
			res, err := p.Produce(cmd.Context(), in, cli.Options{SkipSocial: skipSocial, Destinations: cli.SplitList(publishTo)})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "done:   %s (%s)\n", res.Title, res.Slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read raw input from a text file")
	cmd.Flags().StringVar(&image, "image", "", "generate from a screenshot")
	cmd.Flags().StringVar(&text, "text", "", "context for --image, or the raw input when no arguments are given")
	cmd.Flags().BoolVar(&skipSocial, "skip-social", false, "do not write the social calendar")
	cmd.Flags().StringVar(&publishTo, "publish", "", "comma separated destinations (local, github, medium, devto, typefully)")
	cmd.MarkFlagsMutuallyExclusive("file", "image")
	return cli.Quiet(cmd)
}

func inputFrom(args []string, file, image, text string) (machine.Input, error) {
	switch {
	case image != "":
		return machine.ImageInput{Path: image, Caption: text}, nil
	case file != "":
		if len(args) > 0 {
			return nil, errors.New("give either text arguments or --file, not both")
		}
		return machine.FileInput{Path: file}, nil
	case len(args) > 0:
		return machine.TextInput{Text: strings.Join(args, " ")}, nil
	default:
		return machine.TextInput{Text: text}, nil
	}
}
