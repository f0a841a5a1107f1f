// Command yt2blog turns YouTube videos into blog posts via their transcripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"contentmachine/internal/cli"
	"contentmachine/internal/machine"
)

func main() {
	cli.Execute(newRootCmd())
}

func newRootCmd() *cobra.Command {
	var (
		batch      string
		skipSocial bool
		publishTo  string
	)
	cmd := &cobra.Command{
		Use:   "yt2blog <url> | --batch <file>",
		Short: "Generate blog posts from YouTube videos",
		Args: func(cmd *cobra.Command, args []string) error {
			if batch == "" && len(args) != 1 {
				return errors.New("give exactly one video URL or --batch <file>")
			}
			if batch != "" && len(args) > 0 {
				return errors.New("give either a video URL or --batch, not both")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := args
			if batch != "" {
				f, err := os.Open(batch)
				if err != nil {
					return err
				}
				urls, err = cli.ReadBatch(f)
				f.Close()
				if err != nil {
					return err
				}
				if len(urls) == 0 {
					return fmt.Errorf("%s lists no URLs", batch)
				}
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
			opts := cli.Options{SkipSocial: skipSocial, Destinations: cli.SplitList(publishTo)}

			return runBatch(cmd.Context(), cmd.OutOrStdout(), urls, func(ctx context.Context, url string) (string, error) {
				res, err := p.Produce(ctx, machine.VideoInput{URL: url}, opts)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%s (transcript via %s)", res.Slug, res.TranscriptStrategy), nil
			})
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "file with one video URL per line; blank and # lines are skipped")
	cmd.Flags().BoolVar(&skipSocial, "skip-social", false, "do not write social calendars")
	cmd.Flags().StringVar(&publishTo, "publish", "", "comma separated destinations for each post")
	return cli.Quiet(cmd)
}

// runBatch processes urls in order and prints a summary. It fails when a single URL
// fails or when every URL of a batch failed.
func runBatch(ctx context.Context, out io.Writer, urls []string, produce func(context.Context, string) (string, error)) error {
	var (
		ok       int
		failures []string
		lastErr  error
	)
	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(urls), url)
		summary, err := produce(ctx, url)
		if err != nil {
			fmt.Fprintf(out, "  failed: %v\n", err)
			failures = append(failures, url)
			lastErr = err
			continue
		}
		fmt.Fprintf(out, "  ok: %s\n", summary)
		ok++
	}

	fmt.Fprintf(out, "\n%d succeeded, %d failed\n", ok, len(failures))
	for _, url := range failures {
		fmt.Fprintf(out, "  failed: %s\n", url)
	}

	switch {
	case len(urls) == 1 && lastErr != nil:
		return lastErr
	case ok == 0 && len(failures) > 0:
		return fmt.Errorf("all %d videos failed", len(failures))
	}
	return nil
}
