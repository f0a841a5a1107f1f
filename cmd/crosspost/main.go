// Command crosspost syndicates stored posts to Medium and Dev.to with a canonical link
// back to the site.
package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"contentmachine/internal/cli"
	"contentmachine/internal/content"
	"contentmachine/internal/publish"
)

var defaultTargets = []string{publish.DestinationMedium, publish.DestinationDevTo}

func main() {
	cli.Execute(newRootCmd())
}

func newRootCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "crosspost [slug...]",
		Short: "Cross-post stored posts; all posts when no slug is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := cli.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			posts, err := selectPosts(a.Store, args)
			if err != nil {
				return err
			}
			targets := defaultTargets
			if list := cli.SplitList(to); len(list) > 0 {
				targets = list
			}
			return crosspost(cmd.Context(), cmd.OutOrStdout(), a.Dispatcher, a.Config.SiteURL, posts, targets)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "comma separated destinations (default medium,devto)")
	return cli.Quiet(cmd)
}

func selectPosts(store *content.Store, slugs []string) ([]content.Post, error) {
	if len(slugs) == 0 {
		posts, err := store.List()
		if err != nil {
			return nil, err
		}
		if len(posts) == 0 {
			return nil, fmt.Errorf("no posts in %s", store.Dir)
		}
		return posts, nil
	}
	posts := make([]content.Post, 0, len(slugs))
	for _, slug := range slugs {
		post, err := store.Load(slug)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", slug, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

type publisherSet interface {
	PublishAll(ctx context.Context, item publish.Item, names ...string) []publish.Record
}

func crosspost(ctx context.Context, out io.Writer, d publisherSet, siteURL string, posts []content.Post, targets []string) error {
	failed, total := 0, 0
	for _, post := range posts {
		fmt.Fprintf(out, "%s\n", post.Slug)
		records := d.PublishAll(ctx, publish.ItemFromPost(post, siteURL), targets...)
		failed += cli.PrintRecords(out, records)
		total += len(records)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cross-posts failed", failed, total)
	}
	return nil
}
