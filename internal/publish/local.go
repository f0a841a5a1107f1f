package publish

import (
	"context"

	"contentmachine/internal/content"
)

// LocalPublisher writes the content file into the local content directory.
type LocalPublisher struct {
	Store   *content.Store
	SiteURL string
}

// NewLocalPublisher returns a publisher writing into store.
func NewLocalPublisher(store *content.Store, siteURL string) *LocalPublisher {
	return &LocalPublisher{Store: store, SiteURL: siteURL}
}

func (p *LocalPublisher) Name() string { return DestinationLocal }

// Publish stores item.Raw under its slug and returns the post's site URL.
func (p *LocalPublisher) Publish(ctx context.Context, item Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := p.Store.WriteRaw(item.Slug, item.Raw); err != nil {
		return "", err
	}
	return content.CanonicalURL(p.SiteURL, item.Slug), nil
}
