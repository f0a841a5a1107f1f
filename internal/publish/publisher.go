// Package publish delivers generated posts to the site repository and to syndication platforms.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"contentmachine/internal/content"
	"contentmachine/internal/upstream"
)

// Destination names.
const (
	DestinationLocal     = "local"
	DestinationGitHub    = "github"
	DestinationMedium    = "medium"
	DestinationDevTo     = "devto"
	DestinationTypefully = "typefully"
)

// ErrNotConfigured is returned for a destination whose credentials are missing.
var ErrNotConfigured = errors.New("publish: destination not configured")

const defaultTimeout = 30 * time.Second

// Item is what a publisher receives.
type Item struct {
	Slug  string
	Title string
	// Body is the syndication copy: local images stripped, canonical back-link appended.
	Body string
	// Raw is the complete content file including front matter.
	Raw          string
	Tags         []string
	CanonicalURL string
}

// ItemFromPost prepares post for every destination.
func ItemFromPost(post content.Post, siteURL string) Item {
	return Item{
		Slug:         post.Slug,
		Title:        post.Title,
		Body:         content.CrosspostBody(post, siteURL),
		Raw:          post.Render(),
		Tags:         post.Tags(5),
		CanonicalURL: content.CanonicalURL(siteURL, post.Slug),
	}
}

// Publisher submits an item and returns where it can be read.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, item Item) (string, error)
}

func capTags(tags []string, max int) []string {
	if tags == nil {
		return []string{}
	}
	if len(tags) > max {
		return tags[:max]
	}
	return tags
}

// doJSON sends payload (when non-nil) and decodes a 2xx response into out (when non-nil).
func doJSON(ctx context.Context, client *http.Client, service, method, url string, headers map[string]string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", service, err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", service, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", service, err)
	}
	defer resp.Body.Close()

	if !upstream.IsSuccess(resp.StatusCode) {
		return upstream.FromResponse(service, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", service, err)
	}
	return nil
}
