package publish

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

const (
	mediumAPI = "https://api.medium.com"
	devToAPI  = "https://dev.to"
)

// MediumPublisher posts public Markdown stories with a canonical link.
type MediumPublisher struct {
	token   string
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	userID string
}

// NewMediumPublisher uses an integration token. baseURL may be empty.
func NewMediumPublisher(token, baseURL string, client *http.Client) *MediumPublisher {
	if baseURL == "" {
		baseURL = mediumAPI
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &MediumPublisher{token: token, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *MediumPublisher) Name() string { return DestinationMedium }

func (p *MediumPublisher) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.token}
}

// user resolves the author id once; a failed lookup is retried on the next call.
func (p *MediumPublisher) user(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.userID != "" {
		return p.userID, nil
	}
	var me struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := doJSON(ctx, p.client, "medium", http.MethodGet, p.baseURL+"/v1/me", p.headers(), nil, &me); err != nil {
		return "", err
	}
	if me.Data.ID == "" {
		return "", fmt.Errorf("medium: /v1/me returned no user id")
	}
	p.userID = me.Data.ID
	return p.userID, nil
}

func (p *MediumPublisher) Publish(ctx context.Context, item Item) (string, error) {
	if p.token == "" {
		return "", fmt.Errorf("%w: medium", ErrNotConfigured)
	}
	id, err := p.user(ctx)
	if err != nil {
		return "", err
	}
	payload := map[string]any{
		"title":         item.Title,
		"contentFormat": "markdown",
		"content":       "# " + item.Title + "\n\n" + item.Body,
		"tags":          capTags(item.Tags, 5),
		"canonicalUrl":  item.CanonicalURL,
		"publishStatus": "public",
	}
	var out struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := doJSON(ctx, p.client, "medium", http.MethodPost, p.baseURL+"/v1/users/"+id+"/posts", p.headers(), payload, &out); err != nil {
		return "", err
	}
	return out.Data.URL, nil
}

// DevToPublisher publishes articles with a canonical link.
type DevToPublisher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewDevToPublisher uses an API key. baseURL may be empty.
func NewDevToPublisher(apiKey, baseURL string, client *http.Client) *DevToPublisher {
	if baseURL == "" {
		baseURL = devToAPI
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &DevToPublisher{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *DevToPublisher) Name() string { return DestinationDevTo }

func (p *DevToPublisher) Publish(ctx context.Context, item Item) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("%w: devto", ErrNotConfigured)
	}
	payload := map[string]any{
		"article": map[string]any{
			"title":         item.Title,
			"body_markdown": item.Body,
			"published":     true,
			"tags":          capTags(item.Tags, 4),
			"canonical_url": item.CanonicalURL,
		},
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := doJSON(ctx, p.client, "devto", http.MethodPost, p.baseURL+"/api/articles", map[string]string{"api-key": p.apiKey}, payload, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
