package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contentmachine/internal/upstream"
)

const defaultSupadataURL = "https://api.supadata.ai"

// SupadataFetcher asks the hosted Supadata API for a plain-text transcript.
type SupadataFetcher struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSupadataFetcher constructs the hosted-API strategy.
func NewSupadataFetcher(apiKey string, opts ...func(*SupadataFetcher)) *SupadataFetcher {
	f := &SupadataFetcher{
		baseURL:    defaultSupadataURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithSupadataBaseURL points the fetcher at another host.
func WithSupadataBaseURL(u string) func(*SupadataFetcher) {
	return func(f *SupadataFetcher) { f.baseURL = strings.TrimRight(u, "/") }
}

// WithSupadataHTTPClient overrides the HTTP client.
func WithSupadataHTTPClient(c *http.Client) func(*SupadataFetcher) {
	return func(f *SupadataFetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

func (f *SupadataFetcher) Name() string { return "supadata" }

func (f *SupadataFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	q := url.Values{"videoId": {videoID}, "text": {"true"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/v1/youtube/transcript?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if !upstream.IsSuccess(resp.StatusCode) {
		return "", upstream.FromResponse(f.Name(), resp)
	}

	var payload struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return contentText(payload.Content), nil
}

// contentText accepts either a string or a list of {text} segments.
func contentText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var segments []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &segments); err != nil {
		return ""
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
