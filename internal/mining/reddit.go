package mining

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"contentmachine/internal/logging"
	"contentmachine/internal/upstream"
)

const (
	defaultRedditURL = "https://www.reddit.com"
	redditUserAgent  = "SignalMiner/1.0"
	minRedditChars   = 30
)

// RedditSource searches subreddits through Reddit's public JSON endpoints and pulls
// the top comments of every hit. Search requests are paced by a rate limiter.
type RedditSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     logrus.FieldLogger
}

// NewRedditSource constructs a Reddit source pacing searches at one per second.
func NewRedditSource(logger logrus.FieldLogger, opts ...func(*RedditSource)) *RedditSource {
	s := &RedditSource{
		baseURL:    defaultRedditURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     logging.OrDiscard(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithRedditBaseURL points the source at another host.
func WithRedditBaseURL(u string) func(*RedditSource) {
	return func(s *RedditSource) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithRedditLimiter overrides the request pacing.
func WithRedditLimiter(l *rate.Limiter) func(*RedditSource) {
	return func(s *RedditSource) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithRedditHTTPClient overrides the HTTP client.
func WithRedditHTTPClient(c *http.Client) func(*RedditSource) {
	return func(s *RedditSource) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func (s *RedditSource) Name() string { return SourceReddit }

type redditListing struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Title     string `json:"title"`
				Selftext  string `json:"selftext"`
				Body      string `json:"body"`
				Score     int    `json:"score"`
				Permalink string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Mine searches every subreddit for every keyword. Individual request failures are
// skipped; only context cancellation stops the run early.
func (s *RedditSource) Mine(ctx context.Context, q Query) ([]Comment, error) {
	var out []Comment
	for _, sub := range q.Subreddits {
		for _, keyword := range q.Keywords {
			if err := s.limiter.Wait(ctx); err != nil {
				return out, fmt.Errorf("reddit: %w", err)
			}
			comments, err := s.search(ctx, sub, keyword)
			if err != nil {
				if ctx.Err() != nil {
					return append(out, comments...), fmt.Errorf("reddit: %w", ctx.Err())
				}
				s.logger.WithError(err).WithFields(logrus.Fields{"subreddit": sub, "keyword": keyword}).Debug("reddit search skipped")
			}
			out = append(out, comments...)
		}
	}
	return out, nil
}

func (s *RedditSource) search(ctx context.Context, sub, keyword string) ([]Comment, error) {
	q := url.Values{"q": {keyword}, "sort": {"relevance"}, "t": {"month"}, "limit": {"25"}}
	var listing redditListing
	if err := s.getJSON(ctx, fmt.Sprintf("%s/r/%s/search.json?%s", s.baseURL, url.PathEscape(sub), q.Encode()), &listing); err != nil {
		return nil, err
	}

	var out []Comment
	for _, child := range listing.Data.Children {
		post := child.Data
		if len(post.Selftext) > minRedditChars {
			out = append(out, Comment{
				Source: SourceReddit,
				Origin: sub,
				Text:   "[POST] " + post.Title + "\n" + cut(post.Selftext, 500),
				Score:  post.Score,
			})
		}
		if post.Permalink == "" {
			continue
		}
		replies, err := s.topComments(ctx, sub, post.Permalink)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			continue
		}
		out = append(out, replies...)
	}
	return out, nil
}

func (s *RedditSource) topComments(ctx context.Context, sub, permalink string) ([]Comment, error) {
	var thread []redditListing
	u := s.baseURL + strings.TrimRight(permalink, "/") + ".json?sort=top&limit=10"
	if err := s.getJSON(ctx, u, &thread); err != nil {
		return nil, err
	}
	if len(thread) < 2 {
		return nil, nil
	}

	var out []Comment
	for _, child := range thread[1].Data.Children {
		if child.Kind != "t1" || len(child.Data.Body) <= minRedditChars {
			continue
		}
		out = append(out, Comment{
			Source: SourceReddit,
			Origin: sub,
			Text:   cut(child.Data.Body, 400),
			Score:  child.Data.Score,
		})
	}
	return out, nil
}

func (s *RedditSource) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", redditUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if !upstream.IsSuccess(resp.StatusCode) {
		return upstream.FromResponse("reddit", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
