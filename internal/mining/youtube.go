package mining

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"contentmachine/internal/logging"
	"contentmachine/internal/upstream"
)

const (
	defaultYouTubeAPI = "https://www.googleapis.com/youtube/v3"
	minYouTubeChars   = 20
	videosPerChannel  = 5
)

var (
	channelIDPattern  = regexp.MustCompile(`^UC[\w-]{22}$`)
	channelURLPattern = regexp.MustCompile(`/channel/(UC[\w-]{22})`)
	handlePattern     = regexp.MustCompile(`@([\w.-]+)`)
)

// YouTubeSource reads top-level comments on the latest videos of the given channels
// through the YouTube Data API v3.
type YouTubeSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewYouTubeSource constructs a source authenticated with apiKey.
func NewYouTubeSource(apiKey string, logger logrus.FieldLogger, opts ...func(*YouTubeSource)) *YouTubeSource {
	s := &YouTubeSource{
		baseURL:    defaultYouTubeAPI,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logging.OrDiscard(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithYouTubeBaseURL points the source at another API root.
func WithYouTubeBaseURL(u string) func(*YouTubeSource) {
	return func(s *YouTubeSource) { s.baseURL = strings.TrimRight(u, "/") }
}

func (s *YouTubeSource) Name() string { return SourceYouTube }

// Mine resolves each channel input and collects comments from its recent videos.
func (s *YouTubeSource) Mine(ctx context.Context, q Query) ([]Comment, error) {
	if s.apiKey == "" {
		return nil, errors.New("youtube: api key not configured")
	}

	var out []Comment
	for _, input := range q.Channels {
		channelID, err := s.ResolveChannel(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("youtube: %w", ctx.Err())
			}
			s.logger.WithError(err).WithField("channel", input).Debug("youtube channel skipped")
			continue
		}
		comments, err := s.channelComments(ctx, channelID)
		out = append(out, comments...)
		if err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("youtube: %w", ctx.Err())
			}
			s.logger.WithError(err).WithField("channel", channelID).Debug("youtube channel skipped")
		}
	}
	return out, nil
}

// ResolveChannel accepts a UC… id, an @handle (alone or inside a URL), a /channel/ URL or a bare handle.
func (s *YouTubeSource) ResolveChannel(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if channelIDPattern.MatchString(input) {
		return input, nil
	}
	if m := channelURLPattern.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	handle := ""
	if m := handlePattern.FindStringSubmatch(input); m != nil {
		handle = m[1]
	} else if input != "" && !strings.Contains(input, "/") && !strings.HasPrefix(input, "UC") {
		handle = input
	}
	if handle == "" {
		return "", fmt.Errorf("unrecognised channel %q", input)
	}

	var resp struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := s.get(ctx, "channels", url.Values{"forHandle": {handle}, "part": {"id"}}, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 || resp.Items[0].ID == "" {
		return "", fmt.Errorf("no channel for handle %q", handle)
	}
	return resp.Items[0].ID, nil
}

func (s *YouTubeSource) channelComments(ctx context.Context, channelID string) ([]Comment, error) {
	var search struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	params := url.Values{
		"channelId":  {channelID},
		"part":       {"snippet"},
		"order":      {"date"},
		"maxResults": {"10"},
		"type":       {"video"},
	}
	if err := s.get(ctx, "search", params, &search); err != nil {
		return nil, err
	}

	var out []Comment
	videos := 0
	for _, item := range search.Items {
		if item.ID.VideoID == "" {
			continue
		}
		if videos == videosPerChannel {
			break
		}
		videos++
		comments, err := s.videoComments(ctx, channelID, item.ID.VideoID)
		if err != nil {
			if ctx.Err() != nil {
				return out, err
			}
			continue
		}
		out = append(out, comments...)
	}
	return out, nil
}

func (s *YouTubeSource) videoComments(ctx context.Context, channelID, videoID string) ([]Comment, error) {
	var threads struct {
		Items []struct {
			Snippet struct {
				TopLevelComment struct {
					Snippet struct {
						TextDisplay string `json:"textDisplay"`
						LikeCount   int    `json:"likeCount"`
					} `json:"snippet"`
				} `json:"topLevelComment"`
			} `json:"snippet"`
		} `json:"items"`
	}
	params := url.Values{
		"videoId":    {videoID},
		"part":       {"snippet"},
		"maxResults": {"50"},
		"order":      {"relevance"},
	}
	if err := s.get(ctx, "commentThreads", params, &threads); err != nil {
		return nil, err
	}

	var out []Comment
	for _, item := range threads.Items {
		snippet := item.Snippet.TopLevelComment.Snippet
		text := htmlText(snippet.TextDisplay)
		if len(text) <= minYouTubeChars {
			continue
		}
		out = append(out, Comment{Source: SourceYouTube, Origin: channelID, Text: cut(text, 400), Score: snippet.LikeCount})
	}
	return out, nil
}

func (s *YouTubeSource) get(ctx context.Context, resource string, params url.Values, v any) error {
	params.Set("key", s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+resource+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if !upstream.IsSuccess(resp.StatusCode) {
		return upstream.FromResponse("youtube-data", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", resource, err)
	}
	return nil
}

// htmlText converts the API's HTML comment rendering into plain text.
func htmlText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(s, "<br>", "\n")))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
