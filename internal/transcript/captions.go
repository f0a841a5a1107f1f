package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"contentmachine/internal/upstream"
)

var captionTrackURL = regexp.MustCompile(`"captionTracks":\[.*?"baseUrl":"(.*?)"`)

// CaptionsFetcher scrapes the caption track URL from the public watch page and
// reads the timed-text XML it points to.
type CaptionsFetcher struct {
	watchURL   func(id string) string
	httpClient *http.Client
}

// NewCaptionsFetcher constructs the watch-page strategy.
func NewCaptionsFetcher(opts ...func(*CaptionsFetcher)) *CaptionsFetcher {
	f := &CaptionsFetcher{
		watchURL:   WatchURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithWatchURL overrides how the watch page URL is built.
func WithWatchURL(fn func(id string) string) func(*CaptionsFetcher) {
	return func(f *CaptionsFetcher) { f.watchURL = fn }
}

// WithCaptionsHTTPClient overrides the HTTP client.
func WithCaptionsHTTPClient(c *http.Client) func(*CaptionsFetcher) {
	return func(f *CaptionsFetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

func (f *CaptionsFetcher) Name() string { return "captions" }

func (f *CaptionsFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	page, err := f.get(ctx, f.watchURL(videoID), "youtube-watch")
	if err != nil {
		return "", err
	}

	m := captionTrackURL.FindSubmatch(page)
	if m == nil {
		return "", errors.New("no caption tracks on watch page")
	}
	trackURL := strings.NewReplacer(`\u0026`, "&", `\/`, "/").Replace(string(m[1]))

	body, err := f.get(ctx, trackURL, "youtube-timedtext")
	if err != nil {
		return "", err
	}
	return ParseTimedText(body)
}

func (f *CaptionsFetcher) get(ctx context.Context, u, service string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if !upstream.IsSuccess(resp.StatusCode) {
		return nil, upstream.FromResponse(service, resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", service, err)
	}
	return body, nil
}

type timedText struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

// ParseTimedText turns a timed-text XML document into "[m:ss] text" lines.
func ParseTimedText(data []byte) (string, error) {
	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode timed text: %w", err)
	}

	var out []string
	for _, line := range doc.Lines {
		text := cleanCaption(line.Text)
		if text == "" {
			continue
		}
		start, _ := strconv.ParseFloat(line.Start, 64)
		secs := int(start)
		out = append(out, fmt.Sprintf("[%d:%02d] %s", secs/60, secs%60, text))
	}
	if len(out) == 0 {
		return "", errors.New("timed text has no captions")
	}
	return strings.Join(out, "\n"), nil
}

// cleanCaption decodes leftover entities and drops inline markup.
func cleanCaption(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
