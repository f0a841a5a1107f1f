// Package mining collects audience comments from public sources for pain-signal analysis.
package mining

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"contentmachine/internal/logging"
)

// Source names.
const (
	SourceReddit  = "reddit"
	SourceYouTube = "youtube"
)

// DefaultSubreddits and DefaultKeywords are used when a query leaves them empty.
var (
	DefaultSubreddits = []string{"Entrepreneur", "SaaS", "coldoutreach", "digital_marketing", "agency"}
	DefaultKeywords   = []string{
		"agency stuck",
		"cold email not working",
		"can't get clients",
		"outbound dying",
		"AI agency",
		"freelancing plateau",
		"lead generation difficult",
		"business model stuck",
	}
)

// Comment is one piece of audience text.
type Comment struct {
	Source string
	// Origin is the subreddit or channel id the comment came from.
	Origin string
	Text   string
	Score  int
}

// Query selects what to mine.
type Query struct {
	Subreddits []string
	Keywords   []string
	Channels   []string
}

// WithDefaults fills empty subreddit and keyword lists.
func (q Query) WithDefaults() Query {
	if len(q.Subreddits) == 0 {
		q.Subreddits = DefaultSubreddits
	}
	if len(q.Keywords) == 0 {
		q.Keywords = DefaultKeywords
	}
	return q
}

// Source defines a pluggable provider of audience comments.
type Source interface {
	Name() string
	Mine(ctx context.Context, q Query) ([]Comment, error)
}

// Registry keeps track of available sources and mines them together.
type Registry struct {
	sources []Source
	logger  logrus.FieldLogger
}

// NewRegistry builds a registry with the provided sources.
func NewRegistry(logger logrus.FieldLogger, sources ...Source) (*Registry, error) {
	if len(sources) == 0 {
		return nil, errors.New("mining: at least one source is required")
	}
	return &Registry{sources: sources, logger: logging.OrDiscard(logger)}, nil
}

// Add registers a new source instance.
func (r *Registry) Add(source Source) {
	r.sources = append(r.sources, source)
}

// Harvest groups mined comments by source name.
type Harvest map[string][]Comment

// Count returns the number of comments mined from source.
func (h Harvest) Count(source string) int {
	return len(h[source])
}

// Total returns the number of comments across every source.
func (h Harvest) Total() int {
	n := 0
	for _, comments := range h {
		n += len(comments)
	}
	return n
}

// MineAll runs every source concurrently. A failing source is logged and contributes
// whatever it collected before failing.
func (r *Registry) MineAll(ctx context.Context, q Query) Harvest {
	q = q.WithDefaults()
	results := make([][]Comment, len(r.sources))

	var g errgroup.Group
	for i, src := range r.sources {
		g.Go(func() error {
			start := time.Now()
			comments, err := src.Mine(ctx, q)
			results[i] = comments
			entry := r.logger.WithFields(logrus.Fields{
				"source":   src.Name(),
				"comments": len(comments),
				"duration": time.Since(start).String(),
			})
			if err != nil {
				entry.WithError(err).Warn("mining source failed")
				return nil
			}
			entry.Info("mining source finished")
			return nil
		})
	}
	_ = g.Wait()

	harvest := make(Harvest, len(r.sources))
	for i, src := range r.sources {
		harvest[src.Name()] = append(harvest[src.Name()], results[i]...)
	}
	return harvest
}

// DigestLimits caps how many comments per source reach the analysis prompt.
var DigestLimits = map[string]int{SourceReddit: 60, SourceYouTube: 40}

const defaultDigestLimit = 40

// Digest renders the highest-scoring comments of each source as prompt lines,
// Reddit first, then YouTube, then any other source by name.
func Digest(h Harvest) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := sourceRank(names[i]), sourceRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	var lines []string
	for _, name := range names {
		comments := append([]Comment(nil), h[name]...)
		sort.SliceStable(comments, func(i, j int) bool { return comments[i].Score > comments[j].Score })
		limit, ok := DigestLimits[name]
		if !ok {
			limit = defaultDigestLimit
		}
		if len(comments) > limit {
			comments = comments[:limit]
		}
		for _, c := range comments {
			lines = append(lines, c.digestLine())
		}
	}
	return lines
}

func sourceRank(name string) int {
	switch name {
	case SourceReddit:
		return 0
	case SourceYouTube:
		return 1
	default:
		return 2
	}
}

func (c Comment) digestLine() string {
	switch c.Source {
	case SourceReddit:
		return fmt.Sprintf("[Reddit r/%s | score:%d] %s", c.Origin, c.Score, c.Text)
	case SourceYouTube:
		return fmt.Sprintf("[YouTube %s | likes:%d] %s", c.Origin, c.Score, c.Text)
	default:
		return fmt.Sprintf("[%s %s | score:%d] %s", c.Source, c.Origin, c.Score, c.Text)
	}
}

// cut trims s and bounds it to max runes.
func cut(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}
