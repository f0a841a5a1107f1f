// Package transcript retrieves plain-text transcripts for videos, trying several strategies in order.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"contentmachine/internal/logging"
	"contentmachine/internal/metrics"
)

// ErrManualTranscript means every strategy failed and the caller should offer to paste one by hand.
var ErrManualTranscript = errors.New("transcript: unavailable, paste it manually")

// ErrInvalidVideo is returned for references that do not identify a video.
var ErrInvalidVideo = errors.New("transcript: not a recognisable video reference")

// DefaultMinChars is the shortest transcript accepted from a strategy.
const DefaultMinChars = 50

// Fetcher is one transcript retrieval strategy.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Transcript is the text produced by the winning strategy.
type Transcript struct {
	VideoID  string
	Text     string
	Strategy string
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:.*&)?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/live/([a-zA-Z0-9_-]{11})`),
}

var bareVideoID = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// VideoID extracts the 11 character video id from a URL or accepts a bare id.
func VideoID(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if bareVideoID.MatchString(ref) {
		return ref, true
	}
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(ref); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// WatchURL returns the canonical watch page for id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Acquirer runs fetchers in order until one yields a usable transcript.
type Acquirer struct {
	Fetchers []Fetcher
	MinChars int
	Metrics  *metrics.Metrics
	Logger   logrus.FieldLogger
}

// NewAcquirer builds an acquirer over fetchers, in priority order.
func NewAcquirer(logger logrus.FieldLogger, m *metrics.Metrics, fetchers ...Fetcher) *Acquirer {
	return &Acquirer{Fetchers: fetchers, MinChars: DefaultMinChars, Metrics: m, Logger: logger}
}

// Acquire resolves ref to a transcript. When every strategy fails the error wraps
// ErrManualTranscript together with each strategy's cause.
func (a *Acquirer) Acquire(ctx context.Context, ref string) (Transcript, error) {
	id, ok := VideoID(ref)
	if !ok {
		return Transcript{}, fmt.Errorf("%w: %q", ErrInvalidVideo, ref)
	}

	logger := logging.OrDiscard(a.Logger).WithField("video_id", id)
	minChars := a.MinChars
	if minChars <= 0 {
		minChars = DefaultMinChars
	}

	var errs []error
	for _, f := range a.Fetchers {
		if err := ctx.Err(); err != nil {
			return Transcript{}, err
		}
		text, err := f.Fetch(ctx, id)
		text = strings.TrimSpace(text)
		if err == nil && utf8.RuneCountInString(text) < minChars {
			err = fmt.Errorf("too short (%d chars)", utf8.RuneCountInString(text))
		}
		a.Metrics.Transcript(f.Name(), err)
		if err != nil {
			logger.WithError(err).WithField("strategy", f.Name()).Warn("transcript strategy failed")
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		logger.WithFields(logrus.Fields{"strategy": f.Name(), "chars": len(text)}).Info("transcript acquired")
		return Transcript{VideoID: id, Text: text, Strategy: f.Name()}, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no strategies configured"))
	}
	return Transcript{}, fmt.Errorf("%w: %w", ErrManualTranscript, StrategyErrors(errs))
}

// StrategyErrors holds the cause of every failed strategy. Its message stays on one line.
type StrategyErrors []error

func (e StrategyErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, strings.Join(strings.Fields(err.Error()), " "))
	}
	return strings.Join(msgs, "; ")
}

func (e StrategyErrors) Unwrap() []error { return e }
