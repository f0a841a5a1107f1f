package machine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"contentmachine/internal/mining"
	"contentmachine/internal/prompt"
)

// ErrNoSignals is returned when mining produced nothing to analyse.
var ErrNoSignals = errors.New("machine: no signals found, check your subreddits and channels")

// MaxSignals caps how many ranked signals a report keeps.
const MaxSignals = 10

// Miner collects raw audience comments.
type Miner interface {
	MineAll(ctx context.Context, q mining.Query) mining.Harvest
}

var (
	frequencies = map[string]bool{"high": true, "medium": true, "low": true}
	emotions    = map[string]bool{"frustration": true, "anxiety": true, "confusion": true, "curiosity": true}
)

// Signal is one recurring audience pain point with its video potential.
type Signal struct {
	Pain           string   `json:"pain"`
	Frequency      string   `json:"frequency"`
	Emotion        string   `json:"emotion"`
	Sources        []string `json:"sources"`
	CuriosityGap   int      `json:"curiosity_gap"`
	PainIntensity  int      `json:"pain_intensity"`
	AudienceSize   int      `json:"audience_size"`
	AuthorityMatch int      `json:"authority_match"`
	Total          int      `json:"total"`
	Titles         []string `json:"titles"`
	HookSuggestion string   `json:"hook_suggestion"`
}

// SignalReport is the ranked analysis of one mining run.
type SignalReport struct {
	Signals  []Signal       `json:"signals"`
	RawCount int            `json:"raw_count"`
	Sources  map[string]int `json:"sources"`
	MinedAt  time.Time      `json:"mined_at"`
}

// Signals mines the configured sources for q and ranks the pain points found.
// When nothing was mined the returned report still carries the per-source counts.
func (s *Studio) Signals(ctx context.Context, q mining.Query) (SignalReport, error) {
	if s.Miner == nil {
		return SignalReport{}, errors.New("machine: signal mining not configured")
	}
	harvest := s.Miner.MineAll(ctx, q)
	report := SignalReport{
		Signals:  []Signal{},
		RawCount: harvest.Total(),
		Sources: map[string]int{
			mining.SourceReddit:  harvest.Count(mining.SourceReddit),
			mining.SourceYouTube: harvest.Count(mining.SourceYouTube),
		},
		MinedAt: s.now().UTC(),
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	lines := mining.Digest(harvest)
	if len(lines) == 0 {
		return report, ErrNoSignals
	}
	signals, err := s.AnalyzeSignals(ctx, lines)
	if err != nil {
		return report, err
	}
	report.Signals = signals
	s.logger().WithField("raw_count", report.RawCount).WithField("signals", len(signals)).Info("signals analyzed")
	return report, nil
}

// AnalyzeSignals sends digest lines to the model and returns ranked signals.
func (s *Studio) AnalyzeSignals(ctx context.Context, lines []string) ([]Signal, error) {
	if len(lines) == 0 {
		return nil, ErrNoSignals
	}
	user := fmt.Sprintf("Here are %d raw signals to analyze:\n\n%s", len(lines), strings.Join(lines, "\n\n---\n\n"))
	raw, err := s.complete(ctx, prompt.KindSignals, signalsParams, user, nil)
	if err != nil {
		return nil, err
	}
	return ParseSignals(raw)
}

type rawSignal struct {
	Pain           flexString  `json:"pain"`
	Frequency      flexString  `json:"frequency"`
	Emotion        flexString  `json:"emotion"`
	Sources        flexStrings `json:"sources"`
	CuriosityGap   flexInt     `json:"curiosity_gap"`
	PainIntensity  flexInt     `json:"pain_intensity"`
	AudienceSize   flexInt     `json:"audience_size"`
	AuthorityMatch flexInt     `json:"authority_match"`
	Titles         flexStrings `json:"titles"`
	HookSuggestion flexString  `json:"hook_suggestion"`
}

// ParseSignals decodes a signal analysis response. Sub-scores are clamped to 0..10,
// the total is recomputed as their sum, and the top MaxSignals are kept by total.
func ParseSignals(raw string) ([]Signal, error) {
	var doc struct {
		Signals []rawSignal `json:"signals"`
	}
	if err := decodeJSON("signals", raw, &doc); err != nil {
		return nil, err
	}

	signals := make([]Signal, 0, len(doc.Signals))
	for _, rs := range doc.Signals {
		pain := strings.TrimSpace(string(rs.Pain))
		if pain == "" {
			continue
		}
		sig := Signal{
			Pain:           pain,
			Frequency:      enumOr(string(rs.Frequency), frequencies, "medium"),
			Emotion:        enumOr(string(rs.Emotion), emotions, "frustration"),
			Sources:        rs.Sources.list(),
			CuriosityGap:   clamp(int(rs.CuriosityGap), 0, 10),
			PainIntensity:  clamp(int(rs.PainIntensity), 0, 10),
			AudienceSize:   clamp(int(rs.AudienceSize), 0, 10),
			AuthorityMatch: clamp(int(rs.AuthorityMatch), 0, 10),
			Titles:         rs.Titles.list(),
			HookSuggestion: strings.TrimSpace(string(rs.HookSuggestion)),
		}
		sig.Total = sig.CuriosityGap + sig.PainIntensity + sig.AudienceSize + sig.AuthorityMatch
		signals = append(signals, sig)
	}

	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Total > signals[j].Total })
	if len(signals) > MaxSignals {
		signals = signals[:MaxSignals]
	}
	return signals, nil
}

func enumOr(value string, allowed map[string]bool, fallback string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if allowed[v] {
		return v
	}
	return fallback
}
