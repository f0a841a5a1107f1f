package machine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"contentmachine/internal/llm"
	"contentmachine/internal/prompt"
)

// ErrNoTranscript is returned when a clip request carries neither a URL nor a transcript.
var ErrNoTranscript = errors.New("machine: a video url or a transcript is required")

// Clip categories.
const (
	ClipContrarian   = "contrarian"
	ClipProof        = "proof"
	ClipFramework    = "framework"
	ClipStory        = "story"
	ClipGoldenNugget = "golden-nugget"
	ClipQuote        = "quote"
)

var clipCategories = map[string]bool{
	ClipContrarian: true, ClipProof: true, ClipFramework: true,
	ClipStory: true, ClipGoldenNugget: true, ClipQuote: true,
}

// Clip is a short-form segment worth cutting from a long video.
type Clip struct {
	Number            int    `json:"clip_number"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	DurationSeconds   int    `json:"duration_seconds"`
	TranscriptExcerpt string `json:"transcript_excerpt"`
	HookLine          string `json:"hook_line"`
	Category          string `json:"category"`
	XPost             string `json:"x_post"`
	LinkedInPost      string `json:"linkedin_post"`
	ShortsDescription string `json:"shorts_description"`
	ViralityScore     int    `json:"virality_score"`
}

// ClipReport is the parsed clip analysis of one video.
type ClipReport struct {
	VideoTitle    string    `json:"video_title"`
	TotalDuration string    `json:"total_duration"`
	Clips         []Clip    `json:"clips"`
	ClipCount     int       `json:"clip_count"`
	GeneratedAt   time.Time `json:"generated_at"`
	// TranscriptStrategy is empty when the caller supplied the transcript.
	TranscriptStrategy string `json:"transcript_strategy,omitempty"`
}

// ClipsRequest names a video or carries its transcript directly.
type ClipsRequest struct {
	URL        string
	Transcript string
}

// AnalyzeClips finds short-form clip candidates in a video transcript.
// A supplied transcript wins over the URL.
func (s *Studio) AnalyzeClips(ctx context.Context, req ClipsRequest) (ClipReport, error) {
	text := strings.TrimSpace(req.Transcript)
	var strategy string
	switch {
	case text != "":
		text = llm.Truncate(text, s.MaxTranscriptChars)
	case strings.TrimSpace(req.URL) != "":
		var err error
		text, strategy, err = s.transcript(ctx, req.URL)
		if err != nil {
			return ClipReport{}, err
		}
	default:
		return ClipReport{}, ErrNoTranscript
	}

	raw, err := s.complete(ctx, prompt.KindClips, clipsParams,
		"Analyze this video transcript and identify the best short-form clips:\n\n"+text, nil)
	if err != nil {
		return ClipReport{}, err
	}
	report, err := ParseClips(raw)
	if err != nil {
		return ClipReport{}, err
	}
	report.GeneratedAt = s.now().UTC()
	report.TranscriptStrategy = strategy
	s.logger().WithField("clips", report.ClipCount).Info("clips analyzed")
	return report, nil
}

type rawClip struct {
	Number            flexInt    `json:"clip_number"`
	StartTime         flexString `json:"start_time"`
	EndTime           flexString `json:"end_time"`
	DurationSeconds   flexInt    `json:"duration_seconds"`
	TranscriptExcerpt flexString `json:"transcript_excerpt"`
	HookLine          flexString `json:"hook_line"`
	Category          flexString `json:"category"`
	XPost             flexString `json:"x_post"`
	LinkedInPost      flexString `json:"linkedin_post"`
	ShortsDescription flexString `json:"shorts_description"`
	ViralityScore     flexInt    `json:"virality_score"`
}

// ParseClips decodes a clip analysis response and normalises every clip.
func ParseClips(raw string) (ClipReport, error) {
	var doc struct {
		VideoTitle    flexString `json:"video_title"`
		TotalDuration flexString `json:"total_duration"`
		Clips         []rawClip  `json:"clips"`
	}
	if err := decodeJSON("clips", raw, &doc); err != nil {
		return ClipReport{}, err
	}

	clips := make([]Clip, 0, len(doc.Clips))
	for i, rc := range doc.Clips {
		c := Clip{
			Number:            int(rc.Number),
			StartTime:         strings.TrimSpace(string(rc.StartTime)),
			EndTime:           strings.TrimSpace(string(rc.EndTime)),
			DurationSeconds:   int(rc.DurationSeconds),
			TranscriptExcerpt: strings.TrimSpace(string(rc.TranscriptExcerpt)),
			HookLine:          strings.TrimSpace(string(rc.HookLine)),
			Category:          strings.ToLower(strings.TrimSpace(string(rc.Category))),
			XPost:             strings.TrimSpace(string(rc.XPost)),
			LinkedInPost:      strings.TrimSpace(string(rc.LinkedInPost)),
			ShortsDescription: strings.TrimSpace(string(rc.ShortsDescription)),
			ViralityScore:     clamp(int(rc.ViralityScore), 0, 10),
		}
		if c.Number <= 0 {
			c.Number = i + 1
		}
		if !clipCategories[c.Category] {
			c.Category = ClipGoldenNugget
		}
		if c.DurationSeconds <= 0 {
			start, okStart := parseTimestamp(c.StartTime)
			end, okEnd := parseTimestamp(c.EndTime)
			if okStart && okEnd && end > start {
				c.DurationSeconds = end - start
			} else {
				c.DurationSeconds = 0
			}
		}
		clips = append(clips, c)
	}
	sort.SliceStable(clips, func(i, j int) bool { return clips[i].ViralityScore > clips[j].ViralityScore })

	title := strings.TrimSpace(string(doc.VideoTitle))
	if title == "" {
		title = "Untitled"
	}
	duration := strings.TrimSpace(string(doc.TotalDuration))
	if duration == "" {
		duration = "unknown"
	}
	return ClipReport{VideoTitle: title, TotalDuration: duration, Clips: clips, ClipCount: len(clips)}, nil
}
