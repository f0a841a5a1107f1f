package machine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentmachine/internal/llm"
	"contentmachine/internal/mining"
	"contentmachine/internal/prompt"
	"contentmachine/internal/transcript"
)

// fakeCompleter answers by matching a substring of the user message.
type fakeCompleter struct {
	mu       sync.Mutex
	replies  map[string]string
	failures map[string]error
	requests []llm.Request
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	for key, err := range f.failures {
		if strings.Contains(req.User, key) {
			return "", err
		}
	}
	for key, reply := range f.replies {
		if strings.Contains(req.User, key) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected request")
}

type stubTranscripts struct {
	tr  transcript.Transcript
	err error
}

func (s stubTranscripts) Acquire(ctx context.Context, ref string) (transcript.Transcript, error) {
	return s.tr, s.err
}

type stubMiner struct{ harvest mining.Harvest }

func (s stubMiner) MineAll(ctx context.Context, q mining.Query) mining.Harvest { return s.harvest }

const postReply = "```mdx\n---\n" +
	`title: "Own the Middle"
meta_title: "Own the Middle"
description: "Where the money sits."
target_keywords: "market maker"
date: "2026-03-07"
category: "Operator Reality"
---

Nobody owns the middle. {Yet}.
` + "```"

var fixedNow = time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)

func newTestStudio(t *testing.T, fc *fakeCompleter) *Studio {
	t.Helper()
	lib, err := prompt.Default()
	require.NoError(t, err)
	s, err := NewStudio(fc, lib, nil, nil)
	require.NoError(t, err)
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestNewStudioRequiresCompleterAndPrompts(t *testing.T) {
	lib, err := prompt.Default()
	require.NoError(t, err)
	_, err = NewStudio(nil, lib, nil, nil)
	assert.Error(t, err)
	_, err = NewStudio(&fakeCompleter{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestGeneratePostFromText(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"raw input": postReply}}
	s := newTestStudio(t, fc)

	got, err := s.GeneratePost(context.Background(), TextInput{Text: "the middle of a market"})
	require.NoError(t, err)
	assert.Equal(t, "own-the-middle", got.Post.Slug)
	assert.Contains(t, got.Post.Body, `\{Yet\}`)
	assert.Contains(t, got.MDX, `title: "Own the Middle"`)
	assert.Equal(t, postReply, got.Raw)

	require.Len(t, fc.requests, 1)
	req := fc.requests[0]
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 4000, req.MaxTokens)
	assert.Contains(t, req.System, "2026-03-07")
	assert.True(t, strings.HasSuffix(req.User, "the middle of a market"))
}

func TestGeneratePostRejectsEmptyInputWithoutCalling(t *testing.T) {
	fc := &fakeCompleter{}
	s := newTestStudio(t, fc)

	_, err := s.GeneratePost(context.Background(), TextInput{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)
	_, err = s.GeneratePost(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, fc.requests)
}

func TestGeneratePostParseFailureKeepsRaw(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"raw input": "I could not write that post."}}
	s := newTestStudio(t, fc)

	_, err := s.GeneratePost(context.Background(), TextInput{Text: "idea"})
	require.Error(t, err)
	raw, ok := RawOutput(err)
	require.True(t, ok)
	assert.Equal(t, "I could not write that post.", raw)
}

func TestGeneratePostFromImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nrest"), 0o644))

	fc := &fakeCompleter{replies: map[string]string{"Read everything": postReply}}
	s := newTestStudio(t, fc)

	_, err := s.GeneratePost(context.Background(), ImageInput{Path: path, Caption: "from my notes"})
	require.NoError(t, err)
	require.Len(t, fc.requests, 1)
	require.Len(t, fc.requests[0].Images, 1)
	assert.Equal(t, "image/png", fc.requests[0].Images[0].MIME)
	assert.True(t, strings.HasPrefix(fc.requests[0].User, "My additional context:\n\nfrom my notes"))
}

func TestGeneratePostFromVideoTruncatesTranscript(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"video transcript": postReply}}
	s := newTestStudio(t, fc)
	s.Transcripts = stubTranscripts{tr: transcript.Transcript{VideoID: "dQw4w9WgXcQ", Text: strings.Repeat("a", 50), Strategy: "captions"}}
	s.MaxTranscriptChars = 20

	got, err := s.GeneratePost(context.Background(), VideoInput{URL: "https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, "captions", got.TranscriptStrategy)
	assert.True(t, strings.HasSuffix(fc.requests[0].User, strings.Repeat("a", 20)+llm.TruncationMarker))
}

func TestGeneratePostVideoWithoutTranscriptSupport(t *testing.T) {
	s := newTestStudio(t, &fakeCompleter{})
	_, err := s.GeneratePost(context.Background(), VideoInput{URL: "https://youtu.be/dQw4w9WgXcQ"})
	assert.ErrorIs(t, err, transcript.ErrManualTranscript)
}

const linkedInReply = `### Monday
Most operators sell hours.

### Wednesday
The mechanism matters.

### Friday
Where this goes next.`

const microblogReply = `### Saturday
New post is up.
---
Read it.

### Tuesday (Thread)
Tweet 1/ the middle
---
Tweet 2/ is empty

### Someday
dropped`

func TestAtomizeMergesLinkedInThenX(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{
		"3 LinkedIn posts": linkedInReply,
		"7 X/Twitter":      microblogReply,
	}}
	s := newTestStudio(t, fc)

	week, err := s.Atomize(context.Background(), "Own the Middle", "body")
	require.NoError(t, err)
	require.Len(t, week.Sections, 5)
	assert.Equal(t, []string{"Monday", "Wednesday", "Friday"}, days(week.For(PlatformLinkedIn)))
	assert.Equal(t, []string{"Saturday", "Tuesday"}, days(week.For(PlatformX)))
	assert.Equal(t, "Tweet 1/ the middle\n---\nTweet 2/ is empty", week.For(PlatformX)[1].Content)
	assert.True(t, strings.HasPrefix(week.Raw, "## LINKEDIN"))

	byTokens := map[int]bool{}
	for _, r := range fc.requests {
		byTokens[r.MaxTokens] = true
	}
	assert.True(t, byTokens[2000])
	assert.True(t, byTokens[5000])
}

func TestRunKeepsPostWhenSocialFails(t *testing.T) {
	fc := &fakeCompleter{
		replies:  map[string]string{"raw input": postReply, "7 X/Twitter": microblogReply},
		failures: map[string]error{"3 LinkedIn posts": errors.New("rate limited")},
	}
	s := newTestStudio(t, fc)

	res, err := s.Run(context.Background(), TextInput{Text: "idea"})
	require.NoError(t, err)
	assert.Equal(t, "own-the-middle", res.Post.Post.Slug)
	assert.Error(t, res.SocialErr)
	assert.Empty(t, res.Social.Sections)
}

func TestGenerateSocialSingleCompletion(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"full week": "## LINKEDIN\n\n" + linkedInReply + "\n\n## X / TWITTER\n\n" + microblogReply}}
	s := newTestStudio(t, fc)

	week, err := s.GenerateSocial(context.Background(), "T", "B")
	require.NoError(t, err)
	assert.Len(t, week.For(PlatformLinkedIn), 3)
	assert.Len(t, week.For(PlatformX), 2)
	require.Len(t, fc.requests, 1)
	assert.Equal(t, 5000, fc.requests[0].MaxTokens)
	assert.True(t, strings.HasPrefix(fc.requests[0].User, `Blog title: "T"`))
}

func days(sections []Section) []string {
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.Day)
	}
	return out
}

func TestParseSocial(t *testing.T) {
	text := `# Social Content: x

## LINKEDIN

### Monday
First.

### Monday
More.

### Wednesday

## X

### Friday — vision
Last.

## POSTING SCHEDULE

### Sunday
ignored`

	sections := ParseSocial(text)
	require.Len(t, sections, 2)
	assert.Equal(t, Section{Day: "Monday", Platform: PlatformLinkedIn, Label: "Monday", Content: "First.\n\nMore."}, sections[0])
	assert.Equal(t, PlatformX, sections[1].Platform)
	assert.Equal(t, "Friday", sections[1].Day)
}

func TestParseSocialProperties(t *testing.T) {
	inputs := []string{"", "no headers at all", linkedInReply, microblogReply, "### Mondayish\ntext", "## TWITTER\n### sunday\n\n---\n\n"}
	for _, in := range inputs {
		sections := ParseSocial(in)
		require.NotNil(t, sections)
		assert.LessOrEqual(t, len(sections), strings.Count(in, "### "))
		for _, s := range sections {
			assert.NotEmpty(t, strings.TrimSpace(s.Content))
		}
	}
	assert.Empty(t, ParseSocial("just a paragraph\n---\nand another"))
}

func TestRenderScheduleRoundTrips(t *testing.T) {
	week := SocialWeek{Sections: ParseSocialAs(linkedInReply, PlatformLinkedIn)}
	week.Sections = append(week.Sections, ParseSocialAs(microblogReply, PlatformX)...)

	doc := RenderSchedule("Own the Middle", "own-the-middle", week, fixedNow)
	assert.Contains(t, doc, "# Social Content: Own the Middle")
	assert.Contains(t, doc, "## LINKEDIN (3 posts)")
	assert.Contains(t, doc, "## X / TWITTER (2 posts)")
	assert.Contains(t, doc, "| Tuesday | X | Full thread |")
	assert.Equal(t, week.Sections, ParseSocial(doc))
}

func TestParseClips(t *testing.T) {
	raw := "Here you go:\n```json\n" + `{
  "video_title": "Stuck at 10k",
  "clips": [
    {"start_time": "1:00", "end_time": "1:45", "virality_score": "7/10", "category": "Proof"},
    {"clip_number": 9, "start_time": "0:10", "end_time": "0:40", "duration_seconds": 30, "virality_score": 14, "category": "rant"},
    {"start_time": "bad", "end_time": "1:00", "virality_score": 7}
  ]
}` + "\n```"

	report, err := ParseClips(raw)
	require.NoError(t, err)
	assert.Equal(t, "Stuck at 10k", report.VideoTitle)
	assert.Equal(t, "unknown", report.TotalDuration)
	require.Equal(t, 3, report.ClipCount)

	assert.Equal(t, 10, report.Clips[0].ViralityScore)
	assert.Equal(t, ClipGoldenNugget, report.Clips[0].Category)
	assert.Equal(t, 9, report.Clips[0].Number)

	// equal scores keep input order
	assert.Equal(t, 1, report.Clips[1].Number)
	assert.Equal(t, 45, report.Clips[1].DurationSeconds)
	assert.Equal(t, ClipProof, report.Clips[1].Category)
	assert.Equal(t, 3, report.Clips[2].Number)
	assert.Equal(t, 0, report.Clips[2].DurationSeconds)
}

func TestParseClipsInvalidJSON(t *testing.T) {
	_, err := ParseClips("no json here")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "clips", pe.Kind)
	assert.Equal(t, "no json here", pe.Raw)
}

func TestAnalyzeClipsPrefersSuppliedTranscript(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"short-form clips": `{"clips": []}`}}
	s := newTestStudio(t, fc)
	s.Transcripts = stubTranscripts{err: errors.New("must not be called")}

	report, err := s.AnalyzeClips(context.Background(), ClipsRequest{URL: "https://youtu.be/dQw4w9WgXcQ", Transcript: "[0:01] hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ClipCount)
	assert.NotNil(t, report.Clips)
	assert.Equal(t, fixedNow, report.GeneratedAt)
	assert.Equal(t, 6000, fc.requests[0].MaxTokens)

	_, err = s.AnalyzeClips(context.Background(), ClipsRequest{})
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestAnalyzeClipsTranscriptFailure(t *testing.T) {
	s := newTestStudio(t, &fakeCompleter{})
	s.Transcripts = stubTranscripts{err: transcript.ErrManualTranscript}

	_, err := s.AnalyzeClips(context.Background(), ClipsRequest{URL: "https://youtu.be/dQw4w9WgXcQ"})
	assert.ErrorIs(t, err, transcript.ErrManualTranscript)
}

func TestParseSignals(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"signals": [`)
	b.WriteString(`{"pain": "low", "curiosity_gap": 1, "pain_intensity": 1, "audience_size": 1, "authority_match": 1, "total": 40},`)
	b.WriteString(`{"pain": "high", "frequency": "HIGH", "emotion": "rage", "sources": "reddit:SaaS", "curiosity_gap": "9", "pain_intensity": 12, "audience_size": 8, "authority_match": 7},`)
	b.WriteString(`{"pain": "", "curiosity_gap": 10}`)
	for i := 0; i < 12; i++ {
		b.WriteString(`,{"pain": "filler", "curiosity_gap": 2}`)
	}
	b.WriteString(`]}`)

	signals, err := ParseSignals(b.String())
	require.NoError(t, err)
	require.Len(t, signals, MaxSignals)

	top := signals[0]
	assert.Equal(t, "high", top.Pain)
	assert.Equal(t, 34, top.Total)
	assert.Equal(t, 10, top.PainIntensity)
	assert.Equal(t, "high", top.Frequency)
	assert.Equal(t, "frustration", top.Emotion)
	assert.Equal(t, []string{"reddit:SaaS"}, top.Sources)
	assert.Equal(t, []string{}, top.Titles)

	assert.Equal(t, 4, signals[1].Total)
	for i := 1; i < len(signals); i++ {
		assert.GreaterOrEqual(t, signals[i-1].Total, signals[i].Total)
		s := signals[i]
		assert.Equal(t, s.CuriosityGap+s.PainIntensity+s.AudienceSize+s.AuthorityMatch, s.Total)
	}
}

func TestSignalsEmptyHarvest(t *testing.T) {
	fc := &fakeCompleter{}
	s := newTestStudio(t, fc)
	s.Miner = stubMiner{harvest: mining.Harvest{mining.SourceReddit: nil}}

	report, err := s.Signals(context.Background(), mining.Query{})
	assert.ErrorIs(t, err, ErrNoSignals)
	assert.Equal(t, 0, report.RawCount)
	assert.Equal(t, map[string]int{"reddit": 0, "youtube": 0}, report.Sources)
	assert.Empty(t, fc.requests)
}

func TestSignalsAnalyzesDigest(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"raw signals": `{"signals": [{"pain": "no clients", "curiosity_gap": 5}]}`}}
	s := newTestStudio(t, fc)
	s.Miner = stubMiner{harvest: mining.Harvest{
		mining.SourceReddit:  {{Source: mining.SourceReddit, Origin: "SaaS", Text: "a", Score: 3}},
		mining.SourceYouTube: {{Source: mining.SourceYouTube, Origin: "UCx", Text: "b", Score: 1}},
	}}

	report, err := s.Signals(context.Background(), mining.Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.RawCount)
	require.Len(t, report.Signals, 1)
	assert.Equal(t, 5, report.Signals[0].Total)

	user := fc.requests[0].User
	assert.True(t, strings.HasPrefix(user, "Here are 2 raw signals to analyze:"))
	assert.Contains(t, user, "[Reddit r/SaaS | score:3] a\n\n---\n\n[YouTube UCx | likes:1] b")
}

func TestWriteScript(t *testing.T) {
	fc := &fakeCompleter{replies: map[string]string{"PAIN SIGNAL": `{"titles": ["A", "B"], "script": {"hook": "h"}}`}}
	s := newTestStudio(t, fc)

	pkg, err := s.WriteScript(context.Background(), ScriptRequest{Pain: "no clients", Emotion: "anxiety"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, pkg.Titles)
	assert.Equal(t, []string{}, pkg.BRoll)
	assert.Equal(t, "h", pkg.Script.Hook)
	assert.Equal(t, DefaultEstimatedLength, pkg.EstimatedLength)
	assert.Equal(t, DefaultHookType, pkg.HookType)

	req := fc.requests[0]
	assert.Equal(t, "PAIN SIGNAL: no clients\nDOMINANT EMOTION: anxiety\n\nGenerate the full script package for this pain signal.", req.User)
	assert.Equal(t, 0.8, req.Temperature)

	_, err = s.WriteScript(context.Background(), ScriptRequest{})
	assert.ErrorIs(t, err, ErrNoPain)
}

func TestParseScriptToleratesMistypedFields(t *testing.T) {
	pkg, err := ParseScript(`{"titles": ["A", "B"], "thumbnails": "one idea", "estimated_length": 12,
		"script": {"hook": "h", "framework": ["step 1", "step 2"], "cta": {"text": "subscribe"}}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, pkg.Titles)
	assert.Equal(t, []string{"one idea"}, pkg.Thumbnails)
	assert.Equal(t, "h", pkg.Script.Hook)
	assert.Equal(t, "step 1\nstep 2", pkg.Script.Framework)
	assert.Equal(t, `{"text":"subscribe"}`, pkg.Script.CTA)
	assert.Equal(t, "12", pkg.EstimatedLength)

	pkg, err = ParseScript(`{"titles": ["A"], "script": "hook, setup, proof"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, pkg.Titles)
	assert.Equal(t, ScriptSections{}, pkg.Script)
}

func TestParseClipsToleratesMistypedFields(t *testing.T) {
	report, err := ParseClips(`{"video_title": 2026, "clips": [
		{"start_time": 75, "end_time": "1:45", "hook_line": ["Nobody", "owns the middle"], "virality_score": 8, "category": "story"}
	]}`)
	require.NoError(t, err)
	assert.Equal(t, "2026", report.VideoTitle)
	require.Len(t, report.Clips, 1)
	c := report.Clips[0]
	assert.Equal(t, "75", c.StartTime)
	assert.Equal(t, "Nobody\nowns the middle", c.HookLine)
	assert.Equal(t, ClipStory, c.Category)
	assert.Equal(t, 8, c.ViralityScore)
}

func TestParseClipsRejectsWrongTopLevelShape(t *testing.T) {
	_, err := ParseClips(`[{"start_time": "0:10"}]`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseSignalsToleratesMistypedFields(t *testing.T) {
	signals, err := ParseSignals(`{"signals": [
		{"pain": "no clients", "hook_suggestion": ["Open on the empty calendar", "then the fix"], "emotion": 3, "curiosity_gap": 6}
	]}`)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "Open on the empty calendar\nthen the fix", signals[0].HookSuggestion)
	assert.Equal(t, "frustration", signals[0].Emotion)
	assert.Equal(t, 6, signals[0].Total)
}

func TestDecodeKeepsFencesInsideValues(t *testing.T) {
	raw := "```json\n" + `{"titles": ["A"], "script": {"framework": "Run this:\n` + "```bash\\nmake leads\\n```" + `"}}` + "\n```"
	pkg, err := ParseScript(raw)
	require.NoError(t, err)
	assert.Equal(t, "Run this:\n```bash\nmake leads\n```", pkg.Script.Framework)
}
