// Package machine turns raw material into posts, social calendars, clip reports,
// video scripts and audience signal reports.
package machine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"contentmachine/internal/content"
	"contentmachine/internal/llm"
	"contentmachine/internal/logging"
	"contentmachine/internal/prompt"
	"contentmachine/internal/transcript"
)

// Transcripts resolves a video reference to its transcript.
type Transcripts interface {
	Acquire(ctx context.Context, ref string) (transcript.Transcript, error)
}

// Generation parameters per completion.
var (
	postParams      = params{0.7, 4000}
	socialParams    = params{0.7, 5000}
	linkedInParams  = params{0.7, 2000}
	microblogParams = params{0.7, 5000}
	clipsParams     = params{0.7, 6000}
	scriptParams    = params{0.8, 6000}
	signalsParams   = params{0.7, 4000}
)

type params struct {
	temperature float64
	maxTokens   int
}

// DefaultMaxTranscriptChars bounds how much transcript text is sent to the model.
const DefaultMaxTranscriptChars = 12000

// Studio orchestrates prompt composition, completion and parsing.
type Studio struct {
	Completer          llm.Completer
	Prompts            *prompt.Library
	Transcripts        Transcripts
	Miner              Miner
	MaxTranscriptChars int
	Now                func() time.Time
	Logger             logrus.FieldLogger
}

// NewStudio wires a studio. transcripts may be nil when video input is not needed;
// Miner is set separately when signal mining is configured.
func NewStudio(completer llm.Completer, prompts *prompt.Library, transcripts Transcripts, logger logrus.FieldLogger) (*Studio, error) {
	if completer == nil {
		return nil, errors.New("machine: completer is required")
	}
	if prompts == nil {
		return nil, errors.New("machine: prompt library is required")
	}
	return &Studio{
		Completer:          completer,
		Prompts:            prompts,
		Transcripts:        transcripts,
		MaxTranscriptChars: DefaultMaxTranscriptChars,
		Now:                time.Now,
		Logger:             logging.OrDiscard(logger),
	}, nil
}

func (s *Studio) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Studio) logger() logrus.FieldLogger {
	return logging.OrDiscard(s.Logger)
}

func (s *Studio) complete(ctx context.Context, kind prompt.Kind, p params, user string, images []llm.Image) (string, error) {
	system, err := s.Prompts.Compose(kind, prompt.Params{Date: s.now()})
	if err != nil {
		return "", err
	}
	start := time.Now()
	text, err := s.Completer.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Images:      images,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	entry := s.logger().WithFields(logrus.Fields{"kind": kind, "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Warn("completion failed")
		return "", fmt.Errorf("machine: %s completion: %w", kind, err)
	}
	entry.WithField("chars", len(text)).Debug("completion finished")
	return text, nil
}

// GeneratedPost is a parsed and escaped post together with the raw model text.
type GeneratedPost struct {
	Post content.Post
	// MDX is the rendered content file.
	MDX string
	Raw string
	// TranscriptStrategy names the transcript source for video input.
	TranscriptStrategy string
}

// GeneratePost writes a long-form post from in.
func (s *Studio) GeneratePost(ctx context.Context, in Input) (GeneratedPost, error) {
	if err := Validate(in); err != nil {
		return GeneratedPost{}, err
	}

	var (
		user     string
		images   []llm.Image
		strategy string
	)
	switch v := in.(type) {
	case TextInput:
		user = rawInputMessage(v.Text)
	case FileInput:
		data, err := os.ReadFile(v.Path)
		if err != nil {
			return GeneratedPost{}, fmt.Errorf("machine: read input file: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return GeneratedPost{}, fmt.Errorf("%w: %s is empty", ErrEmptyInput, v.Path)
		}
		user = rawInputMessage(string(data))
	case ImageInput:
		img, err := ReadImage(v.Path)
		if err != nil {
			return GeneratedPost{}, err
		}
		images = []llm.Image{img}
		user = imageMessage(v.Caption)
	case ImageBytesInput:
		mime := v.MIME
		if !strings.HasPrefix(mime, "image/") {
			mime = imageMIME("", v.Data)
		}
		images = []llm.Image{{MIME: mime, Data: v.Data}}
		user = imageMessage(v.Caption)
	case VideoInput:
		text, name, err := s.transcript(ctx, v.URL)
		if err != nil {
			return GeneratedPost{}, err
		}
		strategy = name
		user = "Here is the video transcript. Convert it into a blog post:\n\n" + text
	}

	raw, err := s.complete(ctx, prompt.KindBlogPost, postParams, user, images)
	if err != nil {
		return GeneratedPost{}, err
	}
	post, err := content.ParsePost(raw)
	if err != nil {
		return GeneratedPost{}, &ParseError{Kind: "post", Raw: raw, Err: err}
	}
	post.Body = content.EscapeBraces(post.Body)

	s.logger().WithFields(logrus.Fields{"slug": post.Slug, "input": KindOf(in)}).Info("post generated")
	return GeneratedPost{Post: post, MDX: post.Render(), Raw: raw, TranscriptStrategy: strategy}, nil
}

func (s *Studio) transcript(ctx context.Context, ref string) (string, string, error) {
	if s.Transcripts == nil {
		return "", "", fmt.Errorf("machine: transcript acquisition not configured: %w", transcript.ErrManualTranscript)
	}
	tr, err := s.Transcripts.Acquire(ctx, ref)
	if err != nil {
		return "", "", err
	}
	return llm.Truncate(tr.Text, s.MaxTranscriptChars), tr.Strategy, nil
}

func rawInputMessage(text string) string {
	return "Here is my raw input. Extract the core idea and write the blog post:\n\n" + strings.TrimSpace(text)
}

func imageMessage(caption string) string {
	const instruction = "Read everything in this. Extract the core idea and write the blog post."
	if caption = strings.TrimSpace(caption); caption != "" {
		return "My additional context:\n\n" + caption + "\n\n" + instruction
	}
	return instruction
}

func socialMessage(title, body, ask string) string {
	return fmt.Sprintf("Blog title: %q\n\nBlog content:\n\n%s\n\n%s", title, strings.TrimSpace(body), ask)
}

// GenerateSocial derives a full week of LinkedIn and X posts with a single completion.
func (s *Studio) GenerateSocial(ctx context.Context, title, body string) (SocialWeek, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return SocialWeek{}, fmt.Errorf("%w: title and body are required", ErrEmptyInput)
	}
	raw, err := s.complete(ctx, prompt.KindSocialWeek, socialParams,
		socialMessage(title, body, "Generate the full week of social content."), nil)
	if err != nil {
		return SocialWeek{}, err
	}
	return SocialWeek{Sections: ParseSocial(raw), Raw: strings.TrimSpace(raw)}, nil
}

// Atomize issues the LinkedIn and X prompts concurrently and merges the results,
// LinkedIn sections first.
func (s *Studio) Atomize(ctx context.Context, title, body string) (SocialWeek, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return SocialWeek{}, fmt.Errorf("%w: title and body are required", ErrEmptyInput)
	}

	var linkedIn, microblog string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		linkedIn, err = s.complete(gctx, prompt.KindLinkedIn, linkedInParams, socialMessage(title, body,
			"Generate 3 LinkedIn posts (Monday, Wednesday, Friday) atomized from this blog post. "+
				"Format clearly with ### Monday, ### Wednesday, ### Friday headers. Each post should be copy/paste ready."), nil)
		return err
	})
	g.Go(func() error {
		var err error
		microblog, err = s.complete(gctx, prompt.KindMicroblog, microblogParams, socialMessage(title, body,
			"Generate all 7 X/Twitter posts for the week (Saturday through Friday) atomized from this blog post. "+
				"Format clearly with ### Day headers. The Tuesday thread should be numbered Tweet 1/ through Tweet 10/. "+
				"All content should be copy/paste ready."), nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return SocialWeek{}, err
	}

	sections := append(ParseSocialAs(linkedIn, PlatformLinkedIn), ParseSocialAs(microblog, PlatformX)...)
	week := SocialWeek{Sections: sections}
	week.Raw = CombinedText(week)
	return week, nil
}

// Result is the outcome of the combined generate-then-atomize flow.
type Result struct {
	Post   GeneratedPost
	Social SocialWeek
	// SocialErr is set when the post succeeded but the social week did not.
	SocialErr error
}

// Run generates a post and then its social week. A social failure does not fail the run.
func (s *Studio) Run(ctx context.Context, in Input) (Result, error) {
	post, err := s.GeneratePost(ctx, in)
	if err != nil {
		return Result{}, err
	}
	res := Result{Post: post}
	res.Social, res.SocialErr = s.Atomize(ctx, post.Post.Title, post.Post.Body)
	if res.SocialErr != nil {
		s.logger().WithError(res.SocialErr).WithField("slug", post.Post.Slug).Warn("social generation failed, returning post only")
	}
	return res, nil
}
