package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contentmachine/internal/content"
	"contentmachine/internal/logging"
	"contentmachine/internal/machine"
	"contentmachine/internal/publish"
)

// Producer turns one input into a stored post, its social calendar and optional
// publications.
type Producer struct {
	Studio     *machine.Studio
	Store      *content.Store
	Dispatcher *publish.Dispatcher
	SiteURL    string
	Out        io.Writer
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

// NewProducer builds a producer writing progress lines to out.
func NewProducer(studio *machine.Studio, store *content.Store, dispatcher *publish.Dispatcher, siteURL string, out io.Writer, logger logrus.FieldLogger) *Producer {
	return &Producer{
		Studio:     studio,
		Store:      store,
		Dispatcher: dispatcher,
		SiteURL:    siteURL,
		Out:        out,
		Logger:     logging.OrDiscard(logger),
		Now:        time.Now,
	}
}

// Options control the steps after the post is written.
type Options struct {
	SkipSocial   bool
	Destinations []string
}

// Outcome summarises one production run.
type Outcome struct {
	Slug               string
	Title              string
	PostPath           string
	SocialPath         string
	TranscriptStrategy string
	SocialErr          error
	Records            []publish.Record
}

// Produce generates a post from in and writes it to the store. A social failure is
// reported in the outcome only; failed publications make Produce return an error.
func (p *Producer) Produce(ctx context.Context, in machine.Input, opts Options) (Outcome, error) {
	gen, err := p.Studio.GeneratePost(ctx, in)
	if err != nil {
		return Outcome{}, err
	}
	post := gen.Post
	out := Outcome{Slug: post.Slug, Title: post.Title, TranscriptStrategy: gen.TranscriptStrategy}

	out.PostPath, err = p.Store.WriteRaw(post.Slug, gen.MDX)
	if err != nil {
		return out, err
	}
	fmt.Fprintf(p.Out, "post:   %s\n", out.PostPath)

	if !opts.SkipSocial {
		out.SocialPath, out.SocialErr = p.WriteSocial(ctx, post)
		if out.SocialErr != nil {
			p.Logger.WithError(out.SocialErr).WithField("slug", post.Slug).Warn("social calendar skipped")
			fmt.Fprintf(p.Out, "social: failed: %v\n", out.SocialErr)
		}
	}

	if len(opts.Destinations) > 0 {
		out.Records = p.Dispatcher.PublishAll(ctx, publish.ItemFromPost(post, p.SiteURL), opts.Destinations...)
		if failed := PrintRecords(p.Out, out.Records); failed > 0 {
			return out, fmt.Errorf("%d of %d publications failed", failed, len(out.Records))
		}
	}
	return out, nil
}

// WriteSocial atomizes post into a week of social content and stores the calendar.
func (p *Producer) WriteSocial(ctx context.Context, post content.Post) (string, error) {
	week, err := p.Studio.Atomize(ctx, post.Title, post.Body)
	if err != nil {
		return "", err
	}
	path, err := p.Store.WriteSocial(post.Slug, machine.RenderSchedule(post.Title, post.Slug, week, p.Now()))
	if err != nil {
		return "", err
	}
	fmt.Fprintf(p.Out, "social: %s (%d posts)\n", path, len(week.Sections))
	return path, nil
}

// ReadBatch returns the trimmed, non-blank lines of r that are not # comments.
func ReadBatch(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	return urls, nil
}
