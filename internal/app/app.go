// Package app builds the content machine's components from configuration.
// Every command and the API server start from New.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"contentmachine/internal/config"
	"contentmachine/internal/content"
	"contentmachine/internal/llm"
	"contentmachine/internal/logging"
	"contentmachine/internal/machine"
	"contentmachine/internal/metrics"
	"contentmachine/internal/mining"
	"contentmachine/internal/prompt"
	"contentmachine/internal/publish"
	"contentmachine/internal/transcript"
)

// App holds the wired components. Studio is nil when no completion provider is configured.
type App struct {
	Config      config.Config
	Logger      logrus.FieldLogger
	Metrics     *metrics.Metrics
	Prompts     *prompt.Library
	Store       *content.Store
	Transcripts *transcript.Acquirer
	Miner       *mining.Registry
	Studio      *machine.Studio
	Dispatcher  *publish.Dispatcher
	Typefully   *publish.TypefullyPublisher
}

// New wires every component that cfg has credentials for.
func New(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*App, error) {
	logger = logging.OrDiscard(logger)
	m := metrics.New()

	prompts, err := prompt.Load(cfg.VoiceFile)
	if err != nil {
		return nil, fmt.Errorf("load voice: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
		Prompts: prompts,
		Store:   content.NewStore(cfg.ContentDir),
	}
	a.Transcripts = transcript.NewAcquirer(logger.WithField("component", "transcript"), m, fetchers(cfg, logger)...)

	miner, err := mining.NewRegistry(logger.WithField("component", "mining"), sources(cfg, logger)...)
	if err != nil {
		return nil, err
	}
	a.Miner = miner

	if cfg.CompletionConfigured() {
		completer, err := newCompleter(ctx, cfg, m, logger)
		if err != nil {
			return nil, err
		}
		studio, err := machine.NewStudio(completer, prompts, a.Transcripts, logger.WithField("component", "machine"))
		if err != nil {
			return nil, err
		}
		studio.Miner = miner
		if cfg.TranscriptMaxChars > 0 {
			studio.MaxTranscriptChars = cfg.TranscriptMaxChars
		}
		a.Studio = studio
	} else {
		logger.WithField("missing", strings.Join(cfg.MissingCompletionVars(), ",")).Warn("completion provider not configured")
	}

	a.Typefully = publish.NewTypefullyPublisher(cfg.TypefullyAPIKey, "", nil)
	a.Dispatcher = publish.NewDispatcher(logger.WithField("component", "publish"), m, publishers(cfg, a.Store, a.Typefully, logger)...)

	logger.WithFields(logrus.Fields{
		"provider":     cfg.LLMProvider,
		"strategies":   len(a.Transcripts.Fetchers),
		"destinations": strings.Join(a.Dispatcher.Names(), ","),
	}).Info("content machine wired")
	return a, nil
}

// RequireStudio returns the studio or an error naming the missing configuration.
func (a *App) RequireStudio() (*machine.Studio, error) {
	if a.Studio == nil {
		return nil, fmt.Errorf("completion provider %q not configured: set %s",
			a.Config.LLMProvider, strings.Join(a.Config.MissingCompletionVars(), ", "))
	}
	return a.Studio, nil
}

func newCompleter(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger logrus.FieldLogger) (llm.Completer, error) {
	var base llm.Completer
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		base = gemini
	default:
		base = llm.NewClient(cfg.AzureEndpoint, cfg.AzureDeployment, cfg.AzureAPIKey,
			llm.WithAPIVersion(cfg.AzureAPIVersion), llm.WithTimeout(cfg.LLMTimeout))
	}
	instrumented := llm.Instrumented(base, cfg.LLMProvider, m)
	return llm.Retrying(instrumented, llm.RetryConfig{MaxRetries: cfg.LLMMaxRetries, Logger: logger}), nil
}

// fetchers returns the transcript strategies in preference order. Strategies without
// credentials or a binary are left out.
func fetchers(cfg config.Config, logger logrus.FieldLogger) []transcript.Fetcher {
	var out []transcript.Fetcher
	if cfg.SupadataAPIKey != "" {
		out = append(out, transcript.NewSupadataFetcher(cfg.SupadataAPIKey))
	}
	out = append(out, transcript.NewCaptionsFetcher())
	if ytdlp := transcript.NewYtDlpFetcher(cfg.YtDlpPath); ytdlp.Available() {
		out = append(out, ytdlp)
	} else {
		logger.WithField("binary", cfg.YtDlpPath).Debug("yt-dlp not found, subtitle download disabled")
	}
	return out
}

func sources(cfg config.Config, logger logrus.FieldLogger) []mining.Source {
	out := []mining.Source{mining.NewRedditSource(logger)}
	if cfg.YouTubeAPIKey != "" {
		out = append(out, mining.NewYouTubeSource(cfg.YouTubeAPIKey, logger))
	}
	return out
}

func publishers(cfg config.Config, store *content.Store, typefully *publish.TypefullyPublisher, logger logrus.FieldLogger) []publish.Publisher {
	out := []publish.Publisher{publish.NewLocalPublisher(store, cfg.SiteURL)}
	if cfg.GitHubConfigured() {
		out = append(out, publish.NewGitHubPublisher(cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, cfg.SiteURL, logger,
			publish.WithBranch(cfg.GitHubBranch),
			publish.WithDeployHook(publish.NewDeployHook(cfg.VercelDeployHook, logger))))
	}
	if cfg.MediumToken != "" {
		out = append(out, publish.NewMediumPublisher(cfg.MediumToken, "", nil))
	}
	if cfg.DevToAPIKey != "" {
		out = append(out, publish.NewDevToPublisher(cfg.DevToAPIKey, "", nil))
	}
	if typefully.Configured() {
		out = append(out, typefully)
	}
	return out
}
