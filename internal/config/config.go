package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

// Config captures runtime configuration shared by the API and the command-line tools.
type Config struct {
	ListenAddr string
	LogLevel   string
	LogFormat  string

	LLMProvider        string
	AzureEndpoint      string
	AzureAPIKey        string
	AzureDeployment    string
	AzureAPIVersion    string
	GeminiAPIKey       string
	GeminiModel        string
	LLMMaxRetries      int
	LLMTimeout         time.Duration
	TranscriptMaxChars int

	DashboardPassword string

	ContentDir string
	SiteURL    string
	VoiceFile  string

	GitHubToken      string
	GitHubOwner      string
	GitHubRepo       string
	GitHubBranch     string
	VercelDeployHook string

	MediumToken     string
	DevToAPIKey     string
	TypefullyAPIKey string

	SupadataAPIKey string
	YouTubeAPIKey  string
	YtDlpPath      string
}

// FromEnv creates a configuration instance sourced from environment variables.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:         getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", ""),
		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderAzure)),
		AzureEndpoint:      getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureAPIKey:        getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureDeployment:    getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
		AzureAPIVersion:    getEnv("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		LLMTimeout:         120 * time.Second,
		TranscriptMaxChars: 12000,
		DashboardPassword:  getEnv("DOMINATE_PASSWORD", ""),
		ContentDir:         getEnv("CONTENT_DIR", "content"),
		SiteURL:            strings.TrimRight(getEnv("SITE_URL", "https://www.saadbelcaid.me/blog"), "/"),
		VoiceFile:          getEnv("VOICE_FILE", ""),
		GitHubToken:        getEnv("GITHUB_TOKEN", ""),
		GitHubOwner:        getEnv("GITHUB_OWNER", ""),
		GitHubRepo:         getEnv("GITHUB_REPO", ""),
		GitHubBranch:       getEnv("GITHUB_BRANCH", "main"),
		VercelDeployHook:   getEnv("VERCEL_DEPLOY_HOOK", ""),
		MediumToken:        getEnv("MEDIUM_TOKEN", ""),
		DevToAPIKey:        getEnv("DEVTO_API_KEY", ""),
		TypefullyAPIKey:    getEnv("TYPEFULLY_API_KEY", ""),
		SupadataAPIKey:     getEnv("SUPADATA_API_KEY", ""),
		YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		YtDlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
	}

	switch cfg.LLMProvider {
	case ProviderAzure, ProviderGemini:
	default:
		return Config{}, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}

	if retries := os.Getenv("LLM_MAX_RETRIES"); retries != "" {
		if _, err := fmt.Sscanf(retries, "%d", &cfg.LLMMaxRetries); err != nil {
			return Config{}, fmt.Errorf("parse LLM_MAX_RETRIES: %w", err)
		}
		if cfg.LLMMaxRetries < 0 {
			return Config{}, fmt.Errorf("LLM_MAX_RETRIES must not be negative")
		}
	}

	if timeout := os.Getenv("LLM_TIMEOUT_S"); timeout != "" {
		var seconds int
		if _, err := fmt.Sscanf(timeout, "%d", &seconds); err != nil {
			return Config{}, fmt.Errorf("parse LLM_TIMEOUT_S: %w", err)
		}
		cfg.LLMTimeout = time.Duration(seconds) * time.Second
	}

	if maxChars := os.Getenv("TRANSCRIPT_MAX_CHARS"); maxChars != "" {
		if _, err := fmt.Sscanf(maxChars, "%d", &cfg.TranscriptMaxChars); err != nil {
			return Config{}, fmt.Errorf("parse TRANSCRIPT_MAX_CHARS: %w", err)
		}
	}

	return cfg, nil
}

// CompletionConfigured reports whether the selected completion provider has credentials.
func (c Config) CompletionConfigured() bool {
	switch c.LLMProvider {
	case ProviderGemini:
		return c.GeminiAPIKey != ""
	default:
		return c.AzureEndpoint != "" && c.AzureAPIKey != "" && c.AzureDeployment != ""
	}
}

// MissingCompletionVars lists the unset variables required by the selected provider.
func (c Config) MissingCompletionVars() []string {
	var missing []string
	if c.LLMProvider == ProviderGemini {
		if c.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
		return missing
	}
	if c.AzureEndpoint == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	if c.AzureAPIKey == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	if c.AzureDeployment == "" {
		missing = append(missing, "AZURE_OPENAI_DEPLOYMENT")
	}
	return missing
}

// GitHubConfigured reports whether commits to the site repository are possible.
func (c Config) GitHubConfigured() bool {
	return c.GitHubToken != "" && c.GitHubOwner != "" && c.GitHubRepo != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
