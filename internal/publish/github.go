package publish

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"contentmachine/internal/content"
	"contentmachine/internal/logging"
	"contentmachine/internal/upstream"
)

const githubAPI = "https://api.github.com"

// GitHubPublisher commits the content file to the site repository through the contents API.
type GitHubPublisher struct {
	token   string
	owner   string
	repo    string
	branch  string
	dir     string
	siteURL string
	baseURL string
	client  *http.Client
	hook    *DeployHook
	logger  logrus.FieldLogger
}

// GitHubOption customises a GitHubPublisher.
type GitHubOption func(*GitHubPublisher)

// WithGitHubBaseURL points the publisher at another API host.
func WithGitHubBaseURL(u string) GitHubOption {
	return func(p *GitHubPublisher) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithGitHubHTTPClient replaces the HTTP client.
func WithGitHubHTTPClient(hc *http.Client) GitHubOption {
	return func(p *GitHubPublisher) {
		if hc != nil {
			p.client = hc
		}
	}
}

// WithBranch commits to branch instead of main.
func WithBranch(branch string) GitHubOption {
	return func(p *GitHubPublisher) {
		if branch != "" {
			p.branch = branch
		}
	}
}

// WithContentDir changes the repository directory holding posts.
func WithContentDir(dir string) GitHubOption {
	return func(p *GitHubPublisher) { p.dir = strings.Trim(dir, "/") }
}

// WithDeployHook fires hook after every successful commit.
func WithDeployHook(hook *DeployHook) GitHubOption {
	return func(p *GitHubPublisher) { p.hook = hook }
}

// NewGitHubPublisher configures a publisher for owner/repo.
func NewGitHubPublisher(token, owner, repo, siteURL string, logger logrus.FieldLogger, opts ...GitHubOption) *GitHubPublisher {
	p := &GitHubPublisher{
		token:   token,
		owner:   owner,
		repo:    repo,
		branch:  "main",
		dir:     "content",
		siteURL: siteURL,
		baseURL: githubAPI,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  logging.OrDiscard(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GitHubPublisher) Name() string { return DestinationGitHub }

func (p *GitHubPublisher) contentsURL(slug string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.baseURL,
		url.PathEscape(p.owner), url.PathEscape(p.repo), path.Join(p.dir, slug+".mdx"))
}

func (p *GitHubPublisher) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + p.token,
		"Accept":        "application/vnd.github+json",
	}
}

// Publish creates or updates the post file and returns its site URL.
// The existing blob sha is sent only when the file is already there.
func (p *GitHubPublisher) Publish(ctx context.Context, item Item) (string, error) {
	if p.token == "" || p.owner == "" || p.repo == "" {
		return "", fmt.Errorf("%w: github", ErrNotConfigured)
	}
	if !content.ValidSlug(item.Slug) {
		return "", fmt.Errorf("publish: invalid slug %q", item.Slug)
	}
	if strings.TrimSpace(item.Raw) == "" {
		return "", errors.New("publish: empty content")
	}

	target := p.contentsURL(item.Slug)
	sha, err := p.existingSHA(ctx, target)
	if err != nil {
		return "", err
	}

	commit := map[string]string{
		"message": "New post: " + item.Slug,
		"content": base64.StdEncoding.EncodeToString([]byte(item.Raw)),
		"branch":  p.branch,
	}
	if sha != "" {
		commit["sha"] = sha
	}
	if err := doJSON(ctx, p.client, "github", http.MethodPut, target, p.headers(), commit, nil); err != nil {
		return "", err
	}

	p.logger.WithFields(logrus.Fields{"slug": item.Slug, "update": sha != ""}).Info("post committed")
	if p.hook != nil {
		p.hook.Fire(ctx)
	}
	return content.CanonicalURL(p.siteURL, item.Slug), nil
}

// existingSHA returns "" when the file does not exist yet.
func (p *GitHubPublisher) existingSHA(ctx context.Context, target string) (string, error) {
	u := target
	if p.branch != "" {
		u += "?ref=" + url.QueryEscape(p.branch)
	}
	var file struct {
		SHA string `json:"sha"`
	}
	err := doJSON(ctx, p.client, "github", http.MethodGet, u, p.headers(), nil, &file)
	if err == nil {
		return file.SHA, nil
	}
	if upstream.StatusOf(err) == http.StatusNotFound {
		return "", nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	// Any other lookup failure is treated as a new file; the PUT reports the real problem.
	p.logger.WithError(err).Warn("sha lookup failed")
	return "", nil
}

// DeployHook triggers a site rebuild. Its outcome never affects the caller.
type DeployHook struct {
	URL    string
	Client *http.Client
	Logger logrus.FieldLogger
}

// NewDeployHook returns nil when url is empty.
func NewDeployHook(url string, logger logrus.FieldLogger) *DeployHook {
	if url == "" {
		return nil
	}
	return &DeployHook{URL: url, Client: &http.Client{Timeout: defaultTimeout}, Logger: logging.OrDiscard(logger)}
}

// Fire posts to the hook and logs the result.
func (h *DeployHook) Fire(ctx context.Context) {
	if h == nil || h.URL == "" {
		return
	}
	logger := logging.OrDiscard(h.Logger)
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	if err := doJSON(ctx, client, "deploy-hook", http.MethodPost, h.URL, nil, nil, nil); err != nil {
		logger.WithError(err).Warn("deploy hook failed")
		return
	}
	logger.Info("deploy hook triggered")
}
