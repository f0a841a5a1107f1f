package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contentmachine/internal/upstream"
)

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Image is an inline picture sent alongside the user message.
type Image struct {
	MIME string
	Data []byte
}

// DataURI encodes the image as a data: URI.
func (i Image) DataURI() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIME, base64.StdEncoding.EncodeToString(i.Data))
}

// Request is a provider-neutral completion request.
type Request struct {
	System      string
	User        string
	Images      []Image
	Temperature float64
	MaxTokens   int
}

// Completer turns one instruction plus user input into a single text response.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ContentPart is one element of a multi-part chat message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference for vision-capable deployments.
type ImageURL struct {
	URL string `json:"url"`
}

// Message represents a chat message. When Parts is set it is sent instead of Content.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

// MarshalJSON emits content as a string or as an array of parts.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.Parts) > 0 {
		return json.Marshal(struct {
			Role    string        `json:"role"`
			Content []ContentPart `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Content})
}

// ChatCompletionRequest represents the payload sent to the chat completions API.
type ChatCompletionRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Choice captures a single completion alternative.
type Choice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
	Index        int    `json:"index"`
}

// ChatCompletionResponse is the subset of the API response we care about.
type ChatCompletionResponse struct {
	Choices []Choice `json:"choices"`
}

// ChatClient captures the ability to perform chat completions.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Client is a thin wrapper around an Azure OpenAI chat deployment.
type Client struct {
	endpoint   string
	deployment string
	apiVersion string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a client for the given resource endpoint and deployment.
func NewClient(endpoint, deployment, apiKey string, opts ...func(*Client)) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/") + "/",
		deployment: deployment,
		apiVersion: "2024-02-01",
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient overrides the internal HTTP client.
func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(version string) func(*Client) {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithTimeout sets the per-call timeout of the internal HTTP client.
func WithTimeout(d time.Duration) func(*Client) {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func (c *Client) completionsURL() string {
	q := url.Values{}
	q.Set("api-version", c.apiVersion)
	return fmt.Sprintf("%sopenai/deployments/%s/chat/completions?%s", c.endpoint, url.PathEscape(c.deployment), q.Encode())
}

// ChatCompletion executes a chat completion request against the deployment.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("llm: missing API key")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	if !upstream.IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("llm: %w", upstream.FromResponse("azure-openai", resp))
	}

	var payload ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}

	return &payload, nil
}

// Complete implements Completer on top of ChatCompletion.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	return completeChat(ctx, c, req)
}

// ChatCompleter adapts any ChatClient to the Completer interface.
type ChatCompleter struct {
	Chat ChatClient
}

// Complete implements Completer.
func (c ChatCompleter) Complete(ctx context.Context, req Request) (string, error) {
	return completeChat(ctx, c.Chat, req)
}

func completeChat(ctx context.Context, chat ChatClient, req Request) (string, error) {
	resp, err := chat.ChatCompletion(ctx, ChatCompletionRequest{
		Messages:    BuildMessages(req),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// BuildMessages converts a Request into system + user chat messages.
// Images come first, followed by the user text as a separate part.
func BuildMessages(req Request) []Message {
	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}

	if len(req.Images) == 0 {
		messages = append(messages, Message{Role: "user", Content: req.User})
		return messages
	}

	parts := make([]ContentPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: img.DataURI()}})
	}
	if req.User != "" {
		parts = append(parts, ContentPart{Type: "text", Text: req.User})
	}
	return append(messages, Message{Role: "user", Parts: parts})
}
