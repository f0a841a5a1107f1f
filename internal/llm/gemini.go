package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"contentmachine/internal/upstream"
)

// ContentGenerator is the slice of the genai Models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements Completer on the Gemini API.
type GeminiClient struct {
	models ContentGenerator
	model  string
}

// NewGeminiClient connects to the Gemini API with apiKey.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: missing Gemini API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini client: %w", err)
	}
	return NewGeminiClientWith(client.Models, model), nil
}

// NewGeminiClientWith builds a client around an existing generator.
func NewGeminiClientWith(models ContentGenerator, model string) *GeminiClient {
	return &GeminiClient{models: models, model: model}
}

// Complete implements Completer.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIME))
	}
	if req.User != "" {
		parts = append(parts, genai.NewPartFromText(req.User))
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return "", fmt.Errorf("llm: gemini generate: %w", geminiError(err))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// geminiError carries the API status code of err so Retryable can classify it.
func geminiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return err
		}
		apiErr = *ptr
	}
	body := apiErr.Message
	if body == "" {
		body = apiErr.Status
	}
	return &upstream.Error{Service: "gemini", Status: apiErr.Code, Body: upstream.Truncate(body, upstream.MaxBodyChars)}
}
