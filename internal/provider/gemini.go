package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini image backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiProvider implements ImageProvider on Google's genai SDK. Unlike
// the OpenAI backend, Gemini returns image bytes inline in the response,
// so no follow-up download is needed.
type GeminiProvider struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

var _ ImageProvider = (*GeminiProvider)(nil)

func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, log *slog.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-image"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  cfg.Model,
		log:    log,
	}, nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (*Image, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: empty response")
	}

	// The candidate may interleave text commentary with the image part;
	// only the inline image data matters here.
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mimeType := part.InlineData.MIMEType
			if !strings.HasPrefix(mimeType, "image/") {
				mimeType = "image/png"
			}
			return &Image{Data: part.InlineData.Data, MimeType: mimeType}, nil
		}
	}

	return nil, fmt.Errorf("gemini: no image data in response")
}

// MaxPromptLength is 0: Gemini imposes no hard prompt cap at the lengths
// this application produces.
func (g *GeminiProvider) MaxPromptLength() int {
	return 0
}
