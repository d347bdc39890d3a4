package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DALLEMaxPromptLength is the hard character cap DALL·E enforces on
// prompts. Checked locally before the billable call so an oversized
// prompt never costs money.
const DALLEMaxPromptLength = 4000

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIConfig configures the OpenAI client. APIKey empty means the
// provider is unconfigured and requests against it are rejected upstream.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ChatModel  string // vision-capable chat model for image descriptions
	ImageModel string // DALL·E-class image model
	Timeout    time.Duration
}

// OpenAIClient implements both VisionDescriber (chat completions with an
// image_url content part) and ImageProvider (images/generations, URL
// response format followed by a download).
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	log        *slog.Logger
}

var (
	_ VisionDescriber = (*OpenAIClient)(nil)
	_ ImageProvider   = (*OpenAIClient)(nil)
)

func NewOpenAIClient(cfg OpenAIConfig, log *slog.Logger) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Configured reports whether API credentials are present.
func (c *OpenAIClient) Configured() bool {
	return c.cfg.APIKey != ""
}

/* ---------------- chat completions (vision) ---------------- */

type chatContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Describe sends the instruction plus the image to the vision chat model
// and returns its free-text answer. An empty answer is returned as-is;
// callers decide whether that degrades or fails the operation.
func (c *OpenAIClient) Describe(ctx context.Context, imageURL, instruction string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "text", Text: instruction},
				{Type: "image_url", ImageURL: &chatImagePart{URL: imageURL}},
			},
		}},
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "/v1/chat/completions", reqBody, &resp); err != nil {
		return "", fmt.Errorf("openai: vision description: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

/* ---------------- images/generations (DALL·E) ---------------- */

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// Generate creates an image via DALL·E. The API returns a fetchable URL,
// so a follow-up download normalizes the result to bytes.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (*Image, error) {
	reqBody := imageRequest{
		Model:          c.cfg.ImageModel,
		Prompt:         prompt,
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "url",
	}

	var resp imageResponse
	if err := c.postJSON(ctx, "/v1/images/generations", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("openai: image generation: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, fmt.Errorf("openai: no image data in response")
	}

	return c.download(ctx, resp.Data[0].URL)
}

func (c *OpenAIClient) MaxPromptLength() int {
	return DALLEMaxPromptLength
}

func (c *OpenAIClient) download(ctx context.Context, url string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("openai: building download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai: image download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: reading image bytes: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openai: image download returned no data")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}

	return &Image{Data: data, MimeType: mimeType}, nil
}

func (c *OpenAIClient) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("openai request failed",
				slog.String("endpoint", endpoint),
				slog.Int("status", resp.StatusCode),
				slog.String("body", truncateBody(rawBody)),
			)
		}
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, truncateBody(rawBody))
	}

	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
