// Package llm talks to OpenAI-compatible chat completion endpoints (Groq for
// text, Mistral for vision) and cleans up what comes back.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/observability"
)

const (
	GroqBaseURL    = "https://api.groq.com/openai/v1"
	MistralBaseURL = "https://api.mistral.ai/v1"
)

// ClientConfig configures a chat completion client.
type ClientConfig struct {
	Provider    string // used in error messages only
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // per attempt
	Retry       *RetryConfig
}

// Client handles communication with an OpenAI-compatible chat API.
type Client struct {
	provider    string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	retry       *RetryConfig
	httpClient  *http.Client
	logger      *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents the assistant message in a response
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// NewClient creates a chat client. A missing API key is a construction failure.
func NewClient(cfg ClientConfig, logger *observability.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ClientInitError(fmt.Sprintf("%s API key is not set", providerName(cfg.Provider)), nil)
	}
	if cfg.BaseURL == "" {
		return nil, domain.ClientInitError(fmt.Sprintf("%s base URL is not set", providerName(cfg.Provider)), nil)
	}
	if cfg.Model == "" {
		return nil, domain.ClientInitError(fmt.Sprintf("%s model is not set", providerName(cfg.Provider)), nil)
	}
	if logger == nil {
		logger = observability.Nop()
	}
	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}

	return &Client{
		provider:    providerName(cfg.Provider),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       retry,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger.WithComponent("llm").WithOperation(cfg.Model),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a single user prompt and returns the assistant text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msg := Message{
		Role:    "user",
		Content: []ContentPart{{Type: "text", Text: prompt}},
	}
	return c.send(ctx, []Message{msg})
}

// DescribeImage sends an instruction plus one PNG image and returns the assistant text.
func (c *Client) DescribeImage(ctx context.Context, prompt string, pngData []byte) (string, error) {
	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: PNGDataURL(pngData)}},
		},
	}
	out, err := c.send(ctx, []Message{msg})
	if err != nil {
		return "", domain.VisionError("describe image", err)
	}
	return out, nil
}

// PNGDataURL encodes PNG bytes as a base64 data URL.
func PNGDataURL(pngData []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
}

func (c *Client) send(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(Request{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", domain.APIError("failed to marshal request", err)
	}

	start := time.Now()
	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", domain.APIError(fmt.Sprintf("%s returned status %d: %s", c.provider, resp.StatusCode, string(bodyBytes)), nil)
	}

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", domain.ModelOutputError("failed to decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.ModelOutputError(fmt.Sprintf("%s returned no choices", c.provider), nil)
	}

	content := parsed.Choices[0].Message.Content
	c.logger.Debug().
		Dur("elapsed", time.Since(start)).
		Int("response_length", len(content)).
		Msg("completion received")
	return content, nil
}

func providerName(p string) string {
	if p == "" {
		return "LLM"
	}
	return p
}
