// Package vision calls an OpenAI-compatible chat-completions endpoint with
// one image and one prompt.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ironsheep/glm-vision-mcp/internal/config"
)

// ErrEmptyResponse is returned when the API answers without any choices.
var ErrEmptyResponse = errors.New("vision API returned no choices")

// Completer is the part of *openai.Client the Client uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AnalyzeRequest is one image question.
type AnalyzeRequest struct {
	// DataURI is the image as "data:<mime>;base64,<payload>".
	DataURI string

	// Prompt is the question asked about the image.
	Prompt string

	// Temperature is the sampling temperature, 0 to 2.
	Temperature float64

	// MaxTokens caps the response length. Zero leaves it to the server.
	MaxTokens int
}

// Client sends image questions to the vision model. It is built once at
// startup and is safe for concurrent use.
type Client struct {
	api     Completer
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient builds a Client from cfg. It fails closed: no client is built
// unless cfg passes ValidateClient. Image and concurrency limits are not its
// concern.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("vision client requires a configuration")
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, fmt.Errorf("invalid vision client configuration: %w", err)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.APIBase, "/")

	return NewClientWithAPI(openai.NewClientWithConfig(clientConfig), cfg.Model, cfg.RequestTimeout, logger), nil
}

// NewClientWithAPI builds a Client around an existing Completer. A zero
// timeout leaves calls bounded only by the caller's context.
func NewClientWithAPI(api Completer, model string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:     api,
		model:   model,
		timeout: timeout,
		logger:  logger.With("component", "vision"),
	}
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Analyze asks the model about one image and returns its text answer.
//
// The request is a single user message with two parts, the image first and
// the prompt second. The call is made exactly once; there is no retry.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: req.DataURI},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Prompt,
					},
				},
			},
		},
		Temperature: wireTemperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	elapsed := time.Since(start)
	if err != nil {
		attrs := []any{"model", c.model, "elapsed", elapsed, "error", err}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "status", apiErr.HTTPStatusCode)
		}
		c.logger.Error("vision API call failed", attrs...)
		return "", fmt.Errorf("vision API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Error("vision API returned no choices", "model", c.model, "id", resp.ID)
		return "", ErrEmptyResponse
	}

	c.logger.Debug("vision API call succeeded",
		"model", c.model,
		"elapsed", elapsed,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature converts t for the request. The request struct omits a
// zero temperature entirely, which servers read as their default, so an
// explicit zero is sent as the smallest positive float32.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
