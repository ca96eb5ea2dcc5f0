// Package ai wraps the chat-completion call that produces review comments:
// prompt construction, the Anthropic API call, and recovery of the model's
// structured response.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/reviewloop/reviewloop/github"
)

const (
	// DefaultModel is the model used for code reviews.
	DefaultModel = "claude-sonnet-4-20250514"

	// apiTimeout is the maximum time to wait for a model response.
	apiTimeout = 3 * time.Minute

	// maxOutputTokens bounds the size of the model's response.
	maxOutputTokens = 2048

	// temperature favors determinism over creativity for review output.
	temperature = 0.2
)

// FileDiff pairs a filename with its annotated diff text. It is the
// orchestrator's input unit to the model client.
type FileDiff struct {
	Name string
	Diff string
}

// Client performs AI code reviews through the Anthropic messages API.
type Client struct {
	anthropic *anthropic.Client
	model     string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	model      string
	baseURL    string
	httpOption []option.RequestOption
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithBaseURL points the client at an alternative API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// NewClient creates a review model client.
func NewClient(apiKey string, logger *slog.Logger, opts ...Option) *Client {
	o := options{model: DefaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	reqOpts = append(reqOpts, o.httpOption...)

	return &Client{
		anthropic: anthropic.NewClient(reqOpts...),
		model:     o.model,
		logger:    logger,
	}
}

// Review sends every file's annotated diff to the model in a single call and
// returns the well-formed comments it produced. Instructions, when non-empty,
// are appended to the system prompt as repository-specific guidance.
//
// A malformed or empty model response yields zero comments and no error; only
// transport-level failures are returned, and callers are expected to degrade
// those to "no comments" as well.
func (c *Client) Review(ctx context.Context, files []FileDiff, contextNote, instructions string) ([]github.ReviewComment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	prompt := BuildPrompt(files, contextNote)

	timeoutCtx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	message, err := c.anthropic.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(c.model)),
		MaxTokens:   anthropic.F(int64(maxOutputTokens)),
		Temperature: anthropic.F(float64(temperature)),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(SystemPrompt(instructions)),
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("model API error: %w", err)
	}

	c.logger.Info("model API usage",
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens,
	)

	var text string
	for _, block := range message.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text = block.Text
			break
		}
	}
	if text == "" {
		c.logger.Warn("no text content in model response")
		return nil, nil
	}

	comments, err := ParseComments(text)
	if err != nil {
		// A response we cannot recover degrades to zero comments.
		c.logger.Warn("discarding malformed model response", "error", err)
		return nil, nil
	}

	c.logger.Info("parsed model response", "comments", len(comments))
	return comments, nil
}
