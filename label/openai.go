// Package label assigns sentiment labels to cleaned post text via an
// OpenAI-compatible chat completion endpoint.
package label

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const systemPrompt = "You are a sentiment analysis expert for Indonesian social media posts " +
	"about public policy programs. Classify each post as positive, negative, or neutral. " +
	"Respond with exactly one line: <label>|<confidence between 0 and 1>."

// Config for the sentiment client.
type Config struct {
	// APIKey for the endpoint.
	APIKey string
	// Model name at the endpoint.
	Model string
	// BaseURL overrides the default endpoint; empty keeps the library
	// default, which lets any OpenAI-compatible server serve the model.
	BaseURL string
	Logger  *slog.Logger
}

// Client implements process.Labeler over chat completions.
type Client struct {
	api   *openai.Client
	model string
	log   *slog.Logger
}

// New builds a sentiment client.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	api := openai.NewClient(opts...)
	return &Client{
		api:   &api,
		model: cfg.Model,
		log:   cfg.Logger,
	}
}

// Label classifies one post.
func (c *Client) Label(ctx context.Context, text string) (string, float64, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(text),
					},
				},
			},
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(16),
	})
	if err != nil {
		return "", 0, fmt.Errorf("label: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("label: empty response")
	}

	label, score, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		c.log.Warn("label: unparseable verdict", "raw", resp.Choices[0].Message.Content)
		return "", 0, err
	}
	return label, score, nil
}

// parseVerdict parses "<label>|<confidence>" with tolerance for stray
// formatting around either part.
func parseVerdict(raw string) (string, float64, error) {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	label, scorePart, _ := strings.Cut(line, "|")
	label = strings.ToLower(strings.Trim(label, " .*`\""))
	switch label {
	case "positive", "negative", "neutral":
	default:
		return "", 0, fmt.Errorf("label: unknown sentiment %q", label)
	}

	score := 0.5
	if scorePart != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(scorePart), 64); err == nil && f >= 0 && f <= 1 {
			score = f
		}
	}
	return label, score, nil
}
