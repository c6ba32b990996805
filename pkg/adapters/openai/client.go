// Package openai implements the remote ports on top of the OpenAI chat completions API.
// Any OpenAI-compatible endpoint works through Config.BaseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/ports"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

var (
	ErrMissingAPIKey     = errors.New("openai: API key is required")
	ErrNoChoicesReturned = errors.New("openai: no choices returned")
)

// chatService is the slice of the SDK the adapter needs; tests replace it.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Config holds the connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client implements ports.CompletionService, ports.Translator and ports.ModelNamer.
type Client struct {
	chat   chatService
	model  string
	logger *slog.Logger
}

var (
	_ ports.CompletionService = (*Client)(nil)
	_ ports.Translator        = (*Client)(nil)
	_ ports.ModelNamer        = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Callers bound every call with their own deadline and never retry.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	return newClient(&cli.Chat.Completions, cfg.Model, opts...), nil
}

func newClient(chat chatService, model string, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{chat: chat, model: model, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the chat model in use.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	}

	start := time.Now()
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	c.logger.DebugContext(ctx, "chat completion",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

const completionSystemPrompt = "You are the language model behind a real-estate assistant. " +
	`Answer with a JSON object {"content": string, "confidence": number between 0 and 1}. ` +
	"When asked only for a confidence, a bare number is also accepted."

// Complete sends the prompt and extracts a confidence from the answer when it carries one.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (ports.CompletionResponse, error) {
	user := req.Prompt
	if len(req.Context) > 0 {
		if extra, err := json.Marshal(req.Context); err == nil {
			user += "\n\nContext: " + string(extra)
		}
	}

	content, err := c.complete(ctx, completionSystemPrompt, user)
	if err != nil {
		return ports.CompletionResponse{}, err
	}
	return parseCompletion(content), nil
}

var numberPattern = regexp.MustCompile(`\d*\.?\d+`)

// parseCompletion reads {"content", "confidence"} JSON, or a bare number.
func parseCompletion(content string) ports.CompletionResponse {
	var structured struct {
		Content    string   `json:"content"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &structured); err == nil {
		out := ports.CompletionResponse{Content: structured.Content, Confidence: structured.Confidence}
		if out.Content == "" {
			out.Content = content
		}
		return out
	}

	out := ports.CompletionResponse{Content: content}
	if m := numberPattern.FindString(content); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			out.Confidence = &v
		}
	}
	return out
}

// Translate renders req.Text in req.TargetLanguage.
func (c *Client) Translate(ctx context.Context, req ports.TranslationRequest) (ports.TranslationResponse, error) {
	system := fmt.Sprintf("Translate the user's message into %s. Keep line breaks and bullet points. Reply with the translation only.",
		languageName(req.TargetLanguage))

	text, err := c.complete(ctx, system, req.Text)
	if err != nil {
		return ports.TranslationResponse{}, err
	}
	return ports.TranslationResponse{TranslatedText: text}, nil
}

// languageName turns a tag such as "pt-BR" into "Brazilian Portuguese (pt-BR)".
func languageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	name := display.English.Tags().Name(t)
	if name == "" {
		return tag
	}
	return fmt.Sprintf("%s (%s)", name, t)
}
