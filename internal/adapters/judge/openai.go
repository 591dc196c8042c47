package judge

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the OpenAI-compatible backend.
const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultTemperature = 0.2
	defaultMaxTokens   = 1024
)

// OpenAIJudge evaluates comparisons through an OpenAI-compatible chat
// completion endpoint. Pointing the base URL at a local server that speaks
// the same protocol works unchanged.
type OpenAIJudge struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// openAIConfig collects options before the client is built.
type openAIConfig struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float32
	maxTokens   int
}

// OpenAIOption configures the OpenAI judge.
type OpenAIOption func(*openAIConfig)

// WithOpenAIKey sets the API key.
func WithOpenAIKey(key string) OpenAIOption {
	return func(c *openAIConfig) {
		c.apiKey = key
	}
}

// WithOpenAIBaseURL points the client at a non-default endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithOpenAIModel sets the judge model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithOpenAITemperature sets the sampling temperature. Judges want low
// temperatures; the default is 0.2.
func WithOpenAITemperature(t float32) OpenAIOption {
	return func(c *openAIConfig) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithOpenAIMaxTokens caps the reply length.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(c *openAIConfig) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewOpenAIJudge creates a judge backed by an OpenAI-compatible API.
func NewOpenAIJudge(opts ...OpenAIOption) *OpenAIJudge {
	cfg := openAIConfig{
		model:       defaultOpenAIModel,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clientCfg := openai.DefaultConfig(cfg.apiKey)
	if cfg.baseURL != "" {
		clientCfg.BaseURL = cfg.baseURL
	}

	return &OpenAIJudge{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}
}

// Compare implements Judge.
func (j *OpenAIJudge) Compare(ctx context.Context, c Comparison) (Decision, error) {
	req := openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: j.temperature,
		MaxTokens:   j.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(c)},
		},
	}

	resp, err := j.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}

		return Decision{}, fmt.Errorf("%w: chat completion: %v", ErrTransient, err)
	}
	if len(resp.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: no choices", ErrEmptyReply)
	}

	return ParseDecision(resp.Choices[0].Message.Content)
}
