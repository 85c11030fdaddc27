package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"normativa-rag/internal/config"
)

// chatgptPrices is USD per 1K tokens.
var chatgptPrices = map[string]struct{ input, output float64 }{
	"gpt-4o-mini": {0.00015, 0.0006},
	"gpt-4o":      {0.0025, 0.01},
}

type ChatGPT struct {
	model   string
	baseURL string
	apiKey  string
}

func NewChatGPT(cfg config.ProviderConfig) *ChatGPT {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	return &ChatGPT{model: model, baseURL: cfg.BaseURL, apiKey: os.Getenv(keyEnv)}
}

func (c *ChatGPT) Name() string { return "chatgpt" }

func (c *ChatGPT) Enabled() bool { return c.apiKey != "" }

func (c *ChatGPT) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	llmOpts := []openai.Option{
		openai.WithToken(c.apiKey),
		openai.WithModel(c.model),
	}
	if c.baseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(c.baseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return "", fmt.Errorf("initializing chatgpt client: %w", err)
	}

	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		role := schema.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = schema.ChatMessageTypeSystem
		}
		content[i] = llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextContent{Text: m.Content}},
		}
	}

	res, err := llm.GenerateContent(ctx, content,
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chatgpt completion: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("chatgpt completion returned no choices")
	}
	return res.Choices[0].Content, nil
}

func (c *ChatGPT) EstimateCost(inputTokens, outputTokens int) float64 {
	prices, ok := chatgptPrices[c.model]
	if !ok {
		return float64(inputTokens+outputTokens) / 1_000_000 * 0.10
	}
	return float64(inputTokens)/1000*prices.input + float64(outputTokens)/1000*prices.output
}
