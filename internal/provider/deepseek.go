package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"normativa-rag/internal/config"
)

// deepseekPrices is USD per 1K tokens.
var deepseekPrices = map[string]struct{ input, output float64 }{
	"deepseek-chat":     {0.00014, 0.00028},
	"deepseek-reasoner": {0.00055, 0.0022},
}

const defaultDeepSeekURL = "https://api.deepseek.com/v1/chat/completions"

// DeepSeek talks to the OpenAI-compatible DeepSeek endpoint directly so
// 401/429/5xx can be mapped to the error taxonomy.
type DeepSeek struct {
	model    string
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewDeepSeek(cfg config.ProviderConfig) *DeepSeek {
	model := cfg.Model
	if model == "" {
		model = "deepseek-chat"
	}
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultDeepSeekURL
	}
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "DEEPSEEK_API_KEY"
	}
	return &DeepSeek{
		model:    model,
		endpoint: endpoint,
		apiKey:   os.Getenv(keyEnv),
		client:   &http.Client{},
	}
}

func (d *DeepSeek) Name() string { return "deepseek" }

func (d *DeepSeek) Enabled() bool { return d.apiKey != "" }

type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Stream      bool              `json:"stream"`
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type deepseekResponse struct {
	Choices []struct {
		Message deepseekMessage `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (d *DeepSeek) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	payload := deepseekRequest{
		Model:       d.model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}
	payload.Messages = make([]deepseekMessage, len(messages))
	for i, m := range messages {
		payload.Messages[i] = deepseekMessage(m)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal deepseek request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create deepseek request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call deepseek API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", &AuthError{Provider: d.Name()}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &UnavailableError{
			Provider:   d.Name(),
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return "", &UnavailableError{Provider: d.Name(), StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepseek API error (HTTP %d): %s", resp.StatusCode, string(data))
	}

	var parsed deepseekResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode deepseek response: %w", err)
	}
	if parsed.Error.Message != "" {
		return "", fmt.Errorf("deepseek error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (d *DeepSeek) EstimateCost(inputTokens, outputTokens int) float64 {
	prices, ok := deepseekPrices[d.model]
	if !ok {
		return float64(inputTokens+outputTokens) / 1_000_000 * 0.10
	}
	return float64(inputTokens)/1000*prices.input + float64(outputTokens)/1000*prices.output
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
