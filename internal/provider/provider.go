// Package provider presents one call contract over the interchangeable
// answer-generation backends: chatgpt, deepseek and the zero-cost mock.
package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"

	// DisabledAnswer is the sentinel returned instead of a network call
	// when a backend has no credentials configured. Not an error.
	DisabledAnswer = "Proveedor deshabilitado: no hay credenciales configuradas. Define la API key correspondiente para habilitarlo."
)

type Message struct {
	Role    string
	Content string
}

// Options are the request-scoped generation settings.
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func OptionsFromConfig(cfg config.GenerationConfig) Options {
	return Options{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// Provider is the closed capability set every backend implements.
// Adding a backend means adding a variant here, not changing callers.
type Provider interface {
	Name() string
	Enabled() bool
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	EstimateCost(inputTokens, outputTokens int) float64
}

// UnavailableError marks a transient upstream failure (429/5xx). Not
// retried here; the retry policy belongs to the caller.
type UnavailableError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("provider %s unavailable (HTTP %d)", e.Provider, e.StatusCode)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	return msg
}

// TimeoutError marks a call that exceeded its configured deadline.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s timed out after %s", e.Provider, e.Timeout)
}

// AuthError marks invalid credentials. Permanent; never retried.
type AuthError struct {
	Provider string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %s rejected credentials; check the configured API key", e.Provider)
}

// New builds a backend by name.
func New(name string, cfg *config.Config) (Provider, error) {
	pc := cfg.Providers[name]
	switch name {
	case "chatgpt":
		return NewChatGPT(pc), nil
	case "deepseek":
		return NewDeepSeek(pc), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (available: chatgpt, deepseek, mock)", name)
	}
}

var citationRe = regexp.MustCompile(models.CitationPattern)

// ResolveCitations extracts citation markers from an answer and resolves
// them against the retrieved fragments. Markers that reference a fragment
// number outside the retrieved set are present but invalid: they count
// toward compliance, not toward the citation list.
func ResolveCitations(answer string, fragments []models.RetrievedFragment) (ids []string, compliant bool) {
	matches := citationRe.FindAllStringSubmatch(answer, -1)
	compliant = len(matches) > 0
	seen := make(map[string]bool)
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(fragments) {
			continue
		}
		id := fragments[n-1].Fragment.ID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, compliant
}

// approxTokens estimates token counts at four characters per token.
func approxTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// Answer is the gateway: it builds the prompt from the retrieved
// fragments, calls the backend under the configured deadline and packages
// the response with citations, latency and cost estimates. A disabled
// backend yields a well-formed sentinel response, never an error.
func Answer(ctx context.Context, p Provider, query string, fragments []models.RetrievedFragment, opts Options) (*models.ProviderResponse, error) {
	if !p.Enabled() {
		return &models.ProviderResponse{
			Provider: p.Name(),
			Answer:   DisabledAnswer,
			Disabled: true,
		}, nil
	}

	messages := BuildMessages(query, fragments)
	var promptLen int
	for _, m := range messages {
		promptLen += len(m.Content)
	}

	callCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := p.Chat(callCtx, messages, opts)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Provider: p.Name(), Timeout: opts.Timeout}
		}
		return nil, err
	}

	citations, compliant := ResolveCitations(text, fragments)
	tokensIn := approxTokens(query) + promptLen/4
	tokensOut := approxTokens(text)

	return &models.ProviderResponse{
		Provider:          p.Name(),
		Answer:            text,
		Citations:         citations,
		CitationCompliant: compliant,
		GenerationLatency: elapsed,
		TokensIn:          tokensIn,
		TokensOut:         tokensOut,
		CostUSD:           p.EstimateCost(tokensIn, tokensOut),
	}, nil
}
