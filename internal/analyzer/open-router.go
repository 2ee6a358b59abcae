package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

var errNoChoices = errors.New("no choices in response")

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-4o-mini"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	// RetryDelay is the pause before the single retry.
	RetryDelay time.Duration
	Referer    string
	Title      string
}

// OpenAIModel calls any OpenAI-compatible chat completions endpoint,
// OpenRouter by default.
type OpenAIModel struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *utils.Logger
}

func NewOpenAIModel(cfg Config, logger *utils.Logger) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = utils.NopLogger()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &OpenAIModel{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

func (m *OpenAIModel) Name() string {
	return m.cfg.Model
}

// Generate sends prompt as a single user message. A transport error, 429
// or 5xx is retried once unless ctx is done.
func (m *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := m.attempt(ctx, prompt)
	if err == nil || !retryable(ctx, err) {
		return reply, m.wrap(err)
	}

	m.logger.Warn("model call failed, retrying", "model", m.cfg.Model, "error", err)
	select {
	case <-ctx.Done():
		return "", m.wrap(ctx.Err())
	case <-time.After(m.cfg.RetryDelay):
	}

	reply, err = m.attempt(ctx, prompt)
	return reply, m.wrap(err)
}

func (m *OpenAIModel) attempt(ctx context.Context, prompt string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: m.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		// A literal 0 is dropped by omitempty.
		Temperature: math.SmallestNonzeroFloat32,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	m.logger.Debug("model call finished",
		"model", m.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

func (m *OpenAIModel) wrap(err error) error {
	if err == nil {
		return nil
	}
	return utils.NewUpstreamError("generation model request failed", err)
}

// retryable reports whether a failed attempt is worth one more try.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, errNoChoices) {
		return false
	}
	if status := statusOf(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= 500
	}
	return !errors.Is(err, context.Canceled)
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// headerTransport adds the attribution headers OpenRouter asks for.
type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer == "" && t.title == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}
