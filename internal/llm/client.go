package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/campus-assist/backend/internal/metrics"
	"github.com/campus-assist/backend/pkg/circuitbreaker"
	"github.com/campus-assist/backend/pkg/logger"
)

const (
	SuccessConfidence  = 0.9
	FallbackConfidence = 0.1

	SourceFallback = "error-fallback"
)

var (
	ErrMissingAPIKey = errors.New("llm api key is not configured")
	ErrEmptyResponse = errors.New("llm returned no choices")
)

type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	TopP        float32
	MaxTokens   int
	Timeout     time.Duration
	Institution string
	Knowledge   string
}

type Client struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	timeout     time.Duration
	institution string
	knowledge   string
	cb          *circuitbreaker.CircuitBreaker
}

type Answer struct {
	Text       string
	Confidence float64
	Source     string
	Model      string
	Usage      Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	cb := circuitbreaker.New("llm", circuitbreaker.Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		IsFailure:        breakerFailure,
		OnStateChange:    metrics.RecordBreakerState,
		Logger:           logger.GetLogger(),
	})

	logger.Info("LLM client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.String("base_url", clientConfig.BaseURL),
	)

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		institution: cfg.Institution,
		knowledge:   cfg.Knowledge,
		cb:          cb,
	}, nil
}

// Generate answers question in responseLanguage. A non-2xx reply from the
// provider becomes an apology answer with FallbackConfidence and a nil error;
// transport failures, timeouts and an open breaker are returned as errors.
func (c *Client) Generate(ctx context.Context, question, responseLanguage string) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: BuildSystemPrompt(c.institution, c.knowledge, responseLanguage),
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: question,
		},
	}

	logger.Info("Sending chat completion",
		zap.String("model", c.model),
		zap.String("response_language", responseLanguage),
	)

	start := time.Now()
	var result *Answer

	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    messages,
				Temperature: c.temperature,
				TopP:        c.topP,
				MaxTokens:   c.maxTokens,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create completion: %w", err)
		}

		if len(resp.Choices) == 0 {
			return ErrEmptyResponse
		}

		result = &Answer{
			Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
			Confidence: SuccessConfidence,
			Source:     c.sourceTag(),
			Model:      resp.Model,
			Usage: Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		}

		return nil
	})

	metrics.UpstreamDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())

	if status, ok := httpStatus(err); ok {
		metrics.UpstreamCalls.WithLabelValues("llm", "fallback").Inc()
		logger.Error("LLM provider returned an error status",
			zap.Int("status", status),
			zap.String("model", c.model),
			zap.Error(err),
		)
		return &Answer{
			Text:       Apology(status),
			Confidence: FallbackConfidence,
			Source:     SourceFallback,
			Model:      c.model,
		}, nil
	}

	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("llm", "error").Inc()
		logger.Error("LLM completion failed", zap.Error(err))
		return nil, err
	}

	metrics.UpstreamCalls.WithLabelValues("llm", "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(result.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(result.Usage.CompletionTokens))

	logger.Debug("LLM completion generated",
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

func (c *Client) Breaker() circuitbreaker.Snapshot {
	return c.cb.Snapshot()
}

func (c *Client) sourceTag() string {
	switch c.provider {
	case "", "groq":
		return "groq-llama3"
	case "gemini":
		return "gemini-flash"
	default:
		return c.provider
	}
}

// Apology is the user-facing answer for a provider error status.
func Apology(status int) string {
	return fmt.Sprintf("Sorry, I'm having trouble connecting to the AI service right now. API Error: %d. Please try again later or contact support.", status)
}

// breakerFailure ignores provider error statuses: those are answered with an
// apology, so only transport faults and empty replies trip the breaker.
func breakerFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	_, ok := httpStatus(err)
	return !ok
}

func httpStatus(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}

	return 0, false
}
