package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

const (
	defaultModel            = "claude-3-5-haiku-20241022"
	defaultFicheMaxTokens   = 2000
	defaultAnalyseMaxTokens = 4000
)

// Config holds configuration for the model client
type Config struct {
	APIKey     string
	BaseURL    string        // OpenAI-compatible endpoint
	Model      string        // model name sent to the endpoint
	Timeout    time.Duration // per request
	MaxRetries int           // extra attempts on transient failures
	RetryDelay time.Duration // base backoff delay
	RateLimit  float64       // requests per second, 0 for unlimited
	Codes      []string      // request codes listed in the fiche prompt
	HTTPClient *http.Client  // optional (tests)
}

// Client implements Extractor over the chat completions API
type Client struct {
	client     openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	codes      []string
	logger     *zap.Logger
}

// NewClient creates a model client. The SDK's own retries are disabled;
// retries are driven here so they share the rate limiter.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if len(cfg.Codes) == 0 {
		cfg.Codes = saisine.DefaultCatalog().Codes()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		limiter:    rate.NewLimiter(limit, 1),
		codes:      cfg.Codes,
		logger:     logger,
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// ExtractFiche implements Extractor
func (c *Client) ExtractFiche(ctx context.Context, text, sourceType string) (saisine.Fiche, error) {
	if strings.TrimSpace(text) == "" {
		return saisine.Fiche{}, fmt.Errorf("%w: document text is empty", ErrInvalidResponse)
	}

	content, err := c.complete(ctx, FichePrompt(text, sourceType, c.codes), defaultFicheMaxTokens)
	if err != nil {
		return saisine.Fiche{}, err
	}

	f, err := decodeFiche(content)
	if err != nil {
		c.logger.Warn("unparsable fiche answer", zap.Error(err), zap.Int("length", len(content)))
		return saisine.Fiche{}, err
	}
	f.ContenuBrut = text
	f.Confidence = saisine.ConfidenceAIExtracted
	return f, nil
}

// ExtractAnalyse implements Extractor
func (c *Client) ExtractAnalyse(ctx context.Context, docs []SourceDocument) (saisine.Analyse, error) {
	if len(docs) == 0 {
		return saisine.Analyse{}, ErrNoDocuments
	}

	content, err := c.complete(ctx, AnalysePrompt(docs), defaultAnalyseMaxTokens)
	if err != nil {
		return saisine.Analyse{}, err
	}

	a, err := decodeAnalyse(content)
	if err != nil {
		c.logger.Warn("unparsable analysis answer", zap.Error(err), zap.Int("length", len(content)))
		return saisine.Analyse{}, err
	}
	return a, nil
}

// complete sends one user message and returns the first choice's text
func (c *Client) complete(ctx context.Context, prompt string, maxTokens int64) (string, error) {
	var content string
	start := time.Now()

	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}

			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			resp, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
				Model: openai.ChatModel(c.model),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.UserMessage(prompt),
				},
				Temperature: openai.Float(0),
				MaxTokens:   openai.Int(maxTokens),
			})
			if err != nil {
				return mapError(err)
			}
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return ErrEmptyResponse
			}
			content = resp.Choices[0].Message.Content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("model call failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return "", err
	}

	c.logger.Debug("model call completed",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("length", len(content)),
	)
	return content, nil
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return retry.IsRecoverable(err)
}

var _ Extractor = (*Client)(nil)
