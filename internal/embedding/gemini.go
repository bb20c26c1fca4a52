package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/hire-matcher/internal/logger"
	"github.com/spigell/hire-matcher/internal/utils"
)

const (
	ProviderGemini = "gemini"

	defaultGeminiModel = "text-embedding-004"
	defaultMaxRetries  = 3
	maxQuotaDelay      = 30 * time.Second
	retryBase          = time.Second
	retryLimit         = 10 * time.Second
	maxLogLength       = 120
)

var wait = utils.WaitFor

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type embedClient interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiConfig configures the Gemini embedding backend.
type GeminiConfig struct {
	APIKey            string
	Model             string
	MaxRetries        int
	RequestsPerSecond float64
	TaskType          string
}

// Gemini embeds text through the Gemini API.
type Gemini struct {
	client     embedClient
	model      string
	taskType   string
	maxRetries int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewGemini creates the Gemini API client. It performs no network calls.
func NewGemini(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, cfg, log), nil
}

func newGemini(client embedClient, cfg GeminiConfig, log *zap.Logger) *Gemini {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	taskType := strings.TrimSpace(cfg.TaskType)
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}

	return &Gemini{
		client:     client,
		model:      model,
		taskType:   taskType,
		maxRetries: retries,
		limiter:    limiter,
		logger:     logger.WithEmbedding(log, ProviderGemini, model),
	}
}

func (g *Gemini) Provider() string { return ProviderGemini }

func (g *Gemini) Model() string { return g.model }

// Embed returns the embedding of text. Temporary API failures are retried.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	cfg := &genai.EmbedContentConfig{TaskType: g.taskType}

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limiter: %w", err)
			}
		}

		g.logger.Debug("gemini embed content request",
			zap.Int("attempt", attempt),
			zap.String("text_preview", utils.TruncateForLog(text, maxLogLength)),
		)

		resp, err := g.client.EmbedContent(ctx, g.model, genai.Text(text), cfg)
		if err == nil {
			return firstVector(resp)
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == g.maxRetries {
			break
		}

		g.logger.Warn("gemini embed content failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

func firstVector(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil {
		return nil, ErrEmptyVector
	}
	for _, e := range resp.Embeddings {
		if e != nil && len(e.Values) > 0 {
			return e.Values, nil
		}
	}
	return nil, ErrEmptyVector
}

// retryDelay reports whether err is temporary and how long to wait before the next attempt.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return 0, false
		}
		apiErr = *ptr
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if m := retryAfterPattern.FindStringSubmatch(apiErr.Message); len(m) == 2 {
			secs, perr := strconv.ParseFloat(m[1], 64)
			if perr == nil {
				delay := time.Duration(secs * float64(time.Second))
				if delay > maxQuotaDelay {
					return 0, false
				}
				return delay, true
			}
		}
		return utils.Backoff(retryBase, retryLimit, attempt), true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return utils.Backoff(retryBase, retryLimit, attempt), true
	default:
		return 0, false
	}
}
