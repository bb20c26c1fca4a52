package embedding

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeEmbedResponse struct {
	resp *genai.EmbedContentResponse
	err  error
}

type fakeEmbedClient struct {
	mu     sync.Mutex
	queue  []fakeEmbedResponse
	models []string
	texts  []string
}

func (f *fakeEmbedClient) enqueue(resp *genai.EmbedContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeEmbedResponse{resp: resp, err: err})
}

func (f *fakeEmbedClient) EmbedContent(_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	f.models = append(f.models, model)
	for _, c := range contents {
		for _, p := range c.Parts {
			f.texts = append(f.texts, p.Text)
		}
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func vectorResponse(values ...float32) *genai.EmbedContentResponse {
	return &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: values}}}
}

func noWait(t *testing.T) {
	t.Helper()
	original := wait
	wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { wait = original })
}

func TestGeminiRetriesOnTemporaryError(t *testing.T) {
	noWait(t)

	client := &fakeEmbedClient{}
	client.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	client.enqueue(vectorResponse(0.1, 0.2), nil)

	g := newGemini(client, GeminiConfig{MaxRetries: 3}, zap.NewNop())

	vec, err := g.Embed(context.Background(), "  golang  ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("unexpected vector: %v", vec)
	}
	if len(client.models) != 2 || client.models[0] != defaultGeminiModel {
		t.Fatalf("unexpected calls: %v", client.models)
	}
	if client.texts[0] != "golang" {
		t.Fatalf("expected trimmed text, got %q", client.texts[0])
	}
}

func TestGeminiStopsAfterRetriesExhausted(t *testing.T) {
	noWait(t)

	client := &fakeEmbedClient{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	client.enqueue(nil, tempErr)
	client.enqueue(nil, tempErr)

	g := newGemini(client, GeminiConfig{Model: "embed-x", MaxRetries: 2}, zap.NewNop())

	if _, err := g.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if len(client.models) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(client.models))
	}
}

func TestGeminiDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	client := &fakeEmbedClient{}
	client.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newGemini(client, GeminiConfig{MaxRetries: 3}, zap.NewNop())

	if _, err := g.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error when quota delay too long")
	}
	if len(client.models) != 1 {
		t.Fatalf("expected single call, got %d", len(client.models))
	}
}

func TestGeminiDoesNotRetryClientErrors(t *testing.T) {
	client := &fakeEmbedClient{}
	client.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newGemini(client, GeminiConfig{MaxRetries: 3}, zap.NewNop())

	if _, err := g.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
	if len(client.models) != 1 {
		t.Fatalf("expected single call, got %d", len(client.models))
	}
}

func TestGeminiEmptyResponse(t *testing.T) {
	client := &fakeEmbedClient{}
	client.enqueue(&genai.EmbedContentResponse{}, nil)

	g := newGemini(client, GeminiConfig{}, zap.NewNop())

	if _, err := g.Embed(context.Background(), "text"); !errors.Is(err, ErrEmptyVector) {
		t.Fatalf("expected ErrEmptyVector, got %v", err)
	}
	if _, err := g.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestRetryDelayParsesShortQuota(t *testing.T) {
	t.Parallel()

	delay, ok := retryDelay(genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 2.5s."}, 1)
	if !ok {
		t.Fatal("expected short quota delay to be retried")
	}
	if delay != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s, got %s", delay)
	}

	if _, ok := retryDelay(errors.New("boom"), 1); ok {
		t.Fatal("plain errors must not be retried")
	}
}
