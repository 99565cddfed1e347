// Package openai adapts the OpenAI API (chat completions, embeddings and
// Whisper transcription) to the interfaces the use cases consume.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"conference-assistant/internal/domain"
	"conference-assistant/internal/resilience"
)

const (
	defaultBaseURL            = "https://api.openai.com/v1"
	defaultEmbeddingModel     = "text-embedding-3-small"
	defaultTranscriptionModel = goopenai.Whisper1
)

// TokenSource supplies the API key.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Op         string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: %s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// Client is built lazily: the API key is resolved on the first successful call
// and the underlying go-openai client is reused for the lifetime of the
// process. Failed resolutions are retried on the next call.
type Client struct {
	tokens             TokenSource
	baseURL            string
	httpClient         *http.Client
	policy             *resilience.Policy
	embeddingModel     string
	transcriptionModel string

	mu  sync.Mutex
	api *goopenai.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithPolicy applies rate limiting and retry to every upstream call.
func WithPolicy(p *resilience.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.embeddingModel = model
		}
	}
}

func WithTranscriptionModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.transcriptionModel = model
		}
	}
}

func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("openai: token source must not be nil")
	}
	c := &Client{
		tokens:             tokens,
		baseURL:            defaultBaseURL,
		httpClient:         &http.Client{Timeout: 60 * time.Second},
		embeddingModel:     defaultEmbeddingModel,
		transcriptionModel: defaultTranscriptionModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) client(ctx context.Context) (*goopenai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil {
		return c.api, nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: resolve api key: %w", err)
	}
	cfg := goopenai.DefaultConfig(token)
	cfg.BaseURL = c.baseURL
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	c.api = goopenai.NewClientWithConfig(cfg)
	return c.api, nil
}

// Chat sends messages to the chat completions endpoint and returns the first
// choice's content.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", errors.New("openai: model must not be empty")
	}
	api, err := c.client(ctx)
	if err != nil {
		return "", err
	}

	req := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var resp goopenai.ChatCompletionResponse
	err = c.policy.Do(ctx, "chat", func(ctx context.Context) error {
		var callErr error
		resp, callErr = api.CreateChatCompletion(ctx, req)
		return statusError("chat", callErr)
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	api, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	var resp goopenai.EmbeddingResponse
	err = c.policy.Do(ctx, "embeddings", func(ctx context.Context) error {
		var callErr error
		resp, callErr = api.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: texts,
			Model: goopenai.EmbeddingModel(c.embeddingModel),
		})
		return statusError("embeddings", callErr)
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		vec := make([]float64, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float64(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Transcribe sends the audio file to Whisper. language is a locale such as
// "es-ES"; only its primary subtag is forwarded. An empty transcript is
// reported as domain.ErrUnintelligibleAudio.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	api, err := c.client(ctx)
	if err != nil {
		return "", err
	}
	req := goopenai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: audioPath,
		Language: primarySubtag(language),
	}

	var resp goopenai.AudioResponse
	err = c.policy.Do(ctx, "transcription", func(ctx context.Context) error {
		var callErr error
		resp, callErr = api.CreateTranscription(ctx, req)
		return statusError("transcription", callErr)
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcription request failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", domain.ErrUnintelligibleAudio
	}
	return text, nil
}

func primarySubtag(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

// statusError lifts go-openai errors into HTTPStatusError so callers can
// tell throttling from other failures.
func statusError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, Op: op, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, Op: op, Err: err}
	}
	return err
}
