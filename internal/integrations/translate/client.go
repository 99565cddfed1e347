// Package translate talks to a LibreTranslate-compatible service for language
// detection and machine translation.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"conference-assistant/internal/resilience"
)

const defaultBaseURL = "http://localhost:5000"

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	Op         string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("translate: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	rest   *resty.Client
	apiKey string
	policy *resilience.Policy
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.rest.SetBaseURL(strings.TrimRight(baseURL, "/"))
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.rest = resty.NewWithClient(httpClient).SetBaseURL(c.rest.BaseURL)
		}
	}
}

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

func WithPolicy(p *resilience.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		rest: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rest.SetHeader("Content-Type", "application/json")
	return c
}

type detectRequest struct {
	Q      string `json:"q"`
	APIKey string `json:"api_key,omitempty"`
}

type detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// Detect returns the most confident language code for text.
func (c *Client) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("translate: detect: text must not be empty")
	}
	var out []detection
	if err := c.post(ctx, "detect", "/detect", detectRequest{Q: text, APIKey: c.apiKey}, &out); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", errors.New("translate: detect: no language detected")
	}
	best := out[0]
	for _, d := range out[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	if best.Language == "" {
		return "", errors.New("translate: detect: empty language code")
	}
	return strings.ToLower(best.Language), nil
}

// Translate converts text from source to target. Identical languages and
// empty text are returned unchanged without a request.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return "", errors.New("translate: target language must not be empty")
	}
	if strings.TrimSpace(text) == "" || source == target {
		return text, nil
	}
	if source == "" {
		source = "auto"
	}

	var out translateResponse
	req := translateRequest{Q: text, Source: source, Target: target, Format: "text", APIKey: c.apiKey}
	if err := c.post(ctx, "translate", "/translate", req, &out); err != nil {
		return "", err
	}
	return out.TranslatedText, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	return c.policy.Do(ctx, op, func(ctx context.Context) error {
		resp, err := c.rest.R().
			SetContext(ctx).
			SetBody(body).
			Post(path)
		if err != nil {
			return fmt.Errorf("translate: %s request failed: %w", op, err)
		}
		if resp.IsError() {
			return &HTTPStatusError{StatusCode: resp.StatusCode(), Op: op, Body: strings.TrimSpace(resp.String())}
		}
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("translate: %s: invalid JSON response: %w", op, err)
		}
		return nil
	})
}
