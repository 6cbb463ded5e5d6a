package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"edupulse/internal/metrics"
)

var (
	// ErrGateway wraps transport failures and non-2xx answers from the gateway.
	ErrGateway = errors.New("ai gateway error")
	// ErrEmptyReply is returned when the gateway answers without message content.
	ErrEmptyReply = errors.New("no response from AI")
)

// SkipReply is returned by a client in Skip mode. It is not JSON.
const SkipReply = "AI gateway disabled in this environment."

// Request purposes, used as metric labels.
const (
	PurposeAttendance = "attendance"
	PurposeInsights   = "insights"
	PurposeChat       = "chat"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// Client calls an OpenAI-compatible chat completions gateway.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
	Skip    bool
	log     *zap.Logger
}

// New creates a client with configurable timeout.
func New(baseURL, apiKey, model string, timeout time.Duration, skip bool, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatComplete sends messages to the gateway and returns the first reply's text.
// A non-empty image (data URL or https URL) is attached to the last message as an image_url part.
func (c *Client) ChatComplete(ctx context.Context, purpose string, messages []Message, image string) (string, error) {
	if c.Skip {
		metrics.GatewayRequests.WithLabelValues(purpose, "skipped").Inc()
		return SkipReply, nil
	}
	if len(messages) == 0 {
		return "", errors.New("at least one message is required")
	}

	start := time.Now()
	text, err := c.do(ctx, messages, image)
	metrics.GatewayLatency.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	metrics.GatewayRequests.WithLabelValues(purpose, metrics.Result(err)).Inc()
	if err != nil {
		c.log.Warn("gateway call failed", zap.String("purpose", purpose), zap.Error(err))
		return "", err
	}
	return text, nil
}

func (c *Client) do(ctx context.Context, messages []Message, image string) (string, error) {
	wire := make([]wireMessage, len(messages))
	for i, m := range messages {
		wire[i] = wireMessage{Role: m.Role, Content: m.Content}
	}
	if image != "" {
		last := messages[len(messages)-1]
		wire[len(wire)-1].Content = []contentPart{
			{Type: "text", Text: last.Content},
			{Type: "image_url", ImageURL: &imageURL{URL: image}},
		}
	}

	body, err := json.Marshal(completionRequest{Model: c.Model, Messages: wire})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: %s: %s", ErrGateway, resp.Status, string(bodyBytes))
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrGateway, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil || *out.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	return *out.Choices[0].Message.Content, nil
}
