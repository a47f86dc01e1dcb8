package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"hfllm/config"
	"hfllm/internal/models"
	"hfllm/internal/stream"
	"hfllm/internal/transport"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RouterClient streams chat completions from the Hugging Face inference router.
type RouterClient struct {
	transport    transport.Transport
	token        string
	url          string
	model        string
	maxTokens    int
	maxErrorBody int64
}

// EndpointURL returns the chat completions URL, routed through provider when set.
func EndpointURL(baseURL, provider string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	provider = strings.Trim(strings.TrimSpace(provider), "/")
	if provider == "" {
		return base + "/v1/chat/completions"
	}
	return base + "/" + provider + "/models/v1/chat/completions"
}

// NewRouterClient creates a RouterClient.
func NewRouterClient(t transport.Transport, token string, endpoint config.EndpointConfig, maxErrorBody int64) *RouterClient {
	url := EndpointURL(endpoint.BaseURL, endpoint.Provider)
	return &RouterClient{
		transport:    t,
		token:        token,
		url:          url,
		model:        endpoint.Model,
		maxTokens:    endpoint.MaxTokens,
		maxErrorBody: maxErrorBody,
	}
}

// URL returns the endpoint the client posts to.
func (c *RouterClient) URL() string {
	return c.url
}

// StreamRequest posts the conversation with stream=true and drains the SSE response.
func (c *RouterClient) StreamRequest(ctx context.Context, history []models.Message, out io.Writer) (string, error) {
	requestID := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{
		"request_id": requestID,
		"model":      c.model,
		"messages":   len(history),
	})

	messages := history
	if messages == nil {
		messages = []models.Message{}
	}
	body, err := json.Marshal(models.ChatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
		Stream:    true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.token,
		"Content-Type":  "application/json",
		"Accept":        "text/event-stream",
		"X-Request-Id":  requestID,
	}

	log.Debug("Sending chat completion request")
	resp, err := c.transport.Post(ctx, c.url, headers, body)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	if err := transport.CheckStatus(resp, c.maxErrorBody); err != nil {
		log.WithField("status", resp.StatusCode).Warn("Inference endpoint rejected the request")
		return "", err
	}
	defer resp.Body.Close()

	reply, err := stream.Collect(resp.Body, out)
	if err != nil {
		return "", fmt.Errorf("read response stream: %w", err)
	}

	log.WithField("bytes", len(reply)).Debug("Reply received")
	return reply, nil
}
