package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "sysdesign-assistant/backend/pkg/errors"
	"sysdesign-assistant/backend/pkg/logger"
)

const chatMaxRetries = 3

// ChatAdapter handles one-shot chat completions
type ChatAdapter struct {
	client  *openai.Client
	model   string
	mu      sync.RWMutex // Protects model field for concurrent access
	logger  *zap.Logger
	backoff func(attempt int) time.Duration
}

// NewChatAdapter creates a new chat completion adapter
func NewChatAdapter(baseURL, apiKey, modelID string) *ChatAdapter {
	return &ChatAdapter{
		client: newClient(baseURL, apiKey),
		model:  modelID,
		logger: logger.Named("chat"),
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * time.Second
		},
	}
}

// newClient builds a go-openai client against baseURL (empty means the public API)
func newClient(baseURL, apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(config)
}

// SetModel updates the model used by this adapter
func (a *ChatAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("Chat adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *ChatAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Complete sends a system + user message pair and returns the first choice's content
func (a *ChatAdapter) Complete(ctx context.Context, systemPrompt, userMsg string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMsg,
	})

	currentModel := a.GetModel()
	req := openai.ChatCompletionRequest{
		Model:    currentModel,
		Messages: messages,
	}

	// Retry with linear backoff
	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < chatMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.backoff(attempt)
			a.logger.Warn("Retrying chat completion",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", apperrors.NewContextCancelled("chat completion", ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("Chat completion failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", currentModel),
		)
		if ctx.Err() != nil {
			return "", apperrors.NewContextCancelled("chat completion", ctx.Err())
		}
		err = classifyRemote(fmt.Sprintf("chat completion (attempt %d/%d)", attempt+1, chatMaxRetries), err)
		if !apperrors.IsRetryable(err) {
			break
		}
	}

	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewRemoteRequestFailed("chat completion", fmt.Errorf("no choices in response"))
	}

	content := resp.Choices[0].Message.Content
	a.logger.Debug("Chat completion generated",
		zap.String("model", currentModel),
		zap.Int("content_length", len(content)),
	)

	return content, nil
}

// classifyRemote wraps an API failure, marking client errors other than rate
// limits and timeouts as not worth retrying
func classifyRemote(operation string, err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status >= 400 && status < 500 &&
		status != http.StatusTooManyRequests &&
		status != http.StatusRequestTimeout {
		return apperrors.NewRemoteRequestRejected(operation, err)
	}
	return apperrors.NewRemoteRequestFailed(operation, err)
}
