package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
)

func init() {
	providers.Register(providers.ProviderOpenAI, func(cfg providers.ProviderConfig, logger *zap.Logger) (providers.Backend, error) {
		return NewAdapter(cfg, logger), nil
	})
}

// Adapter implements providers.Backend against the chat completions REST API
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAdapter creates a new OpenAI adapter
func NewAdapter(config providers.ProviderConfig, logger *zap.Logger) *Adapter {
	config = config.WithDefaults()
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = defaultModel
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return providers.ProviderOpenAI
}

// Model returns the model used for completions
func (a *Adapter) Model() string {
	return a.config.Model
}

// Complete performs a chat completion request, retrying transient failures
func (a *Adapter) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.Completion, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	resp, err := providers.Retry(ctx, providers.RetryConfigFrom(a.config), func(ctx context.Context) (*chatResponse, error) {
		return a.do(ctx, reqBody)
	})
	if err != nil {
		return nil, err
	}

	completion := a.toCompletion(resp, time.Since(startTime))

	a.logger.Debug("openai completion finished",
		zap.String("model", a.config.Model),
		zap.String("finish_reason", completion.FinishReason),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
		zap.Duration("latency", completion.Latency))

	return completion, nil
}

func (a *Adapter) do(ctx context.Context, reqBody []byte) (*chatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, providers.NewProviderError(a.Name(), "CANCELED", "Request canceled", 0, false, ctxErr)
		}
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, providers.IsNetworkError(err), err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, true, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "Response contained no choices", httpResp.StatusCode, false, nil)
	}

	return &parsed, nil
}

// buildRequest converts the unified request to the OpenAI format
func (a *Adapter) buildRequest(req *providers.CompletionRequest) *chatRequest {
	out := &chatRequest{
		Model:    a.config.Model,
		Messages: make([]chatMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		out.Messages[i] = chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		out.MaxTokens = &maxTokens
	}
	temperature := req.Temperature
	out.Temperature = &temperature

	return out
}

func (a *Adapter) toCompletion(resp *chatResponse, latency time.Duration) *providers.Completion {
	choice := resp.Choices[0]
	return &providers.Completion{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency: latency,
	}
}

// handleErrorResponse handles OpenAI error responses
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := providers.RetryableStatus(statusCode)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(statusCode)
		}
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", message, statusCode, retryable,
			fmt.Errorf("unexpected status %d", statusCode))
	}

	code := errResp.Error.Type
	if code == "" {
		code = errResp.Error.Code
	}

	return providers.NewProviderError(
		a.Name(),
		code,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
