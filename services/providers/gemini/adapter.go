package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

func init() {
	providers.Register(providers.ProviderGemini, func(cfg providers.ProviderConfig, logger *zap.Logger) (providers.Backend, error) {
		return NewAdapter(context.Background(), cfg, logger)
	})
}

// Adapter implements providers.Backend on the Gemini API
type Adapter struct {
	config providers.ProviderConfig
	client *genai.Client
	logger *zap.Logger
}

// NewAdapter creates a Gemini client. No request is made until Complete.
func NewAdapter(ctx context.Context, config providers.ProviderConfig, logger *zap.Logger) (*Adapter, error) {
	config = config.WithDefaults()
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	headers := http.Header{}
	for k, v := range config.Headers {
		headers.Set(k, v)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: config.BaseURL,
			Headers: headers,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Adapter{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return providers.ProviderGemini
}

// Model returns the model used for completions
func (a *Adapter) Model() string {
	return a.config.Model
}

// Complete sends the conversation to generateContent. System messages become
// the system instruction; the rest keep their order as user/model turns.
func (a *Adapter) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.Completion, error) {
	startTime := time.Now()

	contents, genConfig := a.buildRequest(req)
	if len(contents) == 0 {
		return nil, providers.NewProviderError(a.Name(), "INVALID_REQUEST", "Request has no user or assistant messages", 0, false, nil)
	}

	resp, err := providers.Retry(ctx, providers.RetryConfigFrom(a.config), func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		resp, err := a.client.Models.GenerateContent(ctx, a.config.Model, contents, genConfig)
		if err != nil {
			return nil, a.classifyError(ctx, err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	completion, err := a.toCompletion(resp, time.Since(startTime))
	if err != nil {
		return nil, err
	}

	a.logger.Debug("gemini completion finished",
		zap.String("model", a.config.Model),
		zap.String("finish_reason", completion.FinishReason),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
		zap.Duration("latency", completion.Latency))

	return completion, nil
}

func (a *Adapter) buildRequest(req *providers.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	var (
		system   []string
		contents []*genai.Content
	)

	for _, msg := range req.Messages {
		switch msg.Role {
		case providers.RoleSystem:
			system = append(system, msg.Content)
		case providers.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(system) > 0 {
		genConfig.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	return contents, genConfig
}

func (a *Adapter) toCompletion(resp *genai.GenerateContentResponse, latency time.Duration) (*providers.Completion, error) {
	if len(resp.Candidates) == 0 {
		message := "Response contained no candidates"
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			message = "Prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", message, 0, false, nil)
	}

	completion := &providers.Completion{
		Text:         resp.Text(),
		FinishReason: string(resp.Candidates[0].FinishReason),
		Latency:      latency,
	}
	if usage := resp.UsageMetadata; usage != nil {
		completion.Usage = providers.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}
	return completion, nil
}

func (a *Adapter) classifyError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return providers.NewProviderError(a.Name(), "CANCELED", "Request canceled", 0, false, ctxErr)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Status
		if code == "" {
			code = http.StatusText(apiErr.Code)
		}
		return providers.NewProviderError(a.Name(), code, apiErr.Message, apiErr.Code,
			providers.RetryableStatus(apiErr.Code), err)
	}

	if providers.IsNetworkError(err) {
		return providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", "Generation failed", 0, false, err)
}
