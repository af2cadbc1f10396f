package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/retrieval"
	"go.uber.org/zap"
)

// Retriever is the retrieval surface the orchestrator depends on
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)
	RetrieveByCategory(ctx context.Context, query, category string, topK int) ([]models.RetrievalResult, error)
}

// Service runs retrieve, format and generate for each chat turn
type Service struct {
	retriever Retriever
	backend   providers.Backend
	config    Config
	logger    *zap.Logger
}

// NewService creates a chat orchestrator
func NewService(retriever Retriever, backend providers.Backend, config Config, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		backend:   backend,
		config:    config,
		logger:    logger,
	}
}

// Chat answers a query grounded on retrieved recipes.
// Backend failures come back as an unsuccessful response with a nil error;
// validation and retrieval failures are returned as errors.
func (s *Service) Chat(ctx context.Context, req Request) (*models.ChatResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, services.NewValidationError("query must not be empty")
	}

	pc := &pipelineContext{
		RequestID: uuid.New(),
		StartTime: time.Now(),
		Stage:     StageStart,
	}

	s.logger.Info("starting chat pipeline",
		zap.String("request_id", pc.RequestID.String()),
		zap.Int("top_k", req.TopK),
		zap.String("category", req.Category),
		zap.Int("history", len(req.History)))

	s.transition(pc, StageRetrieving)
	results, err := s.retrieve(ctx, req)
	if err != nil {
		s.transition(pc, StageFailed)
		s.logger.Error("retrieval failed",
			zap.String("request_id", pc.RequestID.String()),
			zap.Error(err))
		return nil, err
	}
	pc.Results = results

	pc.Context = retrieval.FormatContext(results, true)
	pc.Summary = retrieval.Summarize(results)
	pc.Grounded = !retrieval.IsNoContext(pc.Context)
	s.transition(pc, StageContextBuilt)

	userPrompt := UngroundedPrompt(req.Query)
	if pc.Grounded {
		userPrompt = GroundedPrompt(pc.Context, req.Query)
	}

	resp := &models.ChatResponse{
		Query:     req.Query,
		Mode:      models.ChatModeRAG,
		Retrieval: &pc.Summary,
		Model:     s.backend.Model(),
		Provider:  s.backend.Name(),
	}
	if req.IncludeSources && len(results) > 0 {
		resp.Sources = retrieval.Sources(results)
	}

	s.transition(pc, StageGenerating)
	s.generate(ctx, pc, buildMessages(req.History, userPrompt), resp)
	return resp, nil
}

// ChatWithoutRAG sends the raw query with no retrieval step
func (s *Service) ChatWithoutRAG(ctx context.Context, query string, history []models.ConversationTurn) (*models.ChatResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, services.NewValidationError("query must not be empty")
	}

	pc := &pipelineContext{
		RequestID: uuid.New(),
		StartTime: time.Now(),
		Stage:     StageStart,
	}

	s.logger.Info("starting chat without retrieval",
		zap.String("request_id", pc.RequestID.String()),
		zap.Int("history", len(history)))

	resp := &models.ChatResponse{
		Query:    query,
		Mode:     models.ChatModeWithoutRAG,
		Model:    s.backend.Model(),
		Provider: s.backend.Name(),
	}

	s.transition(pc, StageGenerating)
	s.generate(ctx, pc, buildMessages(history, query), resp)
	return resp, nil
}

func (s *Service) retrieve(ctx context.Context, req Request) ([]models.RetrievalResult, error) {
	if s.config.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RetrievalTimeout)
		defer cancel()
	}

	if req.Category != "" {
		return s.retriever.RetrieveByCategory(ctx, req.Query, req.Category, req.TopK)
	}
	return s.retriever.Retrieve(ctx, req.Query, req.TopK)
}

// generate calls the backend and fills resp. Errors are recorded on resp.
func (s *Service) generate(ctx context.Context, pc *pipelineContext, messages []providers.Message, resp *models.ChatResponse) {
	completion, err := s.backend.Complete(ctx, &providers.CompletionRequest{
		Messages:    messages,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
	})
	if err != nil {
		s.transition(pc, StageFailed)
		backendErr := services.WrapBackend("generation failed", err)
		s.logger.Warn("generation failed",
			zap.String("request_id", pc.RequestID.String()),
			zap.String("provider", s.backend.Name()),
			zap.Error(backendErr))

		resp.Success = false
		resp.Response = ErrorResponse(err)
		resp.Error = err.Error()
		return
	}
	pc.Completion = completion
	s.transition(pc, StageSuccess)

	resp.Success = true
	resp.Response = completion.Text
	resp.Usage = &models.Usage{
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		TotalTokens:      completion.Usage.TotalTokens,
	}

	s.logger.Info("chat pipeline completed",
		zap.String("request_id", pc.RequestID.String()),
		zap.String("mode", string(resp.Mode)),
		zap.Bool("grounded", pc.Grounded),
		zap.Int64("latency_ms", time.Since(pc.StartTime).Milliseconds()),
		zap.Int("tokens", completion.Usage.TotalTokens))
}

func (s *Service) transition(pc *pipelineContext, next Stage) {
	s.logger.Debug("chat stage",
		zap.String("request_id", pc.RequestID.String()),
		zap.String("from", string(pc.Stage)),
		zap.String("to", string(next)))
	pc.Stage = next
}

// buildMessages lays out persona, history in order, then the user turn
func buildMessages(history []models.ConversationTurn, userContent string) []providers.Message {
	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: SystemPrompt})
	for _, turn := range history {
		messages = append(messages, providers.Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: userContent})
	return messages
}
