package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/middleware"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/chat"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/utils"
	"go.uber.org/zap"
)

// ChatRequest is the body of POST /api/v1/chat
type ChatRequest struct {
	Query          string                    `json:"query" validate:"required"`
	TopK           *int                      `json:"top_k,omitempty" validate:"omitempty,gte=1"`
	History        []models.ConversationTurn `json:"history,omitempty" validate:"omitempty,dive"`
	IncludeSources *bool                     `json:"include_sources,omitempty"`
	Category       string                    `json:"category,omitempty"`
}

// PlainChatRequest is the body of POST /api/v1/chat/plain
type PlainChatRequest struct {
	Query   string                    `json:"query" validate:"required"`
	History []models.ConversationTurn `json:"history,omitempty" validate:"omitempty,dive"`
}

// ChatService defines the chat operations exposed over HTTP
type ChatService interface {
	Chat(ctx context.Context, req chat.Request) (*models.ChatResponse, error)
	ChatWithoutRAG(ctx context.Context, query string, history []models.ConversationTurn) (*models.ChatResponse, error)
}

// InputGuard screens user input before it reaches the chat service
type InputGuard interface {
	Check(query string, history []models.ConversationTurn) error
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	service ChatService
	guard   InputGuard
	maxTopK int
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler. guard may be nil.
// Requests may ask for at most maxTopK recipes.
func NewChatHandler(service ChatService, guard InputGuard, maxTopK int, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		guard:   guard,
		maxTopK: maxTopK,
		logger:  logger,
	}
}

// HandleChat handles POST /api/v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ChatRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if req.TopK != nil && *req.TopK > h.maxTopK {
		_ = utils.WriteBadRequest(w, "Validation failed", map[string]interface{}{
			"TopK": fmt.Sprintf("TopK must be less than or equal to %d", h.maxTopK),
		})
		return
	}
	if err := h.screen(req.Query, req.History); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	chatReq := chat.Request{
		Query:          req.Query,
		History:        req.History,
		IncludeSources: true,
		Category:       req.Category,
	}
	if req.TopK != nil {
		chatReq.TopK = *req.TopK
	}
	if req.IncludeSources != nil {
		chatReq.IncludeSources = *req.IncludeSources
	}

	resp, err := h.service.Chat(ctx, chatReq)
	if err != nil {
		h.logger.Warn("chat failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write chat response", zap.Error(err))
	}
}

// HandlePlainChat handles POST /api/v1/chat/plain, answering without retrieval
func (h *ChatHandler) HandlePlainChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PlainChatRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := h.screen(req.Query, req.History); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	resp, err := h.service.ChatWithoutRAG(ctx, req.Query, req.History)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, resp); err != nil {
		h.logger.Error("failed to write chat response", zap.Error(err))
	}
}

func (h *ChatHandler) screen(query string, history []models.ConversationTurn) error {
	if h.guard == nil {
		return nil
	}
	return h.guard.Check(query, history)
}
