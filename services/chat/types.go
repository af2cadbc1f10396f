package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services/providers"
)

// Request is one chat turn
type Request struct {
	Query string
	// TopK <= 0 uses the retriever default
	TopK           int
	History        []models.ConversationTurn
	IncludeSources bool
	// Category restricts retrieval to one recipe category when set
	Category string
}

// Stage is a step of the chat pipeline
type Stage string

const (
	StageStart        Stage = "start"
	StageRetrieving   Stage = "retrieving"
	StageContextBuilt Stage = "context_built"
	StageGenerating   Stage = "generating"
	StageSuccess      Stage = "success"
	StageFailed       Stage = "failed"
)

// Config holds the generation parameters used for every call
type Config struct {
	Temperature      float64
	MaxTokens        int
	RetrievalTimeout time.Duration
}

// pipelineContext carries state between pipeline stages
type pipelineContext struct {
	RequestID uuid.UUID
	StartTime time.Time
	Stage     Stage

	Results    []models.RetrievalResult
	Context    string
	Summary    models.RetrievalSummary
	Grounded   bool
	Completion *providers.Completion
}
