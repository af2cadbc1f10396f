package models

// Role identifies the author of a conversation turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMode tells whether a response went through retrieval
type ChatMode string

const (
	ChatModeRAG        ChatMode = "rag"
	ChatModeWithoutRAG ChatMode = "without_rag"
)

// ConversationTurn is one caller-supplied history entry.
// It is passed through to the generation backend untouched.
type ConversationTurn struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// SourceRef points back at a recipe used to ground a response
type SourceRef struct {
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Similarity *float64 `json:"similarity"`
}

// Usage reports token consumption of a generation call
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the result of a single chat invocation.
// Backend failures are reported through Success and Error instead of a Go error.
type ChatResponse struct {
	Query     string            `json:"query"`
	Response  string            `json:"response"`
	Success   bool              `json:"success"`
	Mode      ChatMode          `json:"mode"`
	Retrieval *RetrievalSummary `json:"retrieval,omitempty"`
	Sources   []SourceRef       `json:"sources,omitempty"`
	Model     string            `json:"model,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Usage     *Usage            `json:"usage,omitempty"`
	Error     string            `json:"error,omitempty"`
}
