package prompt

import (
	"strings"

	"github.com/puanakeyla/ChatbotMasakanIndonesia/models"
	"github.com/puanakeyla/ChatbotMasakanIndonesia/services"
	"go.uber.org/zap"
)

// DefaultMaxRisk is the risk score at which a message is rejected
const DefaultMaxRisk = 0.8

// Guard screens chat input for prompt-injection attempts before it reaches the backend
type Guard struct {
	enabled bool
	maxRisk float64
	logger  *zap.Logger
}

// NewGuard creates a guard. A disabled guard accepts everything.
func NewGuard(enabled bool, logger *zap.Logger) *Guard {
	return &Guard{
		enabled: enabled,
		maxRisk: DefaultMaxRisk,
		logger:  logger,
	}
}

// Enabled reports whether the guard inspects input
func (g *Guard) Enabled() bool {
	return g != nil && g.enabled
}

// Check inspects the query and the user turns of the history
func (g *Guard) Check(query string, history []models.ConversationTurn) error {
	if !g.Enabled() {
		return nil
	}

	if err := g.checkText(query); err != nil {
		return err
	}
	for _, turn := range history {
		if turn.Role != models.RoleUser {
			continue
		}
		if err := g.checkText(turn.Content); err != nil {
			return err
		}
	}
	return nil
}

func (g *Guard) checkText(text string) error {
	if strings.ContainsRune(text, '\x00') {
		return services.NewValidationError("message contains null bytes")
	}

	detections := Detect(text)
	if len(detections) == 0 {
		return nil
	}

	score := RiskScore(detections)
	if score < g.maxRisk {
		g.logger.Debug("low risk injection pattern accepted",
			zap.Float64("risk_score", score),
			zap.Int("detections", len(detections)))
		return nil
	}

	types := distinctTypes(detections)
	g.logger.Warn("prompt injection rejected",
		zap.Float64("risk_score", score),
		zap.Strings("types", types))

	return services.NewValidationError("message rejected by prompt guard").
		WithDetail("risk_score", score).
		WithDetail("detected", types)
}

func distinctTypes(detections []Detection) []string {
	seen := make(map[InjectionType]bool)
	var types []string
	for _, d := range detections {
		if seen[d.Type] {
			continue
		}
		seen[d.Type] = true
		types = append(types, string(d.Type))
	}
	return types
}
