package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/llm"
	"github.com/Alhassan777/Nura-AI-sub001/internal/modes"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

const assessPrompt = `You are a clinical triage assistant. Assess the crisis severity of this message from a mental-health support conversation.

Respond with ONLY a JSON object, no prose:
{"severity": "none"|"low"|"moderate"|"high"|"critical", "summary": "<one sentence>", "requires_outreach": true|false}

"requires_outreach" means a trusted contact should be notified now. Reserve "high" and "critical" for explicit self-harm intent or acute danger.

Message: %s`

// assessResponse is the model's expected JSON shape.
type assessResponse struct {
	Severity         string `json:"severity"`
	Summary          string `json:"summary"`
	RequiresOutreach bool   `json:"requires_outreach"`
}

// assess runs the model-based crisis assessment. When the model call or
// parse fails it degrades to the keyword heuristic rather than skipping
// assessment: a missed crisis is the one failure this pipeline must not
// have. The bool reports degradation.
func (c *Coordinator) assess(ctx context.Context, turn models.Turn) (models.CrisisAssessment, bool) {
	raw, err := c.model.Generate(ctx, fmt.Sprintf(assessPrompt, turn.Message),
		llm.GenerationConfig{MaxTokens: 256, Temperature: 0})
	if err != nil {
		log.Warn().Err(err).Str("user_id", turn.UserID).Msg("Crisis assessment model call failed")
		return heuristicAssessment(turn), true
	}

	parsed, ok := parseAssessment(raw)
	if !ok {
		log.Warn().Str("user_id", turn.UserID).Msg("Crisis assessment response unparseable")
		return heuristicAssessment(turn), true
	}

	return models.CrisisAssessment{
		Severity:         models.ParseSeverity(parsed.Severity),
		Summary:          parsed.Summary,
		RequiresOutreach: parsed.RequiresOutreach,
		TriggerMessage:   turn.Message,
		AssessedAt:       time.Now().UTC(),
	}, false
}

// parseAssessment extracts the JSON object from the model output,
// tolerating surrounding prose or code fences.
func parseAssessment(raw string) (assessResponse, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return assessResponse{}, false
	}

	var out assessResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return assessResponse{}, false
	}
	if out.Severity == "" {
		return assessResponse{}, false
	}
	return out, true
}

// heuristicAssessment is the keyword fallback used when the model is
// unavailable. A keyword hit escalates; silence does not clear.
func heuristicAssessment(turn models.Turn) models.CrisisAssessment {
	flags := modes.ScanSignals(turn.Message)

	a := models.CrisisAssessment{
		Severity:       models.SeverityNone,
		Summary:        "model unavailable, keyword heuristic only",
		TriggerMessage: turn.Message,
		AssessedAt:     time.Now().UTC(),
	}
	if flags.CrisisKeywordHit {
		a.Severity = models.SeverityHigh
		a.RequiresOutreach = true
		a.Summary = "crisis keywords detected while assessment model was unavailable"
	}
	return a
}
