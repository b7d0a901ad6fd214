package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/cache"
	"github.com/Alhassan777/Nura-AI-sub001/internal/history"
	"github.com/Alhassan777/Nura-AI-sub001/internal/llm"
	"github.com/Alhassan777/Nura-AI-sub001/internal/modes"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// ── Memory ──────────────────────────────────────────────────

// memoryJob persists the exchange to the memory service, appends both
// sides to conversation history, and refreshes the cached conversation
// window the fast path falls back to when no enriched context exists.
func (c *Coordinator) memoryJob(ctx context.Context, turn models.Turn, response string) (models.JobResult, error) {
	result, err := c.memory.StoreExchange(ctx, turn, response)
	if err != nil {
		return models.JobResult{}, fmt.Errorf("memory store: %w", err)
	}

	appended := true
	if err := c.history.Append(ctx, turn.UserID, models.StoredMessage{
		ConversationID: turn.ConversationID, Role: "user", Content: turn.Message,
	}); err != nil {
		appended = false
		log.Warn().Err(err).Str("user_id", turn.UserID).Msg("History append failed")
	}
	if err := c.history.Append(ctx, turn.UserID, models.StoredMessage{
		ConversationID: turn.ConversationID, Role: "assistant", Content: response,
	}); err != nil {
		appended = false
		log.Warn().Err(err).Str("user_id", turn.UserID).Msg("History append failed")
	}

	if appended {
		c.cacheWindow(ctx, turn)
	}

	return models.JobResult{Memory: &models.MemoryOutcome{
		Stored:          result.Stored,
		MemoryID:        result.ID,
		HistoryAppended: appended,
	}}, nil
}

// cacheWindow writes the freshly-appended conversation window under the
// conversation key so the next turn can read it without touching the
// relational store.
func (c *Coordinator) cacheWindow(ctx context.Context, turn models.Turn) {
	window := history.Window(ctx, c.history, turn.UserID, turn.ConversationID, c.windowSize)
	if window == "" {
		return
	}
	c.store.Set(ctx, cache.Key{
		Kind:           cache.KindConversation,
		UserID:         turn.UserID,
		ConversationID: turn.ConversationID,
	}, []byte(window))
}

// ── Crisis ──────────────────────────────────────────────────

// crisisJob assesses the turn and, on a severe assessment, runs the
// escalation state machine inline so its result settles inside this
// job's slot.
func (c *Coordinator) crisisJob(ctx context.Context, turn models.Turn, response string) (models.JobResult, error) {
	assessment, degraded := c.assess(ctx, turn)

	outcome := &models.CrisisOutcome{
		Severity:           assessment.Severity.String(),
		Summary:            assessment.Summary,
		RequiresOutreach:   assessment.RequiresOutreach,
		AssessmentDegraded: degraded,
	}

	if assessment.Severity >= models.SeverityHigh && assessment.RequiresOutreach {
		outcome.Escalation = c.escalator.Escalate(ctx, turn.UserID, assessment)
	}
	return models.JobResult{Crisis: outcome}, nil
}

// ── Mode-specific deep processing ───────────────────────────

const (
	actionPlanPrompt = `The user is working toward a concrete plan. Based on their message, draft a short readiness check and a three-step outline they could start this week. Be specific and gentle.

User message: %s`

	visualizationPrompt = `The user wants a calming visualization. Write a short guided script (4-6 sentences) grounded in their message: a safe scene, slow breathing cues, and one anchoring detail to return to.

User message: %s`

	generalScanPrompt = `Review this exchange for anything worth following up on: commitments the user mentioned, schedulable activities, or topics to revisit next session. Reply with a short bullet list, or "none".

User: %s
Assistant: %s`
)

func (c *Coordinator) modeWorkJob(ctx context.Context, turn models.Turn, response string) (models.JobResult, error) {
	cfg := llm.GenerationConfig{MaxTokens: 512, Temperature: 0.4}

	switch turn.Mode {
	case models.ModeActionPlan:
		out, err := c.model.Generate(ctx, fmt.Sprintf(actionPlanPrompt, turn.Message), cfg)
		if err != nil {
			return models.JobResult{}, fmt.Errorf("action plan: %w", err)
		}
		return models.JobResult{ModeWork: &models.ModeWorkOutcome{ActionPlan: out}}, nil

	case models.ModeVisualization:
		out, err := c.model.Generate(ctx, fmt.Sprintf(visualizationPrompt, turn.Message), cfg)
		if err != nil {
			return models.JobResult{}, fmt.Errorf("visualization: %w", err)
		}
		return models.JobResult{ModeWork: &models.ModeWorkOutcome{VisualizationScript: out}}, nil

	default:
		out, err := c.model.Generate(ctx, fmt.Sprintf(generalScanPrompt, turn.Message, response), cfg)
		if err != nil {
			return models.JobResult{}, fmt.Errorf("general scan: %w", err)
		}
		return models.JobResult{ModeWork: &models.ModeWorkOutcome{Observations: out}}, nil
	}
}

// ── Alternate-mode suggestion ───────────────────────────────

func (c *Coordinator) suggestionJob(ctx context.Context, turn models.Turn, response string) (models.JobResult, error) {
	suggested, score := modes.SuggestAlternate(turn.Message, turn.Mode)
	if score == 0 {
		return models.JobResult{Suggestion: &models.SuggestionOutcome{}}, nil
	}
	return models.JobResult{Suggestion: &models.SuggestionOutcome{
		SuggestedMode: suggested,
		Score:         score,
	}}, nil
}

// ── Context enrichment ──────────────────────────────────────

// enrichmentJob assembles the context block the next turn's fast path
// will read: memory digest plus the recent conversation window, cached
// under the enriched key with the shortest TTL class.
func (c *Coordinator) enrichmentJob(ctx context.Context, turn models.Turn, response string) (models.JobResult, error) {
	var parts []string

	uc, err := c.memory.GetContext(ctx, turn.UserID, turn.ConversationID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", turn.UserID).Msg("Memory context fetch failed during enrichment")
	} else if !uc.Empty() {
		if uc.Digest != "" {
			parts = append(parts, "About this user: "+uc.Digest)
		}
		if len(uc.ShortTerm) > 0 {
			parts = append(parts, "Recently: "+strings.Join(uc.ShortTerm, "; "))
		}
	}

	window := history.Window(ctx, c.history, turn.UserID, turn.ConversationID, c.windowSize)
	if window != "" {
		parts = append(parts, "Recent conversation:\n"+window)
	}

	if len(parts) == 0 {
		return models.JobResult{Enrichment: &models.EnrichmentOutcome{Written: false}}, nil
	}

	enriched := strings.Join(parts, "\n\n")
	key := cache.Key{
		Kind:           cache.KindEnriched,
		UserID:         turn.UserID,
		ConversationID: turn.ConversationID,
		Mode:           turn.Mode,
	}
	c.store.Set(ctx, key, []byte(enriched))

	return models.JobResult{Enrichment: &models.EnrichmentOutcome{
		Written: true,
		Key:     key.String(),
		Bytes:   len(enriched),
	}}, nil
}
