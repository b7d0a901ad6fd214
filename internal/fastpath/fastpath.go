// Package fastpath is the synchronous half of turn processing: resolve
// the mode, assemble context from the cache, make exactly one model
// call, hand the turn to the background coordinator, and return. Target
// latency is one model call; everything heavier runs behind the task id.
package fastpath

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alhassan777/Nura-AI-sub001/internal/cache"
	"github.com/Alhassan777/Nura-AI-sub001/internal/coordinator"
	"github.com/Alhassan777/Nura-AI-sub001/internal/llm"
	"github.com/Alhassan777/Nura-AI-sub001/internal/modes"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// noContextPlaceholder stands in when the cache has nothing for this
// conversation yet.
const noContextPlaceholder = "(no prior context for this conversation)"

// errNoCachedContext signals a total context miss: the turn runs on the
// placeholder instead of recomputing anything synchronously.
var errNoCachedContext = errors.New("no cached context")

// fallbackResponse is returned when the model call fails. Fixed text,
// never model-generated.
const fallbackResponse = "I'm here with you. I'm having a little trouble responding right now, " +
	"but what you're sharing matters. Could you tell me a bit more about how you're feeling?"

// Dispatcher hands a finished turn to the background coordinator.
type Dispatcher interface {
	Dispatch(turn models.Turn, taskID, response string) *coordinator.Handle
}

// Orchestrator runs the fast path.
type Orchestrator struct {
	store      *cache.Store
	model      llm.Client
	dispatcher Dispatcher
	tracer     trace.Tracer
}

// New creates an Orchestrator.
func New(store *cache.Store, model llm.Client, dispatcher Dispatcher) *Orchestrator {
	return &Orchestrator{
		store:      store,
		model:      model,
		dispatcher: dispatcher,
		tracer:     otel.Tracer("fastpath"),
	}
}

// ProcessTurn handles one user turn synchronously and dispatches the
// background group before returning. The returned result always carries
// a usable response: model failure degrades to fixed supportive text
// but still dispatches the background jobs.
func (o *Orchestrator) ProcessTurn(ctx context.Context, turn models.Turn) (*models.FastPathResult, error) {
	ctx, span := o.tracer.Start(ctx, "fastpath.ProcessTurn",
		trace.WithAttributes(attribute.String("user.id", turn.UserID)))
	defer span.End()

	start := time.Now()

	if turn.UserID == "" || strings.TrimSpace(turn.Message) == "" {
		return nil, fmt.Errorf("fastpath: user id and message are required")
	}
	if turn.ConversationID == "" {
		turn.ConversationID = uuid.NewString()
	}
	turn.Mode = modes.Resolve(turn)
	span.SetAttributes(attribute.String("turn.mode", string(turn.Mode)))

	contextBlock, hitInfo := o.loadContext(ctx, turn)

	response, degraded := o.generate(ctx, turn, contextBlock)

	flags := models.ImmediateFlags{}
	if !degraded {
		in := modes.ScanSignals(turn.Message)
		out := modes.ScanSignals(response)
		flags = models.ImmediateFlags{
			CrisisKeywordHit:   in.CrisisKeywordHit || out.CrisisKeywordHit,
			ResourcesMentioned: in.ResourcesMentioned || out.ResourcesMentioned,
		}
	}

	taskID := uuid.NewString()
	o.dispatcher.Dispatch(turn, taskID, response)

	log.Info().
		Str("user_id", turn.UserID).
		Str("conversation_id", turn.ConversationID).
		Str("mode", string(turn.Mode)).
		Str("task_id", taskID).
		Bool("cache_hit", hitInfo.Hit).
		Bool("degraded", degraded).
		Dur("latency", time.Since(start)).
		Msg("Turn processed")

	return &models.FastPathResult{
		Response:       response,
		Mode:           turn.Mode,
		ConversationID: turn.ConversationID,
		TaskID:         taskID,
		Flags:          flags,
		ContextCache:   hitInfo,
		Degraded:       degraded,
	}, nil
}

// loadContext reads the best available context block: the enriched
// entry written by the previous turn's background group, then the
// conversation window the memory job cached. On a total miss the turn
// proceeds with the placeholder, uncached so it never shadows the
// entries the background group writes moments later; the fast path
// itself never touches the relational store.
func (o *Orchestrator) loadContext(ctx context.Context, turn models.Turn) (string, models.CacheHitInfo) {
	candidates := []cache.Key{
		{Kind: cache.KindEnriched, UserID: turn.UserID, ConversationID: turn.ConversationID, Mode: turn.Mode},
		{Kind: cache.KindConversation, UserID: turn.UserID, ConversationID: turn.ConversationID},
	}

	raw, key, hit, err := o.store.GetWithFallback(ctx, candidates, func(context.Context) ([]byte, error) {
		return nil, errNoCachedContext
	})
	if err != nil {
		if !errors.Is(err, errNoCachedContext) {
			log.Warn().Err(err).Str("user_id", turn.UserID).Msg("Context load failed")
		}
		return noContextPlaceholder, models.CacheHitInfo{}
	}

	info := models.CacheHitInfo{Hit: hit}
	if hit {
		info.Key = key.String()
	}
	return string(raw), info
}

// ── Prompting ───────────────────────────────────────────────

const systemPrompt = "You are a warm, supportive mental-wellness companion. Listen first, " +
	"validate feelings, and never diagnose. Keep responses to a few sentences."

var modeInstructions = map[models.Mode]string{
	models.ModeGeneral:       "Respond conversationally and with empathy.",
	models.ModeActionPlan:    "Help the user move toward one small, concrete next step. Offer structure without pressure.",
	models.ModeVisualization: "Guide the user through a brief calming exercise woven into your response.",
}

func (o *Orchestrator) generate(ctx context.Context, turn models.Turn, contextBlock string) (string, bool) {
	prompt := fmt.Sprintf("Context:\n%s\n\nInstruction: %s\n\nUser: %s",
		contextBlock, modeInstructions[turn.Mode], turn.Message)

	response, err := o.model.Generate(ctx, prompt, llm.GenerationConfig{
		MaxTokens:   1024,
		Temperature: 0.7,
		System:      systemPrompt,
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", turn.UserID).Msg("Fast-path model call failed")
		return fallbackResponse, true
	}
	return response, false
}
