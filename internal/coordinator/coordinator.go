// Package coordinator runs the background half of turn processing: a
// fixed battery of analysis jobs fanned out per turn, aggregated into a
// task envelope that clients poll by task id.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alhassan777/Nura-AI-sub001/internal/cache"
	"github.com/Alhassan777/Nura-AI-sub001/internal/history"
	"github.com/Alhassan777/Nura-AI-sub001/internal/llm"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// ErrTaskNotFound is returned when a task id is unknown to both the
// cache and the live registry.
var ErrTaskNotFound = errors.New("coordinator: task not found")

// ── Collaborator interfaces ─────────────────────────────────

// MemoryClient is the slice of the memory service the jobs need.
type MemoryClient interface {
	StoreExchange(ctx context.Context, turn models.Turn, response string) (models.MemoryWriteResult, error)
	GetContext(ctx context.Context, userID, conversationID string) (models.UserContext, error)
}

// Escalator runs the crisis escalation state machine.
type Escalator interface {
	Escalate(ctx context.Context, userID string, assessment models.CrisisAssessment) *models.EscalationResult
}

// ── Task handles ────────────────────────────────────────────

// Handle tracks one dispatched job group. Join blocks until the group
// settles; Snapshot returns the current envelope without blocking.
type Handle struct {
	TaskID string

	done chan struct{}

	mu       sync.RWMutex
	envelope models.TaskEnvelope
}

// Snapshot returns the current envelope state.
func (h *Handle) Snapshot() models.TaskEnvelope {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.envelope
}

// Join blocks until the group settles or ctx is cancelled.
func (h *Handle) Join(ctx context.Context) (models.TaskEnvelope, error) {
	select {
	case <-h.done:
		return h.Snapshot(), nil
	case <-ctx.Done():
		return models.TaskEnvelope{}, ctx.Err()
	}
}

func (h *Handle) settle(envelope models.TaskEnvelope) {
	h.mu.Lock()
	h.envelope = envelope
	h.mu.Unlock()
	close(h.done)
}

// ── Coordinator ─────────────────────────────────────────────

// Coordinator dispatches and tracks background job groups.
type Coordinator struct {
	store      *cache.Store
	model      llm.Client
	memory     MemoryClient
	history    history.Reader
	escalator  Escalator
	windowSize int

	regMu    sync.Mutex
	registry map[string]*Handle

	tracer trace.Tracer
}

// New creates a Coordinator.
func New(store *cache.Store, model llm.Client, memory MemoryClient, hist history.Reader, escalator Escalator, windowSize int) *Coordinator {
	if windowSize <= 0 {
		windowSize = 10
	}
	return &Coordinator{
		store:      store,
		model:      model,
		memory:     memory,
		history:    hist,
		escalator:  escalator,
		windowSize: windowSize,
		registry:   make(map[string]*Handle),
		tracer:     otel.Tracer("coordinator"),
	}
}

// Dispatch registers the job group and writes the processing
// placeholder before any job starts, so a poll issued immediately after
// the synchronous response returns finds a well-formed envelope. The
// jobs themselves run on a detached context: client disconnects never
// cancel background analysis.
func (c *Coordinator) Dispatch(turn models.Turn, taskID, response string) *Handle {
	envelope := models.TaskEnvelope{
		TaskID:    taskID,
		UserID:    turn.UserID,
		Mode:      turn.Mode,
		StartedAt: time.Now().UTC(),
		Status:    models.TaskProcessing,
		Jobs:      map[models.JobName]models.JobResult{},
	}

	h := &Handle{TaskID: taskID, done: make(chan struct{}), envelope: envelope}

	c.regMu.Lock()
	c.pruneLocked()
	c.registry[taskID] = h
	c.regMu.Unlock()

	c.writeEnvelope(context.Background(), envelope)

	go c.run(turn, response, h)
	return h
}

// GetResult returns the envelope for a task id: the cached copy when
// present, otherwise the live registry snapshot.
func (c *Coordinator) GetResult(ctx context.Context, taskID string) (*models.TaskEnvelope, error) {
	if raw, ok := c.store.Get(ctx, cache.TaskKey(taskID)); ok {
		var env models.TaskEnvelope
		if err := json.Unmarshal(raw, &env); err == nil {
			return &env, nil
		}
		log.Warn().Str("task_id", taskID).Msg("Corrupt task envelope in cache")
	}

	c.regMu.Lock()
	h, ok := c.registry[taskID]
	c.regMu.Unlock()
	if ok {
		env := h.Snapshot()
		return &env, nil
	}
	return nil, ErrTaskNotFound
}

// run executes the five jobs concurrently and settles the envelope with
// exactly one more cache write.
func (c *Coordinator) run(turn models.Turn, response string, h *Handle) {
	ctx, span := c.tracer.Start(context.Background(), "coordinator.run",
		trace.WithAttributes(
			attribute.String("task.id", h.TaskID),
			attribute.String("turn.mode", string(turn.Mode)),
		))
	defer span.End()

	jobs := map[models.JobName]jobFunc{
		models.JobMemory:     c.memoryJob,
		models.JobCrisis:     c.crisisJob,
		models.JobModeWork:   c.modeWorkJob,
		models.JobSuggestion: c.suggestionJob,
		models.JobEnrichment: c.enrichmentJob,
	}

	var (
		mu      sync.Mutex
		results = make(map[models.JobName]models.JobResult, len(jobs))
		wg      sync.WaitGroup
	)

	for name, fn := range jobs {
		wg.Add(1)
		go func(name models.JobName, fn jobFunc) {
			defer wg.Done()
			r := c.runJob(ctx, name, fn, turn, response)
			mu.Lock()
			results[name] = r
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	envelope := h.Snapshot()
	envelope.Jobs = results
	envelope.Status = models.TaskCompleted
	completed := time.Now().UTC()
	envelope.CompletedAt = &completed

	// Aggregation itself is the only thing that can mark the whole
	// group errored; individual job failures stay in their slots.
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("task_id", h.TaskID).Interface("panic", r).Msg("Envelope aggregation panicked")
				envelope.Status = models.TaskError
			}
		}()
		c.writeEnvelope(ctx, envelope)
	}()

	h.settle(envelope)

	failed := 0
	for _, r := range results {
		if r.Status == models.JobFailed {
			failed++
		}
	}
	log.Info().
		Str("task_id", h.TaskID).
		Str("user_id", turn.UserID).
		Int("jobs", len(results)).
		Int("failed", failed).
		Dur("elapsed", completed.Sub(envelope.StartedAt)).
		Msg("Background job group completed")
}

type jobFunc func(ctx context.Context, turn models.Turn, response string) (models.JobResult, error)

// runJob isolates one job: its error or panic lands in its own result
// slot and never disturbs siblings.
func (c *Coordinator) runJob(ctx context.Context, name models.JobName, fn jobFunc, turn models.Turn, response string) (result models.JobResult) {
	jobCtx, span := c.tracer.Start(ctx, "job."+string(name))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", string(name)).Interface("panic", r).Msg("Background job panicked")
			result = models.JobResult{Status: models.JobFailed, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	r, err := fn(jobCtx, turn, response)
	if err != nil {
		log.Warn().Err(err).Str("job", string(name)).Msg("Background job failed")
		return models.JobResult{Status: models.JobFailed, Error: err.Error()}
	}
	r.Status = models.JobOK
	return r
}

func (c *Coordinator) writeEnvelope(ctx context.Context, envelope models.TaskEnvelope) {
	raw, err := json.Marshal(envelope)
	if err != nil {
		log.Error().Err(err).Str("task_id", envelope.TaskID).Msg("Envelope marshal failed")
		return
	}
	c.store.Set(ctx, cache.TaskKey(envelope.TaskID), raw)
}

// pruneLocked drops settled handles older than the envelope TTL. Caller
// holds regMu.
func (c *Coordinator) pruneLocked() {
	cutoff := time.Now().UTC().Add(-cache.DefaultTaskTTL)
	for id, h := range c.registry {
		select {
		case <-h.done:
			if env := h.Snapshot(); env.CompletedAt != nil && env.CompletedAt.Before(cutoff) {
				delete(c.registry, id)
			}
		default:
		}
	}
}
