package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Alhassan777/Nura-AI-sub001/internal/cache"
	"github.com/Alhassan777/Nura-AI-sub001/internal/history"
	"github.com/Alhassan777/Nura-AI-sub001/internal/llm"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// fakeModel returns canned output per prompt substring, with an
// optional error for prompts matching failOn.
type fakeModel struct {
	output string
	failOn string
	err    error
}

func (f *fakeModel) Generate(ctx context.Context, prompt string, cfg llm.GenerationConfig) (string, error) {
	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return "", f.err
	}
	return f.output, nil
}

type fakeMemory struct {
	storeErr   error
	contextErr error
	uc         models.UserContext
	stored     int
}

func (f *fakeMemory) StoreExchange(ctx context.Context, turn models.Turn, response string) (models.MemoryWriteResult, error) {
	if f.storeErr != nil {
		return models.MemoryWriteResult{}, f.storeErr
	}
	f.stored++
	return models.MemoryWriteResult{Stored: true, ID: "m-1"}, nil
}

func (f *fakeMemory) GetContext(ctx context.Context, userID, conversationID string) (models.UserContext, error) {
	if f.contextErr != nil {
		return models.UserContext{}, f.contextErr
	}
	return f.uc, nil
}

type fakeEscalator struct {
	calls  int
	result *models.EscalationResult
}

func (f *fakeEscalator) Escalate(ctx context.Context, userID string, assessment models.CrisisAssessment) *models.EscalationResult {
	f.calls++
	if f.result != nil {
		return f.result
	}
	return &models.EscalationResult{InterventionID: "iv-1", State: "LOGGED_SUCCESS", OutreachSucceeded: true}
}

func testStore() *cache.Store {
	ttls := cache.TTLClasses{
		Conversation: time.Hour,
		Semantic:     time.Hour,
		Summary:      time.Hour,
		Enriched:     time.Hour,
		Task:         time.Hour,
	}
	return cache.NewStore(cache.NewMemoryBackend(), ttls)
}

func calmAssessment() string {
	return `{"severity": "none", "summary": "no crisis indicators", "requires_outreach": false}`
}

func testTurn() models.Turn {
	return models.Turn{UserID: "u1", ConversationID: "conv-1", Message: "I had an okay day", Mode: models.ModeGeneral}
}

func newTestCoordinator(model llm.Client, mem MemoryClient, esc Escalator) (*Coordinator, *cache.Store) {
	store := testStore()
	c := New(store, model, mem, history.NewMemoryReader(), esc, 10)
	return c, store
}

func TestDispatch_PlaceholderVisibleImmediately(t *testing.T) {
	// A model that blocks until released keeps the group in flight.
	release := make(chan struct{})
	blocking := blockingModel{release: release, output: calmAssessment()}
	c, _ := newTestCoordinator(&blocking, &fakeMemory{}, &fakeEscalator{})

	h := c.Dispatch(testTurn(), "task-1", "glad to hear it")

	env, err := c.GetResult(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("GetResult() during processing error = %v", err)
	}
	if env.Status != models.TaskProcessing || env.TaskID != "task-1" {
		t.Fatalf("GetResult() = %+v, want processing placeholder", env)
	}

	close(release)
	if _, err := h.Join(context.Background()); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
}

func TestDispatch_AllJobsSettle(t *testing.T) {
	mem := &fakeMemory{uc: models.UserContext{Digest: "tends to journal at night"}}
	c, _ := newTestCoordinator(&fakeModel{output: calmAssessment()}, mem, &fakeEscalator{})

	h := c.Dispatch(testTurn(), "task-1", "glad to hear it")
	env, err := h.Join(context.Background())
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if env.Status != models.TaskCompleted || env.CompletedAt == nil {
		t.Fatalf("envelope = %+v, want completed with timestamp", env)
	}
	if len(env.Jobs) != len(models.AllJobs) {
		t.Fatalf("envelope has %d job slots, want %d", len(env.Jobs), len(models.AllJobs))
	}
	for _, name := range models.AllJobs {
		r, ok := env.Jobs[name]
		if !ok {
			t.Fatalf("envelope missing job %s", name)
		}
		if r.Status != models.JobOK {
			t.Fatalf("job %s = %+v, want ok", name, r)
		}
	}
	if mem.stored != 1 {
		t.Fatalf("memory stored %d exchanges, want 1", mem.stored)
	}
}

func TestDispatch_JobFailureIsolated(t *testing.T) {
	mem := &fakeMemory{storeErr: errors.New("memory service down")}
	c, _ := newTestCoordinator(&fakeModel{output: calmAssessment()}, mem, &fakeEscalator{})

	h := c.Dispatch(testTurn(), "task-1", "ok")
	env, _ := h.Join(context.Background())

	if env.Status != models.TaskCompleted {
		t.Fatalf("envelope status = %s, want completed despite job failure", env.Status)
	}
	memJob := env.Jobs[models.JobMemory]
	if memJob.Status != models.JobFailed || memJob.Error == "" {
		t.Fatalf("memory job = %+v, want failed with error", memJob)
	}
	for _, name := range []models.JobName{models.JobCrisis, models.JobSuggestion, models.JobEnrichment} {
		if env.Jobs[name].Status != models.JobOK {
			t.Fatalf("job %s = %+v, want ok despite sibling failure", name, env.Jobs[name])
		}
	}
}

func TestDispatch_SevereAssessmentEscalatesInline(t *testing.T) {
	severe := `{"severity": "critical", "summary": "explicit self-harm intent", "requires_outreach": true}`
	esc := &fakeEscalator{}
	c, _ := newTestCoordinator(&fakeModel{output: severe}, &fakeMemory{}, esc)

	h := c.Dispatch(testTurn(), "task-1", "ok")
	env, _ := h.Join(context.Background())

	if esc.calls != 1 {
		t.Fatalf("escalator called %d times, want 1", esc.calls)
	}
	crisisJob := env.Jobs[models.JobCrisis]
	if crisisJob.Status != models.JobOK {
		t.Fatalf("crisis job = %+v, want ok", crisisJob)
	}
	if crisisJob.Crisis == nil || crisisJob.Crisis.Escalation == nil {
		t.Fatalf("crisis job = %+v, want escalation folded in", crisisJob)
	}
	if crisisJob.Crisis.Severity != "critical" || !crisisJob.Crisis.RequiresOutreach {
		t.Fatalf("crisis outcome = %+v, want critical with outreach", crisisJob.Crisis)
	}
}

func TestDispatch_CalmTurnDoesNotEscalate(t *testing.T) {
	esc := &fakeEscalator{}
	c, _ := newTestCoordinator(&fakeModel{output: calmAssessment()}, &fakeMemory{}, esc)

	h := c.Dispatch(testTurn(), "task-1", "ok")
	h.Join(context.Background())

	if esc.calls != 0 {
		t.Fatalf("escalator called %d times on calm turn, want 0", esc.calls)
	}
}

func TestDispatch_EnrichmentWritesCacheKey(t *testing.T) {
	mem := &fakeMemory{uc: models.UserContext{Digest: "prefers short check-ins"}}
	c, store := newTestCoordinator(&fakeModel{output: calmAssessment()}, mem, &fakeEscalator{})

	turn := testTurn()
	h := c.Dispatch(turn, "task-1", "ok")
	env, _ := h.Join(context.Background())

	enrJob := env.Jobs[models.JobEnrichment]
	if enrJob.Status != models.JobOK || enrJob.Enrichment == nil || !enrJob.Enrichment.Written {
		t.Fatalf("enrichment job = %+v, want written", enrJob)
	}

	key := cache.Key{Kind: cache.KindEnriched, UserID: turn.UserID, ConversationID: turn.ConversationID, Mode: turn.Mode}
	raw, ok := store.Get(context.Background(), key)
	if !ok {
		t.Fatalf("enriched key %s not in cache", key.String())
	}
	if !strings.Contains(string(raw), "prefers short check-ins") {
		t.Fatalf("enriched content = %q, want memory digest included", string(raw))
	}
}

func TestDispatch_MemoryJobCachesConversationWindow(t *testing.T) {
	c, store := newTestCoordinator(&fakeModel{output: calmAssessment()}, &fakeMemory{}, &fakeEscalator{})

	turn := testTurn()
	h := c.Dispatch(turn, "task-1", "glad to hear it")
	env, _ := h.Join(context.Background())

	memJob := env.Jobs[models.JobMemory]
	if memJob.Status != models.JobOK || memJob.Memory == nil || !memJob.Memory.HistoryAppended {
		t.Fatalf("memory job = %+v, want history appended", memJob)
	}

	// The next turn's fast path falls back to this entry when no
	// enriched context exists yet.
	convKey := cache.Key{Kind: cache.KindConversation, UserID: turn.UserID, ConversationID: turn.ConversationID}
	raw, ok := store.Get(context.Background(), convKey)
	if !ok {
		t.Fatalf("conversation window key %s not in cache", convKey.String())
	}
	window := string(raw)
	if !strings.Contains(window, turn.Message) || !strings.Contains(window, "glad to hear it") {
		t.Fatalf("cached window = %q, want both sides of the exchange", window)
	}
}

func TestGetResult_CompletedEnvelopeFromCache(t *testing.T) {
	c, store := newTestCoordinator(&fakeModel{output: calmAssessment()}, &fakeMemory{}, &fakeEscalator{})

	h := c.Dispatch(testTurn(), "task-1", "ok")
	h.Join(context.Background())

	raw, ok := store.Get(context.Background(), cache.TaskKey("task-1"))
	if !ok {
		t.Fatal("completed envelope not cached")
	}
	var cached models.TaskEnvelope
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatalf("cached envelope unmarshal: %v", err)
	}
	if cached.Status != models.TaskCompleted {
		t.Fatalf("cached envelope status = %s, want completed", cached.Status)
	}

	env, err := c.GetResult(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if env.Status != models.TaskCompleted {
		t.Fatalf("GetResult() status = %s, want completed", env.Status)
	}
}

func TestGetResult_UnknownTask(t *testing.T) {
	c, _ := newTestCoordinator(&fakeModel{output: calmAssessment()}, &fakeMemory{}, &fakeEscalator{})
	if _, err := c.GetResult(context.Background(), "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("GetResult() error = %v, want ErrTaskNotFound", err)
	}
}

// blockingModel parks every Generate call until release closes.
type blockingModel struct {
	release chan struct{}
	output  string
}

func (b *blockingModel) Generate(ctx context.Context, prompt string, cfg llm.GenerationConfig) (string, error) {
	<-b.release
	return b.output, nil
}
