// Package models defines the shared data model for the Nura conversational
// core: turns, fast-path results, background task envelopes, crisis
// assessment and escalation types, trusted contacts, and the payloads
// exchanged with the memory and outreach collaborators.
package models

import (
	"time"
)

// ── Modes ───────────────────────────────────────────────────

// Mode selects how a turn is processed beyond the shared fast path.
type Mode string

const (
	// ModeGeneral is the default conversational mode.
	ModeGeneral Mode = "general"

	// ModeActionPlan focuses the turn on concrete, stepwise planning.
	ModeActionPlan Mode = "action_plan"

	// ModeVisualization focuses the turn on guided imagery exercises.
	ModeVisualization Mode = "visualization"
)

// KnownModes lists every mode the detector can resolve to.
var KnownModes = []Mode{ModeGeneral, ModeActionPlan, ModeVisualization}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	for _, k := range KnownModes {
		if m == k {
			return true
		}
	}
	return false
}

// ── Turn ────────────────────────────────────────────────────

// Turn is one user message plus its processing context. It is immutable
// once received and identifies exactly one fast-path execution and one
// background job group.
type Turn struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Mode           Mode   `json:"mode,omitempty"`
}

// ImmediateFlags are the cheap keyword pre-signals computed on the fast
// path. They are heuristics only; the authoritative crisis signal comes
// from the background assessment job.
type ImmediateFlags struct {
	CrisisKeywordHit   bool `json:"crisis_keyword_hit"`
	ResourcesMentioned bool `json:"resources_mentioned"`
}

// CacheHitInfo records which context key (if any) served the fast path.
type CacheHitInfo struct {
	Hit bool   `json:"hit"`
	Key string `json:"key,omitempty"`
}

// FastPathResult is what the synchronous half of turn processing returns.
type FastPathResult struct {
	Response       string         `json:"response"`
	Mode           Mode           `json:"mode"`
	ConversationID string         `json:"conversation_id"`
	TaskID         string         `json:"task_id"`
	Flags          ImmediateFlags `json:"flags"`
	ContextCache   CacheHitInfo   `json:"context_cache"`
	Degraded       bool           `json:"degraded,omitempty"`
}

// ── Background task envelope ────────────────────────────────

// TaskStatus is the lifecycle state of a background job group.
type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// JobName identifies one of the fixed background analysis jobs.
type JobName string

const (
	JobMemory     JobName = "memory"
	JobCrisis     JobName = "crisis"
	JobModeWork   JobName = "mode_processing"
	JobSuggestion JobName = "mode_suggestion"
	JobEnrichment JobName = "context_enrichment"
)

// AllJobs is the fixed battery run for every turn, in no guaranteed order.
var AllJobs = []JobName{JobMemory, JobCrisis, JobModeWork, JobSuggestion, JobEnrichment}

// JobStatus is the outcome of a single background job.
type JobStatus string

const (
	JobOK     JobStatus = "ok"
	JobFailed JobStatus = "error"
)

// MemoryOutcome reports the memory-persistence job: whether the memory
// service accepted the exchange and whether history kept up.
type MemoryOutcome struct {
	Stored          bool   `json:"stored"`
	MemoryID        string `json:"memory_id,omitempty"`
	HistoryAppended bool   `json:"history_appended"`
}

// CrisisOutcome reports the crisis-assessment job, including any
// escalation it ran inline.
type CrisisOutcome struct {
	Severity           string            `json:"severity"`
	Summary            string            `json:"summary,omitempty"`
	RequiresOutreach   bool              `json:"requires_outreach"`
	AssessmentDegraded bool              `json:"assessment_degraded,omitempty"`
	Escalation         *EscalationResult `json:"escalation,omitempty"`
}

// ModeWorkOutcome carries the mode-specific deep-processing output.
// Exactly one field is set, matching the turn's mode.
type ModeWorkOutcome struct {
	ActionPlan          string `json:"action_plan,omitempty"`
	VisualizationScript string `json:"visualization_script,omitempty"`
	Observations        string `json:"observations,omitempty"`
}

// SuggestionOutcome is the alternate-mode scoring result. A zero score
// means no alternate mode fit better than the current one.
type SuggestionOutcome struct {
	SuggestedMode Mode `json:"suggested_mode"`
	Score         int  `json:"score"`
}

// EnrichmentOutcome reports the next-turn context writes.
type EnrichmentOutcome struct {
	Written bool   `json:"written"`
	Key     string `json:"key,omitempty"`
	Bytes   int    `json:"bytes,omitempty"`
}

// JobResult is the settled outcome of one background job: its status
// plus the typed payload for its kind. A failing job carries its error
// message here and never invalidates sibling results.
type JobResult struct {
	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`

	Memory     *MemoryOutcome     `json:"memory,omitempty"`
	Crisis     *CrisisOutcome     `json:"crisis,omitempty"`
	ModeWork   *ModeWorkOutcome   `json:"mode_work,omitempty"`
	Suggestion *SuggestionOutcome `json:"suggestion,omitempty"`
	Enrichment *EnrichmentOutcome `json:"enrichment,omitempty"`
}

// TaskEnvelope is the aggregated, polled result of one turn's background
// job group. It is written once with status=processing at dispatch and
// exactly once more when all jobs settle.
type TaskEnvelope struct {
	TaskID      string                `json:"task_id"`
	UserID      string                `json:"user_id"`
	Mode        Mode                  `json:"mode"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Status      TaskStatus            `json:"status"`
	Jobs        map[JobName]JobResult `json:"jobs"`
}

// ── Crisis assessment ───────────────────────────────────────

// SeverityLevel is the internal crisis assessment tier. Higher is worse.
type SeverityLevel int

const (
	SeverityNone SeverityLevel = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityCritical
)

// String returns the wire name of the severity level.
func (s SeverityLevel) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityHigh:
		return "high"
	case SeverityModerate:
		return "moderate"
	case SeverityLow:
		return "low"
	default:
		return "none"
	}
}

// ParseSeverity maps a wire name back to a severity level. Unknown
// strings parse as none.
func ParseSeverity(s string) SeverityLevel {
	switch s {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "moderate":
		return SeverityModerate
	case "low":
		return SeverityLow
	default:
		return SeverityNone
	}
}

// Banner maps internal tiers to the user-facing escalation label.
// Everything below high collapses to moderate: by the time a banner is
// rendered, an escalation is already underway.
func (s SeverityLevel) Banner() string {
	switch {
	case s >= SeverityCritical:
		return "CRITICAL"
	case s >= SeverityHigh:
		return "HIGH"
	default:
		return "MODERATE"
	}
}

// CrisisAssessment is the model-based (not keyword) severity judgment
// produced by the background crisis job.
type CrisisAssessment struct {
	Severity         SeverityLevel `json:"severity"`
	Summary          string        `json:"summary"`
	RequiresOutreach bool          `json:"requires_outreach"`
	TriggerMessage   string        `json:"trigger_message"`
	AssessedAt       time.Time     `json:"assessed_at"`
}

// ── Trusted contacts & escalation ───────────────────────────

// Channel is an outreach channel for contacting a trusted person.
type Channel string

const (
	ChannelVoice Channel = "voice"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// ChannelPreference is the fixed order used when selecting how to reach
// a contact: voice first, then sms, then email.
var ChannelPreference = []Channel{ChannelVoice, ChannelSMS, ChannelEmail}

// TrustedContact is a user-designated person eligible to be notified
// during a crisis. Lower PriorityRank means contacted first.
type TrustedContact struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	DisplayName       string    `json:"display_name"`
	PriorityRank      int       `json:"priority_rank"`
	AllowedChannels   []Channel `json:"allowed_channels"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	Email             string    `json:"email,omitempty"`
	EmergencyEligible bool      `json:"emergency_eligible"`
}

// Allows reports whether the contact permits the given channel.
func (c *TrustedContact) Allows(ch Channel) bool {
	for _, a := range c.AllowedChannels {
		if a == ch {
			return true
		}
	}
	return false
}

// AddressFor returns the channel-appropriate address for the contact:
// the phone number for voice/sms, the email address for email.
func (c *TrustedContact) AddressFor(ch Channel) string {
	if ch == ChannelEmail {
		return c.Email
	}
	return c.PhoneNumber
}

// InterventionOutcome classifies how an escalation attempt ended.
type InterventionOutcome string

const (
	OutcomeAttempted        InterventionOutcome = "attempted"
	OutcomeSucceeded        InterventionOutcome = "succeeded"
	OutcomeFailed           InterventionOutcome = "failed"
	OutcomeNoContacts       InterventionOutcome = "no-contacts"
	OutcomeTechnicalFailure InterventionOutcome = "technical-failure"
)

// InterventionRecord is the append-only log entry for one escalation
// attempt. InterventionID is fresh per attempt.
type InterventionRecord struct {
	InterventionID string              `json:"intervention_id"`
	UserID         string              `json:"user_id"`
	ContactID      string              `json:"contact_id,omitempty"`
	Channel        Channel             `json:"channel,omitempty"`
	Outcome        InterventionOutcome `json:"outcome"`
	ReasonCode     string              `json:"reason_code,omitempty"`
	Initiator      string              `json:"initiator"`
	Message        string              `json:"message,omitempty"`
	Metadata       map[string]any      `json:"metadata,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ContactDisplay is the channel-appropriate contact info surfaced to the
// user after an outreach: number for voice/sms, address for email, never
// both.
type ContactDisplay struct {
	Name    string  `json:"name"`
	Channel Channel `json:"channel"`
	Number  string  `json:"number,omitempty"`
	Address string  `json:"address,omitempty"`
}

// BackupContact is a short summary of an alternate contact included in
// escalation metadata and results.
type BackupContact struct {
	Name         string `json:"name"`
	PriorityRank int    `json:"priority_rank"`
}

// Resource is one entry of the immediate-help bundle.
type Resource struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Note    string `json:"note,omitempty"`
}

// EscalationResult is what the crisis state machine always produces —
// every terminal state yields actionable guidance.
type EscalationResult struct {
	InterventionID     string              `json:"intervention_id"`
	State              string              `json:"state"`
	Outcome            InterventionOutcome `json:"outcome"`
	OutreachSucceeded  bool                `json:"outreach_succeeded"`
	Contact            *ContactDisplay     `json:"contact,omitempty"`
	BackupContacts     []BackupContact     `json:"backup_contacts,omitempty"`
	ImmediateResources []Resource          `json:"immediate_resources,omitempty"`
	NextSteps          []string            `json:"next_steps"`
	Retryable          bool                `json:"retryable,omitempty"`
}

// ── Memory service payloads ─────────────────────────────────

// MemoryWriteResult is the acknowledgment from the persistent memory
// service for a stored memory.
type MemoryWriteResult struct {
	Stored bool   `json:"stored"`
	ID     string `json:"id,omitempty"`
}

// UserContext is the merged short/long-term context returned by the
// persistent memory service.
type UserContext struct {
	ShortTerm []string `json:"short_term,omitempty"`
	LongTerm  []string `json:"long_term,omitempty"`
	Digest    string   `json:"digest,omitempty"`
}

// Empty reports whether the context carries nothing usable.
func (c *UserContext) Empty() bool {
	return c == nil || (len(c.ShortTerm) == 0 && len(c.LongTerm) == 0 && c.Digest == "")
}

// ── Conversation history ────────────────────────────────────

// StoredMessage is one persisted conversation message, read back when
// building the recent-message window.
type StoredMessage struct {
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
