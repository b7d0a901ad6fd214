// Package crisis runs the escalation state machine that turns a severe
// assessment into outreach to a trusted contact. Every run terminates
// in a result carrying actionable guidance: there is no failure path
// that leaves the user with nothing.
package crisis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/outreach"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// ── States ──────────────────────────────────────────────────

const (
	StateAssessed           = "ASSESSED"
	StateContactsQueried    = "CONTACTS_QUERIED"
	StateNoContacts         = "NO_CONTACTS_TERMINAL"
	StateContactSelected    = "CONTACT_SELECTED"
	StateOutreachAttempted  = "OUTREACH_ATTEMPTED"
	StateLoggedSuccess      = "LOGGED_SUCCESS"
	StateLoggedFailure      = "LOGGED_FAILURE"
	StateTechnicalFailure   = "TECHNICAL_FAILURE_TERMINAL"
)

// initiatorTag marks escalations started by the background pipeline
// rather than a human operator.
const initiatorTag = "system/auto-escalation"

// ── Collaborator interfaces ─────────────────────────────────

// Directory is the slice of the contacts directory the escalator needs.
type Directory interface {
	ListEmergencyContacts(ctx context.Context, userID string) ([]models.TrustedContact, error)
	LogAttempt(ctx context.Context, rec models.InterventionRecord) error
}

// Dispatcher sends one composed message to one contact.
type Dispatcher interface {
	Dispatch(ctx context.Context, contact *models.TrustedContact, channel models.Channel, msg outreach.Message) error
}

// ── Escalator ───────────────────────────────────────────────

// Escalator walks the escalation state machine.
type Escalator struct {
	directory  Directory
	dispatcher Dispatcher
}

// NewEscalator creates an Escalator.
func NewEscalator(directory Directory, dispatcher Dispatcher) *Escalator {
	return &Escalator{directory: directory, dispatcher: dispatcher}
}

// Escalate runs the state machine for one assessment. It never returns
// an error: every outcome, including panics in collaborators, is folded
// into the result.
func (e *Escalator) Escalate(ctx context.Context, userID string, assessment models.CrisisAssessment) (result *models.EscalationResult) {
	interventionID := uuid.NewString()
	state := StateAssessed

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("intervention_id", interventionID).
				Str("state", state).
				Interface("panic", r).
				Msg("Escalation panicked")
			result = e.technicalFailure(ctx, interventionID, userID, fmt.Sprintf("panic in state %s: %v", state, r))
		}
	}()

	log.Info().
		Str("intervention_id", interventionID).
		Str("user_id", userID).
		Str("severity", assessment.Severity.String()).
		Msg("Escalation started")

	contacts, err := e.directory.ListEmergencyContacts(ctx, userID)
	if err != nil {
		return e.technicalFailure(ctx, interventionID, userID, fmt.Sprintf("contact query failed: %v", err))
	}
	state = StateContactsQueried

	if len(contacts) == 0 {
		return e.noContacts(ctx, interventionID, userID)
	}

	contact := selectContact(contacts)
	channel := SelectChannel(contact)
	state = StateContactSelected

	backups := backupSummaries(contacts, contact.ID)
	msg := ComposeMessage(assessment)

	dispatchErr := e.dispatcher.Dispatch(ctx, contact, channel, msg)
	state = StateOutreachAttempted

	outcome := models.OutcomeSucceeded
	reason := ""
	if dispatchErr != nil {
		outcome = models.OutcomeFailed
		reason = dispatchErr.Error()
		log.Warn().Err(dispatchErr).
			Str("intervention_id", interventionID).
			Str("contact_id", contact.ID).
			Str("channel", string(channel)).
			Msg("Crisis outreach failed")
	}

	rec := models.InterventionRecord{
		InterventionID: interventionID,
		UserID:         userID,
		ContactID:      contact.ID,
		Channel:        channel,
		Outcome:        outcome,
		ReasonCode:     reason,
		Initiator:      initiatorTag,
		Message:        msg.Body,
		Metadata: map[string]any{
			"severity":        assessment.Severity.String(),
			"backup_contacts": backups,
		},
	}
	if logErr := e.directory.LogAttempt(ctx, rec); logErr != nil {
		// Outreach already happened; a lost audit record degrades the
		// escalation but does not reverse it.
		log.Error().Err(logErr).
			Str("intervention_id", interventionID).
			Msg("Intervention logging failed")
	}

	if dispatchErr != nil {
		state = StateLoggedFailure
	} else {
		state = StateLoggedSuccess
	}

	res := &models.EscalationResult{
		InterventionID:     interventionID,
		State:              state,
		Outcome:            outcome,
		OutreachSucceeded:  dispatchErr == nil,
		Contact:            displayFor(contact, channel),
		BackupContacts:     backups,
		ImmediateResources: ResourceBundle(),
		NextSteps:          nextSteps(dispatchErr == nil, contact.DisplayName, channel),
	}
	if dispatchErr != nil {
		res.Retryable = true
	}

	log.Info().
		Str("intervention_id", interventionID).
		Str("state", state).
		Bool("outreach_succeeded", res.OutreachSucceeded).
		Msg("Escalation finished")
	return res
}

// ── Terminal builders ───────────────────────────────────────

func (e *Escalator) noContacts(ctx context.Context, interventionID, userID string) *models.EscalationResult {
	rec := models.InterventionRecord{
		InterventionID: interventionID,
		UserID:         userID,
		Outcome:        models.OutcomeNoContacts,
		Initiator:      initiatorTag,
	}
	if err := e.directory.LogAttempt(ctx, rec); err != nil {
		log.Error().Err(err).Str("intervention_id", interventionID).Msg("Intervention logging failed")
	}

	return &models.EscalationResult{
		InterventionID:     interventionID,
		State:              StateNoContacts,
		Outcome:            models.OutcomeNoContacts,
		ImmediateResources: ResourceBundle(),
		NextSteps: []string{
			"Reach out to one of the immediate resources below right now.",
			"Add a trusted contact in your safety settings so we can reach someone for you next time.",
			"If you are in immediate danger, call 911.",
		},
	}
}

func (e *Escalator) technicalFailure(ctx context.Context, interventionID, userID, reason string) *models.EscalationResult {
	rec := models.InterventionRecord{
		InterventionID: interventionID,
		UserID:         userID,
		Outcome:        models.OutcomeTechnicalFailure,
		ReasonCode:     reason,
		Initiator:      initiatorTag,
	}
	if err := e.directory.LogAttempt(ctx, rec); err != nil {
		log.Error().Err(err).Str("intervention_id", interventionID).Msg("Intervention logging failed")
	}

	return &models.EscalationResult{
		InterventionID:     interventionID,
		State:              StateTechnicalFailure,
		Outcome:            models.OutcomeTechnicalFailure,
		ImmediateResources: ResourceBundle(),
		NextSteps: []string{
			"We could not complete automatic outreach. Please use one of the immediate resources below.",
			"If you are in immediate danger, call 911.",
		},
		Retryable: true,
	}
}

// ── Selection ───────────────────────────────────────────────

// selectContact picks the lowest priority rank. The directory returns
// contacts ordered, but selection does not depend on that.
func selectContact(contacts []models.TrustedContact) *models.TrustedContact {
	best := 0
	for i := 1; i < len(contacts); i++ {
		if contacts[i].PriorityRank < contacts[best].PriorityRank {
			best = i
		}
	}
	return &contacts[best]
}

// SelectChannel applies the fixed channel preference restricted to the
// contact's allowed channels. A contact with no allowed channels gets
// voice: attempting a call is better than silently skipping outreach.
func SelectChannel(contact *models.TrustedContact) models.Channel {
	for _, ch := range models.ChannelPreference {
		if contact.Allows(ch) {
			return ch
		}
	}
	return models.ChannelVoice
}

// backupSummaries returns up to two alternates, excluding the selected
// contact.
func backupSummaries(contacts []models.TrustedContact, selectedID string) []models.BackupContact {
	var out []models.BackupContact
	for _, c := range contacts {
		if c.ID == selectedID {
			continue
		}
		out = append(out, models.BackupContact{Name: c.DisplayName, PriorityRank: c.PriorityRank})
		if len(out) == 2 {
			break
		}
	}
	return out
}

func displayFor(contact *models.TrustedContact, channel models.Channel) *models.ContactDisplay {
	d := &models.ContactDisplay{Name: contact.DisplayName, Channel: channel}
	if channel == models.ChannelEmail {
		d.Address = contact.Email
	} else {
		d.Number = contact.PhoneNumber
	}
	return d
}

func nextSteps(succeeded bool, contactName string, channel models.Channel) []string {
	if succeeded {
		return []string{
			fmt.Sprintf("%s has been contacted via %s and may reach out to you shortly.", contactName, channel),
			"Stay where you are and keep your phone nearby.",
			"If you feel unsafe right now, use one of the immediate resources below.",
		}
	}
	return []string{
		fmt.Sprintf("We tried to reach %s via %s but could not get through.", contactName, channel),
		"Please use one of the immediate resources below right now.",
		"If you are in immediate danger, call 911.",
	}
}

// ResourceBundle is the fixed immediate-help list attached to every
// escalation result.
func ResourceBundle() []models.Resource {
	return []models.Resource{
		{Name: "988 Suicide & Crisis Lifeline", Contact: "988", Note: "24/7 call or text"},
		{Name: "Crisis Text Line", Contact: "Text HOME to 741741", Note: "24/7 text support"},
		{Name: "Emergency Services", Contact: "911", Note: "Immediate danger"},
	}
}

// timestamp hook for the composer, swapped in tests.
var now = func() time.Time { return time.Now().UTC() }
