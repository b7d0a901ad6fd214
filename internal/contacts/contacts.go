// Package contacts manages each user's emergency contact list and the
// audit log of crisis intervention attempts.
package contacts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("contacts: not found")

// Directory is the contact and intervention-log store the crisis
// pipeline depends on.
type Directory interface {
	// ListEmergencyContacts returns the user's contacts that opted in
	// to emergency outreach, ordered by priority rank ascending.
	ListEmergencyContacts(ctx context.Context, userID string) ([]models.TrustedContact, error)

	// LogAttempt records one intervention attempt. Writing the same
	// intervention ID twice updates the existing record in place.
	LogAttempt(ctx context.Context, rec models.InterventionRecord) error

	// GetIntervention returns a previously logged record.
	GetIntervention(ctx context.Context, interventionID string) (models.InterventionRecord, error)

	// ListInterventions returns the user's intervention history, newest
	// first.
	ListInterventions(ctx context.Context, userID string) ([]models.InterventionRecord, error)
}

// MemoryDirectory is an in-memory Directory for development and tests.
type MemoryDirectory struct {
	mu            sync.RWMutex
	contacts      map[string][]models.TrustedContact     // userID -> contacts
	interventions map[string]models.InterventionRecord   // interventionID -> record
	byUser        map[string][]string                    // userID -> intervention IDs, append order
}

// NewMemoryDirectory creates an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		contacts:      make(map[string][]models.TrustedContact),
		interventions: make(map[string]models.InterventionRecord),
		byUser:        make(map[string][]string),
	}
}

// SeedContacts replaces the user's contact list. Intended for wiring up
// fixtures and local development.
func (d *MemoryDirectory) SeedContacts(userID string, list []models.TrustedContact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]models.TrustedContact, len(list))
	copy(cp, list)
	d.contacts[userID] = cp
}

func (d *MemoryDirectory) ListEmergencyContacts(ctx context.Context, userID string) ([]models.TrustedContact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []models.TrustedContact
	for _, c := range d.contacts[userID] {
		if c.EmergencyEligible {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityRank < out[j].PriorityRank })
	return out, nil
}

func (d *MemoryDirectory) LogAttempt(ctx context.Context, rec models.InterventionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.interventions[rec.InterventionID]; !exists {
		d.byUser[rec.UserID] = append(d.byUser[rec.UserID], rec.InterventionID)
	}
	d.interventions[rec.InterventionID] = rec

	log.Info().
		Str("intervention_id", rec.InterventionID).
		Str("user_id", rec.UserID).
		Str("outcome", string(rec.Outcome)).
		Msg("Intervention attempt logged")
	return nil
}

func (d *MemoryDirectory) GetIntervention(ctx context.Context, interventionID string) (models.InterventionRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.interventions[interventionID]
	if !ok {
		return models.InterventionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (d *MemoryDirectory) ListInterventions(ctx context.Context, userID string) ([]models.InterventionRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := d.byUser[userID]
	out := make([]models.InterventionRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, d.interventions[ids[i]])
	}
	return out, nil
}
