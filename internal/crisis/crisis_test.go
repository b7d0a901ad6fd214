package crisis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
	"github.com/Alhassan777/Nura-AI-sub001/internal/outreach"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// fakeDirectory scripts the contacts query and records logged attempts.
type fakeDirectory struct {
	contacts []models.TrustedContact
	listErr  error
	logErr   error
	logged   []models.InterventionRecord
}

func (f *fakeDirectory) ListEmergencyContacts(ctx context.Context, userID string) ([]models.TrustedContact, error) {
	return f.contacts, f.listErr
}

func (f *fakeDirectory) LogAttempt(ctx context.Context, rec models.InterventionRecord) error {
	f.logged = append(f.logged, rec)
	return f.logErr
}

// fakeDispatcher records what was dispatched and can fail or panic.
type fakeDispatcher struct {
	err       error
	panicWith any
	contact   *models.TrustedContact
	channel   models.Channel
	msg       outreach.Message
	calls     int
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, contact *models.TrustedContact, channel models.Channel, msg outreach.Message) error {
	f.calls++
	f.contact = contact
	f.channel = channel
	f.msg = msg
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.err
}

func highAssessment() models.CrisisAssessment {
	return models.CrisisAssessment{
		Severity:         models.SeverityCritical,
		Summary:          "expressed intent to self-harm",
		RequiresOutreach: true,
		TriggerMessage:   "I can't do this anymore",
	}
}

func twoContacts() []models.TrustedContact {
	return []models.TrustedContact{
		{ID: "c1", UserID: "u1", DisplayName: "Alex", PriorityRank: 1, EmergencyEligible: true,
			AllowedChannels: []models.Channel{models.ChannelSMS, models.ChannelVoice}, PhoneNumber: "+15550001"},
		{ID: "c2", UserID: "u1", DisplayName: "Sam", PriorityRank: 2, EmergencyEligible: true,
			AllowedChannels: []models.Channel{models.ChannelEmail}, Email: "sam@example.com"},
	}
}

func TestEscalate_SuccessPath(t *testing.T) {
	dir := &fakeDirectory{contacts: twoContacts()}
	disp := &fakeDispatcher{}
	e := NewEscalator(dir, disp)

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if res.State != StateLoggedSuccess || !res.OutreachSucceeded {
		t.Fatalf("Escalate() state = %s succeeded = %v, want LOGGED_SUCCESS", res.State, res.OutreachSucceeded)
	}
	if disp.contact.ID != "c1" {
		t.Fatalf("dispatched to %s, want lowest-rank contact c1", disp.contact.ID)
	}
	if disp.channel != models.ChannelVoice {
		t.Fatalf("channel = %s, want voice preferred over sms", disp.channel)
	}
	if res.Contact == nil || res.Contact.Number != "+15550001" || res.Contact.Address != "" {
		t.Fatalf("contact display = %+v, want number only for voice", res.Contact)
	}
	if len(res.BackupContacts) != 1 || res.BackupContacts[0].Name != "Sam" {
		t.Fatalf("backup contacts = %+v, want [Sam]", res.BackupContacts)
	}
	if len(res.NextSteps) == 0 {
		t.Fatal("Escalate() returned no next steps")
	}
	if len(dir.logged) != 1 || dir.logged[0].Outcome != models.OutcomeSucceeded {
		t.Fatalf("logged = %+v, want one succeeded record", dir.logged)
	}
}

func TestEscalate_NoContactsTerminal(t *testing.T) {
	dir := &fakeDirectory{}
	disp := &fakeDispatcher{}
	e := NewEscalator(dir, disp)

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if res.State != StateNoContacts || res.Outcome != models.OutcomeNoContacts {
		t.Fatalf("Escalate() state = %s outcome = %s, want no-contacts terminal", res.State, res.Outcome)
	}
	if disp.calls != 0 {
		t.Fatal("dispatcher called with no contacts")
	}
	if len(res.ImmediateResources) < 3 {
		t.Fatalf("resources = %d, want at least 3", len(res.ImmediateResources))
	}
	var hasConfigureHint bool
	for _, s := range res.NextSteps {
		if strings.Contains(s, "trusted contact") {
			hasConfigureHint = true
		}
	}
	if !hasConfigureHint {
		t.Fatalf("next steps missing configure-contacts hint: %v", res.NextSteps)
	}
	if len(dir.logged) != 1 || dir.logged[0].Outcome != models.OutcomeNoContacts {
		t.Fatalf("logged = %+v, want one no-contacts record", dir.logged)
	}
}

func TestEscalate_OutreachFailureLogged(t *testing.T) {
	dir := &fakeDirectory{contacts: twoContacts()}
	disp := &fakeDispatcher{err: errors.New("gateway down")}
	e := NewEscalator(dir, disp)

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if res.State != StateLoggedFailure || res.OutreachSucceeded {
		t.Fatalf("Escalate() state = %s, want LOGGED_FAILURE", res.State)
	}
	if !res.Retryable {
		t.Fatal("failed outreach should be retryable")
	}
	if len(dir.logged) != 1 || dir.logged[0].Outcome != models.OutcomeFailed || dir.logged[0].ReasonCode == "" {
		t.Fatalf("logged = %+v, want failed record with reason", dir.logged)
	}
	if len(res.ImmediateResources) < 3 {
		t.Fatal("failure result must still carry resources")
	}
}

func TestEscalate_LogFailureDoesNotReverseOutreach(t *testing.T) {
	dir := &fakeDirectory{contacts: twoContacts(), logErr: errors.New("audit store down")}
	disp := &fakeDispatcher{}
	e := NewEscalator(dir, disp)

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if res.State != StateLoggedSuccess || !res.OutreachSucceeded {
		t.Fatalf("Escalate() state = %s, want degraded-but-successful LOGGED_SUCCESS", res.State)
	}
}

func TestEscalate_PanicBecomesTechnicalFailure(t *testing.T) {
	dir := &fakeDirectory{contacts: twoContacts()}
	disp := &fakeDispatcher{panicWith: "driver blew up"}
	e := NewEscalator(dir, disp)

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if res.State != StateTechnicalFailure || res.Outcome != models.OutcomeTechnicalFailure {
		t.Fatalf("Escalate() state = %s outcome = %s, want technical-failure terminal", res.State, res.Outcome)
	}
	if !res.Retryable {
		t.Fatal("technical failure should be retryable")
	}
	if len(res.ImmediateResources) < 3 {
		t.Fatal("technical failure result must still carry resources")
	}
}

func TestEscalate_DirectoryErrorIsTechnicalFailure(t *testing.T) {
	dir := &fakeDirectory{listErr: errors.New("db offline")}
	e := NewEscalator(dir, &fakeDispatcher{})

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if res.State != StateTechnicalFailure {
		t.Fatalf("Escalate() state = %s, want TECHNICAL_FAILURE_TERMINAL", res.State)
	}
}

func TestSelectChannel_PreferenceAndDefault(t *testing.T) {
	c := &models.TrustedContact{AllowedChannels: []models.Channel{models.ChannelEmail, models.ChannelSMS}}
	if got := SelectChannel(c); got != models.ChannelSMS {
		t.Fatalf("SelectChannel() = %s, want sms over email", got)
	}

	c = &models.TrustedContact{}
	if got := SelectChannel(c); got != models.ChannelVoice {
		t.Fatalf("SelectChannel() = %s, want voice default", got)
	}
}

func TestEscalate_EmailDisplayAddressOnly(t *testing.T) {
	dir := &fakeDirectory{contacts: []models.TrustedContact{
		{ID: "c2", DisplayName: "Sam", PriorityRank: 1, EmergencyEligible: true,
			AllowedChannels: []models.Channel{models.ChannelEmail}, Email: "sam@example.com", PhoneNumber: "+15550009"},
	}}
	e := NewEscalator(dir, &fakeDispatcher{})

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if res.Contact == nil || res.Contact.Address != "sam@example.com" || res.Contact.Number != "" {
		t.Fatalf("contact display = %+v, want address only for email", res.Contact)
	}
}

func TestEscalate_NoAllowedChannelsStillCalls(t *testing.T) {
	var gatewayHits int
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gatewayHits++
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	// Contact never listed any channel but has a phone number: the
	// default-voice rule still produces a real call attempt.
	dir := &fakeDirectory{contacts: []models.TrustedContact{
		{ID: "c1", UserID: "u1", DisplayName: "Alex", PriorityRank: 1,
			EmergencyEligible: true, PhoneNumber: "+15550001"},
	}}
	disp := outreach.NewDispatcher(config.OutreachConfig{GatewayURL: srv.URL, Timeout: 5 * time.Second})
	e := NewEscalator(dir, disp)

	res := e.Escalate(context.Background(), "u1", highAssessment())

	if gatewayHits != 1 || gotPath != "/v1/calls" {
		t.Fatalf("gateway hits = %d path = %q, want one voice call", gatewayHits, gotPath)
	}
	if res.State != StateLoggedSuccess || !res.OutreachSucceeded {
		t.Fatalf("Escalate() state = %s succeeded = %v, want LOGGED_SUCCESS", res.State, res.OutreachSucceeded)
	}
	if res.Contact == nil || res.Contact.Channel != models.ChannelVoice {
		t.Fatalf("contact display = %+v, want voice channel", res.Contact)
	}
}
