package crisis

import (
	"fmt"
	"strings"

	"github.com/Alhassan777/Nura-AI-sub001/internal/outreach"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// triggerCap is the character budget for the quoted triggering message.
const triggerCap = 280

// checklist is the fixed immediate-action list included in every
// outreach message.
var checklist = []string{
	"Call or message them as soon as you can.",
	"Ask directly how they are feeling right now.",
	"Stay with them (in person or on the line) until they are safe.",
	"If you believe they are in immediate danger, call 911.",
}

// ComposeMessage builds the structured outreach message for an
// assessment.
func ComposeMessage(a models.CrisisAssessment) outreach.Message {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%s ALERT] A person who trusts you may need support.\n", a.Severity.Banner())
	fmt.Fprintf(&sb, "Time: %s\n\n", now().Format("Jan 2, 2006 3:04 PM MST"))

	if a.Summary != "" {
		fmt.Fprintf(&sb, "Assessment: %s\n\n", a.Summary)
	}

	if a.TriggerMessage != "" {
		fmt.Fprintf(&sb, "They recently said:\n%q\n\n", Truncate(a.TriggerMessage, triggerCap))
	}

	sb.WriteString("What you can do right now:\n")
	for i, item := range checklist {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}

	sb.WriteString("\nCrisis resources:\n")
	for _, r := range ResourceBundle() {
		fmt.Fprintf(&sb, "- %s: %s\n", r.Name, r.Contact)
	}

	return outreach.Message{
		Subject:  fmt.Sprintf("[%s] Someone you know needs support", a.Severity.Banner()),
		Body:     sb.String(),
		Severity: a.Severity.String(),
	}
}

// Truncate cuts s at limit runes and appends an ellipsis marker when it
// was cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
