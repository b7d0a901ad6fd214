package modes

import (
	"strings"

	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// crisisKeywords are the immediate-signal phrases scanned on every turn.
// Substring matches only; the full assessment runs in the background
// pipeline and this list is deliberately narrow to keep false positives
// out of the synchronous path.
var crisisKeywords = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"want to die",
	"hurt myself",
	"self harm",
	"self-harm",
	"no reason to live",
	"better off without me",
}

// resourceKeywords mark turns where the user is asking for outside help,
// so the response can surface the resource list immediately.
var resourceKeywords = []string{
	"hotline",
	"helpline",
	"crisis line",
	"therapist",
	"counselor",
	"emergency",
	"911",
	"988",
}

// ScanSignals runs the substring scans and returns both flags in one
// pass over the lowered message.
func ScanSignals(message string) models.ImmediateFlags {
	text := strings.ToLower(message)
	return models.ImmediateFlags{
		CrisisKeywordHit:   containsAny(text, crisisKeywords),
		ResourcesMentioned: containsAny(text, resourceKeywords),
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
