package mission

import (
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

var explicitOutcomeRE = regexp.MustCompile(`(?i)OUTCOME\s+([A-D])\b`)

// completionPhrases in a gameplay response end the mission even without an
// explicit outcome letter.
var completionPhrases = []string{
	"MISSION COMPLETE",
	"MISSION ACCOMPLISHED",
	"OPERATION TERMINATED",
	"OPERATION CONCLUDED",
}

// conclusionRequests are player inputs that request voluntary extraction.
var conclusionRequests = []string{
	"request extraction",
	"conclude mission",
	"abort mission",
	"extract now",
}

// ExplicitOutcome returns the outcome letter the response text announces, if
// any.
func ExplicitOutcome(text string) (domain.OutcomeLetter, bool) {
	m := explicitOutcomeRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return domain.OutcomeLetter(strings.ToUpper(m[1])), true
}

// AnnouncesCompletion reports whether the response text ends the mission.
func AnnouncesCompletion(text string) bool {
	if _, ok := ExplicitOutcome(text); ok {
		return true
	}
	upper := strings.ToUpper(text)
	for _, p := range completionPhrases {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}

// IsConclusionRequest reports whether a player input asks to end the mission.
func IsConclusionRequest(playerText string) bool {
	lower := strings.ToLower(playerText)
	for _, p := range conclusionRequests {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

type band struct {
	letter   domain.OutcomeLetter
	min, max int
}

// canonicalBands are the score ranges for explicitly announced outcomes.
var canonicalBands = map[domain.OutcomeLetter]band{
	domain.OutcomeA: {domain.OutcomeA, 85, 100},
	domain.OutcomeB: {domain.OutcomeB, 65, 85},
	domain.OutcomeC: {domain.OutcomeC, 30, 55},
	domain.OutcomeD: {domain.OutcomeD, 0, 30},
}

// requestedBands reward proactive extraction: the player concluded on their
// own terms, so each threat level maps one band higher than a forced stop.
var requestedBands = map[domain.ThreatLevel]band{
	domain.ThreatGreen:  {domain.OutcomeA, 75, 95},
	domain.ThreatYellow: {domain.OutcomeB, 60, 80},
	domain.ThreatOrange: {domain.OutcomeC, 40, 60},
	domain.ThreatRed:    {domain.OutcomeD, 15, 35},
}

// forcedBands penalize running out the round limit.
var forcedBands = map[domain.ThreatLevel]band{
	domain.ThreatGreen:  {domain.OutcomeB, 60, 75},
	domain.ThreatYellow: {domain.OutcomeC, 35, 50},
	domain.ThreatOrange: {domain.OutcomeD, 0, 25},
	domain.ThreatRed:    {domain.OutcomeD, 0, 25},
}

func scoreIn(b band) int {
	if b.max <= b.min {
		return b.min
	}
	return b.min + rand.IntN(b.max-b.min+1)
}

// Resolve maps termination signals and the current threat level to one of the
// four outcome letters with a success score. Priority: explicit outcome text,
// then player-requested conclusion, then round-limit force.
func Resolve(responseText string, threat domain.ThreatLevel, forced, playerRequested bool) (domain.OutcomeLetter, int) {
	if letter, ok := ExplicitOutcome(responseText); ok {
		return letter, scoreIn(canonicalBands[letter])
	}
	if playerRequested {
		b := requestedBands[threat]
		if b.letter == "" {
			b = requestedBands[domain.ThreatGreen]
		}
		return b.letter, scoreIn(b)
	}
	if forced {
		b := forcedBands[threat]
		if b.letter == "" {
			b = forcedBands[domain.ThreatGreen]
		}
		return b.letter, scoreIn(b)
	}
	return domain.OutcomeD, 0
}
