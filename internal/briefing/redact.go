// Package briefing owns the text boundary between the mission generator and
// the player: redaction of the full mission document, security validation of
// the redacted result, and lenient parsing of mission and gameplay responses.
package briefing

import (
	"strings"
)

// AcceptancePrompt is appended to every redacted briefing.
const AcceptancePrompt = `CIA Operative, do you accept this mission? Type "ACCEPT" to begin operations or "REGENERATE" for a new assignment.`

// sensitiveMarkers start a suppressed region. Matched case-insensitively by
// substring because the generator's formatting varies.
var sensitiveMarkers = []string{
	"EXPECTED COMPLEXITY:",
	"FOUR POSSIBLE OUTCOMES:",
	"OUTCOME A:",
	"OUTCOME B:",
	"OUTCOME C:",
	"OUTCOME D:",
	"MISSION PHASES:",
	"DETAILED PHASES:",
	"SUCCESS CRITERIA:",
	"SUCCESS CONDITIONS:",
	"FAILURE CONDITIONS:",
	"ROUND-",
	"ROUND INSTRUCTIONS:",
}

// visibleHeaders end a suppressed region. These are the top-level sections the
// player is allowed to see.
var visibleHeaders = []string{
	"OPERATION CODENAME:",
	"MISSION TYPE:",
	"TARGET COUNTRY",
	"INTELLIGENCE OBJECTIVE:",
	"OPERATIONAL CONSTRAINTS:",
	"EQUIPMENT/RESOURCES:",
	"COVER IDENTITY:",
	"THREAT ASSESSMENT:",
	"FOREIGN AGENCY INVOLVEMENT:",
}

func containsAny(line string, markers []string) bool {
	upper := strings.ToUpper(line)
	for _, m := range markers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// Redact strips backend-only sections from a full mission document and returns
// the player-safe briefing with the acceptance prompt appended. A sensitive
// section with no following visible header is suppressed to end-of-document.
func Redact(fullText string) string {
	lines := strings.Split(fullText, "\n")
	visible := make([]string, 0, len(lines))
	hidden := false

	for _, line := range lines {
		if containsAny(line, sensitiveMarkers) {
			hidden = true
			continue
		}
		if containsAny(line, visibleHeaders) || strings.HasPrefix(line, "=== CIA MISSION BRIEFING") {
			hidden = false
		}
		if !hidden {
			visible = append(visible, line)
		}
	}

	visible = append(visible, "", AcceptancePrompt)
	return strings.Join(visible, "\n")
}
