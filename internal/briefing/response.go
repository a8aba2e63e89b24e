package briefing

import (
	"regexp"
	"strings"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

// Sentinels used when a gameplay response omits its phase labels.
const (
	UnknownPhase     = "Unknown Phase"
	DefaultObjective = "Assess situation and proceed"
)

const soundToken = "[OPERATIONALLY SOUND]"

var (
	optionRE     = regexp.MustCompile(`(?i)^\s*OPTION\s+(\d)\s*[:\-]\s*(.*)$`)
	remindersRE  = regexp.MustCompile(`(?i)^\s*OPSEC REMINDERS?\s*[:\-]`)
	phaseLabelRE = regexp.MustCompile(`(?im)^\s*CURRENT PHASE\s*[:\-]\s*(.+)$`)
	objectiveRE  = regexp.MustCompile(`(?im)^\s*(?:PHASE )?OBJECTIVE\s*[:\-]\s*(.+)$`)
	threatRE     = regexp.MustCompile(`(?i)CONDITION\s+(GREEN|YELLOW|ORANGE|RED)`)

	lowRiskRE  = regexp.MustCompile(`(?i)(safe|conventional)`)
	highRiskRE = regexp.MustCompile(`(?i)(aggressive|high[- ]risk)`)
)

// ParsedResponse is the structured view of one round's gameplay text. Every
// field has a defined default: parsing never fails the request.
type ParsedResponse struct {
	Options     []domain.DecisionOption
	PhaseName   string
	Objective   string
	Sound       bool
	ThreatLevel domain.ThreatLevel
}

// RiskFor classifies an option or custom input: index baseline (1 LOW, 3
// HIGH) overridden by keyword match.
func RiskFor(id int, text string) domain.RiskTier {
	return riskForOption(id, text)
}

func riskForOption(id int, text string) domain.RiskTier {
	tier := domain.RiskMedium
	switch id {
	case 1:
		tier = domain.RiskLow
	case 3:
		tier = domain.RiskHigh
	}
	if lowRiskRE.MatchString(text) {
		tier = domain.RiskLow
	}
	if highRiskRE.MatchString(text) {
		tier = domain.RiskHigh
	}
	return tier
}

func parseOptions(text string) []domain.DecisionOption {
	lines := strings.Split(text, "\n")
	options := []domain.DecisionOption{}
	current := -1
	var buf strings.Builder
	flush := func() {
		if current < 0 {
			return
		}
		optText := strings.TrimSpace(buf.String())
		if optText != "" {
			options = append(options, domain.DecisionOption{
				ID:        current,
				Text:      optText,
				RiskLevel: riskForOption(current, optText),
			})
		}
		current = -1
		buf.Reset()
	}
	for _, line := range lines {
		if m := optionRE.FindStringSubmatch(line); m != nil {
			flush()
			// Option ids outside 1-4 are not playable; the marker ends the
			// previous option but starts nothing.
			if n := int(m[1][0] - '0'); n >= 1 && n <= 4 {
				current = n
				buf.WriteString(strings.TrimSpace(m[2]))
			}
			continue
		}
		if remindersRE.MatchString(line) {
			flush()
			continue
		}
		if current >= 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				flush()
				continue
			}
			buf.WriteString(" ")
			buf.WriteString(trimmed)
		}
	}
	flush()
	return options
}

// ParseResponse extracts decision options, phase labels, the soundness
// verdict and the threat level from one round's free-text response.
func ParseResponse(text string) ParsedResponse {
	parsed := ParsedResponse{
		Options:     parseOptions(text),
		PhaseName:   UnknownPhase,
		Objective:   DefaultObjective,
		Sound:       strings.Contains(text, soundToken),
		ThreatLevel: domain.ThreatGreen,
	}
	if m := phaseLabelRE.FindStringSubmatch(text); m != nil {
		parsed.PhaseName = strings.TrimSpace(m[1])
	}
	if m := objectiveRE.FindStringSubmatch(text); m != nil {
		parsed.Objective = strings.TrimSpace(m[1])
	}
	if m := threatRE.FindStringSubmatch(text); m != nil {
		parsed.ThreatLevel = domain.ThreatLevel(strings.ToUpper(m[1]))
	}
	return parsed
}

// StripOptions removes the OPTION block from a response so the narrative
// shown to the player does not duplicate options already rendered as
// interactive controls.
func StripOptions(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	inOption := false
	for _, line := range lines {
		if optionRE.MatchString(line) {
			inOption = true
			continue
		}
		if inOption {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || remindersRE.MatchString(line) {
				inOption = false
				if trimmed == "" {
					continue
				}
			} else {
				continue
			}
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
