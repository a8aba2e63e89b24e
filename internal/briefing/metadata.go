package briefing

import (
	"regexp"
	"strings"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

var (
	phaseHeaderRE   = regexp.MustCompile(`(?i)(MISSION PHASES|DETAILED PHASES)`)
	phaseMarkerRE   = regexp.MustCompile(`(?i)PHASE\s+(\d+)\s*[:\-–]?\s*`)
	successHeaderRE = regexp.MustCompile(`(?i)SUCCESS (CRITERIA|CONDITIONS)`)
	failureHeaderRE = regexp.MustCompile(`(?i)FAILURE CONDITIONS`)
	outcomeHeaderRE = regexp.MustCompile(`(?i)FOUR POSSIBLE OUTCOMES`)
	outcomeMarkerRE = regexp.MustCompile(`(?i)OUTCOME\s+([A-D])\s*(?:\([^)]*\))?\s*:`)
	bulletRE        = regexp.MustCompile(`(?m)^\s*(?:[-•*]|\d+\.)\s*`)

	// sectionHeaderRE ends a block at the next top-level section. Sub-entries
	// belonging to the block itself are exempted per extraction site.
	sectionHeaderRE = regexp.MustCompile(`^\s*(?:\d{1,2}\.\s*)?[A-Z][A-Z0-9 /&\-]{3,}:`)

	highEscalationRE = regexp.MustCompile(`(?i)(crisis|extraction|emergency)`)
	lowEscalationRE  = regexp.MustCompile(`(?i)(reconnaissance|initial)`)
	criticalLineRE   = regexp.MustCompile(`(?im)^\s*(?:[-•*]\s*)?CRITICAL[:\-]?\s*(.+)$`)
)

// CanonicalBands are the fixed score ranges per outcome letter. They are
// forced onto parsed outcomes regardless of what the generator wrote, so the
// resolver always works against consistent numbers.
var CanonicalBands = map[domain.OutcomeLetter][2]int{
	domain.OutcomeA: {85, 100},
	domain.OutcomeB: {65, 85},
	domain.OutcomeC: {30, 55},
	domain.OutcomeD: {0, 30},
}

// extractBlock returns the lines after the first line matching header, up to
// the next top-level section header. Lines matching allow do not end the
// block. Returns "" when the header is absent.
func extractBlock(fullText string, header, allow *regexp.Regexp) string {
	lines := strings.Split(fullText, "\n")
	start := -1
	for i, line := range lines {
		if header.MatchString(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	var out []string
	for _, line := range lines[start+1:] {
		if sectionHeaderRE.MatchString(line) && (allow == nil || !allow.MatchString(line)) {
			break
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func estimateRounds(description string) int {
	n := (len(description) + 199) / 200
	return clamp(n, 1, 3)
}

func escalationTier(description string) domain.RiskTier {
	switch {
	case highEscalationRE.MatchString(description):
		return domain.RiskHigh
	case lowEscalationRE.MatchString(description):
		return domain.RiskLow
	default:
		return domain.RiskMedium
	}
}

func parsePhases(fullText string) []domain.Phase {
	block := extractBlock(fullText, phaseHeaderRE, regexp.MustCompile(`(?i)(PHASE\s+\d+|CRITICAL)`))
	if block == "" {
		return []domain.Phase{}
	}
	locs := phaseMarkerRE.FindAllStringSubmatchIndex(block, -1)
	if len(locs) == 0 {
		return []domain.Phase{}
	}
	phases := make([]domain.Phase, 0, len(locs))
	for i, loc := range locs {
		end := len(block)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		chunk := block[loc[1]:end]
		number := i + 1
		if n := block[loc[2]:loc[3]]; n != "" {
			number = atoiDefault(n, i+1)
		}
		nameChunk := strings.SplitN(chunk, "\n", 2)
		name := strings.TrimSpace(nameChunk[0])
		description := ""
		if len(nameChunk) > 1 {
			description = strings.TrimSpace(nameChunk[1])
		}
		if description == "" {
			description = name
		}
		var critical []string
		for _, m := range criticalLineRE.FindAllStringSubmatch(chunk, -1) {
			critical = append(critical, strings.TrimSpace(m[1]))
		}
		if critical == nil {
			critical = []string{}
		}
		phases = append(phases, domain.Phase{
			Number:            number,
			Name:              name,
			Objective:         name,
			Description:       description,
			EstimatedRounds:   estimateRounds(description),
			ThreatEscalation:  escalationTier(description),
			CriticalDecisions: critical,
		})
	}
	return phases
}

func parseConditions(fullText string, header *regexp.Regexp) []string {
	block := extractBlock(fullText, header, nil)
	if block == "" {
		return []string{}
	}
	fragments := bulletRE.Split(block, -1)
	conditions := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.TrimSpace(strings.ReplaceAll(f, "\n", " "))
		if len(f) > 10 {
			conditions = append(conditions, f)
		}
	}
	return conditions
}

func parseOutcomes(fullText string) []domain.Outcome {
	block := extractBlock(fullText, outcomeHeaderRE, regexp.MustCompile(`(?i)OUTCOME\s+[A-D]`))
	if block == "" {
		return []domain.Outcome{}
	}
	locs := outcomeMarkerRE.FindAllStringSubmatchIndex(block, -1)
	if len(locs) == 0 {
		return []domain.Outcome{}
	}
	outcomes := make([]domain.Outcome, 0, len(locs))
	for i, loc := range locs {
		end := len(block)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		letter := domain.OutcomeLetter(strings.ToUpper(block[loc[2]:loc[3]]))
		chunk := strings.TrimSpace(block[loc[1]:end])
		lines := strings.SplitN(chunk, "\n", 2)
		name := strings.TrimSpace(strings.Trim(lines[0], "[]- "))
		band := CanonicalBands[letter]
		outcomes = append(outcomes, domain.Outcome{
			Letter:      letter,
			Name:        name,
			Description: chunk,
			ScoreMin:    band[0],
			ScoreMax:    band[1],
		})
	}
	return outcomes
}

func atoiDefault(s string, def int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 {
		return def
	}
	return n
}

// ParseMetadata extracts the backend-only structured record from a full
// mission document. Pure and total: any block the generator omitted or
// reformatted beyond recognition yields an empty list for that field, and
// callers treat empty metadata as a mission with no tracked structure.
func ParseMetadata(fullText string) domain.MissionMetadata {
	return domain.MissionMetadata{
		FullBriefing:             fullText,
		Phases:                   parsePhases(fullText),
		SuccessConditions:        parseConditions(fullText, successHeaderRE),
		FailureConditions:        parseConditions(fullText, failureHeaderRE),
		PossibleOutcomes:         parseOutcomes(fullText),
		CurrentPhaseIndex:        0,
		PhaseObjectivesCompleted: []string{},
	}
}
