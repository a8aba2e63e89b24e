// Package progression implements the cosmetic XP/skill subsystem: keyword
// attribution of mission text to the skill taxonomy, XP awards on mission
// completion, and the character level curve.
package progression

import (
	"strings"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

// skillKeywords maps skill codes to the mission-text keywords that attribute
// XP to them.
var skillKeywords = map[string][]string{
	"q_tech":         {"surveillance", "technical", "gadget", "signal", "sigint", "cyber", "drone", "intercept"},
	"bourne":         {"pursuit", "evasion", "combat", "escape", "chase", "physical", "hand-to-hand"},
	"brody":          {"deep cover", "undercover", "infiltrat", "identity", "cover story", "noc"},
	"carrie":         {"analysis", "pattern", "intuition", "assess", "profile", "connect the dots"},
	"greatest_alley": {"liaison", "allied", "mi6", "mossad", "partner service", "joint operation"},
	"honey_trap":     {"seduc", "romantic", "social engineering", "elicit", "charm", "compromat"},
	"crypto_king":    {"crypto", "cipher", "encrypt", "decrypt", "financial", "laundering", "blockchain"},
	"deep_throat":    {"recruit", "asset", "source", "informant", "handler", "agent network"},
	"ghost_protocol": {"denied area", "no official cover", "deniab", "black operation", "unacknowledged"},
	"risk_taker":     {},
}

// AttributeSkills returns the skill codes whose keywords appear in the
// mission text or decision log. risk_taker is attributed from decision risk
// tiers, not keywords.
func AttributeSkills(missionText string, decisions []domain.Decision) []string {
	lower := strings.ToLower(missionText)
	var b strings.Builder
	b.WriteString(lower)
	highRisk := 0
	for _, d := range decisions {
		b.WriteString(" ")
		b.WriteString(strings.ToLower(d.InputText()))
		if d.RiskAssessment == domain.RiskHigh {
			highRisk++
		}
	}
	corpus := b.String()

	var codes []string
	for _, code := range []string{"q_tech", "bourne", "brody", "carrie", "greatest_alley", "honey_trap", "crypto_king", "deep_throat", "ghost_protocol"} {
		for _, kw := range skillKeywords[code] {
			if strings.Contains(corpus, kw) {
				codes = append(codes, code)
				break
			}
		}
	}
	if highRisk >= 2 {
		codes = append(codes, "risk_taker")
	}
	return codes
}

// Award is the XP result of one completed mission.
type Award struct {
	BaseXP     int            `json:"base_xp_gained"`
	SkillXP    map[string]int `json:"skill_xp_gained"`
	LeveledUp  bool           `json:"leveled_up"`
	NewLevel   int            `json:"new_level"`
	Reputation int            `json:"reputation_delta"`
}

// outcomeBaseXP is the flat award per outcome letter, on top of the success
// score.
var outcomeBaseXP = map[domain.OutcomeLetter]int{
	domain.OutcomeA: 500,
	domain.OutcomeB: 300,
	domain.OutcomeC: 150,
	domain.OutcomeD: 50,
}

// ComputeAward derives the XP award for a completed session.
func ComputeAward(session domain.MissionSession, decisions []domain.Decision, missionText string) Award {
	award := Award{SkillXP: map[string]int{}}
	if session.Outcome == nil {
		return award
	}
	award.BaseXP = outcomeBaseXP[*session.Outcome]
	if session.SuccessScore != nil {
		award.BaseXP += *session.SuccessScore
	}
	sound := 0
	for _, d := range decisions {
		if d.Sound {
			sound++
		}
	}
	award.BaseXP += sound * 10

	skillShare := award.BaseXP / 4
	for _, code := range AttributeSkills(missionText, decisions) {
		award.SkillXP[code] = skillShare
	}

	switch *session.Outcome {
	case domain.OutcomeA:
		award.Reputation = 10
	case domain.OutcomeB:
		award.Reputation = 5
	case domain.OutcomeC:
		award.Reputation = -2
	case domain.OutcomeD:
		award.Reputation = -5
	}
	return award
}

// LevelFor maps cumulative XP to a character level. Each level costs 1000 XP
// more than the last.
func LevelFor(xp int) int {
	level := 1
	cost := 1000
	for xp >= cost {
		xp -= cost
		level++
		cost += 1000
	}
	return level
}

// SkillLevelFor maps cumulative skill XP to a skill level on a flat 500 XP
// curve.
func SkillLevelFor(xp int) int {
	return xp/500 + 1
}
