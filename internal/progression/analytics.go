package progression

import (
	"fmt"
	"sort"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

// Analyze aggregates completed-mission history into the analytics record.
func Analyze(sessions []domain.MissionSession, decisions map[string][]domain.Decision) domain.UserAnalytics {
	analytics := domain.UserAnalytics{
		MostCommonFailureRounds: []string{},
		RiskPreference:          domain.RiskMedium,
	}
	if len(sessions) == 0 {
		return analytics
	}
	analytics.TotalMissions = len(sessions)

	successes := 0
	totalRounds := 0
	failureRounds := map[string]int{}
	var riskCounts [3]int
	custom, totalDecisions, sound := 0, 0, 0

	for _, s := range sessions {
		totalRounds += s.CurrentRound
		if s.Outcome != nil && (*s.Outcome == domain.OutcomeA || *s.Outcome == domain.OutcomeB) {
			successes++
		}
		if s.Outcome != nil && (*s.Outcome == domain.OutcomeC || *s.Outcome == domain.OutcomeD) {
			failureRounds[fmt.Sprintf("round %d", s.CurrentRound)]++
		}
		for _, d := range decisions[s.ID] {
			totalDecisions++
			if d.Type == domain.DecisionCustomInput {
				custom++
			}
			if d.Sound {
				sound++
			}
			switch d.RiskAssessment {
			case domain.RiskLow:
				riskCounts[0]++
			case domain.RiskHigh:
				riskCounts[2]++
			default:
				riskCounts[1]++
			}
		}
	}

	analytics.SuccessRate = float64(successes) / float64(len(sessions))
	analytics.AverageRounds = float64(totalRounds) / float64(len(sessions))
	if totalDecisions > 0 {
		analytics.CustomInputUsage = float64(custom) / float64(totalDecisions)
		analytics.OperationalSoundnessAvg = float64(sound) / float64(totalDecisions)
	}

	switch {
	case riskCounts[2] > riskCounts[0] && riskCounts[2] >= riskCounts[1]:
		analytics.RiskPreference = domain.RiskHigh
	case riskCounts[0] > riskCounts[2] && riskCounts[0] >= riskCounts[1]:
		analytics.RiskPreference = domain.RiskLow
	}

	type rc struct {
		label string
		count int
	}
	var rcs []rc
	for label, count := range failureRounds {
		rcs = append(rcs, rc{label, count})
	}
	sort.Slice(rcs, func(i, j int) bool {
		if rcs[i].count != rcs[j].count {
			return rcs[i].count > rcs[j].count
		}
		return rcs[i].label < rcs[j].label
	})
	for i, r := range rcs {
		if i == 3 {
			break
		}
		analytics.MostCommonFailureRounds = append(analytics.MostCommonFailureRounds, r.label)
	}
	return analytics
}

// Suggestions turns analytics into short pieces of tradecraft advice shown
// after a mission completes.
func Suggestions(a domain.UserAnalytics) []string {
	var out []string
	if a.TotalMissions == 0 {
		return []string{"Complete your first mission to establish an operational baseline."}
	}
	if a.SuccessRate < 0.5 {
		out = append(out, "Review failure debriefs: more than half of your operations ended in outcome C or D.")
	}
	if a.OperationalSoundnessAvg < 0.6 {
		out = append(out, "Decisions are frequently flagged operationally compromised. Favor tradecraft-consistent options.")
	}
	switch a.RiskPreference {
	case domain.RiskHigh:
		out = append(out, "Your profile trends aggressive. High-risk options escalate threat levels faster.")
	case domain.RiskLow:
		out = append(out, "Your profile trends cautious. Consider calculated risks when the threat level is GREEN.")
	}
	if a.CustomInputUsage > 0.5 {
		out = append(out, "Heavy reliance on custom actions. Presented options are weighted toward the mission plan.")
	}
	if len(out) == 0 {
		out = append(out, "Operational profile is solid. Maintain current tradecraft discipline.")
	}
	return out
}
