package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func letterPtr(l domain.OutcomeLetter) *domain.OutcomeLetter { return &l }

func TestAttributeSkillsKeywords(t *testing.T) {
	text := "A deep cover infiltration of the cyber unit. Recruit an asset inside the ministry."
	codes := AttributeSkills(text, nil)
	assert.Contains(t, codes, "brody")
	assert.Contains(t, codes, "q_tech")
	assert.Contains(t, codes, "deep_throat")
	assert.NotContains(t, codes, "honey_trap")
	assert.NotContains(t, codes, "risk_taker")
}

func TestAttributeSkillsRiskTaker(t *testing.T) {
	decisions := []domain.Decision{
		{RiskAssessment: domain.RiskHigh, CustomInput: strPtr("storm the compound")},
		{RiskAssessment: domain.RiskLow, CustomInput: strPtr("wait and watch")},
		{RiskAssessment: domain.RiskHigh, CustomInput: strPtr("force the lock")},
	}
	codes := AttributeSkills("a plain mission", decisions)
	assert.Contains(t, codes, "risk_taker")

	codes = AttributeSkills("a plain mission", decisions[:2])
	assert.NotContains(t, codes, "risk_taker")
}

func TestAttributeSkillsReadsDecisionInputs(t *testing.T) {
	decisions := []domain.Decision{
		{RiskAssessment: domain.RiskMedium, CustomInput: strPtr("I try to charm the attache at the reception")},
	}
	codes := AttributeSkills("no keywords here", decisions)
	assert.Contains(t, codes, "honey_trap")
}

func TestComputeAwardOutcomeA(t *testing.T) {
	session := domain.MissionSession{
		Outcome:      letterPtr(domain.OutcomeA),
		SuccessScore: intPtr(90),
	}
	decisions := []domain.Decision{
		{Sound: true, RiskAssessment: domain.RiskLow},
		{Sound: true, RiskAssessment: domain.RiskMedium},
		{Sound: false, RiskAssessment: domain.RiskMedium},
	}
	award := ComputeAward(session, decisions, "a surveillance heavy operation")

	// 500 outcome + 90 score + 2 sound decisions * 10
	assert.Equal(t, 610, award.BaseXP)
	assert.Equal(t, 10, award.Reputation)
	require.Contains(t, award.SkillXP, "q_tech")
	assert.Equal(t, 610/4, award.SkillXP["q_tech"])
}

func TestComputeAwardOutcomeD(t *testing.T) {
	session := domain.MissionSession{
		Outcome:      letterPtr(domain.OutcomeD),
		SuccessScore: intPtr(10),
	}
	award := ComputeAward(session, nil, "")
	assert.Equal(t, 60, award.BaseXP)
	assert.Equal(t, -5, award.Reputation)
	assert.Empty(t, award.SkillXP)
}

func TestComputeAwardNoOutcome(t *testing.T) {
	award := ComputeAward(domain.MissionSession{}, nil, "surveillance")
	assert.Equal(t, 0, award.BaseXP)
	assert.Empty(t, award.SkillXP)
}

func TestLevelCurve(t *testing.T) {
	assert.Equal(t, 1, LevelFor(0))
	assert.Equal(t, 1, LevelFor(999))
	assert.Equal(t, 2, LevelFor(1000))
	assert.Equal(t, 2, LevelFor(2999))
	assert.Equal(t, 3, LevelFor(3000))
	assert.Equal(t, 4, LevelFor(6000))
}

func TestSkillLevelCurve(t *testing.T) {
	assert.Equal(t, 1, SkillLevelFor(0))
	assert.Equal(t, 1, SkillLevelFor(499))
	assert.Equal(t, 2, SkillLevelFor(500))
	assert.Equal(t, 3, SkillLevelFor(1000))
}

func completedSession(id string, outcome domain.OutcomeLetter, rounds int) domain.MissionSession {
	return domain.MissionSession{
		ID:           id,
		State:        domain.StateCompleted,
		CurrentRound: rounds,
		Outcome:      letterPtr(outcome),
	}
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	a := Analyze(nil, nil)
	assert.Equal(t, 0, a.TotalMissions)
	assert.Equal(t, domain.RiskMedium, a.RiskPreference)
	assert.NotNil(t, a.MostCommonFailureRounds)
}

func TestAnalyzeHistory(t *testing.T) {
	sessions := []domain.MissionSession{
		completedSession("s1", domain.OutcomeA, 8),
		completedSession("s2", domain.OutcomeD, 4),
		completedSession("s3", domain.OutcomeC, 4),
		completedSession("s4", domain.OutcomeB, 6),
	}
	decisions := map[string][]domain.Decision{
		"s1": {
			{Type: domain.DecisionOptionSelected, Sound: true, RiskAssessment: domain.RiskHigh},
			{Type: domain.DecisionCustomInput, Sound: true, RiskAssessment: domain.RiskHigh},
		},
		"s2": {
			{Type: domain.DecisionOptionSelected, Sound: false, RiskAssessment: domain.RiskHigh},
			{Type: domain.DecisionOptionSelected, Sound: true, RiskAssessment: domain.RiskLow},
		},
	}

	a := Analyze(sessions, decisions)
	assert.Equal(t, 4, a.TotalMissions)
	assert.InDelta(t, 0.5, a.SuccessRate, 1e-9)
	assert.InDelta(t, 5.5, a.AverageRounds, 1e-9)
	assert.Equal(t, domain.RiskHigh, a.RiskPreference)
	assert.InDelta(t, 0.25, a.CustomInputUsage, 1e-9)
	assert.InDelta(t, 0.75, a.OperationalSoundnessAvg, 1e-9)
	require.NotEmpty(t, a.MostCommonFailureRounds)
	assert.Equal(t, "round 4", a.MostCommonFailureRounds[0])
}

func TestSuggestionsTargetWeaknesses(t *testing.T) {
	a := domain.UserAnalytics{
		TotalMissions:           5,
		SuccessRate:             0.2,
		OperationalSoundnessAvg: 0.4,
		RiskPreference:          domain.RiskHigh,
		CustomInputUsage:        0.8,
	}
	out := Suggestions(a)
	assert.Len(t, out, 4)

	solid := Suggestions(domain.UserAnalytics{
		TotalMissions:           3,
		SuccessRate:             0.9,
		OperationalSoundnessAvg: 0.9,
		RiskPreference:          domain.RiskMedium,
	})
	assert.Len(t, solid, 1)

	fresh := Suggestions(domain.UserAnalytics{})
	require.Len(t, fresh, 1)
	assert.Contains(t, fresh[0], "first mission")
}
