package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

func TestExplicitOutcome(t *testing.T) {
	letter, ok := ExplicitOutcome("The operation ends here. OUTCOME B: cover burned but files secured.")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeB, letter)

	_, ok = ExplicitOutcome("No verdict in this text.")
	assert.False(t, ok)

	letter, ok = ExplicitOutcome("outcome d was unavoidable")
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeD, letter)
}

func TestAnnouncesCompletion(t *testing.T) {
	assert.True(t, AnnouncesCompletion("MISSION COMPLETE. Stand down."))
	assert.True(t, AnnouncesCompletion("Langley confirms: operation terminated."))
	assert.True(t, AnnouncesCompletion("OUTCOME A achieved."))
	assert.False(t, AnnouncesCompletion("The mission continues into the next phase."))
}

func TestIsConclusionRequest(t *testing.T) {
	assert.True(t, IsConclusionRequest("I request extraction immediately"))
	assert.True(t, IsConclusionRequest("Abort mission, the courier made me"))
	assert.False(t, IsConclusionRequest("I move toward the extraction corridor to observe it"))
}

func TestResolveExplicitOutcomeWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		letter, score := Resolve("OUTCOME B: partial success", domain.ThreatRed, true, true)
		assert.Equal(t, domain.OutcomeB, letter)
		assert.GreaterOrEqual(t, score, 65)
		assert.LessOrEqual(t, score, 85)
	}
}

func TestResolvePlayerRequestedBeatsForced(t *testing.T) {
	for i := 0; i < 50; i++ {
		letter, score := Resolve("the operative walks away", domain.ThreatGreen, true, true)
		assert.Equal(t, domain.OutcomeA, letter)
		assert.GreaterOrEqual(t, score, 75)
		assert.LessOrEqual(t, score, 95)
	}
}

func TestResolveForcedByRoundLimit(t *testing.T) {
	cases := []struct {
		threat   domain.ThreatLevel
		letter   domain.OutcomeLetter
		min, max int
	}{
		{domain.ThreatGreen, domain.OutcomeB, 60, 75},
		{domain.ThreatYellow, domain.OutcomeC, 35, 50},
		{domain.ThreatOrange, domain.OutcomeD, 0, 25},
		{domain.ThreatRed, domain.OutcomeD, 0, 25},
	}
	for _, tc := range cases {
		for i := 0; i < 25; i++ {
			letter, score := Resolve("rounds exhausted", tc.threat, true, false)
			assert.Equal(t, tc.letter, letter, "threat %s", tc.threat)
			assert.GreaterOrEqual(t, score, tc.min)
			assert.LessOrEqual(t, score, tc.max)
		}
	}
}

func TestResolveVoluntaryBeatsForcedAtSameThreat(t *testing.T) {
	requested, _ := Resolve("walking away", domain.ThreatYellow, false, true)
	forced, _ := Resolve("limit hit", domain.ThreatYellow, true, false)
	assert.Equal(t, domain.OutcomeB, requested)
	assert.Equal(t, domain.OutcomeC, forced)
}

func TestResolveFallback(t *testing.T) {
	letter, score := Resolve("nothing conclusive", domain.ThreatGreen, false, false)
	assert.Equal(t, domain.OutcomeD, letter)
	assert.Equal(t, 0, score)
}

func TestMaxRoundsComplexityWins(t *testing.T) {
	phases := []domain.Phase{{EstimatedRounds: 2}, {EstimatedRounds: 2}}
	got := MaxRounds("13. EXPECTED COMPLEXITY: 8 rounds", phases, 10, 5, 12)
	assert.Equal(t, 8, got)
}

func TestMaxRoundsSumsPhases(t *testing.T) {
	phases := []domain.Phase{{EstimatedRounds: 2}, {EstimatedRounds: 3}, {EstimatedRounds: 2}}
	got := MaxRounds("no estimate present", phases, 10, 5, 12)
	assert.Equal(t, 7, got)
}

func TestMaxRoundsDefaultAndClamp(t *testing.T) {
	assert.Equal(t, 10, MaxRounds("nothing", nil, 10, 5, 12))
	assert.Equal(t, 5, MaxRounds("EXPECTED COMPLEXITY: 2 rounds", nil, 10, 5, 12))
	assert.Equal(t, 12, MaxRounds("EXPECTED COMPLEXITY: 30 rounds", nil, 10, 5, 12))
}

func TestNewParametersPinsCategory(t *testing.T) {
	p := NewParameters("CYBER_OPERATIONS")
	assert.Equal(t, "CYBER_OPERATIONS", p.Category)
	assert.Contains(t, RealWorldContexts, p.Context)
	assert.Contains(t, ForeignIntelligenceAgencies, p.ForeignThreat)

	drawn := NewParameters("")
	assert.Contains(t, Categories, drawn.Category)
}
