package briefing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

const sampleRoundResponse = `[CLASSIFIED - CIA EYES ONLY]

Decision Assessment: [OPERATIONALLY SOUND]

Threat Level: CONDITION YELLOW

CURRENT PHASE: Surveillance Baseline
OBJECTIVE: Map FSB coverage of the terminal district

Intelligence Picture:
• The courier changed routes this morning
• FSB static posts remain at the north entrance

OPTION 1: Hold position at the cafe and log the new route
OPTION 2: Follow the courier at distance
  using the parallel street
OPTION 3: Plant the beacon now despite the exposure
OPTION 4: Recruit the kiosk vendor as a spotter

OPSEC Reminders: No direct line of sight to the static posts.`

func TestParseResponseFullFormat(t *testing.T) {
	parsed := ParseResponse(sampleRoundResponse)

	assert.True(t, parsed.Sound)
	assert.Equal(t, domain.ThreatYellow, parsed.ThreatLevel)
	assert.Equal(t, "Surveillance Baseline", parsed.PhaseName)
	assert.Equal(t, "Map FSB coverage of the terminal district", parsed.Objective)

	require.Len(t, parsed.Options, 4)
	assert.Equal(t, 1, parsed.Options[0].ID)
	assert.Equal(t, domain.RiskLow, parsed.Options[0].RiskLevel)
	assert.Equal(t, "Follow the courier at distance using the parallel street", parsed.Options[1].Text)
	assert.Equal(t, domain.RiskHigh, parsed.Options[2].RiskLevel)
	assert.Equal(t, domain.RiskMedium, parsed.Options[3].RiskLevel)
}

func TestParseResponseIgnoresOutOfRangeOptions(t *testing.T) {
	parsed := ParseResponse(`The checkpoint waves the van through.

OPTION 1: Hold position in the cafe (LOW risk)
OPTION 7: Storm the consulate
  with the full team
OPTION 0: Do nothing
OPTION 2: Reposition to the north gate (MEDIUM risk)`)

	require.Len(t, parsed.Options, 2)
	assert.Equal(t, 1, parsed.Options[0].ID)
	assert.Equal(t, 2, parsed.Options[1].ID)
	assert.NotContains(t, parsed.Options[0].Text, "full team")
}

func TestParseResponseDefaults(t *testing.T) {
	parsed := ParseResponse("The courier nodded and moved on. Nothing else happened.")

	assert.Empty(t, parsed.Options)
	assert.Equal(t, UnknownPhase, parsed.PhaseName)
	assert.Equal(t, DefaultObjective, parsed.Objective)
	assert.False(t, parsed.Sound)
	assert.Equal(t, domain.ThreatGreen, parsed.ThreatLevel)
}

func TestParseResponseCompromisedVerdict(t *testing.T) {
	parsed := ParseResponse("Decision Assessment: [OPERATIONALLY COMPROMISED]\n\nThreat Level: CONDITION RED")
	assert.False(t, parsed.Sound)
	assert.Equal(t, domain.ThreatRed, parsed.ThreatLevel)
}

func TestRiskForKeywordOverride(t *testing.T) {
	assert.Equal(t, domain.RiskLow, RiskFor(1, "anything at all"))
	assert.Equal(t, domain.RiskHigh, RiskFor(3, "anything at all"))
	assert.Equal(t, domain.RiskMedium, RiskFor(2, "follow the courier"))
	assert.Equal(t, domain.RiskLow, RiskFor(2, "take the safe route around the checkpoint"))
	assert.Equal(t, domain.RiskHigh, RiskFor(2, "an aggressive approach through the lobby"))
	assert.Equal(t, domain.RiskHigh, RiskFor(1, "a high-risk entry through the service door"))
}

func TestStripOptionsRemovesOptionBlock(t *testing.T) {
	narrative := StripOptions(sampleRoundResponse)

	assert.NotContains(t, narrative, "OPTION 1")
	assert.NotContains(t, narrative, "OPTION 4")
	assert.NotContains(t, narrative, "parallel street")
	assert.Contains(t, narrative, "Intelligence Picture")
	assert.Contains(t, narrative, "The courier changed routes this morning")
	assert.Contains(t, narrative, "OPSEC Reminders")
}

func TestStripOptionsPlainText(t *testing.T) {
	text := "A narrative with no options at all."
	assert.Equal(t, text, StripOptions(text))
}
