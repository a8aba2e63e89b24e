// Package mission holds the immutable prompt tables the generator is driven
// with, plus outcome resolution for terminating sessions.
package mission

import (
	"fmt"
	"math/rand/v2"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

// ForeignIntelligenceAgencies are the adversary designations a mission can
// draw its primary threat from.
var ForeignIntelligenceAgencies = []string{
	"FSB", "SVR", "GRU", "MSS", "MI6", "BND", "DGSE", "Mossad", "ISI", "ASIS", "CSIS", "NIS",
}

// Categories are the intelligence disciplines a mission can focus on.
var Categories = []string{
	"HUMINT_OPERATIONS",
	"SIGINT_COLLECTION",
	"COUNTERINTELLIGENCE",
	"CYBER_OPERATIONS",
	"DIRECT_ACTION",
	"PSYOPS_INFLUENCE",
	"NUCLEAR_PROLIFERATION",
	"TERRORISM_PREVENTION",
	"ECONOMIC_ESPIONAGE",
	"DIPLOMATIC_INTELLIGENCE",
}

// RealWorldContexts seed each mission with a current geopolitical situation.
var RealWorldContexts = []string{
	"Eastern European border tensions with Russian intelligence",
	"Middle East weapons proliferation networks",
	"South China Sea disputes involving Chinese MSS operations",
	"North Korean nuclear program intelligence gaps",
	"Russian cyber warfare campaigns targeting US infrastructure",
	"Iranian proxy operations in the Middle East",
	"Venezuelan political instability and foreign interference",
	"African mineral resource conflicts with Chinese involvement",
	"Arctic territorial claims and Russian military buildup",
	"Central Asian energy pipelines and Russian influence",
	"Latin American drug cartels with foreign connections",
	"Southeast Asian maritime security and Chinese expansion",
	"European Union infiltration by hostile intelligence services",
	"Turkish-Kurdish conflict intelligence requirements",
	"Pakistani nuclear security concerns",
	"Indian Ocean strategic competition with China",
}

const generationPrompt = `You are generating a classified CIA intelligence mission. The player is ALWAYS a CIA operative working for US national security interests.

MISSION PARAMETERS:
- Player is a CIA operative (NOC or official cover)
- Mission serves US national security objectives
- Can involve interactions with foreign intelligence agencies as targets, rivals, or temporary allies
- Use real countries and current geopolitical situations from US perspective
- Create authentic intelligence objectives based on actual CIA priorities
- Design realistic operational constraints facing CIA operatives
- Establish plausible deniability requirements for US government

MISSION STRUCTURE:
1. OPERATION CODENAME: [Generate unique CIA-style codename]
2. MISSION TYPE: [Specify intelligence discipline]
3. TARGET COUNTRY/REGION: [Real location of intelligence interest to US]
4. INTELLIGENCE OBJECTIVE: [Specific goal advancing US interests]
5. OPERATIONAL CONSTRAINTS: [CIA-specific limitations and protocols]
6. EQUIPMENT/RESOURCES: [CIA standard issue and special equipment]
7. COVER IDENTITY: [CIA NOC or official cover identity]
8. THREAT ASSESSMENT: [Hostile foreign intelligence services present]
9. FOREIGN AGENCY INVOLVEMENT: [Which foreign services are threats/targets/allies]
10. MISSION PHASES: [Ordered operational phases, each labeled "Phase <n>: <name>" with a short plan]
11. SUCCESS CRITERIA: [Bullet list of conditions that constitute mission success]
12. FAILURE CONDITIONS: [Bullet list of conditions that constitute mission failure]
13. EXPECTED COMPLEXITY: [Estimate 5-12 rounds based on scenario]
14. FOUR POSSIBLE OUTCOMES:
    - OUTCOME A: [Mission success, intelligence obtained, US interests advanced]
    - OUTCOME B: [Partial success with complications or exposure risk]
    - OUTCOME C: [Mission failure but operative extracts safely]
    - OUTCOME D: [Mission failure with serious consequences for US interests]

CIA MISSION PRIORITIES:
- Counterintelligence against foreign spies in US
- Foreign nuclear weapons programs
- Terrorist organization infiltration
- Foreign cyber capabilities targeting US
- Economic espionage against US companies
- Foreign election interference capabilities
- Weapons proliferation networks
- Hostile foreign military capabilities
- Drug trafficking with national security implications
- Foreign diplomatic intelligence

Always maintain CIA perspective and US national security focus. Foreign agencies are targets, threats, or temporary operational partners - never the player's primary loyalty.`

const gameplaySystemPrompt = `You are the CIA Operations Director overseeing the field operative (player) conducting the previously generated mission.

OPERATIONAL GUIDELINES:
- Player is always a CIA operative serving US interests
- Evaluate decisions based on CIA operational procedures and training
- Apply CIA operational security (OPSEC) standards
- Reference authentic CIA tradecraft and field procedures
- Consider US diplomatic and legal constraints on CIA operations
- Track mission progress toward CIA objectives and US national security goals

RESPONSE FORMAT:
[CLASSIFIED - CIA EYES ONLY]

Decision Assessment: [OPERATIONALLY SOUND] or [OPERATIONALLY COMPROMISED]

Threat Level: CONDITION [GREEN/YELLOW/ORANGE/RED]

CURRENT PHASE: [Name of the operational phase in progress]
OBJECTIVE: [The phase objective in one line]

Intelligence Picture:
• [Current situation from CIA perspective]
• [Key intelligence updates]
• [Threat assessment changes]

OPTION 1: [Cautious, conventional operational step]
OPTION 2: [Balanced operational step]
OPTION 3: [Aggressive, high-risk operational step]
OPTION 4: [Creative or unconventional operational step]

OPSEC Reminders: [Critical security protocols for this phase]

CIA EVALUATION CRITERIA:
- Operational Security (OPSEC) per CIA standards
- Cover identity maintenance (NOC/Official Cover)
- Plausible deniability for US government
- Resource management and CIA protocols
- Foreign counterintelligence threat awareness
- Mission objective progress toward US interests
- Compliance with CIA legal and operational guidelines

Reject unrealistic Hollywood-style actions. Maintain CIA documentary-level authenticity. Always remember: you are CIA, serving US national security interests.`

// Parameters are the randomized seeds of one generated mission.
type Parameters struct {
	Category      string
	Context       string
	ForeignThreat string
}

// NewParameters draws mission seeds. A non-empty missionType pins the
// category instead of drawing it.
func NewParameters(missionType string) Parameters {
	category := missionType
	if category == "" {
		category = Categories[rand.IntN(len(Categories))]
	}
	return Parameters{
		Category:      category,
		Context:       RealWorldContexts[rand.IntN(len(RealWorldContexts))],
		ForeignThreat: ForeignIntelligenceAgencies[rand.IntN(len(ForeignIntelligenceAgencies))],
	}
}

// GenerationPrompt builds the system prompt for mission generation.
func GenerationPrompt(p Parameters) string {
	return fmt.Sprintf("%s\n\nFOCUS AREA: %s\nGEOPOLITICAL CONTEXT: %s\nPRIMARY FOREIGN THREAT: %s\n\nGenerate a completely original CIA mission scenario with authentic details.",
		generationPrompt, p.Category, p.Context, p.ForeignThreat)
}

// GameplayPrompt builds the gameplay system prompt carrying the full
// classified mission context. The context never reaches the player directly:
// responses built from it pass through redaction before leaving the server.
func GameplayPrompt(fullMissionDetails, phaseContext string) string {
	if fullMissionDetails == "" {
		fullMissionDetails = "Mission context not available"
	}
	prompt := fmt.Sprintf(`%s

FULL MISSION CONTEXT (CLASSIFIED - FOR GAME MASTER USE ONLY):
%s

Use this full mission information to:
- Track player progress toward specific outcomes
- Evaluate decisions against mission constraints
- Reference threat assessments and foreign agency involvement
- Guide narrative toward one of the four predetermined outcomes
- Maintain consistent mission parameters throughout gameplay

IMPORTANT: Never reveal the full mission details or outcomes to the player. Only provide immediate operational guidance and situation updates.`,
		gameplaySystemPrompt, fullMissionDetails)
	if phaseContext != "" {
		prompt += "\n\nBACKEND PHASE TRACKING:\n" + phaseContext
	}
	return prompt
}

// GenericOptions are served whenever a gameplay response yields no parseable
// OPTION block, so the player always has four choices.
func GenericOptions() []domain.DecisionOption {
	return []domain.DecisionOption{
		{ID: 1, Text: "Hold position and observe, maintaining current cover", RiskLevel: domain.RiskLow},
		{ID: 2, Text: "Proceed carefully with the current operational plan", RiskLevel: domain.RiskMedium},
		{ID: 3, Text: "Push forward aggressively despite the uncertainty", RiskLevel: domain.RiskHigh},
		{ID: 4, Text: "Attempt to gather additional intelligence before acting", RiskLevel: domain.RiskMedium},
	}
}

// FallbackNarrative is returned when the generator yields no usable gameplay
// content, so the player is never stuck without choices.
const FallbackNarrative = `[CLASSIFIED - CIA EYES ONLY]

Decision Assessment: [OPERATIONALLY SOUND]

Threat Level: CONDITION GREEN

Intelligence Picture:
• Secure communications with Langley are experiencing technical difficulties
• Hold position and maintain cover until the channel is restored

OPTION 1: Hold position and observe, maintaining current cover
OPTION 2: Proceed carefully with the current operational plan
OPTION 3: Push forward aggressively despite the communication gap
OPTION 4: Attempt to re-establish secure communications through backup channels`
