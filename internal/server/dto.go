package server

import (
	"github.com/aTrapDeer/intelligence-survival/internal/briefing"
	"github.com/aTrapDeer/intelligence-survival/internal/domain"
	"github.com/aTrapDeer/intelligence-survival/internal/engine"
	"github.com/aTrapDeer/intelligence-survival/internal/llm"
	"github.com/aTrapDeer/intelligence-survival/internal/progression"
)

// Request payloads

type ChatMessage struct {
	Role    string `json:"role" enum:"system,user,assistant"`
	Content string `json:"content"`
}

type GenerateMissionRequest struct {
	GenerateMission bool   `json:"generateMission"`
	MissionType     string `json:"missionType,omitempty"`
	UserID          string `json:"userId,omitempty"`
}

type EngageRequest struct {
	Message            string        `json:"message"`
	GameHistory        []ChatMessage `json:"gameHistory,omitempty"`
	FullMissionDetails string        `json:"fullMissionDetails,omitempty"`
	SelectedOption     *int          `json:"selectedOption,omitempty" minimum:"1" maximum:"4"`
	MissionSessionID   string        `json:"missionSessionId"`
	RoundNumber        int           `json:"roundNumber,omitempty"`
	UserID             string        `json:"userId,omitempty"`
}

// Response payloads

type GenerateMissionResponse struct {
	MissionBriefing  string `json:"missionBriefing"`
	Agency           string `json:"agency"`
	Category         string `json:"category"`
	Context          string `json:"context"`
	ForeignThreat    string `json:"foreignThreat"`
	MissionSessionID string `json:"missionSessionId"`
	EstimatedRounds  int    `json:"estimatedRounds"`
	TotalPhases      int    `json:"totalPhases"`
}

type MissionPhaseResponse struct {
	Phase     string `json:"phase"`
	Objective string `json:"objective"`
}

type EngageResponse struct {
	Response               string                  `json:"response"`
	DecisionOptions        []domain.DecisionOption `json:"decisionOptions"`
	MissionPhase           MissionPhaseResponse    `json:"missionPhase"`
	IsOperationallySound   bool                    `json:"isOperationallySound"`
	ThreatLevel            domain.ThreatLevel      `json:"threatLevel" enum:"GREEN,YELLOW,ORANGE,RED"`
	MissionEnded           bool                    `json:"missionEnded"`
	RiskAssessment         domain.RiskTier         `json:"riskAssessment" enum:"LOW,MEDIUM,HIGH"`
	AwaitingAcceptance     bool                    `json:"awaitingAcceptance,omitempty"`
	MissionOutcome         *domain.OutcomeLetter   `json:"missionOutcome,omitempty" enum:"A,B,C,D"`
	SuccessScore           *int                    `json:"successScore,omitempty"`
	CurrentRound           int                     `json:"currentRound"`
	MaxRounds              int                     `json:"maxRounds"`
	ProgressionSuggestions []string                `json:"progressionSuggestions,omitempty"`
	XPResult               *progression.Award      `json:"xpResult,omitempty"`
}

// DecisionResponse is the player-visible view of a persisted decision. The
// narrative is stripped of its option block the same way live responses are.
type DecisionResponse struct {
	ID               string              `json:"id"`
	RoundNumber      int                 `json:"round_number"`
	Type             domain.DecisionType `json:"decision_type" enum:"OPTION_SELECTED,CUSTOM_INPUT"`
	SelectedOption   *int                `json:"selected_option,omitempty"`
	CustomInput      *string             `json:"custom_input,omitempty"`
	Narrative        string              `json:"narrative"`
	Context          string              `json:"decision_context"`
	Sound            bool                `json:"was_operationally_sound"`
	ThreatLevelAfter domain.ThreatLevel  `json:"threat_level_after" enum:"GREEN,YELLOW,ORANGE,RED"`
	RiskAssessment   domain.RiskTier     `json:"risk_assessment" enum:"LOW,MEDIUM,HIGH"`
	CreatedAt        string              `json:"created_at" format:"date-time"`
}

type SessionBody struct {
	Session domain.MissionSession `json:"session"`
}

type AnalyticsResponse struct {
	Analytics   domain.UserAnalytics `json:"analytics"`
	Suggestions []string             `json:"suggestions"`
}

type CharacterResponse struct {
	Stats  domain.CharacterStats `json:"stats"`
	Skills []domain.UserSkill    `json:"skills"`
}

func decisionResponse(d domain.Decision) DecisionResponse {
	return DecisionResponse{
		ID:               d.ID,
		RoundNumber:      d.RoundNumber,
		Type:             d.Type,
		SelectedOption:   d.SelectedOption,
		CustomInput:      d.CustomInput,
		Narrative:        briefing.StripOptions(d.Response),
		Context:          d.Context,
		Sound:            d.Sound,
		ThreatLevelAfter: d.ThreatLevelAfter,
		RiskAssessment:   d.RiskAssessment,
		CreatedAt:        d.CreatedAt,
	}
}

func engageResponse(res engine.DecisionResult) EngageResponse {
	return EngageResponse{
		Response:             res.Response,
		DecisionOptions:      res.DecisionOptions,
		MissionPhase:         MissionPhaseResponse{Phase: res.PhaseName, Objective: res.Objective},
		IsOperationallySound: res.IsOperationallySound,
		ThreatLevel:          res.ThreatLevel,
		MissionEnded:         res.MissionEnded,
		RiskAssessment:       res.RiskAssessment,
		AwaitingAcceptance:   res.AwaitingAcceptance,
		MissionOutcome:       res.Outcome,
		SuccessScore:         res.SuccessScore,
		CurrentRound:         res.Session.CurrentRound,
		MaxRounds:            res.Session.MaxRounds,

		ProgressionSuggestions: res.ProgressionSuggestions,
		XPResult:               res.XPResult,
	}
}

func chatMessages(history []ChatMessage) []llm.Message {
	out := make([]llm.Message, len(history))
	for i, m := range history {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
