package domain

// SessionState is the single lifecycle variable of a mission session.
// NOT_STARTED exists only before a session row does, so it has no constant.
type SessionState string

const (
	StateBriefed   SessionState = "briefed"
	StateActive    SessionState = "active"
	StateCompleted SessionState = "completed"
)

// ThreatLevel is the ordinal operational status, GREEN < YELLOW < ORANGE < RED.
type ThreatLevel string

const (
	ThreatGreen  ThreatLevel = "GREEN"
	ThreatYellow ThreatLevel = "YELLOW"
	ThreatOrange ThreatLevel = "ORANGE"
	ThreatRed    ThreatLevel = "RED"
)

// Rank returns the escalation order of a threat level; unknown levels rank as GREEN.
func (t ThreatLevel) Rank() int {
	switch t {
	case ThreatYellow:
		return 1
	case ThreatOrange:
		return 2
	case ThreatRed:
		return 3
	default:
		return 0
	}
}

type RiskTier string

const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

type OutcomeLetter string

const (
	OutcomeA OutcomeLetter = "A"
	OutcomeB OutcomeLetter = "B"
	OutcomeC OutcomeLetter = "C"
	OutcomeD OutcomeLetter = "D"
)

type DecisionType string

const (
	DecisionOptionSelected DecisionType = "OPTION_SELECTED"
	DecisionCustomInput    DecisionType = "CUSTOM_INPUT"
)

// MissionSession is one playthrough. Briefing holds only the redacted,
// player-visible text; the full document lives in MissionMetadata.
type MissionSession struct {
	ID                string         `json:"id"`
	UserID            *string        `json:"user_id,omitempty"`
	Briefing          string         `json:"briefing"`
	Category          string         `json:"category"`
	Context           string         `json:"context"`
	ForeignThreat     string         `json:"foreign_threat"`
	CurrentRound      int            `json:"current_round"`
	MaxRounds         int            `json:"max_rounds"`
	OperationalStatus ThreatLevel    `json:"operational_status" enum:"GREEN,YELLOW,ORANGE,RED"`
	State             SessionState   `json:"state" enum:"briefed,active,completed"`
	Outcome           *OutcomeLetter `json:"mission_outcome,omitempty" enum:"A,B,C,D"`
	SuccessScore      *int           `json:"success_score,omitempty"`
	StepsCompleted    []string       `json:"mission_steps_completed"`
	CreatedAt         string         `json:"created_at" format:"date-time"`
	UpdatedAt         string         `json:"updated_at" format:"date-time"`
}

func (s MissionSession) IsActive() bool    { return s.State != StateCompleted }
func (s MissionSession) IsCompleted() bool { return s.State == StateCompleted }

// MissionMetadata is the backend-only structured twin of the full mission
// document. One row per session, never exposed through player-facing responses.
type MissionMetadata struct {
	ID                       string    `json:"id"`
	SessionID                string    `json:"mission_session_id"`
	FullBriefing             string    `json:"full_mission_briefing"`
	Phases                   []Phase   `json:"detailed_phases"`
	SuccessConditions        []string  `json:"success_conditions"`
	FailureConditions        []string  `json:"failure_conditions"`
	PossibleOutcomes         []Outcome `json:"possible_outcomes"`
	CurrentPhaseIndex        int       `json:"current_phase_index"`
	PhaseObjectivesCompleted []string  `json:"phase_objectives_completed"`
	BackendNotes             string    `json:"backend_notes"`
	CreatedAt                string    `json:"created_at" format:"date-time"`
	UpdatedAt                string    `json:"updated_at" format:"date-time"`
}

// CurrentPhase returns the phase at the current index, or nil when the phase
// list is exhausted or the mission carries no tracked structure.
func (m MissionMetadata) CurrentPhase() *Phase {
	if m.CurrentPhaseIndex < 0 || m.CurrentPhaseIndex >= len(m.Phases) {
		return nil
	}
	p := m.Phases[m.CurrentPhaseIndex]
	return &p
}

type Phase struct {
	Number            int      `json:"phase_number"`
	Name              string   `json:"phase_name"`
	Objective         string   `json:"phase_objective"`
	Description       string   `json:"description"`
	EstimatedRounds   int      `json:"estimated_rounds"`
	ThreatEscalation  RiskTier `json:"threat_escalation" enum:"LOW,MEDIUM,HIGH"`
	CriticalDecisions []string `json:"critical_decisions"`
}

type Outcome struct {
	Letter       OutcomeLetter `json:"outcome_letter" enum:"A,B,C,D"`
	Name         string        `json:"outcome_name"`
	Description  string        `json:"description"`
	ScoreMin     int           `json:"success_percentage_min"`
	ScoreMax     int           `json:"success_percentage_max"`
	Consequences string        `json:"consequences"`
	Narrative    string        `json:"narrative"`
}

// Decision is an append-only record of one round. Exactly one of
// SelectedOption and CustomInput is populated, matching Type.
type Decision struct {
	ID               string       `json:"id"`
	SessionID        string       `json:"mission_session_id"`
	RoundNumber      int          `json:"round_number"`
	Type             DecisionType `json:"decision_type" enum:"OPTION_SELECTED,CUSTOM_INPUT"`
	SelectedOption   *int         `json:"selected_option,omitempty"`
	CustomInput      *string      `json:"custom_input,omitempty"`
	Response         string       `json:"ai_response"`
	Context          string       `json:"decision_context"`
	Sound            bool         `json:"was_operationally_sound"`
	ThreatLevelAfter ThreatLevel  `json:"threat_level_after" enum:"GREEN,YELLOW,ORANGE,RED"`
	RiskAssessment   RiskTier     `json:"risk_assessment" enum:"LOW,MEDIUM,HIGH"`
	CreatedAt        string       `json:"created_at" format:"date-time"`
}

// InputText returns whichever of the two decision payloads is populated.
func (d Decision) InputText() string {
	if d.CustomInput != nil {
		return *d.CustomInput
	}
	if d.SelectedOption != nil {
		return d.Context
	}
	return ""
}

// DecisionOption is ephemeral: regenerated from every round's response and
// never persisted standalone.
type DecisionOption struct {
	ID        int      `json:"id" minimum:"1" maximum:"4"`
	Text      string   `json:"text"`
	RiskLevel RiskTier `json:"riskLevel" enum:"LOW,MEDIUM,HIGH"`
}

type Event struct {
	ID        int64  `json:"id"`
	TS        string `json:"ts" format:"date-time"`
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Payload   string `json:"payload_json"`
}

// CharacterStats is the cosmetic leveling record for one user.
type CharacterStats struct {
	UserID             string `json:"user_id"`
	BaseLevel          int    `json:"base_level"`
	BaseXP             int    `json:"base_xp"`
	MissionsCompleted  int    `json:"total_missions_completed"`
	SuccessfulMissions int    `json:"total_successful_missions"`
	ReputationScore    int    `json:"reputation_score"`
	CreatedAt          string `json:"created_at" format:"date-time"`
	UpdatedAt          string `json:"updated_at" format:"date-time"`
}

type Skill struct {
	ID           int    `json:"id"`
	Code         string `json:"skill_code"`
	Name         string `json:"skill_name"`
	Description  string `json:"description"`
	IsToggleable bool   `json:"is_toggleable"`
}

type UserSkill struct {
	UserID    string `json:"user_id"`
	SkillID   int    `json:"skill_id"`
	SkillCode string `json:"skill_code,omitempty"`
	SkillName string `json:"skill_name,omitempty"`
	Level     int    `json:"skill_level"`
	XP        int    `json:"skill_xp"`
	IsEnabled bool   `json:"is_enabled"`
	TimesUsed int    `json:"times_used"`
}

type XPGain struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"mission_session_id"`
	BaseXP    int    `json:"base_xp_gained"`
	SkillID   *int   `json:"skill_id,omitempty"`
	SkillXP   int    `json:"skill_xp_gained"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// UserAnalytics aggregates completed-mission history for one user.
type UserAnalytics struct {
	TotalMissions           int      `json:"total_missions"`
	SuccessRate             float64  `json:"success_rate"`
	AverageRounds           float64  `json:"average_rounds"`
	MostCommonFailureRounds []string `json:"most_common_failure_points"`
	RiskPreference          RiskTier `json:"risk_preference" enum:"LOW,MEDIUM,HIGH"`
	CustomInputUsage        float64  `json:"custom_input_usage"`
	OperationalSoundnessAvg float64  `json:"operational_soundness_avg"`
}
