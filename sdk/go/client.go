// Package survivalsdk is a minimal client for the Intelligence Survival API.
package survivalsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Intelligence Survival HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	UserID      string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 180 * time.Second,
	}
}

// ChatMessage is one entry of the gameplay history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Mission is the product of mission generation.
type Mission struct {
	MissionBriefing  string `json:"missionBriefing"`
	Agency           string `json:"agency"`
	Category         string `json:"category"`
	Context          string `json:"context"`
	ForeignThreat    string `json:"foreignThreat"`
	MissionSessionID string `json:"missionSessionId"`
	EstimatedRounds  int    `json:"estimatedRounds"`
	TotalPhases      int    `json:"totalPhases"`
}

// DecisionOption is one of up to four choices offered each round.
type DecisionOption struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	RiskLevel string `json:"riskLevel"`
}

// MissionPhase labels the current phase of play.
type MissionPhase struct {
	Phase     string `json:"phase"`
	Objective string `json:"objective"`
}

// XPAward reports progression gains when a mission ends.
type XPAward struct {
	BaseXP     int            `json:"base_xp_gained"`
	SkillXP    map[string]int `json:"skill_xp_gained"`
	LeveledUp  bool           `json:"leveled_up"`
	NewLevel   int            `json:"new_level"`
	Reputation int            `json:"reputation_delta"`
}

// RoundResult is one gameplay round's response.
type RoundResult struct {
	Response               string           `json:"response"`
	DecisionOptions        []DecisionOption `json:"decisionOptions"`
	MissionPhase           MissionPhase     `json:"missionPhase"`
	IsOperationallySound   bool             `json:"isOperationallySound"`
	ThreatLevel            string           `json:"threatLevel"`
	MissionEnded           bool             `json:"missionEnded"`
	RiskAssessment         string           `json:"riskAssessment"`
	AwaitingAcceptance     bool             `json:"awaitingAcceptance"`
	MissionOutcome         *string          `json:"missionOutcome,omitempty"`
	SuccessScore           *int             `json:"successScore,omitempty"`
	CurrentRound           int              `json:"currentRound"`
	MaxRounds              int              `json:"maxRounds"`
	ProgressionSuggestions []string         `json:"progressionSuggestions,omitempty"`
	XPResult               *XPAward         `json:"xpResult,omitempty"`
}

// Session is the persisted mission session record.
type Session struct {
	ID                string   `json:"id"`
	Briefing          string   `json:"briefing"`
	Category          string   `json:"category"`
	Context           string   `json:"context"`
	ForeignThreat     string   `json:"foreign_threat"`
	CurrentRound      int      `json:"current_round"`
	MaxRounds         int      `json:"max_rounds"`
	OperationalStatus string   `json:"operational_status"`
	State             string   `json:"state"`
	Outcome           *string  `json:"mission_outcome,omitempty"`
	SuccessScore      *int     `json:"success_score,omitempty"`
	StepsCompleted    []string `json:"mission_steps_completed"`
}

// Decision is one round of the persisted decision log.
type Decision struct {
	ID               string  `json:"id"`
	RoundNumber      int     `json:"round_number"`
	Type             string  `json:"decision_type"`
	SelectedOption   *int    `json:"selected_option,omitempty"`
	CustomInput      *string `json:"custom_input,omitempty"`
	Narrative        string  `json:"narrative"`
	Context          string  `json:"decision_context"`
	Sound            bool    `json:"was_operationally_sound"`
	ThreatLevelAfter string  `json:"threat_level_after"`
	RiskAssessment   string  `json:"risk_assessment"`
	CreatedAt        string  `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GenerateMission requests a new mission. missionType may be empty.
func (c *Client) GenerateMission(ctx context.Context, missionType string) (Mission, error) {
	body := map[string]any{
		"generateMission": true,
	}
	if missionType != "" {
		body["missionType"] = missionType
	}
	var resp Mission
	err := c.do(ctx, http.MethodPost, "v0/missions", body, &resp)
	return resp, err
}

// Engage plays one gameplay round. selectedOption may be nil for custom
// input; message "ACCEPT" or "REGENERATE" drives briefing acceptance.
func (c *Client) Engage(ctx context.Context, sessionID, message string, selectedOption *int, history []ChatMessage) (RoundResult, error) {
	body := map[string]any{
		"missionSessionId": sessionID,
		"message":          message,
	}
	if selectedOption != nil {
		body["selectedOption"] = *selectedOption
	}
	if len(history) > 0 {
		body["gameHistory"] = history
	}
	var resp RoundResult
	err := c.do(ctx, http.MethodPost, "v0/missions/engage", body, &resp)
	return resp, err
}

// Session fetches one mission session.
func (c *Client) Session(ctx context.Context, sessionID string) (Session, error) {
	var resp struct {
		Session Session `json:"session"`
	}
	endpoint := fmt.Sprintf("v0/missions/%s", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Session, err
}

// Decisions fetches a session's decision log.
func (c *Client) Decisions(ctx context.Context, sessionID string) ([]Decision, error) {
	var resp []Decision
	endpoint := fmt.Sprintf("v0/missions/%s/decisions", url.PathEscape(sessionID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.UserID != "":
		req.Header.Set("X-User-Id", c.UserID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
