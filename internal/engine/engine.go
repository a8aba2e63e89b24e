// Package engine owns the mission session state machine: generation,
// regeneration, acceptance, round-by-round decision processing and outcome
// resolution.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aTrapDeer/intelligence-survival/internal/briefing"
	"github.com/aTrapDeer/intelligence-survival/internal/config"
	"github.com/aTrapDeer/intelligence-survival/internal/domain"
	"github.com/aTrapDeer/intelligence-survival/internal/events"
	"github.com/aTrapDeer/intelligence-survival/internal/llm"
	"github.com/aTrapDeer/intelligence-survival/internal/mission"
	"github.com/aTrapDeer/intelligence-survival/internal/progression"
	"github.com/aTrapDeer/intelligence-survival/internal/repo"
)

// Generator is the text generation gateway. Satisfied by *llm.Client.
type Generator interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

var (
	ErrSessionCompleted = errors.New("mission session already completed")
	ErrSessionNotFound  = repo.ErrNotFound
)

// GenerationError is a gateway failure surfaced to the player as a readable
// message. Generation is never retried automatically.
type GenerationError struct {
	FinishReason string
	Err          error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mission generation failed: %v", e.Err)
	}
	return fmt.Sprintf("mission generation failed - no content returned (finish reason: %s)", e.FinishReason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SecurityError means redaction left sensitive structure in the player
// briefing. Mission generation fails closed on it.
type SecurityError struct {
	Report briefing.SecurityReport
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("briefing failed security validation: exposed %s", strings.Join(e.Report.ExposedSections, ", "))
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Generator Generator
	Logger    *slog.Logger
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, gen Generator) Engine {
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Generator: gen,
		Logger:    slog.Default(),
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func ensureSessionTransition(oldState, newState domain.SessionState) error {
	switch oldState {
	case domain.StateBriefed:
		if newState == domain.StateBriefed || newState == domain.StateActive {
			return nil
		}
	case domain.StateActive:
		if newState == domain.StateActive || newState == domain.StateCompleted {
			return nil
		}
	}
	return fmt.Errorf("invalid session state transition %s -> %s", oldState, newState)
}

// generateBriefing runs one generation pass: prompt, gateway call, redaction,
// validation, metadata parse. No persistence.
func (e Engine) generateBriefing(ctx context.Context, missionType string) (mission.Parameters, string, string, domain.MissionMetadata, error) {
	params := mission.NewParameters(missionType)
	resp, err := e.Generator.Complete(ctx, llm.Request{
		Messages:  []llm.Message{{Role: "system", Content: mission.GenerationPrompt(params)}},
		MaxTokens: e.Config.Generator.MissionMaxTokens,
	})
	if err != nil {
		return params, "", "", domain.MissionMetadata{}, &GenerationError{Err: err}
	}
	if resp.Content == "" {
		return params, "", "", domain.MissionMetadata{}, &GenerationError{FinishReason: resp.FinishReason}
	}

	full := resp.Content
	redacted := briefing.Redact(full)
	if report := briefing.Validate(redacted); !report.IsSecure {
		return params, "", "", domain.MissionMetadata{}, &SecurityError{Report: report}
	}
	return params, full, redacted, briefing.ParseMetadata(full), nil
}

// GeneratedMission is the player-facing product of mission generation. It
// never carries the full mission text.
type GeneratedMission struct {
	Session         domain.MissionSession
	Agency          string
	EstimatedRounds int
	TotalPhases     int
}

// GenerateMission creates a new BRIEFED session from one generation pass.
func (e Engine) GenerateMission(ctx context.Context, missionType, userID string) (GeneratedMission, error) {
	params, full, redacted, meta, err := e.generateBriefing(ctx, missionType)
	if err != nil {
		return GeneratedMission{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	maxRounds := mission.MaxRounds(full, meta.Phases, e.Config.Rounds.Default, e.Config.Rounds.Min, e.Config.Rounds.Max)
	session := domain.MissionSession{
		ID:                uuid.New().String(),
		Briefing:          redacted,
		Category:          params.Category,
		Context:           params.Context,
		ForeignThreat:     params.ForeignThreat,
		CurrentRound:      0,
		MaxRounds:         maxRounds,
		OperationalStatus: domain.ThreatGreen,
		State:             domain.StateBriefed,
		StepsCompleted:    []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if userID != "" {
		session.UserID = &userID
	}
	meta.ID = uuid.New().String()
	meta.SessionID = session.ID
	meta.CreatedAt = now
	meta.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return GeneratedMission{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSessionTx(ctx, tx, session); err != nil {
		return GeneratedMission{}, fmt.Errorf("insert session: %w", err)
	}
	if err := e.Repo.InsertMetadataTx(ctx, tx, meta); err != nil {
		return GeneratedMission{}, fmt.Errorf("insert metadata: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.MissionGenerated, session.ID, userID, events.EventPayload{
		"category":       session.Category,
		"foreign_threat": session.ForeignThreat,
		"max_rounds":     session.MaxRounds,
	}); err != nil {
		return GeneratedMission{}, err
	}
	if err := tx.Commit(); err != nil {
		return GeneratedMission{}, err
	}

	return GeneratedMission{
		Session:         session,
		Agency:          "CIA",
		EstimatedRounds: maxRounds,
		TotalPhases:     len(meta.Phases),
	}, nil
}

// regenerate discards a BRIEFED session's mission and generates a fresh one
// in place.
func (e Engine) regenerate(ctx context.Context, session domain.MissionSession) (domain.MissionSession, error) {
	if err := ensureSessionTransition(session.State, domain.StateBriefed); err != nil {
		return session, err
	}
	params, full, redacted, meta, err := e.generateBriefing(ctx, "")
	if err != nil {
		return session, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	session.Briefing = redacted
	session.Category = params.Category
	session.Context = params.Context
	session.ForeignThreat = params.ForeignThreat
	session.MaxRounds = mission.MaxRounds(full, meta.Phases, e.Config.Rounds.Default, e.Config.Rounds.Min, e.Config.Rounds.Max)
	session.UpdatedAt = now

	meta.ID = uuid.New().String()
	meta.SessionID = session.ID
	meta.CreatedAt = now
	meta.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return session, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSessionTx(ctx, tx, session); err != nil {
		return session, fmt.Errorf("update session: %w", err)
	}
	if err := e.Repo.DeleteMetadataTx(ctx, tx, session.ID); err != nil {
		return session, fmt.Errorf("delete metadata: %w", err)
	}
	if err := e.Repo.InsertMetadataTx(ctx, tx, meta); err != nil {
		return session, fmt.Errorf("insert metadata: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.MissionRegenerated, session.ID, strOrEmpty(session.UserID), events.EventPayload{
		"category": session.Category,
	}); err != nil {
		return session, err
	}
	if err := tx.Commit(); err != nil {
		return session, err
	}
	return session, nil
}

// accept moves a BRIEFED session to ACTIVE at round 1, status GREEN.
func (e Engine) accept(ctx context.Context, session domain.MissionSession) (domain.MissionSession, error) {
	if err := ensureSessionTransition(session.State, domain.StateActive); err != nil {
		return session, err
	}
	session.State = domain.StateActive
	session.CurrentRound = 1
	session.OperationalStatus = domain.ThreatGreen
	session.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return session, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSessionTx(ctx, tx, session); err != nil {
		return session, fmt.Errorf("update session: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.MissionAccepted, session.ID, strOrEmpty(session.UserID), nil); err != nil {
		return session, err
	}
	if err := tx.Commit(); err != nil {
		return session, err
	}
	return session, nil
}

// DecisionOptions are the inputs of one gameplay request.
type DecisionOptions struct {
	SessionID      string
	UserID         string
	Message        string
	SelectedOption *int
	GameHistory    []llm.Message

	// RoundNumber and FullMissionDetails come from the client and are used
	// only as fallbacks when the persisted session cannot be read.
	RoundNumber        int
	FullMissionDetails string
}

// DecisionResult is the player-facing product of one gameplay round.
type DecisionResult struct {
	Session                domain.MissionSession
	Response               string
	DecisionOptions        []domain.DecisionOption
	PhaseName              string
	Objective              string
	IsOperationallySound   bool
	ThreatLevel            domain.ThreatLevel
	MissionEnded           bool
	RiskAssessment         domain.RiskTier
	Outcome                *domain.OutcomeLetter
	SuccessScore           *int
	ProgressionSuggestions []string
	XPResult               *progression.Award

	// AwaitingAcceptance is set when the session is still BRIEFED and the
	// message was neither ACCEPT nor REGENERATE.
	AwaitingAcceptance bool
}

// phaseContext snapshots the backend-only phase tracking for the gameplay
// prompt.
func phaseContext(meta domain.MissionMetadata, session domain.MissionSession) string {
	phase := meta.CurrentPhase()
	if phase == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current phase: %d of %d - %s\n", phase.Number, len(meta.Phases), phase.Name)
	fmt.Fprintf(&b, "Phase objective: %s\n", phase.Objective)
	fmt.Fprintf(&b, "Round %d of %d\n", session.CurrentRound, session.MaxRounds)
	if len(meta.PhaseObjectivesCompleted) > 0 {
		fmt.Fprintf(&b, "Objectives completed: %s\n", strings.Join(meta.PhaseObjectivesCompleted, "; "))
	}
	return b.String()
}

// advancePhase moves the phase index forward when the round counter crosses
// the cumulative phase estimates.
func advancePhase(meta *domain.MissionMetadata, currentRound int) {
	if len(meta.Phases) == 0 {
		return
	}
	boundary := 0
	for i, p := range meta.Phases {
		boundary += p.EstimatedRounds
		if currentRound <= boundary {
			if i > meta.CurrentPhaseIndex {
				for j := meta.CurrentPhaseIndex; j < i; j++ {
					meta.PhaseObjectivesCompleted = append(meta.PhaseObjectivesCompleted, meta.Phases[j].Objective)
				}
				meta.CurrentPhaseIndex = i
			}
			return
		}
	}
	if meta.CurrentPhaseIndex < len(meta.Phases) {
		for j := meta.CurrentPhaseIndex; j < len(meta.Phases); j++ {
			meta.PhaseObjectivesCompleted = append(meta.PhaseObjectivesCompleted, meta.Phases[j].Objective)
		}
		meta.CurrentPhaseIndex = len(meta.Phases)
	}
}

// ProcessDecision runs one round of gameplay: acceptance handling for BRIEFED
// sessions, otherwise gateway call, parse, state update, termination check.
func (e Engine) ProcessDecision(ctx context.Context, opts DecisionOptions) (DecisionResult, error) {
	session, persisted, err := e.loadSession(ctx, opts)
	if err != nil {
		return DecisionResult{}, err
	}
	if session.IsCompleted() {
		return DecisionResult{}, ErrSessionCompleted
	}

	if session.State == domain.StateBriefed {
		return e.handleBriefed(ctx, session, opts)
	}

	meta, haveMeta := e.loadMetadata(ctx, session.ID)
	fullDetails := meta.FullBriefing
	if fullDetails == "" {
		fullDetails = opts.FullMissionDetails
	}

	content, usedFallback := e.gameplayResponse(ctx, fullDetails, phaseContext(meta, session), opts)
	parsed := briefing.ParseResponse(content)

	playerRequested := mission.IsConclusionRequest(opts.Message)
	announced := mission.AnnouncesCompletion(content)

	if err := ensureSessionTransition(session.State, domain.StateActive); err != nil {
		return DecisionResult{}, err
	}
	session.CurrentRound++
	session.OperationalStatus = parsed.ThreatLevel
	session.StepsCompleted = append(session.StepsCompleted, decisionText(opts))
	session.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	forced := session.CurrentRound >= session.MaxRounds
	ended := announced || playerRequested || forced

	result := DecisionResult{
		Response:             briefing.StripOptions(content),
		DecisionOptions:      parsed.Options,
		PhaseName:            parsed.PhaseName,
		Objective:            parsed.Objective,
		IsOperationallySound: parsed.Sound || usedFallback,
		ThreatLevel:          parsed.ThreatLevel,
		RiskAssessment:       briefing.RiskFor(optionID(opts.SelectedOption), decisionText(opts)),
	}
	if len(result.DecisionOptions) == 0 {
		result.DecisionOptions = mission.GenericOptions()
	}

	if ended {
		letter, score := mission.Resolve(content, parsed.ThreatLevel, forced, playerRequested)
		session.State = domain.StateCompleted
		session.Outcome = &letter
		session.SuccessScore = &score
		result.MissionEnded = true
		result.Outcome = &letter
		result.SuccessScore = &score
		result.DecisionOptions = []domain.DecisionOption{}
	}

	decision := e.buildDecision(session, opts, content, parsed, result.RiskAssessment)

	if haveMeta {
		advancePhase(&meta, session.CurrentRound)
		meta.UpdatedAt = session.UpdatedAt
	}

	if persisted {
		e.persistRound(ctx, session, meta, haveMeta, decision, ended)
	}

	if ended {
		result.XPResult, result.ProgressionSuggestions = e.finishMission(ctx, session, meta)
	}

	result.Session = session
	return result, nil
}

// loadSession reads the session, falling back to a request-built one when
// persistence fails for reasons other than a missing row.
func (e Engine) loadSession(ctx context.Context, opts DecisionOptions) (domain.MissionSession, bool, error) {
	session, err := e.Repo.GetSession(ctx, opts.SessionID)
	if err == nil {
		return session, true, nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return domain.MissionSession{}, false, ErrSessionNotFound
	}
	e.logger().Warn("session read failed, continuing with request state", "session_id", opts.SessionID, "error", err)
	now := e.now().UTC().Format(time.RFC3339)
	session = domain.MissionSession{
		ID:                opts.SessionID,
		CurrentRound:      opts.RoundNumber,
		MaxRounds:         e.Config.Rounds.Default,
		OperationalStatus: domain.ThreatGreen,
		State:             domain.StateActive,
		StepsCompleted:    []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if opts.UserID != "" {
		session.UserID = &opts.UserID
	}
	return session, false, nil
}

func (e Engine) loadMetadata(ctx context.Context, sessionID string) (domain.MissionMetadata, bool) {
	meta, err := e.Repo.GetMetadataBySession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			e.logger().Warn("metadata read failed", "session_id", sessionID, "error", err)
		}
		return domain.MissionMetadata{}, false
	}
	return meta, true
}

// handleBriefed interprets ACCEPT / REGENERATE while the session awaits
// acceptance. Any other message re-issues the briefing prompt.
func (e Engine) handleBriefed(ctx context.Context, session domain.MissionSession, opts DecisionOptions) (DecisionResult, error) {
	switch strings.ToUpper(strings.TrimSpace(opts.Message)) {
	case "ACCEPT":
		accepted, err := e.accept(ctx, session)
		if err != nil {
			return DecisionResult{}, err
		}
		return DecisionResult{
			Session:              accepted,
			Response:             "Mission accepted. You are now operational. Round 1 begins - state your first move.",
			DecisionOptions:      mission.GenericOptions(),
			PhaseName:            briefing.UnknownPhase,
			Objective:            briefing.DefaultObjective,
			IsOperationallySound: true,
			ThreatLevel:          domain.ThreatGreen,
			RiskAssessment:       domain.RiskMedium,
		}, nil
	case "REGENERATE":
		regenerated, err := e.regenerate(ctx, session)
		if err != nil {
			return DecisionResult{}, err
		}
		return DecisionResult{
			Session:              regenerated,
			Response:             regenerated.Briefing,
			DecisionOptions:      []domain.DecisionOption{},
			PhaseName:            briefing.UnknownPhase,
			Objective:            briefing.DefaultObjective,
			IsOperationallySound: true,
			ThreatLevel:          domain.ThreatGreen,
			RiskAssessment:       domain.RiskMedium,
			AwaitingAcceptance:   true,
		}, nil
	default:
		return DecisionResult{
			Session:              session,
			Response:             briefing.AcceptancePrompt,
			DecisionOptions:      []domain.DecisionOption{},
			PhaseName:            briefing.UnknownPhase,
			Objective:            briefing.DefaultObjective,
			IsOperationallySound: true,
			ThreatLevel:          session.OperationalStatus,
			RiskAssessment:       domain.RiskMedium,
			AwaitingAcceptance:   true,
		}, nil
	}
}

// gameplayResponse calls the gateway once. Failures fall back to the canned
// narrative instead of failing the player's turn.
func (e Engine) gameplayResponse(ctx context.Context, fullDetails, phaseCtx string, opts DecisionOptions) (string, bool) {
	messages := make([]llm.Message, 0, len(opts.GameHistory)+2)
	messages = append(messages, llm.Message{Role: "system", Content: mission.GameplayPrompt(fullDetails, phaseCtx)})
	messages = append(messages, opts.GameHistory...)
	messages = append(messages, llm.Message{Role: "user", Content: opts.Message})

	resp, err := e.Generator.Complete(ctx, llm.Request{
		Messages:  messages,
		MaxTokens: e.Config.Generator.GameplayMaxTokens,
	})
	if err != nil || resp.Content == "" {
		e.logger().Warn("gameplay generation failed, serving fallback", "session_id", opts.SessionID, "error", err)
		return mission.FallbackNarrative, true
	}
	return resp.Content, false
}

func (e Engine) buildDecision(session domain.MissionSession, opts DecisionOptions, content string, parsed briefing.ParsedResponse, risk domain.RiskTier) domain.Decision {
	d := domain.Decision{
		ID:               uuid.New().String(),
		SessionID:        session.ID,
		RoundNumber:      session.CurrentRound,
		Response:         content,
		Context:          fmt.Sprintf("%s: %s", parsed.PhaseName, parsed.Objective),
		Sound:            parsed.Sound,
		ThreatLevelAfter: parsed.ThreatLevel,
		RiskAssessment:   risk,
		CreatedAt:        session.UpdatedAt,
	}
	if opts.SelectedOption != nil {
		d.Type = domain.DecisionOptionSelected
		d.SelectedOption = opts.SelectedOption
	} else {
		d.Type = domain.DecisionCustomInput
		msg := opts.Message
		d.CustomInput = &msg
	}
	return d
}

// persistRound writes the round's state best effort: a storage failure is
// logged and the turn's narrative still reaches the player.
func (e Engine) persistRound(ctx context.Context, session domain.MissionSession, meta domain.MissionMetadata, haveMeta bool, decision domain.Decision, ended bool) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		e.logger().Warn("round persistence failed", "session_id", session.ID, "error", err)
		return
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateSessionTx(ctx, tx, session); err != nil {
		e.logger().Warn("session update failed", "session_id", session.ID, "error", err)
		return
	}
	if err := e.Repo.InsertDecisionTx(ctx, tx, decision); err != nil {
		e.logger().Warn("decision insert failed", "session_id", session.ID, "error", err)
		return
	}
	if haveMeta {
		if err := e.Repo.UpdateMetadataTx(ctx, tx, meta); err != nil {
			e.logger().Warn("metadata update failed", "session_id", session.ID, "error", err)
			return
		}
	}
	userID := strOrEmpty(session.UserID)
	if err := e.Events.Append(ctx, tx, events.DecisionRecorded, session.ID, userID, events.EventPayload{
		"round":        decision.RoundNumber,
		"type":         decision.Type,
		"threat_level": decision.ThreatLevelAfter,
		"sound":        decision.Sound,
	}); err != nil {
		e.logger().Warn("event append failed", "session_id", session.ID, "error", err)
		return
	}
	if ended {
		if err := e.Events.Append(ctx, tx, events.MissionCompleted, session.ID, userID, events.EventPayload{
			"outcome": session.Outcome,
			"score":   session.SuccessScore,
			"round":   session.CurrentRound,
		}); err != nil {
			e.logger().Warn("event append failed", "session_id", session.ID, "error", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		e.logger().Warn("round persistence failed", "session_id", session.ID, "error", err)
	}
}

// finishMission applies XP and builds progression suggestions. Both are best
// effort and anonymous sessions get neither.
func (e Engine) finishMission(ctx context.Context, session domain.MissionSession, meta domain.MissionMetadata) (*progression.Award, []string) {
	if session.UserID == nil {
		return nil, nil
	}
	userID := *session.UserID
	decisions, err := e.Repo.ListDecisions(ctx, session.ID)
	if err != nil {
		e.logger().Warn("decisions read failed for award", "session_id", session.ID, "error", err)
		decisions = nil
	}
	award := progression.ComputeAward(session, decisions, meta.FullBriefing)
	if err := e.applyAward(ctx, userID, session, &award); err != nil {
		e.logger().Warn("xp award failed", "session_id", session.ID, "error", err)
	}

	sessions, decisionLog, err := e.Repo.CompletedSessions(ctx, userID)
	if err != nil {
		e.logger().Warn("analytics read failed", "user_id", userID, "error", err)
		return &award, nil
	}
	return &award, progression.Suggestions(progression.Analyze(sessions, decisionLog))
}

func (e Engine) applyAward(ctx context.Context, userID string, session domain.MissionSession, award *progression.Award) error {
	now := e.now().UTC().Format(time.RFC3339)

	stats, err := e.Repo.GetCharacterStats(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		stats = domain.CharacterStats{UserID: userID, BaseLevel: 1, CreatedAt: now}
	} else if err != nil {
		return err
	}
	oldLevel := stats.BaseLevel
	stats.BaseXP += award.BaseXP
	stats.BaseLevel = progression.LevelFor(stats.BaseXP)
	award.NewLevel = stats.BaseLevel
	award.LeveledUp = stats.BaseLevel > oldLevel
	stats.MissionsCompleted++
	if session.Outcome != nil && (*session.Outcome == domain.OutcomeA || *session.Outcome == domain.OutcomeB) {
		stats.SuccessfulMissions++
	}
	stats.ReputationScore += award.Reputation
	stats.UpdatedAt = now

	userSkills, err := e.Repo.ListUserSkills(ctx, userID)
	if err != nil {
		return err
	}
	byCode := map[string]domain.UserSkill{}
	for _, us := range userSkills {
		byCode[us.SkillCode] = us
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.UpsertCharacterStatsTx(ctx, tx, stats); err != nil {
		return err
	}
	gain := domain.XPGain{
		ID:        uuid.New().String(),
		UserID:    userID,
		SessionID: session.ID,
		BaseXP:    award.BaseXP,
		Reason:    fmt.Sprintf("mission %s completed with outcome %s", session.ID, outcomeOrDash(session.Outcome)),
		CreatedAt: now,
	}
	if err := e.Repo.InsertXPGainTx(ctx, tx, gain); err != nil {
		return err
	}
	for code, xp := range award.SkillXP {
		skill, err := e.Repo.GetSkillByCode(ctx, code)
		if err != nil {
			continue
		}
		us, ok := byCode[code]
		if !ok {
			us = domain.UserSkill{UserID: userID, SkillID: skill.ID, SkillCode: code, Level: 1, IsEnabled: true}
		}
		us.XP += xp
		us.Level = progression.SkillLevelFor(us.XP)
		us.TimesUsed++
		if err := e.Repo.UpsertUserSkillTx(ctx, tx, us); err != nil {
			return err
		}
		skillGain := domain.XPGain{
			ID:        uuid.New().String(),
			UserID:    userID,
			SessionID: session.ID,
			SkillID:   &skill.ID,
			SkillXP:   xp,
			Reason:    fmt.Sprintf("skill %s exercised", code),
			CreatedAt: now,
		}
		if err := e.Repo.InsertXPGainTx(ctx, tx, skillGain); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetSession returns one session.
func (e Engine) GetSession(ctx context.Context, id string) (domain.MissionSession, error) {
	return e.Repo.GetSession(ctx, id)
}

// ListDecisions returns the append-only decision log for a session.
func (e Engine) ListDecisions(ctx context.Context, sessionID string) ([]domain.Decision, error) {
	if _, err := e.Repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.Repo.ListDecisions(ctx, sessionID)
}

// Analytics aggregates a user's completed missions.
func (e Engine) Analytics(ctx context.Context, userID string) (domain.UserAnalytics, error) {
	sessions, decisions, err := e.Repo.CompletedSessions(ctx, userID)
	if err != nil {
		return domain.UserAnalytics{}, err
	}
	return progression.Analyze(sessions, decisions), nil
}

// Character returns stats and skills for a user, defaulting a fresh record
// when none exists yet.
func (e Engine) Character(ctx context.Context, userID string) (domain.CharacterStats, []domain.UserSkill, error) {
	stats, err := e.Repo.GetCharacterStats(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		stats = domain.CharacterStats{UserID: userID, BaseLevel: 1}
	} else if err != nil {
		return domain.CharacterStats{}, nil, err
	}
	skills, err := e.Repo.ListUserSkills(ctx, userID)
	if err != nil {
		return stats, nil, err
	}
	return stats, skills, nil
}

func decisionText(opts DecisionOptions) string {
	return strings.TrimSpace(opts.Message)
}

func optionID(selected *int) int {
	if selected == nil {
		return 0
	}
	return *selected
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func outcomeOrDash(o *domain.OutcomeLetter) string {
	if o == nil {
		return "-"
	}
	return string(*o)
}
