package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func jsonEncode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func jsonDecode(data string, v any) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), v)
}

const sessionColumns = `id,user_id,briefing,category,context,foreign_threat,current_round,max_rounds,operational_status,state,mission_outcome,success_score,mission_steps_completed,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.MissionSession, error) {
	var (
		s       domain.MissionSession
		userID  sql.NullString
		outcome sql.NullString
		score   sql.NullInt64
		steps   string
	)
	err := row.Scan(&s.ID, &userID, &s.Briefing, &s.Category, &s.Context, &s.ForeignThreat,
		&s.CurrentRound, &s.MaxRounds, &s.OperationalStatus, &s.State,
		&outcome, &score, &steps, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if userID.Valid {
		s.UserID = &userID.String
	}
	if outcome.Valid {
		letter := domain.OutcomeLetter(outcome.String)
		s.Outcome = &letter
	}
	if score.Valid {
		n := int(score.Int64)
		s.SuccessScore = &n
	}
	s.StepsCompleted = []string{}
	jsonDecode(steps, &s.StepsCompleted)
	return s, nil
}

func (r Repo) InsertSessionTx(ctx context.Context, tx *sql.Tx, s domain.MissionSession) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO mission_sessions(`+sessionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, nullableStr(s.UserID), s.Briefing, s.Category, s.Context, s.ForeignThreat,
		s.CurrentRound, s.MaxRounds, s.OperationalStatus, s.State,
		nullableOutcome(s.Outcome), nullableInt(s.SuccessScore), jsonEncode(s.StepsCompleted),
		s.CreatedAt, s.UpdatedAt)
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.MissionSession, error) {
	return scanSession(r.DB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM mission_sessions WHERE id=?`, id))
}

func (r Repo) GetSessionTx(ctx context.Context, tx *sql.Tx, id string) (domain.MissionSession, error) {
	return scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM mission_sessions WHERE id=?`, id))
}

func (r Repo) ListSessions(ctx context.Context, userID string, limit int) ([]domain.MissionSession, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + sessionColumns + ` FROM mission_sessions`
	args := []any{}
	if userID != "" {
		q += ` WHERE user_id=?`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.MissionSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateSessionTx(ctx context.Context, tx *sql.Tx, s domain.MissionSession) error {
	res, err := tx.ExecContext(ctx, `UPDATE mission_sessions SET briefing=?,category=?,context=?,foreign_threat=?,current_round=?,max_rounds=?,operational_status=?,state=?,mission_outcome=?,success_score=?,mission_steps_completed=?,updated_at=? WHERE id=?`,
		s.Briefing, s.Category, s.Context, s.ForeignThreat,
		s.CurrentRound, s.MaxRounds, s.OperationalStatus, s.State,
		nullableOutcome(s.Outcome), nullableInt(s.SuccessScore), jsonEncode(s.StepsCompleted),
		s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const metadataColumns = `id,mission_session_id,full_mission_briefing,detailed_phases,success_conditions,failure_conditions,possible_outcomes,current_phase_index,phase_objectives_completed,backend_notes,created_at,updated_at`

func scanMetadata(row rowScanner) (domain.MissionMetadata, error) {
	var (
		m                                  domain.MissionMetadata
		phases, success, failure, outcomes string
		objectives                         string
	)
	err := row.Scan(&m.ID, &m.SessionID, &m.FullBriefing, &phases, &success, &failure, &outcomes,
		&m.CurrentPhaseIndex, &objectives, &m.BackendNotes, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.Phases = []domain.Phase{}
	m.SuccessConditions = []string{}
	m.FailureConditions = []string{}
	m.PossibleOutcomes = []domain.Outcome{}
	m.PhaseObjectivesCompleted = []string{}
	jsonDecode(phases, &m.Phases)
	jsonDecode(success, &m.SuccessConditions)
	jsonDecode(failure, &m.FailureConditions)
	jsonDecode(outcomes, &m.PossibleOutcomes)
	jsonDecode(objectives, &m.PhaseObjectivesCompleted)
	return m, nil
}

func (r Repo) InsertMetadataTx(ctx context.Context, tx *sql.Tx, m domain.MissionMetadata) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO mission_metadata(`+metadataColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.SessionID, m.FullBriefing, jsonEncode(m.Phases), jsonEncode(m.SuccessConditions),
		jsonEncode(m.FailureConditions), jsonEncode(m.PossibleOutcomes), m.CurrentPhaseIndex,
		jsonEncode(m.PhaseObjectivesCompleted), m.BackendNotes, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMetadataBySession(ctx context.Context, sessionID string) (domain.MissionMetadata, error) {
	return scanMetadata(r.DB.QueryRowContext(ctx, `SELECT `+metadataColumns+` FROM mission_metadata WHERE mission_session_id=?`, sessionID))
}

func (r Repo) GetMetadataBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (domain.MissionMetadata, error) {
	return scanMetadata(tx.QueryRowContext(ctx, `SELECT `+metadataColumns+` FROM mission_metadata WHERE mission_session_id=?`, sessionID))
}

func (r Repo) UpdateMetadataTx(ctx context.Context, tx *sql.Tx, m domain.MissionMetadata) error {
	res, err := tx.ExecContext(ctx, `UPDATE mission_metadata SET full_mission_briefing=?,detailed_phases=?,success_conditions=?,failure_conditions=?,possible_outcomes=?,current_phase_index=?,phase_objectives_completed=?,backend_notes=?,updated_at=? WHERE mission_session_id=?`,
		m.FullBriefing, jsonEncode(m.Phases), jsonEncode(m.SuccessConditions),
		jsonEncode(m.FailureConditions), jsonEncode(m.PossibleOutcomes), m.CurrentPhaseIndex,
		jsonEncode(m.PhaseObjectivesCompleted), m.BackendNotes, m.UpdatedAt, m.SessionID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMetadataTx(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM mission_metadata WHERE mission_session_id=?`, sessionID)
	return err
}

const decisionColumns = `id,mission_session_id,round_number,decision_type,selected_option,custom_input,ai_response,decision_context,was_operationally_sound,threat_level_after,risk_assessment,created_at`

func scanDecision(row rowScanner) (domain.Decision, error) {
	var (
		d        domain.Decision
		selected sql.NullInt64
		custom   sql.NullString
		sound    int
	)
	err := row.Scan(&d.ID, &d.SessionID, &d.RoundNumber, &d.Type, &selected, &custom,
		&d.Response, &d.Context, &sound, &d.ThreatLevelAfter, &d.RiskAssessment, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if selected.Valid {
		n := int(selected.Int64)
		d.SelectedOption = &n
	}
	if custom.Valid {
		d.CustomInput = &custom.String
	}
	d.Sound = sound != 0
	return d, nil
}

func (r Repo) InsertDecisionTx(ctx context.Context, tx *sql.Tx, d domain.Decision) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO user_decisions(`+decisionColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.SessionID, d.RoundNumber, d.Type, nullableInt(d.SelectedOption), nullableStr(d.CustomInput),
		d.Response, d.Context, boolInt(d.Sound), d.ThreatLevelAfter, d.RiskAssessment, d.CreatedAt)
	return err
}

func (r Repo) ListDecisions(ctx context.Context, sessionID string) ([]domain.Decision, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+decisionColumns+` FROM user_decisions WHERE mission_session_id=? ORDER BY round_number ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) ListEvents(ctx context.Context, sessionID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id,created_at,type,COALESCE(mission_session_id,''),COALESCE(user_id,''),payload FROM events`
	args := []any{}
	if sessionID != "" {
		q += ` WHERE mission_session_id=?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.SessionID, &e.UserID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) GetCharacterStats(ctx context.Context, userID string) (domain.CharacterStats, error) {
	var c domain.CharacterStats
	err := r.DB.QueryRowContext(ctx, `SELECT user_id,base_level,base_xp,total_missions_completed,total_successful_missions,reputation_score,created_at,updated_at FROM character_stats WHERE user_id=?`, userID).
		Scan(&c.UserID, &c.BaseLevel, &c.BaseXP, &c.MissionsCompleted, &c.SuccessfulMissions, &c.ReputationScore, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) UpsertCharacterStatsTx(ctx context.Context, tx *sql.Tx, c domain.CharacterStats) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO character_stats(user_id,base_level,base_xp,total_missions_completed,total_successful_missions,reputation_score,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET base_level=excluded.base_level,base_xp=excluded.base_xp,total_missions_completed=excluded.total_missions_completed,total_successful_missions=excluded.total_successful_missions,reputation_score=excluded.reputation_score,updated_at=excluded.updated_at`,
		c.UserID, c.BaseLevel, c.BaseXP, c.MissionsCompleted, c.SuccessfulMissions, c.ReputationScore, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) ListSkills(ctx context.Context) ([]domain.Skill, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,skill_code,skill_name,description,is_toggleable FROM skills ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Skill
	for rows.Next() {
		var s domain.Skill
		var toggleable int
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Description, &toggleable); err != nil {
			return nil, err
		}
		s.IsToggleable = toggleable != 0
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) GetSkillByCode(ctx context.Context, code string) (domain.Skill, error) {
	var s domain.Skill
	var toggleable int
	err := r.DB.QueryRowContext(ctx, `SELECT id,skill_code,skill_name,description,is_toggleable FROM skills WHERE skill_code=?`, code).
		Scan(&s.ID, &s.Code, &s.Name, &s.Description, &toggleable)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.IsToggleable = toggleable != 0
	return s, err
}

func (r Repo) ListUserSkills(ctx context.Context, userID string) ([]domain.UserSkill, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT us.user_id,us.skill_id,s.skill_code,s.skill_name,us.skill_level,us.skill_xp,us.is_enabled,us.times_used
		FROM user_skills us JOIN skills s ON s.id=us.skill_id WHERE us.user_id=? ORDER BY us.skill_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserSkill
	for rows.Next() {
		var us domain.UserSkill
		var enabled int
		if err := rows.Scan(&us.UserID, &us.SkillID, &us.SkillCode, &us.SkillName, &us.Level, &us.XP, &enabled, &us.TimesUsed); err != nil {
			return nil, err
		}
		us.IsEnabled = enabled != 0
		res = append(res, us)
	}
	return res, rows.Err()
}

func (r Repo) UpsertUserSkillTx(ctx context.Context, tx *sql.Tx, us domain.UserSkill) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO user_skills(user_id,skill_id,skill_level,skill_xp,is_enabled,times_used)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(user_id,skill_id) DO UPDATE SET skill_level=excluded.skill_level,skill_xp=excluded.skill_xp,is_enabled=excluded.is_enabled,times_used=excluded.times_used`,
		us.UserID, us.SkillID, us.Level, us.XP, boolInt(us.IsEnabled), us.TimesUsed)
	return err
}

func (r Repo) InsertXPGainTx(ctx context.Context, tx *sql.Tx, g domain.XPGain) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO xp_gains(id,user_id,mission_session_id,base_xp_gained,skill_id,skill_xp_gained,reason,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		g.ID, g.UserID, nullable(g.SessionID), g.BaseXP, nullableInt(g.SkillID), g.SkillXP, g.Reason, g.CreatedAt)
	return err
}

func (r Repo) ListXPGains(ctx context.Context, userID string, limit int) ([]domain.XPGain, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,COALESCE(mission_session_id,''),base_xp_gained,skill_id,skill_xp_gained,reason,created_at FROM xp_gains WHERE user_id=? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.XPGain
	for rows.Next() {
		var g domain.XPGain
		var skillID sql.NullInt64
		if err := rows.Scan(&g.ID, &g.UserID, &g.SessionID, &g.BaseXP, &skillID, &g.SkillXP, &g.Reason, &g.CreatedAt); err != nil {
			return nil, err
		}
		if skillID.Valid {
			n := int(skillID.Int64)
			g.SkillID = &n
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// CompletedSessions returns completed sessions joined with their decisions for analytics.
func (r Repo) CompletedSessions(ctx context.Context, userID string) ([]domain.MissionSession, map[string][]domain.Decision, error) {
	q := `SELECT ` + sessionColumns + ` FROM mission_sessions WHERE state='completed'`
	args := []any{}
	if userID != "" {
		q += ` AND user_id=?`
		args = append(args, userID)
	}
	q += ` ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	var sessions []domain.MissionSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	decisions := make(map[string][]domain.Decision, len(sessions))
	for _, s := range sessions {
		ds, err := r.ListDecisions(ctx, s.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("decisions for session %s: %w", s.ID, err)
		}
		decisions[s.ID] = ds
	}
	return sessions, decisions, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableOutcome(v *domain.OutcomeLetter) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
