package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/aTrapDeer/intelligence-survival/internal/db"
	"github.com/aTrapDeer/intelligence-survival/internal/domain"
	"github.com/aTrapDeer/intelligence-survival/internal/events"
	"github.com/aTrapDeer/intelligence-survival/internal/migrate"
	"github.com/aTrapDeer/intelligence-survival/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func inTx(t *testing.T, conn *sql.DB, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		t.Fatalf("tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version < 1 {
		t.Fatalf("schema version = %d, want >= 1", version)
	}
}

func TestSeededSkills(t *testing.T) {
	r := newTestRepo(t)
	skills, err := r.ListSkills(context.Background())
	if err != nil {
		t.Fatalf("list skills: %v", err)
	}
	if len(skills) != 10 {
		t.Fatalf("got %d skills, want 10", len(skills))
	}
	byCode := map[string]domain.Skill{}
	for _, s := range skills {
		byCode[s.Code] = s
	}
	for _, code := range []string{"q_tech", "bourne", "brody", "carrie", "greatest_alley", "honey_trap", "crypto_king", "deep_throat", "ghost_protocol", "risk_taker"} {
		if _, ok := byCode[code]; !ok {
			t.Errorf("seeded skill %q missing", code)
		}
	}
	if !byCode["risk_taker"].IsToggleable {
		t.Errorf("risk_taker should be toggleable")
	}
	if byCode["q_tech"].IsToggleable {
		t.Errorf("q_tech should not be toggleable")
	}
}

func TestGetSkillByCode(t *testing.T) {
	r := newTestRepo(t)
	s, err := r.GetSkillByCode(context.Background(), "honey_trap")
	if err != nil {
		t.Fatalf("get skill: %v", err)
	}
	if s.Name != "Honey Trap" {
		t.Fatalf("skill name = %q", s.Name)
	}
	if _, err := r.GetSkillByCode(context.Background(), "does_not_exist"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.GetSession(context.Background(), "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := r.GetCharacterStats(context.Background(), "nobody"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("character stats: got %v, want ErrNotFound", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	userID := "agent-7"
	s := domain.MissionSession{
		ID:                "sess-1",
		UserID:            &userID,
		Briefing:          "redacted briefing text",
		Category:          "COUNTERINTELLIGENCE",
		Context:           "full context",
		ForeignThreat:     "SVR (Russia)",
		CurrentRound:      0,
		MaxRounds:         8,
		OperationalStatus: domain.ThreatGreen,
		State:             domain.StateBriefed,
		StepsCompleted:    []string{},
		CreatedAt:         "2026-08-30T10:00:00Z",
		UpdatedAt:         "2026-08-30T10:00:00Z",
	}
	inTx(t, r.DB, func(tx *sql.Tx) error {
		return r.InsertSessionTx(ctx, tx, s)
	})

	got, err := r.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID == nil || *got.UserID != "agent-7" {
		t.Fatalf("user id = %v", got.UserID)
	}
	if got.Outcome != nil || got.SuccessScore != nil {
		t.Fatalf("fresh session should have nil outcome and score")
	}
	if got.StepsCompleted == nil || len(got.StepsCompleted) != 0 {
		t.Fatalf("steps = %v, want empty non-nil slice", got.StepsCompleted)
	}
	if got.State != domain.StateBriefed || got.OperationalStatus != domain.ThreatGreen {
		t.Fatalf("state=%s status=%s", got.State, got.OperationalStatus)
	}

	outcome := domain.OutcomeA
	score := 91
	got.State = domain.StateCompleted
	got.CurrentRound = 8
	got.Outcome = &outcome
	got.SuccessScore = &score
	got.StepsCompleted = []string{"Records Review"}
	got.UpdatedAt = "2026-08-30T12:00:00Z"
	inTx(t, r.DB, func(tx *sql.Tx) error {
		return r.UpdateSessionTx(ctx, tx, got)
	})

	done, err := r.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get updated session: %v", err)
	}
	if done.Outcome == nil || *done.Outcome != domain.OutcomeA {
		t.Fatalf("outcome = %v", done.Outcome)
	}
	if done.SuccessScore == nil || *done.SuccessScore != 91 {
		t.Fatalf("score = %v", done.SuccessScore)
	}
	if len(done.StepsCompleted) != 1 || done.StepsCompleted[0] != "Records Review" {
		t.Fatalf("steps = %v", done.StepsCompleted)
	}

	sessions, err := r.ListSessions(ctx, "agent-7", 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "sess-1" {
		t.Fatalf("list = %v", sessions)
	}
}

func TestEventsRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB}

	inTx(t, r.DB, func(tx *sql.Tx) error {
		if err := w.Append(ctx, tx, events.MissionGenerated, "sess-9", "agent-7", events.EventPayload{"category": "SABOTAGE"}); err != nil {
			return err
		}
		return w.Append(ctx, tx, events.MissionAccepted, "sess-9", "", nil)
	})

	evts, err := r.ListEvents(ctx, "sess-9", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(evts) != 2 {
		t.Fatalf("got %d events, want 2", len(evts))
	}
	// Newest first.
	if evts[0].Type != events.MissionAccepted || evts[1].Type != events.MissionGenerated {
		t.Fatalf("order = %s, %s", evts[0].Type, evts[1].Type)
	}
	if evts[0].UserID != "" {
		t.Fatalf("empty user id should round-trip empty, got %q", evts[0].UserID)
	}
	if evts[1].Payload == "" || evts[1].Payload == "{}" {
		t.Fatalf("payload not preserved: %q", evts[1].Payload)
	}

	other, err := r.ListEvents(ctx, "other-session", 10)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no events for other session, got %d", len(other))
	}
}
