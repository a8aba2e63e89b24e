package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	MissionGenerated   = "mission.generated"
	MissionRegenerated = "mission.regenerated"
	MissionAccepted    = "mission.accepted"
	DecisionRecorded   = "decision.recorded"
	MissionCompleted   = "mission.completed"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, sessionID, userID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(mission_session_id,user_id,type,payload,created_at) VALUES (?,?,?,?,?)`,
		nullable(sessionID), nullable(userID), evtType, string(data), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
