package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aTrapDeer/intelligence-survival/internal/config"
	"github.com/aTrapDeer/intelligence-survival/internal/db"
	"github.com/aTrapDeer/intelligence-survival/internal/domain"
	"github.com/aTrapDeer/intelligence-survival/internal/engine"
	"github.com/aTrapDeer/intelligence-survival/internal/llm"
	"github.com/aTrapDeer/intelligence-survival/internal/migrate"
)

const testJWTSecret = "test-secret"

const serverMissionDoc = `=== CIA MISSION BRIEFING ===

1. OPERATION CODENAME: PAPER BRIDGE
2. MISSION TYPE: HUMINT_OPERATIONS
3. TARGET COUNTRY/REGION: Georgia
4. INTELLIGENCE OBJECTIVE: Re-establish contact with a dormant asset in Tbilisi.
5. OPERATIONAL CONSTRAINTS: No contact with the local station.
6. EQUIPMENT/RESOURCES: One-time pads, tourist cover kit.
7. COVER IDENTITY: Wine trade buyer on a sourcing trip.
8. THREAT ASSESSMENT: GRU watchers rotate through the old town.
9. FOREIGN AGENCY INVOLVEMENT: GRU (Russia)

10. MISSION PHASES:
PHASE 1: Contact Protocol
Signal the asset through the agreed initial drop and wait for the countersign.

11. SUCCESS CRITERIA:
- Asset re-activated with a working communication plan

12. FAILURE CONDITIONS:
- Asset refuses contact or is under control

13. EXPECTED COMPLEXITY: 5 rounds

14. FOUR POSSIBLE OUTCOMES:
OUTCOME A: Asset re-activated cleanly.
OUTCOME B: Asset re-activated but possibly monitored.
OUTCOME C: Contact aborted, asset left dormant.
OUTCOME D: Asset exposed or doubled.`

const serverFinalResponse = `The countersign checks out. MISSION COMPLETE.

OUTCOME A: The asset is re-activated with a clean communication plan.`

type scriptedGenerator struct {
	responses []string
	calls     int
}

func (g *scriptedGenerator) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	i := g.calls
	g.calls++
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return &llm.Response{Content: g.responses[i], Model: "test-model", FinishReason: "stop"}, nil
}

type failingGenerator struct {
	err error
}

func (g *failingGenerator) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return nil, g.err
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, responses ...string) (*testServer, func()) {
	t.Helper()
	return newTestServerWith(t, &scriptedGenerator{responses: responses})
}

func newTestServerWith(t *testing.T, gen engine.Generator) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), gen)
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowUserIDHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func generateTestMission(t *testing.T, srv *testServer, headers map[string]string) GenerateMissionResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions", map[string]any{
		"generateMission": true,
		"missionType":     "HUMINT_OPERATIONS",
	}, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("generate status %d: %s", res.StatusCode, string(data))
	}
	var mission GenerateMissionResponse
	if err := json.Unmarshal(data, &mission); err != nil {
		t.Fatalf("unmarshal mission: %v", err)
	}
	return mission
}

func TestGenerateMissionEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, serverMissionDoc)
	defer cleanup()

	mission := generateTestMission(t, srv, nil)
	if mission.MissionSessionID == "" {
		t.Fatalf("missing session id")
	}
	if mission.Agency != "CIA" {
		t.Fatalf("agency = %q", mission.Agency)
	}
	if mission.EstimatedRounds != 5 {
		t.Fatalf("estimated rounds = %d, want 5", mission.EstimatedRounds)
	}
	if !strings.Contains(mission.MissionBriefing, "PAPER BRIDGE") {
		t.Fatalf("briefing lost visible content")
	}
	if strings.Contains(mission.MissionBriefing, "OUTCOME A") || strings.Contains(mission.MissionBriefing, "SUCCESS CRITERIA") {
		t.Fatalf("briefing leaked backend sections:\n%s", mission.MissionBriefing)
	}
	if !strings.Contains(mission.MissionBriefing, `Type "ACCEPT"`) {
		t.Fatalf("briefing missing acceptance prompt")
	}
}

func TestGenerateMissionRequiresFlag(t *testing.T) {
	srv, cleanup := newTestServer(t, serverMissionDoc)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions", map[string]any{
		"generateMission": false,
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "bad_request" {
		t.Fatalf("code = %q, want bad_request: %s", envelope.Error.Code, string(data))
	}
}

func TestGenerateGatewayStatusByErrorClass(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"transient", llm.NewTransientError(errors.New("upstream overloaded")), http.StatusServiceUnavailable},
		{"fatal", llm.NewFatalError(errors.New("invalid api key")), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, cleanup := newTestServerWith(t, &failingGenerator{err: tc.err})
			defer cleanup()
			res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions", map[string]any{
				"generateMission": true,
			}, nil)
			if res.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", res.StatusCode, tc.wantStatus, string(data))
			}
			var envelope struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil {
				t.Fatalf("unmarshal envelope: %v", err)
			}
			if envelope.Error.Code != "generation_failed" {
				t.Fatalf("code = %q, want generation_failed: %s", envelope.Error.Code, string(data))
			}
		})
	}
}

func TestEngageLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t, serverMissionDoc, serverFinalResponse)
	defer cleanup()
	headers := map[string]string{"X-User-Id": "alice"}
	mission := generateTestMission(t, srv, headers)

	// pre-acceptance chatter re-issues the prompt
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions/engage", map[string]any{
		"missionSessionId": mission.MissionSessionID,
		"message":          "who am I working for",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("briefed engage status %d: %s", res.StatusCode, string(data))
	}
	var round EngageResponse
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal round: %v", err)
	}
	if !round.AwaitingAcceptance || round.CurrentRound != 0 {
		t.Fatalf("expected acceptance prompt, got %+v", round)
	}

	// accept
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions/engage", map[string]any{
		"missionSessionId": mission.MissionSessionID,
		"message":          "ACCEPT",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept status %d: %s", res.StatusCode, string(data))
	}
	round = EngageResponse{}
	_ = json.Unmarshal(data, &round)
	if round.AwaitingAcceptance || round.CurrentRound != 1 {
		t.Fatalf("accept response mismatch: %+v", round)
	}
	if len(round.DecisionOptions) != 4 {
		t.Fatalf("options = %d, want 4", len(round.DecisionOptions))
	}

	// the round that completes the mission
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions/engage", map[string]any{
		"missionSessionId": mission.MissionSessionID,
		"message":          "make the drop and wait for the countersign",
	}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("final engage status %d: %s", res.StatusCode, string(data))
	}
	round = EngageResponse{}
	_ = json.Unmarshal(data, &round)
	if !round.MissionEnded {
		t.Fatalf("mission should have ended: %+v", round)
	}
	if round.MissionOutcome == nil || *round.MissionOutcome != domain.OutcomeA {
		t.Fatalf("outcome = %v, want A", round.MissionOutcome)
	}
	if round.XPResult == nil {
		t.Fatalf("expected xp result for identified user")
	}
	if len(round.DecisionOptions) != 0 {
		t.Fatalf("completed round must offer no options")
	}

	// completed sessions reject further play
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions/engage", map[string]any{
		"missionSessionId": mission.MissionSessionID,
		"message":          "one more move",
	}, headers)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on completed session, got %d: %s", res.StatusCode, string(data))
	}

	// decision log never exposes the option block
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/missions/"+mission.MissionSessionID+"/decisions", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decisions status %d: %s", res.StatusCode, string(data))
	}
	if strings.Contains(string(data), "OPTION 1:") {
		t.Fatalf("decision log leaked option block: %s", string(data))
	}
}

func TestEngageValidation(t *testing.T) {
	srv, cleanup := newTestServer(t, serverMissionDoc)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions/engage", map[string]any{
		"message": "no session",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions/engage", map[string]any{
		"missionSessionId": "does-not-exist",
		"message":          "hello",
	}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestGetMission(t *testing.T) {
	srv, cleanup := newTestServer(t, serverMissionDoc)
	defer cleanup()
	mission := generateTestMission(t, srv, nil)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/missions/"+mission.MissionSessionID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get mission status %d: %s", res.StatusCode, string(data))
	}
	var body SessionBody
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if body.Session.State != domain.StateBriefed {
		t.Fatalf("state = %s, want briefed", body.Session.State)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/missions/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
}

func TestAnalyticsRequiresIdentity(t *testing.T) {
	srv, cleanup := newTestServer(t, serverMissionDoc)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/analytics", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/analytics", nil, map[string]string{"X-User-Id": "alice"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, string(data))
	}
	var body AnalyticsResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal analytics: %v", err)
	}
	if len(body.Suggestions) == 0 {
		t.Fatalf("expected at least one suggestion")
	}
}

func TestJWTAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t, serverMissionDoc)
	defer cleanup()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).
		SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/character", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.StatusCode, string(data))
	}
	var body CharacterResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal character: %v", err)
	}
	if body.Stats.BaseLevel != 1 {
		t.Fatalf("fresh character level = %d, want 1", body.Stats.BaseLevel)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/character", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d: %s", res.StatusCode, string(data))
	}
}
