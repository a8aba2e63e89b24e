// Package server exposes the Intelligence Survival HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/aTrapDeer/intelligence-survival/internal/domain"
	"github.com/aTrapDeer/intelligence-survival/internal/engine"
	"github.com/aTrapDeer/intelligence-survival/internal/llm"
	"github.com/aTrapDeer/intelligence-survival/internal/progression"
	"github.com/aTrapDeer/intelligence-survival/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"insecure_briefing"`
	Message string         `json:"message" example:"briefing failed security validation"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(cfg.Auth))
	hcfg := huma.DefaultConfig("Intelligence Survival API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerMissions(group, cfg.Engine)
	registerAnalytics(group, cfg.Engine)
	registerCharacter(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se *engine.SecurityError
	if errors.As(err, &se) {
		return newAPIError(http.StatusInternalServerError, "insecure_briefing", err.Error(), map[string]any{
			"exposed_sections": se.Report.ExposedSections,
			"warnings":         se.Report.Warnings,
		})
	}
	var ge *engine.GenerationError
	if errors.As(err, &ge) {
		// 503 only when the underlying gateway error is retryable.
		status := http.StatusBadGateway
		if llm.IsTransient(err) {
			status = http.StatusServiceUnavailable
		}
		return newAPIError(status, "generation_failed", err.Error(), map[string]any{
			"finish_reason": ge.FinishReason,
		})
	}
	if errors.Is(err, engine.ErrSessionCompleted) {
		return newAPIError(http.StatusConflict, "session_completed", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid session state transition"):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// effectiveUserID prefers the authenticated identity over the request body.
func effectiveUserID(ctx context.Context, bodyUserID string) string {
	if id := userIDFromContext(ctx); id != "" {
		return id
	}
	return bodyUserID
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "generate-mission",
		Method:        http.MethodPost,
		Path:          "/missions",
		Summary:       "Generate a new mission",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body GenerateMissionRequest `json:"body"`
	}) (*struct {
		Body GenerateMissionResponse `json:"body"`
	}, error) {
		if !input.Body.GenerateMission {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "generateMission must be true", nil)
		}
		userID := effectiveUserID(ctx, input.Body.UserID)
		generated, err := e.GenerateMission(ctx, input.Body.MissionType, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GenerateMissionResponse `json:"body"`
		}{Body: GenerateMissionResponse{
			MissionBriefing:  generated.Session.Briefing,
			Agency:           generated.Agency,
			Category:         generated.Session.Category,
			Context:          generated.Session.Context,
			ForeignThreat:    generated.Session.ForeignThreat,
			MissionSessionID: generated.Session.ID,
			EstimatedRounds:  generated.EstimatedRounds,
			TotalPhases:      generated.TotalPhases,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "engage-mission",
		Method:      http.MethodPost,
		Path:        "/missions/engage",
		Summary:     "Play one gameplay round",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		Body EngageRequest `json:"body"`
	}) (*struct {
		Body EngageResponse `json:"body"`
	}, error) {
		if input.Body.MissionSessionID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "missionSessionId is required", nil)
		}
		if strings.TrimSpace(input.Body.Message) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "message is required", nil)
		}
		res, err := e.ProcessDecision(ctx, engine.DecisionOptions{
			SessionID:          input.Body.MissionSessionID,
			UserID:             effectiveUserID(ctx, input.Body.UserID),
			Message:            input.Body.Message,
			SelectedOption:     input.Body.SelectedOption,
			GameHistory:        chatMessages(input.Body.GameHistory),
			RoundNumber:        input.Body.RoundNumber,
			FullMissionDetails: input.Body.FullMissionDetails,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EngageResponse `json:"body"`
		}{Body: engageResponse(res)}, nil
	})

	type sessionPath struct {
		SessionID string `path:"session_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/missions/{session_id}",
		Summary:     "Get a mission session",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body SessionBody `json:"body"`
	}, error) {
		s, err := e.GetSession(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SessionBody `json:"body"`
		}{Body: SessionBody{Session: s}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-mission-decisions",
		Method:      http.MethodGet,
		Path:        "/missions/{session_id}/decisions",
		Summary:     "List a session's decision log",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *sessionPath) (*struct {
		Body []DecisionResponse `json:"body"`
	}, error) {
		decisions, err := e.ListDecisions(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]DecisionResponse, 0, len(decisions))
		for _, d := range decisions {
			out = append(out, decisionResponse(d))
		}
		return &struct {
			Body []DecisionResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerAnalytics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-analytics",
		Method:      http.MethodGet,
		Path:        "/analytics",
		Summary:     "Completed-mission analytics for the authenticated user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body AnalyticsResponse `json:"body"`
	}, error) {
		userID, authErr := requireUserID(ctx)
		if authErr != nil {
			return nil, authErr
		}
		analytics, err := e.Analytics(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AnalyticsResponse `json:"body"`
		}{Body: AnalyticsResponse{
			Analytics:   analytics,
			Suggestions: progression.Suggestions(analytics),
		}}, nil
	})
}

func registerCharacter(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-character",
		Method:      http.MethodGet,
		Path:        "/character",
		Summary:     "Character stats and skills for the authenticated user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CharacterResponse `json:"body"`
	}, error) {
		userID, authErr := requireUserID(ctx)
		if authErr != nil {
			return nil, authErr
		}
		stats, skills, err := e.Character(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		if skills == nil {
			skills = []domain.UserSkill{}
		}
		return &struct {
			Body CharacterResponse `json:"body"`
		}{Body: CharacterResponse{Stats: stats, Skills: skills}}, nil
	})
}
