package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cubescore/cubescore-backend/internal/application/command"
	"github.com/cubescore/cubescore-backend/internal/application/query"
	"github.com/cubescore/cubescore-backend/internal/application/saga"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

// validate checks request bodies before they reach the application layer.
var validate = validator.New()

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"healthy": true,
			"message": "no health checks configured",
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	status.Uptime = s.Uptime().Round(time.Second).String()

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// handleReady handles GET /ready requests (readiness probe).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles GET /live requests (liveness probe).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleRoot handles GET / requests.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "cubescore-backend",
		"version": "v1",
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetSchoolStandings handles GET /api/v1/competitions/{id}/standings/schools.
// Optional ?division= narrows the table to one division ranking.
func (s *Server) handleGetSchoolStandings(w http.ResponseWriter, r *http.Request) {
	q := query.GetSchoolStandingsQuery{
		CompetitionID: chi.URLParam(r, "id"),
		Division:      r.URL.Query().Get("division"),
	}

	result, err := s.deps.GetSchoolStandingsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{FromCache: result.FromCache})
}

// handleGetStudentStandings handles GET /api/v1/competitions/{id}/standings/students.
func (s *Server) handleGetStudentStandings(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	q := query.GetStudentStandingsQuery{
		CompetitionID: chi.URLParam(r, "id"),
		Limit:         limit,
	}

	result, err := s.deps.GetStudentStandingsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetAchievementFeed handles GET /api/v1/achievements.
// Optional ?competition_id= scopes the feed to one competition.
func (s *Server) handleGetAchievementFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_limit", err.Error())
		return
	}

	q := query.GetAchievementFeedQuery{
		CompetitionID: r.URL.Query().Get("competition_id"),
		Limit:         limit,
	}

	result, err := s.deps.GetAchievementFeedHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStudentSummary handles GET /api/v1/students/{id}/summary.
func (s *Server) handleGetStudentSummary(w http.ResponseWriter, r *http.Request) {
	q := query.GetStudentSummaryQuery{
		StudentID:     chi.URLParam(r, "id"),
		CompetitionID: r.URL.Query().Get("competition_id"),
	}

	result, err := s.deps.GetStudentSummaryHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT & COMPETITION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// recordResultRequest is the body of POST /api/v1/rounds/{id}/results.
// Zero or negative times mean DNF.
type recordResultRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SingleMs  int64  `json:"single_ms"`
	AverageMs int64  `json:"average_ms"`
}

// recordResultResponse echoes the stored result.
type recordResultResponse struct {
	ID         string `json:"id"`
	RoundID    string `json:"round_id"`
	StudentID  string `json:"student_id"`
	SingleMs   int64  `json:"single_ms"`
	AverageMs  int64  `json:"average_ms"`
	RecordedAt string `json:"recorded_at"`
}

// handleRecordResult handles POST /api/v1/rounds/{id}/results.
func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	var req recordResultRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.RecordResultCommand{
		RoundID:   chi.URLParam(r, "id"),
		StudentID: req.StudentID,
		SingleMs:  req.SingleMs,
		AverageMs: req.AverageMs,
	}

	score, err := s.deps.RecordResultHandler.Handle(r.Context(), cmd)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrCompetitionNotActive):
			writeJSONError(w, http.StatusConflict, "competition_not_active",
				"Results can only be recorded while the competition is active")
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, recordResultResponse{
		ID:         score.ID,
		RoundID:    score.RoundID,
		StudentID:  score.StudentID,
		SingleMs:   score.BestSingle.Millis(),
		AverageMs:  score.BestAverage.Millis(),
		RecordedAt: score.RecordedAt.UTC().Format(time.RFC3339),
	})
}

// finalizeResponse summarizes a completion run for API clients.
type finalizeResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	ResultsScored  int     `json:"results_scored"`
	SchoolsRanked  int     `json:"schools_ranked"`
	StudentsRanked int     `json:"students_ranked"`
	SkippedResults int     `json:"skipped_results,omitempty"`
	TotalPoints    float64 `json:"total_points"`
}

// handleFinalizeCompetition handles POST /api/v1/competitions/{id}/finalize.
// Concurrent finalize attempts race on the completing claim: the loser
// gets a 409 and the competition is finalized exactly once.
func (s *Server) handleFinalizeCompetition(w http.ResponseWriter, r *http.Request) {
	input := saga.CompleteCompetitionInput{CompetitionID: chi.URLParam(r, "id")}

	result, err := s.deps.CompletionFlow.Execute(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrFinalizeInProgress):
			writeJSONError(w, http.StatusConflict, "finalize_in_progress",
				"Finalization is already running for this competition")
		case errors.Is(err, shared.ErrCompetitionNotActive):
			writeJSONError(w, http.StatusConflict, "competition_not_active",
				"Only active competitions can be finalized")
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, finalizeResponse{
		Success:        result.Success,
		Message:        result.Message,
		ResultsScored:  result.ResultsScored,
		SchoolsRanked:  result.SchoolsRanked,
		StudentsRanked: result.StudentsRanked,
		SkippedResults: result.SkippedResults,
		TotalPoints:    result.TotalPoints,
	})
}

// handleSetBaseline handles POST /api/v1/competitions/{id}/baseline.
func (s *Server) handleSetBaseline(w http.ResponseWriter, r *http.Request) {
	cmd := command.SetBaselineCommand{CompetitionID: chi.URLParam(r, "id")}

	result, err := s.deps.SetBaselineHandler.Handle(r.Context(), cmd)
	if err != nil {
		switch {
		case shared.IsNotFound(err):
			writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
		case errors.Is(err, shared.ErrStateTransition):
			writeJSONError(w, http.StatusConflict, "invalid_state", err.Error())
		case errors.Is(err, shared.ErrAlreadyExists):
			writeJSONError(w, http.StatusConflict, "baseline_exists", err.Error())
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"competition_id": result.CompetitionID,
		"records_frozen": result.RecordsFrozen,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// thresholdRequest is one tier row in the replace-thresholds body.
type thresholdRequest struct {
	Tier       string  `json:"tier" validate:"required"`
	MinTimeMs  int64   `json:"min_time_ms" validate:"min=0"`
	MaxTimeMs  *int64  `json:"max_time_ms,omitempty"`
	BasePoints float64 `json:"base_points" validate:"min=0"`
	Color      string  `json:"color"`
}

// replaceThresholdsRequest is the body of PUT /api/v1/admin/events/{eventTypeID}/thresholds.
type replaceThresholdsRequest struct {
	Thresholds []thresholdRequest `json:"thresholds" validate:"required,min=1,dive"`
}

// handleReplaceThresholds handles PUT /api/v1/admin/events/{eventTypeID}/thresholds.
// The whole tier table is replaced atomically; partial edits are not supported.
func (s *Server) handleReplaceThresholds(w http.ResponseWriter, r *http.Request) {
	var req replaceThresholdsRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	eventTypeID := chi.URLParam(r, "eventTypeID")
	thresholds := make([]scoring.TierThreshold, 0, len(req.Thresholds))
	for _, t := range req.Thresholds {
		thresholds = append(thresholds, scoring.TierThreshold{
			EventTypeID: eventTypeID,
			Tier:        scoring.Tier(t.Tier),
			MinTimeMs:   t.MinTimeMs,
			MaxTimeMs:   t.MaxTimeMs,
			BasePoints:  t.BasePoints,
			Color:       t.Color,
		})
	}

	cmd := command.ReplaceThresholdsCommand{
		EventTypeID: eventTypeID,
		Thresholds:  thresholds,
	}
	if err := s.deps.ReplaceThresholdsHandler.Handle(r.Context(), cmd); err != nil {
		if shared.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "not_found", "event type not found")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_thresholds", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"event_type_id": eventTypeID,
		"tiers":         len(thresholds),
	})
}

// upsertMultiplierRequest is the body of PUT /api/v1/admin/multipliers.
type upsertMultiplierRequest struct {
	Grade      int     `json:"grade" validate:"required,min=1,max=12"`
	Multiplier float64 `json:"multiplier" validate:"required,gt=0"`
}

// handleUpsertMultiplier handles PUT /api/v1/admin/multipliers.
func (s *Server) handleUpsertMultiplier(w http.ResponseWriter, r *http.Request) {
	var req upsertMultiplierRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.UpsertMultiplierCommand{
		Grade:      req.Grade,
		Multiplier: req.Multiplier,
	}
	if err := s.deps.UpsertMultiplierHandler.Handle(r.Context(), cmd); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_multiplier", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"grade":      req.Grade,
		"multiplier": req.Multiplier,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation. It writes the error response itself and reports success.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeJSONError(w, http.StatusBadRequest, "validation_failed", verrs[0].Error())
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// parseLimit reads the ?limit= query parameter, falling back to def.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	return limit, nil
}

// writeQueryError maps a read-side error to an HTTP response.
func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case isParameterError(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.writeInternalError(w, r, err)
	}
}

// isParameterError reports whether the error came from query parameter
// validation rather than from storage. Validate() methods return plain
// unwrapped errors; repository failures are always wrapped.
func isParameterError(err error) bool {
	var derr *shared.DomainError
	if errors.As(err, &derr) {
		return false
	}
	return errors.Unwrap(err) == nil
}

// writeInternalError logs the error and returns an opaque 500 response.
func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("http handler failed",
		logger.Err(err),
		logger.F("path", r.URL.Path),
		logger.F("request_id", getRequestID(r.Context())))
	writeJSONError(w, http.StatusInternalServerError, "internal_server_error",
		"An unexpected error occurred")
}
