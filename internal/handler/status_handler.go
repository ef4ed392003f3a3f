package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch/internal/repository"
	"github.com/noah-isme/gradewatch/internal/service"
	"github.com/noah-isme/gradewatch/internal/utils"
)

// StatusResponse summarizes the last monitoring cycle for operators.
type StatusResponse struct {
	BaselineTime   *time.Time `json:"baseline_time"`
	LastRunAt      *time.Time `json:"last_run_at"`
	LastSummary    string     `json:"last_summary"`
	IsInitial      bool       `json:"is_initial"`
	NewAssignments int        `json:"new_assignments"`
	GradeUpdates   int        `json:"grade_updates"`
	CommentUpdates int        `json:"comment_updates"`
}

// StatusHandler serves the read-only pipeline status endpoint.
type StatusHandler struct {
	pipeline *service.PipelineService
	store    repository.GradeStore
	logger   zerolog.Logger
}

// NewStatusHandler builds a status handler.
func NewStatusHandler(pipeline *service.PipelineService, store repository.GradeStore, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		pipeline: pipeline,
		store:    store,
		logger:   logger.With().Str("component", "status_handler").Logger(),
	}
}

// Register wires the status route into the given group.
func (h *StatusHandler) Register(group fiber.Router) {
	group.Get("/status", h.Status)
}

// Status reports the last cycle outcome and the committed baseline time.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	baseline, err := h.store.LatestSnapshotTime(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read baseline time")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to read baseline")
	}

	payload := StatusResponse{
		BaselineTime: baseline,
		LastSummary:  "No cycles completed yet",
	}

	if report, ranAt, ok := h.pipeline.LastReport(); ok {
		payload.LastRunAt = &ranAt
		payload.LastSummary = report.Summary()
		payload.IsInitial = report.IsInitial
		payload.NewAssignments = report.NewAssignmentsCount
		payload.GradeUpdates = report.GradeUpdatesCount
		payload.CommentUpdates = report.CommentUpdatesCount
	}

	return utils.SendSuccess(c, "pipeline status", payload)
}
