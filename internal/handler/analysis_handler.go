package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/domain"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/port"
	"github.com/arturoeanton/go-pr-insight-ollama/internal/service"
)

// AnalysisHandler handles analysis endpoints.
type AnalysisHandler struct {
	analysisService *service.AnalysisService
	tracker         *JobTracker
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(analysisService *service.AnalysisService, tracker *JobTracker) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService, tracker: tracker}
}

// Register sets up analysis routes.
func (h *AnalysisHandler) Register(router fiber.Router) {
	analyses := router.Group("/analyses")
	analyses.Post("/pull-request", h.AnalyzePullRequest)
	analyses.Post("/snapshot", h.AnalyzeSnapshot)

	router.Get("/jobs/:id", h.GetJob)
}

// AnalyzePullRequest accepts a PR analysis job and returns 202 immediately,
// or runs it inline when wait is set.
func (h *AnalysisHandler) AnalyzePullRequest(c fiber.Ctx) error {
	var body struct {
		Owner  string `json:"owner"`
		Repo   string `json:"repo"`
		Number int    `json:"number"`
		Wait   bool   `json:"wait"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Owner == "" || body.Repo == "" || body.Number <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "owner, repo, and number are required"})
	}

	if body.Wait {
		analysis, err := h.analysisService.AnalyzePullRequest(c.Context(), body.Owner, body.Repo, body.Number)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"analysis": analysis})
	}

	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, body.Owner, body.Repo, domain.ChangeSetKindPullRequest)

	// Run in background — no HTTP connection held.
	go h.runJob(jobID, func(ctx context.Context) (*domain.Analysis, error) {
		return h.analysisService.AnalyzePullRequest(ctx, body.Owner, body.Repo, body.Number)
	})

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"message": "analysis started",
	})
}

// AnalyzeSnapshot accepts a snapshot-scan job and returns 202 immediately,
// or runs it inline when wait is set.
func (h *AnalysisHandler) AnalyzeSnapshot(c fiber.Ctx) error {
	var body struct {
		Owner string `json:"owner"`
		Repo  string `json:"repo"`
		Ref   string `json:"ref"`
		Wait  bool   `json:"wait"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Owner == "" || body.Repo == "" || body.Ref == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "owner, repo, and ref are required"})
	}

	if body.Wait {
		analysis, err := h.analysisService.AnalyzeSnapshot(c.Context(), body.Owner, body.Repo, body.Ref)
		if err != nil {
			return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"analysis": analysis})
	}

	jobID := uuid.New().String()
	h.tracker.CreateJob(jobID, body.Owner, body.Repo, domain.ChangeSetKindSnapshot)

	go h.runJob(jobID, func(ctx context.Context) (*domain.Analysis, error) {
		return h.analysisService.AnalyzeSnapshot(ctx, body.Owner, body.Repo, body.Ref)
	})

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"message": "analysis started",
	})
}

// GetJob returns the status of a background analysis job.
func (h *AnalysisHandler) GetJob(c fiber.Ctx) error {
	job, ok := h.tracker.GetJob(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}

func (h *AnalysisHandler) runJob(jobID string, run func(ctx context.Context) (*domain.Analysis, error)) {
	analysis, err := run(context.Background())
	if err != nil {
		slog.Error("analysis job failed", "job_id", jobID, "error", err)
		h.tracker.FailJob(jobID, err.Error())
		return
	}
	h.tracker.CompleteJob(jobID, analysis.ChangeSetID, analysis.ID)
}

// statusForError maps the failure taxonomy to HTTP statuses.
func statusForError(err error) int {
	var hostErr *port.HostError
	switch {
	case errors.Is(err, port.ErrNotFound), errors.Is(err, port.ErrChangeSetNotFound), errors.Is(err, port.ErrAnalysisNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &hostErr):
		return fiber.StatusBadGateway
	case errors.Is(err, port.ErrOracle):
		return fiber.StatusBadGateway
	case errors.Is(err, port.ErrContentTooLarge):
		return fiber.StatusRequestEntityTooLarge
	default:
		return fiber.StatusInternalServerError
	}
}
