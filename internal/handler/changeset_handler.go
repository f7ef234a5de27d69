package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/service"
)

// ChangeSetHandler handles change-set read and triage endpoints.
type ChangeSetHandler struct {
	analysisService *service.AnalysisService
}

// NewChangeSetHandler creates a new change-set handler.
func NewChangeSetHandler(analysisService *service.AnalysisService) *ChangeSetHandler {
	return &ChangeSetHandler{analysisService: analysisService}
}

// Register sets up change-set routes.
func (h *ChangeSetHandler) Register(router fiber.Router) {
	changesets := router.Group("/changesets")
	changesets.Get("/", h.List)
	changesets.Get("/:id", h.Get)
	changesets.Patch("/:id/findings", h.ResolveFinding)
}

// List returns all change-sets for a repository.
func (h *ChangeSetHandler) List(c fiber.Ctx) error {
	owner := c.Query("owner")
	repo := c.Query("repo")
	if owner == "" || repo == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "owner and repo query params are required"})
	}

	sets, err := h.analysisService.ListChangeSets(c.Context(), owner, repo)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"changesets": sets, "count": len(sets)})
}

// Get returns one change-set with its analysis, triage state applied.
func (h *ChangeSetHandler) Get(c fiber.Ctx) error {
	cs, analysis, err := h.analysisService.GetChangeSet(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"changeset": cs, "analysis": analysis})
}

// ResolveFinding updates the resolved flag of one issue or suggestion. The
// finding is identified by content, not position, so the flag survives
// re-analysis.
func (h *ChangeSetHandler) ResolveFinding(c fiber.Ctx) error {
	var body struct {
		Kind        string `json:"kind"` // issue, suggestion
		Title       string `json:"title"`
		File        string `json:"file"`
		Line        int    `json:"line"`
		Description string `json:"description"`
		Resolved    bool   `json:"resolved"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Kind == "" || body.Title == "" || body.File == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "kind, title, and file are required"})
	}

	err := h.analysisService.ResolveFinding(c.Context(), c.Params("id"), body.Kind, body.Title, body.File, body.Line, body.Description, body.Resolved)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}
