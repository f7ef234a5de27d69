package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-pr-insight-ollama/internal/service"
)

// SimilarityHandler handles similarity search endpoints.
type SimilarityHandler struct {
	similarityService *service.SimilarityService
}

// NewSimilarityHandler creates a new similarity handler.
func NewSimilarityHandler(similarityService *service.SimilarityService) *SimilarityHandler {
	return &SimilarityHandler{similarityService: similarityService}
}

// Register sets up similarity routes.
func (h *SimilarityHandler) Register(router fiber.Router) {
	router.Get("/similar", h.FindSimilar)
}

// FindSimilar ranks stored file embeddings against the vector of the given
// (analysis, filename) pair. A file with no stored vector yields an empty
// list, not an error.
func (h *SimilarityHandler) FindSimilar(c fiber.Ctx) error {
	analysisID := c.Query("analysis_id")
	filename := c.Query("filename")
	if analysisID == "" || filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "analysis_id and filename query params are required"})
	}

	results, err := h.similarityService.FindSimilar(c.Context(), analysisID, filename)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"results": results, "count": len(results)})
}
