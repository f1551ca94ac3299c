package api

import (
	"github.com/gofiber/fiber/v2"

	"msgview/config"
	"msgview/models"
	"msgview/store"
	"msgview/utils"
)

// SearchHandler handles email search requests
type SearchHandler struct {
	config *config.Config
	repo   *store.Repository
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(cfg *config.Config, repo *store.Repository) *SearchHandler {
	return &SearchHandler{
		config: cfg,
		repo:   repo,
	}
}

// HandleSearch processes an email search request. All fields are
// optional; an empty query lists the whole folder.
func (h *SearchHandler) HandleSearch(c *fiber.Ctx) error {
	var req models.SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid search request", err)
	}

	if err := validateSearchPagination(&req, h.config); err != nil {
		return err
	}

	result, err := h.repo.Search(&req)
	if err != nil {
		return utils.InternalServerError("Search failed", err)
	}

	utils.Log.Info("Search completed: query=%q sender=%q subject=%q results=%d",
		req.Query, req.Sender, req.Subject, result.TotalEmails)

	return c.JSON(result)
}
