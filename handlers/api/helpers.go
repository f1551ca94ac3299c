package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"msgview/config"
	"msgview/models"
	"msgview/utils"
)

// parsePagination reads page/page_size query parameters. Absent values
// take defaults, zero and over-max values are clamped silently, and
// negative or non-numeric input is rejected.
func parsePagination(c *fiber.Ctx, cfg *config.Config) (page, pageSize int, err error) {
	page, err = parseIntParam(c.Query("page"), "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err = parseIntParam(c.Query("page_size"), "page_size", cfg.Pagination.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	page, pageSize = clampPagination(page, pageSize, cfg)
	return page, pageSize, nil
}

func parseIntParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.BadRequestError("Parameter "+name+" must be a number", err)
	}
	if value < 0 {
		return 0, utils.BadRequestError("Parameter "+name+" must not be negative", nil)
	}
	return value, nil
}

// clampPagination corrects out-of-bound values to the configured window
func clampPagination(page, pageSize int, cfg *config.Config) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = cfg.Pagination.DefaultPageSize
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > cfg.Pagination.MaxPageSize {
		pageSize = cfg.Pagination.MaxPageSize
	}
	return page, pageSize
}

// validateSearchPagination applies the same rules to a search body, where
// the values arrive as JSON numbers instead of query parameters
func validateSearchPagination(req *models.SearchRequest, cfg *config.Config) error {
	if req.Page < 0 {
		return utils.BadRequestError("Parameter page must not be negative", nil)
	}
	if req.PageSize < 0 {
		return utils.BadRequestError("Parameter page_size must not be negative", nil)
	}
	req.Page, req.PageSize = clampPagination(req.Page, req.PageSize, cfg)
	return nil
}
