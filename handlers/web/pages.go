// Package web serves the browser pages; all data flows through the JSON
// API with a bearer token held by the client.
package web

import (
	"github.com/gofiber/fiber/v2"

	"msgview/config"
)

type PageHandler struct {
	config *config.Config
}

// NewPageHandler creates a new page handler
func NewPageHandler(cfg *config.Config) *PageHandler {
	return &PageHandler{config: cfg}
}

// ShowIndex renders the email browser page
func (h *PageHandler) ShowIndex(c *fiber.Ctx) error {
	return c.Render("index", fiber.Map{})
}

// ShowLogin renders the login page
func (h *PageHandler) ShowLogin(c *fiber.Ctx) error {
	return c.Render("login", fiber.Map{})
}
